package cgroup

import (
	"fmt"

	"m-cpulimit/liblimit/config"
	v1 "m-cpulimit/liblimit/cgroup/v1"
	v2 "m-cpulimit/liblimit/cgroup/v2"

	log "github.com/sirupsen/logrus"
)

// Layout 是不同 cgroup 版本下控制文件布局的抽象接口
type Layout interface {
	// 返回 cgroup 版本，v1 或 v2
	Version() string

	// 让根目录下新建的节点拥有 cpu 控制文件
	PrepareRoot(rootPath string) error

	// 设置节点的资源限制
	Set(nodePath string, res *config.Resources) error

	// 读取节点当前的资源限制
	Stat(nodePath string) (*config.Resources, error)

	// 将进程 pid 添加至节点中
	Attach(nodePath string, pid int) error

	// 读取节点中的进程
	Tasks(nodePath string) ([]int, error)
}

// 根据 cgroup 版本创建 Layout
func NewLayout(version string) (Layout, error) {
	switch version {
	case config.CgroupVersionV2:
		log.Debugf("using cgroup v2")
		return v2.NewLayout(), nil
	case config.CgroupVersionV1:
		log.Debugf("using cgroup v1")
		return v1.NewLayout(), nil
	}
	return nil, fmt.Errorf("cgroup version %q is not supported", version)
}

// Open 根据配置探测 cgroup 版本并创建 Store
func Open(conf *config.Config) (*Store, error) {
	version := conf.CgroupVersion
	if version == config.CgroupVersionAuto {
		detected, err := DetectVersion(conf.MountPoint)
		if err != nil {
			return nil, fmt.Errorf("detect cgroup version: %w", err)
		}
		version = detected
	}

	layout, err := NewLayout(version)
	if err != nil {
		return nil, err
	}
	return NewStore(conf.ResolveRootPath(version), layout), nil
}
