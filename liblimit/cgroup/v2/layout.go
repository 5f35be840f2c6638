package v2

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"m-cpulimit/liblimit/cgroup/internal/cgfile"
	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/constant"
	"m-cpulimit/liblimit/errdefs"

	log "github.com/sirupsen/logrus"
)

type Layout struct {
	controllers []Controller
}

func NewLayout() *Layout {
	return &Layout{
		controllers: Controllers,
	}
}

func (l *Layout) Version() string {
	return config.CgroupVersionV2
}

// PrepareRoot 在根目录的父节点和根目录自身的 cgroup.subtree_control 中开启 controller
// 否则根目录下新建的节点中不会出现 cpu.max
func (l *Layout) PrepareRoot(rootPath string) error {
	for _, dir := range []string{path.Dir(rootPath), rootPath} {
		for _, controller := range l.controllers {
			if err := enableController(dir, controller.Name()); err != nil {
				return err
			}
		}
	}
	return nil
}

func enableController(dir, name string) error {
	available, err := cgfile.Read(path.Join(dir, constant.CgroupControllers))
	if errdefs.IsNotExist(err) {
		// 不是 cgroup 目录（例如测试用的普通目录），无需开启
		log.Debugf("%s has no %s, skip enabling %s", dir, constant.CgroupControllers, name)
		return nil
	}
	if err != nil {
		return err
	}
	if !containsField(available, name) {
		return &errdefs.PathError{
			Op:   "enable controller",
			Path: dir,
			Kind: errdefs.ErrIO,
			Err:  fmt.Errorf("controller %s is not available (have: %s)", name, available),
		}
	}

	subtreeFile := path.Join(dir, constant.SubtreeControl)
	enabled, err := cgfile.Read(subtreeFile)
	if err != nil {
		return err
	}
	if containsField(enabled, name) {
		return nil
	}
	// cgroup.subtree_control 接受 "+controller" 形式的写入
	if err := cgfile.Write(subtreeFile, "+"+name); err != nil {
		return err
	}
	log.Debugf("enable controller %s in %s", name, dir)
	return nil
}

func containsField(content, name string) bool {
	for _, field := range strings.Fields(content) {
		if field == name {
			return true
		}
	}
	return false
}

func (l *Layout) Set(nodePath string, res *config.Resources) error {
	// 遍历所有的 cgroup controller，调用 controller 的 Set 方法来设置 cgroup 的资源限制
	for _, controller := range l.controllers {
		if err := controller.Set(nodePath, res); err != nil {
			return fmt.Errorf("set cgroup controller %v: %w", controller.Name(), err)
		}
	}
	return nil
}

func (l *Layout) Stat(nodePath string) (*config.Resources, error) {
	res := &config.Resources{}
	for _, controller := range l.controllers {
		if err := controller.Stat(nodePath, res); err != nil {
			return nil, fmt.Errorf("stat cgroup controller %v: %w", controller.Name(), err)
		}
	}
	return res, nil
}

func (l *Layout) Attach(nodePath string, pid int) error {
	// 将进程的 PID 写入 cgroup.procs 文件
	return cgfile.Append(path.Join(nodePath, constant.CgroupProcs), strconv.Itoa(pid)+"\n")
}

func (l *Layout) Tasks(nodePath string) ([]int, error) {
	return cgfile.ReadPids(path.Join(nodePath, constant.CgroupProcs))
}
