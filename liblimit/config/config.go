package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strconv"

	"m-cpulimit/liblimit/constant"
)

const (
	CgroupVersionAuto = "auto"
	CgroupVersionV1   = "v1"
	CgroupVersionV2   = "v2"

	EnforcerCgroup = "cgroup"
	EnforcerSignal = "signal"

	// 内核允许的 CPU 调度周期范围（微秒）
	MinPeriod     uint64 = 1000
	MaxPeriod     uint64 = 1000000
	DefaultPeriod uint64 = 100000

	// 遍历进程树的最大深度
	DefaultMaxDepth = 64

	// 表示 uid/gid 未指定，由调用方决定
	PrincipalUnset = -1
)

// 包含了 m-cpulimit 的所有配置信息
type Config struct {
	// cgroup 的挂载点
	MountPoint string `toml:"mount_point"`

	// 根目录名称，未指定 RootPath 时与挂载点拼接
	RootName string `toml:"root_name"`

	// 根目录的绝对路径，非空时直接使用
	RootPath string `toml:"root_path"`

	// auto、v1 或 v2
	CgroupVersion string `toml:"cgroup_version"`

	// CPU 硬限制的调度周期（微秒）
	Period uint64 `toml:"period"`

	// 管理 cgroup 层级的非特权用户
	UID int `toml:"uid"`
	GID int `toml:"gid"`

	// 主机 CPU 数量，0 表示自动探测
	HostCPUs int `toml:"host_cpus"`

	// 遍历子进程的最大深度
	MaxDepth int `toml:"max_depth"`

	// cgroup 节点名前缀
	NodePrefix string `toml:"node_prefix"`

	// cgroup 或 signal
	Enforcer string `toml:"enforcer"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		MountPoint:    constant.CgroupMountPoint,
		RootName:      constant.CgroupRootName,
		CgroupVersion: CgroupVersionAuto,
		Period:        DefaultPeriod,
		UID:           PrincipalUnset,
		GID:           PrincipalUnset,
		MaxDepth:      DefaultMaxDepth,
		NodePrefix:    constant.NodePrefix,
		Enforcer:      EnforcerCgroup,
	}
}

// Validate 检查配置的合法性
func (c *Config) Validate() error {
	switch c.CgroupVersion {
	case CgroupVersionAuto, CgroupVersionV1, CgroupVersionV2:
	default:
		return fmt.Errorf("unknown cgroup version %q", c.CgroupVersion)
	}
	switch c.Enforcer {
	case EnforcerCgroup, EnforcerSignal:
	default:
		return fmt.Errorf("unknown enforcer %q", c.Enforcer)
	}
	if c.RootPath != "" && !filepath.IsAbs(c.RootPath) {
		return fmt.Errorf("root path %q is not absolute", c.RootPath)
	}
	if c.RootPath == "" && !filepath.IsAbs(c.MountPoint) {
		return fmt.Errorf("mount point %q is not absolute", c.MountPoint)
	}
	if c.Period < MinPeriod || c.Period > MaxPeriod {
		return fmt.Errorf("period %d out of range [%d, %d]", c.Period, MinPeriod, MaxPeriod)
	}
	if c.HostCPUs < 0 {
		return fmt.Errorf("host cpus %d is negative", c.HostCPUs)
	}
	return nil
}

// ResolveRootPath 根据 cgroup 版本给出根目录的绝对路径
func (c *Config) ResolveRootPath(version string) string {
	if c.RootPath != "" {
		return path.Clean(c.RootPath)
	}
	// v1 下每个 controller 有自己的层级，cpu 限制挂在 cpu 层级下
	if version == CgroupVersionV1 {
		return path.Join(c.MountPoint, constant.CgroupV1CpuHierarchy, c.RootName)
	}
	return path.Join(c.MountPoint, c.RootName)
}

// NodeName 根据 PID 生成确定的 cgroup 节点名
func (c *Config) NodeName(pid int) string {
	return c.NodePrefix + strconv.Itoa(pid)
}

// PrincipalSet 判断 uid/gid 是否都已指定
func (c *Config) PrincipalSet() bool {
	return c.UID != PrincipalUnset && c.GID != PrincipalUnset
}
