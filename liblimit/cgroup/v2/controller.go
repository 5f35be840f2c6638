package v2

import "m-cpulimit/liblimit/config"

// cgroup controller 的抽象接口
type Controller interface {
	// Name() 方法返回当前 cgroup controller 的名字，如 cpu
	Name() string

	// Set() 方法用于设置当前 cgroup controller 的资源限制
	Set(cgroupPath string, res *config.Resources) error

	// Stat() 方法将当前 cgroup controller 的资源限制读入 res
	Stat(cgroupPath string, res *config.Resources) error
}

// 所有的 cgroup controller
var Controllers = []Controller{
	&CpuController{},
}
