package config

// cgroup 资源限制
type Resources struct {
	// CPU 硬限制(hardcapping)的调度周期
	CpuPeriod uint64 `json:"cpuPeriod"`

	// 在 CPU 硬限制的调度周期内，期望使用的 CPU 时间，0 表示不限制
	CpuQuota uint64 `json:"cpuQuota"`
}

// Unlimited 判断是否没有设置 CPU 限制
func (r *Resources) Unlimited() bool {
	return r.CpuQuota == 0
}

// 一次限制请求的目标
type LimitTarget struct {
	// 目标进程的 PID
	Pid int `json:"pid"`

	// CPU 使用率上限，100 表示一个 CPU
	Percent float64 `json:"percent"`

	// 是否同时限制当前的子孙进程
	IncludeChildren bool `json:"includeChildren"`
}
