package constant

const (
	// cgroup 在宿主机上的默认挂载点
	CgroupMountPoint = "/sys/fs/cgroup"

	// m-cpulimit 的 cgroup 根目录名
	CgroupRootName = "m-cpulimit.slice"

	// cgroup v1 下 cpu controller 的层级目录
	CgroupV1CpuHierarchy = "cpu"

	// 每个被限制进程对应的 cgroup 节点名前缀
	NodePrefix = "pid-"

	// 默认配置文件
	ConfigPath = "/etc/m-cpulimit/config.toml"
)

const (
	// cgroup v2 控制文件
	CpuMax            = "cpu.max"
	CgroupProcs       = "cgroup.procs"
	CgroupControllers = "cgroup.controllers"
	SubtreeControl    = "cgroup.subtree_control"

	// cgroup v1 控制文件
	CpuCfsQuota  = "cpu.cfs_quota_us"
	CpuCfsPeriod = "cpu.cfs_period_us"
)
