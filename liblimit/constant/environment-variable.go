package constant

const (
	// 覆盖 cgroup 挂载点
	ENV_MOUNT_POINT = "M_CPULIMIT_MOUNT"

	// 覆盖 cgroup 根目录
	ENV_ROOT_PATH = "M_CPULIMIT_ROOT"

	// 管理 cgroup 层级的非特权用户
	ENV_UID = "M_CPULIMIT_UID"
	ENV_GID = "M_CPULIMIT_GID"

	// sudo 设置的调用者身份
	ENV_SUDO_UID = "SUDO_UID"
	ENV_SUDO_GID = "SUDO_GID"
)
