package cgroup

import (
	"fmt"

	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/errdefs"

	"golang.org/x/sys/unix"
)

// DetectVersion 根据挂载点的文件系统类型判断 cgroup 版本
func DetectVersion(mountPoint string) (string, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(mountPoint, &st); err != nil {
		return "", errdefs.Path("statfs", mountPoint, err)
	}

	switch st.Type {
	case unix.CGROUP2_SUPER_MAGIC:
		return config.CgroupVersionV2, nil
	// v1 的挂载点是一个 tmpfs，各 controller 的层级挂在它下面
	case unix.TMPFS_MAGIC, unix.CGROUP_SUPER_MAGIC:
		return config.CgroupVersionV1, nil
	}
	return "", &errdefs.PathError{
		Op:   "detect cgroup version",
		Path: mountPoint,
		Kind: errdefs.ErrIO,
		Err:  fmt.Errorf("filesystem type %#x is not a cgroup mount", st.Type),
	}
}
