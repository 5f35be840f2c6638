package v1

import (
	"fmt"
	"path"
	"strconv"

	"m-cpulimit/liblimit/cgroup/internal/cgfile"
	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/constant"
	"m-cpulimit/liblimit/errdefs"

	log "github.com/sirupsen/logrus"
)

// cfs_quota_us 中表示不限制的值
const unlimitedQuota = "-1"

// Layout 对应 cgroup v1 的 cpu 层级，quota 和 period 分别在两个文件中
type Layout struct {
}

func NewLayout() *Layout {
	return &Layout{}
}

func (l *Layout) Version() string {
	return config.CgroupVersionV1
}

// v1 下子节点自动拥有 cpu controller 的控制文件
func (l *Layout) PrepareRoot(rootPath string) error {
	return nil
}

func (l *Layout) Set(nodePath string, res *config.Resources) error {
	// 先写 period，再写 quota
	periodFile := path.Join(nodePath, constant.CpuCfsPeriod)
	if err := cgfile.Write(periodFile, strconv.FormatUint(res.CpuPeriod, 10)); err != nil {
		return err
	}

	quota := unlimitedQuota
	if !res.Unlimited() {
		quota = strconv.FormatUint(res.CpuQuota, 10)
	}
	if err := cgfile.Write(path.Join(nodePath, constant.CpuCfsQuota), quota); err != nil {
		return err
	}

	log.Debugf("Set cgroup cpu.cfs_quota_us: %v, cpu.cfs_period_us: %v", quota, res.CpuPeriod)
	return nil
}

func (l *Layout) Stat(nodePath string) (*config.Resources, error) {
	periodFile := path.Join(nodePath, constant.CpuCfsPeriod)
	content, err := cgfile.Read(periodFile)
	if err != nil {
		return nil, err
	}
	period, err := strconv.ParseUint(content, 10, 64)
	if err != nil {
		return nil, errdefs.Path("parse", periodFile, err)
	}

	quotaFile := path.Join(nodePath, constant.CpuCfsQuota)
	content, err = cgfile.Read(quotaFile)
	if err != nil {
		return nil, err
	}
	res := &config.Resources{CpuPeriod: period}
	if content == unlimitedQuota {
		return res, nil
	}
	quota, err := strconv.ParseUint(content, 10, 64)
	if err != nil {
		return nil, &errdefs.PathError{Op: "parse", Path: quotaFile, Kind: errdefs.ErrIO, Err: fmt.Errorf("malformed quota %q", content)}
	}
	res.CpuQuota = quota
	return res, nil
}

func (l *Layout) Attach(nodePath string, pid int) error {
	// cgroup.procs 会移动整个进程（所有线程），tasks 只移动单个线程
	return cgfile.Append(path.Join(nodePath, constant.CgroupProcs), strconv.Itoa(pid)+"\n")
}

func (l *Layout) Tasks(nodePath string) ([]int, error) {
	return cgfile.ReadPids(path.Join(nodePath, constant.CgroupProcs))
}
