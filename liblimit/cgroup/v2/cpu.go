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

type CpuController struct {
}

func (s *CpuController) Name() string {
	return "cpu"
}

func (s *CpuController) Set(cgroupPath string, res *config.Resources) error {
	var cpuLimit string
	if res.Unlimited() { // 如果没有设置 CPU 使用率限制，则默认为最大值
		cpuLimit = "max " + strconv.FormatUint(res.CpuPeriod, 10)
	} else { // 如果设置了 CPU 使用率限制，则按照设置的值进行限制
		cpuLimit = fmt.Sprintf("%v %v", res.CpuQuota, res.CpuPeriod)
	}

	// 将 CPU 使用率限制写入 cpu.max 文件
	if err := cgfile.Write(path.Join(cgroupPath, constant.CpuMax), cpuLimit); err != nil {
		return err
	}

	log.Debugf("Set cgroup cpu.max: %v", cpuLimit)
	return nil
}

func (s *CpuController) Stat(cgroupPath string, res *config.Resources) error {
	p := path.Join(cgroupPath, constant.CpuMax)
	content, err := cgfile.Read(p)
	if err != nil {
		return err
	}

	// cpu.max 的格式为 "$MAX $PERIOD"，$MAX 可以是 max
	fields := strings.Fields(content)
	if len(fields) != 2 {
		return malformed(p, content)
	}
	period, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return malformed(p, content)
	}
	var quota uint64
	if fields[0] != "max" {
		if quota, err = strconv.ParseUint(fields[0], 10, 64); err != nil {
			return malformed(p, content)
		}
	}

	res.CpuQuota = quota
	res.CpuPeriod = period
	return nil
}

func malformed(filePath, content string) error {
	return &errdefs.PathError{
		Op:   "parse",
		Path: filePath,
		Kind: errdefs.ErrIO,
		Err:  fmt.Errorf("malformed content %q", content),
	}
}
