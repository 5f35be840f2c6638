package quota

import (
	"fmt"
	"math"
	"strconv"

	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/errdefs"
)

// ToQuota 将 CPU 使用率百分比换算为内核的 quota/period
// percent 以单个 CPU 为 100，hostCPUs 为主机 CPU 数量
func ToQuota(percent float64, period uint64, hostCPUs int) (uint64, uint64, error) {
	if hostCPUs < 1 {
		return 0, 0, fmt.Errorf("host cpu count %d: %w", hostCPUs, errdefs.ErrInvalidLimit)
	}
	if period < config.MinPeriod || period > config.MaxPeriod {
		return 0, 0, fmt.Errorf("period %dus out of range [%d, %d]: %w", period, config.MinPeriod, config.MaxPeriod, errdefs.ErrInvalidLimit)
	}
	max := float64(100 * hostCPUs)
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent <= 0 || percent > max {
		return 0, 0, fmt.Errorf("percent %v out of range (0, %v]: %w", percent, max, errdefs.ErrInvalidLimit)
	}

	// 四舍五入（half-up）
	q := math.Floor(percent/100*float64(period) + 0.5)
	// quota 为 0 意味着进程被无限期挂起，这不是限制
	if q < 1 {
		return 0, 0, fmt.Errorf("percent %v rounds to a zero quota with period %dus: %w", percent, period, errdefs.ErrInvalidLimit)
	}
	quota := uint64(q)
	if quota > period*uint64(hostCPUs) {
		return 0, 0, fmt.Errorf("quota %dus exceeds %d cpus of period %dus: %w", quota, hostCPUs, period, errdefs.ErrInvalidLimit)
	}
	return quota, period, nil
}

// FromQuota 将 quota/period 换算回百分比
func FromQuota(quota, period uint64) float64 {
	if period == 0 {
		return 0
	}
	return float64(quota) * 100 / float64(period)
}

// Unit 返回给定 period 下一个 quota 单位对应的百分比
func Unit(period uint64) float64 {
	return FromQuota(1, period)
}

// Format 以 "quota/period (percent%)" 的形式展示资源限制
func Format(res *config.Resources) string {
	if res.Unlimited() {
		return "max/" + strconv.FormatUint(res.CpuPeriod, 10)
	}
	return fmt.Sprintf("%d/%d (%.2f%%)", res.CpuQuota, res.CpuPeriod, FromQuota(res.CpuQuota, res.CpuPeriod))
}
