package liblimit

import (
	"context"
	"fmt"

	"m-cpulimit/liblimit/cgroup"
	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/ownership"
	"m-cpulimit/liblimit/proctree"
)

// Enforcer 是限制进程 CPU 使用率的抽象接口
type Enforcer interface {
	// Enforce 对 target 施加限制
	// 结果为 StateDone 时 error 为 nil，部分失败记录在 Result 中
	Enforce(ctx context.Context, target config.LimitTarget) (*Result, error)
}

// 根据配置创建 Enforcer
func NewEnforcer(conf *config.Config) (Enforcer, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	table := proctree.NewHostTable()
	if conf.Enforcer == config.EnforcerSignal {
		return NewSignalEnforcer(conf, table), nil
	}

	store, err := cgroup.Open(conf)
	if err != nil {
		return nil, fmt.Errorf("open cgroup store: %w", err)
	}
	return NewLimiter(conf, store, ownership.NewSyncer(store), table), nil
}
