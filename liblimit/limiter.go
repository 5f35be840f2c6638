package liblimit

import (
	"context"
	"errors"
	"fmt"
	"math"

	"m-cpulimit/liblimit/cgroup"
	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/errdefs"
	"m-cpulimit/liblimit/metrics"
	"m-cpulimit/liblimit/ownership"
	"m-cpulimit/liblimit/proctree"
	"m-cpulimit/liblimit/quota"

	log "github.com/sirupsen/logrus"
)

// Limiter 通过 cgroup 的 CPU quota 限制进程
type Limiter struct {
	conf   *config.Config
	store  *cgroup.Store
	syncer *ownership.Syncer
	table  proctree.Table
}

func NewLimiter(conf *config.Config, store *cgroup.Store, syncer *ownership.Syncer, table proctree.Table) *Limiter {
	return &Limiter{
		conf:   conf,
		store:  store,
		syncer: syncer,
		table:  table,
	}
}

// Enforce 依次完成：校验参数、准备根目录、准备节点、同步属主、写入 quota、加入进程
// 任何一步出错都会终止，返回第一个致命错误
func (l *Limiter) Enforce(ctx context.Context, target config.LimitTarget) (*Result, error) {
	res := &Result{State: StateValidating, Enforcer: config.EnforcerCgroup, Target: target}

	// 1. 校验参数，在此之前不会改动文件系统
	q, period, err := validateTarget(ctx, l.conf, l.table, target)
	if err != nil {
		return failResult(res, err)
	}
	res.Quota, res.Period = q, period

	// 2. 准备根目录
	root, err := l.store.EnsureRoot()
	if err != nil {
		return failResult(res, fmt.Errorf("ensure cgroup root: %w", err))
	}
	l.advance(res, StateRootReady)

	// 3. 准备节点，已存在则复用
	node, err := l.store.EnsureNode(root, l.conf.NodeName(target.Pid))
	if err != nil {
		return failResult(res, fmt.Errorf("ensure cgroup node: %w", err))
	}
	res.Node = node
	l.advance(res, StateNodeReady)

	// 4. 同步整个根目录的属主，内核会在多个层级生成控制文件
	if err := l.syncOwnership(res, root, node); err != nil {
		return failResult(res, err)
	}
	l.advance(res, StateOwnershipSynced)

	// 5. 写入 quota
	resources := &config.Resources{CpuQuota: q, CpuPeriod: period}
	if err := l.store.Layout().Set(node.Path, resources); err != nil {
		return failResult(res, fmt.Errorf("write quota: %w", err))
	}
	metrics.SetNodeCPUPercent(node.Name, quota.FromQuota(q, period))
	l.advance(res, StateQuotaWritten)

	// 6. 将目标进程及其子孙进程加入节点
	if err := l.attach(ctx, res, node, target); err != nil {
		return failResult(res, err)
	}
	l.advance(res, StateTasksAttached)

	l.advance(res, StateDone)
	metrics.ObserveInvocation(res.Enforcer, res.State.String())
	log.Infof("limited pid %d to %s in %s (%d attached)", target.Pid,
		quota.Format(resources), node.Path, len(res.Attached))
	if res.PartialAttachFailure() {
		log.Warnf("could not attach pids %v", res.FailedPids())
	}
	if res.PartialOwnershipFailure() {
		log.Warnf("%d entries under %s could not be chowned", len(res.Ownership.Failed), root.Path)
	}
	return res, nil
}

func (l *Limiter) advance(res *Result, state State) {
	log.Debugf("limit pid %d: %s -> %s", res.Target.Pid, res.State, state)
	res.State = state
}

func failResult(res *Result, err error) (*Result, error) {
	log.Debugf("limit pid %d failed in %s: %v", res.Target.Pid, res.State, err)
	res.FailedIn = res.State
	res.State = StateFailed
	res.Err = err
	metrics.ObserveInvocation(res.Enforcer, res.State.String())
	return res, err
}

func (l *Limiter) syncOwnership(res *Result, root *cgroup.Root, node *cgroup.Node) error {
	policy := ownership.PolicyFromConfig(l.conf)
	report, err := l.syncer.Sync(root, policy)
	res.Ownership = report
	if report != nil {
		metrics.ObserveOwnership(report.Succeeded, len(report.Skipped), len(report.Failed))
	}
	if err != nil {
		return fmt.Errorf("sync ownership to %s: %w", policy, err)
	}

	// 其他条目失败可以容忍，但新节点必须能被 policy 用户访问
	if f, ok := report.Lookup(node.Path); ok {
		return &errdefs.PathError{Op: "chown", Path: node.Path, Kind: errdefs.ErrPermissionDenied, Err: f.Err}
	}
	if report.Vanished(node.Path) {
		return &errdefs.PathError{Op: "chown", Path: node.Path, Kind: errdefs.ErrIO, Err: errors.New("node vanished during ownership sync")}
	}
	return nil
}

func (l *Limiter) attach(ctx context.Context, res *Result, node *cgroup.Node, target config.LimitTarget) error {
	layout := l.store.Layout()

	// 目标进程本身加入失败是致命的
	if err := layout.Attach(node.Path, target.Pid); err != nil {
		return fmt.Errorf("attach pid %d: %w", target.Pid, err)
	}
	res.Attached = append(res.Attached, target.Pid)

	if !target.IncludeChildren {
		return nil
	}

	// 只是一次快照，之后新创建的子进程需要再次调用才会被限制
	children, err := proctree.Descendants(ctx, l.table, int32(target.Pid), l.conf.MaxDepth)
	if err != nil {
		return fmt.Errorf("discover children of pid %d: %w", target.Pid, err)
	}
	for _, child := range children {
		pid := int(child)
		if err := layout.Attach(node.Path, pid); err != nil {
			log.Debugf("attach child pid %d: %v", pid, err)
			res.AttachFailures = append(res.AttachFailures, AttachFailure{Pid: pid, Err: err})
			continue
		}
		res.Attached = append(res.Attached, pid)
	}
	metrics.AddAttachFailures(len(res.AttachFailures))
	return nil
}

// validateTarget 校验 PID 和百分比，并换算出 quota/period
func validateTarget(ctx context.Context, conf *config.Config, table proctree.Table, target config.LimitTarget) (uint64, uint64, error) {
	if target.Pid <= 0 || target.Pid > math.MaxInt32 {
		return 0, 0, &errdefs.ProcessError{
			Op:   "validate",
			Pid:  target.Pid,
			Kind: errdefs.ErrInvalidLimit,
			Err:  errors.New("pid must be a positive process id"),
		}
	}

	cpus, err := hostCPUs(ctx, conf)
	if err != nil {
		return 0, 0, err
	}
	q, period, err := quota.ToQuota(target.Percent, conf.Period, cpus)
	if err != nil {
		return 0, 0, err
	}

	exists, err := table.Exists(ctx, int32(target.Pid))
	if err != nil {
		return 0, 0, &errdefs.ProcessError{Op: "validate", Pid: target.Pid, Kind: errdefs.ErrIO, Err: err}
	}
	if !exists {
		return 0, 0, &errdefs.ProcessError{Op: "validate", Pid: target.Pid, Kind: errdefs.ErrNoSuchProcess}
	}
	return q, period, nil
}

func hostCPUs(ctx context.Context, conf *config.Config) (int, error) {
	if conf.HostCPUs > 0 {
		return conf.HostCPUs, nil
	}
	n, err := proctree.HostCPUs(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errdefs.ErrIO, err)
	}
	return n, nil
}
