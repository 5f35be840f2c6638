package liblimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/errdefs"
	"m-cpulimit/liblimit/metrics"
	"m-cpulimit/liblimit/proctree"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"
)

// SignalEnforcer 在没有 cgroup 的情况下，用 SIGSTOP/SIGCONT 交替暂停和恢复进程组来近似 CPU 限制
// 每个周期内运行 period*percent/100，其余时间暂停，直到 ctx 结束或目标进程退出
type SignalEnforcer struct {
	conf  *config.Config
	table proctree.Table

	// 可替换，便于测试
	kill func(pid int, sig unix.Signal) error
}

func NewSignalEnforcer(conf *config.Config, table proctree.Table) *SignalEnforcer {
	return &SignalEnforcer{
		conf:  conf,
		table: table,
		kill:  unix.Kill,
	}
}

// Enforce 会一直阻塞，直到 ctx 结束或目标进程退出，返回前恢复所有被暂停的进程
func (e *SignalEnforcer) Enforce(ctx context.Context, target config.LimitTarget) (*Result, error) {
	res := &Result{State: StateValidating, Enforcer: config.EnforcerSignal, Target: target}

	q, period, err := validateTarget(ctx, e.conf, e.table, target)
	if err != nil {
		return failResult(res, err)
	}
	res.Quota, res.Period = q, period

	// 单个进程组最多只能用满一个周期，不需要暂停
	if q >= period {
		log.Infof("limit %.2f%% for pid %d needs no throttling", target.Percent, target.Pid)
		res.Attached = []int{target.Pid}
		res.State = StateDone
		metrics.ObserveInvocation(res.Enforcer, res.State.String())
		return res, nil
	}
	work := time.Duration(q) * time.Microsecond
	idle := time.Duration(period-q) * time.Microsecond

	t := &throttle{enforcer: e, res: res, stopped: make(map[int]bool), failed: make(map[int]bool)}
	defer t.resumeAll()

	log.Infof("throttling pid %d: run %v, stop %v", target.Pid, work, idle)
	for {
		pids, alive, err := t.group(ctx)
		if err != nil {
			return failResult(res, err)
		}
		if !alive {
			log.Infof("pid %d exited, stop throttling", target.Pid)
			break
		}
		res.Attached = pids
		t.release(pids)

		if err := t.signal(pids, unix.SIGCONT); err != nil {
			return failResult(res, err)
		}
		if !sleep(ctx, work) {
			break
		}
		if err := t.signal(pids, unix.SIGSTOP); err != nil {
			return failResult(res, err)
		}
		if !sleep(ctx, idle) {
			break
		}
	}

	res.State = StateDone
	metrics.ObserveInvocation(res.Enforcer, res.State.String())
	metrics.AddAttachFailures(len(res.AttachFailures))
	return res, nil
}

// throttle 保存一次 Enforce 过程中被暂停的进程
type throttle struct {
	enforcer *SignalEnforcer
	res      *Result
	stopped  map[int]bool
	failed   map[int]bool
}

// group 重新发现目标进程组，子进程在每个周期都会被重新查找
func (t *throttle) group(ctx context.Context) ([]int, bool, error) {
	target := t.res.Target
	alive, err := t.enforcer.table.Exists(ctx, int32(target.Pid))
	if err != nil {
		return nil, false, &errdefs.ProcessError{Op: "lookup", Pid: target.Pid, Kind: errdefs.ErrIO, Err: err}
	}
	if !alive {
		return nil, false, nil
	}

	pids := []int{target.Pid}
	if !target.IncludeChildren {
		return pids, true, nil
	}
	children, err := proctree.Descendants(ctx, t.enforcer.table, int32(target.Pid), t.enforcer.conf.MaxDepth)
	if err != nil {
		return nil, false, fmt.Errorf("discover children of pid %d: %w", target.Pid, err)
	}
	for _, child := range children {
		pids = append(pids, int(child))
	}
	return pids, true, nil
}

// signal 向进程组发送信号，子孙进程失败只记录一次，目标进程失败是致命的（已退出除外）
func (t *throttle) signal(pids []int, sig unix.Signal) error {
	for _, pid := range pids {
		err := t.enforcer.kill(pid, sig)
		if err == nil {
			if sig == unix.SIGSTOP {
				t.stopped[pid] = true
			} else {
				delete(t.stopped, pid)
			}
			continue
		}

		if pid == t.res.Target.Pid {
			// 目标进程已经退出，下一轮 group 会结束循环
			if errors.Is(err, unix.ESRCH) {
				continue
			}
			return errdefs.Process("signal", pid, err)
		}
		delete(t.stopped, pid)
		if !t.failed[pid] {
			t.failed[pid] = true
			log.Debugf("signal child pid %d: %v", pid, err)
			t.res.AttachFailures = append(t.res.AttachFailures, AttachFailure{Pid: pid, Err: errdefs.Process("signal", pid, err)})
		}
	}
	return nil
}

// release 恢复已经离开进程组的进程，例如父进程退出后被 init 收养的子孙进程
func (t *throttle) release(pids []int) {
	for pid := range t.stopped {
		if slices.Contains(pids, pid) {
			continue
		}
		log.Debugf("pid %d left the group of pid %d, resume it", pid, t.res.Target.Pid)
		t.resume(pid)
	}
}

// resumeAll 恢复所有仍处于暂停状态的进程
func (t *throttle) resumeAll() {
	pids := make([]int, 0, len(t.stopped))
	for pid := range t.stopped {
		pids = append(pids, pid)
	}
	slices.Sort(pids)
	for _, pid := range pids {
		t.resume(pid)
	}
}

func (t *throttle) resume(pid int) {
	if err := t.enforcer.kill(pid, unix.SIGCONT); err != nil && !errors.Is(err, unix.ESRCH) {
		log.Warnf("resume pid %d: %v", pid, err)
	}
	delete(t.stopped, pid)
}

// sleep 等待 d，ctx 结束时返回 false
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
