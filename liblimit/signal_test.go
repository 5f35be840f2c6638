package liblimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/errdefs"
	"m-cpulimit/liblimit/proctree"
)

type sentSignal struct {
	pid int
	sig unix.Signal
}

// signalRecorder 代替 unix.Kill，记录发送的信号
type signalRecorder struct {
	sent   []sentSignal
	fail   map[int]error
	onStop func(pid int)
}

func (r *signalRecorder) kill(pid int, sig unix.Signal) error {
	if err, ok := r.fail[pid]; ok {
		return err
	}
	r.sent = append(r.sent, sentSignal{pid: pid, sig: sig})
	if sig == unix.SIGSTOP && r.onStop != nil {
		r.onStop(pid)
	}
	return nil
}

func (r *signalRecorder) count(pid int, sig unix.Signal) int {
	var n int
	for _, s := range r.sent {
		if s.pid == pid && s.sig == sig {
			n++
		}
	}
	return n
}

// last 返回最后一次发给 pid 的信号
func (r *signalRecorder) last(pid int) unix.Signal {
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].pid == pid {
			return r.sent[i].sig
		}
	}
	return 0
}

// index 返回第 nth 次（从 1 开始）发给 pid 的 sig 在记录中的位置
func (r *signalRecorder) index(pid int, sig unix.Signal, nth int) int {
	for i, s := range r.sent {
		if s.pid == pid && s.sig == sig {
			nth--
			if nth == 0 {
				return i
			}
		}
	}
	return -1
}

func newTestSignalEnforcer(t *testing.T, table proctree.Table, rec *signalRecorder) *SignalEnforcer {
	t.Helper()
	conf := testConfig(t)
	conf.Enforcer = config.EnforcerSignal
	conf.Period = config.MinPeriod
	e := NewSignalEnforcer(conf, table)
	e.kill = rec.kill
	return e
}

func copyTable(src proctree.StaticTable) proctree.StaticTable {
	dst := make(proctree.StaticTable, len(src))
	for pid, ppid := range src {
		dst[pid] = ppid
	}
	return dst
}

func TestSignalNoThrottleAtFullCPU(t *testing.T) {
	rec := &signalRecorder{}
	e := newTestSignalEnforcer(t, testTable, rec)

	res, err := e.Enforce(context.Background(), config.LimitTarget{Pid: 100, Percent: 100, IncludeChildren: true})
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, config.EnforcerSignal, res.Enforcer)
	assert.Equal(t, []int{100}, res.Attached)
	assert.Empty(t, rec.sent)
}

func TestSignalDutyCycleUntilCancelled(t *testing.T) {
	rec := &signalRecorder{}
	e := newTestSignalEnforcer(t, testTable, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res, err := e.Enforce(ctx, config.LimitTarget{Pid: 100, Percent: 50, IncludeChildren: true})
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, uint64(500), res.Quota)
	assert.Equal(t, uint64(1000), res.Period)
	assert.Equal(t, []int{100, 101, 102, 103}, res.Attached)

	for _, pid := range []int{100, 101, 102, 103} {
		assert.Positive(t, rec.count(pid, unix.SIGSTOP), "pid %d", pid)
		// 退出前所有进程都被恢复
		assert.Equal(t, unix.SIGCONT, rec.last(pid), "pid %d", pid)
	}
	assert.Zero(t, rec.count(200, unix.SIGSTOP))
}

func TestSignalStopsWhenTargetExits(t *testing.T) {
	table := copyTable(testTable)
	rec := &signalRecorder{}
	rec.onStop = func(pid int) {
		// 第一次暂停后目标进程退出
		if pid == 100 {
			delete(table, 100)
		}
	}
	e := newTestSignalEnforcer(t, table, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := e.Enforce(ctx, config.LimitTarget{Pid: 100, Percent: 25})
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, 1, rec.count(100, unix.SIGSTOP))
	assert.Equal(t, unix.SIGCONT, rec.last(100))
}

func TestSignalResumesProcessLeavingGroup(t *testing.T) {
	table := copyTable(testTable)
	rec := &signalRecorder{}
	var targetStops int
	rec.onStop = func(pid int) {
		switch pid {
		case 103:
			// 101 退出，103 被 init 收养
			delete(table, 101)
			table[103] = 1
		case 100:
			// 第二次暂停后目标进程退出
			targetStops++
			if targetStops == 2 {
				delete(table, 100)
			}
		}
	}
	e := newTestSignalEnforcer(t, table, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := e.Enforce(ctx, config.LimitTarget{Pid: 100, Percent: 50, IncludeChildren: true})
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.NoError(t, ctx.Err())
	assert.Equal(t, []int{100, 102}, res.Attached)

	assert.Equal(t, 1, rec.count(103, unix.SIGSTOP))
	assert.Equal(t, unix.SIGCONT, rec.last(103))
	// 103 在下一个周期开始时就被恢复，而不是等到退出
	resumed := rec.index(103, unix.SIGCONT, 2)
	require.NotEqual(t, -1, resumed)
	assert.Less(t, resumed, rec.index(100, unix.SIGSTOP, 2))
}

func TestSignalChildFailureRecordedOnce(t *testing.T) {
	rec := &signalRecorder{fail: map[int]error{102: unix.ESRCH}}
	e := newTestSignalEnforcer(t, testTable, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res, err := e.Enforce(ctx, config.LimitTarget{Pid: 100, Percent: 50, IncludeChildren: true})
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []int{102}, res.FailedPids())
	assert.ErrorIs(t, res.AttachFailures[0].Err, errdefs.ErrNoSuchProcess)
}

func TestSignalTargetPermissionDenied(t *testing.T) {
	rec := &signalRecorder{fail: map[int]error{100: unix.EPERM}}
	e := newTestSignalEnforcer(t, testTable, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := e.Enforce(ctx, config.LimitTarget{Pid: 100, Percent: 50})
	assert.ErrorIs(t, err, errdefs.ErrPermissionDenied)
	assert.Equal(t, StateFailed, res.State)
}

func TestSignalRejectsInvalidTarget(t *testing.T) {
	rec := &signalRecorder{}
	e := newTestSignalEnforcer(t, testTable, rec)

	_, err := e.Enforce(context.Background(), config.LimitTarget{Pid: 999, Percent: 50})
	assert.ErrorIs(t, err, errdefs.ErrNoSuchProcess)

	_, err = e.Enforce(context.Background(), config.LimitTarget{Pid: 100, Percent: 0})
	assert.ErrorIs(t, err, errdefs.ErrInvalidLimit)
	assert.Empty(t, rec.sent)
}
