package liblimit

import (
	"m-cpulimit/liblimit/cgroup"
	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/ownership"
)

// State 是一次限制请求所处的阶段
type State int

const (
	StateValidating State = iota
	StateRootReady
	StateNodeReady
	StateOwnershipSynced
	StateQuotaWritten
	StateTasksAttached
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateRootReady:
		return "root-ready"
	case StateNodeReady:
		return "node-ready"
	case StateOwnershipSynced:
		return "ownership-synced"
	case StateQuotaWritten:
		return "quota-written"
	case StateTasksAttached:
		return "tasks-attached"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// AttachFailure 记录一个无法加入（或无法发送信号）的子孙进程
type AttachFailure struct {
	Pid int
	Err error
}

// Result 是一次限制请求的结果
type Result struct {
	State State

	// 失败前到达的最后一个阶段
	FailedIn State
	Err      error

	Enforcer string
	Target   config.LimitTarget

	Node   *cgroup.Node
	Quota  uint64
	Period uint64

	// 已经加入 cgroup（或被信号控制）的进程
	Attached       []int
	AttachFailures []AttachFailure

	Ownership *ownership.Report
}

// PartialAttachFailure 判断是否有子孙进程没能加入
func (r *Result) PartialAttachFailure() bool {
	return len(r.AttachFailures) > 0
}

// PartialOwnershipFailure 判断是否有条目没能修改属主
func (r *Result) PartialOwnershipFailure() bool {
	return r.Ownership != nil && r.Ownership.Partial()
}

// FailedPids 返回没能加入的子孙进程
func (r *Result) FailedPids() []int {
	pids := make([]int, 0, len(r.AttachFailures))
	for _, f := range r.AttachFailures {
		pids = append(pids, f.Pid)
	}
	return pids
}
