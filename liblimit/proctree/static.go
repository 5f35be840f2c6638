package proctree

import "context"

// StaticTable 是固定的进程表，键为 PID，值为父进程 PID
type StaticTable map[int32]int32

func (s StaticTable) Processes(ctx context.Context) ([]Process, error) {
	out := make([]Process, 0, len(s))
	for pid, ppid := range s {
		out = append(out, Process{Pid: pid, Ppid: ppid})
	}
	return out, nil
}

func (s StaticTable) Exists(ctx context.Context, pid int32) (bool, error) {
	_, ok := s[pid]
	return ok, nil
}
