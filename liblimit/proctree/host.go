package proctree

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
	log "github.com/sirupsen/logrus"
)

// HostTable 通过 /proc 读取宿主机的进程表
type HostTable struct {
}

func NewHostTable() *HostTable {
	return &HostTable{}
}

func (h *HostTable) Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		ppid, err := p.PpidWithContext(ctx)
		if err != nil {
			// 进程在列出之后退出了
			log.Debugf("read ppid of %d: %v, skip", p.Pid, err)
			continue
		}
		out = append(out, Process{Pid: p.Pid, Ppid: ppid})
	}
	return out, nil
}

func (h *HostTable) Exists(ctx context.Context, pid int32) (bool, error) {
	return process.PidExistsWithContext(ctx, pid)
}

// HostCPUs 返回宿主机的逻辑 CPU 数量
func HostCPUs(ctx context.Context) (int, error) {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("count cpus: %w", err)
	}
	if n < 1 {
		return 0, fmt.Errorf("count cpus: got %d", n)
	}
	return n, nil
}
