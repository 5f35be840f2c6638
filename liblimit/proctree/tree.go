package proctree

import (
	"context"
	"fmt"

	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/errdefs"

	"golang.org/x/exp/slices"
)

// Process 是进程表中的一项
type Process struct {
	Pid  int32
	Ppid int32
}

// Table 是宿主机进程表的抽象接口
type Table interface {
	// 返回当前进程表的快照
	Processes(ctx context.Context) ([]Process, error)

	// 判断进程是否存在
	Exists(ctx context.Context, pid int32) (bool, error)
}

// Descendants 在一次进程表快照上按层广度优先查找 pid 的所有子孙进程
// 层数超过 maxDepth 时返回 ErrIO，结果按 PID 排序
func Descendants(ctx context.Context, table Table, pid int32, maxDepth int) ([]int32, error) {
	if maxDepth <= 0 {
		maxDepth = config.DefaultMaxDepth
	}

	procs, err := table.Processes(ctx)
	if err != nil {
		return nil, &errdefs.ProcessError{Op: "list processes", Pid: int(pid), Kind: errdefs.ErrIO, Err: err}
	}
	children := make(map[int32][]int32)
	for _, p := range procs {
		if p.Pid == p.Ppid {
			continue
		}
		children[p.Ppid] = append(children[p.Ppid], p.Pid)
	}

	seen := map[int32]bool{pid: true}
	var out []int32
	frontier := []int32{pid}
	for depth := 0; len(frontier) > 0; depth++ {
		var next []int32
		for _, parent := range frontier {
			for _, child := range children[parent] {
				if seen[child] {
					continue
				}
				seen[child] = true
				next = append(next, child)
			}
		}
		if len(next) > 0 && depth >= maxDepth {
			return nil, &errdefs.ProcessError{
				Op:   "walk process tree",
				Pid:  int(pid),
				Kind: errdefs.ErrIO,
				Err:  fmt.Errorf("deeper than %d levels", maxDepth),
			}
		}
		out = append(out, next...)
		frontier = next
	}

	slices.Sort(out)
	return out, nil
}
