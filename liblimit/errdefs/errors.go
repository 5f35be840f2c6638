package errdefs

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

// 错误类别，调用方通过 errors.Is 判断
var (
	// 限额百分比越界，或者换算后的 quota 为 0 / 超过主机总 CPU
	ErrInvalidLimit = errors.New("invalid limit")

	// 目标进程不存在
	ErrNoSuchProcess = errors.New("no such process")

	// 创建目录或修改属主被内核拒绝
	ErrPermissionDenied = errors.New("permission denied")

	// 路径已存在但不是目录
	ErrNotDirectory = errors.New("exists but is not a directory")

	// cgroup 节点名称非法（必须是单级路径）
	ErrInvalidName = errors.New("invalid cgroup name")

	// 其他文件系统或内核接口错误
	ErrIO = errors.New("i/o error")
)

// PathError 记录失败的操作、路径以及错误类别
type PathError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *PathError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *PathError) Unwrap() []error {
	return unwrap(e.Kind, e.Err)
}

// ProcessError 记录失败的操作、PID 以及错误类别
type ProcessError struct {
	Op   string
	Pid  int
	Kind error
	Err  error
}

func (e *ProcessError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s pid %d: %v", e.Op, e.Pid, e.Kind)
	}
	return fmt.Sprintf("%s pid %d: %v: %v", e.Op, e.Pid, e.Kind, e.Err)
}

func (e *ProcessError) Unwrap() []error {
	return unwrap(e.Kind, e.Err)
}

func unwrap(kind, err error) []error {
	if err == nil {
		return []error{kind}
	}
	return []error{kind, err}
}

// Classify 根据底层 errno 给出错误类别
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM), errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, unix.ESRCH):
		return ErrNoSuchProcess
	case errors.Is(err, unix.ENOTDIR):
		return ErrNotDirectory
	default:
		return ErrIO
	}
}

// Path 将文件系统错误包装为 PathError，类别由 Classify 决定
func Path(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Kind: Classify(err), Err: err}
}

// Process 将进程相关错误包装为 ProcessError，类别由 Classify 决定
func Process(op string, pid int, err error) error {
	if err == nil {
		return nil
	}
	return &ProcessError{Op: op, Pid: pid, Kind: Classify(err), Err: err}
}

// IsNotExist 判断错误是否表示目标已经消失
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, unix.ENOENT)
}
