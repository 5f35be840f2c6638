package cgfile

import (
	"os"
	"strconv"
	"strings"

	"m-cpulimit/liblimit/errdefs"
)

// Write 覆盖写入控制文件
// 控制文件由内核创建，不存在说明路径不在 cgroupfs 上或 controller 没有开启
func Write(filePath, value string) error {
	return write(filePath, value, os.O_WRONLY|os.O_TRUNC)
}

// Append 以追加方式写入控制文件，cgroup.procs 每次只接受一个 PID
func Append(filePath, value string) error {
	return write(filePath, value, os.O_WRONLY|os.O_APPEND)
}

func write(filePath, value string, flag int) error {
	f, err := os.OpenFile(filePath, flag, 0)
	if err != nil {
		return errdefs.Path("open", filePath, err)
	}
	defer f.Close()

	if _, err := f.WriteString(value); err != nil {
		return errdefs.Path("write", filePath, err)
	}
	return nil
}

// Read 读取控制文件并去掉首尾空白
func Read(filePath string) (string, error) {
	b, err := os.ReadFile(filePath)
	if err != nil {
		return "", errdefs.Path("read", filePath, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// ReadPids 读取每行一个 PID 的控制文件
func ReadPids(filePath string) ([]int, error) {
	content, err := Read(filePath)
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, field := range strings.Fields(content) {
		pid, err := strconv.Atoi(field)
		if err != nil {
			return nil, errdefs.Path("parse", filePath, err)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}
