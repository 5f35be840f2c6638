package errdefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.Equal(t, ErrPermissionDenied, Classify(unix.EACCES))
	assert.Equal(t, ErrPermissionDenied, Classify(&os.PathError{Op: "mkdir", Path: "/x", Err: unix.EPERM}))
	assert.Equal(t, ErrNoSuchProcess, Classify(fmt.Errorf("write: %w", unix.ESRCH)))
	assert.Equal(t, ErrNotDirectory, Classify(unix.ENOTDIR))
	assert.Equal(t, ErrIO, Classify(unix.EIO))
	assert.Equal(t, ErrIO, Classify(errors.New("boom")))
}

func TestPathError(t *testing.T) {
	err := Path("write", "/sys/fs/cgroup/x/cgroup.procs", &os.PathError{Op: "write", Path: "cgroup.procs", Err: unix.ESRCH})
	assert.ErrorIs(t, err, ErrNoSuchProcess)
	assert.ErrorIs(t, err, unix.ESRCH)
	assert.Contains(t, err.Error(), "/sys/fs/cgroup/x/cgroup.procs")

	var pathErr *PathError
	assert.ErrorAs(t, fmt.Errorf("attach: %w", err), &pathErr)
	assert.Equal(t, "write", pathErr.Op)

	assert.Nil(t, Path("write", "/x", nil))

	bare := &PathError{Op: "ensure root", Path: "/x", Kind: ErrNotDirectory}
	assert.ErrorIs(t, bare, ErrNotDirectory)
	assert.Equal(t, "ensure root /x: exists but is not a directory", bare.Error())
}

func TestProcessError(t *testing.T) {
	err := &ProcessError{Op: "validate", Pid: 42, Kind: ErrNoSuchProcess}
	assert.ErrorIs(t, err, ErrNoSuchProcess)
	assert.Equal(t, "validate pid 42: no such process", err.Error())

	wrapped := Process("kill", 7, unix.EPERM)
	assert.ErrorIs(t, wrapped, ErrPermissionDenied)
	assert.ErrorIs(t, wrapped, unix.EPERM)
	assert.Nil(t, Process("kill", 7, nil))
}

func TestIsNotExist(t *testing.T) {
	_, err := os.Stat(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, IsNotExist(err))
	assert.True(t, IsNotExist(Path("stat", "missing", err)))
	assert.True(t, IsNotExist(unix.ENOENT))
	assert.False(t, IsNotExist(unix.EPERM))
}
