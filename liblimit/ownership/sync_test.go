package ownership

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"m-cpulimit/liblimit/cgroup"
	v2 "m-cpulimit/liblimit/cgroup/v2"
	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/constant"
	"m-cpulimit/liblimit/errdefs"
)

// 一个根目录，两个节点，每个节点一个 cpu.max
func newTree(t *testing.T) (*cgroup.Store, *cgroup.Root) {
	t.Helper()
	store := cgroup.NewStore(filepath.Join(t.TempDir(), "root"), v2.NewLayout())
	root, err := store.EnsureRoot()
	require.NoError(t, err)
	for _, name := range []string{"pid-1", "pid-2"} {
		node, err := store.EnsureNode(root, name)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(node.Path, constant.CpuMax), nil, 0644))
		require.NoError(t, store.Layout().Set(node.Path, &config.Resources{CpuQuota: 1000, CpuPeriod: 100000}))
	}
	return store, root
}

// 一个所有条目都需要 chown 的 policy，chown 由测试替换
func foreignPolicy() Policy {
	return Policy{UID: os.Geteuid() + 1, GID: os.Getegid() + 1}
}

func TestSyncAlreadyOwned(t *testing.T) {
	store, root := newTree(t)
	s := NewSyncer(store)
	s.chown = func(string, int, int) error {
		t.Fatal("chown should not be called for entries already owned")
		return nil
	}

	report, err := s.Sync(root, Policy{UID: os.Geteuid(), GID: os.Getegid()})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Succeeded)
	assert.Empty(t, report.Skipped)
	assert.False(t, report.Partial())
}

func TestSyncImmutableEntry(t *testing.T) {
	store, root := newTree(t)
	immutable := filepath.Join(root.Path, "pid-1", "cpu.max")

	var chowned []string
	s := NewSyncer(store)
	s.chown = func(path string, uid, gid int) error {
		if path == immutable {
			return unix.EPERM
		}
		chowned = append(chowned, path)
		return nil
	}

	report, err := s.Sync(root, foreignPolicy())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Succeeded)
	require.Len(t, report.Failed, 1)
	assert.True(t, report.Partial())

	f, ok := report.Lookup(immutable)
	require.True(t, ok)
	assert.ErrorIs(t, f.Err, errdefs.ErrPermissionDenied)
	assert.ErrorIs(t, f.Err, unix.EPERM)
	// 兄弟节点继续同步
	assert.Contains(t, chowned, filepath.Join(root.Path, "pid-2", "cpu.max"))
}

func TestSyncVanishedEntry(t *testing.T) {
	store, root := newTree(t)
	vanished := filepath.Join(root.Path, "pid-2", "cpu.max")

	s := NewSyncer(store, WithChown(func(path string, uid, gid int) error {
		if path == vanished {
			return unix.ENOENT
		}
		return nil
	}))

	report, err := s.Sync(root, foreignPolicy())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, []string{vanished}, report.Skipped)
	assert.Empty(t, report.Failed)
}

func TestSyncRootFailureIsFatal(t *testing.T) {
	store, root := newTree(t)

	var calls int
	s := NewSyncer(store)
	s.chown = func(path string, uid, gid int) error {
		calls++
		if path == root.Path {
			return unix.EPERM
		}
		return nil
	}

	_, err := s.Sync(root, foreignPolicy())
	assert.ErrorIs(t, err, errdefs.ErrPermissionDenied)
	// 根目录最先被处理，失败后不再继续
	assert.Equal(t, 1, calls)

	var pathErr *errdefs.PathError
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, root.Path, pathErr.Path)
}

func TestSyncRootFailureWithIOErrorIsPermissionDenied(t *testing.T) {
	store, root := newTree(t)

	s := NewSyncer(store)
	s.chown = func(path string, uid, gid int) error {
		if path == root.Path {
			return unix.EIO
		}
		return nil
	}

	_, err := s.Sync(root, foreignPolicy())
	assert.ErrorIs(t, err, errdefs.ErrPermissionDenied)
	assert.ErrorIs(t, err, unix.EIO)
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "1000:100", Policy{UID: 1000, GID: 100}.String())
}

func TestPolicyFromConfig(t *testing.T) {
	conf := config.Default()
	assert.Equal(t, Policy{UID: os.Geteuid(), GID: os.Getegid()}, PolicyFromConfig(conf))

	conf.UID, conf.GID = 1000, 100
	assert.Equal(t, Policy{UID: 1000, GID: 100}, PolicyFromConfig(conf))
}
