package ownership

import (
	"fmt"
	"os"

	"m-cpulimit/liblimit/cgroup"
	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/errdefs"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/sys/unix"
)

// Policy 是被允许管理 cgroup 层级的非特权用户
type Policy struct {
	UID int
	GID int
}

// PolicyFromConfig 根据配置给出 Policy，未指定的 uid/gid 使用当前进程的有效身份
func PolicyFromConfig(conf *config.Config) Policy {
	policy := Policy{UID: conf.UID, GID: conf.GID}
	if policy.UID == config.PrincipalUnset {
		policy.UID = os.Geteuid()
	}
	if policy.GID == config.PrincipalUnset {
		policy.GID = os.Getegid()
	}
	return policy
}

func (p Policy) String() string {
	return fmt.Sprintf("%d:%d", p.UID, p.GID)
}

// Failure 记录一个无法修改属主的条目
type Failure struct {
	Path string
	Err  error
}

// Report 是一次同步的结果
type Report struct {
	Succeeded int
	// 同步过程中消失的条目
	Skipped []string
	Failed  []Failure
}

// Partial 判断是否有条目修改属主失败
func (r *Report) Partial() bool {
	return len(r.Failed) > 0
}

// Vanished 判断 path 是否在同步过程中消失
func (r *Report) Vanished(path string) bool {
	return slices.Contains(r.Skipped, path)
}

// Lookup 返回 path 对应的失败记录
func (r *Report) Lookup(path string) (Failure, bool) {
	for _, f := range r.Failed {
		if f.Path == path {
			return f, true
		}
	}
	return Failure{}, false
}

// Syncer 将根目录下所有条目的属主修改为 Policy 指定的用户
type Syncer struct {
	store *cgroup.Store

	// 可替换，便于在测试中模拟内核拒绝
	lstat func(path string, st *unix.Stat_t) error
	chown func(path string, uid, gid int) error
}

// Option 修改 Syncer 的默认行为
type Option func(*Syncer)

// WithChown 替换修改属主的系统调用
func WithChown(chown func(path string, uid, gid int) error) Option {
	return func(s *Syncer) {
		s.chown = chown
	}
}

func NewSyncer(store *cgroup.Store, opts ...Option) *Syncer {
	s := &Syncer{
		store: store,
		lstat: unix.Lstat,
		chown: unix.Lchown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync 遍历根目录并修改属主
// 中途消失的条目计入 Skipped，被拒绝的条目计入 Failed，都不会中断遍历
// 根目录自身修改失败时返回 ErrPermissionDenied
func (s *Syncer) Sync(root *cgroup.Root, policy Policy) (*Report, error) {
	report := &Report{}
	err := s.store.ListEntries(root, func(entry cgroup.Entry) error {
		err := s.syncEntry(entry.Path, policy)
		switch {
		case err == nil:
			report.Succeeded++
		case errdefs.IsNotExist(err):
			log.Debugf("%s vanished before chown, skip", entry.Path)
			report.Skipped = append(report.Skipped, entry.Path)
		case entry.Path == root.Path:
			return &errdefs.PathError{Op: "chown", Path: root.Path, Kind: errdefs.ErrPermissionDenied, Err: err}
		default:
			log.Warnf("chown %s to %s: %v", entry.Path, policy, err)
			report.Failed = append(report.Failed, Failure{Path: entry.Path, Err: errdefs.Path("chown", entry.Path, err)})
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	log.Debugf("ownership sync on %s: succeeded %d, skipped %d, failed %d",
		root.Path, report.Succeeded, len(report.Skipped), len(report.Failed))
	return report, nil
}

func (s *Syncer) syncEntry(path string, policy Policy) error {
	var st unix.Stat_t
	if err := s.lstat(path, &st); err != nil {
		return err
	}
	// 属主已经正确，不需要 chown
	if int(st.Uid) == policy.UID && int(st.Gid) == policy.GID {
		return nil
	}
	return s.chown(path, policy.UID, policy.GID)
}
