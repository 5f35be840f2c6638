package cgroup

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"m-cpulimit/liblimit/config"
	"m-cpulimit/liblimit/errdefs"

	log "github.com/sirupsen/logrus"
)

// 根目录和节点目录的权限，所有人可遍历，只有属主可写
const dirPermissions = 0755

// RootState 是调用 EnsureRoot 时根目录的状态
type RootState int

const (
	// 根目录不存在，本次调用创建了它
	RootAbsent RootState = iota
	// 根目录已存在，下面没有节点
	RootPresentEmpty
	// 根目录已存在，下面已有节点
	RootPresentPopulated
)

func (s RootState) String() string {
	switch s {
	case RootAbsent:
		return "absent"
	case RootPresentEmpty:
		return "present-empty"
	case RootPresentPopulated:
		return "present-populated"
	}
	return "unknown"
}

// Root 是 cgroup 层级的根目录
type Root struct {
	Path  string
	State RootState
}

// Node 是根目录下为某个目标创建的 cgroup
type Node struct {
	Name string
	Path string
	Root *Root

	// 是否由本次调用创建
	Created bool
}

// NodeInfo 是节点当前的资源限制和进程列表
type NodeInfo struct {
	*Node
	Resources *config.Resources
	Tasks     []int
}

// Entry 是根目录下的一个文件或目录
type Entry struct {
	Path  string
	IsDir bool
}

// Store 管理 cgroup 根目录及其下的节点
type Store struct {
	rootPath string
	layout   Layout
}

func NewStore(rootPath string, layout Layout) *Store {
	return &Store{
		rootPath: path.Clean(rootPath),
		layout:   layout,
	}
}

func (s *Store) RootPath() string {
	return s.rootPath
}

func (s *Store) Layout() Layout {
	return s.layout
}

// EnsureRoot 在根目录不存在时创建它，已存在时视为成功
// 多个调用同时创建时先到者创建，其余的走已存在分支
func (s *Store) EnsureRoot() (*Root, error) {
	root := &Root{Path: s.rootPath, State: RootAbsent}

	err := os.Mkdir(s.rootPath, dirPermissions)
	switch {
	case err == nil:
		log.Debugf("create cgroup root %s", s.rootPath)
	case errors.Is(err, fs.ErrExist):
		fi, err := os.Stat(s.rootPath)
		if err != nil {
			return nil, errdefs.Path("stat", s.rootPath, err)
		}
		if !fi.IsDir() {
			return nil, &errdefs.PathError{Op: "ensure root", Path: s.rootPath, Kind: errdefs.ErrNotDirectory}
		}
		populated, err := hasSubdirs(s.rootPath)
		if err != nil {
			return nil, err
		}
		root.State = RootPresentEmpty
		if populated {
			root.State = RootPresentPopulated
		}
	default:
		return nil, errdefs.Path("create cgroup root", s.rootPath, err)
	}

	if err := s.layout.PrepareRoot(s.rootPath); err != nil {
		return nil, err
	}
	return root, nil
}

// Root 返回已存在的根目录，不会创建它
func (s *Store) Root() (*Root, error) {
	fi, err := os.Stat(s.rootPath)
	if err != nil {
		return nil, errdefs.Path("stat", s.rootPath, err)
	}
	if !fi.IsDir() {
		return nil, &errdefs.PathError{Op: "open root", Path: s.rootPath, Kind: errdefs.ErrNotDirectory}
	}
	populated, err := hasSubdirs(s.rootPath)
	if err != nil {
		return nil, err
	}
	root := &Root{Path: s.rootPath, State: RootPresentEmpty}
	if populated {
		root.State = RootPresentPopulated
	}
	return root, nil
}

func hasSubdirs(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, errdefs.Path("read dir", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return true, nil
		}
	}
	return false, nil
}

func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsRune(name, '/')
}

// EnsureNode 在根目录下创建名为 name 的节点，已存在时原样返回
func (s *Store) EnsureNode(root *Root, name string) (*Node, error) {
	if !validName(name) {
		return nil, &errdefs.PathError{Op: "ensure node", Path: name, Kind: errdefs.ErrInvalidName}
	}
	node := &Node{Name: name, Path: path.Join(root.Path, name), Root: root, Created: true}

	err := os.Mkdir(node.Path, dirPermissions)
	if err == nil {
		log.Debugf("create cgroup node %s", node.Path)
		return node, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, errdefs.Path("create cgroup node", node.Path, err)
	}

	// 节点已存在，复用它，不改动已有的限制
	fi, err := os.Stat(node.Path)
	if err != nil {
		return nil, errdefs.Path("stat", node.Path, err)
	}
	if !fi.IsDir() {
		return nil, &errdefs.PathError{Op: "ensure node", Path: node.Path, Kind: errdefs.ErrNotDirectory}
	}
	node.Created = false
	return node, nil
}

// Lookup 返回已存在的节点
func (s *Store) Lookup(root *Root, name string) (*Node, error) {
	if !validName(name) {
		return nil, &errdefs.PathError{Op: "lookup node", Path: name, Kind: errdefs.ErrInvalidName}
	}
	p := path.Join(root.Path, name)
	fi, err := os.Stat(p)
	if err != nil {
		return nil, errdefs.Path("lookup node", p, err)
	}
	if !fi.IsDir() {
		return nil, &errdefs.PathError{Op: "lookup node", Path: p, Kind: errdefs.ErrNotDirectory}
	}
	return &Node{Name: name, Path: p, Root: root}, nil
}

// Nodes 列出根目录下的所有节点，按名称排序
func (s *Store) Nodes(root *Root) ([]*Node, error) {
	entries, err := os.ReadDir(root.Path)
	if err != nil {
		return nil, errdefs.Path("read dir", root.Path, err)
	}
	var nodes []*Node
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		nodes = append(nodes, &Node{Name: entry.Name(), Path: path.Join(root.Path, entry.Name()), Root: root})
	}
	return nodes, nil
}

// Inspect 读取节点当前的资源限制和进程列表
func (s *Store) Inspect(node *Node) (*NodeInfo, error) {
	res, err := s.layout.Stat(node.Path)
	if err != nil {
		return nil, err
	}
	tasks, err := s.layout.Tasks(node.Path)
	if err != nil {
		return nil, err
	}
	return &NodeInfo{Node: node, Resources: res, Tasks: tasks}, nil
}

// RemoveNode 删除节点，节点中仍有进程时内核会拒绝
func (s *Store) RemoveNode(node *Node) error {
	if err := os.Remove(node.Path); err != nil {
		return errdefs.Path("remove cgroup node", node.Path, err)
	}
	log.Debugf("remove cgroup node %s", node.Path)
	return nil
}

// ListEntries 遍历根目录下的所有文件和目录（包括根目录自身），每次调用都重新遍历
// 遍历过程中消失的条目被跳过
func (s *Store) ListEntries(root *Root, fn func(Entry) error) error {
	return filepath.WalkDir(root.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p != root.Path && errdefs.IsNotExist(err) {
				log.Debugf("%s vanished while listing, skip", p)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			return errdefs.Path("walk", p, err)
		}
		return fn(Entry{Path: p, IsDir: d.IsDir()})
	})
}
