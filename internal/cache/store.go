package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrInvalidPath 表示缓存相对路径为绝对路径或试图逃逸缓存根目录。
	ErrInvalidPath = errors.New("invalid cache path")
	// ErrPersist 标记索引写盘失败：此时内存与磁盘中的索引可能已经不一致。
	ErrPersist = errors.New("persist cache index")
)

const stagingDir = ".staging"

// NewStore 以 root 为私有缓存根目录构建 Store，整个进程复用一份实例。
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &Store{
		root:      abs,
		indexPath: filepath.Join(abs, IndexFileName),
	}, nil
}

// Store 持有缓存根目录与进程内唯一的 Index。
// loadMu 只保护首次加载；mu 串行化所有 "读取 → 计算 → 写入 → 持久化" 序列。
type Store struct {
	root      string
	indexPath string

	loadMu sync.Mutex
	index  *Index

	mu sync.Mutex
}

// Root 返回缓存根目录的绝对路径。
func (s *Store) Root() string {
	return s.root
}

// IndexPath 返回索引文档的绝对路径。
func (s *Store) IndexPath() string {
	return s.indexPath
}

// Load 返回进程内唯一的 Index。首次调用时从磁盘解析，之后总是返回同一实例，
// 运行期间不会再次读取磁盘。加载失败不会被缓存，下一次调用会重试。
func (s *Store) Load() (*Index, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if s.index != nil {
		return s.index, nil
	}
	idx, err := loadIndex(s.indexPath)
	if err != nil {
		return nil, err
	}
	s.index = idx
	return idx, nil
}

// Persist 在临界区内将已加载的 Index 完整写回磁盘。
func (s *Store) Persist() error {
	idx, err := s.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(idx)
}

// persistLocked 写出索引，调用方必须持有 s.mu。
func (s *Store) persistLocked(idx *Index) error {
	if err := idx.save(s.indexPath); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// Modify 在临界区内修改内存中的 Index，但不持久化。
func (s *Store) Modify(fn func(idx *Index) error) error {
	idx, err := s.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(idx)
}

// Update 在临界区内修改 Index 并立即持久化；fn 返回错误时不会写盘。
func (s *Store) Update(fn func(idx *Index) error) error {
	idx, err := s.Load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(idx); err != nil {
		return err
	}
	return s.persistLocked(idx)
}

// Open 以只读方式打开缓存相对路径对应的文件。
func (s *Store) Open(file string) (*os.File, error) {
	abs, err := s.resolve(file)
	if err != nil {
		return nil, err
	}
	return os.Open(abs)
}

// Stage 把 body 完整写入 staging 目录下的临时文件，返回待提交的 Staged。
// 写入失败或 ctx 取消时临时文件会被删除。
func (s *Store) Stage(ctx context.Context, body io.Reader) (*Staged, error) {
	dir := filepath.Join(s.root, stagingDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	tempFile, err := os.CreateTemp(dir, "body-*")
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	return &Staged{store: s, path: tempName, Size: written}, nil
}

// Staged 是已完整落盘但尚未挂到缓存路径上的响应正文。
type Staged struct {
	store *Store
	path  string
	Size  int64
}

// Commit 将临时文件原子地移动到缓存相对路径 file，必要时创建父目录。
func (st *Staged) Commit(file string) error {
	abs, err := st.store.resolve(file)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	if err := os.Rename(st.path, abs); err != nil {
		return err
	}
	st.path = ""
	return nil
}

// Discard 删除尚未提交的临时文件；已提交时为 no-op。
func (st *Staged) Discard() {
	if st == nil || st.path == "" {
		return
	}
	_ = os.Remove(st.path)
	st.path = ""
}

// ValidFile 判断 file 是否为合法的缓存相对路径：非空、非绝对路径且不逃逸缓存根目录。
func ValidFile(file string) bool {
	_, ok := cleanRelative(file)
	return ok
}

func cleanRelative(file string) (string, bool) {
	if file == "" || path.IsAbs(file) || filepath.IsAbs(file) {
		return "", false
	}
	clean := path.Clean(file)
	if clean == ".." || strings.HasPrefix(clean, "../") || clean == "." {
		return "", false
	}
	return clean, true
}

// resolve 把以 / 分隔的缓存相对路径转换为绝对路径，拒绝绝对路径与 .. 逃逸。
func (s *Store) resolve(file string) (string, error) {
	clean, ok := cleanRelative(file)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, file)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
