package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// IndexFileName 是缓存根目录下索引文档的文件名。
const IndexFileName = "cache.json"

// Index 是 URL → Entry 的映射，URL 按原样作为键，不做任何规范化。
// Get/Set/Delete 只修改内存，持久化由 Store 在一次 fetch 的变更结束后统一完成。
type Index struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func newIndex() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// Get 返回 url 对应条目的副本。
func (idx *Index) Get(url string) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entry, ok := idx.entries[url]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// Set 新增或覆盖 url 对应的条目。
func (idx *Index) Set(url string, entry Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[url] = entry.clone()
}

// Delete 移除 url 对应的条目，不存在时为 no-op。
func (idx *Index) Delete(url string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, url)
}

// Len 返回条目数量。
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Snapshot 返回当前全部条目的深拷贝，供路径分配与诊断接口使用。
func (idx *Index) Snapshot() map[string]Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	result := make(map[string]Entry, len(idx.entries))
	for url, entry := range idx.entries {
		result[url] = entry.clone()
	}
	return result
}

// URLs 返回排序后的全部 URL。
func (idx *Index) URLs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	urls := make([]string, 0, len(idx.entries))
	for url := range idx.entries {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// MarshalJSON 输出 {url: {headers, file}} 形式的对象。
func (idx *Index) MarshalJSON() ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return json.Marshal(idx.entries)
}

// UnmarshalJSON 解析索引文档；值为 null 的键视为不存在。
func (idx *Index) UnmarshalJSON(data []byte) error {
	var raw map[string]*Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	entries := make(map[string]Entry, len(raw))
	for url, entry := range raw {
		if entry == nil {
			continue
		}
		if entry.Headers == nil {
			entry.Headers = map[string]string{}
		}
		entries[url] = *entry
	}

	idx.mu.Lock()
	idx.entries = entries
	idx.mu.Unlock()
	return nil
}

// loadIndex 从磁盘读取索引；文件不存在时返回空索引，其它读取或解析错误原样上抛。
func loadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return newIndex(), nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	idx := newIndex()
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("parse index %s: %w", path, err)
	}
	return idx, nil
}

// save 以缩进格式写出完整索引：先写同目录临时文件再 rename，缺失的父目录会被创建。
func (idx *Index) save(path string) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-index-*")
	if err != nil {
		return fmt.Errorf("create temporary index file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temporary index file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}
