package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/ucdata/internal/cache"
	"github.com/any-hub/ucdata/internal/logging"
	"github.com/any-hub/ucdata/internal/version"
)

// Fetcher 负责 "查索引 → 条件请求 → 304 复用 / 200 落盘 → 返回文件流" 的完整流程。
// 相同 URL 的并发调用经 singleflight 合并为一次网络往返与一次索引变更。
type Fetcher struct {
	client *http.Client
	store  *cache.Store
	logger *logrus.Logger
	group  singleflight.Group
}

// NewFetcher 使用共享 http.Client、缓存 Store 与日志器构建 Fetcher。
// 传入的 client 会被浅拷贝并禁止跟随重定向，3xx 一律作为错误返回。
func NewFetcher(client *http.Client, store *cache.Store, logger *logrus.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = logging.Discard()
	}
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Fetcher{
		client: &c,
		store:  store,
		logger: logger,
	}
}

// Fetch 返回 rawURL 对应内容的文件流，调用方负责 Close。
//
// 共享的下载不受任何单个调用方取消的影响，只由 http.Client 的超时约束；
// ctx 取消时仅当前调用方提前返回，已开始的下载仍会完整落盘并写入索引。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(rawURL, func() (interface{}, error) {
		return f.resolve(shared, rawURL)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return f.store.Open(res.Val.(string))
	}
}

// resolve 执行一次 fetch 的状态机，返回可读的缓存相对路径。
func (f *Fetcher) resolve(ctx context.Context, rawURL string) (string, error) {
	started := time.Now()

	idx, err := f.store.Load()
	if err != nil {
		return "", err
	}

	var resp *http.Response
	if entry, ok := idx.Get(rawURL); ok {
		resp, err = f.get(ctx, rawURL, entry)
		if err != nil {
			f.logFailure(rawURL, 0, started, err)
			return "", err
		}
		if resp.StatusCode == http.StatusNotModified {
			discardBody(resp)
			if f.readable(entry.File) {
				f.logResult(rawURL, entry.File, true, resp.StatusCode, started)
				return entry.File, nil
			}
			// 索引指向的文件已被外部删除：仅在内存中丢弃条目，然后无条件重新拉取。
			f.logger.WithFields(logrus.Fields{
				"action": "self_heal",
				"url":    rawURL,
				"file":   entry.File,
			}).Warn("cached file missing, refetching")
			if err := f.store.Modify(func(idx *cache.Index) error {
				idx.Delete(rawURL)
				return nil
			}); err != nil {
				return "", err
			}
			resp = nil
		}
	}

	if resp == nil {
		resp, err = f.get(ctx, rawURL, cache.Entry{})
		if err != nil {
			f.logFailure(rawURL, 0, started, err)
			return "", err
		}
	}
	defer resp.Body.Close()

	file, err := f.record(ctx, rawURL, resp)
	if err != nil {
		f.logFailure(rawURL, resp.StatusCode, started, err)
		return "", err
	}
	f.logResult(rawURL, file, false, resp.StatusCode, started)
	return file, nil
}

// record 处理一次非 304 响应：2xx 时完整落盘、更新索引并持久化，否则返回 StatusError。
func (f *Fetcher) record(ctx context.Context, rawURL string, resp *http.Response) (string, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newStatusError(rawURL, resp)
	}

	staged, err := f.store.Stage(ctx, resp.Body)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer staged.Discard()

	headers := cache.CaptureHeaders(resp.Header)
	var file string
	err = f.store.Update(func(idx *cache.Index) error {
		if existing, ok := idx.Get(rawURL); ok && cache.ValidFile(existing.File) {
			file = existing.File
		} else {
			allocated, err := cache.AllocatePath(idx.Snapshot(), rawURL)
			if err != nil {
				return err
			}
			file = allocated
		}
		if err := staged.Commit(file); err != nil {
			return fmt.Errorf("store %s: %w", rawURL, err)
		}
		idx.Set(rawURL, cache.Entry{Headers: headers, File: file})
		return nil
	})
	if err != nil {
		if errors.Is(err, cache.ErrPersist) {
			f.logger.WithError(err).WithFields(logrus.Fields{
				"action": "index_persist",
				"url":    rawURL,
				"file":   file,
			}).Error("cache index not persisted, downloaded file is untracked on disk")
		}
		return "", err
	}
	return file, nil
}

// get 发起 GET；entry 携带校验头时附加 If-None-Match / If-Modified-Since。
func (f *Fetcher) get(ctx context.Context, rawURL string, entry cache.Entry) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if etag := entry.ETag(); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if since := entry.ModifiedSince(); since != "" {
		req.Header.Set("If-Modified-Since", since)
	}
	return f.client.Do(req)
}

// readable 判断缓存文件是否存在且可读，目录视为不可读。
func (f *Fetcher) readable(file string) bool {
	fh, err := f.store.Open(file)
	if err != nil {
		return false
	}
	defer fh.Close()
	info, err := fh.Stat()
	return err == nil && !info.IsDir()
}

func discardBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func (f *Fetcher) logResult(rawURL, file string, cacheHit bool, status int, started time.Time) {
	fields := logging.FetchFields(rawURL, file, cacheHit, status)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	f.logger.WithFields(fields).Info("fetch_completed")
}

func (f *Fetcher) logFailure(rawURL string, status int, started time.Time, err error) {
	fields := logging.FetchFields(rawURL, "", false, status)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	f.logger.WithFields(fields).WithError(err).Error("fetch_failed")
}
