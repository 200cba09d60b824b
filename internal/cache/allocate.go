package cache

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

// cacheTreeDir 是缓存正文所在的顶层目录。
const cacheTreeDir = "cache"

// newToken 生成冲突时拼接在文件名前的短十六进制串，测试中可替换。
var newToken = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// AllocatePath 为 rawURL 推导缓存相对路径 cache/<host>/<path>。
//
// 冲突只针对 snapshot 中已有的 file 值做大小写不敏感比较，从不检查真实文件系统。
// 冲突时在文件名前拼接随机十六进制串并重试，因此同一 URL 在不同运行中可能得到
// 不同结果：分配结果不是内容寻址标识，调用方不能假设其跨运行稳定。
func AllocatePath(snapshot map[string]Entry, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	rel := strings.TrimPrefix(path.Clean("/"+parsed.Path), "/")
	if rel == "" {
		rel = "root"
	}
	candidate := path.Join(cacheTreeDir, host, rel)

	taken := make(map[string]struct{}, len(snapshot))
	for _, entry := range snapshot {
		taken[strings.ToUpper(entry.File)] = struct{}{}
	}

	dir, base := path.Split(candidate)
	file := candidate
	for {
		if _, exists := taken[strings.ToUpper(file)]; !exists {
			return file, nil
		}
		file = dir + newToken() + base
	}
}
