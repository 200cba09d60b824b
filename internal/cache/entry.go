package cache

import (
	"net/http"
	"strings"
)

// Entry 记录一次成功 200 响应的头部快照与本地文件（相对缓存根目录，使用 / 分隔）。
type Entry struct {
	Headers map[string]string `json:"headers"`
	File    string            `json:"file"`
}

// Header 按小写名称读取捕获的响应头。
func (e Entry) Header(name string) string {
	if e.Headers == nil {
		return ""
	}
	return e.Headers[strings.ToLower(name)]
}

// ETag 返回用于 If-None-Match 的实体标签。
func (e Entry) ETag() string {
	return e.Header("etag")
}

// ModifiedSince 返回 If-Modified-Since 的取值：优先 Last-Modified，其次 Date。
func (e Entry) ModifiedSince() string {
	if last := e.Header("last-modified"); last != "" {
		return last
	}
	return e.Header("date")
}

func (e Entry) clone() Entry {
	headers := make(map[string]string, len(e.Headers))
	for k, v := range e.Headers {
		headers[k] = v
	}
	return Entry{Headers: headers, File: e.File}
}

// CaptureHeaders 将响应头转换为小写名称到值的映射；同名多值以 ", " 拼接。
func CaptureHeaders(header http.Header) map[string]string {
	captured := make(map[string]string, len(header))
	for key, values := range header {
		if len(values) == 0 {
			continue
		}
		captured[strings.ToLower(key)] = strings.Join(values, ", ")
	}
	return captured
}
