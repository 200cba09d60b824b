package fetch

import (
	"net/http"
	"strconv"
	"strings"
)

// StatusError 表示上游返回了 2xx/304 以外的状态码（包括重定向）。
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

// Error 只返回服务端给出的状态描述，例如 "Internal Server Error"。
func (e *StatusError) Error() string {
	return e.Status
}

func newStatusError(url string, resp *http.Response) *StatusError {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	if text == "" {
		text = "status " + strconv.Itoa(resp.StatusCode)
	}
	return &StatusError{URL: url, StatusCode: resp.StatusCode, Status: text}
}
