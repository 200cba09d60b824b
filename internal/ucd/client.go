package ucd

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUnknownFile 表示名称不在目录中。
	ErrUnknownFile = errors.New("unknown ucd file")
	// ErrNoValues 表示该文件不是 "码点 ; 属性值" 形式，无法解码为 Values。
	ErrNoValues = errors.New("ucd file has no code point values")
)

// Fetcher 返回 URL 内容的字节流；通常由带缓存的 fetch.Fetcher 实现。
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Client 将目录名称解析为数据源 URL 并通过 Fetcher 读取。
type Client struct {
	fetcher Fetcher
	root    string
}

// NewClient 以 root（<BaseURL>/<version>/ucd）为数据源根构建 Client。
func NewClient(fetcher Fetcher, root string) *Client {
	return &Client{fetcher: fetcher, root: root}
}

// Source 返回目录项的完整 URL。
func (c *Client) Source(f File) string {
	return SourceURL(c.root, f)
}

// Open 返回名称对应文件的原始字节流。
func (c *Client) Open(ctx context.Context, name string) (File, io.ReadCloser, error) {
	f, ok := Lookup(name)
	if !ok {
		return File{}, nil, fmt.Errorf("%w: %s", ErrUnknownFile, name)
	}
	rc, err := c.fetcher.Fetch(ctx, c.Source(f))
	if err != nil {
		return f, nil, err
	}
	return f, rc, nil
}

// Rows 读取并解码名称对应文件的全部记录。
func (c *Client) Rows(ctx context.Context, name string) (File, [][]string, error) {
	f, rc, err := c.Open(ctx, name)
	if err != nil {
		return f, nil, err
	}
	defer rc.Close()

	rows, err := DecodeRows(rc)
	if err != nil {
		return f, nil, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	return f, rows, nil
}

// Values 读取名称对应文件并汇总每个属性值的码点区间。
func (c *Client) Values(ctx context.Context, name string) (File, []ValueRanges, error) {
	f, ok := Lookup(name)
	if !ok {
		return File{}, nil, fmt.Errorf("%w: %s", ErrUnknownFile, name)
	}
	if !f.HasValues() {
		return f, nil, fmt.Errorf("%w: %s", ErrNoValues, name)
	}

	_, rows, err := c.Rows(ctx, name)
	if err != nil {
		return f, nil, err
	}
	values, err := DecodeValues(rows)
	if err != nil {
		return f, nil, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	return f, values, nil
}
