package ucd

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

var fieldSeparator = regexp.MustCompile(`\s*;\s*`)

// maxLineBytes 限制单行长度，UCD 文件的行远小于这个值。
const maxLineBytes = 1024 * 1024

// ReadRows 逐行读取 r：去掉 # 之后的注释、首尾空白，跳过空行，
// 其余行按分号（连同两侧空白）切分后交给 fn。fn 返回错误时立即停止。
func ReadRows(r io.Reader, fn func(row []string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := fn(fieldSeparator.Split(line, -1)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// DecodeRows 读取全部记录。
func DecodeRows(r io.Reader) ([][]string, error) {
	rows := [][]string{}
	err := ReadRows(r, func(row []string) error {
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
