package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError(globalField("ListenPort"), "必须在 1-65535")
	}
	if strings.TrimSpace(g.StoragePath) == "" {
		return newFieldError(globalField("StoragePath"), "不能为空")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError(globalField("UpstreamTimeout"), "必须大于 0")
	}
	if g.LogMaxSize < 0 {
		return newFieldError(globalField("LogMaxSize"), "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError(globalField("LogMaxBackups"), "不能为负数")
	}
	if err := validateBaseURL(g.BaseURL); err != nil {
		return fmt.Errorf("%s: %w", globalField("BaseURL"), err)
	}
	if g.UnicodeVersion == "" {
		return newFieldError(globalField("UnicodeVersion"), "不能为空")
	}
	if strings.ContainsAny(g.UnicodeVersion, "/ ") {
		return newFieldError(globalField("UnicodeVersion"), "不允许包含斜杠或空格")
	}

	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("缺少数据源地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，数据源: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("数据源缺少 Host: %s", raw)
	}
	return nil
}
