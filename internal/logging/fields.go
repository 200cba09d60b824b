package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FetchFields 描述一次 fetch 的结果：目标 URL、本地缓存文件、是否命中 304 以及上游状态码。
func FetchFields(url, file string, cacheHit bool, status int) logrus.Fields {
	return logrus.Fields{
		"action":    "fetch",
		"url":       url,
		"file":      file,
		"cache_hit": cacheHit,
		"status":    status,
	}
}
