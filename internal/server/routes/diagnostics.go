package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/ucdata/internal/cache"
	"github.com/any-hub/ucdata/internal/server"
	"github.com/any-hub/ucdata/internal/ucd"
)

// RegisterDiagnosticsRoutes 暴露 /-/cache 与 /-/files 诊断接口，便于查看索引内容与可用文件。
func RegisterDiagnosticsRoutes(app *fiber.App, store *cache.Store, files server.FileSource) {
	if app == nil || store == nil || files == nil {
		return
	}

	app.Get("/-/cache", func(c fiber.Ctx) error {
		idx, err := store.Load()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "index_unavailable"})
		}
		return c.JSON(fiber.Map{
			"root":    store.Root(),
			"entries": encodeEntries(idx),
		})
	})

	app.Get("/-/files", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"files": encodeFiles(ucd.Files(), files),
		})
	})
}

type entryPayload struct {
	URL          string `json:"url"`
	File         string `json:"file"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// encodeEntries 按 URL 排序输出索引条目，保证诊断结果稳定。
func encodeEntries(idx *cache.Index) []entryPayload {
	snapshot := idx.Snapshot()
	result := make([]entryPayload, 0, len(snapshot))
	for _, url := range idx.URLs() {
		entry, ok := snapshot[url]
		if !ok {
			continue
		}
		result = append(result, entryPayload{
			URL:          url,
			File:         entry.File,
			ETag:         entry.ETag(),
			LastModified: entry.Header("last-modified"),
		})
	}
	return result
}

type filePayload struct {
	ucd.File
	Source string `json:"source"`
}

func encodeFiles(catalog []ucd.File, files server.FileSource) []filePayload {
	result := make([]filePayload, len(catalog))
	for i, f := range catalog {
		result[i] = filePayload{File: f, Source: files.Source(f)}
	}
	return result
}
