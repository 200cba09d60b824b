package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/ucdata/internal/fetch"
	"github.com/any-hub/ucdata/internal/ucd"
)

// FileSource describes the component that resolves catalog names to file
// content. It allows injecting fake sources during tests.
type FileSource interface {
	Source(f ucd.File) string
	Open(ctx context.Context, name string) (ucd.File, io.ReadCloser, error)
	Rows(ctx context.Context, name string) (ucd.File, [][]string, error)
	Values(ctx context.Context, name string) (ucd.File, []ucd.ValueRanges, error)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Files      FileSource
	ListenPort int
}

const contextKeyRequestID = "_ucdata_request_id"

// NewApp builds a Fiber application serving /ucd/:name content routes with
// request IDs, panic recovery and JSON error bodies.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Files == nil {
		return nil, errors.New("file source is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	h := &fileHandler{files: opts.Files, logger: opts.Logger}
	app.Get("/ucd/:name", h.stream)
	app.Get("/ucd/:name/rows", h.rows)
	app.Get("/ucd/:name/values", h.values)

	return app, nil
}

// RegisterFallback 为未匹配的路径返回 JSON 404，需在所有路由注册完成后调用。
func RegisterFallback(app *fiber.App) {
	app.Use(func(c fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "route_not_found"})
	})
}

// requestIDMiddleware 为每个请求生成 ID 并写入响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

type fileHandler struct {
	files  FileSource
	logger *logrus.Logger
}

func (h *fileHandler) stream(c fiber.Ctx) error {
	name := c.Params("name")
	file, rc, err := h.files.Open(requestContext(c), name)
	if err != nil {
		return h.writeError(c, name, err)
	}

	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	c.Set("X-Ucdata-Source", h.files.Source(file))
	h.logServed(c, name, "stream")
	return c.SendStream(rc)
}

func (h *fileHandler) rows(c fiber.Ctx) error {
	name := c.Params("name")
	file, rows, err := h.files.Rows(requestContext(c), name)
	if err != nil {
		return h.writeError(c, name, err)
	}
	h.logServed(c, name, "rows")
	return c.JSON(fiber.Map{
		"name":   file.Name,
		"source": h.files.Source(file),
		"rows":   rows,
	})
}

func (h *fileHandler) values(c fiber.Ctx) error {
	name := c.Params("name")
	file, values, err := h.files.Values(requestContext(c), name)
	if err != nil {
		return h.writeError(c, name, err)
	}
	h.logServed(c, name, "values")
	return c.JSON(fiber.Map{
		"name":   file.Name,
		"source": h.files.Source(file),
		"values": values,
	})
}

// writeError 将 fetch/ucd 错误映射为 HTTP 状态码与稳定的错误码。
func (h *fileHandler) writeError(c fiber.Ctx, name string, err error) error {
	status := fiber.StatusBadGateway
	payload := fiber.Map{"error": "upstream_failed"}

	var statusErr *fetch.StatusError
	switch {
	case errors.Is(err, ucd.ErrUnknownFile):
		status = fiber.StatusNotFound
		payload["error"] = "file_not_found"
	case errors.Is(err, ucd.ErrNoValues):
		status = fiber.StatusBadRequest
		payload["error"] = "values_unsupported"
	case errors.As(err, &statusErr):
		payload["upstream_status"] = statusErr.StatusCode
	}

	fields := logrus.Fields{
		"action":     "serve_file",
		"name":       name,
		"status":     status,
		"request_id": RequestID(c),
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithFields(fields).WithError(err).Error("serve_failed")
	} else {
		h.logger.WithFields(fields).WithError(err).Warn("serve_rejected")
	}
	return c.Status(status).JSON(payload)
}

func (h *fileHandler) logServed(c fiber.Ctx, name, view string) {
	h.logger.WithFields(logrus.Fields{
		"action":     "serve_file",
		"name":       name,
		"view":       view,
		"request_id": RequestID(c),
	}).Debug("served")
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
