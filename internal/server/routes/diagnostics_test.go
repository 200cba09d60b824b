package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/ucdata/internal/cache"
	"github.com/any-hub/ucdata/internal/fetch"
	"github.com/any-hub/ucdata/internal/logging"
	"github.com/any-hub/ucdata/internal/server"
	"github.com/any-hub/ucdata/internal/ucd"
)

const scriptsBody = "0041..005A ; Latin # L& [26]\n0020 ; Common\n"

func TestCacheDiagnosticsAfterFetch(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/ucd/Script")
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(body) != scriptsBody {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, string(body))
	}

	resp = env.get(t, "/-/cache")
	var payload struct {
		Root    string         `json:"root"`
		Entries []entryPayload `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(payload.Entries) != 1 {
		t.Fatalf("expected one cache entry, got %+v", payload.Entries)
	}
	entry := payload.Entries[0]
	if !strings.HasSuffix(entry.URL, "/Public/6.2.0/ucd/Scripts.txt") {
		t.Fatalf("unexpected url %s", entry.URL)
	}
	if entry.ETag != `"scripts-v1"` {
		t.Fatalf("unexpected etag %s", entry.ETag)
	}
	if payload.Root != env.store.Root() {
		t.Fatalf("unexpected root %s", payload.Root)
	}
}

func TestRepeatedRequestsRevalidate(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		resp := env.get(t, "/ucd/Script/values")
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: unexpected status %d (%s)", i, resp.StatusCode, string(body))
		}
		if !strings.Contains(string(body), `{"value":"Latin","ranges":[[65,90]]}`) {
			t.Fatalf("request %d: unexpected body %s", i, string(body))
		}
	}

	if got := env.full.Load(); got != 1 {
		t.Fatalf("expected a single full download, got %d", got)
	}
	if got := env.notModified.Load(); got != 2 {
		t.Fatalf("expected two 304 revalidations, got %d", got)
	}
}

func TestFilesDiagnosticsListsCatalog(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/-/files")
	var payload struct {
		Files []struct {
			Name   string `json:"name"`
			Path   string `json:"path"`
			Source string `json:"source"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(payload.Files) != len(ucd.Files()) {
		t.Fatalf("expected %d files, got %d", len(ucd.Files()), len(payload.Files))
	}
	for _, f := range payload.Files {
		if !strings.HasSuffix(f.Source, "/"+f.Path) {
			t.Fatalf("source %s does not end with path %s", f.Source, f.Path)
		}
	}
}

func TestRegisterDiagnosticsRoutesIgnoresNil(t *testing.T) {
	RegisterDiagnosticsRoutes(nil, nil, nil)
}

type testEnv struct {
	app         *fiber.App
	store       *cache.Store
	full        atomic.Int32
	notModified atomic.Int32
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Public/6.2.0/ucd/Scripts.txt" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("If-None-Match") == `"scripts-v1"` {
			env.notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		env.full.Add(1)
		w.Header().Set("ETag", `"scripts-v1"`)
		w.Header().Set("Last-Modified", "Mon, 24 Sep 2012 00:00:00 GMT")
		_, _ = io.WriteString(w, scriptsBody)
	}))
	t.Cleanup(upstream.Close)

	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	env.store = store

	logger := logging.Discard()
	fetcher := fetch.NewFetcher(server.NewUpstreamClient(nil), store, logger)
	files := ucd.NewClient(fetcher, upstream.URL+"/Public/6.2.0/ucd")

	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Files:      files,
		ListenPort: 5000,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	RegisterDiagnosticsRoutes(app, store, files)
	server.RegisterFallback(app)
	env.app = app
	return env
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.app.Test(httptest.NewRequest("GET", path, nil))
	if err != nil {
		t.Fatalf("app.Test %s failed: %v", path, err)
	}
	return resp
}
