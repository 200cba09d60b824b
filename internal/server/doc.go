// Package server hosts the Fiber HTTP service that exposes fetched UCD files
// to downstream consumers, plus the shared upstream http.Client used by the
// fetcher. Handlers never touch the cache directly for content: every file is
// read through the injected FileSource, which in production is a ucd.Client
// backed by the caching fetcher. Diagnostics live under /-/ and are
// registered by the routes subpackage.
package server
