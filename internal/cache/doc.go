// Package cache owns the private cache root used by the fetcher: a JSON index
// (cache.json) mapping request URLs to captured response headers plus a
// root-relative file, and the cache/<host>/<path> tree of downloaded bodies.
// A Store is constructed once per process and injected into every component
// that fetches; it loads the index lazily, serializes every
// read-modify-write-persist sequence behind one mutex, and stages downloads in
// temporary files so an interrupted fetch never leaves a half-written entry.
package cache
