// Package fetch implements the conditional fetcher: every Fetch consults the
// cache index, performs at most one revalidation round trip (plus one
// unconditional retry when a 304 points at a cached file that no longer
// exists), records fresh 2xx bodies in the cache, and always hands callers a
// file-backed stream.
package fetch
