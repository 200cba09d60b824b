// Package ucd 是缓存层的下游使用方：维护 Unicode Character Database 文件目录，
// 拼接数据源地址，并把 fetch 返回的行流解码为分号分隔的记录与码点区间。
// 本包不感知缓存，只依赖 Fetcher 接口返回的 io.ReadCloser。
package ucd
