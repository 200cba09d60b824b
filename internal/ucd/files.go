package ucd

import (
	"sort"
	"strings"
)

// Kind 描述 UCD 文件的内容形态，决定下游如何解释每一行。
type Kind string

const (
	KindNonBinaryValue     Kind = "non-binary-value"
	KindBinaryValue        Kind = "binary-value"
	KindPropertyAlias      Kind = "property-alias"
	KindPropertyValueAlias Kind = "property-value-alias"
)

// File 是目录中的一项：Path 相对于 <BaseURL>/<version>/ucd。
// Property/Alias 仅对 non-binary-value 文件有意义。
type File struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Kind     Kind   `json:"kind"`
	Property string `json:"property,omitempty"`
	Alias    string `json:"alias,omitempty"`
}

// HasValues 表示文件内容是 "码点区间 ; 属性值" 形式，可以解码为 Values。
func (f File) HasValues() bool {
	return f.Kind == KindBinaryValue || f.Kind == KindNonBinaryValue
}

var catalog = []File{
	{Name: "General_Category", Path: "extracted/DerivedGeneralCategory.txt", Kind: KindNonBinaryValue, Property: "General_Category", Alias: "gc"},
	{Name: "Script", Path: "Scripts.txt", Kind: KindNonBinaryValue, Property: "Script", Alias: "sc"},
	{Name: "Script_Extensions", Path: "ScriptExtensions.txt", Kind: KindNonBinaryValue, Property: "Script_Extensions", Alias: "sc"},
	{Name: "DerivedCoreProperties", Path: "DerivedCoreProperties.txt", Kind: KindBinaryValue},
	{Name: "PropList", Path: "PropList.txt", Kind: KindBinaryValue},
	{Name: "PropertyAliases", Path: "PropertyAliases.txt", Kind: KindPropertyAlias},
	{Name: "PropertyValueAliases", Path: "PropertyValueAliases.txt", Kind: KindPropertyValueAlias},
}

// Lookup 按名称查找目录项，名称大小写敏感。
func Lookup(name string) (File, bool) {
	for _, f := range catalog {
		if f.Name == name {
			return f, true
		}
	}
	return File{}, false
}

// Files 返回按名称排序的目录副本。
func Files() []File {
	files := make([]File, len(catalog))
	copy(files, catalog)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

// Names 返回排序后的全部文件名称。
func Names() []string {
	files := Files()
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}

// SourceURL 拼接 root（例如 http://www.unicode.org/Public/6.2.0/ucd）与目录项路径。
func SourceURL(root string, f File) string {
	return strings.TrimRight(root, "/") + "/" + strings.TrimLeft(f.Path, "/")
}
