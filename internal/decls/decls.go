// Package decls turns the declaration dump produced by Lean into a map from
// declaration names to where they are defined.
package decls

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// OriginCore marks declarations of the Lean core library.
const OriginCore = "core"

// DeclInfo locates one declaration.
type DeclInfo struct {
	// Origin is "core", the name of a dependency, or the project name.
	Origin string `json:"origin"`
	// Path is relative to the source directory of Origin.
	Path string `json:"path"`
	Line int    `json:"line"`
}

// Layout is what ParseYAML needs to know about the project.
type Layout struct {
	Name   string
	Dir    string
	SrcDir string
}

type rawDecl struct {
	File *string `yaml:"File"`
	Line *int    `yaml:"Line"`
}

// ParseYAML reads a `name: {File, Line}` mapping. Entries without a file or
// line are dropped.
func ParseYAML(data []byte, layout Layout) (map[string]DeclInfo, error) {
	var raw map[string]rawDecl
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse declaration dump: %w", err)
	}

	out := make(map[string]DeclInfo, len(raw))
	for name, val := range raw {
		if val.File == nil || *val.File == "" || val.Line == nil {
			continue
		}
		origin, path, err := locate(*val.File, layout)
		if err != nil {
			return nil, fmt.Errorf("declaration %s: %w", name, err)
		}
		out[name] = DeclInfo{Origin: origin, Path: path, Line: *val.Line}
	}
	return out, nil
}

func locate(file string, layout Layout) (origin, path string, err error) {
	abs := file
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(layout.Dir, abs)
	}
	abs = filepath.Clean(abs)
	if strings.HasSuffix(abs, ".olean") {
		abs = strings.TrimSuffix(abs, ".olean") + ".lean"
	}

	switch {
	case strings.Contains(file, "_target"):
		deps := filepath.Join(layout.Dir, "_target", "deps")
		rel, err := filepath.Rel(deps, abs)
		if err != nil {
			return "", "", err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 3 || parts[1] != "src" {
			return parts[0], filepath.ToSlash(rel), nil
		}
		return parts[0], strings.Join(parts[2:], "/"), nil
	case strings.Contains(file, ".elan"):
		parts := strings.Split(filepath.ToSlash(abs), "/")
		start := len(parts)
		for i, part := range parts {
			if part == ".elan" {
				start = i + 7
				break
			}
		}
		// toolchains/<name>/lib/lean/library/<path>
		for i := start - 7; i >= 0 && i < len(parts); i++ {
			if parts[i] == "library" {
				start = i + 1
				break
			}
		}
		if start > len(parts) {
			start = len(parts)
		}
		return OriginCore, strings.Join(parts[start:], "/"), nil
	default:
		rel, err := filepath.Rel(layout.SrcDir, abs)
		if err != nil {
			return "", "", err
		}
		return layout.Name, filepath.ToSlash(rel), nil
	}
}

// WriteJSON writes decls as an indented JSON object with sorted keys.
func WriteJSON(w io.Writer, decls map[string]DeclInfo) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(decls)
}

// ModuleName turns a slash-separated path relative to a source directory
// into a dotted module name.
func ModuleName(rel string) string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".lean")
	return strings.ReplaceAll(rel, "/", ".")
}

// MakeAll renders an all.lean importing every module except `all` itself.
func MakeAll(files []string) []byte {
	modules := make([]string, 0, len(files))
	for _, f := range files {
		name := ModuleName(f)
		if name == "all" {
			continue
		}
		modules = append(modules, name)
	}
	sort.Strings(modules)

	var b strings.Builder
	for _, m := range modules {
		b.WriteString("import ")
		b.WriteString(m)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
