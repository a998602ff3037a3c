// Package leanpkg reads and writes leanpkg.toml, the manifest of a Lean 3
// project.
package leanpkg

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

const (
	ManifestFile = "leanpkg.toml"
	PathFile     = "leanpkg.path"
)

// ErrNoManifest is returned when no leanpkg.toml can be found.
var ErrNoManifest = errors.New("could not find a leanpkg.toml")

// Package is the [package] table.
type Package struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	LeanVersion string `toml:"lean_version"`
	Path        string `toml:"path,omitempty"`
	Timeout     int    `toml:"timeout,omitempty"`
}

// Dependency is one entry of the [dependencies] table: either a git
// repository pinned at a commit or a local path.
type Dependency struct {
	Git  string `toml:"git,omitempty"`
	Rev  string `toml:"rev,omitempty"`
	Path string `toml:"path,omitempty"`
}

// IsLocal reports whether the dependency points at a local checkout.
func (d Dependency) IsLocal() bool {
	return d.Git == "" && d.Path != ""
}

// Manifest is a parsed leanpkg.toml.
type Manifest struct {
	Package      Package               `toml:"package"`
	Dependencies map[string]Dependency `toml:"dependencies"`
}

// Parse decodes a leanpkg.toml document.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestFile, err)
	}
	if m.Dependencies == nil {
		m.Dependencies = make(map[string]Dependency)
	}
	return &m, nil
}

// Load reads dir/leanpkg.toml.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrNoManifest, dir)
		}
		return nil, err
	}
	return Parse(data)
}

// LeanVersion parses the package's lean_version.
func (m *Manifest) LeanVersion() (Version, error) {
	return ParseVersion(m.Package.LeanVersion)
}

// SetLeanVersion stores v in the form leanpkg expects.
func (m *Manifest) SetLeanVersion(v Version) {
	m.Package.LeanVersion = LeanVersionTOML(v)
}

// Encode renders the manifest. Dependencies are written as inline tables,
// sorted by name, which is the only form leanpkg itself reads back.
func (m *Manifest) Encode() ([]byte, error) {
	if v, err := m.LeanVersion(); err == nil {
		// older leanpkg wrote community versions without the repository prefix
		m.SetLeanVersion(v)
	}

	var buf bytes.Buffer
	buf.WriteString("[package]\n")
	fmt.Fprintf(&buf, "name = %q\n", m.Package.Name)
	fmt.Fprintf(&buf, "version = %q\n", m.Package.Version)
	fmt.Fprintf(&buf, "lean_version = %q\n", m.Package.LeanVersion)
	if m.Package.Path != "" {
		fmt.Fprintf(&buf, "path = %q\n", m.Package.Path)
	}
	if m.Package.Timeout > 0 {
		fmt.Fprintf(&buf, "timeout = %d\n", m.Package.Timeout)
	}

	buf.WriteString("\n[dependencies]\n")
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dep := m.Dependencies[name]
		if dep.IsLocal() {
			fmt.Fprintf(&buf, "%s = {path = %q}\n", name, dep.Path)
			continue
		}
		fmt.Fprintf(&buf, "%s = {git = %q, rev = %q}\n", name, dep.Git, dep.Rev)
	}

	if _, err := Parse(buf.Bytes()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the manifest to dir/leanpkg.toml.
func (m *Manifest) Save(dir string) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0644)
}

// FindRoot returns the first of path and its ancestors holding a
// leanpkg.toml.
func FindRoot(path string) (string, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoManifest
		}
		dir = parent
	}
}
