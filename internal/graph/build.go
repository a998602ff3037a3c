package graph

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

var moduleToken = regexp.MustCompile(`^\.*[A-Za-z_][A-Za-z0-9_'.]*$`)

// commands end the import header even though they look like module names.
var commands = map[string]bool{
	"open": true, "universe": true, "universes": true, "namespace": true,
	"section": true, "variable": true, "variables": true, "parameter": true,
	"parameters": true, "noncomputable": true, "def": true, "lemma": true,
	"theorem": true, "set_option": true, "local": true, "attribute": true,
	"meta": true, "run_cmd": true, "example": true, "instance": true,
	"class": true, "structure": true, "inductive": true, "constant": true,
	"axiom": true, "notation": true, "localized": true, "end": true,
}

// Build reads the imports of files, given as slash-separated paths relative
// to srcDir, and returns their import graph. Imports that do not resolve
// to one of files are dropped. At most jobs files are read at once.
func Build(ctx context.Context, srcDir string, files []string, jobs int) (*Graph, error) {
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	known := make(map[string]bool, len(files))
	for _, f := range files {
		known[f] = true
	}

	imports := make([][]string, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(jobs)
	for i, file := range files {
		i, file := i, file
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(srcDir, filepath.FromSlash(file)))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			imports[i] = ParseImports(data)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	g := NewGraph()
	for i, file := range files {
		id := ModuleName(file)
		g.AddNode(id).File = file
		for _, imp := range imports[i] {
			target, ok := ResolveImport(file, imp, known)
			if !ok {
				continue
			}
			g.AddEdge(ModuleName(target), id)
		}
	}
	g.normalizeEdges()
	return g, nil
}

// ModuleName turns a slash-separated path into a dotted module name.
func ModuleName(file string) string {
	return strings.ReplaceAll(strings.TrimSuffix(file, ".lean"), "/", ".")
}

// ParseImports returns the modules named by the import commands at the top
// of a Lean file, in order.
func ParseImports(src []byte) []string {
	var out []string
	inImport := false
	for _, token := range strings.Fields(stripComments(string(src))) {
		switch {
		case token == "import":
			inImport = true
		case token == "prelude" && !inImport && len(out) == 0:
		case inImport && !commands[token] && moduleToken.MatchString(token):
			out = append(out, token)
		default:
			return out
		}
	}
	return out
}

// stripComments blanks out line comments and nested block comments.
func stripComments(src string) string {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(src); i++ {
		switch {
		case depth == 0 && strings.HasPrefix(src[i:], "--"):
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				return b.String()
			}
			i += end
			b.WriteByte('\n')
		case strings.HasPrefix(src[i:], "/-"):
			depth++
			i++
			b.WriteByte(' ')
		case depth > 0 && strings.HasPrefix(src[i:], "-/"):
			depth--
			i++
			b.WriteByte(' ')
		case depth > 0:
		default:
			b.WriteByte(src[i])
		}
	}
	return b.String()
}

// ResolveImport finds the file imp refers to when imported from file.
// Leading dots make the import relative: one dot is file's directory and
// every further dot goes up one level. A module a.b is a/b.lean or
// a/b/default.lean.
func ResolveImport(file, imp string, known map[string]bool) (string, bool) {
	rest := strings.TrimLeft(imp, ".")
	dots := len(imp) - len(rest)
	if rest == "" {
		return "", false
	}

	base := ""
	if dots > 0 {
		parts := strings.Split(path.Dir(file), "/")
		if parts[0] == "." {
			parts = parts[:0]
		}
		up := dots - 1
		if up > len(parts) {
			return "", false
		}
		base = strings.Join(parts[:len(parts)-up], "/")
	}

	candidate := path.Join(base, strings.ReplaceAll(rest, ".", "/"))
	for _, f := range []string{candidate + ".lean", candidate + "/default.lean"} {
		if known[f] {
			return f, true
		}
	}
	return "", false
}
