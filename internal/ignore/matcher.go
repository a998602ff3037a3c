// Package ignore decides which paths of a Lean project are skipped when
// scanning its sources.
package ignore

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// File holds optional user rules at the project root.
const File = ".leanprojectignore"

// DefaultRules exclude version control, build outputs and dependencies.
var DefaultRules = []string{
	".git/",
	"_target/",
	"_cache/",
	"build/",
	".lake/",
}

type rule struct {
	pattern  string
	re       *regexp.Regexp
	negated  bool
	dirOnly  bool
	anchored bool
}

// Matcher applies gitignore-like rules with "last rule wins" behavior.
type Matcher struct {
	rules []rule
}

// NewMatcher builds a matcher from user rules. DefaultRules are prepended
// and can be overridden by user negation rules.
func NewMatcher(userRules []string) *Matcher {
	all := make([]string, 0, len(DefaultRules)+len(userRules))
	all = append(all, DefaultRules...)
	all = append(all, userRules...)

	rules := make([]rule, 0, len(all))
	for _, line := range all {
		if parsed, ok := parseRule(line); ok {
			rules = append(rules, parsed)
		}
	}
	return &Matcher{rules: rules}
}

// Load builds a matcher from the ignore file in root, if any.
func Load(root string) (*Matcher, error) {
	rules, err := ReadRules(filepath.Join(root, File))
	if err != nil {
		return nil, err
	}
	return NewMatcher(rules), nil
}

// ReadRules returns the lines of an ignore file; a missing file has none.
func ReadRules(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// ShouldIgnore returns true when relPath should be excluded.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = normalizePath(relPath)
	ignored := false
	for _, r := range m.rules {
		if r.matches(relPath, isDir) {
			ignored = !r.negated
		}
	}
	return ignored
}

func parseRule(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	parsed := rule{}
	if strings.HasPrefix(line, "!") {
		parsed.negated = true
		line = strings.TrimPrefix(line, "!")
	}
	if strings.HasPrefix(line, "/") {
		parsed.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if strings.HasSuffix(line, "/") {
		parsed.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}

	line = normalizePath(line)
	if line == "" {
		return rule{}, false
	}
	re, err := regexp.Compile("^" + globToRegex(line) + "$")
	if err != nil {
		return rule{}, false
	}
	parsed.pattern = line
	parsed.re = re
	return parsed, true
}

func (r rule) matches(relPath string, isDir bool) bool {
	if r.dirOnly {
		if r.matchesDirectory(relPath) {
			return true
		}
		if r.anchored {
			return isDir && r.re.MatchString(relPath)
		}
		return isDir && r.re.MatchString(filepath.Base(relPath))
	}

	if r.anchored {
		return r.re.MatchString(relPath)
	}

	if strings.Contains(r.pattern, "/") {
		parts := strings.Split(relPath, "/")
		for i := range parts {
			if r.re.MatchString(strings.Join(parts[i:], "/")) {
				return true
			}
		}
		return false
	}

	for _, segment := range strings.Split(relPath, "/") {
		if r.re.MatchString(segment) {
			return true
		}
	}
	return false
}

// matchesDirectory reports whether relPath lies inside a directory named
// by the rule.
func (r rule) matchesDirectory(relPath string) bool {
	parts := strings.Split(relPath, "/")
	if r.anchored {
		for i := 0; i < len(parts)-1; i++ {
			if r.re.MatchString(strings.Join(parts[:i+1], "/")) {
				return true
			}
		}
		return false
	}
	for start := range parts {
		for end := start; end < len(parts)-1; end++ {
			if r.re.MatchString(strings.Join(parts[start:end+1], "/")) {
				return true
			}
		}
	}
	return false
}

func globToRegex(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]

		if ch == '*' {
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
				continue
			}
			b.WriteString("[^/]*")
			continue
		}

		if ch == '?' {
			b.WriteString("[^/]")
			continue
		}

		if strings.ContainsRune(`.+()|[]{}^$\`, rune(ch)) {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func normalizePath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")
	return path
}
