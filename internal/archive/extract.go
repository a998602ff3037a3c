package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Filter decides whether an entry is written during extraction.
type Filter func(Entry) bool

// All accepts every entry.
func All(Entry) bool { return true }

// Extract unpacks the archive at src into dir, writing only the entries
// accepted by filter (nil accepts all). It returns the slash-separated names
// of the regular files written.
func Extract(ctx context.Context, src, dir string, filter Filter) ([]string, error) {
	if filter == nil {
		filter = All
	}
	r, err := Open(src)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	var written []string
	err = withDelayedInterrupt(func() error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry, err := r.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			target, err := SafeJoin(dir, entry.Name)
			if err != nil {
				return err
			}
			if !filter(entry) {
				continue
			}

			switch entry.Type {
			case tar.TypeDir:
				if err := os.MkdirAll(target, 0755); err != nil {
					return err
				}
			case tar.TypeReg, tar.TypeRegA:
				if err := writeFile(target, r, entry.Mode); err != nil {
					return fmt.Errorf("failed to extract %s: %w", entry.Name, err)
				}
				written = append(written, entry.Name)
			case tar.TypeSymlink, tar.TypeLink:
				if err := checkLink(dir, entry); err != nil {
					return err
				}
				slog.Debug("skipping link entry", "name", entry.Name, "target", entry.Linkname)
			default:
				slog.Debug("skipping archive entry", "name", entry.Name, "type", string(entry.Type))
			}
		}
	})
	if err != nil {
		return written, err
	}
	return written, nil
}

// SafeJoin joins an archive member name onto dir, rejecting names that are
// absolute or climb out of dir.
func SafeJoin(dir, name string) (string, error) {
	if name == "" {
		return dir, nil
	}
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	cleaned := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(dir, filepath.FromSlash(cleaned)), nil
}

// checkLink rejects links whose target resolves outside dir.
func checkLink(dir string, entry Entry) error {
	if entry.Linkname == "" || path.IsAbs(entry.Linkname) {
		return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, entry.Name, entry.Linkname)
	}
	target := entry.Linkname
	if entry.Type == tar.TypeSymlink {
		target = path.Join(path.Dir(entry.Name), entry.Linkname)
	}
	if _, err := SafeJoin(dir, target); err != nil {
		return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, entry.Name, entry.Linkname)
	}
	return nil
}

func writeFile(target string, src io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0644
	}
	// replace rather than truncate so hard links to the old file are untouched
	_ = os.Remove(target)
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
