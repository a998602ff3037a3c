package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Pack writes an archive at target containing srcs (files or directories,
// walked recursively) with member names relative to root. The compression
// comes from target's suffix. The archive is assembled in a temporary file
// and renamed into place, so an interrupted run never leaves a truncated
// archive behind. Interrupts and cancellation of ctx are held back until
// the archive is complete.
func Pack(ctx context.Context, root string, srcs []string, target string) (err error) {
	format, err := DetectFormat(target)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".pack-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	err = withDelayedInterrupt(func() error {
		stream, err := newWriteStream(tmp, format)
		if err != nil {
			return err
		}
		tw := tar.NewWriter(stream.w)
		members := 0
		for _, src := range srcs {
			n, err := addTree(tw, root, src)
			members += n
			if err != nil {
				return err
			}
		}
		if err := tw.Close(); err != nil {
			return err
		}
		if err := stream.close(); err != nil {
			return err
		}
		if err := tmp.Close(); err != nil {
			return err
		}
		if err := os.Rename(tmpPath, target); err != nil {
			return err
		}
		slog.DebugContext(ctx, "packed archive", "target", target, "members", members)
		return nil
	})
	return err
}

func addTree(tw *tar.Writer, root, src string) (int, error) {
	members := 0
	err := filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() && !info.IsDir() {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		members++
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("failed to archive %s: %w", rel, err)
		}
		return nil
	})
	return members, err
}
