package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func fileNames(entries []Entry) []string {
	var names []string
	for _, e := range entries {
		if e.IsRegular() {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names
}

func TestPackExtractRoundTrip(t *testing.T) {
	for _, suffix := range []string{".tar.xz", ".tar.gz", ".tar.zst", ".tar"} {
		t.Run(suffix, func(t *testing.T) {
			ctx := context.Background()
			root := t.TempDir()
			writeTree(t, root, map[string]string{
				"src/algebra/group.olean": "olean-group",
				"src/algebra/group.lean":  "-- group",
				"test/ring.olean":         "olean-ring",
			})
			target := filepath.Join(t.TempDir(), "cache", "abc"+suffix)
			require.NoError(t, Pack(ctx, root, []string{filepath.Join(root, "src"), filepath.Join(root, "test")}, target))

			entries, err := List(target)
			require.NoError(t, err)
			assert.Equal(t, []string{"src/algebra/group.lean", "src/algebra/group.olean", "test/ring.olean"}, fileNames(entries))

			dest := t.TempDir()
			written, err := Extract(ctx, target, dest, func(e Entry) bool {
				return e.IsDir() || strings.HasSuffix(e.Name, ".olean")
			})
			require.NoError(t, err)
			sort.Strings(written)
			assert.Equal(t, []string{"src/algebra/group.olean", "test/ring.olean"}, written)

			data, err := os.ReadFile(filepath.Join(dest, "src", "algebra", "group.olean"))
			require.NoError(t, err)
			assert.Equal(t, "olean-group", string(data))
			assert.NoFileExists(t, filepath.Join(dest, "src", "algebra", "group.lean"))
		})
	}
}

func TestPackLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.olean": "a"})
	outDir := t.TempDir()
	require.NoError(t, Pack(context.Background(), root, []string{filepath.Join(root, "src")}, filepath.Join(outDir, "r.tar.xz")))

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "r.tar.xz", entries[0].Name())
}

func TestPackCompletesAfterCancellation(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.olean": "a", "src/b/c.olean": "c"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := filepath.Join(t.TempDir(), "r.tar.xz")
	require.NoError(t, Pack(ctx, root, []string{filepath.Join(root, "src")}, target))

	entries, err := List(target)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.olean", "src/b/c.olean"}, fileNames(entries))
}

func TestPackRejectsUnknownSuffix(t *testing.T) {
	err := Pack(context.Background(), t.TempDir(), nil, filepath.Join(t.TempDir(), "out.rar"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	err = Pack(context.Background(), t.TempDir(), nil, filepath.Join(t.TempDir(), "out.tar.bz2"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"a.tar.xz":  FormatXz,
		"a.TGZ":     FormatGzip,
		"a.tar.gz":  FormatGzip,
		"a.tar.zst": FormatZstd,
		"a.tar.bz2": FormatBzip2,
		"a.tar":     FormatTar,
	}
	for name, want := range tests {
		got, err := DetectFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func writeRawTar(t *testing.T, path string, headers ...*tar.Header) {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, hdr := range headers {
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Size > 0 {
			_, err := tw.Write(bytes.Repeat([]byte("x"), int(hdr.Size)))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestExtractRejectsUnsafePaths(t *testing.T) {
	tests := []struct {
		name string
		hdr  *tar.Header
	}{
		{"parent", &tar.Header{Name: "../evil.olean", Typeflag: tar.TypeReg, Mode: 0644, Size: 1}},
		{"nested parent", &tar.Header{Name: "src/../../evil.olean", Typeflag: tar.TypeReg, Mode: 0644, Size: 1}},
		{"absolute", &tar.Header{Name: "/tmp/evil.olean", Typeflag: tar.TypeReg, Mode: 0644, Size: 1}},
		{"symlink escape", &tar.Header{Name: "src/link", Typeflag: tar.TypeSymlink, Linkname: "../../etc/passwd"}},
		{"absolute symlink", &tar.Header{Name: "src/link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archivePath := filepath.Join(t.TempDir(), "bad.tar")
			writeRawTar(t, archivePath, tt.hdr)
			dest := filepath.Join(t.TempDir(), "dest")

			_, err := Extract(context.Background(), archivePath, dest, nil)
			assert.ErrorIs(t, err, ErrUnsafePath)
			assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "evil.olean"))
		})
	}
}

func TestExtractAllowsInternalSymlinkWithoutWriting(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "ok.tar")
	writeRawTar(t, archivePath,
		&tar.Header{Name: "src/a.olean", Typeflag: tar.TypeReg, Mode: 0644, Size: 2},
		&tar.Header{Name: "src/b.olean", Typeflag: tar.TypeSymlink, Linkname: "a.olean"},
	)
	dest := t.TempDir()
	written, err := Extract(context.Background(), archivePath, dest, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.olean"}, written)
	assert.NoFileExists(t, filepath.Join(dest, "src", "b.olean"))
}

func TestCorruptArchive(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"bad.tar.xz", "bad.tar.gz", "bad.tar.zst"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("definitely not compressed data"), 0644))
		_, err := Extract(context.Background(), p, filepath.Join(dir, "out"), nil)
		assert.ErrorIs(t, err, ErrCorrupt, name)
	}
}

func TestTruncatedArchiveIsCorrupt(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.olean": strings.Repeat("olean", 4096)})
	full := filepath.Join(t.TempDir(), "full.tar.gz")
	require.NoError(t, Pack(context.Background(), root, []string{filepath.Join(root, "src")}, full))

	data, err := os.ReadFile(full)
	require.NoError(t, err)
	truncated := filepath.Join(t.TempDir(), "trunc.tar.gz")
	require.NoError(t, os.WriteFile(truncated, data[:len(data)/2], 0644))

	_, err = Extract(context.Background(), truncated, t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestExtractHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.olean": "a"})
	target := filepath.Join(t.TempDir(), "c.tar.xz")
	require.NoError(t, Pack(context.Background(), root, []string{filepath.Join(root, "src")}, target))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Extract(ctx, target, t.TempDir(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}
