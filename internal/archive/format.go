// Package archive packs and unpacks the tarballs that carry compiled
// oleans.
package archive

import (
	"archive/tar"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

var (
	// ErrUnsupportedFormat is returned for unknown archive suffixes.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrCorrupt is returned when the compressed stream or tar structure
	// cannot be decoded.
	ErrCorrupt = errors.New("corrupt archive")

	// ErrUnsafePath is returned for entries escaping the target directory.
	ErrUnsafePath = errors.New("unsafe path in archive")
)

// Format is a tar compression scheme.
type Format int

const (
	FormatTar Format = iota
	FormatXz
	FormatGzip
	FormatZstd
	FormatBzip2
)

// Suffix returns the file suffix conventionally used for f.
func (f Format) Suffix() string {
	switch f {
	case FormatXz:
		return ".tar.xz"
	case FormatGzip:
		return ".tar.gz"
	case FormatZstd:
		return ".tar.zst"
	case FormatBzip2:
		return ".tar.bz2"
	default:
		return ".tar"
	}
}

// DetectFormat picks a format from a file name.
func DetectFormat(name string) (Format, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatXz, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatGzip, nil
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return FormatZstd, nil
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".bz2"):
		return FormatBzip2, nil
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
}

// Entry describes one member of an archive.
type Entry struct {
	Name     string
	Size     int64
	Mode     os.FileMode
	Type     byte
	Linkname string
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Type == tar.TypeDir
}

// IsRegular reports whether the entry is a regular file.
func (e Entry) IsRegular() bool {
	return e.Type == tar.TypeReg || e.Type == tar.TypeRegA
}

// Reader iterates over the members of an archive file.
type Reader struct {
	tar     *tar.Reader
	closers []func() error
}

// Open opens the archive at path, choosing the decompressor from its name.
func Open(path string) (*Reader, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f, format)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closers = append(r.closers, f.Close)
	return r, nil
}

// NewReader decodes a tar stream compressed with format.
func NewReader(src io.Reader, format Format) (*Reader, error) {
	r := &Reader{}
	var stream io.Reader
	switch format {
	case FormatTar:
		stream = src
	case FormatXz:
		xr, err := xz.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		stream = xr
	case FormatGzip:
		gr, err := gzip.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		r.closers = append(r.closers, gr.Close)
		stream = gr
	case FormatZstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		r.closers = append(r.closers, func() error {
			dec.Close()
			return nil
		})
		stream = dec
	case FormatBzip2:
		stream = bzip2.NewReader(src)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFormat, format)
	}
	r.tar = tar.NewReader(stream)
	return r, nil
}

// Next advances to the next member. It returns io.EOF at the end.
func (r *Reader) Next() (Entry, error) {
	hdr, err := r.tar.Next()
	if err == io.EOF {
		return Entry{}, io.EOF
	}
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return Entry{
		Name: normalizeName(hdr.Name),
		Size: hdr.Size,
		Mode: hdr.FileInfo().Mode(),
		Type: hdr.Typeflag,

		Linkname: hdr.Linkname,
	}, nil
}

// Read reads from the current member.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.tar.Read(p)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return n, err
}

// Close releases the decompressor and the underlying file.
func (r *Reader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// List returns every member of the archive at path.
func List(path string) ([]Entry, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var entries []Entry
	for {
		entry, err := r.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
}

func normalizeName(name string) string {
	name = strings.TrimPrefix(name, "./")
	return strings.TrimSuffix(name, "/")
}

type writeStream struct {
	w     io.Writer
	close func() error
}

func newWriteStream(dst io.Writer, format Format) (*writeStream, error) {
	switch format {
	case FormatTar:
		return &writeStream{w: dst, close: func() error { return nil }}, nil
	case FormatXz:
		xw, err := xz.NewWriter(dst)
		if err != nil {
			return nil, err
		}
		return &writeStream{w: xw, close: xw.Close}, nil
	case FormatGzip:
		gw := gzip.NewWriter(dst)
		return &writeStream{w: gw, close: gw.Close}, nil
	case FormatZstd:
		enc, err := zstd.NewWriter(dst)
		if err != nil {
			return nil, err
		}
		return &writeStream{w: enc, close: enc.Close}, nil
	default:
		return nil, fmt.Errorf("%w: cannot write %s", ErrUnsupportedFormat, format.Suffix())
	}
}
