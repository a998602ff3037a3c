package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"
)

// ProgressFunc receives the bytes written so far and the expected total
// (-1 when the server did not announce a length).
type ProgressFunc func(written, total int64)

// Remote fetches archives from `<base><rev>.tar.xz`.
type Remote struct {
	baseURL string
	client  *http.Client
	headers http.Header
}

// RemoteOption configures a Remote.
type RemoteOption func(*Remote)

// WithClient sets the HTTP client used for requests.
func WithClient(client *http.Client) RemoteOption {
	return func(r *Remote) {
		r.client = client
	}
}

// WithHeader sets a header on each request.
func WithHeader(key, value string) RemoteOption {
	return func(r *Remote) {
		if r.headers == nil {
			r.headers = make(http.Header)
		}
		r.headers.Set(key, value)
	}
}

// NewRemote creates a Remote for baseURL, which should end with a slash.
func NewRemote(baseURL string, opts ...RemoteOption) *Remote {
	r := &Remote{
		baseURL: baseURL,
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = http.DefaultClient
	}
	return r
}

// BaseURL returns the URL prefix archives are fetched from.
func (r *Remote) BaseURL() string {
	return r.baseURL
}

// URL returns the download URL for rev.
func (r *Remote) URL(rev string) string {
	return r.baseURL + rev + ArchiveSuffix
}

// Exists asks the server whether an archive for rev is published.
func (r *Remote) Exists(ctx context.Context, rev string) (bool, error) {
	resp, err := r.do(ctx, http.MethodHead, rev)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		// blob stores answer 403 for missing keys on anonymous containers
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s: %s", ErrDownload, r.URL(rev), resp.Status)
	}
}

// Fetch downloads the archive for rev to dst. The body is written to a
// temporary file next to dst and renamed into place only once its length
// has been checked, so dst is never left truncated.
func (r *Remote) Fetch(ctx context.Context, rev, dst string, progress ProgressFunc) (Record, error) {
	url := r.URL(rev)
	slog.Debug("downloading olean archive", "url", url)

	resp, err := r.do(ctx, http.MethodGet, rev)
	if err != nil {
		return Record{}, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusForbidden:
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, url)
	default:
		return Record{}, fmt.Errorf("%w: %s: %s", ErrDownload, url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return Record{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return Record{}, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		_ = os.Remove(tmpPath)
	}

	digester := digest.Canonical.Digester()
	counter := &countingWriter{total: resp.ContentLength, progress: progress}
	written, err := copyBuffer(io.MultiWriter(tmp, digester.Hash(), counter), resp.Body)
	if err != nil {
		cleanup()
		return Record{}, fmt.Errorf("%w: %s: %v", ErrDownload, url, err)
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		cleanup()
		return Record{}, fmt.Errorf("%w: %s: got %d of %d bytes", ErrDownload, url, written, resp.ContentLength)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return Record{}, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return Record{}, err
	}

	return Record{
		Digest:    digester.Digest(),
		Size:      written,
		URL:       url,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (r *Remote) do(ctx context.Context, method, rev string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.URL(rev), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownload, err)
	}
	for key, values := range r.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDownload, r.URL(rev), err)
	}
	return resp, nil
}

type countingWriter struct {
	written  int64
	total    int64
	progress ProgressFunc
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.progress != nil {
		w.progress(w.written, w.total)
	}
	return len(p), nil
}

func copyBuffer(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 256*1024)
	return io.CopyBuffer(dst, src, buf)
}
