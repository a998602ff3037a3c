package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/leanprover-community/mathlib-tools/internal/git"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// archiveServer serves the given revisions' archive bodies and counts GETs.
type archiveServer struct {
	*httptest.Server
	bodies map[string]string
	gets   atomic.Int32
}

func newArchiveServer(t *testing.T, bodies map[string]string) *archiveServer {
	t.Helper()
	s := &archiveServer{bodies: bodies}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rev := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/mathlib/"), ArchiveSuffix)
		body, ok := s.bodies[rev]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodGet {
			s.gets.Add(1)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *archiveServer) base() string {
	return s.URL + "/mathlib/"
}

func newTestCache(t *testing.T, srv *archiveServer) *Cache {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "mathlib"))
	require.NoError(t, err)
	var remote *Remote
	if srv != nil {
		remote = NewRemote(srv.base(), WithClient(srv.Client()))
	}
	return New(store, remote)
}

func TestStoreRecordVerifyRemove(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.ErrorIs(t, store.Verify("abc"), ErrNotFound)

	require.NoError(t, os.WriteFile(store.Path("abc"), []byte("archive"), 0644))
	assert.True(t, store.Has("abc"))

	// unindexed archives are adopted
	require.NoError(t, store.Verify("abc"))
	rec, ok, err := store.Lookup("abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, digest.FromString("archive"), rec.Digest)
	assert.Equal(t, int64(7), rec.Size)

	require.NoError(t, os.WriteFile(store.Path("abc"), []byte("tampered"), 0644))
	assert.ErrorIs(t, store.Verify("abc"), ErrDigestMismatch)

	require.NoError(t, store.Remove("abc"))
	assert.False(t, store.Has("abc"))
	idx, err := store.loadIndex()
	require.NoError(t, err)
	assert.Empty(t, idx.Archives)
}

func TestStoreIndexMigratesEmptyFields(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFile), []byte(`{}`), 0644))
	store, err := NewStore(dir)
	require.NoError(t, err)

	idx, err := store.loadIndex()
	require.NoError(t, err)
	assert.Equal(t, CurrentIndexVersion, idx.Version)
	assert.NotNil(t, idx.Archives)
}

func TestStoreRejectsBrokenIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, IndexFile), []byte(`{not json`), 0644))
	store, err := NewStore(dir)
	require.NoError(t, err)

	_, _, err = store.Lookup("abc")
	assert.Error(t, err)
}

func TestRemoteFetch(t *testing.T) {
	srv := newArchiveServer(t, map[string]string{"abc": "olean bytes"})
	remote := NewRemote(srv.base(), WithClient(srv.Client()))
	dst := filepath.Join(t.TempDir(), "abc.tar.xz")

	var last, total int64
	rec, err := remote.Fetch(context.Background(), "abc", dst, func(w, t int64) {
		last, total = w, t
	})
	require.NoError(t, err)
	assert.Equal(t, digest.FromString("olean bytes"), rec.Digest)
	assert.Equal(t, int64(11), rec.Size)
	assert.Equal(t, srv.base()+"abc.tar.xz", rec.URL)
	assert.Equal(t, int64(11), last)
	assert.Equal(t, int64(11), total)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "olean bytes", string(data))
}

func TestRemoteFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "missing"):
			http.NotFound(w, r)
		case strings.Contains(r.URL.Path, "short"):
			w.Header().Set("Content-Length", "100")
			_, _ = w.Write([]byte("only a few bytes"))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()
	remote := NewRemote(srv.URL+"/", WithClient(srv.Client()))
	dir := t.TempDir()

	_, err := remote.Fetch(context.Background(), "missing", filepath.Join(dir, "missing.tar.xz"), nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = remote.Fetch(context.Background(), "broken", filepath.Join(dir, "broken.tar.xz"), nil)
	assert.ErrorIs(t, err, ErrDownload)

	_, err = remote.Fetch(context.Background(), "short", filepath.Join(dir, "short.tar.xz"), nil)
	assert.ErrorIs(t, err, ErrDownload)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed downloads must not leave files behind")
}

func TestRemoteExists(t *testing.T) {
	srv := newArchiveServer(t, map[string]string{"abc": "x"})
	remote := NewRemote(srv.base(), WithClient(srv.Client()))

	ok, err := remote.Exists(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = remote.Exists(context.Background(), "def")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, srv.gets.Load())
}

func TestCacheGetPrefersVerifiedLocalCopy(t *testing.T) {
	srv := newArchiveServer(t, map[string]string{"abc": "remote"})
	c := newTestCache(t, srv)
	ctx := context.Background()

	path, err := c.Get(ctx, "abc", false)
	require.NoError(t, err)
	assert.Equal(t, c.Store.Path("abc"), path)
	assert.EqualValues(t, 1, srv.gets.Load())

	_, err = c.Get(ctx, "abc", false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, srv.gets.Load(), "second get should hit the store")

	_, err = c.Get(ctx, "abc", true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, srv.gets.Load(), "forced get should download")

	require.NoError(t, os.WriteFile(path, []byte("damaged"), 0644))
	_, err = c.Get(ctx, "abc", false)
	require.NoError(t, err)
	assert.EqualValues(t, 3, srv.gets.Load(), "damaged archive should be replaced")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "remote", string(data))
}

func TestCacheGetOffline(t *testing.T) {
	c := newTestCache(t, nil)
	_, err := c.Get(context.Background(), "abc", false)
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeHistory struct {
	shas  []string
	limit int
}

func (h *fakeHistory) VisitAncestors(ctx context.Context, rev string, limit int, visit git.VisitFunc) error {
	h.limit = limit
	for i, sha := range h.shas {
		if limit > 0 && i >= limit {
			return nil
		}
		prune, err := visit(sha)
		if err == git.ErrStopWalk {
			return nil
		}
		if err != nil {
			return err
		}
		_ = prune
	}
	return nil
}

func TestLocatorFind(t *testing.T) {
	srv := newArchiveServer(t, map[string]string{"c3": "x", "exact": "y"})
	c := newTestCache(t, srv)
	history := &fakeHistory{shas: []string{"c0", "c1", "c2", "c3", "c4"}}
	ctx := context.Background()

	loc := &Locator{Cache: c, MaxDepth: 10}
	m, err := loc.Find(ctx, history, "exact")
	require.NoError(t, err)
	assert.True(t, m.Exact())
	assert.Equal(t, "exact", m.Rev)

	m, err = loc.Find(ctx, history, "c0")
	require.NoError(t, err)
	assert.Equal(t, Match{Rev: "c3", Depth: 3}, m)
	assert.Equal(t, 11, history.limit)

	loc.MaxDepth = 2
	_, err = loc.Find(ctx, history, "c0")
	assert.ErrorIs(t, err, ErrNotFound)

	loc.MaxDepth = 0
	_, err = loc.Find(ctx, history, "c0")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, srv.gets.Load(), "locating must not download")
}

func TestLocatorPrefersLocalArchive(t *testing.T) {
	c := newTestCache(t, nil)
	require.NoError(t, os.WriteFile(c.Store.Path("c1"), []byte("local"), 0644))

	loc := &Locator{Cache: c, MaxDepth: 5}
	m, err := loc.Find(context.Background(), &fakeHistory{shas: []string{"c0", "c1"}}, "c0")
	require.NoError(t, err)
	assert.Equal(t, "c1", m.Rev)
	assert.Equal(t, 1, m.Depth)
}
