package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Cache combines the local store with a remote archive server.
type Cache struct {
	Store  *Store
	Remote *Remote

	// Progress, when set, receives download progress.
	Progress ProgressFunc
}

// New creates a Cache. remote may be nil for an offline cache.
func New(store *Store, remote *Remote) *Cache {
	return &Cache{Store: store, Remote: remote}
}

// Get returns the path of a verified archive for rev, downloading it unless
// a valid local copy exists and force is false.
func (c *Cache) Get(ctx context.Context, rev string, force bool) (string, error) {
	path := c.Store.Path(rev)
	if !force {
		slog.Debug("looking for local olean archive", "rev", rev)
		err := c.Store.Verify(rev)
		switch {
		case err == nil:
			slog.Info("found local olean archive", "rev", rev)
			return path, nil
		case errors.Is(err, ErrDigestMismatch):
			slog.Warn("local olean archive is damaged, downloading again", "rev", rev)
		case !errors.Is(err, ErrNotFound):
			return "", err
		}
	}

	if c.Remote == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, rev)
	}
	slog.Info("looking for remote olean archive", "rev", rev, "url", c.Remote.BaseURL())
	rec, err := c.Remote.Fetch(ctx, rev, path, c.Progress)
	if err != nil {
		return "", err
	}
	if err := c.Store.Record(rev, rec); err != nil {
		return "", err
	}
	slog.Info("downloaded olean archive", "rev", rev, "size", rec.Size, "digest", rec.Digest.String())
	return path, nil
}

// Available reports whether an archive for rev exists locally or remotely
// without downloading it.
func (c *Cache) Available(ctx context.Context, rev string) (bool, error) {
	if c.Store.Has(rev) {
		return true, nil
	}
	if c.Remote == nil {
		return false, nil
	}
	return c.Remote.Exists(ctx, rev)
}
