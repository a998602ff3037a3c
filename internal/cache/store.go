// Package cache stores, downloads and locates olean archives keyed by git
// commit.
package cache

import (
	_ "crypto/sha256" // registers digest.Canonical
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/opencontainers/go-digest"
)

const (
	IndexFile           = "index.json"
	CurrentIndexVersion = "1"
	ArchiveSuffix       = ".tar.xz"
)

var (
	// ErrNotFound is returned when no archive exists for a revision.
	ErrNotFound = errors.New("olean archive not found")

	// ErrDownload is returned when fetching an archive fails for any reason
	// other than it not existing.
	ErrDownload = errors.New("failed to download olean archive")

	// ErrDigestMismatch is returned when a stored archive no longer matches
	// the digest recorded when it was written.
	ErrDigestMismatch = errors.New("olean archive digest mismatch")
)

// Record describes one stored archive.
type Record struct {
	Digest    digest.Digest `json:"digest"`
	Size      int64         `json:"size"`
	URL       string        `json:"url,omitempty"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Index maps revisions to the records of their archives.
type Index struct {
	Version   string            `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
	Archives  map[string]Record `json:"archives"`
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		Version:  CurrentIndexVersion,
		Archives: make(map[string]Record),
	}
}

// Store is a directory of `<rev>.tar.xz` archives plus their index.
// It is safe for concurrent use within one process.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore opens the store rooted at dir, creating the directory.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store root.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns where the archive for rev lives, whether or not it exists.
func (s *Store) Path(rev string) string {
	return filepath.Join(s.dir, rev+ArchiveSuffix)
}

// Has reports whether an archive file exists for rev.
func (s *Store) Has(rev string) bool {
	info, err := os.Stat(s.Path(rev))
	return err == nil && info.Mode().IsRegular()
}

// Lookup returns the index record for rev.
func (s *Store) Lookup(rev string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := idx.Archives[rev]
	return rec, ok, nil
}

// Record stores rec as the index entry for rev.
func (s *Store) Record(rev string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	idx.Archives[rev] = rec
	return s.saveIndex(idx)
}

// RecordFile digests the archive already stored for rev and indexes it.
func (s *Store) RecordFile(rev, url string) (Record, error) {
	dgst, size, err := digestFile(s.Path(rev))
	if err != nil {
		return Record{}, err
	}
	rec := Record{Digest: dgst, Size: size, URL: url, FetchedAt: time.Now().UTC()}
	return rec, s.Record(rev, rec)
}

// Verify checks the stored archive for rev against its index record.
// Archives without a record (written by older tools) are digested and
// adopted into the index.
func (s *Store) Verify(rev string) error {
	if !s.Has(rev) {
		return fmt.Errorf("%w: %s", ErrNotFound, rev)
	}
	rec, ok, err := s.Lookup(rev)
	if err != nil {
		return err
	}
	if !ok {
		_, err := s.RecordFile(rev, "")
		return err
	}
	if err := rec.Digest.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDigestMismatch, rev, err)
	}

	f, err := os.Open(s.Path(rev))
	if err != nil {
		return err
	}
	defer f.Close()

	verifier := rec.Digest.Verifier()
	if _, err := copyBuffer(verifier, f); err != nil {
		return err
	}
	if !verifier.Verified() {
		return fmt.Errorf("%w: %s", ErrDigestMismatch, rev)
	}
	return nil
}

// Remove deletes the archive and index entry for rev.
func (s *Store) Remove(rev string) error {
	if err := os.Remove(s.Path(rev)); err != nil && !os.IsNotExist(err) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	if _, ok := idx.Archives[rev]; !ok {
		return nil
	}
	delete(idx.Archives, rev)
	return s.saveIndex(idx)
}

func (s *Store) loadIndex() (*Index, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, IndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return NewIndex(), nil
		}
		return nil, err
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", IndexFile, err)
	}
	migrateIndex(&idx)
	return &idx, nil
}

func (s *Store) saveIndex(idx *Index) error {
	migrateIndex(idx)
	idx.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, ".index-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, filepath.Join(s.dir, IndexFile))
}

func migrateIndex(idx *Index) {
	if idx.Version == "" {
		idx.Version = CurrentIndexVersion
	}
	if idx.Archives == nil {
		idx.Archives = make(map[string]Record)
	}
}

func digestFile(path string) (digest.Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	digester := digest.Canonical.Digester()
	n, err := copyBuffer(digester.Hash(), f)
	if err != nil {
		return "", 0, err
	}
	return digester.Digest(), n, nil
}
