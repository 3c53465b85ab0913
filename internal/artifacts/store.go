package artifacts

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"uniconverter/internal/failure"
	"uniconverter/internal/filesystem"
	"uniconverter/internal/formats"
	"uniconverter/internal/logging"
)

// Artifact is a file owned by the store.
type Artifact struct {
	ID       string           `json:"id"`
	Path     string           `json:"-"`
	Ext      string           `json:"ext"`
	Category formats.Category `json:"category"`
	// Name is the display name used for attachments and payload separators.
	Name string `json:"name"`
}

// Entry is the ledger record of an artifact.
type Entry struct {
	ID        string
	Name      string
	Ext       string
	Category  formats.Category
	Size      int64
	Digest    string
	CreatedAt time.Time
}

// Ledger records artifacts for lookup and expiry.
type Ledger interface {
	Record(ctx context.Context, e Entry) error
	Lookup(ctx context.Context, id string) (Entry, error)
	Forget(ctx context.Context, id string) error
	Expired(ctx context.Context, before time.Time) ([]string, error)
}

// ErrNotFound is returned when an artifact id does not exist.
var ErrNotFound = errors.New("artifact not found")

var extPattern = regexp.MustCompile(`^[a-z0-9]+(\.[a-z0-9]+)?$`)

// Store is a directory of artifacts.
type Store struct {
	dir     string
	catalog *formats.Catalog
	ledger  Ledger
	retry   filesystem.RetryConfig
	now     func() time.Time
}

// NewStore creates the store directory if needed. ledger may be nil.
func NewStore(dir string, catalog *formats.Catalog, ledger Ledger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Store{
		dir:     dir,
		catalog: catalog,
		ledger:  ledger,
		retry:   filesystem.DefaultRetryConfig(),
		now:     time.Now,
	}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Catalog returns the catalog used to tag artifacts.
func (s *Store) Catalog() *formats.Catalog {
	return s.catalog
}

func (s *Store) newArtifact(ext, name string) (Artifact, error) {
	ext = formats.Normalize(ext)
	if !extPattern.MatchString(ext) {
		return Artifact{}, failure.New(failure.KindInvalidRequest, "invalid extension %q", ext)
	}
	id := uuid.NewString() + "." + ext
	if name == "" {
		name = id
	}
	return Artifact{
		ID:       id,
		Path:     filepath.Join(s.dir, id),
		Ext:      ext,
		Category: s.catalog.CategoryOf(ext),
		Name:     name,
	}, nil
}

// Produce allocates a new artifact and lets produce write it through a
// temporary path. The artifact exists only if produce succeeds.
func (s *Store) Produce(ctx context.Context, ext, name string, produce func(path string) error) (Artifact, error) {
	a, err := s.newArtifact(ext, name)
	if err != nil {
		return Artifact{}, err
	}
	if err := filesystem.Publish(a.Path, produce); err != nil {
		return Artifact{}, err
	}
	s.record(ctx, a)
	return a, nil
}

// Save stores data as a new artifact.
func (s *Store) Save(ctx context.Context, data []byte, ext, name string) (Artifact, error) {
	a, err := s.newArtifact(ext, name)
	if err != nil {
		return Artifact{}, err
	}
	if err := filesystem.WriteFileAtomic(a.Path, data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("failed to save artifact: %w", err)
	}
	s.record(ctx, a)
	return a, nil
}

// SaveFrom streams r into a new artifact.
func (s *Store) SaveFrom(ctx context.Context, r io.Reader, ext, name string) (Artifact, error) {
	return s.Produce(ctx, ext, name, func(path string) error {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}

// Read returns the artifact's bytes.
func (s *Store) Read(a Artifact) ([]byte, error) {
	return filesystem.ReadFileWithRetry(context.Background(), a.Path, s.retry)
}

// Delete removes the artifact. Deleting a missing artifact is not an error.
func (s *Store) Delete(ctx context.Context, a Artifact) error {
	if err := filesystem.RemoveWithRetry(ctx, a.Path, s.retry); err != nil {
		return fmt.Errorf("failed to delete artifact %s: %w", a.ID, err)
	}
	if s.ledger != nil {
		if err := s.ledger.Forget(ctx, a.ID); err != nil {
			logging.Warn("failed to forget artifact %s: %v", a.ID, err)
		}
	}
	return nil
}

// Open resolves an artifact id previously returned by the store.
func (s *Store) Open(ctx context.Context, id string) (Artifact, error) {
	prefix, ext, ok := strings.Cut(id, ".")
	if !ok || !extPattern.MatchString(ext) {
		return Artifact{}, failure.New(failure.KindInvalidRequest, "malformed artifact id %q", id)
	}
	if _, err := uuid.Parse(prefix); err != nil {
		return Artifact{}, failure.New(failure.KindInvalidRequest, "malformed artifact id %q", id)
	}

	a := Artifact{
		ID:       id,
		Path:     filepath.Join(s.dir, id),
		Ext:      ext,
		Category: s.catalog.CategoryOf(ext),
		Name:     id,
	}
	if _, err := filesystem.StatWithRetry(ctx, a.Path, s.retry); err != nil {
		if os.IsNotExist(err) {
			return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Artifact{}, err
	}

	if s.ledger != nil {
		if e, err := s.ledger.Lookup(ctx, id); err == nil && e.Name != "" {
			a.Name = e.Name
		}
	}
	return a, nil
}

// Sweep deletes artifacts created before the cutoff and returns how many
// were removed. Without a ledger it falls back to file modification times.
func (s *Store) Sweep(ctx context.Context, before time.Time) (int, error) {
	var ids []string
	if s.ledger != nil {
		expired, err := s.ledger.Expired(ctx, before)
		if err != nil {
			return 0, fmt.Errorf("failed to list expired artifacts: %w", err)
		}
		ids = expired
	}

	// Partial files and untracked leftovers are swept by age.
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read artifact directory: %w", err)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, e := range entries {
		if e.IsDir() || seen[e.Name()] {
			continue
		}
		tracked := s.ledger != nil && !strings.HasPrefix(e.Name(), ".")
		if tracked {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(before) {
			ids = append(ids, e.Name())
		}
	}

	removed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		path := filepath.Join(s.dir, filepath.Base(id))
		if err := filesystem.RemoveWithRetry(ctx, path, s.retry); err != nil {
			logging.Warn("Sweep: failed to remove %s: %v", path, err)
			continue
		}
		if s.ledger != nil {
			if err := s.ledger.Forget(ctx, id); err != nil {
				logging.Warn("Sweep: failed to forget %s: %v", id, err)
			}
		}
		removed++
	}
	return removed, nil
}

func (s *Store) record(ctx context.Context, a Artifact) {
	if s.ledger == nil {
		return
	}
	size, digest, err := digestFile(ctx, a.Path, s.retry)
	if err != nil {
		logging.Warn("failed to digest artifact %s: %v", a.ID, err)
	}
	e := Entry{
		ID:        a.ID,
		Name:      a.Name,
		Ext:       a.Ext,
		Category:  a.Category,
		Size:      size,
		Digest:    digest,
		CreatedAt: s.now(),
	}
	if err := s.ledger.Record(ctx, e); err != nil {
		logging.Warn("failed to record artifact %s: %v", a.ID, err)
	}
}

// digestFile returns the size and BLAKE2b-256 digest of a file.
func digestFile(ctx context.Context, path string, retry filesystem.RetryConfig) (int64, string, error) {
	f, err := filesystem.OpenWithRetry(ctx, path, retry)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return 0, "", err
	}
	n, err := io.Copy(h, f)
	if err != nil {
		return n, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}
