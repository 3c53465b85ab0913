package artifacts

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"uniconverter/internal/formats"
)

type memLedger struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[string]Entry)}
}

func (m *memLedger) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *memLedger) Lookup(_ context.Context, id string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (m *memLedger) Forget(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *memLedger) Expired(_ context.Context, before time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, e := range m.entries {
		if e.CreatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func newTestStore(t *testing.T, ledger Ledger) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), formats.Default(), ledger)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestSaveAndOpen(t *testing.T) {
	ledger := newMemLedger()
	s := newTestStore(t, ledger)
	ctx := context.Background()

	a, err := s.Save(ctx, []byte("hello"), "TXT", "notes.txt")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if a.Ext != "txt" || a.Category != formats.CategoryDocument {
		t.Errorf("got ext=%q category=%q", a.Ext, a.Category)
	}
	if !strings.HasSuffix(a.ID, ".txt") {
		t.Errorf("id %q should end with .txt", a.ID)
	}

	opened, err := s.Open(ctx, a.ID)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if opened.Path != a.Path || opened.Name != "notes.txt" {
		t.Errorf("Open = %+v, want path %q name notes.txt", opened, a.Path)
	}

	data, err := s.Read(opened)
	if err != nil || string(data) != "hello" {
		t.Errorf("Read = %q, %v", data, err)
	}

	e := ledger.entries[a.ID]
	if e.Size != 5 || len(e.Digest) != 64 {
		t.Errorf("ledger entry = %+v, want size 5 and a 256-bit hex digest", e)
	}
}

func TestSaveTarGzKeepsDoubleExtension(t *testing.T) {
	s := newTestStore(t, nil)
	a, err := s.Save(context.Background(), []byte{0x1f, 0x8b}, "tgz", "")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasSuffix(a.Path, ".tar.gz") {
		t.Errorf("path %q should end with .tar.gz", a.Path)
	}
	if a.Name != a.ID {
		t.Errorf("default name = %q, want id %q", a.Name, a.ID)
	}
}

func TestUniqueIDs(t *testing.T) {
	s := newTestStore(t, nil)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		a, err := s.Save(context.Background(), []byte("x"), "png", "")
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if seen[a.ID] {
			t.Fatalf("duplicate id %s", a.ID)
		}
		seen[a.ID] = true
	}
}

func TestProduceFailureLeavesNothing(t *testing.T) {
	s := newTestStore(t, nil)
	boom := errors.New("backend crashed")

	_, err := s.Produce(context.Background(), "mp4", "", func(path string) error {
		if err := os.WriteFile(path, []byte("half"), 0o644); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Produce error = %v, want %v", err, boom)
	}

	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 0 {
		t.Errorf("expected empty store, found %d entries", len(entries))
	}
}

func TestSaveFrom(t *testing.T) {
	s := newTestStore(t, nil)
	payload := bytes.Repeat([]byte("ab"), 4096)
	a, err := s.SaveFrom(context.Background(), bytes.NewReader(payload), "zip", "bundle.zip")
	if err != nil {
		t.Fatalf("SaveFrom failed: %v", err)
	}
	got, _ := os.ReadFile(a.Path)
	if !bytes.Equal(got, payload) {
		t.Error("streamed content mismatch")
	}
}

func TestOpenRejectsMalformedIDs(t *testing.T) {
	s := newTestStore(t, nil)
	for _, id := range []string{"", "abc", "../etc/passwd", "not-a-uuid.png", "3f1e0d38-9c1b-4a55-8a0b-6c1f0b1c2d3e./x"} {
		if _, err := s.Open(context.Background(), id); err == nil {
			t.Errorf("Open(%q) should fail", id)
		}
	}
}

func TestOpenMissing(t *testing.T) {
	s := newTestStore(t, nil)
	_, err := s.Open(context.Background(), "3f1e0d38-9c1b-4a55-8a0b-6c1f0b1c2d3e.png")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Open error = %v, want ErrNotFound", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ledger := newMemLedger()
	s := newTestStore(t, ledger)
	ctx := context.Background()

	a, _ := s.Save(ctx, []byte("x"), "png", "")
	if err := s.Delete(ctx, a); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, a); err != nil {
		t.Errorf("second Delete failed: %v", err)
	}
	if _, ok := ledger.entries[a.ID]; ok {
		t.Error("ledger entry should be forgotten")
	}
}

func TestSweepWithLedger(t *testing.T) {
	ledger := newMemLedger()
	s := newTestStore(t, ledger)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	s.now = func() time.Time { return old }
	stale, _ := s.Save(ctx, []byte("old"), "png", "")
	s.now = time.Now
	fresh, _ := s.Save(ctx, []byte("new"), "png", "")

	n, err := s.Sweep(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, err := os.Stat(stale.Path); !os.IsNotExist(err) {
		t.Error("stale artifact should be removed")
	}
	if _, err := os.Stat(fresh.Path); err != nil {
		t.Error("fresh artifact should survive")
	}
}

func TestSweepWithoutLedgerUsesModTime(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	stale, _ := s.Save(ctx, []byte("old"), "png", "")
	partial := filepath.Join(s.Dir(), ".x.partial-1234abcd.png")
	if err := os.WriteFile(partial, []byte("p"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-2 * time.Hour)
	_ = os.Chtimes(stale.Path, past, past)
	_ = os.Chtimes(partial, past, past)
	fresh, _ := s.Save(ctx, []byte("new"), "png", "")

	n, err := s.Sweep(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Sweep removed %d, want 2", n)
	}
	if _, err := os.Stat(fresh.Path); err != nil {
		t.Error("fresh artifact should survive")
	}
}
