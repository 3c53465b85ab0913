package archive

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"uniconverter/internal/failure"
)

func writeZip(t *testing.T, path string, entries map[string]string, order []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w := zip.NewWriter(f)
	for _, name := range order {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(fw, entries[name]); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func readTarGz(t *testing.T, path string) (names []string, contents map[string]string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("not gzip: %v", err)
	}
	tr := tar.NewReader(gz)
	contents = make(map[string]string)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, h.Name)
		data, _ := io.ReadAll(tr)
		contents[h.Name] = string(data)
	}
	return names, contents
}

func readZip(t *testing.T, path string) (names []string, contents map[string]string) {
	t.Helper()
	rc, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("not zip: %v", err)
	}
	defer rc.Close()
	contents = make(map[string]string)
	for _, f := range rc.File {
		names = append(names, f.Name)
		r, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, _ := io.ReadAll(r)
		r.Close()
		contents[f.Name] = string(data)
	}
	return names, contents
}

func TestZipToTarGzAndBack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.zip")
	mid := filepath.Join(dir, "mid.tar.gz")
	back := filepath.Join(dir, "back.zip")

	entries := map[string]string{"a.txt": "alpha", "sub/b.txt": "bravo"}
	writeZip(t, src, entries, []string{"a.txt", "sub/b.txt"})

	c := New()
	if err := c.Convert(context.Background(), src, mid); err != nil {
		t.Fatalf("zip->tar.gz failed: %v", err)
	}
	names, contents := readTarGz(t, mid)
	if len(names) != 2 || names[0] != "a.txt" || names[1] != "sub/b.txt" {
		t.Errorf("tar names = %v", names)
	}
	if contents["sub/b.txt"] != "bravo" {
		t.Errorf("tar content = %q", contents["sub/b.txt"])
	}

	if err := c.Convert(context.Background(), mid, back); err != nil {
		t.Fatalf("tar.gz->zip failed: %v", err)
	}
	_, contents = readZip(t, back)
	for name, want := range entries {
		if contents[name] != want {
			t.Errorf("%s = %q, want %q", name, contents[name], want)
		}
	}
}

func TestConvertUnsupportedPairs(t *testing.T) {
	dir := t.TempDir()
	c := New()
	for _, pair := range [][2]string{
		{"a.7z", "b.tar.gz"},
		{"a.zip", "b.7z"},
		{"a.zip", "b.zip"},
		{"a.rar", "b.zip"},
	} {
		err := c.Convert(context.Background(), filepath.Join(dir, pair[0]), filepath.Join(dir, pair[1]))
		if !errors.Is(err, failure.ErrUnsupportedConversion) {
			t.Errorf("%s -> %s: error = %v, want UnsupportedConversion", pair[0], pair[1], err)
		}
	}
}

func TestCorruptSevenZip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.7z")
	_ = os.WriteFile(src, []byte("definitely not 7z"), 0o644)

	err := New().Convert(context.Background(), src, filepath.Join(dir, "out.zip"))
	if !errors.Is(err, failure.ErrBackendExecutionFailed) {
		t.Errorf("error = %v, want BackendExecutionFailed", err)
	}
}

func TestUnsafeEntryRejected(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, map[string]string{"../escape.txt": "x"}, []string{"../escape.txt"})

	err := New().Convert(context.Background(), src, filepath.Join(dir, "out.tar.gz"))
	if !errors.Is(err, failure.ErrBackendExecutionFailed) {
		t.Errorf("error = %v, want BackendExecutionFailed", err)
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"a.txt", "a.txt", false},
		{"dir/", "dir", false},
		{"a/./b", "a/b", false},
		{`win\path.txt`, "win/path.txt", false},
		{"/etc/passwd", "", true},
		{"../x", "", true},
		{"a/../../x", "", true},
		{".", "", true},
	}
	for _, tt := range tests {
		got, err := cleanName(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("cleanName(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestPackKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var files []File
	for _, name := range []string{"page-001.png", "page-002.png", "page-003.png"} {
		p := filepath.Join(dir, "src-"+name)
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, File{Name: name, Path: p})
	}

	dst := filepath.Join(dir, "pages.zip")
	if err := Pack(context.Background(), dst, files); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	names, contents := readZip(t, dst)
	if len(names) != 3 || names[0] != "page-001.png" || names[2] != "page-003.png" {
		t.Errorf("names = %v", names)
	}
	if contents["page-002.png"] != "page-002.png" {
		t.Errorf("content mismatch: %q", contents["page-002.png"])
	}
}
