package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"uniconverter/internal/logging"
)

// TempSibling returns a unique temporary path next to dst that keeps dst's
// extension, e.g. "/data/ab.mp4" -> "/data/.ab.partial-<id>.mp4".
func TempSibling(dst string) string {
	dir, base := filepath.Split(dst)
	ext := extension(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf(".%s.partial-%s%s", stem, uuid.NewString()[:8], ext))
}

// extension keeps double extensions such as ".tar.gz" intact.
func extension(base string) string {
	if strings.HasSuffix(strings.ToLower(base), ".tar.gz") {
		return base[len(base)-len(".tar.gz"):]
	}
	return filepath.Ext(base)
}

// Publish runs produce against a temporary sibling of dst and renames the
// result onto dst only when produce succeeds. On failure the temporary file
// is removed and dst is left untouched.
func Publish(dst string, produce func(tmp string) error) error {
	tmp := TempSibling(dst)
	start := time.Now()
	volume := defaultResolver.Resolve(dst)

	if err := produce(tmp); err != nil {
		removePartial(tmp)
		return err
	}

	info, err := os.Stat(tmp)
	if err != nil {
		removePartial(tmp)
		return fmt.Errorf("producer wrote no output at %s: %w", tmp, err)
	}
	if info.IsDir() {
		removePartial(tmp)
		return fmt.Errorf("producer wrote a directory at %s", tmp)
	}

	err = os.Rename(tmp, dst)
	observe().ObserveOperation(volume, "rename", time.Since(start).Seconds(), err)
	if err != nil {
		removePartial(tmp)
		return fmt.Errorf("failed to publish %s: %w", dst, err)
	}
	return nil
}

// WriteFileAtomic writes data to dst via a temporary sibling and rename.
func WriteFileAtomic(dst string, data []byte, perm os.FileMode) error {
	start := time.Now()
	volume := defaultResolver.Resolve(dst)
	err := Publish(dst, func(tmp string) error {
		f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
	observe().ObserveOperation(volume, "write", time.Since(start).Seconds(), err)
	return err
}

func removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove partial output %s: %v", path, err)
	}
}
