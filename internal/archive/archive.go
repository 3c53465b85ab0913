package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"uniconverter/internal/failure"
	"uniconverter/internal/formats"
	"uniconverter/internal/logging"
)

// BackendName is the capability name of the archive backend.
const BackendName = "archive"

// header is the format-neutral description of one archive entry.
type header struct {
	name    string
	mode    fs.FileMode
	modTime time.Time
	size    int64
	dir     bool
}

// source yields entries in archive order.
type source interface {
	walk(ctx context.Context, fn func(h header, r io.Reader) error) error
	Close() error
}

// sink accepts entries in order.
type sink interface {
	add(h header, r io.Reader) error
	Close() error
}

// Converter is the archive backend.
type Converter struct{}

// New returns an archive converter.
func New() *Converter { return &Converter{} }

// Name implements the capability registry contract.
func (c *Converter) Name() string { return BackendName }

// Available is always true.
func (c *Converter) Available() bool { return true }

// Convert repacks src into dst.
func (c *Converter) Convert(ctx context.Context, src, dst string) error {
	srcExt, dstExt := formats.ExtOf(src), formats.ExtOf(dst)

	var open func(string) (source, error)
	switch srcExt {
	case "zip":
		open = openZip
	case "tar.gz":
		open = openTarGz
	case "7z":
		open = open7z
	}
	var create func(io.Writer) sink
	switch dstExt {
	case "zip":
		create = newZipSink
	case "tar.gz":
		create = newTarGzSink
	}
	if open == nil || create == nil || srcExt == dstExt || (srcExt == "7z" && dstExt != "zip") {
		return failure.New(failure.KindUnsupportedConversion, "archive cannot convert %s to %s", srcExt, dstExt)
	}

	in, err := open(src)
	if err != nil {
		return failure.Wrap(failure.KindBackendExecutionFailed, err, "open %s archive", srcExt)
	}
	defer in.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	out := create(f)

	count := 0
	err = in.walk(ctx, func(h header, r io.Reader) error {
		count++
		return out.add(h, r)
	})
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return failure.Ensure(err, failure.KindBackendExecutionFailed, "repack %s to %s", srcExt, dstExt)
	}

	logging.Debug("archive: repacked %d entries from %s to %s", count, srcExt, dstExt)
	return nil
}

// File is a file on disk to be packed under Name.
type File struct {
	Name string
	Path string
}

// Pack writes files into a new zip archive at dst, in order.
func Pack(ctx context.Context, dst string, files []File) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	out := newZipSink(f)

	err = func() error {
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := packFile(out, file); err != nil {
				return err
			}
		}
		return nil
	}()
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

func packFile(out sink, file File) error {
	in, err := os.Open(file.Path)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	return out.add(header{
		name:    file.Name,
		mode:    info.Mode().Perm(),
		modTime: info.ModTime(),
		size:    info.Size(),
	}, in)
}

// cleanName validates an entry name and returns it in slash form.
func cleanName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	clean := path.Clean(strings.TrimSuffix(name, "/"))
	if clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("unsafe entry name %q", name)
	}
	return clean, nil
}

// zip

type zipSource struct {
	rc *zip.ReadCloser
}

func openZip(p string) (source, error) {
	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, err
	}
	// WinZip-style zstd entries
	rc.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
	return &zipSource{rc: rc}, nil
}

func (s *zipSource) walk(ctx context.Context, fn func(h header, r io.Reader) error) error {
	for _, f := range s.rc.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		h := header{
			name:    f.Name,
			mode:    f.Mode().Perm(),
			modTime: f.Modified,
			size:    int64(f.UncompressedSize64),
			dir:     f.FileInfo().IsDir(),
		}
		if h.dir {
			if err := fn(h, nil); err != nil {
				return err
			}
			continue
		}
		r, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		err = fn(h, r)
		r.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *zipSource) Close() error { return s.rc.Close() }

type zipSink struct {
	w *zip.Writer
}

func newZipSink(w io.Writer) sink {
	return &zipSink{w: zip.NewWriter(w)}
}

func (s *zipSink) add(h header, r io.Reader) error {
	name, err := cleanName(h.name)
	if err != nil {
		return err
	}
	fh := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: h.modTime,
	}
	if h.dir {
		fh.Name += "/"
		fh.Method = zip.Store
		fh.SetMode(fs.ModeDir | 0o755)
		_, err := s.w.CreateHeader(fh)
		return err
	}
	if h.mode != 0 {
		fh.SetMode(h.mode)
	}
	w, err := s.w.CreateHeader(fh)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}

func (s *zipSink) Close() error { return s.w.Close() }

// tar.gz

type tarGzSource struct {
	f  *os.File
	gz *gzip.Reader
}

func openTarGz(p string) (source, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &tarGzSource{f: f, gz: gz}, nil
}

func (s *tarGzSource) walk(ctx context.Context, fn func(h header, r io.Reader) error) error {
	tr := tar.NewReader(s.gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		th, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		h := header{
			name:    th.Name,
			mode:    fs.FileMode(th.Mode).Perm(),
			modTime: th.ModTime,
			size:    th.Size,
		}
		switch th.Typeflag {
		case tar.TypeDir:
			h.dir = true
			err = fn(h, nil)
		case tar.TypeReg:
			err = fn(h, tr)
		default:
			// links and devices have no zip equivalent
			logging.Debug("archive: skipping %s (type %c)", th.Name, th.Typeflag)
			continue
		}
		if err != nil {
			return err
		}
	}
}

func (s *tarGzSource) Close() error {
	s.gz.Close()
	return s.f.Close()
}

type tarGzSink struct {
	gz *gzip.Writer
	tw *tar.Writer
}

func newTarGzSink(w io.Writer) sink {
	gz := gzip.NewWriter(w)
	return &tarGzSink{gz: gz, tw: tar.NewWriter(gz)}
}

func (s *tarGzSink) add(h header, r io.Reader) error {
	name, err := cleanName(h.name)
	if err != nil {
		return err
	}
	mode := int64(h.mode)
	th := &tar.Header{
		Name:    name,
		ModTime: h.modTime,
		Format:  tar.FormatPAX,
	}
	if h.dir {
		th.Name += "/"
		th.Typeflag = tar.TypeDir
		th.Mode = 0o755
		return s.tw.WriteHeader(th)
	}
	if mode == 0 {
		mode = 0o644
	}
	th.Typeflag = tar.TypeReg
	th.Mode = mode
	th.Size = h.size
	if err := s.tw.WriteHeader(th); err != nil {
		return err
	}
	n, err := io.Copy(s.tw, r)
	if err != nil {
		return err
	}
	if n != h.size {
		return fmt.Errorf("entry %s: wrote %d bytes, header says %d", name, n, h.size)
	}
	return nil
}

func (s *tarGzSink) Close() error {
	if err := s.tw.Close(); err != nil {
		return err
	}
	return s.gz.Close()
}

// 7z

type sevenZipSource struct {
	rc *sevenzip.ReadCloser
}

func open7z(p string) (source, error) {
	rc, err := sevenzip.OpenReader(p)
	if err != nil {
		return nil, err
	}
	return &sevenZipSource{rc: rc}, nil
}

func (s *sevenZipSource) walk(ctx context.Context, fn func(h header, r io.Reader) error) error {
	for _, f := range s.rc.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		info := f.FileInfo()
		h := header{
			name:    f.Name,
			mode:    info.Mode().Perm(),
			modTime: f.Modified,
			size:    int64(f.UncompressedSize),
			dir:     info.IsDir(),
		}
		if h.dir {
			if err := fn(h, nil); err != nil {
				return err
			}
			continue
		}
		r, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		err = fn(h, r)
		r.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *sevenZipSource) Close() error { return s.rc.Close() }
