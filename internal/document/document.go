package document

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/go-pdf/fpdf"
	"github.com/ledongthuc/pdf"

	"uniconverter/internal/failure"
	"uniconverter/internal/formats"
	"uniconverter/internal/logging"
)

const (
	// BackendName is the capability name of the document backend.
	BackendName = "document"

	// DefaultDPI is the page rendering resolution.
	DefaultDPI = 150

	// MaxSelectedPages bounds an explicit page selection.
	MaxSelectedPages = 10000

	fontSize   = 10.0
	lineHeight = 4.5
)

// Converter is the document backend.
type Converter struct {
	dpi float64
}

// New returns a document converter rendering pages at dpi (DefaultDPI when
// zero).
func New(dpi float64) *Converter {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Converter{dpi: dpi}
}

// Name implements the capability registry contract.
func (c *Converter) Name() string { return BackendName }

// Available is always true; every engine is linked in.
func (c *Converter) Available() bool { return true }

// Convert handles pdf→txt and txt→pdf.
func (c *Converter) Convert(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	srcExt, dstExt := formats.ExtOf(src), formats.ExtOf(dst)
	switch {
	case srcExt == "pdf" && dstExt == "txt":
		return extractText(src, dst)
	case srcExt == "txt" && dstExt == "pdf":
		return renderText(src, dst)
	}
	return failure.New(failure.KindUnsupportedConversion, "document cannot convert %s to %s", srcExt, dstExt)
}

func extractText(src, dst string) error {
	f, r, err := pdf.Open(src)
	if err != nil {
		return failure.Wrap(failure.KindBackendExecutionFailed, err, "open %s", filepath.Base(src))
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return failure.Wrap(failure.KindBackendExecutionFailed, err, "extract text from %s", filepath.Base(src))
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return failure.Wrap(failure.KindBackendExecutionFailed, err, "extract text from %s", filepath.Base(src))
	}

	logging.Debug("document: extracted %d bytes of text from %d pages", buf.Len(), r.NumPage())
	return os.WriteFile(dst, buf.Bytes(), 0o644)
}

func renderText(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(filepath.Base(src), true)
	doc.SetFont("Courier", "", fontSize)
	doc.AddPage()

	// core fonts are cp1252; runes outside it are dropped
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.MultiCell(0, lineHeight, tr(text), "", "L", false)

	if err := doc.OutputFileAndClose(dst); err != nil {
		return failure.Wrap(failure.KindBackendExecutionFailed, err, "write pdf")
	}
	return nil
}

// PageCount returns the number of pages in a PDF.
func (c *Converter) PageCount(src string) (int, error) {
	doc, err := fitz.New(src)
	if err != nil {
		return 0, failure.Wrap(failure.KindBackendExecutionFailed, err, "open %s", filepath.Base(src))
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// RenderPages rasterizes the selected 1-based pages of src in order, calling
// fn for each. An empty selection renders every page. It returns the number
// of pages rendered.
func (c *Converter) RenderPages(ctx context.Context, src string, selection []int, fn func(page int, img image.Image) error) (int, error) {
	doc, err := fitz.New(src)
	if err != nil {
		return 0, failure.Wrap(failure.KindBackendExecutionFailed, err, "open %s", filepath.Base(src))
	}
	defer doc.Close()

	pages, err := selectPages(doc.NumPage(), selection)
	if err != nil {
		return 0, err
	}

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		img, err := doc.ImageDPI(page-1, c.dpi)
		if err != nil {
			return i, failure.Wrap(failure.KindBackendExecutionFailed, err, "render page %d", page)
		}
		if err := fn(page, img); err != nil {
			return i, err
		}
	}
	return len(pages), nil
}

// selectPages validates a 1-based page selection against total.
func selectPages(total int, selection []int) ([]int, error) {
	if len(selection) == 0 {
		pages := make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, nil
	}

	seen := make(map[int]bool, len(selection))
	pages := make([]int, 0, len(selection))
	for _, p := range selection {
		if p < 1 || p > total {
			return nil, failure.New(failure.KindInvalidRequest, "page %d out of range 1-%d", p, total)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		pages = append(pages, p)
	}
	return pages, nil
}

// ParsePages parses a selection such as "1,3-5" into page numbers.
// Selections naming more than MaxSelectedPages pages are rejected.
func ParsePages(expr string) ([]int, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			hi = lo
		}
		from, errFrom := strconv.Atoi(strings.TrimSpace(lo))
		to, errTo := strconv.Atoi(strings.TrimSpace(hi))
		if errFrom != nil || errTo != nil || from > to {
			return nil, failure.New(failure.KindInvalidRequest, "bad page selection %q", part)
		}
		if from < 1 {
			return nil, failure.New(failure.KindInvalidRequest, "pages start at 1, got %q", part)
		}
		if to-from >= MaxSelectedPages-len(pages) {
			return nil, failure.New(failure.KindInvalidRequest, "page selection exceeds %d pages", MaxSelectedPages)
		}
		for p := from; p <= to; p++ {
			pages = append(pages, p)
		}
	}
	return pages, nil
}
