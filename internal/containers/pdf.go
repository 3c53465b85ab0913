package containers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFCodecName is the name of the PDF codec.
const PDFCodecName = "pdf"

// PDFCodec adds extras as embedded file attachments.
type PDFCodec struct {
	conf *model.Configuration
}

// NewPDFCodec returns a PDF codec that never touches pdfcpu's config dir.
func NewPDFCodec() *PDFCodec {
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFCodec{conf: conf}
}

// Name returns "pdf".
func (c *PDFCodec) Name() string { return PDFCodecName }

// Embed attaches every extra and validates the rewritten document.
func (c *PDFCodec) Embed(ctx context.Context, base []byte, extras []Extra) ([]byte, error) {
	if _, err := api.ReadContext(bytes.NewReader(base), c.conf); err != nil {
		return nil, integrity("pdf base unreadable: %v", err)
	}

	dir, err := os.MkdirTemp("", "polyglot-pdf-")
	if err != nil {
		return nil, fmt.Errorf("failed to stage attachments: %w", err)
	}
	defer os.RemoveAll(dir)

	paths, err := stageAttachments(dir, extras)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := api.AddAttachments(bytes.NewReader(base), &out, paths, false, c.conf); err != nil {
		return nil, integrity("pdf attach failed: %v", err)
	}

	check, err := api.ReadContext(bytes.NewReader(out.Bytes()), c.conf)
	if err != nil {
		return nil, integrity("pdf re-read failed: %v", err)
	}
	if err := api.ValidateContext(check); err != nil {
		return nil, integrity("pdf validation failed: %v", err)
	}
	return out.Bytes(), nil
}

// stageAttachments writes extras to dir under unique, path-free names.
func stageAttachments(dir string, extras []Extra) ([]string, error) {
	used := make(map[string]bool, len(extras))
	paths := make([]string, 0, len(extras))
	for i, e := range extras {
		name := attachmentName(e.Name, i)
		if used[name] {
			ext := filepath.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for n := 2; used[name]; n++ {
				name = fmt.Sprintf("%s-%d%s", stem, n, ext)
			}
		}
		used[name] = true

		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, e.Data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to stage %s: %w", name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func attachmentName(name string, i int) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return fmt.Sprintf("attachment-%d", i+1)
	}
	return name
}
