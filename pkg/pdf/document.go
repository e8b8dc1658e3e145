// Package pdf adapts pdfcpu into the document-container collaborator:
// it yields decoded pages (boundary rectangle, content stream, resource
// dictionary) and resolves indirect resource objects for the analyzer.
// All container I/O happens here; the interpreter core is pure traversal.
package pdf

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/inkspect/inkspect/pkg/logging"
)

// Document gives ordered access to the pages of an open PDF.
type Document interface {
	// PageCount returns the total number of pages.
	PageCount() int

	// GetPage returns a specific page by index (0-based).
	GetPage(index int) (*Page, error)

	// GetPages returns all pages that loaded successfully.
	GetPages() []*Page

	// PageErrors returns per-page load failures keyed by 1-based
	// page number. Pages that failed to load are absent from
	// GetPages but the rest of the document remains usable.
	PageErrors() map[int]error

	// Close releases resources associated with the document.
	Close() error
}

// pdfcpuDocument implements Document using pdfcpu.
type pdfcpuDocument struct {
	ctx      *model.Context
	filepath string
	pages    []*Page
	pageErrs map[int]error
}

// Open opens a PDF file and returns a Document.
func Open(filepath string) (Document, error) {
	return OpenWithPassword(filepath, "")
}

// OpenWithPassword opens a password-protected PDF file.
func OpenWithPassword(filepath string, password string) (Document, error) {
	conf := model.NewDefaultConfiguration()
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}

	f, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}

	doc := &pdfcpuDocument{
		ctx:      ctx,
		filepath: filepath,
		pageErrs: map[int]error{},
	}

	doc.loadPages()

	return doc, nil
}

// loadPages builds every page up front. A page that fails to build is
// recorded and skipped; the rest of the document still loads.
func (d *pdfcpuDocument) loadPages() {
	pageCount := d.ctx.PageCount
	d.pages = make([]*Page, 0, pageCount)

	for i := 1; i <= pageCount; i++ {
		page, err := newPage(d.ctx, i)
		if err != nil {
			logging.Logger().Warn("failed to load page", "page", i, "err", err)
			d.pageErrs[i] = err
			continue
		}
		d.pages = append(d.pages, page)
	}
}

// PageCount returns the total number of pages in the document,
// including pages that failed to load.
func (d *pdfcpuDocument) PageCount() int {
	return d.ctx.PageCount
}

// GetPage returns a loaded page by 0-based index.
func (d *pdfcpuDocument) GetPage(index int) (*Page, error) {
	if index < 0 || index >= len(d.pages) {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, len(d.pages))
	}
	return d.pages[index], nil
}

// GetPages returns all pages that loaded successfully.
func (d *pdfcpuDocument) GetPages() []*Page {
	return d.pages
}

// PageErrors returns per-page load failures.
func (d *pdfcpuDocument) PageErrors() map[int]error {
	return d.pageErrs
}

// Close releases resources associated with the document.
func (d *pdfcpuDocument) Close() error {
	d.ctx = nil
	d.pages = nil
	return nil
}
