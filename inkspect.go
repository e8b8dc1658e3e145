// Package inkspect analyzes the vector content of PDF documents and
// reports every color used in painting or text operations, with
// opacity, millimeter geometry and page-boundary classification.
// Downstream quality gates use the report to verify a document sticks
// to a restricted palette before manufacturing.
package inkspect

import (
	"runtime"
	"sync"

	"github.com/inkspect/inkspect/pkg/content"
	"github.com/inkspect/inkspect/pkg/pdf"
	"github.com/inkspect/inkspect/pkg/report"
)

// Re-export the result types for public API convenience.
type (
	Report     = report.Report
	ColorEvent = report.ColorEvent
	ColorRef   = report.ColorRef
	PageError  = report.PageError
	Document   = pdf.Document
)

type config struct {
	maxFormDepth int
	workers      int
}

// Option configures an analysis run.
type Option func(*config)

// WithMaxFormDepth caps nested form XObject recursion per page.
func WithMaxFormDepth(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxFormDepth = n
		}
	}
}

// WithWorkers sets how many pages are analyzed concurrently.
// Defaults to runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// Open opens a PDF file for analysis.
func Open(filepath string) (pdf.Document, error) {
	return pdf.Open(filepath)
}

// OpenWithPassword opens a password-protected PDF file for analysis.
func OpenWithPassword(filepath, password string) (pdf.Document, error) {
	return pdf.OpenWithPassword(filepath, password)
}

// Analyze opens a PDF file and analyzes every page. Container-level
// failures return an error; per-page failures are recorded on the
// report and the remaining pages are still analyzed.
func Analyze(filepath string, opts ...Option) (*report.Report, error) {
	doc, err := pdf.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	return AnalyzeDocument(doc, opts...), nil
}

// AnalyzeDocument analyzes all pages of an already-open document.
// Pages are independent and fan out to a bounded worker pool; the
// report builder serializes aggregation.
func AnalyzeDocument(doc pdf.Document, opts ...Option) *report.Report {
	cfg := &config{
		maxFormDepth: content.DefaultMaxFormDepth,
		workers:      runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	builder := report.NewBuilder()
	for pageNum, err := range doc.PageErrors() {
		builder.AddPageError(pageNum, err)
	}

	pages := doc.GetPages()
	jobs := make(chan *pdf.Page)
	var wg sync.WaitGroup

	workers := cfg.workers
	if workers > len(pages) {
		workers = len(pages)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range jobs {
				analyzePage(page, cfg, builder)
			}
		}()
	}

	for _, page := range pages {
		jobs <- page
	}
	close(jobs)
	wg.Wait()

	return builder.Finalize()
}

// analyzePage runs one interpreter pass and submits the result.
func analyzePage(page *pdf.Page, cfg *config, builder *report.Builder) {
	interp := content.NewInterpreter(page)
	interp.SetMaxFormDepth(cfg.maxFormDepth)

	events, err := interp.Run()
	if err != nil {
		builder.AddPageError(page.Number, err)
		return
	}
	builder.AddPage(page.Number, events)
}
