// Package pdf splits newspaper PDFs into standalone single-page documents.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/spherical/newspaper-digest/internal/domain"
)

var disableConfigDir sync.Once

// Splitter opens source PDFs for page extraction.
type Splitter struct {
	conf *model.Configuration
}

// NewSplitter creates a splitter with pdfcpu's relaxed validation.
func NewSplitter() *Splitter {
	// pdfcpu otherwise writes a config directory under the user's home
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Splitter{conf: conf}
}

// Document is a parsed source PDF whose pages are produced on demand.
type Document struct {
	ctx       *model.Context
	pageCount int
	err       error
}

// Open parses src. It fails with a malformed document error when the bytes
// are not a readable PDF or contain no pages.
func (s *Splitter) Open(src []byte) (doc *Document, err error) {
	if len(src) == 0 {
		return nil, domain.MalformedDocumentError("source PDF is empty", nil)
	}

	// pdfcpu panics on some truncated inputs
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = domain.MalformedDocumentError("failed to parse PDF", fmt.Errorf("%v", r))
		}
	}()

	pdfContext, err := api.ReadValidateAndOptimize(bytes.NewReader(src), s.conf)
	if err != nil {
		return nil, domain.MalformedDocumentError("failed to parse PDF", err)
	}

	if pdfContext.PageCount <= 0 {
		return nil, domain.MalformedDocumentError("PDF has no pages", nil)
	}

	return &Document{ctx: pdfContext, pageCount: pdfContext.PageCount}, nil
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return d.pageCount
}

// Page returns page n (1-based) as a standalone single-page PDF.
func (d *Document) Page(n int) ([]byte, error) {
	if n < 1 || n > d.pageCount {
		return nil, domain.MalformedDocumentError(fmt.Sprintf("page %d out of range 1..%d", n, d.pageCount), nil)
	}

	r, err := api.ExtractPage(d.ctx, n)
	if err != nil {
		return nil, domain.MalformedDocumentError(fmt.Sprintf("failed to extract page %d", n), err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.MalformedDocumentError(fmt.Sprintf("failed to read page %d", n), err)
	}

	return data, nil
}

// Pages yields every page in order. Iteration stops at the first failure,
// which is then available from Err.
func (d *Document) Pages() iter.Seq2[int, []byte] {
	return func(yield func(int, []byte) bool) {
		d.err = nil
		for n := 1; n <= d.pageCount; n++ {
			data, err := d.Page(n)
			if err != nil {
				d.err = err
				return
			}
			if !yield(n, data) {
				return
			}
		}
	}
}

// Err returns the failure that stopped the last Pages iteration.
func (d *Document) Err() error {
	return d.err
}
