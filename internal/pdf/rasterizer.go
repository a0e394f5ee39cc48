package pdf

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/newspaper-digest/internal/domain"
)

// Rasterizer renders single-page PDFs to JPEG using go-fitz
type Rasterizer struct {
	quality int
}

// NewRasterizer creates a rasterizer encoding at the given JPEG quality.
func NewRasterizer(quality int) (*Rasterizer, error) {
	if err := NewValidator(0).ValidateQuality(quality); err != nil {
		return nil, err
	}
	return &Rasterizer{quality: quality}, nil
}

// RenderJPEG renders the first page of a PDF as a JPEG image.
func (r *Rasterizer) RenderJPEG(page []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(page)
	if err != nil {
		return nil, domain.MalformedDocumentError("failed to open page PDF", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, domain.MalformedDocumentError("page PDF has no pages", nil)
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, domain.MalformedDocumentError("failed to render page", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return buf.Bytes(), nil
}
