package pdf

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spherical/newspaper-digest/internal/domain"
)

// DefaultMaxUploadBytes is the upload limit when none is configured.
const DefaultMaxUploadBytes = 50 << 20

var pdfMagic = []byte("%PDF-")

// Validator provides input validation for uploaded PDF files
type Validator struct {
	maxBytes int64
}

// NewValidator creates a validator; maxBytes <= 0 selects the default.
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Validator{maxBytes: maxBytes}
}

// ValidateSource checks an upload before it is stored.
func (v *Validator) ValidateSource(name string, data []byte) error {
	if strings.TrimSpace(name) == "" {
		return domain.ValidationError("file name cannot be empty", nil)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".pdf" {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %q)", ext), nil)
	}

	if len(data) == 0 {
		return domain.ValidationError("file is empty", nil)
	}

	if int64(len(data)) > v.maxBytes {
		return domain.ValidationError(
			fmt.Sprintf("file is %d bytes, maximum is %d MB", len(data), v.maxBytes>>20), nil)
	}

	if !bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], "\x00\t\r\n "), pdfMagic) {
		return domain.ValidationError("file does not start with a PDF header", nil)
	}

	return nil
}

// ValidateQuality validates image quality parameter
func (v *Validator) ValidateQuality(quality int) error {
	if quality < 1 || quality > 100 {
		return domain.ValidationError(fmt.Sprintf("quality must be between 1 and 100, got %d", quality), nil)
	}
	return nil
}
