package pdf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/pdf/pdftest"
)

func TestValidateSource(t *testing.T) {
	valid := pdftest.Build(1)

	tests := []struct {
		name    string
		file    string
		data    []byte
		max     int64
		wantErr bool
	}{
		{"valid", "paper.pdf", valid, 0, false},
		{"upper case extension", "PAPER.PDF", valid, 0, false},
		{"empty name", " ", valid, 0, true},
		{"wrong extension", "paper.docx", valid, 0, true},
		{"empty file", "paper.pdf", nil, 0, true},
		{"too large", "paper.pdf", valid, 16, true},
		{"not a pdf", "paper.pdf", bytes.Repeat([]byte("x"), 64), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidator(tt.max).ValidateSource(tt.file, tt.data)
			if tt.wantErr {
				assert.True(t, domain.IsType(err, domain.ErrorTypeValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateQuality(t *testing.T) {
	v := NewValidator(0)
	assert.NoError(t, v.ValidateQuality(85))
	assert.Error(t, v.ValidateQuality(0))
	assert.Error(t, v.ValidateQuality(101))
}
