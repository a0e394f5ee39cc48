package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPagePath(t *testing.T) {
	owner := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	paper := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	assert.Equal(t,
		"11111111-1111-1111-1111-111111111111/pages/22222222-2222-2222-2222-222222222222_page_3.pdf",
		PagePath(owner, paper, 3))
}

func TestSourcePath(t *testing.T) {
	owner := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	date := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "11111111-1111-1111-1111-111111111111/2025-03-07-the-hindu.pdf",
		SourcePath(owner, date, "the-hindu.pdf"))
	assert.Equal(t, "11111111-1111-1111-1111-111111111111/2025-03-07-evil.pdf",
		SourcePath(owner, date, "../../evil.pdf"))
}

func TestNewspaperPages(t *testing.T) {
	n := &Newspaper{ID: uuid.New(), UserID: uuid.New()}
	assert.Empty(t, n.Pages())
	assert.Equal(t, 0, n.PageCount())

	pages := 3
	n.TotalPages = &pages
	refs := n.Pages()
	assert.Len(t, refs, 3)
	for i, ref := range refs {
		assert.Equal(t, i+1, ref.PageNumber)
		assert.Equal(t, PagePath(n.UserID, n.ID, i+1), ref.Path)
		assert.Equal(t, n.ID, ref.NewspaperID)
	}
}

func TestOwnedBy(t *testing.T) {
	owner := uuid.New()
	n := &Newspaper{UserID: owner}
	assert.True(t, n.OwnedBy(owner))
	assert.False(t, n.OwnedBy(uuid.New()))
	assert.False(t, n.OwnedBy(uuid.Nil))
}

func TestParseGSPaper(t *testing.T) {
	tests := []struct {
		in   string
		want GSPaper
		ok   bool
	}{
		{"GS1", GS1, true},
		{"gs2", GS2, true},
		{" GS 3 ", GS3, true},
		{"GS5", "", false},
		{"Prelims", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseGSPaper(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalTopic(t *testing.T) {
	topic, ok := CanonicalTopic("climate change")
	assert.True(t, ok)
	assert.Equal(t, "Climate Change", topic)

	_, ok = CanonicalTopic("Cricket")
	assert.False(t, ok)
}

func TestTaxonomySize(t *testing.T) {
	assert.Len(t, GSTopics[GS1], 18)
	assert.Len(t, GSTopics[GS2], 25)
	assert.Len(t, GSTopics[GS3], 31)
	assert.Len(t, GSTopics[GS4], 17)
}

func TestDomainErrorHelpers(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", StorageError("upload page 2", base))

	assert.Equal(t, ErrorTypeStorage, TypeOf(err))
	assert.True(t, IsType(err, ErrorTypeStorage))
	assert.False(t, IsType(err, ErrorTypePersistence))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, ErrorType(""), TypeOf(base))
	assert.Contains(t, err.Error(), "[storage] upload page 2: boom")
}
