package extract

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/llm"
	"github.com/spherical/newspaper-digest/internal/objectstore"
)

type fakeCapability struct {
	raw    string
	err    error
	inputs []domain.PageInput
}

func (f *fakeCapability) ExtractArticles(_ context.Context, page domain.PageInput) (json.RawMessage, error) {
	f.inputs = append(f.inputs, page)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.raw), nil
}

type fakeRasterizer struct{ err error }

func (f fakeRasterizer) RenderJPEG(page []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("jpeg:"), page...), nil
}

type brokenStorage struct{ *objectstore.MemoryStore }

func (brokenStorage) CreateSignedURL(context.Context, string, time.Duration) (string, error) {
	return "", errors.New("signer offline")
}

func (brokenStorage) Download(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk gone")
}

func setup(t *testing.T, mode InputMode, capability domain.ExtractionCapability) (*Worker, domain.PageRef) {
	t.Helper()
	store := objectstore.NewMemoryStore(nil)
	ref := domain.NewPageRef(uuid.New(), uuid.New(), 2)
	require.NoError(t, store.Upload(context.Background(), ref.Path, []byte("%PDF-page"), "application/pdf", true))

	w, err := NewWorker(store, capability, Config{Mode: mode, Rasterizer: fakeRasterizer{}}, nil)
	require.NoError(t, err)
	return w, ref
}

const twoArticles = `{"articles":[
	{"title":" RBI holds repo rate ","content":"The MPC kept rates unchanged.","gs_papers":["gs3","GS3","GS9"],
	 "gs_syllabus_topics":["indian economy","Monetary Policy"],"keywords":["repo","Repo",""],
	 "one_liner":"Rates unchanged","key_points":"- inflation","is_important":true},
	{"title":"Heatwave in north India","content":"IMD issues alert","gs_papers":["GS1","GS3"],"one_liner":""}
]}`

func TestExtractSignedURL(t *testing.T) {
	capability := &fakeCapability{raw: twoArticles}
	w, ref := setup(t, InputSignedURL, capability)

	result := w.Extract(context.Background(), ref)
	require.NoError(t, result.Failure)
	require.Len(t, result.Articles, 2)

	require.Len(t, capability.inputs, 1)
	assert.Equal(t, "memory://"+ref.Path, capability.inputs[0].URL)
	assert.Empty(t, capability.inputs[0].Data)
	assert.Equal(t, 2, capability.inputs[0].PageNumber)

	first := result.Articles[0]
	assert.Equal(t, "RBI holds repo rate", first.Title)
	assert.Equal(t, []domain.GSPaper{domain.GS3}, first.GSPapers)
	assert.Equal(t, []string{"Indian Economy", "Monetary Policy"}, first.GSSyllabusTopics)
	assert.Equal(t, []string{"repo"}, first.Keywords)
	require.NotNil(t, first.OneLiner)
	assert.Equal(t, "Rates unchanged", *first.OneLiner)
	assert.True(t, first.IsImportant)

	for _, a := range result.Articles {
		assert.Equal(t, ref.NewspaperID, a.NewspaperID)
		assert.Equal(t, ref.PageNumber, a.PageNumber)
		assert.Equal(t, ref.Path, a.PageFilePath)
		assert.NotEqual(t, uuid.Nil, a.ID)
	}

	second := result.Articles[1]
	assert.Nil(t, second.OneLiner)
	assert.Nil(t, second.PrelimsCard)
	assert.NotNil(t, second.Keywords)
	assert.Empty(t, second.Keywords)
}

func TestExtractInlineModes(t *testing.T) {
	t.Run("pdf", func(t *testing.T) {
		capability := &fakeCapability{raw: `{"articles":[]}`}
		w, ref := setup(t, InputInlinePDF, capability)

		result := w.Extract(context.Background(), ref)
		require.NoError(t, result.Failure)
		assert.Empty(t, result.Articles)
		assert.Equal(t, []byte("%PDF-page"), capability.inputs[0].Data)
		assert.Equal(t, "application/pdf", capability.inputs[0].MIMEType)
	})

	t.Run("image", func(t *testing.T) {
		capability := &fakeCapability{raw: `{"articles":[]}`}
		w, ref := setup(t, InputInlineImage, capability)

		result := w.Extract(context.Background(), ref)
		require.NoError(t, result.Failure)
		assert.Equal(t, []byte("jpeg:%PDF-page"), capability.inputs[0].Data)
		assert.Equal(t, "image/jpeg", capability.inputs[0].MIMEType)
	})
}

func TestExtractDropsIncompleteArticles(t *testing.T) {
	capability := &fakeCapability{raw: `{"articles":[
		{"title":"","content":"orphan body","gs_papers":["GS2"],"one_liner":"x"},
		{"title":"Headline only","gs_papers":["GS2"],"one_liner":"x"},
		{"title":"Complete","content":"Body"}
	]}`}
	w, ref := setup(t, InputSignedURL, capability)

	result := w.Extract(context.Background(), ref)
	require.NoError(t, result.Failure)
	assert.Equal(t, 2, result.Dropped)
	require.Len(t, result.Articles, 1)
	assert.Equal(t, "Complete", result.Articles[0].Title)
	assert.Empty(t, result.Articles[0].GSPapers)
}

func TestExtractFailureModes(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		err      error
		wantType domain.ErrorType
	}{
		{"capability unreachable", "", domain.APIError("extraction API returned status 503", nil), domain.ErrorTypeExtraction},
		{"no tool call", "", llm.ErrNoToolCall, domain.ErrorTypeExtraction},
		{"unparsable arguments", `{"articles": [`, nil, domain.ErrorTypeExtraction},
		{"missing articles key", `{"result": []}`, nil, domain.ErrorTypeExtraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, ref := setup(t, InputSignedURL, &fakeCapability{raw: tt.raw, err: tt.err})

			result := w.Extract(context.Background(), ref)
			require.Error(t, result.Failure)
			assert.Equal(t, tt.wantType, domain.TypeOf(result.Failure))
			assert.Empty(t, result.Articles)
		})
	}
}

func TestExtractStorageFailure(t *testing.T) {
	for _, mode := range []InputMode{InputSignedURL, InputInlinePDF} {
		t.Run(string(mode), func(t *testing.T) {
			capability := &fakeCapability{raw: `{"articles":[]}`}
			w, err := NewWorker(brokenStorage{objectstore.NewMemoryStore(nil)}, capability, Config{Mode: mode}, nil)
			require.NoError(t, err)

			result := w.Extract(context.Background(), domain.NewPageRef(uuid.New(), uuid.New(), 1))
			assert.True(t, domain.IsType(result.Failure, domain.ErrorTypeStorage))
			assert.Empty(t, capability.inputs)
		})
	}
}

func TestExtractRasterizerFailure(t *testing.T) {
	store := objectstore.NewMemoryStore(nil)
	ref := domain.NewPageRef(uuid.New(), uuid.New(), 1)
	require.NoError(t, store.Upload(context.Background(), ref.Path, []byte("%PDF"), "application/pdf", true))

	w, err := NewWorker(store, &fakeCapability{}, Config{Mode: InputInlineImage, Rasterizer: fakeRasterizer{err: errors.New("bad page")}}, nil)
	require.NoError(t, err)

	result := w.Extract(context.Background(), ref)
	assert.True(t, domain.IsType(result.Failure, domain.ErrorTypeExtraction))
}

func TestNewWorkerConfig(t *testing.T) {
	store := objectstore.NewMemoryStore(nil)

	_, err := NewWorker(store, &fakeCapability{}, Config{Mode: "fax"}, nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	_, err = NewWorker(store, &fakeCapability{}, Config{Mode: InputInlineImage}, nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	w, err := NewWorker(store, &fakeCapability{}, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, InputSignedURL, w.cfg.Mode)
	assert.Equal(t, DefaultSignedURLTTL, w.cfg.SignedURLTTL)
}
