package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(UserFromContext(r.Context()).String()))
	})
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := AuthConfig{Enabled: true, Secret: "s3cret", Issuer: "digest", Audience: "web"}
	id := uuid.New()

	tok, err := IssueToken(id, cfg, time.Minute)
	require.NoError(t, err)

	got, err := ValidateToken(tok, cfg)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ValidateToken(tok, AuthConfig{Secret: "other"})
	assert.Error(t, err, "wrong secret")

	_, err = ValidateToken(tok, AuthConfig{Secret: "s3cret", Audience: "mobile"})
	assert.Error(t, err, "wrong audience")

	expired, err := IssueToken(id, cfg, -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(expired, cfg)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	cfg := AuthConfig{Enabled: true, Secret: "s3cret"}
	handler := Auth(cfg)(echoUser())
	id := uuid.New()
	tok, err := IssueToken(id, cfg, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   uuid.UUID
	}{
		{"valid bearer", "Bearer " + tok, http.StatusOK, id},
		{"lowercase scheme", "bearer " + tok, http.StatusOK, id},
		{"anonymous", "", http.StatusOK, uuid.Nil},
		{"bad scheme", "Basic abc", http.StatusUnauthorized, uuid.Nil},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized, uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantUser.String(), rec.Body.String())
			}
		})
	}
}

func TestAuthDisabledUsesHeader(t *testing.T) {
	handler := Auth(AuthConfig{})(echoUser())
	id := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DevUserHeader, id.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, id.String(), rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(DevUserHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, uuid.Nil.String(), rec.Body.String())
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example"})(echoUser())

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
