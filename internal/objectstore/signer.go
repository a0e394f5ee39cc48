package objectstore

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignPrefix is the URL path under which signed objects are served.
const SignPrefix = "/storage/v1/object/sign/"

// ErrInvalidToken is returned when a signed URL token fails verification.
var ErrInvalidToken = errors.New("invalid or expired object token")

type objectClaims struct {
	URL string `json:"url"`
	jwt.RegisteredClaims
}

// Signer issues and verifies time-limited object tokens.
type Signer struct {
	secret  []byte
	baseURL string
	now     func() time.Time
}

// NewSigner creates a signer. baseURL is the public origin of the API.
func NewSigner(secret, baseURL string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}
	return &Signer{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// Token returns a token granting read access to objectPath for ttl.
func (s *Signer) Token(objectPath string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := objectClaims{
		URL: objectPath,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// SignedURL returns the public URL for objectPath, valid for ttl.
func (s *Signer) SignedURL(objectPath string, ttl time.Duration) (string, error) {
	token, err := s.Token(objectPath, ttl)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", objectPath, err)
	}

	segments := strings.Split(objectPath, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + SignPrefix + strings.Join(segments, "/") + "?token=" + url.QueryEscape(token), nil
}

// Verify checks that token grants access to objectPath.
func (s *Signer) Verify(objectPath, token string) error {
	claims := &objectClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.URL != objectPath {
		return fmt.Errorf("%w: token is for a different object", ErrInvalidToken)
	}
	return nil
}
