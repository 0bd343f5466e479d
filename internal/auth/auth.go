package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingBearer = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
)

const Issuer = "geogate-static"

type Claims struct {
	Subject string
	Issuer  string
	Token   string
}

type Authenticator interface {
	Authenticate(r *http.Request) (Claims, error)
}

type staticToken struct {
	subject string
	secret  []byte
}

// StaticAuthenticator accepts a fixed set of bearer tokens. Entries of the
// form "subject:secret" name the caller; bare secrets get a fingerprint
// subject. With no tokens configured every request is anonymous.
type StaticAuthenticator struct {
	tokens []staticToken
}

func NewStaticAuthenticator(entries []string) *StaticAuthenticator {
	a := &StaticAuthenticator{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		subject, secret, ok := strings.Cut(entry, ":")
		if !ok || subject == "" || secret == "" {
			secret = entry
			subject = fingerprint(entry)
		}
		a.tokens = append(a.tokens, staticToken{subject: subject, secret: []byte(secret)})
	}
	return a
}

// Open reports whether authentication is disabled.
func (a *StaticAuthenticator) Open() bool {
	return len(a.tokens) == 0
}

func (a *StaticAuthenticator) Authenticate(r *http.Request) (Claims, error) {
	if a.Open() {
		return Claims{Subject: "anonymous", Issuer: Issuer}, nil
	}

	bearer, err := extractBearer(r)
	if err != nil {
		return Claims{}, err
	}

	for _, tok := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(bearer), tok.secret) == 1 {
			return Claims{Subject: tok.subject, Issuer: Issuer, Token: bearer}, nil
		}
	}
	return Claims{}, ErrInvalidToken
}

func fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return "token-" + hex.EncodeToString(sum[:4])
}

func extractBearer(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", ErrMissingBearer
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}

type claimsKey struct{}

// Middleware rejects unauthenticated requests with 401 and stores the
// claims on the request context.
func Middleware(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.Authenticate(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFrom(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(Claims)
	return c, ok
}
