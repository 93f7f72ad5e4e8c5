package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingKey = errors.New("missing API key")
	ErrInvalidKey = errors.New("invalid API key")
)

// APIKeyHeader is checked when no bearer token is present.
const APIKeyHeader = "X-API-Key"

// Keys holds bcrypt hashes of the API keys allowed to call guarded routes.
// Plain keys are never stored.
type Keys struct {
	mu     sync.RWMutex
	hashes [][]byte
}

// NewKeys creates a key set from bcrypt hashes. An empty set guards nothing.
func NewKeys(hashes ...string) (*Keys, error) {
	k := &Keys{}
	for _, h := range hashes {
		if err := k.AddHash(h); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// AddHash adds a bcrypt hash produced by HashKey.
func (k *Keys) AddHash(hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("invalid API key hash: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.hashes = append(k.hashes, []byte(hash))
	return nil
}

// Len returns the number of accepted keys.
func (k *Keys) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.hashes)
}

// Validate checks key against every stored hash.
func (k *Keys) Validate(key string) error {
	if key == "" {
		return ErrMissingKey
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	for _, h := range k.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			return nil
		}
	}
	return ErrInvalidKey
}

// GenerateKey returns a new random API key.
func GenerateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashKey hashes key for storage in configuration. cost <= 0 uses
// bcrypt.DefaultCost.
func HashKey(key string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// KeyFromRequest reads "Authorization: Bearer <key>" or the X-API-Key header.
func KeyFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.Header.Get(APIKeyHeader)
}

// Middleware rejects requests without a valid key. A nil or empty key set
// lets every request through.
func Middleware(keys *Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys == nil || keys.Len() == 0 {
				next.ServeHTTP(w, r)
				return
			}

			if err := keys.Validate(KeyFromRequest(r)); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="timers"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprintf(w, "{\"error\":\"unauthorized\",\"message\":%q}\n", err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
