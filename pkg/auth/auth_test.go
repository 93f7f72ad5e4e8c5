package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newKeys(t *testing.T) (*Keys, string) {
	t.Helper()

	key, err := GenerateKey()
	require.NoError(t, err)
	hash, err := HashKey(key, bcrypt.MinCost)
	require.NoError(t, err)

	keys, err := NewKeys(hash)
	require.NoError(t, err)
	return keys, key
}

func TestValidate(t *testing.T) {
	keys, key := newKeys(t)

	assert.NoError(t, keys.Validate(key))
	assert.ErrorIs(t, keys.Validate(""), ErrMissingKey)
	assert.ErrorIs(t, keys.Validate(key+"x"), ErrInvalidKey)
}

func TestNewKeysRejectsPlainText(t *testing.T) {
	_, err := NewKeys("not-a-hash")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	keys, key := newKeys(t)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		keys   *Keys
		header string
		value  string
		want   int
	}{
		{"bearer", keys, "Authorization", "Bearer " + key, http.StatusNoContent},
		{"api key header", keys, APIKeyHeader, key, http.StatusNoContent},
		{"wrong key", keys, APIKeyHeader, "nope", http.StatusUnauthorized},
		{"missing key", keys, "", "", http.StatusUnauthorized},
		{"basic auth ignored", keys, "Authorization", "Basic " + key, http.StatusUnauthorized},
		{"no keys configured", nil, "", "", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/timers/enable", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rr := httptest.NewRecorder()
			Middleware(tt.keys)(ok).ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rr.Body.String(), "unauthorized")
			}
		})
	}
}
