// Package middleware holds HTTP-level middleware for the proxy server.
// Pipeline-level RPC middleware lives in pkg/pipeline and pkg/signing.
package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	apiKeyHeader    = "X-API-Key"
	signatureHeader = "X-Signature"
	timestampHeader = "X-Timestamp"
	maxTimeSkew     = 60 // seconds
)

// AuthMiddleware provides HMAC-based authentication for proxy requests.
type AuthMiddleware struct {
	apiKey    string
	apiSecret string
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(apiKey, apiSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

// Wrap wraps an http.Handler with authentication.
func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(apiKeyHeader) != m.apiKey {
			http.Error(w, "Invalid API Key", http.StatusUnauthorized)
			return
		}

		timestampStr := r.Header.Get(timestampHeader)
		timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
		if err != nil {
			http.Error(w, "Missing or invalid timestamp header", http.StatusUnauthorized)
			return
		}
		if time.Now().Unix()-timestamp > maxTimeSkew {
			http.Error(w, "Timestamp expired", http.StatusUnauthorized)
			return
		}

		requestSignature := r.Header.Get(signatureHeader)
		if requestSignature == "" {
			http.Error(w, "Missing signature header", http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusInternalServerError)
			return
		}
		// Restore the body so the next handler can read it
		r.Body = io.NopCloser(bytes.NewBuffer(body))

		if !m.validSignature(requestSignature, timestampStr, body) {
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) validSignature(signature, timestamp string, body []byte) bool {
	mac := hmac.New(sha256.New, []byte(m.apiSecret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
