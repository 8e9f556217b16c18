package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/zhangwei317/signproxy/pkg/signing"
)

// HealthHandler reports liveness.
type HealthHandler struct{}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// ServeHTTP implements the http.Handler interface.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// AccountsHandler lists the addresses the proxy signs for. Addresses
// only; key material never leaves the process.
type AccountsHandler struct {
	registry signing.Registry
}

// NewAccountsHandler creates a new AccountsHandler over registry.
func NewAccountsHandler(registry signing.Registry) *AccountsHandler {
	return &AccountsHandler{registry: registry}
}

// ServeHTTP implements the http.Handler interface.
func (h *AccountsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	addrs := h.registry.Addresses()
	hexAddrs := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		hexAddrs = append(hexAddrs, addr.Hex())
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(hexAddrs); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
