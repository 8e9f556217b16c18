package server

import (
	"net/http"
	"time"
)

// NewServer creates and configures an HTTP server.
func NewServer(handler http.Handler, address, port string) *http.Server {
	return &http.Server{
		Addr:         address + ":" + port,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
