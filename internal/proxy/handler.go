// Package proxy exposes the middleware pipeline as a JSON-RPC HTTP
// endpoint: requests are decoded, run through the pipeline (where the
// signing middleware rewrites eligible eth_sendTransaction calls), and
// the upstream node's answer is relayed back.
package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"

	"github.com/zhangwei317/signproxy/pkg/pipeline"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  []interface{}   `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const serverErrorCode = -32000

// RPCHandler serves JSON-RPC over HTTP through a request pipeline.
type RPCHandler struct {
	call pipeline.RequestFunc
}

// NewRPCHandler creates an RPCHandler dispatching into call.
func NewRPCHandler(call pipeline.RequestFunc) *RPCHandler {
	return &RPCHandler{call: call}
}

// ServeHTTP implements the http.Handler interface.
func (h *RPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32700, Message: "parse error: " + err.Error()},
		})
		return
	}

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	result, err := h.call(r.Context(), req.Method, req.Params)
	if err != nil {
		log.Debug().Err(err).Str("method", req.Method).Msg("request failed")
		resp.Error = &rpcError{Code: errorCode(err), Message: err.Error()}
	} else {
		resp.Result = result
	}
	writeResponse(w, resp)
}

// errorCode preserves the upstream node's JSON-RPC error code when the
// failure carries one.
func errorCode(err error) int {
	if rpcErr, ok := err.(rpc.Error); ok {
		return rpcErr.ErrorCode()
	}
	return serverErrorCode
}

func writeResponse(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}
