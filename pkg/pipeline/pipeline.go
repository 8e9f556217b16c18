package pipeline

import (
	"context"

	"github.com/pkg/errors"
)

// RequestFunc dispatches a single JSON-RPC call and returns its result.
// The innermost RequestFunc of a chain is the transport.
type RequestFunc func(ctx context.Context, method string, params []interface{}) (interface{}, error)

// Middleware wraps a RequestFunc with additional behavior. A middleware
// decides per call whether to forward to next, rewrite the call, or answer
// it directly.
type Middleware func(next RequestFunc) RequestFunc

// ErrUnsupportedMethod is returned by transports that cannot service a
// method. Middlewares never catch it; it surfaces to the caller as-is.
var ErrUnsupportedMethod = errors.New("the method is not available")

// Chain composes middlewares around a transport. The first middleware is
// the outermost: Chain(t, a, b) dispatches a -> b -> t.
func Chain(transport RequestFunc, middlewares ...Middleware) RequestFunc {
	handler := transport
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}
