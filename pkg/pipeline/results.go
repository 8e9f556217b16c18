package pipeline

import "context"

// ResultFunc produces a canned result for an intercepted method.
type ResultFunc func(method string, params []interface{}) interface{}

// ResultGenerator returns a middleware that answers the listed methods
// locally and forwards everything else. It is the standard harness for
// exercising other middlewares without a live node.
func ResultGenerator(results map[string]ResultFunc) Middleware {
	return func(next RequestFunc) RequestFunc {
		return func(ctx context.Context, method string, params []interface{}) (interface{}, error) {
			if fn, ok := results[method]; ok {
				return fn(method, params), nil
			}
			return next(ctx, method, params)
		}
	}
}
