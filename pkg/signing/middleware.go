// Package signing provides a sign-and-send-raw middleware for an
// Ethereum JSON-RPC pipeline. It intercepts eth_sendTransaction calls
// whose sender is covered by a locally held key, signs them, and
// forwards them as eth_sendRawTransaction. Everything else, including
// transactions for unmanaged senders, passes through untouched and is
// left to the remote node.
package signing

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/zhangwei317/signproxy/pkg/pipeline"
)

// RPC method names handled by the middleware.
const (
	MethodSendTransaction    = "eth_sendTransaction"
	MethodSendRawTransaction = "eth_sendRawTransaction"
	methodChainID            = "eth_chainId"
)

// SignAndSendRaw builds the middleware from any Normalize-accepted key
// input. Key normalization errors surface here, at construction, never
// during request processing.
func SignAndSendRaw(keys interface{}) (pipeline.Middleware, error) {
	registry, err := Normalize(keys)
	if err != nil {
		return nil, err
	}
	return NewMiddleware(registry), nil
}

// NewMiddleware builds the middleware over an existing registry. The
// registry is captured as-is and must not be mutated afterwards; the
// returned middleware is safe for concurrent use.
func NewMiddleware(registry Registry) pipeline.Middleware {
	return func(next pipeline.RequestFunc) pipeline.RequestFunc {
		return func(ctx context.Context, method string, params []interface{}) (interface{}, error) {
			if method != MethodSendTransaction || len(params) != 1 {
				return next(ctx, method, params)
			}
			tx, ok := transactionParam(params[0])
			if !ok {
				return next(ctx, method, params)
			}
			from, ok, err := tx.Sender()
			if err != nil {
				return nil, err
			}
			if !ok {
				// No sender given; picking a default signer is not
				// this middleware's job.
				return next(ctx, method, params)
			}
			acct, managed := registry.Lookup(from)
			if !managed {
				return next(ctx, method, params)
			}

			raw, err := sign(ctx, tx, acct, next)
			if err != nil {
				return nil, err
			}
			return next(ctx, MethodSendRawTransaction, []interface{}{raw})
		}
	}
}

func sign(ctx context.Context, tx TransactionRequest, acct *Account, next pipeline.RequestFunc) (hexutil.Bytes, error) {
	chainID, err := resolveChainID(ctx, tx, next)
	if err != nil {
		return nil, err
	}
	assembled, err := Assemble(tx, chainID)
	if err != nil {
		return nil, err
	}
	signed, err := types.SignTx(assembled, types.LatestSignerForChainID(chainID), acct.priv)
	if err != nil {
		return nil, err
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// resolveChainID prefers the request's explicit chainId and otherwise
// asks the downstream chain once.
func resolveChainID(ctx context.Context, tx TransactionRequest, next pipeline.RequestFunc) (*big.Int, error) {
	chainID, err := tx.ChainID()
	if err != nil || chainID != nil {
		return chainID, err
	}
	result, err := next(ctx, methodChainID, nil)
	if err != nil {
		return nil, err
	}
	return toBig(result)
}

func transactionParam(param interface{}) (TransactionRequest, bool) {
	switch tx := param.(type) {
	case TransactionRequest:
		return tx, true
	case map[string]interface{}:
		return TransactionRequest(tx), true
	default:
		return nil, false
	}
}
