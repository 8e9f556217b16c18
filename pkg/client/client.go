// Package client wraps a go-ethereum RPC connection with a middleware
// pipeline, so that every outgoing call passes through the configured
// stack before it reaches the node.
package client

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/zhangwei317/signproxy/pkg/pipeline"
	"github.com/zhangwei317/signproxy/pkg/signing"
)

// Client is a JSON-RPC client whose calls run through a middleware chain.
type Client struct {
	rpc  *rpc.Client
	call pipeline.RequestFunc
}

// Dial connects to the node at url and installs the given middlewares,
// outermost first.
func Dial(ctx context.Context, url string, middlewares ...pipeline.Middleware) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", url)
	}
	return NewClient(rpcClient, middlewares...), nil
}

// NewClient wraps an existing RPC connection.
func NewClient(rpcClient *rpc.Client, middlewares ...pipeline.Middleware) *Client {
	return &Client{
		rpc:  rpcClient,
		call: pipeline.Chain(Transport(rpcClient), middlewares...),
	}
}

// Transport adapts an rpc.Client into the innermost pipeline stage.
// Results come back undecoded as json.RawMessage.
func Transport(rpcClient *rpc.Client) pipeline.RequestFunc {
	return func(ctx context.Context, method string, params []interface{}) (interface{}, error) {
		var raw json.RawMessage
		if err := rpcClient.CallContext(ctx, &raw, method, params...); err != nil {
			return nil, err
		}
		return raw, nil
	}
}

// Call dispatches method through the middleware chain and decodes the
// result into result, which must be a pointer (or nil to discard).
func (c *Client) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	res, err := c.call(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil || res == nil {
		return nil
	}
	raw, ok := res.(json.RawMessage)
	if !ok {
		// A middleware answered with an in-process value.
		raw, err = json.Marshal(res)
		if err != nil {
			return errors.Wrap(err, "failed to re-encode middleware result")
		}
	}
	return json.Unmarshal(raw, result)
}

// SendTransaction submits tx via eth_sendTransaction. With a signing
// middleware installed and a managed "from", the node only ever sees the
// signed raw transaction.
func (c *Client) SendTransaction(ctx context.Context, tx signing.TransactionRequest) (common.Hash, error) {
	var hash common.Hash
	err := c.Call(ctx, &hash, signing.MethodSendTransaction, tx)
	return hash, err
}

// ChainID queries the chain id of the connected node.
func (c *Client) ChainID(ctx context.Context) (*hexutil.Big, error) {
	var id hexutil.Big
	if err := c.Call(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}
	return &id, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}
