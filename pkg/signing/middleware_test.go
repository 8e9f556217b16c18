package signing_test

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangwei317/signproxy/pkg/pipeline"
	"github.com/zhangwei317/signproxy/pkg/signing"
)

// recordingTransport answers a fixed method set and records every call
// that reaches it; everything else fails like a node that does not
// implement the method.
type recordingTransport struct {
	mu      sync.Mutex
	methods []string
	params  [][]interface{}
	results map[string]interface{}
}

func newRecordingTransport(results map[string]interface{}) *recordingTransport {
	return &recordingTransport{results: results}
}

func (rt *recordingTransport) request(ctx context.Context, method string, params []interface{}) (interface{}, error) {
	rt.mu.Lock()
	rt.methods = append(rt.methods, method)
	rt.params = append(rt.params, params)
	rt.mu.Unlock()

	if result, ok := rt.results[method]; ok {
		return result, nil
	}
	return nil, errors.Wrapf(pipeline.ErrUnsupportedMethod, "cannot make request for %s", method)
}

func (rt *recordingTransport) last() (string, []interface{}) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.methods) == 0 {
		return "", nil
	}
	return rt.methods[len(rt.methods)-1], rt.params[len(rt.params)-1]
}

func dummyResults() map[string]interface{} {
	return map[string]interface{}{
		signing.MethodSendRawTransaction: "0x0000000000000000000000000000000000000000000000000000000000000001",
		"eth_chainId":                    "0x02",
		"net_version":                    "1",
	}
}

func signingChain(t *testing.T, keys interface{}, transport *recordingTransport) pipeline.RequestFunc {
	t.Helper()
	mw, err := signing.SignAndSendRaw(keys)
	require.NoError(t, err)
	return pipeline.Chain(transport.request, mw)
}

func legacyTransaction(from interface{}) signing.TransactionRequest {
	return signing.TransactionRequest{
		"to":       "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf",
		"from":     from,
		"gas":      21000,
		"gasPrice": 0,
		"value":    1,
		"nonce":    0,
	}
}

func dynamicFeeTransaction(from interface{}, explicitType bool) signing.TransactionRequest {
	tx := legacyTransaction(from)
	delete(tx, "gasPrice")
	tx["maxFeePerGas"] = 2000000000
	tx["maxPriorityFeePerGas"] = 1000000000
	if explicitType {
		tx["type"] = "0x2"
	}
	return tx
}

// decodeForwardedTx asserts the transport saw a raw-send with exactly one
// non-empty bytes parameter and decodes it.
func decodeForwardedTx(t *testing.T, transport *recordingTransport) *types.Transaction {
	t.Helper()
	method, params := transport.last()
	require.Equal(t, signing.MethodSendRawTransaction, method)
	require.Len(t, params, 1)

	raw, ok := params[0].(hexutil.Bytes)
	require.True(t, ok, "raw transaction param is %T", params[0])
	require.NotEmpty(t, raw)

	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(raw))
	return &tx
}

func TestSignAndSendRawRewritesManagedSender(t *testing.T) {
	tests := []struct {
		name string
		tx   signing.TransactionRequest
		want uint8
	}{
		{"legacy", legacyTransaction(addressHex1), types.LegacyTxType},
		{"dynamic fee with explicit type", dynamicFeeTransaction(addressHex1, true), types.DynamicFeeTxType},
		{"dynamic fee with inferred type", dynamicFeeTransaction(addressHex1, false), types.DynamicFeeTxType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newRecordingTransport(dummyResults())
			call := signingChain(t, mixedRepresentations(t, privateKeyHex1), transport)

			result, err := call(context.Background(), signing.MethodSendTransaction, []interface{}{tt.tx})
			require.NoError(t, err)
			assert.Equal(t, dummyResults()[signing.MethodSendRawTransaction], result)

			tx := decodeForwardedTx(t, transport)
			assert.Equal(t, tt.want, tx.Type())

			signer := types.LatestSignerForChainID(big.NewInt(2))
			sender, err := types.Sender(signer, tx)
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(addressHex1), sender)
		})
	}
}

func TestSignAndSendRawUnmanagedSenderPassesThrough(t *testing.T) {
	transport := newRecordingTransport(dummyResults())
	call := signingChain(t, signing.HexKey(privateKeyHex1), transport)

	tx := legacyTransaction(addressHex2)
	_, err := call(context.Background(), signing.MethodSendTransaction, []interface{}{tx})
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrUnsupportedMethod)

	method, params := transport.last()
	assert.Equal(t, signing.MethodSendTransaction, method)
	require.Len(t, params, 1)
	assert.Equal(t, tx, params[0])
}

func TestSignAndSendRawMixedRegistryCoversBothSenders(t *testing.T) {
	keys := append(
		mixedRepresentations(t, privateKeyHex1),
		mixedRepresentations(t, privateKeyHex2)...,
	)
	for _, from := range []string{addressHex1, addressHex2} {
		transport := newRecordingTransport(dummyResults())
		call := signingChain(t, keys, transport)

		_, err := call(context.Background(), signing.MethodSendTransaction, []interface{}{legacyTransaction(from)})
		require.NoError(t, err)

		tx := decodeForwardedTx(t, transport)
		sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(2)), tx)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(from), sender)
	}
}

func TestSignAndSendRawByteAddressEquivalence(t *testing.T) {
	for _, from := range []interface{}{
		addressHex1,
		common.FromHex(addressHex1),
	} {
		transport := newRecordingTransport(dummyResults())
		call := signingChain(t, signing.HexKey(privateKeyHex1), transport)

		tx := legacyTransaction(from)
		tx["to"] = common.FromHex(addressHex2)

		_, err := call(context.Background(), signing.MethodSendTransaction, []interface{}{tx})
		require.NoError(t, err, "from %T", from)
		decodeForwardedTx(t, transport)
	}
}

func TestSignAndSendRawMissingSenderPassesThrough(t *testing.T) {
	transport := newRecordingTransport(dummyResults())
	call := signingChain(t, signing.HexKey(privateKeyHex1), transport)

	tx := legacyTransaction(addressHex1)
	delete(tx, "from")
	_, err := call(context.Background(), signing.MethodSendTransaction, []interface{}{tx})
	assert.ErrorIs(t, err, pipeline.ErrUnsupportedMethod)

	method, _ := transport.last()
	assert.Equal(t, signing.MethodSendTransaction, method)
}

func TestSignAndSendRawLeavesOtherMethodsAlone(t *testing.T) {
	transport := newRecordingTransport(dummyResults())
	call := signingChain(t, signing.HexKey(privateKeyHex1), transport)

	_, err := call(context.Background(), "eth_call", []interface{}{legacyTransaction(addressHex1)})
	assert.ErrorIs(t, err, pipeline.ErrUnsupportedMethod)

	method, _ := transport.last()
	assert.Equal(t, "eth_call", method)
}

func TestSignAndSendRawInvalidSender(t *testing.T) {
	transport := newRecordingTransport(dummyResults())
	call := signingChain(t, signing.HexKey(privateKeyHex1), transport)

	_, err := call(context.Background(), signing.MethodSendTransaction, []interface{}{
		legacyTransaction("0x0000"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid address")

	// Nothing reached the transport.
	method, _ := transport.last()
	assert.Empty(t, method)
}

func TestSignAndSendRawExplicitChainID(t *testing.T) {
	// With chainId in the request the downstream chain is never queried.
	transport := newRecordingTransport(map[string]interface{}{
		signing.MethodSendRawTransaction: "0x01",
	})
	call := signingChain(t, signing.HexKey(privateKeyHex1), transport)

	tx := legacyTransaction(addressHex1)
	tx["chainId"] = "0x7a69"
	_, err := call(context.Background(), signing.MethodSendTransaction, []interface{}{tx})
	require.NoError(t, err)

	transport.mu.Lock()
	methods := append([]string(nil), transport.methods...)
	transport.mu.Unlock()
	assert.Equal(t, []string{signing.MethodSendRawTransaction}, methods)

	signed := decodeForwardedTx(t, transport)
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(0x7a69)), signed)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(addressHex1), sender)
}

func TestSignAndSendRawChainIDFailurePropagates(t *testing.T) {
	// No chainId in the request and no downstream eth_chainId: the
	// transport failure surfaces untouched.
	transport := newRecordingTransport(map[string]interface{}{
		signing.MethodSendRawTransaction: "0x01",
	})
	call := signingChain(t, signing.HexKey(privateKeyHex1), transport)

	_, err := call(context.Background(), signing.MethodSendTransaction, []interface{}{
		legacyTransaction(addressHex1),
	})
	assert.ErrorIs(t, err, pipeline.ErrUnsupportedMethod)
}

func TestSignAndSendRawConstructionTypeError(t *testing.T) {
	_, err := signing.SignAndSendRaw(1234567890)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key-like")
}

func TestSignAndSendRawConcurrentCalls(t *testing.T) {
	transport := newRecordingTransport(dummyResults())
	call := signingChain(t, signing.HexKey(privateKeyHex1), transport)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(nonce int) {
			defer wg.Done()
			tx := legacyTransaction(addressHex1)
			tx["nonce"] = nonce
			_, err := call(context.Background(), signing.MethodSendTransaction, []interface{}{tx})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}
