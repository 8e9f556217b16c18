package signing

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// TransactionRequest holds the user-specified parameters of an
// eth_sendTransaction call. It is an open mapping: values may arrive as
// hex strings straight off the wire or as native Go numbers, byte slices
// and big.Ints when built in-process.
type TransactionRequest map[string]interface{}

// TxKind selects which transaction encoding is serialized for signing.
type TxKind int

const (
	// KindLegacy is the single-gasPrice encoding (types 0x0 and 0x1).
	KindLegacy TxKind = iota
	// KindDynamicFee is the EIP-1559 maxFeePerGas/maxPriorityFeePerGas
	// encoding (type 0x2).
	KindDynamicFee
)

// Classify decides the encoding for tx. An explicit "type" field is
// authoritative; otherwise the presence of either 1559 fee field implies
// the dynamic-fee encoding. Classification must happen before signing
// because the two encodings serialize different field sets.
func Classify(tx TransactionRequest) (TxKind, error) {
	if v, ok := tx["type"]; ok {
		txType, err := toUint64(v)
		if err != nil {
			return 0, errors.Wrap(err, "invalid transaction type")
		}
		switch txType {
		case types.LegacyTxType, types.AccessListTxType:
			return KindLegacy, nil
		case types.DynamicFeeTxType:
			return KindDynamicFee, nil
		default:
			return 0, errors.Errorf("unsupported transaction type %d", txType)
		}
	}
	if _, ok := tx["maxFeePerGas"]; ok {
		return KindDynamicFee, nil
	}
	if _, ok := tx["maxPriorityFeePerGas"]; ok {
		return KindDynamicFee, nil
	}
	return KindLegacy, nil
}

// Sender resolves the "from" field. ok is false when the field is
// absent. A malformed value is an error; the zero address is never
// silently substituted.
func (tx TransactionRequest) Sender() (common.Address, bool, error) {
	v, ok := tx["from"]
	if !ok {
		return common.Address{}, false, nil
	}
	addr, err := toAddress(v)
	return addr, true, err
}

// ChainID returns the request's explicit chain id, or nil when absent.
func (tx TransactionRequest) ChainID() (*big.Int, error) {
	v, ok := tx["chainId"]
	if !ok {
		return nil, nil
	}
	id, err := toBig(v)
	if err != nil {
		return nil, errors.Wrap(err, "invalid chainId")
	}
	return id, nil
}

// Assemble builds the go-ethereum transaction that will be signed.
// Only user-supplied fields are carried over; nonce and gas defaults are
// the caller's responsibility and absent numeric fields serialize as
// zero, exactly as the signing layer treats them.
func Assemble(tx TransactionRequest, chainID *big.Int) (*types.Transaction, error) {
	kind, err := Classify(tx)
	if err != nil {
		return nil, err
	}

	var to *common.Address
	if v, ok := tx["to"]; ok {
		addr, err := toAddress(v)
		if err != nil {
			return nil, err
		}
		to = &addr
	}
	nonce, err := tx.uintField("nonce")
	if err != nil {
		return nil, err
	}
	gas, err := tx.uintField("gas")
	if err != nil {
		return nil, err
	}
	value, err := tx.bigField("value")
	if err != nil {
		return nil, err
	}
	data, err := tx.dataField()
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindDynamicFee:
		feeCap, err := tx.bigField("maxFeePerGas")
		if err != nil {
			return nil, err
		}
		tipCap, err := tx.bigField("maxPriorityFeePerGas")
		if err != nil {
			return nil, err
		}
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tipCap,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        to,
			Value:     value,
			Data:      data,
		}), nil
	default:
		gasPrice, err := tx.bigField("gasPrice")
		if err != nil {
			return nil, err
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       to,
			Value:    value,
			Data:     data,
		}), nil
	}
}

func (tx TransactionRequest) bigField(name string) (*big.Int, error) {
	v, ok := tx[name]
	if !ok {
		return nil, nil
	}
	b, err := toBig(v)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s", name)
	}
	return b, nil
}

func (tx TransactionRequest) uintField(name string) (uint64, error) {
	v, ok := tx[name]
	if !ok {
		return 0, nil
	}
	u, err := toUint64(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", name)
	}
	return u, nil
}

// dataField accepts both "data" and its eth_call-era alias "input".
func (tx TransactionRequest) dataField() ([]byte, error) {
	v, ok := tx["data"]
	if !ok {
		if v, ok = tx["input"]; !ok {
			return nil, nil
		}
	}
	switch d := v.(type) {
	case []byte:
		return d, nil
	case hexutil.Bytes:
		return d, nil
	case string:
		b, err := hexutil.Decode(d)
		if err != nil {
			return nil, errors.Wrap(err, "invalid data")
		}
		return b, nil
	default:
		return nil, errors.Errorf("invalid data of type %T", v)
	}
}

func toAddress(v interface{}) (common.Address, error) {
	switch a := v.(type) {
	case common.Address:
		return a, nil
	case *common.Address:
		return *a, nil
	case string:
		if !common.IsHexAddress(a) {
			return common.Address{}, errors.Errorf("invalid address %q", a)
		}
		return common.HexToAddress(a), nil
	case []byte:
		if len(a) != common.AddressLength {
			return common.Address{}, errors.Errorf("invalid address of %d bytes", len(a))
		}
		return common.BytesToAddress(a), nil
	default:
		return common.Address{}, errors.Errorf("invalid address of type %T", v)
	}
}

func toBig(v interface{}) (*big.Int, error) {
	switch n := v.(type) {
	case *big.Int:
		return n, nil
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(n, &s); err != nil {
			return nil, errors.Wrap(err, "non-string quantity")
		}
		return toBig(s)
	case hexutil.Big:
		return n.ToInt(), nil
	case *hexutil.Big:
		return n.ToInt(), nil
	case int:
		return big.NewInt(int64(n)), nil
	case int64:
		return big.NewInt(n), nil
	case uint64:
		return new(big.Int).SetUint64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return nil, errors.Errorf("non-integral value %v", n)
		}
		return big.NewInt(int64(n)), nil
	case string:
		b, err := hexutil.DecodeBig(n)
		if err == nil {
			return b, nil
		}
		// Some backends answer with non-canonical hex such as "0x02".
		if rest, found := strings.CutPrefix(n, "0x"); found {
			if b, ok := new(big.Int).SetString(rest, 16); ok {
				return b, nil
			}
		}
		return nil, err
	default:
		return nil, errors.Errorf("cannot interpret value of type %T as an integer", v)
	}
}

func toUint64(v interface{}) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int:
		if n < 0 {
			return 0, errors.Errorf("negative value %d", n)
		}
		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, errors.Errorf("negative value %d", n)
		}
		return uint64(n), nil
	case hexutil.Uint64:
		return uint64(n), nil
	case float64:
		if n < 0 || n != float64(uint64(n)) {
			return 0, errors.Errorf("non-integral value %v", n)
		}
		return uint64(n), nil
	case string:
		return hexutil.DecodeUint64(n)
	case *big.Int:
		if !n.IsUint64() {
			return 0, errors.Errorf("value %s out of range", n)
		}
		return n.Uint64(), nil
	default:
		return 0, errors.Errorf("cannot interpret value of type %T as an integer", v)
	}
}
