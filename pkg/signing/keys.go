package signing

import (
	"crypto/ecdsa"
	"reflect"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Account couples a private key with the address derived from it. The
// address is always recomputed from the key, never taken from the caller,
// so the two cannot disagree.
type Account struct {
	priv    *ecdsa.PrivateKey
	address common.Address
}

// NewAccount derives the address for priv and wraps both.
func NewAccount(priv *ecdsa.PrivateKey) *Account {
	return &Account{
		priv:    priv,
		address: crypto.PubkeyToAddress(priv.PublicKey),
	}
}

// Address returns the account's derived address.
func (a *Account) Address() common.Address {
	return a.address
}

// Hex returns the checksummed hex form of the address.
func (a *Account) Hex() string {
	return a.address.Hex()
}

func (a *Account) account() (*Account, error) {
	return a, nil
}

// Key is a value from which raw private-key bytes can be extracted.
// The supported representations form a closed set: HexKey, RawKey, an
// *ecdsa.PrivateKey, a *keystore.Key or an Account (see Normalize).
type Key interface {
	account() (*Account, error)
}

// HexKey is a hex-encoded 32-byte private key, with or without 0x prefix.
type HexKey string

func (k HexKey) account() (*Account, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(string(k), "0x"), "0X")
	priv, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, errors.Wrap(err, "invalid hex private key")
	}
	return NewAccount(priv), nil
}

// RawKey is a raw 32-byte private key.
type RawKey []byte

func (k RawKey) account() (*Account, error) {
	priv, err := crypto.ToECDSA(k)
	if err != nil {
		return nil, errors.Wrap(err, "invalid raw private key")
	}
	return NewAccount(priv), nil
}

type ecdsaKey struct {
	priv *ecdsa.PrivateKey
}

func (k ecdsaKey) account() (*Account, error) {
	return NewAccount(k.priv), nil
}

func asKey(v interface{}) (Key, error) {
	switch k := v.(type) {
	case Key:
		return k, nil
	case string:
		return HexKey(k), nil
	case []byte:
		return RawKey(k), nil
	case *ecdsa.PrivateKey:
		return ecdsaKey{priv: k}, nil
	case *keystore.Key:
		return ecdsaKey{priv: k.PrivateKey}, nil
	default:
		return nil, errors.Errorf("cannot extract a private key from value of type %T", v)
	}
}

// Registry maps an account's derived address to the account holding its
// key. Built once, read-only afterwards; safe for concurrent lookups.
type Registry map[common.Address]*Account

// Normalize converts one key-like value, or a sequence of key-like
// values, into a Registry. A key-like value is a HexKey, a RawKey, a
// plain hex string, a raw byte slice, an *ecdsa.PrivateKey, a decrypted
// *keystore.Key or an existing *Account. Later entries deriving the same
// address overwrite earlier ones. Any other input is rejected here,
// before a single request is processed.
func Normalize(input interface{}) (Registry, error) {
	registry := make(Registry)

	if key, err := asKey(input); err == nil {
		if err := registry.add(key); err != nil {
			return nil, err
		}
		return registry, nil
	}

	rv := reflect.ValueOf(input)
	if input == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, errors.Errorf("keys must be a key-like value or a sequence of them, got %T", input)
	}
	for i := 0; i < rv.Len(); i++ {
		key, err := asKey(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		if err := registry.add(key); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r Registry) add(key Key) error {
	acct, err := key.account()
	if err != nil {
		return err
	}
	r[acct.address] = acct
	return nil
}

// Lookup reports whether the registry manages a key for addr. The
// common.Address form makes the comparison case-insensitive: checksummed
// strings and raw bytes both decode to the same value.
func (r Registry) Lookup(addr common.Address) (*Account, bool) {
	acct, ok := r[addr]
	return acct, ok
}

// Addresses returns the managed addresses in a stable order.
func (r Registry) Addresses() []common.Address {
	addrs := make([]common.Address, 0, len(r))
	for addr := range r {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return addrs[i].Cmp(addrs[j]) < 0
	})
	return addrs
}
