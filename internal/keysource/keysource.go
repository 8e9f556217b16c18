// Package keysource collects signing keys from the configured sources
// and hands them to the registry as normalizer inputs. Keys are loaded
// once at startup; the proxy never creates or reloads keys.
package keysource

import (
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/zhangwei317/signproxy/internal/config"
	"github.com/zhangwei317/signproxy/pkg/signing"
)

// Load gathers key-like values from inline hex keys and, when configured,
// from encrypted keystore files in a directory.
func Load(cfg config.KeysConfig) ([]interface{}, error) {
	var keys []interface{}
	for _, h := range cfg.Hex {
		keys = append(keys, signing.HexKey(h))
	}

	if cfg.KeystoreDir != "" {
		loaded, err := loadKeystoreDir(cfg.KeystoreDir, cfg.KeystorePassword)
		if err != nil {
			return nil, err
		}
		keys = append(keys, loaded...)
	}

	if len(keys) == 0 {
		return nil, errors.New("no signing keys configured")
	}
	return keys, nil
}

func loadKeystoreDir(dir, password string) ([]interface{}, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read keystore directory")
	}

	var keys []interface{}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		path := filepath.Join(dir, file.Name())
		keyJSON, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", file.Name()).Msg("failed to read key file")
			continue
		}
		key, err := keystore.DecryptKey(keyJSON, password)
		if err != nil {
			log.Warn().Err(err).Str("file", file.Name()).Msg("failed to decrypt key file")
			continue
		}
		log.Info().Str("address", key.Address.Hex()).Msg("loaded keystore key")
		keys = append(keys, key)
	}
	return keys, nil
}
