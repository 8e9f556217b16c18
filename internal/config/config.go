package config

import (
	"github.com/spf13/viper"
)

// Config holds the proxy configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Keys     KeysConfig     `mapstructure:"keys"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds the listen settings.
type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Address string `mapstructure:"address"`
}

// UpstreamConfig points at the node the proxy forwards to.
type UpstreamConfig struct {
	URL string `mapstructure:"url"`
}

// KeysConfig describes where the managed signing keys come from: inline
// hex keys, encrypted keystore files, or both.
type KeysConfig struct {
	Hex              []string `mapstructure:"hex"`
	KeystoreDir      string   `mapstructure:"keystore_dir"`
	KeystorePassword string   `mapstructure:"keystore_password"`
}

// AuthConfig holds the HMAC authentication settings.
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (config Config, err error) {
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("signproxy")
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("server.port", "8545")
	viper.SetDefault("server.address", "0.0.0.0")
	viper.SetDefault("upstream.url", "http://127.0.0.1:8546")
	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("log.level", "info")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
