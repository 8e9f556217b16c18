package main

import (
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhangwei317/signproxy/internal/config"
	"github.com/zhangwei317/signproxy/internal/keysource"
	"github.com/zhangwei317/signproxy/internal/middleware"
	"github.com/zhangwei317/signproxy/internal/proxy"
	"github.com/zhangwei317/signproxy/internal/server"
	"github.com/zhangwei317/signproxy/pkg/client"
	"github.com/zhangwei317/signproxy/pkg/pipeline"
	"github.com/zhangwei317/signproxy/pkg/signing"
)

var rootCmd = &cobra.Command{
	Use:   "signproxy",
	Short: "JSON-RPC proxy that signs eth_sendTransaction calls for locally held keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("signproxy exited")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	keys, err := keysource.Load(cfg.Keys)
	if err != nil {
		return err
	}
	registry, err := signing.Normalize(keys)
	if err != nil {
		return err
	}
	for _, addr := range registry.Addresses() {
		log.Info().Str("address", addr.Hex()).Msg("managing signer")
	}

	upstream, err := rpc.Dial(cfg.Upstream.URL)
	if err != nil {
		return err
	}
	defer upstream.Close()

	callChain := pipeline.Chain(
		client.Transport(upstream),
		signing.NewMiddleware(registry),
	)

	mux := http.NewServeMux()
	mux.Handle("/health", proxy.NewHealthHandler())

	var rpcHandler http.Handler = proxy.NewRPCHandler(callChain)
	var accountsHandler http.Handler = proxy.NewAccountsHandler(registry)
	if cfg.Auth.Enabled {
		auth := middleware.NewAuthMiddleware(cfg.Auth.APIKey, cfg.Auth.APISecret)
		rpcHandler = auth.Wrap(rpcHandler)
		accountsHandler = auth.Wrap(accountsHandler)
	}
	mux.Handle("/accounts", accountsHandler)
	mux.Handle("/", rpcHandler)

	srv := server.NewServer(mux, cfg.Server.Address, cfg.Server.Port)
	log.Info().
		Str("listen", srv.Addr).
		Str("upstream", cfg.Upstream.URL).
		Msg("signproxy listening")
	return srv.ListenAndServe()
}
