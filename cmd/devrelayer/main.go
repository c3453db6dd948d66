// Command devrelayer runs a local /v2/metaTx relayer against a development chain.
// The configured signer pays for execution; with dev_relayer.submit off every
// request is checked and answered without being sent.
package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/metaswap/relay/go/devrelayer"
	"github.com/metaswap/relay/go/internal/app"
	"github.com/metaswap/relay/go/internal/config"
	"github.com/metaswap/relay/go/internal/logging"
	evmsigners "github.com/metaswap/relay/go/signers/evm"
)

// gasOverhead covers the forwarder's own work on top of the signed gas
const gasOverhead = 100_000

func main() {
	configPath := flag.String("config", "", "config file (defaults to ./relay.yaml)")
	envPath := flag.String("env", ".env", "dotenv file loaded before the config")
	flag.Parse()

	log := logging.NewLogger("info")
	if err := config.LoadDotEnv(*envPath); err != nil {
		log.Fatal().Err(err).Msg("load env")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	log = logging.NewLogger(cfg.App.LogLevel)

	if cfg.Chain.RPCURL == "" || cfg.Contracts.Router == "" {
		log.Fatal().Msg("chain.rpc_url and contracts.router are required")
	}
	if err := cfg.ValidateSigner(); err != nil {
		log.Fatal().Err(err).Msg("relayer account")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	signer, err := app.NewSigner(cfg.Signer)
	if err != nil {
		log.Fatal().Err(err).Msg("relayer account")
	}
	chain, err := evmsigners.DialChainClient(ctx, cfg.Chain.RPCURL, signer, evmsigners.WithPollInterval(500*time.Millisecond))
	if err != nil {
		log.Fatal().Err(err).Msg("dial chain")
	}
	chainID, err := chain.GetChainID(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("chain id")
	}

	var executor devrelayer.Executor = devrelayer.DryRunExecutor{}
	if cfg.DevRelayer.Submit {
		executor = &devrelayer.ChainExecutor{Provider: chain, Router: cfg.Contracts.Router, GasOverhead: gasOverhead}
	}

	srv, err := devrelayer.New(devrelayer.Config{
		ChainID:  chainID,
		Router:   cfg.Contracts.Router,
		Executor: executor,
		Nonces:   chain,
		Logger:   log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("relayer")
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		os.Exit(0)
	}()

	log.Info().
		Str("addr", cfg.DevRelayer.Addr).
		Str("chainId", chainID.String()).
		Str("router", cfg.Contracts.Router).
		Str("account", signer.Address()).
		Bool("submit", cfg.DevRelayer.Submit).
		Msg("dev relayer up")
	if err := srv.Run(cfg.DevRelayer.Addr); err != nil {
		log.Fatal().Err(err).Msg("relayer stopped")
	}
}
