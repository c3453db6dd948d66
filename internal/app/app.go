// Package app builds a relay client from configuration for the command-line tools.
package app

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"

	"github.com/rs/zerolog"

	relay "github.com/metaswap/relay/go"
	"github.com/metaswap/relay/go/fees"
	"github.com/metaswap/relay/go/http"
	"github.com/metaswap/relay/go/internal/config"
	"github.com/metaswap/relay/go/journal"
	"github.com/metaswap/relay/go/mechanisms/evm"
	"github.com/metaswap/relay/go/metrics"
	evmsigners "github.com/metaswap/relay/go/signers/evm"
)

// Runtime owns everything a configured client depends on
type Runtime struct {
	Client  *relay.Client
	Chain   *evmsigners.ChainClient
	Journal *journal.Store

	metrics *nethttp.Server
}

// NewSigner returns the signer described by cfg
func NewSigner(cfg config.Signer) (*evmsigners.ClientSigner, error) {
	if cfg.Mnemonic != "" {
		return evmsigners.NewClientSignerFromMnemonic(cfg.Mnemonic, cfg.Index)
	}
	return evmsigners.NewClientSignerFromPrivateKey(cfg.PrivateKey)
}

// Endpoints returns the default endpoint table, with the configured relayer
// URL registered for chainID when one is set
func Endpoints(cfg *config.Config, chainID uint64) http.EndpointTable {
	if cfg.Relayer.URL == "" {
		return http.DefaultEndpoints
	}
	return http.DefaultEndpoints.With(cfg.Chain.Environment, chainID, cfg.Relayer.URL)
}

// RelayerConfig returns the transport settings for relayerURL
func RelayerConfig(cfg *config.Config, relayerURL string) *http.RelayerConfig {
	rc := &http.RelayerConfig{URL: relayerURL, Timeout: cfg.Relayer.Timeout}
	if cfg.Relayer.APIKey != "" {
		rc.AuthProvider = http.StaticAuth{"X-API-Key": cfg.Relayer.APIKey}
	}
	return rc
}

// FeeEstimator builds the built-in per-chain policy table, adding the
// configured fallback policy when there is one
func FeeEstimator(cfg *config.Config, reader evm.ChainReader, logger zerolog.Logger) (*fees.Estimator, error) {
	opts := []fees.Option{fees.WithLogger(logger)}
	if cfg.Fees.Fallback == config.FeeFallbackWaive {
		opts = append(opts, fees.WithFallback(fees.Waive()))
	}
	return fees.NewEstimator(fees.DefaultPolicies(reader), opts...)
}

// ClientOptions returns the options derived from cfg for a session.
// store may be nil.
func ClientOptions(cfg *config.Config, session *relay.Session, store *journal.Store, logger zerolog.Logger) ([]relay.ClientOption, error) {
	estimator, err := FeeEstimator(cfg, session.Provider(), logger)
	if err != nil {
		return nil, err
	}
	opts := []relay.ClientOption{
		relay.WithLogger(logger),
		relay.WithFeeEstimator(estimator),
		relay.WithRelayer(http.NewRelayerClient(RelayerConfig(cfg, session.RelayerURL()))),
		relay.WithResponseVerifier(relay.NewResponseVerifier(
			relay.WithMinConfirmations(cfg.Relayer.MinConfirmations),
			relay.WithVerifierLogger(logger),
		)),
	}
	if cfg.App.MetricsAddr != "" {
		opts = append(opts, metrics.ClientOptions()...)
	}
	if store != nil {
		opts = append(opts, store.ClientOptions()...)
	}
	return opts, nil
}

// Open dials the chain, initializes a session and builds the client
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Runtime, error) {
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateSigner(); err != nil {
		return nil, err
	}

	signer, err := NewSigner(cfg.Signer)
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	chain, err := evmsigners.DialChainClient(ctx, cfg.Chain.RPCURL, signer)
	if err != nil {
		return nil, err
	}
	chainID, err := chain.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return nil, fmt.Errorf("chain id %s out of range", chainID)
	}

	session, err := relay.Init(ctx, relay.InitOptions{
		Provider:            chain,
		Environment:         cfg.Chain.Environment,
		Endpoints:           Endpoints(cfg, chainID.Uint64()),
		Router:              cfg.Contracts.Router,
		Factory:             cfg.Contracts.Factory,
		FeeToken:            cfg.Contracts.FeeToken,
		ForwarderDomainName: cfg.Contracts.ForwarderDomainName,
	})
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Chain: chain}
	if cfg.Journal.DSN != "" {
		store, err := journal.Open(cfg.Journal.Driver, cfg.Journal.DSN)
		if err != nil {
			return nil, err
		}
		rt.Journal = store
	}
	if cfg.App.MetricsAddr != "" {
		rt.metrics = metrics.Serve(cfg.App.MetricsAddr)
		logger.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	opts, err := ClientOptions(cfg, session, rt.Journal, logger)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	client, err := relay.NewClient(session, signer, opts...)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	rt.Client = client

	logger.Info().
		Str("chainId", chainID.String()).
		Str("environment", session.Environment()).
		Str("relayer", session.RelayerURL()).
		Str("signer", signer.Address()).
		Msg("relay client ready")
	return rt, nil
}

// Close releases the journal and stops the metrics listener
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if r.metrics != nil {
		errs = append(errs, r.metrics.Shutdown(ctx))
	}
	if r.Journal != nil {
		errs = append(errs, r.Journal.Close())
	}
	return errors.Join(errs...)
}
