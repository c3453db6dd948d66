package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/metaswap/relay/go/http"
	"github.com/metaswap/relay/go/mechanisms/evm"
)

// FeeToken is the ERC20 the relay fee is paid in
type FeeToken struct {
	Address  string
	Decimals uint8
}

// InitOptions configures Init
type InitOptions struct {
	// Provider is the connected network (required)
	Provider evm.Provider

	// Environment selects the relayer endpoint set (defaults to prod)
	Environment string

	// Endpoints overrides http.DefaultEndpoints
	Endpoints http.EndpointTable

	// Router and Factory are the DEX contract addresses (required)
	Router  string
	Factory string

	// FeeToken is the fee token address (required)
	FeeToken string

	// ForwarderDomainName overrides evm.DefaultForwarderDomainName
	ForwarderDomainName string
}

// Session is the resolved, immutable context every operation runs in.
// Changing the fee token produces a new Session.
type Session struct {
	chainID     *big.Int
	feeToken    FeeToken
	router      string
	factory     string
	relayerURL  string
	provider    evm.Provider
	environment string
	domainName  string
}

// Init resolves the chain, relayer endpoint and fee-token decimals.
// Any failure returns an initialization error and no session.
func Init(ctx context.Context, opts InitOptions) (*Session, error) {
	if opts.Provider == nil {
		return nil, NewRelayError(ErrCodeNotInitialized, "provider is required", nil)
	}
	for name, addr := range map[string]string{"router": opts.Router, "factory": opts.Factory, "fee token": opts.FeeToken} {
		if !evm.IsValidAddress(addr) {
			return nil, NewRelayError(ErrCodeNotInitialized, fmt.Sprintf("invalid %s address %q", name, addr), nil)
		}
	}

	environment := opts.Environment
	if environment == "" {
		environment = http.EnvironmentProd
	}
	endpoints := opts.Endpoints
	if endpoints == nil {
		endpoints = http.DefaultEndpoints
	}
	domainName := opts.ForwarderDomainName
	if domainName == "" {
		domainName = evm.DefaultForwarderDomainName
	}

	chainID, err := opts.Provider.GetChainID(ctx)
	if err != nil {
		return nil, NewRelayError(ErrCodeNotInitialized, "failed to resolve chain id", err)
	}

	relayerURL := endpoints.Resolve(environment, chainID)
	if relayerURL == "" {
		return nil, NewRelayError(ErrCodeUnsupportedChain,
			fmt.Sprintf("no relayer endpoint for chain %s in %s", chainID, environment), nil)
	}

	decimals, err := evm.ReadDecimals(ctx, opts.Provider, opts.FeeToken, evm.ERC20DecimalsABI)
	if err != nil {
		return nil, NewRelayError(ErrCodeNotInitialized, "failed to read fee token decimals", err)
	}

	session := &Session{
		chainID:     new(big.Int).Set(chainID),
		feeToken:    FeeToken{Address: evm.NormalizeAddress(opts.FeeToken), Decimals: decimals},
		router:      evm.NormalizeAddress(opts.Router),
		factory:     evm.NormalizeAddress(opts.Factory),
		relayerURL:  relayerURL,
		provider:    opts.Provider,
		environment: environment,
		domainName:  domainName,
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	return session, nil
}

// Validate asserts every field is set and the endpoint is non-empty
func (s *Session) Validate() error {
	if s == nil {
		return ErrNotInitialized
	}
	var missing []string
	if s.chainID == nil || s.chainID.Sign() <= 0 {
		missing = append(missing, "chain id")
	}
	if s.feeToken.Address == "" {
		missing = append(missing, "fee token")
	}
	if s.router == "" {
		missing = append(missing, "router")
	}
	if s.factory == "" {
		missing = append(missing, "factory")
	}
	if s.relayerURL == "" {
		missing = append(missing, "relayer endpoint")
	}
	if s.provider == nil {
		missing = append(missing, "provider")
	}
	if s.domainName == "" {
		missing = append(missing, "forwarder domain name")
	}
	if len(missing) > 0 {
		return NewRelayError(ErrCodeNotInitialized, "session not initialized", fmt.Errorf("missing %v", missing))
	}
	return nil
}

// WithFeeToken returns a copy of the session paying fees in token.
// The receiver is left untouched.
func (s *Session) WithFeeToken(ctx context.Context, token string) (*Session, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if !evm.IsValidAddress(token) {
		return nil, errors.New("invalid fee token address")
	}
	decimals, err := evm.ReadDecimals(ctx, s.provider, token, evm.ERC20DecimalsABI)
	if err != nil {
		return nil, err
	}

	next := *s
	next.chainID = new(big.Int).Set(s.chainID)
	next.feeToken = FeeToken{Address: evm.NormalizeAddress(token), Decimals: decimals}
	return &next, nil
}

// ChainID returns a copy of the resolved chain id
func (s *Session) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// FeeToken returns the fee token in use
func (s *Session) FeeToken() FeeToken {
	return s.feeToken
}

// Router returns the router address
func (s *Session) Router() string {
	return s.router
}

// Factory returns the factory address
func (s *Session) Factory() string {
	return s.factory
}

// RelayerURL returns the resolved relayer endpoint
func (s *Session) RelayerURL() string {
	return s.relayerURL
}

// Provider returns the connected network
func (s *Session) Provider() evm.Provider {
	return s.provider
}

// Environment returns the relayer environment
func (s *Session) Environment() string {
	return s.environment
}

// ForwarderDomain builds the router's signing domain. A new value is built per
// call so a domain is never shared between contract instances.
func (s *Session) ForwarderDomain() evm.TypedDataDomain {
	return evm.ForwarderDomain(s.domainName, s.ChainID(), s.router)
}
