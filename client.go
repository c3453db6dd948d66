package relay

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/metaswap/relay/go/fees"
	"github.com/metaswap/relay/go/http"
	"github.com/metaswap/relay/go/mechanisms/evm"
	"github.com/metaswap/relay/go/types"
)

// State is a step of SendRequest
type State string

const (
	StateBuilding         State = "BUILDING"
	StateFeeQuoted        State = "FEE_QUOTED"
	StateMessageBuilt     State = "MESSAGE_BUILT"
	StateSignaturePending State = "SIGNATURE_PENDING"
	StateRelaying         State = "RELAYING"
	StateDirectSending    State = "DIRECT_SENDING"
	StateVerifying        State = "VERIFYING"
	StateDone             State = "DONE"
)

// FeeEstimator quotes the fee-token amount for a native cost
type FeeEstimator interface {
	Estimate(ctx context.Context, chainID *big.Int, feeToken string, tokenDecimals uint8, nativeWei *big.Int) (*big.Int, error)
}

// Call is a router invocation: method name plus its ordered arguments
type Call struct {
	Method string
	Args   []interface{}
}

// Client dispatches DEX operations through the relayer or directly on-chain.
// A Client is safe for concurrent use; it holds no mutable state.
type Client struct {
	session   *Session
	signer    evm.ClientEvmSigner
	relayer   Relayer
	estimator FeeEstimator
	verifier  *ResponseVerifier
	logger    zerolog.Logger
	hooks     hooks
	now       func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithRelayer replaces the HTTP relayer built from the session endpoint
func WithRelayer(relayer Relayer) ClientOption {
	return func(c *Client) {
		c.relayer = relayer
	}
}

// WithFeeEstimator replaces the default chain fee table
func WithFeeEstimator(estimator FeeEstimator) ClientOption {
	return func(c *Client) {
		c.estimator = estimator
	}
}

// WithResponseVerifier replaces the default verifier
func WithResponseVerifier(verifier *ResponseVerifier) ClientOption {
	return func(c *Client) {
		c.verifier = verifier
	}
}

// WithLogger sets the client logger
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBeforeDispatchHook registers a hook run before signing or sending
func WithBeforeDispatchHook(hook BeforeDispatchHook) ClientOption {
	return func(c *Client) {
		c.hooks.beforeDispatch = append(c.hooks.beforeDispatch, hook)
	}
}

// WithAfterDispatchHook registers a hook run with every Response
func WithAfterDispatchHook(hook AfterDispatchHook) ClientOption {
	return func(c *Client) {
		c.hooks.afterDispatch = append(c.hooks.afterDispatch, hook)
	}
}

// WithDispatchFailureHook registers a hook run when dispatch errors
func WithDispatchFailureHook(hook OnDispatchFailureHook) ClientOption {
	return func(c *Client) {
		c.hooks.onDispatchFailure = append(c.hooks.onDispatchFailure, hook)
	}
}

// NewClient creates a client for session signing with signer
func NewClient(session *Session, signer evm.ClientEvmSigner, opts ...ClientOption) (*Client, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, errors.New("signer is required")
	}

	c := &Client{
		session: session,
		signer:  signer,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.relayer == nil {
		c.relayer = http.NewRelayerClient(&http.RelayerConfig{URL: session.RelayerURL()})
	}
	if c.estimator == nil {
		estimator, err := fees.NewEstimator(fees.DefaultPolicies(session.Provider()), fees.WithLogger(c.logger))
		if err != nil {
			return nil, err
		}
		c.estimator = estimator
	}
	if c.verifier == nil {
		c.verifier = NewResponseVerifier(WithVerifierLogger(c.logger))
	}
	return c, nil
}

// Session returns the client's session
func (c *Client) Session() *Session {
	return c.session
}

// Signer returns the address operations are signed by
func (c *Client) Signer() string {
	return c.signer.Address()
}

// WithFeeToken returns a client paying fees in token. The receiver keeps its
// session, so requests already in flight are unaffected.
func (c *Client) WithFeeToken(ctx context.Context, token string) (*Client, error) {
	session, err := c.session.WithFeeToken(ctx, token)
	if err != nil {
		return nil, err
	}
	next := *c
	next.session = session
	next.hooks = c.hooks.clone()
	return &next, nil
}

// QuoteFee returns the fee quote for a call of gasLimit at gasPrice.
// A nil gasPrice uses the network price.
func (c *Client) QuoteFee(ctx context.Context, gasLimit uint64, gasPrice *big.Int) (evm.FeeQuote, *big.Int, error) {
	if err := c.session.Validate(); err != nil {
		return evm.FeeQuote{}, nil, err
	}
	price, err := c.gasPrice(ctx, gasPrice)
	if err != nil {
		return evm.FeeQuote{}, nil, err
	}
	feeToken := c.session.FeeToken()
	maxFee, err := c.estimator.Estimate(ctx, c.session.ChainID(), feeToken.Address, feeToken.Decimals, fees.NativeFee(gasLimit, price))
	if err != nil {
		return evm.FeeQuote{}, nil, err
	}
	return evm.FeeQuote{Token: feeToken.Address, Decimals: feeToken.Decimals, MaxTokenFee: maxFee}, price, nil
}

// SendRequest builds, authorizes and dispatches call.
// Precondition failures are returned as errors before anything is signed or
// sent; attempted operations always return a Response.
func (c *Client) SendRequest(ctx context.Context, call Call, gasLimit uint64, gasPrice *big.Int) (*types.Response, error) {
	if err := c.session.Validate(); err != nil {
		return nil, err
	}
	if gasLimit == 0 {
		return nil, NewRelayError(ErrCodeInvalidParams, "gas limit is required", nil)
	}

	provider := c.session.Provider()
	log := c.logger.With().
		Str("operation", call.Method).
		Str("chainId", c.session.ChainID().String()).
		Logger()
	log.Debug().Str("state", string(StateBuilding)).Msg("building request")

	fee, price, err := c.QuoteFee(ctx, gasLimit, gasPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to quote fee: %w", err)
	}
	log.Debug().Str("state", string(StateFeeQuoted)).Str("maxTokenFee", fee.MaxTokenFee.String()).Msg("fee quoted")

	from := c.signer.Address()
	nonce, err := evm.ReadRouterNonce(ctx, provider, c.session.Router(), from)
	if err != nil {
		return nil, err
	}

	msg, err := evm.BuildForwarderMessage(evm.ForwarderParams{
		From:   from,
		Router: c.session.Router(),
		Method: call.Method,
		Args:   call.Args,
		Gas:    gasLimit,
		Nonce:  nonce,
		Fee:    fee,
	})
	if err != nil {
		return nil, NewRelayError(ErrCodeInvalidParams, "failed to build forwarder message", err)
	}
	prepared := &PreparedRequest{
		Operation: call.Method,
		Message:   msg,
		TypedData: evm.NewForwarderTypedData(c.session.ForwarderDomain(), msg),
		Fee:       fee,
		GasLimit:  gasLimit,
		GasPrice:  price,
	}
	log = log.With().Str("nonce", nonce.String()).Logger()
	log.Debug().Str("state", string(StateMessageBuilt)).Msg("forwarder message built")

	enabled, err := evm.ReadMetaEnabled(ctx, provider, c.session.Router())
	if err != nil {
		return nil, err
	}
	path := c.selectPath(enabled, log)

	hookCtx := DispatchContext{
		Ctx:       ctx,
		Operation: call.Method,
		Path:      path.Name(),
		ChainID:   c.session.ChainID(),
		From:      from,
		Nonce:     new(big.Int).Set(nonce),
		Fee:       fee,
		GasLimit:  gasLimit,
		GasPrice:  price,
		Timestamp: c.now(),
	}
	for _, hook := range c.hooks.beforeDispatch {
		result, err := hook(hookCtx)
		if err != nil {
			return nil, NewRelayError(ErrCodeDispatchAborted, "before-dispatch hook failed", err)
		}
		if result != nil && result.Abort {
			return nil, NewRelayError(ErrCodeDispatchAborted, result.Reason, nil)
		}
	}

	start := c.now()
	response, err := path.Dispatch(ctx, prepared)
	duration := c.now().Sub(start)

	if err != nil {
		failureCtx := DispatchFailureContext{DispatchContext: hookCtx, Error: err, Duration: duration}
		for _, hook := range c.hooks.onDispatchFailure {
			if hookErr := hook(failureCtx); hookErr != nil {
				log.Warn().Err(hookErr).Msg("dispatch failure hook failed")
			}
		}
		return nil, err
	}

	resultCtx := DispatchResultContext{DispatchContext: hookCtx, Response: response, Duration: duration}
	for _, hook := range c.hooks.afterDispatch {
		if hookErr := hook(resultCtx); hookErr != nil {
			log.Warn().Err(hookErr).Msg("after dispatch hook failed")
		}
	}

	log.Info().
		Str("state", string(StateDone)).
		Str("path", path.Name()).
		Bool("success", response.Result.Success).
		Str("txnHash", response.Result.TxnHash).
		Dur("duration", duration).
		Msg("request dispatched")
	return response, nil
}

func (c *Client) selectPath(metaEnabled bool, log zerolog.Logger) DispatchPath {
	if metaEnabled {
		return NewRelayPath(c.session, c.signer, c.relayer, c.verifier, log)
	}
	return NewDirectPath(c.session, log)
}

func (c *Client) gasPrice(ctx context.Context, explicit *big.Int) (*big.Int, error) {
	if explicit != nil {
		if explicit.Sign() < 0 {
			return nil, NewRelayError(ErrCodeInvalidParams, "gas price must not be negative", nil)
		}
		return new(big.Int).Set(explicit), nil
	}
	price, err := c.session.Provider().SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return price, nil
}
