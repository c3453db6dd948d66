package relay

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/rs/zerolog"

	"github.com/metaswap/relay/go/mechanisms/evm"
	"github.com/metaswap/relay/go/types"
)

// Dispatch path names
const (
	PathRelay  = "relay"
	PathDirect = "direct"
)

// PreparedRequest is a fully built, unsigned call ready for either path
type PreparedRequest struct {
	Operation string
	Message   evm.ForwarderMessage
	TypedData apitypes.TypedData
	Fee       evm.FeeQuote
	GasLimit  uint64
	GasPrice  *big.Int
}

// Relayer sends a JSON-RPC relay request
type Relayer interface {
	Relay(ctx context.Context, request types.RelayRequest) (*types.Response, error)
}

// DispatchPath executes a prepared request and reports the unified outcome.
// Errors are reserved for precondition failures; attempted operations
// always yield a Response.
type DispatchPath interface {
	Name() string
	Dispatch(ctx context.Context, req *PreparedRequest) (*types.Response, error)
}

// ============================================================================
// Relay path
// ============================================================================

// RelayPath signs the forwarder message and hands it to the relayer
type RelayPath struct {
	session  *Session
	signer   evm.ClientEvmSigner
	relayer  Relayer
	verifier *ResponseVerifier
	logger   zerolog.Logger
}

// NewRelayPath creates the meta-transaction path
func NewRelayPath(session *Session, signer evm.ClientEvmSigner, relayer Relayer, verifier *ResponseVerifier, logger zerolog.Logger) *RelayPath {
	return &RelayPath{
		session:  session,
		signer:   signer,
		relayer:  relayer,
		verifier: verifier,
		logger:   logger,
	}
}

// Name implements DispatchPath
func (p *RelayPath) Name() string {
	return PathRelay
}

// Dispatch implements DispatchPath.
// The signature is verified locally before anything leaves the process.
func (p *RelayPath) Dispatch(ctx context.Context, req *PreparedRequest) (*types.Response, error) {
	log := p.logger.With().Str("operation", req.Operation).Str("nonce", req.Message.Nonce.String()).Logger()

	log.Debug().Str("state", string(StateSignaturePending)).Msg("requesting signature")
	sig, err := evm.SignTypedData(ctx, p.signer, req.TypedData)
	if err != nil {
		return nil, err
	}

	ok, err := evm.VerifyTypedDataSignature(req.TypedData, sig, req.Message.From)
	if err != nil {
		return nil, NewRelayError(ErrCodeSignatureMismatch, "signature could not be recovered", err)
	}
	if !ok {
		log.Error().Str("code", ErrCodeSignatureMismatch).Str("expected", req.Message.From).Msg("signature rejected before relay")
		return nil, NewRelayError(ErrCodeSignatureMismatch,
			fmt.Sprintf("recovered signer does not match %s", req.Message.From), nil)
	}

	request := types.NewRelayRequest(
		req.Operation,
		p.session.ChainID().String(),
		req.TypedData,
		sig.VString(),
		sig.RHex(),
		sig.SHex(),
	)

	log.Debug().Str("state", string(StateRelaying)).Str("method", request.Method).Msg("sending to relayer")
	claimed, err := p.relayer.Relay(ctx, request)
	if err != nil {
		return nil, NewRelayError(ErrCodeRelayTransport, "relayer request failed", err)
	}

	response := claimed.Normalize()
	if !response.Result.Success {
		log.Warn().Str("code", ErrCodeRelayExecution).Str("errorMessage", response.Result.ErrorMessage).Msg("relayer rejected request")
		return response, nil
	}

	log.Debug().Str("state", string(StateVerifying)).Str("txnHash", response.Result.TxnHash).Msg("verifying relayer claim")
	return p.verifier.Verify(ctx, p.session.Provider(), response, Expectation{
		Router: p.session.Router(),
		From:   req.Message.From,
		Nonce:  req.Message.Nonce,
	}), nil
}

// ============================================================================
// Direct path
// ============================================================================

// DirectPath submits the router call as the user's own transaction
type DirectPath struct {
	session *Session
	logger  zerolog.Logger
}

// NewDirectPath creates the on-chain path
func NewDirectPath(session *Session, logger zerolog.Logger) *DirectPath {
	return &DirectPath{
		session: session,
		logger:  logger,
	}
}

// Name implements DispatchPath
func (p *DirectPath) Name() string {
	return PathDirect
}

// Dispatch implements DispatchPath. It never returns an error: submission
// and execution failures are reported as failed Responses.
func (p *DirectPath) Dispatch(ctx context.Context, req *PreparedRequest) (*types.Response, error) {
	log := p.logger.With().Str("operation", req.Operation).Logger()
	provider := p.session.Provider()

	log.Debug().Str("state", string(StateDirectSending)).Msg("submitting transaction")
	hash, err := provider.SendTransaction(ctx, evm.TransactionRequest{
		To:       p.session.Router(),
		Data:     req.Message.Data,
		Value:    big.NewInt(0),
		GasLimit: req.GasLimit,
		GasPrice: req.GasPrice,
	})
	if err != nil {
		return p.fail(log, err.Error()), nil
	}

	receipt, err := provider.WaitForTransactionReceipt(ctx, hash)
	if err != nil {
		return p.fail(log, err.Error()), nil
	}
	if receipt == nil || receipt.Status != evm.TxStatusSuccess {
		return p.fail(log, fmt.Sprintf("transaction %s reverted", hash)), nil
	}

	return types.NewSuccessResponse(hash), nil
}

func (p *DirectPath) fail(log zerolog.Logger, message string) *types.Response {
	log.Warn().Str("code", ErrCodeDirectSubmission).Msg(message)
	return types.NewFailureResponse(message)
}
