package relay

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/metaswap/relay/go/mechanisms/evm"
	"github.com/metaswap/relay/go/types"
)

// DefaultMinConfirmations is the block depth a relayed transaction must reach
const DefaultMinConfirmations = 1

// Expectation is what a relayed execution must prove on-chain
type Expectation struct {
	Router string
	From   string
	Nonce  *big.Int
}

// ResponseVerifier checks a relayer's claimed success against the chain.
// The relayer is untrusted, so a claim that cannot be confirmed is
// downgraded to a failure.
type ResponseVerifier struct {
	minConfirmations uint64
	logger           zerolog.Logger
}

// VerifierOption configures a ResponseVerifier
type VerifierOption func(*ResponseVerifier)

// WithMinConfirmations sets the required confirmation depth (at least 1)
func WithMinConfirmations(n uint64) VerifierOption {
	return func(v *ResponseVerifier) {
		if n > 0 {
			v.minConfirmations = n
		}
	}
}

// WithVerifierLogger sets the verifier logger
func WithVerifierLogger(logger zerolog.Logger) VerifierOption {
	return func(v *ResponseVerifier) {
		v.logger = logger
	}
}

// NewResponseVerifier creates a verifier
func NewResponseVerifier(opts ...VerifierOption) *ResponseVerifier {
	v := &ResponseVerifier{
		minConfirmations: DefaultMinConfirmations,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify returns claimed unchanged when the chain confirms it, and a failure
// Response describing the discrepancy otherwise.
func (v *ResponseVerifier) Verify(ctx context.Context, provider evm.Provider, claimed *types.Response, expect Expectation) *types.Response {
	if claimed == nil || !claimed.Result.Success {
		return claimed.Normalize()
	}

	hash := claimed.Result.TxnHash
	if !types.IsTxHash(hash) {
		return v.downgrade(claimed, fmt.Sprintf("relayer returned malformed txnHash %q", hash))
	}

	receipt, err := provider.WaitForTransactionReceipt(ctx, hash)
	if err != nil {
		return v.downgrade(claimed, fmt.Sprintf("could not confirm transaction %s: %v", hash, err))
	}
	if receipt == nil {
		return v.downgrade(claimed, fmt.Sprintf("transaction %s not found", hash))
	}
	if receipt.TxHash != "" && !strings.EqualFold(receipt.TxHash, hash) {
		return v.downgrade(claimed, fmt.Sprintf("receipt hash %s does not match %s", receipt.TxHash, hash))
	}
	if receipt.Status != evm.TxStatusSuccess {
		return v.downgrade(claimed, fmt.Sprintf("transaction %s reverted on-chain", hash))
	}

	if v.minConfirmations > 1 {
		head, err := provider.BlockNumber(ctx)
		if err != nil {
			return v.downgrade(claimed, fmt.Sprintf("could not read block number: %v", err))
		}
		var confirmations uint64
		if head >= receipt.BlockNumber {
			confirmations = head - receipt.BlockNumber + 1
		}
		if confirmations < v.minConfirmations {
			return v.downgrade(claimed, fmt.Sprintf("transaction %s has %d of %d confirmations",
				hash, confirmations, v.minConfirmations))
		}
	}

	found, err := hasExecutionEvent(receipt.Logs, expect)
	if err != nil {
		return v.downgrade(claimed, err.Error())
	}
	if !found {
		return v.downgrade(claimed, fmt.Sprintf("transaction %s has no %s event for %s nonce %s",
			hash, evm.EventMetaTransactionExecuted, expect.From, expect.Nonce))
	}

	v.logger.Debug().Str("txnHash", hash).Msg("relayed transaction confirmed")
	return claimed
}

func (v *ResponseVerifier) downgrade(claimed *types.Response, reason string) *types.Response {
	v.logger.Warn().
		Str("code", ErrCodeRelayIntegrity).
		Str("txnHash", claimed.Result.TxnHash).
		Msg(reason)

	out := types.NewFailureResponse(reason)
	out.ID = claimed.ID
	if claimed.JSONRPC != "" {
		out.JSONRPC = claimed.JSONRPC
	}
	return out
}

func hasExecutionEvent(logs []evm.Log, expect Expectation) (bool, error) {
	if expect.Nonce == nil {
		return false, fmt.Errorf("missing expected nonce")
	}
	topic, err := evm.MetaTransactionExecutedTopic()
	if err != nil {
		return false, err
	}

	router := common.HexToAddress(expect.Router)
	fromTopic := common.BytesToHash(common.HexToAddress(expect.From).Bytes())
	nonceTopic := common.BigToHash(expect.Nonce)

	for _, l := range logs {
		if common.HexToAddress(l.Address) != router || len(l.Topics) < 3 {
			continue
		}
		if common.HexToHash(l.Topics[0]) == topic &&
			common.HexToHash(l.Topics[1]) == fromTopic &&
			common.HexToHash(l.Topics[2]) == nonceTopic {
			return true, nil
		}
	}
	return false, nil
}
