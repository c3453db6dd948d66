package relay

import (
	"context"
	"math/big"
	"time"

	"github.com/metaswap/relay/go/mechanisms/evm"
	"github.com/metaswap/relay/go/types"
)

// ============================================================================
// Dispatch Hook Context Types
// ============================================================================

// DispatchContext contains information passed to dispatch hooks
type DispatchContext struct {
	Ctx       context.Context
	Operation string
	Path      string
	ChainID   *big.Int
	From      string
	Nonce     *big.Int
	Fee       evm.FeeQuote
	GasLimit  uint64
	GasPrice  *big.Int
	Timestamp time.Time
}

// DispatchResultContext contains the outcome of a dispatch that produced a Response
type DispatchResultContext struct {
	DispatchContext
	Response *types.Response
	Duration time.Duration
}

// DispatchFailureContext contains a dispatch that ended in an error
type DispatchFailureContext struct {
	DispatchContext
	Error    error
	Duration time.Duration
}

// ============================================================================
// Dispatch Hook Result Types
// ============================================================================

// BeforeHookResult represents the result of a "before" hook
// If Abort is true, the dispatch is skipped with the given Reason
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// ============================================================================
// Dispatch Hook Function Types
// ============================================================================

// BeforeDispatchHook is called after the message is built and before it is signed or sent.
// If it returns a result with Abort=true, the call fails with ErrDispatchAborted
type BeforeDispatchHook func(DispatchContext) (*BeforeHookResult, error)

// AfterDispatchHook is called with every Response, successful or not.
// Any error returned is logged but does not affect the result
type AfterDispatchHook func(DispatchResultContext) error

// OnDispatchFailureHook is called when dispatch returns an error.
// Any error returned is logged but does not affect the result
type OnDispatchFailureHook func(DispatchFailureContext) error

type hooks struct {
	beforeDispatch    []BeforeDispatchHook
	afterDispatch     []AfterDispatchHook
	onDispatchFailure []OnDispatchFailureHook
}

func (h hooks) clone() hooks {
	return hooks{
		beforeDispatch:    append([]BeforeDispatchHook(nil), h.beforeDispatch...),
		afterDispatch:     append([]AfterDispatchHook(nil), h.afterDispatch...),
		onDispatchFailure: append([]OnDispatchFailureHook(nil), h.onDispatchFailure...),
	}
}
