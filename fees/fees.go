// Package fees converts the native gas cost of a relayed call into the maximum
// fee the user authorizes, denominated in the session's fee token.
package fees

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/rs/zerolog"
)

// Mode selects whether a chain charges a relay fee
type Mode string

const (
	// ModeCharge converts the native cost with the policy's strategy
	ModeCharge Mode = "charge"

	// ModeWaive signs a zero fee
	ModeWaive Mode = "waive"
)

// ErrNoFeePolicy is returned for chains without a configured policy
var ErrNoFeePolicy = errors.New("no fee policy for chain")

// Strategy converts a native wei amount into fee-token smallest units
type Strategy interface {
	// Name identifies the strategy in logs
	Name() string

	// Convert returns the fee in fee-token smallest units, rounded up
	Convert(ctx context.Context, feeToken string, tokenDecimals uint8, nativeWei *big.Int) (*big.Int, error)
}

// Policy is the fee rule for one chain
type Policy struct {
	Mode     Mode
	Strategy Strategy
}

// Validate checks the policy is usable
func (p Policy) Validate() error {
	switch p.Mode {
	case ModeWaive:
		return nil
	case ModeCharge:
		if p.Strategy == nil {
			return errors.New("charge policy requires a strategy")
		}
		return nil
	default:
		return fmt.Errorf("unknown fee mode %q", p.Mode)
	}
}

// Waive returns a policy that never charges
func Waive() Policy {
	return Policy{Mode: ModeWaive}
}

// Charge returns a policy that converts with strategy
func Charge(strategy Strategy) Policy {
	return Policy{Mode: ModeCharge, Strategy: strategy}
}

// Estimator is the per-chain fee table
type Estimator struct {
	policies map[uint64]Policy
	fallback *Policy
	logger   zerolog.Logger
}

// Option configures an Estimator
type Option func(*Estimator)

// WithFallback applies policy to chains missing from the table.
// Without it those chains fail with ErrNoFeePolicy.
func WithFallback(policy Policy) Option {
	return func(e *Estimator) {
		p := policy
		e.fallback = &p
	}
}

// WithLogger sets the estimator logger
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Estimator) {
		e.logger = logger
	}
}

// NewEstimator creates an estimator over policies keyed by chain id
func NewEstimator(policies map[uint64]Policy, opts ...Option) (*Estimator, error) {
	e := &Estimator{
		policies: make(map[uint64]Policy, len(policies)),
		logger:   zerolog.Nop(),
	}
	for chainID, policy := range policies {
		if err := policy.Validate(); err != nil {
			return nil, fmt.Errorf("chain %d: %w", chainID, err)
		}
		e.policies[chainID] = policy
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fallback != nil {
		if err := e.fallback.Validate(); err != nil {
			return nil, fmt.Errorf("fallback policy: %w", err)
		}
	}
	return e, nil
}

// Policy returns the policy in effect for chainID
func (e *Estimator) Policy(chainID *big.Int) (Policy, error) {
	if chainID == nil || !chainID.IsUint64() {
		return Policy{}, fmt.Errorf("%w: %v", ErrNoFeePolicy, chainID)
	}
	if policy, ok := e.policies[chainID.Uint64()]; ok {
		return policy, nil
	}
	if e.fallback != nil {
		return *e.fallback, nil
	}
	return Policy{}, fmt.Errorf("%w: %s", ErrNoFeePolicy, chainID)
}

// Estimate returns the maximum fee for a call costing nativeWei on chainID.
// nativeWei is gasLimit × gasPrice of the underlying call.
func (e *Estimator) Estimate(ctx context.Context, chainID *big.Int, feeToken string, tokenDecimals uint8, nativeWei *big.Int) (*big.Int, error) {
	if nativeWei == nil || nativeWei.Sign() < 0 {
		return nil, errors.New("native fee must be a non-negative integer")
	}

	policy, err := e.Policy(chainID)
	if err != nil {
		return nil, err
	}

	if policy.Mode == ModeWaive {
		e.logger.Debug().Str("chainId", chainID.String()).Msg("relay fee waived")
		return big.NewInt(0), nil
	}

	fee, err := policy.Strategy.Convert(ctx, feeToken, tokenDecimals, nativeWei)
	if err != nil {
		return nil, fmt.Errorf("%s fee conversion failed: %w", policy.Strategy.Name(), err)
	}
	if fee.Sign() < 0 {
		return nil, fmt.Errorf("%s returned a negative fee", policy.Strategy.Name())
	}

	e.logger.Debug().
		Str("chainId", chainID.String()).
		Str("strategy", policy.Strategy.Name()).
		Str("nativeWei", nativeWei.String()).
		Str("maxTokenFee", fee.String()).
		Msg("relay fee quoted")
	return fee, nil
}

// NativeFee returns gasLimit × gasPrice
func NativeFee(gasLimit uint64, gasPrice *big.Int) *big.Int {
	if gasPrice == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
}
