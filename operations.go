package relay

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/metaswap/relay/go/mechanisms/evm"
	"github.com/metaswap/relay/go/types"
)

// GasOptions are the optional trailing gas parameters of every operation.
// They are never part of the signed router call.
type GasOptions struct {
	// GasLimit overrides the operation's default limit
	GasLimit uint64

	// GasPrice overrides the network gas price
	GasPrice *big.Int
}

// AddLiquidityParams are the arguments of addLiquidity
type AddLiquidityParams struct {
	TokenA         string
	TokenB         string
	AmountADesired *big.Int
	AmountBDesired *big.Int
	AmountAMin     *big.Int
	AmountBMin     *big.Int
	To             string
	Deadline       *big.Int
	GasOptions
}

func (p AddLiquidityParams) callArgs() []interface{} {
	return []interface{}{
		common.HexToAddress(p.TokenA),
		common.HexToAddress(p.TokenB),
		p.AmountADesired,
		p.AmountBDesired,
		p.AmountAMin,
		p.AmountBMin,
		common.HexToAddress(p.To),
		p.Deadline,
	}
}

func (p AddLiquidityParams) validate() error {
	return validateFields(
		addresses{"tokenA": p.TokenA, "tokenB": p.TokenB, "to": p.To},
		amounts{
			"amountADesired": p.AmountADesired, "amountBDesired": p.AmountBDesired,
			"amountAMin": p.AmountAMin, "amountBMin": p.AmountBMin, "deadline": p.Deadline,
		},
	)
}

// SwapExactInParams are the arguments of swapExactTokensForTokens
type SwapExactInParams struct {
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Path         []string
	To           string
	Deadline     *big.Int
	GasOptions
}

func (p SwapExactInParams) callArgs() []interface{} {
	return []interface{}{p.AmountIn, p.AmountOutMin, pathAddresses(p.Path), common.HexToAddress(p.To), p.Deadline}
}

func (p SwapExactInParams) validate() error {
	return validateFields(
		withPath(addresses{"to": p.To}, p.Path),
		amounts{"amountIn": p.AmountIn, "amountOutMin": p.AmountOutMin, "deadline": p.Deadline},
	)
}

// SwapExactOutParams are the arguments of swapTokensForExactTokens
type SwapExactOutParams struct {
	AmountOut   *big.Int
	AmountInMax *big.Int
	Path        []string
	To          string
	Deadline    *big.Int
	GasOptions
}

func (p SwapExactOutParams) callArgs() []interface{} {
	return []interface{}{p.AmountOut, p.AmountInMax, pathAddresses(p.Path), common.HexToAddress(p.To), p.Deadline}
}

func (p SwapExactOutParams) validate() error {
	return validateFields(
		withPath(addresses{"to": p.To}, p.Path),
		amounts{"amountOut": p.AmountOut, "amountInMax": p.AmountInMax, "deadline": p.Deadline},
	)
}

// RemoveLiquidityParams are the arguments of removeLiquidity.
// When Permit is set the call becomes removeLiquidityWithPermit and no prior
// LP-token approval is needed.
type RemoveLiquidityParams struct {
	TokenA     string
	TokenB     string
	Liquidity  *big.Int
	AmountAMin *big.Int
	AmountBMin *big.Int
	To         string
	Deadline   *big.Int
	Permit     *PermitSignature
	GasOptions
}

func (p RemoveLiquidityParams) callArgs() []interface{} {
	args := []interface{}{
		common.HexToAddress(p.TokenA),
		common.HexToAddress(p.TokenB),
		p.Liquidity,
		p.AmountAMin,
		p.AmountBMin,
		common.HexToAddress(p.To),
		p.Deadline,
	}
	if p.Permit != nil {
		args = append(args, p.Permit.ApproveMax, p.Permit.Signature.V, p.Permit.Signature.R, p.Permit.Signature.S)
	}
	return args
}

func (p RemoveLiquidityParams) method() string {
	if p.Permit != nil {
		return evm.FunctionRemoveLiquidityWithPermit
	}
	return evm.FunctionRemoveLiquidity
}

func (p RemoveLiquidityParams) validate() error {
	err := validateFields(
		addresses{"tokenA": p.TokenA, "tokenB": p.TokenB, "to": p.To},
		amounts{
			"liquidity": p.Liquidity, "amountAMin": p.AmountAMin,
			"amountBMin": p.AmountBMin, "deadline": p.Deadline,
		},
	)
	if err != nil || p.Permit == nil {
		return err
	}

	// The router checks the permit against the call's own deadline and value
	if p.Permit.Deadline == nil || p.Permit.Deadline.Cmp(p.Deadline) != 0 {
		return NewRelayError(ErrCodeInvalidParams, "permit deadline must equal the call deadline", nil)
	}
	want := p.Liquidity
	if p.Permit.ApproveMax {
		want = math.MaxBig256
	}
	if p.Permit.Value == nil || p.Permit.Value.Cmp(want) != 0 {
		return NewRelayError(ErrCodeInvalidParams, "permit value does not cover the liquidity removed", nil)
	}
	return nil
}

// PermitLPParams describe an LP-token permit for the pair of (TokenA, TokenB)
type PermitLPParams struct {
	TokenA string
	TokenB string

	// Value is the allowance; ignored when ApproveMax is set
	Value      *big.Int
	ApproveMax bool

	// Spender defaults to the router
	Spender string

	// Deadline defaults to now + evm.DefaultPermitValidity seconds
	Deadline *big.Int
}

// PermitSignature is a signed LP-token permit
type PermitSignature struct {
	Pair       string        `json:"pair"`
	Owner      string        `json:"owner"`
	Spender    string        `json:"spender"`
	Value      *big.Int      `json:"value"`
	Nonce      *big.Int      `json:"nonce"`
	Deadline   *big.Int      `json:"deadline"`
	ApproveMax bool          `json:"approveMax"`
	Signature  evm.Signature `json:"signature"`
}

// ============================================================================
// Operations
// ============================================================================

// AddLiquidity supplies liquidity to an existing pair
func (c *Client) AddLiquidity(ctx context.Context, p AddLiquidityParams) (*types.Response, error) {
	p.To = c.defaultRecipient(p.To)
	if err := p.validate(); err != nil {
		return nil, err
	}
	if _, err := c.requirePair(ctx, p.TokenA, p.TokenB); err != nil {
		return nil, err
	}
	gasLimit := p.GasLimit
	if gasLimit == 0 {
		gasLimit = evm.AddLiquidityGas
	}
	return c.SendRequest(ctx, Call{Method: evm.FunctionAddLiquidity, Args: p.callArgs()}, gasLimit, p.GasPrice)
}

// SwapExactTokensForTokens swaps an exact input amount along Path
func (c *Client) SwapExactTokensForTokens(ctx context.Context, p SwapExactInParams) (*types.Response, error) {
	p.To = c.defaultRecipient(p.To)
	if err := c.requirePath(ctx, p.Path); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return c.SendRequest(ctx, Call{Method: evm.FunctionSwapExactTokensForTokens, Args: p.callArgs()},
		swapGasLimit(p.GasLimit, p.Path), p.GasPrice)
}

// SwapTokensForExactTokens swaps up to AmountInMax for an exact output along Path
func (c *Client) SwapTokensForExactTokens(ctx context.Context, p SwapExactOutParams) (*types.Response, error) {
	p.To = c.defaultRecipient(p.To)
	if err := c.requirePath(ctx, p.Path); err != nil {
		return nil, err
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return c.SendRequest(ctx, Call{Method: evm.FunctionSwapTokensForExactTokens, Args: p.callArgs()},
		swapGasLimit(p.GasLimit, p.Path), p.GasPrice)
}

// RemoveLiquidity burns LP tokens of an existing pair
func (c *Client) RemoveLiquidity(ctx context.Context, p RemoveLiquidityParams) (*types.Response, error) {
	p.To = c.defaultRecipient(p.To)
	if err := p.validate(); err != nil {
		return nil, err
	}
	pair, err := c.requirePair(ctx, p.TokenA, p.TokenB)
	if err != nil {
		return nil, err
	}
	if p.Permit != nil && p.Permit.Pair != "" && evm.NormalizeAddress(p.Permit.Pair) != pair {
		return nil, NewRelayError(ErrCodeInvalidParams, fmt.Sprintf("permit was signed for pair %s, not %s", p.Permit.Pair, pair), nil)
	}
	gasLimit := p.GasLimit
	if gasLimit == 0 {
		gasLimit = evm.RemoveLiquidityGas
	}
	return c.SendRequest(ctx, Call{Method: p.method(), Args: p.callArgs()}, gasLimit, p.GasPrice)
}

// PermitLP signs an LP-token permit for later use with RemoveLiquidity.
// Nothing is dispatched.
func (c *Client) PermitLP(ctx context.Context, p PermitLPParams) (*PermitSignature, error) {
	if err := c.session.Validate(); err != nil {
		return nil, err
	}
	pair, err := c.requirePair(ctx, p.TokenA, p.TokenB)
	if err != nil {
		return nil, err
	}

	spender := p.Spender
	if spender == "" {
		spender = c.session.Router()
	}
	value := p.Value
	if p.ApproveMax {
		value = math.MaxBig256
	}
	if value == nil {
		return nil, NewRelayError(ErrCodeInvalidParams, "permit value is required", nil)
	}
	deadline := p.Deadline
	if deadline == nil {
		deadline = big.NewInt(c.now().Unix() + evm.DefaultPermitValidity)
	}

	provider := c.session.Provider()
	owner := c.signer.Address()
	nonce, err := evm.ReadPairNonce(ctx, provider, pair, owner)
	if err != nil {
		return nil, err
	}
	name, err := evm.ReadPairName(ctx, provider, pair)
	if err != nil {
		return nil, err
	}

	msg, err := evm.BuildPermitMessage(owner, spender, value, nonce, deadline)
	if err != nil {
		return nil, NewRelayError(ErrCodeInvalidParams, "failed to build permit", err)
	}
	typedData := evm.NewPermitTypedData(evm.PermitDomain(name, c.session.ChainID(), pair), msg)

	sig, err := evm.SignTypedData(ctx, c.signer, typedData)
	if err != nil {
		return nil, err
	}
	ok, err := evm.VerifyTypedDataSignature(typedData, sig, owner)
	if err != nil || !ok {
		return nil, NewRelayError(ErrCodeSignatureMismatch, fmt.Sprintf("permit signer does not match %s", owner), err)
	}

	c.logger.Debug().Str("pair", pair).Str("nonce", nonce.String()).Msg("LP permit signed")
	return &PermitSignature{
		Pair:       pair,
		Owner:      msg.Owner,
		Spender:    msg.Spender,
		Value:      msg.Value,
		Nonce:      msg.Nonce,
		Deadline:   msg.Deadline,
		ApproveMax: p.ApproveMax,
		Signature:  sig,
	}, nil
}

// PathExists reports whether every hop of path has a pair
func (c *Client) PathExists(ctx context.Context, path []string) (bool, error) {
	if err := c.session.Validate(); err != nil {
		return false, err
	}
	return evm.PathExists(ctx, c.session.Provider(), c.session.Factory(), path)
}

// ============================================================================
// Helpers
// ============================================================================

func (c *Client) defaultRecipient(to string) string {
	if to == "" {
		return c.signer.Address()
	}
	return to
}

func (c *Client) requirePair(ctx context.Context, tokenA, tokenB string) (string, error) {
	if err := c.session.Validate(); err != nil {
		return "", err
	}
	if !evm.IsValidAddress(tokenA) || !evm.IsValidAddress(tokenB) {
		return "", NewRelayError(ErrCodeInvalidParams, "invalid token address", nil)
	}
	pair, err := evm.PairFor(ctx, c.session.Provider(), c.session.Factory(), tokenA, tokenB)
	if err != nil {
		return "", err
	}
	if evm.IsZeroAddress(pair) {
		return "", NewRelayError(ErrCodePairNotFound, fmt.Sprintf("no pair for %s/%s", tokenA, tokenB), nil)
	}
	return pair, nil
}

func (c *Client) requirePath(ctx context.Context, path []string) error {
	if err := c.session.Validate(); err != nil {
		return err
	}
	if len(path) < 2 {
		return NewRelayError(ErrCodePathNotFound, fmt.Sprintf("path needs at least two tokens, got %d", len(path)), nil)
	}
	for _, token := range path {
		if !evm.IsValidAddress(token) {
			return NewRelayError(ErrCodeInvalidParams, fmt.Sprintf("invalid path token %q", token), nil)
		}
	}
	exists, err := c.PathExists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		return NewRelayError(ErrCodePathNotFound, fmt.Sprintf("path %v has a missing pair", path), nil)
	}
	return nil
}

func swapGasLimit(explicit uint64, path []string) uint64 {
	if explicit != 0 {
		return explicit
	}
	return evm.SwapGasLimit(len(path))
}

func pathAddresses(path []string) []common.Address {
	out := make([]common.Address, len(path))
	for i, token := range path {
		out[i] = common.HexToAddress(token)
	}
	return out
}

type addresses map[string]string

type amounts map[string]*big.Int

func withPath(a addresses, path []string) addresses {
	for i, token := range path {
		a[fmt.Sprintf("path[%d]", i)] = token
	}
	return a
}

func validateFields(addrs addresses, values amounts) error {
	for name, addr := range addrs {
		if !evm.IsValidAddress(addr) {
			return NewRelayError(ErrCodeInvalidParams, fmt.Sprintf("invalid %s address %q", name, addr), nil)
		}
	}
	for name, v := range values {
		if v == nil || v.Sign() < 0 {
			return NewRelayError(ErrCodeInvalidParams, fmt.Sprintf("%s must be a non-negative integer", name), nil)
		}
	}
	return nil
}
