package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"
	"time"

	relay "github.com/metaswap/relay/go"
)

// defaultDeadline is how long a signed call stays valid when -deadline is not set
const defaultDeadline = 20 * time.Minute

// bigFlag is a base-10 big.Int flag; an empty value leaves it nil
type bigFlag struct{ v *big.Int }

func (f *bigFlag) String() string {
	if f.v == nil {
		return ""
	}
	return f.v.String()
}

func (f *bigFlag) Set(s string) error {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return fmt.Errorf("invalid amount %q", s)
	}
	f.v = v
	return nil
}

// pathFlag is a comma separated token path
type pathFlag []string

func (p *pathFlag) String() string { return strings.Join(*p, ",") }

func (p *pathFlag) Set(s string) error {
	*p = nil
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*p = append(*p, part)
		}
	}
	return nil
}

// commonFlags are shared by every write command
type commonFlags struct {
	to       string
	deadline time.Duration
	gasLimit uint64
	gasPrice bigFlag
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.to, "to", "", "recipient (defaults to the signer)")
	fs.DurationVar(&c.deadline, "deadline", defaultDeadline, "validity window of the signed call")
	fs.Uint64Var(&c.gasLimit, "gas-limit", 0, "gas limit override")
	fs.Var(&c.gasPrice, "gas-price", "gas price override in wei")
}

func (c *commonFlags) gas() relay.GasOptions {
	return relay.GasOptions{GasLimit: c.gasLimit, GasPrice: c.gasPrice.v}
}

func (c *commonFlags) deadlineAt(now time.Time) *big.Int {
	return big.NewInt(now.Add(c.deadline).Unix())
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func required(values map[string]*big.Int) error {
	var missing []string
	for name, v := range values {
		if v == nil {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func parseSwapExactIn(args []string, now time.Time, out io.Writer) (relay.SwapExactInParams, error) {
	var (
		common       commonFlags
		amountIn     bigFlag
		amountOutMin bigFlag
		path         pathFlag
	)
	fs := newFlagSet("swap-exact-in", out)
	common.register(fs)
	fs.Var(&amountIn, "amount-in", "exact input amount")
	fs.Var(&amountOutMin, "amount-out-min", "minimum output amount")
	fs.Var(&path, "path", "comma separated token path")
	if err := fs.Parse(args); err != nil {
		return relay.SwapExactInParams{}, err
	}
	if err := required(map[string]*big.Int{"amount-in": amountIn.v, "amount-out-min": amountOutMin.v}); err != nil {
		return relay.SwapExactInParams{}, err
	}
	return relay.SwapExactInParams{
		AmountIn:     amountIn.v,
		AmountOutMin: amountOutMin.v,
		Path:         path,
		To:           common.to,
		Deadline:     common.deadlineAt(now),
		GasOptions:   common.gas(),
	}, nil
}

func parseSwapExactOut(args []string, now time.Time, out io.Writer) (relay.SwapExactOutParams, error) {
	var (
		common      commonFlags
		amountOut   bigFlag
		amountInMax bigFlag
		path        pathFlag
	)
	fs := newFlagSet("swap-exact-out", out)
	common.register(fs)
	fs.Var(&amountOut, "amount-out", "exact output amount")
	fs.Var(&amountInMax, "amount-in-max", "maximum input amount")
	fs.Var(&path, "path", "comma separated token path")
	if err := fs.Parse(args); err != nil {
		return relay.SwapExactOutParams{}, err
	}
	if err := required(map[string]*big.Int{"amount-out": amountOut.v, "amount-in-max": amountInMax.v}); err != nil {
		return relay.SwapExactOutParams{}, err
	}
	return relay.SwapExactOutParams{
		AmountOut:   amountOut.v,
		AmountInMax: amountInMax.v,
		Path:        path,
		To:          common.to,
		Deadline:    common.deadlineAt(now),
		GasOptions:  common.gas(),
	}, nil
}

func parseAddLiquidity(args []string, now time.Time, out io.Writer) (relay.AddLiquidityParams, error) {
	var (
		common                 commonFlags
		tokenA, tokenB         string
		amountA, amountB       bigFlag
		amountAMin, amountBMin bigFlag
	)
	fs := newFlagSet("add-liquidity", out)
	common.register(fs)
	fs.StringVar(&tokenA, "token-a", "", "first token")
	fs.StringVar(&tokenB, "token-b", "", "second token")
	fs.Var(&amountA, "amount-a", "desired amount of token A")
	fs.Var(&amountB, "amount-b", "desired amount of token B")
	fs.Var(&amountAMin, "amount-a-min", "minimum amount of token A (defaults to 0)")
	fs.Var(&amountBMin, "amount-b-min", "minimum amount of token B (defaults to 0)")
	if err := fs.Parse(args); err != nil {
		return relay.AddLiquidityParams{}, err
	}
	if err := required(map[string]*big.Int{"amount-a": amountA.v, "amount-b": amountB.v}); err != nil {
		return relay.AddLiquidityParams{}, err
	}
	return relay.AddLiquidityParams{
		TokenA:         tokenA,
		TokenB:         tokenB,
		AmountADesired: amountA.v,
		AmountBDesired: amountB.v,
		AmountAMin:     orZero(amountAMin.v),
		AmountBMin:     orZero(amountBMin.v),
		To:             common.to,
		Deadline:       common.deadlineAt(now),
		GasOptions:     common.gas(),
	}, nil
}

// removeLiquidityArgs carries -permit, which needs a signed permit before the call is built
type removeLiquidityArgs struct {
	params     relay.RemoveLiquidityParams
	permit     bool
	approveMax bool
}

func parseRemoveLiquidity(args []string, now time.Time, out io.Writer) (removeLiquidityArgs, error) {
	var (
		common                 commonFlags
		tokenA, tokenB         string
		liquidity              bigFlag
		amountAMin, amountBMin bigFlag
		permit, approveMax     bool
	)
	fs := newFlagSet("remove-liquidity", out)
	common.register(fs)
	fs.StringVar(&tokenA, "token-a", "", "first token")
	fs.StringVar(&tokenB, "token-b", "", "second token")
	fs.Var(&liquidity, "liquidity", "LP tokens to burn")
	fs.Var(&amountAMin, "amount-a-min", "minimum amount of token A (defaults to 0)")
	fs.Var(&amountBMin, "amount-b-min", "minimum amount of token B (defaults to 0)")
	fs.BoolVar(&permit, "permit", false, "sign an LP permit and use removeLiquidityWithPermit")
	fs.BoolVar(&approveMax, "approve-max", false, "permit the maximum allowance (with -permit)")
	if err := fs.Parse(args); err != nil {
		return removeLiquidityArgs{}, err
	}
	if err := required(map[string]*big.Int{"liquidity": liquidity.v}); err != nil {
		return removeLiquidityArgs{}, err
	}
	if approveMax && !permit {
		return removeLiquidityArgs{}, errors.New("-approve-max requires -permit")
	}
	return removeLiquidityArgs{
		params: relay.RemoveLiquidityParams{
			TokenA:     tokenA,
			TokenB:     tokenB,
			Liquidity:  liquidity.v,
			AmountAMin: orZero(amountAMin.v),
			AmountBMin: orZero(amountBMin.v),
			To:         common.to,
			Deadline:   common.deadlineAt(now),
			GasOptions: common.gas(),
		},
		permit:     permit,
		approveMax: approveMax,
	}, nil
}

// permitParams is the LP permit matching a remove-liquidity call
func (a removeLiquidityArgs) permitParams() relay.PermitLPParams {
	return relay.PermitLPParams{
		TokenA:     a.params.TokenA,
		TokenB:     a.params.TokenB,
		Value:      a.params.Liquidity,
		ApproveMax: a.approveMax,
		Deadline:   a.params.Deadline,
	}
}

func parsePath(args []string, out io.Writer) ([]string, error) {
	var path pathFlag
	fs := newFlagSet("path", out)
	fs.Var(&path, "path", "comma separated token path")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if len(path) < 2 {
		return nil, errors.New("-path needs at least two tokens")
	}
	return path, nil
}

func parseQuoteFee(args []string, out io.Writer) (uint64, *big.Int, error) {
	var (
		gasLimit uint64
		gasPrice bigFlag
	)
	fs := newFlagSet("quote-fee", out)
	fs.Uint64Var(&gasLimit, "gas-limit", 0, "gas limit of the call")
	fs.Var(&gasPrice, "gas-price", "gas price in wei (defaults to the network price)")
	if err := fs.Parse(args); err != nil {
		return 0, nil, err
	}
	if gasLimit == 0 {
		return 0, nil, errors.New("missing -gas-limit")
	}
	return gasLimit, gasPrice.v, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
