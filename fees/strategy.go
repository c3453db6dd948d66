package fees

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/metaswap/relay/go/mechanisms/evm"
)

// BasisPoints is the markup denominator
const BasisPoints = 10000

var errOverflow = errors.New("fee conversion overflows uint256")

// OracleStrategy prices the native token with an on-chain feed quoting it in
// the fee token's unit (for example ETH/USD for a USD stablecoin).
type OracleStrategy struct {
	Reader    evm.ChainReader
	Feed      string
	MarkupBPS uint64
}

// Name implements Strategy
func (s *OracleStrategy) Name() string {
	return "oracle"
}

// Convert implements Strategy
func (s *OracleStrategy) Convert(ctx context.Context, feeToken string, tokenDecimals uint8, nativeWei *big.Int) (*big.Int, error) {
	if nativeWei.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if s.Reader == nil {
		return nil, errors.New("oracle strategy has no chain reader")
	}

	answer, err := readLatestAnswer(ctx, s.Reader, s.Feed)
	if err != nil {
		return nil, err
	}
	feedDecimals, err := evm.ReadDecimals(ctx, s.Reader, s.Feed, evm.PriceFeedABI)
	if err != nil {
		return nil, err
	}

	return convert(nativeWei, answer, feedDecimals, tokenDecimals, s.MarkupBPS)
}

// FixedRateStrategy uses a configured price instead of a feed.
// Rate is the fee-token amount per native token, scaled by 10^RateDecimals.
type FixedRateStrategy struct {
	Rate         *big.Int
	RateDecimals uint8
	MarkupBPS    uint64
}

// Name implements Strategy
func (s *FixedRateStrategy) Name() string {
	return "fixed-rate"
}

// Convert implements Strategy
func (s *FixedRateStrategy) Convert(ctx context.Context, feeToken string, tokenDecimals uint8, nativeWei *big.Int) (*big.Int, error) {
	if s.Rate == nil || s.Rate.Sign() <= 0 {
		return nil, errors.New("fixed rate must be positive")
	}
	return convert(nativeWei, s.Rate, s.RateDecimals, tokenDecimals, s.MarkupBPS)
}

func readLatestAnswer(ctx context.Context, reader evm.ChainReader, feed string) (*big.Int, error) {
	result, err := reader.ReadContract(ctx, evm.NormalizeAddress(feed), evm.PriceFeedABI, evm.FunctionLatestRoundData)
	if err != nil {
		return nil, fmt.Errorf("failed to read price feed: %w", err)
	}
	outputs, ok := result.([]interface{})
	if !ok || len(outputs) < 2 {
		return nil, fmt.Errorf("unexpected latestRoundData result: %T", result)
	}
	answer, ok := outputs[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected price answer type: %T", outputs[1])
	}
	if answer.Sign() <= 0 {
		return nil, fmt.Errorf("price feed returned non-positive answer %s", answer)
	}
	return answer, nil
}

// convert computes
//
//	ceil(nativeWei × price × 10^tokenDecimals × (10000+markup) / (10^18 × 10^priceDecimals × 10000))
func convert(nativeWei, price *big.Int, priceDecimals, tokenDecimals uint8, markupBPS uint64) (*big.Int, error) {
	wei, overflow := uint256.FromBig(nativeWei)
	if overflow || nativeWei.Sign() < 0 {
		return nil, errOverflow
	}
	p, overflow := uint256.FromBig(price)
	if overflow || price.Sign() < 0 {
		return nil, errOverflow
	}
	if wei.IsZero() {
		return big.NewInt(0), nil
	}

	tokenScale, err := pow10(tokenDecimals)
	if err != nil {
		return nil, err
	}
	nativeScale, err := pow10(evm.NativeDecimals)
	if err != nil {
		return nil, err
	}
	priceScale, err := pow10(priceDecimals)
	if err != nil {
		return nil, err
	}

	num := new(uint256.Int).Set(wei)
	for _, factor := range []*uint256.Int{p, tokenScale, uint256.NewInt(BasisPoints + markupBPS)} {
		if _, overflow := num.MulOverflow(num, factor); overflow {
			return nil, errOverflow
		}
	}

	den := new(uint256.Int).Set(nativeScale)
	for _, factor := range []*uint256.Int{priceScale, uint256.NewInt(BasisPoints)} {
		if _, overflow := den.MulOverflow(den, factor); overflow {
			return nil, errOverflow
		}
	}

	quo, rem := new(uint256.Int).DivMod(num, den, new(uint256.Int))
	if !rem.IsZero() {
		quo.AddUint64(quo, 1)
	}
	return quo.ToBig(), nil
}

func pow10(decimals uint8) (*uint256.Int, error) {
	scale, overflow := uint256.FromBig(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	if overflow {
		return nil, errOverflow
	}
	return scale, nil
}
