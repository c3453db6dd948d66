package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ReadRouterNonce reads the meta-transaction nonce of user from the router
func ReadRouterNonce(ctx context.Context, reader ChainReader, router string, user string) (*big.Int, error) {
	result, err := reader.ReadContract(ctx, NormalizeAddress(router), RouterABI, FunctionNonces, common.HexToAddress(user))
	if err != nil {
		return nil, fmt.Errorf("failed to read router nonce: %w", err)
	}
	return toBigInt(result)
}

// ReadMetaEnabled reads whether the router currently accepts relayed calls
func ReadMetaEnabled(ctx context.Context, reader ChainReader, router string) (bool, error) {
	result, err := reader.ReadContract(ctx, NormalizeAddress(router), RouterABI, FunctionMetaEnabled)
	if err != nil {
		return false, fmt.Errorf("failed to read metaEnabled: %w", err)
	}
	enabled, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected metaEnabled type: %T", result)
	}
	return enabled, nil
}

// ReadPairNonce reads the permit nonce of owner from an LP pair
func ReadPairNonce(ctx context.Context, reader ChainReader, pair string, owner string) (*big.Int, error) {
	result, err := reader.ReadContract(ctx, NormalizeAddress(pair), PairABI, FunctionNonces, common.HexToAddress(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to read pair nonce: %w", err)
	}
	return toBigInt(result)
}

// ReadPairName reads the LP token name used as the permit domain name
func ReadPairName(ctx context.Context, reader ChainReader, pair string) (string, error) {
	result, err := reader.ReadContract(ctx, NormalizeAddress(pair), PairABI, FunctionName)
	if err != nil {
		return "", fmt.Errorf("failed to read pair name: %w", err)
	}
	name, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("unexpected name type: %T", result)
	}
	return name, nil
}

// ReadDecimals reads the decimals of an ERC20 token or price feed
func ReadDecimals(ctx context.Context, reader ChainReader, address string, abiBytes []byte) (uint8, error) {
	result, err := reader.ReadContract(ctx, NormalizeAddress(address), abiBytes, FunctionDecimals)
	if err != nil {
		return 0, fmt.Errorf("failed to read decimals: %w", err)
	}
	switch v := result.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unexpected decimals type: %T", result)
	}
}

// PairFor returns the pair address for (a, b), or ZeroAddress when none exists
func PairFor(ctx context.Context, reader ChainReader, factory string, a string, b string) (string, error) {
	result, err := reader.ReadContract(ctx, NormalizeAddress(factory), FactoryABI, FunctionGetPair,
		common.HexToAddress(a), common.HexToAddress(b))
	if err != nil {
		return "", fmt.Errorf("failed to read pair: %w", err)
	}
	switch v := result.(type) {
	case common.Address:
		return v.Hex(), nil
	case string:
		return NormalizeAddress(v), nil
	default:
		return "", fmt.Errorf("unexpected pair type: %T", result)
	}
}

func toBigInt(result interface{}) (*big.Int, error) {
	switch v := result.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unexpected integer type: %T", result)
	}
}
