package evm

import (
	"context"
)

// PathExists reports whether every consecutive pair of path has a liquidity pair.
// Paths shorter than two tokens never exist.
func PathExists(ctx context.Context, reader ChainReader, factory string, path []string) (bool, error) {
	if len(path) < 2 {
		return false, nil
	}
	for i := 0; i < len(path)-1; i++ {
		pair, err := PairFor(ctx, reader, factory, path[i], path[i+1])
		if err != nil {
			return false, err
		}
		if IsZeroAddress(pair) {
			return false, nil
		}
	}
	return true, nil
}
