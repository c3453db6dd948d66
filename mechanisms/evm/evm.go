// Package evm builds and authenticates the EVM side of relayed DEX calls:
// EIP-712 Forwarder and Permit messages, signature splitting and recovery,
// router/factory/pair ABIs, and liquidity-path checks.
package evm

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SignTypedData asks signer to sign typedData and splits the result.
// The envelope is passed through unchanged so the signed domain is always the
// one the caller built for this call.
func SignTypedData(ctx context.Context, signer ClientEvmSigner, typedData apitypes.TypedData) (Signature, error) {
	raw, err := signer.SignTypedData(
		ctx,
		DomainFromTypedData(typedData),
		TypesFromTypedData(typedData),
		typedData.PrimaryType,
		typedData.Message,
	)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to sign %s: %w", typedData.PrimaryType, err)
	}
	return SplitSignature(raw)
}
