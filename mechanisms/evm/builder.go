package evm

import (
	"errors"
	"fmt"
	"math/big"
)

// ForwarderParams carries everything that ends up in a signed Forwarder message
type ForwarderParams struct {
	From   string
	Router string
	Method string
	Args   []interface{}
	Gas    uint64
	Nonce  *big.Int
	Fee    FeeQuote
}

// BuildForwarderMessage encodes the router call and assembles the Forwarder message.
// Nonce must be read from the router immediately before calling.
func BuildForwarderMessage(p ForwarderParams) (ForwarderMessage, error) {
	if !IsValidAddress(p.From) {
		return ForwarderMessage{}, fmt.Errorf("invalid from address: %q", p.From)
	}
	if !IsValidAddress(p.Router) {
		return ForwarderMessage{}, fmt.Errorf("invalid router address: %q", p.Router)
	}
	if p.Nonce == nil || p.Nonce.Sign() < 0 {
		return ForwarderMessage{}, errors.New("nonce is required")
	}
	if !IsValidAddress(p.Fee.Token) {
		return ForwarderMessage{}, fmt.Errorf("invalid fee token address: %q", p.Fee.Token)
	}
	if p.Fee.MaxTokenFee == nil || p.Fee.MaxTokenFee.Sign() < 0 {
		return ForwarderMessage{}, errors.New("max token fee must be a non-negative integer")
	}

	data, err := EncodeRouterCall(p.Method, p.Args...)
	if err != nil {
		return ForwarderMessage{}, err
	}

	return ForwarderMessage{
		From:        NormalizeAddress(p.From),
		To:          NormalizeAddress(p.Router),
		Value:       big.NewInt(0),
		Gas:         new(big.Int).SetUint64(p.Gas),
		Nonce:       new(big.Int).Set(p.Nonce),
		Data:        data,
		FeeToken:    NormalizeAddress(p.Fee.Token),
		MaxTokenFee: new(big.Int).Set(p.Fee.MaxTokenFee),
	}, nil
}

// BuildPermitMessage assembles an LP-token permit
func BuildPermitMessage(owner, spender string, value, nonce, deadline *big.Int) (PermitMessage, error) {
	if !IsValidAddress(owner) {
		return PermitMessage{}, fmt.Errorf("invalid owner address: %q", owner)
	}
	if !IsValidAddress(spender) {
		return PermitMessage{}, fmt.Errorf("invalid spender address: %q", spender)
	}
	for name, v := range map[string]*big.Int{"value": value, "nonce": nonce, "deadline": deadline} {
		if v == nil || v.Sign() < 0 {
			return PermitMessage{}, fmt.Errorf("permit %s must be a non-negative integer", name)
		}
	}

	return PermitMessage{
		Owner:    NormalizeAddress(owner),
		Spender:  NormalizeAddress(spender),
		Value:    new(big.Int).Set(value),
		Nonce:    new(big.Int).Set(nonce),
		Deadline: new(big.Int).Set(deadline),
	}, nil
}
