package evm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SignatureLength is the byte length of an r ‖ s ‖ v ECDSA signature
const SignatureLength = 65

// Signature is an ECDSA signature split into its three scalar components
type Signature struct {
	V uint8
	R [32]byte
	S [32]byte
}

// SplitSignature splits a 65-byte signature into v, r, s.
// v is normalized to 27/28.
func SplitSignature(sig []byte) (Signature, error) {
	if len(sig) != SignatureLength {
		return Signature{}, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(sig))
	}

	var out Signature
	copy(out.R[:], sig[0:32])
	copy(out.S[:], sig[32:64])
	out.V = sig[64]
	if out.V < 27 {
		out.V += 27
	}
	if out.V != 27 && out.V != 28 {
		return Signature{}, fmt.Errorf("invalid signature recovery id %d", sig[64])
	}
	return out, nil
}

// Bytes joins the components back into r ‖ s ‖ v
func (s Signature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	copy(out[0:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// VString returns v as a decimal string
func (s Signature) VString() string {
	return strconv.Itoa(int(s.V))
}

// RHex returns r as 0x-prefixed hex
func (s Signature) RHex() string {
	return hexutil.Encode(s.R[:])
}

// SHex returns s as 0x-prefixed hex
func (s Signature) SHex() string {
	return hexutil.Encode(s.S[:])
}

// MarshalJSON encodes the signature as {"v": 27, "r": "0x…", "s": "0x…"}
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		V uint8  `json:"v"`
		R string `json:"r"`
		S string `json:"s"`
	}{s.V, s.RHex(), s.SHex()})
}

// RecoverTypedDataSigner recovers the address that signed typedData
func RecoverTypedDataSigner(typedData apitypes.TypedData, sig Signature) (common.Address, error) {
	digest, err := HashTypedDataEnvelope(typedData)
	if err != nil {
		return common.Address{}, err
	}

	raw := sig.Bytes()
	if raw[64] >= 27 {
		raw[64] -= 27
	}

	pub, err := crypto.SigToPub(digest, raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyTypedDataSignature reports whether sig over typedData was produced by expected
func VerifyTypedDataSignature(typedData apitypes.TypedData, sig Signature, expected string) (bool, error) {
	if !IsValidAddress(expected) {
		return false, errors.New("invalid expected signer address")
	}
	recovered, err := RecoverTypedDataSigner(typedData, sig)
	if err != nil {
		return false, err
	}
	return recovered == common.HexToAddress(expected), nil
}

// ParseSignature parses the relayer wire form: v as a decimal string, r and s
// as 0x-prefixed 32-byte hex.
func ParseSignature(v, r, s string) (Signature, error) {
	vv, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		return Signature{}, fmt.Errorf("invalid v %q: %w", v, err)
	}
	rb, err := hexutil.Decode(r)
	if err != nil || len(rb) != 32 {
		return Signature{}, fmt.Errorf("invalid r %q", r)
	}
	sb, err := hexutil.Decode(s)
	if err != nil || len(sb) != 32 {
		return Signature{}, fmt.Errorf("invalid s %q", s)
	}
	return SplitSignature(append(append(rb, sb...), byte(vv)))
}
