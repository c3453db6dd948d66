package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	// PrimaryTypeForwarder is the EIP-712 primary type of meta-transactions
	PrimaryTypeForwarder = "Forwarder"

	// PrimaryTypePermit is the EIP-712 primary type of LP-token permits
	PrimaryTypePermit = "Permit"

	// EIP712DomainType is the reserved domain type name
	EIP712DomainType = "EIP712Domain"
)

// ForwarderDomain returns the domain for meta-transactions executed by router
func ForwarderDomain(name string, chainID *big.Int, router string) TypedDataDomain {
	return TypedDataDomain{
		Name:              name,
		Version:           DefaultForwarderDomainVersion,
		ChainID:           chainID,
		VerifyingContract: NormalizeAddress(router),
	}
}

// PermitDomain returns the domain for permits verified by a pair contract
func PermitDomain(name string, chainID *big.Int, pair string) TypedDataDomain {
	return TypedDataDomain{
		Name:              name,
		Version:           DefaultPermitDomainVersion,
		ChainID:           chainID,
		VerifyingContract: NormalizeAddress(pair),
	}
}

// DomainTypes lists the EIP712Domain fields present in domain
func DomainTypes(domain TypedDataDomain) []TypedDataField {
	fields := []TypedDataField{{Name: "name", Type: "string"}}
	if domain.Version != "" {
		fields = append(fields, TypedDataField{Name: "version", Type: "string"})
	}
	fields = append(fields,
		TypedDataField{Name: "chainId", Type: "uint256"},
		TypedDataField{Name: "verifyingContract", Type: "address"},
	)
	return fields
}

// GetForwarderEIP712Types returns the type set for a Forwarder message under domain
func GetForwarderEIP712Types(domain TypedDataDomain) map[string][]TypedDataField {
	return map[string][]TypedDataField{
		EIP712DomainType: DomainTypes(domain),
		PrimaryTypeForwarder: {
			{Name: "from", Type: "address"},
			{Name: "to", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "gas", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "data", Type: "bytes"},
			{Name: "feeToken", Type: "address"},
			{Name: "maxTokenFee", Type: "uint256"},
		},
	}
}

// GetPermitEIP712Types returns the type set for a Permit message under domain
func GetPermitEIP712Types(domain TypedDataDomain) map[string][]TypedDataField {
	return map[string][]TypedDataField{
		EIP712DomainType: DomainTypes(domain),
		PrimaryTypePermit: {
			{Name: "owner", Type: "address"},
			{Name: "spender", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "deadline", Type: "uint256"},
		},
	}
}

// ToMessage converts the forwarder message to its EIP-712 message map.
// Integers are decimal strings and bytes are hex so the map survives a JSON
// round trip with an identical hash.
func (m ForwarderMessage) ToMessage() map[string]interface{} {
	return map[string]interface{}{
		"from":        NormalizeAddress(m.From),
		"to":          NormalizeAddress(m.To),
		"value":       bigString(m.Value),
		"gas":         bigString(m.Gas),
		"nonce":       bigString(m.Nonce),
		"data":        hexutil.Encode(m.Data),
		"feeToken":    NormalizeAddress(m.FeeToken),
		"maxTokenFee": bigString(m.MaxTokenFee),
	}
}

// ToMessage converts the permit to its EIP-712 message map
func (m PermitMessage) ToMessage() map[string]interface{} {
	return map[string]interface{}{
		"owner":    NormalizeAddress(m.Owner),
		"spender":  NormalizeAddress(m.Spender),
		"value":    bigString(m.Value),
		"nonce":    bigString(m.Nonce),
		"deadline": bigString(m.Deadline),
	}
}

// NewForwarderTypedData builds the full typed-data envelope for msg
func NewForwarderTypedData(domain TypedDataDomain, msg ForwarderMessage) apitypes.TypedData {
	return ToTypedData(domain, GetForwarderEIP712Types(domain), PrimaryTypeForwarder, msg.ToMessage())
}

// NewPermitTypedData builds the full typed-data envelope for msg
func NewPermitTypedData(domain TypedDataDomain, msg PermitMessage) apitypes.TypedData {
	return ToTypedData(domain, GetPermitEIP712Types(domain), PrimaryTypePermit, msg.ToMessage())
}

// ToTypedData converts our typed-data pieces into the go-ethereum envelope
func ToTypedData(
	domain TypedDataDomain,
	types map[string][]TypedDataField,
	primaryType string,
	message map[string]interface{},
) apitypes.TypedData {
	typedData := apitypes.TypedData{
		Types:       make(apitypes.Types),
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			VerifyingContract: domain.VerifyingContract,
		},
		Message: message,
	}
	if domain.ChainID != nil {
		typedData.Domain.ChainId = (*math.HexOrDecimal256)(new(big.Int).Set(domain.ChainID))
	}

	for typeName, fields := range types {
		typedFields := make([]apitypes.Type, len(fields))
		for i, field := range fields {
			typedFields[i] = apitypes.Type{
				Name: field.Name,
				Type: field.Type,
			}
		}
		typedData.Types[typeName] = typedFields
	}

	if _, exists := typedData.Types[EIP712DomainType]; !exists {
		domainFields := DomainTypes(domain)
		typed := make([]apitypes.Type, len(domainFields))
		for i, field := range domainFields {
			typed[i] = apitypes.Type{Name: field.Name, Type: field.Type}
		}
		typedData.Types[EIP712DomainType] = typed
	}

	return typedData
}

// DomainFromTypedData extracts the domain of an envelope
func DomainFromTypedData(typedData apitypes.TypedData) TypedDataDomain {
	domain := TypedDataDomain{
		Name:              typedData.Domain.Name,
		Version:           typedData.Domain.Version,
		VerifyingContract: typedData.Domain.VerifyingContract,
	}
	if typedData.Domain.ChainId != nil {
		domain.ChainID = new(big.Int).Set((*big.Int)(typedData.Domain.ChainId))
	}
	return domain
}

// TypesFromTypedData extracts the type set of an envelope
func TypesFromTypedData(typedData apitypes.TypedData) map[string][]TypedDataField {
	types := make(map[string][]TypedDataField, len(typedData.Types))
	for name, fields := range typedData.Types {
		converted := make([]TypedDataField, len(fields))
		for i, field := range fields {
			converted[i] = TypedDataField{Name: field.Name, Type: field.Type}
		}
		types[name] = converted
	}
	return types
}

// HashTypedData hashes EIP-712 typed data.
// The hash is keccak256("\x19\x01" ‖ domainSeparator ‖ structHash).
func HashTypedData(
	domain TypedDataDomain,
	types map[string][]TypedDataField,
	primaryType string,
	message map[string]interface{},
) ([]byte, error) {
	return HashTypedDataEnvelope(ToTypedData(domain, types, primaryType, message))
}

// HashTypedDataEnvelope hashes an already assembled envelope
func HashTypedDataEnvelope(typedData apitypes.TypedData) ([]byte, error) {
	dataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash struct: %w", err)
	}

	domainSeparator, err := typedData.HashStruct(EIP712DomainType, typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, dataHash...)
	return crypto.Keccak256(rawData), nil
}

// NormalizeAddress returns the checksummed form of address
func NormalizeAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// IsValidAddress reports whether address is a 20-byte hex address
func IsValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// IsZeroAddress reports whether address is the zero-address sentinel
func IsZeroAddress(address string) bool {
	return common.HexToAddress(address) == (common.Address{})
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// ForwarderMessageFromTypedData parses a relayed Forwarder envelope back into
// a ForwarderMessage. It is the inverse of NewForwarderTypedData.
func ForwarderMessageFromTypedData(typedData apitypes.TypedData) (ForwarderMessage, error) {
	if typedData.PrimaryType != PrimaryTypeForwarder {
		return ForwarderMessage{}, fmt.Errorf("unexpected primary type %q", typedData.PrimaryType)
	}
	m := typedData.Message

	var out ForwarderMessage
	var err error
	if out.From, err = messageAddress(m, "from"); err != nil {
		return ForwarderMessage{}, err
	}
	if out.To, err = messageAddress(m, "to"); err != nil {
		return ForwarderMessage{}, err
	}
	if out.FeeToken, err = messageAddress(m, "feeToken"); err != nil {
		return ForwarderMessage{}, err
	}
	for field, dst := range map[string]**big.Int{
		"value":       &out.Value,
		"gas":         &out.Gas,
		"nonce":       &out.Nonce,
		"maxTokenFee": &out.MaxTokenFee,
	} {
		if *dst, err = messageUint(m, field); err != nil {
			return ForwarderMessage{}, err
		}
	}

	data, ok := m["data"].(string)
	if !ok {
		return ForwarderMessage{}, fmt.Errorf("message field data is not a hex string")
	}
	if out.Data, err = hexutil.Decode(data); err != nil {
		return ForwarderMessage{}, fmt.Errorf("message field data: %w", err)
	}
	return out, nil
}

func messageAddress(m apitypes.TypedDataMessage, field string) (string, error) {
	s, ok := m[field].(string)
	if !ok || !IsValidAddress(s) {
		return "", fmt.Errorf("message field %s is not an address", field)
	}
	return NormalizeAddress(s), nil
}

func messageUint(m apitypes.TypedDataMessage, field string) (*big.Int, error) {
	s, ok := m[field].(string)
	if !ok {
		return nil, fmt.Errorf("message field %s is not a decimal string", field)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("message field %s is not an unsigned integer: %q", field, s)
	}
	return v, nil
}
