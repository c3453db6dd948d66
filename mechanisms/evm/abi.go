package evm

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var parsedABIs sync.Map

// ParseABI parses abiBytes once and caches the result
func ParseABI(abiBytes []byte) (abi.ABI, error) {
	key := string(abiBytes)
	if cached, ok := parsedABIs.Load(key); ok {
		return cached.(abi.ABI), nil
	}
	parsed, err := abi.JSON(bytes.NewReader(abiBytes))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	parsedABIs.Store(key, parsed)
	return parsed, nil
}

// EncodeRouterCall ABI-encodes a router method invocation
func EncodeRouterCall(method string, args ...interface{}) ([]byte, error) {
	routerABI, err := ParseABI(RouterABI)
	if err != nil {
		return nil, err
	}
	data, err := routerABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", method, err)
	}
	return data, nil
}

// DecodeRouterCall unpacks calldata produced by EncodeRouterCall.
// Returns the method name and its arguments.
func DecodeRouterCall(data []byte) (string, []interface{}, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("calldata too short: %d bytes", len(data))
	}
	routerABI, err := ParseABI(RouterABI)
	if err != nil {
		return "", nil, err
	}
	method, err := routerABI.MethodById(data[:4])
	if err != nil {
		return "", nil, fmt.Errorf("unknown router method: %w", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, fmt.Errorf("failed to unpack %s arguments: %w", method.Name, err)
	}
	return method.Name, args, nil
}

// MetaTransactionExecutedTopic returns topic0 of the router's execution event
func MetaTransactionExecutedTopic() (common.Hash, error) {
	routerABI, err := ParseABI(RouterABI)
	if err != nil {
		return common.Hash{}, err
	}
	event, ok := routerABI.Events[EventMetaTransactionExecuted]
	if !ok {
		return common.Hash{}, fmt.Errorf("router ABI has no %s event", EventMetaTransactionExecuted)
	}
	return event.ID, nil
}

// EncodeExecuteMetaTransaction encodes the router call a relayer submits for
// a signed forwarder message
func EncodeExecuteMetaTransaction(msg ForwarderMessage, sig Signature) ([]byte, error) {
	return EncodeRouterCall(FunctionExecuteMetaTransaction,
		common.HexToAddress(msg.From),
		common.HexToAddress(msg.To),
		bigOrZero(msg.Value),
		bigOrZero(msg.Gas),
		bigOrZero(msg.Nonce),
		msg.Data,
		common.HexToAddress(msg.FeeToken),
		bigOrZero(msg.MaxTokenFee),
		sig.V,
		sig.R,
		sig.S,
	)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
