package types

import "strings"

// MetaTxMethodPrefix namespaces every relayer method
const MetaTxMethodPrefix = "/v2/metaTx/"

// RelayRequest is the JSON-RPC envelope posted to the relayer.
// Params is [chainId, typedData, v, r, s].
type RelayRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	ID      int           `json:"id"`
	Params  []interface{} `json:"params"`
}

// MetaTxMethod returns the namespaced relayer method for an operation
func MetaTxMethod(operation string) string {
	return MetaTxMethodPrefix + operation
}

// OperationFromMethod strips the relayer namespace from method.
// Returns false when method is not a meta-transaction method.
func OperationFromMethod(method string) (string, bool) {
	if !strings.HasPrefix(method, MetaTxMethodPrefix) {
		return "", false
	}
	op := strings.TrimPrefix(method, MetaTxMethodPrefix)
	return op, op != ""
}

// NewRelayRequest builds a relayer request for operation
func NewRelayRequest(operation string, chainID string, typedData interface{}, v string, r string, s string) RelayRequest {
	return RelayRequest{
		JSONRPC: JSONRPCVersion,
		Method:  MetaTxMethod(operation),
		ID:      DefaultRequestID,
		Params:  []interface{}{chainID, typedData, v, r, s},
	}
}
