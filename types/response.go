package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// JSONRPCVersion is the protocol version carried by every relayer message
const JSONRPCVersion = "2.0"

// DefaultRequestID is the id used for relayer requests and locally built responses
const DefaultRequestID = 1

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Result is the outcome of a dispatched operation
type Result struct {
	ErrorMessage string `json:"errorMessage"`
	Success      bool   `json:"success"`
	TxnHash      string `json:"txnHash"`
}

// Response is the unified outcome shape for both the relay and direct paths
type Response struct {
	ID      int    `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Result  Result `json:"result"`
}

// NewSuccessResponse builds a successful response carrying txHash
func NewSuccessResponse(txHash string) *Response {
	return &Response{
		ID:      DefaultRequestID,
		JSONRPC: JSONRPCVersion,
		Result: Result{
			Success: true,
			TxnHash: txHash,
		},
	}
}

// NewFailureResponse builds a failed response carrying message
func NewFailureResponse(message string) *Response {
	return &Response{
		ID:      DefaultRequestID,
		JSONRPC: JSONRPCVersion,
		Result: Result{
			Success:      false,
			ErrorMessage: message,
		},
	}
}

// IsTxHash reports whether s is a 0x-prefixed 32-byte hex transaction hash
func IsTxHash(s string) bool {
	return txHashPattern.MatchString(s)
}

// Validate checks the success/txnHash/errorMessage invariant
func (r *Response) Validate() error {
	if r == nil {
		return errors.New("nil response")
	}
	if r.Result.Success {
		if !IsTxHash(r.Result.TxnHash) {
			return fmt.Errorf("successful response carries malformed txnHash %q", r.Result.TxnHash)
		}
		if r.Result.ErrorMessage != "" {
			return fmt.Errorf("successful response carries errorMessage %q", r.Result.ErrorMessage)
		}
		return nil
	}
	if r.Result.TxnHash != "" {
		return fmt.Errorf("failed response carries txnHash %q", r.Result.TxnHash)
	}
	return nil
}

// Normalize returns a copy of r that satisfies the invariant.
// A success claim without a well-formed hash becomes a failure; a failure
// drops any hash it carried.
func (r *Response) Normalize() *Response {
	if r == nil {
		return NewFailureResponse("empty response")
	}
	out := *r
	if out.JSONRPC == "" {
		out.JSONRPC = JSONRPCVersion
	}
	if out.Result.Success {
		if !IsTxHash(out.Result.TxnHash) {
			out.Result = Result{
				Success:      false,
				ErrorMessage: fmt.Sprintf("relayer reported success with malformed txnHash %q", out.Result.TxnHash),
			}
			return &out
		}
		out.Result.ErrorMessage = ""
		return &out
	}
	out.Result.TxnHash = ""
	if out.Result.ErrorMessage == "" {
		out.Result.ErrorMessage = "operation failed without an error message"
	}
	return &out
}

// ToResponse unmarshals bytes to a response
func ToResponse(data []byte) (*Response, error) {
	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, err
	}
	return &response, nil
}
