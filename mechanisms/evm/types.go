package evm

import (
	"context"
	"math/big"
)

// ChainReader performs read-only contract calls
type ChainReader interface {
	// ReadContract reads data from a smart contract
	ReadContract(ctx context.Context, address string, abi []byte, functionName string, args ...interface{}) (interface{}, error)
}

// Provider is the connected network the relay client talks to.
// It also submits transactions for the direct (non-relayed) path with the
// caller's own key.
type Provider interface {
	ChainReader

	// GetChainID returns the chain ID of the connected network
	GetChainID(ctx context.Context) (*big.Int, error)

	// SuggestGasPrice returns the current network gas price in wei
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// BlockNumber returns the latest block number
	BlockNumber(ctx context.Context) (uint64, error)

	// SendTransaction signs and submits a transaction from the caller's account
	SendTransaction(ctx context.Context, tx TransactionRequest) (string, error)

	// WaitForTransactionReceipt waits for a transaction to be mined
	WaitForTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error)
}

// ClientEvmSigner defines the interface for client-side EVM signing operations
type ClientEvmSigner interface {
	// Address returns the signer's Ethereum address
	Address() string

	// SignTypedData signs EIP-712 typed data
	SignTypedData(ctx context.Context, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error)
}

// TypedDataDomain represents the EIP-712 domain separator.
// Version is optional; when empty it is left out of the domain type.
type TypedDataDomain struct {
	Name              string   `json:"name"`
	Version           string   `json:"version,omitempty"`
	ChainID           *big.Int `json:"chainId"`
	VerifyingContract string   `json:"verifyingContract"`
}

// TypedDataField represents a field in EIP-712 typed data
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TransactionRequest is an unsigned direct transaction
type TransactionRequest struct {
	To       string
	Data     []byte
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
}

// Log is an event emitted during transaction execution
type Log struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    []byte   `json:"data"`
}

// TransactionReceipt represents the receipt of a mined transaction
type TransactionReceipt struct {
	Status      uint64 `json:"status"`
	BlockNumber uint64 `json:"blockNumber"`
	TxHash      string `json:"transactionHash"`
	Logs        []Log  `json:"logs"`
}

// ForwarderMessage is the signed meta-transaction.
// Data is the ABI-encoded router call; FeeToken and MaxTokenFee are part of
// the signed struct so the signature also authorizes the fee.
type ForwarderMessage struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	Value       *big.Int `json:"value"`
	Gas         *big.Int `json:"gas"`
	Nonce       *big.Int `json:"nonce"`
	Data        []byte   `json:"data"`
	FeeToken    string   `json:"feeToken"`
	MaxTokenFee *big.Int `json:"maxTokenFee"`
}

// PermitMessage is an LP-token allowance authorization scoped to a pair
type PermitMessage struct {
	Owner    string   `json:"owner"`
	Spender  string   `json:"spender"`
	Value    *big.Int `json:"value"`
	Nonce    *big.Int `json:"nonce"`
	Deadline *big.Int `json:"deadline"`
}

// FeeQuote is the fee charged for one request in fee-token smallest units
type FeeQuote struct {
	Token       string   `json:"token"`
	Decimals    uint8    `json:"decimals"`
	MaxTokenFee *big.Int `json:"maxTokenFee"`
}
