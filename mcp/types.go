package mcp

import (
	"context"
	"math/big"

	relay "github.com/metaswap/relay/go"
	"github.com/metaswap/relay/go/mechanisms/evm"
)

// Tool names
const (
	ToolPathExists  = "path_exists"
	ToolQuoteFee    = "quote_fee"
	ToolSessionInfo = "session_info"
)

// Implementation identifies the server to MCP clients
const (
	ServerName    = "metaswap-relay"
	ServerVersion = "1.0.0"
)

// Querier is the read-only surface of a relay client
type Querier interface {
	Session() *relay.Session
	PathExists(ctx context.Context, path []string) (bool, error)
	QuoteFee(ctx context.Context, gasLimit uint64, gasPrice *big.Int) (evm.FeeQuote, *big.Int, error)
}

var _ Querier = (*relay.Client)(nil)

// Options configures the server
type Options struct {
	// Name and Version override ServerName and ServerVersion
	Name    string
	Version string
}

// ToolResult is the transport-independent result of a tool handler
type ToolResult struct {
	Text              string
	StructuredContent interface{}
	IsError           bool
}

// ToolHandler handles one tool call with decoded arguments
type ToolHandler func(ctx context.Context, args map[string]interface{}) (ToolResult, error)

// PathExistsResult is returned by path_exists
type PathExistsResult struct {
	Path   []string `json:"path"`
	Exists bool     `json:"exists"`
}

// QuoteFeeResult is returned by quote_fee
type QuoteFeeResult struct {
	FeeToken    string `json:"feeToken"`
	Decimals    uint8  `json:"decimals"`
	MaxTokenFee string `json:"maxTokenFee"`
	GasLimit    uint64 `json:"gasLimit"`
	GasPrice    string `json:"gasPrice"`
}

// SessionInfoResult is returned by session_info
type SessionInfoResult struct {
	ChainID     string `json:"chainId"`
	Environment string `json:"environment"`
	Router      string `json:"router"`
	Factory     string `json:"factory"`
	FeeToken    string `json:"feeToken"`
	Decimals    uint8  `json:"decimals"`
	RelayerURL  string `json:"relayerUrl"`
}
