package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer creates an MCP server exposing q's read-only queries
func NewServer(q Querier, opts Options) *mcpsdk.Server {
	name, version := opts.Name, opts.Version
	if name == "" {
		name = ServerName
	}
	if version == "" {
		version = ServerVersion
	}

	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: name, Version: version}, nil)

	server.AddTool(&mcpsdk.Tool{
		Name:        ToolPathExists,
		Description: "Check that every consecutive token pair of a swap path has a deployed pair.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"path": {"type": "array", "items": {"type": "string"}, "minItems": 2}},
			"required": ["path"]
		}`),
	}, Wrap(PathExistsHandler(q)))

	server.AddTool(&mcpsdk.Tool{
		Name:        ToolQuoteFee,
		Description: "Quote the fee-token amount charged for a relayed call of the given gas limit.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"gasLimit": {"type": "integer", "minimum": 1},
				"gasPrice": {"type": "string", "description": "wei; defaults to the network price"}
			},
			"required": ["gasLimit"]
		}`),
	}, Wrap(QuoteFeeHandler(q)))

	server.AddTool(&mcpsdk.Tool{
		Name:        ToolSessionInfo,
		Description: "Describe the chain, contracts, fee token and relayer in use.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, Wrap(SessionInfoHandler(q)))

	return server
}

// Wrap adapts a ToolHandler to the SDK handler signature
func Wrap(handler ToolHandler) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		args := make(map[string]interface{})
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return toCallToolResult(errorResult("failed to unmarshal arguments: %v", err)), nil
			}
		}

		result, err := handler(ctx, args)
		if err != nil {
			return toCallToolResult(errorResult("%s", err.Error())), nil
		}
		return toCallToolResult(result), nil
	}
}

func toCallToolResult(result ToolResult) *mcpsdk.CallToolResult {
	out := &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result.Text}},
		IsError: result.IsError,
	}
	if result.StructuredContent != nil {
		out.StructuredContent = result.StructuredContent
	}
	return out
}

// PathExistsHandler answers path_exists
func PathExistsHandler(q Querier) ToolHandler {
	return func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
		path, err := StringSliceArg(args, "path")
		if err != nil {
			return errorResult("%s", err.Error()), nil
		}
		exists, err := q.PathExists(ctx, path)
		if err != nil {
			return ToolResult{}, fmt.Errorf("path check failed: %w", err)
		}
		return jsonResult(PathExistsResult{Path: path, Exists: exists})
	}
}

// QuoteFeeHandler answers quote_fee
func QuoteFeeHandler(q Querier) ToolHandler {
	return func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
		gasLimit, err := Uint64Arg(args, "gasLimit")
		if err != nil {
			return errorResult("%s", err.Error()), nil
		}
		if gasLimit == 0 {
			return errorResult("argument %q must be positive", "gasLimit"), nil
		}
		gasPrice, err := BigIntArg(args, "gasPrice")
		if err != nil {
			return errorResult("%s", err.Error()), nil
		}

		quote, price, err := q.QuoteFee(ctx, gasLimit, gasPrice)
		if err != nil {
			return ToolResult{}, fmt.Errorf("fee quote failed: %w", err)
		}
		return jsonResult(QuoteFeeResult{
			FeeToken:    quote.Token,
			Decimals:    quote.Decimals,
			MaxTokenFee: quote.MaxTokenFee.String(),
			GasLimit:    gasLimit,
			GasPrice:    price.String(),
		})
	}
}

// SessionInfoHandler answers session_info
func SessionInfoHandler(q Querier) ToolHandler {
	return func(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
		session := q.Session()
		if err := session.Validate(); err != nil {
			return ToolResult{}, err
		}
		feeToken := session.FeeToken()
		return jsonResult(SessionInfoResult{
			ChainID:     session.ChainID().String(),
			Environment: session.Environment(),
			Router:      session.Router(),
			Factory:     session.Factory(),
			FeeToken:    feeToken.Address,
			Decimals:    feeToken.Decimals,
			RelayerURL:  session.RelayerURL(),
		})
	}
}
