// Package mcp exposes read-only relay queries as MCP (Model Context Protocol) tools.
//
// Tools never sign or send anything; they answer what an agent needs before
// asking a user to authorize an operation.
//
// # Tools
//
//   - path_exists: whether every hop of a swap path has a deployed pair
//   - quote_fee: the fee-token amount a relayed call of a given gas limit costs
//   - session_info: the chain, contracts, fee token and relayer in use
//
// # Server Usage
//
//	import (
//	    relay "github.com/metaswap/relay/go"
//	    "github.com/metaswap/relay/go/mcp"
//	    mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
//	)
//
//	client, _ := relay.NewClient(session, signer)
//	server := mcp.NewServer(client, mcp.Options{})
//
//	handler := mcpsdk.NewSSEHandler(func(*http.Request) *mcpsdk.Server { return server }, nil)
//	http.ListenAndServe(":3001", handler)
package mcp
