// Package http is the relayer transport. It resolves relayer endpoints per
// environment and chain, posts /v2/metaTx JSON-RPC requests, and validates
// replies against RelayResponseSchema before they are decoded.
package http

// Relayer request headers
const (
	HeaderContentType = "Content-Type"
	HeaderAccept      = "Accept"

	ContentTypeJSON = "application/json"
)
