package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/metaswap/relay/go/types"
)

// ============================================================================
// HTTP Relayer Client
// ============================================================================

// RelayerClient posts signed meta-transactions to a relayer's JSON-RPC endpoint
type RelayerClient struct {
	url          string
	httpClient   *http.Client
	authProvider AuthProvider
}

// AuthProvider generates authentication headers for relayer requests
type AuthProvider interface {
	// GetAuthHeaders returns headers added to every relay request
	GetAuthHeaders(ctx context.Context) (map[string]string, error)
}

// StaticAuth sends the same headers on every request
type StaticAuth map[string]string

// GetAuthHeaders implements AuthProvider
func (a StaticAuth) GetAuthHeaders(ctx context.Context) (map[string]string, error) {
	return a, nil
}

// RelayerConfig configures the HTTP relayer client
type RelayerConfig struct {
	// URL is the relayer endpoint, usually resolved from an EndpointTable
	URL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// AuthProvider provides authentication headers (optional)
	AuthProvider AuthProvider

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration
}

// DefaultRelayerTimeout bounds a relay round trip when no client is supplied
const DefaultRelayerTimeout = 30 * time.Second

// maxResponseBytes caps how much of a relayer reply is read
const maxResponseBytes = 1 << 20

// NewRelayerClient creates a new HTTP relayer client
func NewRelayerClient(config *RelayerConfig) *RelayerClient {
	if config == nil {
		config = &RelayerConfig{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = DefaultRelayerTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &RelayerClient{
		url:          config.URL,
		httpClient:   httpClient,
		authProvider: config.AuthProvider,
	}
}

// URL returns the endpoint requests are posted to
func (c *RelayerClient) URL() string {
	return c.url
}

// Relay posts request and decodes the relayer's response.
// A non-2xx status is an error unless the body is a well-formed failure
// response, in which case the relayer's rejection is returned as data.
func (c *RelayerClient) Relay(ctx context.Context, request types.RelayRequest) (*types.Response, error) {
	if c.url == "" {
		return nil, fmt.Errorf("relayer URL is not configured")
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create relay request: %w", err)
	}

	req.Header.Set(HeaderContentType, ContentTypeJSON)
	req.Header.Set(HeaderAccept, ContentTypeJSON)

	if c.authProvider != nil {
		headers, err := c.authProvider.GetAuthHeaders(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get auth headers: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	schemaErr := ValidateRelayResponse(responseBody)
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	if schemaErr != nil {
		if !ok {
			return nil, fmt.Errorf("relayer %s failed (%d): %s", request.Method, resp.StatusCode, string(responseBody))
		}
		return nil, fmt.Errorf("invalid relay response: %w", schemaErr)
	}

	response, err := types.ToResponse(responseBody)
	if err != nil {
		return nil, fmt.Errorf("failed to decode relay response: %w", err)
	}

	if !ok && response.Result.Success {
		return nil, fmt.Errorf("relayer %s returned status %d with a success body", request.Method, resp.StatusCode)
	}

	return response, nil
}
