package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// RelayResponseSchema is the JSON schema every relayer reply must satisfy
// before it is decoded. It checks shape only; the success/txnHash invariant
// is enforced by types.Response.Normalize.
const RelayResponseSchema = `{
	"type": "object",
	"required": ["id", "jsonrpc", "result"],
	"properties": {
		"id": {"type": "integer"},
		"jsonrpc": {"type": "string"},
		"result": {
			"type": "object",
			"required": ["success"],
			"properties": {
				"success": {"type": "boolean"},
				"txnHash": {"type": "string"},
				"errorMessage": {"type": "string"}
			}
		}
	}
}`

var relayResponseSchema = gojsonschema.NewStringLoader(RelayResponseSchema)

// ValidateRelayResponse validates a raw relayer reply against RelayResponseSchema
func ValidateRelayResponse(body []byte) error {
	if len(body) == 0 {
		return errors.New("relay response is empty")
	}

	result, err := gojsonschema.Validate(relayResponseSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return errors.New(strings.Join(problems, "; "))
}
