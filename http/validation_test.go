package http

import (
	"testing"
)

func TestValidateRelayResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "success",
			body: `{"id":1,"jsonrpc":"2.0","result":{"errorMessage":"","success":true,"txnHash":"0xabc"}}`,
		},
		{
			name: "failure without hash",
			body: `{"id":1,"jsonrpc":"2.0","result":{"errorMessage":"insufficient balance","success":false}}`,
		},
		{name: "empty body", body: ``, wantErr: true},
		{name: "not JSON", body: `<html>bad gateway</html>`, wantErr: true},
		{name: "missing result", body: `{"id":1,"jsonrpc":"2.0"}`, wantErr: true},
		{name: "missing success", body: `{"id":1,"jsonrpc":"2.0","result":{"txnHash":"0xabc"}}`, wantErr: true},
		{name: "string success", body: `{"id":1,"jsonrpc":"2.0","result":{"success":"true"}}`, wantErr: true},
		{name: "numeric hash", body: `{"id":1,"jsonrpc":"2.0","result":{"success":true,"txnHash":12}}`, wantErr: true},
		{name: "string id", body: `{"id":"1","jsonrpc":"2.0","result":{"success":false}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRelayResponse([]byte(tt.body))
			if tt.wantErr && err == nil {
				t.Fatal("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Unexpected validation error: %v", err)
			}
		})
	}
}
