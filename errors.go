package relay

import (
	"errors"
	"fmt"
)

// RelayError is a precondition failure raised before any mutating network call.
// Outcome failures (relayer rejection, reverted direct transactions) are
// reported through types.Response instead.
type RelayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *RelayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *RelayError) Unwrap() error {
	return e.Err
}

// Is matches any RelayError carrying the same code
func (e *RelayError) Is(target error) bool {
	t, ok := target.(*RelayError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Error codes
const (
	ErrCodeNotInitialized    = "not_initialized"
	ErrCodeUnsupportedChain  = "unsupported_chain"
	ErrCodeInvalidParams     = "invalid_params"
	ErrCodePathNotFound      = "path_not_found"
	ErrCodePairNotFound      = "pair_not_found"
	ErrCodeSignatureMismatch = "signature_mismatch"
	ErrCodeDispatchAborted   = "dispatch_aborted"
	ErrCodeRelayTransport    = "relay_transport_failed"

	// Outcome codes; these never surface as errors, only in logs and the journal
	ErrCodeRelayExecution   = "relay_execution_failed"
	ErrCodeRelayIntegrity   = "relay_integrity_failed"
	ErrCodeDirectSubmission = "direct_submission_failed"
)

// Sentinels for errors.Is
var (
	ErrNotInitialized    = &RelayError{Code: ErrCodeNotInitialized, Message: "session not initialized"}
	ErrUnsupportedChain  = &RelayError{Code: ErrCodeUnsupportedChain, Message: "unsupported chain"}
	ErrInvalidParams     = &RelayError{Code: ErrCodeInvalidParams, Message: "invalid parameters"}
	ErrPathNotFound      = &RelayError{Code: ErrCodePathNotFound, Message: "swap path not found"}
	ErrPairNotFound      = &RelayError{Code: ErrCodePairNotFound, Message: "pair not found"}
	ErrSignatureMismatch = &RelayError{Code: ErrCodeSignatureMismatch, Message: "recovered signer does not match"}
	ErrDispatchAborted   = &RelayError{Code: ErrCodeDispatchAborted, Message: "dispatch aborted"}
	ErrRelayTransport    = &RelayError{Code: ErrCodeRelayTransport, Message: "relayer request failed"}
)

// NewRelayError creates a new relay error
func NewRelayError(code, message string, err error) *RelayError {
	return &RelayError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsInitializationError reports whether err means the session is unusable
func IsInitializationError(err error) bool {
	var relayErr *RelayError
	if !errors.As(err, &relayErr) {
		return false
	}
	return relayErr.Code == ErrCodeNotInitialized || relayErr.Code == ErrCodeUnsupportedChain
}

// ErrorCode returns the RelayError code carried by err, or "unknown"
func ErrorCode(err error) string {
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.Code
	}
	return "unknown"
}
