package rtcvoice

import (
	"errors"
	"fmt"
	"net/url"
)

// Common error variables
var (
	// ErrPermissionDenied is returned when the local audio capture device
	// refuses to open. This usually means the OS denied microphone access.
	ErrPermissionDenied = errors.New("rtcvoice: capture permission denied")

	// ErrCredentialFailed is returned when the ephemeral credential could
	// not be obtained from the credential collaborator.
	ErrCredentialFailed = errors.New("rtcvoice: credential fetch failed")

	// ErrNegotiationFailed is returned when the SDP offer/answer exchange
	// with the remote negotiation endpoint failed or produced a malformed
	// answer. Negotiation is never retried automatically: every attempt
	// consumes a fresh ephemeral credential and capture grant.
	ErrNegotiationFailed = errors.New("rtcvoice: negotiation failed")

	// ErrChannelClosed is returned when attempting to send a control
	// message while the data channel is absent or not open.
	ErrChannelClosed = errors.New("rtcvoice: control channel is closed")

	// ErrToolNotFound is returned by ToolRegistry.Invoke for names with no
	// registered binding.
	ErrToolNotFound = errors.New("rtcvoice: tool not found")

	// ErrInvalidConfig is returned when required configuration fields are
	// missing or malformed.
	ErrInvalidConfig = errors.New("rtcvoice: invalid configuration")

	// ErrDecode is returned when an inbound control message cannot be
	// parsed. Decode errors are contained: the message is dropped and the
	// session continues.
	ErrDecode = errors.New("rtcvoice: undecodable control message")

	// ErrNotActive is returned by operations that require an active
	// session, such as SendText.
	ErrNotActive = errors.New("rtcvoice: session is not active")

	// ErrAborted is returned by Start when a concurrent Stop tore the
	// session down between two of its steps. The in-flight Start abandons
	// its effect rather than resurrecting released resources.
	ErrAborted = errors.New("rtcvoice: start aborted by concurrent stop")
)

// ConfigError represents a configuration validation error.
// It identifies which configuration field is invalid.
type ConfigError struct {
	Field   string // The configuration field that is invalid
	Value   string // The invalid value (if safe to log)
	Message string // Detailed error message
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("rtcvoice: invalid config field %q (value: %q): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("rtcvoice: invalid config field %q: %s", e.Field, e.Message)
}

// Is implements error matching for ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// CredentialError wraps a failure to obtain an ephemeral credential.
type CredentialError struct {
	Endpoint string // The credential endpoint that failed
	Status   int    // HTTP status, if a response was received
	Cause    error  // The underlying error
}

func (e *CredentialError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("rtcvoice: credential fetch from %q failed: status %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("rtcvoice: credential fetch from %q failed: %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying error.
func (e *CredentialError) Unwrap() error { return e.Cause }

// Is implements error matching for CredentialError.
func (e *CredentialError) Is(target error) bool {
	return target == ErrCredentialFailed
}

// NegotiationError wraps a failed SDP offer/answer exchange.
type NegotiationError struct {
	URL    string // The negotiation endpoint
	Status int    // HTTP status, if a response was received
	Body   string // Response body excerpt, if any
	Cause  error  // The underlying error
}

func (e *NegotiationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("rtcvoice: negotiation with %q failed: status %d: %s", e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("rtcvoice: negotiation with %q failed: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error.
func (e *NegotiationError) Unwrap() error { return e.Cause }

// Is implements error matching for NegotiationError.
func (e *NegotiationError) Is(target error) bool {
	return target == ErrNegotiationFailed
}

// SendError represents a failure to send a control message over the data
// channel.
type SendError struct {
	MessageType string // The control message type being sent
	Cause       error  // The underlying error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("rtcvoice: failed to send %s message: %v", e.MessageType, e.Cause)
}

// Unwrap returns the underlying error.
func (e *SendError) Unwrap() error { return e.Cause }

// IsChannelClosed reports whether the send failed because the channel was
// absent or not open.
func (e *SendError) IsChannelClosed() bool {
	return errors.Is(e.Cause, ErrChannelClosed)
}

// DecodeError represents an inbound control message that could not be
// parsed. These are logged and dropped, never fatal to the session.
type DecodeError struct {
	RawData []byte // The raw message payload
	Cause   error  // The underlying parsing error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("rtcvoice: failed to decode control message: %v", e.Cause)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error { return e.Cause }

// Is implements error matching for DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// ToolError represents a failed tool invocation: either no binding exists
// for the name, or the bound implementation returned an error. Tool errors
// are surfaced to the remote side as a function-call error result and never
// end the session.
type ToolError struct {
	Name   string // The tool name the remote service requested
	CallID string // The correlation ID of the function call
	Cause  error  // ErrToolNotFound or the implementation's error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("rtcvoice: tool %q (call %s) failed: %v", e.Name, e.CallID, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ToolError) Unwrap() error { return e.Cause }

// NotFound reports whether the failure was a missing binding rather than
// an implementation error.
func (e *ToolError) NotFound() bool { return errors.Is(e.Cause, ErrToolNotFound) }

// Helper functions for creating specific errors

// NewConfigError creates a new configuration error.
func NewConfigError(field, value, message string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: message}
}

// NewCredentialError creates a new credential error.
func NewCredentialError(endpoint string, status int, cause error) *CredentialError {
	return &CredentialError{Endpoint: endpoint, Status: status, Cause: cause}
}

// NewNegotiationError creates a new negotiation error.
func NewNegotiationError(url string, status int, body string, cause error) *NegotiationError {
	return &NegotiationError{URL: url, Status: status, Body: body, Cause: cause}
}

// NewSendError creates a new send error.
func NewSendError(messageType string, cause error) *SendError {
	return &SendError{MessageType: messageType, Cause: cause}
}

// NewDecodeError creates a new decode error.
func NewDecodeError(raw []byte, cause error) *DecodeError {
	return &DecodeError{RawData: raw, Cause: cause}
}

// NewToolError creates a new tool invocation error.
func NewToolError(name, callID string, cause error) *ToolError {
	return &ToolError{Name: name, CallID: callID, Cause: cause}
}

// ValidateConfig performs configuration validation.
func ValidateConfig(cfg Config) error {
	if cfg.CredentialURL == "" {
		return NewConfigError("CredentialURL", "", "cannot be empty")
	}
	if _, err := url.Parse(cfg.CredentialURL); err != nil {
		return NewConfigError("CredentialURL", cfg.CredentialURL, "invalid URL format")
	}

	if cfg.RealtimeURL != "" {
		if _, err := url.Parse(cfg.RealtimeURL); err != nil {
			return NewConfigError("RealtimeURL", cfg.RealtimeURL, "invalid URL format")
		}
	}

	if cfg.CredentialTimeout < 0 {
		return NewConfigError("CredentialTimeout", cfg.CredentialTimeout.String(), "cannot be negative")
	}
	if cfg.NegotiationTimeout < 0 {
		return NewConfigError("NegotiationTimeout", cfg.NegotiationTimeout.String(), "cannot be negative")
	}
	if cfg.SettleDelay < 0 {
		return NewConfigError("SettleDelay", cfg.SettleDelay.String(), "cannot be negative")
	}

	return nil
}
