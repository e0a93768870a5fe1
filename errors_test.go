package rtcvoice

import (
	"errors"
	"testing"
	"time"
)

func TestConfigError(t *testing.T) {
	tests := []struct {
		name          string
		field         string
		value         string
		message       string
		expectedError string
	}{
		{
			name:          "with value",
			field:         "CredentialURL",
			value:         "not a url",
			message:       "invalid URL format",
			expectedError: `rtcvoice: invalid config field "CredentialURL" (value: "not a url"): invalid URL format`,
		},
		{
			name:          "without value",
			field:         "CredentialURL",
			value:         "",
			message:       "cannot be empty",
			expectedError: `rtcvoice: invalid config field "CredentialURL": cannot be empty`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfigError(tt.field, tt.value, tt.message)

			if err.Error() != tt.expectedError {
				t.Errorf("expected error %q, got %q", tt.expectedError, err.Error())
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Error("ConfigError should match ErrInvalidConfig")
			}
		})
	}
}

func TestCredentialError(t *testing.T) {
	underlyingErr := errors.New("connection refused")

	err := NewCredentialError("http://localhost:8080/session", 0, underlyingErr)

	expectedError := `rtcvoice: credential fetch from "http://localhost:8080/session" failed: connection refused`
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("CredentialError should unwrap to underlying error")
	}
	if !errors.Is(err, ErrCredentialFailed) {
		t.Error("CredentialError should match ErrCredentialFailed")
	}

	withStatus := NewCredentialError("http://localhost:8080/session", 503, nil)
	expectedStatus := `rtcvoice: credential fetch from "http://localhost:8080/session" failed: status 503`
	if withStatus.Error() != expectedStatus {
		t.Errorf("expected error %q, got %q", expectedStatus, withStatus.Error())
	}
}

func TestNegotiationError(t *testing.T) {
	err := NewNegotiationError("https://api.openai.com/v1/realtime", 401, "invalid token", errors.New("SDP exchange rejected"))

	expectedError := `rtcvoice: negotiation with "https://api.openai.com/v1/realtime" failed: status 401: invalid token`
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
	if !errors.Is(err, ErrNegotiationFailed) {
		t.Error("NegotiationError should match ErrNegotiationFailed")
	}
}

func TestSendError(t *testing.T) {
	err := NewSendError(TypeItemCreate, ErrChannelClosed)

	expectedError := `rtcvoice: failed to send conversation.item.create message: rtcvoice: control channel is closed`
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
	if !errors.Is(err, ErrChannelClosed) {
		t.Error("SendError should unwrap to ErrChannelClosed")
	}
	if !err.IsChannelClosed() {
		t.Error("IsChannelClosed should report true for ErrChannelClosed cause")
	}

	other := NewSendError(TypeItemCreate, errors.New("write timeout"))
	if other.IsChannelClosed() {
		t.Error("IsChannelClosed should report false for unrelated cause")
	}
}

func TestDecodeError(t *testing.T) {
	underlyingErr := errors.New("unexpected end of JSON input")
	err := NewDecodeError([]byte(`{"type":`), underlyingErr)

	if !errors.Is(err, ErrDecode) {
		t.Error("DecodeError should match ErrDecode")
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("DecodeError should unwrap to underlying error")
	}
	if string(err.RawData) != `{"type":` {
		t.Errorf("RawData = %q, want original payload", err.RawData)
	}
}

func TestToolError(t *testing.T) {
	notFound := NewToolError("getWeather", "call_1", ErrToolNotFound)
	if !notFound.NotFound() {
		t.Error("NotFound should report true when cause is ErrToolNotFound")
	}
	if !errors.Is(notFound, ErrToolNotFound) {
		t.Error("ToolError should unwrap to ErrToolNotFound")
	}

	implErr := NewToolError("getWeather", "call_2", errors.New("upstream unavailable"))
	if implErr.NotFound() {
		t.Error("NotFound should report false for implementation errors")
	}
	expectedError := `rtcvoice: tool "getWeather" (call call_2) failed: upstream unavailable`
	if implErr.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, implErr.Error())
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorField  string
	}{
		{
			name:        "valid minimal config",
			config:      Config{CredentialURL: "http://localhost:8080/session"},
			expectError: false,
		},
		{
			name: "valid full config",
			config: Config{
				CredentialURL:      "http://localhost:8080/session",
				RealtimeURL:        "https://api.openai.com/v1/realtime",
				CredentialTimeout:  10 * time.Second,
				NegotiationTimeout: 15 * time.Second,
				SettleDelay:        time.Second,
			},
			expectError: false,
		},
		{
			name:        "missing credential URL",
			config:      Config{},
			expectError: true,
			errorField:  "CredentialURL",
		},
		{
			name: "negative credential timeout",
			config: Config{
				CredentialURL:     "http://localhost:8080/session",
				CredentialTimeout: -time.Second,
			},
			expectError: true,
			errorField:  "CredentialTimeout",
		},
		{
			name: "negative negotiation timeout",
			config: Config{
				CredentialURL:      "http://localhost:8080/session",
				NegotiationTimeout: -time.Second,
			},
			expectError: true,
			errorField:  "NegotiationTimeout",
		},
		{
			name: "negative settle delay",
			config: Config{
				CredentialURL: "http://localhost:8080/session",
				SettleDelay:   -time.Millisecond,
			},
			expectError: true,
			errorField:  "SettleDelay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.config)
			if tt.expectError {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected *ConfigError, got %T", err)
				}
				if cfgErr.Field != tt.errorField {
					t.Errorf("error field = %q, want %q", cfgErr.Field, tt.errorField)
				}
			} else if err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
