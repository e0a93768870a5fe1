package rtcvoice

import (
	"net/http"
	"time"
)

// Voice preset identifiers offered by the remote service. The set is fixed
// remotely; values outside it are passed through unvalidated and rejected by
// the negotiation endpoint.
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceOnyx    = "onyx"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// Voices returns the presented voice identifiers in display order.
func Voices() []string {
	return []string{VoiceAlloy, VoiceEcho, VoiceFable, VoiceOnyx, VoiceNova, VoiceShimmer}
}

// Defaults applied by NewSessionController when the corresponding Config
// field is zero.
const (
	// DefaultRealtimeURL is the remote negotiation endpoint.
	DefaultRealtimeURL = "https://api.openai.com/v1/realtime"

	// DefaultModel is the realtime model used for negotiation.
	DefaultModel = "gpt-4o-realtime-preview-2024-12-17"

	// DefaultTranscriptionModel transcribes user speech server-side.
	DefaultTranscriptionModel = "whisper-1"

	// DefaultCredentialTimeout bounds the ephemeral credential fetch.
	DefaultCredentialTimeout = 15 * time.Second

	// DefaultNegotiationTimeout bounds the SDP offer/answer round-trip.
	// Without it a hung remote endpoint would leave the session stuck in
	// StateNegotiating forever.
	DefaultNegotiationTimeout = 20 * time.Second

	// DefaultSettleDelay is how long a restarting Start waits after tearing
	// down the previous session before re-acquiring the microphone and
	// transport.
	DefaultSettleDelay = 500 * time.Millisecond
)

// Config holds all configuration options for creating a SessionController.
type Config struct {
	// CredentialURL is the endpoint of the credential collaborator.
	// A POST to it must return {"client_secret": {"value": "..."}}.
	// Required: Yes
	CredentialURL string

	// RealtimeURL is the remote negotiation endpoint the SDP offer is
	// posted to. Defaults to DefaultRealtimeURL.
	// Required: No
	RealtimeURL string

	// Model identifies the realtime model, sent as the `model` query
	// parameter of the negotiation request. Defaults to DefaultModel.
	// Required: No
	Model string

	// Voice selects the voice preset, sent as the `voice` query parameter.
	// Defaults to VoiceAlloy. Not validated locally: unknown values are
	// rejected by the remote endpoint.
	// Required: No
	Voice string

	// TranscriptionModel is declared in the session-configuration message
	// sent on channel open. Defaults to DefaultTranscriptionModel.
	// Required: No
	TranscriptionModel string

	// Instructions provide optional system-level guidance to the assistant,
	// included in the session-configuration message when non-empty.
	// Required: No
	Instructions string

	// CredentialTimeout bounds the credential fetch. Defaults to
	// DefaultCredentialTimeout.
	// Required: No
	CredentialTimeout time.Duration

	// NegotiationTimeout bounds the negotiation round-trip. Defaults to
	// DefaultNegotiationTimeout.
	// Required: No
	NegotiationTimeout time.Duration

	// SettleDelay is the pause between teardown and re-acquisition when
	// Start is called on a live session. Defaults to DefaultSettleDelay.
	// Required: No
	SettleDelay time.Duration

	// Capture supplies the local audio input device. If nil, the default
	// microphone capture is used. Inject a fake in tests.
	// Required: No
	Capture CaptureDevice

	// HTTPClient is used for the credential and negotiation requests.
	// If nil, dedicated clients with the timeouts above are used.
	// Required: No
	HTTPClient *http.Client

	// Logger is called for significant events (state transitions, dropped
	// messages, tool dispatch). The fields parameter carries structured
	// data relevant to each event.
	// Required: No (if nil, no logging occurs)
	Logger func(event string, fields map[string]any)

	// StructuredLogger provides leveled structured logging. If both Logger
	// and StructuredLogger are provided, StructuredLogger takes precedence.
	// Use NewLogger() or NewLoggerFromEnv() to create one.
	// Required: No
	StructuredLogger *Logger
}

// withDefaults returns a copy of cfg with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.RealtimeURL == "" {
		c.RealtimeURL = DefaultRealtimeURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Voice == "" {
		c.Voice = VoiceAlloy
	}
	if c.TranscriptionModel == "" {
		c.TranscriptionModel = DefaultTranscriptionModel
	}
	if c.CredentialTimeout == 0 {
		c.CredentialTimeout = DefaultCredentialTimeout
	}
	if c.NegotiationTimeout == 0 {
		c.NegotiationTimeout = DefaultNegotiationTimeout
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	return c
}
