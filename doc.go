// Package rtcvoice provides a Go client for holding a bidirectional,
// low-latency audio+text conversation with an OpenAI-style realtime voice
// service over WebRTC.
//
// The library establishes the real-time transport session (microphone
// capture, peer connection, control data channel), drives its lifecycle
// state machine, decodes/encodes the JSON control-message protocol flowing
// over the data channel, reconstructs partial speech-to-text events into
// coherent conversation turns, and dispatches remote function-call requests
// to locally registered implementations.
//
// Key components:
//   - SessionController: owns the transport and the lifecycle state machine;
//     the type application code talks to.
//   - DataChannelProtocol: control-message encoding, decoding and dispatch.
//   - ConversationStore: ordered turn log with the ephemeral-turn merge rule.
//   - ToolRegistry: named client-side functions the remote service may invoke.
//   - SignalingClient: one-shot SDP offer/answer exchange authenticated by a
//     short-lived credential.
//
// Basic usage:
//
//	registry := rtcvoice.NewToolRegistry()
//	registry.Register(rtcvoice.CurrentTimeTool())
//
//	ctrl, err := rtcvoice.NewSessionController(rtcvoice.Config{
//		CredentialURL: "http://localhost:8080/session",
//		Voice:         rtcvoice.VoiceAlloy,
//	}, rtcvoice.NewConversationStore(), registry)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := ctrl.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer ctrl.Stop()
//
// State transitions are observable through OnStateChange and are the single
// source of truth for UI enablement; SendText is valid only while the
// session is active.
package rtcvoice
