package rtcvoice

import (
	"encoding/json"
	"fmt"
)

// Control message type tags. Each tag identifies exactly one wire variant;
// the set is closed and DecodeControlMessage matches it exhaustively.
const (
	TypeSpeechStarted   = "input_audio_buffer.speech_started"
	TypeSpeechStopped   = "input_audio_buffer.speech_stopped"
	TypeSpeechCommitted = "input_audio_buffer.committed"
	TypeTranscript      = "transcript"
	TypeMessage         = "message"
	TypeFunctionCall    = "response.function_call_arguments.done"
	TypeSessionUpdate   = "session.update"
	TypeItemCreate      = "conversation.item.create"
	TypeResponseCreate  = "response.create"
)

// envelope is used for initial JSON parsing to determine the message type
// before unmarshaling into the specific variant struct.
type envelope struct {
	Type string `json:"type"`
}

// ControlMessage is the closed union of control messages that cross the
// data channel. Messages are ephemeral: they exist only on the wire and the
// protocol layer translates each variant into ConversationStore or
// ToolRegistry operations without retaining it.
type ControlMessage interface {
	// MessageType returns the wire `type` tag of the variant.
	MessageType() string
}

// SpeechStarted signals that the server detected the beginning of user
// speech. No payload.
type SpeechStarted struct {
	Type string `json:"type"`
}

// MessageType implements ControlMessage.
func (SpeechStarted) MessageType() string { return TypeSpeechStarted }

// SpeechStopped signals that the server detected the end of user speech.
// No payload.
type SpeechStopped struct {
	Type string `json:"type"`
}

// MessageType implements ControlMessage.
func (SpeechStopped) MessageType() string { return TypeSpeechStopped }

// SpeechCommitted signals that the captured audio buffer was committed for
// transcription. No payload.
type SpeechCommitted struct {
	Type string `json:"type"`
}

// MessageType implements ControlMessage.
func (SpeechCommitted) MessageType() string { return TypeSpeechCommitted }

// Transcript carries the final transcription of the current user utterance.
type Transcript struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// MessageType implements ControlMessage.
func (Transcript) MessageType() string { return TypeTranscript }

// AssistantMessage carries a complete assistant utterance.
type AssistantMessage struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageType implements ControlMessage.
func (AssistantMessage) MessageType() string { return TypeMessage }

// FunctionCallInvoke asks the client to execute a registered tool and
// answer with a correlated function-call result.
type FunctionCallInvoke struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	CallID    string `json:"call_id"`
	Arguments string `json:"arguments"` // JSON-encoded argument object
}

// MessageType implements ControlMessage.
func (FunctionCallInvoke) MessageType() string { return TypeFunctionCall }

// SessionConfiguration declares supported modalities, the tool descriptor
// list and the transcription model. It must be the first message sent after
// channel open; the remote service rejects configuration sent later.
type SessionConfiguration struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

// MessageType implements ControlMessage.
func (SessionConfiguration) MessageType() string { return TypeSessionUpdate }

// SessionConfig is the session payload of a SessionConfiguration message.
type SessionConfig struct {
	Modalities              []string            `json:"modalities"`
	Tools                   []ToolDescriptor    `json:"tools"`
	InputAudioTranscription TranscriptionConfig `json:"input_audio_transcription"`
	Instructions            *string             `json:"instructions,omitempty"`
	TurnDetection           *TurnDetection      `json:"turn_detection,omitempty"`
}

// TranscriptionConfig selects the server-side speech-to-text model.
type TranscriptionConfig struct {
	Model string `json:"model"`
}

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMS int     `json:"silence_duration_ms,omitempty"`
}

// UserMessageCreate carries a typed user text message to the remote service.
type UserMessageCreate struct {
	Type string      `json:"type"`
	Item MessageItem `json:"item"`
}

// MessageType implements ControlMessage.
func (UserMessageCreate) MessageType() string { return TypeItemCreate }

// MessageItem is the item payload of a UserMessageCreate.
type MessageItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is one typed content element of a message item.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Text returns the first input_text content of the item, or "".
func (m UserMessageCreate) Text() string {
	for _, p := range m.Item.Content {
		if p.Type == "input_text" {
			return p.Text
		}
	}
	return ""
}

// FunctionCallResult answers a FunctionCallInvoke with the correlated
// call_id and either the serialized result or an error indicator.
type FunctionCallResult struct {
	Type string             `json:"type"`
	Item FunctionOutputItem `json:"item"`
}

// MessageType implements ControlMessage.
func (FunctionCallResult) MessageType() string { return TypeItemCreate }

// FunctionOutputItem is the item payload of a FunctionCallResult.
type FunctionOutputItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"` // JSON-encoded result or {"error": ...}
}

// ResponseCreate asks the remote service to resume generating a response.
// Sent after a FunctionCallResult so the assistant can use the tool output.
type ResponseCreate struct {
	Type string `json:"type"`
}

// MessageType implements ControlMessage.
func (ResponseCreate) MessageType() string { return TypeResponseCreate }

// Constructors for outbound messages. They fill the wire tags so encoded
// payloads are always well-formed.

// NewSessionConfiguration builds the mandatory first message of a session.
func NewSessionConfiguration(tools []ToolDescriptor, transcriptionModel, instructions string) SessionConfiguration {
	if tools == nil {
		tools = []ToolDescriptor{}
	}
	cfg := SessionConfig{
		Modalities:              []string{"text", "audio"},
		Tools:                   tools,
		InputAudioTranscription: TranscriptionConfig{Model: transcriptionModel},
	}
	if instructions != "" {
		cfg.Instructions = Ptr(instructions)
	}
	return SessionConfiguration{Type: TypeSessionUpdate, Session: cfg}
}

// NewUserMessage wraps text into a user-message-create control message.
func NewUserMessage(text string) UserMessageCreate {
	return UserMessageCreate{
		Type: TypeItemCreate,
		Item: MessageItem{
			Type:    "message",
			Role:    "user",
			Content: []ContentPart{{Type: "input_text", Text: text}},
		},
	}
}

// NewFunctionCallResult wraps a tool result for the given call_id.
func NewFunctionCallResult(callID, output string) FunctionCallResult {
	return FunctionCallResult{
		Type: TypeItemCreate,
		Item: FunctionOutputItem{Type: "function_call_output", CallID: callID, Output: output},
	}
}

// EncodeControlMessage serializes a control message as a single newline-free
// JSON object, the wire format of the data channel.
func EncodeControlMessage(m ControlMessage) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, NewSendError(m.MessageType(), fmt.Errorf("marshal payload: %w", err))
	}
	return b, nil
}

// DecodeControlMessage parses a wire payload into its typed variant.
// Unparseable payloads and unknown type tags yield a DecodeError; callers
// are expected to log and drop those rather than fail the session.
func DecodeControlMessage(raw []byte) (ControlMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, NewDecodeError(raw, err)
	}

	switch env.Type {
	case TypeSpeechStarted:
		var m SpeechStarted
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, NewDecodeError(raw, err)
		}
		return m, nil
	case TypeSpeechStopped:
		var m SpeechStopped
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, NewDecodeError(raw, err)
		}
		return m, nil
	case TypeSpeechCommitted:
		var m SpeechCommitted
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, NewDecodeError(raw, err)
		}
		return m, nil
	case TypeTranscript:
		var m Transcript
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, NewDecodeError(raw, err)
		}
		return m, nil
	case TypeMessage:
		var m AssistantMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, NewDecodeError(raw, err)
		}
		return m, nil
	case TypeFunctionCall:
		var m FunctionCallInvoke
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, NewDecodeError(raw, err)
		}
		return m, nil
	case TypeSessionUpdate:
		var m SessionConfiguration
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, NewDecodeError(raw, err)
		}
		return m, nil
	case TypeItemCreate:
		// Distinguish message items from function outputs by item type.
		var probe struct {
			Item envelope `json:"item"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, NewDecodeError(raw, err)
		}
		if probe.Item.Type == "function_call_output" {
			var m FunctionCallResult
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, NewDecodeError(raw, err)
			}
			return m, nil
		}
		var m UserMessageCreate
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, NewDecodeError(raw, err)
		}
		return m, nil
	case TypeResponseCreate:
		var m ResponseCreate
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, NewDecodeError(raw, err)
		}
		return m, nil
	default:
		return nil, NewDecodeError(raw, fmt.Errorf("unknown message type %q", env.Type))
	}
}
