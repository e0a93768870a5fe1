package rtcvoice

import (
	"encoding/json"
	"sync"
)

// ChannelSender abstracts the outbound side of the control channel.
// *webrtc.DataChannel satisfies it through the adapter in session.go; tests
// inject a fake that captures frames.
type ChannelSender interface {
	// Send transmits one newline-free JSON message.
	Send(payload []byte) error
	// Open reports whether the channel is currently usable.
	Open() bool
}

// ProtocolOptions configures a DataChannelProtocol.
type ProtocolOptions struct {
	// TranscriptionModel declared in the session-configuration message.
	TranscriptionModel string
	// Instructions optionally included in the session-configuration message.
	Instructions string
	// Logger and StructuredLogger follow the Config semantics.
	Logger           func(event string, fields map[string]any)
	StructuredLogger *Logger
}

// DataChannelProtocol translates between wire control messages and
// ConversationStore/ToolRegistry operations. Inbound dispatch is
// order-sensitive: messages are handled in arrival order, never reordered.
// Malformed payloads are logged and dropped; one bad message must not
// desynchronize the rest of the session.
type DataChannelProtocol struct {
	store    *ConversationStore
	registry *ToolRegistry
	opts     ProtocolOptions

	mu     sync.Mutex
	sender ChannelSender // nil until the channel opens
}

// NewDataChannelProtocol creates a protocol bound to the given store and
// registry. Both are required collaborators.
func NewDataChannelProtocol(store *ConversationStore, registry *ToolRegistry, opts ProtocolOptions) *DataChannelProtocol {
	if opts.TranscriptionModel == "" {
		opts.TranscriptionModel = DefaultTranscriptionModel
	}
	return &DataChannelProtocol{store: store, registry: registry, opts: opts}
}

// Attach binds the opened control channel and immediately sends the
// session-configuration message. It must be called from the channel's open
// callback: the configuration has to be the first message on the wire, and
// the remote service rejects configuration sent later.
func (p *DataChannelProtocol) Attach(sender ChannelSender) error {
	p.mu.Lock()
	p.sender = sender
	p.mu.Unlock()

	cfg := NewSessionConfiguration(p.registry.Descriptors(), p.opts.TranscriptionModel, p.opts.Instructions)
	if err := p.send(cfg); err != nil {
		return err
	}
	p.log("session_configured", map[string]any{"tools": p.registry.Len()})
	return nil
}

// Detach releases the channel. Subsequent sends fail with ErrChannelClosed
// and inbound messages are dropped; a dangling callback firing after a
// concurrent Stop touches nothing.
func (p *DataChannelProtocol) Detach() {
	p.mu.Lock()
	p.sender = nil
	p.mu.Unlock()
}

// Attached reports whether a control channel is currently bound.
func (p *DataChannelProtocol) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sender != nil
}

// HandleMessage dispatches one inbound wire payload. Decode failures and
// unknown type tags are logged and dropped without error: protocol-decode
// problems are contained locally and never end the session.
func (p *DataChannelProtocol) HandleMessage(raw []byte) {
	if !p.Attached() {
		// Teardown already ran; the message belongs to a dead session.
		return
	}

	msg, err := DecodeControlMessage(raw)
	if err != nil {
		p.logError("bad_control_message", map[string]any{"err": err, "raw": string(raw)})
		return
	}

	switch m := msg.(type) {
	case SpeechStarted:
		p.store.CreateEphemeral()
		p.store.UpdateEphemeral(TurnUpdate{Status: Ptr(TurnSpeaking)})
	case SpeechStopped:
		p.store.UpdateEphemeral(TurnUpdate{Status: Ptr(TurnSpeaking)})
	case SpeechCommitted:
		p.store.UpdateEphemeral(TurnUpdate{
			Text:   Ptr(processingPlaceholder),
			Status: Ptr(TurnProcessing),
		})
	case Transcript:
		p.store.UpdateEphemeral(TurnUpdate{
			Text:    Ptr(m.Text),
			Status:  Ptr(TurnComplete),
			IsFinal: Ptr(true),
		})
		p.store.FinalizeEphemeral()
	case AssistantMessage:
		if m.Role == string(RoleAssistant) {
			p.store.AppendAssistant(m.Content)
		}
	case FunctionCallInvoke:
		p.handleFunctionCall(m)
	case SessionConfiguration, UserMessageCreate, FunctionCallResult, ResponseCreate:
		// Outbound-only variants; a remote echoing them is out of protocol.
		p.log("unexpected_outbound_variant", map[string]any{"type": msg.MessageType()})
	}
}

// SendUserMessage appends a final user turn locally, wraps the text into a
// user-message-create control message and sends it. Fails with a SendError
// wrapping ErrChannelClosed if the channel is not open.
func (p *DataChannelProtocol) SendUserMessage(text string) error {
	if err := p.send(NewUserMessage(text)); err != nil {
		return err
	}
	p.store.AppendUserFinal(text)
	return nil
}

// handleFunctionCall invokes the named tool and answers with exactly one
// correlated function-call result. Unknown names and implementation errors
// produce an error result rather than silence: an unanswered call-id leaves
// the remote side waiting indefinitely.
func (p *DataChannelProtocol) handleFunctionCall(m FunctionCallInvoke) {
	result, err := p.registry.Invoke(m.Name, json.RawMessage(m.Arguments))

	var output string
	if err != nil {
		toolErr := NewToolError(m.Name, m.CallID, err)
		p.logError("tool_failed", map[string]any{"tool": m.Name, "call_id": m.CallID, "err": err})
		errPayload, _ := json.Marshal(map[string]string{"error": toolErr.Cause.Error()})
		output = string(errPayload)
	} else {
		encoded, mErr := json.Marshal(result)
		if mErr != nil {
			p.logError("tool_result_unserializable", map[string]any{"tool": m.Name, "err": mErr})
			errPayload, _ := json.Marshal(map[string]string{"error": "result not serializable"})
			output = string(errPayload)
		} else {
			output = string(encoded)
		}
	}

	if err := p.send(NewFunctionCallResult(m.CallID, output)); err != nil {
		p.logError("tool_result_send_failed", map[string]any{"call_id": m.CallID, "err": err})
		return
	}
	// Nudge the remote to continue generating with the tool output.
	if err := p.send(ResponseCreate{Type: TypeResponseCreate}); err != nil {
		p.logError("response_create_send_failed", map[string]any{"call_id": m.CallID, "err": err})
	}
	p.log("tool_dispatched", map[string]any{"tool": m.Name, "call_id": m.CallID, "ok": err == nil})
}

// send guards every outbound message: encode first, then transmit only on a
// live open channel.
func (p *DataChannelProtocol) send(m ControlMessage) error {
	b, err := EncodeControlMessage(m)
	if err != nil {
		return err
	}

	p.mu.Lock()
	sender := p.sender
	p.mu.Unlock()

	if sender == nil || !sender.Open() {
		return NewSendError(m.MessageType(), ErrChannelClosed)
	}
	if err := sender.Send(b); err != nil {
		return NewSendError(m.MessageType(), err)
	}
	return nil
}

func (p *DataChannelProtocol) log(event string, fields map[string]any) {
	if p.opts.StructuredLogger != nil {
		p.opts.StructuredLogger.Info(event, fields)
	} else if p.opts.Logger != nil {
		p.opts.Logger(event, fields)
	}
}

func (p *DataChannelProtocol) logError(event string, fields map[string]any) {
	if p.opts.StructuredLogger != nil {
		p.opts.StructuredLogger.Error(event, fields)
	} else if p.opts.Logger != nil {
		p.opts.Logger("ERROR: "+event, fields)
	}
}
