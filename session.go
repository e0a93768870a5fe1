package rtcvoice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
)

// State is the lifecycle phase of a session. Transitions are the single
// source of truth for UI enablement: text input is usable only in
// StateActive.
type State int

const (
	// StateIdle means no session exists and no resources are held.
	StateIdle State = iota
	// StateAcquiringMedia means the microphone is being opened.
	StateAcquiringMedia
	// StateRequestingCredential means the ephemeral credential fetch is in
	// flight.
	StateRequestingCredential
	// StateNegotiating means the SDP offer/answer exchange is in flight.
	StateNegotiating
	// StateActive means the control channel is usable.
	StateActive
	// StateStopping means teardown is running.
	StateStopping
	// StateFailed means a start step failed; the reason is observable via
	// Status and Err until the next Start or Stop.
	StateFailed
)

// String returns the lifecycle phase name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringMedia:
		return "acquiring-media"
	case StateRequestingCredential:
		return "requesting-credential"
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateChange is delivered to OnStateChange subscribers on every
// transition.
type StateChange struct {
	State  State
	Status string // human-readable status line for display
}

// SessionController owns the transport objects of exactly one realtime
// session (capture device, peer connection, control channel), drives the
// lifecycle state machine and composes the SignalingClient and
// DataChannelProtocol. This is the type application code calls.
type SessionController struct {
	cfg         Config
	store       *ConversationStore
	registry    *ToolRegistry
	protocol    *DataChannelProtocol
	signaling   *SignalingClient
	credentials CredentialSource

	mu         sync.Mutex
	state      State
	status     string
	err        error
	generation uint64 // bumped by every teardown; in-flight starts compare

	// Live transport resources, reverse-acquisition release order:
	// channel, peer connection, capture device.
	capture CaptureDevice
	track   *webrtc.TrackLocalStaticSample
	pc      *webrtc.PeerConnection
	dc      *webrtc.DataChannel

	handlerMu     sync.RWMutex
	onStateChange func(StateChange)
	onRemoteAudio func(pkts uint64)
}

// NewSessionController validates cfg and composes a controller around the
// given store and registry. Store and registry are constructed by the
// caller and injected, so independent sessions and deterministic tests can
// each own their instances.
func NewSessionController(cfg Config, store *ConversationStore, registry *ToolRegistry) (*SessionController, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, NewConfigError("store", "", "cannot be nil")
	}
	if registry == nil {
		return nil, NewConfigError("registry", "", "cannot be nil")
	}
	cfg = cfg.withDefaults()

	c := &SessionController{
		cfg:      cfg,
		store:    store,
		registry: registry,
		state:    StateIdle,
		protocol: NewDataChannelProtocol(store, registry, ProtocolOptions{
			TranscriptionModel: cfg.TranscriptionModel,
			Instructions:       cfg.Instructions,
			Logger:             cfg.Logger,
			StructuredLogger:   cfg.StructuredLogger,
		}),
		signaling:   NewSignalingClient(cfg.RealtimeURL, cfg.Model, cfg.NegotiationTimeout, cfg.HTTPClient),
		credentials: NewHTTPCredentialSource(cfg.CredentialURL, cfg.CredentialTimeout, cfg.HTTPClient),
	}
	return c, nil
}

// OnStateChange registers a callback for lifecycle transitions. The
// callback runs outside the controller's lock, so it may re-enter the
// controller (including calling Start or Stop).
func (c *SessionController) OnStateChange(fn func(StateChange)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onStateChange = fn
}

// OnRemoteAudio registers a callback observing inbound audio RTP packets.
// It is invoked every 200 packets with the running count.
func (c *SessionController) OnRemoteAudio(fn func(pkts uint64)) {
	c.handlerMu.Lock()
	defer c.handlerMu.Unlock()
	c.onRemoteAudio = fn
}

// State returns the current lifecycle phase.
func (c *SessionController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the human-readable status line, the session's only
// user-facing failure surface.
func (c *SessionController) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the typed error behind a StateFailed phase, nil otherwise.
func (c *SessionController) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Conversation returns a snapshot of the conversation log.
func (c *SessionController) Conversation() []ConversationTurn {
	return c.store.Turns()
}

// RegisterTool delegates to the ToolRegistry. Registering after Start only
// affects function calls arriving from that point forward; the descriptor
// list declared to the remote service is the one captured at channel open.
func (c *SessionController) RegisterTool(t Tool) {
	c.registry.Register(t)
}

// SendText appends a final user turn locally and sends the text over the
// control channel. Valid only while the session is active.
func (c *SessionController) SendText(text string) error {
	c.mu.Lock()
	active := c.state == StateActive
	c.mu.Unlock()
	if !active {
		return ErrNotActive
	}
	return c.protocol.SendUserMessage(text)
}

// Toggle stops an active session, otherwise starts one.
func (c *SessionController) Toggle(ctx context.Context) error {
	if c.State() == StateActive {
		c.Stop()
		return nil
	}
	return c.Start(ctx)
}

// Start establishes a session: acquire the microphone, fetch an ephemeral
// credential, negotiate the transport, open the control channel. If a
// session is already live or transitioning it is fully torn down first and
// Start waits the settle delay before re-acquiring, so releasing and
// re-opening the microphone and transport cannot race.
//
// Each step checks liveness after its suspension point: a concurrent Stop
// makes the in-flight Start abandon its effect (ErrAborted) instead of
// resurrecting released resources. On step failure the state transitions to
// StateFailed with teardown run and the reason left observable.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	restarting := c.pc != nil || c.capture != nil || (c.state != StateIdle && c.state != StateFailed)
	c.mu.Unlock()
	if restarting {
		c.Stop()
		time.Sleep(c.cfg.SettleDelay)
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	// Step 1: exclusive access to the local audio input.
	if !c.setState(gen, StateAcquiringMedia, "Requesting microphone access...") {
		return ErrAborted
	}
	track, err := newMicrophoneTrack()
	if err != nil {
		return c.fail(gen, "Microphone track setup failed", err)
	}
	capture := c.cfg.Capture
	if capture == nil {
		capture = NewMicrophoneCapture()
	}
	if err := capture.Start(func(pcm []byte) {
		if c.alive(gen) {
			_ = writeULawSample(track, pcm)
		}
	}); err != nil {
		return c.fail(gen, "Microphone access denied", err)
	}
	if !c.adoptCapture(gen, capture, track) {
		_ = capture.Close()
		return ErrAborted
	}

	// Step 2: ephemeral credential.
	if !c.setState(gen, StateRequestingCredential, "Fetching ephemeral credential...") {
		return ErrAborted
	}
	credCtx, cancel := context.WithTimeout(ctx, c.cfg.CredentialTimeout)
	credential, err := c.credentials.Credential(credCtx)
	cancel()
	if err != nil {
		return c.fail(gen, "Credential request failed", err)
	}
	if !c.alive(gen) {
		return ErrAborted
	}

	// Step 3: transport negotiation.
	if !c.setState(gen, StateNegotiating, "Establishing connection...") {
		return ErrAborted
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return c.fail(gen, "Connection setup failed", err)
	}
	if !c.adoptPeerConnection(gen, pc) {
		_ = pc.Close()
		return ErrAborted
	}

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.readRemoteAudio(remote)
	})

	dc, err := pc.CreateDataChannel("response", nil)
	if err != nil {
		return c.fail(gen, "Control channel setup failed", err)
	}
	if !c.adoptDataChannel(gen, dc) {
		return ErrAborted
	}
	dc.OnOpen(func() {
		if !c.alive(gen) {
			return
		}
		if err := c.protocol.Attach(dataChannelSender{dc}); err != nil {
			c.logError("configure_failed", map[string]any{"err": err})
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if c.alive(gen) {
			c.protocol.HandleMessage(msg.Data)
		}
	})

	if _, err := pc.AddTrack(track); err != nil {
		return c.fail(gen, "Connection setup failed", err)
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return c.fail(gen, "Connection setup failed", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return c.fail(gen, "Connection setup failed", err)
	}

	negCtx, cancel := context.WithTimeout(ctx, c.cfg.NegotiationTimeout)
	answerSDP, err := c.signaling.Negotiate(negCtx, offer.SDP, credential, c.cfg.Voice)
	cancel()
	if err != nil {
		return c.fail(gen, "Connection failed", err)
	}
	if !c.alive(gen) {
		return ErrAborted
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answerSDP,
	}); err != nil {
		return c.fail(gen, "Connection failed", NewNegotiationError(c.cfg.RealtimeURL, 0, "", err))
	}

	if !c.setState(gen, StateActive, "Session established") {
		return ErrAborted
	}
	c.log("session_started", map[string]any{"voice": c.cfg.Voice, "model": c.cfg.Model})
	return nil
}

// Stop unconditionally releases all held resources in reverse-acquisition
// order (control channel, peer connection, capture device), resets the
// ephemeral-turn identity, clears the conversation log and transitions to
// StateIdle. Safe to call from any state, including concurrently with an
// in-flight Start: the generation bump makes that Start abandon itself, so
// only one live transport/capture pair can ever exist.
func (c *SessionController) Stop() {
	c.mu.Lock()
	c.generation++
	dc, pc, capture := c.dc, c.pc, c.capture
	c.dc, c.pc, c.capture, c.track = nil, nil, nil, nil
	c.state = StateStopping
	c.status = "Stopping session..."
	c.err = nil
	c.mu.Unlock()
	c.emit(StateChange{State: StateStopping, Status: "Stopping session..."})

	c.protocol.Detach()
	if dc != nil {
		_ = dc.Close()
	}
	if pc != nil {
		_ = pc.Close()
	}
	if capture != nil {
		_ = capture.Close()
	}
	c.store.Reset()

	c.mu.Lock()
	c.state = StateIdle
	c.status = "Session stopped"
	c.mu.Unlock()
	c.emit(StateChange{State: StateIdle, Status: "Session stopped"})
	c.log("session_stopped", nil)
}

// fail transitions to StateFailed with the given reason, runs teardown and
// returns err. If a concurrent Stop already tore the session down the
// failure is superseded and ErrAborted is returned instead.
func (c *SessionController) fail(gen uint64, status string, err error) error {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return ErrAborted
	}
	c.generation++
	dc, pc, capture := c.dc, c.pc, c.capture
	c.dc, c.pc, c.capture, c.track = nil, nil, nil, nil
	c.state = StateFailed
	c.status = fmt.Sprintf("%s: %v", status, err)
	c.err = err
	c.mu.Unlock()

	c.protocol.Detach()
	if dc != nil {
		_ = dc.Close()
	}
	if pc != nil {
		_ = pc.Close()
	}
	if capture != nil {
		_ = capture.Close()
	}

	c.logError("session_failed", map[string]any{"status": status, "err": err})
	c.emit(StateChange{State: StateFailed, Status: c.Status()})
	return err
}

// alive reports whether the generation the caller belongs to is still the
// current one. Checked after every suspension point.
func (c *SessionController) alive(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen
}

func (c *SessionController) setState(gen uint64, state State, status string) bool {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return false
	}
	c.state = state
	c.status = status
	c.mu.Unlock()
	c.emit(StateChange{State: state, Status: status})
	return true
}

func (c *SessionController) adoptCapture(gen uint64, capture CaptureDevice, track *webrtc.TrackLocalStaticSample) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || c.capture != nil {
		return false
	}
	c.capture = capture
	c.track = track
	return true
}

func (c *SessionController) adoptPeerConnection(gen uint64, pc *webrtc.PeerConnection) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || c.pc != nil {
		return false
	}
	c.pc = pc
	return true
}

func (c *SessionController) adoptDataChannel(gen uint64, dc *webrtc.DataChannel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen || c.dc != nil {
		return false
	}
	c.dc = dc
	return true
}

// readRemoteAudio drains inbound RTP from the remote audio track, invoking
// the OnRemoteAudio observer every 200 packets. The loop ends when the
// track closes at teardown.
func (c *SessionController) readRemoteAudio(track *webrtc.TrackRemote) {
	var pkts uint64
	buf := make([]byte, 1500)
	for {
		if _, _, err := track.Read(buf); err != nil {
			return
		}
		pkts++
		if pkts%200 == 0 {
			c.handlerMu.RLock()
			fn := c.onRemoteAudio
			c.handlerMu.RUnlock()
			if fn != nil {
				fn(pkts)
			}
		}
	}
}

func (c *SessionController) emit(change StateChange) {
	c.handlerMu.RLock()
	fn := c.onStateChange
	c.handlerMu.RUnlock()
	if fn != nil {
		fn(change)
	}
}

func (c *SessionController) log(event string, fields map[string]any) {
	if c.cfg.StructuredLogger != nil {
		c.cfg.StructuredLogger.Info(event, fields)
	} else if c.cfg.Logger != nil {
		c.cfg.Logger(event, fields)
	}
}

func (c *SessionController) logError(event string, fields map[string]any) {
	if c.cfg.StructuredLogger != nil {
		c.cfg.StructuredLogger.Error(event, fields)
	} else if c.cfg.Logger != nil {
		c.cfg.Logger("ERROR: "+event, fields)
	}
}

// dataChannelSender adapts *webrtc.DataChannel to the ChannelSender
// interface of the protocol layer.
type dataChannelSender struct {
	dc *webrtc.DataChannel
}

func (s dataChannelSender) Send(b []byte) error {
	return s.dc.Send(b)
}

func (s dataChannelSender) Open() bool {
	return s.dc.ReadyState() == webrtc.DataChannelStateOpen
}
