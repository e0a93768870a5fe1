package rtcvoice

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/zaf/g711"
)

// Capture format: 8 kHz mono signed 16-bit PCM, transcoded to G.711 µ-law
// for the PCMU audio track.
const (
	// CaptureSampleRate is the microphone sample rate in Hz.
	CaptureSampleRate = 8000
	// CaptureFrameMS is the duration of one capture frame.
	CaptureFrameMS = 20
)

// PCM16BytesFor calculates the number of bytes of PCM16 audio of the given
// duration. Formula: (milliseconds * sampleRate * 2 bytes per sample) / 1000.
func PCM16BytesFor(ms, sampleRate int) int { return (ms * sampleRate * 2) / 1000 }

// CaptureDevice is exclusive access to the local audio input device.
// Start begins delivering PCM16 frames to onFrame until Close; frames are
// CaptureFrameMS of CaptureSampleRate mono audio. Implementations must be
// safe to Close from a goroutine other than the frame callback's.
type CaptureDevice interface {
	Start(onFrame func(pcm []byte)) error
	Close() error
}

// MicrophoneCapture opens the system default microphone. Opening the device
// is the step that prompts the OS permission UI; an open failure is
// reported as ErrPermissionDenied.
type MicrophoneCapture struct {
	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	onFrame func(pcm []byte)
}

// NewMicrophoneCapture creates an unopened microphone capture.
func NewMicrophoneCapture() *MicrophoneCapture {
	return &MicrophoneCapture{}
}

// Start opens the device and begins frame delivery.
func (m *MicrophoneCapture) Start(onFrame func(pcm []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("rtcvoice: capture already started")
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return fmt.Errorf("%w: init audio context: %v", ErrPermissionDenied, err)
	}

	const channels = 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.SampleRate = CaptureSampleRate
	cfg.Capture.Format = format
	cfg.Capture.Channels = channels
	cfg.Alsa.NoMMap = 1
	cfg.PerformanceProfile = malgo.LowLatency
	cfg.PeriodSizeInFrames = CaptureSampleRate * CaptureFrameMS / 1000
	cfg.Periods = 3

	m.onFrame = onFrame
	device, err := malgo.InitDevice(audioCtx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n == 0 || len(pInput) < n {
				return
			}
			m.deliver(pInput[:n])
		},
	})
	if err != nil {
		_ = audioCtx.Uninit()
		audioCtx.Free()
		return fmt.Errorf("%w: open capture device: %v", ErrPermissionDenied, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = audioCtx.Uninit()
		audioCtx.Free()
		return fmt.Errorf("%w: start capture device: %v", ErrPermissionDenied, err)
	}

	m.ctx = audioCtx
	m.device = device
	return nil
}

// deliver hands one captured frame to the registered callback. The buffer is
// copied: miniaudio reuses it after the data callback returns.
func (m *MicrophoneCapture) deliver(pInput []byte) {
	m.mu.Lock()
	cb := m.onFrame
	m.mu.Unlock()
	if cb == nil {
		return
	}
	frame := make([]byte, len(pInput))
	copy(frame, pInput)
	cb(frame)
}

// Close stops frame delivery and releases the device. The teardown calls run
// outside the mutex: device uninit waits for an in-flight data callback to
// return, and that callback takes the same mutex in deliver, so holding it
// here would deadlock.
func (m *MicrophoneCapture) Close() error {
	m.mu.Lock()
	device, audioCtx := m.device, m.ctx
	m.device, m.ctx, m.onFrame = nil, nil, nil
	m.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	if audioCtx != nil {
		_ = audioCtx.Uninit()
		audioCtx.Free()
	}
	return nil
}

// newMicrophoneTrack creates the local PCMU audio track the capture frames
// are written to.
func newMicrophoneTrack() (*webrtc.TrackLocalStaticSample, error) {
	return webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: CaptureSampleRate, Channels: 1},
		"audio", "microphone",
	)
}

// writeULawSample transcodes one PCM16 frame to µ-law and writes it to the
// track as a timed media sample.
func writeULawSample(track *webrtc.TrackLocalStaticSample, pcm []byte) error {
	return track.WriteSample(media.Sample{
		Data:     g711.EncodeUlaw(pcm),
		Duration: CaptureFrameMS * time.Millisecond,
	})
}
