package aura

import (
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/prop"
	"go.uber.org/zap"

	"github.com/shahryaralam688/AuraAI/shared"
)

// AudioSession abstracts the device audio I/O subsystem: microphone
// permission, activation/deactivation, and output routing.
type AudioSession interface {
	// RequestPermission asks for microphone access and reports the result
	// through the callback. The callback may fire synchronously.
	RequestPermission(cb func(granted bool))
	Configure() error
	Deactivate() error
	SetForceLoudspeaker(force bool) error
	CurrentRoute() AudioRoute
}

// AudioOutputKind classifies where audio is currently routed.
type AudioOutputKind int

const (
	OutputBuiltInSpeaker AudioOutputKind = iota
	OutputBuiltInReceiver
	OutputHeadphones
	OutputBluetooth
	OutputUSB
)

// External reports whether the output is an externally connected accessory.
func (k AudioOutputKind) External() bool {
	switch k {
	case OutputHeadphones, OutputBluetooth, OutputUSB:
		return true
	default:
		return false
	}
}

type AudioOutput struct {
	Kind AudioOutputKind
	Name string
}

type AudioRoute struct {
	Outputs []AudioOutput
}

// ForceLoudspeaker decides the route override after a route change: defer to
// any externally connected accessory, otherwise force the built-in speaker.
func ForceLoudspeaker(route AudioRoute) bool {
	for _, out := range route.Outputs {
		if out.Kind.External() {
			return false
		}
	}
	return true
}

// AudioEvent is an external device-audio signal observed by the session.
type AudioEvent int

const (
	AudioInterruptionBegan AudioEvent = iota
	AudioInterruptionEnded
	AudioRouteChanged
	AudioMediaServicesReset
)

func (e AudioEvent) String() string {
	switch e {
	case AudioInterruptionBegan:
		return "interruption_began"
	case AudioInterruptionEnded:
		return "interruption_ended"
	case AudioRouteChanged:
		return "route_changed"
	case AudioMediaServicesReset:
		return "media_services_reset"
	default:
		return "unknown"
	}
}

// AudioEventInfo carries the detail of an AudioEvent notification.
type AudioEventInfo struct {
	Event        AudioEvent
	ShouldResume bool
	Route        AudioRoute
}

// DeviceAudioSession is the default AudioSession backed by the host
// microphone via pion/mediadevices. Permission maps to successfully opening
// a capture stream.
type DeviceAudioSession struct {
	logger shared.LoggerAdapter

	mu         sync.Mutex
	stream     mediadevices.MediaStream
	micTrack   mediadevices.Track
	granted    bool
	configured bool
	loud       bool
}

var _ AudioSession = (*DeviceAudioSession)(nil)

func NewDeviceAudioSession(logger shared.LoggerAdapter) *DeviceAudioSession {
	return &DeviceAudioSession{logger: logger}
}

func (a *DeviceAudioSession) RequestPermission(cb func(granted bool)) {
	a.mu.Lock()
	if a.granted {
		a.mu.Unlock()
		cb(true)
		return
	}
	opusParams, err := opus.NewParams()
	if err != nil {
		a.mu.Unlock()
		a.logger.Error("creating opus params", err)
		cb(false)
		return
	}
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {
			c.SampleRate = prop.Int(48000)
			c.ChannelCount = prop.Int(1)
			c.SampleSize = prop.Int(16)
		},
		Codec: mediadevices.NewCodecSelector(
			mediadevices.WithAudioEncoders(&opusParams),
		),
	})
	if err != nil {
		a.mu.Unlock()
		a.logger.Error("opening microphone stream", err)
		cb(false)
		return
	}
	tracks := stream.GetAudioTracks()
	if len(tracks) == 0 {
		a.mu.Unlock()
		a.logger.Warn("microphone stream has no audio track")
		cb(false)
		return
	}
	a.stream = stream
	a.micTrack = tracks[0]
	a.granted = true
	a.mu.Unlock()
	a.logger.Info("microphone access granted")
	cb(true)
}

func (a *DeviceAudioSession) Configure() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.granted {
		return failure(FailurePermissionDenied, "configuring audio session without permission", nil)
	}
	a.configured = true
	return nil
}

func (a *DeviceAudioSession) Deactivate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configured = false
	if a.micTrack != nil {
		if err := a.micTrack.Close(); err != nil {
			a.logger.Warn("closing microphone track", zap.Error(err))
		}
		a.micTrack = nil
	}
	a.stream = nil
	a.granted = false
	return nil
}

func (a *DeviceAudioSession) SetForceLoudspeaker(force bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	// Desktop hosts route through the OS default device; remember the
	// preference so a platform-specific build can act on it.
	a.loud = force
	return nil
}

func (a *DeviceAudioSession) CurrentRoute() AudioRoute {
	return AudioRoute{Outputs: []AudioOutput{{Kind: OutputBuiltInSpeaker, Name: "default"}}}
}

// MicTrack exposes the capture track for the media pipeline. Nil until
// permission has been granted.
func (a *DeviceAudioSession) MicTrack() mediadevices.Track {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.micTrack
}
