package aura

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/shahryaralam688/AuraAI/shared"
)

// DataChannelMessage is one frame exchanged over the event channel,
// either UTF-8 text or opaque binary.
type DataChannelMessage struct {
	IsString bool
	Data     []byte
}

func TextMessage(s string) DataChannelMessage {
	return DataChannelMessage{IsString: true, Data: []byte(s)}
}

func BinaryMessage(b []byte) DataChannelMessage {
	return DataChannelMessage{Data: b}
}

type TrackRemoteHandler func(track *webrtc.TrackRemote)
type TrackLocalHandler func(track *webrtc.TrackLocalStaticSample)

// MediaEngine is the session's port to the peer media stack. The session
// owns the engine handle exclusively; collaborators only observe it through
// the registered callbacks.
type MediaEngine interface {
	// CreateOffer builds a fresh peer session (connection, capture track,
	// event channel) and returns the local offer payload.
	CreateOffer() (string, error)
	// ApplyAnswer installs the remote answer payload.
	ApplyAnswer(sdp string) error
	// RecreateCaptureTrack replaces the local capture track. Some platforms
	// invalidate capture resources across audio interruptions.
	RecreateCaptureTrack() error
	// CloseSession releases the data channel, local tracks, and the peer
	// connection. Safe to call repeatedly.
	CloseSession() error
	ICEState() webrtc.ICEConnectionState
	Send(msg DataChannelMessage) error

	OnICEStateChange(fn func(webrtc.ICEConnectionState))
	OnDataChannelOpen(fn func())
	OnDataChannelClose(fn func())
	OnDataChannelMessage(fn func(DataChannelMessage))
}

// WebRTCEngine implements MediaEngine on pion/webrtc. Each CreateOffer
// builds a new peer connection with an Opus uplink track and an "oai" data
// channel, rewiring the registered callbacks onto it.
type WebRTCEngine struct {
	logger shared.LoggerAdapter

	mu       sync.Mutex
	pc       *webrtc.PeerConnection
	dc       *webrtc.DataChannel
	audio    *webrtc.TrackLocalStaticSample
	sender   *webrtc.RTPSender
	iceState webrtc.ICEConnectionState

	onICE    func(webrtc.ICEConnectionState)
	onOpen   func()
	onClose  func()
	onMsg    func(DataChannelMessage)
	audioTRH TrackRemoteHandler
	audioTLH TrackLocalHandler
}

var _ MediaEngine = (*WebRTCEngine)(nil)

func NewWebRTCEngine(logger shared.LoggerAdapter) (*WebRTCEngine, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	return &WebRTCEngine{logger: logger, iceState: webrtc.ICEConnectionStateNew}, nil
}

func (e *WebRTCEngine) OnICEStateChange(fn func(webrtc.ICEConnectionState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onICE = fn
}

func (e *WebRTCEngine) OnDataChannelOpen(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onOpen = fn
}

func (e *WebRTCEngine) OnDataChannelClose(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onClose = fn
}

func (e *WebRTCEngine) OnDataChannelMessage(fn func(DataChannelMessage)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onMsg = fn
}

// RegisterTrackRemoteHandler sets the consumer for the downlink audio track.
func (e *WebRTCEngine) RegisterTrackRemoteHandler(handler TrackRemoteHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.audioTRH != nil {
		return shared.ErrObserverAlreadySet
	}
	if handler == nil {
		return errors.New("handler is required")
	}
	e.audioTRH = handler
	return nil
}

// RegisterTrackLocalHandler sets the producer feeding the uplink track. It
// is invoked once per session when ICE reaches connected.
func (e *WebRTCEngine) RegisterTrackLocalHandler(handler TrackLocalHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.audioTLH != nil {
		return shared.ErrObserverAlreadySet
	}
	if handler == nil {
		return errors.New("handler is required")
	}
	e.audioTLH = handler
	return nil
}

func newUplinkTrack() (*webrtc.TrackLocalStaticSample, error) {
	return webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		"audio",
		"mic",
	)
}

func (e *WebRTCEngine) CreateOffer() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc != nil {
		if err := e.closeSessionLocked(); err != nil {
			e.logger.Warn("closing stale peer session", zap.Error(err))
		}
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return "", fmt.Errorf("creating peer connection: %w", err)
	}

	audio, err := newUplinkTrack()
	if err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("creating local audio track: %w", err)
	}
	sender, err := pc.AddTrack(audio)
	if err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("adding audio track to peer connection: %w", err)
	}

	dc, err := pc.CreateDataChannel("oai", nil)
	if err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("creating data channel: %w", err)
	}

	localStarted := false
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		e.mu.Lock()
		e.iceState = state
		onICE := e.onICE
		tlh := e.audioTLH
		track := e.audio
		start := state == webrtc.ICEConnectionStateConnected && !localStarted && tlh != nil
		if start {
			localStarted = true
		}
		e.mu.Unlock()
		if start {
			go tlh(track)
		}
		if onICE != nil {
			onICE(state)
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		e.mu.Lock()
		trh := e.audioTRH
		e.mu.Unlock()
		if trh != nil && track.Kind() == webrtc.RTPCodecTypeAudio {
			go trh(track)
		}
	})
	dc.OnOpen(func() {
		e.mu.Lock()
		onOpen := e.onOpen
		e.mu.Unlock()
		if onOpen != nil {
			onOpen()
		}
	})
	dc.OnClose(func() {
		e.mu.Lock()
		onClose := e.onClose
		e.mu.Unlock()
		if onClose != nil {
			onClose()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		e.mu.Lock()
		onMsg := e.onMsg
		e.mu.Unlock()
		if onMsg != nil {
			onMsg(DataChannelMessage{IsString: msg.IsString, Data: msg.Data})
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("creating offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return "", fmt.Errorf("setting local description: %w", err)
	}

	e.pc = pc
	e.dc = dc
	e.audio = audio
	e.sender = sender
	e.iceState = webrtc.ICEConnectionStateNew
	return offer.SDP, nil
}

func (e *WebRTCEngine) ApplyAnswer(sdp string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pc == nil {
		return errors.New("no peer connection")
	}
	if err := e.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	}); err != nil {
		return fmt.Errorf("setting remote description: %w", err)
	}
	return nil
}

func (e *WebRTCEngine) RecreateCaptureTrack() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sender == nil {
		return errors.New("no active audio sender")
	}
	audio, err := newUplinkTrack()
	if err != nil {
		return fmt.Errorf("creating replacement audio track: %w", err)
	}
	if err := e.sender.ReplaceTrack(audio); err != nil {
		return fmt.Errorf("replacing audio track: %w", err)
	}
	e.audio = audio

	e.logger.Info("capture track recreated")
	tlh := e.audioTLH
	if tlh != nil {
		go tlh(audio)
	}
	return nil
}

func (e *WebRTCEngine) closeSessionLocked() error {
	var errs []error
	if e.dc != nil {
		if err := e.dc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing data channel: %w", err))
		}
		e.dc = nil
	}
	if e.pc != nil {
		if e.sender != nil {
			if err := e.pc.RemoveTrack(e.sender); err != nil {
				errs = append(errs, fmt.Errorf("removing local track: %w", err))
			}
		}
		if err := e.pc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing peer connection: %w", err))
		}
		e.pc = nil
	}
	e.sender = nil
	e.audio = nil
	e.iceState = webrtc.ICEConnectionStateClosed
	return errors.Join(errs...)
}

func (e *WebRTCEngine) CloseSession() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeSessionLocked()
}

func (e *WebRTCEngine) ICEState() webrtc.ICEConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.iceState
}

func (e *WebRTCEngine) Send(msg DataChannelMessage) error {
	e.mu.Lock()
	dc := e.dc
	e.mu.Unlock()
	if dc == nil {
		return shared.ErrChannelClosed
	}
	if msg.IsString {
		return dc.SendText(string(msg.Data))
	}
	return dc.Send(msg.Data)
}
