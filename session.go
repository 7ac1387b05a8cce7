package aura

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/openai/openai-go/v3/realtime"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/shahryaralam688/AuraAI/shared"
)

// SessionState is the single authoritative connection status, mutated only
// by the session and observed by the presentation layer.
type SessionState string

const (
	StateDisconnected SessionState = "disconnected"
	StateConnecting   SessionState = "connecting"
	StateConnected    SessionState = "connected"
	StateError        SessionState = "error"
)

const (
	eventDial        = "dial"
	eventEstablished = "established"
	eventFail        = "fail"
	eventShutdown    = "shutdown"
)

// StateObserver is notified after every state transition. Observers must not
// call back into the session.
type StateObserver func(from, to SessionState)

// Session orchestrates one voice connection to the conversational backend:
// it sequences the two-hop signaling handshake, classifies failures, and
// drives bounded-backoff reconnection. The session itself is process-lifetime
// and survives across start/stop cycles.
type Session struct {
	logger  shared.LoggerAdapter
	cfg     *Config
	engine  MediaEngine
	audio   AudioSession
	signal  Signaler
	sink    EventSink
	diag    *DiagnosticsLog
	channel *ChannelProtocol
	backoff BackoffPolicy
	baseCtx context.Context

	mu            sync.Mutex
	sm            *fsm.FSM
	credential    string
	recon         reconnectState
	graceTimer    *time.Timer
	lastICE       webrtc.ICEConnectionState
	attemptCtx    context.Context
	attemptCancel context.CancelCauseFunc
	// epoch increments on every Start and Stop; async completions carry the
	// epoch they were issued under and are discarded when it has moved on.
	epoch uint64

	observer StateObserver
	metrics  *Metrics
}

func NewSession(
	ctx context.Context,
	logger shared.LoggerAdapter,
	cfg *Config,
	engine MediaEngine,
	audio AudioSession,
	signal Signaler,
	sink EventSink,
) (*Session, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if cfg == nil {
		return nil, shared.ErrNoConfig
	}
	if engine == nil {
		return nil, shared.ErrNoMediaEngine
	}
	if audio == nil {
		return nil, shared.ErrNoAudioSession
	}
	if signal == nil {
		return nil, shared.ErrNoSignaler
	}
	if sink == nil {
		sink = NopSink{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s := &Session{
		logger:  logger,
		cfg:     cfg,
		engine:  engine,
		audio:   audio,
		signal:  signal,
		sink:    sink,
		diag:    NewDiagnosticsLog(),
		backoff: cfg.Backoff(),
		baseCtx: ctx,
		lastICE: webrtc.ICEConnectionStateNew,
	}
	s.sm = fsm.NewFSM(
		string(StateDisconnected),
		fsm.Events{
			{Name: eventDial, Src: []string{string(StateDisconnected), string(StateError)}, Dst: string(StateConnecting)},
			{Name: eventEstablished, Src: []string{string(StateConnecting)}, Dst: string(StateConnected)},
			{Name: eventFail, Src: []string{string(StateConnecting), string(StateConnected)}, Dst: string(StateError)},
			{Name: eventShutdown, Src: []string{
				string(StateDisconnected), string(StateConnecting), string(StateConnected), string(StateError),
			}, Dst: string(StateDisconnected)},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				s.afterTransition(SessionState(e.Src), SessionState(e.Dst))
			},
		},
	)
	s.channel = NewChannelProtocol(logger, sink, s.diag, s.State, engine.Send)
	if cfg.Voice != "" {
		s.channel.SetSessionConfig(&realtime.RealtimeSessionCreateRequestParam{
			Audio: realtime.RealtimeAudioConfigParam{
				Output: realtime.RealtimeAudioConfigOutputParam{
					Voice: realtime.RealtimeAudioConfigOutputVoice(cfg.Voice),
				},
			},
		})
	}

	engine.OnICEStateChange(s.handleICEState)
	engine.OnDataChannelOpen(s.channel.HandleOpen)
	engine.OnDataChannelClose(s.channel.HandleClose)
	engine.OnDataChannelMessage(s.channel.HandleMessage)
	return s, nil
}

func (s *Session) afterTransition(from, to SessionState) {
	if from == to {
		return
	}
	s.metrics.transitioned(from, to)
	if s.observer != nil {
		s.observer(from, to)
	}
}

// RegisterStateObserver installs the presentation-layer state listener.
func (s *Session) RegisterStateObserver(fn StateObserver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observer != nil {
		return shared.ErrObserverAlreadySet
	}
	if fn == nil {
		return errors.New("observer is required")
	}
	s.observer = fn
	return nil
}

// RegisterEventObserver installs a listener for decoded inbound text frames.
func (s *Session) RegisterEventObserver(fn func(map[string]any)) error {
	if fn == nil {
		return errors.New("observer is required")
	}
	s.channel.SetObserver(fn)
	return nil
}

func (s *Session) RegisterMetrics(m *Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metrics != nil {
		return shared.ErrMetricsAlreadySet
	}
	s.metrics = m
	return nil
}

func (s *Session) State() SessionState {
	return SessionState(s.sm.Current())
}

func (s *Session) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recon.attempts
}

func (s *Session) Diagnostics() *DiagnosticsLog {
	return s.diag
}

// SendEvent serializes v and sends it over the event channel as a text frame.
func (s *Session) SendEvent(v any) error {
	return s.channel.SendJSON(v)
}

func (s *Session) transitionLocked(event string) {
	if err := s.sm.Event(context.Background(), event); err != nil {
		s.logger.Trace("state transition skipped",
			zap.String("event", event),
			zap.String("state", s.sm.Current()),
			zap.Error(err),
		)
	}
}

func (s *Session) emit(kind EventKind, payload map[string]any) {
	s.sink.Emit(kind, payload, s.State())
}

func (s *Session) stale(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return epoch != s.epoch
}

// Start begins a new session attempt. It is a no-op while the session is
// already connecting or connected.
func (s *Session) Start() error {
	s.mu.Lock()
	switch s.State() {
	case StateConnecting, StateConnected:
		s.mu.Unlock()
		s.logger.Debug("start ignored", zap.String("state", string(s.State())))
		return shared.ErrSessionActive
	}
	s.epoch++
	epoch := s.epoch
	s.recon.cancelTimer()
	s.recon.attempts = 0
	s.stopGraceTimerLocked()
	if s.attemptCancel != nil {
		s.attemptCancel(errors.New("superseded by new start"))
	}
	s.attemptCtx, s.attemptCancel = context.WithCancelCause(s.baseCtx)
	s.transitionLocked(eventDial)
	s.mu.Unlock()

	s.diag.Append("session starting")
	s.metrics.sessionStarted()
	s.emit(EventSessionStart, nil)

	s.emit(EventMicPermissionRequested, nil)
	s.audio.RequestPermission(func(granted bool) {
		s.onPermission(epoch, granted)
	})
	return nil
}

// Stop tears the session down. It is idempotent, safe in every state, and
// immediately authoritative: responses from in-flight work are discarded.
func (s *Session) Stop() error {
	s.mu.Lock()
	s.epoch++
	s.recon.cancelTimer()
	s.stopGraceTimerLocked()
	s.credential = ""
	s.recon.attempts = 0
	if s.attemptCancel != nil {
		s.attemptCancel(errors.New("session stopped"))
		s.attemptCancel = nil
		s.attemptCtx = nil
	}
	s.mu.Unlock()

	if err := s.engine.CloseSession(); err != nil {
		s.logger.Warn("closing media session", zap.Error(err))
	}

	s.mu.Lock()
	s.transitionLocked(eventShutdown)
	s.mu.Unlock()

	s.diag.Append("session stopped")
	s.emit(EventSessionStop, nil)

	if err := s.audio.Deactivate(); err != nil {
		s.logger.Warn("deactivating audio session", zap.Error(err))
	}
	return nil
}

func (s *Session) stopGraceTimerLocked() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

func (s *Session) onPermission(epoch uint64, granted bool) {
	if s.stale(epoch) {
		return
	}
	if !granted {
		s.emit(EventMicPermissionDenied, nil)
		s.failWith(epoch, failure(FailurePermissionDenied, "microphone permission denied", nil))
		return
	}
	if err := s.audio.Configure(); err != nil {
		s.failWith(epoch, err)
		return
	}
	go s.dial(epoch)
}

// dial runs the credential fetch, offer creation, and offer/answer exchange
// in order. Each step guards the epoch so a Stop in between wins.
func (s *Session) dial(epoch uint64) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	ctx := s.attemptCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}

	started := time.Now()
	cred, err := s.signal.FetchCredential(ctx)
	if err != nil {
		s.failWith(epoch, err)
		return
	}
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	s.credential = cred
	s.mu.Unlock()

	offer, err := s.engine.CreateOffer()
	if err != nil {
		s.failWith(epoch, failure(FailureNegotiation, "creating local offer", err))
		return
	}
	answer, err := s.signal.ExchangeOffer(ctx, cred, offer)
	if err != nil {
		s.failWith(epoch, err)
		return
	}
	if s.stale(epoch) {
		return
	}
	if err := s.engine.ApplyAnswer(answer); err != nil {
		s.failWith(epoch, failure(FailureNegotiation, "applying remote answer", err))
		return
	}
	s.metrics.observeHandshake(time.Since(started))
	s.established(epoch)
}

func (s *Session) established(epoch uint64) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	s.transitionLocked(eventEstablished)
	s.recon.attempts = 0
	s.mu.Unlock()

	s.diag.Append("connected")
	s.logger.Info("session connected")
	s.emit(EventConnected, nil)
}

// failWith moves the session to StateError, reports the failure exactly once
// to the diagnostics log and the sink, and consults the reconnection policy.
func (s *Session) failWith(epoch uint64, err error) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	if s.State() == StateDisconnected {
		s.mu.Unlock()
		return
	}
	attempts := s.recon.attempts
	s.credential = ""
	s.transitionLocked(eventFail)
	s.mu.Unlock()

	kind := FailureKindOf(err)
	s.diag.Appendf("error: %v", err)
	s.logger.Error("session failed", err,
		zap.String("kind", kind.String()),
		zap.Int("reconnect_attempts", attempts),
	)
	s.metrics.failed(kind)
	s.emit(EventError, map[string]any{
		"message":            err.Error(),
		"reconnect_attempts": attempts,
	})

	if kind == FailurePermissionDenied {
		// Retrying without permission is futile; wait for a manual Start.
		s.diag.Append("not retrying without microphone permission")
		return
	}
	s.scheduleReconnect(epoch)
}

func (s *Session) scheduleReconnect(epoch uint64) {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	switch s.State() {
	case StateConnected, StateConnecting:
		s.mu.Unlock()
		return
	}
	if s.backoff.Exhausted(s.recon.attempts) {
		s.mu.Unlock()
		s.diag.Append("reconnect attempts exhausted")
		s.logger.Warn("reconnect attempts exhausted",
			zap.Int("max_attempts", s.backoff.MaxAttempts))
		if err := s.audio.Deactivate(); err != nil {
			s.logger.Warn("deactivating audio session", zap.Error(err))
		}
		return
	}
	s.recon.attempts++
	attempt := s.recon.attempts
	delay := s.backoff.Delay(attempt)
	s.recon.cancelTimer()
	s.recon.timer = time.AfterFunc(delay, func() {
		s.redial(epoch)
	})
	s.mu.Unlock()

	s.diag.Appendf("reconnect %d/%d scheduled in %s", attempt, s.backoff.MaxAttempts, delay)
	s.metrics.reconnectScheduled()
	s.emit(EventReconnectScheduled, map[string]any{
		"attempt":  attempt,
		"delay_ms": delay.Milliseconds(),
	})
}

// redial re-asserts the audio configuration, tears the media session down,
// lets it settle, then runs the signaling sequence again.
func (s *Session) redial(epoch uint64) {
	if s.stale(epoch) {
		return
	}
	switch s.State() {
	case StateConnected, StateConnecting:
		return
	}
	if err := s.audio.Configure(); err != nil {
		s.failWith(epoch, err)
		return
	}
	if err := s.engine.CloseSession(); err != nil {
		s.logger.Warn("closing media session before redial", zap.Error(err))
	}
	time.Sleep(s.cfg.SettleDelay)
	if s.stale(epoch) {
		return
	}
	s.mu.Lock()
	s.transitionLocked(eventDial)
	s.mu.Unlock()
	s.diag.Append("redialing")
	s.dial(epoch)
}

// handleICEState classifies coarse transport connectivity signals.
// connected/completed reset the attempt counter; disconnected gets a grace
// window to ride out renegotiation blips; failed reconnects immediately.
func (s *Session) handleICEState(state webrtc.ICEConnectionState) {
	s.mu.Lock()
	epoch := s.epoch
	s.lastICE = state
	s.mu.Unlock()

	s.diag.Appendf("ice state: %s", state)
	s.emit(EventICEStateChange, map[string]any{"state": state.String()})

	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		s.mu.Lock()
		s.recon.attempts = 0
		s.stopGraceTimerLocked()
		s.mu.Unlock()
	case webrtc.ICEConnectionStateDisconnected:
		s.mu.Lock()
		s.stopGraceTimerLocked()
		s.graceTimer = time.AfterFunc(s.cfg.GraceDelay, func() {
			s.graceExpired(epoch)
		})
		s.mu.Unlock()
	case webrtc.ICEConnectionStateFailed:
		s.mu.Lock()
		s.stopGraceTimerLocked()
		s.mu.Unlock()
		s.failWith(epoch, failure(FailureTransport, "transport failed", nil))
	}
}

func (s *Session) graceExpired(epoch uint64) {
	if s.stale(epoch) {
		return
	}
	s.mu.Lock()
	still := s.lastICE == webrtc.ICEConnectionStateDisconnected
	s.mu.Unlock()
	if !still {
		return
	}
	s.failWith(epoch, failure(FailureTransport, "transport still disconnected after grace window", nil))
}

// HandleAudioEvent reacts to device audio session notifications forwarded by
// the platform layer.
func (s *Session) HandleAudioEvent(info AudioEventInfo) {
	switch info.Event {
	case AudioInterruptionBegan:
		s.diag.Append("audio session interrupted")
		s.emit(EventAudioInterrupted, map[string]any{"phase": "began"})
	case AudioInterruptionEnded:
		s.emit(EventAudioInterrupted, map[string]any{
			"phase":         "ended",
			"should_resume": info.ShouldResume,
		})
		if !info.ShouldResume {
			return
		}
		s.resumeCapture("interruption")
	case AudioRouteChanged:
		force := ForceLoudspeaker(info.Route)
		if err := s.audio.SetForceLoudspeaker(force); err != nil {
			s.logger.Warn("applying route override", zap.Error(err))
		}
		s.diag.Appendf("route changed, force loudspeaker: %t", force)
	case AudioMediaServicesReset:
		s.diag.Append("media services reset")
		s.resumeCapture("media services reset")
	}
}

// resumeCapture reconfigures the audio session and, when connected, asks the
// engine for a fresh capture track since interruptions can invalidate it.
func (s *Session) resumeCapture(reason string) {
	if err := s.audio.Configure(); err != nil {
		s.logger.Error("reconfiguring audio session after "+reason, err)
		return
	}
	if s.State() != StateConnected {
		return
	}
	if err := s.engine.RecreateCaptureTrack(); err != nil {
		s.logger.Error("recreating capture track after "+reason, err)
		return
	}
	s.diag.Appendf("capture track recreated after %s", reason)
}
