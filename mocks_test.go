package aura

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/shahryaralam688/AuraAI/shared"
)

func nopLogger() shared.LoggerAdapter {
	return shared.NewNopLogger()
}

type mockEngine struct {
	mu        sync.Mutex
	offer     string
	offerErr  error
	applyErr  error
	applied   []string
	closed    int
	recreated int
	sent      []DataChannelMessage
	sendErr   error

	onICE   func(webrtc.ICEConnectionState)
	onOpen  func()
	onClose func()
	onMsg   func(DataChannelMessage)
}

var _ MediaEngine = (*mockEngine)(nil)

func newMockEngine() *mockEngine {
	return &mockEngine{offer: "v=0\r\nlocal-offer"}
}

func (e *mockEngine) CreateOffer() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.offerErr != nil {
		return "", e.offerErr
	}
	return e.offer, nil
}

func (e *mockEngine) ApplyAnswer(sdp string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.applyErr != nil {
		return e.applyErr
	}
	e.applied = append(e.applied, sdp)
	return nil
}

func (e *mockEngine) RecreateCaptureTrack() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recreated++
	return nil
}

func (e *mockEngine) CloseSession() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return nil
}

func (e *mockEngine) ICEState() webrtc.ICEConnectionState {
	return webrtc.ICEConnectionStateNew
}

func (e *mockEngine) Send(msg DataChannelMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sendErr != nil {
		return e.sendErr
	}
	e.sent = append(e.sent, msg)
	return nil
}

func (e *mockEngine) OnICEStateChange(fn func(webrtc.ICEConnectionState)) { e.onICE = fn }
func (e *mockEngine) OnDataChannelOpen(fn func())                        { e.onOpen = fn }
func (e *mockEngine) OnDataChannelClose(fn func())                       { e.onClose = fn }
func (e *mockEngine) OnDataChannelMessage(fn func(DataChannelMessage))   { e.onMsg = fn }

func (e *mockEngine) fireICE(state webrtc.ICEConnectionState) {
	e.onICE(state)
}

func (e *mockEngine) closedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *mockEngine) recreatedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recreated
}

func (e *mockEngine) appliedAnswers() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.applied...)
}

type mockAudio struct {
	mu           sync.Mutex
	granted      bool
	configures   int
	deactivates  int
	configureErr error
	loud         []bool
}

var _ AudioSession = (*mockAudio)(nil)

func (a *mockAudio) RequestPermission(cb func(granted bool)) {
	a.mu.Lock()
	granted := a.granted
	a.mu.Unlock()
	cb(granted)
}

func (a *mockAudio) Configure() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.configureErr != nil {
		return a.configureErr
	}
	a.configures++
	return nil
}

func (a *mockAudio) Deactivate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deactivates++
	return nil
}

func (a *mockAudio) SetForceLoudspeaker(force bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loud = append(a.loud, force)
	return nil
}

func (a *mockAudio) CurrentRoute() AudioRoute {
	return AudioRoute{}
}

func (a *mockAudio) deactivateCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deactivates
}

type mockSignaler struct {
	mu          sync.Mutex
	cred        string
	credErr     error
	answer      string
	exchangeErr error
	fetches     int
	exchanges   int
	gotCred     string
	gotOffer    string
	// fetchGate, when set, blocks FetchCredential until closed.
	fetchGate chan struct{}
}

var _ Signaler = (*mockSignaler)(nil)

func newMockSignaler() *mockSignaler {
	return &mockSignaler{cred: "abc123", answer: "v=0\r\nremote-answer"}
}

func (s *mockSignaler) FetchCredential(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.fetches++
	gate := s.fetchGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.credErr != nil {
		return "", s.credErr
	}
	return s.cred, nil
}

func (s *mockSignaler) ExchangeOffer(ctx context.Context, credential, offer string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges++
	s.gotCred = credential
	s.gotOffer = offer
	if s.exchangeErr != nil {
		return "", s.exchangeErr
	}
	return s.answer, nil
}

func (s *mockSignaler) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

type recordedEvent struct {
	kind    EventKind
	payload map[string]any
	state   SessionState
}

type recordSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

var _ EventSink = (*recordSink)(nil)

func (r *recordSink) Emit(kind EventKind, payload map[string]any, state SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{kind: kind, payload: payload, state: state})
}

func (r *recordSink) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (r *recordSink) byKind(kind EventKind) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

var errNetwork = errors.New("connection refused")

func testConfig() *Config {
	return &Config{
		BackendURL:           "http://backend.test",
		NegotiationURL:       "https://negotiation.test/v1/realtime",
		Model:                "gpt-realtime",
		MaxReconnectAttempts: 3,
		BackoffUnit:          5 * time.Millisecond,
		BackoffCap:           150 * time.Millisecond,
		GraceDelay:           40 * time.Millisecond,
		SettleDelay:          time.Millisecond,
	}
}

type sessionFixture struct {
	session *Session
	engine  *mockEngine
	audio   *mockAudio
	signal  *mockSignaler
	sink    *recordSink
}

func newFixture(cfg *Config) (*sessionFixture, error) {
	f := &sessionFixture{
		engine: newMockEngine(),
		audio:  &mockAudio{granted: true},
		signal: newMockSignaler(),
		sink:   &recordSink{},
	}
	if cfg == nil {
		cfg = testConfig()
	}
	s, err := NewSession(context.Background(), nopLogger(), cfg, f.engine, f.audio, f.signal, f.sink)
	if err != nil {
		return nil, err
	}
	f.session = s
	return f, nil
}
