package aura

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/openai/openai-go/v3/realtime"
	"go.uber.org/zap"

	"github.com/shahryaralam688/AuraAI/shared"
)

// ChannelProtocol encodes and decodes the event traffic carried over the
// data channel and mirrors every inbound frame to the event sink.
type ChannelProtocol struct {
	logger   shared.LoggerAdapter
	sink     EventSink
	diag     *DiagnosticsLog
	state    func() SessionState
	send     func(DataChannelMessage) error
	cfg      *realtime.RealtimeSessionCreateRequestParam
	observer func(map[string]any)
}

func NewChannelProtocol(
	logger shared.LoggerAdapter,
	sink EventSink,
	diag *DiagnosticsLog,
	state func() SessionState,
	send func(DataChannelMessage) error,
) *ChannelProtocol {
	return &ChannelProtocol{
		logger: logger,
		sink:   sink,
		diag:   diag,
		state:  state,
		send:   send,
	}
}

// SetSessionConfig installs the optional session.update frame sent once on
// channel open, e.g. to request a specific voice or output format.
func (p *ChannelProtocol) SetSessionConfig(cfg *realtime.RealtimeSessionCreateRequestParam) {
	p.cfg = cfg
}

// SetObserver installs a presentation-layer hook invoked for every decoded
// text frame.
func (p *ChannelProtocol) SetObserver(fn func(map[string]any)) {
	p.observer = fn
}

func (p *ChannelProtocol) HandleOpen() {
	p.diag.Append("data channel open")
	p.sink.Emit(EventDataChannelState, map[string]any{"state": "open"}, p.state())
	if p.cfg == nil {
		return
	}
	sessBytes, err := p.cfg.MarshalJSON()
	if err != nil {
		p.logger.Error("marshaling session config", err)
		return
	}
	frame, err := EncodeTextFrame(map[string]any{
		"type":    "session.update",
		"session": json.RawMessage(sessBytes),
	})
	if err != nil {
		p.logger.Error("encoding session.update frame", err)
		return
	}
	if err := p.send(DataChannelMessage{IsString: true, Data: frame}); err != nil {
		p.logger.Error("sending session.update frame", err)
		return
	}
	p.logger.Info("session.update sent on channel open")
}

func (p *ChannelProtocol) HandleClose() {
	p.diag.Append("data channel closed")
	p.sink.Emit(EventDataChannelState, map[string]any{"state": "closed"}, p.state())
}

// HandleMessage classifies an inbound frame as text or binary and forwards
// it to the sink as a distinct event kind. Binary frames get one UTF-8
// decode attempt before being treated as opaque.
func (p *ChannelProtocol) HandleMessage(msg DataChannelMessage) {
	if msg.IsString || utf8.Valid(msg.Data) {
		p.handleText(msg.Data)
		return
	}
	p.diag.Appendf("received binary frame (%d bytes)", len(msg.Data))
	p.sink.Emit(EventOAIBinary, map[string]any{
		"bytes":  len(msg.Data),
		"base64": base64.StdEncoding.EncodeToString(msg.Data),
	}, p.state())
}

func (p *ChannelProtocol) handleText(data []byte) {
	decoded, err := DecodeTextFrame(data)
	if err != nil {
		// Valid UTF-8 but not JSON; mirror it raw.
		decoded = map[string]any{"raw": string(data)}
	}
	if t, ok := decoded["type"].(string); ok {
		p.diag.Appendf("received event: %s", t)
	} else {
		p.diag.Append("received untyped text frame")
	}
	p.sink.Emit(EventOAI, decoded, p.state())
	if p.observer != nil {
		p.observer(decoded)
	}
}

// SendJSON serializes v and sends it as a text frame. Serialization failures
// are logged and reported without tearing the session down.
func (p *ChannelProtocol) SendJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		p.logger.Error("marshaling outbound frame", err)
		p.diag.Appendf("dropping unserializable outbound frame: %v", err)
		return failure(FailureSerialization, "marshaling outbound frame", err)
	}
	if err := p.send(DataChannelMessage{IsString: true, Data: data}); err != nil {
		p.logger.Error("sending outbound frame", err, zap.Int("bytes", len(data)))
		return err
	}
	return nil
}

// EncodeTextFrame and DecodeTextFrame are the canonical codec for structured
// text frames; encoding then decoding reproduces the original object.
func EncodeTextFrame(v map[string]any) ([]byte, error) {
	return sonic.Marshal(v)
}

func DecodeTextFrame(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
