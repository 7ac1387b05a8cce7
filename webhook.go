package aura

import (
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/shahryaralam688/AuraAI/shared"
)

// EventSink receives every lifecycle/telemetry event the session produces.
type EventSink interface {
	Emit(kind EventKind, payload map[string]any, state SessionState)
}

// WebhookSink posts each event to an external HTTP endpoint, fire-and-forget.
// Delivery failures are logged and never affect the session.
type WebhookSink struct {
	logger shared.LoggerAdapter
	url    string
}

var _ EventSink = (*WebhookSink)(nil)

func NewWebhookSink(logger shared.LoggerAdapter, url string) *WebhookSink {
	return &WebhookSink{logger: logger, url: url}
}

func (s *WebhookSink) Emit(kind EventKind, payload map[string]any, state SessionState) {
	env := newEnvelope(kind, payload, state)
	body, err := env.MarshalJSON()
	if err != nil {
		s.logger.Error("marshaling webhook envelope", err, zap.String("event", string(kind)))
		return
	}
	go s.post(body, kind)
}

func (s *WebhookSink) post(body []byte, kind EventKind) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if err := fasthttp.Do(req, resp); err != nil {
		s.logger.Warn("posting webhook event failed",
			zap.String("event", string(kind)),
			zap.Error(err),
		)
		return
	}
	if resp.StatusCode() >= fasthttp.StatusBadRequest {
		s.logger.Warn("webhook endpoint rejected event",
			zap.String("event", string(kind)),
			zap.Int("status", resp.StatusCode()),
		)
	}
}

// NopSink drops every event. Used when no webhook URL is configured.
type NopSink struct{}

var _ EventSink = (*NopSink)(nil)

func (NopSink) Emit(EventKind, map[string]any, SessionState) {}
