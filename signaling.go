package aura

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/shahryaralam688/AuraAI/shared"
)

const (
	tokenPath             = "/api/aura/token"
	realtimeVersionHeader = "OpenAI-Beta"
	realtimeVersionValue  = "realtime=v1"
)

// Signaler performs the two-hop handshake: fetch an ephemeral credential from
// the first-party backend, then trade the local offer for the remote answer.
type Signaler interface {
	FetchCredential(ctx context.Context) (string, error)
	ExchangeOffer(ctx context.Context, credential, offer string) (string, error)
}

// SignalingClient is the fasthttp-backed Signaler.
type SignalingClient struct {
	logger         shared.LoggerAdapter
	backendURL     *url.URL
	negotiationURL *url.URL
	model          string
}

var _ Signaler = (*SignalingClient)(nil)

func NewSignalingClient(logger shared.LoggerAdapter, cfg *Config) (*SignalingClient, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if cfg == nil {
		return nil, shared.ErrNoConfig
	}
	backend, err := url.Parse(cfg.BackendURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend URL: %w", err)
	}
	negotiation, err := url.Parse(cfg.NegotiationURL)
	if err != nil {
		return nil, fmt.Errorf("parsing negotiation URL: %w", err)
	}
	return &SignalingClient{
		logger:         logger,
		backendURL:     backend,
		negotiationURL: negotiation,
		model:          cfg.Model,
	}, nil
}

// doRequest performs req without blocking past ctx cancellation. Responses
// arriving after cancellation are dropped, never applied.
func doRequest(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	errC := make(chan error, 1)
	go func() {
		defer close(errC)
		errC <- fasthttp.Do(req, resp)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errC:
		return err
	}
}

type tokenResponse struct {
	Key string `json:"key"`
}

// FetchCredential requests a single-use ephemeral credential. Every failure
// mode (network, non-2xx, malformed body, empty key) classifies as
// FailureCredentialFetch and aborts the attempt.
func (c *SignalingClient) FetchCredential(ctx context.Context) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.backendURL.JoinPath(tokenPath).String())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	if err := doRequest(ctx, req, resp); err != nil {
		return "", failure(FailureCredentialFetch, "Token error", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", failure(FailureCredentialFetch, "Token error",
			fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.Body()))
	}
	var tr tokenResponse
	if err := sonic.Unmarshal(resp.Body(), &tr); err != nil {
		return "", failure(FailureCredentialFetch, "Token error",
			fmt.Errorf("malformed token response: %w", err))
	}
	if tr.Key == "" {
		return "", failure(FailureCredentialFetch, "Token error",
			fmt.Errorf("token response missing key"))
	}
	c.logger.Debug("ephemeral credential obtained")
	return tr.Key, nil
}

// ExchangeOffer posts the raw local offer and returns the raw remote answer.
// The negotiation endpoint signals errors by answering with a JSON content
// type; that body surfaces verbatim in the failure message.
func (c *SignalingClient) ExchangeOffer(ctx context.Context, credential, offer string) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	target := *c.negotiationURL
	q := target.Query()
	q.Set("model", c.model)
	target.RawQuery = q.Encode()

	req.SetRequestURI(target.String())
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+credential)
	req.Header.Set(realtimeVersionHeader, realtimeVersionValue)
	req.Header.SetContentType("application/sdp")
	req.SetBodyString(offer)

	if err := doRequest(ctx, req, resp); err != nil {
		return "", failure(FailureNegotiation, "offer exchange", err)
	}

	contentType := string(resp.Header.ContentType())
	if strings.Contains(contentType, "application/json") {
		return "", failure(FailureNegotiation,
			fmt.Sprintf("negotiation endpoint returned error (status %d): %s",
				resp.StatusCode(), resp.Body()), nil)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", failure(FailureNegotiation,
			fmt.Sprintf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.Body()), nil)
	}
	answer := string(resp.Body())
	if answer == "" {
		return "", failure(FailureNegotiation, "empty remote answer", nil)
	}
	c.logger.Debug("remote answer received", zap.Int("bytes", len(answer)))
	return answer, nil
}
