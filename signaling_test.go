package aura

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSignaler(t *testing.T, handler http.Handler) *SignalingClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testConfig()
	cfg.BackendURL = server.URL
	cfg.NegotiationURL = server.URL + "/v1/realtime"
	client, err := NewSignalingClient(nopLogger(), cfg)
	require.NoError(t, err)
	return client
}

func TestFetchCredential(t *testing.T) {
	client := newTestSignaler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/aura/token", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key":"abc123"}`))
	}))

	key, err := client.FetchCredential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)
}

func TestFetchCredentialFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantMsg: "unexpected status code: 500"},
		{name: "malformed body", status: http.StatusOK, body: "not-json", wantMsg: "malformed token response"},
		{name: "missing key", status: http.StatusOK, body: `{"other":"x"}`, wantMsg: "missing key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestSignaler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := client.FetchCredential(context.Background())
			require.Error(t, err)
			assert.Equal(t, FailureCredentialFetch, FailureKindOf(err))
			assert.Contains(t, err.Error(), "Token error")
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestExchangeOffer(t *testing.T) {
	const offer = "v=0\r\nlocal-offer"
	const answer = "v=0\r\nremote-answer"
	client := newTestSignaler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/realtime", r.URL.Path)
		assert.Equal(t, "gpt-realtime", r.URL.Query().Get("model"))
		assert.Equal(t, "Bearer abc123", r.Header.Get("Authorization"))
		assert.Equal(t, "realtime=v1", r.Header.Get("OpenAI-Beta"))
		assert.Equal(t, "application/sdp", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, offer, string(body))

		w.Header().Set("Content-Type", "application/sdp")
		_, _ = w.Write([]byte(answer))
	}))

	got, err := client.ExchangeOffer(context.Background(), "abc123", offer)
	require.NoError(t, err)
	assert.Equal(t, answer, got)
}

func TestExchangeOfferJSONContentTypeIsError(t *testing.T) {
	const errBody = `{"error":"invalid_token"}`
	client := newTestSignaler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(errBody))
	}))

	_, err := client.ExchangeOffer(context.Background(), "abc123", "v=0\r\n")
	require.Error(t, err)
	assert.Equal(t, FailureNegotiation, FailureKindOf(err))
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), errBody)
}

func TestExchangeOfferNonJSONStatusError(t *testing.T) {
	client := newTestSignaler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))

	_, err := client.ExchangeOffer(context.Background(), "abc123", "v=0\r\n")
	require.Error(t, err)
	assert.Equal(t, FailureNegotiation, FailureKindOf(err))
	assert.Contains(t, err.Error(), "502")
}

func TestSignalingRespectsCancelledContext(t *testing.T) {
	client := newTestSignaler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"key":"abc123"}`))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.FetchCredential(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
