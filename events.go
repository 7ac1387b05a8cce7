package aura

import (
	"time"

	"github.com/bytedance/sonic"
)

// EventKind names a lifecycle or telemetry event mirrored to the webhook sink.
type EventKind string

const (
	EventSessionStart           EventKind = "session_start"
	EventSessionStop            EventKind = "session_stop"
	EventMicPermissionRequested EventKind = "mic_permission_requested"
	EventMicPermissionDenied    EventKind = "mic_permission_denied"
	EventConnected              EventKind = "connected"
	EventError                  EventKind = "error"
	EventReconnectScheduled     EventKind = "reconnect_scheduled"
	EventICEStateChange         EventKind = "ice_state_change"
	EventAudioInterrupted       EventKind = "audio_interrupted"
	EventDataChannelState       EventKind = "datachannel_state"
	EventOAI                    EventKind = "oai_event"
	EventOAIBinary              EventKind = "oai_event_binary"
)

// Envelope is the wire format posted to the webhook sink for every event.
type Envelope struct {
	Event     EventKind      `json:"event"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
	State     string         `json:"state"`
}

func newEnvelope(kind EventKind, payload map[string]any, state SessionState) *Envelope {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Envelope{
		Event:     kind,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
		State:     string(state),
	}
}

func (e *Envelope) MarshalJSON() ([]byte, error) {
	type alias Envelope
	return sonic.Marshal((*alias)(e))
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	type alias Envelope
	return sonic.Unmarshal(data, (*alias)(e))
}
