package aura

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelaySequence(t *testing.T) {
	p := DefaultBackoff()

	tests := []struct {
		name     string
		attempt  int
		expected time.Duration
	}{
		{name: "first retry", attempt: 1, expected: 2 * time.Second},
		{name: "second retry", attempt: 2, expected: 4 * time.Second},
		{name: "third retry", attempt: 3, expected: 8 * time.Second},
		{name: "fourth retry", attempt: 4, expected: 16 * time.Second},
		{name: "capped", attempt: 5, expected: 30 * time.Second},
		{name: "stays capped", attempt: 10, expected: 30 * time.Second},
		{name: "clamped to first", attempt: 0, expected: 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Delay(tt.attempt))
		})
	}
}

func TestBackoffExhausted(t *testing.T) {
	p := DefaultBackoff()
	assert.False(t, p.Exhausted(0))
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(4))
}

func TestReconnectStateCancelTimer(t *testing.T) {
	var r reconnectState
	r.cancelTimer() // nil timer is fine

	fired := make(chan struct{})
	r.timer = time.AfterFunc(10*time.Millisecond, func() { close(fired) })
	r.cancelTimer()
	assert.Nil(t, r.timer)

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(30 * time.Millisecond):
	}
}
