package aura

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticsLogAppendAndTail(t *testing.T) {
	l := NewDiagnosticsLog()
	for i := 0; i < 5; i++ {
		l.Appendf("entry %d", i)
	}
	assert.Equal(t, 5, l.Len())

	tail := l.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, "entry 3", tail[0].Message)
	assert.Equal(t, "entry 4", tail[1].Message)
	assert.False(t, tail[0].Timestamp.IsZero())
}

func TestDiagnosticsLogTailBounds(t *testing.T) {
	l := NewDiagnosticsLog()
	l.Append("only")

	assert.Nil(t, l.Tail(0))
	assert.Nil(t, l.Tail(-1))
	assert.Len(t, l.Tail(10), 1)
}

func TestDiagnosticsLogContains(t *testing.T) {
	l := NewDiagnosticsLog()
	l.Append(fmt.Sprintf("error: %s", `{"error":"invalid_token"}`))

	assert.True(t, l.Contains("invalid_token"))
	assert.False(t, l.Contains("missing"))
}
