package shared

import "errors"

var (
	ErrNoLogger            = errors.New("no logger provided")
	ErrNoConfig            = errors.New("no config provided")
	ErrNoMediaEngine       = errors.New("no media engine provided")
	ErrNoAudioSession      = errors.New("no audio session provided")
	ErrNoSignaler          = errors.New("no signaler provided")
	ErrSessionActive       = errors.New("session already connecting or connected")
	ErrSessionNotStartable = errors.New("session not in a startable state")
	ErrObserverAlreadySet  = errors.New("observer already set")
	ErrMetricsAlreadySet   = errors.New("metrics already registered")
	ErrNoBackendURL        = errors.New("no backend URL provided")
	ErrChannelClosed       = errors.New("data channel is not open")
)
