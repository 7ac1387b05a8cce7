package agents

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	aura "github.com/shahryaralam688/AuraAI"
	"github.com/shahryaralam688/AuraAI/shared"
	"github.com/shahryaralam688/AuraAI/tools"
)

const micFrameDuration = 20 * time.Millisecond

// VoiceAgent wires a real microphone, speakers, and terminal output around
// the core session for interactive use.
type VoiceAgent struct {
	logger  shared.LoggerAdapter
	printer *shared.Printer
	session *aura.Session

	mu       sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
}

func (a *VoiceAgent) Spawn(
	ctx context.Context,
	logger shared.LoggerAdapter,
	cfg *aura.Config,
	printer *shared.Printer,
) (<-chan struct{}, error) {
	if logger == nil {
		return nil, shared.ErrNoLogger
	}
	if cfg == nil {
		return nil, shared.ErrNoConfig
	}
	if printer == nil {
		return nil, errors.New("no printer provided")
	}
	a.logger = logger
	a.printer = printer
	a.done = make(chan struct{})
	a.println("🤖 Spawning voice agent...\n", 0)

	engine, err := aura.NewWebRTCEngine(logger)
	if err != nil {
		return nil, fmt.Errorf("creating media engine: %w", err)
	}
	audio := aura.NewDeviceAudioSession(logger)
	signaler, err := aura.NewSignalingClient(logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating signaling client: %w", err)
	}

	session, err := aura.NewSession(ctx, logger, cfg, engine, audio, signaler, cfg.Sink(logger))
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	a.session = session

	if err := session.RegisterStateObserver(func(from, to aura.SessionState) {
		a.println(fmt.Sprintf("🔄 %s → %s", from, to), 0)
		if to == aura.StateDisconnected {
			a.finish()
		}
	}); err != nil {
		return nil, err
	}
	if err := session.RegisterEventObserver(a.printTranscript); err != nil {
		return nil, err
	}

	a.println("🔈 Setting up playback...", 0)
	err = engine.RegisterTrackRemoteHandler(func(track *webrtc.TrackRemote) {
		a.logger.Info("received remote track",
			zap.String("kind", track.Kind().String()),
			zap.String("codec", track.Codec().MimeType),
		)
		tools.PlayAssistantAudio(ctx, a.logger, track, 100)
	})
	if err != nil {
		return nil, err
	}

	a.println("🎤 Setting up microphone uplink...", 0)
	err = engine.RegisterTrackLocalHandler(func(track *webrtc.TrackLocalStaticSample) {
		mic := audio.MicTrack()
		if mic == nil {
			a.logger.Warn("no capture track available for uplink")
			return
		}
		tools.PumpMicrophone(ctx, a.logger, track, mic, micFrameDuration)
	})
	if err != nil {
		return nil, err
	}

	if err := session.Start(); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	a.println("📡 Connecting...\n", 0)

	go func() {
		<-ctx.Done()
		a.finish()
	}()
	return a.done, nil
}

func (a *VoiceAgent) printTranscript(event map[string]any) {
	t, _ := event["type"].(string)
	switch t {
	case "response.output_audio_transcript.delta":
		if delta, ok := event["delta"].(string); ok {
			a.print(delta, 1)
		}
	case "response.output_audio_transcript.done":
		a.println("", 0)
	case "conversation.item.input_audio_transcription.completed":
		if transcript, ok := event["transcript"].(string); ok {
			a.println("🗣  "+transcript, 0)
		}
	case "error":
		a.println(fmt.Sprintf("⚠️  remote error: %v", event), 0)
	}
}

func (a *VoiceAgent) print(s string, ind int) {
	if err := a.printer.Write(s, ind); err != nil {
		a.logger.Error("writing to printer", err)
	}
}

func (a *VoiceAgent) println(s string, ind int) {
	if err := a.printer.Writeln(s, ind); err != nil {
		a.logger.Error("writing to printer", err)
	}
}

func (a *VoiceAgent) finish() {
	a.doneOnce.Do(func() { close(a.done) })
}

func (a *VoiceAgent) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

func (a *VoiceAgent) Close() error {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()
	if session != nil {
		if err := session.Stop(); err != nil {
			return fmt.Errorf("stopping session: %w", err)
		}
	}
	a.finish()
	return nil
}
