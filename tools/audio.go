package tools

import (
	"context"
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/hraban/opus"
	"github.com/pion/mediadevices"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/zap"

	"github.com/shahryaralam688/AuraAI/shared"
)

// PlaybackBuffer is a bounded PCM ring shared between the RTP reader and the
// audio player. Writes past capacity drop the oldest samples.
type PlaybackBuffer struct {
	buffer []byte
	mu     sync.Mutex
	cond   *sync.Cond
	size   int
	cap    int
}

func NewPlaybackBuffer(fixedCap int) *PlaybackBuffer {
	b := &PlaybackBuffer{
		buffer: make([]byte, 0, fixedCap),
		cap:    fixedCap,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *PlaybackBuffer) Write(data []byte) (dropped int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size+len(data) > b.cap {
		drop := b.size + len(data) - b.cap
		b.buffer = b.buffer[drop:]
		b.size -= drop
		dropped = drop
	}
	b.buffer = append(b.buffer, data...)
	b.size += len(data)
	b.cond.Signal()
	return dropped
}

func (b *PlaybackBuffer) Read(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.size == 0 {
		b.cond.Wait()
	}
	n = copy(p, b.buffer)
	b.buffer = b.buffer[n:]
	b.size -= n
	return n, nil
}

// PumpMicrophone reads encoded frames from the capture track and feeds them
// into the uplink track until ctx is cancelled.
func PumpMicrophone(ctx context.Context, logger shared.LoggerAdapter, track *webrtc.TrackLocalStaticSample, micTrack mediadevices.Track, frameDuration time.Duration) {
	reader, err := micTrack.NewEncodedReader(track.Codec().MimeType)
	if err != nil {
		logger.Error("creating capture track reader", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		buf, release, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				release()
				return
			}
			logger.Error("reading from capture track", err)
			release()
			continue
		}
		if buf.Samples == 0 {
			release()
			continue
		}
		err = track.WriteSample(media.Sample{
			Data:     buf.Data[:],
			Duration: frameDuration,
		})
		release()
		if err != nil {
			logger.Error("writing sample to uplink track", err)
			continue
		}
	}
}

// PlayAssistantAudio decodes the downlink Opus track to PCM and plays it on
// the default output device.
func PlayAssistantAudio(ctx context.Context, logger shared.LoggerAdapter, track *webrtc.TrackRemote, bufferMs int) {
	var (
		codec      = track.Codec()
		sampleRate = int(codec.ClockRate)
		channels   = int(codec.Channels)
	)
	logger.Info("playing assistant audio",
		zap.String("codec", codec.MimeType),
		zap.Int("sampleRate", sampleRate),
		zap.Int("channels", channels),
	)
	decoder, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		logger.Error("creating Opus decoder", err)
		return
	}

	otoCtx, ready, err := oto.NewContext(
		&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   time.Duration(bufferMs) * time.Millisecond,
		},
	)
	if err != nil {
		logger.Error("creating audio output context", err)
		return
	}
	// Hold a few seconds of decoded PCM between the network and the player.
	playback := NewPlaybackBuffer(3 * sampleRate * channels * 2)
	pcm := make([]int16, FrameSamples(time.Duration(bufferMs)*time.Millisecond, sampleRate, channels))

	<-ready
	player := otoCtx.NewPlayer(playback)
	player.Play()
	defer func() { _ = player.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			rtp, _, err := track.ReadRTP()
			if err != nil {
				if err != io.EOF {
					logger.Error("reading RTP packet", err)
				}
				return
			}
			if len(rtp.Payload) == 0 {
				continue
			}
			n, err := decoder.Decode(rtp.Payload, pcm)
			if err != nil {
				logger.Error("decoding Opus frame", err)
				continue
			}
			pcmSlice := pcm[:n*channels]
			pcmBytes := make([]byte, len(pcmSlice)*2)
			for i := range len(pcmSlice) {
				binary.LittleEndian.PutUint16(pcmBytes[i*2:], uint16(pcmSlice[i]))
			}
			if dropped := playback.Write(pcmBytes); dropped > 0 {
				logger.Warn("playback buffer dropped data", zap.Int("droppedBytes", dropped))
			}
		}
	}
}
