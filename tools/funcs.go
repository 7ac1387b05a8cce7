package tools

import "time"

// FrameSamples returns the number of PCM samples in one frame of the given
// duration across all channels.
func FrameSamples(duration time.Duration, rate, channels int) int {
	return int(duration.Seconds() * float64(channels) * float64(rate))
}

// FrameBytes returns the byte size of one signed 16-bit PCM frame.
func FrameBytes(duration time.Duration, rate, channels int) int {
	return FrameSamples(duration, rate, channels) * 2
}
