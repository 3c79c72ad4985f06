// Package audio decodes narration payloads and coordinates playback. The
// speech synthesizer returns raw PCM, 24kHz mono signed 16-bit little
// endian, as a base64 string.
package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// SampleRate is the fixed narration sample rate in Hz.
const SampleRate = 24000

// ErrOddPayload is returned when the decoded payload is not a whole number
// of 16-bit samples.
var ErrOddPayload = errors.New("pcm payload has an odd byte count")

// Clip is decoded narration audio: mono float32 samples in [-1, 1).
type Clip struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// DecodePCM converts a base64 PCM payload into a playable clip.
func DecodePCM(b64 string) (*Clip, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pcm payload: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, ErrOddPayload
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		samples[i] = float32(s) / 32768.0
	}
	return &Clip{
		Samples:    samples,
		SampleRate: SampleRate,
	}, nil
}
