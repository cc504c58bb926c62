package feature

import "fmt"

// AudioBuffer is a read-only view of decoded audio handed to the engine.
// Samples holds one slice per channel, all the same length. The engine
// never mutates it.
type AudioBuffer struct {
	SampleRate int         `json:"sample_rate"`
	Channels   int         `json:"channels"`
	Samples    [][]float64 `json:"samples"`
}

// Validate checks the buffer's shape before any analysis runs
func (b *AudioBuffer) Validate() error {
	if b == nil {
		return fmt.Errorf("nil audio buffer")
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", b.SampleRate)
	}
	if b.Channels <= 0 {
		return fmt.Errorf("channel count must be positive, got %d", b.Channels)
	}
	if len(b.Samples) != b.Channels {
		return fmt.Errorf("have %d sample arrays for %d channels", len(b.Samples), b.Channels)
	}
	for ch := 1; ch < b.Channels; ch++ {
		if len(b.Samples[ch]) != len(b.Samples[0]) {
			return fmt.Errorf("channel %d has %d samples, channel 0 has %d",
				ch, len(b.Samples[ch]), len(b.Samples[0]))
		}
	}
	return nil
}

// Length returns the per-channel sample count
func (b *AudioBuffer) Length() int {
	if len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}

// Duration returns the buffer length in seconds
func (b *AudioBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Length()) / float64(b.SampleRate)
}

// Mono returns a single-channel view: channel 0 itself for mono input,
// an averaged mixdown otherwise. Callers must not write through the
// mono-input fast path.
func (b *AudioBuffer) Mono() []float64 {
	if b.Channels == 1 {
		return b.Samples[0]
	}

	mix := make([]float64, b.Length())
	for _, channel := range b.Samples {
		for i, v := range channel {
			mix[i] += v
		}
	}
	scale := 1.0 / float64(b.Channels)
	for i := range mix {
		mix[i] *= scale
	}
	return mix
}
