package spectral

import (
	"math"
	"testing"

	"github.com/spectrail/spectrail/algorithms/windowing"
)

func generateSine(freq float64, sampleRate, numSamples int) []float64 {
	out := make([]float64, numSamples)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestCompute_FrameCountAndShape(t *testing.T) {
	const sampleRate = 48000
	signal := make([]float64, sampleRate) // 1 s

	params := STFTParams{FFTSize: 2048, HopSize: 512, Window: windowing.Hann}
	spec, err := NewSTFT().Compute(signal, sampleRate, params)
	if err != nil {
		t.Fatal(err)
	}

	wantFrames := (sampleRate-2048)/512 + 1
	if spec.Frames != wantFrames {
		t.Errorf("frames: got %d, want %d", spec.Frames, wantFrames)
	}
	if spec.Bins != 2048/2+1 {
		t.Errorf("bins: got %d, want %d", spec.Bins, 2048/2+1)
	}
	if len(spec.Magnitudes) != spec.Frames {
		t.Fatalf("magnitude rows: got %d, want %d", len(spec.Magnitudes), spec.Frames)
	}
	for i, row := range spec.Magnitudes {
		if len(row) != spec.Bins {
			t.Fatalf("frame %d: got %d bins, want %d", i, len(row), spec.Bins)
		}
		for k, v := range row {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("frame %d bin %d: magnitude %g not finite non-negative", i, k, v)
			}
		}
	}
	if spec.Phases != nil {
		t.Error("phases computed without IncludePhase")
	}
}

func TestCompute_SignalShorterThanWindow(t *testing.T) {
	spec, err := NewSTFT().Compute(make([]float64, 1000), 48000, STFTParams{FFTSize: 2048, HopSize: 512})
	if err != nil {
		t.Fatal(err)
	}
	if spec.Frames != 0 {
		t.Errorf("frames for short signal: got %d, want 0", spec.Frames)
	}
}

func TestCompute_FrameCenterTimes(t *testing.T) {
	const sampleRate = 48000
	signal := make([]float64, sampleRate)
	spec, err := NewSTFT().Compute(signal, sampleRate, STFTParams{FFTSize: 2048, HopSize: 512})
	if err != nil {
		t.Fatal(err)
	}

	// Frame i is stamped at (i*hop + fftSize/2) / sampleRate.
	want0 := 1024.0 / 48000.0
	if math.Abs(spec.FrameTime(0)-want0) > 1e-12 {
		t.Errorf("FrameTime(0): got %g, want %g", spec.FrameTime(0), want0)
	}
	want7 := (7*512.0 + 1024.0) / 48000.0
	if math.Abs(spec.FrameTime(7)-want7) > 1e-12 {
		t.Errorf("FrameTime(7): got %g, want %g", spec.FrameTime(7), want7)
	}

	times := spec.Times()
	if len(times) != spec.Frames {
		t.Fatalf("times length: got %d, want %d", len(times), spec.Frames)
	}
}

func TestCompute_SinusoidPeakBin(t *testing.T) {
	const sampleRate = 48000
	const fftSize = 2048
	// Bin-centered frequency: bin 100 at 48 kHz / 2048.
	freq := 100.0 * float64(sampleRate) / float64(fftSize)
	signal := generateSine(freq, sampleRate, sampleRate)

	spec, err := NewSTFT().Compute(signal, sampleRate, STFTParams{FFTSize: fftSize, HopSize: 512, Window: windowing.Hann})
	if err != nil {
		t.Fatal(err)
	}

	mid := spec.Magnitudes[spec.Frames/2]
	peakBin := 0
	for k := range mid {
		if mid[k] > mid[peakBin] {
			peakBin = k
		}
	}
	if peakBin != 100 {
		t.Errorf("peak bin: got %d, want 100", peakBin)
	}
}

func TestCompute_PhaseRequested(t *testing.T) {
	signal := generateSine(440, 48000, 8192)
	spec, err := NewSTFT().Compute(signal, 48000, STFTParams{FFTSize: 1024, HopSize: 256, IncludePhase: true})
	if err != nil {
		t.Fatal(err)
	}
	if spec.Phases == nil || len(spec.Phases) != spec.Frames {
		t.Fatal("phases missing despite IncludePhase")
	}
	for i, row := range spec.Phases {
		if len(row) != spec.Bins {
			t.Fatalf("phase frame %d: got %d bins, want %d", i, len(row), spec.Bins)
		}
		for _, p := range row {
			if p < -math.Pi-1e-9 || p > math.Pi+1e-9 {
				t.Fatalf("phase %g outside [-pi, pi]", p)
			}
		}
	}
}

func TestCompute_BinFrequencies(t *testing.T) {
	spec, err := NewSTFT().Compute(make([]float64, 48000), 48000, STFTParams{FFTSize: 2048, HopSize: 512})
	if err != nil {
		t.Fatal(err)
	}
	freqs := spec.BinFrequencies()
	if len(freqs) != spec.Bins {
		t.Fatalf("frequency axis length: got %d, want %d", len(freqs), spec.Bins)
	}
	if freqs[0] != 0 {
		t.Errorf("DC bin: got %g, want 0", freqs[0])
	}
	if math.Abs(freqs[len(freqs)-1]-24000) > 1e-9 {
		t.Errorf("Nyquist bin: got %g, want 24000", freqs[len(freqs)-1])
	}
}

func TestCompute_InvalidParams(t *testing.T) {
	s := NewSTFT()
	signal := make([]float64, 4096)

	if _, err := s.Compute(signal, 0, STFTParams{FFTSize: 1024, HopSize: 256}); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if _, err := s.Compute(signal, 48000, STFTParams{FFTSize: 0, HopSize: 256}); err == nil {
		t.Error("expected error for zero fft size")
	}
	if _, err := s.Compute(signal, 48000, STFTParams{FFTSize: 1024, HopSize: 0}); err == nil {
		t.Error("expected error for zero hop size")
	}
	if _, err := s.Compute(signal, 48000, STFTParams{FFTSize: 1024, HopSize: 256, Window: "bogus"}); err == nil {
		t.Error("expected error for unknown window")
	}
}

func TestCompute_Deterministic(t *testing.T) {
	signal := generateSine(523.25, 44100, 44100)
	params := STFTParams{FFTSize: 2048, HopSize: 512, Window: windowing.Hann}

	a, err := NewSTFT().Compute(signal, 44100, params)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSTFT().Compute(signal, 44100, params)
	if err != nil {
		t.Fatal(err)
	}

	for i := range a.Magnitudes {
		for k := range a.Magnitudes[i] {
			if a.Magnitudes[i][k] != b.Magnitudes[i][k] {
				t.Fatalf("frame %d bin %d differs between runs", i, k)
			}
		}
	}
}
