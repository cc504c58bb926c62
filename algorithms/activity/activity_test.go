package activity

import (
	"math"
	"testing"

	"github.com/spectrail/spectrail/algorithms/spectral"
)

const testSampleRate = 16000

func generateSine(freq float64, sampleRate, length int) []float64 {
	signal := make([]float64, length)
	for i := range signal {
		signal[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return signal
}

// toneWithGap builds a 2 s clip: tone in [0, 0.5) s and [1.5, 2) s,
// digital silence in between.
func toneWithGap(sampleRate int) []float64 {
	length := 2 * sampleRate
	signal := generateSine(440, sampleRate, length)
	for i := sampleRate / 2; i < 3*sampleRate/2; i++ {
		signal[i] = 0
	}
	return signal
}

func computeSpectrogram(t *testing.T, samples []float64) *spectral.Spectrogram {
	t.Helper()

	spec, err := spectral.NewSTFT().Compute(samples, testSampleRate, spectral.DefaultSTFTParams())
	if err != nil {
		t.Fatalf("STFT failed: %v", err)
	}
	return spec
}

func TestSilenceIsFullyInactive(t *testing.T) {
	spec := computeSpectrogram(t, make([]float64, testSampleRate))

	signal, err := NewDetector().ComputeFromSpectrogram(spec)
	if err != nil {
		t.Fatalf("ComputeFromSpectrogram failed: %v", err)
	}

	if signal.Diagnostics.ActiveFraction != 0 {
		t.Errorf("expected active fraction 0 on silence, got %f", signal.Diagnostics.ActiveFraction)
	}
	for i, active := range signal.IsActive {
		if active {
			t.Fatalf("frame %d unexpectedly active on silence", i)
		}
	}
	for i, level := range signal.Level {
		if level >= 0.1 {
			t.Errorf("frame %d level %f on silence, expected < 0.1", i, level)
		}
	}
}

func TestToneWithGap(t *testing.T) {
	spec := computeSpectrogram(t, toneWithGap(testSampleRate))

	params := DefaultParams()
	params.HangoverMs = 100
	detector, err := NewDetectorWithParams(params)
	if err != nil {
		t.Fatalf("NewDetectorWithParams failed: %v", err)
	}

	signal, err := detector.ComputeFromSpectrogram(spec)
	if err != nil {
		t.Fatalf("ComputeFromSpectrogram failed: %v", err)
	}

	countIn := func(from, to float64, want bool) (matching, total int) {
		for i, tm := range signal.Times {
			if tm < from || tm > to {
				continue
			}
			total++
			if signal.IsActive[i] == want {
				matching++
			}
		}
		return matching, total
	}

	active, total := countIn(0.1, 0.4, true)
	if total == 0 || float64(active)/float64(total) <= 0.5 {
		t.Errorf("tone region: %d/%d frames active, expected > 50%%", active, total)
	}

	inactive, total := countIn(0.7, 1.3, false)
	if total == 0 || float64(inactive)/float64(total) <= 0.8 {
		t.Errorf("gap region: %d/%d frames inactive, expected > 80%%", inactive, total)
	}
}

func TestHangoverMonotonicity(t *testing.T) {
	spec := computeSpectrogram(t, toneWithGap(testSampleRate))

	var previous *Signal
	for _, hangover := range []float64{0, 100, 300} {
		params := DefaultParams()
		params.HangoverMs = hangover
		detector, err := NewDetectorWithParams(params)
		if err != nil {
			t.Fatalf("NewDetectorWithParams(%g) failed: %v", hangover, err)
		}

		signal, err := detector.ComputeFromSpectrogram(spec)
		if err != nil {
			t.Fatalf("ComputeFromSpectrogram failed: %v", err)
		}

		if previous != nil {
			if signal.Diagnostics.ActiveFrames < previous.Diagnostics.ActiveFrames {
				t.Errorf("hangover %g ms: active frames dropped from %d to %d",
					hangover, previous.Diagnostics.ActiveFrames, signal.Diagnostics.ActiveFrames)
			}
			for i := range signal.IsActive {
				if previous.IsActive[i] && !signal.IsActive[i] {
					t.Fatalf("frame %d active at shorter hangover but inactive at %g ms", i, hangover)
				}
			}
		}
		previous = signal
	}
}

func TestComputeFromMelMatchesSilence(t *testing.T) {
	spec := computeSpectrogram(t, make([]float64, testSampleRate))

	mel, err := spectral.NewMelProjector().Project(spec, spectral.DefaultMelParams())
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}

	signal, err := NewDetector().ComputeFromMel(mel)
	if err != nil {
		t.Fatalf("ComputeFromMel failed: %v", err)
	}
	if signal.Diagnostics.ActiveFraction != 0 {
		t.Errorf("expected active fraction 0 on silence, got %f", signal.Diagnostics.ActiveFraction)
	}
}

func TestInterpolateClampsEdges(t *testing.T) {
	signal := &Signal{
		Times:    []float64{1.0, 2.0, 3.0},
		Level:    []float64{0.2, 0.6, 1.0},
		IsActive: []bool{false, true, true},
		Suppress: []bool{false, false, false},
	}

	out, err := Interpolate(signal, []float64{0.0, 1.5, 2.5, 10.0})
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}

	wantLevel := []float64{0.2, 0.4, 0.8, 1.0}
	for i, want := range wantLevel {
		if math.Abs(out.Level[i]-want) > 1e-12 {
			t.Errorf("level[%d] = %f, want %f", i, out.Level[i], want)
		}
	}

	wantActive := []bool{false, false, true, true}
	for i, want := range wantActive {
		if out.IsActive[i] != want {
			t.Errorf("isActive[%d] = %v, want %v", i, out.IsActive[i], want)
		}
	}
}

func TestApplyGating(t *testing.T) {
	signal := &Signal{
		Times:    []float64{0, 1, 2, 3},
		Level:    []float64{0, 1, 1, 1},
		IsActive: []bool{false, true, true, true},
		Suppress: []bool{false, false, true, false},
	}
	values := []float64{5, 6, 7, 8}

	out, err := ApplyGating(values, signal, GatingOptions{})
	if err != nil {
		t.Fatalf("ApplyGating failed: %v", err)
	}

	want := []float64{0, 6, 0, 8}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("gated[%d] = %f, want %f", i, out[i], want[i])
		}
	}
	if values[0] != 5 {
		t.Error("ApplyGating without InPlace mutated input")
	}

	if _, err := ApplyGating([]float64{1, 2}, signal, GatingOptions{}); err == nil {
		t.Error("expected error for mismatched lengths")
	}
}

func TestMarkSuppressed(t *testing.T) {
	signal := &Signal{
		Times:    []float64{0, 0.5, 1.0, 1.5},
		Level:    make([]float64, 4),
		IsActive: make([]bool, 4),
		Suppress: make([]bool, 4),
	}

	MarkSuppressed(signal, 0.4, 1.1)

	want := []bool{false, true, true, false}
	for i := range want {
		if signal.Suppress[i] != want[i] {
			t.Errorf("suppress[%d] = %v, want %v", i, signal.Suppress[i], want[i])
		}
	}
}

func TestDetectorParamValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"percentile too low", func(p *Params) { p.NoiseFloorPercentile = 0 }},
		{"percentile too high", func(p *Params) { p.NoiseFloorPercentile = 1 }},
		{"exit margin below 1", func(p *Params) { p.ExitMargin = 0.5 }},
		{"enter below exit", func(p *Params) { p.EnterMargin = 2; p.ExitMargin = 3 }},
		{"negative hangover", func(p *Params) { p.HangoverMs = -1 }},
		{"zero level range", func(p *Params) { p.LevelRangeDB = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			tt.modify(&params)
			if _, err := NewDetectorWithParams(params); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
