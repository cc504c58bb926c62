package hpss

import (
	"math"
	"testing"

	"github.com/spectrail/spectrail/algorithms/spectral"
)

const sampleRate = 22050

func computeSpec(t *testing.T, signal []float64) *spectral.Spectrogram {
	t.Helper()
	spec, err := spectral.NewSTFT().Compute(signal, sampleRate, spectral.STFTParams{
		FFTSize: 1024,
		HopSize: 256,
	})
	if err != nil {
		t.Fatal(err)
	}
	return spec
}

func sustainedTone(seconds float64) []float64 {
	n := int(seconds * sampleRate)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * 440 * float64(i) / sampleRate)
	}
	return out
}

func impulseTrain(seconds float64, periodSamples int) []float64 {
	n := int(seconds * sampleRate)
	out := make([]float64, n)
	for i := 0; i < n; i += periodSamples {
		out[i] = 1.0
	}
	return out
}

// whiteNoise is a fixed-seed LCG so runs are reproducible
func whiteNoise(seconds float64) []float64 {
	n := int(seconds * sampleRate)
	out := make([]float64, n)
	state := uint64(0x9e3779b97f4a7c15)
	for i := range out {
		state = state*6364136223846793005 + 1442695040888963407
		out[i] = float64(state>>11)/float64(1<<53)*2 - 1
	}
	return out
}

func totalEnergy(spec *spectral.Spectrogram) float64 {
	sum := 0.0
	for _, row := range spec.Magnitudes {
		for _, v := range row {
			sum += v * v
		}
	}
	return sum
}

func TestSeparate_ShapesMatchInput(t *testing.T) {
	spec := computeSpec(t, whiteNoise(1))
	res, err := NewSeparator().Separate(spec, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	for _, out := range []*spectral.Spectrogram{res.Harmonic, res.Percussive} {
		if out.Frames != spec.Frames || out.Bins != spec.Bins {
			t.Fatalf("shape: got %dx%d, want %dx%d", out.Frames, out.Bins, spec.Frames, spec.Bins)
		}
		if out.FFTSize != spec.FFTSize || out.HopSize != spec.HopSize || out.SampleRate != spec.SampleRate {
			t.Fatal("geometry metadata not carried over")
		}
	}
}

func TestSeparate_SustainedToneIsHarmonic(t *testing.T) {
	spec := computeSpec(t, sustainedTone(2))
	res, err := NewSeparator().Separate(spec, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	h := totalEnergy(res.Harmonic)
	p := totalEnergy(res.Percussive)
	if h < 1.5*p {
		t.Errorf("sustained tone: harmonic %g not > 1.5x percussive %g", h, p)
	}
}

func TestSeparate_ImpulseTrainIsPercussive(t *testing.T) {
	spec := computeSpec(t, impulseTrain(2, sampleRate/4))
	res, err := NewSeparator().Separate(spec, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	h := totalEnergy(res.Harmonic)
	p := totalEnergy(res.Percussive)
	if p < 1.2*h {
		t.Errorf("impulse train: percussive %g not > 1.2x harmonic %g", p, h)
	}
}

func TestSeparate_WhiteNoiseLeansPercussive(t *testing.T) {
	spec := computeSpec(t, whiteNoise(2))
	res, err := NewSeparator().Separate(spec, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	h := totalEnergy(res.Harmonic)
	p := totalEnergy(res.Percussive)
	if p <= h {
		t.Errorf("white noise: percussive %g not greater than harmonic %g", p, h)
	}
}

func TestSeparate_SoftMaskReconstructs(t *testing.T) {
	spec := computeSpec(t, sustainedTone(1))
	res, err := NewSeparator().Separate(spec, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}

	for ti, row := range spec.Magnitudes {
		for k, mag := range row {
			sum := res.Harmonic.Magnitudes[ti][k] + res.Percussive.Magnitudes[ti][k]
			tol := 1e-9 * math.Max(mag, 1)
			if math.Abs(sum-mag) > tol {
				t.Fatalf("frame %d bin %d: %g + %g != %g", ti, k,
					res.Harmonic.Magnitudes[ti][k], res.Percussive.Magnitudes[ti][k], mag)
			}
		}
	}
}

func TestSeparate_HardMaskIsExclusive(t *testing.T) {
	spec := computeSpec(t, whiteNoise(1))
	params := DefaultParams()
	params.Mask = HardMask

	res, err := NewSeparator().Separate(spec, params)
	if err != nil {
		t.Fatal(err)
	}

	for ti, row := range spec.Magnitudes {
		for k, mag := range row {
			h := res.Harmonic.Magnitudes[ti][k]
			p := res.Percussive.Magnitudes[ti][k]
			if math.Min(h, p) != 0 {
				t.Fatalf("frame %d bin %d: hard mask split the bin (%g, %g)", ti, k, h, p)
			}
			if h+p != mag {
				t.Fatalf("frame %d bin %d: hard mask lost magnitude", ti, k)
			}
		}
	}
}

func TestSeparate_InvalidParams(t *testing.T) {
	spec := computeSpec(t, sustainedTone(0.5))
	s := NewSeparator()

	if _, err := s.Separate(nil, DefaultParams()); err == nil {
		t.Error("expected error for nil spectrogram")
	}

	p := DefaultParams()
	p.HarmonicLength = 0
	if _, err := s.Separate(spec, p); err == nil {
		t.Error("expected error for zero harmonic length")
	}

	p = DefaultParams()
	p.Mask = "fuzzy"
	if _, err := s.Separate(spec, p); err == nil {
		t.Error("expected error for unknown mask mode")
	}
}

func TestMedianFilterTime_ConstantInput(t *testing.T) {
	mags := make([][]float64, 10)
	for i := range mags {
		mags[i] = []float64{2, 2, 2}
	}
	out := MedianFilterTime(mags, 5)
	for ti, row := range out {
		for k, v := range row {
			if v != 2 {
				t.Fatalf("frame %d bin %d: got %g, want 2", ti, k, v)
			}
		}
	}
}

func TestMedianFilterFrequency_RemovesSpike(t *testing.T) {
	// A single spiky bin inside a flat spectrum disappears under the
	// frequency-direction median.
	mags := [][]float64{{1, 1, 1, 9, 1, 1, 1}}
	out := MedianFilterFrequency(mags, 5)
	if out[0][3] != 1 {
		t.Errorf("spike bin: got %g, want 1", out[0][3])
	}
}

func TestMedianFilter_EdgeTruncation(t *testing.T) {
	// Window of 5 at frame 0 covers frames 0..2 only; median of {0,1,2} is 1.
	mags := [][]float64{{0}, {1}, {2}, {3}, {4}}
	out := MedianFilterTime(mags, 5)
	if out[0][0] != 1 {
		t.Errorf("edge frame: got %g, want 1", out[0][0])
	}
	if out[4][0] != 3 {
		t.Errorf("tail frame: got %g, want 3", out[4][0])
	}
}
