package spectral

import (
	"math"
	"testing"
)

func TestHzMelRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 100, 440, 1000, 8000, 22050} {
		back := MelToHz(HzToMel(hz))
		if math.Abs(back-hz) > 1e-6*math.Max(hz, 1) {
			t.Errorf("round trip %g Hz: got %g", hz, back)
		}
	}
}

func TestFilterbank_ShapeAndNonNegativity(t *testing.T) {
	mp := NewMelProjector()
	bank, err := mp.Filterbank(64, 1025, 48000, 0, 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(bank) != 64 {
		t.Fatalf("rows: got %d, want 64", len(bank))
	}
	for m, row := range bank {
		if len(row) != 1025 {
			t.Fatalf("row %d: got %d bins, want 1025", m, len(row))
		}
		rowSum := 0.0
		for _, w := range row {
			if w < 0 {
				t.Fatalf("row %d has negative weight %g", m, w)
			}
			rowSum += w
		}
		if rowSum < 0 {
			t.Fatalf("row %d sum negative", m)
		}
	}
}

func TestFilterbank_Cached(t *testing.T) {
	mp := NewMelProjector()
	a, err := mp.Filterbank(64, 1025, 48000, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := mp.Filterbank(64, 1025, 48000, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if &a[0] != &b[0] {
		t.Error("identical configurations rebuilt the filterbank")
	}

	c, err := mp.Filterbank(32, 1025, 48000, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(c) != 32 {
		t.Errorf("second configuration rows: got %d, want 32", len(c))
	}
}

func TestFilterbank_InvalidParams(t *testing.T) {
	mp := NewMelProjector()
	if _, err := mp.Filterbank(0, 1025, 48000, 0, 0); err == nil {
		t.Error("expected error for zero mels")
	}
	if _, err := mp.Filterbank(64, 1, 48000, 0, 0); err == nil {
		t.Error("expected error for single bin")
	}
	if _, err := mp.Filterbank(64, 1025, 48000, 2000, 1000); err == nil {
		t.Error("expected error for inverted band")
	}
}

func TestProject_SilenceHitsLogFloor(t *testing.T) {
	spec, err := NewSTFT().Compute(make([]float64, 48000), 48000, DefaultSTFTParams())
	if err != nil {
		t.Fatal(err)
	}

	mel, err := NewMelProjector().Project(spec, DefaultMelParams())
	if err != nil {
		t.Fatal(err)
	}

	if mel.Frames != spec.Frames || mel.NMels != 64 {
		t.Fatalf("shape: got %dx%d, want %dx64", mel.Frames, mel.NMels, spec.Frames)
	}

	// All-zero magnitudes: every band sits exactly on log10(LogFloor).
	want := math.Log10(LogFloor)
	for t1, row := range mel.Values {
		for m, v := range row {
			if v != want {
				t.Fatalf("frame %d band %d: got %g, want %g", t1, m, v, want)
			}
		}
	}
}

func TestProject_ToneEnergyLocalized(t *testing.T) {
	const sampleRate = 48000
	signal := generateSine(440, sampleRate, sampleRate)

	spec, err := NewSTFT().Compute(signal, sampleRate, DefaultSTFTParams())
	if err != nil {
		t.Fatal(err)
	}
	mel, err := NewMelProjector().Project(spec, DefaultMelParams())
	if err != nil {
		t.Fatal(err)
	}

	// The peak band of an interior frame should map back near 440 Hz.
	row := mel.Values[mel.Frames/2]
	peakBand := 0
	for m := range row {
		if row[m] > row[peakBand] {
			peakBand = m
		}
	}

	// Band centers are equally spaced in mel between 0 and Nyquist.
	lowMel := HzToMel(0)
	highMel := HzToMel(float64(sampleRate) / 2)
	centerMel := lowMel + (highMel-lowMel)*float64(peakBand+1)/float64(mel.NMels+1)
	centerHz := MelToHz(centerMel)

	if centerHz < 300 || centerHz > 650 {
		t.Errorf("peak band %d maps to %.1f Hz, want near 440", peakBand, centerHz)
	}
}

func TestProject_TimesMatchSource(t *testing.T) {
	spec, err := NewSTFT().Compute(make([]float64, 48000), 48000, DefaultSTFTParams())
	if err != nil {
		t.Fatal(err)
	}
	mel, err := NewMelProjector().Project(spec, DefaultMelParams())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < mel.Frames; i += 13 {
		if mel.FrameTime(i) != spec.FrameTime(i) {
			t.Fatalf("frame %d: mel time %g != spectrogram time %g", i, mel.FrameTime(i), spec.FrameTime(i))
		}
	}
}
