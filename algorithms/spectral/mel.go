package spectral

import (
	"fmt"
	"math"
	"sync"

	"github.com/spectrail/spectrail/logging"
)

// LogFloor is the additive epsilon inside the log compression. It keeps the
// output finite for silent input and is part of the numeric contract shared
// with the GPU mel kernel.
const LogFloor = 1e-12

// MelParams configures a mel projection
type MelParams struct {
	NMels int     `json:"n_mels"`
	FMin  float64 `json:"f_min"`
	FMax  float64 `json:"f_max"` // 0 means Nyquist
}

// DefaultMelParams returns the projection defaults
func DefaultMelParams() MelParams {
	return MelParams{
		NMels: 64,
		FMin:  0.0,
		FMax:  0.0,
	}
}

// MelSpectrogram holds log-compressed mel-band energies per frame.
// Value object, never mutated after return.
type MelSpectrogram struct {
	Values     [][]float64 `json:"values"` // Frames x NMels, log10 domain
	Frames     int         `json:"frames"`
	NMels      int         `json:"n_mels"`
	FFTSize    int         `json:"fft_size"`
	HopSize    int         `json:"hop_size"`
	SampleRate int         `json:"sample_rate"`
}

// FrameTime returns the frame-center timestamp of frame i, matching the
// source spectrogram's convention.
func (m *MelSpectrogram) FrameTime(i int) float64 {
	return (float64(i*m.HopSize) + float64(m.FFTSize)/2.0) / float64(m.SampleRate)
}

// Times returns the frame-center timestamps for all frames
func (m *MelSpectrogram) Times() []float64 {
	times := make([]float64, m.Frames)
	for i := range times {
		times[i] = m.FrameTime(i)
	}
	return times
}

// HzToMel converts frequency in Hz to mel scale
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

type filterbankKey struct {
	nMels      int
	bins       int
	sampleRate int
	fMin       float64
	fMax       float64
}

// MelProjector projects spectrogram magnitudes onto a triangular mel
// filterbank with log compression. Filterbank matrices are cached per
// configuration; the cache is owned by the projector instance.
type MelProjector struct {
	mu     sync.Mutex
	banks  map[filterbankKey][][]float64
	logger logging.Logger
}

// NewMelProjector creates a new projector with an empty filterbank cache
func NewMelProjector() *MelProjector {
	return &MelProjector{
		banks: make(map[filterbankKey][][]float64),
		logger: logging.WithFields(logging.Fields{
			"component": "mel_projector",
		}),
	}
}

// Filterbank returns the nMels x bins triangular filter matrix for the
// given configuration, building it on first use. The returned matrix is
// shared: callers must not modify it.
func (mp *MelProjector) Filterbank(nMels, bins, sampleRate int, fMin, fMax float64) ([][]float64, error) {
	if nMels <= 0 {
		return nil, fmt.Errorf("nMels must be positive, got %d", nMels)
	}
	if bins <= 1 {
		return nil, fmt.Errorf("need at least 2 frequency bins, got %d", bins)
	}
	if fMax <= 0 {
		fMax = float64(sampleRate) / 2.0
	}
	if fMin < 0 || fMin >= fMax {
		return nil, fmt.Errorf("invalid mel band [%g, %g] Hz", fMin, fMax)
	}

	key := filterbankKey{nMels: nMels, bins: bins, sampleRate: sampleRate, fMin: fMin, fMax: fMax}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if bank, ok := mp.banks[key]; ok {
		return bank, nil
	}

	bank := buildMelFilterbank(nMels, bins, sampleRate, fMin, fMax)
	mp.banks[key] = bank
	return bank, nil
}

// buildMelFilterbank constructs triangular filters with equally spaced
// mel-scale center points mapped back onto FFT bin indices.
func buildMelFilterbank(nMels, bins, sampleRate int, fMin, fMax float64) [][]float64 {
	fftSize := (bins - 1) * 2

	lowMel := HzToMel(fMin)
	highMel := HzToMel(fMax)
	melStep := (highMel - lowMel) / float64(nMels+1)

	binPoints := make([]int, nMels+2)
	for i := range binPoints {
		hz := MelToHz(lowMel + float64(i)*melStep)
		bin := int(math.Floor((float64(fftSize)+1.0)*hz/float64(sampleRate) + 0.5))
		binPoints[i] = min(bin, bins-1)
	}

	bank := make([][]float64, nMels)
	for m := range bank {
		bank[m] = make([]float64, bins)

		leftBin := binPoints[m]
		centerBin := binPoints[m+1]
		rightBin := binPoints[m+2]

		for k := leftBin; k < centerBin && k < bins; k++ {
			if centerBin != leftBin {
				bank[m][k] = float64(k-leftBin) / float64(centerBin-leftBin)
			}
		}
		for k := centerBin; k < rightBin && k < bins; k++ {
			if rightBin != centerBin {
				bank[m][k] = float64(rightBin-k) / float64(rightBin-centerBin)
			}
		}
	}

	return bank
}

// Project computes out[t][m] = log10(LogFloor + sum_k mag[t][k]*filter[m][k])
// for every frame. The GPU mel kernel computes the identical formula; the
// two paths agree within floating-point summation-order tolerance.
func (mp *MelProjector) Project(spec *Spectrogram, params MelParams) (*MelSpectrogram, error) {
	if spec == nil {
		return nil, fmt.Errorf("nil spectrogram")
	}

	bank, err := mp.Filterbank(params.NMels, spec.Bins, spec.SampleRate, params.FMin, params.FMax)
	if err != nil {
		return nil, err
	}

	values := make([][]float64, spec.Frames)
	for t := range values {
		frame := spec.Magnitudes[t]
		values[t] = make([]float64, params.NMels)
		for m, filter := range bank {
			sum := 0.0
			for k, w := range filter {
				if w != 0 {
					sum += frame[k] * w
				}
			}
			values[t][m] = math.Log10(LogFloor + sum)
		}
	}

	return &MelSpectrogram{
		Values:     values,
		Frames:     spec.Frames,
		NMels:      params.NMels,
		FFTSize:    spec.FFTSize,
		HopSize:    spec.HopSize,
		SampleRate: spec.SampleRate,
	}, nil
}
