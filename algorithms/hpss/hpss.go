// Package hpss separates a spectrogram into harmonic and percussive
// components via directional median filtering.
//
// Reference: Fitzgerald, D. (2010). "Harmonic/percussive separation using
// median filtering", DAFx-10.
package hpss

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/spectrail/spectrail/algorithms/common"
	"github.com/spectrail/spectrail/algorithms/spectral"
	"github.com/spectrail/spectrail/logging"
)

// maskEps keeps the soft-mask denominator away from zero on silent bins
const maskEps = 1e-12

// MaskMode selects how the two median estimates are turned into gains
type MaskMode string

const (
	// SoftMask derives continuous per-bin gains that sum to 1
	SoftMask MaskMode = "soft"
	// HardMask assigns each bin entirely to the larger estimate
	HardMask MaskMode = "hard"
)

// Params configures a separation
type Params struct {
	// HarmonicLength is the median window along the time axis (frames)
	HarmonicLength int `json:"harmonic_length"`
	// PercussiveLength is the median window along the frequency axis (bins)
	PercussiveLength int      `json:"percussive_length"`
	Mask             MaskMode `json:"mask"`
}

// DefaultParams returns the separation defaults
func DefaultParams() Params {
	return Params{
		HarmonicLength:   17,
		PercussiveLength: 17,
		Mask:             SoftMask,
	}
}

// Result holds the two separated magnitude spectrograms. Both share the
// input's frame/bin geometry; with soft masking their sum reconstructs the
// input magnitudes.
type Result struct {
	Harmonic   *spectral.Spectrogram `json:"harmonic"`
	Percussive *spectral.Spectrogram `json:"percussive"`
}

// Separator performs harmonic/percussive separation on the CPU
type Separator struct {
	logger logging.Logger
}

// NewSeparator creates a new separator
func NewSeparator() *Separator {
	return &Separator{
		logger: logging.WithFields(logging.Fields{
			"component": "hpss",
		}),
	}
}

// Separate median-filters the magnitudes along time (harmonic estimate) and
// along frequency (percussive estimate), then applies the configured mask.
// Median windows are truncated at matrix edges; the GPU path uses the same
// boundary rule.
func (s *Separator) Separate(spec *spectral.Spectrogram, params Params) (*Result, error) {
	if spec == nil {
		return nil, fmt.Errorf("nil spectrogram")
	}
	if params.HarmonicLength <= 0 || params.PercussiveLength <= 0 {
		return nil, fmt.Errorf("median filter lengths must be positive, got %d and %d",
			params.HarmonicLength, params.PercussiveLength)
	}
	switch params.Mask {
	case SoftMask, HardMask:
	default:
		return nil, fmt.Errorf("unknown mask mode %q", params.Mask)
	}

	s.logger.Debug("separating spectrogram", logging.Fields{
		"frames":            spec.Frames,
		"bins":              spec.Bins,
		"harmonic_length":   params.HarmonicLength,
		"percussive_length": params.PercussiveLength,
		"mask":              string(params.Mask),
	})

	harmonicMedian := MedianFilterTime(spec.Magnitudes, params.HarmonicLength)
	percussiveMedian := MedianFilterFrequency(spec.Magnitudes, params.PercussiveLength)

	harmonic := emptyLike(spec)
	percussive := emptyLike(spec)

	for t := 0; t < spec.Frames; t++ {
		for k := 0; k < spec.Bins; k++ {
			mag := spec.Magnitudes[t][k]
			h := harmonicMedian[t][k]
			p := percussiveMedian[t][k]

			var hGain float64
			if params.Mask == SoftMask {
				hGain = h / (h + p + maskEps)
			} else if h >= p {
				hGain = 1.0
			}

			harmonic.Magnitudes[t][k] = hGain * mag
			percussive.Magnitudes[t][k] = (1.0 - hGain) * mag
		}
	}

	return &Result{Harmonic: harmonic, Percussive: percussive}, nil
}

// MedianFilterTime median-filters each frequency bin's trajectory across
// frames. Windows are centered and truncated at the first/last frames.
func MedianFilterTime(magnitudes [][]float64, length int) [][]float64 {
	frames := len(magnitudes)
	if frames == 0 {
		return [][]float64{}
	}
	bins := len(magnitudes[0])

	out := make([][]float64, frames)
	for t := range out {
		out[t] = make([]float64, bins)
	}

	half := length / 2

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for k := 0; k < bins; k++ {
		k := k
		g.Go(func() error {
			scratch := make([]float64, 0, length)
			for t := 0; t < frames; t++ {
				lo := max(t-half, 0)
				hi := min(t+half+1, frames)

				scratch = scratch[:0]
				for i := lo; i < hi; i++ {
					scratch = append(scratch, magnitudes[i][k])
				}
				out[t][k] = common.MedianInPlace(scratch)
			}
			return nil
		})
	}
	// Workers never return errors; Wait is for completion only.
	_ = g.Wait()

	return out
}

// MedianFilterFrequency median-filters each frame's spectrum across bins,
// with the same centered, edge-truncated windows.
func MedianFilterFrequency(magnitudes [][]float64, length int) [][]float64 {
	frames := len(magnitudes)
	if frames == 0 {
		return [][]float64{}
	}
	bins := len(magnitudes[0])

	out := make([][]float64, frames)
	for t := range out {
		out[t] = make([]float64, bins)
	}

	half := length / 2

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for t := 0; t < frames; t++ {
		t := t
		g.Go(func() error {
			scratch := make([]float64, 0, length)
			for k := 0; k < bins; k++ {
				lo := max(k-half, 0)
				hi := min(k+half+1, bins)

				scratch = scratch[:0]
				scratch = append(scratch, magnitudes[t][lo:hi]...)
				out[t][k] = common.MedianInPlace(scratch)
			}
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// emptyLike allocates a zeroed magnitude spectrogram with spec's geometry
func emptyLike(spec *spectral.Spectrogram) *spectral.Spectrogram {
	mags := make([][]float64, spec.Frames)
	for t := range mags {
		mags[t] = make([]float64, spec.Bins)
	}
	return &spectral.Spectrogram{
		Magnitudes: mags,
		Frames:     spec.Frames,
		Bins:       spec.Bins,
		FFTSize:    spec.FFTSize,
		HopSize:    spec.HopSize,
		SampleRate: spec.SampleRate,
	}
}
