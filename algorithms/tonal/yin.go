// Package tonal estimates fundamental frequency from time-domain samples.
//
// Reference: de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental
// frequency estimator for speech and music".
package tonal

import (
	"fmt"
	"math"

	"github.com/spectrail/spectrail/algorithms/common"
	"github.com/spectrail/spectrail/logging"
)

// silenceRMS is the frame-RMS floor below which a frame is treated as
// silent. It also guards the cumulative-mean normalization against a zero
// running sum.
const silenceRMS = 1e-6

// InactiveBehavior controls what gated-out frames carry
type InactiveBehavior string

const (
	// InactiveZero zeroes f0 and confidence on inactive frames
	InactiveZero InactiveBehavior = "zero"
	// InactiveHold repeats the last active values on inactive frames
	InactiveHold InactiveBehavior = "hold"
)

// YinParams configures the tracker
type YinParams struct {
	SampleRate int     `json:"sample_rate"`
	WindowSize int     `json:"window_size"`
	HopSize    int     `json:"hop_size"`
	Threshold  float64 `json:"threshold"`
	FMin       float64 `json:"f_min"`
	FMax       float64 `json:"f_max"`
}

// DefaultYinParams returns the tracker defaults for the given sample rate
func DefaultYinParams(sampleRate int) YinParams {
	return YinParams{
		SampleRate: sampleRate,
		WindowSize: 2048,
		HopSize:    512,
		Threshold:  0.15,
		FMin:       50.0,
		FMax:       1000.0,
	}
}

// PitchResult holds per-frame pitch estimates on a shared time axis.
// Unvoiced and silent frames carry F0 = 0. Value object.
type PitchResult struct {
	Times      []float64 `json:"times"`
	F0         []float64 `json:"f0"`         // Hz
	Confidence []float64 `json:"confidence"` // 0..1 voicing confidence
}

// YinTracker estimates per-frame fundamental frequency directly from raw
// samples. Each frame is computed independently; identical input produces
// bit-identical output. An instance reuses internal scratch buffers, so a
// single instance must not be shared across goroutines.
type YinTracker struct {
	params YinParams
	logger logging.Logger

	tauMin int
	tauMax int

	diff  []float64
	cmndf []float64
}

// NewYinTracker creates a tracker with default parameters
func NewYinTracker(sampleRate int) (*YinTracker, error) {
	return NewYinTrackerWithParams(DefaultYinParams(sampleRate))
}

// NewYinTrackerWithParams creates a tracker with custom parameters
func NewYinTrackerWithParams(params YinParams) (*YinTracker, error) {
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", params.SampleRate)
	}
	if params.WindowSize <= 0 || params.HopSize <= 0 {
		return nil, fmt.Errorf("window and hop must be positive, got %d and %d",
			params.WindowSize, params.HopSize)
	}
	if params.FMin <= 0 || params.FMax <= params.FMin {
		return nil, fmt.Errorf("invalid search band [%g, %g] Hz", params.FMin, params.FMax)
	}
	if params.Threshold <= 0 || params.Threshold >= 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1), got %g", params.Threshold)
	}

	sr := float64(params.SampleRate)
	tauMin := max(2, int(math.Floor(sr/params.FMax)))
	tauMax := min(params.WindowSize/2, int(math.Ceil(sr/params.FMin)))
	if tauMax <= tauMin+1 {
		return nil, fmt.Errorf("search band [%g, %g] Hz too narrow for window %d at %d Hz",
			params.FMin, params.FMax, params.WindowSize, params.SampleRate)
	}

	return &YinTracker{
		params: params,
		tauMin: tauMin,
		tauMax: tauMax,
		diff:   make([]float64, tauMax+1),
		cmndf:  make([]float64, tauMax+1),
		logger: logging.WithFields(logging.Fields{
			"component":   "yin",
			"sample_rate": params.SampleRate,
		}),
	}, nil
}

// Params returns the tracker configuration
func (y *YinTracker) Params() YinParams {
	return y.params
}

// Track estimates f0 and voicing confidence for every analysis frame of
// the signal. Frame i covers samples [i*hop, i*hop+window) and is stamped
// at its center.
func (y *YinTracker) Track(samples []float64) (*PitchResult, error) {
	if samples == nil {
		return nil, fmt.Errorf("nil sample buffer")
	}

	w := y.params.WindowSize
	hop := y.params.HopSize

	numFrames := (len(samples)-w)/hop + 1
	numFrames = max(numFrames, 0)

	result := &PitchResult{
		Times:      make([]float64, numFrames),
		F0:         make([]float64, numFrames),
		Confidence: make([]float64, numFrames),
	}

	for i := 0; i < numFrames; i++ {
		start := i * hop
		frame := samples[start : start+w]

		result.Times[i] = (float64(start) + float64(w)/2.0) / float64(y.params.SampleRate)
		result.F0[i], result.Confidence[i] = y.trackFrame(frame)
	}

	return result, nil
}

// trackFrame runs the YIN recurrence on one window of samples
func (y *YinTracker) trackFrame(frame []float64) (f0, confidence float64) {
	if common.RMS(frame) < silenceRMS {
		return 0, 0
	}

	w := len(frame)

	// Difference function d(tau).
	for tau := 1; tau <= y.tauMax; tau++ {
		sum := 0.0
		for j := 0; j < w-tau; j++ {
			delta := frame[j] - frame[j+tau]
			sum += delta * delta
		}
		y.diff[tau] = sum
	}

	// Cumulative-mean-normalized difference d'(tau).
	y.cmndf[0] = 1.0
	runningSum := 0.0
	for tau := 1; tau <= y.tauMax; tau++ {
		runningSum += y.diff[tau]
		if runningSum > 0 {
			y.cmndf[tau] = y.diff[tau] * float64(tau) / runningSum
		} else {
			y.cmndf[tau] = 1.0
		}
	}

	// Absolute-threshold search with local-minimum refinement.
	tau := -1
	for candidate := y.tauMin; candidate <= y.tauMax; candidate++ {
		if y.cmndf[candidate] < y.params.Threshold {
			for candidate+1 <= y.tauMax && y.cmndf[candidate+1] < y.cmndf[candidate] {
				candidate++
			}
			tau = candidate
			break
		}
	}

	// Fallback: global minimum over the search band.
	if tau < 0 {
		tau = y.tauMin
		for candidate := y.tauMin + 1; candidate <= y.tauMax; candidate++ {
			if y.cmndf[candidate] < y.cmndf[tau] {
				tau = candidate
			}
		}
	}

	refined := y.parabolicInterpolation(tau)
	if refined < float64(y.tauMin) || refined > float64(y.tauMax) {
		refined = float64(tau)
	}

	f0 = float64(y.params.SampleRate) / refined
	confidence = common.Clamp(1.0-y.cmndf[tau], 0, 1)
	return f0, confidence
}

// parabolicInterpolation refines the lag estimate to sub-sample precision
// using the cmndf values around tau.
func (y *YinTracker) parabolicInterpolation(tau int) float64 {
	if tau <= 0 || tau >= y.tauMax {
		return float64(tau)
	}

	y1 := y.cmndf[tau-1]
	y2 := y.cmndf[tau]
	y3 := y.cmndf[tau+1]

	a := (y1 - 2*y2 + y3) / 2
	b := (y3 - y1) / 2
	if a == 0 {
		return float64(tau)
	}

	return float64(tau) - b/(2*a)
}

// Gate applies an activity mask to a pitch result in place. isActive must
// be frame-aligned with the result (same length as Times). InactiveZero
// zeroes gated frames; InactiveHold repeats the last active estimate, or
// zero if no active frame has occurred yet.
func Gate(result *PitchResult, isActive []bool, behavior InactiveBehavior) error {
	if result == nil {
		return fmt.Errorf("nil pitch result")
	}
	if len(isActive) != len(result.Times) {
		return fmt.Errorf("activity mask length (%d) doesn't match frame count (%d)",
			len(isActive), len(result.Times))
	}

	switch behavior {
	case InactiveZero, InactiveHold:
	default:
		return fmt.Errorf("unknown inactive behavior %q", behavior)
	}

	heldF0 := 0.0
	heldConf := 0.0
	for i, active := range isActive {
		if active {
			heldF0 = result.F0[i]
			heldConf = result.Confidence[i]
			continue
		}
		if behavior == InactiveZero {
			result.F0[i] = 0
			result.Confidence[i] = 0
		} else {
			result.F0[i] = heldF0
			result.Confidence[i] = heldConf
		}
	}

	return nil
}
