// Package activity derives active/inactive masks and continuous activity
// levels from spectral energy, with an adaptive noise floor and hysteresis.
package activity

import (
	"fmt"
	"math"

	"github.com/spectrail/spectrail/algorithms/common"
	"github.com/spectrail/spectrail/algorithms/spectral"
	"github.com/spectrail/spectrail/logging"
)

// minNoiseFloor is the absolute lower bound for the estimated noise floor.
// It keeps threshold ratios meaningful on digitally silent input.
const minNoiseFloor = 1e-10

// Params configures activity detection
type Params struct {
	// NoiseFloorPercentile picks the per-frame energy percentile used as
	// the adaptive noise floor (0..1)
	NoiseFloorPercentile float64 `json:"noise_floor_percentile"`
	// EnterMargin scales the noise floor into the activation threshold
	EnterMargin float64 `json:"enter_margin"`
	// ExitMargin scales the noise floor into the deactivation threshold;
	// must be below EnterMargin and above 1
	ExitMargin float64 `json:"exit_margin"`
	// HangoverMs is how long energy must stay below the exit threshold
	// before the detector leaves the active state
	HangoverMs float64 `json:"hangover_ms"`
	// LevelRangeDB maps energy above the noise floor onto the 0..1
	// activity level
	LevelRangeDB float64 `json:"level_range_db"`
}

// DefaultParams returns the detection defaults
func DefaultParams() Params {
	return Params{
		NoiseFloorPercentile: 0.1,
		EnterMargin:          8.0,
		ExitMargin:           3.0,
		HangoverMs:           200.0,
		LevelRangeDB:         30.0,
	}
}

// Diagnostics reports how the detector resolved its thresholds
type Diagnostics struct {
	NoiseFloor     float64 `json:"noise_floor"`
	EnterThreshold float64 `json:"enter_threshold"`
	ExitThreshold  float64 `json:"exit_threshold"`
	TotalFrames    int     `json:"total_frames"`
	ActiveFrames   int     `json:"active_frames"`
	ActiveFraction float64 `json:"active_fraction"`
}

// Signal is the frame-aligned activity result. All arrays share the length
// of Times. Value object, produced by a single computation call.
type Signal struct {
	Times       []float64   `json:"times"`
	Level       []float64   `json:"level"` // 0..1 continuous activity
	IsActive    []bool      `json:"is_active"`
	Suppress    []bool      `json:"suppress"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Detector computes activity signals from spectral energy
type Detector struct {
	params Params
	logger logging.Logger
}

// NewDetector creates a detector with default parameters
func NewDetector() *Detector {
	d, _ := NewDetectorWithParams(DefaultParams())
	return d
}

// NewDetectorWithParams creates a detector with custom parameters
func NewDetectorWithParams(params Params) (*Detector, error) {
	if params.NoiseFloorPercentile <= 0 || params.NoiseFloorPercentile >= 1 {
		return nil, fmt.Errorf("noise floor percentile must be in (0, 1), got %g", params.NoiseFloorPercentile)
	}
	if params.ExitMargin <= 1 {
		return nil, fmt.Errorf("exit margin must exceed 1, got %g", params.ExitMargin)
	}
	if params.EnterMargin <= params.ExitMargin {
		return nil, fmt.Errorf("enter margin (%g) must exceed exit margin (%g)",
			params.EnterMargin, params.ExitMargin)
	}
	if params.HangoverMs < 0 {
		return nil, fmt.Errorf("hangover must be non-negative, got %g ms", params.HangoverMs)
	}
	if params.LevelRangeDB <= 0 {
		return nil, fmt.Errorf("level range must be positive, got %g dB", params.LevelRangeDB)
	}

	return &Detector{
		params: params,
		logger: logging.WithFields(logging.Fields{
			"component": "activity",
		}),
	}, nil
}

// Params returns the detector configuration
func (d *Detector) Params() Params {
	return d.params
}

// ComputeFromSpectrogram derives activity from per-frame magnitude energy
func (d *Detector) ComputeFromSpectrogram(spec *spectral.Spectrogram) (*Signal, error) {
	if spec == nil {
		return nil, fmt.Errorf("nil spectrogram")
	}

	energies := make([]float64, spec.Frames)
	for t, row := range spec.Magnitudes {
		energies[t] = common.Energy(row)
	}

	frameDur := float64(spec.HopSize) / float64(spec.SampleRate)
	return d.compute(spec.Times(), energies, frameDur), nil
}

// ComputeFromMel derives activity from mel-band energies. Values are
// log-compressed, so each band is mapped back to the linear domain before
// summing.
func (d *Detector) ComputeFromMel(mel *spectral.MelSpectrogram) (*Signal, error) {
	if mel == nil {
		return nil, fmt.Errorf("nil mel spectrogram")
	}

	energies := make([]float64, mel.Frames)
	for t, row := range mel.Values {
		sum := 0.0
		for _, v := range row {
			sum += math.Pow(10, v)
		}
		energies[t] = sum
	}

	frameDur := float64(mel.HopSize) / float64(mel.SampleRate)
	return d.compute(mel.Times(), energies, frameDur), nil
}

// compute runs threshold derivation and the hysteresis state machine
func (d *Detector) compute(times, energies []float64, frameDur float64) *Signal {
	noiseFloor := math.Max(common.Percentile(energies, d.params.NoiseFloorPercentile), minNoiseFloor)
	enter := noiseFloor * d.params.EnterMargin
	exit := noiseFloor * d.params.ExitMargin

	hangoverFrames := 0
	if frameDur > 0 {
		hangoverFrames = int(math.Round(d.params.HangoverMs / 1000.0 / frameDur))
	}

	signal := &Signal{
		Times:    times,
		Level:    make([]float64, len(energies)),
		IsActive: make([]bool, len(energies)),
		Suppress: make([]bool, len(energies)),
	}

	active := false
	belowCount := 0
	activeFrames := 0

	for i, energy := range energies {
		if energy > 0 {
			db := 10.0 * math.Log10(energy/noiseFloor)
			signal.Level[i] = common.Clamp(db/d.params.LevelRangeDB, 0, 1)
		}

		if !active {
			if energy > enter {
				active = true
				belowCount = 0
			}
		} else if energy < exit {
			belowCount++
			if belowCount > hangoverFrames {
				active = false
				belowCount = 0
			}
		} else {
			belowCount = 0
		}

		signal.IsActive[i] = active
		if active {
			activeFrames++
		}
	}

	signal.Diagnostics = Diagnostics{
		NoiseFloor:     noiseFloor,
		EnterThreshold: enter,
		ExitThreshold:  exit,
		TotalFrames:    len(energies),
		ActiveFrames:   activeFrames,
	}
	if len(energies) > 0 {
		signal.Diagnostics.ActiveFraction = float64(activeFrames) / float64(len(energies))
	}

	d.logger.Debug("activity computed", logging.Fields{
		"frames":          len(energies),
		"active_fraction": signal.Diagnostics.ActiveFraction,
		"noise_floor":     noiseFloor,
	})

	return signal
}

// Interpolate resamples a signal onto an arbitrary monotonic time grid:
// linear interpolation for the level, nearest-sample for the boolean
// masks, clamping at both edges. Threshold diagnostics are carried over;
// frame counts are recomputed on the target grid.
func Interpolate(signal *Signal, targetTimes []float64) (*Signal, error) {
	if signal == nil {
		return nil, fmt.Errorf("nil activity signal")
	}
	if len(signal.Times) == 0 {
		return nil, fmt.Errorf("empty activity signal")
	}

	out := &Signal{
		Times:    append([]float64(nil), targetTimes...),
		Level:    make([]float64, len(targetTimes)),
		IsActive: make([]bool, len(targetTimes)),
		Suppress: make([]bool, len(targetTimes)),
	}

	activeFrames := 0
	for i, t := range targetTimes {
		out.Level[i] = common.LinearAt(signal.Times, signal.Level, t)

		nearest := common.NearestIndex(signal.Times, t)
		out.IsActive[i] = signal.IsActive[nearest]
		out.Suppress[i] = signal.Suppress[nearest]
		if out.IsActive[i] {
			activeFrames++
		}
	}

	out.Diagnostics = signal.Diagnostics
	out.Diagnostics.TotalFrames = len(targetTimes)
	out.Diagnostics.ActiveFrames = activeFrames
	out.Diagnostics.ActiveFraction = 0
	if len(targetTimes) > 0 {
		out.Diagnostics.ActiveFraction = float64(activeFrames) / float64(len(targetTimes))
	}

	return out, nil
}

// GatingOptions configures ApplyGating
type GatingOptions struct {
	// InPlace mutates the caller's slice instead of allocating a copy
	InPlace bool
}

// ApplyGating zeroes every value whose frame is inactive or suppressed.
// values must be frame-aligned with the signal.
func ApplyGating(values []float64, signal *Signal, opts GatingOptions) ([]float64, error) {
	if signal == nil {
		return nil, fmt.Errorf("nil activity signal")
	}
	if len(values) != len(signal.Times) {
		return nil, fmt.Errorf("values length (%d) doesn't match activity frames (%d)",
			len(values), len(signal.Times))
	}

	out := values
	if !opts.InPlace {
		out = make([]float64, len(values))
		copy(out, values)
	}

	for i := range out {
		if !signal.IsActive[i] || signal.Suppress[i] {
			out[i] = 0
		}
	}

	return out, nil
}

// MarkSuppressed flags every frame whose timestamp falls in [from, to].
// Callers use this to null out regions (clicks, bleed) before gating.
func MarkSuppressed(signal *Signal, from, to float64) {
	if signal == nil {
		return
	}
	for i, t := range signal.Times {
		if t >= from && t <= to {
			signal.Suppress[i] = true
		}
	}
}
