// Package config loads and validates engine configuration from YAML.
// Zero values fall back to the analysis defaults, so a partial file only
// overrides what it names.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spectrail/spectrail/algorithms/activity"
	"github.com/spectrail/spectrail/algorithms/hpss"
	"github.com/spectrail/spectrail/algorithms/spectral"
	"github.com/spectrail/spectrail/algorithms/tonal"
	"github.com/spectrail/spectrail/algorithms/windowing"
)

// STFTConfig configures spectrogram analysis
type STFTConfig struct {
	FFTSize      int    `yaml:"fft_size"`
	HopSize      int    `yaml:"hop_size"`
	Window       string `yaml:"window"`
	IncludePhase bool   `yaml:"include_phase"`
}

// Params converts to the analysis parameter struct
func (c STFTConfig) Params() spectral.STFTParams {
	return spectral.STFTParams{
		FFTSize:      c.FFTSize,
		HopSize:      c.HopSize,
		Window:       windowing.Type(c.Window),
		IncludePhase: c.IncludePhase,
	}
}

// MelConfig configures the mel projection
type MelConfig struct {
	NMels int     `yaml:"n_mels"`
	FMin  float64 `yaml:"f_min"`
	FMax  float64 `yaml:"f_max"`
}

// Params converts to the projection parameter struct
func (c MelConfig) Params() spectral.MelParams {
	return spectral.MelParams{NMels: c.NMels, FMin: c.FMin, FMax: c.FMax}
}

// HPSSConfig configures harmonic/percussive separation
type HPSSConfig struct {
	HarmonicLength   int    `yaml:"harmonic_length"`
	PercussiveLength int    `yaml:"percussive_length"`
	Mask             string `yaml:"mask"`
}

// Params converts to the separation parameter struct
func (c HPSSConfig) Params() hpss.Params {
	return hpss.Params{
		HarmonicLength:   c.HarmonicLength,
		PercussiveLength: c.PercussiveLength,
		Mask:             hpss.MaskMode(c.Mask),
	}
}

// PitchConfig configures the pitch tracker. The sample rate comes from the
// audio at call time, not from configuration.
type PitchConfig struct {
	WindowSize int     `yaml:"window_size"`
	HopSize    int     `yaml:"hop_size"`
	Threshold  float64 `yaml:"threshold"`
	FMin       float64 `yaml:"f_min"`
	FMax       float64 `yaml:"f_max"`
}

// Params converts to tracker parameters for the given sample rate
func (c PitchConfig) Params(sampleRate int) tonal.YinParams {
	return tonal.YinParams{
		SampleRate: sampleRate,
		WindowSize: c.WindowSize,
		HopSize:    c.HopSize,
		Threshold:  c.Threshold,
		FMin:       c.FMin,
		FMax:       c.FMax,
	}
}

// ActivityConfig configures activity detection
type ActivityConfig struct {
	NoiseFloorPercentile float64 `yaml:"noise_floor_percentile"`
	EnterMargin          float64 `yaml:"enter_margin"`
	ExitMargin           float64 `yaml:"exit_margin"`
	HangoverMs           float64 `yaml:"hangover_ms"`
	LevelRangeDB         float64 `yaml:"level_range_db"`
}

// Params converts to detector parameters
func (c ActivityConfig) Params() activity.Params {
	return activity.Params{
		NoiseFloorPercentile: c.NoiseFloorPercentile,
		EnterMargin:          c.EnterMargin,
		ExitMargin:           c.ExitMargin,
		HangoverMs:           c.HangoverMs,
		LevelRangeDB:         c.LevelRangeDB,
	}
}

// Config is the full engine configuration
type Config struct {
	STFT     STFTConfig     `yaml:"stft"`
	Mel      MelConfig      `yaml:"mel"`
	HPSS     HPSSConfig     `yaml:"hpss"`
	Pitch    PitchConfig    `yaml:"pitch"`
	Activity ActivityConfig `yaml:"activity"`
}

// Default returns the configuration matching every package's defaults
func Default() Config {
	stft := spectral.DefaultSTFTParams()
	mel := spectral.DefaultMelParams()
	sep := hpss.DefaultParams()
	pitch := tonal.DefaultYinParams(1) // sample rate replaced at call time
	act := activity.DefaultParams()

	return Config{
		STFT: STFTConfig{
			FFTSize: stft.FFTSize,
			HopSize: stft.HopSize,
			Window:  string(stft.Window),
		},
		Mel: MelConfig{NMels: mel.NMels, FMin: mel.FMin, FMax: mel.FMax},
		HPSS: HPSSConfig{
			HarmonicLength:   sep.HarmonicLength,
			PercussiveLength: sep.PercussiveLength,
			Mask:             string(sep.Mask),
		},
		Pitch: PitchConfig{
			WindowSize: pitch.WindowSize,
			HopSize:    pitch.HopSize,
			Threshold:  pitch.Threshold,
			FMin:       pitch.FMin,
			FMax:       pitch.FMax,
		},
		Activity: ActivityConfig{
			NoiseFloorPercentile: act.NoiseFloorPercentile,
			EnterMargin:          act.EnterMargin,
			ExitMargin:           act.ExitMargin,
			HangoverMs:           act.HangoverMs,
			LevelRangeDB:         act.LevelRangeDB,
		},
	}
}

// Load reads a YAML configuration file, layered over Default
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes YAML configuration, layered over Default.
// Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	var errs []error

	if c.STFT.FFTSize <= 0 {
		errs = append(errs, fmt.Errorf("stft: fft_size must be positive, got %d", c.STFT.FFTSize))
	}
	if c.STFT.HopSize <= 0 {
		errs = append(errs, fmt.Errorf("stft: hop_size must be positive, got %d", c.STFT.HopSize))
	}
	if c.STFT.Window != "" && c.STFT.FFTSize > 0 {
		if _, err := windowing.New(windowing.Type(c.STFT.Window), c.STFT.FFTSize); err != nil {
			errs = append(errs, fmt.Errorf("stft: %w", err))
		}
	}

	if c.Mel.NMels <= 0 {
		errs = append(errs, fmt.Errorf("mel: n_mels must be positive, got %d", c.Mel.NMels))
	}
	if c.Mel.FMin < 0 || (c.Mel.FMax != 0 && c.Mel.FMax <= c.Mel.FMin) {
		errs = append(errs, fmt.Errorf("mel: invalid band [%g, %g] Hz", c.Mel.FMin, c.Mel.FMax))
	}

	if c.HPSS.HarmonicLength <= 0 || c.HPSS.PercussiveLength <= 0 {
		errs = append(errs, fmt.Errorf("hpss: filter lengths must be positive, got %d and %d",
			c.HPSS.HarmonicLength, c.HPSS.PercussiveLength))
	}
	switch hpss.MaskMode(c.HPSS.Mask) {
	case hpss.SoftMask, hpss.HardMask:
	default:
		errs = append(errs, fmt.Errorf("hpss: unknown mask mode %q", c.HPSS.Mask))
	}

	if c.Pitch.WindowSize <= 0 || c.Pitch.HopSize <= 0 {
		errs = append(errs, fmt.Errorf("pitch: window and hop must be positive, got %d and %d",
			c.Pitch.WindowSize, c.Pitch.HopSize))
	}
	if c.Pitch.Threshold <= 0 || c.Pitch.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("pitch: threshold must be in (0, 1), got %g", c.Pitch.Threshold))
	}
	if c.Pitch.FMin <= 0 || c.Pitch.FMax <= c.Pitch.FMin {
		errs = append(errs, fmt.Errorf("pitch: invalid search band [%g, %g] Hz", c.Pitch.FMin, c.Pitch.FMax))
	}

	if _, err := activity.NewDetectorWithParams(c.Activity.Params()); err != nil {
		errs = append(errs, fmt.Errorf("activity: %w", err))
	}

	return errors.Join(errs...)
}
