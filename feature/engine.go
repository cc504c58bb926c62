// Package feature is the top-level facade over the analysis pipeline:
// spectrogram, mel projection, novelty, separation, pitch, and activity
// gating, wired together by one configuration.
package feature

import (
	"math"

	"github.com/spectrail/spectrail/algorithms/activity"
	"github.com/spectrail/spectrail/algorithms/hpss"
	"github.com/spectrail/spectrail/algorithms/spectral"
	"github.com/spectrail/spectrail/algorithms/tonal"
	"github.com/spectrail/spectrail/compute"
	"github.com/spectrail/spectrail/feature/config"
	"github.com/spectrail/spectrail/logging"
)

// Engine runs the analysis pipeline. The default backend is the CPU;
// callers pass an alternate backend explicitly on the *On variants to run
// the projection and separation stages elsewhere.
type Engine struct {
	cfg      config.Config
	stft     *spectral.STFT
	plans    *spectral.PlanCache
	backend  compute.Backend
	detector *activity.Detector
	logger   logging.Logger
}

// Option customizes an engine at construction
type Option func(*Engine)

// WithBackend replaces the default CPU backend
func WithBackend(b compute.Backend) Option {
	return func(e *Engine) { e.backend = b }
}

// WithPlanCache shares an existing FFT plan cache between engines
func WithPlanCache(c *spectral.PlanCache) Option {
	return func(e *Engine) { e.plans = c }
}

// NewEngine validates the configuration and builds an engine
func NewEngine(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	detector, err := activity.NewDetectorWithParams(cfg.Activity.Params())
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		stft:     spectral.NewSTFT(),
		plans:    spectral.NewPlanCache(),
		backend:  compute.NewCPUBackend(),
		detector: detector,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_engine",
		}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration
func (e *Engine) Config() config.Config {
	return e.cfg
}

// PlanCache exposes the engine's FFT plan cache, mainly so tests can
// reset it between runs.
func (e *Engine) PlanCache() *spectral.PlanCache {
	return e.plans
}

// Spectrogram computes the STFT of the buffer's mono mixdown
func (e *Engine) Spectrogram(buf *AudioBuffer) (*spectral.Spectrogram, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	return e.stft.Compute(buf.Mono(), buf.SampleRate, e.cfg.STFT.Params())
}

// Transform returns the magnitude spectrum of a single frame through the
// engine's plan cache. Plans reuse scratch buffers, so Transform is not
// safe for concurrent use on one engine.
func (e *Engine) Transform(frame []float64) ([]float64, error) {
	plan, err := e.plans.Get(len(frame))
	if err != nil {
		return nil, err
	}
	re, im, err := plan.ForwardReal(frame)
	if err != nil {
		return nil, err
	}

	mags := make([]float64, len(frame)/2+1)
	for k := range mags {
		mags[k] = math.Hypot(re[k], im[k])
	}
	return mags, nil
}

// MelSpectrogram projects a spectrogram on the engine's default backend
func (e *Engine) MelSpectrogram(spec *spectral.Spectrogram) (*spectral.MelSpectrogram, error) {
	mel, _, err := e.backend.MelProject(spec, e.cfg.Mel.Params())
	return mel, err
}

// MelSpectrogramOn projects a spectrogram on the given backend
func (e *Engine) MelSpectrogramOn(b compute.Backend, spec *spectral.Spectrogram) (*spectral.MelSpectrogram, compute.DispatchInfo, error) {
	return b.MelProject(spec, e.cfg.Mel.Params())
}

// NoveltyCurve computes the onset envelope on the engine's default backend
func (e *Engine) NoveltyCurve(mel *spectral.MelSpectrogram, method spectral.DiffMethod) ([]float64, error) {
	curve, _, err := e.backend.Novelty(mel, method)
	return curve, err
}

// NoveltyCurveOn computes the onset envelope on the given backend
func (e *Engine) NoveltyCurveOn(b compute.Backend, mel *spectral.MelSpectrogram, method spectral.DiffMethod) ([]float64, compute.DispatchInfo, error) {
	return b.Novelty(mel, method)
}

// Separate splits a spectrogram into harmonic and percussive components
// on the engine's default backend
func (e *Engine) Separate(spec *spectral.Spectrogram) (*hpss.Result, error) {
	result, _, err := e.backend.HPSS(spec, e.cfg.HPSS.Params())
	return result, err
}

// SeparateOn splits a spectrogram on the given backend
func (e *Engine) SeparateOn(b compute.Backend, spec *spectral.Spectrogram) (*hpss.Result, compute.DispatchInfo, error) {
	return b.HPSS(spec, e.cfg.HPSS.Params())
}

// TrackPitch estimates per-frame pitch from the buffer's mono mixdown
func (e *Engine) TrackPitch(buf *AudioBuffer) (*tonal.PitchResult, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	tracker, err := tonal.NewYinTrackerWithParams(e.cfg.Pitch.Params(buf.SampleRate))
	if err != nil {
		return nil, err
	}
	return tracker.Track(buf.Mono())
}

// ActivityFromSpectrogram computes the activity signal from magnitude energy
func (e *Engine) ActivityFromSpectrogram(spec *spectral.Spectrogram) (*activity.Signal, error) {
	return e.detector.ComputeFromSpectrogram(spec)
}

// ActivityFromMel computes the activity signal from mel-band energy
func (e *Engine) ActivityFromMel(mel *spectral.MelSpectrogram) (*activity.Signal, error) {
	return e.detector.ComputeFromMel(mel)
}

// GatePitch resamples the activity signal onto the pitch result's time
// grid and gates inactive frames in place.
func (e *Engine) GatePitch(pitch *tonal.PitchResult, act *activity.Signal, behavior tonal.InactiveBehavior) error {
	resampled, err := activity.Interpolate(act, pitch.Times)
	if err != nil {
		return err
	}
	return tonal.Gate(pitch, resampled.IsActive, behavior)
}

// GateFrameValues zeroes the entries of a frame-aligned series whose
// timestamps fall on inactive or suppressed activity frames.
func (e *Engine) GateFrameValues(values, times []float64, act *activity.Signal) ([]float64, error) {
	resampled, err := activity.Interpolate(act, times)
	if err != nil {
		return nil, err
	}
	return activity.ApplyGating(values, resampled, activity.GatingOptions{})
}
