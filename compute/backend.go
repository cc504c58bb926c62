// Package compute abstracts over CPU and GPU execution of the projection
// and separation stages. Callers pick a backend per call; nothing in the
// algorithm packages branches on execution target.
package compute

import (
	"time"

	"github.com/spectrail/spectrail/algorithms/hpss"
	"github.com/spectrail/spectrail/algorithms/spectral"
)

// DispatchInfo records how a single backend call executed. For GPU
// backends Duration covers submit to readback; for CPU backends it covers
// the whole computation.
type DispatchInfo struct {
	Backend  string        `json:"backend"`
	Duration time.Duration `json:"duration"`
}

// Backend executes the stages that have more than one implementation.
// Implementations must agree on output shape and, within tolerance, on
// values; the CPU backend is the reference.
type Backend interface {
	// Name identifies the backend in logs and diagnostics
	Name() string

	// MelProject applies a triangular mel filterbank with log compression
	MelProject(spec *spectral.Spectrogram, params spectral.MelParams) (*spectral.MelSpectrogram, DispatchInfo, error)

	// Novelty computes the onset envelope from frame-to-frame mel differences
	Novelty(mel *spectral.MelSpectrogram, method spectral.DiffMethod) ([]float64, DispatchInfo, error)

	// HPSS separates harmonic and percussive components by median filtering
	HPSS(spec *spectral.Spectrogram, params hpss.Params) (*hpss.Result, DispatchInfo, error)
}
