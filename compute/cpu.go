package compute

import (
	"time"

	"github.com/spectrail/spectrail/algorithms/hpss"
	"github.com/spectrail/spectrail/algorithms/spectral"
)

// CPUBackend runs every stage on the host. It is the reference
// implementation the GPU backend is checked against.
type CPUBackend struct {
	projector *spectral.MelProjector
	separator *hpss.Separator
}

// NewCPUBackend creates a CPU backend with its own filterbank cache
func NewCPUBackend() *CPUBackend {
	return &CPUBackend{
		projector: spectral.NewMelProjector(),
		separator: hpss.NewSeparator(),
	}
}

// Name implements Backend
func (c *CPUBackend) Name() string {
	return "cpu"
}

// MelProject implements Backend
func (c *CPUBackend) MelProject(spec *spectral.Spectrogram, params spectral.MelParams) (*spectral.MelSpectrogram, DispatchInfo, error) {
	start := time.Now()
	mel, err := c.projector.Project(spec, params)
	return mel, c.info(start), err
}

// Novelty implements Backend
func (c *CPUBackend) Novelty(mel *spectral.MelSpectrogram, method spectral.DiffMethod) ([]float64, DispatchInfo, error) {
	start := time.Now()
	curve, err := spectral.NewNovelty(method).Compute(mel)
	return curve, c.info(start), err
}

// HPSS implements Backend
func (c *CPUBackend) HPSS(spec *spectral.Spectrogram, params hpss.Params) (*hpss.Result, DispatchInfo, error) {
	start := time.Now()
	result, err := c.separator.Separate(spec, params)
	return result, c.info(start), err
}

func (c *CPUBackend) info(start time.Time) DispatchInfo {
	return DispatchInfo{Backend: c.Name(), Duration: time.Since(start)}
}
