// Package gpu runs the mel projection, novelty, and separation kernels on
// a compute device through wgpu. The CPU implementations in the algorithm
// packages are the numerical reference; this backend must agree with them
// within float32 tolerance.
package gpu

import (
	"github.com/spectrail/spectrail/algorithms/spectral"
	"github.com/spectrail/spectrail/compute"
	"github.com/spectrail/spectrail/logging"
)

// Backend dispatches compute kernels on the shared GPU device. Safe for
// concurrent use; every call owns its buffers and shares only the device
// handle and the filterbank cache.
type Backend struct {
	handle    *deviceHandle
	projector *spectral.MelProjector
	logger    logging.Logger
}

var _ compute.Backend = (*Backend)(nil)

// NewBackend acquires the shared compute device, creating it on first use.
// Returns ErrUnsupportedPlatform or ErrDeviceAcquisition (wrapped) when no
// device is available; callers fall back to the CPU backend explicitly.
func NewBackend() (*Backend, error) {
	handle, err := acquireDevice()
	if err != nil {
		return nil, err
	}
	return &Backend{
		handle:    handle,
		projector: spectral.NewMelProjector(),
		logger: logging.WithFields(logging.Fields{
			"component": "gpu_backend",
		}),
	}, nil
}

// Name implements compute.Backend
func (b *Backend) Name() string {
	return "gpu"
}

// flattenRows converts a row-major matrix to a flat float32 slice for
// upload, validating that every row has the expected width.
func flattenRows(rows [][]float64, cols int) ([]float32, error) {
	out := make([]float32, 0, len(rows)*cols)
	for _, row := range rows {
		if len(row) != cols {
			return nil, &spectral.InvalidInputLengthError{Want: cols, Got: len(row)}
		}
		for _, v := range row {
			out = append(out, float32(v))
		}
	}
	return out, nil
}

// workgroups returns the dispatch count covering n items at the given
// workgroup size.
func workgroups(n, size int) uint32 {
	return uint32((n + size - 1) / size)
}
