package gpu

import (
	"fmt"

	"github.com/spectrail/spectrail/algorithms/hpss"
	"github.com/spectrail/spectrail/algorithms/spectral"
	"github.com/spectrail/spectrail/compute"
)

// maxMedianWindow is the kernel's fixed scratch-array size. It bounds the
// median window lengths the GPU path accepts; MAX_WINDOW in hpssWGSL must
// stay in sync with it.
const maxMedianWindow = 31

// HPSS implements compute.Backend. One work item per (frame, bin) computes
// both directional medians with the same centered edge-truncated windows
// as the CPU path, then applies the mask in place.
func (b *Backend) HPSS(spec *spectral.Spectrogram, params hpss.Params) (*hpss.Result, compute.DispatchInfo, error) {
	info := compute.DispatchInfo{Backend: b.Name()}

	if spec == nil {
		return nil, info, fmt.Errorf("nil spectrogram")
	}
	if params.HarmonicLength <= 0 || params.PercussiveLength <= 0 {
		return nil, info, fmt.Errorf("median filter lengths must be positive, got %d and %d",
			params.HarmonicLength, params.PercussiveLength)
	}
	if params.HarmonicLength > maxMedianWindow || params.PercussiveLength > maxMedianWindow {
		return nil, info, fmt.Errorf("median filter lengths %d/%d exceed gpu kernel window limit %d",
			params.HarmonicLength, params.PercussiveLength, maxMedianWindow)
	}

	var maskCode uint32
	switch params.Mask {
	case hpss.SoftMask:
		maskCode = 0
	case hpss.HardMask:
		maskCode = 1
	default:
		return nil, info, fmt.Errorf("unknown mask mode %q", params.Mask)
	}

	result := &hpss.Result{
		Harmonic:   emptyLike(spec),
		Percussive: emptyLike(spec),
	}
	if spec.Frames == 0 {
		return result, info, nil
	}

	magnitudes, err := flattenRows(spec.Magnitudes, spec.Bins)
	if err != nil {
		return nil, info, err
	}

	run := b.newRun()
	defer run.res.releaseAll()

	magBuf, err := run.storageInput("magnitudes", magnitudes)
	if err != nil {
		return nil, info, err
	}
	paramBuf, err := run.uniform("hpss_params", []uint32{
		uint32(spec.Frames), uint32(spec.Bins),
		uint32(params.HarmonicLength), uint32(params.PercussiveLength),
		maskCode, 0, 0, 0,
	})
	if err != nil {
		return nil, info, err
	}

	outSize := uint64(spec.Frames*spec.Bins) * 4
	harmonicBuf, err := run.storageOutput("harmonic_out", outSize)
	if err != nil {
		return nil, info, err
	}
	percussiveBuf, err := run.storageOutput("percussive_out", outSize)
	if err != nil {
		return nil, info, err
	}

	pipeline, err := run.pipeline("hpss", hpssWGSL)
	if err != nil {
		return nil, info, err
	}
	group, err := run.bindGroup(pipeline, magBuf, paramBuf, harmonicBuf, percussiveBuf)
	if err != nil {
		return nil, info, err
	}

	results, elapsed, err := run.execute(pipeline, group,
		workgroups(spec.Frames, 8), workgroups(spec.Bins, 8), 1,
		harmonicBuf, percussiveBuf)
	if err != nil {
		return nil, info, err
	}
	info.Duration = elapsed

	unflatten(results[0], result.Harmonic.Magnitudes, spec.Bins)
	unflatten(results[1], result.Percussive.Magnitudes, spec.Bins)

	return result, info, nil
}

func unflatten(flat []float32, rows [][]float64, cols int) {
	for t := range rows {
		for k := range rows[t] {
			rows[t][k] = float64(flat[t*cols+k])
		}
	}
}

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
