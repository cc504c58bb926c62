package gpu

import (
	"fmt"

	"github.com/spectrail/spectrail/algorithms/spectral"
	"github.com/spectrail/spectrail/compute"
	"github.com/spectrail/spectrail/logging"
)

// MelProject implements compute.Backend. One work item per (frame, mel)
// pair; the kernel computes the same log10(1e-12 + dot) as the CPU path.
func (b *Backend) MelProject(spec *spectral.Spectrogram, params spectral.MelParams) (*spectral.MelSpectrogram, compute.DispatchInfo, error) {
	info := compute.DispatchInfo{Backend: b.Name()}

	if spec == nil {
		return nil, info, fmt.Errorf("nil spectrogram")
	}

	bank, err := b.projector.Filterbank(params.NMels, spec.Bins, spec.SampleRate, params.FMin, params.FMax)
	if err != nil {
		return nil, info, err
	}

	out := &spectral.MelSpectrogram{
		Values:     make([][]float64, spec.Frames),
		Frames:     spec.Frames,
		NMels:      params.NMels,
		FFTSize:    spec.FFTSize,
		HopSize:    spec.HopSize,
		SampleRate: spec.SampleRate,
	}
	if spec.Frames == 0 {
		return out, info, nil
	}

	magnitudes, err := flattenRows(spec.Magnitudes, spec.Bins)
	if err != nil {
		return nil, info, err
	}
	filters, err := flattenRows(bank, spec.Bins)
	if err != nil {
		return nil, info, err
	}

	run := b.newRun()
	defer run.res.releaseAll()

	magBuf, err := run.storageInput("magnitudes", magnitudes)
	if err != nil {
		return nil, info, err
	}
	filterBuf, err := run.storageInput("filters", filters)
	if err != nil {
		return nil, info, err
	}
	paramBuf, err := run.uniform("mel_params", []uint32{
		uint32(spec.Bins), uint32(params.NMels), uint32(spec.Frames), 0,
	})
	if err != nil {
		return nil, info, err
	}
	outBuf, err := run.storageOutput("mel_out", uint64(spec.Frames*params.NMels)*4)
	if err != nil {
		return nil, info, err
	}

	pipeline, err := run.pipeline("mel_project", melWGSL)
	if err != nil {
		return nil, info, err
	}
	group, err := run.bindGroup(pipeline, magBuf, filterBuf, paramBuf, outBuf)
	if err != nil {
		return nil, info, err
	}

	results, elapsed, err := run.execute(pipeline, group,
		workgroups(spec.Frames, 8), workgroups(params.NMels, 8), 1, outBuf)
	if err != nil {
		return nil, info, err
	}
	info.Duration = elapsed

	flat := results[0]
	for t := range out.Values {
		row := make([]float64, params.NMels)
		for m := range row {
			row[m] = float64(flat[t*params.NMels+m])
		}
		out.Values[t] = row
	}

	b.logger.Debug("mel projection dispatched", logging.Fields{
		"frames":   spec.Frames,
		"n_mels":   params.NMels,
		"duration": elapsed,
	})

	return out, info, nil
}
