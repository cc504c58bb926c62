package gpu

import (
	"fmt"

	"github.com/spectrail/spectrail/algorithms/spectral"
	"github.com/spectrail/spectrail/compute"
)

// Novelty implements compute.Backend. One work item per frame; frame 0 is
// always zero, matching the CPU reference.
func (b *Backend) Novelty(mel *spectral.MelSpectrogram, method spectral.DiffMethod) ([]float64, compute.DispatchInfo, error) {
	info := compute.DispatchInfo{Backend: b.Name()}

	if mel == nil {
		return nil, info, fmt.Errorf("nil mel spectrogram")
	}

	var methodCode uint32
	switch method {
	case "", spectral.DiffRectified:
		methodCode = 0
	case spectral.DiffAbs:
		methodCode = 1
	default:
		return nil, info, fmt.Errorf("unknown diff method %q", method)
	}

	if mel.Frames == 0 {
		return []float64{}, info, nil
	}

	values, err := flattenRows(mel.Values, mel.NMels)
	if err != nil {
		return nil, info, err
	}

	run := b.newRun()
	defer run.res.releaseAll()

	valueBuf, err := run.storageInput("mel_values", values)
	if err != nil {
		return nil, info, err
	}
	paramBuf, err := run.uniform("novelty_params", []uint32{
		uint32(mel.NMels), uint32(mel.Frames), methodCode, 0,
	})
	if err != nil {
		return nil, info, err
	}
	outBuf, err := run.storageOutput("novelty_out", uint64(mel.Frames)*4)
	if err != nil {
		return nil, info, err
	}

	pipeline, err := run.pipeline("novelty", noveltyWGSL)
	if err != nil {
		return nil, info, err
	}
	group, err := run.bindGroup(pipeline, valueBuf, paramBuf, outBuf)
	if err != nil {
		return nil, info, err
	}

	results, elapsed, err := run.execute(pipeline, group,
		workgroups(mel.Frames, 64), 1, 1, outBuf)
	if err != nil {
		return nil, info, err
	}
	info.Duration = elapsed

	curve := make([]float64, mel.Frames)
	for t, v := range results[0] {
		curve[t] = float64(v)
	}
	return curve, info, nil
}
