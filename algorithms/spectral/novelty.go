package spectral

import "fmt"

// DiffMethod selects how frame-to-frame mel differences are folded into
// the novelty curve.
type DiffMethod string

const (
	// DiffRectified keeps only energy increases (onset emphasis)
	DiffRectified DiffMethod = "rectified"
	// DiffAbs keeps the magnitude of every change
	DiffAbs DiffMethod = "abs"
)

// Novelty computes a spectral-novelty ("onset envelope") curve from a mel
// spectrogram: one value per frame, the mean over mel bands of the
// frame-to-frame difference. Frame 0 is always 0. This is the CPU
// reference for the GPU novelty kernel.
type Novelty struct {
	Method DiffMethod
}

// NewNovelty creates a novelty calculator; an empty method defaults to
// rectified differences.
func NewNovelty(method DiffMethod) *Novelty {
	if method == "" {
		method = DiffRectified
	}
	return &Novelty{Method: method}
}

// Compute returns the per-frame novelty curve, length mel.Frames
func (n *Novelty) Compute(mel *MelSpectrogram) ([]float64, error) {
	if mel == nil {
		return nil, fmt.Errorf("nil mel spectrogram")
	}
	if n.Method != DiffRectified && n.Method != DiffAbs {
		return nil, fmt.Errorf("unknown diff method %q", n.Method)
	}

	curve := make([]float64, mel.Frames)
	for t := 1; t < mel.Frames; t++ {
		sum := 0.0
		for m := range mel.Values[t] {
			diff := mel.Values[t][m] - mel.Values[t-1][m]
			if n.Method == DiffAbs {
				if diff < 0 {
					diff = -diff
				}
			} else if diff < 0 {
				diff = 0
			}
			sum += diff
		}
		curve[t] = sum / float64(mel.NMels)
	}

	return curve, nil
}
