package spectral

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/spectrail/spectrail/algorithms/windowing"
	"github.com/spectrail/spectrail/logging"
)

// STFTParams configures a spectrogram computation
type STFTParams struct {
	FFTSize      int            `json:"fft_size"`
	HopSize      int            `json:"hop_size"`
	Window       windowing.Type `json:"window"`
	IncludePhase bool           `json:"include_phase"`
}

// DefaultSTFTParams returns the analysis defaults used across the engine
func DefaultSTFTParams() STFTParams {
	return STFTParams{
		FFTSize: 2048,
		HopSize: 512,
		Window:  windowing.Hann,
	}
}

// Spectrogram holds per-frame magnitude (and optionally phase) spectra.
// Value object: produced by one computation call and never mutated after.
type Spectrogram struct {
	Magnitudes [][]float64 `json:"magnitudes"` // Frames x Bins
	Phases     [][]float64 `json:"phases,omitempty"`
	Frames     int         `json:"frames"`
	Bins       int         `json:"bins"` // FFTSize/2 + 1
	FFTSize    int         `json:"fft_size"`
	HopSize    int         `json:"hop_size"`
	SampleRate int         `json:"sample_rate"`
}

// FrameTime returns the frame-center timestamp of frame i in seconds:
// (i*hop + fftSize/2) / sampleRate. Every downstream consumer assumes
// this convention.
func (s *Spectrogram) FrameTime(i int) float64 {
	return (float64(i*s.HopSize) + float64(s.FFTSize)/2.0) / float64(s.SampleRate)
}

// Times returns the frame-center timestamps for all frames
func (s *Spectrogram) Times() []float64 {
	times := make([]float64, s.Frames)
	for i := range times {
		times[i] = s.FrameTime(i)
	}
	return times
}

// BinFrequencies returns the center frequency in Hz of every bin
func (s *Spectrogram) BinFrequencies() []float64 {
	freqs := make([]float64, s.Bins)
	for k := range freqs {
		freqs[k] = float64(k) * float64(s.SampleRate) / float64(s.FFTSize)
	}
	return freqs
}

// STFT computes short-time Fourier spectrograms
type STFT struct {
	logger logging.Logger
}

// NewSTFT creates a new STFT engine
func NewSTFT() *STFT {
	return &STFT{
		logger: logging.WithFields(logging.Fields{
			"component": "stft",
		}),
	}
}

// Compute frames the signal at HopSize steps, windows each FFTSize-length
// frame (zero-padded if fewer samples remain), and transforms it. Frame
// count is floor((n-fftSize)/hop)+1 clamped to zero.
func (s *STFT) Compute(signal []float64, sampleRate int, params STFTParams) (*Spectrogram, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if params.FFTSize <= 0 {
		return nil, fmt.Errorf("fft size must be positive, got %d", params.FFTSize)
	}
	if params.HopSize <= 0 {
		return nil, fmt.Errorf("hop size must be positive, got %d", params.HopSize)
	}

	windowType := params.Window
	if windowType == "" {
		windowType = windowing.Hann
	}
	window, err := windowing.New(windowType, params.FFTSize)
	if err != nil {
		return nil, err
	}

	numFrames := (len(signal)-params.FFTSize)/params.HopSize + 1
	numFrames = max(numFrames, 0)

	bins := params.FFTSize/2 + 1

	result := &Spectrogram{
		Magnitudes: make([][]float64, numFrames),
		Frames:     numFrames,
		Bins:       bins,
		FFTSize:    params.FFTSize,
		HopSize:    params.HopSize,
		SampleRate: sampleRate,
	}
	if params.IncludePhase {
		result.Phases = make([][]float64, numFrames)
	}
	for i := 0; i < numFrames; i++ {
		result.Magnitudes[i] = make([]float64, bins)
		if params.IncludePhase {
			result.Phases[i] = make([]float64, bins)
		}
	}

	if numFrames == 0 {
		return result, nil
	}

	s.logger.Debug("computing spectrogram", logging.Fields{
		"frames":   numFrames,
		"fft_size": params.FFTSize,
		"hop_size": params.HopSize,
	})

	numWorkers := optimalWorkerCount(numFrames)
	jobs := make(chan int, numFrames)

	var wg sync.WaitGroup
	var workerErr error
	var errOnce sync.Once

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each worker owns its transform instance so the shared plan
			// cache never hands the same scratch buffers to two goroutines.
			fftBackend, err := NewFFT(params.FFTSize)
			if err != nil {
				errOnce.Do(func() { workerErr = err })
				return
			}
			frameBuffer := make([]float64, params.FFTSize)

			for frameIdx := range jobs {
				start := frameIdx * params.HopSize
				end := min(start+params.FFTSize, len(signal))

				n := copy(frameBuffer, signal[start:end])
				for i := n; i < len(frameBuffer); i++ {
					frameBuffer[i] = 0
				}

				if err := window.ApplyInPlace(frameBuffer); err != nil {
					errOnce.Do(func() { workerErr = err })
					return
				}

				re, im, err := fftBackend.ForwardReal(frameBuffer)
				if err != nil {
					errOnce.Do(func() { workerErr = err })
					return
				}

				for k := 0; k < bins; k++ {
					result.Magnitudes[frameIdx][k] = math.Hypot(re[k], im[k])
					if params.IncludePhase {
						result.Phases[frameIdx][k] = math.Atan2(im[k], re[k])
					}
				}
			}
		}()
	}

	for frameIdx := 0; frameIdx < numFrames; frameIdx++ {
		jobs <- frameIdx
	}
	close(jobs)

	wg.Wait()

	if workerErr != nil {
		return nil, workerErr
	}

	return result, nil
}

// optimalWorkerCount sizes the frame worker pool to the workload
func optimalWorkerCount(numFrames int) int {
	numCPU := runtime.NumCPU()

	if numFrames < 100 {
		return max(min(numCPU/2, numFrames), 1)
	}
	if numFrames < 1000 {
		return min(numCPU, 8)
	}
	return numCPU
}
