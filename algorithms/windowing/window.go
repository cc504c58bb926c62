package windowing

import (
	"fmt"
	"math"
)

// Type identifies a window function by name
type Type string

const (
	Hann           Type = "hann"
	Hamming        Type = "hamming"
	Blackman       Type = "blackman"
	BlackmanHarris Type = "blackman_harris"
	Rectangular    Type = "rectangular"
)

// Window holds precomputed coefficients for one window size.
// Coefficients are generated once at construction; Apply and ApplyInPlace
// are pure multiplications and safe to share across goroutines.
type Window struct {
	windowType   Type
	size         int
	coefficients []float64
}

// New creates a window of the given type and size. Periodic form
// (denominator N rather than N-1), which is the right choice for STFT
// analysis frames.
func New(windowType Type, size int) (*Window, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}

	w := &Window{
		windowType:   windowType,
		size:         size,
		coefficients: make([]float64, size),
	}

	n := float64(size)
	switch windowType {
	case Hann:
		for i := range w.coefficients {
			w.coefficients[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/n))
		}
	case Hamming:
		for i := range w.coefficients {
			w.coefficients[i] = 0.54 - 0.46*math.Cos(2.0*math.Pi*float64(i)/n)
		}
	case Blackman:
		for i := range w.coefficients {
			x := 2.0 * math.Pi * float64(i) / n
			w.coefficients[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2.0*x)
		}
	case BlackmanHarris:
		for i := range w.coefficients {
			x := 2.0 * math.Pi * float64(i) / n
			w.coefficients[i] = 0.35875 - 0.48829*math.Cos(x) + 0.14128*math.Cos(2.0*x) - 0.01168*math.Cos(3.0*x)
		}
	case Rectangular:
		for i := range w.coefficients {
			w.coefficients[i] = 1.0
		}
	default:
		return nil, fmt.Errorf("unknown window type %q", windowType)
	}

	return w, nil
}

// MustNew is New for known-good arguments; it panics on error.
// Intended for package defaults and tests.
func MustNew(windowType Type, size int) *Window {
	w, err := New(windowType, size)
	if err != nil {
		panic(err)
	}
	return w
}

// Apply applies the window to a signal and returns a new array
func (w *Window) Apply(signal []float64) ([]float64, error) {
	if len(signal) != w.size {
		return nil, fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.size)
	}

	windowed := make([]float64, w.size)
	for i := range signal {
		windowed[i] = signal[i] * w.coefficients[i]
	}

	return windowed, nil
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != w.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), w.size)
	}

	for i := range signal {
		signal[i] *= w.coefficients[i]
	}

	return nil
}

// Coefficients returns a copy of the window coefficients
func (w *Window) Coefficients() []float64 {
	coeffs := make([]float64, len(w.coefficients))
	copy(coeffs, w.coefficients)
	return coeffs
}

// Size returns the window size
func (w *Window) Size() int {
	return w.size
}

// Type returns the window type
func (w *Window) Type() Type {
	return w.windowType
}

// Sum returns the sum of the coefficients. Useful for amplitude
// normalization of spectra, where magnitude scales with window energy.
func (w *Window) Sum() float64 {
	sum := 0.0
	for _, c := range w.coefficients {
		sum += c
	}
	return sum
}
