package spectral

import (
	"fmt"
	"sync"

	"github.com/mjibson/go-dsp/fft"
)

// FFT computes forward real-input transforms for one fixed size.
//
// The transform is unnormalized (no 1/N scaling): magnitudes scale with the
// window energy and N, and downstream thresholds depend on that convention.
//
// An instance reuses internal scratch buffers across calls, so concurrent
// use of the same instance must be externally serialized. Independent sizes
// get independent instances via PlanCache.
type FFT struct {
	size int
	re   []float64
	im   []float64
}

// NewFFT creates an FFT backend bound to the given transform size
func NewFFT(size int) (*FFT, error) {
	if size <= 0 {
		return nil, fmt.Errorf("fft size must be positive, got %d", size)
	}
	return &FFT{
		size: size,
		re:   make([]float64, size),
		im:   make([]float64, size),
	}, nil
}

// Size returns the transform size this backend is bound to
func (f *FFT) Size() int {
	return f.size
}

// ForwardReal computes the forward transform of a real signal of exactly
// Size() samples. The returned slices are the instance's scratch buffers
// and are overwritten by the next call; callers that keep results across
// calls must copy them out.
func (f *FFT) ForwardReal(samples []float64) (re, im []float64, err error) {
	if len(samples) != f.size {
		return nil, nil, &InvalidInputLengthError{Want: f.size, Got: len(samples)}
	}

	spectrum := fft.FFTReal(samples)

	for i, c := range spectrum {
		r, j := real(c), imag(c)
		// Canonicalize negative zero so all-zero input produces bins that
		// compare equal to +0.
		if r == 0 {
			r = 0
		}
		if j == 0 {
			j = 0
		}
		f.re[i] = r
		f.im[i] = j
	}

	return f.re, f.im, nil
}

// PlanCache holds at most one FFT backend per transform size. Plans are
// created lazily on first use and never evicted. The cache is owned by
// whoever constructs it (typically a feature.Engine), never a package-level
// singleton, so tests can reset it and independent engines cannot
// cross-talk.
//
// Get is safe for concurrent first use; the FFT instances it returns are
// not, see FFT.
type PlanCache struct {
	mu    sync.Mutex
	plans map[int]*FFT
}

// NewPlanCache creates an empty plan cache
func NewPlanCache() *PlanCache {
	return &PlanCache{
		plans: make(map[int]*FFT),
	}
}

// Get returns the cached backend for size, creating it on first use
func (c *PlanCache) Get(size int) (*FFT, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if plan, ok := c.plans[size]; ok {
		return plan, nil
	}

	plan, err := NewFFT(size)
	if err != nil {
		return nil, err
	}
	c.plans[size] = plan
	return plan, nil
}

// Len returns the number of cached plans
func (c *PlanCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.plans)
}

// Reset discards all cached plans
func (c *PlanCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans = make(map[int]*FFT)
}
