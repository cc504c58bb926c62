package spectral

import "fmt"

// InvalidInputLengthError reports a caller-side size mismatch between an
// input buffer and the transform size a backend was built for. It is fatal
// for the call and never retried: the input is wrong, not the engine.
type InvalidInputLengthError struct {
	Want int
	Got  int
}

func (e *InvalidInputLengthError) Error() string {
	return fmt.Sprintf("invalid input length: got %d samples, transform requires %d", e.Got, e.Want)
}
