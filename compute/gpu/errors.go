package gpu

import "errors"

var (
	// ErrUnsupportedPlatform means no compatible adapter exists on this
	// machine. Callers recover by staying on the CPU backend.
	ErrUnsupportedPlatform = errors.New("gpu: no compatible adapter on this platform")

	// ErrDeviceAcquisition means an adapter was found but the device
	// request failed. Same recovery path as ErrUnsupportedPlatform.
	ErrDeviceAcquisition = errors.New("gpu: device acquisition failed")
)
