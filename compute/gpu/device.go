package gpu

import (
	"fmt"
	"sync"

	"github.com/rajveermalviya/go-webgpu/wgpu"

	"github.com/spectrail/spectrail/logging"
)

// deviceHandle bundles the process-wide GPU objects. Created lazily on
// first use, it lives for the process lifetime; there is no teardown.
type deviceHandle struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
}

var (
	deviceMu     sync.Mutex
	sharedDevice *deviceHandle
)

// acquireDevice returns the shared device, creating it on first call.
// Failures are not latched: a later call retries acquisition from scratch,
// so a transient driver error doesn't poison the process.
func acquireDevice() (*deviceHandle, error) {
	deviceMu.Lock()
	defer deviceMu.Unlock()

	if sharedDevice != nil {
		return sharedDevice, nil
	}

	instance := wgpu.CreateInstance(nil)

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreference_HighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedPlatform, err)
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: %v", ErrDeviceAcquisition, err)
	}

	info := adapter.GetProperties()
	logging.Info("gpu device acquired", logging.Fields{
		"adapter": info.Name,
		"backend": info.BackendType,
	})

	sharedDevice = &deviceHandle{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
	}
	return sharedDevice, nil
}
