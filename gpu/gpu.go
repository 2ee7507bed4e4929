// Package gpu provides the ggcalc.Device implementation on wgpu/hal.
//
// A Device can wrap an open HAL device, a shared device from a
// gpucontext.DeviceProvider (e.g., gogpu), or a device opened here from a
// registered HAL backend:
//
//	dev, closeFn, info, err := gpu.Open(gputypes.BackendVulkan)
//	if err != nil {
//	    return err
//	}
//	defer closeFn()
//	r, err := ggcalc.NewRenderer(dev, nil, ggcalc.WithAutoBackend(info))
package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	gpuimpl "github.com/gogpu/ggcalc/internal/gpu"

	// Register the Vulkan backend with hal.GetBackend.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Device implements ggcalc.Device on a HAL device and queue.
type Device = gpuimpl.Device

// Option configures a Device.
type Option = gpuimpl.Option

// Stats contains resource and activity counters of a Device.
type Stats = gpuimpl.Stats

// ErrClosed is returned by operations on a closed Device.
var ErrClosed = gpuimpl.ErrClosed

// ErrNoAdapter is returned by Open when the backend exposes no adapter.
var ErrNoAdapter = errors.New("gpu: no adapters found")

// Device options.
var (
	WithValidation   = gpuimpl.WithValidation
	WithTargetFormat = gpuimpl.WithTargetFormat
	WithLimits       = gpuimpl.WithLimits
)

// NewDevice creates a Device on an open HAL device and queue. The caller
// keeps ownership of both.
func NewDevice(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	return gpuimpl.New(device, queue, opts...)
}

// NewFromProvider creates a Device on the shared device of provider. The
// provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. When it is a gpucontext.DeviceProvider, its
// surface format becomes the target format unless opts override it.
func NewFromProvider(provider any, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}

	if dp, ok := provider.(gpucontext.DeviceProvider); ok {
		if f := dp.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
			opts = append([]Option{WithTargetFormat(f)}, opts...)
		}
	}
	return gpuimpl.New(device, queue, opts...)
}

// InstanceFactory creates HAL instances. hal.Backend values and noop.API
// both satisfy it.
type InstanceFactory interface {
	CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error)
}

// Open opens a device on the registered HAL backend kind. See OpenWith.
func Open(kind gputypes.Backend, opts ...Option) (*Device, func(), gpucontext.AdapterInfo, error) {
	backend, ok := hal.GetBackend(kind)
	if !ok {
		return nil, nil, gpucontext.AdapterInfo{}, fmt.Errorf("gpu: backend %v not available", kind)
	}
	return OpenWith(backend, opts...)
}

// OpenWith creates an instance from factory, opens its first discrete or
// integrated adapter (or the first adapter) and wraps the device. The
// returned function closes the Device and destroys the HAL device and
// instance. The adapter info feeds ggcalc.WithAutoBackend.
func OpenWith(factory InstanceFactory, opts ...Option) (*Device, func(), gpucontext.AdapterInfo, error) {
	var info gpucontext.AdapterInfo

	instance, err := factory.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, nil, info, fmt.Errorf("gpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, info, ErrNoAdapter
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return nil, nil, info, fmt.Errorf("gpu: open device: %w", err)
	}

	dev, err := gpuimpl.New(openDev.Device, openDev.Queue, append([]Option{WithLimits(limits)}, opts...)...)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, nil, info, err
	}

	info = gpucontext.AdapterInfo{Name: selected.Info.Name, Type: gpucontext.AdapterTypeUnknown}
	switch selected.Info.DeviceType {
	case gputypes.DeviceTypeDiscreteGPU:
		info.Type = gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		info.Type = gpucontext.AdapterTypeIntegrated
	}
	closeFn := func() {
		dev.Close()
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return dev, closeFn, info, nil
}
