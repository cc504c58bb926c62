package gpu

import (
	"fmt"
	"time"

	"github.com/rajveermalviya/go-webgpu/wgpu"
)

// kernelRun owns the resources of a single dispatch. Callers defer
// res.releaseAll immediately after newRun so every allocation is released
// on success and failure paths alike.
type kernelRun struct {
	handle *deviceHandle
	res    resourceSet
}

func (b *Backend) newRun() *kernelRun {
	return &kernelRun{handle: b.handle}
}

func (r *kernelRun) storageInput(label string, data []float32) (*wgpu.Buffer, error) {
	buf, err := r.handle.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: wgpu.ToBytes(data),
		Usage:    wgpu.BufferUsage_Storage,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s buffer: %w", label, err)
	}
	r.res.add(buf)
	return buf, nil
}

func (r *kernelRun) uniform(label string, words []uint32) (*wgpu.Buffer, error) {
	buf, err := r.handle.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: wgpu.ToBytes(words),
		Usage:    wgpu.BufferUsage_Uniform,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s uniform: %w", label, err)
	}
	r.res.add(buf)
	return buf, nil
}

func (r *kernelRun) storageOutput(label string, byteSize uint64) (*wgpu.Buffer, error) {
	buf, err := r.handle.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  byteSize,
		Usage: wgpu.BufferUsage_Storage | wgpu.BufferUsage_CopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s buffer: %w", label, err)
	}
	r.res.add(buf)
	return buf, nil
}

func (r *kernelRun) pipeline(label, code string) (*wgpu.ComputePipeline, error) {
	shader, err := r.handle.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("compiling %s shader: %w", label, err)
	}
	r.res.add(shader)

	pipeline, err := r.handle.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: label,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shader,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating %s pipeline: %w", label, err)
	}
	r.res.add(pipeline)
	return pipeline, nil
}

// bindGroup binds the buffers in order to bindings 0..n-1 of group 0
func (r *kernelRun) bindGroup(pipeline *wgpu.ComputePipeline, buffers ...*wgpu.Buffer) (*wgpu.BindGroup, error) {
	layout := pipeline.GetBindGroupLayout(0)
	r.res.add(layout)

	entries := make([]wgpu.BindGroupEntry, len(buffers))
	for i, buf := range buffers {
		entries[i] = wgpu.BindGroupEntry{
			Binding: uint32(i),
			Buffer:  buf,
			Size:    wgpu.WholeSize,
		}
	}

	group, err := r.handle.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("creating bind group: %w", err)
	}
	r.res.add(group)
	return group, nil
}

// execute encodes one compute pass, submits it, and reads every output
// buffer back to the host. The returned duration is submit-to-readback
// wall clock, recorded for diagnostics on every call.
func (r *kernelRun) execute(pipeline *wgpu.ComputePipeline, group *wgpu.BindGroup, x, y, z uint32, outputs ...*wgpu.Buffer) ([][]float32, time.Duration, error) {
	device := r.handle.device

	stagings := make([]*wgpu.Buffer, len(outputs))
	for i, out := range outputs {
		staging, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "staging",
			Size:  out.GetSize(),
			Usage: wgpu.BufferUsage_MapRead | wgpu.BufferUsage_CopyDst,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("creating staging buffer: %w", err)
		}
		r.res.add(staging)
		stagings[i] = staging
	}

	encoder, err := device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating command encoder: %w", err)
	}
	r.res.add(encoder)

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.DispatchWorkgroups(x, y, z)
	pass.End()
	r.res.add(pass)

	for i, out := range outputs {
		encoder.CopyBufferToBuffer(out, 0, stagings[i], 0, out.GetSize())
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, 0, fmt.Errorf("encoding commands: %w", err)
	}
	r.res.add(cmd)

	start := time.Now()
	r.handle.queue.Submit(cmd)

	remaining := len(stagings)
	var mapErr error
	for i, staging := range stagings {
		err := staging.MapAsync(wgpu.MapMode_Read, 0, staging.GetSize(), func(status wgpu.BufferMapAsyncStatus) {
			remaining--
			if status != wgpu.BufferMapAsyncStatus_Success && mapErr == nil {
				mapErr = fmt.Errorf("mapping output %d for readback: status %v", i, status)
			}
		})
		if err != nil {
			return nil, 0, fmt.Errorf("requesting readback: %w", err)
		}
	}
	for remaining > 0 {
		device.Poll(true, nil)
	}
	elapsed := time.Since(start)
	if mapErr != nil {
		return nil, 0, mapErr
	}

	results := make([][]float32, len(stagings))
	for i, staging := range stagings {
		data := staging.GetMappedRange(0, uint(staging.GetSize()))
		results[i] = append([]float32(nil), wgpu.FromBytes[float32](data)...)
		staging.Unmap()
	}

	return results, elapsed, nil
}
