package gpu

import (
	"fmt"

	"github.com/gogpu/ggcalc"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// program holds the GPU objects of one linked program.
type program struct {
	backend ggcalc.Backend

	shader     hal.ShaderModule
	layout     hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline

	// bindGroup is built at link time for source programs and with each
	// memory block for bytecode programs.
	bindGroup hal.BindGroup

	// Bytecode only.
	jumpBuf hal.Buffer
	block   *memoryBlock
	// generation counts memory block replacements.
	generation uint64
}

// memoryBlock is the RG32Float texture holding one (opcode, operand) pair
// per row.
type memoryBlock struct {
	tex           hal.Texture
	view          hal.TextureView
	width, height int
}

func (b *memoryBlock) bytes() uint64 {
	if b == nil {
		return 0
	}
	return uint64(b.width) * uint64(b.height) * bytesPerTexel //nolint:gosec // dimensions bounded by device limits
}

const bytesPerTexel = 8

// build creates the shader module, bind group layout, pipeline layout and
// render pipeline, plus the jump table buffer for bytecode programs.
// Errors wrap ggcalc.ErrDeviceCompile or ggcalc.ErrDeviceLink; partially
// built objects are left for destroy.
func (p *program) build(d *Device, src hal.ShaderSource) error {
	label := labelFor(p.backend)

	shader, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label + "_shader",
		Source: src,
	})
	if err != nil {
		return fmt.Errorf("%w: create shader module: %w", ggcalc.ErrDeviceCompile, err)
	}
	p.shader = shader

	layout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_layout",
		Entries: layoutEntries(p.backend),
	})
	if err != nil {
		return fmt.Errorf("%w: create bind group layout: %w", ggcalc.ErrDeviceLink, err)
	}
	p.layout = layout

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.layout},
	})
	if err != nil {
		return fmt.Errorf("%w: create pipeline layout: %w", ggcalc.ErrDeviceLink, err)
	}
	p.pipeLayout = pipeLayout

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  label + "_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    d.opts.format,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create render pipeline: %w", ggcalc.ErrDeviceLink, err)
	}
	p.pipeline = pipeline

	if p.backend == ggcalc.BackendSource {
		bg, err := d.createBindGroup(p, nil)
		if err != nil {
			return fmt.Errorf("%w: %w", ggcalc.ErrDeviceLink, err)
		}
		p.bindGroup = bg
		return nil
	}

	jumpBuf, err := d.createBuffer(label+"_jumps", jumpTableSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ggcalc.ErrDeviceLink, err)
	}
	p.jumpBuf = jumpBuf
	return nil
}

// destroy releases all program objects in reverse creation order. Safe to
// call on a partially built program.
func (p *program) destroy(device hal.Device) {
	if p.bindGroup != nil {
		device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
	if p.block != nil {
		p.block.destroy(device)
		p.block = nil
	}
	if p.jumpBuf != nil {
		device.DestroyBuffer(p.jumpBuf)
		p.jumpBuf = nil
	}
	if p.pipeline != nil {
		device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.layout != nil {
		device.DestroyBindGroupLayout(p.layout)
		p.layout = nil
	}
	if p.shader != nil {
		device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

func (b *memoryBlock) destroy(device hal.Device) {
	if b.view != nil {
		device.DestroyTextureView(b.view)
		b.view = nil
	}
	if b.tex != nil {
		device.DestroyTexture(b.tex)
		b.tex = nil
	}
}

func labelFor(b ggcalc.Backend) string {
	if b == ggcalc.BackendBytecode {
		return "ggcalc_bytecode"
	}
	return "ggcalc_source"
}

func layoutEntries(b ggcalc.Backend) []gputypes.BindGroupLayoutEntry {
	uniform := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		}
	}

	entries := []gputypes.BindGroupLayoutEntry{uniform(0), uniform(1)}
	if b != ggcalc.BackendBytecode {
		return entries
	}
	return append(entries,
		gputypes.BindGroupLayoutEntry{
			Binding:    2,
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeUnfilterableFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		},
		uniform(3),
	)
}

// createBindGroup binds the shared uniforms, plus the memory block view
// and jump table for bytecode programs.
func (d *Device) createBindGroup(p *program, view hal.TextureView) (hal.BindGroup, error) {
	entries := []gputypes.BindGroupEntry{
		{Binding: 0, Resource: gputypes.BufferBinding{
			Buffer: d.frameBuf.NativeHandle(), Offset: 0, Size: ggcalc.FrameSize,
		}},
		{Binding: 1, Resource: gputypes.BufferBinding{
			Buffer: d.stylesBuf.NativeHandle(), Offset: 0, Size: ggcalc.StylesSize,
		}},
	}
	if p.backend == ggcalc.BackendBytecode {
		entries = append(entries,
			gputypes.BindGroupEntry{Binding: 2, Resource: gputypes.TextureViewBinding{
				TextureView: view.NativeHandle(),
			}},
			gputypes.BindGroupEntry{Binding: 3, Resource: gputypes.BufferBinding{
				Buffer: p.jumpBuf.NativeHandle(), Offset: 0, Size: jumpTableSize,
			}},
		)
	}

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   labelFor(p.backend) + "_bind_group",
		Layout:  p.layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	return bg, nil
}
