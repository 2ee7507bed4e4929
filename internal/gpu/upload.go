package gpu

import (
	"fmt"

	"github.com/gogpu/ggcalc"
	"github.com/gogpu/ggcalc/internal/bytecode"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// UploadMemoryBlock replaces the memory block of bytecode program h.
//
// The new texture, view and bind group are all created before the old ones
// are destroyed. On error the program keeps its previous block. A zero
// height uploads a single sentinel row, since zero-sized textures are
// invalid.
func (d *Device) UploadMemoryBlock(h ggcalc.ProgramHandle, data []float32, width, height int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.lookup(h)
	if err != nil {
		return fmt.Errorf("%w: %w", ggcalc.ErrUpload, err)
	}
	if p.backend != ggcalc.BackendBytecode {
		return fmt.Errorf("%w: program %d is a %v program", ggcalc.ErrUpload, h, p.backend)
	}

	rows := max(height, 1)
	limit := d.MaxMemoryBlockHeight()
	if width < 1 || width > limit || rows > limit {
		return fmt.Errorf("%w: block %dx%d exceeds %d", ggcalc.ErrUpload, width, rows, limit)
	}

	block, bg, err := d.createBlock(p, data, width, rows)
	if err != nil {
		d.log().Warn("gpu: memory block upload failed", "handle", uint64(h), "rows", rows, "err", err)
		return fmt.Errorf("%w: %w", ggcalc.ErrUpload, err)
	}

	oldBG, oldBlock := p.bindGroup, p.block
	p.bindGroup, p.block = bg, block
	p.generation++
	d.stats.MemoryBlockBytes = d.stats.MemoryBlockBytes - oldBlock.bytes() + block.bytes()
	d.stats.Uploads++
	if oldBG != nil {
		d.device.DestroyBindGroup(oldBG)
	}
	if oldBlock != nil {
		oldBlock.destroy(d.device)
	}

	d.log().Debug("gpu: memory block uploaded",
		"handle", uint64(h),
		"rows", rows,
		"generation", p.generation)
	return nil
}

// createBlock builds a complete replacement block and its bind group.
// Nothing is left allocated on error.
func (d *Device) createBlock(p *program, data []float32, width, rows int) (*memoryBlock, hal.BindGroup, error) {
	size := hal.Extent3D{Width: uint32(width), Height: uint32(rows), DepthOrArrayLayers: 1} //nolint:gosec // bounded by device limits

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "ggcalc_memory_block",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRG32Float,
		Usage:         gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create texture: %w", err)
	}
	block := &memoryBlock{tex: tex, width: width, height: rows}

	texels := bytecode.EncodeMemoryBlock(data, width, rows)
	err = d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
		texels,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(width * bytecode.BytesPerRow), //nolint:gosec // bounded by device limits
			RowsPerImage: uint32(rows),                         //nolint:gosec // bounded by device limits
		},
		&size,
	)
	if err != nil {
		block.destroy(d.device)
		return nil, nil, fmt.Errorf("write texture: %w", err)
	}

	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "ggcalc_memory_block_view",
		Format:        gputypes.TextureFormatRG32Float,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		block.destroy(d.device)
		return nil, nil, fmt.Errorf("create view: %w", err)
	}
	block.view = view

	bg, err := d.createBindGroup(p, view)
	if err != nil {
		block.destroy(d.device)
		return nil, nil, err
	}
	return block, bg, nil
}

// UploadJumpTable writes the jump table uniform of bytecode program h.
func (d *Device) UploadJumpTable(h ggcalc.ProgramHandle, offsets []uint32, length int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.lookup(h)
	if err != nil {
		return fmt.Errorf("%w: %w", ggcalc.ErrUpload, err)
	}
	if p.backend != ggcalc.BackendBytecode {
		return fmt.Errorf("%w: program %d is a %v program", ggcalc.ErrUpload, h, p.backend)
	}
	if len(offsets) > bytecode.JumpTableCapacity {
		return fmt.Errorf("%w: %d jump targets exceed %d", ggcalc.ErrUpload, len(offsets), bytecode.JumpTableCapacity)
	}

	if err := d.queue.WriteBuffer(p.jumpBuf, 0, bytecode.EncodeJumpTable(offsets, length)); err != nil {
		return fmt.Errorf("%w: write jump table: %w", ggcalc.ErrUpload, err)
	}
	d.stats.Uploads++
	return nil
}

// WriteFrame updates the frame uniform shared by all programs.
func (d *Device) WriteFrame(v ggcalc.Viewport) error {
	return d.writeShared(func() hal.Buffer { return d.frameBuf }, ggcalc.EncodeFrame(v))
}

// WriteStyles updates the styles uniform from a registry snapshot.
func (d *Device) WriteStyles(snapshot []ggcalc.Expression) error {
	return d.writeShared(func() hal.Buffer { return d.stylesBuf }, ggcalc.EncodeStyles(snapshot))
}

func (d *Device) writeShared(buf func() hal.Buffer, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if err := d.ensureSharedBuffers(); err != nil {
		return err
	}
	if err := d.queue.WriteBuffer(buf(), 0, data); err != nil {
		return fmt.Errorf("write uniform: %w", err)
	}
	return nil
}

// Pipeline returns the render pipeline of program h.
func (d *Device) Pipeline(h ggcalc.ProgramHandle) (hal.RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.lookup(h)
	if err != nil {
		return nil, err
	}
	return p.pipeline, nil
}

// BindGroup returns the bind group to set at group 0 when drawing program
// h. Bytecode programs have none until their first memory block upload.
func (d *Device) BindGroup(h ggcalc.ProgramHandle) (hal.BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.lookup(h)
	if err != nil {
		return nil, err
	}
	if p.bindGroup == nil {
		return nil, fmt.Errorf("program %d has no memory block: %w", h, ggcalc.ErrUpload)
	}
	return p.bindGroup, nil
}

// Draw records the fullscreen draw of program h into rp.
func (d *Device) Draw(rp hal.RenderPassEncoder, h ggcalc.ProgramHandle) error {
	pipeline, err := d.Pipeline(h)
	if err != nil {
		return err
	}
	bg, err := d.BindGroup(h)
	if err != nil {
		return err
	}
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, bg, nil)
	rp.Draw(3, 1, 0, 0)
	return nil
}

// BlockInfo reports the memory block of program h: its height in rows and
// how many times it has been replaced.
func (d *Device) BlockInfo(h ggcalc.ProgramHandle) (rows int, generation uint64, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.lookup(h)
	if err != nil {
		return 0, 0, err
	}
	if p.block != nil {
		rows = p.block.height
	}
	return rows, p.generation, nil
}
