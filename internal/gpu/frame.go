package gpu

import (
	"fmt"
	"image"
	"time"

	"github.com/gogpu/ggcalc"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// frameTimeout bounds the wait for an offscreen frame.
const frameTimeout = 5 * time.Second

// copyPitchAlignment is the required BytesPerRow alignment of texture to
// buffer copies.
const copyPitchAlignment = 256

// RenderFrame draws program h over viewport v into an offscreen target
// and reads the pixels back. The frame and styles uniforms are written
// from v and snapshot first. Only 8-bit RGBA and BGRA target formats can
// be read back.
func (d *Device) RenderFrame(h ggcalc.ProgramHandle, v ggcalc.Viewport, snapshot []ggcalc.Expression) (*image.NRGBA, error) {
	if v.Width <= 0 || v.Height <= 0 {
		return nil, fmt.Errorf("gpu: empty viewport %dx%d", v.Width, v.Height)
	}
	swap := false
	switch d.opts.format {
	case gputypes.TextureFormatBGRA8Unorm:
		swap = true
	case gputypes.TextureFormatRGBA8Unorm:
	default:
		return nil, fmt.Errorf("gpu: cannot read back target format %v", d.opts.format)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p, err := d.lookup(h)
	if err != nil {
		return nil, err
	}
	if p.bindGroup == nil {
		return nil, fmt.Errorf("program %d has no memory block: %w", h, ggcalc.ErrUpload)
	}
	if err := d.ensureSharedBuffers(); err != nil {
		return nil, err
	}
	if err := d.queue.WriteBuffer(d.frameBuf, 0, ggcalc.EncodeFrame(v)); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}
	if err := d.queue.WriteBuffer(d.stylesBuf, 0, ggcalc.EncodeStyles(snapshot)); err != nil {
		return nil, fmt.Errorf("write styles: %w", err)
	}

	w, ht := uint32(v.Width), uint32(v.Height) //nolint:gosec // checked positive above
	size := hal.Extent3D{Width: w, Height: ht, DepthOrArrayLayers: 1}
	target, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "ggcalc_target",
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        d.opts.format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create target: %w", err)
	}
	defer d.device.DestroyTexture(target)

	view, err := d.device.CreateTextureView(target, &hal.TextureViewDescriptor{
		Label: "ggcalc_target_view",
	})
	if err != nil {
		return nil, fmt.Errorf("create target view: %w", err)
	}
	defer d.device.DestroyTextureView(view)

	bytesPerRow := w * 4
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(ht)
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "ggcalc_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "ggcalc_encoder"})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("ggcalc_frame"); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "ggcalc_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	rp.SetPipeline(p.pipeline)
	rp.SetBindGroup(0, p.bindGroup, nil)
	rp.Draw(3, 1, 0, 0)
	rp.End()

	encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: target,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	encoder.CopyTextureToBuffer(target, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: ht},
		TextureBase:  hal.ImageCopyTexture{Texture: target, MipLevel: 0},
		Size:         size,
	}})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, frameTimeout)
	if err != nil || !ok {
		return nil, fmt.Errorf("wait for GPU: ok=%v err=%w", ok, err)
	}

	readback := make([]byte, stagingSize)
	if err := d.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}

	img := image.NewNRGBA(image.Rect(0, 0, v.Width, v.Height))
	for row := 0; row < v.Height; row++ {
		src := readback[row*int(alignedBytesPerRow):]
		unpremultiplyRow(img.Pix[row*img.Stride:], src, v.Width, swap)
	}

	d.log().Debug("gpu: frame rendered",
		"handle", uint64(h),
		"width", v.Width,
		"height", v.Height)
	return img, nil
}

// unpremultiplyRow converts n premultiplied RGBA or BGRA pixels to
// straight RGBA.
func unpremultiplyRow(dst, src []byte, n int, swap bool) {
	for i := 0; i < n; i++ {
		s := src[i*4 : i*4+4]
		r, g, b, a := s[0], s[1], s[2], s[3]
		if swap {
			r, b = b, r
		}
		if a != 0 && a != 255 {
			r = uint8(min(int(r)*255/int(a), 255))
			g = uint8(min(int(g)*255/int(a), 255))
			b = uint8(min(int(b)*255/int(a), 255))
		}
		dst[i*4+0], dst[i*4+1], dst[i*4+2], dst[i*4+3] = r, g, b, a
	}
}
