// Package gpu implements ggcalc.Device on a gogpu/wgpu HAL device.
//
// Every program is a fullscreen render pipeline built from the WGSL the
// renderer hands over. Source programs bind two uniforms (frame and
// styles); bytecode programs additionally bind the memory block texture
// and the jump table uniform:
//
//	@group(0) @binding(0) frame:   uniform Frame
//	@group(0) @binding(1) styles:  uniform Styles
//	@group(0) @binding(2) memory:  texture_2d<f32>   (bytecode only, RG32Float)
//	@group(0) @binding(3) jumps:   uniform Jumps     (bytecode only)
//
// The frame and styles buffers are shared by all programs of a Device.
// Memory block uploads build a complete replacement (texture, view and
// bind group) before destroying the previous one, so a failed upload
// leaves the program drawable with its old data.
//
// With validation enabled, WGSL is compiled to SPIR-V with naga before it
// reaches the HAL, and compile errors surface as ggcalc.ErrDeviceCompile
// on every backend, including the noop one.
package gpu
