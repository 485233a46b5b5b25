//go:build !nogpu

// Package gpu provides the minimal GPU abstraction the texture cache
// upload pipeline drives: device lifecycle, command encoding, compute
// dispatch, buffers, and textures, on top of the gogpu/wgpu Pure Go
// WebGPU implementation (zero CGO), which supports Vulkan, Metal, and
// DX12 backends depending on the platform.
//
// # Architecture Overview
//
// The upload pipeline moves tile memory bytes onto the GPU, optionally
// decodes them with a compute shader, and leaves a resident texture
// behind for the renderer to sample:
//
//	TMEM bytes -> staging Buffer -> CopyBufferToTexture -> [decode ComputePass] -> GPUTexture
//
// GPUTexture.Upload and UploadRegion perform the staging-buffer step
// only; they record no CopyBufferToTexture command.
//
// Key components:
//
//   - Backend: wgpu instance/adapter/device/queue lifecycle
//   - Buffer: mapped/unmapped GPU buffer wrapper, used for staging uploads
//   - CommandEncoder: records copy and compute-pass commands
//   - ComputePassEncoder: dispatches the TMEM decode shader
//   - GPUTexture: resident texture backing a cached or replacement entry
//
// # Usage
//
// Create and initialize the backend directly:
//
//	b := gpu.NewBackend()
//	if err := b.Init(); err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
// Stage raw tile bytes and upload them into a texture:
//
//	tex, err := gpu.CreateTexture(b, gpu.TextureConfig{
//	    Width:  len(tmemBytes),
//	    Height: 1,
//	    Format: gpu.TextureFormatR8,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := tex.Upload(tmemBytes); err != nil {
//	    log.Fatal(err)
//	}
//
// # Requirements
//
//   - Go 1.25+ (for generic features)
//   - gogpu/wgpu module (github.com/gogpu/wgpu)
//   - A GPU that supports Vulkan, Metal, or DX12 (for actual GPU execution)
//
// # Thread Safety
//
// Backend is safe for concurrent use from multiple goroutines.
// GPUTexture is safe for concurrent reads; its writes (Upload, Close)
// need external synchronization. Internal synchronization is handled
// via mutexes.
//
// # Error Handling
//
// Common errors returned by this package:
//
//   - ErrNotInitialized: Backend must be initialized before use
//   - ErrNoGPU: No compatible GPU found
//   - ErrDeviceLost: GPU device was lost (requires re-initialization)
//   - ErrInvalidDimensions: Width or height is invalid
//   - ErrTextureReleased: Texture has already been closed
//
// # References
//
//   - W3C WebGPU Specification: https://www.w3.org/TR/webgpu/
//   - gogpu Organization: https://github.com/gogpu
//   - gogpu/wgpu: https://github.com/gogpu/wgpu
package gpu
