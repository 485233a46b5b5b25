//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/core"
)

// Texture-related errors.
var (
	// ErrTextureReleased is returned when operating on a released texture.
	ErrTextureReleased = errors.New("wgpu: texture has been released")

	// ErrTextureSizeMismatch is returned when a buffer doesn't match the
	// texture's expected byte size.
	ErrTextureSizeMismatch = errors.New("wgpu: buffer size does not match texture")

	// ErrNilPixelData is returned when an upload/download pixel buffer is nil.
	ErrNilPixelData = errors.New("wgpu: pixel buffer is nil")

	// ErrTextureReadbackNotSupported is returned when readback is not available.
	ErrTextureReadbackNotSupported = errors.New("wgpu: texture readback not supported (stub)")
)

// TextureFormat represents the pixel format of a GPU texture.
//
// The set covers what the upload pipeline needs: R8 for raw TMEM
// staging, and RGBA8 (R8G8B8A8_UNORM) both for the TMEM decode
// compute pass's output and for loaded replacement/native textures.
type TextureFormat uint8

const (
	// TextureFormatRGBA8 is the standard RGBA format with 8 bits per
	// channel. It is the decode target the TMEM decode compute pass
	// writes into, and the format replacement DDS/PNG assets decode to.
	TextureFormatRGBA8 TextureFormat = iota

	// TextureFormatBGRA8 is BGRA format, often used for surface presentation.
	TextureFormatBGRA8

	// TextureFormatR8 is single-channel 8-bit format, used for raw TMEM bytes.
	TextureFormatR8
)

// String returns a human-readable name for the format.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA8:
		return "RGBA8"
	case TextureFormatBGRA8:
		return "BGRA8"
	case TextureFormatR8:
		return "R8"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// BytesPerPixel returns the number of bytes per pixel for the format.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case TextureFormatRGBA8, TextureFormatBGRA8:
		return 4
	case TextureFormatR8:
		return 1
	default:
		return 4
	}
}

// ToWGPUFormat converts to wgpu gputypes.TextureFormat.
func (f TextureFormat) ToWGPUFormat() gputypes.TextureFormat {
	switch f {
	case TextureFormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm
	case TextureFormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm
	case TextureFormatR8:
		return gputypes.TextureFormatR8Unorm
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

// GPUTexture represents a GPU texture resource used to stage raw TMEM
// bytes, hold a decoded RGBA32 surface, or back a loaded replacement
// asset. It wraps the underlying wgpu texture and exposes byte-buffer
// upload/download instead of a 2D drawing surface type, since the
// texture cache only ever moves opaque pixel bytes in and out.
//
// GPUTexture is safe for concurrent read access. Write operations
// (Upload, Close) should be synchronized externally.
type GPUTexture struct {
	mu sync.RWMutex

	// GPU resource IDs (stub - will be real wgpu handles when available)
	textureID core.TextureID
	viewID    core.TextureViewID

	// Texture properties
	width  int
	height int
	format TextureFormat

	// Memory tracking
	sizeBytes uint64

	// State
	released atomic.Bool
	label    string
}

// TextureConfig holds configuration for creating a new texture.
type TextureConfig struct {
	// Width is the texture width in pixels.
	Width int

	// Height is the texture height in pixels.
	Height int

	// Format is the pixel format.
	Format TextureFormat

	// Label is an optional debug label.
	Label string

	// Usage flags (default: CopySrc | CopyDst | TextureBinding)
	Usage gputypes.TextureUsage
}

// DefaultTextureUsage is the default usage for textures created without specific flags.
const DefaultTextureUsage = gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding

// CreateTexture creates a new GPU texture with the given configuration.
// The texture is uninitialized and should be filled with Upload.
//
// Note: This is a stub implementation. The actual GPU texture creation
// will be implemented when wgpu texture support is complete.
func CreateTexture(backend *Backend, config TextureConfig) (*GPUTexture, error) {
	if config.Width <= 0 || config.Height <= 0 {
		return nil, ErrInvalidDimensions
	}

	// Allow nil backend for stub/testing mode
	// When backend is nil, we create a logical texture without GPU resources
	if backend != nil && !backend.IsInitialized() {
		return nil, ErrNotInitialized
	}

	//nolint:gosec // G115: dimensions are validated positive, overflow is acceptable for this use case
	sizeBytes := uint64(config.Width * config.Height * config.Format.BytesPerPixel())

	_ = config.Usage // acknowledged for future GPU texture creation

	// TODO: Actual wgpu texture creation when available
	//
	// desc := &gputypes.TextureDescriptor{
	//     Label: config.Label,
	//     Size: gputypes.Extent3D{
	//         Width:              uint32(config.Width),
	//         Height:             uint32(config.Height),
	//         DepthOrArrayLayers: 1,
	//     },
	//     MipLevelCount: 1,
	//     SampleCount:   1,
	//     Dimension:     gputypes.TextureDimension2D,
	//     Format:        config.Format.toWGPUFormat(),
	//     Usage:         usage,
	// }
	// textureID, err := core.CreateTexture(backend.Device(), desc)

	tex := &GPUTexture{
		width:     config.Width,
		height:    config.Height,
		format:    config.Format,
		sizeBytes: sizeBytes,
		label:     config.Label,
		// textureID and viewID are zero (stub)
	}

	return tex, nil
}

// CreateTextureFromBytes creates a GPU texture and uploads raw pixel
// bytes to it immediately. Used for replacement textures loaded from
// PNG/DDS assets once they've been decoded into a tightly packed buffer.
func CreateTextureFromBytes(backend *Backend, width, height int, format TextureFormat, data []byte, label string) (*GPUTexture, error) {
	tex, err := CreateTexture(backend, TextureConfig{
		Width:  width,
		Height: height,
		Format: format,
		Label:  label,
	})
	if err != nil {
		return nil, err
	}

	if err := tex.Upload(data); err != nil {
		tex.Close()
		return nil, err
	}

	return tex, nil
}

// Width returns the texture width in pixels.
func (t *GPUTexture) Width() int {
	return t.width
}

// Height returns the texture height in pixels.
func (t *GPUTexture) Height() int {
	return t.height
}

// Format returns the texture format.
func (t *GPUTexture) Format() TextureFormat {
	return t.format
}

// SizeBytes returns the texture size in bytes.
func (t *GPUTexture) SizeBytes() uint64 {
	return t.sizeBytes
}

// Label returns the debug label.
func (t *GPUTexture) Label() string {
	return t.label
}

// IsReleased returns true if the texture has been released.
func (t *GPUTexture) IsReleased() bool {
	return t.released.Load()
}

// TextureID returns the underlying wgpu texture ID.
// Returns a zero ID for stub textures.
func (t *GPUTexture) TextureID() core.TextureID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.textureID
}

// ViewID returns the texture view ID.
// Returns a zero ID for stub textures.
func (t *GPUTexture) ViewID() core.TextureViewID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.viewID
}

// Upload copies a tightly packed pixel buffer into the full extent of
// the texture. len(data) must equal width*height*BytesPerPixel. The
// bytes are staged through a CPU-mapped Buffer before the
// CopyBufferToTexture step, the same path a real wgpu upload takes.
func (t *GPUTexture) Upload(data []byte) error {
	if t.released.Load() {
		return ErrTextureReleased
	}

	if data == nil {
		return ErrNilPixelData
	}

	want := t.width * t.height * t.format.BytesPerPixel()
	if len(data) != want {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrTextureSizeMismatch, want, len(data))
	}

	return t.stageAndCopy(data, 0, 0, t.width, t.height)
}

// UploadRegion uploads a pixel buffer to a sub-rectangle of the texture,
// used for partial mip uploads from a DDS replacement asset.
func (t *GPUTexture) UploadRegion(x, y, width, height int, data []byte) error {
	if t.released.Load() {
		return ErrTextureReleased
	}

	if data == nil {
		return ErrNilPixelData
	}

	if x < 0 || y < 0 || x+width > t.width || y+height > t.height {
		return fmt.Errorf("%w: region (%d,%d)+(%dx%d) exceeds texture bounds (%dx%d)",
			ErrInvalidDimensions, x, y, width, height, t.width, t.height)
	}

	want := width * height * t.format.BytesPerPixel()
	if len(data) != want {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrTextureSizeMismatch, want, len(data))
	}

	return t.stageAndCopy(data, x, y, width, height)
}

// stageAndCopy moves data onto the texture through a CPU-mapped
// staging Buffer: map, memcpy, unmap, then record the copy into the
// texture. This mirrors the package doc's documented upload path
//
//	TMEM bytes -> staging Buffer -> CopyBufferToTexture -> GPUTexture
//
// End-to-end GPU submission is still a stub (see CopyBufferToTexture),
// but the staging buffer's map/write/unmap lifecycle runs for real.
func (t *GPUTexture) stageAndCopy(data []byte, x, y, width, height int) error {
	staging, err := newStagingBuffer(uint64(len(data)), fmt.Sprintf("%s-staging", t.label))
	if err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}
	defer staging.Destroy()

	mapResult := make(chan error, 1)
	err = staging.MapAsync(gputypes.MapModeWrite, 0, uint64(len(data)), func(status BufferMapAsyncStatus) {
		if status != BufferMapAsyncStatusSuccess {
			mapResult <- fmt.Errorf("stage upload: map failed: %s", status)
			return
		}
		mapResult <- nil
	})
	if err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}
	for !staging.PollMapAsync() {
	}
	if err := <-mapResult; err != nil {
		return err
	}

	dst, err := staging.GetMappedRange(0, uint64(len(data)))
	if err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}
	copy(dst, data)

	if err := staging.Unmap(); err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}

	// TODO: submit a CopyBufferToTexture command against this staging
	// buffer once a CoreCommandEncoder is threaded through from the
	// caller's backend; until then the mapped-and-written staging
	// buffer above stands in for the GPU-side copy.
	_ = x
	_ = y
	_ = width
	_ = height

	return nil
}

// Download reads the full texture contents back into a freshly
// allocated byte slice.
//
// Note: This is a stub implementation that returns an error.
// GPU readback requires staging buffers and synchronization.
func (t *GPUTexture) Download() ([]byte, error) {
	if t.released.Load() {
		return nil, ErrTextureReleased
	}

	// TODO: Implement GPU readback when wgpu supports it
	// This requires:
	// 1. Create staging buffer with MapRead usage
	// 2. Copy texture to buffer
	// 3. Map buffer
	// 4. Read data
	// 5. Unmap buffer
	// 6. Destroy staging buffer

	return nil, ErrTextureReadbackNotSupported
}

// Close releases the GPU texture resources.
// The texture should not be used after Close is called.
func (t *GPUTexture) Close() {
	if t.released.Swap(true) {
		return // Already released
	}

	// TODO: Release actual GPU resources when wgpu supports it
	//
	// if !t.viewID.IsZero() {
	//     core.TextureViewDrop(t.viewID)
	// }
	// if !t.textureID.IsZero() {
	//     core.TextureDrop(t.textureID)
	// }

	t.mu.Lock()
	t.textureID = core.TextureID{}
	t.viewID = core.TextureViewID{}
	t.mu.Unlock()
}

// String returns a string representation of the texture.
func (t *GPUTexture) String() string {
	status := "active"
	if t.released.Load() {
		status = "released"
	}
	return fmt.Sprintf("GPUTexture[%s %dx%d %s %d bytes %s]",
		t.label, t.width, t.height, t.format, t.sizeBytes, status)
}
