//go:build !nogpu

package gpu

import "errors"

// Backend-level errors shared across the package.
var (
	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("gpu: backend not initialized")

	// ErrNoGPU is returned when no compatible GPU adapter is available.
	ErrNoGPU = errors.New("gpu: no GPU adapter available")

	// ErrDeviceLost is returned when the GPU device was lost and requires
	// re-initialization.
	ErrDeviceLost = errors.New("gpu: GPU device lost")

	// ErrNotImplemented is returned for stub operations not yet implemented.
	ErrNotImplemented = errors.New("gpu: operation not implemented")

	// ErrInvalidDimensions is returned when a width or height is invalid.
	ErrInvalidDimensions = errors.New("gpu: invalid dimensions")

	// ErrNilHALDevice is returned when a HAL-level operation is called
	// without a device.
	ErrNilHALDevice = errors.New("gpu: hal device is nil")
)
