// Package fingerprint computes content-addressed 64-bit hashes of tile
// memory, palette data, and sampling parameters. A fingerprint is the
// key the rest of the cache uses: two fingerprints collide only if
// every hashed input matches, so the decoded RGBA output of a tile is
// a pure function of its fingerprint.
package fingerprint

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// PixelSize enumerates the supported per-pixel bit sizes.
type PixelSize uint8

const (
	Size4b PixelSize = iota
	Size8b
	Size16b
	Size32b
)

// PixelFormat enumerates the supported tile pixel formats.
type PixelFormat uint8

const (
	FormatRGBA PixelFormat = iota
	FormatYUV
	FormatCI
	FormatIA
	FormatI
)

// LoadTile describes the sampling parameters the RDP used to pull a
// tile out of TMEM: the starting word, the line stride, the pixel
// size/format, and the palette bank consulted for indexed formats.
type LoadTile struct {
	TMEMWord uint32
	Line     uint32
	Siz      PixelSize
	Fmt      PixelFormat
	Palette  uint32
}

// TMEMBytes is the size of console tile memory in bytes.
const TMEMBytes = 0x1000

// tmemMask8 covers the full TMEM range; tmemMask16 covers the half
// used per-row when a 32-bit RGBA format splits TMEM in two.
const (
	tmemMask8  = TMEMBytes - 1
	tmemMask16 = (TMEMBytes / 2) - 1
)

// Engine computes fingerprints and tracks which ones have already
// been offered to the decode stage, so the upload pipeline only ever
// sees a given fingerprint once per cache lifetime.
type Engine struct {
	mu   sync.Mutex
	seen map[uint64]struct{}
}

// NewEngine creates a fingerprint engine with an empty dedup set.
func NewEngine() *Engine {
	return &Engine{seen: make(map[uint64]struct{})}
}

// Seen records fp and reports whether this call was the first to see
// it: it returns true the first time a fingerprint is offered and false
// on every later call. See SeenBefore for a read-only check.
func (e *Engine) Seen(fp uint64) (firstTime bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.seen[fp]; ok {
		return false
	}
	e.seen[fp] = struct{}{}
	return true
}

// SeenBefore reports whether fp was already recorded, without
// recording it. Useful for read-only dedup checks.
func (e *Engine) SeenBefore(fp uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.seen[fp]
	return ok
}

// Reset clears the dedup set. Used when the cache is torn down and
// rebuilt (tests, process restarts).
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = make(map[uint64]struct{})
}

// FingerprintTmemRange hashes an unstructured byte range of tmem,
// keyed also by the (offset, count) window. Used for raw TMEM-upload
// traffic that doesn't go through a LoadTile (e.g. uploadTMEM in the
// original rasterizer).
func FingerprintTmemRange(tmem []byte, offset, count int) uint64 {
	d := xxhash.New()
	d.Write(tmem[offset : offset+count])
	writeUint32(d, uint32(offset))
	writeUint32(d, uint32(count))
	return d.Sum64()
}

// FingerprintTile hashes the tile-memory window a LoadTile samples,
// the active palette bytes if clutMode indicates an indexed format,
// and the sampling parameters that affect the decoded RGBA output.
//
// The window is computed exactly as the legacy rasterizer does:
// lastRowBytes accounts for sub-byte pixel packing, and a 32-bit RGBA
// tile additionally hashes the upper half of TMEM (the odd-row half)
// as a second pass at a fixed offset.
func FingerprintTile(tmem []byte, tile LoadTile, width, height int, clutMode uint32) uint64 {
	d := xxhash.New()

	rgba32 := tile.Siz == Size32b && tile.Fmt == FormatRGBA
	tmemSize := TMEMBytes
	tmemMask := tmemMask8
	if rgba32 {
		tmemSize = TMEMBytes / 2
		tmemMask = tmemMask16
	}

	sizForShift := tile.Siz
	if sizForShift > Size16b {
		sizForShift = Size16b
	}
	lastRowBytes := (width << sizForShift) >> 1
	bytesToHash := int(tile.Line<<3)*(height-1) + lastRowBytes
	tmemAddress := int(tile.TMEMWord<<3) & tmemMask

	// hashWindow mirrors the original rasterizer's hashTMEM closure:
	// restartBase is 0 for the low half, tmemSize for the high half
	// (RGBA32 only). The overflow check always compares against the
	// unshifted tmemAddress, since the two halves wrap identically.
	hashWindow := func(restartBase int) {
		base := tmemAddress + restartBase
		if tmemAddress+bytesToHash > tmemSize {
			firstBytes := bytesToHash
			if rem := tmemSize - tmemAddress; rem < firstBytes {
				if rem < 0 {
					rem = 0
				}
				firstBytes = rem
			}
			d.Write(tmem[base : base+firstBytes])
			remaining := bytesToHash - firstBytes
			if remaining > tmemAddress {
				remaining = tmemAddress
			}
			if remaining > 0 {
				d.Write(tmem[restartBase : restartBase+remaining])
			}
		} else {
			d.Write(tmem[base : base+bytesToHash])
		}
	}

	hashWindow(0)

	if rgba32 {
		hashWindow(tmemSize)
	}

	if clutMode > 0 {
		ci4 := tile.Siz == Size4b
		paletteOffset := 0
		hashBytes := 0x800
		if ci4 {
			paletteOffset = int(tile.Palette << 7)
			hashBytes = 0x80
		}
		paletteAddress := (TMEMBytes / 2) + paletteOffset
		d.Write(tmem[paletteAddress : paletteAddress+hashBytes])
	}

	writeUint16(d, uint16(width))
	writeUint16(d, uint16(height))
	writeUint32(d, clutMode)
	writeUint32(d, tile.Line)
	writeUint8(d, uint8(tile.Siz))
	writeUint8(d, uint8(tile.Fmt))

	return d.Sum64()
}

// RequiresRawTmem reports whether the fingerprint window for the given
// tile and dimensions would exceed the effective TMEM size, meaning
// the caller must supply the full TMEM contents rather than just the
// sampled window.
func RequiresRawTmem(tile LoadTile, width, height int) bool {
	rgba32 := tile.Siz == Size32b && tile.Fmt == FormatRGBA
	tmemSize := TMEMBytes
	if rgba32 {
		tmemSize = TMEMBytes / 2
	}

	sizForShift := tile.Siz
	if sizForShift > Size16b {
		sizForShift = Size16b
	}
	lastRowBytes := (width << sizForShift) >> 1
	bytesToHash := int(tile.Line<<3)*(height-1) + lastRowBytes

	return bytesToHash > tmemSize
}

func writeUint8(d *xxhash.Digest, v uint8) {
	d.Write([]byte{v})
}

func writeUint16(d *xxhash.Digest, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	d.Write(b[:])
}

func writeUint32(d *xxhash.Digest, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	d.Write(b[:])
}
