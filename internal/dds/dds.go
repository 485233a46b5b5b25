// Package dds parses the DirectDraw Surface header format used by
// multi-mip replacement textures: magic detection, the legacy and DX10
// extension headers, a fixed DXGI-to-[gpu.TextureFormat] table, and the
// 16-byte-aligned mip offset computation the upload pipeline needs to
// stage a whole mip chain in one buffer.
package dds

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rt64port/texturecache/internal/gpu"
)

// Sentinel errors for the decode-failure paths in spec §7: unknown
// magic, a header too short to parse, or a recognized-but-unsupported
// DXGI format.
var (
	ErrTooShort          = errors.New("dds: data too short for header")
	ErrBadMagic          = errors.New("dds: missing \"DDS \" magic")
	ErrUnsupportedFormat = errors.New("dds: pixel format has no GPU equivalent")
)

const (
	magic           = "DDS "
	legacyHeaderLen = 124 // bytes following the 4-byte magic
	pixelFormatLen  = 32
	dx10HeaderLen   = 20

	// MipAlignment is the byte alignment the staging buffer pads each
	// mip level's destination offset to, matching the original
	// rasterizer's upload buffer layout.
	MipAlignment = 16
)

const fourCCDX10 = "DX10"

// DXGI format codes this package recognizes. The table intentionally
// covers only the formats internal/gpu.TextureFormat can represent
// (plain 8-bit-per-channel RGBA/BGRA); block-compressed formats are
// detected so a malformed-vs-unsupported distinction can be reported,
// but are not decodable by this module's GPU texture layer.
const (
	dxgiR8G8B8A8Unorm uint32 = 28
	dxgiB8G8R8A8Unorm uint32 = 87
	dxgiBC1Unorm      uint32 = 71
	dxgiBC2Unorm      uint32 = 74
	dxgiBC3Unorm      uint32 = 77
	dxgiBC4Unorm      uint32 = 80
	dxgiBC5Unorm      uint32 = 83
	dxgiBC7Unorm      uint32 = 98
)

// legacy FourCC pixel-format codes understood without a DX10 header.
const (
	fourCCDXT1 = "DXT1"
	fourCCDXT3 = "DXT3"
	fourCCDXT5 = "DXT5"
)

// Header is the subset of a parsed DDS file the upload pipeline and
// replacement loader need.
type Header struct {
	Width      int
	Height     int
	MipCount   int
	Format     gpu.TextureFormat
	Compressed bool
	DataOffset int // byte offset into the source buffer where pixel data begins
}

// IsDDS reports whether data begins with the DDS magic.
func IsDDS(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == magic
}

// ParseHeader decodes the legacy DDS header and, when present, the
// DX10 extension header, resolving the pixel format to a
// [gpu.TextureFormat] through the fixed DXGI table.
func ParseHeader(data []byte) (Header, error) {
	if !IsDDS(data) {
		return Header{}, ErrBadMagic
	}
	if len(data) < 4+legacyHeaderLen {
		return Header{}, ErrTooShort
	}

	b := data[4:]
	height := int(binary.LittleEndian.Uint32(b[8:12]))
	width := int(binary.LittleEndian.Uint32(b[12:16]))
	mipCount := int(binary.LittleEndian.Uint32(b[24:28]))
	if mipCount == 0 {
		mipCount = 1
	}

	pf := b[72 : 72+pixelFormatLen]
	pfFlags := binary.LittleEndian.Uint32(pf[4:8])
	fourCC := string(pf[8:12])

	dataOffset := 4 + legacyHeaderLen

	var (
		format     gpu.TextureFormat
		compressed bool
		resolved   bool
	)

	const ddpfFourCC = 0x4

	switch {
	case pfFlags&ddpfFourCC != 0 && fourCC == fourCCDX10:
		if len(data) < dataOffset+dx10HeaderLen {
			return Header{}, ErrTooShort
		}
		dx10 := data[dataOffset : dataOffset+dx10HeaderLen]
		dxgiFormat := binary.LittleEndian.Uint32(dx10[0:4])
		dataOffset += dx10HeaderLen
		format, compressed, resolved = formatFromDXGI(dxgiFormat)

	case pfFlags&ddpfFourCC != 0:
		switch fourCC {
		case fourCCDXT1, fourCCDXT3, fourCCDXT5:
			compressed, resolved = true, true
		}

	default:
		// Uncompressed legacy RGB/RGBA masks. Only the two 32bpp
		// layouts the GPU layer represents are accepted; anything
		// else (16bpp, paletted, luminance) is unsupported.
		rgbBitCount := binary.LittleEndian.Uint32(pf[12:16])
		rMask := binary.LittleEndian.Uint32(pf[16:20])
		bMask := binary.LittleEndian.Uint32(pf[24:28])
		if rgbBitCount == 32 {
			if rMask == 0x000000ff {
				format, resolved = gpu.TextureFormatRGBA8, true
			} else if bMask == 0x000000ff {
				format, resolved = gpu.TextureFormatBGRA8, true
			}
		}
	}

	if !resolved {
		return Header{}, fmt.Errorf("%w: fourCC=%q", ErrUnsupportedFormat, fourCC)
	}
	if compressed {
		return Header{}, fmt.Errorf("%w: block-compressed DDS payloads require GPU block-decode support not present in this backend", ErrUnsupportedFormat)
	}

	return Header{
		Width:      width,
		Height:     height,
		MipCount:   mipCount,
		Format:     format,
		Compressed: compressed,
		DataOffset: dataOffset,
	}, nil
}

// formatFromDXGI maps a DX10 DXGI_FORMAT code to a [gpu.TextureFormat].
// The bool results are (format, isBlockCompressed, recognized).
func formatFromDXGI(code uint32) (gpu.TextureFormat, bool, bool) {
	switch code {
	case dxgiR8G8B8A8Unorm:
		return gpu.TextureFormatRGBA8, false, true
	case dxgiB8G8R8A8Unorm:
		return gpu.TextureFormatBGRA8, false, true
	case dxgiBC1Unorm, dxgiBC2Unorm, dxgiBC3Unorm, dxgiBC4Unorm, dxgiBC5Unorm, dxgiBC7Unorm:
		return 0, true, true
	default:
		return 0, false, false
	}
}

// MipLayout describes where one mip level's bytes live in the source
// image data and where they should land in a padded staging buffer.
type MipLayout struct {
	SrcOffset int
	SrcSize   int
	DstOffset int
}

// PlanMips computes, for each mip level of an uncompressed header, its
// offset within the contiguous post-header image data and its padded
// destination offset in a staging buffer aligned to MipAlignment —
// mirroring the original rasterizer's upload-buffer layout so replacement
// assets produced by the same tooling stage byte-identically.
//
// A mip level whose bytes would run past imageDataSize stops the scan:
// the returned slice holds only mips that actually fit, so a truncated
// or malformed asset (declared dimensions larger than its payload)
// yields fewer layouts — or none, for mip 0 — rather than an offset
// range a caller could slice out of bounds.
func PlanMips(h Header, imageDataSize int) []MipLayout {
	bpp := h.Format.BytesPerPixel()
	layouts := make([]MipLayout, 0, h.MipCount)

	srcOffset := 0
	padding := 0
	for mip := 0; mip < h.MipCount; mip++ {
		w := max(h.Width>>mip, 1)
		ht := max(h.Height>>mip, 1)
		size := w * ht * bpp

		if srcOffset+size > imageDataSize {
			break
		}

		aligned := srcOffset + padding
		if rem := aligned % MipAlignment; rem != 0 {
			padding += MipAlignment - rem
		}

		layouts = append(layouts, MipLayout{
			SrcOffset: srcOffset,
			SrcSize:   size,
			DstOffset: srcOffset + padding,
		})

		srcOffset += size
	}

	return layouts
}

// StagingBufferSize returns the total padded buffer size PlanMips'
// layouts require, given the unpadded image data size.
func StagingBufferSize(layouts []MipLayout, imageDataSize int) int {
	if len(layouts) == 0 {
		return imageDataSize
	}
	last := layouts[len(layouts)-1]
	padding := last.DstOffset - last.SrcOffset
	return imageDataSize + padding
}
