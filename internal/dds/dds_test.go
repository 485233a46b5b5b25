package dds

import (
	"encoding/binary"
	"testing"

	"github.com/rt64port/texturecache/internal/gpu"
)

// buildLegacyRGBA8 assembles a minimal, spec-valid DDS header for an
// uncompressed 32bpp RGBA image with the given dimensions and mip count.
func buildLegacyRGBA8(t *testing.T, width, height, mips int) []byte {
	t.Helper()

	buf := make([]byte, 4+legacyHeaderLen)
	copy(buf[0:4], magic)
	b := buf[4:]
	binary.LittleEndian.PutUint32(b[0:4], legacyHeaderLen)
	binary.LittleEndian.PutUint32(b[8:12], uint32(height))
	binary.LittleEndian.PutUint32(b[12:16], uint32(width))
	binary.LittleEndian.PutUint32(b[24:28], uint32(mips))

	pf := b[72 : 72+pixelFormatLen]
	binary.LittleEndian.PutUint32(pf[0:4], pixelFormatLen)
	// No DDPF_FOURCC flag: legacy RGB path.
	binary.LittleEndian.PutUint32(pf[12:16], 32) // dwRGBBitCount
	binary.LittleEndian.PutUint32(pf[16:20], 0x000000ff)

	return buf
}

func TestIsDDS(t *testing.T) {
	if !IsDDS([]byte("DDS \x00\x00\x00\x00")) {
		t.Error("expected magic to match")
	}
	if IsDDS([]byte("PNG!")) {
		t.Error("expected non-DDS magic to not match")
	}
	if IsDDS([]byte("DD")) {
		t.Error("expected short input to not match")
	}
}

func TestParseHeaderUncompressedRGBA(t *testing.T) {
	data := buildLegacyRGBA8(t, 64, 32, 3)

	h, err := ParseHeader(data)
	if err != nil {
		t.Fatalf("ParseHeader() error = %v", err)
	}
	if h.Width != 64 || h.Height != 32 {
		t.Errorf("dimensions = %dx%d, want 64x32", h.Width, h.Height)
	}
	if h.MipCount != 3 {
		t.Errorf("MipCount = %d, want 3", h.MipCount)
	}
	if h.Format != gpu.TextureFormatRGBA8 {
		t.Errorf("Format = %v, want RGBA8", h.Format)
	}
	if h.DataOffset != 4+legacyHeaderLen {
		t.Errorf("DataOffset = %d, want %d", h.DataOffset, 4+legacyHeaderLen)
	}
}

func TestParseHeaderBadMagic(t *testing.T) {
	if _, err := ParseHeader([]byte("NOPE")); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestParseHeaderTooShort(t *testing.T) {
	if _, err := ParseHeader([]byte("DDS \x00\x00")); err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestParseHeaderCompressedRejected(t *testing.T) {
	data := buildLegacyRGBA8(t, 64, 64, 1)
	pf := data[4+72 : 4+72+pixelFormatLen]
	binary.LittleEndian.PutUint32(pf[4:8], 0x4) // DDPF_FOURCC
	copy(pf[8:12], fourCCDXT1)

	if _, err := ParseHeader(data); err == nil {
		t.Fatal("expected ErrUnsupportedFormat for block-compressed payload")
	}
}

func TestPlanMipsSingleLevel(t *testing.T) {
	h := Header{Width: 4, Height: 4, MipCount: 1, Format: gpu.TextureFormatRGBA8}
	layouts := PlanMips(h, 4*4*4)
	if len(layouts) != 1 {
		t.Fatalf("got %d layouts, want 1", len(layouts))
	}
	if layouts[0].SrcOffset != 0 || layouts[0].DstOffset != 0 {
		t.Errorf("single-mip layout should start at offset 0, got %+v", layouts[0])
	}
	if layouts[0].SrcSize != 64 {
		t.Errorf("SrcSize = %d, want 64", layouts[0].SrcSize)
	}
}

func TestPlanMipsAlignsSuccessiveLevels(t *testing.T) {
	// 8x8 RGBA8 mip0 is 256 bytes (already 16-aligned); mip1 (4x4) is
	// 64 bytes, also aligned, so padding should stay at zero here. Use
	// an odd top size to force padding on a later level.
	h := Header{Width: 6, Height: 1, MipCount: 3, Format: gpu.TextureFormatRGBA8}
	layouts := PlanMips(h, 6*1*4+3*1*4+1*1*4)
	if len(layouts) != 3 {
		t.Fatalf("got %d layouts, want 3", len(layouts))
	}
	for i, l := range layouts {
		if l.DstOffset%MipAlignment != 0 {
			t.Errorf("mip %d DstOffset %d not %d-byte aligned", i, l.DstOffset, MipAlignment)
		}
		if l.DstOffset < l.SrcOffset {
			t.Errorf("mip %d DstOffset %d < SrcOffset %d", i, l.DstOffset, l.SrcOffset)
		}
	}
}

func TestPlanMipsTruncatesWhenPayloadTooShort(t *testing.T) {
	h := Header{Width: 4, Height: 4, MipCount: 2, Format: gpu.TextureFormatRGBA8}

	// mip0 alone is 64 bytes; only 32 are actually present.
	layouts := PlanMips(h, 32)
	if len(layouts) != 0 {
		t.Fatalf("got %d layouts, want 0 when even mip 0 doesn't fit", len(layouts))
	}

	// mip0 fits (64 bytes) but mip1 (16 bytes) would run past the end.
	layouts = PlanMips(h, 64)
	if len(layouts) != 1 {
		t.Fatalf("got %d layouts, want 1 when only mip 0 fits", len(layouts))
	}
	if layouts[0].SrcOffset+layouts[0].SrcSize > 64 {
		t.Errorf("mip 0 layout %+v exceeds the declared payload size", layouts[0])
	}
}

func TestStagingBufferSizeNoMips(t *testing.T) {
	if got := StagingBufferSize(nil, 128); got != 128 {
		t.Errorf("StagingBufferSize(nil, 128) = %d, want 128", got)
	}
}
