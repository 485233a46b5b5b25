// Package ricehash implements the 32-bit CRC-flavored reducer the
// legacy Rice/GlideN64-compatible rasterizer used to fingerprint
// texture source bytes, so replacement packs keyed by "rice hashes"
// can be matched against fingerprints computed by
// [github.com/rt64port/texturecache/internal/fingerprint]. It is
// shared by the texture cache's offline companion CLI (cmd/ricehash)
// and has no runtime caller inside the cache itself — rice hashes are
// asset-catalog metadata computed ahead of time, never during play.
package ricehash

import "encoding/binary"

// Hash reduces a row-major byte buffer into a 32-bit CRC using the
// legacy rasterizer's row-by-row XOR/rotate accumulation: each row is
// scanned back to front in 4-byte words, each word XORed with its
// byte offset before folding into a 4-bit-rotated running CRC, and
// each row's final partial word is XORed with the (descending) row
// index before being added in.
//
// width and height describe the pixel-space dimensions; size is the
// tile's pixel-size enumerant (matching [fingerprint.PixelSize]'s
// numeric values: 0=4b, 1=8b, 2=16b, 3=32b) used to derive the byte
// width of a row; rowStride is the buffer's actual row pitch in bytes
// (may exceed the derived byte width due to padding).
func Hash(src []byte, width, height, size, rowStride int) uint32 {
	var crc uint32
	bytesPerLine := (width << size) >> 1

	rowOffset := 0
	for y := height - 1; y >= 0; y-- {
		var word uint32
		for x := bytesPerLine - 4; x >= 0; x -= 4 {
			word = binary.LittleEndian.Uint32(src[rowOffset+x : rowOffset+x+4])
			word ^= uint32(x)
			crc = (crc << 4) + ((crc >> 28) & 15)
			crc += word
		}
		word ^= uint32(y)
		crc += word
		rowOffset += rowStride
	}

	return crc
}

// MaxIndex8b scans an 8-bit CI (palette-indexed) image and returns the
// largest index value present, short-circuiting at 0xFF. Used to size
// the palette hash window to only the entries the texture references.
func MaxIndex8b(src []byte, width, height, rowStride int) uint8 {
	var max uint8
	for y := 0; y < height; y++ {
		row := src[rowStride*y:]
		for x := 0; x < width; x++ {
			if row[x] > max {
				max = row[x]
			}
			if max == 0xFF {
				return max
			}
		}
	}
	return max
}

// MaxIndex4b is MaxIndex8b's 4-bit-packed counterpart: each source
// byte holds two palette indices (high nibble then low nibble).
func MaxIndex4b(src []byte, width, height, rowStride int) uint8 {
	var max uint8
	packedWidth := width >> 1
	for y := 0; y < height; y++ {
		row := src[rowStride*y:]
		for x := 0; x < packedWidth; x++ {
			hi := row[x] >> 4
			lo := row[x] & 0xF
			if hi > max {
				max = hi
			}
			if lo > max {
				max = lo
			}
			if max == 0xF {
				return max
			}
		}
	}
	return max
}

// HashString renders a 32-bit hash as the lowercase, zero-padded
// 8-hex-digit form the rt64.json "hashes.rice" field uses.
func HashString(h uint32) string {
	const hexDigits = "0123456789abcdef"
	var buf [8]byte
	for i := 7; i >= 0; i-- {
		buf[i] = hexDigits[h&0xF]
		h >>= 4
	}
	return string(buf[:])
}
