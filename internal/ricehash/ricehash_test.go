package ricehash

import "testing"

func TestHashDeterministic(t *testing.T) {
	src := make([]byte, 128)
	for i := range src {
		src[i] = byte(i * 7)
	}

	a := Hash(src, 8, 8, 2, 16)
	b := Hash(src, 8, 8, 2, 16)
	if a != b {
		t.Errorf("Hash not deterministic: %#x != %#x", a, b)
	}
}

func TestHashSensitiveToContent(t *testing.T) {
	a := make([]byte, 64)
	b := make([]byte, 64)
	copy(b, a)
	b[10] = 0xFF

	if Hash(a, 8, 4, 2, 16) == Hash(b, 8, 4, 2, 16) {
		t.Error("Hash should differ when source bytes differ")
	}
}

func TestHashSensitiveToStride(t *testing.T) {
	src := make([]byte, 128)
	for i := range src {
		src[i] = byte(i)
	}

	h1 := Hash(src, 8, 4, 2, 16)
	h2 := Hash(src, 8, 4, 2, 32)
	if h1 == h2 {
		t.Error("Hash should differ when rowStride differs")
	}
}

func TestMaxIndex8b(t *testing.T) {
	src := []byte{0x01, 0x05, 0x02, 0x00}
	if got := MaxIndex8b(src, 4, 1, 4); got != 0x05 {
		t.Errorf("MaxIndex8b() = %#x, want 0x05", got)
	}
}

func TestMaxIndex8bShortCircuits(t *testing.T) {
	src := []byte{0xFF, 0x00, 0x00, 0x00}
	if got := MaxIndex8b(src, 4, 1, 4); got != 0xFF {
		t.Errorf("MaxIndex8b() = %#x, want 0xff", got)
	}
}

func TestMaxIndex4b(t *testing.T) {
	// Packed: byte 0 = nibbles (3, 7); byte 1 = nibbles (1, 2).
	src := []byte{0x37, 0x12}
	if got := MaxIndex4b(src, 4, 1, 2); got != 0x7 {
		t.Errorf("MaxIndex4b() = %#x, want 0x7", got)
	}
}

func TestHashString(t *testing.T) {
	if got := HashString(0xDEADBEEF); got != "deadbeef" {
		t.Errorf("HashString(0xDEADBEEF) = %q, want %q", got, "deadbeef")
	}
	if got := HashString(0); got != "00000000" {
		t.Errorf("HashString(0) = %q, want %q", got, "00000000")
	}
}
