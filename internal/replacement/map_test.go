package replacement

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestDatabaseJSONRoundTrip(t *testing.T) {
	raw := `{
		"configuration": {"autoPath": "rice"},
		"textures": [
			{"path": "tex/foo.dds", "load": "preload", "life": "permanent", "hashes": {"rt64v1": "00000000deadbeef", "rice": "cafebabe#0#2"}},
			{"path": "", "hashes": {"rice": "11112222#1#0"}}
		]
	}`

	var db Database
	if err := json.Unmarshal([]byte(raw), &db); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if db.Configuration.AutoPath != AutoPathRice {
		t.Errorf("AutoPath = %q, want %q", db.Configuration.AutoPath, AutoPathRice)
	}
	if len(db.Textures) != 2 {
		t.Fatalf("len(Textures) = %d, want 2", len(db.Textures))
	}
	if db.Textures[0].Load != LoadPreload || db.Textures[0].Life != LifePermanent {
		t.Errorf("explicit load/life not preserved: %+v", db.Textures[0])
	}
	if db.Textures[1].Load != LoadStream || db.Textures[1].Life != LifePool {
		t.Errorf("defaults not applied: %+v", db.Textures[1])
	}

	fp := FingerprintFromHex("00000000deadbeef")
	if got := db.PathForFingerprint(fp); got != "tex/foo.dds" {
		t.Errorf("PathForFingerprint() = %q, want %q", got, "tex/foo.dds")
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(&db); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	var roundTripped Database
	if err := json.Unmarshal(buf.Bytes(), &roundTripped); err != nil {
		t.Fatalf("round-trip Unmarshal() error = %v", err)
	}
	if got := roundTripped.PathForFingerprint(fp); got != "tex/foo.dds" {
		t.Errorf("round-tripped PathForFingerprint() = %q, want %q", got, "tex/foo.dds")
	}
}

// buildDDSRGBA8 assembles a minimal single-mip uncompressed RGBA8 DDS
// file (legacy header, no DX10 extension) carrying width*height*4
// bytes of pixel data.
func buildDDSRGBA8(width, height int) []byte {
	const legacyHeaderLen = 124
	const pixelFormatLen = 32

	header := make([]byte, 4+legacyHeaderLen)
	copy(header[0:4], "DDS ")
	b := header[4:]
	binary.LittleEndian.PutUint32(b[0:4], legacyHeaderLen)
	binary.LittleEndian.PutUint32(b[8:12], uint32(height))
	binary.LittleEndian.PutUint32(b[12:16], uint32(width))
	binary.LittleEndian.PutUint32(b[24:28], 1) // mip count

	pf := b[72 : 72+pixelFormatLen]
	binary.LittleEndian.PutUint32(pf[0:4], pixelFormatLen)
	binary.LittleEndian.PutUint32(pf[12:16], 32) // dwRGBBitCount
	binary.LittleEndian.PutUint32(pf[16:20], 0x000000ff)

	pixels := make([]byte, width*height*4)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	return append(header, pixels...)
}

func buildPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: byte(x), G: byte(y), B: 0xff, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestLoadDirectoryExplicitPath(t *testing.T) {
	dir := t.TempDir()
	ddsBytes := buildDDSRGBA8(4, 4)
	if err := os.WriteFile(filepath.Join(dir, "foo.dds"), ddsBytes, 0o644); err != nil {
		t.Fatal(err)
	}

	catalog := `{"configuration": {"autoPath": "rt64"}, "textures": [
		{"path": "foo.dds", "hashes": {"rt64v1": "000000000000abcd"}}
	]}`
	if err := os.WriteFile(filepath.Join(dir, "rt64.json"), []byte(catalog), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewMap(nil)
	if err := m.LoadDirectory(dir); err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}

	fp := FingerprintFromHex("000000000000abcd")
	rel := m.RelativePathForFingerprint(fp)
	if rel != "foo.dds" {
		t.Fatalf("RelativePathForFingerprint() = %q, want %q", rel, "foo.dds")
	}

	entry, err := m.LoadFile(rel, fp)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if entry.Width != 4 || entry.Height != 4 {
		t.Errorf("entry dims = %dx%d, want 4x4", entry.Width, entry.Height)
	}
	if entry.Texture == nil {
		t.Error("expected a non-nil GPU texture even with a nil backend")
	}

	if _, err := m.LoadFromBytes(rel, fp, ddsBytes); err != ErrDuplicatePath {
		t.Errorf("second LoadFromBytes() error = %v, want ErrDuplicatePath", err)
	}

	if got, ok := m.GetEntry(fp); !ok || got != entry {
		t.Error("GetEntry() did not return the cached entry")
	}

	if evicted := m.Evict(fp); evicted != entry {
		t.Error("Evict() did not return the cached entry")
	}
	if _, ok := m.GetEntry(fp); ok {
		t.Error("entry should be gone after Evict()")
	}
}

func TestLoadDirectoryAutoPathRice(t *testing.T) {
	dir := t.TempDir()
	assetDir := filepath.Join(dir, "assets")
	if err := os.MkdirAll(assetDir, 0o755); err != nil {
		t.Fatal(err)
	}
	pngBytes := buildPNG(t, 2, 2)
	assetPath := filepath.Join(assetDir, "Mario#DEADBEEF_ciTex.png")
	if err := os.WriteFile(assetPath, pngBytes, 0o644); err != nil {
		t.Fatal(err)
	}

	catalog := `{"configuration": {"autoPath": "rice"}, "textures": [
		{"path": "", "hashes": {"rt64v1": "0000000011112222", "rice": "deadbeef#0#2"}}
	]}`
	if err := os.WriteFile(filepath.Join(dir, "rt64.json"), []byte(catalog), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewMap(nil)
	if err := m.LoadDirectory(dir); err != nil {
		t.Fatalf("LoadDirectory() error = %v", err)
	}

	fp := FingerprintFromHex("0000000011112222")
	want := filepath.Join("assets", "Mario#DEADBEEF_ciTex.png")
	if got := m.RelativePathForFingerprint(fp); got != want {
		t.Errorf("RelativePathForFingerprint() = %q, want %q", got, want)
	}

	entry, err := m.LoadFile(want, fp)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if entry.Width != 2 || entry.Height != 2 {
		t.Errorf("entry dims = %dx%d, want 2x2", entry.Width, entry.Height)
	}
}

func TestSaveDatabaseToDirectoryAtomicDance(t *testing.T) {
	dir := t.TempDir()
	m := NewMap(nil)
	m.AddDatabaseEntry(Texture{Path: "a.png", Hashes: Hashes{RT64V1: "0000000000000001"}})

	if err := m.SaveDatabaseToDirectory(dir); err != nil {
		t.Fatalf("first SaveDatabaseToDirectory() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "rt64.json.old")); !os.IsNotExist(err) {
		t.Error("expected no .old backup after the first save")
	}

	m.AddDatabaseEntry(Texture{Path: "b.png", Hashes: Hashes{RT64V1: "0000000000000002"}})
	if err := m.SaveDatabaseToDirectory(dir); err != nil {
		t.Fatalf("second SaveDatabaseToDirectory() error = %v", err)
	}

	oldData, err := os.ReadFile(filepath.Join(dir, "rt64.json.old"))
	if err != nil {
		t.Fatalf("reading .old backup: %v", err)
	}
	if !bytes.Contains(oldData, []byte("a.png")) || bytes.Contains(oldData, []byte("b.png")) {
		t.Error(".old backup should contain the first save's contents only")
	}

	canonical, err := os.ReadFile(filepath.Join(dir, "rt64.json"))
	if err != nil {
		t.Fatalf("reading canonical catalog: %v", err)
	}
	if !bytes.Contains(canonical, []byte("b.png")) {
		t.Error("canonical rt64.json should contain the latest save")
	}
	if _, err := os.Stat(filepath.Join(dir, "rt64.json.new")); !os.IsNotExist(err) {
		t.Error("staged .new file should not survive a successful save")
	}
}

func TestLoadFromBytesUnknownMagic(t *testing.T) {
	m := NewMap(nil)
	_, err := m.LoadFromBytes("garbage.bin", 1, []byte("not an image"))
	if err != ErrUnknownMagic {
		t.Errorf("LoadFromBytes() error = %v, want ErrUnknownMagic", err)
	}
}

func TestLoadFromBytesTruncatedDDSReturnsErrorNotPanic(t *testing.T) {
	full := buildDDSRGBA8(8, 8)
	truncated := full[:len(full)-16] // chop off part of the declared pixel payload

	m := NewMap(nil)
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("LoadFromBytes() panicked on truncated DDS: %v", r)
		}
	}()

	if _, err := m.LoadFromBytes("broken.dds", 1, truncated); err == nil {
		t.Error("LoadFromBytes() with a truncated DDS payload should return an error, got nil")
	}
}

func TestRemoveUnusedEntries(t *testing.T) {
	m := NewMap(nil)
	m.AddDatabaseEntry(Texture{Path: "kept.png", Hashes: Hashes{RT64V1: "0000000000000001"}})
	m.AddDatabaseEntry(Texture{Path: "", Hashes: Hashes{RT64V1: "0000000000000002"}})
	m.autoPathMap[FingerprintFromHex("0000000000000002")] = "resolved/via/scan.png"
	m.AddDatabaseEntry(Texture{Path: "", Hashes: Hashes{RT64V1: "0000000000000003"}})

	m.RemoveUnusedEntries()

	if len(m.Textures()) != 2 {
		t.Fatalf("len(Textures()) = %d, want 2", len(m.Textures()))
	}
	for _, tex := range m.Textures() {
		if tex.Hashes.RT64V1 == "0000000000000003" {
			t.Error("unresolved entry with empty path should have been pruned")
		}
	}
}
