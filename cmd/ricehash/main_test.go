package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rt64port/texturecache/internal/replacement"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunMergesRiceHash(t *testing.T) {
	dir := t.TempDir()
	hashName := "00000000deadbeef"

	writeJSON(t, filepath.Join(dir, hashName+tileInfoSuffix), tileInfo{
		Siz: 2, Fmt: 0, Width: 4, Height: 4,
	})
	writeJSON(t, filepath.Join(dir, hashName+riceInfoSuffix), riceLoadOperation{
		TextureWidth: 4, TextureSiz: 2,
	})

	rdram := make([]byte, 4*4*4) // 8 bytes/line (4<<2>>1), sized generously
	for i := range rdram {
		rdram[i] = byte(i)
	}
	if err := os.WriteFile(filepath.Join(dir, hashName+riceRdramSuffix), rdram, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := run(dir); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	out, err := os.ReadFile(filepath.Join(dir, "rt64.json"))
	if err != nil {
		t.Fatalf("reading rt64.json: %v", err)
	}

	var db replacement.Database
	if err := json.Unmarshal(out, &db); err != nil {
		t.Fatalf("parsing rt64.json: %v", err)
	}
	if db.Configuration.AutoPath != replacement.AutoPathRice {
		t.Errorf("AutoPath = %q, want %q", db.Configuration.AutoPath, replacement.AutoPathRice)
	}
	if len(db.Textures) != 1 {
		t.Fatalf("len(Textures) = %d, want 1", len(db.Textures))
	}
	tex := db.Textures[0]
	if tex.Hashes.RT64V1 != hashName {
		t.Errorf("RT64V1 = %q, want %q", tex.Hashes.RT64V1, hashName)
	}
	if !strings.HasSuffix(tex.Hashes.Rice, "#0#2") {
		t.Errorf("Rice hash = %q, want suffix \"#0#2\"", tex.Hashes.Rice)
	}
}

func TestRunSkipsUnreadableEntry(t *testing.T) {
	dir := t.TempDir()
	// A .rice.json with no matching .tile.json should be skipped, not
	// fail the whole run.
	writeJSON(t, filepath.Join(dir, "badentry"+riceInfoSuffix), riceLoadOperation{TextureWidth: 4, TextureSiz: 2})

	if err := run(dir); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	out, err := os.ReadFile(filepath.Join(dir, "rt64.json"))
	if err != nil {
		t.Fatalf("reading rt64.json: %v", err)
	}
	var db replacement.Database
	if err := json.Unmarshal(out, &db); err != nil {
		t.Fatalf("parsing rt64.json: %v", err)
	}
	if len(db.Textures) != 0 {
		t.Errorf("len(Textures) = %d, want 0 for an unresolvable entry", len(db.Textures))
	}
}
