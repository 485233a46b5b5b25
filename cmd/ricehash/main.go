// Command ricehash is the offline companion tool that merges a
// directory of developer-mode dump sidecars into a replacement
// catalog's rice-compatible hashes. It is entirely separate from the
// runtime cache: the cache never computes a rice hash itself, it only
// ever reads one back out of rt64.json to drive auto-path resolution.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rt64port/texturecache/internal/replacement"
	"github.com/rt64port/texturecache/internal/ricehash"
)

const (
	tileInfoSuffix         = ".tile.json"
	riceInfoSuffix         = ".rice.json"
	riceRdramSuffix        = ".rice.rdram"
	ricePaletteRdramSuffix = ".rice.palette.rdram"
)

// tileInfo is the ".tile.json" sidecar: the draw-time LoadTile fields
// plus the width/height/clutMode the fingerprinter used, exactly as
// [fingerprint.FingerprintTile] consumed them when the dump was made.
type tileInfo struct {
	Siz      uint8  `json:"siz"`
	Fmt      uint8  `json:"fmt"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	ClutMode uint32 `json:"clutMode"`
}

// riceLoadOperation is the ".rice.json" sidecar: just enough of the
// legacy rasterizer's load-operation descriptor to reproduce its
// bytes-per-line computation for a tile-type load, which is the only
// load kind this tool supports (see README note in DESIGN.md).
type riceLoadOperation struct {
	TextureWidth int   `json:"textureWidth"`
	TextureSiz   uint8 `json:"textureSiz"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ricehash <directory>")
		os.Exit(1)
	}

	dir := os.Args[1]
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "ricehash: %q is not a directory\n", dir)
		os.Exit(1)
	}

	if err := run(dir); err != nil {
		fmt.Fprintf(os.Stderr, "ricehash: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string) error {
	db := replacement.NewMap(nil)
	db.SetConfiguration(replacement.Configuration{AutoPath: replacement.AutoPathRice})

	if _, err := os.Stat(filepath.Join(dir, "rt64.json")); err == nil {
		if err := db.LoadCatalogOnly(dir); err != nil {
			return fmt.Errorf("loading existing catalog: %w", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), riceInfoSuffix) {
			continue
		}
		hashName := strings.TrimSuffix(entry.Name(), riceInfoSuffix)

		tex, err := hashOne(dir, hashName)
		if err != nil {
			slog.Warn("ricehash: skipping entry", "hash", hashName, "error", err)
			continue
		}
		db.AddDatabaseEntry(tex)
	}

	if err := db.SaveDatabaseToDirectory(dir); err != nil {
		return fmt.Errorf("saving catalog: %w", err)
	}
	return nil
}

// hashOne computes the rice-compatible hash for one dumped tile and
// returns the catalog entry to merge for it.
func hashOne(dir, hashName string) (replacement.Texture, error) {
	tile, err := readJSON[tileInfo](filepath.Join(dir, hashName+tileInfoSuffix))
	if err != nil {
		return replacement.Texture{}, fmt.Errorf("tile info: %w", err)
	}

	loadOp, err := readJSON[riceLoadOperation](filepath.Join(dir, hashName+riceInfoSuffix))
	if err != nil {
		return replacement.Texture{}, fmt.Errorf("load operation: %w", err)
	}

	rdram, err := os.ReadFile(filepath.Join(dir, hashName+riceRdramSuffix))
	if err != nil {
		return replacement.Texture{}, fmt.Errorf("rdram bytes: %w", err)
	}

	bytesPerLine := (loadOp.TextureWidth << loadOp.TextureSiz) >> 1
	if tile.Height*bytesPerLine > len(rdram) {
		return replacement.Texture{}, fmt.Errorf("rdram too short for %dx%d at %d bytes/line: have %d bytes", tile.Width, tile.Height, bytesPerLine, len(rdram))
	}

	crc := ricehash.Hash(rdram, tile.Width, tile.Height, int(tile.Siz), bytesPerLine)
	riceHash := ricehash.HashString(crc) + "#" + strconv.Itoa(int(tile.Fmt)) + "#" + strconv.Itoa(int(tile.Siz))

	if tile.ClutMode > 0 {
		paletteBytes, err := os.ReadFile(filepath.Join(dir, hashName+ricePaletteRdramSuffix))
		if err != nil {
			return replacement.Texture{}, fmt.Errorf("palette rdram bytes: %w", err)
		}

		const ci4b = 0
		var ciMax uint8
		var paletteRowStride, paletteWidth int
		if tile.Siz == ci4b {
			ciMax = ricehash.MaxIndex4b(rdram, tile.Width, tile.Height, bytesPerLine)
			paletteRowStride = 32
		} else {
			ciMax = ricehash.MaxIndex8b(rdram, tile.Width, tile.Height, bytesPerLine)
			paletteRowStride = 512
		}
		paletteWidth = int(ciMax) + 1

		paletteCRC := ricehash.Hash(paletteBytes, paletteWidth, 1, 2, paletteRowStride)
		riceHash += "#" + ricehash.HashString(paletteCRC)
	}

	return replacement.Texture{
		Load: replacement.LoadStream,
		Life: replacement.LifePool,
		Hashes: replacement.Hashes{
			RT64V1: hashName,
			Rice:   riceHash,
		},
	}, nil
}

func readJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, err
	}
	return v, nil
}
