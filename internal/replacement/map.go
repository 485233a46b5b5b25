package replacement

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/draw"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rt64port/texturecache/internal/dds"
	"github.com/rt64port/texturecache/internal/gpu"
)

const catalogName = "rt64.json"

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Entry is a loaded replacement asset: the GPU texture it was decoded
// into plus the dimensions TextureMap needs to compute a scale factor.
type Entry struct {
	RelativePath string
	Fingerprint  uint64
	Texture      *gpu.GPUTexture
	Width        int
	Height       int
	MipCount     int
	Load         Load
	Life         Life
}

// Map is the ReplacementMap: it owns the parsed catalog, the
// filesystem auto-path index, and every replacement asset loaded so
// far. Like [texturemap.Map] it carries no internal lock of its own —
// callers hold the facade's mapMutex for every call.
type Map struct {
	backend       *gpu.Backend
	directoryPath string
	db            Database

	// autoPathMap is populated by resolveAutoPaths under autoPath
	// "rice": rt64v1 fingerprint -> relative path discovered by
	// scanning the directory for "#<hex>_" filenames.
	autoPathMap map[uint64]string

	loadedByPath        map[string]*Entry
	loadedByFingerprint map[uint64]*Entry
}

// NewMap creates an empty ReplacementMap. backend may be nil, which
// produces logical (non-GPU-backed) textures, matching
// [gpu.CreateTexture]'s stub/testing mode.
func NewMap(backend *gpu.Backend) *Map {
	return &Map{
		backend:             backend,
		autoPathMap:         make(map[uint64]string),
		loadedByPath:        make(map[string]*Entry),
		loadedByFingerprint: make(map[uint64]*Entry),
	}
}

// Configuration returns the catalog's auto-path configuration.
func (m *Map) Configuration() Configuration { return m.db.Configuration }

// Textures returns the catalog's texture entries. The slice is owned
// by the map and must not be retained across a ReadDatabase call.
func (m *Map) Textures() []Texture { return m.db.Textures }

// ReadDatabase parses rt64.json from r. On parse failure it resets
// the in-memory database to its zero value and returns false,
// matching the original's "leave database empty, report, return
// false" contract — a malformed catalog is not a fatal error.
func (m *Map) ReadDatabase(r io.Reader) bool {
	data, err := io.ReadAll(r)
	if err != nil {
		slogger().Error("replacement: read database", "error", err)
		m.db = Database{}
		return false
	}

	var db Database
	if err := json.Unmarshal(data, &db); err != nil {
		slogger().Error("replacement: parse database", "error", err)
		m.db = Database{}
		return false
	}

	m.db = db
	return true
}

// SaveDatabase writes the catalog to w as indented JSON.
func (m *Map) SaveDatabase(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&m.db)
}

// SaveDatabaseToDirectory persists the catalog into dirPath/rt64.json
// using the three-file atomic dance: write "rt64.json.new", rename any
// existing "rt64.json" to "rt64.json.old", then rename ".new" onto the
// canonical name. Interrupting between the two renames leaves at worst
// a stale rt64.json plus a valid rt64.json.new, never a torn file.
func (m *Map) SaveDatabaseToDirectory(dirPath string) error {
	canonical := filepath.Join(dirPath, catalogName)
	staged := canonical + ".new"
	backup := canonical + ".old"

	f, err := os.Create(staged)
	if err != nil {
		return err
	}
	if err := m.SaveDatabase(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if _, err := os.Stat(canonical); err == nil {
		if err := os.Rename(canonical, backup); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return os.Rename(staged, canonical)
}

// SetConfiguration overwrites the catalog's configuration block. Used
// by tools that build a catalog from scratch (cmd/ricehash) before any
// file exists to read one from.
func (m *Map) SetConfiguration(c Configuration) {
	m.db.Configuration = c
}

// LoadCatalogOnly reads dirPath/rt64.json without performing the
// "rice" auto-path directory scan LoadDirectory does — for tools that
// only need to read, merge, and rewrite the catalog itself.
func (m *Map) LoadCatalogOnly(dirPath string) error {
	f, err := os.Open(filepath.Join(dirPath, catalogName))
	if err != nil {
		return err
	}
	defer f.Close()

	m.ReadDatabase(f)
	m.directoryPath = dirPath
	return nil
}

// LoadDirectory opens dirPath/rt64.json, parses it, records
// dirPath as the asset root, and — when the catalog's autoPath mode is
// "rice" — scans the directory for hash-embedded filenames.
func (m *Map) LoadDirectory(dirPath string) error {
	f, err := os.Open(filepath.Join(dirPath, catalogName))
	if err != nil {
		return err
	}
	defer f.Close()

	m.ReadDatabase(f)
	m.directoryPath = dirPath

	if m.db.Configuration.AutoPath == AutoPathRice {
		return m.resolveAutoPaths()
	}
	return nil
}

// resolveAutoPaths walks directoryPath for "*.png"/"*.dds" files whose
// name contains "#<hex>_": the hex between the first '#' and the last
// '_' is the rice-hash key. Every database entry whose hashes.rice
// shares that key (compared on the portion before its own '#'
// separator) gets an autoPathMap entry keyed by its rt64v1
// fingerprint.
func (m *Map) resolveAutoPaths() error {
	riceToPath := make(map[string]string)

	err := filepath.WalkDir(m.directoryPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".png" && ext != ".dds" {
			return nil
		}

		name := filepath.Base(path)
		hashStart := strings.IndexByte(name, '#')
		if hashStart < 0 {
			return nil
		}
		hashEnd := strings.LastIndexByte(name, '_')
		if hashEnd <= hashStart {
			return nil
		}

		key := strings.ToLower(name[hashStart+1 : hashEnd])
		rel, relErr := filepath.Rel(m.directoryPath, path)
		if relErr != nil {
			return relErr
		}
		riceToPath[key] = rel
		return nil
	})
	if err != nil {
		return err
	}

	for _, tex := range m.db.Textures {
		if tex.Hashes.Rice == "" || tex.Hashes.RT64V1 == "" {
			continue
		}
		key := strings.ToLower(strings.SplitN(tex.Hashes.Rice, "#", 2)[0])
		rel, ok := riceToPath[key]
		if !ok {
			continue
		}
		m.autoPathMap[FingerprintFromHex(tex.Hashes.RT64V1)] = rel
	}

	return nil
}

// RelativePathForFingerprint resolves fp to an asset path, consulting
// autoPathMap before the database's explicit path field. Empty string
// means no replacement is known for fp.
func (m *Map) RelativePathForFingerprint(fp uint64) string {
	if rel, ok := m.autoPathMap[fp]; ok {
		return rel
	}
	return m.db.PathForFingerprint(fp)
}

// GetEntry returns the already-loaded replacement for fp, if any.
func (m *Map) GetEntry(fp uint64) (*Entry, bool) {
	e, ok := m.loadedByFingerprint[fp]
	return e, ok
}

// LoadFile resolves relPath against the map's directory, reads it,
// and loads it via LoadFromBytes.
func (m *Map) LoadFile(relPath string, fp uint64) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(m.directoryPath, relPath))
	if err != nil {
		return nil, err
	}
	return m.LoadFromBytes(relPath, fp, data)
}

// LoadFromBytes decodes a PNG or DDS asset and uploads it into a GPU
// texture, caching the result under both relPath and fp. Calling it
// again for a relPath already loaded returns ErrDuplicatePath instead
// of re-decoding — callers that want a fresh load must Evict first.
func (m *Map) LoadFromBytes(relPath string, fp uint64, data []byte) (*Entry, error) {
	if _, exists := m.loadedByPath[relPath]; exists {
		return nil, ErrDuplicatePath
	}

	var (
		width, height, mipCount int
		format                  gpu.TextureFormat
		pixels                  []byte
		err                     error
	)

	switch {
	case dds.IsDDS(data):
		width, height, mipCount, format, pixels, err = loadDDS(data)
	case bytes.HasPrefix(data, pngMagic):
		width, height, format, pixels, err = loadPNG(data)
		mipCount = 1
	default:
		return nil, ErrUnknownMagic
	}
	if err != nil {
		return nil, err
	}

	tex, err := gpu.CreateTextureFromBytes(m.backend, width, height, format, pixels, relPath)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		RelativePath: relPath,
		Fingerprint:  fp,
		Texture:      tex,
		Width:        width,
		Height:       height,
		MipCount:     mipCount,
	}

	m.loadedByPath[relPath] = entry
	m.loadedByFingerprint[fp] = entry
	return entry, nil
}

// loadPNG decodes a PNG into a tightly packed RGBA8 buffer, converting
// via image/draw when the source isn't already *image.RGBA —
// mirroring pixmap.go's stdlib-only decode path.
func loadPNG(data []byte) (width, height int, format gpu.TextureFormat, pixels []byte, err error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, 0, 0, nil, err
	}

	bounds := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min.X == 0 && rgba.Rect.Min.Y == 0 && rgba.Stride == bounds.Dx()*4 {
		return bounds.Dx(), bounds.Dy(), gpu.TextureFormatRGBA8, rgba.Pix, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst.Rect.Dx(), dst.Rect.Dy(), gpu.TextureFormatRGBA8, dst.Pix, nil
}

// loadDDS parses a DDS header and returns the mip-0 surface only —
// [gpu.GPUTexture] has no multi-mip representation, so replacement
// assets with a mip chain are uploaded at their base level. The mip
// count is still returned as the header declares it.
func loadDDS(data []byte) (width, height, mipCount int, format gpu.TextureFormat, pixels []byte, err error) {
	header, err := dds.ParseHeader(data)
	if err != nil {
		return 0, 0, 0, 0, nil, err
	}

	imageData := data[header.DataOffset:]
	layouts := dds.PlanMips(header, len(imageData))
	if len(layouts) == 0 {
		return 0, 0, 0, 0, nil, dds.ErrTooShort
	}

	mip0 := layouts[0]
	if mip0.SrcOffset < 0 || mip0.SrcSize < 0 || mip0.SrcOffset+mip0.SrcSize > len(imageData) {
		return 0, 0, 0, 0, nil, dds.ErrTooShort
	}
	pixels = imageData[mip0.SrcOffset : mip0.SrcOffset+mip0.SrcSize]
	return header.Width, header.Height, header.MipCount, header.Format, pixels, nil
}

// RemoveUnusedEntries drops any database entry whose explicit path is
// empty and which has no autoPathMap hit — an entry the directory scan
// can't resolve and the catalog doesn't pin down explicitly.
func (m *Map) RemoveUnusedEntries() {
	kept := m.db.Textures[:0]
	for _, tex := range m.db.Textures {
		if tex.Path != "" {
			kept = append(kept, tex)
			continue
		}
		if tex.Hashes.RT64V1 != "" {
			if _, ok := m.autoPathMap[FingerprintFromHex(tex.Hashes.RT64V1)]; ok {
				kept = append(kept, tex)
				continue
			}
		}
	}
	m.db.Textures = kept
	m.db.BuildHashMaps()
}

// AddDatabaseEntry inserts or overwrites tex in the catalog.
func (m *Map) AddDatabaseEntry(tex Texture) {
	m.db.AddReplacement(tex)
}

// Evict drops any cached Entry for fp, per the spec's best-effort
// advisory contract: it never touches TextureMap, it only forces the
// next LoadFromBytes for this fingerprint to re-decode. The evicted
// Entry is returned (nil if none was loaded) so the caller can close
// its GPU texture once outstanding locks drain.
func (m *Map) Evict(fp uint64) *Entry {
	entry, ok := m.loadedByFingerprint[fp]
	if !ok {
		return nil
	}

	delete(m.loadedByFingerprint, fp)
	delete(m.loadedByPath, entry.RelativePath)
	return entry
}
