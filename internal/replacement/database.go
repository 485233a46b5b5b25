// Package replacement implements the in-memory model of the rt64.json
// replacement catalog and the ReplacementMap that resolves content
// fingerprints to on-disk assets, loads them into GPU textures, and
// persists the catalog back to disk with an atomic three-file swap.
package replacement

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Load mirrors the original rasterizer's ReplacementLoad enum: when
// during the frame a replacement asset should be brought in.
type Load string

// Load policy values, matching the rt64.json "load" field exactly.
const (
	LoadPreload Load = "preload"
	LoadStream  Load = "stream"
	LoadAsync   Load = "async"
	LoadStall   Load = "stall"
)

// Life mirrors ReplacementLife: how long a loaded asset stays resident
// once nothing currently requests it.
type Life string

// Life policy values, matching the rt64.json "life" field exactly.
const (
	LifePermanent Life = "permanent"
	LifePool      Life = "pool"
	LifeAge       Life = "age"
)

// AutoPath selects the directory auto-resolution strategy: no scan
// ("rt64", explicit paths only) or rice-hash filename matching.
type AutoPath string

// AutoPath values, matching the rt64.json "configuration.autoPath" field.
const (
	AutoPathRT64 AutoPath = "rt64"
	AutoPathRice AutoPath = "rice"
)

// Hashes carries both fingerprint families a texture entry can be
// keyed by: this module's own 64-bit content hash, and the legacy
// rice-compatible CRC used by pre-existing replacement packs.
type Hashes struct {
	RT64V1 string `json:"rt64v1"`
	Rice   string `json:"rice"`
}

// Texture is one entry in the rt64.json "textures" array.
type Texture struct {
	Path   string `json:"path"`
	Load   Load   `json:"load"`
	Life   Life   `json:"life"`
	Hashes Hashes `json:"hashes"`
}

// UnmarshalJSON fills Load and Life with their documented defaults
// ("stream" and "pool") before applying whatever the JSON supplies,
// matching the C++ model's `j.value("load", defaultTexture.load)` style
// defaulting.
func (t *Texture) UnmarshalJSON(data []byte) error {
	type alias Texture
	aux := alias{Load: LoadStream, Life: LifePool}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = Texture(aux)
	return nil
}

// Configuration holds catalog-wide settings.
type Configuration struct {
	AutoPath AutoPath `json:"autoPath"`
}

// UnmarshalJSON defaults AutoPath to "rt64" (no auto-resolution) when
// the field is absent, matching the original default enum value.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	type alias Configuration
	aux := alias{AutoPath: AutoPathRT64}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Configuration(aux)
	return nil
}

// Database is the parsed contents of rt64.json: the auto-path
// configuration plus every known texture entry, indexed by
// fingerprint for O(1) lookup.
type Database struct {
	Configuration Configuration `json:"configuration"`
	Textures      []Texture     `json:"textures"`

	byFingerprint map[uint64]int
}

// UnmarshalJSON decodes the catalog and immediately rebuilds the
// fingerprint index, mirroring from_json's call to buildHashMaps.
func (db *Database) UnmarshalJSON(data []byte) error {
	type alias Database
	aux := alias{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*db = Database(aux)
	db.BuildHashMaps()
	return nil
}

// FingerprintFromHex parses a lowercase 16-hex-digit rt64v1 hash
// string into the raw fingerprint it encodes.
func FingerprintFromHex(s string) uint64 {
	v, _ := strconv.ParseUint(s, 16, 64)
	return v
}

// FingerprintToHex renders a fingerprint as the lowercase 16-hex-digit
// form rt64.json stores.
func FingerprintToHex(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// BuildHashMaps rebuilds the fingerprint -> texture-index index from
// Textures. Entries with an empty or unparsable rt64v1 hash are
// excluded, matching the original's empty-string guard.
func (db *Database) BuildHashMaps() {
	db.byFingerprint = make(map[uint64]int, len(db.Textures))
	for i, tex := range db.Textures {
		if tex.Hashes.RT64V1 == "" {
			continue
		}
		db.byFingerprint[FingerprintFromHex(tex.Hashes.RT64V1)] = i
	}
}

// AddReplacement inserts tex, overwriting any existing entry that
// shares its rt64v1 fingerprint (the catalog's natural key).
func (db *Database) AddReplacement(tex Texture) {
	if db.byFingerprint == nil {
		db.BuildHashMaps()
	}

	if tex.Hashes.RT64V1 != "" {
		fp := FingerprintFromHex(tex.Hashes.RT64V1)
		if idx, ok := db.byFingerprint[fp]; ok {
			db.Textures[idx] = tex
			return
		}
		db.Textures = append(db.Textures, tex)
		db.byFingerprint[fp] = len(db.Textures) - 1
		return
	}

	db.Textures = append(db.Textures, tex)
}

// PathForFingerprint returns the explicit catalog path for fp, or
// empty string if no entry (or no path) is recorded.
func (db *Database) PathForFingerprint(fp uint64) string {
	idx, ok := db.byFingerprint[fp]
	if !ok {
		return ""
	}
	return db.Textures[idx].Path
}
