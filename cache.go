package texturecache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rt64port/texturecache/internal/fingerprint"
	"github.com/rt64port/texturecache/internal/gpu"
	"github.com/rt64port/texturecache/internal/replacement"
	"github.com/rt64port/texturecache/internal/texturemap"
	"github.com/rt64port/texturecache/internal/upload"
)

// UploadRequest describes one tile ready for asynchronous GPU upload.
// Tile/Width/Height/ClutMode are only meaningful when a decode pass is
// required; a zero Width or Height queues a raw-bytes-only upload.
type UploadRequest struct {
	Fingerprint   uint64
	CreationFrame uint64
	TMEM          []byte
	Width         int
	Height        int
	ClutMode      uint32
	Tile          fingerprint.LoadTile
}

// Cache is the texture cache facade: it owns the upload pipeline, the
// dense texture slot table, and the replacement asset map, and wires
// the pipeline's hooks into both maps under a single mapMutex. The
// pipeline's own queue mutex stays internal to internal/upload and is
// never taken together with mapMutex.
type Cache struct {
	backend      *gpu.Backend
	fingerprints *fingerprint.Engine
	pipeline     *upload.Pipeline

	mapMutex     sync.Mutex
	textures     *texturemap.Map
	replacements *replacement.Map

	replacementDir string

	gpuTextures     map[uint64]*gpu.GPUTexture
	nextHandle      uint64
	evictedTextures []*texturemap.TextureEntry

	lockCounter atomic.Int64
}

// New creates a Cache bound to backend (nil selects logical/stub-mode
// textures, for offline and test use) and dispatcher (the decode
// compute pipeline binding; nil leaves decode targets allocated but
// unwritten). Call Start before queuing any uploads.
func New(backend *gpu.Backend, dispatcher upload.DecodeDispatcher) *Cache {
	c := &Cache{
		backend:      backend,
		fingerprints: fingerprint.NewEngine(),
		textures:     texturemap.New(),
		replacements: replacement.NewMap(backend),
		gpuTextures:  make(map[uint64]*gpu.GPUTexture),
	}
	c.pipeline = upload.New(backend, dispatcher, upload.Hooks{
		OnUploaded:         c.onUploaded,
		ResolveReplacement: c.resolveReplacement,
	})
	return c
}

// Start launches the background upload worker.
func (c *Cache) Start() {
	c.pipeline.Start()
}

// Shutdown stops the upload worker once the uploads already queued
// have been processed.
func (c *Cache) Shutdown() {
	c.pipeline.Shutdown()
}

// QueueUpload enqueues req for background upload and decode. Per the
// cache's lifetime-dedup invariant, a fingerprint already offered to
// the decode stage once is silently dropped rather than re-queued.
func (c *Cache) QueueUpload(req UploadRequest) error {
	if !c.fingerprints.Seen(req.Fingerprint) {
		return nil
	}

	return c.pipeline.QueueUpload(upload.Request{
		Fingerprint:   req.Fingerprint,
		CreationFrame: req.CreationFrame,
		TMEM:          req.TMEM,
		Width:         req.Width,
		Height:        req.Height,
		ClutMode:      req.ClutMode,
		Tile:          req.Tile,
	})
}

// Flush blocks until every upload queued as of the call has been
// processed and inserted into the texture map.
func (c *Cache) Flush() {
	c.pipeline.Flush()
}

// Use looks up fingerprint under mapMutex, moving its LRU position to
// the head. An unknown fingerprint returns (false, 0, IdentityScale,
// false, false) without touching the LRU.
func (c *Cache) Use(fp uint64, submissionFrame uint64) (found bool, index uint32, scale texturemap.Scale, replaced bool, hasMipmaps bool) {
	c.mapMutex.Lock()
	defer c.mapMutex.Unlock()
	return c.textures.Use(fp, submissionFrame)
}

// UseIndex is the convenience two-value form of Use for callers that
// only need the slot index.
func (c *Cache) UseIndex(fp uint64, submissionFrame uint64) (found bool, index uint32) {
	found, index, _, _, _ = c.Use(fp, submissionFrame)
	return found, index
}

// SetReplacementsEnabled toggles whether Use reports replacements as
// active, without walking or clearing any slot's replacement pointer.
func (c *Cache) SetReplacementsEnabled(enabled bool) {
	c.mapMutex.Lock()
	defer c.mapMutex.Unlock()
	c.textures.SetReplacementsEnabled(enabled)
}

// AddReplacement synchronously loads the replacement asset at
// relativePath (resolved against the loaded replacement directory)
// and attaches it to fingerprint's slot. It reports false on any I/O
// or decode failure, leaving prior state intact.
func (c *Cache) AddReplacement(fp uint64, relativePath string) bool {
	c.mapMutex.Lock()
	defer c.mapMutex.Unlock()

	entry, ok := c.replacements.GetEntry(fp)
	if !ok {
		var err error
		entry, err = c.replacements.LoadFile(relativePath, fp)
		if err != nil {
			Logger().Warn("texturecache: add replacement", "fingerprint", fp, "path", relativePath, "error", err)
			return false
		}
	}

	c.textures.Replace(fp, &texturemap.ReplacementEntry{
		Texture:  c.storeTexture(entry.Texture),
		Width:    entry.Width,
		Height:   entry.Height,
		MipCount: entry.MipCount,
	})
	return true
}

// LoadReplacementDirectory parses dirPath's rt64.json catalog and, for
// autoPath "rice", scans the directory for hash-embedded filenames.
// The directory is remembered for a subsequent SaveReplacementDatabase.
func (c *Cache) LoadReplacementDirectory(dirPath string) error {
	c.mapMutex.Lock()
	defer c.mapMutex.Unlock()

	if err := c.replacements.LoadDirectory(dirPath); err != nil {
		return fmt.Errorf("%w: %w", ErrReplacementDirectoryNotFound, err)
	}
	c.replacementDir = dirPath
	return nil
}

// SaveReplacementDatabase persists the catalog back into the
// directory a prior LoadReplacementDirectory loaded it from, using the
// three-file atomic rename dance.
func (c *Cache) SaveReplacementDatabase() error {
	c.mapMutex.Lock()
	defer c.mapMutex.Unlock()

	if c.replacementDir == "" {
		return ErrDatabaseSaveFailed
	}
	if err := c.replacements.SaveDatabaseToDirectory(c.replacementDir); err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseSaveFailed, err)
	}
	return nil
}

// RemoveUnusedEntriesFromDatabase drops catalog entries with neither an
// explicit path nor an auto-path hit.
func (c *Cache) RemoveUnusedEntriesFromDatabase() {
	c.mapMutex.Lock()
	defer c.mapMutex.Unlock()
	c.replacements.RemoveUnusedEntries()
}

// Evict retires cold texture slots relative to submissionFrame and
// returns their fingerprints. While the lock counter is above zero the
// retired TextureEntries are staged rather than destroyed; DecrementLock
// drains the stage once the counter returns to zero.
func (c *Cache) Evict(submissionFrame uint64) []uint64 {
	c.mapMutex.Lock()
	defer c.mapMutex.Unlock()

	evicted := c.textures.Evict(submissionFrame)
	if len(evicted) == 0 {
		return nil
	}

	if c.lockCounter.Load() > 0 {
		c.evictedTextures = append(c.evictedTextures, evicted...)
	} else {
		c.destroyTextureEntries(evicted)
	}

	fps := make([]uint64, len(evicted))
	for i, e := range evicted {
		fps[i] = e.Fingerprint
	}
	return fps
}

// GetTexture returns the TextureEntry at index, or nil if the slot is
// free. The returned pointer is valid only while the caller's lock
// counter bracket (IncrementLock/DecrementLock) is open.
func (c *Cache) GetTexture(index uint32) *texturemap.TextureEntry {
	c.mapMutex.Lock()
	defer c.mapMutex.Unlock()
	return c.textures.Get(index)
}

// IncrementLock marks the start of a render-thread bracket during
// which returned slot indices and texture handles must stay valid.
// Evictions observed during the bracket are staged, not destroyed.
func (c *Cache) IncrementLock() {
	c.lockCounter.Add(1)
}

// DecrementLock ends a render-thread bracket. When the counter returns
// to zero, every TextureEntry staged by Evict during the bracket is
// destroyed.
func (c *Cache) DecrementLock() {
	if c.lockCounter.Add(-1) != 0 {
		return
	}

	c.mapMutex.Lock()
	defer c.mapMutex.Unlock()
	c.destroyTextureEntries(c.evictedTextures)
	c.evictedTextures = nil
}

// onUploaded is the upload pipeline's OnUploaded hook: it registers
// the raw and decoded GPU textures under opaque handles and inserts a
// TextureEntry into the texture map.
func (c *Cache) onUploaded(result upload.Result) {
	c.mapMutex.Lock()
	defer c.mapMutex.Unlock()

	var rawHandle, decodedHandle uint64
	if result.RawTexture != nil {
		rawHandle = c.storeTexture(result.RawTexture)
	}
	if result.DecodedTexture != nil {
		decodedHandle = c.storeTexture(result.DecodedTexture)
	}

	c.textures.Add(result.Fingerprint, result.CreationFrame, &texturemap.TextureEntry{
		Fingerprint:    result.Fingerprint,
		CreationFrame:  result.CreationFrame,
		DecodedTexture: decodedHandle,
		RawTexture:     rawHandle,
		Width:          result.Width,
		Height:         result.Height,
		MipCount:       1,
	})
}

// resolveReplacement is the upload pipeline's ResolveReplacement hook:
// it looks up a replacement asset path for fp and, if found, loads
// (or reuses an already-loaded) replacement texture and attaches it.
func (c *Cache) resolveReplacement(fp uint64) {
	c.mapMutex.Lock()
	defer c.mapMutex.Unlock()

	relPath := c.replacements.RelativePathForFingerprint(fp)
	if relPath == "" {
		return
	}

	entry, ok := c.replacements.GetEntry(fp)
	if !ok {
		var err error
		entry, err = c.replacements.LoadFile(relPath, fp)
		if err != nil {
			Logger().Warn("texturecache: resolve replacement", "fingerprint", fp, "path", relPath, "error", err)
			return
		}
	}

	c.textures.Replace(fp, &texturemap.ReplacementEntry{
		Texture:  c.storeTexture(entry.Texture),
		Width:    entry.Width,
		Height:   entry.Height,
		MipCount: entry.MipCount,
	})
}

// storeTexture allocates a new opaque handle for tex. Callers must
// hold mapMutex.
func (c *Cache) storeTexture(tex *gpu.GPUTexture) uint64 {
	c.nextHandle++
	h := c.nextHandle
	c.gpuTextures[h] = tex
	return h
}

// destroyTextureEntries closes and forgets the GPU textures behind
// every entry's raw and decoded handles. Callers must hold mapMutex.
func (c *Cache) destroyTextureEntries(entries []*texturemap.TextureEntry) {
	for _, e := range entries {
		if e == nil {
			continue
		}
		c.releaseHandle(e.RawTexture)
		c.releaseHandle(e.DecodedTexture)
	}
}

func (c *Cache) releaseHandle(h uint64) {
	if h == 0 {
		return
	}
	if tex, ok := c.gpuTextures[h]; ok {
		tex.Close()
		delete(c.gpuTextures, h)
	}
}
