// Package texturemap implements the dense, slot-recycling table that
// maps content fingerprints to GPU texture entries. Slots are indexed
// by a stable uint32 that is reused from a freelist after eviction, so
// downstream index->descriptor tables never need to shrink or
// renumber. A single doubly-linked LRU list tracks recency with a
// frame-aged eviction rule tuned to the render pipeline's depth.
package texturemap

import (
	"sync/atomic"

	"github.com/rt64port/texturecache/internal/cache"
)

// MinMaxAge is the floor for how many frames a slot must go untouched
// before it becomes eligible for eviction, even if it was only ever
// used once. It exists because in-flight command lists may still hold
// descriptor references to a texture several frames after its last
// logical use; it should be set to roughly twice the GPU's pipelined
// frame depth.
const MinMaxAge = 4

// TextureEntry is the payload a slot owns. The texture cache populates
// this after a tile finishes uploading and decoding.
type TextureEntry struct {
	Fingerprint    uint64
	CreationFrame  uint64
	DecodedTexture uint64 // opaque handle into internal/gpu's texture table
	RawTexture     uint64 // opaque handle to the raw tile-memory texture
	Width          int
	Height         int
	MipCount       int
	DevCopy        []byte // optional developer-mode byte copy of the tile source
}

// ReplacementEntry is the payload a slot points to when a user-supplied
// high-resolution asset has been resolved for its fingerprint.
type ReplacementEntry struct {
	Texture  uint64
	Width    int
	Height   int
	MipCount int
}

// Scale is the (replacement/original) size ratio applied by the
// sampling shader. It is (1,1) whenever no replacement is attached.
type Scale struct {
	X, Y float32
}

// IdentityScale is returned for slots without a replacement.
var IdentityScale = Scale{X: 1, Y: 1}

type slot struct {
	entry       *TextureEntry
	replacement *ReplacementEntry
	scale       Scale
	fingerprint uint64
	version     uint64
	creation    uint64
	node        *cache.ValueLRUNode[uint32, uint64] // value = last-use frame; nil when free
}

// Map is the dense slot table. It is not safe for concurrent use on
// its own: callers (the texture cache facade) must hold mapMutex for
// every method call, matching the two-mutex discipline in the design.
type Map struct {
	slots               []slot
	bySlot              map[uint64]uint32 // fingerprint -> slot index
	freelist            []uint32
	lru                 *cache.ValueLRUList[uint32, uint64]
	globalVers          atomic.Uint64
	replacementsEnabled bool
}

// New creates an empty TextureMap with the replacement map enabled.
func New() *Map {
	return &Map{
		bySlot:              make(map[uint64]uint32),
		lru:                 cache.NewValueLRUList[uint32, uint64](),
		replacementsEnabled: true,
	}
}

// SetReplacementsEnabled toggles whether Use reports a slot's
// replacement as active. Disabling it lets the facade fall back to
// native textures globally (e.g. a user toggle) without having to
// walk every slot and clear its replacement pointer.
func (m *Map) SetReplacementsEnabled(enabled bool) {
	m.replacementsEnabled = enabled
}

// GlobalVersion returns the monotonic counter that increments on every
// slot mutation (add, replace, eviction, and ClearReplacements). Use's
// LRU touch does not change it.
func (m *Map) GlobalVersion() uint64 {
	return m.globalVers.Load()
}

func (m *Map) bumpVersion() uint64 {
	return m.globalVers.Add(1)
}

// Add inserts a new slot for fingerprint, allocating from the
// freelist when possible. It is a silent no-op if the fingerprint is
// already present — duplicate inserts are a caller bug, not a runtime
// error, matching the source's "fails silently, asserted in debug"
// contract.
func (m *Map) Add(fingerprint uint64, creationFrame uint64, entry *TextureEntry) {
	if _, exists := m.bySlot[fingerprint]; exists {
		return
	}

	var idx uint32
	if n := len(m.freelist); n > 0 {
		idx = m.freelist[n-1]
		m.freelist = m.freelist[:n-1]
	} else {
		idx = uint32(len(m.slots))
		m.slots = append(m.slots, slot{})
	}

	s := &m.slots[idx]
	s.entry = entry
	s.replacement = nil
	s.scale = IdentityScale
	s.fingerprint = fingerprint
	s.creation = creationFrame
	s.node = m.lru.PushFront(idx, creationFrame)
	s.version = m.bumpVersion()

	m.bySlot[fingerprint] = idx
}

// Replace attaches a replacement texture to an existing slot and
// recomputes its scale factor. It does nothing if fingerprint is
// absent.
func (m *Map) Replace(fingerprint uint64, replacement *ReplacementEntry) {
	idx, ok := m.bySlot[fingerprint]
	if !ok {
		return
	}

	s := &m.slots[idx]
	s.replacement = replacement
	if replacement != nil && s.entry != nil && s.entry.Width > 0 && s.entry.Height > 0 {
		s.scale = Scale{
			X: float32(replacement.Width) / float32(s.entry.Width),
			Y: float32(replacement.Height) / float32(s.entry.Height),
		}
	} else {
		s.scale = IdentityScale
	}
	s.version = m.bumpVersion()
}

// Use looks up fingerprint, moving its LRU position to the head with
// submissionFrame as the new touch time. The replaced flag is true
// only when the slot has a replacement attached AND the map's
// replacement support is globally enabled; scale still reflects the
// slot's attached replacement regardless, since SetReplacementsEnabled
// is a sampling-time switch, not a reason to forget the scale.
func (m *Map) Use(fingerprint uint64, submissionFrame uint64) (found bool, index uint32, scale Scale, replaced bool, hasMipmaps bool) {
	idx, ok := m.bySlot[fingerprint]
	if !ok {
		return false, 0, IdentityScale, false, false
	}

	s := &m.slots[idx]
	m.lru.MoveToFront(s.node, submissionFrame)

	replaced = s.replacement != nil && m.replacementsEnabled
	hasMipmaps = replaced && s.replacement.MipCount > 1
	return true, idx, s.scale, replaced, hasMipmaps
}

// Evict walks the LRU tail, retiring any slot whose age reaches
// max(lastUse-creation, MinMaxAge). It stops at the first slot touched
// in the current frame (age==0), since those are present-frame
// traffic and must never be dropped. Evicted entries are returned
// (not destroyed) so the caller can stage them behind the lock
// counter.
func (m *Map) Evict(submissionFrame uint64) []*TextureEntry {
	var evicted []*TextureEntry

	for {
		node := m.lru.Oldest()
		if node == nil {
			break
		}

		lastUse := node.Value
		age := submissionFrame - lastUse
		if age == 0 {
			break
		}

		idx := node.Key
		s := &m.slots[idx]
		maxAge := lastUse - s.creation
		if maxAge < MinMaxAge {
			maxAge = MinMaxAge
		}

		if age < maxAge {
			break
		}

		evicted = append(evicted, s.entry)

		delete(m.bySlot, s.fingerprint)
		m.lru.Remove(s.node)
		m.freelist = append(m.freelist, idx)

		s.entry = nil
		s.replacement = nil
		s.scale = IdentityScale
		s.fingerprint = 0
		s.node = nil

		m.bumpVersion()
	}

	return evicted
}

// ClearReplacements nulls out every slot's replacement pointer,
// restoring identity scale, without dropping any TextureEntry.
func (m *Map) ClearReplacements() {
	for i := range m.slots {
		s := &m.slots[i]
		if s.fingerprint == 0 && s.node == nil {
			continue // free slot
		}
		if s.replacement != nil {
			s.replacement = nil
			s.scale = IdentityScale
			s.version = m.bumpVersion()
		}
	}
}

// Len returns the number of live (non-free) slots.
func (m *Map) Len() int {
	return len(m.bySlot)
}

// Cap returns the total number of slots ever allocated, including
// free-listed ones. Used to verify freelist recycling keeps this
// bounded relative to steady-state occupancy.
func (m *Map) Cap() int {
	return len(m.slots)
}

// Get returns the TextureEntry at index, or nil if the slot is free.
func (m *Map) Get(index uint32) *TextureEntry {
	if int(index) >= len(m.slots) {
		return nil
	}
	return m.slots[index].entry
}
