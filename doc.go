// Package texturecache implements the texture cache subsystem of a
// graphics-emulation backend: content-addressed fingerprinting of tile
// memory, an asynchronous GPU upload pipeline, a dense slot-recycling
// texture table with frame-aged LRU eviction, and a replacement-asset
// map that swaps in user-supplied high-resolution textures resolved
// from an on-disk JSON catalog.
//
// # Overview
//
// Render traffic hands the cache raw tile-memory bytes plus sampling
// parameters. The cache fingerprints each block with a 64-bit content
// hash, queues it for background upload and decode, and later resolves
// the same fingerprint to a stable slot index during frame submission.
// Replacement assets — higher-resolution PNG or DDS textures keyed by
// the same fingerprint — are swapped in transparently, with a scale
// factor the sampling shader uses to adjust UV math.
//
// # Quick Start
//
//	cache := texturecache.New(nil, nil)
//	cache.Start()
//	defer cache.Shutdown()
//
//	cache.QueueUpload(texturecache.UploadRequest{
//		Fingerprint: fp,
//		Width:       32,
//		Height:      32,
//	})
//	cache.Flush()
//
//	cache.IncrementLock()
//	if ok, index, scale, replaced, _ := cache.Use(fp, frame); ok {
//		_ = index
//		_ = scale
//		_ = replaced
//	}
//	cache.DecrementLock()
//
// # Architecture
//
// Four collaborators, owned by the [Cache] facade:
//
//   - internal/fingerprint computes the content hash and tracks
//     per-fingerprint dedup state.
//   - internal/upload is the background worker that batches queued
//     uploads into GPU copy/decode passes and reports finished results
//     through a pair of caller-supplied hooks.
//   - internal/texturemap is the dense fingerprint->slot table with
//     freelist-based index reuse and frame-aged LRU eviction.
//   - internal/replacement resolves fingerprints to on-disk
//     replacement assets and owns the parsed rt64.json catalog.
//
// The facade wires the upload pipeline's hooks into the texture map
// and replacement map under its own mutex, matching the two-mutex
// discipline described in DESIGN.md: a tiny queue mutex inside the
// pipeline, and a single map mutex owned here that covers both maps.
//
// # Logging
//
// By default texturecache produces no log output. Call SetLogger to
// enable structured logging via log/slog; the configured logger
// propagates to every sub-package.
package texturecache
