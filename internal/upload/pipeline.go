// Package upload implements the background worker that coalesces
// queued tile-memory uploads into GPU batches: one raw tile texture
// per entry, an optional decode dispatch into an R8G8B8A8_UNORM
// target, and a replacement-resolution pass over every fingerprint
// that finished decoding. It mirrors the two-mutex, two-condition-variable worker
// loop described for the original rasterizer's upload thread, with
// the TextureMap/ReplacementMap bookkeeping delegated to caller-supplied
// hooks so this package depends only on internal/gpu and
// internal/fingerprint.
package upload

import (
	"fmt"
	"sync"

	"github.com/rt64port/texturecache/internal/fingerprint"
	"github.com/rt64port/texturecache/internal/gpu"
)

// Request is one queued tile upload: the raw tile-memory bytes plus
// everything the decode dispatch needs to reproduce the tile's RGBA
// output.
type Request struct {
	Fingerprint   uint64
	CreationFrame uint64
	TMEM          []byte
	Width         int
	Height        int
	ClutMode      uint32
	Tile          fingerprint.LoadTile
}

// Result is what a processed Request produces: the raw tile texture
// always, and — when Width/Height are nonzero — a decoded RGBA8
// texture the decode dispatcher wrote into.
type Result struct {
	Fingerprint    uint64
	CreationFrame  uint64
	RawTexture     *gpu.GPUTexture
	DecodedTexture *gpu.GPUTexture
	Width          int
	Height         int
}

// DecodeParams carries everything the decode compute shader's push
// constants need, matching spec §4.2 step 3c's fixed argument order.
type DecodeParams struct {
	Width, Height int
	Format        fingerprint.PixelFormat
	Siz           fingerprint.PixelSize
	Address       uint32
	Stride        uint32
	ClutMode      uint32
	Palette       uint32
}

// DecodeDispatcher binds the decode compute pipeline and issues one
// dispatch per tile. The decode shader itself is out of scope for
// this module (spec §1): callers supply a dispatcher that knows how
// to bind the concrete pipeline and descriptor set; when the pipeline
// has a backend, this package only guarantees the dispatcher runs once
// per non-raw upload, inside a single compute pass, after the raw and
// decode textures both exist. With a nil backend it is not called.
type DecodeDispatcher interface {
	Dispatch(pass *gpu.ComputePassEncoder, raw, decoded *gpu.GPUTexture, params DecodeParams) error
}

// Hooks are the facade's callbacks into the locked TextureMap and
// ReplacementMap. They run on the worker goroutine, once per request
// right after that request's own GPU work has been recorded (not after
// the whole batch), never while the worker holds queueMutex.
type Hooks struct {
	// OnUploaded is called once per successfully processed Request, so
	// the facade can Add the resulting entry into its TextureMap.
	OnUploaded func(Result)

	// ResolveReplacement is called once per Result that produced a
	// decoded texture, so the facade can look up and, if necessary,
	// load a replacement asset for that fingerprint under its own
	// locking.
	ResolveReplacement func(fingerprint uint64)
}

// Pipeline is the background upload worker. Its one queue, "uploads",
// is guarded by a single mutex and two condition variables: workCond
// wakes the worker when uploads becomes non-empty (or on shutdown), and
// emptyCond wakes Flush callers once the queue has drained. Replacement
// lookups have no queue of their own: the worker calls
// Hooks.ResolveReplacement directly for each decoded result.
type Pipeline struct {
	backend    *gpu.Backend
	dispatcher DecodeDispatcher
	hooks      Hooks

	mu        sync.Mutex
	workCond  *sync.Cond
	emptyCond *sync.Cond
	uploads   []Request
	running   bool
	started   bool
	done      chan struct{}
}

// New creates a Pipeline bound to backend (may be nil for logical/
// stub-mode textures) with the given decode dispatcher (may be nil,
// in which case decode targets are allocated but never written) and
// facade hooks.
func New(backend *gpu.Backend, dispatcher DecodeDispatcher, hooks Hooks) *Pipeline {
	p := &Pipeline{
		backend:    backend,
		dispatcher: dispatcher,
		hooks:      hooks,
		done:       make(chan struct{}),
	}
	p.workCond = sync.NewCond(&p.mu)
	p.emptyCond = sync.NewCond(&p.mu)
	return p
}

// Start launches the worker goroutine. Calling Start more than once
// is a no-op.
func (p *Pipeline) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.running = true
	p.mu.Unlock()

	go p.run()
}

// QueueUpload appends req to the pending batch and wakes the worker.
// Callers are responsible for fingerprint-level dedup before calling
// this (spec §4.2's "Ordering" — the pipeline sees each fingerprint at
// most once because the caller filters via its FingerprintEngine).
func (p *Pipeline) QueueUpload(req Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return ErrPipelineClosed
	}
	p.uploads = append(p.uploads, req)
	p.workCond.Signal()
	return nil
}

// Flush blocks until every queued upload as of the call has been
// processed. It has no timeout, matching spec §5's "callers must wait
// to completion" contract.
func (p *Pipeline) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.uploads) > 0 {
		p.emptyCond.Wait()
	}
}

// Shutdown stops the worker and waits for it to exit. QueueUpload is
// refused from this point on; uploads already queued are still
// processed before the worker exits.
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	if !p.started {
		p.running = false
		p.mu.Unlock()
		return
	}
	p.running = false
	p.workCond.Broadcast()
	p.mu.Unlock()

	<-p.done
}

func (p *Pipeline) run() {
	defer close(p.done)

	for {
		p.mu.Lock()
		for len(p.uploads) == 0 && p.running {
			p.workCond.Wait()
		}
		if len(p.uploads) == 0 && !p.running {
			p.mu.Unlock()
			return
		}

		batch := p.uploads
		p.mu.Unlock()

		for _, req := range batch {
			result, ok := p.processOne(req)
			if !ok {
				continue
			}
			if p.hooks.OnUploaded != nil {
				p.hooks.OnUploaded(result)
			}
			if result.DecodedTexture != nil && p.hooks.ResolveReplacement != nil {
				p.hooks.ResolveReplacement(result.Fingerprint)
			}
		}

		p.mu.Lock()
		p.uploads = p.uploads[len(batch):]
		if len(p.uploads) == 0 {
			p.emptyCond.Broadcast()
		}
		p.mu.Unlock()
	}
}

// processOne allocates the raw tile texture, copies the tile bytes
// into it, and — for tile uploads with known dimensions — allocates
// an R8G8B8A8_UNORM decode target and runs the decode dispatcher over
// it. Any failure frees whatever was allocated and reports ok=false
// (spec §7's decode-failure contract: free the partial entry, never panic).
func (p *Pipeline) processOne(req Request) (Result, bool) {
	rawLen := len(req.TMEM)
	if rawLen == 0 {
		rawLen = 1
	}

	rawTex, err := gpu.CreateTexture(p.backend, gpu.TextureConfig{
		Width:  rawLen,
		Height: 1,
		Format: gpu.TextureFormatR8,
		Label:  fmt.Sprintf("tile-raw-%016x", req.Fingerprint),
	})
	if err != nil {
		slogger().Error("upload: create raw texture", "fingerprint", req.Fingerprint, "error", err)
		return Result{}, false
	}
	if len(req.TMEM) > 0 {
		if err := rawTex.Upload(req.TMEM); err != nil {
			slogger().Error("upload: upload raw tile bytes", "fingerprint", req.Fingerprint, "error", err)
			rawTex.Close()
			return Result{}, false
		}
	}

	result := Result{
		Fingerprint:   req.Fingerprint,
		CreationFrame: req.CreationFrame,
		RawTexture:    rawTex,
	}

	if req.Width <= 0 || req.Height <= 0 {
		return result, true
	}

	decodeTex, err := gpu.CreateTexture(p.backend, gpu.TextureConfig{
		Width:  req.Width,
		Height: req.Height,
		Format: gpu.TextureFormatRGBA8,
		Label:  fmt.Sprintf("tile-decoded-%016x", req.Fingerprint),
	})
	if err != nil {
		slogger().Error("upload: create decode texture", "fingerprint", req.Fingerprint, "error", err)
		rawTex.Close()
		return Result{}, false
	}

	if p.dispatcher != nil && p.backend != nil {
		if err := p.dispatchDecode(rawTex, decodeTex, req); err != nil {
			slogger().Error("upload: dispatch decode", "fingerprint", req.Fingerprint, "error", err)
			rawTex.Close()
			decodeTex.Close()
			return Result{}, false
		}
	}

	result.DecodedTexture = decodeTex
	result.Width = req.Width
	result.Height = req.Height
	return result, true
}

// dispatchDecode opens a single compute pass and hands it to the
// configured DecodeDispatcher, matching spec §4.2 step 3c: one pass,
// one SetPipeline/SetBindGroup/Dispatch triple per non-raw upload.
func (p *Pipeline) dispatchDecode(rawTex, decodeTex *gpu.GPUTexture, req Request) error {
	encoder, err := gpu.NewCoreCommandEncoder(p.backend, fmt.Sprintf("decode-%016x", req.Fingerprint))
	if err != nil {
		return err
	}

	pass, err := encoder.BeginComputePass(nil)
	if err != nil {
		return err
	}

	params := DecodeParams{
		Width:    req.Width,
		Height:   req.Height,
		Format:   req.Tile.Fmt,
		Siz:      req.Tile.Siz,
		Address:  req.Tile.TMEMWord << 3,
		Stride:   req.Tile.Line << 3,
		ClutMode: req.ClutMode,
		Palette:  req.Tile.Palette,
	}

	if err := p.dispatcher.Dispatch(pass, rawTex, decodeTex, params); err != nil {
		pass.End()
		return err
	}

	if err := pass.End(); err != nil {
		return err
	}

	_, err = encoder.Finish()
	return err
}
