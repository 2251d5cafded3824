// Package vfs is the Path façade sitting between the metadata cache and
// every other consumer: it resolves a Path to its Backend, passes
// stat/iterdir straight to that backend (metadata caching, where any, is
// done inside the backend itself), and implements cross-backend copy/move by calling ReadBytes/WriteBytes at
// this layer, never by reaching inside either backend.
package vfs

import (
	"context"
	"io"
	"sync"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/metacache"
	"github.com/shimomut/tfm/internal/tfmerr"
	"github.com/shimomut/tfm/internal/tfmpath"
)

// Facade is the uniform entry point callers (pane model, task engine, batch
// engine) use instead of talking to a Backend directly.
type Facade struct {
	registry *backend.Registry
	cache    *metacache.Cache

	mu       sync.Mutex
	backends map[string]backend.Backend // "scheme|authority" -> instance
}

// New builds a Facade over registry. The Facade keeps cache but does not
// read or write it; the s3 backend is handed the same cache separately and
// is the only backend that uses it.
func New(registry *backend.Registry, cache *metacache.Cache) *Facade {
	return &Facade{registry: registry, cache: cache, backends: make(map[string]backend.Backend)}
}

func (f *Facade) resolve(p tfmpath.Path) (backend.Backend, error) {
	key := p.Scheme() + "|" + p.Authority()
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.backends[key]; ok {
		return b, nil
	}
	b, err := f.registry.For(p)
	if err != nil {
		return nil, err
	}
	f.backends[key] = b
	return b, nil
}

// cacheKeyFor derives the metacache.Key for a stat/list lookup on p,
// honoring an override hint so a caller populating cache on behalf of a
// child can use that child's own key.
func cacheKeyFor(op string, p tfmpath.Path, hint backend.StatHint) metacache.Key {
	k := p.Key()
	if hint.Key != "" {
		k = hint.Key
	}
	return metacache.Key{Operation: op, Bucket: p.Authority(), ObjectKey: k}
}

func (f *Facade) Exists(ctx context.Context, p tfmpath.Path) (bool, error) {
	b, err := f.resolve(p)
	if err != nil {
		return false, err
	}
	return b.Exists(ctx, p)
}

func (f *Facade) IsFile(ctx context.Context, p tfmpath.Path) (bool, error) {
	b, err := f.resolve(p)
	if err != nil {
		return false, err
	}
	return b.IsFile(ctx, p)
}

func (f *Facade) IsDir(ctx context.Context, p tfmpath.Path) (bool, error) {
	b, err := f.resolve(p)
	if err != nil {
		return false, err
	}
	return b.IsDir(ctx, p)
}

// Stat delegates to the backend's Stat with an empty hint; it does not
// consult the metadata cache itself (the s3 backend does its own caching).
func (f *Facade) Stat(ctx context.Context, p tfmpath.Path) (backend.Info, error) {
	b, err := f.resolve(p)
	if err != nil {
		return backend.Info{}, err
	}
	return b.Stat(ctx, p, backend.StatHint{})
}

func (f *Facade) Iterdir(ctx context.Context, p tfmpath.Path) (backend.Iterator, error) {
	b, err := f.resolve(p)
	if err != nil {
		return nil, err
	}
	return b.Iterdir(ctx, p)
}

func (f *Facade) ReadBytes(ctx context.Context, p tfmpath.Path) (io.ReadCloser, error) {
	b, err := f.resolve(p)
	if err != nil {
		return nil, err
	}
	return b.ReadBytes(ctx, p)
}

func (f *Facade) WriteBytes(ctx context.Context, p tfmpath.Path) (io.WriteCloser, error) {
	b, err := f.resolve(p)
	if err != nil {
		return nil, err
	}
	return b.WriteBytes(ctx, p)
}

func (f *Facade) Unlink(ctx context.Context, p tfmpath.Path) error {
	b, err := f.resolve(p)
	if err != nil {
		return err
	}
	return b.Unlink(ctx, p)
}

func (f *Facade) Mkdir(ctx context.Context, p tfmpath.Path) error {
	b, err := f.resolve(p)
	if err != nil {
		return err
	}
	return b.Mkdir(ctx, p)
}

func (f *Facade) Rmdir(ctx context.Context, p tfmpath.Path) error {
	b, err := f.resolve(p)
	if err != nil {
		return err
	}
	return b.Rmdir(ctx, p)
}

func (f *Facade) Rmtree(ctx context.Context, p tfmpath.Path) error {
	b, err := f.resolve(p)
	if err != nil {
		return err
	}
	return b.Rmtree(ctx, p)
}

// SupportsDirectoryRename reports whether p's backend allows renaming a
// directory-shaped Path in place.
func (f *Facade) SupportsDirectoryRename(p tfmpath.Path) (bool, error) {
	b, err := f.resolve(p)
	if err != nil {
		return false, err
	}
	return b.SupportsDirectoryRename(), nil
}

// Rename renames src to dst. If both share a backend instance, the backend's
// native Rename is used (refusing directory renames where unsupported); this
// method never falls back to copy+delete itself. That policy decision
// belongs to the batch engine, which can inspect SupportsDirectoryRename
// first.
func (f *Facade) Rename(ctx context.Context, src, dst tfmpath.Path) error {
	sb, err := f.resolve(src)
	if err != nil {
		return err
	}
	db, err := f.resolve(dst)
	if err != nil {
		return err
	}
	if sb != db {
		return tfmerr.New(tfmerr.KindUnsupported, "rename", src.String(), nil)
	}
	if !sb.SupportsDirectoryRename() {
		if info, err := sb.Stat(ctx, src, backend.StatHint{}); err == nil && info.IsDir {
			return tfmerr.New(tfmerr.KindUnsupported, "rename", src.String(), nil)
		}
	}
	return sb.Rename(ctx, src, dst)
}

// CopyFile copies one file from src to dst. Same-backend uses the backend's
// native CopyTo; if that reports Unsupported (no fast path, or cross-backend
// entirely) this falls back to a chunked stream copy via ReadBytes/WriteBytes,
// bounding memory regardless of file size.
func (f *Facade) CopyFile(ctx context.Context, src, dst tfmpath.Path) error {
	sb, err := f.resolve(src)
	if err != nil {
		return err
	}
	db, err := f.resolve(dst)
	if err != nil {
		return err
	}
	if sb == db {
		if err := sb.CopyTo(ctx, src, dst); err == nil {
			return nil
		} else if tfmerr.KindOf(err) != tfmerr.KindUnsupported {
			return err
		}
	}
	return f.streamCopy(ctx, src, dst)
}

const copyChunkSize = 1 << 20 // 1 MiB

func (f *Facade) streamCopy(ctx context.Context, src, dst tfmpath.Path) error {
	r, err := f.ReadBytes(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := f.WriteBytes(ctx, dst)
	if err != nil {
		return err
	}
	buf := make([]byte, copyChunkSize)
	if _, err := io.CopyBuffer(w, r, buf); err != nil {
		w.Close()
		return tfmerr.New(tfmerr.KindIoFailure, "copy_to", dst.String(), err)
	}
	return w.Close()
}
