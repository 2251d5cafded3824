// Package local implements the Backend capability set over the host
// filesystem. It is the simplest backend: no caching layer of its own (the
// metacache sits above every backend uniformly), atomic rename when source
// and destination share a filesystem, and native directory-rename support.
//
// A thin wrapper over os.*, with an NFC-normalization touch on filenames
// via golang.org/x/text/unicode/norm, and typed errors over bare os.Err
// throughout.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/tfmerr"
	"github.com/shimomut/tfm/internal/tfmpath"
)

// Backend implements backend.Backend over the local filesystem.
type Backend struct {
	normalize bool // apply NFC unicode normalization to names read back
}

// New constructs the local backend. scheme/authority are unused (local
// paths carry no authority) but kept to satisfy backend.Constructor.
func New(scheme, authority string) (backend.Backend, error) {
	return &Backend{normalize: true}, nil
}

func (b *Backend) Scheme() string                  { return "file" }
func (b *Backend) IsRemote() bool                   { return false }
func (b *Backend) SupportsDirectoryRename() bool    { return true }

func (b *Backend) nativePath(p tfmpath.Path) string {
	return filepath.FromSlash(p.Key())
}

func (b *Backend) maybeNormalize(name string) string {
	if !b.normalize {
		return name
	}
	return norm.NFC.String(name)
}

func (b *Backend) Exists(ctx context.Context, p tfmpath.Path) (bool, error) {
	_, err := os.Stat(b.nativePath(p))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, wrap("exists", p, err)
}

func (b *Backend) IsFile(ctx context.Context, p tfmpath.Path) (bool, error) {
	fi, err := os.Stat(b.nativePath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, wrap("is_file", p, err)
	}
	return !fi.IsDir(), nil
}

func (b *Backend) IsDir(ctx context.Context, p tfmpath.Path) (bool, error) {
	fi, err := os.Stat(b.nativePath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, wrap("is_dir", p, err)
	}
	return fi.IsDir(), nil
}

func (b *Backend) Stat(ctx context.Context, p tfmpath.Path, hint backend.StatHint) (backend.Info, error) {
	fi, err := os.Stat(b.nativePath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return backend.Info{}, tfmerr.New(tfmerr.KindNotFound, "stat", p.String(), err)
		}
		return backend.Info{}, wrap("stat", p, err)
	}
	return backend.Info{Size: fi.Size(), ModTime: fi.ModTime(), IsDir: fi.IsDir()}, nil
}

type dirIterator struct {
	b       *Backend
	parent  tfmpath.Path
	entries []os.DirEntry
	idx     int
}

func (it *dirIterator) Next(ctx context.Context) (backend.Entry, bool, error) {
	if it.idx >= len(it.entries) {
		return backend.Entry{}, false, nil
	}
	de := it.entries[it.idx]
	it.idx++
	name := it.b.maybeNormalize(de.Name())
	fi, err := de.Info()
	if err != nil {
		return backend.Entry{}, false, wrap("iterdir", it.parent, err)
	}
	child := it.parent.Join(name)
	return backend.Entry{
		Path:      child,
		Name:      name,
		Size:      fi.Size(),
		ModTime:   fi.ModTime(),
		IsDir:     fi.IsDir(),
		IsSymlink: fi.Mode()&os.ModeSymlink != 0,
		IsHidden:  strings.HasPrefix(name, "."),
	}, true, nil
}

func (it *dirIterator) Close() error { return nil }

func (b *Backend) Iterdir(ctx context.Context, p tfmpath.Path) (backend.Iterator, error) {
	entries, err := os.ReadDir(b.nativePath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tfmerr.New(tfmerr.KindNotFound, "iterdir", p.String(), err)
		}
		return nil, wrap("iterdir", p, err)
	}
	return &dirIterator{b: b, parent: p, entries: entries}, nil
}

func (b *Backend) ReadBytes(ctx context.Context, p tfmpath.Path) (io.ReadCloser, error) {
	f, err := os.Open(b.nativePath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tfmerr.New(tfmerr.KindNotFound, "read_bytes", p.String(), err)
		}
		return nil, wrap("read_bytes", p, err)
	}
	return f, nil
}

func (b *Backend) WriteBytes(ctx context.Context, p tfmpath.Path) (io.WriteCloser, error) {
	native := b.nativePath(p)
	if err := os.MkdirAll(filepath.Dir(native), 0o755); err != nil {
		return nil, wrap("write_bytes", p, err)
	}
	f, err := os.Create(native)
	if err != nil {
		return nil, wrap("write_bytes", p, err)
	}
	return f, nil
}

func (b *Backend) Rename(ctx context.Context, src, dst tfmpath.Path) error {
	if err := os.Rename(b.nativePath(src), b.nativePath(dst)); err != nil {
		if os.IsNotExist(err) {
			return tfmerr.New(tfmerr.KindNotFound, "rename", src.String(), err)
		}
		return wrap("rename", src, err)
	}
	return nil
}

func (b *Backend) Unlink(ctx context.Context, p tfmpath.Path) error {
	if err := os.Remove(b.nativePath(p)); err != nil {
		if os.IsNotExist(err) {
			return tfmerr.New(tfmerr.KindNotFound, "unlink", p.String(), err)
		}
		return wrap("unlink", p, err)
	}
	return nil
}

func (b *Backend) Mkdir(ctx context.Context, p tfmpath.Path) error {
	if err := os.MkdirAll(b.nativePath(p), 0o755); err != nil {
		return wrap("mkdir", p, err)
	}
	return nil
}

func (b *Backend) Rmdir(ctx context.Context, p tfmpath.Path) error {
	if err := os.Remove(b.nativePath(p)); err != nil {
		if os.IsNotExist(err) {
			return tfmerr.New(tfmerr.KindNotFound, "rmdir", p.String(), err)
		}
		return wrap("rmdir", p, err)
	}
	return nil
}

func (b *Backend) Rmtree(ctx context.Context, p tfmpath.Path) error {
	if err := os.RemoveAll(b.nativePath(p)); err != nil {
		return wrap("rmtree", p, err)
	}
	return nil
}

// CopyTo reports Unsupported so the Path façade falls back to a streaming
// read+write; a same-filesystem hardlink/reflink fast path is future work
// the Path-layer fallback already makes correct, if not optimal.
func (b *Backend) CopyTo(ctx context.Context, src, dst tfmpath.Path) error {
	return tfmerr.New(tfmerr.KindUnsupported, "copy_to", src.String(), nil)
}

func wrap(op string, p tfmpath.Path, err error) error {
	if os.IsPermission(err) {
		return tfmerr.New(tfmerr.KindPermissionDenied, op, p.String(), err)
	}
	return tfmerr.New(tfmerr.KindIoFailure, op, p.String(), err)
}
