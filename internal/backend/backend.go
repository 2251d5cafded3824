// Package backend defines the capability interface every Path backend
// implements (local filesystem, S3-shaped object store, SFTP, archive
// interiors) and a static scheme registry: a table mapping scheme prefix
// to constructor, not a dynamic-dispatch class hierarchy.
package backend

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/shimomut/tfm/internal/tfmpath"
)

// Info is the result of Stat: size/mtime/dir-ness of one Path.
type Info struct {
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Entry is one row a listing yields, carrying the I/O fields a backend can
// cheaply supply during iteration.
type Entry struct {
	Path      tfmpath.Path
	Name      string
	Size      int64
	ModTime   time.Time
	IsDir     bool
	IsSymlink bool
	IsHidden  bool
}

// StatHint lets a caller (metacache, or a backend populating children during
// iterdir) override which cache key an operation reads or writes under, so
// that the key used when pre-caching a child's stat during a listing is
// identical to the key used when that child is later stat'd directly. See
// internal/metacache for the key-discipline invariant this exists to serve.
type StatHint struct {
	// Key, when non-empty, is the cache key to use instead of the default
	// derived from the Path being operated on.
	Key string
}

// Backend is the capability set every scheme implements. Operations return
// typed errors from internal/tfmerr; none panics or uses exceptions for
// control flow, and none silently succeeds.
type Backend interface {
	// Scheme returns the scheme this backend instance serves, e.g. "s3".
	Scheme() string

	// IsRemote reports whether operations on this backend cross a network.
	IsRemote() bool

	// SupportsDirectoryRename reports whether Rename may be used on a
	// directory-shaped Path. False for object stores and archives.
	SupportsDirectoryRename() bool

	Exists(ctx context.Context, p tfmpath.Path) (bool, error)
	IsFile(ctx context.Context, p tfmpath.Path) (bool, error)
	IsDir(ctx context.Context, p tfmpath.Path) (bool, error)
	Stat(ctx context.Context, p tfmpath.Path, hint StatHint) (Info, error)

	// Iterdir yields one Path's immediate children lazily: the walker calls
	// next() repeatedly until (zero Entry, false, nil) signals end of
	// sequence, or a non-nil error aborts the traversal.
	Iterdir(ctx context.Context, p tfmpath.Path) (Iterator, error)

	ReadBytes(ctx context.Context, p tfmpath.Path) (io.ReadCloser, error)
	WriteBytes(ctx context.Context, p tfmpath.Path) (io.WriteCloser, error)

	Rename(ctx context.Context, src, dst tfmpath.Path) error
	Unlink(ctx context.Context, p tfmpath.Path) error
	Mkdir(ctx context.Context, p tfmpath.Path) error
	Rmdir(ctx context.Context, p tfmpath.Path) error
	Rmtree(ctx context.Context, p tfmpath.Path) error

	// CopyTo performs a same-backend (usually server-side) copy. Returns
	// tfmerr KindUnsupported if this backend has no native fast path; the
	// Path-layer façade then falls back to ReadBytes/WriteBytes itself.
	CopyTo(ctx context.Context, src, dst tfmpath.Path) error
}

// Iterator is a lazy, finite sequence of directory Entry values.
type Iterator interface {
	// Next returns the next Entry. ok is false and err is nil at normal
	// end of sequence; err is non-nil on a traversal failure.
	Next(ctx context.Context) (entry Entry, ok bool, err error)
	Close() error
}

// Constructor builds a Backend for one authority (bucket, host, archive
// container path). Registered per scheme in the Registry.
type Constructor func(scheme, authority string) (Backend, error)

// Registry is the static scheme -> constructor table.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry returns an empty registry; callers Register each backend.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register binds scheme to a constructor. Later calls for the same scheme
// replace the previous binding, matching a static init-time table.
func (r *Registry) Register(scheme string, ctor Constructor) {
	r.ctors[scheme] = ctor
}

// For resolves the backend instance that should handle p, constructing (and
// the caller is expected to cache) a new one via the registered Constructor.
func (r *Registry) For(p tfmpath.Path) (Backend, error) {
	scheme := p.Scheme()
	ctor, ok := r.ctors[scheme]
	if !ok {
		// Archive schemes are tagged "archive+<format>"; fall back to the
		// generic "archive" constructor if a specific one isn't registered.
		if idx := strings.IndexByte(scheme, '+'); idx >= 0 {
			if ctor, ok = r.ctors[scheme[:idx]]; ok {
				return ctor(scheme, p.Authority())
			}
		}
		return nil, unsupportedScheme(scheme)
	}
	return ctor(scheme, p.Authority())
}
