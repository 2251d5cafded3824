// Package batch implements the batch file operations engine:
// pre-count, per-file progress, error accumulation, and cross-backend copy
// semantics, running on its own goroutine per active operation like the
// task engine.
package batch

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/tfmerr"
	"github.com/shimomut/tfm/internal/tfmpath"
)

// Kind is one of the five batch operation flavors.
type Kind int

const (
	KindCopy Kind = iota
	KindMove
	KindDelete
	KindArchiveCreate
	KindArchiveExtract
)

// ErrorItem records one per-file failure without aborting the batch.
type ErrorItem struct {
	Path string
	Err  error
}

// Descriptor is the mutable progress state of one in-flight batch operation.
// processed/errors are monotonic; the engine is the
// only writer, guarded by mu, while the UI thread reads a snapshot.
type Descriptor struct {
	Kind        Kind
	Sources     []tfmpath.Path
	Destination *tfmpath.Path

	mu          sync.Mutex
	totalFiles  int
	processed   int
	errors      []ErrorItem
	currentItem string
	done        bool
}

// Snapshot is an immutable, UI-safe copy of a Descriptor's progress.
type Snapshot struct {
	TotalFiles  int
	Processed   int
	Errors      []ErrorItem
	CurrentItem string
	Done        bool
}

func (d *Descriptor) snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	errs := make([]ErrorItem, len(d.errors))
	copy(errs, d.errors)
	return Snapshot{TotalFiles: d.totalFiles, Processed: d.processed, Errors: errs, CurrentItem: d.currentItem, Done: d.done}
}

// Snapshot returns the current progress, safe to call from the UI thread
// while the engine runs concurrently.
func (d *Descriptor) Snapshot() Snapshot { return d.snapshot() }

// CompactCurrentItem renders the current item's path truncated to width
// columns for progress display, using go-humanize-style ellipsis framing.
func (s Snapshot) CompactCurrentItem(width int) string {
	p := s.CurrentItem
	if len(p) <= width || width <= 1 {
		return p
	}
	return "…" + p[len(p)-(width-1):]
}

// HumanSize renders a byte count for progress/status text.
func HumanSize(n int64) string { return humanize.Bytes(uint64(n)) }

// FileWalker is the subset of vfs.Facade the batch engine needs: listing
// for pre-count/traversal, streaming copy, and the mutating primitives.
type FileWalker interface {
	Stat(ctx context.Context, p tfmpath.Path) (backend.Info, error)
	Iterdir(ctx context.Context, p tfmpath.Path) (backend.Iterator, error)
	ReadBytes(ctx context.Context, p tfmpath.Path) (io.ReadCloser, error)
	WriteBytes(ctx context.Context, p tfmpath.Path) (io.WriteCloser, error)
	CopyFile(ctx context.Context, src, dst tfmpath.Path) error
	Rename(ctx context.Context, src, dst tfmpath.Path) error
	Unlink(ctx context.Context, p tfmpath.Path) error
	Rmtree(ctx context.Context, p tfmpath.Path) error
	Mkdir(ctx context.Context, p tfmpath.Path) error
	SupportsDirectoryRename(p tfmpath.Path) (bool, error)
}

// fileItem is one concrete file discovered during pre-count, with enough
// context to process it in the execution phase.
type fileItem struct {
	path       tfmpath.Path
	relToRoot  string // slash path relative to the source's own parent, for archive-create
	sourceRoot tfmpath.Path
	size       int64
}

// preCount walks every source once, expanding directories, to compute the
// stable-order file list and total_files.
func preCount(ctx context.Context, w FileWalker, sources []tfmpath.Path) ([]fileItem, error) {
	var items []fileItem
	for _, src := range sources {
		info, err := w.Stat(ctx, src)
		if err != nil {
			return nil, err
		}
		if !info.IsDir {
			items = append(items, fileItem{path: src, relToRoot: src.Name(), sourceRoot: src.Parent(), size: info.Size})
			continue
		}
		if err := walkCollect(ctx, w, src, src.Parent(), &items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func walkCollect(ctx context.Context, w FileWalker, dir, root tfmpath.Path, items *[]fileItem) error {
	it, err := w.Iterdir(ctx, dir)
	if err != nil {
		return err
	}
	defer it.Close()
	for {
		e, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if e.IsDir {
			if err := walkCollect(ctx, w, e.Path, root, items); err != nil {
				return err
			}
			continue
		}
		rel := relPath(root, e.Path)
		*items = append(*items, fileItem{path: e.Path, relToRoot: rel, sourceRoot: root, size: e.Size})
	}
}

func relPath(root, p tfmpath.Path) string {
	rootStr := root.String()
	full := p.String()
	if len(full) > len(rootStr) && full[:len(rootStr)] == rootStr {
		rel := full[len(rootStr):]
		for len(rel) > 0 && rel[0] == '/' {
			rel = rel[1:]
		}
		return rel
	}
	return p.Name()
}

// destFor maps a source fileItem onto the destination tree: the same
// relative path under dest.
func destFor(item fileItem, dest tfmpath.Path) tfmpath.Path {
	return dest.Join(item.relToRoot)
}

// Run executes the descriptor's operation against sources/destination,
// posting progress via onProgress after each file and
// returning only on completion or a cancel signal; per-file failures never
// abort the batch, only accumulate into Errors.
func Run(ctx context.Context, w FileWalker, d *Descriptor, cancelled func() bool, onProgress func(Snapshot)) error {
	items, err := preCount(ctx, w, d.Sources)
	if err != nil {
		return tfmerr.New(tfmerr.KindIoFailure, "pre-count", "", err)
	}
	d.mu.Lock()
	d.totalFiles = len(items)
	d.mu.Unlock()

	switch d.Kind {
	case KindCopy:
		runPerFile(ctx, w, d, items, cancelled, onProgress, copyOneFile)
	case KindMove:
		runPerFile(ctx, w, d, items, cancelled, onProgress, moveOneFile)
	case KindDelete:
		runDelete(ctx, w, d, items, cancelled, onProgress)
	default:
		return tfmerr.New(tfmerr.KindUnsupported, "batch-run", "", fmt.Errorf("archive kinds use ArchiveCreate/ArchiveExtract"))
	}
	d.mu.Lock()
	d.done = true
	d.mu.Unlock()
	onProgress(d.snapshot())
	return nil
}

type perFileAction func(ctx context.Context, w FileWalker, item fileItem, dest tfmpath.Path) error

func runPerFile(ctx context.Context, w FileWalker, d *Descriptor, items []fileItem, cancelled func() bool, onProgress func(Snapshot), action perFileAction) {
	dest := tfmpath.Path{}
	if d.Destination != nil {
		dest = *d.Destination
	}
	for _, item := range items {
		if cancelled() {
			return
		}
		d.mu.Lock()
		d.currentItem = item.path.String()
		d.mu.Unlock()
		onProgress(d.snapshot())

		if err := action(ctx, w, item, dest); err != nil {
			d.mu.Lock()
			d.errors = append(d.errors, ErrorItem{Path: item.path.String(), Err: err})
			d.mu.Unlock()
		}
		d.mu.Lock()
		d.processed++
		d.mu.Unlock()
		onProgress(d.snapshot())
	}
}

func copyOneFile(ctx context.Context, w FileWalker, item fileItem, dest tfmpath.Path) error {
	return w.CopyFile(ctx, item.path, destFor(item, dest))
}

// moveOneFile renames when same-backend and the item is a plain file (or a
// directory whose backend supports directory rename); otherwise it copies
// then deletes. If destination write fails, the source is left intact; if
// the subsequent source delete fails, the destination is left in place;
// both cases increment errors exactly once. On partial move failure this
// always leaves both copies rather than attempting destination cleanup, so
// a retry is never destructive.
func moveOneFile(ctx context.Context, w FileWalker, item fileItem, dest tfmpath.Path) error {
	target := destFor(item, dest)
	if err := w.Rename(ctx, item.path, target); err == nil {
		return nil
	} else if tfmerr.KindOf(err) != tfmerr.KindUnsupported {
		return err
	}
	if err := w.CopyFile(ctx, item.path, target); err != nil {
		return err // source intact, destination not created (or partial)
	}
	if err := w.Unlink(ctx, item.path); err != nil {
		return err // destination present, source delete failed
	}
	return nil
}

func runDelete(ctx context.Context, w FileWalker, d *Descriptor, items []fileItem, cancelled func() bool, onProgress func(Snapshot)) {
	for _, item := range items {
		if cancelled() {
			return
		}
		d.mu.Lock()
		d.currentItem = item.path.String()
		d.mu.Unlock()
		onProgress(d.snapshot())

		if err := w.Unlink(ctx, item.path); err != nil {
			d.mu.Lock()
			d.errors = append(d.errors, ErrorItem{Path: item.path.String(), Err: err})
			d.mu.Unlock()
		}
		d.mu.Lock()
		d.processed++
		d.mu.Unlock()
		onProgress(d.snapshot())
	}
	// Also remove the now-empty directory sources themselves.
	for _, src := range d.Sources {
		if info, err := w.Stat(ctx, src); err == nil && info.IsDir {
			_ = w.Rmtree(ctx, src)
		}
	}
}
