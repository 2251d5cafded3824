// Package archive implements the read-only archive-virtual Backend: a Path
// whose authority names a container file (zip or tar.gz) on another
// backend, and whose key addresses an entry inside it by its synthetic
// hierarchy. All mutation operations fail with KindUnsupported.
//
// Entries are enumerated once from the container's central directory/index
// and held in memory; tfm supports exactly two container formats (zip,
// tar.gz) rather than a general multi-format dispatcher.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/tfmerr"
	"github.com/shimomut/tfm/internal/tfmpath"
)

// node is one synthesized path inside the archive's virtual hierarchy.
type node struct {
	name    string
	size    int64
	mtime   time.Time
	isDir   bool
	open    func() (io.ReadCloser, error) // nil for directories
	parent  string
	fullKey string
}

// Backend is a read-only view over one already-opened archive container.
type Backend struct {
	scheme   string // "archive+zip" or "archive+targz"
	nodes    map[string]*node   // fullKey ("" = root) -> node
	children map[string][]string // parent fullKey -> child fullKeys, sorted
}

// OpenZip indexes a zip container's central directory into the virtual
// hierarchy. r must stay open for the lifetime of reads from this Backend.
func OpenZip(r *zip.Reader) (*Backend, error) {
	b := &Backend{scheme: "archive+zip", nodes: map[string]*node{}, children: map[string][]string{}}
	for _, f := range r.File {
		fr := f // capture
		b.index(strings.TrimSuffix(f.Name, "/"), f.FileInfo().IsDir(), f.FileInfo().Size(), f.Modified, func() (io.ReadCloser, error) {
			return fr.Open()
		})
	}
	b.ensureDirs()
	return b, nil
}

// OpenTarGz indexes a tar.gz container fully into memory (tar has no random
// access index, so every entry's bytes are buffered once at open time).
func OpenTarGz(r io.Reader) (*Backend, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, tfmerr.New(tfmerr.KindIoFailure, "open", "", err)
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	b := &Backend{scheme: "archive+targz", nodes: map[string]*node{}, children: map[string][]string{}}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, tfmerr.New(tfmerr.KindIoFailure, "open", "", err)
		}
		name := strings.TrimSuffix(hdr.Name, "/")
		isDir := hdr.Typeflag == tar.TypeDir
		var buf []byte
		if !isDir {
			buf, err = io.ReadAll(tr)
			if err != nil {
				return nil, tfmerr.New(tfmerr.KindIoFailure, "open", name, err)
			}
		}
		b.index(name, isDir, int64(len(buf)), hdr.ModTime, func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(buf)), nil
		})
	}
	b.ensureDirs()
	return b, nil
}

func (b *Backend) index(name string, isDir bool, size int64, mtime time.Time, open func() (io.ReadCloser, error)) {
	if name == "" {
		return
	}
	parent := ""
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		parent = name[:idx]
	}
	n := &node{name: baseName(name), size: size, mtime: mtime, isDir: isDir, open: open, parent: parent, fullKey: name}
	b.nodes[name] = n
	b.children[parent] = append(b.children[parent], name)
}

// ensureDirs synthesizes directory nodes implied by entries' paths but not
// themselves present as explicit entries (common in tar streams).
func (b *Backend) ensureDirs() {
	for key := range b.nodes {
		parent := key
		for {
			idx := strings.LastIndex(parent, "/")
			if idx < 0 {
				break
			}
			parent = parent[:idx]
			if _, ok := b.nodes[parent]; !ok {
				b.nodes[parent] = &node{name: baseName(parent), isDir: true, fullKey: parent}
				grandparent := ""
				if gi := strings.LastIndex(parent, "/"); gi >= 0 {
					grandparent = parent[:gi]
				}
				b.children[grandparent] = append(b.children[grandparent], parent)
			}
		}
	}
	for k := range b.children {
		sort.Strings(b.children[k])
	}
}

func baseName(key string) string {
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}

func (b *Backend) Scheme() string               { return b.scheme }
func (b *Backend) IsRemote() bool                { return false }
func (b *Backend) SupportsDirectoryRename() bool { return false }

func entryKey(p tfmpath.Path) string {
	return strings.Trim(strings.TrimPrefix(p.Key(), "/"), "/")
}

func (b *Backend) lookup(p tfmpath.Path) (*node, bool) {
	key := entryKey(p)
	if key == "" {
		return &node{isDir: true, fullKey: ""}, true
	}
	n, ok := b.nodes[key]
	return n, ok
}

func (b *Backend) Exists(ctx context.Context, p tfmpath.Path) (bool, error) {
	_, ok := b.lookup(p)
	return ok, nil
}

func (b *Backend) IsFile(ctx context.Context, p tfmpath.Path) (bool, error) {
	n, ok := b.lookup(p)
	return ok && !n.isDir, nil
}

func (b *Backend) IsDir(ctx context.Context, p tfmpath.Path) (bool, error) {
	n, ok := b.lookup(p)
	return ok && n.isDir, nil
}

func (b *Backend) Stat(ctx context.Context, p tfmpath.Path, hint backend.StatHint) (backend.Info, error) {
	n, ok := b.lookup(p)
	if !ok {
		return backend.Info{}, tfmerr.New(tfmerr.KindNotFound, "stat", p.String(), nil)
	}
	return backend.Info{Size: n.size, ModTime: n.mtime, IsDir: n.isDir}, nil
}

type dirIterator struct {
	b       *Backend
	parent  tfmpath.Path
	keys    []string
	idx     int
}

func (it *dirIterator) Next(ctx context.Context) (backend.Entry, bool, error) {
	if it.idx >= len(it.keys) {
		return backend.Entry{}, false, nil
	}
	key := it.keys[it.idx]
	it.idx++
	n := it.b.nodes[key]
	return backend.Entry{
		Path:     it.parent.Join(n.name),
		Name:     n.name,
		Size:     n.size,
		ModTime:  n.mtime,
		IsDir:    n.isDir,
		IsHidden: strings.HasPrefix(n.name, "."),
	}, true, nil
}

func (it *dirIterator) Close() error { return nil }

func (b *Backend) Iterdir(ctx context.Context, p tfmpath.Path) (backend.Iterator, error) {
	key := entryKey(p)
	return &dirIterator{b: b, parent: p, keys: b.children[key]}, nil
}

func (b *Backend) ReadBytes(ctx context.Context, p tfmpath.Path) (io.ReadCloser, error) {
	n, ok := b.lookup(p)
	if !ok || n.isDir {
		return nil, tfmerr.New(tfmerr.KindNotFound, "read_bytes", p.String(), nil)
	}
	return n.open()
}

func (b *Backend) WriteBytes(ctx context.Context, p tfmpath.Path) (io.WriteCloser, error) {
	return nil, tfmerr.New(tfmerr.KindUnsupported, "write_bytes", p.String(), nil)
}

func (b *Backend) Rename(ctx context.Context, src, dst tfmpath.Path) error {
	return tfmerr.New(tfmerr.KindUnsupported, "rename", src.String(), nil)
}

func (b *Backend) Unlink(ctx context.Context, p tfmpath.Path) error {
	return tfmerr.New(tfmerr.KindUnsupported, "unlink", p.String(), nil)
}

func (b *Backend) Mkdir(ctx context.Context, p tfmpath.Path) error {
	return tfmerr.New(tfmerr.KindUnsupported, "mkdir", p.String(), nil)
}

func (b *Backend) Rmdir(ctx context.Context, p tfmpath.Path) error {
	return tfmerr.New(tfmerr.KindUnsupported, "rmdir", p.String(), nil)
}

func (b *Backend) Rmtree(ctx context.Context, p tfmpath.Path) error {
	return tfmerr.New(tfmerr.KindUnsupported, "rmtree", p.String(), nil)
}

func (b *Backend) CopyTo(ctx context.Context, src, dst tfmpath.Path) error {
	return tfmerr.New(tfmerr.KindUnsupported, "copy_to", src.String(), nil)
}
