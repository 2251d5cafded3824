package batch

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/tfmerr"
	"github.com/shimomut/tfm/internal/tfmpath"
)

// memWalker is a minimal in-memory FileWalker for batch-engine tests.
type memWalker struct {
	files map[string][]byte
	dirs  map[string][]backend.Entry
	// unwritable holds destination keys whose WriteBytes fails, to simulate
	// the "one unwritable destination" scenario.
	unwritable map[string]bool
}

func newMemWalker() *memWalker {
	return &memWalker{files: map[string][]byte{}, dirs: map[string][]backend.Entry{}, unwritable: map[string]bool{}}
}

func (w *memWalker) Stat(ctx context.Context, p tfmpath.Path) (backend.Info, error) {
	if _, ok := w.dirs[p.Key()]; ok {
		return backend.Info{IsDir: true}, nil
	}
	data, ok := w.files[p.Key()]
	if !ok {
		return backend.Info{}, tfmerr.New(tfmerr.KindNotFound, "stat", p.String(), nil)
	}
	return backend.Info{Size: int64(len(data))}, nil
}

func (w *memWalker) Iterdir(ctx context.Context, p tfmpath.Path) (backend.Iterator, error) {
	return &memIterator{entries: w.dirs[p.Key()]}, nil
}

type memIterator struct {
	entries []backend.Entry
	idx     int
}

func (it *memIterator) Next(ctx context.Context) (backend.Entry, bool, error) {
	if it.idx >= len(it.entries) {
		return backend.Entry{}, false, nil
	}
	e := it.entries[it.idx]
	it.idx++
	return e, true, nil
}
func (it *memIterator) Close() error { return nil }

func (w *memWalker) ReadBytes(ctx context.Context, p tfmpath.Path) (io.ReadCloser, error) {
	data, ok := w.files[p.Key()]
	if !ok {
		return nil, tfmerr.New(tfmerr.KindNotFound, "read_bytes", p.String(), nil)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (w *memWalker) WriteBytes(ctx context.Context, p tfmpath.Path) (io.WriteCloser, error) {
	if w.unwritable[p.Key()] {
		return nil, tfmerr.New(tfmerr.KindPermissionDenied, "write_bytes", p.String(), nil)
	}
	return &memWriteCloser{w: w, key: p.Key()}, nil
}

type memWriteCloser struct {
	w   *memWalker
	key string
	buf bytes.Buffer
}

func (wc *memWriteCloser) Write(p []byte) (int, error) { return wc.buf.Write(p) }
func (wc *memWriteCloser) Close() error                { wc.w.files[wc.key] = wc.buf.Bytes(); return nil }

func (w *memWalker) CopyFile(ctx context.Context, src, dst tfmpath.Path) error {
	r, err := w.ReadBytes(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()
	out, err := w.WriteBytes(ctx, dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		return err
	}
	return out.Close()
}

func (w *memWalker) Rename(ctx context.Context, src, dst tfmpath.Path) error {
	return tfmerr.New(tfmerr.KindUnsupported, "rename", src.String(), nil)
}

func (w *memWalker) Unlink(ctx context.Context, p tfmpath.Path) error {
	delete(w.files, p.Key())
	return nil
}

func (w *memWalker) Rmtree(ctx context.Context, p tfmpath.Path) error { return nil }
func (w *memWalker) Mkdir(ctx context.Context, p tfmpath.Path) error  { return nil }
func (w *memWalker) SupportsDirectoryRename(p tfmpath.Path) (bool, error) {
	return false, nil
}

func TestS4BatchCopyWithOneError(t *testing.T) {
	w := newMemWalker()
	w.files["/src/f1"] = []byte("1")
	w.files["/src/f2"] = []byte("2")
	w.files["/src/f3"] = []byte("3")
	w.unwritable["/dst/f2"] = true

	dest := tfmpath.New("file", "", "/dst")
	d := &Descriptor{
		Kind:        KindCopy,
		Sources:     []tfmpath.Path{tfmpath.New("file", "", "/src/f1"), tfmpath.New("file", "", "/src/f2"), tfmpath.New("file", "", "/src/f3")},
		Destination: &dest,
	}

	err := Run(context.Background(), w, d, func() bool { return false }, func(Snapshot) {})
	require.NoError(t, err)

	snap := d.Snapshot()
	assert.Equal(t, 3, snap.Processed)
	assert.Len(t, snap.Errors, 1)
	assert.Equal(t, "/src/f2", snap.Errors[0].Path)
	_, ok := w.files["/dst/f1"]
	assert.True(t, ok)
	_, ok = w.files["/dst/f3"]
	assert.True(t, ok)
	_, ok = w.files["/dst/f2"]
	assert.False(t, ok)
}

func TestProgressMonotonicAndBounded(t *testing.T) {
	w := newMemWalker()
	w.files["/src/a"] = []byte("x")
	w.files["/src/b"] = []byte("y")
	dest := tfmpath.New("file", "", "/dst")
	d := &Descriptor{Kind: KindCopy, Sources: []tfmpath.Path{tfmpath.New("file", "", "/src/a"), tfmpath.New("file", "", "/src/b")}, Destination: &dest}

	var snaps []Snapshot
	err := Run(context.Background(), w, d, func() bool { return false }, func(s Snapshot) { snaps = append(snaps, s) })
	require.NoError(t, err)

	lastProcessed, lastErrors := 0, 0
	for _, s := range snaps {
		assert.GreaterOrEqual(t, s.Processed, lastProcessed)
		assert.GreaterOrEqual(t, len(s.Errors), lastErrors)
		assert.LessOrEqual(t, s.Processed, s.TotalFiles)
		lastProcessed, lastErrors = s.Processed, len(s.Errors)
	}
}

func TestMoveFallsBackToCopyThenDeleteWhenRenameUnsupported(t *testing.T) {
	w := newMemWalker()
	w.files["/src/a"] = []byte("data")
	dest := tfmpath.New("file", "", "/dst")
	d := &Descriptor{Kind: KindMove, Sources: []tfmpath.Path{tfmpath.New("file", "", "/src/a")}, Destination: &dest}

	err := Run(context.Background(), w, d, func() bool { return false }, func(Snapshot) {})
	require.NoError(t, err)

	_, srcStillThere := w.files["/src/a"]
	assert.False(t, srcStillThere)
	_, dstThere := w.files["/dst/a"]
	assert.True(t, dstThere)
}

func TestDeleteRemovesSources(t *testing.T) {
	w := newMemWalker()
	w.files["/src/a"] = []byte("x")
	d := &Descriptor{Kind: KindDelete, Sources: []tfmpath.Path{tfmpath.New("file", "", "/src/a")}}

	err := Run(context.Background(), w, d, func() bool { return false }, func(Snapshot) {})
	require.NoError(t, err)
	_, ok := w.files["/src/a"]
	assert.False(t, ok)
	assert.Equal(t, 1, d.Snapshot().Processed)
}
