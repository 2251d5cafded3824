package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/tfmerr"
	"github.com/shimomut/tfm/internal/tfmpath"
)

func newTestBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	dir := t.TempDir()
	b, err := New("file", "")
	require.NoError(t, err)
	return b.(*Backend), dir
}

func TestExistsStatRoundTrip(t *testing.T) {
	b, dir := newTestBackend(t)
	ctx := context.Background()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	p := tfmpath.Parse(file)
	ok, err := b.Exists(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := b.Stat(ctx, p, backend.StatHint{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.False(t, info.IsDir)
}

func TestStatMissingReturnsNotFoundNeverPanics(t *testing.T) {
	b, dir := newTestBackend(t)
	p := tfmpath.Parse(filepath.Join(dir, "missing.txt"))

	_, err := b.Stat(context.Background(), p, backend.StatHint{})
	require.Error(t, err)
	assert.True(t, tfmerr.Is(err, tfmerr.KindNotFound))

	exists, err := b.Exists(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIterdirListsChildren(t *testing.T) {
	b, dir := newTestBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	it, err := b.Iterdir(context.Background(), tfmpath.Parse(dir))
	require.NoError(t, err)
	defer it.Close()

	var names []string
	for {
		e, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"x.txt", "sub"}, names)
}

func TestWriteThenReadBytes(t *testing.T) {
	b, dir := newTestBackend(t)
	p := tfmpath.Parse(filepath.Join(dir, "nested", "out.txt"))

	w, err := b.WriteBytes(context.Background(), p)
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := b.ReadBytes(context.Background(), p)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRenameAndUnlink(t *testing.T) {
	b, dir := newTestBackend(t)
	src := tfmpath.Parse(filepath.Join(dir, "a.txt"))
	dst := tfmpath.Parse(filepath.Join(dir, "b.txt"))
	require.NoError(t, os.WriteFile(src.Key(), []byte("x"), 0o644))

	require.NoError(t, b.Rename(context.Background(), src, dst))
	exists, _ := b.Exists(context.Background(), dst)
	assert.True(t, exists)

	require.NoError(t, b.Unlink(context.Background(), dst))
	exists, _ = b.Exists(context.Background(), dst)
	assert.False(t, exists)
}

func TestSupportsDirectoryRename(t *testing.T) {
	b, _ := newTestBackend(t)
	assert.True(t, b.SupportsDirectoryRename())
	assert.False(t, b.IsRemote())
}
