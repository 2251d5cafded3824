package sftp

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/tfmerr"
	"github.com/shimomut/tfm/internal/tfmpath"
)

type fakeFileInfo struct {
	name  string
	size  int64
	mtime time.Time
	dir   bool
}

func (f fakeFileInfo) Name() string       { return f.name }
func (f fakeFileInfo) Size() int64        { return f.size }
func (f fakeFileInfo) Mode() os.FileMode  { return 0o644 }
func (f fakeFileInfo) ModTime() time.Time { return f.mtime }
func (f fakeFileInfo) IsDir() bool        { return f.dir }
func (f fakeFileInfo) Sys() interface{}   { return nil }

type fakeClient struct {
	files map[string]fakeFileInfo
	dirs  map[string][]string // dir path -> child names
	data  map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{files: map[string]fakeFileInfo{}, dirs: map[string][]string{}, data: map[string][]byte{}}
}

func (c *fakeClient) Stat(p string) (os.FileInfo, error) {
	fi, ok := c.files[p]
	if !ok {
		return nil, os.ErrNotExist
	}
	return fi, nil
}

func (c *fakeClient) ReadDir(p string) ([]os.FileInfo, error) {
	names, ok := c.dirs[p]
	if !ok {
		return nil, os.ErrNotExist
	}
	var out []os.FileInfo
	for _, n := range names {
		out = append(out, c.files[p+"/"+n])
	}
	return out, nil
}

type rc struct{ io.Reader }

func (rc) Close() error { return nil }

func (c *fakeClient) Open(p string) (io.ReadCloser, error) {
	d, ok := c.data[p]
	if !ok {
		return nil, os.ErrNotExist
	}
	return rc{strings.NewReader(string(d))}, nil
}

type wc struct {
	c *fakeClient
	p string
	b []byte
}

func (w *wc) Write(b []byte) (int, error) { w.b = append(w.b, b...); return len(b), nil }
func (w *wc) Close() error                { w.c.data[w.p] = w.b; return nil }

func (c *fakeClient) Create(p string) (io.WriteCloser, error) { return &wc{c: c, p: p}, nil }
func (c *fakeClient) Rename(oldname, newname string) error {
	c.files[newname] = c.files[oldname]
	delete(c.files, oldname)
	return nil
}
func (c *fakeClient) Remove(p string) error {
	if _, ok := c.files[p]; !ok {
		return os.ErrNotExist
	}
	delete(c.files, p)
	return nil
}
func (c *fakeClient) RemoveDirectory(p string) error { delete(c.dirs, p); return nil }
func (c *fakeClient) MkdirAll(p string) error        { return nil }

func TestSFTPStatAndIterdir(t *testing.T) {
	c := newFakeClient()
	c.files["/home/x.txt"] = fakeFileInfo{name: "x.txt", size: 10}
	c.files["/home"] = fakeFileInfo{name: "home", dir: true}
	c.dirs["/home"] = []string{"x.txt"}

	b := New(c)
	info, err := b.Stat(context.Background(), tfmpath.New("sftp", "host", "/home/x.txt"), backend.StatHint{})
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Size)

	it, err := b.Iterdir(context.Background(), tfmpath.New("sftp", "host", "/home"))
	require.NoError(t, err)
	e, ok, err := it.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x.txt", e.Name)
}

func TestSFTPMissingIsNotFound(t *testing.T) {
	b := New(newFakeClient())
	_, err := b.Stat(context.Background(), tfmpath.New("sftp", "host", "/nope"), backend.StatHint{})
	require.Error(t, err)
	assert.True(t, tfmerr.Is(err, tfmerr.KindNotFound))
}

func TestSFTPWriteThenReadRoundTrip(t *testing.T) {
	b := New(newFakeClient())
	p := tfmpath.New("sftp", "host", "/a.txt")
	w, err := b.WriteBytes(context.Background(), p)
	require.NoError(t, err)
	_, _ = w.Write([]byte("payload"))
	require.NoError(t, w.Close())

	r, err := b.ReadBytes(context.Background(), p)
	require.NoError(t, err)
	data, _ := io.ReadAll(r)
	assert.Equal(t, "payload", string(data))
}

func TestSFTPSupportsDirectoryRename(t *testing.T) {
	b := New(newFakeClient())
	assert.True(t, b.SupportsDirectoryRename())
	assert.True(t, b.IsRemote())
}
