package task

import (
	"context"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/tfmpath"
)

// fakeTree is an in-memory Walker over a fixed file tree, keyed by
// directory path -> children, used to exercise the search/scan workers
// without a real backend.
type fakeTree struct {
	dirs  map[string][]backend.Entry
	files map[string]string
}

func (f *fakeTree) Iterdir(ctx context.Context, p tfmpath.Path) (backend.Iterator, error) {
	entries, ok := f.dirs[p.Key()]
	if !ok {
		return &sliceIterator{}, nil
	}
	return &sliceIterator{entries: entries}, nil
}

func (f *fakeTree) ReadBytes(ctx context.Context, p tfmpath.Path) (io.ReadCloser, error) {
	content, ok := f.files[p.Key()]
	if !ok {
		return nil, assertNotFound{}
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

type assertNotFound struct{}

func (assertNotFound) Error() string { return "not found" }

type sliceIterator struct {
	entries []backend.Entry
	idx     int
}

func (it *sliceIterator) Next(ctx context.Context) (backend.Entry, bool, error) {
	if it.idx >= len(it.entries) {
		return backend.Entry{}, false, nil
	}
	e := it.entries[it.idx]
	it.idx++
	return e, true, nil
}
func (it *sliceIterator) Close() error { return nil }

func buildTestTree() *fakeTree {
	return &fakeTree{
		dirs: map[string][]backend.Entry{
			"/root": {
				{Path: tfmpath.New("file", "", "/root/a.py"), Name: "a.py"},
				{Path: tfmpath.New("file", "", "/root/b.txt"), Name: "b.txt"},
				{Path: tfmpath.New("file", "", "/root/nested"), Name: "nested", IsDir: true},
			},
			"/root/nested": {
				{Path: tfmpath.New("file", "", "/root/nested/c.py"), Name: "c.py"},
			},
		},
		files: map[string]string{
			"/root/b.txt": "needle here\nanother line\n",
		},
	}
}

func TestS1FilenameSearch(t *testing.T) {
	tree := buildTestTree()
	tk := New("t1", KindFilenameSearch, "*.py", "/root", 0)
	tk.Run(context.Background(), FilenameSearchWorker(tree, tfmpath.New("file", "", "/root"), "*.py"))
	<-tk.Done()

	items, truncated := tk.Buffer.Snapshot()
	assert.False(t, truncated)
	var paths []string
	for _, it := range items {
		paths = append(paths, it.(FilenameResult).Path)
	}
	assert.ElementsMatch(t, []string{"/root/a.py", "/root/nested/c.py"}, paths)
}

func TestFilenameSearchRespectsLimitAndTruncates(t *testing.T) {
	tree := buildTestTree()
	tk := New("t2", KindFilenameSearch, "*", "/root", 1)
	tk.Run(context.Background(), FilenameSearchWorker(tree, tfmpath.New("file", "", "/root"), "*"))
	<-tk.Done()

	items, truncated := tk.Buffer.Snapshot()
	assert.True(t, truncated)
	assert.Len(t, items, 1)
}

func TestContentSearchFindsMatch(t *testing.T) {
	tree := buildTestTree()
	pattern := regexp.MustCompile("needle")
	tk := New("t3", KindContentSearch, "needle", "/root", 0)
	tk.Run(context.Background(), ContentSearchWorker(tree, tfmpath.New("file", "", "/root"), pattern))
	<-tk.Done()

	items, _ := tk.Buffer.Snapshot()
	require.Len(t, items, 1)
	r := items[0].(ContentResult)
	assert.Equal(t, "/root/b.txt", r.Path)
	assert.Equal(t, 1, r.LineNumber)
}

func TestCancelStopsWorkerQuickly(t *testing.T) {
	tree := buildTestTree()
	tk := New("t4", KindFilenameSearch, "*", "/root", 0)
	tk.Run(context.Background(), FilenameSearchWorker(tree, tfmpath.New("file", "", "/root"), "*"))
	tk.Cancel()

	stopped := WaitCancelled(tk, 100*time.Millisecond)
	assert.True(t, stopped)
	assert.Equal(t, StateCancelled, tk.State())
}

func TestDirScanFiltersHiddenUnlessRootIsHidden(t *testing.T) {
	tree := &fakeTree{dirs: map[string][]backend.Entry{
		"/root": {
			{Path: tfmpath.New("file", "", "/root/.git"), Name: ".git", IsDir: true},
			{Path: tfmpath.New("file", "", "/root/src"), Name: "src", IsDir: true},
		},
		"/root/.git": {},
		"/root/src":  {},
	}}
	tk := New("t5", KindDirScan, "", "/root", 0)
	tk.Run(context.Background(), DirScanWorker(tree, tfmpath.New("file", "", "/root"), false))
	<-tk.Done()

	items, _ := tk.Buffer.Snapshot()
	var paths []string
	for _, it := range items {
		paths = append(paths, it.(ScanResult).Path)
	}
	assert.ElementsMatch(t, []string{"/root/src"}, paths)
}
