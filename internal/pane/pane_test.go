package pane

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/tfmpath"
)

type fakeLister struct {
	children map[string][]backend.Entry
}

type fakeIterator struct {
	entries []backend.Entry
	idx     int
}

func (it *fakeIterator) Next(ctx context.Context) (backend.Entry, bool, error) {
	if it.idx >= len(it.entries) {
		return backend.Entry{}, false, nil
	}
	e := it.entries[it.idx]
	it.idx++
	return e, true, nil
}
func (it *fakeIterator) Close() error { return nil }

func (l *fakeLister) Stat(ctx context.Context, p tfmpath.Path) (backend.Info, error) {
	return backend.Info{IsDir: true}, nil
}

func (l *fakeLister) Iterdir(ctx context.Context, p tfmpath.Path) (backend.Iterator, error) {
	return &fakeIterator{entries: l.children[p.Key()]}, nil
}

func buildLister() *fakeLister {
	root := tfmpath.New("file", "", "/root")
	return &fakeLister{children: map[string][]backend.Entry{
		"/root": {
			{Path: root.Join("b.txt"), Name: "b.txt", Size: 20, ModTime: time.Unix(200, 0)},
			{Path: root.Join("a.txt"), Name: "a.txt", Size: 10, ModTime: time.Unix(100, 0)},
			{Path: root.Join("sub"), Name: "sub", IsDir: true},
			{Path: root.Join(".hidden"), Name: ".hidden", IsHidden: true},
		},
	}}
}

func TestLoadSortsDirectoriesFirstThenNameAndHidesDotfiles(t *testing.T) {
	l := buildLister()
	p := New(tfmpath.New("file", "", "/root"))
	require.NoError(t, p.Load(context.Background(), l))

	var names []string
	for _, r := range p.Rows {
		names = append(names, r.Entry.Name)
	}
	assert.Equal(t, []string{"..", "sub", "a.txt", "b.txt"}, names)
}

func TestShowHiddenRevealsDotfiles(t *testing.T) {
	l := buildLister()
	p := New(tfmpath.New("file", "", "/root"))
	p.ShowHidden = true
	require.NoError(t, p.Load(context.Background(), l))

	found := false
	for _, r := range p.Rows {
		if r.Entry.Name == ".hidden" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMoveCursorClampsToBounds(t *testing.T) {
	l := buildLister()
	p := New(tfmpath.New("file", "", "/root"))
	require.NoError(t, p.Load(context.Background(), l))

	p.MoveCursor(-5)
	assert.Equal(t, 0, p.CursorIndex)
	p.MoveCursorToBottom()
	assert.Equal(t, len(p.Rows)-1, p.CursorIndex)
	p.MoveCursor(100)
	assert.Equal(t, len(p.Rows)-1, p.CursorIndex)
}

func TestSelectionFallsBackToCursorWhenEmpty(t *testing.T) {
	l := buildLister()
	p := New(tfmpath.New("file", "", "/root"))
	require.NoError(t, p.Load(context.Background(), l))
	p.MoveCursorToBottom() // "b.txt" per sort order above

	sel := p.SelectedPaths()
	require.Len(t, sel, 1)
	assert.Equal(t, "b.txt", sel[0].Name())
}

func TestToggleSelectionAndSelectAll(t *testing.T) {
	l := buildLister()
	p := New(tfmpath.New("file", "", "/root"))
	require.NoError(t, p.Load(context.Background(), l))

	p.MoveCursor(1) // "sub"
	p.ToggleSelection()
	assert.True(t, p.Selection["sub"])

	p.SelectAll()
	assert.True(t, p.Selection["a.txt"])
	assert.True(t, p.Selection["b.txt"])
	assert.NotContains(t, p.Selection, "..")

	p.ClearSelection()
	assert.Empty(t, p.Selection)
}

func TestHistoryRestoresCursorOnReentry(t *testing.T) {
	l := buildLister()
	p := New(tfmpath.New("file", "", "/root"))
	require.NoError(t, p.Load(context.Background(), l))

	h := NewHistory()
	p.MoveCursor(2) // "a.txt"
	row, _ := p.CurrentRow()
	h.Remember(p.Path, row)

	p.MoveCursorToTop()
	require.NoError(t, p.Load(context.Background(), l)) // simulate leaving and returning
	h.Restore(p)

	cur, ok := p.CurrentRow()
	require.True(t, ok)
	assert.Equal(t, "a.txt", cur.Entry.Name)
}

func TestHistoryRestoresNearestNeighborWhenEntryDeleted(t *testing.T) {
	l := buildLister()
	p := New(tfmpath.New("file", "", "/root"))
	require.NoError(t, p.Load(context.Background(), l))

	h := NewHistory()
	p.MoveCursor(2) // "a.txt"
	row, _ := p.CurrentRow()
	h.Remember(p.Path, row)

	// a.txt is gone by the time the pane re-enters /root; "sub" is the
	// entry sorted immediately before where a.txt would have been, since
	// directories always sort ahead of files regardless of name.
	root := tfmpath.New("file", "", "/root")
	l.children["/root"] = []backend.Entry{
		{Path: root.Join("b.txt"), Name: "b.txt", Size: 20, ModTime: time.Unix(200, 0)},
		{Path: root.Join("sub"), Name: "sub", IsDir: true},
	}

	p.MoveCursorToTop()
	require.NoError(t, p.Load(context.Background(), l))
	h.Restore(p)

	cur, ok := p.CurrentRow()
	require.True(t, ok)
	assert.Equal(t, "sub", cur.Entry.Name)
}

func TestSetSwapActive(t *testing.T) {
	left := New(tfmpath.New("file", "", "/left"))
	right := New(tfmpath.New("file", "", "/right"))
	s := NewSet(left, right)

	assert.Same(t, left, s.Active())
	assert.Same(t, right, s.Inactive())
	s.SwapActive()
	assert.Same(t, right, s.Active())
	assert.Same(t, left, s.Inactive())
}
