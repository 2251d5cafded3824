// Package pane implements the dual-pane file-list model:
// a directory listing with cursor/selection/sort/filter state, independent
// per pane, plus the two-pane active/inactive container that the input
// router and dialogs act on.
package pane

import (
	"context"
	"sort"
	"strings"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/textutil"
	"github.com/shimomut/tfm/internal/tfmpath"
)

// SortMode is one of the supported listing orders.
type SortMode int

const (
	SortByName SortMode = iota
	SortBySize
	SortByModTime
	SortByExtension
)

// Lister is the subset of vfs.Facade a pane needs to (re)load its listing.
type Lister interface {
	Stat(ctx context.Context, p tfmpath.Path) (backend.Info, error)
	Iterdir(ctx context.Context, p tfmpath.Path) (backend.Iterator, error)
}

// Row is one displayed line: either a real entry or the synthetic ".."
// parent-navigation row, which always occupies index 0 when present.
type Row struct {
	Entry    backend.Entry
	IsParent bool
}

// Pane holds one side's current directory, listing, and UI cursor state.
// Nothing here does I/O except Load/Refresh; all other methods are pure
// state transitions so the input router can call them synchronously.
type Pane struct {
	Path         tfmpath.Path
	Rows         []Row
	CursorIndex  int
	ScrollOffset int
	Selection    map[string]bool // entry Name -> selected
	Sort         SortMode
	SortReverse  bool
	FilterText   string
	ShowHidden   bool
}

// New returns an empty pane rooted at start; call Load to populate it.
func New(start tfmpath.Path) *Pane {
	return &Pane{Path: start, Selection: make(map[string]bool)}
}

// Load lists Path via lister, applies the current filter/sort/hidden
// settings, and resets cursor/scroll to the top. Selection is cleared since
// it refers to the previous directory's entries.
func (p *Pane) Load(ctx context.Context, lister Lister) error {
	rows, err := listRows(ctx, lister, p.Path, p.ShowHidden, p.FilterText, p.Sort, p.SortReverse)
	if err != nil {
		return err
	}
	p.Rows = rows
	p.CursorIndex = 0
	p.ScrollOffset = 0
	p.Selection = make(map[string]bool)
	return nil
}

// Refresh reloads the current directory's listing in place, preserving the
// cursor on the same entry name when possible.
func (p *Pane) Refresh(ctx context.Context, lister Lister) error {
	var currentName string
	if row, ok := p.CurrentRow(); ok && !row.IsParent {
		currentName = row.Entry.Name
	}
	rows, err := listRows(ctx, lister, p.Path, p.ShowHidden, p.FilterText, p.Sort, p.SortReverse)
	if err != nil {
		return err
	}
	p.Rows = rows
	p.clampCursor()
	if currentName != "" {
		for i, r := range rows {
			if !r.IsParent && r.Entry.Name == currentName {
				p.CursorIndex = i
				break
			}
		}
	}
	return nil
}

func listRows(ctx context.Context, lister Lister, dir tfmpath.Path, showHidden bool, filter string, mode SortMode, reverse bool) ([]Row, error) {
	it, err := lister.Iterdir(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var entries []backend.Entry
	for {
		e, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if e.IsHidden && !showHidden {
			continue
		}
		if filter != "" && !textutil.GlobMatch(filter, e.Name) {
			continue
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		less := compareEntries(entries[i], entries[j], mode)
		if reverse {
			return !less
		}
		return less
	})

	var rows []Row
	if !dir.IsRoot() {
		rows = append(rows, Row{IsParent: true, Entry: backend.Entry{Path: dir.Parent(), Name: "..", IsDir: true}})
	}
	for _, e := range entries {
		rows = append(rows, Row{Entry: e})
	}
	return rows, nil
}

// compareEntries always sorts directories before files regardless of mode,
// then breaks ties within each group by mode.
func compareEntries(a, b backend.Entry, mode SortMode) bool {
	if a.IsDir != b.IsDir {
		return a.IsDir
	}
	switch mode {
	case SortBySize:
		if a.Size != b.Size {
			return a.Size < b.Size
		}
	case SortByModTime:
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.Before(b.ModTime)
		}
	case SortByExtension:
		ea, eb := strings.ToLower(extOf(a.Name)), strings.ToLower(extOf(b.Name))
		if ea != eb {
			return ea < eb
		}
	}
	return strings.ToLower(a.Name) < strings.ToLower(b.Name)
}

func extOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return ""
	}
	return name[idx:]
}

// CurrentRow returns the row under the cursor, if any.
func (p *Pane) CurrentRow() (Row, bool) {
	if p.CursorIndex < 0 || p.CursorIndex >= len(p.Rows) {
		return Row{}, false
	}
	return p.Rows[p.CursorIndex], true
}

func (p *Pane) clampCursor() {
	if len(p.Rows) == 0 {
		p.CursorIndex = 0
		return
	}
	if p.CursorIndex >= len(p.Rows) {
		p.CursorIndex = len(p.Rows) - 1
	}
	if p.CursorIndex < 0 {
		p.CursorIndex = 0
	}
}

// MoveCursor shifts the cursor by delta rows, clamped to the listing bounds.
func (p *Pane) MoveCursor(delta int) {
	p.CursorIndex += delta
	p.clampCursor()
}

// MoveCursorToTop/Bottom jump to the first/last row.
func (p *Pane) MoveCursorToTop()    { p.CursorIndex = 0 }
func (p *Pane) MoveCursorToBottom() { p.CursorIndex = len(p.Rows) - 1; p.clampCursor() }

// EnsureVisible adjusts ScrollOffset so CursorIndex is within a viewport of
// the given height, scrolling the minimal amount.
func (p *Pane) EnsureVisible(height int) {
	if height <= 0 {
		return
	}
	if p.CursorIndex < p.ScrollOffset {
		p.ScrollOffset = p.CursorIndex
	}
	if p.CursorIndex >= p.ScrollOffset+height {
		p.ScrollOffset = p.CursorIndex - height + 1
	}
	if p.ScrollOffset < 0 {
		p.ScrollOffset = 0
	}
}

// ToggleSelection flips the selected state of the row under the cursor. The
// ".." row is never selectable.
func (p *Pane) ToggleSelection() {
	row, ok := p.CurrentRow()
	if !ok || row.IsParent {
		return
	}
	if p.Selection[row.Entry.Name] {
		delete(p.Selection, row.Entry.Name)
	} else {
		p.Selection[row.Entry.Name] = true
	}
}

// SelectAll/ClearSelection affect every real (non-"..") row.
func (p *Pane) SelectAll() {
	for _, r := range p.Rows {
		if !r.IsParent {
			p.Selection[r.Entry.Name] = true
		}
	}
}

func (p *Pane) ClearSelection() { p.Selection = make(map[string]bool) }

// SelectedPaths returns the Paths of every selected entry, or, if nothing
// is selected, the single entry under the cursor.
func (p *Pane) SelectedPaths() []tfmpath.Path {
	if len(p.Selection) > 0 {
		var out []tfmpath.Path
		for _, r := range p.Rows {
			if !r.IsParent && p.Selection[r.Entry.Name] {
				out = append(out, r.Entry.Path)
			}
		}
		return out
	}
	if row, ok := p.CurrentRow(); ok && !row.IsParent {
		return []tfmpath.Path{row.Entry.Path}
	}
	return nil
}

// SetFilter applies a new glob filter and reloads via the caller (the
// caller must call Load/Refresh afterward; SetFilter itself is pure state).
func (p *Pane) SetFilter(pattern string) { p.FilterText = pattern }

// ToggleShowHidden flips the hidden-file visibility flag.
func (p *Pane) ToggleShowHidden() { p.ShowHidden = !p.ShowHidden }

// Navigate changes the pane's current directory, discarding filter but the caller
// still must call Load to populate the new listing.
func (p *Pane) Navigate(dest tfmpath.Path) {
	p.Path = dest
	p.FilterText = ""
}
