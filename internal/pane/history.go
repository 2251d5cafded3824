package pane

import (
	"context"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/tfmpath"
)

// Persister is the subset of state.Store cursor history needs, kept narrow
// so pane does not import internal/state directly.
type Persister interface {
	PutJSON(ctx context.Context, key string, value interface{}) error
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
}

const cursorHistoryStateKey = "cursor_history"

// cursorRecord is the serialized shape of one remembered directory position.
type cursorRecord struct {
	Dir    string `json:"dir"`
	Cursor string `json:"cursor"` // entry name the cursor was on
}

// History remembers, per directory, which entry name the cursor last sat
// on, so re-entering a directory (via "..", or re-navigating into it)
// restores the cursor instead of resetting to the top.
type History struct {
	byDir map[string]string
}

// NewHistory returns an empty in-memory history.
func NewHistory() *History {
	return &History{byDir: make(map[string]string)}
}

// Remember records the entry name currently under the cursor for dir.
func (h *History) Remember(dir tfmpath.Path, row Row) {
	if row.IsParent {
		return
	}
	h.byDir[dir.String()] = row.Entry.Name
}

// Restore looks up dir's remembered cursor entry name and, if the pane's
// current Rows contain that name, moves the cursor onto it. Otherwise the
// cursor lands on the nearest neighbor: the row sorted immediately before
// where the remembered name would fall.
func (h *History) Restore(p *Pane) {
	name, ok := h.byDir[p.Path.String()]
	if !ok {
		return
	}
	for i, r := range p.Rows {
		if !r.IsParent && r.Entry.Name == name {
			p.CursorIndex = i
			return
		}
	}
	p.CursorIndex = nearestNeighborIndex(p, name)
}

// nearestNeighborIndex finds the row sorted immediately before where an
// entry named name would land under p's current sort order, or 0 if none
// precede it. The remembered name carries no size/mtime/dir information (only
// the name survives in history), so it is compared as a plain file entry,
// the common case for a single deleted item.
func nearestNeighborIndex(p *Pane, name string) int {
	synthetic := backend.Entry{Name: name}
	best := 0
	for i, r := range p.Rows {
		if r.IsParent {
			continue
		}
		less := compareEntries(r.Entry, synthetic, p.Sort)
		if p.SortReverse {
			less = !less
		}
		if !less {
			break
		}
		best = i
	}
	return best
}

// Load replaces the in-memory history with data persisted under store,
// called once at startup. A missing key is not an error.
func (h *History) Load(ctx context.Context, store Persister) error {
	var records []cursorRecord
	ok, err := store.GetJSON(ctx, cursorHistoryStateKey, &records)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	for _, r := range records {
		h.byDir[r.Dir] = r.Cursor
	}
	return nil
}

// Save persists the full in-memory history to store.
func (h *History) Save(ctx context.Context, store Persister) error {
	records := make([]cursorRecord, 0, len(h.byDir))
	for dir, cursor := range h.byDir {
		records = append(records, cursorRecord{Dir: dir, Cursor: cursor})
	}
	return store.PutJSON(ctx, cursorHistoryStateKey, records)
}
