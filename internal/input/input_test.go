package input

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm/internal/dialog"
)

func key(k tcell.Key, r rune, mod tcell.ModMask) *tcell.EventKey {
	return tcell.NewEventKey(k, r, mod)
}

func TestResolveDefaultBindingMoveDown(t *testing.T) {
	table := NewTable(DefaultBindings())
	action, ok := table.Resolve(key(tcell.KeyDown, 0, tcell.ModNone), false)
	require.True(t, ok)
	assert.Equal(t, ActionMoveDown, action)
}

func TestResolveRespectsSelectionRequired(t *testing.T) {
	table := NewTable(DefaultBindings())

	_, ok := table.Resolve(key(tcell.KeyF8, 0, tcell.ModNone), false)
	assert.False(t, ok, "delete requires a selection")

	action, ok := table.Resolve(key(tcell.KeyF8, 0, tcell.ModNone), true)
	require.True(t, ok)
	assert.Equal(t, ActionDelete, action)
}

func TestResolveUnboundKeyFails(t *testing.T) {
	table := NewTable(DefaultBindings())
	_, ok := table.Resolve(key(tcell.KeyRune, 'z', tcell.ModNone), false)
	assert.False(t, ok)
}

func TestRouteDialogEscapeCancels(t *testing.T) {
	stack := dialog.NewStack()
	stack.Push(&dialog.Dialog{Kind: dialog.KindInfo})

	res, done := RouteDialog(stack, key(tcell.KeyEscape, 0, tcell.ModNone))
	assert.True(t, done)
	assert.True(t, res.Cancelled)
}

func TestRouteDialogTextInsertionGoesToEditor(t *testing.T) {
	stack := dialog.NewStack()
	d := &dialog.Dialog{Kind: dialog.KindJumpToPath, Input: dialog.NewEditor("")}
	stack.Push(d)

	_, done := RouteDialog(stack, key(tcell.KeyRune, '/', tcell.ModNone))
	assert.False(t, done)
	_, done = RouteDialog(stack, key(tcell.KeyRune, 'x', tcell.ModNone))
	assert.False(t, done)

	res, done := RouteDialog(stack, key(tcell.KeyEnter, 0, tcell.ModNone))
	assert.True(t, done)
	assert.Equal(t, "/x", res.Value)
}

func TestRouteDialogArrowsMoveSelectionNotText(t *testing.T) {
	stack := dialog.NewStack()
	choices := []dialog.Choice{{Label: "a", Value: "a"}, {Label: "b", Value: "b"}}
	d := &dialog.Dialog{Kind: dialog.KindConfirm, Choices: choices}
	stack.Push(d)

	RouteDialog(stack, key(tcell.KeyDown, 0, tcell.ModNone))
	assert.Equal(t, 1, d.SelectedIdx)
}
