package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStackOnlyTopReceivesFocus(t *testing.T) {
	s := NewStack()
	assert.True(t, s.Empty())

	d1 := &Dialog{Kind: KindInfo, Title: "first"}
	d2 := &Dialog{Kind: KindInfo, Title: "second"}
	s.Push(d1)
	s.Push(d2)

	assert.Equal(t, 2, s.Depth())
	assert.Same(t, d2, s.Top())

	popped := s.Pop()
	assert.Same(t, d2, popped)
	assert.Same(t, d1, s.Top())

	s.Pop()
	assert.True(t, s.Empty())
	assert.Nil(t, s.Top())
}

func TestConfirmDialogResolvesSelectedChoice(t *testing.T) {
	choices := []Choice{
		{Label: "Overwrite", Value: "overwrite"},
		{Label: "Skip", Value: "skip", Default: true},
		{Label: "Cancel", Value: "cancel"},
	}
	d := &Dialog{Kind: KindConfirm, Choices: choices, SelectedIdx: DefaultChoiceIndex(choices)}
	assert.Equal(t, "skip", d.Resolve().Value)

	d.MoveSelection(-1)
	assert.Equal(t, "overwrite", d.Resolve().Value)

	d.MoveSelection(-5) // clamps at 0
	assert.Equal(t, "overwrite", d.Resolve().Value)

	d.MoveSelection(100) // clamps at len-1
	assert.Equal(t, "cancel", d.Resolve().Value)
}

func TestTextInputDialogResolvesEditorText(t *testing.T) {
	d := &Dialog{Kind: KindJumpToPath, Input: NewEditor("/home")}
	d.Input.Insert("/x")
	assert.Equal(t, "/home/x", d.Resolve().Value)
}

func TestEditorCursorMovementAndEditing(t *testing.T) {
	e := NewEditor("hello")
	assert.Equal(t, 5, e.Cursor())

	e.Home()
	assert.Equal(t, 0, e.Cursor())
	e.Right()
	e.Right()
	assert.Equal(t, 2, e.Cursor())

	e.Insert("X")
	assert.Equal(t, "heXllo", e.Text())
	assert.Equal(t, 3, e.Cursor())

	e.Backspace()
	assert.Equal(t, "hello", e.Text())

	e.End()
	e.Backspace()
	assert.Equal(t, "hell", e.Text())

	e.Home()
	e.Delete()
	assert.Equal(t, "ell", e.Text())
}

func TestEditorHandlesMultiByteRunes(t *testing.T) {
	e := NewEditor("café")
	e.Home()
	e.Right()
	e.Right()
	e.Right()
	e.Right() // now after "café" (4 runes)
	assert.Equal(t, 4, e.Cursor())
	e.Backspace()
	assert.Equal(t, "caf", e.Text())
}
