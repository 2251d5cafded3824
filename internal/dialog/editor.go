package dialog

// Editor is a single-line text edit widget operating on a rune slice so
// cursor movement and deletion are correct for multi-byte characters.
type Editor struct {
	runes  []rune
	cursor int // index into runes, 0..len(runes)
}

// NewEditor returns an Editor pre-populated with initial text, cursor at
// the end.
func NewEditor(initial string) Editor {
	r := []rune(initial)
	return Editor{runes: r, cursor: len(r)}
}

// Text returns the current contents as a string.
func (e *Editor) Text() string { return string(e.runes) }

// Cursor returns the cursor's rune offset.
func (e *Editor) Cursor() int { return e.cursor }

// Insert inserts s at the cursor and advances the cursor past it.
func (e *Editor) Insert(s string) {
	if s == "" {
		return
	}
	ins := []rune(s)
	e.runes = append(e.runes[:e.cursor], append(append([]rune{}, ins...), e.runes[e.cursor:]...)...)
	e.cursor += len(ins)
}

// Backspace deletes the rune before the cursor, if any.
func (e *Editor) Backspace() {
	if e.cursor == 0 {
		return
	}
	e.runes = append(e.runes[:e.cursor-1], e.runes[e.cursor:]...)
	e.cursor--
}

// Delete removes the rune at the cursor (forward delete), if any.
func (e *Editor) Delete() {
	if e.cursor >= len(e.runes) {
		return
	}
	e.runes = append(e.runes[:e.cursor], e.runes[e.cursor+1:]...)
}

// Left/Right move the cursor by one rune, clamped to bounds.
func (e *Editor) Left() {
	if e.cursor > 0 {
		e.cursor--
	}
}

func (e *Editor) Right() {
	if e.cursor < len(e.runes) {
		e.cursor++
	}
}

// Home/End jump to the start/end of the text.
func (e *Editor) Home() { e.cursor = 0 }
func (e *Editor) End()  { e.cursor = len(e.runes) }

// Clear empties the editor.
func (e *Editor) Clear() {
	e.runes = nil
	e.cursor = 0
}

// Len returns the rune length of the text.
func (e *Editor) Len() int { return len(e.runes) }
