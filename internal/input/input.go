// Package input routes raw terminal key events: when a
// dialog is open it receives every keystroke as either a navigation
// command or literal text for its editor; otherwise keys resolve through
// the configurable key-binding table into pane/application actions, with
// some actions requiring a selection and others refusing one.
package input

import (
	"github.com/gdamore/tcell/v2"

	"github.com/shimomut/tfm/internal/dialog"
)

// Action identifies a bound command, independent of which key triggered it.
type Action string

const (
	ActionMoveUp         Action = "move_up"
	ActionMoveDown       Action = "move_down"
	ActionPageUp         Action = "page_up"
	ActionPageDown       Action = "page_down"
	ActionMoveTop        Action = "move_top"
	ActionMoveBottom     Action = "move_bottom"
	ActionEnter          Action = "enter"        // open directory (files open via ActionOpenAssoc)
	ActionParent         Action = "parent"        // navigate to ".."
	ActionSwapPane       Action = "swap_pane"
	ActionToggleSelect   Action = "toggle_select"
	ActionSelectAll      Action = "select_all"
	ActionCopy           Action = "copy"
	ActionMove           Action = "move"
	ActionDelete         Action = "delete"
	ActionMkdir          Action = "mkdir"
	ActionRename         Action = "rename"
	ActionSearch         Action = "search"
	ActionJumpToPath     Action = "jump_to_path"
	ActionToggleHidden   Action = "toggle_hidden"
	ActionArchiveCreate  Action = "archive_create"
	ActionArchiveExtract Action = "archive_extract"
	ActionOpenAssoc      Action = "open_assoc"
	ActionViewAssoc      Action = "view_assoc"
	ActionEditAssoc      Action = "edit_assoc"
	ActionQuit           Action = "quit"
	ActionCancelDialog   Action = "cancel_dialog"
	ActionSubmitDialog   Action = "submit_dialog"
	ActionCopyPathToClipboard Action = "copy_path_to_clipboard"
)

// SelectionRequirement constrains when an Action is permitted based on
// whether the active pane currently has a non-empty selection.
type SelectionRequirement int

const (
	SelectionAny SelectionRequirement = iota
	SelectionNone
	SelectionRequired
)

// Binding maps one key chord to an Action, with its selection constraint.
type Binding struct {
	Key        tcell.Key
	Rune       rune // used when Key == tcell.KeyRune
	Mod        tcell.ModMask
	Action     Action
	Selection  SelectionRequirement
}

// Table is the resolvable key-binding set, built from an explicit binding
// list (the app passes DefaultBindings). Key bindings from internal/config
// are not translated into a Table.
type Table struct {
	bindings []Binding
}

// NewTable builds a Table from an explicit binding list.
func NewTable(bindings []Binding) *Table { return &Table{bindings: bindings} }

// Resolve finds the Action bound to ev, given whether the active pane has a
// selection. Returns ok=false if no binding matches or the matching
// binding's selection requirement is not met.
func (t *Table) Resolve(ev *tcell.EventKey, hasSelection bool) (Action, bool) {
	for _, b := range t.bindings {
		if !keyMatches(b, ev) {
			continue
		}
		switch b.Selection {
		case SelectionRequired:
			if !hasSelection {
				continue
			}
		case SelectionNone:
			if hasSelection {
				continue
			}
		}
		return b.Action, true
	}
	return "", false
}

func keyMatches(b Binding, ev *tcell.EventKey) bool {
	if ev.Modifiers() != b.Mod {
		return false
	}
	if b.Key == tcell.KeyRune {
		return ev.Key() == tcell.KeyRune && ev.Rune() == b.Rune
	}
	return ev.Key() == b.Key
}

// DefaultBindings is the out-of-the-box key map; config key_bindings
// entries do not override it.
func DefaultBindings() []Binding {
	return []Binding{
		{Key: tcell.KeyUp, Action: ActionMoveUp},
		{Key: tcell.KeyDown, Action: ActionMoveDown},
		{Key: tcell.KeyPgUp, Action: ActionPageUp},
		{Key: tcell.KeyPgDn, Action: ActionPageDown},
		{Key: tcell.KeyHome, Action: ActionMoveTop},
		{Key: tcell.KeyEnd, Action: ActionMoveBottom},
		{Key: tcell.KeyEnter, Action: ActionEnter},
		{Key: tcell.KeyBackspace, Action: ActionParent},
		{Key: tcell.KeyBackspace2, Action: ActionParent},
		{Key: tcell.KeyTab, Action: ActionSwapPane},
		{Key: tcell.KeyRune, Rune: ' ', Action: ActionToggleSelect},
		{Key: tcell.KeyRune, Rune: '+', Action: ActionSelectAll},
		{Key: tcell.KeyF5, Action: ActionCopy},
		{Key: tcell.KeyF6, Action: ActionMove},
		{Key: tcell.KeyF7, Action: ActionMkdir},
		{Key: tcell.KeyF8, Action: ActionDelete, Selection: SelectionRequired},
		{Key: tcell.KeyF2, Action: ActionRename, Selection: SelectionRequired},
		{Key: tcell.KeyRune, Rune: '/', Action: ActionSearch},
		{Key: tcell.KeyRune, Rune: 'g', Mod: tcell.ModCtrl, Action: ActionJumpToPath},
		{Key: tcell.KeyRune, Rune: 'h', Mod: tcell.ModCtrl, Action: ActionToggleHidden},
		{Key: tcell.KeyRune, Rune: 'a', Mod: tcell.ModCtrl, Action: ActionArchiveCreate, Selection: SelectionRequired},
		{Key: tcell.KeyRune, Rune: 'x', Mod: tcell.ModCtrl, Action: ActionArchiveExtract, Selection: SelectionRequired},
		{Key: tcell.KeyRune, Rune: 'o', Mod: tcell.ModCtrl, Action: ActionOpenAssoc},
		{Key: tcell.KeyRune, Rune: 'v', Mod: tcell.ModCtrl, Action: ActionViewAssoc},
		{Key: tcell.KeyRune, Rune: 'e', Mod: tcell.ModCtrl, Action: ActionEditAssoc},
		{Key: tcell.KeyRune, Rune: 'y', Mod: tcell.ModCtrl, Action: ActionCopyPathToClipboard, Selection: SelectionAny},
		{Key: tcell.KeyF10, Action: ActionQuit},
		{Key: tcell.KeyEscape, Action: ActionCancelDialog},
	}
}

// RouteDialog interprets ev for whatever dialog is on top of stack, mapping
// navigation keys to dialog operations and everything else to literal text
// insertion into its Editor. It returns a non-empty Result only when ev
// submits or cancels the dialog; the caller should then Pop() the stack and
// act on the Result.
func RouteDialog(stack *dialog.Stack, ev *tcell.EventKey) (dialog.Result, bool) {
	top := stack.Top()
	if top == nil {
		return dialog.Result{}, false
	}
	switch ev.Key() {
	case tcell.KeyEscape:
		return dialog.Result{Cancelled: true}, true
	case tcell.KeyEnter:
		return top.Resolve(), true
	case tcell.KeyUp:
		top.MoveSelection(-1)
		return dialog.Result{}, false
	case tcell.KeyDown:
		top.MoveSelection(1)
		return dialog.Result{}, false
	}

	if top.Kind != dialog.KindTextInput && top.Kind != dialog.KindJumpToPath &&
		top.Kind != dialog.KindSearch && top.Kind != dialog.KindBatchRename {
		return dialog.Result{}, false
	}

	switch ev.Key() {
	case tcell.KeyLeft:
		top.Input.Left()
	case tcell.KeyRight:
		top.Input.Right()
	case tcell.KeyHome:
		top.Input.Home()
	case tcell.KeyEnd:
		top.Input.End()
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		top.Input.Backspace()
	case tcell.KeyDelete:
		top.Input.Delete()
	case tcell.KeyRune:
		top.Input.Insert(string(ev.Rune()))
	}
	top.RedrawNeeded = true
	return dialog.Result{}, false
}
