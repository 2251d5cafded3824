package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/shimomut/tfm/internal/assoc"
	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/backend/local"
	"github.com/shimomut/tfm/internal/backend/s3"
	"github.com/shimomut/tfm/internal/backend/sftp"
	"github.com/shimomut/tfm/internal/batch"
	"github.com/shimomut/tfm/internal/config"
	"github.com/shimomut/tfm/internal/dialog"
	"github.com/shimomut/tfm/internal/input"
	"github.com/shimomut/tfm/internal/logging"
	"github.com/shimomut/tfm/internal/metacache"
	"github.com/shimomut/tfm/internal/pane"
	"github.com/shimomut/tfm/internal/state"
	"github.com/shimomut/tfm/internal/task"
	"github.com/shimomut/tfm/internal/textutil"
	"github.com/shimomut/tfm/internal/tfmpath"
	"github.com/shimomut/tfm/internal/vfs"
)

// searchResultLimit bounds how many hits a filename search keeps in memory.
const searchResultLimit = 5000

// app bundles every collaborator wired together at startup, in the order
// config -> log sink -> state store -> cache -> backend registry -> vfs
// façade -> panes -> dialog stack. Teardown (app.Close) runs the reverse.
type app struct {
	cfg     config.Config
	log     *logging.Sink
	store   *state.Store
	cache   *metacache.Cache
	facade  *vfs.Facade
	panes   *pane.Set
	history *pane.History
	dialogs *dialog.Stack
	table   *input.Table

	screen tcell.Screen

	// pendingAction is the Action whose dialog is currently open, consulted
	// by applyDialogResult once the dialog resolves.
	pendingAction         input.Action
	pendingSources        []tfmpath.Path
	pendingDest           tfmpath.Path
	pendingBatchKind      batch.Kind
	pendingRenameSrc      tfmpath.Path
	pendingArchiveSrc     tfmpath.Path
	searchAwaitingResults bool

	// activeTask/activeBatch track the single in-flight background
	// operation, if any; dispatch refuses to start a second one concurrently.
	activeTask  *task.Task
	activeBatch *batch.Descriptor
	batchCancel context.CancelFunc

	// waitingOnEngine names which engine the topmost dialog is blocking on
	// ("task" or "batch"), so Escape can cancel it instead of being treated
	// as pendingAction's normal resolution.
	waitingOnEngine string
}

func wireApp(leftDir, rightDir, configPath string) (*app, error) {
	statePath, err := state.DefaultPath()
	if err != nil {
		return nil, err
	}
	return wireAppWithPaths(leftDir, rightDir, configPath, statePath)
}

// wireAppWithPaths is wireApp with an explicit state-db path, split out so
// tests can point it at a temp file instead of the real ~/.tfm/state.db.
func wireAppWithPaths(leftDir, rightDir, configPath, statePath string) (*app, error) {
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}
	cfg, err := config.LoadWithEnvOverlay(configPath)
	if err != nil {
		return nil, err
	}

	log := logging.New(os.Stderr, logrus.InfoLevel, 500)

	store, err := state.Open(statePath)
	if err != nil {
		log.Component("state").WithError(err).Warn("state store unavailable, continuing without persistence")
		store = nil
	}

	cache := metacache.New(cfg.Cache.MaxEntries, cfg.Cache.DefaultTTL)

	registry := backend.NewRegistry()
	registry.Register("file", local.New)
	registry.Register("s3", s3.Dial(cache))
	if len(cfg.SFTPHosts) > 0 {
		registry.Register("sftp", sftp.Dial(sftpDialConfig(cfg.SFTPHosts[0])))
	}
	facade := vfs.New(registry, cache)

	left := pane.New(tfmpath.Parse(leftDir))
	right := pane.New(tfmpath.Parse(rightDir))
	left.ShowHidden = cfg.Display.ShowHidden
	right.ShowHidden = cfg.Display.ShowHidden

	ctx := context.Background()
	if err := left.Load(ctx, facade); err != nil {
		log.Component("pane").WithError(err).Warn("failed to load left pane")
	}
	if err := right.Load(ctx, facade); err != nil {
		log.Component("pane").WithError(err).Warn("failed to load right pane")
	}

	history := pane.NewHistory()
	if store != nil {
		if err := history.Load(ctx, store); err != nil {
			log.Component("state").WithError(err).Warn("failed to load cursor history")
		}
	}

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		cache:   cache,
		facade:  facade,
		panes:   pane.NewSet(left, right),
		history: history,
		dialogs: dialog.NewStack(),
		table:   input.NewTable(input.DefaultBindings()),
	}, nil
}

// sftpDialConfig builds a sftp.DialConfig from one configured host entry,
// loading its private key if given and otherwise falling back to the
// running user's ssh-agent-free default of no auth methods (the connection
// then fails fast with KindCredentialsInvalid rather than hanging).
func sftpDialConfig(host config.SFTPHost) sftp.DialConfig {
	var auth []ssh.AuthMethod
	if host.IdentityFile != "" {
		if key, err := os.ReadFile(host.IdentityFile); err == nil {
			if signer, err := ssh.ParsePrivateKey(key); err == nil {
				auth = append(auth, ssh.PublicKeys(signer))
			}
		}
	}
	return sftp.DialConfig{
		Host:           host.Host,
		User:           host.User,
		Auth:           auth,
		ConnectTimeout: host.ConnectTimeout,
	}
}

// Close tears down collaborators in reverse wiring order, persisting
// whatever state survives the session.
func (a *app) Close() {
	if a.store != nil {
		ctx := context.Background()
		if err := a.history.Save(ctx, a.store); err != nil {
			a.log.Component("state").WithError(err).Warn("failed to persist cursor history")
		}
		a.store.Close()
	}
}

// runApp wires every collaborator and drives the terminal event loop until
// the user quits.
func runApp(leftDir, rightDir, configPath string) error {
	a, err := wireApp(leftDir, rightDir, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.store != nil {
		hostname, _ := os.Hostname()
		if err := a.store.Heartbeat(context.Background(), os.Getpid(), hostname); err != nil {
			a.log.Component("state").WithError(err).Warn("heartbeat failed")
		}
		if err := a.store.CleanStaleSessions(context.Background()); err != nil {
			a.log.Component("state").WithError(err).Warn("stale session cleanup failed")
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("tcell.NewScreen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("screen.Init: %w", err)
	}
	a.screen = screen
	defer screen.Fini()

	a.render()
	for {
		ev := screen.PollEvent()
		switch e := ev.(type) {
		case *tcell.EventResize:
			screen.Sync()
			a.render()
		case *tcell.EventKey:
			quit := a.handleKey(e)
			a.render()
			if quit {
				return nil
			}
		case *wakeEvent:
			a.handleWake()
			a.render()
		}
	}
}

// wakeEvent is posted by a background task or batch goroutine to wake the
// PollEvent loop and trigger a redraw; it carries no payload, the relevant
// state lives on the Task/Descriptor the goroutine is driving.
type wakeEvent struct {
	tcell.EventTime
}

// postWake wakes the event loop from any goroutine.
func (a *app) postWake() {
	if a.screen == nil {
		return
	}
	ev := &wakeEvent{}
	ev.SetEventNow()
	_ = a.screen.PostEvent(ev)
}

// handleWake checks whether the in-flight task or batch operation finished
// since the last wake and, if so, resolves it.
func (a *app) handleWake() {
	if a.activeTask != nil {
		select {
		case <-a.activeTask.Done():
			a.finishTask()
		default:
		}
	}
	if a.activeBatch != nil {
		if snap := a.activeBatch.Snapshot(); snap.Done {
			a.finishBatch(snap)
		}
	}
}

// handleKey routes ev to the topmost dialog if one is open, otherwise
// resolves it through the key-binding table against the active pane.
func (a *app) handleKey(ev *tcell.EventKey) (quit bool) {
	if !a.dialogs.Empty() {
		res, done := input.RouteDialog(a.dialogs, ev)
		if done {
			a.dialogs.Pop()
			a.applyDialogResult(res)
		}
		return false
	}

	active := a.panes.Active()
	action, ok := a.table.Resolve(ev, len(active.Selection) > 0)
	if !ok {
		return false
	}
	return a.dispatch(action)
}

// applyDialogResult acts on whichever dialog just resolved: either it was
// blocking on a running task/batch (Escape cancels the operation) or it was
// collecting input/confirmation for a.pendingAction, dispatched to that
// action's finish* method.
func (a *app) applyDialogResult(res dialog.Result) {
	if a.waitingOnEngine != "" {
		switch a.waitingOnEngine {
		case "task":
			if a.activeTask != nil {
				a.activeTask.Cancel()
			}
		case "batch":
			if a.batchCancel != nil {
				a.batchCancel()
			}
		}
		a.waitingOnEngine = ""
		return
	}

	action := a.pendingAction
	a.pendingAction = ""
	if res.Cancelled {
		return
	}
	switch action {
	case input.ActionMkdir:
		a.finishMkdir(res.Value)
	case input.ActionRename:
		a.finishRename(res.Value)
	case input.ActionDelete:
		a.finishDeleteConfirm(res.Value)
	case input.ActionCopy, input.ActionMove:
		a.finishCopyMoveConfirm(res.Value)
	case input.ActionArchiveCreate:
		a.finishArchiveCreateInput(res.Value)
	case input.ActionArchiveExtract:
		a.finishArchiveExtractConfirm(res.Value)
	case input.ActionSearch:
		if a.searchAwaitingResults {
			a.searchAwaitingResults = false
			a.finishSearchSelection(res.Value)
		} else {
			a.finishSearchInput(res.Value)
		}
	case input.ActionJumpToPath:
		a.finishJumpToPath(res.Value)
	}
}

func (a *app) dispatch(action input.Action) (quit bool) {
	ctx := context.Background()
	active := a.panes.Active()
	switch action {
	case input.ActionQuit:
		return true
	case input.ActionMoveUp:
		active.MoveCursor(-1)
	case input.ActionMoveDown:
		active.MoveCursor(1)
	case input.ActionPageUp:
		active.MoveCursor(-10)
	case input.ActionPageDown:
		active.MoveCursor(10)
	case input.ActionMoveTop:
		active.MoveCursorToTop()
	case input.ActionMoveBottom:
		active.MoveCursorToBottom()
	case input.ActionSwapPane:
		a.panes.SwapActive()
	case input.ActionToggleSelect:
		active.ToggleSelection()
	case input.ActionSelectAll:
		active.SelectAll()
	case input.ActionToggleHidden:
		active.ToggleShowHidden()
		_ = active.Refresh(ctx, a.facade)
	case input.ActionParent:
		a.enterRow(ctx, active, true)
	case input.ActionEnter:
		a.enterRow(ctx, active, false)
	case input.ActionCopyPathToClipboard:
		a.copyActivePathToClipboard(active)
	case input.ActionMkdir:
		a.promptMkdir()
	case input.ActionRename:
		a.promptRename(active)
	case input.ActionDelete:
		a.promptDelete(active)
	case input.ActionCopy:
		a.promptCopyMove(active, batch.KindCopy)
	case input.ActionMove:
		a.promptCopyMove(active, batch.KindMove)
	case input.ActionSearch:
		a.promptSearch()
	case input.ActionJumpToPath:
		a.promptJumpToPath(active)
	case input.ActionArchiveCreate:
		a.promptArchiveCreate(active)
	case input.ActionArchiveExtract:
		a.promptArchiveExtract(active)
	case input.ActionOpenAssoc:
		a.dispatchAssoc(assoc.KindOpen)
	case input.ActionViewAssoc:
		a.dispatchAssoc(assoc.KindView)
	case input.ActionEditAssoc:
		a.dispatchAssoc(assoc.KindEdit)
	}
	return false
}

func (a *app) enterRow(ctx context.Context, p *pane.Pane, parentOnly bool) {
	var dest tfmpath.Path
	if parentOnly {
		if p.Path.IsRoot() {
			return
		}
		dest = p.Path.Parent()
	} else {
		row, ok := p.CurrentRow()
		if !ok {
			return
		}
		if !row.Entry.IsDir && !row.IsParent {
			return // opening a file's association is bound separately, to Ctrl+O (ActionOpenAssoc)
		}
		dest = row.Entry.Path
	}

	if row, ok := p.CurrentRow(); ok {
		a.history.Remember(p.Path, row)
	}
	p.Navigate(dest)
	if err := p.Load(ctx, a.facade); err != nil {
		a.log.Component("pane").WithError(err).Warn("failed to load directory")
		return
	}
	a.history.Restore(p)
}

// copyActivePathToClipboard writes the path under the cursor to the system
// clipboard via atotto/clipboard,
// which shells out to the platform clipboard utility.
func (a *app) copyActivePathToClipboard(p *pane.Pane) {
	row, ok := p.CurrentRow()
	if !ok || row.IsParent {
		return
	}
	if err := clipboard.WriteAll(row.Entry.Path.String()); err != nil {
		a.log.Component("clipboard").WithError(err).Warn("failed to write to system clipboard")
	}
}

func confirmChoices() []dialog.Choice {
	return []dialog.Choice{
		{Label: "Yes", Value: "yes", Default: true},
		{Label: "No", Value: "no"},
	}
}

func pathsToStrings(paths []tfmpath.Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

// promptMkdir opens a text-input dialog for the new directory's name.
func (a *app) promptMkdir() {
	if a.activeBatch != nil || a.activeTask != nil {
		return
	}
	a.pendingAction = input.ActionMkdir
	a.dialogs.Push(&dialog.Dialog{Kind: dialog.KindTextInput, Title: "New directory"})
}

func (a *app) finishMkdir(name string) {
	if name == "" {
		return
	}
	ctx := context.Background()
	active := a.panes.Active()
	if err := a.facade.Mkdir(ctx, active.Path.Join(name)); err != nil {
		a.log.Component("batch").WithError(err).Warn("mkdir failed")
		return
	}
	_ = active.Refresh(ctx, a.facade)
}

// promptRename opens a text-input dialog prefilled with the row under the
// cursor's current name.
func (a *app) promptRename(active *pane.Pane) {
	if a.activeBatch != nil || a.activeTask != nil {
		return
	}
	row, ok := active.CurrentRow()
	if !ok || row.IsParent {
		return
	}
	a.pendingRenameSrc = row.Entry.Path
	a.pendingAction = input.ActionRename
	a.dialogs.Push(&dialog.Dialog{Kind: dialog.KindTextInput, Title: "Rename", Input: dialog.NewEditor(row.Entry.Name)})
}

func (a *app) finishRename(newName string) {
	if newName == "" {
		return
	}
	ctx := context.Background()
	active := a.panes.Active()
	dst := a.pendingRenameSrc.Parent().Join(newName)
	if err := a.facade.Rename(ctx, a.pendingRenameSrc, dst); err != nil {
		a.log.Component("batch").WithError(err).Warn("rename failed")
		return
	}
	_ = active.Refresh(ctx, a.facade)
}

// promptDelete confirms deleting the active pane's selection (or the row
// under the cursor, if nothing is selected).
func (a *app) promptDelete(active *pane.Pane) {
	if a.activeBatch != nil || a.activeTask != nil {
		return
	}
	sources := active.SelectedPaths()
	if len(sources) == 0 {
		return
	}
	a.pendingSources = sources
	a.pendingAction = input.ActionDelete
	a.dialogs.Push(&dialog.Dialog{
		Kind:        dialog.KindConfirm,
		Title:       "Delete",
		Message:     fmt.Sprintf("Delete %d item(s)?", len(sources)),
		Choices:     confirmChoices(),
		SelectedIdx: dialog.DefaultChoiceIndex(confirmChoices()),
	})
}

func (a *app) finishDeleteConfirm(value string) {
	if value != "yes" {
		return
	}
	a.startBatch(batch.KindDelete, a.pendingSources, nil, "Deleting")
}

// promptCopyMove confirms copying or moving the active pane's selection into
// the inactive pane's current directory, the conventional dual-pane target.
func (a *app) promptCopyMove(active *pane.Pane, kind batch.Kind) {
	if a.activeBatch != nil || a.activeTask != nil {
		return
	}
	sources := active.SelectedPaths()
	if len(sources) == 0 {
		return
	}
	dest := a.panes.Inactive().Path
	verb := "Copy"
	action := input.ActionCopy
	if kind == batch.KindMove {
		verb = "Move"
		action = input.ActionMove
	}
	a.pendingSources = sources
	a.pendingDest = dest
	a.pendingBatchKind = kind
	a.pendingAction = action
	a.dialogs.Push(&dialog.Dialog{
		Kind:        dialog.KindConfirm,
		Title:       verb,
		Message:     fmt.Sprintf("%s %d item(s) to %s?", verb, len(sources), dest.String()),
		Choices:     confirmChoices(),
		SelectedIdx: dialog.DefaultChoiceIndex(confirmChoices()),
	})
}

func (a *app) finishCopyMoveConfirm(value string) {
	if value != "yes" {
		return
	}
	dest := a.pendingDest
	title := "Copying"
	if a.pendingBatchKind == batch.KindMove {
		title = "Moving"
	}
	a.startBatch(a.pendingBatchKind, a.pendingSources, &dest, title)
}

// promptArchiveCreate asks for the destination archive's name (".zip" or
// ".tar.gz"/".tgz"), created in the active pane's own directory.
func (a *app) promptArchiveCreate(active *pane.Pane) {
	if a.activeBatch != nil || a.activeTask != nil {
		return
	}
	sources := active.SelectedPaths()
	if len(sources) == 0 {
		return
	}
	a.pendingSources = sources
	a.pendingAction = input.ActionArchiveCreate
	a.dialogs.Push(&dialog.Dialog{Kind: dialog.KindTextInput, Title: "Archive name (.zip or .tar.gz)"})
}

func (a *app) finishArchiveCreateInput(name string) {
	if name == "" {
		return
	}
	a.startArchiveCreate(a.pendingSources, name)
}

// promptArchiveExtract confirms extracting the archive under the cursor into
// the active pane's current directory.
func (a *app) promptArchiveExtract(active *pane.Pane) {
	if a.activeBatch != nil || a.activeTask != nil {
		return
	}
	row, ok := active.CurrentRow()
	if !ok || row.IsParent || row.Entry.IsDir {
		return
	}
	a.pendingArchiveSrc = row.Entry.Path
	a.pendingAction = input.ActionArchiveExtract
	a.dialogs.Push(&dialog.Dialog{
		Kind:        dialog.KindConfirm,
		Title:       "Extract",
		Message:     fmt.Sprintf("Extract %s into %s?", row.Entry.Name, active.Path.String()),
		Choices:     confirmChoices(),
		SelectedIdx: dialog.DefaultChoiceIndex(confirmChoices()),
	})
}

func (a *app) finishArchiveExtractConfirm(value string) {
	if value != "yes" {
		return
	}
	a.startArchiveExtract(a.pendingArchiveSrc, a.panes.Active().Path)
}

// promptSearch opens the filename-search pattern dialog.
func (a *app) promptSearch() {
	if a.activeBatch != nil || a.activeTask != nil {
		return
	}
	a.pendingAction = input.ActionSearch
	a.searchAwaitingResults = false
	a.dialogs.Push(&dialog.Dialog{Kind: dialog.KindSearch, Title: "Search filenames"})
}

func (a *app) finishSearchInput(pattern string) {
	if pattern == "" {
		return
	}
	if a.activeBatch != nil || a.activeTask != nil {
		return
	}
	a.startTask(task.KindFilenameSearch, pattern, a.panes.Active().Path.String(), searchResultLimit, "Searching")
}

func (a *app) finishSearchSelection(value string) {
	if value == "" {
		return
	}
	a.navigateActiveTo(value)
}

// promptJumpToPath opens a text-input dialog prefilled with the active
// pane's current directory, letting the user type a destination directly.
func (a *app) promptJumpToPath(active *pane.Pane) {
	a.pendingAction = input.ActionJumpToPath
	a.dialogs.Push(&dialog.Dialog{Kind: dialog.KindJumpToPath, Title: "Jump to path", Input: dialog.NewEditor(active.Path.String())})
}

func (a *app) finishJumpToPath(value string) {
	if value == "" {
		return
	}
	a.navigateActiveTo(value)
}

// dispatchAssoc resolves the row under the cursor's file association for
// kind and launches it, suspending the screen for the child process's
// duration.
func (a *app) dispatchAssoc(kind assoc.Kind) {
	active := a.panes.Active()
	row, ok := active.CurrentRow()
	if !ok || row.IsParent {
		return
	}
	association, ok := a.cfg.FindAssociation(textutil.GlobMatch, row.Entry.Name)
	if !ok {
		return
	}
	argv, ok := assoc.Resolve(association, kind)
	if !ok {
		return
	}
	inactive := a.panes.Inactive()
	paneCtx := assoc.PaneContext{
		LeftDir:       a.panes.Panes[pane.Left].Path.String(),
		RightDir:      a.panes.Panes[pane.Right].Path.String(),
		ThisDir:       active.Path.String(),
		OtherDir:      inactive.Path.String(),
		ThisSelected:  pathsToStrings(active.SelectedPaths()),
		OtherSelected: pathsToStrings(inactive.SelectedPaths()),
		ThisIsActive:  true,
	}
	if a.screen != nil {
		_ = a.screen.Suspend()
	}
	if err := assoc.Launch(argv, active.Path, paneCtx); err != nil {
		a.log.Component("assoc").WithError(err).Warn("failed to launch association")
	}
	if a.screen != nil {
		_ = a.screen.Resume()
	}
	_ = active.Refresh(context.Background(), a.facade)
}

// navigateActiveTo navigates the active pane to raw, a path typed or picked
// from search/jump results. If raw names a file, the pane lands on its
// parent directory with the cursor on that file.
func (a *app) navigateActiveTo(raw string) {
	ctx := context.Background()
	active := a.panes.Active()
	target := tfmpath.Parse(raw)
	dest := target
	cursorName := ""
	if info, err := a.facade.Stat(ctx, target); err == nil && !info.IsDir {
		dest = target.Parent()
		cursorName = target.Name()
	}
	if row, ok := active.CurrentRow(); ok {
		a.history.Remember(active.Path, row)
	}
	active.Navigate(dest)
	if err := active.Load(ctx, a.facade); err != nil {
		a.log.Component("pane").WithError(err).Warn("failed to load directory")
		return
	}
	if cursorName != "" {
		for i, r := range active.Rows {
			if !r.IsParent && r.Entry.Name == cursorName {
				active.CursorIndex = i
				return
			}
		}
		return
	}
	a.history.Restore(active)
}

// startTask starts a background task and a "waiting" dialog the user can
// cancel with Escape.
func (a *app) startTask(kind task.Kind, pattern, root string, limit int, waitTitle string) {
	id := fmt.Sprintf("task-%d", time.Now().UnixNano())
	t := task.New(id, kind, pattern, root, limit)
	var worker task.Worker
	switch kind {
	case task.KindFilenameSearch:
		worker = task.FilenameSearchWorker(a.facade, tfmpath.Parse(root), pattern)
	default:
		return
	}
	a.activeTask = t
	a.waitingOnEngine = "task"
	a.dialogs.Push(&dialog.Dialog{Kind: dialog.KindInfo, Title: waitTitle, Message: "Press Esc to cancel"})
	t.Run(context.Background(), worker)
	go func() {
		<-t.Done()
		a.postWake()
	}()
}

// finishTask pops the waiting dialog and turns the task's buffered results
// into a list dialog the user picks a destination from.
func (a *app) finishTask() {
	t := a.activeTask
	if t == nil {
		return
	}
	a.activeTask = nil
	a.waitingOnEngine = ""
	if top := a.dialogs.Top(); top != nil && top.Kind == dialog.KindInfo {
		a.dialogs.Pop()
	}
	items, truncated := t.Buffer.Snapshot()
	switch t.Kind {
	case task.KindFilenameSearch:
		a.pushSearchResults(items, truncated)
	}
}

func (a *app) pushSearchResults(items []interface{}, truncated bool) {
	listItems := make([]dialog.ListItem, 0, len(items))
	for _, it := range items {
		if r, ok := it.(task.FilenameResult); ok {
			listItems = append(listItems, dialog.ListItem{Label: r.Path, Value: r.Path})
		}
	}
	title := "Search results"
	if truncated {
		title += " (truncated)"
	}
	if len(listItems) == 0 {
		a.dialogs.Push(&dialog.Dialog{Kind: dialog.KindInfo, Title: title, Message: "No matches"})
		return
	}
	a.dialogs.Push(&dialog.Dialog{Kind: dialog.KindList, Title: title, Items: listItems})
	a.pendingAction = input.ActionSearch
	a.searchAwaitingResults = true
}

// startBatch starts a background copy/move/delete and a "waiting" dialog the
// user can cancel with Escape.
func (a *app) startBatch(kind batch.Kind, sources []tfmpath.Path, dest *tfmpath.Path, waitTitle string) {
	d := &batch.Descriptor{Kind: kind, Sources: sources, Destination: dest}
	ctx, cancel := context.WithCancel(context.Background())
	a.activeBatch = d
	a.batchCancel = cancel
	a.waitingOnEngine = "batch"
	a.dialogs.Push(&dialog.Dialog{Kind: dialog.KindInfo, Title: waitTitle, Message: "Press Esc to cancel"})
	go func() {
		cancelled := func() bool { return ctx.Err() != nil }
		onProgress := func(batch.Snapshot) { a.postWake() }
		if err := batch.Run(ctx, a.facade, d, cancelled, onProgress); err != nil {
			a.log.Component("batch").WithError(err).Warn("batch operation failed")
		}
		a.postWake()
	}()
}

func (a *app) startArchiveCreate(sources []tfmpath.Path, name string) {
	ctx := context.Background()
	dest := a.panes.Active().Path.Join(name)
	wc, err := a.facade.WriteBytes(ctx, dest)
	if err != nil {
		a.log.Component("batch").WithError(err).Warn("failed to open archive destination")
		return
	}
	d := &batch.Descriptor{Kind: batch.KindArchiveCreate, Sources: sources}
	runCtx, cancel := context.WithCancel(ctx)
	a.activeBatch = d
	a.batchCancel = cancel
	a.waitingOnEngine = "batch"
	a.dialogs.Push(&dialog.Dialog{Kind: dialog.KindInfo, Title: "Creating archive", Message: "Press Esc to cancel"})
	go func() {
		cancelled := func() bool { return runCtx.Err() != nil }
		onProgress := func(batch.Snapshot) { a.postWake() }
		if err := batch.RunArchiveCreate(runCtx, a.facade, d, wc, name, cancelled, onProgress); err != nil {
			a.log.Component("batch").WithError(err).Warn("archive create failed")
		}
		a.postWake()
	}()
}

func (a *app) startArchiveExtract(src, destDir tfmpath.Path) {
	ctx := context.Background()
	rc, err := a.facade.ReadBytes(ctx, src)
	if err != nil {
		a.log.Component("batch").WithError(err).Warn("failed to open archive source")
		return
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		a.log.Component("batch").WithError(err).Warn("failed to read archive source")
		return
	}
	r := bytes.NewReader(data)
	d := &batch.Descriptor{Kind: batch.KindArchiveExtract, Sources: []tfmpath.Path{src}, Destination: &destDir}
	runCtx, cancel := context.WithCancel(ctx)
	a.activeBatch = d
	a.batchCancel = cancel
	a.waitingOnEngine = "batch"
	a.dialogs.Push(&dialog.Dialog{Kind: dialog.KindInfo, Title: "Extracting archive", Message: "Press Esc to cancel"})
	go func() {
		cancelled := func() bool { return runCtx.Err() != nil }
		onProgress := func(batch.Snapshot) { a.postWake() }
		if err := batch.RunArchiveExtract(runCtx, a.facade, d, r, int64(len(data)), src.Name(), destDir, cancelled, onProgress); err != nil {
			a.log.Component("batch").WithError(err).Warn("archive extract failed")
		}
		a.postWake()
	}()
}

// finishBatch clears the in-flight batch, refreshes both panes (the
// listing is now stale), and surfaces any per-file errors.
func (a *app) finishBatch(snap batch.Snapshot) {
	a.activeBatch = nil
	a.batchCancel = nil
	a.waitingOnEngine = ""
	if top := a.dialogs.Top(); top != nil && top.Kind == dialog.KindInfo {
		a.dialogs.Pop()
	}
	ctx := context.Background()
	for _, p := range a.panes.Panes {
		_ = p.Refresh(ctx, a.facade)
	}
	if len(snap.Errors) > 0 {
		a.dialogs.Push(&dialog.Dialog{
			Kind:    dialog.KindInfo,
			Title:   "Completed with errors",
			Message: fmt.Sprintf("%d of %d item(s) failed; first error: %v", len(snap.Errors), snap.TotalFiles, snap.Errors[0].Err),
		})
	}
}

const statusBarHeight = 1

// render draws both panes side by side plus a one-line status bar. This is
// deliberately the simplest layout that exercises the full pane/dialog/input
// wiring.
func (a *app) render() {
	a.screen.Clear()
	w, h := a.screen.Size()
	if w <= 0 || h <= statusBarHeight {
		a.screen.Show()
		return
	}
	colWidth := w / 2
	listHeight := h - statusBarHeight

	for _, p := range a.panes.Panes {
		p.EnsureVisible(listHeight)
	}

	drawPane(a.screen, a.panes.Panes[0], 0, 0, colWidth, listHeight, a.panes.ActiveSide() == pane.Left)
	drawPane(a.screen, a.panes.Panes[1], colWidth, 0, w-colWidth, listHeight, a.panes.ActiveSide() == pane.Right)
	drawStatus(a.screen, a.panes.Active(), 0, h-1, w)

	if top := a.dialogs.Top(); top != nil {
		drawDialog(a.screen, top, w, h)
	}
	a.screen.Show()
}

func drawPane(screen tcell.Screen, p *pane.Pane, x, y, width, height int, active bool) {
	style := tcell.StyleDefault
	headerStyle := style.Bold(true)
	if active {
		headerStyle = headerStyle.Foreground(tcell.ColorYellow)
	}
	drawText(screen, x, y, width, p.Path.String(), headerStyle)

	for row := 0; row < height-1 && row+p.ScrollOffset < len(p.Rows); row++ {
		r := p.Rows[row+p.ScrollOffset]
		rowStyle := style
		if row+p.ScrollOffset == p.CursorIndex && active {
			rowStyle = rowStyle.Reverse(true)
		}
		if !r.IsParent && p.Selection[r.Entry.Name] {
			rowStyle = rowStyle.Foreground(tcell.ColorGreen)
		}
		label := r.Entry.Name
		if r.Entry.IsDir {
			label += "/"
		}
		drawText(screen, x, y+1+row, width, label, rowStyle)
	}
}

func drawStatus(screen tcell.Screen, active *pane.Pane, x, y, width int) {
	msg := fmt.Sprintf("%d items, %d selected", len(active.Rows), len(active.Selection))
	drawText(screen, x, y, width, msg, tcell.StyleDefault.Dim(true))
}

func drawDialog(screen tcell.Screen, d *dialog.Dialog, screenW, screenH int) {
	boxW, boxH := screenW/2, 5
	x0, y0 := screenW/4, screenH/2-boxH/2
	style := tcell.StyleDefault.Reverse(true)
	for row := 0; row < boxH; row++ {
		drawText(screen, x0, y0+row, boxW, "", style)
	}
	drawText(screen, x0+1, y0, boxW-2, d.Title, style.Bold(true))
	if d.Kind == dialog.KindTextInput || d.Kind == dialog.KindJumpToPath || d.Kind == dialog.KindSearch || d.Kind == dialog.KindBatchRename {
		drawText(screen, x0+1, y0+2, boxW-2, d.Input.Text(), style)
	} else {
		drawText(screen, x0+1, y0+2, boxW-2, d.Message, style)
	}
}

func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	col := x
	for _, r := range text {
		if col >= x+width {
			break
		}
		screen.SetContent(col, y, r, nil, style)
		col++
	}
	for ; col < x+width; col++ {
		screen.SetContent(col, y, ' ', nil, style)
	}
}
