// Package assoc dispatches the open/view/edit actions to an
// external process: resolve the file's association from config, build its
// argv, set the TFM_* environment variables describing both panes, and run
// it with the active pane's directory (or a local fallback for a remote
// pane) as the working directory.
package assoc

import (
	"os"
	"os/exec"
	"strings"

	"github.com/shimomut/tfm/internal/config"
	"github.com/shimomut/tfm/internal/tfmerr"
	"github.com/shimomut/tfm/internal/tfmpath"
)

// Kind selects which of an Association's three argv templates to dispatch.
type Kind int

const (
	KindOpen Kind = iota
	KindView
	KindEdit
)

// PaneContext is everything assoc needs to know about both panes to build
// the TFM_* environment for the child process.
type PaneContext struct {
	LeftDir       string
	RightDir      string
	ThisDir       string
	OtherDir      string
	ThisSelected  []string
	OtherSelected []string
	ThisIsActive  bool
}

// Env renders ctx as the TFM_* environment variable set appended to a
// child process's environment.
func (ctx PaneContext) Env() []string {
	active := "0"
	if ctx.ThisIsActive {
		active = "1"
	}
	return []string{
		"TFM_LEFT_DIR=" + ctx.LeftDir,
		"TFM_RIGHT_DIR=" + ctx.RightDir,
		"TFM_THIS_DIR=" + ctx.ThisDir,
		"TFM_OTHER_DIR=" + ctx.OtherDir,
		"TFM_THIS_SELECTED=" + quoteList(ctx.ThisSelected),
		"TFM_OTHER_SELECTED=" + quoteList(ctx.OtherSelected),
		"TFM_ACTIVE=" + active,
	}
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = shellQuote(it)
	}
	return strings.Join(quoted, " ")
}

// shellQuote wraps s in single quotes, escaping any embedded single quote,
// so a child shell script can safely re-split TFM_*_SELECTED.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Resolve picks the argv template for kind from assoc, or ok=false if that
// action has no template on this association.
func Resolve(a config.Association, kind Kind) (argv []string, ok bool) {
	switch kind {
	case KindOpen:
		return a.Open, len(a.Open) > 0
	case KindView:
		return a.View, len(a.View) > 0
	case KindEdit:
		return a.Edit, len(a.Edit) > 0
	default:
		return nil, false
	}
}

// workDir picks the directory to run the child process from: the active
// pane's own directory if it is local, otherwise the home directory, since
// an external program cannot chdir into an s3/sftp/archive URI.
func workDir(paneDir tfmpath.Path) string {
	if paneDir.Scheme() == "file" {
		return paneDir.String()
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// Launch runs argv as a foreground child process with ctx's TFM_* variables
// appended to the environment, blocking until it exits. Target is the
// active pane's directory, used only to pick the working directory.
func Launch(argv []string, target tfmpath.Path, ctx PaneContext) error {
	if len(argv) == 0 {
		return tfmerr.New(tfmerr.KindInvalidName, "assoc-launch", "", nil)
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workDir(target)
	cmd.Env = append(os.Environ(), ctx.Env()...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return tfmerr.New(tfmerr.KindIoFailure, "assoc-launch", argv[0], err)
	}
	return nil
}
