package assoc

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm/internal/config"
	"github.com/shimomut/tfm/internal/tfmpath"
)

func TestEnvRendersTFMVariablesWithShellQuotedSelection(t *testing.T) {
	ctx := PaneContext{
		LeftDir:      "/left",
		RightDir:     "/right",
		ThisDir:      "/left",
		OtherDir:     "/right",
		ThisSelected: []string{"a.txt", "it's a file"},
		ThisIsActive: true,
	}
	env := ctx.Env()
	assert.Contains(t, env, "TFM_LEFT_DIR=/left")
	assert.Contains(t, env, "TFM_ACTIVE=1")

	var selected string
	for _, kv := range env {
		if len(kv) > len("TFM_THIS_SELECTED=") && kv[:len("TFM_THIS_SELECTED=")] == "TFM_THIS_SELECTED=" {
			selected = kv[len("TFM_THIS_SELECTED="):]
		}
	}
	assert.Equal(t, `'a.txt' 'it'\''s a file'`, selected)
}

func TestResolvePicksTemplateByKind(t *testing.T) {
	a := config.Association{Pattern: "*.txt", Open: []string{"less"}, Edit: []string{"vim"}}

	argv, ok := Resolve(a, KindOpen)
	require.True(t, ok)
	assert.Equal(t, []string{"less"}, argv)

	_, ok = Resolve(a, KindView)
	assert.False(t, ok)
}

func TestLaunchRunsChildProcessWithWorkingDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix shell")
	}
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")

	err := Launch([]string{"sh", "-c", "pwd > " + marker}, tfmpath.New("file", "", dir), PaneContext{})
	require.NoError(t, err)

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Contains(t, string(data), filepath.Base(dir))
}
