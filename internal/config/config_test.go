package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm/internal/textutil"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "display:\n  show_hidden: true\ncache:\n  max_entries: 10\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Display.ShowHidden)
	assert.Equal(t, 10, cfg.Cache.MaxEntries)
	// Untouched fields keep their default value.
	assert.True(t, cfg.Behavior.ConfirmDelete)
}

func TestFindAssociationFirstMatchWins(t *testing.T) {
	cfg := Default()
	cfg.Associations = []Association{
		{Pattern: "*.txt", Open: []string{"less"}},
		{Pattern: "*", Open: []string{"xdg-open"}},
	}
	a, ok := cfg.FindAssociation(textutil.GlobMatch, "notes.txt")
	require.True(t, ok)
	assert.Equal(t, []string{"less"}, a.Open)

	a, ok = cfg.FindAssociation(textutil.GlobMatch, "archive.zip")
	require.True(t, ok)
	assert.Equal(t, []string{"xdg-open"}, a.Open)
}

func TestEnvOverlayOverridesShowHidden(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("display:\n  show_hidden: false\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TFM_SHOW_HIDDEN=true\n"), 0o644))

	cfg, err := LoadWithEnvOverlay(path)
	require.NoError(t, err)
	assert.True(t, cfg.Display.ShowHidden)
}
