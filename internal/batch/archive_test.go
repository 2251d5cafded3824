package batch

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm/internal/tfmpath"
)

func TestArchiveCreateThenExtractRoundTrip(t *testing.T) {
	w := newMemWalker()
	w.files["/src/a.txt"] = []byte("A-content")
	w.files["/src/sub/b.txt"] = []byte("B-content")
	w.dirs["/src"] = nil // not used by preCount for individual file sources below

	sources := []tfmpath.Path{tfmpath.New("file", "", "/src/a.txt"), tfmpath.New("file", "", "/src/sub/b.txt")}
	d := &Descriptor{Kind: KindArchiveCreate, Sources: sources}

	var out bytes.Buffer
	err := RunArchiveCreate(context.Background(), w, d, &out, "bundle.zip", func() bool { return false }, func(Snapshot) {})
	require.NoError(t, err)
	assert.Equal(t, 2, d.Snapshot().Processed)

	// Round-trip: extract the produced zip back out and check byte equality.
	zr, err := zip.NewReader(bytes.NewReader(out.Bytes()), int64(out.Len()))
	require.NoError(t, err)
	assert.Len(t, zr.File, 2)

	dest := tfmpath.New("file", "", "/extracted")
	d2 := &Descriptor{Kind: KindArchiveExtract}
	err = RunArchiveExtract(context.Background(), w, d2, bytes.NewReader(out.Bytes()), int64(out.Len()), "bundle.zip", dest, func() bool { return false }, func(Snapshot) {})
	require.NoError(t, err)

	// Both sources were selected as individual files (not a shared
	// directory), so each is archived relative to its own parent and lands
	// flattened at the archive's top level.
	assert.Equal(t, []byte("A-content"), w.files["/extracted/a.txt"])
	assert.Equal(t, []byte("B-content"), w.files["/extracted/b.txt"])
}
