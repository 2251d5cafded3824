package batch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"strings"

	"github.com/shimomut/tfm/internal/backend/archive"
	"github.com/shimomut/tfm/internal/tfmerr"
	"github.com/shimomut/tfm/internal/tfmpath"
)

// RunArchiveCreate walks d.Sources (pre-counted like any other batch op) and
// streams each file into an archive at destination, preserving each
// source's directory structure relative to its own parent.
func RunArchiveCreate(ctx context.Context, w FileWalker, d *Descriptor, destWriter io.Writer, destName string, cancelled func() bool, onProgress func(Snapshot)) error {
	items, err := preCount(ctx, w, d.Sources)
	if err != nil {
		return tfmerr.New(tfmerr.KindIoFailure, "pre-count", "", err)
	}
	d.mu.Lock()
	d.totalFiles = len(items)
	d.mu.Unlock()

	aw, err := archive.NewWriter(destName, destWriter)
	if err != nil {
		return err
	}

	for _, item := range items {
		if cancelled() {
			break
		}
		d.mu.Lock()
		d.currentItem = item.path.String()
		d.mu.Unlock()
		onProgress(d.snapshot())

		if err := appendOne(ctx, w, aw, item); err != nil {
			d.mu.Lock()
			d.errors = append(d.errors, ErrorItem{Path: item.path.String(), Err: err})
			d.mu.Unlock()
		}
		d.mu.Lock()
		d.processed++
		d.mu.Unlock()
		onProgress(d.snapshot())
	}

	closeErr := aw.Close()
	d.mu.Lock()
	d.done = true
	d.mu.Unlock()
	onProgress(d.snapshot())
	return closeErr
}

func appendOne(ctx context.Context, w FileWalker, aw archive.Writer, item fileItem) error {
	r, err := w.ReadBytes(ctx, item.path)
	if err != nil {
		return err
	}
	defer r.Close()
	return aw.WriteFile(item.relToRoot, item.size, r)
}

// RunArchiveExtract reads a zip or tar.gz stream and materializes its
// entries under destination, rejecting any entry that would escape
// destination via "..".
func RunArchiveExtract(ctx context.Context, w FileWalker, d *Descriptor, src io.ReaderAt, srcSize int64, srcName string, destination tfmpath.Path, cancelled func() bool, onProgress func(Snapshot)) error {
	type entry struct {
		name string
		size int64
		open func() (io.ReadCloser, error)
	}
	var entries []entry

	switch {
	case strings.HasSuffix(srcName, ".zip"):
		zr, err := zip.NewReader(src, srcSize)
		if err != nil {
			return tfmerr.New(tfmerr.KindIoFailure, "archive-extract", srcName, err)
		}
		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			ff := f
			entries = append(entries, entry{name: f.Name, size: int64(f.UncompressedSize64), open: func() (io.ReadCloser, error) { return ff.Open() }})
		}
	case strings.HasSuffix(srcName, ".tar.gz") || strings.HasSuffix(srcName, ".tgz"):
		r, ok := src.(io.Reader)
		if !ok {
			return tfmerr.New(tfmerr.KindUnsupported, "archive-extract", srcName, nil)
		}
		gz, err := gzip.NewReader(r)
		if err != nil {
			return tfmerr.New(tfmerr.KindIoFailure, "archive-extract", srcName, err)
		}
		tr := tar.NewReader(gz)
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return tfmerr.New(tfmerr.KindIoFailure, "archive-extract", srcName, err)
			}
			if hdr.Typeflag == tar.TypeDir {
				continue
			}
			buf := make([]byte, hdr.Size)
			if _, err := io.ReadFull(tr, buf); err != nil {
				return tfmerr.New(tfmerr.KindIoFailure, "archive-extract", hdr.Name, err)
			}
			entries = append(entries, entry{name: hdr.Name, size: hdr.Size, open: func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(buf)), nil
			}})
		}
	default:
		return tfmerr.New(tfmerr.KindUnsupported, "archive-extract", srcName, nil)
	}

	d.mu.Lock()
	d.totalFiles = len(entries)
	d.mu.Unlock()

	for _, e := range entries {
		if cancelled() {
			break
		}
		d.mu.Lock()
		d.currentItem = e.name
		d.mu.Unlock()
		onProgress(d.snapshot())

		if err := extractOne(ctx, w, e.name, e.open, destination); err != nil {
			d.mu.Lock()
			d.errors = append(d.errors, ErrorItem{Path: e.name, Err: err})
			d.mu.Unlock()
		}
		d.mu.Lock()
		d.processed++
		d.mu.Unlock()
		onProgress(d.snapshot())
	}
	d.mu.Lock()
	d.done = true
	d.mu.Unlock()
	onProgress(d.snapshot())
	return nil
}

func extractOne(ctx context.Context, w FileWalker, name string, open func() (io.ReadCloser, error), destination tfmpath.Path) error {
	rel, err := archive.SafeJoin(name)
	if err != nil {
		return err
	}
	r, err := open()
	if err != nil {
		return tfmerr.New(tfmerr.KindIoFailure, "archive-extract", name, err)
	}
	defer r.Close()
	target := destination.Join(rel)
	out, err := w.WriteBytes(ctx, target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return tfmerr.New(tfmerr.KindIoFailure, "archive-extract", name, err)
	}
	return out.Close()
}
