package task

import (
	"bufio"
	"context"
	"io"
	"regexp"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/textutil"
	"github.com/shimomut/tfm/internal/tfmpath"
)

// Walker is the minimal surface the search/scan workers need from the Path
// façade (internal/vfs.Facade satisfies this), kept narrow so tests can
// supply an in-memory tree without standing up real backends.
type Walker interface {
	Iterdir(ctx context.Context, p tfmpath.Path) (backend.Iterator, error)
	ReadBytes(ctx context.Context, p tfmpath.Path) (io.ReadCloser, error)
}

const contentSearchSizeCeiling = 8 << 20 // 8 MiB

// FilenameSearchWorker walks root recursively, appending every entry whose
// Name matches pattern (glob, case-insensitive) to t.Buffer. Directory
// traversal continues into subdirectories regardless of match. It checks
// t.Cancelled() between every directory entry.
func FilenameSearchWorker(w Walker, root tfmpath.Path, pattern string) Worker {
	return func(ctx context.Context, t *Task) error {
		var walk func(dir tfmpath.Path) bool // returns false to stop (cancel or limit hit)
		walk = func(dir tfmpath.Path) bool {
			if t.Cancelled() {
				return false
			}
			it, err := w.Iterdir(ctx, dir)
			if err != nil {
				return true // an unreadable subdirectory doesn't abort the whole search
			}
			defer it.Close()
			for {
				if t.Cancelled() {
					return false
				}
				e, ok, err := it.Next(ctx)
				if err != nil || !ok {
					return true
				}
				if textutil.GlobMatch(pattern, e.Name) {
					if !t.Buffer.Append(FilenameResult{Path: e.Path.String()}) {
						return false // limit hit, buffer marked truncated
					}
				}
				if e.IsDir {
					if !walk(e.Path) {
						return false
					}
				}
			}
		}
		walk(root)
		return nil
	}
}

// ContentSearchWorker streams text files under root and appends one
// ContentResult per regex match per line. Files
// failing text-file detection, or over contentSearchSizeCeiling, are
// skipped. A ClassificationCache memoizes the binary/text verdict per path
// for the lifetime of this task.
func ContentSearchWorker(w Walker, root tfmpath.Path, pattern *regexp.Regexp) Worker {
	classified := textutil.NewClassificationCache()
	return recursiveContentWalk(w, root, pattern, classified)
}

func recursiveContentWalk(w Walker, root tfmpath.Path, pattern *regexp.Regexp, classified *textutil.ClassificationCache) Worker {
	return func(ctx context.Context, t *Task) error {
		var walk func(dir tfmpath.Path) error
		walk = func(dir tfmpath.Path) error {
			if t.Cancelled() {
				return nil
			}
			it, err := w.Iterdir(ctx, dir)
			if err != nil {
				return nil
			}
			defer it.Close()
			for {
				if t.Cancelled() {
					return nil
				}
				e, ok, err := it.Next(ctx)
				if err != nil {
					return nil
				}
				if !ok {
					return nil
				}
				if e.IsDir {
					if err := walk(e.Path); err != nil {
						return err
					}
					continue
				}
				if e.Size > contentSearchSizeCeiling {
					continue
				}
				if !searchOneFile(ctx, w, e.Path.String(), classified, pattern, t) {
					return nil
				}
			}
		}
		return walk(root)
	}
}

func searchOneFile(ctx context.Context, w Walker, path string, classified *textutil.ClassificationCache, pattern *regexp.Regexp, t *Task) bool {
	p := tfmpath.Parse(path)
	r, err := w.ReadBytes(ctx, p)
	if err != nil {
		return true
	}
	defer r.Close()

	if isBin, known := classified.Get(path); known && isBin {
		return true
	}

	br := bufio.NewReader(r)
	sample, _ := br.Peek(1024)
	isBin := textutil.IsBinary(sample)
	classified.Put(path, isBin)
	if isBin {
		return true
	}

	scanner := bufio.NewScanner(br)
	lineNo := 0
	for scanner.Scan() {
		if t.Cancelled() {
			return false
		}
		lineNo++
		line := scanner.Text()
		if loc := pattern.FindStringIndex(line); loc != nil {
			if !t.Buffer.Append(ContentResult{
				Path: path, LineNumber: lineNo, LineText: line,
				MatchStart: loc[0], MatchEnd: loc[1],
			}) {
				return false
			}
		}
	}
	return true
}

// DirScanWorker enumerates directories under root for the jump dialog.
// showHidden controls whether hidden directories are skipped; if root
// itself sits inside a hidden tree, filtering stops.
func DirScanWorker(w Walker, root tfmpath.Path, showHidden bool) Worker {
	return func(ctx context.Context, t *Task) error {
		rootHidden := isHiddenName(root.Name())
		var walk func(dir tfmpath.Path, withinHidden bool) error
		walk = func(dir tfmpath.Path, withinHidden bool) error {
			if t.Cancelled() {
				return nil
			}
			it, err := w.Iterdir(ctx, dir)
			if err != nil {
				return nil
			}
			defer it.Close()
			for {
				if t.Cancelled() {
					return nil
				}
				e, ok, err := it.Next(ctx)
				if err != nil || !ok {
					return nil
				}
				if !e.IsDir {
					continue
				}
				skip := !showHidden && !withinHidden && isHiddenName(e.Name)
				if !skip {
					if !t.Buffer.Append(ScanResult{Path: e.Path.String()}) {
						return nil
					}
				}
				if err := walk(e.Path, withinHidden || isHiddenName(e.Name)); err != nil {
					return err
				}
			}
		}
		return walk(root, rootHidden)
	}
}

func isHiddenName(name string) bool {
	return len(name) > 0 && name[0] == '.'
}
