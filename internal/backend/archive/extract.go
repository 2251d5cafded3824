package archive

import (
	"path"
	"strings"

	"github.com/shimomut/tfm/internal/tfmerr"
)

// SafeJoin sanitizes entryName into a relative path, rejecting any entry
// whose cleaned path would escape the extraction root via "..". It never
// performs I/O; callers use the returned relative path to build the actual
// destination Path.
func SafeJoin(entryName string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(entryName, "\\", "/"))
	rel := strings.TrimPrefix(cleaned, "/")
	if rel == "" || rel == "." || strings.HasPrefix(rel, "../") || rel == ".." {
		return "", tfmerr.New(tfmerr.KindInvalidName, "archive-extract", entryName, nil)
	}
	return rel, nil
}
