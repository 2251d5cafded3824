package textutil

import (
	"bytes"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

const sniffSize = 1024

// IsBinary classifies a sample of a file's leading bytes as binary: a null
// byte anywhere in the sample, or a failure to decode as UTF-8 followed by a
// failure to decode as Latin-1.
func IsBinary(sample []byte) bool {
	if len(sample) > sniffSize {
		sample = sample[:sniffSize]
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}
	if utf8.Valid(sample) {
		return false
	}
	dec := charmap.ISO8859_1.NewDecoder()
	if _, err := dec.Bytes(sample); err != nil {
		return true
	}
	return false
}

// ClassificationCache memoizes IsBinary results per path for the duration
// of one task.
type ClassificationCache struct {
	mu sync.Mutex
	m  map[string]bool
}

// NewClassificationCache returns an empty, ready-to-use cache.
func NewClassificationCache() *ClassificationCache {
	return &ClassificationCache{m: make(map[string]bool)}
}

// Get returns the cached binary/text classification for path, if known.
func (c *ClassificationCache) Get(path string) (isBinary, known bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[path]
	return v, ok
}

// Put records the classification for path.
func (c *ClassificationCache) Put(path string, isBinary bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[path] = isBinary
}
