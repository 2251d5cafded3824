// Package tfmpath implements the polymorphic Path value: a cheap,
// backend-independent handle over a URI of the form
// <scheme>://<authority>/<key> (or a bare local path, scheme "file" implied).
//
// Every method here is purely syntactic, no I/O. Backends (internal/backend/*)
// interpret a Path's scheme and key to perform actual reads/writes.
package tfmpath

import (
	"strings"
)

// Path is a cheap, comparable handle. Two Paths are equal iff their
// normalized URI strings are equal (textual equality, not resolved identity).
type Path struct {
	scheme string // "file", "s3", "sftp", "archive+zip", "archive+targz"
	authority string // host[:port], or "user@host[:port]"; bucket for s3
	key       string // the path/key portion, may carry a trailing "/"
}

// Parse interprets raw as a Path. A string without "://" is treated as a
// bare local path (scheme "file", no authority).
func Parse(raw string) Path {
	if idx := strings.Index(raw, "://"); idx >= 0 {
		scheme := raw[:idx]
		rest := raw[idx+3:]
		authority := ""
		key := rest
		if slash := strings.Index(rest, "/"); slash >= 0 {
			authority = rest[:slash]
			key = rest[slash:]
		} else {
			authority = rest
			key = "/"
		}
		return Path{scheme: scheme, authority: authority, key: key}
	}
	return Path{scheme: "file", authority: "", key: raw}
}

// New builds a Path directly from its parts, used by backends that already
// know scheme/authority/key (e.g. after a join or a listing).
func New(scheme, authority, key string) Path {
	return Path{scheme: scheme, authority: authority, key: key}
}

// String renders the normalized URI form.
func (p Path) String() string {
	if p.scheme == "file" && p.authority == "" {
		return p.key
	}
	return p.scheme + "://" + p.authority + p.key
}

// Scheme returns the backend-selecting scheme.
func (p Path) Scheme() string { return p.scheme }

// Authority returns the host/bucket portion (empty for local paths).
func (p Path) Authority() string { return p.authority }

// Key returns the raw path/key portion (may carry a trailing slash).
func (p Path) Key() string { return p.key }

// IsRoot reports whether this Path is the root of its authority (bucket
// root, archive root, or filesystem root "/").
func (p Path) IsRoot() bool {
	k := strings.TrimSuffix(p.key, "/")
	return k == "" || k == "/"
}

// Name returns the last path component, after stripping one trailing "/".
// Root paths have an empty name.
func (p Path) Name() string {
	if p.IsRoot() {
		return ""
	}
	trimmed := strings.TrimSuffix(p.key, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// Parent returns the enclosing directory. The parent of a root is itself.
// For remote/archive keys the result keeps directory-style trailing "/".
func (p Path) Parent() Path {
	if p.IsRoot() {
		return p
	}
	trimmed := strings.TrimSuffix(p.key, "/")
	idx := strings.LastIndex(trimmed, "/")
	var parentKey string
	if idx < 0 {
		parentKey = "/"
	} else {
		parentKey = trimmed[:idx+1]
		if parentKey == "" {
			parentKey = "/"
		}
	}
	if p.scheme == "file" && parentKey != "/" {
		parentKey = strings.TrimSuffix(parentKey, "/")
	}
	if p.scheme != "file" && parentKey != "/" && !strings.HasSuffix(parentKey, "/") {
		parentKey += "/"
	}
	return Path{scheme: p.scheme, authority: p.authority, key: parentKey}
}

// Parts splits the key into its non-empty path components.
func (p Path) Parts() []string {
	trimmed := strings.Trim(p.key, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Suffix returns the extension of Name (including the leading dot), or "".
func (p Path) Suffix() string {
	name := p.Name()
	idx := strings.LastIndex(name, ".")
	if idx <= 0 { // no dot, or dotfile with no further extension
		return ""
	}
	return name[idx:]
}

// Stem returns Name with Suffix removed.
func (p Path) Stem() string {
	name := p.Name()
	suf := p.Suffix()
	if suf == "" {
		return name
	}
	return strings.TrimSuffix(name, suf)
}

// IsDirStyle reports whether the key carries the trailing-slash directory
// convention used by remote and archive backends.
func (p Path) IsDirStyle() bool {
	return strings.HasSuffix(p.key, "/")
}

// Join appends child onto p with exactly one "/" separator, never "//".
func (p Path) Join(child string) Path {
	child = strings.TrimPrefix(child, "/")
	base := p.key
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return Path{scheme: p.scheme, authority: p.authority, key: base + child}
}

// Equal reports textual equality of the normalized URI.
func (p Path) Equal(o Path) bool { return p.String() == o.String() }

// IsRemote reports whether the scheme implies network I/O. Archive schemes
// are not remote (they wrap a local or already-fetched container) but are
// still not the plain local backend.
func (p Path) IsRemote() bool {
	return p.scheme == "s3" || p.scheme == "sftp" || p.scheme == "ssh"
}

// IsArchive reports whether this Path lives inside an archive-virtual
// container.
func (p Path) IsArchive() bool {
	return strings.HasPrefix(p.scheme, "archive+")
}
