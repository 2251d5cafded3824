// Package sftp implements the Backend capability set over an SFTP host,
// using github.com/pkg/sftp atop golang.org/x/crypto/ssh.
package sftp

import (
	"context"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/tfmerr"
	"github.com/shimomut/tfm/internal/tfmpath"
)

// Client is the subset of *sftp.Client this backend calls, satisfied by the
// real client (via clientAdapter) and by a fake in tests.
type Client interface {
	Stat(p string) (os.FileInfo, error)
	ReadDir(p string) ([]os.FileInfo, error)
	Open(p string) (io.ReadCloser, error)
	Create(p string) (io.WriteCloser, error)
	Rename(oldname, newname string) error
	Remove(p string) error
	RemoveDirectory(p string) error
	MkdirAll(p string) error
}

// clientAdapter narrows *sftp.Client's wider API to the Client interface.
type clientAdapter struct{ c *sftp.Client }

func (a clientAdapter) Stat(p string) (os.FileInfo, error)      { return a.c.Stat(p) }
func (a clientAdapter) ReadDir(p string) ([]os.FileInfo, error) { return a.c.ReadDir(p) }
func (a clientAdapter) Open(p string) (io.ReadCloser, error)    { return a.c.Open(p) }
func (a clientAdapter) Create(p string) (io.WriteCloser, error) { return a.c.Create(p) }
func (a clientAdapter) Rename(oldname, newname string) error    { return a.c.Rename(oldname, newname) }
func (a clientAdapter) Remove(p string) error                   { return a.c.Remove(p) }
func (a clientAdapter) RemoveDirectory(p string) error          { return a.c.RemoveDirectory(p) }
func (a clientAdapter) MkdirAll(p string) error                 { return a.c.MkdirAll(p) }

// Backend implements backend.Backend over one SFTP session.
type Backend struct {
	client Client
	conn   *ssh.Client // non-nil when owned by this Backend, for teardown
}

// DialConfig carries the connection parameters sourced from config: host,
// user, auth method, and connect timeout.
type DialConfig struct {
	Host           string
	User           string
	Auth           []ssh.AuthMethod
	ConnectTimeout time.Duration
	HostKeyCB      ssh.HostKeyCallback
}

// Dial opens an SSH connection and an SFTP session over it, returning a
// backend.Constructor bound to cfg for registration in a Registry.
func Dial(cfg DialConfig) backend.Constructor {
	return func(scheme, authority string) (backend.Backend, error) {
		timeout := cfg.ConnectTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hostKeyCB := cfg.HostKeyCB
		if hostKeyCB == nil {
			hostKeyCB = ssh.InsecureIgnoreHostKey()
		}
		conn, err := ssh.Dial("tcp", cfg.Host, &ssh.ClientConfig{
			User:            cfg.User,
			Auth:            cfg.Auth,
			HostKeyCallback: hostKeyCB,
			Timeout:         timeout,
		})
		if err != nil {
			return nil, tfmerr.New(tfmerr.KindCredentialsInvalid, "dial", authority, err)
		}
		client, err := sftp.NewClient(conn)
		if err != nil {
			conn.Close()
			return nil, tfmerr.New(tfmerr.KindIoFailure, "dial", authority, err)
		}
		return &Backend{client: clientAdapter{client}, conn: conn}, nil
	}
}

// New wraps an already-open Client, used by tests.
func New(client Client) *Backend { return &Backend{client: client} }

func (b *Backend) Scheme() string               { return "sftp" }
func (b *Backend) IsRemote() bool                { return true }
func (b *Backend) SupportsDirectoryRename() bool { return true }

func nativePath(p tfmpath.Path) string {
	k := p.Key()
	if k == "" {
		return "/"
	}
	return k
}

func (b *Backend) Exists(ctx context.Context, p tfmpath.Path) (bool, error) {
	_, err := b.client.Stat(nativePath(p))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, wrap("exists", p, err)
}

func (b *Backend) IsFile(ctx context.Context, p tfmpath.Path) (bool, error) {
	fi, err := b.client.Stat(nativePath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, wrap("is_file", p, err)
	}
	return !fi.IsDir(), nil
}

func (b *Backend) IsDir(ctx context.Context, p tfmpath.Path) (bool, error) {
	fi, err := b.client.Stat(nativePath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, wrap("is_dir", p, err)
	}
	return fi.IsDir(), nil
}

func (b *Backend) Stat(ctx context.Context, p tfmpath.Path, hint backend.StatHint) (backend.Info, error) {
	fi, err := b.client.Stat(nativePath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return backend.Info{}, tfmerr.New(tfmerr.KindNotFound, "stat", p.String(), err)
		}
		return backend.Info{}, wrap("stat", p, err)
	}
	return backend.Info{Size: fi.Size(), ModTime: fi.ModTime(), IsDir: fi.IsDir()}, nil
}

type dirIterator struct {
	parent  tfmpath.Path
	entries []os.FileInfo
	idx     int
}

func (it *dirIterator) Next(ctx context.Context) (backend.Entry, bool, error) {
	if it.idx >= len(it.entries) {
		return backend.Entry{}, false, nil
	}
	fi := it.entries[it.idx]
	it.idx++
	return backend.Entry{
		Path:     it.parent.Join(fi.Name()),
		Name:     fi.Name(),
		Size:     fi.Size(),
		ModTime:  fi.ModTime(),
		IsDir:    fi.IsDir(),
		IsHidden: strings.HasPrefix(fi.Name(), "."),
	}, true, nil
}

func (it *dirIterator) Close() error { return nil }

func (b *Backend) Iterdir(ctx context.Context, p tfmpath.Path) (backend.Iterator, error) {
	entries, err := b.client.ReadDir(nativePath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tfmerr.New(tfmerr.KindNotFound, "iterdir", p.String(), err)
		}
		return nil, wrap("iterdir", p, err)
	}
	return &dirIterator{parent: p, entries: entries}, nil
}

func (b *Backend) ReadBytes(ctx context.Context, p tfmpath.Path) (io.ReadCloser, error) {
	f, err := b.client.Open(nativePath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, tfmerr.New(tfmerr.KindNotFound, "read_bytes", p.String(), err)
		}
		return nil, wrap("read_bytes", p, err)
	}
	return f, nil
}

func (b *Backend) WriteBytes(ctx context.Context, p tfmpath.Path) (io.WriteCloser, error) {
	if err := b.client.MkdirAll(path.Dir(nativePath(p))); err != nil {
		return nil, wrap("write_bytes", p, err)
	}
	f, err := b.client.Create(nativePath(p))
	if err != nil {
		return nil, wrap("write_bytes", p, err)
	}
	return f, nil
}

func (b *Backend) Rename(ctx context.Context, src, dst tfmpath.Path) error {
	if err := b.client.Rename(nativePath(src), nativePath(dst)); err != nil {
		return wrap("rename", src, err)
	}
	return nil
}

func (b *Backend) Unlink(ctx context.Context, p tfmpath.Path) error {
	if err := b.client.Remove(nativePath(p)); err != nil {
		if os.IsNotExist(err) {
			return tfmerr.New(tfmerr.KindNotFound, "unlink", p.String(), err)
		}
		return wrap("unlink", p, err)
	}
	return nil
}

func (b *Backend) Mkdir(ctx context.Context, p tfmpath.Path) error {
	if err := b.client.MkdirAll(nativePath(p)); err != nil {
		return wrap("mkdir", p, err)
	}
	return nil
}

func (b *Backend) Rmdir(ctx context.Context, p tfmpath.Path) error {
	if err := b.client.RemoveDirectory(nativePath(p)); err != nil {
		return wrap("rmdir", p, err)
	}
	return nil
}

// Rmtree walks and removes files bottom-up; SFTP has no recursive-delete
// primitive, so this recursive helper does it with per-entry Unlink/Rmdir.
// The batch engine's delete calls it for each directory source after
// unlinking the files beneath it.
func (b *Backend) Rmtree(ctx context.Context, p tfmpath.Path) error {
	entries, err := b.client.ReadDir(nativePath(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return wrap("rmtree", p, err)
	}
	for _, fi := range entries {
		child := p.Join(fi.Name())
		if fi.IsDir() {
			if err := b.Rmtree(ctx, child); err != nil {
				return err
			}
			continue
		}
		if err := b.Unlink(ctx, child); err != nil {
			return err
		}
	}
	return b.Rmdir(ctx, p)
}

// CopyTo reports Unsupported: SFTP has no server-side copy primitive, so
// the Path façade falls back to stream read+write.
func (b *Backend) CopyTo(ctx context.Context, src, dst tfmpath.Path) error {
	return tfmerr.New(tfmerr.KindUnsupported, "copy_to", src.String(), nil)
}

// Close tears down the SSH connection this Backend owns, if any.
func (b *Backend) Close() error {
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

func wrap(op string, p tfmpath.Path, err error) error {
	if os.IsPermission(err) {
		return tfmerr.New(tfmerr.KindPermissionDenied, op, p.String(), err)
	}
	if status, ok := err.(*sftp.StatusError); ok && status.Code == 3 { // SSH_FX_PERMISSION_DENIED
		return tfmerr.New(tfmerr.KindPermissionDenied, op, p.String(), err)
	}
	return tfmerr.New(tfmerr.KindIoFailure, op, p.String(), err)
}
