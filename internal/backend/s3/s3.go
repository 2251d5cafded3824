// Package s3 implements the Backend capability set over an S3-shaped object
// store using the AWS SDK v1 client.
//
// Directories here are virtual: a prefix is a "directory" if any object
// shares that prefix or a literal key ending in "/" exists at that level.
// The key discipline invariant lives in this package: Iterdir
// populates the shared metacache under each child's own key as it lists, so
// a later Stat on that same child is a pure cache hit with zero S3 calls.
package s3

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/metacache"
	"github.com/shimomut/tfm/internal/tfmerr"
	"github.com/shimomut/tfm/internal/tfmpath"
)

const virtualDirTTL = 30 * time.Second

// API is the subset of the S3 client this backend calls; satisfied by
// *s3.S3, mocked in tests.
type API interface {
	ListObjectsV2WithContext(ctx aws.Context, in *s3.ListObjectsV2Input, opts ...request.Option) (*s3.ListObjectsV2Output, error)
	HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, opts ...request.Option) (*s3.HeadObjectOutput, error)
	GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
	PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
	CopyObjectWithContext(ctx aws.Context, in *s3.CopyObjectInput, opts ...request.Option) (*s3.CopyObjectOutput, error)
	DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, opts ...request.Option) (*s3.DeleteObjectOutput, error)
	DeleteObjectsWithContext(ctx aws.Context, in *s3.DeleteObjectsInput, opts ...request.Option) (*s3.DeleteObjectsOutput, error)
}

// Backend implements backend.Backend over one bucket.
type Backend struct {
	bucket string
	client API
	cache  *metacache.Cache
}

// Dial opens the default AWS session/config and returns a constructor bound
// to that session, suitable for registration in a backend.Registry.
func Dial(cache *metacache.Cache) backend.Constructor {
	return func(scheme, authority string) (backend.Backend, error) {
		sess, err := session.NewSessionWithOptions(session.Options{SharedConfigState: session.SharedConfigEnable})
		if err != nil {
			return nil, tfmerr.New(tfmerr.KindCredentialsMissing, "dial", authority, err)
		}
		return &Backend{bucket: authority, client: s3.New(sess), cache: cache}, nil
	}
}

// New wraps an already-constructed API client, used by tests and by Dial.
func New(bucket string, client API, cache *metacache.Cache) *Backend {
	return &Backend{bucket: bucket, client: client, cache: cache}
}

func (b *Backend) Scheme() string               { return "s3" }
func (b *Backend) IsRemote() bool                { return true }
func (b *Backend) SupportsDirectoryRename() bool { return false }

func key(p tfmpath.Path) string { return strings.TrimPrefix(p.Key(), "/") }

func (b *Backend) statCacheKey(objectKey string, hint backend.StatHint) metacache.Key {
	k := objectKey
	if hint.Key != "" {
		k = hint.Key
	}
	return metacache.Key{Operation: "stat", Bucket: b.bucket, ObjectKey: k}
}

func (b *Backend) Exists(ctx context.Context, p tfmpath.Path) (bool, error) {
	isFile, err := b.IsFile(ctx, p)
	if err != nil {
		return false, err
	}
	if isFile {
		return true, nil
	}
	return b.IsDir(ctx, p)
}

func (b *Backend) IsFile(ctx context.Context, p tfmpath.Path) (bool, error) {
	info, err := b.Stat(ctx, p, backend.StatHint{})
	if tfmerr.Is(err, tfmerr.KindNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir, nil
}

// IsDir treats p as a virtual directory: true if a delimited listing at
// this prefix returns anything, or the literal "dir/" key exists.
func (b *Backend) IsDir(ctx context.Context, p tfmpath.Path) (bool, error) {
	prefix := key(p)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	out, err := b.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int64(1),
	})
	if err != nil {
		return false, wrapAWS("is_dir", p, err)
	}
	return len(out.Contents) > 0 || len(out.CommonPrefixes) > 0, nil
}

// Stat skips head_object for a dir-style key (trailing "/") or the bucket
// root. Any other key is tried with head_object first; if no literal object
// exists it falls back to virtual-directory semantics, synthesizing size=0
// and mtime = max(children mtimes), cached briefly.
func (b *Backend) Stat(ctx context.Context, p tfmpath.Path, hint backend.StatHint) (backend.Info, error) {
	objectKey := key(p)
	ck := b.statCacheKey(objectKey, hint)
	if v, ok := b.cache.Get(ck); ok {
		return v.(backend.Info), nil
	}

	if !strings.HasSuffix(objectKey, "/") && objectKey != "" {
		out, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(objectKey),
		})
		if err == nil {
			info := backend.Info{Size: aws.Int64Value(out.ContentLength), ModTime: aws.TimeValue(out.LastModified)}
			b.cache.Put(ck, info, 0)
			return info, nil
		}
		if !isNotFound(err) {
			return backend.Info{}, wrapAWS("stat", p, err)
		}
	}

	// Fall through to virtual-directory semantics.
	info, err := b.statVirtualDir(ctx, objectKey)
	if err != nil {
		return backend.Info{}, err
	}
	if !info.IsDir {
		return backend.Info{}, tfmerr.New(tfmerr.KindNotFound, "stat", p.String(), nil)
	}
	b.cache.Put(ck, info, virtualDirTTL)
	return info, nil
}

func (b *Backend) statVirtualDir(ctx context.Context, objectKey string) (backend.Info, error) {
	prefix := objectKey
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	out, err := b.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int64(1000),
	})
	if err != nil {
		return backend.Info{}, wrapAWS("stat", tfmpath.New("s3", b.bucket, "/"+prefix), err)
	}
	if len(out.Contents) == 0 && len(out.CommonPrefixes) == 0 {
		return backend.Info{IsDir: false}, nil
	}
	mtime := time.Now()
	latest := time.Time{}
	for _, obj := range out.Contents {
		if t := aws.TimeValue(obj.LastModified); t.After(latest) {
			latest = t
		}
	}
	if !latest.IsZero() {
		mtime = latest
	}
	return backend.Info{Size: 0, ModTime: mtime, IsDir: true}, nil
}

type listIterator struct {
	b       *Backend
	prefix  string
	token   *string
	pending []backend.Entry
	idx     int
	done    bool
}

func (it *listIterator) fill(ctx context.Context) error {
	out, err := it.b.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:            aws.String(it.b.bucket),
		Prefix:            aws.String(it.prefix),
		Delimiter:         aws.String("/"),
		ContinuationToken: it.token,
	})
	if err != nil {
		return wrapAWS("iterdir", tfmpath.New("s3", it.b.bucket, "/"+it.prefix), err)
	}
	it.pending = it.pending[:0]
	it.idx = 0
	for _, cp := range out.CommonPrefixes {
		p := aws.StringValue(cp.Prefix)
		name := strings.TrimSuffix(strings.TrimPrefix(p, it.prefix), "/")
		it.pending = append(it.pending, backend.Entry{
			Path:     tfmpath.New("s3", it.b.bucket, "/"+p),
			Name:     name,
			IsDir:    true,
			IsHidden: strings.HasPrefix(name, "."),
		})
	}
	for _, obj := range out.Contents {
		k := aws.StringValue(obj.Key)
		if k == it.prefix {
			continue // the directory marker object itself
		}
		name := strings.TrimPrefix(k, it.prefix)
		if name == "" {
			continue
		}
		info := backend.Info{Size: aws.Int64Value(obj.Size), ModTime: aws.TimeValue(obj.LastModified)}
		// Key discipline: cache this child's stat under its own key, the
		// same key Stat() will look up with when later called directly.
		it.b.cache.Put(metacache.Key{Operation: "stat", Bucket: it.b.bucket, ObjectKey: k}, info, 0)
		it.pending = append(it.pending, backend.Entry{
			Path:     tfmpath.New("s3", it.b.bucket, "/"+k),
			Name:     name,
			Size:     info.Size,
			ModTime:  info.ModTime,
			IsHidden: strings.HasPrefix(name, "."),
		})
	}
	if aws.BoolValue(out.IsTruncated) {
		it.token = out.NextContinuationToken
	} else {
		it.done = true
	}
	return nil
}

func (it *listIterator) Next(ctx context.Context) (backend.Entry, bool, error) {
	for it.idx >= len(it.pending) {
		if it.done {
			return backend.Entry{}, false, nil
		}
		if err := it.fill(ctx); err != nil {
			return backend.Entry{}, false, err
		}
	}
	e := it.pending[it.idx]
	it.idx++
	return e, true, nil
}

func (it *listIterator) Close() error { return nil }

func (b *Backend) Iterdir(ctx context.Context, p tfmpath.Path) (backend.Iterator, error) {
	prefix := key(p)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &listIterator{b: b, prefix: prefix}, nil
}

func (b *Backend) ReadBytes(ctx context.Context, p tfmpath.Path) (io.ReadCloser, error) {
	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, tfmerr.New(tfmerr.KindNotFound, "read_bytes", p.String(), err)
		}
		return nil, wrapAWS("read_bytes", p, err)
	}
	return out.Body, nil
}

// putWriter buffers writes in memory then issues one PutObject on Close,
// since S3 has no streaming append API; batch ops still stream the *read*
// side chunk-by-chunk, bounding the source side's memory even though the
// destination buffers.
type putWriter struct {
	b   *Backend
	ctx context.Context
	key string
	buf bytes.Buffer
}

func (w *putWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *putWriter) Close() error {
	_, err := w.b.client.PutObjectWithContext(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.b.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		return wrapAWS("write_bytes", tfmpath.New("s3", w.b.bucket, "/"+w.key), err)
	}
	w.b.invalidateWrite(w.key)
	return nil
}

func (b *Backend) WriteBytes(ctx context.Context, p tfmpath.Path) (io.WriteCloser, error) {
	return &putWriter{b: b, ctx: ctx, key: key(p)}, nil
}

// invalidateWrite drops the object's own stat, its parent's listing, and
// the bucket root if the key is bucket-level.
func (b *Backend) invalidateWrite(objectKey string) {
	b.cache.InvalidateKey(b.bucket, objectKey)
	parent := objectKey
	if idx := strings.LastIndex(strings.TrimSuffix(parent, "/"), "/"); idx >= 0 {
		parent = parent[:idx+1]
	} else {
		parent = ""
	}
	b.cache.InvalidatePrefix(b.bucket, parent)
	if !strings.Contains(strings.TrimSuffix(objectKey, "/"), "/") {
		b.cache.InvalidatePrefix(b.bucket, "")
	}
}

// Rename is implemented as copy-object + delete-object; object stores have
// no atomic move primitive.
func (b *Backend) Rename(ctx context.Context, src, dst tfmpath.Path) error {
	if err := b.CopyTo(ctx, src, dst); err != nil {
		return err
	}
	if err := b.Unlink(ctx, src); err != nil {
		return err
	}
	return nil
}

func (b *Backend) Unlink(ctx context.Context, p tfmpath.Path) error {
	k := key(p)
	_, err := b.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return wrapAWS("unlink", p, err)
	}
	b.invalidateWrite(k)
	return nil
}

// Mkdir creates the literal zero-byte "directory marker" object some object
// stores use; it is optional for virtual-directory semantics to work, but
// makes an otherwise-empty directory visible to clients expecting one.
func (b *Backend) Mkdir(ctx context.Context, p tfmpath.Path) error {
	k := key(p)
	if !strings.HasSuffix(k, "/") {
		k += "/"
	}
	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(k),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return wrapAWS("mkdir", p, err)
	}
	b.invalidateWrite(k)
	return nil
}

func (b *Backend) Rmdir(ctx context.Context, p tfmpath.Path) error {
	it, err := b.Iterdir(ctx, p)
	if err != nil {
		return err
	}
	defer it.Close()
	if _, ok, err := it.Next(ctx); err != nil {
		return err
	} else if ok {
		return tfmerr.New(tfmerr.KindUnsupported, "rmdir", p.String(), nil)
	}
	k := key(p)
	if !strings.HasSuffix(k, "/") {
		k += "/"
	}
	_, _ = b.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(k)})
	b.invalidateWrite(k)
	return nil
}

const rmtreeBatchSize = 1000

// Rmtree paginates the listing under p and issues batched DeleteObjects
// calls.
func (b *Backend) Rmtree(ctx context.Context, p tfmpath.Path) error {
	prefix := key(p)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	var token *string
	for {
		out, err := b.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return wrapAWS("rmtree", p, err)
		}
		for start := 0; start < len(out.Contents); start += rmtreeBatchSize {
			end := start + rmtreeBatchSize
			if end > len(out.Contents) {
				end = len(out.Contents)
			}
			objs := make([]*s3.ObjectIdentifier, 0, end-start)
			for _, o := range out.Contents[start:end] {
				objs = append(objs, &s3.ObjectIdentifier{Key: o.Key})
			}
			if _, err := b.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(b.bucket),
				Delete: &s3.Delete{Objects: objs},
			}); err != nil {
				return wrapAWS("rmtree", p, err)
			}
		}
		if !aws.BoolValue(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	b.cache.InvalidatePrefix(b.bucket, prefix)
	return nil
}

// CopyTo uses the S3 server-side copy API when dst is the same bucket.
func (b *Backend) CopyTo(ctx context.Context, src, dst tfmpath.Path) error {
	srcKey, dstKey := key(src), key(dst)
	_, err := b.client.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(b.bucket + "/" + srcKey),
	})
	if err != nil {
		return wrapAWS("copy_to", src, err)
	}
	b.invalidateWrite(dstKey)
	return nil
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}

func wrapAWS(op string, p tfmpath.Path, err error) error {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case "AccessDenied":
			return tfmerr.New(tfmerr.KindPermissionDenied, op, p.String(), err)
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return tfmerr.New(tfmerr.KindNotFound, op, p.String(), err)
		case "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return tfmerr.New(tfmerr.KindCredentialsInvalid, op, p.String(), err)
		}
	}
	return tfmerr.New(tfmerr.KindIoFailure, op, p.String(), err)
}
