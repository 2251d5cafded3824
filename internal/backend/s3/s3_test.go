package s3

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm/internal/backend"
	"github.com/shimomut/tfm/internal/metacache"
	"github.com/shimomut/tfm/internal/tfmpath"
)

func awsNotFound() error {
	return awserr.New("NotFound", "key not found", nil)
}

// fakeAPI is an in-memory stand-in for the S3 API surface this backend
// calls, letting tests assert exact call counts.
type fakeAPI struct {
	API
	objects      map[string]*s3.Object
	listCalls    int
	headCalls    int
}

func newFakeAPI() *fakeAPI { return &fakeAPI{objects: make(map[string]*s3.Object)} }

func (f *fakeAPI) put(key string, size int64, mtime time.Time) {
	f.objects[key] = &s3.Object{Key: aws.String(key), Size: aws.Int64(size), LastModified: aws.Time(mtime)}
}

func (f *fakeAPI) ListObjectsV2WithContext(ctx aws.Context, in *s3.ListObjectsV2Input, opts ...request.Option) (*s3.ListObjectsV2Output, error) {
	f.listCalls++
	prefix := aws.StringValue(in.Prefix)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	seenPrefixes := map[string]bool{}
	for k, obj := range f.objects {
		if len(k) < len(prefix) || k[:len(prefix)] != prefix {
			continue
		}
		rest := k[len(prefix):]
		if idx := indexOf(rest, '/'); idx >= 0 {
			cp := prefix + rest[:idx+1]
			if !seenPrefixes[cp] {
				seenPrefixes[cp] = true
				out.CommonPrefixes = append(out.CommonPrefixes, &s3.CommonPrefix{Prefix: aws.String(cp)})
			}
			continue
		}
		out.Contents = append(out.Contents, obj)
	}
	return out, nil
}

func (f *fakeAPI) HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, opts ...request.Option) (*s3.HeadObjectOutput, error) {
	f.headCalls++
	obj, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awsNotFound()
	}
	return &s3.HeadObjectOutput{ContentLength: obj.Size, LastModified: obj.LastModified}, nil
}

func indexOf(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func TestIterdirPreCachesChildStatAvoidingNPlus1(t *testing.T) {
	api := newFakeAPI()
	ts := time.Unix(1700000000, 0)
	api.put("prefix/x.txt", 120, ts)
	api.put("prefix/y.txt", 30, ts.Add(-10*time.Second))

	cache := metacache.New(100, time.Minute)
	b := New("bucket", api, cache)

	it, err := b.Iterdir(context.Background(), tfmpath.New("s3", "bucket", "/prefix/"))
	require.NoError(t, err)
	for {
		_, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
	}
	listCallsAfterIterdir := api.listCalls

	info, err := b.Stat(context.Background(), tfmpath.New("s3", "bucket", "/prefix/x.txt"), backend.StatHint{})
	require.NoError(t, err)
	assert.Equal(t, int64(120), info.Size)
	assert.True(t, info.ModTime.Equal(ts))
	assert.Equal(t, 0, api.headCalls, "stat must be a pure cache hit")
	assert.Equal(t, listCallsAfterIterdir, api.listCalls, "stat must not issue another list call")
}

func TestVirtualDirectoryStat(t *testing.T) {
	api := newFakeAPI()
	t1 := time.Unix(1000, 0)
	t2 := time.Unix(2000, 0)
	api.put("logs/a", 1, t1)
	api.put("logs/b", 1, t2)

	cache := metacache.New(100, time.Minute)
	b := New("bucket", api, cache)

	info, err := b.Stat(context.Background(), tfmpath.New("s3", "bucket", "/logs/"), backend.StatHint{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size)
	assert.True(t, info.IsDir)
	assert.True(t, info.ModTime.Equal(t2))
	assert.Equal(t, 0, api.headCalls, "virtual directory stat never calls head_object")
}

func TestWriteInvalidatesStatAndParentListing(t *testing.T) {
	api := newFakeAPI()
	cache := metacache.New(100, time.Minute)
	b := New("bucket", api, cache)

	statKey := metacache.Key{Operation: "stat", Bucket: "bucket", ObjectKey: "dir/f.txt"}
	listKey := metacache.Key{Operation: "list", Bucket: "bucket", ObjectKey: "dir/"}
	cache.Put(statKey, "stale", 0)
	cache.Put(listKey, "stale-listing", 0)

	w, err := b.WriteBytes(context.Background(), tfmpath.New("s3", "bucket", "/dir/f.txt"))
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, ok := cache.Get(statKey)
	assert.False(t, ok)
	_, ok = cache.Get(listKey)
	assert.False(t, ok)
}

func TestSupportsDirectoryRenameIsFalse(t *testing.T) {
	b := New("bucket", newFakeAPI(), metacache.New(10, time.Minute))
	assert.False(t, b.SupportsDirectoryRename())
	assert.True(t, b.IsRemote())
}
