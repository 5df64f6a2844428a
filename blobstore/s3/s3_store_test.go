package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/csrgo/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeClient serves objects from memory and honors Range headers.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    atomic.Int64
	ranges  []string
}

func newFakeClient(objects map[string][]byte) *fakeClient {
	return &fakeClient{objects: objects}
}

func (c *fakeClient) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := c.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (c *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	c.gets.Add(1)
	data, ok := c.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	start, end := int64(0), int64(len(data))-1
	if in.Range != nil {
		c.mu.Lock()
		c.ranges = append(c.ranges, *in.Range)
		c.mu.Unlock()
		if _, err := fmt.Sscanf(*in.Range, "bytes=%d-%d", &start, &end); err != nil {
			return nil, err
		}
		end = min(end, int64(len(data))-1)
	}
	body := data[start : end+1]
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
		ContentRange:  aws.String(fmt.Sprintf("bytes %d-%d/%d", start, end, len(data))),
	}, nil
}

func (c *fakeClient) ListObjectsV2(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	return &s3.ListObjectsV2Output{}, nil
}

func TestStore_RangeReads(t *testing.T) {
	content := []byte(strings.Repeat("7 9\n", 16))
	client := newFakeClient(map[string][]byte{"graphs/edges.txt": content})
	store := NewStore(client, "bucket", "graphs/")
	ctx := t.Context()

	blob, err := store.Open(ctx, "edges.txt")
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(len(content)), blob.Size())
	_, mappable := blob.(blobstore.Mappable)
	assert.False(t, mappable)

	buf := make([]byte, 4)
	n, err := blob.ReadAt(ctx, buf, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "7 9\n", string(buf))
	assert.Equal(t, []string{"bytes=4-7"}, client.ranges)

	n, err = blob.ReadAt(ctx, make([]byte, 8), int64(len(content))-2)
	assert.Equal(t, 2, n)
	assert.Equal(t, io.EOF, err)

	_, err = blob.ReadAt(ctx, buf, int64(len(content)))
	assert.Equal(t, io.EOF, err)

	r, err := blobstore.NewReader(ctx, blob, nil)
	require.NoError(t, err)
	all, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, content, all)
}

func TestStore_Prefetch(t *testing.T) {
	content := []byte(strings.Repeat("1 2\n", 10))
	client := newFakeClient(map[string][]byte{"edges.txt": content, "empty.txt": {}})
	store := NewStore(client, "bucket", "", WithPrefetch(PrefetchConfig{
		MaxSize:     1 << 10,
		PartSize:    8,
		Concurrency: 2,
	}))

	blob, err := store.Open(t.Context(), "edges.txt")
	require.NoError(t, err)
	m, ok := blob.(blobstore.Mappable)
	require.True(t, ok, "prefetched blobs are resident")
	data, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, int64(5), client.gets.Load(), "one GET per 8-byte part")

	empty, err := store.Open(t.Context(), "empty.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Size())
}

func TestStore_PrefetchSkipsLargeObjects(t *testing.T) {
	content := bytes.Repeat([]byte{'x'}, 64)
	client := newFakeClient(map[string][]byte{"big": content})
	store := NewStore(client, "bucket", "", WithPrefetch(PrefetchConfig{MaxSize: 16}))

	blob, err := store.Open(t.Context(), "big")
	require.NoError(t, err)
	_, mappable := blob.(blobstore.Mappable)
	assert.False(t, mappable)
	assert.Equal(t, int64(0), client.gets.Load())
}

// mockClient records calls for the listing and error mapping tests.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockClient) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func TestStore_Open(t *testing.T) {
	mc := new(mockClient)
	store := NewStore(mc, "test-bucket", "prefix")

	t.Run("NotFound", func(t *testing.T) {
		mc.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Bucket == "test-bucket" && *input.Key == "prefix/foo"
		})).Return(nil, &types.NotFound{}).Once()

		_, err := store.Open(t.Context(), "foo")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		mc.On("HeadObject", mock.Anything, mock.MatchedBy(func(input *s3.HeadObjectInput) bool {
			return *input.Key == "prefix/bar"
		})).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(100)}, nil).Once()

		blob, err := store.Open(t.Context(), "bar")
		require.NoError(t, err)
		assert.Equal(t, int64(100), blob.Size())
	})

	mc.AssertExpectations(t)
}

func TestStore_List_Pagination(t *testing.T) {
	mc := new(mockClient)
	store := NewStore(mc, "test-bucket", "prefix/")

	mc.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return input.ContinuationToken == nil && *input.Prefix == "prefix"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token"),
		Contents:              []types.Object{{Key: aws.String("prefix/b.txt")}},
	}, nil).Once()

	mc.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(input *s3.ListObjectsV2Input) bool {
		return input.ContinuationToken != nil && *input.ContinuationToken == "token"
	})).Return(&s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(false),
		Contents:    []types.Object{{Key: aws.String("prefix/a/edges.txt")}},
	}, nil).Once()

	keys, err := store.List(t.Context(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/edges.txt", "b.txt"}, keys)
	mc.AssertExpectations(t)
}
