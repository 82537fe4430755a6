package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstar/backend/internal/apperr"
	"github.com/everstar/backend/internal/config"
	"github.com/everstar/backend/internal/storage"
	"github.com/everstar/backend/internal/storage/storagetest"
)

type bucketName string

func (b bucketName) StorageBucket() string { return string(b) }

// recordingBackend remembers the last PutObject call.
type recordingBackend struct {
	err      error
	bucket   string
	key      string
	meta     storage.Metadata
	data     []byte
	urlCalls int
}

func (b *recordingBackend) PutObject(ctx context.Context, bucket, key string, body io.Reader, meta storage.Metadata) error {
	if b.err != nil {
		return b.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.bucket, b.key, b.meta, b.data = bucket, key, meta, data
	return nil
}

func (b *recordingBackend) URL(bucket, key string) string {
	b.urlCalls++
	return "https://" + bucket + ".storage.test/" + key
}

var errReset = errors.New("connection reset by peer")

type brokenReader struct{}

func (brokenReader) Read(p []byte) (int, error) { return 0, errReset }

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

type unopenableFile struct{}

func (unopenableFile) Filename() string    { return "gone.png" }
func (unopenableFile) Size() int64         { return 10 }
func (unopenableFile) ContentType() string { return "image/png" }
func (unopenableFile) Open() (io.ReadCloser, error) {
	return nil, errors.New("temp file removed")
}

func TestSaveFileAvatar(t *testing.T) {
	mem := storage.NewMemory("http://localhost:9000")
	u := NewUploader(mem, bucketName("photos"))
	content := bytes.Repeat([]byte{0x89}, 2048)

	url, err := u.SaveFile(context.Background(), NewFile("avatar.png", 2048, "image/png", bytes.NewReader(content)))
	require.NoError(t, err)

	assert.Equal(t, mem.URL("photos", "avatar.png"), url)
	assert.Equal(t, "http://localhost:9000/photos/avatar.png", url)

	obj, ok := mem.Get("photos", "avatar.png")
	require.True(t, ok)
	assert.Equal(t, content, obj.Data)
	assert.Equal(t, storage.Metadata{ContentLength: 2048, ContentType: "image/png"}, obj.Meta)
}

func TestSaveFileURLContainsBucketAndName(t *testing.T) {
	names := []string{"a.txt", "pet profile.jpg", "dir/nested.webp"}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			backend := &recordingBackend{}
			u := NewUploader(backend, bucketName("everstar"))

			url, err := u.SaveFile(context.Background(), NewFile(name, 3, "text/plain", strings.NewReader("abc")))
			require.NoError(t, err)

			assert.Contains(t, url, "everstar")
			assert.Contains(t, url, name)
			assert.Equal(t, name, backend.key)
		})
	}
}

func TestSaveFileMetadataPassThrough(t *testing.T) {
	backend := &recordingBackend{}
	u := NewUploader(backend, bucketName("b"))

	// Declared size and type are not checked against the content.
	_, err := u.SaveFile(context.Background(), NewFile("x.bin", 999, "application/x-whatever; v=1", strings.NewReader("tiny")))
	require.NoError(t, err)

	assert.Equal(t, storage.Metadata{ContentLength: 999, ContentType: "application/x-whatever; v=1"}, backend.meta)
	assert.Equal(t, "tiny", string(backend.data))
}

func TestSaveFileSameNameOverwrites(t *testing.T) {
	mem := storage.NewMemory("")
	u := NewUploader(mem, bucketName("photos"))
	ctx := context.Background()

	first, err := u.SaveFile(ctx, NewFile("avatar.png", 3, "image/png", strings.NewReader("old")))
	require.NoError(t, err)
	second, err := u.SaveFile(ctx, NewFile("avatar.png", 3, "image/png", strings.NewReader("new")))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	obj, ok := mem.Get("photos", "avatar.png")
	require.True(t, ok)
	assert.Equal(t, "new", string(obj.Data))
	assert.Equal(t, 1, mem.Len("photos"))
}

func TestSaveFileReadFailure(t *testing.T) {
	mem := storage.NewMemory("")
	u := NewUploader(mem, bucketName("photos"))

	url, err := u.SaveFile(context.Background(), NewFile("avatar.png", 2048, "image/png", io.MultiReader(strings.NewReader("partial"), brokenReader{})))

	assert.Empty(t, url)
	assert.ErrorIs(t, err, apperr.ErrS3Upload)
	assert.NotErrorIs(t, err, errReset)
	assert.Zero(t, mem.Len("photos"))
}

func TestSaveFileOpenFailure(t *testing.T) {
	backend := &recordingBackend{}
	u := NewUploader(backend, bucketName("photos"))

	url, err := u.SaveFile(context.Background(), unopenableFile{})

	assert.Empty(t, url)
	assert.ErrorIs(t, err, apperr.ErrS3Upload)
	assert.Empty(t, backend.key)
}

func TestSaveFileBackendFailure(t *testing.T) {
	backend := &recordingBackend{err: errors.New("AccessDenied")}
	u := NewUploader(backend, bucketName("photos"))

	url, err := u.SaveFile(context.Background(), NewFile("a.png", 1, "image/png", strings.NewReader("a")))

	assert.Empty(t, url)
	assert.Equal(t, apperr.ErrS3Upload, apperr.From(err))
	assert.Zero(t, backend.urlCalls)
}

func TestSaveFileClosesContent(t *testing.T) {
	rc := &trackingCloser{Reader: strings.NewReader("data")}
	u := NewUploader(&recordingBackend{}, bucketName("b"))

	_, err := u.SaveFile(context.Background(), NewFile("d.txt", 4, "text/plain", rc))
	require.NoError(t, err)
	assert.True(t, rc.closed)
}

// wireBackends builds both real clients against the same in-process S3 server.
func wireBackends(t *testing.T, srv *storagetest.Server) map[string]storage.Backend {
	t.Helper()
	m, err := storage.NewMinio(config.StorageConfig{Endpoint: srv.Host(), AccessKey: "minioadmin", SecretKey: "minioadmin"})
	require.NoError(t, err)
	s, err := storage.NewS3(context.Background(), config.StorageConfig{
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		PathStyle: true,
		AccessKey: "key",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	return map[string]storage.Backend{"minio": m, "s3": s}
}

func TestSaveFileOverTheWire(t *testing.T) {
	for _, name := range []string{"minio", "s3"} {
		t.Run(name, func(t *testing.T) {
			srv := storagetest.NewServer(t)
			backend := wireBackends(t, srv)[name]
			content := bytes.Repeat([]byte("w"), 2048)

			url, err := NewUploader(backend, bucketName("photos")).SaveFile(context.Background(),
				NewFile("avatar.png", 2048, "image/png", bytes.NewReader(content)))
			require.NoError(t, err)
			assert.Equal(t, srv.URL+"/photos/avatar.png", url)

			puts := srv.Puts()
			require.Len(t, puts, 1)
			assert.Equal(t, "/photos/avatar.png", puts[0].Path)
			assert.Equal(t, "image/png", puts[0].ContentType)
			assert.Equal(t, content, puts[0].Body)
		})
	}
}

func TestSaveFileRejectedOverTheWire(t *testing.T) {
	for _, name := range []string{"minio", "s3"} {
		t.Run(name, func(t *testing.T) {
			srv := storagetest.NewServer(t)
			srv.FailPuts(true)
			backend := wireBackends(t, srv)[name]

			url, err := NewUploader(backend, bucketName("photos")).SaveFile(context.Background(),
				NewFile("avatar.png", 1, "image/png", strings.NewReader("x")))
			assert.Empty(t, url)
			assert.Same(t, apperr.ErrS3Upload, err)
		})
	}
}
