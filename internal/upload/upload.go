// Package upload stores client-submitted files in object storage and hands back
// their public URLs.
package upload

import (
	"context"
	"io"
	"mime"
	"mime/multipart"

	"github.com/rs/zerolog/log"

	"github.com/everstar/backend/internal/apperr"
	"github.com/everstar/backend/internal/storage"
)

// File is an uploaded file as received from a client.
// Its content can be opened once.
type File interface {
	Filename() string
	Size() int64
	ContentType() string
	Open() (io.ReadCloser, error)
}

// BucketSource supplies the destination bucket.
type BucketSource interface {
	StorageBucket() string
}

// Uploader writes files to a storage backend under their original filename.
type Uploader struct {
	backend storage.Backend
	cfg     BucketSource
}

// NewUploader creates a new Uploader.
func NewUploader(backend storage.Backend, cfg BucketSource) *Uploader {
	return &Uploader{backend: backend, cfg: cfg}
}

// SaveFile stores file under its original filename and returns the object's URL.
// An existing object with the same name is overwritten. Any failure to read or
// write the content is reported as apperr.ErrS3Upload.
func (u *Uploader) SaveFile(ctx context.Context, file File) (string, error) {
	bucket := u.cfg.StorageBucket()
	key := file.Filename()
	meta := storage.Metadata{
		ContentLength: file.Size(),
		ContentType:   file.ContentType(),
	}

	content, err := file.Open()
	if err != nil {
		log.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("upload: open content")
		return "", apperr.ErrS3Upload
	}
	defer content.Close()

	if err := u.backend.PutObject(ctx, bucket, key, content, meta); err != nil {
		log.Error().Err(err).Str("bucket", bucket).Str("key", key).
			Int64("size", meta.ContentLength).Msg("upload: put object")
		return "", apperr.ErrS3Upload
	}

	return u.backend.URL(bucket, key), nil
}

// multipartFile adapts a parsed multipart form file.
type multipartFile struct {
	fh *multipart.FileHeader
}

// FromMultipart wraps fh as a File.
func FromMultipart(fh *multipart.FileHeader) File {
	return multipartFile{fh: fh}
}

// Filename returns the name exactly as the client sent it. fh.Filename has
// already been reduced to its base name by mime/multipart.
func (f multipartFile) Filename() string {
	if _, params, err := mime.ParseMediaType(f.fh.Header.Get("Content-Disposition")); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	return f.fh.Filename
}

func (f multipartFile) Size() int64         { return f.fh.Size }
func (f multipartFile) ContentType() string { return f.fh.Header.Get("Content-Type") }

func (f multipartFile) Open() (io.ReadCloser, error) {
	return f.fh.Open()
}

// readerFile is a File backed by an already open stream.
type readerFile struct {
	name        string
	size        int64
	contentType string
	r           io.Reader
}

// NewFile returns a File reading its content from r.
func NewFile(name string, size int64, contentType string, r io.Reader) File {
	return &readerFile{name: name, size: size, contentType: contentType, r: r}
}

func (f *readerFile) Filename() string    { return f.name }
func (f *readerFile) Size() int64         { return f.size }
func (f *readerFile) ContentType() string { return f.contentType }

func (f *readerFile) Open() (io.ReadCloser, error) {
	if rc, ok := f.r.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(f.r), nil
}
