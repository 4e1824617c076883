package sink

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/multierr"
)

// unknownSize makes PutObject stream with chunked transfer encoding.
const unknownSize int64 = -1

// ObjectUploader is the part of *minio.Client the MinIO sink uses.
type ObjectUploader interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioSink streams the trace into one object. The upload starts when the
// sink is created and completes on Close, so the object only appears once
// the document is complete.
type MinioSink struct {
	bucket string
	object string

	pw     *io.PipeWriter
	gz     *gzip.Writer
	mu     sync.Mutex
	closed bool

	cancel context.CancelFunc
	done   chan error
	info   minio.UploadInfo
}

// NewMinio connects to the server described by cfg and starts the upload.
func NewMinio(cfg MinioConfig, compress bool) (*MinioSink, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return NewMinioWithUploader(client, cfg.Bucket, cfg.Object, compress)
}

// NewMinioWithUploader starts an upload through up. An empty object name is
// replaced with a generated one under DefaultObjectPrefix.
func NewMinioWithUploader(up ObjectUploader, bucket, object string, compress bool) (*MinioSink, error) {
	if bucket == "" {
		return nil, ErrMissingBucket
	}
	if object == "" {
		object = DefaultObjectPrefix + uuid.NewString() + ".json"
		if compress {
			object += ".gz"
		}
	}
	contentType := ContentTypeJSON
	if compress {
		contentType = ContentTypeGzip
	}

	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	s := &MinioSink{
		bucket: bucket,
		object: strings.TrimPrefix(object, "/"),
		pw:     pw,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	if compress {
		s.gz = gzip.NewWriter(pw)
	}

	go func() {
		info, err := up.PutObject(ctx, s.bucket, s.object, pr, unknownSize, minio.PutObjectOptions{
			ContentType: contentType,
		})
		s.info = info
		// Unblock a writer if the upload gave up early.
		pr.CloseWithError(err)
		s.done <- err
	}()

	return s, nil
}

// Object returns the bucket and object name being written.
func (s *MinioSink) Object() (bucket, object string) { return s.bucket, s.object }

// Write streams p into the upload. It blocks until the uploader has read
// it.
func (s *MinioSink) Write(_ context.Context, p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.gz != nil {
		if err := writeAll(s.gz, p); err != nil {
			return err
		}
		return s.gz.Flush()
	}
	return writeAll(s.pw, p)
}

// Close ends the stream and waits for the upload to finish. When a Write
// is still blocked on the upload, Close aborts the upload so the Write
// returns, and reports the upload as failed.
func (s *MinioSink) Close() error {
	if !s.mu.TryLock() {
		s.cancel()
		s.pw.CloseWithError(ErrClosed)
		s.mu.Lock()
	}
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.gz != nil {
		err = multierr.Append(err, s.gz.Close())
	}
	err = multierr.Append(err, s.pw.Close())
	s.mu.Unlock()

	if upErr := <-s.done; upErr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to upload %s/%s: %w", s.bucket, s.object, upErr))
	}
	s.cancel()
	return err
}

// UploadInfo returns the result of the completed upload. It is only
// meaningful after Close returned nil.
func (s *MinioSink) UploadInfo() minio.UploadInfo { return s.info }
