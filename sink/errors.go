package sink

import "errors"

var (
	// ErrClosed is returned by Write after Close.
	ErrClosed = errors.New("sink closed")

	// ErrMissingBucket is returned when a MinIO sink has no bucket.
	ErrMissingBucket = errors.New("minio sink requires a bucket")

	// ErrMissingTopic is returned when a Kafka sink has no topic.
	ErrMissingTopic = errors.New("kafka sink requires a topic")
)
