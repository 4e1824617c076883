// Package sink provides the destinations a Chrome trace document can be
// written to: local files (optionally gzipped), any io.Writer, a MinIO or
// S3 object, and a Kafka topic.
//
// Every sink receives whole batches from a single writer goroutine. None of
// them retains the slice passed to Write.
package sink
