package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/multierr"
)

// FileSink writes the trace to a local file, optionally gzipped.
type FileSink struct {
	path string
	file *os.File

	// mu serializes the gzip stream; a plain file needs no lock.
	mu     sync.Mutex
	gz     *gzip.Writer
	closed bool
}

// NewFile creates or truncates path.
func NewFile(path string, compress bool) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file %s: %w", path, err)
	}
	s := &FileSink{path: path, file: f}
	if compress {
		s.gz = gzip.NewWriter(f)
	}
	return s, nil
}

// Path returns the file being written.
func (s *FileSink) Path() string { return s.path }

// Write appends p. With compression on, the gzip stream is flushed after
// every batch so a crashed run still leaves readable output.
func (s *FileSink) Write(_ context.Context, p []byte) error {
	if s.gz == nil {
		return writeAll(s.file, p)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := writeAll(s.gz, p); err != nil {
		return err
	}
	return s.gz.Flush()
}

// Close finishes the gzip stream and closes the file.
func (s *FileSink) Close() error {
	var err error
	if s.gz != nil {
		s.mu.Lock()
		if !s.closed {
			s.closed = true
			err = multierr.Append(err, s.gz.Close())
		}
		s.mu.Unlock()
	}
	return multierr.Combine(err, s.file.Close())
}

// WriterSink adapts an io.Writer.
type WriterSink struct {
	w       io.Writer
	noClose bool
}

// NewWriter wraps w. Close closes w when it is an io.Closer.
func NewWriter(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// NewStdout writes to os.Stdout and leaves it open on Close.
func NewStdout() *WriterSink {
	return &WriterSink{w: os.Stdout, noClose: true}
}

// Write writes p to the underlying writer.
func (s *WriterSink) Write(_ context.Context, p []byte) error {
	return writeAll(s.w, p)
}

// Close closes the underlying writer if it can be closed.
func (s *WriterSink) Close() error {
	if s.noClose {
		return nil
	}
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func writeAll(w io.Writer, p []byte) error {
	n, err := w.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}
