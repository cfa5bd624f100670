// Package sink appends records as JSON lines to a dataset file, in batches.
// The file is opened, written and closed again for every batch, so a crash
// loses at most the records still buffered.
package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	gzip "github.com/klauspost/pgzip"
	"github.com/miku/jurikit/runlog"
	"github.com/miku/jurikit/schema"
	log "github.com/sirupsen/logrus"
)

// ErrClosed is returned when writing to a closed sink.
var ErrClosed = errors.New("sink closed")

// Mode tells whether an existing file is kept.
type Mode int

const (
	// Truncate empties the file once, when the sink is opened.
	Truncate Mode = iota
	// Append keeps existing content.
	Append
)

func (m Mode) String() string {
	if m == Append {
		return "append"
	}
	return "truncate"
}

// Marshaler is implemented by anything that can render itself as a single
// line of JSON.
type Marshaler interface {
	AppendJSON(b []byte) ([]byte, error)
}

// Stats counts what happened to the records handed to the sink.
type Stats struct {
	Batches       int   // batches written
	BatchSizes    []int // size of each written batch
	Records       int   // records written
	FailedBatches int   // batches that could not be written
	LostRecords   int   // records in failed batches
}

// WriteError is returned for a batch that could not be written. The records
// of the batch are dropped.
type WriteError struct {
	Path    string
	Records int
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %d records to %s: %v", e.Records, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Option configures a sink.
type Option func(*Sink)

// WithBatchSize sets the number of records buffered before a write.
func WithBatchSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithLogger sets the log entry used to report batches.
func WithLogger(l *log.Entry) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

// Sink buffers records and appends them to a file in batches. A sink is not
// safe for concurrent use.
type Sink struct {
	path      string
	batchSize int
	buf       []Marshaler
	scratch   []byte
	stats     Stats
	closed    bool
	log       *log.Entry
}

// Open prepares a sink writing to path, creating parent directories. With
// Truncate the file is emptied here and never again.
func Open(path string, mode Mode, opts ...Option) (*Sink, error) {
	s := &Sink{
		path:      path,
		batchSize: schema.DefaultBatchSize,
		log:       runlog.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	flag := os.O_CREATE | os.O_WRONLY
	if mode == Truncate {
		flag |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	s.buf = make([]Marshaler, 0, s.batchSize)
	s.log.WithFields(log.Fields{
		"path":  path,
		"mode":  mode,
		"batch": s.batchSize,
	}).Debug("opened output")
	return s, nil
}

// Path returns the output path.
func (s *Sink) Path() string { return s.path }

// Write buffers records, flushing whenever the buffer is full. A failed
// flush does not stop the remaining records from being buffered; all flush
// errors are returned together.
func (s *Sink) Write(records ...Marshaler) error {
	if s.closed {
		return ErrClosed
	}
	var errs []error
	for _, r := range records {
		s.buf = append(s.buf, r)
		if len(s.buf) >= s.batchSize {
			if err := s.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Flush writes out the buffer, if there is anything to write. On failure the
// buffer is dropped and counted as lost.
func (s *Sink) Flush() error {
	n := len(s.buf)
	if n == 0 {
		return nil
	}
	err := s.writeBatch()
	clear(s.buf)
	s.buf = s.buf[:0]
	if err != nil {
		s.stats.FailedBatches++
		s.stats.LostRecords += n
		s.log.WithFields(log.Fields{
			"path":    s.path,
			"records": n,
		}).WithError(err).Error("batch write failed")
		return &WriteError{Path: s.path, Records: n, Err: err}
	}
	s.stats.Batches++
	s.stats.BatchSizes = append(s.stats.BatchSizes, n)
	s.stats.Records += n
	s.log.WithFields(log.Fields{
		"records": n,
		"total":   s.stats.Records,
	}).Debug("batch written")
	return nil
}

// Close flushes the remaining records. Closing twice is a no-op.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	err := s.Flush()
	s.closed = true
	return err
}

// Stats returns a copy of the counters.
func (s *Sink) Stats() Stats {
	st := s.stats
	st.BatchSizes = append([]int(nil), s.stats.BatchSizes...)
	return st
}

func (s *Sink) writeBatch() (err error) {
	b := s.scratch[:0]
	for _, r := range s.buf {
		if b, err = r.AppendJSON(b); err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		b = append(b, '\n')
	}
	s.scratch = b
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w, err := newEncoder(f, s.path)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// newEncoder wraps w according to the file extension. Each batch becomes a
// complete zstd frame or gzip member; concatenated they still decode as one
// stream.
func newEncoder(w io.Writer, path string) (io.WriteCloser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return zstd.NewWriter(w)
	case ".gz":
		return gzip.NewWriter(w), nil
	default:
		return nopCloser{w}, nil
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
