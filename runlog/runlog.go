// Package runlog sets up the log of a single corpus run: a timestamped file
// under the log directory, optionally mirrored to stderr. Every entry carries
// the run id and the corpus name.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// TimestampLayout is used in log file names.
const TimestampLayout = "20060102_150405"

// Options for a run log.
type Options struct {
	Dir     string           // log directory, created if missing
	Corpus  string           // corpus name, part of the file name
	Console bool             // mirror entries to Stderr
	Verbose bool             // include debug entries
	Stderr  io.Writer        // defaults to os.Stderr
	Now     func() time.Time // defaults to time.Now
}

// Log is a run log. It embeds the entry all components of the run log to.
type Log struct {
	*log.Entry
	Path  string
	RunID string
	file  *os.File
}

// Filename returns the log file name for a corpus run started at t.
func Filename(corpus string, t time.Time) string {
	return fmt.Sprintf("%s_processing_%s.log", corpus, t.Format(TimestampLayout))
}

// New creates the log file and returns a log writing to it. The file is
// opened for appending, never truncated.
func New(opts Options) (*Log, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(opts.Dir, Filename(opts.Corpus, opts.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if opts.Console {
		logger.SetOutput(io.MultiWriter(f, opts.Stderr))
	} else {
		logger.SetOutput(f)
	}
	if opts.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	id := uuid.NewString()
	return &Log{
		Entry: logger.WithFields(log.Fields{
			"run":    id,
			"corpus": opts.Corpus,
		}),
		Path:  path,
		RunID: id,
		file:  f,
	}, nil
}

// Close closes the log file.
func (l *Log) Close() error {
	return l.file.Close()
}

// Discard returns an entry that drops everything.
func Discard() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}
