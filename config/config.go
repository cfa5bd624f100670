// Package config holds run settings shared by the pipeline and the command
// line tool.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/miku/jurikit"
)

const (
	DefaultFetchWorkers = 4
	DefaultTimeout      = 10 * time.Minute
	DefaultIndexTTL     = 24 * time.Hour
)

// Config for a corpus run. Directories are derived from DataDir, unless set
// explicitly.
type Config struct {
	// DataDir is the root of all data, one subdirectory per corpus.
	DataDir string
	// ListDir holds the archive list files. Defaults to DataDir.
	ListDir string
	// LogDir holds the run logs. Defaults to DataDir/logs.
	LogDir string
	// Output overrides the dataset path.
	Output string
	// Workers parse documents in parallel.
	Workers int
	// FetchWorkers download archives in parallel.
	FetchWorkers int
	// BatchSize overrides the corpus batch size, if positive.
	BatchSize int
	// Timeout for a single HTTP request.
	Timeout time.Duration
	// IndexTTL is how long a cached index page is used.
	IndexTTL time.Duration
	// NoFetch skips listing and downloading, and parses what is on disk.
	NoFetch bool
	// KeepArchives keeps downloaded tarballs after extraction.
	KeepArchives bool
	// Since drops archives published before that time, if not zero.
	Since     time.Time
	UserAgent string
	Console   bool
	Verbose   bool
}

// FatalError aborts a corpus run before any network activity, for example
// when the archive list cannot be read.
type FatalError struct {
	Corpus string
	Err    error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Corpus, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Default returns a configuration with defaults, then overridden by
// JURIKIT_* environment variables.
func Default() *Config {
	c := &Config{
		DataDir:      filepath.Join(xdg.DataHome, jurikit.AppName),
		Workers:      runtime.NumCPU(),
		FetchWorkers: DefaultFetchWorkers,
		Timeout:      DefaultTimeout,
		IndexTTL:     DefaultIndexTTL,
		UserAgent:    fmt.Sprintf("%s/%s", jurikit.AppName, jurikit.Version),
	}
	c.ApplyEnv(os.Getenv)
	return c
}

// ApplyEnv overrides settings from the environment. Unparsable values are
// ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("JURIKIT_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := getenv("JURIKIT_LIST_DIR"); v != "" {
		c.ListDir = v
	}
	if v := getenv("JURIKIT_LOG_DIR"); v != "" {
		c.LogDir = v
	}
	if n, err := strconv.Atoi(getenv("JURIKIT_WORKERS")); err == nil && n > 0 {
		c.Workers = n
	}
	if n, err := strconv.Atoi(getenv("JURIKIT_FETCH_WORKERS")); err == nil && n > 0 {
		c.FetchWorkers = n
	}
	if n, err := strconv.Atoi(getenv("JURIKIT_BATCH_SIZE")); err == nil && n > 0 {
		c.BatchSize = n
	}
	if d, err := time.ParseDuration(getenv("JURIKIT_TIMEOUT")); err == nil && d > 0 {
		c.Timeout = d
	}
	if v := getenv("JURIKIT_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if b, err := strconv.ParseBool(getenv("JURIKIT_KEEP_ARCHIVES")); err == nil {
		c.KeepArchives = b
	}
}

// CorpusDir is the directory of a corpus.
func (c *Config) CorpusDir(corpus string) string {
	return filepath.Join(c.DataDir, strings.ToLower(corpus))
}

// DownloadDir receives the archives of a corpus.
func (c *Config) DownloadDir(corpus string) string {
	return filepath.Join(c.CorpusDir(corpus), "downloads")
}

// ExtractDir is the extraction root of a corpus.
func (c *Config) ExtractDir(corpus string) string {
	return filepath.Join(c.CorpusDir(corpus), "extracted")
}

// ListPath is the path of a list file.
func (c *Config) ListPath(file string) string {
	if c.ListDir != "" {
		return filepath.Join(c.ListDir, file)
	}
	return filepath.Join(c.DataDir, file)
}

// LogPath is the log directory.
func (c *Config) LogPath() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	return filepath.Join(c.DataDir, "logs")
}

// OutputPath returns the dataset path for a corpus with a given file name.
func (c *Config) OutputPath(corpus, name string) string {
	if c.Output != "" {
		return c.Output
	}
	return filepath.Join(c.CorpusDir(corpus), name)
}
