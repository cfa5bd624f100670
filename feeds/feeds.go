// Package feeds lists and fetches the tarballs a corpus is published as.
// Archive names come from a list file or from the directory index at the
// corpus base URL; each archive is downloaded and unpacked into its own
// directory.
package feeds

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sethgrid/pester"
)

// Doer abstracts https://pkg.go.dev/net/http#Client.Do.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// NewClient returns an HTTP client making a single attempt per request, with
// the given overall timeout.
func NewClient(timeout time.Duration) *pester.Client {
	client := pester.New()
	client.MaxRetries = 1
	client.Concurrency = 1
	client.RetryOnHTTP429 = false
	client.Timeout = timeout
	return client
}

// FetchError is a failure to download or unpack a single archive.
type FetchError struct {
	Archive string
	Op      string // "download" or "extract"
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Archive, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
