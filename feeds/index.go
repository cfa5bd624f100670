package feeds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/adrg/xdg"
	"github.com/miku/jurikit"
)

const DefaultCacheTTL = 24 * time.Hour

var tarballPattern = regexp.MustCompile(`[\w-]+\.tar\.gz`)

// IndexLister scrapes archive names from an HTTP directory index.
type IndexLister struct {
	BaseURL   string
	CacheTTL  time.Duration
	CacheDir  string
	Client    Doer
	UserAgent string
}

// NewIndexLister creates a lister with an index cache under the XDG cache
// directory, one per corpus.
func NewIndexLister(corpus, baseURL string, client Doer) (*IndexLister, error) {
	cacheDir, err := xdg.CacheFile(filepath.Join(jurikit.AppName, corpus))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, err
	}
	return &IndexLister{
		BaseURL:  baseURL,
		CacheTTL: DefaultCacheTTL,
		CacheDir: cacheDir,
		Client:   client,
	}, nil
}

func (l *IndexLister) cacheFile() string {
	return filepath.Join(l.CacheDir, "index.html")
}

// getCachedIndex returns the cached content if it exists and is not expired
func (l *IndexLister) getCachedIndex() ([]byte, error) {
	info, err := os.Stat(l.cacheFile())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Since(info.ModTime()) > l.CacheTTL {
		return nil, nil
	}
	return os.ReadFile(l.cacheFile())
}

// fetchIndex fetches content from URL or uses cached content if available
func (l *IndexLister) fetchIndex(ctx context.Context) ([]byte, error) {
	b, err := l.getCachedIndex()
	if err != nil {
		return nil, err
	}
	if b != nil {
		return b, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	if l.UserAgent != "" {
		req.Header.Set("User-Agent", l.UserAgent)
	}
	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch index, status code: %d", resp.StatusCode)
	}
	b, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(l.cacheFile(), b, 0644); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns the tarball names linked from the index page, deduplicated
// and sorted.
func (l *IndexLister) List(ctx context.Context) ([]string, error) {
	b, err := l.fetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	var names []string
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		names = append(names, tarballPattern.FindAllString(href, -1)...)
	})
	return Normalize(names), nil
}
