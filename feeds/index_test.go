package feeds

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/go-cmp/cmp"
	"github.com/miku/jurikit"
)

// mockIndex resembles the DILA open data directory listing.
const mockIndex = `<!DOCTYPE HTML PUBLIC "-//W3C//DTD HTML 3.2 Final//EN">
<html>
 <head>
  <title>Index of /OPENDATA/CNIL</title>
 </head>
 <body>
<h1>Index of /OPENDATA/CNIL</h1>
<pre><a href="?C=N;O=D">Name</a>  <a href="?C=M;O=A">Last modified</a>  <a href="?C=S;O=A">Size</a>
<hr><a href="/OPENDATA/">Parent Directory</a>                                     -
<a href="CNIL_20231013-213000.tar.gz">CNIL_20231013-213000.tar.gz</a>   2023-10-13 21:30  12K
<a href="CNIL_20231012-213000.tar.gz">CNIL_20231012-213000.tar.gz</a>   2023-10-12 21:30  10K
<a href="Freemium_cnil_global_20230715-140000.tar.gz">Freemium_cnil_global_20230715-140000.tar.gz</a> 2023-07-15 14:00  60M
<a href="CNIL_20231012-213000.tar.gz">CNIL_20231012-213000.tar.gz</a>   2023-10-12 21:30  10K
<a href="README.txt">README.txt</a>   2023-01-01 10:00  1K
<hr></pre>
</body></html>
`

func setupIndexServer(hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, mockIndex)
	}))
}

func TestNewIndexLister(t *testing.T) {
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	xdg.Reload()
	l, err := NewIndexLister("cnil", "https://example.com/OPENDATA/CNIL/", http.DefaultClient)
	if err != nil {
		t.Fatal(err)
	}
	if l.CacheTTL != DefaultCacheTTL {
		t.Errorf("got %v, want %v", l.CacheTTL, DefaultCacheTTL)
	}
	if _, err := os.Stat(l.CacheDir); err != nil {
		t.Errorf("cache dir not created: %v", err)
	}
	if !strings.Contains(l.CacheDir, jurikit.AppName) {
		t.Errorf("cache dir does not contain app name, got %s", l.CacheDir)
	}
}

func TestIndexList(t *testing.T) {
	var hits int32
	server := setupIndexServer(&hits)
	defer server.Close()
	l := &IndexLister{
		BaseURL:  server.URL + "/",
		CacheTTL: DefaultCacheTTL,
		CacheDir: t.TempDir(),
		Client:   NewClient(5 * time.Second),
	}
	names, err := l.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"CNIL_20231012-213000.tar.gz",
		"CNIL_20231013-213000.tar.gz",
		"Freemium_cnil_global_20230715-140000.tar.gz",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(l.CacheDir, "index.html")); err != nil {
		t.Fatalf("index not cached: %v", err)
	}
	if _, err := l.List(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("got %d requests, want 1, cache not used", n)
	}
}

func TestIndexCacheExpiration(t *testing.T) {
	var hits int32
	server := setupIndexServer(&hits)
	defer server.Close()
	l := &IndexLister{
		BaseURL:  server.URL + "/",
		CacheTTL: 10 * time.Millisecond,
		CacheDir: t.TempDir(),
		Client:   NewClient(5 * time.Second),
	}
	if _, err := l.List(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := l.List(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("got %d requests, want 2", n)
	}
}

func TestIndexStatus(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	l := &IndexLister{
		BaseURL:  server.URL + "/",
		CacheTTL: DefaultCacheTTL,
		CacheDir: t.TempDir(),
		Client:   NewClient(5 * time.Second),
	}
	if _, err := l.List(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
