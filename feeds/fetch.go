package feeds

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gzip "github.com/klauspost/pgzip"
	"github.com/miku/jurikit/runlog"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrUnsafePath is returned for archive entries that would land outside of
// the extraction directory.
var ErrUnsafePath = errors.New("unsafe path in archive")

// Fetcher downloads archives from a base URL and unpacks each into its own
// directory under ExtractDir.
type Fetcher struct {
	Client       Doer
	BaseURL      string
	DownloadDir  string
	ExtractDir   string
	KeepArchives bool
	UserAgent    string
	Log          *log.Entry
}

// FetchResult collects the outcome of fetching a list of archives. Dirs are
// in the order of the requested names.
type FetchResult struct {
	Dirs   []string
	Failed []*FetchError
}

// Stem returns the archive name without its tarball suffix.
func Stem(name string) string {
	for _, suffix := range []string{".tar.gz", ".tgz", ".tar"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

func (f *Fetcher) logger() *log.Entry {
	if f.Log == nil {
		return runlog.Discard()
	}
	return f.Log
}

func (f *Fetcher) url(name string) string {
	return strings.TrimSuffix(f.BaseURL, "/") + "/" + name
}

// Fetch downloads a single archive, unless it is already on disk, and
// unpacks it. It returns the extraction directory of the archive.
func (f *Fetcher) Fetch(ctx context.Context, name string) (string, error) {
	dst := filepath.Join(f.DownloadDir, name)
	if _, err := os.Stat(dst); os.IsNotExist(err) {
		if err := f.download(ctx, name, dst); err != nil {
			return "", &FetchError{Archive: name, Op: "download", Err: err}
		}
	}
	dir := filepath.Join(f.ExtractDir, Stem(name))
	n, err := extract(dst, dir)
	if err != nil {
		// A corrupt archive is fetched again next time.
		os.Remove(dst)
		return "", &FetchError{Archive: name, Op: "extract", Err: err}
	}
	f.logger().WithFields(log.Fields{
		"archive": name,
		"files":   n,
	}).Info("archive extracted")
	if !f.KeepArchives {
		if err := os.Remove(dst); err != nil {
			f.logger().WithError(err).Warn("could not remove archive")
		}
	}
	return dir, nil
}

// FetchAll fetches archives with a bounded number of workers. A failed
// archive is logged and recorded, the others are still fetched.
func (f *Fetcher) FetchAll(ctx context.Context, names []string, workers int) FetchResult {
	if workers < 1 {
		workers = 1
	}
	var (
		dirs   = make([]string, len(names))
		errs   = make([]*FetchError, len(names))
		g      errgroup.Group
		mu     sync.Mutex
		done   int
		result FetchResult
	)
	g.SetLimit(workers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = &FetchError{Archive: name, Op: "download", Err: err}
				return nil
			}
			dir, err := f.Fetch(ctx, name)
			if err != nil {
				var ferr *FetchError
				if !errors.As(err, &ferr) {
					ferr = &FetchError{Archive: name, Op: "download", Err: err}
				}
				errs[i] = ferr
				f.logger().WithError(err).WithField("archive", name).Error("fetch failed")
				return nil
			}
			dirs[i] = dir
			mu.Lock()
			done++
			f.logger().WithFields(log.Fields{
				"done":  done,
				"total": len(names),
			}).Debug("fetch progress")
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	for i := range names {
		switch {
		case errs[i] != nil:
			result.Failed = append(result.Failed, errs[i])
		case dirs[i] != "":
			result.Dirs = append(result.Dirs, dirs[i])
		}
	}
	return result
}

// download writes the archive to a temporary file first, which is renamed
// once complete.
func (f *Fetcher) download(ctx context.Context, name, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url(name), nil)
	if err != nil {
		return err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("got HTTP %d for %s", resp.StatusCode, f.url(name))
	}
	wip := dst + ".wip"
	out, err := os.Create(wip)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, resp.Body)
	if err != nil {
		out.Close()
		os.Remove(wip)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(wip)
		return err
	}
	f.logger().WithFields(log.Fields{
		"archive": name,
		"bytes":   n,
	}).Info("archive downloaded")
	return os.Rename(wip, dst)
}

// extract unpacks a gzipped tarball into dir, replacing anything there
// before. Only directories and regular files are created. It returns the
// number of files written.
func extract(filename, dir string) (int, error) {
	f, err := os.Open(filename)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return 0, err
	}
	defer zr.Close()
	if err := os.RemoveAll(dir); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}
	var (
		root = filepath.Clean(dir) + string(os.PathSeparator)
		tr   = tar.NewReader(zr)
		n    int
	)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		target := filepath.Join(dir, hdr.Name)
		if !strings.HasPrefix(target+string(os.PathSeparator), root) {
			return n, fmt.Errorf("%w: %s", ErrUnsafePath, hdr.Name)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return n, err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func writeFile(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
