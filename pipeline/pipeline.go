// Package pipeline runs a corpus end to end: list the archives, fetch and
// unpack them, discover the decision files, parse them and append the records
// to the dataset. Failures of single archives, documents or batches are
// counted and logged; only configuration problems abort a run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/miku/jurikit/config"
	"github.com/miku/jurikit/convert"
	"github.com/miku/jurikit/dateutil"
	"github.com/miku/jurikit/feeds"
	"github.com/miku/jurikit/pproc"
	"github.com/miku/jurikit/runlog"
	"github.com/miku/jurikit/schema"
	"github.com/miku/jurikit/sink"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// State of a run.
type State int

const (
	Listing State = iota
	Fetching
	Discovering
	Parsing
	Done
)

func (s State) String() string {
	switch s {
	case Listing:
		return "listing"
	case Fetching:
		return "fetching"
	case Discovering:
		return "discovering"
	case Parsing:
		return "parsing"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// sampleSize is the number of leading records logged at the end of a run.
const sampleSize = 5

// sampleKeys are logged for each sample record, if the corpus declares them.
var sampleKeys = []string{"id", "titre", "titrefull", "date_decision", "date_texte", "juridiction", "numero"}

// Lister returns archive names.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Option configures a pipeline.
type Option func(*Pipeline)

// WithLogger sets the log entry of the run.
func WithLogger(l *log.Entry) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithClient sets the HTTP client for index pages and downloads.
func WithClient(client feeds.Doer) Option {
	return func(p *Pipeline) {
		p.client = client
	}
}

// WithLister replaces the archive listing of the corpus.
func WithLister(l Lister) Option {
	return func(p *Pipeline) {
		p.lister = l
	}
}

// Pipeline processes a single corpus. A pipeline is meant to be run once.
type Pipeline struct {
	corpus  *schema.Corpus
	cfg     *config.Config
	log     *log.Entry
	client  feeds.Doer
	lister  Lister
	parser  *convert.Parser
	state   State
	started time.Time
	summary Summary
	sample  []convert.Record
}

// New prepares a run of corpus c.
func New(c *schema.Corpus, cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		corpus: c,
		cfg:    cfg,
		log:    runlog.Discard(),
		parser: convert.NewParser(c),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.client == nil {
		p.client = feeds.NewClient(cfg.Timeout)
	}
	return p
}

// State returns the current state.
func (p *Pipeline) State() State { return p.state }

// OutputPath returns the dataset path.
func (p *Pipeline) OutputPath() string {
	return p.cfg.OutputPath(p.corpus.Name, p.corpus.Output)
}

func (p *Pipeline) batchSize() int {
	if p.cfg.BatchSize > 0 {
		return p.cfg.BatchSize
	}
	if p.corpus.BatchSize > 0 {
		return p.corpus.BatchSize
	}
	return schema.DefaultBatchSize
}

func (p *Pipeline) enter(s State) {
	p.state = s
	p.log.WithField("state", s).Info("state change")
}

func (p *Pipeline) fatal(err error) error {
	p.log.WithError(err).Error("run aborted")
	return &config.FatalError{Corpus: p.corpus.Name, Err: err}
}

// Run executes the pipeline. The returned error is a *config.FatalError,
// everything else ends up in the summary.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	p.started = time.Now()
	p.summary = Summary{Corpus: p.corpus.Name, Output: p.OutputPath()}
	p.log.WithFields(log.Fields{
		"output":  p.summary.Output,
		"batch":   p.batchSize(),
		"workers": p.cfg.Workers,
		"nofetch": p.cfg.NoFetch,
	}).Info("starting run")
	var (
		names []string
		roots []string
		err   error
	)
	if p.cfg.NoFetch {
		roots = []string{p.cfg.ExtractDir(p.corpus.Name)}
	} else {
		p.enter(Listing)
		if names, err = p.Archives(ctx); err != nil {
			return nil, p.fatal(err)
		}
		p.summary.ArchivesListed = len(names)
	}
	out, err := sink.Open(p.summary.Output, sink.Truncate,
		sink.WithBatchSize(p.batchSize()),
		sink.WithLogger(p.log))
	if err != nil {
		return nil, p.fatal(err)
	}
	if !p.cfg.NoFetch {
		p.enter(Fetching)
		roots = p.fetch(ctx, names)
		if len(roots) == 0 {
			p.log.WithField("listed", len(names)).Warn("nothing fetched")
		}
	}
	p.enter(Discovering)
	files, err := Discover(roots...)
	if err != nil {
		p.log.WithError(err).Error("discovery failed")
	}
	p.summary.Discovered = len(files)
	if len(files) == 0 {
		if len(roots) > 0 {
			p.log.WithField("roots", len(roots)).Warn("no documents")
		}
		return p.finish(out)
	}
	p.log.WithField("documents", len(files)).Info("documents discovered")
	p.enter(Parsing)
	if err := p.parse(ctx, files, out); err != nil {
		p.log.WithError(err).Warn("parsing interrupted")
	}
	return p.finish(out)
}

func (p *Pipeline) finish(out *sink.Sink) (*Summary, error) {
	if err := out.Close(); err != nil {
		p.log.WithError(err).Warn("final batch lost")
	}
	st := out.Stats()
	p.summary.Batches = st.Batches
	p.summary.Records = st.Records
	p.summary.FailedBatches = st.FailedBatches
	p.summary.LostRecords = st.LostRecords
	p.summary.Duration = time.Since(p.started)
	if st.Records > 0 {
		p.logSample()
	}
	p.enter(Done)
	p.log.WithFields(p.summary.Fields()).Info("run finished")
	summary := p.summary
	return &summary, nil
}

// logSample logs a few key fields of the first records, as a quick look at
// the dataset.
func (p *Pipeline) logSample() {
	for i, rec := range p.sample {
		fields := log.Fields{"n": i + 1}
		for _, k := range sampleKeys {
			if v, ok := rec.Get(k); ok {
				fields[k] = v
			}
		}
		p.log.WithFields(fields).Info("sample record")
	}
}

// Archives returns the archive names to fetch, after skip and date filters.
func (p *Pipeline) Archives(ctx context.Context) ([]string, error) {
	var (
		names []string
		err   error
	)
	switch {
	case p.lister != nil:
		names, err = p.lister.List(ctx)
	case p.corpus.Listing.Kind == schema.IndexPage:
		var l *feeds.IndexLister
		if l, err = feeds.NewIndexLister(p.corpus.Name, p.corpus.BaseURL, p.client); err != nil {
			return nil, err
		}
		if p.cfg.IndexTTL > 0 {
			l.CacheTTL = p.cfg.IndexTTL
		}
		l.UserAgent = p.cfg.UserAgent
		names, err = l.List(ctx)
	default:
		names, err = feeds.ReadListFile(p.cfg.ListPath(p.corpus.Listing.File))
	}
	if err != nil {
		return nil, err
	}
	total := len(names)
	names = lo.Uniq(names)
	names = feeds.Skip(names, p.corpus.Skip)
	names = dateutil.FilterSince(names, p.cfg.Since)
	p.log.WithFields(log.Fields{
		"found":    total,
		"selected": len(names),
	}).Info("archives listed")
	return names, nil
}

// fetch downloads and unpacks archives, returning their directories.
func (p *Pipeline) fetch(ctx context.Context, names []string) []string {
	f := &feeds.Fetcher{
		Client:       p.client,
		BaseURL:      p.corpus.BaseURL,
		DownloadDir:  p.cfg.DownloadDir(p.corpus.Name),
		ExtractDir:   p.cfg.ExtractDir(p.corpus.Name),
		KeepArchives: p.cfg.KeepArchives,
		UserAgent:    p.cfg.UserAgent,
		Log:          p.log,
	}
	workers := p.cfg.FetchWorkers
	if workers < 1 {
		workers = config.DefaultFetchWorkers
	}
	result := f.FetchAll(ctx, names, workers)
	p.summary.ArchivesFetched = len(result.Dirs)
	p.summary.ArchivesFailed = len(result.Failed)
	return result.Dirs
}

type parsed struct {
	rec convert.Record
	err error
}

// parse processes files in chunks of the batch size. Within a chunk files are
// parsed in parallel, records are written in discovery order.
func (p *Pipeline) parse(ctx context.Context, files []string, out *sink.Sink) error {
	proc := pproc.NewProcessor(pproc.WithWorkers(p.cfg.Workers))
	size := p.batchSize()
	for _, chunk := range lo.Chunk(files, size) {
		results, err := pproc.Map(ctx, proc, chunk, func(path string) parsed {
			rec, err := p.parser.ParseFile(path)
			return parsed{rec: rec, err: err}
		})
		if err != nil {
			return err
		}
		for i, r := range results {
			if r.err != nil {
				p.countFailure(chunk[i], r.err)
				continue
			}
			p.summary.Parsed++
			if len(p.sample) < sampleSize {
				p.sample = append(p.sample, r.rec)
			}
			// Write failures are counted by the sink.
			_ = out.Write(r.rec)
		}
		p.log.WithFields(log.Fields{
			"parsed": p.summary.Parsed,
			"total":  len(files),
		}).Debug("chunk done")
	}
	return nil
}

func (p *Pipeline) countFailure(path string, err error) {
	var perr *convert.ParseError
	kind := convert.ExtractionError
	if errors.As(err, &perr) {
		kind = perr.Kind
	}
	switch kind {
	case convert.MalformedXML:
		p.summary.Malformed++
	case convert.ReadFailure:
		p.summary.ReadFailed++
	default:
		p.summary.ExtractionFailed++
	}
	p.log.WithFields(log.Fields{
		"path": path,
		"kind": kind,
	}).WithError(err).Warn("document skipped")
}
