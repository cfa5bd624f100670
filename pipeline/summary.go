package pipeline

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
)

// Summary of a corpus run.
type Summary struct {
	Corpus           string
	Output           string
	ArchivesListed   int
	ArchivesFetched  int
	ArchivesFailed   int
	Discovered       int
	Parsed           int
	Malformed        int
	ExtractionFailed int
	ReadFailed       int
	Records          int
	Batches          int
	FailedBatches    int
	LostRecords      int
	Duration         time.Duration
}

// Failed returns the number of documents that yielded no record.
func (s *Summary) Failed() int {
	return s.Malformed + s.ExtractionFailed + s.ReadFailed
}

// Fields returns the summary as log fields.
func (s *Summary) Fields() log.Fields {
	return log.Fields{
		"output":            s.Output,
		"archives_listed":   s.ArchivesListed,
		"archives_fetched":  s.ArchivesFetched,
		"archives_failed":   s.ArchivesFailed,
		"discovered":        s.Discovered,
		"parsed":            s.Parsed,
		"malformed":         s.Malformed,
		"extraction_failed": s.ExtractionFailed,
		"read_failed":       s.ReadFailed,
		"records":           s.Records,
		"batches":           s.Batches,
		"failed_batches":    s.FailedBatches,
		"lost_records":      s.LostRecords,
		"duration":          s.Duration.Round(time.Millisecond).String(),
	}
}

// WriteTo writes a human readable summary.
func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	tw := tabwriter.NewWriter(cw, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "corpus\t%s\n", s.Corpus)
	fmt.Fprintf(tw, "output\t%s\n", s.Output)
	fmt.Fprintf(tw, "archives\t%d listed, %d fetched, %d failed\n", s.ArchivesListed, s.ArchivesFetched, s.ArchivesFailed)
	fmt.Fprintf(tw, "documents\t%d discovered, %d parsed, %d failed\n", s.Discovered, s.Parsed, s.Failed())
	fmt.Fprintf(tw, "failures\t%d malformed, %d extraction, %d read\n", s.Malformed, s.ExtractionFailed, s.ReadFailed)
	fmt.Fprintf(tw, "output batches\t%d written, %d failed, %d records lost\n", s.Batches, s.FailedBatches, s.LostRecords)
	fmt.Fprintf(tw, "records\t%d\n", s.Records)
	fmt.Fprintf(tw, "duration\t%s\n", s.Duration.Round(time.Millisecond))
	err := tw.Flush()
	return cw.n, err
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
