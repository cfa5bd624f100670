package sink

import (
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
	gzip "github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type line string

func (l line) AppendJSON(b []byte) ([]byte, error) {
	return strconv.AppendQuote(b, string(l)), nil
}

type broken struct{}

func (broken) AppendJSON(b []byte) ([]byte, error) { return nil, errors.New("cannot marshal") }

func records(n int) []Marshaler {
	var result []Marshaler
	for i := 0; i < n; i++ {
		result = append(result, line("r"+strconv.Itoa(i)))
	}
	return result
}

func readLines(t *testing.T, r io.Reader) []string {
	t.Helper()
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatal(err)
	}
	return lines
}

func readFile(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	return readLines(t, f)
}

func TestBatching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "x_dataset.jsonl")
	s, err := Open(path, Truncate, WithBatchSize(2))
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range records(5) {
		if err := s.Write(r); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(readFile(t, path)); got != 4 {
		t.Fatalf("before close: got %d lines, want 4", got)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	want := Stats{Batches: 3, BatchSizes: []int{2, 2, 1}, Records: 5}
	if diff := cmp.Diff(want, s.Stats()); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
	wantLines := []string{`"r0"`, `"r1"`, `"r2"`, `"r3"`, `"r4"`}
	if diff := cmp.Diff(wantLines, readFile(t, path)); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
	if err := s.Write(line("late")); !errors.Is(err, ErrClosed) {
		t.Fatalf("got %v, want %v", err, ErrClosed)
	}
}

func TestModes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.jsonl")
	if err := os.WriteFile(path, []byte("\"old\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	var cases = []struct {
		mode Mode
		want []string
	}{
		{Append, []string{`"old"`, `"r0"`}},
		{Truncate, []string{`"r0"`}},
		{Append, []string{`"r0"`, `"r0"`}},
	}
	for _, c := range cases {
		s, err := Open(path, c.mode)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Write(records(1)...); err != nil {
			t.Fatal(err)
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(c.want, readFile(t, path)); diff != "" {
			t.Fatalf("%s: output mismatch (-want +got):\n%s", c.mode, diff)
		}
	}
}

func TestTruncateOnlyAtOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.jsonl")
	s, err := Open(path, Truncate, WithBatchSize(1))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(records(3)...); err != nil {
		t.Fatal(err)
	}
	s.Close()
	if got := len(readFile(t, path)); got != 3 {
		t.Fatalf("got %d lines, want 3", got)
	}
}

func TestCompression(t *testing.T) {
	var cases = []struct {
		name   string
		reader func(io.Reader) (io.Reader, error)
	}{
		{"x.jsonl.zst", func(r io.Reader) (io.Reader, error) {
			return zstd.NewReader(r)
		}},
		{"x.jsonl.gz", func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), c.name)
			s, err := Open(path, Truncate, WithBatchSize(2))
			if err != nil {
				t.Fatal(err)
			}
			if err := s.Write(records(5)...); err != nil {
				t.Fatal(err)
			}
			if err := s.Close(); err != nil {
				t.Fatal(err)
			}
			f, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()
			r, err := c.reader(f)
			if err != nil {
				t.Fatal(err)
			}
			got := readLines(t, r)
			if len(got) != 5 || got[4] != `"r4"` {
				t.Fatalf("got %v", got)
			}
		})
	}
}

func TestWriteFailureIsCounted(t *testing.T) {
	logger, hook := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "x.jsonl")
	s, err := Open(path, Truncate, WithBatchSize(2), WithLogger(log.NewEntry(logger)))
	if err != nil {
		t.Fatal(err)
	}
	// A directory in place of the output makes the next flush fail.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatal(err)
	}
	err = s.Write(records(2)...)
	var werr *WriteError
	if !errors.As(err, &werr) || werr.Records != 2 {
		t.Fatalf("got %v, want write error for 2 records", err)
	}
	if e := hook.LastEntry(); e == nil || e.Level != log.ErrorLevel {
		t.Fatalf("expected an error entry, got %v", e)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(records(3)...); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	want := Stats{Batches: 2, BatchSizes: []int{2, 1}, Records: 3, FailedBatches: 1, LostRecords: 2}
	if diff := cmp.Diff(want, s.Stats()); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalFailureDropsBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.jsonl")
	s, err := Open(path, Truncate, WithBatchSize(2))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(line("a"), broken{}); err == nil {
		t.Fatal("expected error")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	st := s.Stats()
	if st.FailedBatches != 1 || st.LostRecords != 2 || st.Records != 0 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	b, _ := os.ReadFile(path)
	if strings.TrimSpace(string(b)) != "" {
		t.Fatalf("partial batch written: %q", b)
	}
}
