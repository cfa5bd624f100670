// Package dateutil parses user supplied dates and the timestamps embedded in
// archive names.
package dateutil

import (
	"regexp"
	"time"

	"github.com/araddon/dateparse"
	"github.com/jinzhu/now"
	"github.com/samber/lo"
)

// ArchiveLayout is the timestamp format used in archive names, e.g.
// CASS_20231012-204524.tar.gz.
const ArchiveLayout = "20060102-150405"

var archiveStamp = regexp.MustCompile(`\d{8}-\d{6}`)

// ParseSince parses a date and returns the beginning of that day, so
// "2024-01-31" includes every archive of that day.
func ParseSince(value string) (time.Time, error) {
	t, err := dateparse.ParseStrict(value)
	if err != nil {
		return time.Time{}, err
	}
	return now.With(t).BeginningOfDay(), nil
}

// ArchiveTime returns the timestamp embedded in an archive name.
func ArchiveTime(name string) (time.Time, bool) {
	m := archiveStamp.FindString(name)
	if m == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(ArchiveLayout, m)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FilterSince keeps names stamped at or after t. Names without a timestamp
// are kept, as there is no telling how old they are. A zero t keeps all.
func FilterSince(names []string, t time.Time) []string {
	if t.IsZero() {
		return names
	}
	return lo.Filter(names, func(name string, _ int) bool {
		ts, ok := ArchiveTime(name)
		return !ok || !ts.Before(t)
	})
}
