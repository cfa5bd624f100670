package feeds

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// ParseList reads a comma delimited list of archive names. Whitespace around
// names, line breaks and trailing commas are tolerated, empty entries are
// dropped.
func ParseList(r io.Reader) ([]string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fields := bytes.FieldsFunc(b, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' })
	var names []string
	for _, f := range fields {
		if name := strings.TrimSpace(string(f)); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// ReadListFile reads a list file, see ParseList.
func ReadListFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("read archive list: %w", err)
	}
	defer f.Close()
	return ParseList(f)
}

// Skip drops names containing any of the given substrings.
func Skip(names []string, skip []string) []string {
	if len(skip) == 0 {
		return names
	}
	return lo.Filter(names, func(name string, _ int) bool {
		return !lo.SomeBy(skip, func(s string) bool { return strings.Contains(name, s) })
	})
}

// Normalize removes duplicates and sorts names.
func Normalize(names []string) []string {
	result := lo.Uniq(names)
	sort.Strings(result)
	return result
}
