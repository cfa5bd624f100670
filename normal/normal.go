// Package normal cleans free text taken from decision XML: embedded markup is
// dropped, white space collapsed and the predefined XML entities decoded.
package normal

import (
	"regexp"
	"strings"
	"unicode"
)

// Pipeline applies a list of normalizers in order.
type Pipeline struct {
	Normalizer []Normalizer
}

func (p *Pipeline) Normalize(s string) string {
	for _, n := range p.Normalizer {
		s = n.Normalize(s)
	}
	return s
}

type Normalizer interface {
	Normalize(string) string
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// TagStripper replaces every angle bracket tag with a single space. Tags are
// discarded whole, attributes are not looked at.
type TagStripper struct{}

func (s *TagStripper) Normalize(v string) string {
	return tagPattern.ReplaceAllString(v, " ")
}

// SpaceCollapser turns each run of white space into a single space. Unicode
// white space counts, so a no-break space is collapsed as well.
type SpaceCollapser struct{}

func (s *SpaceCollapser) Normalize(v string) string {
	var (
		b       strings.Builder
		inSpace bool
	)
	b.Grow(len(v))
	for _, c := range v {
		if unicode.IsSpace(c) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(c)
	}
	return b.String()
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

// EntityDecoder decodes the five predefined XML entities and nothing else.
type EntityDecoder struct{}

func (s *EntityDecoder) Normalize(v string) string {
	return entityReplacer.Replace(v)
}

// Trimmer removes leading and trailing white space.
type Trimmer struct{}

func (s *Trimmer) Normalize(v string) string {
	return strings.TrimFunc(v, unicode.IsSpace)
}

// cleaner is the pipeline behind Clean. Entities are decoded after tags are
// stripped, so an encoded "&lt;b&gt;" survives as literal text.
var cleaner = &Pipeline{
	Normalizer: []Normalizer{
		&TagStripper{},
		&SpaceCollapser{},
		&EntityDecoder{},
		&Trimmer{},
	},
}

// Clean returns the normalized form of s, or the empty string for empty input.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	return cleaner.Normalize(s)
}
