// Package convert turns a single decision XML document into a flat record,
// following the rules of a schema.Corpus. The parser carries no knowledge of
// any particular corpus.
package convert

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/miku/jurikit/schema"
)

var (
	// ErrNoRoot is wrapped by a MalformedXML error for input without an element.
	ErrNoRoot = errors.New("no root element")
	// ErrJunk is wrapped by a MalformedXML error for input with a second
	// top level element or with text outside of the document element.
	ErrJunk = errors.New("junk outside document element")
)

// FailureKind classifies why a document could not be turned into a record.
type FailureKind int

const (
	// MalformedXML means the document could not be parsed as XML.
	MalformedXML FailureKind = iota + 1
	// ExtractionError means the document parsed, but reading fields failed.
	ExtractionError
	// ReadFailure means the file could not be read.
	ReadFailure
)

func (k FailureKind) String() string {
	switch k {
	case MalformedXML:
		return "malformed xml"
	case ExtractionError:
		return "extraction error"
	case ReadFailure:
		return "read failure"
	default:
		return fmt.Sprintf("unknown failure (%d)", int(k))
	}
}

// ParseError is returned for a document that yields no record.
type ParseError struct {
	Kind FailureKind
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser extracts records for a single corpus. A Parser holds no mutable
// state and can be shared between goroutines.
type Parser struct {
	corpus *schema.Corpus
}

// NewParser returns a parser for a validated corpus.
func NewParser(c *schema.Corpus) *Parser {
	return &Parser{corpus: c}
}

// ParseFile reads and parses a single file.
func (p *Parser) ParseFile(filename string) (Record, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return Record{}, &ParseError{Kind: ReadFailure, Path: filename, Err: err}
	}
	return p.Parse(bytes.NewReader(b), filename)
}

// Parse reads a document from r; path is only used for error reporting. Read
// errors on r are reported as malformed input, use ParseFile to tell them
// apart.
func (p *Parser) Parse(r io.Reader, path string) (Record, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return Record{}, &ParseError{Kind: MalformedXML, Path: path, Err: err}
	}
	if err := checkRoot(doc); err != nil {
		return Record{}, &ParseError{Kind: MalformedXML, Path: path, Err: err}
	}
	return p.extract(doc, path)
}

// extract fills a record from a parsed document. Blocks are applied in
// declared order; a block found later overwrites keys shared with an earlier
// one.
func (p *Parser) extract(doc *xmlquery.Node, path string) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = Record{}
			err = &ParseError{Kind: ExtractionError, Path: path, Err: fmt.Errorf("%v", r)}
		}
	}()
	values := make([]string, len(p.corpus.Keys))
	for i := range p.corpus.Blocks {
		b := &p.corpus.Blocks[i]
		node := lookup(doc, b)
		if node == nil {
			continue
		}
		for j := range b.Fields {
			f := &b.Fields[j]
			values[p.corpus.Index(f.Key)] = fieldValue(node, f)
		}
	}
	return Record{corpus: p.corpus, values: values}, nil
}

// lookup returns the subtree matched by the first lookup path that hits.
func lookup(doc *xmlquery.Node, b *schema.Block) *xmlquery.Node {
	for _, expr := range b.Exprs() {
		if n := find(doc, expr); n != nil {
			return n
		}
	}
	return nil
}

// checkRoot requires exactly one document element. Comments, processing
// instructions and white space may surround it, nothing else.
func checkRoot(doc *xmlquery.Node) error {
	var elem *xmlquery.Node
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.ElementNode:
			if elem != nil {
				return fmt.Errorf("%w: second element <%s>", ErrJunk, c.Data)
			}
			elem = c
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if strings.TrimSpace(c.Data) != "" {
				return fmt.Errorf("%w: text %q", ErrJunk, c.Data)
			}
		}
	}
	if elem == nil {
		return ErrNoRoot
	}
	return nil
}
