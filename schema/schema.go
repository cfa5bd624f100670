// Package schema declares, per corpus, how decision XML maps to a flat
// record: the full key set, the metadata blocks to probe and the rules that
// fill each key. Schemas are data, the parser in package convert knows nothing
// about any particular corpus.
package schema

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antchfx/xpath"
	"gopkg.in/yaml.v3"
)

// DefaultBatchSize is the number of records buffered before a write.
const DefaultBatchSize = 1000

//go:embed corpora.yaml
var builtin []byte

// ListingKind tells how the archive names of a corpus are obtained.
type ListingKind string

const (
	// ListFile reads a comma delimited list of archive names from disk.
	ListFile ListingKind = "list"
	// IndexPage scrapes tarball names from the directory index at BaseURL.
	IndexPage ListingKind = "index"
)

// Mode selects how element text is read.
type Mode string

const (
	// Text reads the leading text of the element, up to its first child.
	Text Mode = "text"
	// Deep reads the text of all descendants, in document order.
	Deep Mode = "deep"
)

// Listing describes the archive source of a corpus.
type Listing struct {
	Kind ListingKind `yaml:"kind"`
	File string      `yaml:"file"`
}

// Field maps one element or attribute, relative to its block, to a key.
type Field struct {
	Key  string `yaml:"key"`
	Path string `yaml:"path"`
	Attr string `yaml:"attr"`
	Mode Mode   `yaml:"mode"`
	expr *xpath.Expr
}

// Expr returns the compiled path, nil before validation.
func (f *Field) Expr() *xpath.Expr { return f.expr }

// Block is a metadata subtree. Paths are probed in order, relative to the
// document, and the first hit is used.
type Block struct {
	Name   string   `yaml:"name"`
	Paths  []string `yaml:"paths"`
	Fields []Field  `yaml:"fields"`
	exprs  []*xpath.Expr
}

// Exprs returns the compiled lookup paths, in probe order.
func (b *Block) Exprs() []*xpath.Expr { return b.exprs }

// KeyList is a list of keys. Nested sequences are flattened, so a list can
// reuse a YAML anchor and extend it.
type KeyList []string

// UnmarshalYAML flattens nested sequences and aliases into a single list.
func (k *KeyList) UnmarshalYAML(value *yaml.Node) error {
	var flatten func(n *yaml.Node) error
	flatten = func(n *yaml.Node) error {
		if n.Kind == yaml.AliasNode {
			n = n.Alias
		}
		switch n.Kind {
		case yaml.SequenceNode:
			for _, c := range n.Content {
				if err := flatten(c); err != nil {
					return err
				}
			}
		case yaml.ScalarNode:
			*k = append(*k, n.Value)
		default:
			return fmt.Errorf("line %d: key must be a string or a list", n.Line)
		}
		return nil
	}
	*k = nil
	return flatten(value)
}

// Corpus is the configuration of one corpus. Immutable after validation.
type Corpus struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	BaseURL     string   `yaml:"base_url"`
	Listing     Listing  `yaml:"listing"`
	Skip        []string `yaml:"skip"`
	Output      string   `yaml:"output"`
	BatchSize   int      `yaml:"batch_size"`
	Keys        KeyList  `yaml:"keys"`
	Blocks      []Block  `yaml:"blocks"`
	index       map[string]int
}

// Index returns the position of key in the record, or -1.
func (c *Corpus) Index(key string) int {
	if i, ok := c.index[key]; ok {
		return i
	}
	return -1
}

// Registry holds a set of corpora, addressed by name.
type Registry struct {
	Corpora []*Corpus `yaml:"corpora"`
	byName  map[string]*Corpus
}

// Lookup finds a corpus by name, case insensitive.
func (r *Registry) Lookup(name string) (*Corpus, bool) {
	c, ok := r.byName[strings.ToLower(name)]
	return c, ok
}

// Names returns all corpus names, in declaration order.
func (r *Registry) Names() []string {
	var names []string
	for _, c := range r.Corpora {
		names = append(names, c.Name)
	}
	return names
}

// Default returns the registry of built-in corpora.
func Default() (*Registry, error) {
	return Parse(builtin)
}

// LoadFile reads a registry from a YAML file.
func LoadFile(filename string) (*Registry, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a registry from r.
func Load(r io.Reader) (*Registry, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes and validates a registry.
func Parse(b []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(b, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if len(reg.Corpora) == 0 {
		return nil, fmt.Errorf("schema declares no corpus")
	}
	reg.byName = make(map[string]*Corpus)
	for _, c := range reg.Corpora {
		setDefaults(c)
		if err := validate(c); err != nil {
			return nil, fmt.Errorf("corpus %q: %w", c.Name, err)
		}
		name := strings.ToLower(c.Name)
		if _, ok := reg.byName[name]; ok {
			return nil, fmt.Errorf("duplicate corpus: %s", c.Name)
		}
		reg.byName[name] = c
	}
	return &reg, nil
}

func setDefaults(c *Corpus) {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Output == "" && c.Name != "" {
		c.Output = strings.ToLower(c.Name) + "_dataset.jsonl"
	}
	if c.Listing.Kind == "" {
		c.Listing.Kind = ListFile
	}
	for i := range c.Blocks {
		for j := range c.Blocks[i].Fields {
			if c.Blocks[i].Fields[j].Mode == "" {
				c.Blocks[i].Fields[j].Mode = Text
			}
		}
	}
}

// validate checks a corpus and compiles its paths. Every rule must target a
// declared key and every declared key must be reachable by some rule.
func validate(c *Corpus) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	switch c.Listing.Kind {
	case ListFile:
		if c.Listing.File == "" {
			return fmt.Errorf("listing file is required")
		}
	case IndexPage:
	default:
		return fmt.Errorf("unknown listing kind: %s", c.Listing.Kind)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch size must be non-negative")
	}
	if len(c.Keys) == 0 {
		return fmt.Errorf("no keys declared")
	}
	c.index = make(map[string]int, len(c.Keys))
	for i, k := range c.Keys {
		if k == "" {
			return fmt.Errorf("empty key at position %d", i)
		}
		if _, ok := c.index[k]; ok {
			return fmt.Errorf("duplicate key: %s", k)
		}
		c.index[k] = i
	}
	covered := make(map[string]bool)
	for i := range c.Blocks {
		b := &c.Blocks[i]
		if len(b.Paths) == 0 {
			return fmt.Errorf("block %s: no lookup path", b.Name)
		}
		b.exprs = b.exprs[:0]
		for _, p := range b.Paths {
			expr, err := xpath.Compile(p)
			if err != nil {
				return fmt.Errorf("block %s: invalid path %q: %w", b.Name, p, err)
			}
			b.exprs = append(b.exprs, expr)
		}
		for j := range b.Fields {
			f := &b.Fields[j]
			if _, ok := c.index[f.Key]; !ok {
				return fmt.Errorf("block %s: undeclared key: %s", b.Name, f.Key)
			}
			switch f.Mode {
			case Text, Deep:
			default:
				return fmt.Errorf("block %s: key %s: unknown mode: %s", b.Name, f.Key, f.Mode)
			}
			expr, err := xpath.Compile(f.Path)
			if err != nil {
				return fmt.Errorf("block %s: key %s: invalid path %q: %w", b.Name, f.Key, f.Path, err)
			}
			f.expr = expr
			covered[f.Key] = true
		}
	}
	for _, k := range c.Keys {
		if !covered[k] {
			return fmt.Errorf("key %s is not filled by any rule", k)
		}
	}
	return nil
}
