package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefault(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("builtin schema: %v", err)
	}
	want := []string{"capp", "cass", "inca", "jade", "cnil"}
	if diff := cmp.Diff(want, reg.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	for _, name := range want {
		c, ok := reg.Lookup(name)
		if !ok {
			t.Fatalf("missing corpus %s", name)
		}
		if c.BatchSize != DefaultBatchSize {
			t.Errorf("%s: batch size %d", name, c.BatchSize)
		}
		if c.Output != name+"_dataset.jsonl" {
			t.Errorf("%s: output %s", name, c.Output)
		}
		if c.Index("contenu") == -1 {
			t.Errorf("%s: no contenu key", name)
		}
		for _, b := range c.Blocks {
			if len(b.Exprs()) != len(b.Paths) {
				t.Errorf("%s/%s: paths not compiled", name, b.Name)
			}
			for _, f := range b.Fields {
				if f.Expr() == nil {
					t.Errorf("%s/%s/%s: path not compiled", name, b.Name, f.Key)
				}
			}
		}
	}
	if _, ok := reg.Lookup("CASS"); !ok {
		t.Fatalf("lookup should ignore case")
	}
}

func TestDefaultKeySets(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	var cases = []struct {
		corpus string
		size   int
		last   []string
	}{
		{"capp", 21, []string{"contenu", "sommaire"}},
		{"cass", 29, []string{"contenu", "sommaire_principal", "sommaire_reference", "sommaire_analyse"}},
		{"inca", 27, []string{"ecli", "contenu", "sommaire"}},
		{"jade", 17, []string{"commissaire_gouvernement", "contenu"}},
		{"cnil", 11, []string{"etat_juridique", "contenu"}},
	}
	for _, c := range cases {
		corpus, _ := reg.Lookup(c.corpus)
		if len(corpus.Keys) != c.size {
			t.Errorf("%s: got %d keys, want %d", c.corpus, len(corpus.Keys), c.size)
			continue
		}
		tail := []string(corpus.Keys[len(corpus.Keys)-len(c.last):])
		if diff := cmp.Diff(c.last, tail); diff != "" {
			t.Errorf("%s: key tail mismatch (-want +got):\n%s", c.corpus, diff)
		}
	}
}

func TestIncaLookupOrder(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	inca, _ := reg.Lookup("inca")
	for _, b := range inca.Blocks {
		if b.Name != "META_JURI" && b.Name != "META_JURI_JUDI" {
			continue
		}
		if len(b.Paths) != 2 || !strings.Contains(b.Paths[0], "META_SPEC") {
			t.Fatalf("%s: want nested path first, got %v", b.Name, b.Paths)
		}
	}
}

const minimal = `
corpora:
  - name: test
    base_url: http://localhost/
    listing: {kind: list, file: LIST.csv}
    keys: [id, titre]
    blocks:
      - name: META
        paths: [".//META"]
        fields:
          - {key: id, path: ID}
          - {key: titre, path: TITRE}
`

func TestParseMinimal(t *testing.T) {
	reg, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatal(err)
	}
	c, ok := reg.Lookup("test")
	if !ok {
		t.Fatal("corpus not found")
	}
	if c.Blocks[0].Fields[0].Mode != Text {
		t.Fatalf("default mode not applied: %q", c.Blocks[0].Fields[0].Mode)
	}
	if c.Index("titre") != 1 || c.Index("missing") != -1 {
		t.Fatalf("bad index")
	}
}

func TestLoadFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "corpora.yaml")
	if err := os.WriteFile(filename, []byte(minimal), 0644); err != nil {
		t.Fatal(err)
	}
	reg, err := LoadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"test"}, reg.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestParseInvalid(t *testing.T) {
	var cases = []struct {
		help    string
		replace [2]string
		errPart string
	}{
		{"undeclared key", [2]string{"{key: titre, path: TITRE}", "{key: title, path: TITRE}"}, "undeclared key"},
		{"uncovered key", [2]string{"keys: [id, titre]", "keys: [id, titre, extra]"}, "not filled"},
		{"duplicate key", [2]string{"keys: [id, titre]", "keys: [id, titre, id]"}, "duplicate key"},
		{"bad field path", [2]string{"path: TITRE}", "path: \"TITRE[\"}"}, "invalid path"},
		{"bad block path", [2]string{`paths: [".//META"]`, `paths: ["//["]`}, "invalid path"},
		{"unknown mode", [2]string{"path: TITRE}", "path: TITRE, mode: shallow}"}, "unknown mode"},
		{"missing list file", [2]string{"{kind: list, file: LIST.csv}", "{kind: list}"}, "listing file"},
		{"unknown listing", [2]string{"{kind: list, file: LIST.csv}", "{kind: ftp}"}, "unknown listing"},
		{"missing base url", [2]string{"base_url: http://localhost/", "base_url: \"\""}, "base_url"},
	}
	for _, c := range cases {
		t.Run(c.help, func(t *testing.T) {
			doc := strings.Replace(minimal, c.replace[0], c.replace[1], 1)
			if doc == minimal {
				t.Fatalf("replacement did not apply")
			}
			_, err := Parse([]byte(doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), c.errPart) {
				t.Fatalf("got %v, want mention of %q", err, c.errPart)
			}
		})
	}
}

func TestKeyListFlattens(t *testing.T) {
	doc := `
x-base: &base [a, b]
corpora:
  - name: t
    base_url: http://localhost/
    listing: {kind: index}
    keys: [*base, c]
    blocks:
      - name: B
        paths: ["."]
        fields:
          - {key: a, path: A}
          - {key: b, path: B}
          - {key: c, path: C}
`
	reg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	c, _ := reg.Lookup("t")
	if diff := cmp.Diff(KeyList{"a", "b", "c"}, c.Keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestDuplicateCorpus(t *testing.T) {
	doc := minimal + strings.Replace(strings.SplitN(minimal, "corpora:\n", 2)[1], "name: test", "name: TEST", 1)
	if _, err := Parse([]byte(doc)); err == nil || !strings.Contains(err.Error(), "duplicate corpus") {
		t.Fatalf("got %v", err)
	}
}
