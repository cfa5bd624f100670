package convert

import (
	"github.com/miku/jurikit/schema"
	"github.com/segmentio/encoding/json"
)

// Record is a flat decision record. The key set is fixed by the corpus and
// every key is present, with an empty string for anything missing in the
// source. A record cannot be changed once built.
type Record struct {
	corpus *schema.Corpus
	values []string
}

// Len returns the number of keys.
func (r Record) Len() int { return len(r.values) }

// Keys returns the keys, in declaration order.
func (r Record) Keys() []string {
	if r.corpus == nil {
		return nil
	}
	return append([]string(nil), r.corpus.Keys...)
}

// Get returns the value for key and whether the key belongs to the record.
func (r Record) Get(key string) (string, bool) {
	if r.corpus == nil {
		return "", false
	}
	i := r.corpus.Index(key)
	if i < 0 {
		return "", false
	}
	return r.values[i], true
}

// Map returns a copy of the record as a map.
func (r Record) Map() map[string]string {
	m := make(map[string]string, len(r.values))
	for i, v := range r.values {
		m[r.corpus.Keys[i]] = v
	}
	return m
}

// AppendJSON appends the record as a single JSON object, keys in declaration
// order. Non-ASCII characters as well as <, > and & are written as is.
func (r Record) AppendJSON(b []byte) ([]byte, error) {
	var err error
	b = append(b, '{')
	for i, v := range r.values {
		if i > 0 {
			b = append(b, ',')
		}
		if b, err = json.Append(b, r.corpus.Keys[i], 0); err != nil {
			return nil, err
		}
		b = append(b, ':')
		if b, err = json.Append(b, v, 0); err != nil {
			return nil, err
		}
	}
	return append(b, '}'), nil
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return r.AppendJSON(nil)
}
