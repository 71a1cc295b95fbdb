package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Group is one keyed word list inside a nested lookup payload, for example the
// words sharing one pinyin spelling under `ciZus`.
type Group struct {
	Key   string
	Words []string
}

// Groups keeps the groups in the order their keys appeared in the document.
// Both `{"key": [...]}` objects and plain arrays of arrays are accepted; the
// latter get their index as key.
type Groups []Group

// UnmarshalJSON implements json.Unmarshaler.
func (g *Groups) UnmarshalJSON(data []byte) error {
	var groups Groups
	err := eachElement(data, func(key string, raw json.RawMessage) error {
		var words Sequence[string]
		if err := json.Unmarshal(raw, &words); err != nil {
			return fmt.Errorf("group %q: %w", key, err)
		}
		groups = append(groups, Group{Key: key, Words: words})
		return nil
	})
	if err != nil {
		return err
	}
	*g = groups
	return nil
}

// Len reports the number of words across every group.
func (g Groups) Len() int {
	total := 0
	for _, group := range g {
		total += len(group.Words)
	}
	return total
}

// Sequence is a list that may arrive either as a JSON array or as an
// index-keyed object (the shape pandas' to_json produces). Object members are
// taken in document order.
type Sequence[T any] []T

// UnmarshalJSON implements json.Unmarshaler.
func (s *Sequence[T]) UnmarshalJSON(data []byte) error {
	var out Sequence[T]
	err := eachElement(data, func(key string, raw json.RawMessage) error {
		var value T
		if err := json.Unmarshal(raw, &value); err != nil {
			return fmt.Errorf("element %s: %w", key, err)
		}
		out = append(out, value)
		return nil
	})
	if err != nil {
		return err
	}
	*s = out
	return nil
}

// Row is a candidate entry. The backend sends either a single word or the
// list of words sharing one pinyin spelling.
type Row []string

// UnmarshalJSON implements json.Unmarshaler.
func (r *Row) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var word string
		if err := json.Unmarshal(trimmed, &word); err != nil {
			return err
		}
		*r = Row{word}
		return nil
	}
	var words Sequence[string]
	if err := json.Unmarshal(trimmed, &words); err != nil {
		return err
	}
	*r = Row(words)
	return nil
}

// QueryResult is the payload of query/<text>. The classic flow reads the
// parallel Candidates/Pinyin sequences, the BCI flow reads CiZus.
type QueryResult struct {
	Candidates Sequence[Row] `json:"candidates"`
	// Matched case-insensitively, so both `pinYin` and `pinyin` land here.
	Pinyin Sequence[string] `json:"pinYin"`
	CiZus  Groups           `json:"ciZus"`
}

// SuggestResult is the payload of guess/<word>.
type SuggestResult struct {
	Sentence Sequence[string] `json:"sentence"`
	Suggests Groups           `json:"suggests"`
}

// eachElement walks a JSON array or object, calling fn for every element with
// its key (array index for arrays). null yields no elements.
func eachElement(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch tok {
	case nil:
		return nil
	case json.Delim('['):
		for idx := 0; dec.More(); idx++ {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return err
			}
			if err := fn(fmt.Sprint(idx), raw); err != nil {
				return err
			}
		}
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := keyTok.(string)
			if !ok {
				return fmt.Errorf("unexpected object key %v", keyTok)
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return err
			}
			if err := fn(key, raw); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("expected array or object, got %v", tok)
	}
	_, err = dec.Token()
	return err
}
