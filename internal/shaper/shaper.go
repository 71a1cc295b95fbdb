// Package shaper turns lookup payloads into bounded display lists. Every
// function returns a deterministic prefix of the input's traversal order.
package shaper

import (
	"regexp"

	"github.com/csheth/tapwrite/internal/backend"
)

// Pair is a candidate word with the pinyin it was looked up under.
type Pair struct {
	Display string
	Pinyin  string
}

// MarkupTag matches one opening, closing or empty tag. The first group is
// "/" for closing tags.
var MarkupTag = regexp.MustCompile(`<(/?)[^>]*>`)

// collector accepts items until limit is reached and silently refuses the rest.
type collector[T any] struct {
	limit int
	items []T
}

func newCollector[T any](limit int) *collector[T] {
	if limit < 0 {
		limit = 0
	}
	return &collector[T]{limit: limit, items: make([]T, 0, min(limit, 16))}
}

func (c *collector[T]) full() bool {
	return len(c.items) >= c.limit
}

// add reports whether there is room for more after v was considered.
func (c *collector[T]) add(v T) bool {
	if c.full() {
		return false
	}
	c.items = append(c.items, v)
	return !c.full()
}

// Flatten ravels keyed groups into one list: groups in key order, words in
// their original order, stopping once limit words were collected.
func Flatten(groups backend.Groups, limit int) []string {
	out := newCollector[string](limit)
	if out.full() {
		return out.items
	}
	for _, group := range groups {
		for _, word := range group.Words {
			if !out.add(word) {
				return out.items
			}
		}
	}
	return out.items
}

// FlattenFlat truncates an already flat list to limit entries.
func FlattenFlat(list []string, limit int) []string {
	out := newCollector[string](limit)
	if out.full() {
		return out.items
	}
	for _, item := range list {
		if !out.add(item) {
			break
		}
	}
	return out.items
}

// PairCandidates zips candidates with their pinyin by index. A row holding
// several words pairs each of them with the row's pinyin. Rows without a
// matching pinyin entry pair with "".
func PairCandidates(result backend.QueryResult, limit int) []Pair {
	out := newCollector[Pair](limit)
	if out.full() {
		return out.items
	}
	for idx, row := range result.Candidates {
		pinyin := ""
		if idx < len(result.Pinyin) {
			pinyin = result.Pinyin[idx]
		}
		for _, word := range row {
			if !out.add(Pair{Display: word, Pinyin: pinyin}) {
				return out.items
			}
		}
	}
	return out.items
}

// StripMarkup removes every <tag> from s.
func StripMarkup(s string) string {
	return MarkupTag.ReplaceAllString(s, "")
}

// Dedup keeps the first occurrence of every entry.
func Dedup(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, item := range list {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
