// Package search provides a small, deterministic, concurrency-safe in-memory
// keyword index over report text. It has no dependencies and no logging;
// callers decide what to index and when.
//
//   - Unicode-aware tokenization with optional stop-word removal
//   - Functional options (WithMinRunes, WithStopwords, WithMaxDocs)
//   - Documents can be added, replaced and removed while readers search
//   - Deterministic scoring and ordering (stable for ties)
//
// Scoring uses Jaccard similarity between the query token set and each
// document's token set: score = |Q ∩ D| / |Q ∪ D|.
package search

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// Document is one searchable report. Group scopes searches (a department id);
// zero means ungrouped.
type Document struct {
	ID    uint
	Group uint
	Text  string
}

// Result is a ranked hit with its similarity score.
type Result struct {
	ID      uint
	Snippet string
	Score   float64
}

// Index is the interface implemented by report indices.
type Index interface {
	// Upsert adds d or replaces the document with the same ID. It reports
	// whether the document was kept (too short or token-less text is not).
	Upsert(d Document) bool
	// Remove drops the document with id, if present.
	Remove(id uint)
	// TopK returns up to k best matches. group 0 searches every document.
	TopK(query string, k int, group uint) []Result
	// Len reports the number of indexed documents.
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minRunes  int
	stopwords map[string]struct{}
	maxDocs   int
}

func defaultConfig() config {
	return config{
		minRunes:  3,
		stopwords: nil,
		maxDocs:   0,
	}
}

// WithMinRunes skips documents shorter than n runes after whitespace
// normalization. Negative values are ignored.
func WithMinRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minRunes = n
		}
	}
}

func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMaxDocs caps the index size; once full, the least recently upserted
// document is evicted.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	id     uint
	group  uint
	text   string
	tokens map[string]struct{}
	tLen   int
	seq    uint64
}

type index struct {
	cfg config

	mu   sync.RWMutex
	docs map[uint]*doc
	seq  uint64
}

// New returns an empty Index.
func New(opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &index{cfg: cfg, docs: make(map[uint]*doc)}
}

// NewFromDocuments builds an Index and upserts docs in order.
func NewFromDocuments(docs []Document, opts ...Option) Index {
	idx := New(opts...)
	for _, d := range docs {
		idx.Upsert(d)
	}
	return idx
}

func (i *index) Upsert(d Document) bool {
	t := strings.TrimSpace(normalizeWhitespace(d.Text))
	if t == "" || (i.cfg.minRunes > 0 && utf8.RuneCountInString(t) < i.cfg.minRunes) {
		i.Remove(d.ID)
		return false
	}
	toks := tokenize(t, i.cfg.stopwords)
	if len(toks) == 0 {
		i.Remove(d.ID)
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.seq++
	i.docs[d.ID] = &doc{id: d.ID, group: d.Group, text: t, tokens: toks, tLen: len(toks), seq: i.seq}
	if i.cfg.maxDocs > 0 && len(i.docs) > i.cfg.maxDocs {
		i.evictOldestLocked()
	}
	return true
}

func (i *index) evictOldestLocked() {
	var (
		oldest uint
		minSeq uint64
		found  bool
	)
	for id, d := range i.docs {
		if !found || d.seq < minSeq {
			oldest, minSeq, found = id, d.seq, true
		}
	}
	if found {
		delete(i.docs, oldest)
	}
}

func (i *index) Remove(id uint) {
	i.mu.Lock()
	delete(i.docs, id)
	i.mu.Unlock()
}

func (i *index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.docs)
}

// TopK returns up to k best-matching documents by Jaccard similarity.
func (i *index) TopK(q string, k int, group uint) []Result {
	if strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	type scored struct {
		id       uint
		snippet  string
		score    float64
		lenRunes int
	}

	i.mu.RLock()
	buf := make([]scored, 0, min(k*4, len(i.docs)))
	for _, d := range i.docs {
		if group != 0 && d.group != group {
			continue
		}
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + d.tLen - over)
		if union <= 0 {
			continue
		}
		buf = append(buf, scored{
			id:       d.id,
			snippet:  d.text,
			score:    float64(over) / union,
			lenRunes: utf8.RuneCountInString(d.text),
		})
	}
	i.mu.RUnlock()

	if len(buf) == 0 {
		return nil
	}

	sort.Slice(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].lenRunes != buf[b].lenRunes {
			return buf[a].lenRunes < buf[b].lenRunes
		}
		return buf[a].id < buf[b].id
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for n := 0; n < k; n++ {
		out[n] = Result{ID: buf[n].id, Snippet: buf[n].snippet, Score: buf[n].score}
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	s = strings.ToLower(s)
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
