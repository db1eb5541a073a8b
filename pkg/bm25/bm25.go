// Package bm25 implements Okapi BM25 ranking over small in-memory corpora.
//
// It backs retrieval when the database has no full-text index: the corpus is
// fitted on every call, so it suits stores of a few thousand documents.
package bm25

import (
	"math"
	"strings"
	"unicode"
)

// Default BM25 parameters
const (
	DefaultK1 = 1.2  // Term frequency saturation
	DefaultB  = 0.75 // Length normalization
)

// Ranker scores documents against a query with Okapi BM25
type Ranker struct {
	k1 float64
	b  float64
}

// New creates a ranker with DefaultK1 and DefaultB
func New() *Ranker {
	return &Ranker{k1: DefaultK1, b: DefaultB}
}

// NewWithParams creates a ranker with custom parameters.
// Non-positive k1 or a b outside [0,1] falls back to the default.
func NewWithParams(k1, b float64) *Ranker {
	r := New()
	if k1 > 0 {
		r.k1 = k1
	}
	if b >= 0 && b <= 1 {
		r.b = b
	}
	return r
}

// Rank returns one score per document, parallel to docs. Larger is more relevant.
func (r *Ranker) Rank(query string, docs []string) []float64 {
	idx := r.Fit(docs)
	return idx.Scores(Tokenize(query))
}

// Fit tokenizes docs and computes the corpus statistics
func (r *Ranker) Fit(docs []string) *Index {
	idx := &Index{
		k1:      r.k1,
		b:       r.b,
		docs:    make([]map[string]int, len(docs)),
		docLen:  make([]float64, len(docs)),
		docFreq: make(map[string]int),
	}

	totalLen := 0.0
	for i, doc := range docs {
		terms := Tokenize(doc)
		tf := make(map[string]int, len(terms))
		for _, t := range terms {
			tf[t]++
		}
		for t := range tf {
			idx.docFreq[t]++
		}
		idx.docs[i] = tf
		idx.docLen[i] = float64(len(terms))
		totalLen += float64(len(terms))
	}
	if len(docs) > 0 {
		idx.avgDocLen = totalLen / float64(len(docs))
	}
	return idx
}

// Index holds term statistics for a fitted corpus
type Index struct {
	k1, b     float64
	docs      []map[string]int
	docLen    []float64
	avgDocLen float64
	docFreq   map[string]int
}

// IDF returns the inverse document frequency of term.
// IDF = log((N - df + 0.5) / (df + 0.5) + 1), which stays positive.
func (idx *Index) IDF(term string) float64 {
	n := float64(len(idx.docs))
	df := float64(idx.docFreq[term])
	return math.Log((n-df+0.5)/(df+0.5) + 1)
}

// Scores computes the BM25 score of every document for the query terms
func (idx *Index) Scores(queryTerms []string) []float64 {
	scores := make([]float64, len(idx.docs))
	if idx.avgDocLen == 0 {
		return scores
	}

	for _, term := range queryTerms {
		if idx.docFreq[term] == 0 {
			continue
		}
		idf := idx.IDF(term)
		for i, tf := range idx.docs {
			freq := float64(tf[term])
			if freq == 0 {
				continue
			}
			norm := idx.k1 * (1 - idx.b + idx.b*idx.docLen[i]/idx.avgDocLen)
			scores[i] += idf * freq * (idx.k1 + 1) / (freq + norm)
		}
	}
	return scores
}

// Tokenize lower-cases text and splits it on anything that is not a letter or digit
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
