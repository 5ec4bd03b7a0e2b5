// Package textsim implements a TF-IDF vector space with cosine similarity.
package textsim

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// MinTokenLen is the shortest token kept in the vocabulary.
const MinTokenLen = 2

// Vector is a sparse, L2-normalized TF-IDF vector. Terms are sorted
// ascending and parallel to Weights.
type Vector struct {
	Terms   []int
	Weights []float64
}

// Empty reports whether the vector has no terms.
func (v Vector) Empty() bool { return len(v.Terms) == 0 }

// Vectorizer holds a vocabulary and inverse document frequencies fitted
// on a corpus. It is read-only after Fit and safe for concurrent use.
type Vectorizer struct {
	vocab map[string]int
	idf   []float64
	docs  int
}

// Fit builds a vectorizer from documents given as space-separated
// normalized text. Empty documents are ignored. Term ids are assigned in
// lexical order so a given corpus always yields the same space.
func Fit(docs []string) *Vectorizer {
	df := make(map[string]int)
	n := 0
	for _, doc := range docs {
		terms := uniqueTerms(doc)
		if len(terms) == 0 {
			continue
		}
		n++
		for t := range terms {
			df[t]++
		}
	}

	words := make([]string, 0, len(df))
	for w := range df {
		words = append(words, w)
	}
	sort.Strings(words)

	v := &Vectorizer{
		vocab: make(map[string]int, len(words)),
		idf:   make([]float64, len(words)),
		docs:  n,
	}
	for i, w := range words {
		v.vocab[w] = i
		// Smoothed idf: ln((1+n)/(1+df)) + 1.
		v.idf[i] = math.Log(float64(1+n)/float64(1+df[w])) + 1
	}
	return v
}

// Docs returns the number of non-empty documents the vectorizer was fit on.
func (v *Vectorizer) Docs() int { return v.docs }

// VocabularySize returns the number of distinct terms.
func (v *Vectorizer) VocabularySize() int { return len(v.idf) }

// Term returns the id of a vocabulary term.
func (v *Vectorizer) Term(word string) (int, bool) {
	id, ok := v.vocab[word]
	return id, ok
}

// Transform vectorizes normalized text with the fitted vocabulary.
// Out-of-vocabulary terms are ignored.
func (v *Vectorizer) Transform(text string) Vector {
	tf := make(map[int]float64)
	for _, tok := range tokens(text) {
		if id, ok := v.vocab[tok]; ok {
			tf[id]++
		}
	}
	if len(tf) == 0 {
		return Vector{}
	}

	out := Vector{Terms: make([]int, 0, len(tf)), Weights: make([]float64, 0, len(tf))}
	for id := range tf {
		out.Terms = append(out.Terms, id)
	}
	sort.Ints(out.Terms)

	var norm float64
	for _, id := range out.Terms {
		w := tf[id] * v.idf[id]
		out.Weights = append(out.Weights, w)
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range out.Weights {
		out.Weights[i] /= norm
	}
	return out
}

// Cosine returns the cosine similarity of two normalized vectors, clamped
// to [0,1]. Either vector being empty yields 0.
func Cosine(a, b Vector) float64 {
	var dot float64
	i, j := 0, 0
	for i < len(a.Terms) && j < len(b.Terms) {
		switch {
		case a.Terms[i] == b.Terms[j]:
			dot += a.Weights[i] * b.Weights[j]
			i++
			j++
		case a.Terms[i] < b.Terms[j]:
			i++
		default:
			j++
		}
	}
	switch {
	case dot < 0:
		return 0
	case dot > 1:
		return 1
	}
	return dot
}

func tokens(text string) []string {
	fields := strings.Fields(text)
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= MinTokenLen {
			out = append(out, f)
		}
	}
	return out
}

func uniqueTerms(text string) map[string]struct{} {
	toks := tokens(text)
	if len(toks) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		m[t] = struct{}{}
	}
	return m
}
