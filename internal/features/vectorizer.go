// Package features turns opportunities into the numeric representation the
// relevance classifier is trained on.
package features

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ErrNotFitted is returned when a vocabulary was never fitted on a corpus.
var ErrNotFitted = errors.New("vectorizer is not fitted")

// VectorizerSpec describes how text is split into terms. Fit is the only way
// to obtain a Vocabulary.
type VectorizerSpec struct {
	NGramMin int
	NGramMax int
}

// DescriptionSpec is used for description text: unigrams and bigrams.
var DescriptionSpec = VectorizerSpec{NGramMin: 1, NGramMax: 2}

// CategorySpec is used for the category and agency text: unigrams.
var CategorySpec = VectorizerSpec{NGramMin: 1, NGramMax: 1}

func (s VectorizerSpec) normalized() VectorizerSpec {
	if s.NGramMin <= 0 {
		s.NGramMin = 1
	}
	if s.NGramMax < s.NGramMin {
		s.NGramMax = s.NGramMin
	}
	return s
}

// Fit learns the vocabulary of corpus. Term indices follow lexical order so
// the same corpus always yields the same columns.
func (s VectorizerSpec) Fit(corpus []string) (*Vocabulary, error) {
	s = s.normalized()

	seen := make(map[string]struct{})
	for _, doc := range corpus {
		for _, term := range s.terms(doc) {
			seen[term] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("fit vocabulary: corpus of %d documents has no terms", len(corpus))
	}

	sorted := make([]string, 0, len(seen))
	for term := range seen {
		sorted = append(sorted, term)
	}
	sort.Strings(sorted)

	index := make(map[string]int, len(sorted))
	for i, term := range sorted {
		index[term] = i
	}

	return &Vocabulary{spec: s, index: index}, nil
}

// terms lower-cases doc, keeps tokens of two or more letters or digits and
// emits the configured n-grams.
func (s VectorizerSpec) terms(doc string) []string {
	tokens := tokenize(doc)

	var terms []string
	for n := s.NGramMin; n <= s.NGramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

func tokenize(doc string) []string {
	fields := strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Vocabulary is a fitted term index. It can only transform text.
type Vocabulary struct {
	spec  VectorizerSpec
	index map[string]int
}

// Len is the number of columns Transform produces.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.index)
}

// Transform counts known terms of doc. Unknown terms are ignored.
func (v *Vocabulary) Transform(doc string) (Vector, error) {
	if v.Len() == 0 {
		return Vector{}, ErrNotFitted
	}

	counts := make(map[int]float64)
	for _, term := range v.spec.terms(doc) {
		if idx, ok := v.index[term]; ok {
			counts[idx]++
		}
	}

	return newVector(counts), nil
}

type vocabularySnapshot struct {
	NGramMin int
	NGramMax int
	Terms    []string
}

// GobEncode stores the terms in column order.
func (v *Vocabulary) GobEncode() ([]byte, error) {
	terms := make([]string, len(v.index))
	for term, idx := range v.index {
		terms[idx] = term
	}

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(vocabularySnapshot{
		NGramMin: v.spec.NGramMin,
		NGramMax: v.spec.NGramMax,
		Terms:    terms,
	})
	return buf.Bytes(), err
}

func (v *Vocabulary) GobDecode(data []byte) error {
	var snap vocabularySnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return err
	}
	if len(snap.Terms) == 0 {
		return ErrNotFitted
	}

	v.spec = VectorizerSpec{NGramMin: snap.NGramMin, NGramMax: snap.NGramMax}.normalized()
	v.index = make(map[string]int, len(snap.Terms))
	for i, term := range snap.Terms {
		v.index[term] = i
	}
	return nil
}
