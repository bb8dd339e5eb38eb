package features

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/tender"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"drone", "inspection", "of", "powerline", "2024"}, tokenize("Drone-inspection of a powerline, 2024!"))
	assert.Empty(t, tokenize("a b c"))
}

func TestVectorizerSpecTerms(t *testing.T) {
	terms := DescriptionSpec.terms("drone video analytics")
	assert.Equal(t, []string{"drone", "video", "analytics", "drone video", "video analytics"}, terms)

	assert.Equal(t, []string{"drone", "video"}, CategorySpec.terms("Drone video"))
}

func TestFitIsLexicallyOrdered(t *testing.T) {
	vocab, err := CategorySpec.Fit([]string{"zeta alpha", "mid alpha"})
	require.NoError(t, err)

	assert.Equal(t, 3, vocab.Len())
	assert.Equal(t, 0, vocab.index["alpha"])
	assert.Equal(t, 1, vocab.index["mid"])
	assert.Equal(t, 2, vocab.index["zeta"])
}

func TestFitEmptyCorpus(t *testing.T) {
	_, err := CategorySpec.Fit([]string{"", "a"})
	assert.Error(t, err)
}

func TestTransformCounts(t *testing.T) {
	vocab, err := DescriptionSpec.Fit([]string{"drone video", "office furniture"})
	require.NoError(t, err)

	v, err := vocab.Transform("drone drone video unknown")
	require.NoError(t, err)

	dense := v.Dense(vocab.Len())
	assert.Equal(t, 2.0, dense[vocab.index["drone"]])
	assert.Equal(t, 1.0, dense[vocab.index["video"]])
	assert.Equal(t, 1.0, dense[vocab.index["drone video"]])
	assert.Equal(t, 0.0, dense[vocab.index["office"]])
}

func TestTransformUnfitted(t *testing.T) {
	var vocab *Vocabulary
	_, err := vocab.Transform("anything")
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = (&Vocabulary{}).Transform("anything")
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestVocabularyGobRoundTrip(t *testing.T) {
	vocab, err := DescriptionSpec.Fit([]string{"drone video analytics", "road inspection"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(vocab))

	var decoded Vocabulary
	require.NoError(t, gob.NewDecoder(&buf).Decode(&decoded))

	assert.Equal(t, vocab.index, decoded.index)
	assert.Equal(t, vocab.spec, decoded.spec)
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()

	desc, err := DescriptionSpec.Fit([]string{"drone inspection services", "office furniture supply"})
	require.NoError(t, err)
	cat, err := CategorySpec.Fit([]string{"aerial services council", "furniture department"})
	require.NoError(t, err)

	scorer := match.NewKeywordScorer([]match.Keyword{{Keyword: "drone", Weight: 5}, {Keyword: "inspection", Weight: 5}}, 0)
	return NewExtractor(desc, cat, scorer)
}

func TestExtractorLayout(t *testing.T) {
	e := newTestExtractor(t)
	opp := &tender.Opportunity{Title: "Drone work", Description: "drone inspection services", Category: "aerial", Agency: "council"}

	m, err := e.Transform([]*tender.Opportunity{opp})
	require.NoError(t, err)
	require.Len(t, m.Rows, 1)

	assert.Equal(t, e.description.Len()+e.category.Len()+1, m.Cols)

	dense := m.Rows[0].Dense(m.Cols)
	assert.Equal(t, 1.0, dense[e.description.index["drone inspection"]])
	assert.Equal(t, 1.0, dense[e.description.Len()+e.category.index["aerial"]])
	assert.Equal(t, 1.0, dense[e.description.Len()+e.category.index["council"]])
	assert.Equal(t, 10.0, dense[m.Cols-1])
}

func TestExtractorIsRepeatable(t *testing.T) {
	e := newTestExtractor(t)
	batch := []*tender.Opportunity{
		{Title: "Drone", Description: "drone inspection services", Category: "aerial", Agency: "council"},
		{Title: "Chairs", Description: "office furniture supply", Agency: "department"},
	}

	first, err := e.Transform(batch)
	require.NoError(t, err)
	second, err := e.Transform(batch)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtractorRequiresFittedVocabularies(t *testing.T) {
	scorer := match.NewKeywordScorer(nil, 0)
	fitted, err := CategorySpec.Fit([]string{"alpha"})
	require.NoError(t, err)

	_, err = NewExtractor(nil, fitted, scorer).Transform([]*tender.Opportunity{{}})
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = NewExtractor(fitted, &Vocabulary{}, scorer).Transform([]*tender.Opportunity{{}})
	assert.ErrorIs(t, err, ErrNotFitted)
}
