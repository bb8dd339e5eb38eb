package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/tender"
)

func result(index, score int, title string) *match.Result {
	return &match.Result{
		Index:       index,
		Opportunity: &tender.Opportunity{ID: title, Title: title, Link: "https://example.org/" + title},
		Decision:    match.Decision{Score: score, Final: true},
	}
}

func TestRankByScoreThenDiscovery(t *testing.T) {
	in := []*match.Result{
		result(0, 3, "a"),
		result(1, 10, "b"),
		result(2, 3, "c"),
		result(3, 7, "d"),
	}

	ranked := Rank(in)

	titles := make([]string, 0, len(ranked))
	for _, r := range ranked {
		titles = append(titles, r.Opportunity.Title)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, titles)
	assert.Equal(t, "a", in[0].Opportunity.Title, "input must not be reordered")
}

func TestRankIsDeterministic(t *testing.T) {
	in := []*match.Result{result(0, 1, "x"), result(1, 1, "y"), result(2, 5, "z"), result(3, 1, "w")}

	first := BuildDigest(Rank(in))
	second := BuildDigest(Rank([]*match.Result{in[3], in[1], in[2], in[0]}))

	assert.Equal(t, first, second)
}

func TestDealProperties(t *testing.T) {
	r := &match.Result{
		Opportunity: &tender.Opportunity{Title: "Drone survey"},
		Decision:    match.Decision{Score: 14, Model: true, ModelAvailable: true},
	}

	props := DealProperties(r, "")
	assert.Equal(t, map[string]string{
		"dealname":           "Drone survey",
		"dealstage":          DefaultPipelineStage,
		"ml_recommendation":  "True",
		"tender_description": "N/A",
		"keyword_score":      "14",
		"agency":             "N/A",
	}, props)

	assert.Equal(t, "qualifiedtobuy", DealProperties(r, "qualifiedtobuy")["dealstage"])
}

func TestBuildDigest(t *testing.T) {
	r := result(0, 10, "Powerline")
	r.Opportunity.Description = "Drone inspection of powerlines"
	r.Decision.MatchedKeywords = []match.KeywordHit{{Keyword: "drone", Weight: 5}, {Keyword: "inspection", Weight: 5}}

	d := BuildDigest([]*match.Result{r})

	assert.Equal(t, "New Tender Opportunities (1)", d.Subject)
	assert.Equal(t, strings.Join([]string{
		"Title: Powerline",
		"Link: https://example.org/Powerline",
		"Description: Drone inspection of powerlines",
		"Keywords: drone (x5), inspection (x5)",
		"score: 10",
		"====================",
		"",
	}, "\n"), d.Body)
}

func TestByAgency(t *testing.T) {
	a := result(0, 1, "a")
	a.Opportunity.Agency = "Council"
	a.Opportunity.Amounts = []tender.Amount{tender.NewAmount("1,200", "AUD"), tender.NewAmount("bad", "")}
	b := result(1, 2, "b")

	report := ByAgency([]*match.Result{a, b})

	require.Len(t, report["Council"], 1)
	assert.Equal(t, "1200.00 AUD", report["Council"][0]["value"])
	require.Len(t, report["N/A"], 1)
	assert.Equal(t, "N/A", report["N/A"][0]["value"])
}

func TestPredictionLine(t *testing.T) {
	r := result(0, 6, "Drone")
	assert.Equal(t, "Title: Drone | AI: n/a | Score: 6 | FINAL MATCH: true", PredictionLine(r))

	r.Decision.ModelAvailable = true
	assert.Contains(t, PredictionLine(r), "AI: Not relevant")
	r.Decision.Model = true
	assert.Contains(t, PredictionLine(r), "AI: RELEVANT")
}

func TestWriteConsole(t *testing.T) {
	r := result(0, 5, "Mapping")
	r.Opportunity.Status = tender.StatusAwarded
	r.Opportunity.Dates.Closing = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	r.Decision.MatchedCodes = []string{"81112500", "43210000"}
	r.Review = &match.Review{Fit: true, Score: 0.8, Reason: "core work"}

	var buf bytes.Buffer
	require.NoError(t, WriteConsole(&buf, []*match.Result{r}, func(code string) string {
		if strings.HasPrefix(code, "8111") {
			return "Computer services"
		}
		return ""
	}))

	out := buf.String()
	assert.Contains(t, out, "Found 1 opportunities matching your criteria:")
	assert.Contains(t, out, "Status: Awarded")
	assert.Contains(t, out, "Closing: 2025-03-01")
	assert.Contains(t, out, "Published: N/A")
	assert.Contains(t, out, "- 81112500 => Computer services")
	assert.Contains(t, out, "- 43210000 => N/A")
	assert.Contains(t, out, "AI Review: fit=true score=0.80 core work")

	buf.Reset()
	require.NoError(t, WriteConsole(&buf, nil, nil))
	assert.Equal(t, "No matches found.\n", buf.String())
}
