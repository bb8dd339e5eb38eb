// Package report ranks matches and renders them for the sinks. It never
// filters.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/tender"
)

const (
	// DefaultPipelineStage is the deal stage new CRM records are created in.
	DefaultPipelineStage = "appointmentscheduled"
	digestSeparator      = "===================="
)

// Rank orders results by keyword score, highest first. Equal scores keep
// discovery order, so the same batch always ranks the same way.
func Rank(results []*match.Result) []*match.Result {
	ranked := make([]*match.Result, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Decision.Score != ranked[j].Decision.Score {
			return ranked[i].Decision.Score > ranked[j].Decision.Score
		}
		return ranked[i].Index < ranked[j].Index
	})

	return ranked
}

// Keywords renders matched keywords as "kw (xW)" in declared order.
func Keywords(d match.Decision) string {
	hits := make([]string, 0, len(d.MatchedKeywords))
	for _, h := range d.MatchedKeywords {
		hits = append(hits, h.String())
	}
	return strings.Join(hits, ", ")
}

// DealProperties is the CRM record for one match.
func DealProperties(r *match.Result, stage string) map[string]string {
	if stage == "" {
		stage = DefaultPipelineStage
	}

	o := r.Opportunity
	return map[string]string{
		"dealname":           tender.OrNA(o.Title),
		"dealstage":          stage,
		"ml_recommendation":  titleBool(r.Decision.Model),
		"tender_description": tender.OrNA(o.Description),
		"keyword_score":      strconv.Itoa(r.Decision.Score),
		"agency":             tender.OrNA(o.Agency),
	}
}

// titleBool keeps the "True"/"False" spelling existing CRM filters match on.
func titleBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// Digest is the single notification message of a run.
type Digest struct {
	Subject string
	Body    string
}

// BuildDigest renders ranked results into one plain-text message.
func BuildDigest(ranked []*match.Result) Digest {
	var b strings.Builder
	for _, r := range ranked {
		o := r.Opportunity
		fmt.Fprintf(&b, "Title: %s\n", tender.OrNA(o.Title))
		fmt.Fprintf(&b, "Link: %s\n", tender.OrNA(o.Link))
		fmt.Fprintf(&b, "Description: %s\n", tender.OrNA(o.Description))
		fmt.Fprintf(&b, "Keywords: %s\n", tender.OrNA(Keywords(r.Decision)))
		fmt.Fprintf(&b, "score: %d\n", r.Decision.Score)
		b.WriteString(digestSeparator + "\n")
	}

	return Digest{
		Subject: fmt.Sprintf("New Tender Opportunities (%d)", len(ranked)),
		Body:    b.String(),
	}
}

// ByAgency groups matches by issuing agency for the interactive report.
func ByAgency(results []*match.Result) map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, r := range results {
		o := r.Opportunity
		key := tender.OrNA(o.Agency)
		report[key] = append(report[key], map[string]string{
			"title":  tender.OrNA(o.Title),
			"link":   tender.OrNA(o.Link),
			"status": o.Status.Display(),
			"value":  formatAmounts(o.Amounts),
			"score":  strconv.Itoa(r.Decision.Score),
		})
	}
	return report
}

func formatAmounts(amounts []tender.Amount) string {
	var out []string
	for _, a := range amounts {
		if a.Valid {
			out = append(out, a.String())
		}
	}
	if len(out) == 0 {
		return tender.NotAvailable
	}
	return strings.Join(out, ", ")
}
