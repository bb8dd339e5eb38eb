package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/tender"
)

const dateLayout = "2006-01-02"

// PredictionLine is the one-line verdict summary printed for every match.
func PredictionLine(r *match.Result) string {
	model := "n/a"
	if r.Decision.ModelAvailable {
		model = "Not relevant"
		if r.Decision.Model {
			model = "RELEVANT"
		}
	}

	return fmt.Sprintf("Title: %s | AI: %s | Score: %d | FINAL MATCH: %t",
		tender.OrNA(r.Opportunity.Title), model, r.Decision.Score, r.Decision.Final)
}

// WriteConsole prints the detailed human report. labels resolves a matched
// code to its configured category name and may be nil.
func WriteConsole(w io.Writer, ranked []*match.Result, labels func(code string) string) error {
	if len(ranked) == 0 {
		_, err := fmt.Fprintln(w, "No matches found.")
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d opportunities matching your criteria:\n", len(ranked))

	for _, r := range ranked {
		o := r.Opportunity
		b.WriteString("\n" + PredictionLine(r) + "\n")
		fmt.Fprintf(&b, "- Tender Title: %s\n", tender.OrNA(o.Title))
		fmt.Fprintf(&b, "  Procuring Agency: %s\n", tender.OrNA(o.Agency))
		fmt.Fprintf(&b, "  ID: %s\n", tender.OrNA(o.ID))
		if o.Reference != "" {
			fmt.Fprintf(&b, "  Reference: %s\n", o.Reference)
		}
		if o.NoticeType != "" {
			fmt.Fprintf(&b, "  Type: %s\n", o.NoticeType)
		}
		fmt.Fprintf(&b, "  Status: %s\n", o.Status.Display())
		fmt.Fprintf(&b, "  Published: %s\n", formatDate(o.Dates.Published))
		fmt.Fprintf(&b, "  Closing: %s\n", formatDate(o.Dates.Closing))
		fmt.Fprintf(&b, "  Description: %s\n", tender.OrNA(o.Description))
		fmt.Fprintf(&b, "  Value: %s\n", formatAmounts(o.Amounts))
		fmt.Fprintf(&b, "  Award Date: %s\n", formatDate(o.Dates.Awarded))
		fmt.Fprintf(&b, "  URL: %s\n", tender.OrNA(o.Link))

		if kw := Keywords(r.Decision); kw != "" {
			fmt.Fprintf(&b, "  Matched Keywords: %s\n", kw)
		}
		if len(r.Decision.MatchedCodes) > 0 {
			b.WriteString("  Matched Codes:\n")
			for _, code := range r.Decision.MatchedCodes {
				label := ""
				if labels != nil {
					label = labels(code)
				}
				fmt.Fprintf(&b, "        - %s => %s\n", code, tender.OrNA(label))
			}
		}
		if r.Review != nil {
			if r.Review.Error != "" {
				fmt.Fprintf(&b, "  AI Review: failed (%s)\n", r.Review.Error)
			} else {
				fmt.Fprintf(&b, "  AI Review: fit=%t score=%.2f %s\n", r.Review.Fit, r.Review.Score, r.Review.Reason)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return tender.NotAvailable
	}
	return t.Format(dateLayout)
}
