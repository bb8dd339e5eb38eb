// Package sink delivers ranked matches to their destinations.
package sink

import (
	"context"
	"io"

	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/report"
)

// Sink delivers one run's ranked matches. It returns the keys of the
// results the destination acknowledged; a partial failure returns both the
// acknowledged keys and an error describing the rest.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ranked []*match.Result) ([]string, error)
}

func keys(results []*match.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Key())
	}
	return out
}

// Console prints the human report.
type Console struct {
	w      io.Writer
	labels func(code string) string
}

func NewConsole(w io.Writer, labels func(code string) string) *Console {
	return &Console{w: w, labels: labels}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Deliver(_ context.Context, ranked []*match.Result) ([]string, error) {
	if err := report.WriteConsole(c.w, ranked, c.labels); err != nil {
		return nil, err
	}
	return keys(ranked), nil
}
