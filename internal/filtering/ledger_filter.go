package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/tender-matcher/internal/match"
)

// Seen is the read side of the processed-identifier ledger.
type Seen interface {
	IsNew(id string) bool
	Len() int
}

type ledgerFilter struct {
	seen   Seen
	logger *zap.Logger
}

// NewLedger creates a filter that removes opportunities processed by an earlier run.
func NewLedger(seen Seen, logger *zap.Logger) Filter {
	return &ledgerFilter{seen: seen, logger: logger}
}

func (f *ledgerFilter) Name() string { return "ledger" }

// The ledger step cannot be disabled: a seen tender must never match again.
func (f *ledgerFilter) Disable(string) {}

func (f *ledgerFilter) IsEnabled() bool { return true }

func (f *ledgerFilter) Validate() error {
	if f.seen == nil {
		return fmt.Errorf("ledger is required")
	}
	if f.logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

func (f *ledgerFilter) Apply(_ context.Context, r *match.Results) (*match.Results, Step, error) {
	initial := r.Len()

	excluded := r.Retain(func(item *match.Result) bool {
		return f.seen.IsNew(item.Key())
	})
	if len(excluded) > 0 {
		f.logger.Info("excluding already processed opportunities",
			zap.Strings("excluded", excluded),
			zap.Int("left", r.Len()),
		)
	}

	return r, Step{Initial: initial, Dropped: len(excluded), Left: r.Len()}, nil
}

func (f *ledgerFilter) Status() Status {
	details := map[string]string{}
	if f.seen != nil {
		details["known"] = strconv.Itoa(f.seen.Len())
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
