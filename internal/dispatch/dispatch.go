// Package dispatch hands ranked matches to the sinks and records them in the
// ledger.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/sink"
)

// Recorder is the write side of the processed ledger.
type Recorder interface {
	Record(id string)
	Flush(ctx context.Context) error
}

type Config struct {
	// RequireDelivery records an identifier only once every sink has
	// acknowledged it. Otherwise every match is recorded before delivery.
	RequireDelivery bool
}

// Outcome summarises one dispatch.
type Outcome struct {
	Acked    map[string][]string
	Failures map[string]error
	Recorded []string
}

// Failed reports whether any sink failed for at least one record.
func (o *Outcome) Failed() bool {
	return len(o.Failures) > 0
}

type Dispatcher struct {
	sinks    []sink.Sink
	recorder Recorder
	cfg      Config
	logger   *zap.Logger
}

func New(cfg Config, recorder Recorder, sinks []sink.Sink, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sinks: sinks, recorder: recorder, cfg: cfg, logger: logger}
}

// Dispatch delivers ranked to every sink. Sink failures are reported in the
// outcome and never abort the run; a ledger flush failure does.
func (d *Dispatcher) Dispatch(ctx context.Context, ranked []*match.Result) (*Outcome, error) {
	out := &Outcome{
		Acked:    make(map[string][]string, len(d.sinks)),
		Failures: make(map[string]error),
	}

	if len(ranked) == 0 {
		return out, nil
	}

	if !d.cfg.RequireDelivery {
		recorded, err := d.record(ctx, keys(ranked))
		if err != nil {
			return out, err
		}
		out.Recorded = recorded
	}

	for _, s := range d.sinks {
		acked, err := s.Deliver(ctx, ranked)
		out.Acked[s.Name()] = acked

		if err != nil {
			out.Failures[s.Name()] = err
			d.logger.Warn("sink delivery failed",
				zap.String("sink", s.Name()),
				zap.Int("acked", len(acked)),
				zap.Int("total", len(ranked)),
				zap.Error(err),
			)
			continue
		}

		d.logger.Info("sink delivery done", zap.String("sink", s.Name()), zap.Int("acked", len(acked)))
	}

	if d.cfg.RequireDelivery {
		recorded, err := d.record(ctx, d.ackedByAll(ranked, out.Acked))
		if err != nil {
			return out, err
		}
		out.Recorded = recorded
	}

	return out, nil
}

func (d *Dispatcher) record(ctx context.Context, ids []string) ([]string, error) {
	for _, id := range ids {
		d.recorder.Record(id)
	}

	if err := d.recorder.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush processed ledger: %w", err)
	}

	d.logger.Debug("ledger updated", zap.Int("recorded", len(ids)))
	return ids, nil
}

func (d *Dispatcher) ackedByAll(ranked []*match.Result, acked map[string][]string) []string {
	counts := make(map[string]int)
	for _, s := range d.sinks {
		for _, id := range acked[s.Name()] {
			counts[id]++
		}
	}

	var out []string
	for _, r := range ranked {
		if counts[r.Key()] == len(d.sinks) {
			out = append(out, r.Key())
		}
	}
	return out
}

func keys(ranked []*match.Result) []string {
	out := make([]string, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.Key())
	}
	return out
}
