// Package ledger remembers which opportunities were already processed so a
// later run never reports them again. The set only grows.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("ledger is closed")

// Store is the durable side of the ledger.
type Store interface {
	// Load returns every identifier recorded so far. A store that was never
	// written to returns an empty slice.
	Load(ctx context.Context) ([]string, error)
	// Append durably adds ids. Ids already present must not be duplicated.
	Append(ctx context.Context, ids []string) error
	Close() error
}

// Ledger is the in-memory view of a Store plus the ids recorded in this run
// and not yet flushed. It is not safe for concurrent runs against one store.
type Ledger struct {
	store   Store
	seen    map[string]struct{}
	pending []string
	closed  bool
	logger  *zap.Logger
}

// Open loads all known identifiers from store.
func Open(ctx context.Context, store Store, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ids, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	l := &Ledger{
		store:  store,
		seen:   make(map[string]struct{}, len(ids)),
		logger: logger,
	}
	for _, id := range ids {
		if id = normalize(id); id != "" {
			l.seen[id] = struct{}{}
		}
	}

	logger.Debug("ledger loaded", zap.Int("known", len(l.seen)))

	return l, nil
}

// IsNew reports whether id was never recorded.
func (l *Ledger) IsNew(id string) bool {
	_, ok := l.seen[normalize(id)]
	return !ok
}

// Record marks id as seen. Repeated calls are no-ops. The id is durable only
// after Flush.
func (l *Ledger) Record(id string) {
	id = normalize(id)
	if id == "" {
		return
	}
	if _, ok := l.seen[id]; ok {
		return
	}

	l.seen[id] = struct{}{}
	l.pending = append(l.pending, id)
}

// Flush appends pending ids to the store. On failure the ids stay pending
// and the error must fail the run.
func (l *Ledger) Flush(ctx context.Context) error {
	if l.closed {
		return ErrClosed
	}
	if len(l.pending) == 0 {
		return nil
	}

	if err := l.store.Append(ctx, l.pending); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}

	l.logger.Info("ledger updated", zap.Int("recorded", len(l.pending)), zap.Int("known", len(l.seen)))
	l.pending = nil

	return nil
}

// Len is the number of known ids, flushed or not.
func (l *Ledger) Len() int {
	return len(l.seen)
}

// Pending is the number of ids waiting for Flush.
func (l *Ledger) Pending() int {
	return len(l.pending)
}

func (l *Ledger) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	if len(l.pending) > 0 {
		l.logger.Warn("ledger closed with unflushed ids", zap.Int("pending", len(l.pending)))
	}
	return l.store.Close()
}

// lineBreaks are dropped from ids since every store keeps one id per line.
var lineBreaks = strings.NewReplacer("\r", "", "\n", "")

func normalize(id string) string {
	return lineBreaks.Replace(strings.TrimSpace(id))
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// OpenStore builds the store for a configured backend. An empty backend
// means the plain file store.
func OpenStore(ctx context.Context, backend, path string) (Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is empty")
	}

	switch strings.ToLower(backend) {
	case "", BackendFile:
		return NewFileStore(path), nil
	case BackendSQLite:
		store, err := NewSQLiteStore(ctx, path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}
