// Package source fetches procurement records from upstream feeds and maps
// them onto tender.Opportunity. Each adapter is the only code that knows its
// upstream schema.
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/tender-matcher/internal/tender"
)

const (
	KindOCDS       = "ocds"
	KindTenderInfo = "tenderinfo"
	KindRSS        = "rss"

	defaultWindow = 24 * time.Hour
)

// Source yields one batch per call. Any fetch or parse error fails the whole
// batch.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]*tender.Opportunity, error)
}

type Config struct {
	Kind      string
	UserAgent string
	Timeout   time.Duration
	// Window is used when Start or End are not set.
	Window time.Duration
	Start  time.Time
	End    time.Time

	OCDS       OCDSConfig
	TenderInfo TenderInfoConfig
	RSS        RSSConfig
}

// Range resolves the fetch window relative to now.
func (c Config) Range(now time.Time) (time.Time, time.Time) {
	window := c.Window
	if window <= 0 {
		window = defaultWindow
	}

	end := c.End
	if end.IsZero() {
		end = now
	}
	start := c.Start
	if start.IsZero() {
		start = end.Add(-window)
	}

	return start.UTC(), end.UTC()
}

func New(cfg Config, logger *zap.Logger) (Source, error) {
	client := NewClient(logger, cfg.UserAgent, cfg.Timeout)

	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case KindOCDS, "":
		start, end := cfg.Range(time.Now())
		return NewOCDS(client, cfg.OCDS, start, end), nil
	case KindTenderInfo:
		return NewTenderInfo(client, cfg.TenderInfo)
	case KindRSS:
		return NewRSS(client, cfg.RSS)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// decode converts loosely typed upstream JSON into adapter structs.
func decode(input, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// parseDate returns the zero time for empty or unparseable values.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
