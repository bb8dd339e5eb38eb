package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spigell/tender-matcher/internal/features"
	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/model"
	"github.com/spigell/tender-matcher/internal/source"
)

var configDateLayouts = []string{time.RFC3339, "2006-01-02"}

// normalize fills the sections the config file left out so callers never
// deal with nil sections.
func (c *Config) normalize() {
	if c.Source == nil {
		c.Source = &SourceConfig{}
	}
	if c.Source.OCDS == nil {
		c.Source.OCDS = &OCDSConfig{}
	}
	if c.Source.TenderInfo == nil {
		c.Source.TenderInfo = &TenderInfoConfig{}
	}
	if c.Source.RSS == nil {
		c.Source.RSS = &RSSConfig{}
	}
	if c.Filters == nil {
		c.Filters = &FiltersConfig{}
	}
	if c.Ledger == nil {
		c.Ledger = &LedgerConfig{}
	}
	if c.Model == nil {
		c.Model = &ModelConfig{}
	}
	if c.Training == nil {
		c.Training = &TrainingConfig{}
	}
	if c.Sinks == nil {
		c.Sinks = &SinksConfig{}
	}
	if c.Sinks.CRM == nil {
		c.Sinks.CRM = &CRMConfig{}
	}
	if c.Sinks.Email == nil {
		c.Sinks.Email = &EmailConfig{}
	}
	if c.AI == nil {
		c.AI = &AIConfig{}
	}
}

func (c *FiltersConfig) matchConfig() (match.FilterConfig, error) {
	cfg := match.FilterConfig{
		TaxonomyScheme:      c.TaxonomyScheme,
		TaxonomyPrefixes:    c.TaxonomyPrefixes,
		TaxonomyLabels:      c.TaxonomyLabels,
		Keywords:            c.Keywords,
		KeywordMinScore:     c.KeywordMinScore,
		EscalationThreshold: match.DefaultEscalationThreshold,
	}
	if cfg.TaxonomyScheme == "" {
		cfg.TaxonomyScheme = match.DefaultTaxonomyScheme
	}
	if c.EscalationThreshold != nil {
		cfg.EscalationThreshold = *c.EscalationThreshold
	}

	if raw := strings.TrimSpace(c.MinAmount); raw != "" {
		amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
		if err != nil {
			return cfg, fmt.Errorf("filters.min-amount: %w", err)
		}
		cfg.MinAmount = &amount
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("filters: %w", err)
	}

	return cfg, nil
}

func (c *SourceConfig) sourceConfig() (source.Config, error) {
	cfg := source.Config{
		Kind:      c.Kind,
		UserAgent: c.UserAgent,
		Timeout:   c.Timeout,
		Window:    c.Window,
		OCDS: source.OCDSConfig{
			BaseURL:      c.OCDS.BaseURL,
			Endpoint:     c.OCDS.Endpoint,
			LinkTemplate: c.OCDS.LinkTemplate,
		},
		TenderInfo: source.TenderInfoConfig{
			URL:          c.TenderInfo.URL,
			Subscription: c.TenderInfo.Subscription,
			Origin:       c.TenderInfo.Origin,
			From:         c.TenderInfo.From,
			To:           c.TenderInfo.To,
			Type:         c.TenderInfo.Type,
		},
		RSS: source.RSSConfig{
			URLs:        c.RSS.URLs,
			FollowLinks: c.RSS.FollowLinks,
		},
	}

	var err error
	if cfg.Start, err = parseConfigDate("source.start-date", c.StartDate); err != nil {
		return cfg, err
	}
	if cfg.End, err = parseConfigDate("source.end-date", c.EndDate); err != nil {
		return cfg, err
	}
	if !cfg.Start.IsZero() && !cfg.End.IsZero() && !cfg.Start.Before(cfg.End) {
		return cfg, errors.New("source.start-date must be before source.end-date")
	}

	return cfg, nil
}

func parseConfigDate(key, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range configDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: cannot parse %q as a date", key, raw)
}

func (c *TrainingConfig) trainerConfig() model.TrainerConfig {
	cfg := model.DefaultTrainerConfig()
	if c.DescriptionNGrams > 0 {
		cfg.Description = features.VectorizerSpec{NGramMin: 1, NGramMax: c.DescriptionNGrams}
	}
	if c.CategoryNGrams > 0 {
		cfg.Category = features.VectorizerSpec{NGramMin: 1, NGramMax: c.CategoryNGrams}
	}
	if c.Epochs > 0 {
		cfg.Epochs = c.Epochs
	}
	if c.LearningRate > 0 {
		cfg.LearningRate = c.LearningRate
	}
	if c.L2 != nil && *c.L2 >= 0 {
		cfg.L2 = *c.L2
	}
	return cfg
}
