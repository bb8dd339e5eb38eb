package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/spigell/tender-matcher/internal/match"
	"github.com/spigell/tender-matcher/internal/report"
	"github.com/spigell/tender-matcher/internal/utils"
)

const (
	DefaultCRMURL        = "https://api.hubspot.com/crm/v3/objects/deals"
	defaultCRMRate       = 5
	defaultCRMTimeout    = 10 * time.Second
	maxErrorBodyLogChars = 300
)

type CRMConfig struct {
	URL           string
	PipelineStage string
	RatePerSecond float64
	Timeout       time.Duration
	UserAgent     string
}

// CRM creates one deal per match. Failures are reported per record and
// never retried here.
type CRM struct {
	cfg     CRMConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewCRM(ctx context.Context, token string, cfg CRMConfig, logger *zap.Logger) *CRM {
	if cfg.URL == "" {
		cfg.URL = DefaultCRMURL
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultCRMRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCRMTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client.Timeout = cfg.Timeout

	return &CRM{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:  logger,
	}
}

func (c *CRM) Name() string { return "crm" }

func (c *CRM) Deliver(ctx context.Context, ranked []*match.Result) ([]string, error) {
	acked := make([]string, 0, len(ranked))
	var errs []error

	for _, r := range ranked {
		if err := c.limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("rate limiter: %w", err))
			break
		}

		if err := c.post(ctx, r); err != nil {
			c.logger.Warn("creating CRM deal failed",
				zap.String("id", r.Key()),
				zap.String("title", r.Opportunity.Title),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", r.Key(), err))
			continue
		}

		c.logger.Info("CRM deal created", zap.String("id", r.Key()), zap.String("title", r.Opportunity.Title))
		acked = append(acked, r.Key())
	}

	return acked, errors.Join(errs...)
}

func (c *CRM) post(ctx context.Context, r *match.Result) error {
	payload, err := json.Marshal(map[string]any{
		"properties": report.DealProperties(r, c.cfg.PipelineStage),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bad status: %s: %s", resp.Status, utils.TruncateForLog(strings.TrimSpace(string(body)), maxErrorBodyLogChars))
	}

	return nil
}
