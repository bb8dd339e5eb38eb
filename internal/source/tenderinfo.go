package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/tender-matcher/internal/tender"
)

const (
	defaultTenderInfoType = "New"
	defaultTenderInfoTo   = 100
)

type TenderInfoConfig struct {
	URL          string
	Subscription string
	Origin       string
	From         int
	To           int
	Type         string
}

type TenderInfo struct {
	client *Client
	cfg    TenderInfoConfig
}

func NewTenderInfo(client *Client, cfg TenderInfoConfig) (*TenderInfo, error) {
	if cfg.URL == "" {
		return nil, errors.New("tenderinfo: url is required")
	}
	if cfg.Type == "" {
		cfg.Type = defaultTenderInfoType
	}
	if cfg.To <= cfg.From {
		cfg.To = cfg.From + defaultTenderInfoTo
	}

	return &TenderInfo{client: client, cfg: cfg}, nil
}

func (s *TenderInfo) Name() string { return KindTenderInfo }

type tenderInfoResponse struct {
	IsSuccess bool           `json:"isSuccess"`
	Data      map[string]any `json:"Data"`
}

type tenderInfoRecord struct {
	TenderType     string `mapstructure:"tendertype"`
	CompanyName    string `mapstructure:"companyname"`
	TendersBrief   string `mapstructure:"tendersbrief"`
	ProductName    string `mapstructure:"productname"`
	KeywordName    string `mapstructure:"keywordname"`
	IndustryName   string `mapstructure:"industryname"`
	OriginalSource string `mapstructure:"originalsource"`
	TenderValue    any    `mapstructure:"tendervalue"`
	Currency       string `mapstructure:"currency"`
	ClosingDate    string `mapstructure:"closingdate"`
	PublishedDate  string `mapstructure:"tenderdate"`
}

func (s *TenderInfo) Fetch(ctx context.Context) ([]*tender.Opportunity, error) {
	q := url.Values{}
	if s.cfg.Subscription != "" {
		q.Set("subno", s.cfg.Subscription)
	}

	headers := map[string]string{}
	if s.cfg.Origin != "" {
		headers["Origin"] = s.cfg.Origin
	}

	body := map[string]any{
		"From": s.cfg.From,
		"To":   s.cfg.To,
		"Type": s.cfg.Type,
	}

	var resp tenderInfoResponse
	if err := s.client.postJSON(ctx, s.cfg.URL, q, headers, body, &resp); err != nil {
		return nil, fmt.Errorf("tenderinfo: fetch: %w", err)
	}
	if !resp.IsSuccess {
		return nil, errors.New("tenderinfo: upstream reported failure")
	}

	raw, ok := resp.Data["TENDERS"]
	if !ok {
		s.client.logger.Warn("tenderinfo response carries no tenders")
		return nil, nil
	}

	var records []tenderInfoRecord
	if err := decode(raw, &records); err != nil {
		return nil, fmt.Errorf("tenderinfo: decode tenders: %w", err)
	}

	s.client.logger.Debug("tenderinfo tenders fetched",
		zap.Int("count", len(records)),
		zap.String("range", strconv.Itoa(s.cfg.From)+"-"+strconv.Itoa(s.cfg.To)),
	)

	out := make([]*tender.Opportunity, 0, len(records))
	for _, r := range records {
		out = append(out, r.opportunity())
	}
	return out, nil
}

func (r tenderInfoRecord) opportunity() *tender.Opportunity {
	title := r.TenderType
	if strings.TrimSpace(title) == "" {
		title = r.CompanyName
	}

	var category []string
	for _, part := range []string{r.ProductName, r.KeywordName, r.IndustryName} {
		if p := strings.TrimSpace(part); p != "" {
			category = append(category, p)
		}
	}

	o := &tender.Opportunity{
		ID:          strings.TrimSpace(r.OriginalSource),
		Link:        strings.TrimSpace(r.OriginalSource),
		Title:       title,
		Description: r.TendersBrief,
		Agency:      r.CompanyName,
		Category:    strings.Join(category, " "),
		Status:      tender.StatusOpen,
		Source:      KindTenderInfo,
	}
	if o.ID == "" {
		name := strings.Join([]string{o.Title, o.Agency, o.Description}, "\x00")
		o.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
	}
	if r.TenderValue != nil && r.TenderValue != "" {
		o.Amounts = []tender.Amount{tender.NewAmount(r.TenderValue, r.Currency)}
	}
	o.Dates.Published = parseDate(r.PublishedDate)
	o.Dates.Closing = parseDate(r.ClosingDate)

	return o
}
