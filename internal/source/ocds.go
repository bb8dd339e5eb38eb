package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/tender-matcher/internal/tender"
)

const (
	defaultOCDSBaseURL      = "https://api.tenders.gov.au/ocds"
	defaultOCDSEndpoint     = "findByDates/contractPublished"
	defaultOCDSLinkTemplate = "https://www.tenders.gov.au/Atm/Show/{id}"
	// Guards against an upstream that keeps returning a next link.
	maxOCDSPages = 500
)

type OCDSConfig struct {
	BaseURL  string
	Endpoint string
	// LinkTemplate builds the human link; {id} is replaced by the release id.
	LinkTemplate string
}

type OCDS struct {
	client *Client
	cfg    OCDSConfig
	start  time.Time
	end    time.Time
}

func NewOCDS(client *Client, cfg OCDSConfig, start, end time.Time) *OCDS {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOCDSBaseURL
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultOCDSEndpoint
	}
	if cfg.LinkTemplate == "" {
		cfg.LinkTemplate = defaultOCDSLinkTemplate
	}

	return &OCDS{client: client, cfg: cfg, start: start, end: end}
}

func (s *OCDS) Name() string { return KindOCDS }

type ocdsPage struct {
	Releases []ocdsRelease
	Links    struct {
		Next string
	}
}

type ocdsRelease struct {
	OCID   string
	ID     string
	Date   string
	Buyer  struct{ Name string }
	Tender struct {
		Title         string
		Description   string
		Status        string
		DatePublished string
		TenderPeriod  struct{ EndDate string }
		Items         []ocdsItem
		Value         ocdsValue
	}
	Contracts []struct {
		Description string
		DateSigned  string
		Value       ocdsValue
		Items       []ocdsItem
	}
	Awards []struct {
		Date  string
		Value ocdsValue
	}
}

type ocdsItem struct {
	Description    string
	Classification struct {
		Scheme      string
		ID          string
		Description string
	}
}

type ocdsValue struct {
	Amount   any
	Currency string
}

func (s *OCDS) Fetch(ctx context.Context) ([]*tender.Opportunity, error) {
	next := fmt.Sprintf("%s/%s/%s/%s",
		strings.TrimRight(s.cfg.BaseURL, "/"),
		strings.Trim(s.cfg.Endpoint, "/"),
		s.start.Format(time.RFC3339),
		s.end.Format(time.RFC3339),
	)

	var out []*tender.Opportunity
	visited := make(map[string]struct{})

	for next != "" {
		if _, ok := visited[next]; ok {
			break
		}
		if len(visited) >= maxOCDSPages {
			return nil, fmt.Errorf("ocds: more than %d pages", maxOCDSPages)
		}
		visited[next] = struct{}{}

		var raw map[string]any
		if err := s.client.getJSON(ctx, next, nil, &raw); err != nil {
			return nil, fmt.Errorf("ocds: fetch %s: %w", next, err)
		}

		var page ocdsPage
		if err := decode(raw, &page); err != nil {
			return nil, fmt.Errorf("ocds: decode page: %w", err)
		}

		for i := range page.Releases {
			out = append(out, s.opportunity(&page.Releases[i]))
		}

		s.client.logger.Debug("ocds page fetched",
			zap.Int("releases", len(page.Releases)),
			zap.Bool("has next", page.Links.Next != ""),
		)
		next = page.Links.Next
	}

	return out, nil
}

func (s *OCDS) opportunity(r *ocdsRelease) *tender.Opportunity {
	o := &tender.Opportunity{
		ID:          r.OCID,
		Title:       r.Tender.Title,
		Description: r.Tender.Description,
		Agency:      r.Buyer.Name,
		Status:      ocdsStatus(r.Tender.Status),
		Source:      KindOCDS,
	}
	if o.ID == "" {
		o.ID = r.ID
	}
	if r.ID != "" {
		o.Link = strings.ReplaceAll(s.cfg.LinkTemplate, "{id}", r.ID)
	}

	if r.Tender.Value.Amount != nil {
		o.Amounts = append(o.Amounts, tender.NewAmount(r.Tender.Value.Amount, r.Tender.Value.Currency))
	}

	items := append([]ocdsItem{}, r.Tender.Items...)
	var descriptions []string
	for _, c := range r.Contracts {
		items = append(items, c.Items...)
		if d := strings.TrimSpace(c.Description); d != "" {
			descriptions = append(descriptions, d)
		}
		if c.Value.Amount != nil {
			o.Amounts = append(o.Amounts, tender.NewAmount(c.Value.Amount, c.Value.Currency))
		}
	}
	for _, a := range r.Awards {
		if a.Value.Amount != nil {
			o.Amounts = append(o.Amounts, tender.NewAmount(a.Value.Amount, a.Value.Currency))
		}
	}

	if strings.TrimSpace(o.Description) == "" {
		o.Description = strings.Join(descriptions, " ")
	}

	for _, item := range items {
		cl := item.Classification
		if cl.ID == "" {
			continue
		}
		if o.Category == "" {
			o.Category = cl.Description
		}
		o.Classifications = append(o.Classifications, tender.Classification{
			Scheme:      cl.Scheme,
			Code:        cl.ID,
			Description: cl.Description,
		})
	}

	o.Dates.Published = parseDate(r.Tender.DatePublished)
	if o.Dates.Published.IsZero() {
		o.Dates.Published = parseDate(r.Date)
	}
	o.Dates.Closing = parseDate(r.Tender.TenderPeriod.EndDate)
	if len(r.Awards) > 0 {
		o.Dates.Awarded = parseDate(r.Awards[0].Date)
	}
	if o.Dates.Awarded.IsZero() && len(r.Contracts) > 0 {
		o.Dates.Awarded = parseDate(r.Contracts[0].DateSigned)
	}

	return o
}

func ocdsStatus(s string) tender.Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return tender.StatusOpen
	case "complete":
		return tender.StatusAwarded
	case "":
		return tender.StatusUnknown
	default:
		return tender.StatusOther
	}
}
