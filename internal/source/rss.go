package source

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/spigell/tender-matcher/internal/tender"
)

type RSSConfig struct {
	URLs []string
	// FollowLinks fetches each item's detail page for agency, category,
	// dates and notice type.
	FollowLinks bool
}

type RSS struct {
	client      *Client
	urls        []string
	followLinks bool
}

func NewRSS(client *Client, cfg RSSConfig) (*RSS, error) {
	var urls []string
	for _, u := range cfg.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, errors.New("rss: at least one feed url is required")
	}

	return &RSS{client: client, urls: urls, followLinks: cfg.FollowLinks}, nil
}

func (s *RSS) Name() string { return KindRSS }

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	GUID        string   `xml:"guid"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate"`
	Categories  []string `xml:"category"`
}

// Fetch reads every feed in order. One broken feed fails the batch.
func (s *RSS) Fetch(ctx context.Context) ([]*tender.Opportunity, error) {
	var out []*tender.Opportunity

	for _, u := range s.urls {
		data, err := s.client.getRaw(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("rss: fetch %s: %w", u, err)
		}

		var feed rssFeed
		if err := xml.Unmarshal(data, &feed); err != nil {
			return nil, fmt.Errorf("rss: parse %s: %w", u, err)
		}

		s.client.logger.Debug("rss feed fetched", zap.String("url", u), zap.Int("items", len(feed.Channel.Items)))

		for _, item := range feed.Channel.Items {
			o := item.opportunity()
			if s.followLinks && o.Link != "" {
				if err := s.enrich(ctx, o); err != nil {
					return nil, err
				}
			}
			out = append(out, o)
		}
	}

	return out, nil
}

// enrich adds detail page fields to o. A missing or unreadable page keeps
// the feed item as it is; only a cancelled context fails the batch.
func (s *RSS) enrich(ctx context.Context, o *tender.Opportunity) error {
	page, err := s.client.getRaw(ctx, o.Link)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("rss: fetch %s: %w", o.Link, ctxErr)
		}
		s.client.logger.Warn("tender detail page unavailable", zap.String("url", o.Link), zap.Error(err))
		return nil
	}

	detail, err := parseATMDetail(page)
	if err != nil {
		s.client.logger.Warn("tender detail page unreadable", zap.String("url", o.Link), zap.Error(err))
		return nil
	}
	detail.enrich(o)

	s.client.logger.Debug("tender detail page merged", zap.String("url", o.Link), zap.String("reference", detail.ID))
	return nil
}

func (i rssItem) opportunity() *tender.Opportunity {
	link := strings.TrimSpace(i.Link)
	id := link
	if id == "" {
		id = strings.TrimSpace(i.GUID)
	}

	o := &tender.Opportunity{
		ID:          id,
		Link:        link,
		Title:       strings.TrimSpace(i.Title),
		Description: stripMarkup(i.Description),
		Category:    strings.Join(i.Categories, " "),
		Status:      tender.StatusUnknown,
		Source:      KindRSS,
	}
	o.Dates.Published = parseDate(i.PubDate)

	return o
}

// stripMarkup reduces an HTML fragment to its whitespace-collapsed text.
func stripMarkup(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return strings.Join(strings.Fields(s), " ")
			}
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			b.WriteByte(' ')
		}
	}
}
