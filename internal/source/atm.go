package source

import (
	"bytes"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/spigell/tender-matcher/internal/tender"
)

// atmDetail holds the labelled fields of an AusTender approach-to-market page.
type atmDetail struct {
	ID          string
	Agency      string
	Category    string
	Type        string
	Description string
	PublishDate string
	CloseDate   string
}

const atmValueClass = "list-desc-inner"

var atmDateLayouts = []string{
	"2-Jan-2006 3:04 pm",
	"2-Jan-2006 3:04 PM",
	"2-Jan-2006",
}

// atmLocation is the zone the site prints its dates in.
var atmLocation = func() *time.Location {
	if loc, err := time.LoadLocation("Australia/Sydney"); err == nil {
		return loc
	}
	return time.FixedZone("AEST", 10*60*60)
}()

// parseATMDetail reads the label/value pairs of a detail page. Every
// <label for="X"> followed by a list-desc-inner element yields field X.
func parseATMDetail(page []byte) (atmDetail, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return atmDetail{}, err
	}

	fields := make(map[string]string)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "label" {
			if key := attr(n, "for"); key != "" {
				if value := nextElement(n); value != nil && hasClass(value, atmValueClass) {
					if _, ok := fields[key]; !ok {
						fields[key] = nodeText(value)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return atmDetail{
		ID:          fields["AtmId"],
		Agency:      fields["Agency"],
		Category:    fields["Category"],
		Type:        fields["Type"],
		Description: fields["Description"],
		PublishDate: fields["PublishDate"],
		CloseDate:   fields["CloseDate"],
	}, nil
}

// enrich fills o from the detail page. Feed values win for the description
// and publish date, the page wins for agency and category.
func (d atmDetail) enrich(o *tender.Opportunity) {
	if d.Agency != "" {
		o.Agency = d.Agency
	}
	if d.Category != "" {
		o.Category = d.Category
	}
	if o.Description == "" {
		o.Description = d.Description
	}
	if o.Dates.Published.IsZero() {
		o.Dates.Published = parseATMDate(d.PublishDate)
	}
	if t := parseATMDate(d.CloseDate); !t.IsZero() {
		o.Dates.Closing = t
	}
	o.Reference = d.ID
	o.NoticeType = d.Type
}

// parseATMDate handles values like "14-Mar-2025 2:00 pm (ACT Local Time)".
func parseATMDate(s string) time.Time {
	if i := strings.Index(s, "("); i >= 0 {
		s = s[:i]
	}
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return time.Time{}
	}
	for _, layout := range atmDateLayouts {
		if t, err := time.ParseInLocation(layout, s, atmLocation); err == nil {
			return t
		}
	}
	return time.Time{}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func nextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var b strings.Builder

	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	return strings.Join(strings.Fields(b.String()), " ")
}
