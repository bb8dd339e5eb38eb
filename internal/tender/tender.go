package tender

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NotAvailable is shown in reports for fields the upstream record did not carry.
const NotAvailable = "N/A"

// Status is the normalized lifecycle state of an opportunity.
type Status string

const (
	StatusOpen    Status = "open"
	StatusAwarded Status = "awarded"
	StatusUnknown Status = "unknown"
	StatusOther   Status = "other"
)

// Display returns the label used in reports.
func (s Status) Display() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusAwarded:
		return "Awarded"
	default:
		return NotAvailable
	}
}

// Classification is a single taxonomy code attached to a line item.
type Classification struct {
	Scheme      string `json:"scheme,omitempty"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Amount is a monetary value as published upstream. Valid is false when the
// raw value was absent or could not be parsed as a number.
type Amount struct {
	Raw      string          `json:"raw,omitempty"`
	Value    decimal.Decimal `json:"value"`
	Currency string          `json:"currency,omitempty"`
	Valid    bool            `json:"valid"`
}

// NewAmount parses a raw upstream amount. Numbers, numeric strings and
// json.Number-like values are accepted; anything else yields an invalid amount.
func NewAmount(raw any, currency string) Amount {
	a := Amount{Currency: strings.TrimSpace(currency)}

	switch v := raw.(type) {
	case nil:
		return a
	case float64:
		a.Raw = decimal.NewFromFloat(v).String()
		a.Value = decimal.NewFromFloat(v)
		a.Valid = true
	case float32:
		a.Value = decimal.NewFromFloat32(v)
		a.Raw = a.Value.String()
		a.Valid = true
	case int:
		a.Value = decimal.NewFromInt(int64(v))
		a.Raw = a.Value.String()
		a.Valid = true
	case int64:
		a.Value = decimal.NewFromInt(v)
		a.Raw = a.Value.String()
		a.Valid = true
	case decimal.Decimal:
		a.Value = v
		a.Raw = v.String()
		a.Valid = true
	default:
		a.Raw = strings.TrimSpace(fmt.Sprint(v))
		parsed, err := decimal.NewFromString(strings.ReplaceAll(a.Raw, ",", ""))
		if err != nil {
			return a
		}
		a.Value = parsed
		a.Valid = true
	}

	return a
}

// String renders the amount for reports.
func (a Amount) String() string {
	if !a.Valid {
		return NotAvailable
	}
	if a.Currency == "" {
		return a.Value.StringFixed(2)
	}
	return fmt.Sprintf("%s %s", a.Value.StringFixed(2), a.Currency)
}

// Dates groups the timestamps an upstream record may publish. Zero values
// mean the date was not present.
type Dates struct {
	Published time.Time `json:"published,omitzero"`
	Closing   time.Time `json:"closing,omitzero"`
	Awarded   time.Time `json:"awarded,omitzero"`
}

// Opportunity is the canonical procurement record. Source adapters build it
// once and nothing downstream modifies it.
type Opportunity struct {
	ID              string           `json:"id"`
	Link            string           `json:"link,omitempty"`
	Reference       string           `json:"reference,omitempty"`
	Title           string           `json:"title,omitempty"`
	Description     string           `json:"description,omitempty"`
	Agency          string           `json:"agency,omitempty"`
	Category        string           `json:"category,omitempty"`
	Amounts         []Amount         `json:"amounts,omitempty"`
	Classifications []Classification `json:"classifications,omitempty"`
	Dates           Dates            `json:"dates"`
	Status          Status           `json:"status,omitempty"`
	NoticeType      string           `json:"notice_type,omitempty"`
	Source          string           `json:"source,omitempty"`
}

// SearchText is the case-folded text keyword matching runs against.
func (o *Opportunity) SearchText() string {
	return strings.ToLower(o.Title + " " + o.Description)
}

// CategoryText is the text fed to the category/agency vectorizer.
func (o *Opportunity) CategoryText() string {
	return o.Category + " " + o.Agency
}

// Key returns the identifier used for deduplication.
func (o *Opportunity) Key() string {
	if id := strings.TrimSpace(o.ID); id != "" {
		return id
	}
	return strings.TrimSpace(o.Link)
}

// OrNA returns s or NotAvailable when s is blank.
func OrNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}
