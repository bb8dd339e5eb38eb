package tender

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAmount(t *testing.T) {
	tests := []struct {
		name  string
		raw   any
		valid bool
		value string
	}{
		{name: "float", raw: 250000.0, valid: true, value: "250000"},
		{name: "int", raw: 150000, valid: true, value: "150000"},
		{name: "numeric string", raw: " 1200.50 ", valid: true, value: "1200.5"},
		{name: "thousands separators", raw: "1,200,000", valid: true, value: "1200000"},
		{name: "nil", raw: nil, valid: false},
		{name: "garbage", raw: "call for quote", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAmount(tt.raw, "AUD")
			assert.Equal(t, tt.valid, a.Valid)
			assert.Equal(t, "AUD", a.Currency)
			if tt.valid {
				assert.True(t, a.Value.Equal(decimal.RequireFromString(tt.value)), "got %s", a.Value)
			}
		})
	}
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "N/A", NewAmount(nil, "").String())
	assert.Equal(t, "10.00 AUD", NewAmount(10, "AUD").String())
	assert.Equal(t, "10.00", NewAmount(10, "").String())
}

func TestStatusDisplay(t *testing.T) {
	assert.Equal(t, "Open", StatusOpen.Display())
	assert.Equal(t, "Awarded", StatusAwarded.Display())
	assert.Equal(t, "N/A", StatusUnknown.Display())
	assert.Equal(t, "N/A", StatusOther.Display())
}

func TestOpportunityText(t *testing.T) {
	o := &Opportunity{Title: "Drone Survey", Description: "LiDAR Capture", Category: "Aerial", Agency: "Dept"}

	assert.Equal(t, "drone survey lidar capture", o.SearchText())
	assert.Equal(t, "Aerial Dept", o.CategoryText())
}

func TestOpportunityKey(t *testing.T) {
	assert.Equal(t, "id-1", (&Opportunity{ID: " id-1 ", Link: "https://x"}).Key())
	assert.Equal(t, "https://x", (&Opportunity{Link: "https://x"}).Key())
}

func TestOpportunitiesUnique(t *testing.T) {
	batch := &Opportunities{Items: []*Opportunity{
		{ID: "a"}, {ID: "b"}, {ID: "a"}, {ID: "c"},
	}}

	dropped := batch.Unique()

	require.Equal(t, 3, batch.Len())
	assert.Equal(t, []string{"a"}, dropped)
	assert.Equal(t, "b", batch.Items[1].ID)
	assert.NotNil(t, batch.FindByID("c"))
	assert.Nil(t, batch.FindByID("zzz"))
}

func TestOrNA(t *testing.T) {
	assert.Equal(t, "N/A", OrNA("  "))
	assert.Equal(t, "x", OrNA("x"))
}
