// internal/workers/pdf_parse_test.go
package workers

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProcessor() *DeliveryNoteProcessor {
	return NewDeliveryNoteProcessor(nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseDeliveryLines(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		expected []deliveryLine
	}{
		{
			name: "basic_table",
			lines: []string{
				"ACME WHOLESALE - DELIVERY NOTE #4471",
				"ITEM                     QTY     UNIT COST",
				"Arabica Beans 1kg        24 x 310.00",
				"Oat Milk 1L              36 x 82.50",
				"TOTAL                    10,410.00",
			},
			expected: []deliveryLine{
				{name: "Arabica Beans 1kg", quantity: 24, unitCost: decimal.RequireFromString("310.00")},
				{name: "Oat Milk 1L", quantity: 36, unitCost: decimal.RequireFromString("82.50")},
			},
		},
		{
			name: "at_separator_and_thousands",
			lines: []string{
				"DESCRIPTION          QUANTITY",
				"Espresso Machine 2 @ $1,250.00",
			},
			expected: []deliveryLine{
				{name: "Espresso Machine", quantity: 2, unitCost: decimal.RequireFromString("1250.00")},
			},
		},
		{
			name: "footer_stops_parsing",
			lines: []string{
				"ITEM QTY COST",
				"Paper Cups 12oz 10 x 4.00",
				"GRAND TOTAL 40.00",
				"Sugar Sachets 5 x 1.00",
			},
			expected: []deliveryLine{
				{name: "Paper Cups 12oz", quantity: 10, unitCost: decimal.RequireFromString("4.00")},
			},
		},
		{
			name: "malformed_lines_skipped",
			lines: []string{
				"ITEM QTY COST",
				"",
				"no price on this line",
				"Zero Quantity Item 0 x 5.00",
				"Valid Item 3 x 9.99",
			},
			expected: []deliveryLine{
				{name: "Valid Item", quantity: 3, unitCost: decimal.RequireFromString("9.99")},
			},
		},
		{
			name: "no_header_parses_from_top",
			lines: []string{
				"House Blend 250g 6 x 145.00",
			},
			expected: []deliveryLine{
				{name: "House Blend 250g", quantity: 6, unitCost: decimal.RequireFromString("145.00")},
			},
		},
		{
			name:     "empty_input",
			lines:    nil,
			expected: nil,
		},
	}

	p := newTestProcessor()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.parseDeliveryLines(tt.lines)

			require.Len(t, got, len(tt.expected))
			for i := range tt.expected {
				assert.Equal(t, tt.expected[i].name, got[i].name)
				assert.Equal(t, tt.expected[i].quantity, got[i].quantity)
				assert.True(t, tt.expected[i].unitCost.Equal(got[i].unitCost),
					"unit cost = %s", got[i].unitCost)
			}
		})
	}
}

func TestParseCurrency(t *testing.T) {
	p := newTestProcessor()

	tests := []struct {
		input    string
		expected string
	}{
		{"310.00", "310"},
		{"$1,250.00", "1250"},
		{" 82.50 ", "82.5"},
		{"garbage", "0"},
	}

	for _, tt := range tests {
		got := p.parseCurrency(tt.input)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.expected)),
			"parseCurrency(%q) = %s", tt.input, got)
	}
}
