package loancalc

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestAmortize(t *testing.T) {
	tests := []struct {
		name          string
		principal     string
		rate          string
		term          int
		monthly       string
		total         string
		interest      string
		lastPayment   string
		firstInterest string
	}{
		{
			name:          "one year at fifteen percent",
			principal:     "1000000",
			rate:          "15",
			term:          12,
			monthly:       "90258.31",
			total:         "1083099.75",
			interest:      "83099.75",
			lastPayment:   "90258.33",
			firstInterest: "12500.00",
		},
		{
			name:          "two years at twelve percent",
			principal:     "50000",
			rate:          "12",
			term:          24,
			monthly:       "2353.67",
			total:         "56488.17",
			interest:      "6488.17",
			lastPayment:   "2353.74",
			firstInterest: "500.00",
		},
		{
			name:          "zero rate",
			principal:     "1000",
			rate:          "0",
			term:          3,
			monthly:       "333.33",
			total:         "1000.00",
			interest:      "0.00",
			lastPayment:   "333.34",
			firstInterest: "0.00",
		},
		{
			name:          "single period",
			principal:     "100",
			rate:          "1",
			term:          1,
			monthly:       "100.08",
			total:         "100.08",
			interest:      "0.08",
			lastPayment:   "100.08",
			firstInterest: "0.08",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Amortize(d(tt.principal), d(tt.rate), tt.term)
			require.NoError(t, err)

			assert.Equal(t, tt.monthly, result.MonthlyPayment.StringFixed(2))
			assert.Equal(t, tt.total, result.TotalPayment.StringFixed(2))
			assert.Equal(t, tt.interest, result.TotalInterest.StringFixed(2))

			require.Len(t, result.Schedule, tt.term)
			first := result.Schedule[0]
			last := result.Schedule[len(result.Schedule)-1]
			assert.Equal(t, 1, first.Period)
			assert.Equal(t, tt.firstInterest, first.Interest.StringFixed(2))
			assert.Equal(t, tt.term, last.Period)
			assert.Equal(t, tt.lastPayment, last.Payment.StringFixed(2))
			assert.True(t, last.Balance.IsZero(), "schedule must end at zero, got %s", last.Balance)

			repaid := decimal.Zero
			for _, installment := range result.Schedule {
				repaid = repaid.Add(installment.Principal)
				assert.True(t, installment.Payment.Equal(installment.Principal.Add(installment.Interest)))
			}
			assert.True(t, repaid.Equal(d(tt.principal)), "principal repaid %s", repaid)
		})
	}
}

func TestAmortizeRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		term      int
	}{
		{name: "zero principal", principal: "0", rate: "10", term: 12},
		{name: "negative principal", principal: "-5", rate: "10", term: 12},
		{name: "negative rate", principal: "1000", rate: "-1", term: 12},
		{name: "zero term", principal: "1000", rate: "10", term: 0},
		{name: "negative term", principal: "1000", rate: "10", term: -3},
		{name: "term too long", principal: "1000", rate: "10", term: MaxTermMonths + 1},
		{name: "payment below one cent", principal: "0.05", rate: "12", term: 12},
		{name: "interest free payment below one cent", principal: "0.05", rate: "0", term: 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Amortize(d(tt.principal), d(tt.rate), tt.term)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
