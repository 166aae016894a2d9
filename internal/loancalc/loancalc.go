// Package loancalc computes fixed-rate annuity repayments. It is a pure
// reporting aid: the ledger never consults a schedule.
package loancalc

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid loan parameters")

const MaxTermMonths = 600

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
	one     = decimal.NewFromInt(1)
)

// minPayment is the smallest payment the schedule can express in minor units.
var minPayment = decimal.New(1, -2)

type Installment struct {
	Period    int             `json:"period"`
	Payment   decimal.Decimal `json:"payment"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Balance   decimal.Decimal `json:"balance"`
}

type Amortization struct {
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	TotalPayment   decimal.Decimal `json:"total_payment"`
	TotalInterest  decimal.Decimal `json:"total_interest"`
	Schedule       []Installment   `json:"schedule"`
}

// Amortize returns the monthly payment, totals and per-period schedule for
// principal borrowed at annualRatePercent over termMonths. Figures are
// rounded half-even to two places from the unrounded payment.
func Amortize(principal, annualRatePercent decimal.Decimal, termMonths int) (Amortization, error) {
	if !principal.IsPositive() || annualRatePercent.IsNegative() || termMonths <= 0 || termMonths > MaxTermMonths {
		return Amortization{}, ErrInvalidInput
	}
	n := decimal.NewFromInt(int64(termMonths))
	monthlyRate := annualRatePercent.Div(hundred).Div(twelve)

	if monthlyRate.IsZero() {
		payment := principal.Div(n).RoundBank(2)
		if payment.LessThan(minPayment) {
			return Amortization{}, ErrInvalidInput
		}
		return Amortization{
			MonthlyPayment: payment,
			TotalPayment:   principal.RoundBank(2),
			TotalInterest:  decimal.Zero.RoundBank(2),
			Schedule:       schedule(principal, monthlyRate, payment, termMonths),
		}, nil
	}

	growth := one.Add(monthlyRate).Pow(n)
	payment := principal.Mul(monthlyRate).Mul(growth).Div(growth.Sub(one))
	total := payment.Mul(n)

	rounded := payment.RoundBank(2)
	if rounded.LessThan(minPayment) {
		return Amortization{}, ErrInvalidInput
	}
	return Amortization{
		MonthlyPayment: rounded,
		TotalPayment:   total.RoundBank(2),
		TotalInterest:  total.Sub(principal).RoundBank(2),
		Schedule:       schedule(principal, monthlyRate, rounded, termMonths),
	}, nil
}

func schedule(principal, monthlyRate, payment decimal.Decimal, termMonths int) []Installment {
	installments := make([]Installment, 0, termMonths)
	remaining := principal.RoundBank(2)
	for period := 1; period <= termMonths; period++ {
		interest := remaining.Mul(monthlyRate).RoundBank(2)
		principalPart := payment.Sub(interest)
		amount := payment
		// the final period settles whatever rounding left behind
		if period == termMonths || principalPart.GreaterThan(remaining) {
			principalPart = remaining
			amount = principalPart.Add(interest)
		}
		remaining = remaining.Sub(principalPart)
		installments = append(installments, Installment{
			Period:    period,
			Payment:   amount,
			Principal: principalPart,
			Interest:  interest,
			Balance:   remaining,
		})
		if remaining.IsZero() {
			break
		}
	}
	return installments
}
