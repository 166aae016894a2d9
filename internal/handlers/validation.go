package handlers

import (
	"errors"
	"strconv"

	"sacco/internal/money"

	"github.com/shopspring/decimal"
)

var (
	errInvalidAmount = errors.New("invalid amount")
	errInvalidRate   = errors.New("invalid rate")
)

const maxPageSize = 100

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

// parseRate accepts an annual percentage such as "12.5". Zero is allowed.
func parseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() {
		return decimal.Zero, errInvalidRate
	}
	if rate.Exponent() < -4 || rate.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, errInvalidRate
	}
	return rate, nil
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func pagination(page, limit string, defaultLimit int) (int, int) {
	size := parseInt(limit, defaultLimit)
	if size > maxPageSize {
		size = maxPageSize
	}
	return size, (parseInt(page, 1) - 1) * size
}
