package handlers

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"iou/internal/models"
	"iou/internal/money"

	"github.com/shopspring/decimal"
)

var errInvalidDate = errors.New("date must be YYYY-MM-DD or RFC 3339")

// parseAmount accepts the amount as a JSON number or a numeric string.
func parseAmount(raw json.Number) (decimal.Decimal, error) {
	return money.ParseAmount(raw.String())
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, errInvalidDate
	}
	return &t, nil
}

func parseType(raw string) models.TransactionType {
	return models.TransactionType(strings.ToLower(strings.TrimSpace(raw)))
}
