package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RateKey selects one of the jurisdiction's fixed VAT rates. Keys are
// snapshotted on invoices; do not rename once used.
type RateKey string

const (
	RateStandard RateKey = "standard"
	RateReduced  RateKey = "reduced"
)

func ParseRateKey(raw string) (RateKey, bool) {
	switch RateKey(strings.ToLower(strings.TrimSpace(raw))) {
	case RateStandard:
		return RateStandard, true
	case RateReduced:
		return RateReduced, true
	default:
		return "", false
	}
}

// Rate is a resolved VAT rate in percent (19 means 19%).
type Rate struct {
	Key     RateKey         `json:"key"`
	Percent decimal.Decimal `json:"percent"`
}
