package domain

import "github.com/smallbiznis/lokma/internal/apperror"

// Resolver maps rate keys to the VAT percentages currently in force.
type Resolver interface {
	Resolve(key RateKey) (Rate, error)
	Rates() []Rate
}

var ErrUnknownRateKey = apperror.Validation("vat_rate_key", "vat rate key must be standard or reduced")
