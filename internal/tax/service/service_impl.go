package service

import (
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/lokma/internal/config"
	taxdomain "github.com/smallbiznis/lokma/internal/tax/domain"
	"go.uber.org/fx"
)

var hundred = decimal.NewFromInt(100)

type ResolverParam struct {
	fx.In

	Billing *config.BillingConfigHolder
}

type resolver struct {
	billing *config.BillingConfigHolder
}

func NewResolver(p ResolverParam) taxdomain.Resolver {
	return &resolver{billing: p.Billing}
}

func (r *resolver) Resolve(key taxdomain.RateKey) (taxdomain.Rate, error) {
	cfg := r.billing.Get()
	switch key {
	case taxdomain.RateStandard:
		return taxdomain.Rate{Key: key, Percent: decimal.NewFromFloat(cfg.StandardVATRate)}, nil
	case taxdomain.RateReduced:
		return taxdomain.Rate{Key: key, Percent: decimal.NewFromFloat(cfg.ReducedVATRate)}, nil
	default:
		return taxdomain.Rate{}, taxdomain.ErrUnknownRateKey
	}
}

func (r *resolver) Rates() []taxdomain.Rate {
	standard, _ := r.Resolve(taxdomain.RateStandard)
	reduced, _ := r.Resolve(taxdomain.RateReduced)
	return []taxdomain.Rate{standard, reduced}
}

// ComputeTaxExclusive returns the VAT added on top of net for a percentage
// rate. The result is unrounded; callers round once at the stored field.
func ComputeTaxExclusive(net, percent decimal.Decimal) decimal.Decimal {
	if percent.IsNegative() || percent.IsZero() {
		return decimal.Zero
	}
	return net.Mul(percent).Div(hundred)
}

// ComputeTaxFraction applies a fractional rate (0.07 means 7%).
func ComputeTaxFraction(net, fraction decimal.Decimal) decimal.Decimal {
	if fraction.IsNegative() || fraction.IsZero() {
		return decimal.Zero
	}
	return net.Mul(fraction)
}

// PercentOf converts a percentage rate to its share of amount (5 of 100 is 5).
func PercentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}
