package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// AggregateItems folds every participant's items into one line per product.
// Items are grouped by product id, falling back to the lowercased product
// name when no id was captured. Output is sorted, so the result does not
// depend on participant order.
func AggregateItems(session Session) []AggregatedItem {
	lines := make(map[string]*AggregatedItem)
	for _, participant := range session.Participants {
		for _, item := range participant.Items {
			key := itemKey(item)
			line, ok := lines[key]
			if !ok {
				line = &AggregatedItem{
					ProductID:   strings.TrimSpace(item.ProductID),
					ProductName: strings.TrimSpace(item.ProductName),
					TotalPrice:  decimal.Zero,
				}
				lines[key] = line
			}
			line.Quantity += item.Quantity
			line.TotalPrice = line.TotalPrice.Add(item.TotalPrice)
		}
	}

	out := make([]AggregatedItem, 0, len(lines))
	for _, line := range lines {
		if line.Quantity > 0 {
			line.UnitPrice = line.TotalPrice.Div(decimal.NewFromInt(line.Quantity)).Round(2)
		}
		out = append(out, *line)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductName != out[j].ProductName {
			return out[i].ProductName < out[j].ProductName
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

func itemKey(item Item) string {
	if id := strings.TrimSpace(item.ProductID); id != "" {
		return "id:" + id
	}
	return "name:" + strings.ToLower(strings.TrimSpace(item.ProductName))
}

// Recalculate derives participant subtotals, grand total and paid total
// from the item lists. Whole-table sessions count the full grand total as
// paid once closed.
func Recalculate(session *Session) {
	grand := decimal.Zero
	paid := decimal.Zero
	for i := range session.Participants {
		participant := &session.Participants[i]
		subtotal := decimal.Zero
		for _, item := range participant.Items {
			subtotal = subtotal.Add(item.TotalPrice)
		}
		participant.Subtotal = subtotal.Round(2)
		grand = grand.Add(participant.Subtotal)
		if participant.Paid() {
			paid = paid.Add(participant.Subtotal)
		}
	}
	session.GrandTotal = grand.Round(2)
	session.PaidTotal = paid.Round(2)
	if session.PaymentMode == PaymentModeWholeTable && session.Status == StatusClosed {
		session.PaidTotal = session.GrandTotal
	}
}

// WriteOff is the remainder a cancelled session leaves uncollected. Open
// and closed sessions report zero.
func WriteOff(session Session) decimal.Decimal {
	if session.Status != StatusCancelled {
		return decimal.Zero
	}
	return session.Outstanding()
}

// FullyPaid reports whether a session with a positive total has been
// settled in full.
func FullyPaid(session Session) bool {
	return session.GrandTotal.IsPositive() && session.PaidTotal.GreaterThanOrEqual(session.GrandTotal)
}
