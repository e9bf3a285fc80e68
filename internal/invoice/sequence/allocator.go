// Package sequence hands out gap-free invoice numbers from a counter row.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	invoicedomain "github.com/smallbiznis/lokma/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAllocation marks failures of the counter itself, as opposed to the
// surrounding invoice write.
var ErrAllocation = errors.New("invoice_counter_allocation")

type Allocator struct{}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next increments the counter for key and returns the new value. It must run
// inside the transaction that persists the numbered invoice: the UPDATE
// holds the counter row lock until commit, and a rollback returns the
// number, so committed numbers never repeat or skip.
func (a *Allocator) Next(ctx context.Context, tx *gorm.DB, key string, now time.Time) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("%w: empty counter key", ErrAllocation)
	}

	db := tx.WithContext(ctx)
	seed := invoicedomain.InvoiceCounter{CounterKey: key, Value: 0, UpdatedAt: now}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, fmt.Errorf("%w: seed: %w", ErrAllocation, err)
	}

	result := db.Exec(
		`UPDATE invoice_counters SET value = value + 1, updated_at = ? WHERE counter_key = ?`,
		now,
		key,
	)
	if result.Error != nil {
		return 0, fmt.Errorf("%w: increment: %w", ErrAllocation, result.Error)
	}
	if result.RowsAffected != 1 {
		return 0, fmt.Errorf("%w: counter row %q missing", ErrAllocation, key)
	}

	var value int64
	if err := db.Raw(`SELECT value FROM invoice_counters WHERE counter_key = ?`, key).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("%w: read: %w", ErrAllocation, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: non-positive value %d", ErrAllocation, value)
	}
	return value, nil
}

// Current returns the last allocated number, or 0 when none was issued.
func (a *Allocator) Current(ctx context.Context, db *gorm.DB, key string) (int64, error) {
	var value int64
	err := db.WithContext(ctx).Raw(`SELECT value FROM invoice_counters WHERE counter_key = ?`, key).Scan(&value).Error
	return value, err
}
