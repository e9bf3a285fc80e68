package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/lokma/pkg/db/option"
	"gorm.io/gorm"
)

type gormRepository[T any] struct {
	db *gorm.DB
}

// ProvideStore binds a Repository for T to conn. Plans are the only caller
// today; domain code with locking or counters keeps its own repository.
func ProvideStore[T any](conn *gorm.DB) Repository[T] {
	return &gormRepository[T]{db: conn}
}

// WithTrx returns a copy bound to tx. A nil tx keeps the current handle.
func (r *gormRepository[T]) WithTrx(tx *gorm.DB) Repository[T] {
	if tx == nil {
		return r
	}
	return &gormRepository[T]{db: tx}
}

func (r *gormRepository[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var rows []*T
	if err := r.scope(ctx, query, opts).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOne returns nil, nil when nothing matches.
func (r *gormRepository[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	row := new(T)
	err := r.scope(ctx, query, opts).First(row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return row, nil
}

func (r *gormRepository[T]) Create(ctx context.Context, resource *T) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

// Update writes fields on the row with primary key id and reports how many
// rows changed.
func (r *gormRepository[T]) Update(ctx context.Context, id any, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *gormRepository[T]) Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	var n int64
	err := r.scope(ctx, query, opts).Count(&n).Error
	return n, err
}

// scope applies the non-zero fields of query as equality filters, then opts.
func (r *gormRepository[T]) scope(ctx context.Context, query *T, opts []option.QueryOption) *gorm.DB {
	stmt := r.db.WithContext(ctx).Model(new(T))
	if query != nil {
		stmt = stmt.Where(query)
	}
	for _, opt := range opts {
		if opt != nil {
			stmt = opt.Apply(stmt)
		}
	}
	return stmt
}
