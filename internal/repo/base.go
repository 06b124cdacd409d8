// Package repo holds the gorm plumbing shared by the domain repositories.
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base carries the connection, or open transaction, a repository works through.
type Base struct {
	conn *gorm.DB
}

func NewBase(conn *gorm.DB) Base {
	return Base{conn: conn}
}

// DB scopes the connection to ctx. A nil ctx returns it unscoped.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}

// WithTx rebinds to tx; nil keeps the current connection.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{conn: tx}
}

// FindByID loads the T with primary key id. A miss is gorm.ErrRecordNotFound.
func FindByID[T any](ctx context.Context, b Base, id uuid.UUID) (*T, error) {
	row := new(T)
	if err := b.DB(ctx).First(row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// FindForUpdate is FindByID holding a row lock until the transaction ends.
// sqlite has no FOR UPDATE and serializes writers anyway, so the clause is
// only added on postgres.
func FindForUpdate[T any](ctx context.Context, b Base, id uuid.UUID) (*T, error) {
	query := b.DB(ctx)
	if b.conn.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	row := new(T)
	if err := query.First(row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// Transition applies updates to the T rows matching the guard and returns how
// many changed. Zero means the guard no longer held, usually because a
// concurrent writer got there first.
func Transition[T any](ctx context.Context, b Base, updates map[string]any, guard string, args ...any) (int64, error) {
	res := b.DB(ctx).Model(new(T)).Where(guard, args...).Updates(updates)
	return res.RowsAffected, res.Error
}
