package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const dialectSQLite = "sqlite"

// Base is embedded by the gorm repositories. It binds the request context and
// knows which locking clauses the underlying dialect accepts.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx returns the raw handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx rebinds the base to a transaction handle; nil keeps the current one.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// IsSQLite reports whether the handle talks to sqlite.
func (b Base) IsSQLite() bool {
	return b.db != nil && b.db.Dialector != nil && b.db.Dialector.Name() == dialectSQLite
}

// ForUpdate returns a query that row-locks what it selects until the
// surrounding transaction ends. SQLite serializes writers itself and has no
// FOR UPDATE, so the clause is omitted there.
func (b Base) ForUpdate(ctx context.Context) *gorm.DB {
	query := b.DB(ctx)
	if b.IsSQLite() {
		return query
	}
	return query.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}

// SkipLocked is ForUpdate for queue-style reads: rows held by another worker
// are skipped instead of waited on.
func (b Base) SkipLocked(ctx context.Context) *gorm.DB {
	query := b.DB(ctx)
	if b.IsSQLite() {
		return query
	}
	return query.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate, Options: clause.LockingOptionsSkipLocked})
}
