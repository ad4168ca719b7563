// Package repository implements the warehouse repositories on PostgreSQL.
// Writes inside Store.Execute share one transaction; rows read with
// GetForUpdate stay locked until it commits.
package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/database"
	"github.com/medflow/medflow-warehouse/pkg/errors"
)

// Store is the PostgreSQL transaction scope.
type Store struct {
	db *database.DB
}

// NewStore creates a new store
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Execute runs fn in one READ COMMITTED transaction.
func (s *Store) Execute(ctx context.Context, fn func(repos domain.Repositories) error) error {
	return s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		return fn(&repositories{q: tx})
	})
}

// Read returns repositories running on the pool.
func (s *Store) Read() domain.Repositories {
	return &repositories{q: s.db.DB}
}

type repositories struct {
	q sqlx.ExtContext
}

func (r *repositories) Items() domain.ItemRepository         { return &ItemRepository{q: r.q} }
func (r *repositories) Lots() domain.LotRepository           { return &LotRepository{q: r.q} }
func (r *repositories) Locations() domain.LocationRepository { return &LocationRepository{q: r.q} }
func (r *repositories) Receipts() domain.ReceiptRepository   { return &ReceiptRepository{q: r.q} }
func (r *repositories) Issuances() domain.IssuanceRepository { return &IssuanceRepository{q: r.q} }
func (r *repositories) Movements() domain.MovementRepository { return &MovementRepository{q: r.q} }
func (r *repositories) Notes() domain.NoteRepository         { return &NoteRepository{q: r.q} }

var _ domain.TransactionScope = (*Store)(nil)

func getOne(ctx context.Context, q sqlx.QueryerContext, dest interface{}, resource, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource)
	}
	return database.MapError(err)
}

func selectAll(ctx context.Context, q sqlx.QueryerContext, dest interface{}, query string, args ...interface{}) error {
	return database.MapError(sqlx.SelectContext(ctx, q, dest, query, args...))
}

// execOne runs a statement that must touch exactly one row.
func execOne(ctx context.Context, q sqlx.ExecerContext, resource, query string, args ...interface{}) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return database.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NotFound(resource)
	}
	return nil
}
