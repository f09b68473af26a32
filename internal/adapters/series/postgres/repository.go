// Package postgres implements folio allocation. Folios are strictly
// monotonic per (tenant, series, document type) and never reused, even for
// documents that are later canceled.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"facturalo/ms_cfdi_core/internal/core/fault"
	"facturalo/ms_cfdi_core/internal/core/series"
)

// Repository implements series.Repository on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a series repository over the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NextFolio increments and returns the counter. The row lock taken by
// SELECT FOR UPDATE serializes concurrent allocations for the same series,
// so each caller observes a distinct folio.
func (r *Repository) NextFolio(ctx context.Context, tenantID, label string, docType series.DocumentType) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fault.NewDatabase("begin folio allocation", err)
	}
	defer tx.Rollback(ctx)

	var current int64
	err = tx.QueryRow(ctx, `
		SELECT current_folio FROM series
		WHERE tenant_id = $1 AND label = $2 AND document_type = $3
		FOR UPDATE`,
		tenantID, label, string(docType)).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fault.NewNotFound("serie", fmt.Sprintf("%s/%s/%s", tenantID, label, docType))
	}
	if err != nil {
		return 0, fault.NewDatabase("lock series row", err)
	}

	folio := current + 1
	_, err = tx.Exec(ctx, `
		UPDATE series SET current_folio = $1
		WHERE tenant_id = $2 AND label = $3 AND document_type = $4`,
		folio, tenantID, label, string(docType))
	if err != nil {
		return 0, fault.NewDatabase("advance folio", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fault.NewDatabase("commit folio allocation", err)
	}
	return folio, nil
}

// Create registers a new numbering sequence starting at CurrentFolio.
func (r *Repository) Create(ctx context.Context, s series.Series) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO series (tenant_id, label, document_type, current_folio)
		VALUES ($1, $2, $3, $4)`,
		s.TenantID, s.Label, string(s.DocumentType), s.CurrentFolio)
	if err != nil {
		return fault.NewDatabase("insert series", err)
	}
	return nil
}

// Get returns one numbering sequence.
func (r *Repository) Get(ctx context.Context, tenantID, label string, docType series.DocumentType) (*series.Series, error) {
	s := series.Series{TenantID: tenantID, Label: label, DocumentType: docType}
	err := r.pool.QueryRow(ctx, `
		SELECT current_folio FROM series
		WHERE tenant_id = $1 AND label = $2 AND document_type = $3`,
		tenantID, label, string(docType)).Scan(&s.CurrentFolio)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NewNotFound("serie", fmt.Sprintf("%s/%s/%s", tenantID, label, docType))
	}
	if err != nil {
		return nil, fault.NewDatabase("select series", err)
	}
	return &s, nil
}
