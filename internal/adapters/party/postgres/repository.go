// Package postgres reads issuer and receiver reference data.
package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"facturalo/ms_cfdi_core/internal/core/fault"
	"facturalo/ms_cfdi_core/internal/core/party"
)

// Repository implements party.Repository on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a party repository over the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetIssuer returns the tenant's fiscal profile.
func (r *Repository) GetIssuer(ctx context.Context, tenantID string) (*party.Issuer, error) {
	var issuer party.Issuer
	err := r.pool.QueryRow(ctx, `
		SELECT tenant_id, rfc, name, tax_regime, postal_code, certificate_no, logo_url
		FROM issuers
		WHERE tenant_id = $1`,
		tenantID).Scan(
		&issuer.TenantID,
		&issuer.RFC,
		&issuer.Name,
		&issuer.TaxRegime,
		&issuer.PostalCode,
		&issuer.CertificateNo,
		&issuer.LogoURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NewNotFound("emisor", tenantID)
	}
	if err != nil {
		return nil, fault.NewDatabase("select issuer", err)
	}
	return &issuer, nil
}

// GetReceiver returns one of the tenant's clients.
func (r *Repository) GetReceiver(ctx context.Context, tenantID string, id uuid.UUID) (*party.Receiver, error) {
	var receiver party.Receiver
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, rfc, name, tax_regime, postal_code, cfdi_use, payment_terms
		FROM receivers
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id).Scan(
		&receiver.ID,
		&receiver.TenantID,
		&receiver.RFC,
		&receiver.Name,
		&receiver.TaxRegime,
		&receiver.PostalCode,
		&receiver.CFDIUse,
		&receiver.PaymentTerms,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NewNotFound("receptor", id.String())
	}
	if err != nil {
		return nil, fault.NewDatabase("select receiver", err)
	}
	return &receiver, nil
}
