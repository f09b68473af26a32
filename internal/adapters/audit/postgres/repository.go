// Package postgres persists provider audit trail entries.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"facturalo/ms_cfdi_core/internal/core/audit"
)

// Repository implements audit.Repository on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds an audit repository over the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save inserts one audit entry. Bodies are stored as JSONB when present.
func (r *Repository) Save(ctx context.Context, entry audit.ProviderAuditLog) error {
	requestHeaders, err := json.Marshal(entry.RequestHeaders)
	if err != nil {
		return fmt.Errorf("marshal request headers: %w", err)
	}
	responseHeaders, err := json.Marshal(entry.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("marshal response headers: %w", err)
	}

	var requestBody, responseBody any
	if len(entry.RequestBody) > 0 {
		requestBody = entry.RequestBody
	}
	if len(entry.ResponseBody) > 0 {
		responseBody = entry.ResponseBody
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO provider_audit_log (
			correlation_id, provider, operation, request_method, request_url,
			request_headers, request_body, response_status, response_headers,
			response_body, duration_ms, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.CorrelationID,
		entry.Provider,
		entry.Operation,
		entry.RequestMethod,
		entry.RequestURL,
		requestHeaders,
		requestBody,
		entry.ResponseStatus,
		responseHeaders,
		responseBody,
		entry.DurationMs,
		entry.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
