// Package postgres persists the invoice aggregate. Status mutations are
// compare-and-set updates guarded on the stored status so two concurrent
// stamping attempts can never both succeed.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"facturalo/ms_cfdi_core/internal/core/fault"
	"facturalo/ms_cfdi_core/internal/core/invoice"
)

// Repository implements invoice.Repository on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds an invoice repository over the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the invoice and its line items in one transaction.
func (r *Repository) Create(ctx context.Context, inv *invoice.Invoice) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fault.NewDatabase("begin create invoice", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO invoices (
			id, tenant_id, receiver_id, series, folio, payment_method,
			payment_form, cfdi_use, subtotal, discount, tax, total,
			status, issued_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		inv.ID,
		inv.TenantID,
		inv.ReceiverID,
		inv.Series,
		inv.Folio,
		inv.PaymentMethod,
		inv.PaymentForm,
		inv.CFDIUse,
		inv.Subtotal.String(),
		inv.DiscountTotal.String(),
		inv.TaxTotal.String(),
		inv.Total.String(),
		string(inv.Status),
		inv.IssuedAt,
		inv.CreatedAt,
	)
	if err != nil {
		return fault.NewDatabase("insert invoice", err)
	}

	for position, item := range inv.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO invoice_items (
				invoice_id, position, description, product_key, unit_key,
				quantity, unit_price, discount, amount
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			inv.ID,
			position,
			item.Description,
			item.ProductKey,
			item.UnitKey,
			item.Quantity.String(),
			item.UnitPrice.String(),
			item.Discount.String(),
			item.Amount.String(),
		)
		if err != nil {
			return fault.NewDatabase("insert invoice item", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fault.NewDatabase("commit create invoice", err)
	}
	return nil
}

// Get loads one invoice with its line items, scoped to the tenant.
func (r *Repository) Get(ctx context.Context, tenantID string, id uuid.UUID) (*invoice.Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, receiver_id, series, folio, payment_method,
		       payment_form, cfdi_use, subtotal::text, discount::text,
		       tax::text, total::text, status,
		       COALESCE(fiscal_uuid::text, ''), stamped_at, issued_at,
		       pdf_url, xml_url, created_at
		FROM invoices
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)

	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.NewNotFound("factura", id.String())
		}
		return nil, fault.NewDatabase("select invoice", err)
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

// MarkStamped records the fiscal proof. The update only matches a draft row;
// zero rows affected on an existing invoice means a concurrent stamp won.
func (r *Repository) MarkStamped(ctx context.Context, tenantID string, id uuid.UUID, proof invoice.StampProof) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET status = $1, fiscal_uuid = $2, stamped_at = $3
		WHERE tenant_id = $4 AND id = $5 AND status = $6`,
		string(invoice.StatusStamped),
		proof.FiscalUUID,
		proof.StampedAt,
		tenantID,
		id,
		string(invoice.StatusDraft),
	)
	if err != nil {
		return fault.NewDatabase("mark invoice stamped", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionConflict(ctx, tenantID, id, "timbrarse")
	}
	return nil
}

// MarkCanceled flips a stamped invoice to canceled.
func (r *Repository) MarkCanceled(ctx context.Context, tenantID string, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET status = $1
		WHERE tenant_id = $2 AND id = $3 AND status = $4`,
		string(invoice.StatusCanceled),
		tenantID,
		id,
		string(invoice.StatusStamped),
	)
	if err != nil {
		return fault.NewDatabase("mark invoice canceled", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionConflict(ctx, tenantID, id, "cancelarse")
	}
	return nil
}

// SetArtifacts records the uploaded artifact URLs.
func (r *Repository) SetArtifacts(ctx context.Context, tenantID string, id uuid.UUID, pdfURL, xmlURL string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices
		SET pdf_url = $1, xml_url = $2
		WHERE tenant_id = $3 AND id = $4`,
		pdfURL, xmlURL, tenantID, id)
	if err != nil {
		return fault.NewDatabase("set invoice artifacts", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NewNotFound("factura", id.String())
	}
	return nil
}

// transitionConflict distinguishes a missing row from a row in the wrong
// status after a zero-row CAS update.
func (r *Repository) transitionConflict(ctx context.Context, tenantID string, id uuid.UUID, action string) error {
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT status FROM invoices WHERE tenant_id = $1 AND id = $2`,
		tenantID, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fault.NewNotFound("factura", id.String())
	}
	if err != nil {
		return fault.NewDatabase("select invoice status", err)
	}
	return fault.NewConflict(fmt.Sprintf("la factura tiene estado %s y no puede %s", status, action))
}

func (r *Repository) loadItems(ctx context.Context, invoiceID uuid.UUID) ([]invoice.LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT description, product_key, unit_key, quantity::text,
		       unit_price::text, discount::text, amount::text
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY position`,
		invoiceID)
	if err != nil {
		return nil, fault.NewDatabase("select invoice items", err)
	}
	defer rows.Close()

	var items []invoice.LineItem
	for rows.Next() {
		var item invoice.LineItem
		var quantity, unitPrice, discount, amount string
		err := rows.Scan(&item.Description, &item.ProductKey, &item.UnitKey,
			&quantity, &unitPrice, &discount, &amount)
		if err != nil {
			return nil, fault.NewDatabase("scan invoice item", err)
		}
		if item.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fault.NewDatabase("parse item quantity", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fault.NewDatabase("parse item unit price", err)
		}
		if item.Discount, err = decimal.NewFromString(discount); err != nil {
			return nil, fault.NewDatabase("parse item discount", err)
		}
		if item.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fault.NewDatabase("parse item amount", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.NewDatabase("iterate invoice items", err)
	}
	return items, nil
}

func scanInvoice(row pgx.Row) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	var subtotal, discount, tax, total, status string

	err := row.Scan(
		&inv.ID,
		&inv.TenantID,
		&inv.ReceiverID,
		&inv.Series,
		&inv.Folio,
		&inv.PaymentMethod,
		&inv.PaymentForm,
		&inv.CFDIUse,
		&subtotal,
		&discount,
		&tax,
		&total,
		&status,
		&inv.FiscalUUID,
		&inv.StampedAt,
		&inv.IssuedAt,
		&inv.PDFURL,
		&inv.XMLURL,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Status = invoice.Status(status)
	if inv.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, fmt.Errorf("parse subtotal: %w", err)
	}
	if inv.DiscountTotal, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("parse discount: %w", err)
	}
	if inv.TaxTotal, err = decimal.NewFromString(tax); err != nil {
		return nil, fmt.Errorf("parse tax: %w", err)
	}
	if inv.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	return &inv, nil
}
