// Package postgres persists payment complements and answers the balance
// queries the linker needs.
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
	"facturalo/ms_cfdi_core/internal/core/payment"
)

// Repository implements payment.Repository on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a payment repository over the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the complement and its related documents in one
// transaction.
func (r *Repository) Create(ctx context.Context, c *payment.Complement) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fault.NewDatabase("begin create payment", err)
	}
	defer tx.Rollback(ctx)

	for _, doc := range c.Related {
		if err := guardBalance(ctx, tx, c.TenantID, doc); err != nil {
			return err
		}
	}

	var fiscalUUID any
	if c.FiscalUUID != "" {
		fiscalUUID = c.FiscalUUID
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payment_complements (
			id, tenant_id, receiver_id, series, folio, payment_date,
			payment_form, amount, status, fiscal_uuid, stamped_at,
			pdf_url, xml_url, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID,
		c.TenantID,
		c.ReceiverID,
		c.Series,
		c.Folio,
		c.PaymentDate,
		c.PaymentForm,
		c.Amount.String(),
		c.Status,
		fiscalUUID,
		c.StampedAt,
		c.PDFURL,
		c.XMLURL,
		c.CreatedAt,
	)
	if err != nil {
		return fault.NewDatabase("insert payment complement", err)
	}

	for _, doc := range c.Related {
		_, err = tx.Exec(ctx, `
			INSERT INTO payment_related_documents (
				complement_id, invoice_id, invoice_fiscal_uuid, partiality,
				previous_balance, amount_paid, outstanding_balance
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID,
			doc.InvoiceID,
			doc.InvoiceFiscalUUID,
			doc.Partiality,
			doc.PreviousBalance.String(),
			doc.AmountPaid.String(),
			doc.OutstandingBalance.String(),
		)
		if err != nil {
			return fault.NewDatabase("insert related document", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fault.NewDatabase("commit create payment", err)
	}
	return nil
}

// guardBalance re-checks the invoice's outstanding balance under a row lock
// so two payments racing through the linker cannot together exceed the
// invoice total.
func guardBalance(ctx context.Context, tx pgx.Tx, tenantID string, doc payment.RelatedDocument) error {
	var rawTotal string
	err := tx.QueryRow(ctx, `
		SELECT total::text
		FROM invoices
		WHERE tenant_id = $1 AND id = $2
		FOR UPDATE`,
		tenantID, doc.InvoiceID,
	).Scan(&rawTotal)
	if errors.Is(err, pgx.ErrNoRows) {
		return fault.NewNotFound("factura", doc.InvoiceID.String())
	}
	if err != nil {
		return fault.NewDatabase("lock invoice for payment", err)
	}

	var rawPaid string
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(prd.amount_paid), 0)::text
		FROM payment_related_documents prd
		JOIN payment_complements pc ON pc.id = prd.complement_id
		WHERE pc.tenant_id = $1 AND prd.invoice_id = $2 AND pc.status = 'stamped'`,
		tenantID, doc.InvoiceID,
	).Scan(&rawPaid)
	if err != nil {
		return fault.NewDatabase("sum invoice payments", err)
	}

	total, err := decimal.NewFromString(rawTotal)
	if err != nil {
		return fault.NewDatabase("parse invoice total", err)
	}
	paid, err := decimal.NewFromString(rawPaid)
	if err != nil {
		return fault.NewDatabase("parse paid amount", err)
	}

	if paid.Add(doc.AmountPaid).GreaterThan(total) {
		return fault.NewConflict(fmt.Sprintf(
			"el pago de %s excede el saldo insoluto de la factura %s",
			doc.AmountPaid.StringFixed(2), doc.InvoiceID))
	}
	return nil
}

// Get loads one complement with its related documents, scoped to the tenant.
func (r *Repository) Get(ctx context.Context, tenantID string, id uuid.UUID) (*payment.Complement, error) {
	var c payment.Complement
	var amount string

	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, receiver_id, series, folio, payment_date,
		       payment_form, amount::text, status,
		       COALESCE(fiscal_uuid::text, ''), stamped_at,
		       pdf_url, xml_url, created_at
		FROM payment_complements
		WHERE tenant_id = $1 AND id = $2`,
		tenantID, id).Scan(
		&c.ID,
		&c.TenantID,
		&c.ReceiverID,
		&c.Series,
		&c.Folio,
		&c.PaymentDate,
		&c.PaymentForm,
		&amount,
		&c.Status,
		&c.FiscalUUID,
		&c.StampedAt,
		&c.PDFURL,
		&c.XMLURL,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NewNotFound("complemento de pago", id.String())
	}
	if err != nil {
		return nil, fault.NewDatabase("select payment complement", err)
	}

	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fault.NewDatabase("parse payment amount", err)
	}

	related, err := r.loadRelated(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Related = related
	return &c, nil
}

// PaidSoFar sums the amounts applied against an invoice across all stamped
// complements and returns the highest partiality number recorded.
func (r *Repository) PaidSoFar(ctx context.Context, tenantID string, invoiceID uuid.UUID) (decimal.Decimal, int, error) {
	var paid string
	var maxPartiality int

	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(d.amount_paid), 0)::text,
		       COALESCE(MAX(d.partiality), 0)
		FROM payment_related_documents d
		JOIN payment_complements c ON c.id = d.complement_id
		WHERE c.tenant_id = $1 AND d.invoice_id = $2 AND c.status = 'stamped'`,
		tenantID, invoiceID).Scan(&paid, &maxPartiality)
	if err != nil {
		return decimal.Zero, 0, fault.NewDatabase("sum payments", err)
	}

	total, err := decimal.NewFromString(paid)
	if err != nil {
		return decimal.Zero, 0, fault.NewDatabase("parse paid amount", fmt.Errorf("value %q: %w", paid, err))
	}
	return total, maxPartiality, nil
}

func (r *Repository) loadRelated(ctx context.Context, complementID uuid.UUID) ([]payment.RelatedDocument, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT invoice_id, invoice_fiscal_uuid::text, partiality,
		       previous_balance::text, amount_paid::text, outstanding_balance::text
		FROM payment_related_documents
		WHERE complement_id = $1
		ORDER BY id`,
		complementID)
	if err != nil {
		return nil, fault.NewDatabase("select related documents", err)
	}
	defer rows.Close()

	var docs []payment.RelatedDocument
	for rows.Next() {
		var doc payment.RelatedDocument
		var previous, paid, outstanding string
		err := rows.Scan(&doc.InvoiceID, &doc.InvoiceFiscalUUID, &doc.Partiality,
			&previous, &paid, &outstanding)
		if err != nil {
			return nil, fault.NewDatabase("scan related document", err)
		}
		if doc.PreviousBalance, err = decimal.NewFromString(previous); err != nil {
			return nil, fault.NewDatabase("parse previous balance", err)
		}
		if doc.AmountPaid, err = decimal.NewFromString(paid); err != nil {
			return nil, fault.NewDatabase("parse amount paid", err)
		}
		if doc.OutstandingBalance, err = decimal.NewFromString(outstanding); err != nil {
			return nil, fault.NewDatabase("parse outstanding balance", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.NewDatabase("iterate related documents", err)
	}
	return docs, nil
}
