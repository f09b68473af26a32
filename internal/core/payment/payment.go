// Package payment models payment complements (REP) and their partial-payment
// balance tracking against previously issued deferred-payment invoices.
package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Complement is a payment document associating one payment event with one or
// more pending invoices.
type Complement struct {
	ID          uuid.UUID         `json:"id"`
	TenantID    string            `json:"tenantId"`
	ReceiverID  uuid.UUID         `json:"receiverId"`
	Series      string            `json:"serie"`
	Folio       int64             `json:"folio"`
	PaymentDate time.Time         `json:"fechaPago"`
	PaymentForm string            `json:"formaPago"`
	Amount      decimal.Decimal   `json:"monto"`
	Related     []RelatedDocument `json:"documentosRelacionados"`
	Status      string            `json:"estado"`
	FiscalUUID  string            `json:"folioFiscal,omitempty"`
	StampedAt   *time.Time        `json:"fechaTimbrado,omitempty"`
	PDFURL      string            `json:"urlPDF,omitempty"`
	XMLURL      string            `json:"urlXML,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// RelatedDocument applies part of the payment to a single invoice. For a
// given invoice the amounts paid across all partialities never exceed the
// invoice total, and outstanding = previous balance − amount paid.
type RelatedDocument struct {
	InvoiceID          uuid.UUID       `json:"facturaId"`
	InvoiceFiscalUUID  string          `json:"folioFiscalFactura"`
	Partiality         int             `json:"parcialidad"`
	PreviousBalance    decimal.Decimal `json:"saldoAnterior"`
	AmountPaid         decimal.Decimal `json:"importePagado"`
	OutstandingBalance decimal.Decimal `json:"saldoInsoluto"`
}

// Repository persists payment complements and answers balance queries.
type Repository interface {
	Create(ctx context.Context, c *Complement) error
	Get(ctx context.Context, tenantID string, id uuid.UUID) (*Complement, error)
	// PaidSoFar returns the accumulated amount paid and the highest
	// partiality number recorded against an invoice.
	PaidSoFar(ctx context.Context, tenantID string, invoiceID uuid.UUID) (decimal.Decimal, int, error)
}
