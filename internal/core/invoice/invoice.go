// Package invoice holds the invoice aggregate and its lifecycle rules.
package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a fiscal document.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusStamped  Status = "stamped"
	StatusCanceled Status = "canceled"
)

// CanTransition reports whether moving from one status to another is legal.
// draft → stamped and stamped → canceled are the only permitted transitions;
// canceled is terminal and a draft can never be canceled directly.
func CanTransition(from, to Status) bool {
	switch {
	case from == StatusDraft && to == StatusStamped:
		return true
	case from == StatusStamped && to == StatusCanceled:
		return true
	default:
		return false
	}
}

// Invoice is a fiscal document issued by a tenant to one of its clients.
type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      string          `json:"tenantId"`
	ReceiverID    uuid.UUID       `json:"receiverId"`
	Series        string          `json:"serie"`
	Folio         int64           `json:"folio"`
	PaymentMethod string          `json:"metodoPago"` // PUE (single payment) or PPD (deferred)
	PaymentForm   string          `json:"formaPago"`
	CFDIUse       string          `json:"usoCFDI"`
	Items         []LineItem      `json:"conceptos"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"descuento"`
	TaxTotal      decimal.Decimal `json:"impuestos"`
	Total         decimal.Decimal `json:"total"`
	Status        Status          `json:"estado"`
	FiscalUUID    string          `json:"folioFiscal,omitempty"`
	StampedAt     *time.Time      `json:"fechaTimbrado,omitempty"`
	IssuedAt      time.Time       `json:"fechaEmision"`
	PDFURL        string          `json:"urlPDF,omitempty"`
	XMLURL        string          `json:"urlXML,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// IsDeferred reports whether the invoice uses deferred payment terms and is
// therefore eligible for payment complements.
func (i Invoice) IsDeferred() bool {
	return i.PaymentMethod == "PPD"
}

// LineItem is a single concept of an invoice. Owned exclusively by its
// invoice and destroyed with it.
type LineItem struct {
	Description string          `json:"descripcion"`
	ProductKey  string          `json:"claveProdServ"`
	UnitKey     string          `json:"claveUnidad"`
	Quantity    decimal.Decimal `json:"cantidad"`
	UnitPrice   decimal.Decimal `json:"valorUnitario"`
	Discount    decimal.Decimal `json:"descuento"`
	Amount      decimal.Decimal `json:"importe"`
}

// StampProof carries the data a successful stamping produces. UUID and
// stamped-at are always written together with the status change.
type StampProof struct {
	FiscalUUID string
	StampedAt  time.Time
	SignedXML  []byte
}

// Repository persists invoices. Status mutations are atomic: MarkStamped is a
// compare-and-set guarded on the stored status still being draft, and
// MarkCanceled on it being stamped; both return a ConflictError otherwise.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, tenantID string, id uuid.UUID) (*Invoice, error)
	MarkStamped(ctx context.Context, tenantID string, id uuid.UUID, proof StampProof) error
	MarkCanceled(ctx context.Context, tenantID string, id uuid.UUID) error
	SetArtifacts(ctx context.Context, tenantID string, id uuid.UUID, pdfURL, xmlURL string) error
}
