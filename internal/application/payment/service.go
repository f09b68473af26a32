// Package payment implements the payment complement (REP) use cases.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"facturalo/ms_cfdi_core/internal/core/cfdi"
	"facturalo/ms_cfdi_core/internal/core/fault"
	"facturalo/ms_cfdi_core/internal/core/invoice"
	"facturalo/ms_cfdi_core/internal/core/party"
	"facturalo/ms_cfdi_core/internal/core/payment"
	"facturalo/ms_cfdi_core/internal/core/series"
)

// Renderer produces the printable representation of a payment complement.
type Renderer interface {
	RenderPayment(c *payment.Complement, issuer *party.Issuer, receiver *party.Receiver) ([]byte, error)
}

// ArtifactStore uploads stamped artifacts and returns their public URL.
type ArtifactStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Service creates payment complements against stamped deferred-payment
// invoices, tracking partialities and outstanding balances.
type Service struct {
	payments  payment.Repository
	invoices  invoice.Repository
	allocator series.Allocator
	parties   party.Repository
	stamper   invoice.Stamper
	renderer  Renderer
	store     ArtifactStore
	log       *slog.Logger
	now       func() time.Time
}

// NewService wires the payment complement pipeline. store may be nil.
func NewService(
	payments payment.Repository,
	invoices invoice.Repository,
	allocator series.Allocator,
	parties party.Repository,
	stamper invoice.Stamper,
	renderer Renderer,
	store ArtifactStore,
	log *slog.Logger,
) *Service {
	return &Service{
		payments:  payments,
		invoices:  invoices,
		allocator: allocator,
		parties:   parties,
		stamper:   stamper,
		renderer:  renderer,
		store:     store,
		log:       log,
		now:       time.Now,
	}
}

// ApplicationInput applies part of the payment to one invoice.
type ApplicationInput struct {
	InvoiceID uuid.UUID       `json:"facturaId"`
	Amount    decimal.Decimal `json:"importePagado"`
}

// CreateInput is the payload for registering a payment.
type CreateInput struct {
	ReceiverID   uuid.UUID          `json:"receptorId"`
	Series       string             `json:"serie"`
	PaymentDate  time.Time          `json:"fechaPago"`
	PaymentForm  string             `json:"formaPago"`
	Applications []ApplicationInput `json:"documentosRelacionados"`
}

// Create registers a payment against one or more stamped PPD invoices,
// stamps the resulting complement and persists it. Each application gets the
// next partiality number for its invoice; an amount above the invoice's
// outstanding balance is rejected.
func (s *Service) Create(ctx context.Context, tenantID string, input CreateInput) (*payment.Complement, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	receiver, err := s.parties.GetReceiver(ctx, tenantID, input.ReceiverID)
	if err != nil {
		return nil, err
	}

	related := make([]payment.RelatedDocument, 0, len(input.Applications))
	total := decimal.Zero
	// Running tally of what this request already applies per invoice, so a
	// single payment referencing the same invoice twice cannot exceed its
	// outstanding balance and each application gets its own partiality.
	inRequest := make(map[uuid.UUID]appliedSoFar, len(input.Applications))
	for i, app := range input.Applications {
		doc, err := s.buildRelatedDocument(ctx, tenantID, input.ReceiverID, i, app, inRequest[app.InvoiceID])
		if err != nil {
			return nil, err
		}
		prior := inRequest[app.InvoiceID]
		inRequest[app.InvoiceID] = appliedSoFar{
			amount: prior.amount.Add(doc.AmountPaid),
			count:  prior.count + 1,
		}
		related = append(related, *doc)
		total = total.Add(doc.AmountPaid)
	}

	folio, err := s.allocator.NextFolio(ctx, tenantID, input.Series, series.TypePayment)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := &payment.Complement{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ReceiverID:  input.ReceiverID,
		Series:      input.Series,
		Folio:       folio,
		PaymentDate: input.PaymentDate,
		PaymentForm: input.PaymentForm,
		Amount:      total,
		Related:     related,
		Status:      string(invoice.StatusDraft),
		CreatedAt:   now,
	}

	issuer, err := s.parties.GetIssuer(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	unsignedXML, err := cfdi.AssemblePayment(c, issuer, receiver)
	if err != nil {
		return nil, err
	}

	proof, err := s.stamper.Stamp(ctx, unsignedXML)
	if err != nil {
		return nil, err
	}

	c.Status = string(invoice.StatusStamped)
	c.FiscalUUID = proof.FiscalUUID
	stampedAt := proof.StampedAt
	c.StampedAt = &stampedAt

	// upload first so the persisted row already carries the artifact URLs
	s.uploadArtifacts(ctx, c, issuer, receiver, proof.SignedXML)

	if err := s.payments.Create(ctx, c); err != nil {
		return nil, err
	}

	s.log.Info("payment complement stamped",
		"payment_id", c.ID,
		"tenant_id", tenantID,
		"fiscal_uuid", c.FiscalUUID,
		"monto", c.Amount.StringFixed(2),
	)

	return c, nil
}

// Get fetches a payment complement scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID string, id uuid.UUID) (*payment.Complement, error) {
	return s.payments.Get(ctx, tenantID, id)
}

// RenderPDF produces the printable representation of a payment complement.
func (s *Service) RenderPDF(ctx context.Context, tenantID string, id uuid.UUID) ([]byte, error) {
	c, err := s.payments.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	issuer, err := s.parties.GetIssuer(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	receiver, err := s.parties.GetReceiver(ctx, tenantID, c.ReceiverID)
	if err != nil {
		return nil, err
	}

	return s.renderer.RenderPayment(c, issuer, receiver)
}

// appliedSoFar tracks the amount and application count a request has already
// directed at one invoice before the current application is evaluated.
type appliedSoFar struct {
	amount decimal.Decimal
	count  int
}

func (s *Service) buildRelatedDocument(ctx context.Context, tenantID string, receiverID uuid.UUID, position int, app ApplicationInput, prior appliedSoFar) (*payment.RelatedDocument, error) {
	field := fmt.Sprintf("documentosRelacionados[%d]", position)

	inv, err := s.invoices.Get(ctx, tenantID, app.InvoiceID)
	if err != nil {
		return nil, err
	}

	if inv.ReceiverID != receiverID {
		return nil, fault.NewValidation(field+".facturaId", "la factura pertenece a otro receptor")
	}
	if inv.Status != invoice.StatusStamped {
		return nil, fault.NewConflict(fmt.Sprintf("la factura %s no está timbrada", inv.ID))
	}
	if !inv.IsDeferred() {
		return nil, fault.NewConflict(fmt.Sprintf("la factura %s no es PPD, no admite complementos de pago", inv.ID))
	}

	paid, maxPartiality, err := s.payments.PaidSoFar(ctx, tenantID, app.InvoiceID)
	if err != nil {
		return nil, err
	}

	previousBalance := inv.Total.Sub(paid).Sub(prior.amount)
	if previousBalance.LessThanOrEqual(decimal.Zero) {
		return nil, fault.NewValidation(field+".importePagado",
			fmt.Sprintf("la factura %s ya está pagada en su totalidad", inv.ID))
	}
	if app.Amount.GreaterThan(previousBalance) {
		return nil, fault.NewValidation(field+".importePagado",
			fmt.Sprintf("excede el saldo insoluto de %s", previousBalance.StringFixed(2)))
	}

	return &payment.RelatedDocument{
		InvoiceID:          inv.ID,
		InvoiceFiscalUUID:  inv.FiscalUUID,
		Partiality:         maxPartiality + prior.count + 1,
		PreviousBalance:    previousBalance,
		AmountPaid:         app.Amount,
		OutstandingBalance: previousBalance.Sub(app.Amount),
	}, nil
}

func (s *Service) uploadArtifacts(ctx context.Context, c *payment.Complement, issuer *party.Issuer, receiver *party.Receiver, signedXML []byte) {
	if s.store == nil {
		return
	}

	keyBase := fmt.Sprintf("%s/pagos/%s", c.TenantID, c.ID)

	xmlURL, err := s.store.Upload(ctx, keyBase+".xml", "application/xml", signedXML)
	if err != nil {
		s.log.Error("failed to upload stamped XML", "payment_id", c.ID, "error", err)
		return
	}

	pdfBytes, err := s.renderer.RenderPayment(c, issuer, receiver)
	if err != nil {
		s.log.Error("failed to render stamped PDF", "payment_id", c.ID, "error", err)
		return
	}

	pdfURL, err := s.store.Upload(ctx, keyBase+".pdf", "application/pdf", pdfBytes)
	if err != nil {
		s.log.Error("failed to upload stamped PDF", "payment_id", c.ID, "error", err)
		return
	}

	c.PDFURL = pdfURL
	c.XMLURL = xmlURL
}

func validateCreateInput(input CreateInput) error {
	if input.ReceiverID == uuid.Nil {
		return fault.NewValidation("receptorId", "es requerido")
	}
	if strings.TrimSpace(input.Series) == "" {
		return fault.NewValidation("serie", "es requerida")
	}
	if input.PaymentDate.IsZero() {
		return fault.NewValidation("fechaPago", "es requerida")
	}
	if strings.TrimSpace(input.PaymentForm) == "" {
		return fault.NewValidation("formaPago", "es requerida")
	}
	if len(input.Applications) == 0 {
		return fault.NewValidation("documentosRelacionados", "debe incluir al menos una factura")
	}
	for i, app := range input.Applications {
		field := fmt.Sprintf("documentosRelacionados[%d]", i)
		if app.InvoiceID == uuid.Nil {
			return fault.NewValidation(field+".facturaId", "es requerido")
		}
		if app.Amount.LessThanOrEqual(decimal.Zero) {
			return fault.NewValidation(field+".importePagado", "debe ser mayor a cero")
		}
	}
	return nil
}
