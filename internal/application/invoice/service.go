package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"facturalo/ms_cfdi_core/internal/core/billing"
	"facturalo/ms_cfdi_core/internal/core/cfdi"
	"facturalo/ms_cfdi_core/internal/core/fault"
	"facturalo/ms_cfdi_core/internal/core/invoice"
	"facturalo/ms_cfdi_core/internal/core/party"
	"facturalo/ms_cfdi_core/internal/core/series"
	"facturalo/ms_cfdi_core/internal/infrastructure/cache"
)

// Renderer produces the printable representation of an invoice.
type Renderer interface {
	RenderInvoice(inv *invoice.Invoice, issuer *party.Issuer, receiver *party.Receiver) ([]byte, error)
}

// ArtifactStore uploads stamped artifacts and returns their public URL.
type ArtifactStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Service orchestrates the invoice issuance pipeline: draft creation, folio
// allocation, stamping against the PAC and representation rendering.
type Service struct {
	invoices    invoice.Repository
	allocator   series.Allocator
	parties     party.Repository
	stamper     invoice.Stamper
	renderer    Renderer
	store       ArtifactStore
	issuerCache *cache.TTLCache[*party.Issuer]
	log         *slog.Logger
	now         func() time.Time
}

// NewService wires the issuance pipeline. store may be nil, in which case
// stamped artifacts are not uploaded and the document keeps empty URLs.
func NewService(
	invoices invoice.Repository,
	allocator series.Allocator,
	parties party.Repository,
	stamper invoice.Stamper,
	renderer Renderer,
	store ArtifactStore,
	issuerCacheTTL time.Duration,
	log *slog.Logger,
) *Service {
	return &Service{
		invoices:    invoices,
		allocator:   allocator,
		parties:     parties,
		stamper:     stamper,
		renderer:    renderer,
		store:       store,
		issuerCache: cache.NewTTLCache[*party.Issuer](issuerCacheTTL),
		log:         log,
		now:         time.Now,
	}
}

// CreateDraftInput is the payload for a new draft invoice.
type CreateDraftInput struct {
	ReceiverID    uuid.UUID        `json:"receptorId"`
	Series        string           `json:"serie"`
	PaymentMethod string           `json:"metodoPago"`
	PaymentForm   string           `json:"formaPago"`
	CFDIUse       string           `json:"usoCFDI"`
	Items         []DraftItemInput `json:"conceptos"`
}

// DraftItemInput is one concept of a draft invoice.
type DraftItemInput struct {
	Description string          `json:"descripcion"`
	ProductKey  string          `json:"claveProdServ"`
	UnitKey     string          `json:"claveUnidad"`
	Quantity    decimal.Decimal `json:"cantidad"`
	UnitPrice   decimal.Decimal `json:"valorUnitario"`
	Discount    decimal.Decimal `json:"descuento"`
}

// CreateDraft validates the payload, computes totals, allocates the next
// folio for the tenant's series and persists the draft.
func (s *Service) CreateDraft(ctx context.Context, tenantID string, input CreateDraftInput) (*invoice.Invoice, error) {
	if err := validateDraftInput(input); err != nil {
		return nil, err
	}

	receiver, err := s.parties.GetReceiver(ctx, tenantID, input.ReceiverID)
	if err != nil {
		return nil, err
	}

	cfdiUse := input.CFDIUse
	if cfdiUse == "" {
		cfdiUse = receiver.CFDIUse
	}

	lines := make([]billing.Line, len(input.Items))
	for i, item := range input.Items {
		lines[i] = billing.Line{
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Discount:  item.Discount,
		}
	}

	totals, err := billing.Calculate(lines)
	if err != nil {
		return nil, err
	}

	folio, err := s.allocator.NextFolio(ctx, tenantID, input.Series, series.TypeInvoice)
	if err != nil {
		return nil, err
	}

	items := make([]invoice.LineItem, len(input.Items))
	for i, item := range input.Items {
		items[i] = invoice.LineItem{
			Description: item.Description,
			ProductKey:  item.ProductKey,
			UnitKey:     item.UnitKey,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			Amount:      billing.LineAmount(lines[i]),
		}
	}

	now := s.now()
	inv := &invoice.Invoice{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ReceiverID:    input.ReceiverID,
		Series:        input.Series,
		Folio:         folio,
		PaymentMethod: input.PaymentMethod,
		PaymentForm:   input.PaymentForm,
		CFDIUse:       cfdiUse,
		Items:         items,
		Subtotal:      totals.Subtotal,
		DiscountTotal: totals.DiscountTotal,
		TaxTotal:      totals.Tax,
		Total:         totals.Total,
		Status:        invoice.StatusDraft,
		IssuedAt:      now,
		CreatedAt:     now,
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.log.Info("draft invoice created",
		"invoice_id", inv.ID,
		"tenant_id", tenantID,
		"serie", inv.Series,
		"folio", inv.Folio,
		"total", inv.Total.StringFixed(2),
	)

	return inv, nil
}

// Get fetches an invoice scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID string, id uuid.UUID) (*invoice.Invoice, error) {
	return s.invoices.Get(ctx, tenantID, id)
}

// Stamp assembles the canonical document, submits it to the PAC and records
// the fiscal proof. The status transition is a compare-and-set on draft, so a
// concurrent second stamping of the same invoice fails with a conflict.
// Artifact upload happens after the stamp is durable; upload failures are
// logged but never undo a successful stamping.
func (s *Service) Stamp(ctx context.Context, tenantID string, id uuid.UUID) (*invoice.Invoice, error) {
	inv, err := s.invoices.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if inv.Status != invoice.StatusDraft {
		return nil, fault.NewConflict(fmt.Sprintf("la factura tiene estado %s, solo un borrador puede timbrarse", inv.Status))
	}

	issuer, err := s.issuer(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	receiver, err := s.parties.GetReceiver(ctx, tenantID, inv.ReceiverID)
	if err != nil {
		return nil, err
	}

	unsignedXML, err := cfdi.AssembleInvoice(inv, issuer, receiver)
	if err != nil {
		return nil, err
	}

	proof, err := s.stamper.Stamp(ctx, unsignedXML)
	if err != nil {
		return nil, err
	}

	if err := s.invoices.MarkStamped(ctx, tenantID, id, *proof); err != nil {
		return nil, err
	}

	inv.Status = invoice.StatusStamped
	inv.FiscalUUID = proof.FiscalUUID
	stampedAt := proof.StampedAt
	inv.StampedAt = &stampedAt

	s.log.Info("invoice stamped",
		"invoice_id", inv.ID,
		"tenant_id", tenantID,
		"fiscal_uuid", inv.FiscalUUID,
	)

	s.uploadArtifacts(ctx, inv, issuer, receiver, proof.SignedXML)

	return inv, nil
}

// Cancel propagates the cancellation to the PAC and then records the local
// transition. Only stamped invoices can be canceled.
func (s *Service) Cancel(ctx context.Context, tenantID string, id uuid.UUID) (*invoice.Invoice, error) {
	inv, err := s.invoices.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if inv.Status != invoice.StatusStamped {
		return nil, fault.NewConflict(fmt.Sprintf("la factura tiene estado %s, solo un documento timbrado puede cancelarse", inv.Status))
	}

	issuer, err := s.issuer(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if err := s.stamper.CancelDocument(ctx, inv.FiscalUUID, issuer.RFC); err != nil {
		return nil, err
	}

	if err := s.invoices.MarkCanceled(ctx, tenantID, id); err != nil {
		return nil, err
	}

	inv.Status = invoice.StatusCanceled

	s.log.Info("invoice canceled",
		"invoice_id", inv.ID,
		"tenant_id", tenantID,
		"fiscal_uuid", inv.FiscalUUID,
	)

	return inv, nil
}

// RenderPDF produces the current printable representation. Drafts render with
// the no-fiscal-validity banner, stamped documents with the fiscal block and
// verification QR.
func (s *Service) RenderPDF(ctx context.Context, tenantID string, id uuid.UUID) ([]byte, error) {
	inv, err := s.invoices.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	issuer, err := s.issuer(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	receiver, err := s.parties.GetReceiver(ctx, tenantID, inv.ReceiverID)
	if err != nil {
		return nil, err
	}

	return s.renderer.RenderInvoice(inv, issuer, receiver)
}

func (s *Service) issuer(ctx context.Context, tenantID string) (*party.Issuer, error) {
	if cached, ok := s.issuerCache.Get(tenantID); ok {
		return cached, nil
	}

	issuer, err := s.parties.GetIssuer(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	s.issuerCache.Set(tenantID, issuer)
	return issuer, nil
}

func (s *Service) uploadArtifacts(ctx context.Context, inv *invoice.Invoice, issuer *party.Issuer, receiver *party.Receiver, signedXML []byte) {
	if s.store == nil {
		return
	}

	keyBase := fmt.Sprintf("%s/facturas/%s", inv.TenantID, inv.ID)

	xmlURL, err := s.store.Upload(ctx, keyBase+".xml", "application/xml", signedXML)
	if err != nil {
		s.log.Error("failed to upload stamped XML", "invoice_id", inv.ID, "error", err)
		return
	}

	pdfBytes, err := s.renderer.RenderInvoice(inv, issuer, receiver)
	if err != nil {
		s.log.Error("failed to render stamped PDF", "invoice_id", inv.ID, "error", err)
		return
	}

	pdfURL, err := s.store.Upload(ctx, keyBase+".pdf", "application/pdf", pdfBytes)
	if err != nil {
		s.log.Error("failed to upload stamped PDF", "invoice_id", inv.ID, "error", err)
		return
	}

	if err := s.invoices.SetArtifacts(ctx, inv.TenantID, inv.ID, pdfURL, xmlURL); err != nil {
		s.log.Error("failed to record artifact URLs", "invoice_id", inv.ID, "error", err)
		return
	}

	inv.PDFURL = pdfURL
	inv.XMLURL = xmlURL
}

func validateDraftInput(input CreateDraftInput) error {
	if input.ReceiverID == uuid.Nil {
		return fault.NewValidation("receptorId", "es requerido")
	}
	if strings.TrimSpace(input.Series) == "" {
		return fault.NewValidation("serie", "es requerida")
	}
	if input.PaymentMethod != "PUE" && input.PaymentMethod != "PPD" {
		return fault.NewValidation("metodoPago", "debe ser PUE o PPD")
	}
	if strings.TrimSpace(input.PaymentForm) == "" {
		return fault.NewValidation("formaPago", "es requerida")
	}
	if len(input.Items) == 0 {
		return fault.NewValidation("conceptos", "debe incluir al menos un concepto")
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.Description) == "" {
			return fault.NewValidation(fmt.Sprintf("conceptos[%d].descripcion", i), "es requerida")
		}
		if strings.TrimSpace(item.ProductKey) == "" {
			return fault.NewValidation(fmt.Sprintf("conceptos[%d].claveProdServ", i), "es requerida")
		}
		if strings.TrimSpace(item.UnitKey) == "" {
			return fault.NewValidation(fmt.Sprintf("conceptos[%d].claveUnidad", i), "es requerida")
		}
		if item.Quantity.LessThanOrEqual(decimal.Zero) {
			return fault.NewValidation(fmt.Sprintf("conceptos[%d].cantidad", i), "debe ser mayor a cero")
		}
	}
	return nil
}
