package testutil

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"facturalo/ms_cfdi_core/internal/core/fault"
	"facturalo/ms_cfdi_core/internal/core/invoice"
	"facturalo/ms_cfdi_core/internal/core/party"
	"facturalo/ms_cfdi_core/internal/core/payment"
	"facturalo/ms_cfdi_core/internal/core/series"
)

// MockStamper implements invoice.Stamper with configurable behavior.
type MockStamper struct {
	StampFunc          func(ctx context.Context, unsignedXML []byte) (*invoice.StampProof, error)
	CancelDocumentFunc func(ctx context.Context, fiscalUUID, issuerRFC string) error
	StampCalls         int
	CancelCalls        int
}

func (m *MockStamper) Stamp(ctx context.Context, unsignedXML []byte) (*invoice.StampProof, error) {
	m.StampCalls++
	if m.StampFunc != nil {
		return m.StampFunc(ctx, unsignedXML)
	}
	return &invoice.StampProof{
		FiscalUUID: "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE",
		StampedAt:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		SignedXML:  []byte("<cfdi:Comprobante/>"),
	}, nil
}

func (m *MockStamper) CancelDocument(ctx context.Context, fiscalUUID, issuerRFC string) error {
	m.CancelCalls++
	if m.CancelDocumentFunc != nil {
		return m.CancelDocumentFunc(ctx, fiscalUUID, issuerRFC)
	}
	return nil
}

// MockInvoiceRepository is an in-memory invoice.Repository.
type MockInvoiceRepository struct {
	Invoices        map[uuid.UUID]*invoice.Invoice
	CreateErr       error
	MarkStampedErr  error
	MarkCanceledErr error
}

func NewMockInvoiceRepository() *MockInvoiceRepository {
	return &MockInvoiceRepository{Invoices: make(map[uuid.UUID]*invoice.Invoice)}
}

func (m *MockInvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	cp := *inv
	m.Invoices[inv.ID] = &cp
	return nil
}

func (m *MockInvoiceRepository) Get(ctx context.Context, tenantID string, id uuid.UUID) (*invoice.Invoice, error) {
	inv, ok := m.Invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, fault.NewNotFound("factura", id.String())
	}
	cp := *inv
	return &cp, nil
}

func (m *MockInvoiceRepository) MarkStamped(ctx context.Context, tenantID string, id uuid.UUID, proof invoice.StampProof) error {
	if m.MarkStampedErr != nil {
		return m.MarkStampedErr
	}
	inv, ok := m.Invoices[id]
	if !ok || inv.TenantID != tenantID {
		return fault.NewNotFound("factura", id.String())
	}
	if inv.Status != invoice.StatusDraft {
		return fault.NewConflict("la factura ya no es un borrador")
	}
	inv.Status = invoice.StatusStamped
	inv.FiscalUUID = proof.FiscalUUID
	stampedAt := proof.StampedAt
	inv.StampedAt = &stampedAt
	return nil
}

func (m *MockInvoiceRepository) MarkCanceled(ctx context.Context, tenantID string, id uuid.UUID) error {
	if m.MarkCanceledErr != nil {
		return m.MarkCanceledErr
	}
	inv, ok := m.Invoices[id]
	if !ok || inv.TenantID != tenantID {
		return fault.NewNotFound("factura", id.String())
	}
	if inv.Status != invoice.StatusStamped {
		return fault.NewConflict("la factura no está timbrada")
	}
	inv.Status = invoice.StatusCanceled
	return nil
}

func (m *MockInvoiceRepository) SetArtifacts(ctx context.Context, tenantID string, id uuid.UUID, pdfURL, xmlURL string) error {
	inv, ok := m.Invoices[id]
	if !ok || inv.TenantID != tenantID {
		return fault.NewNotFound("factura", id.String())
	}
	inv.PDFURL = pdfURL
	inv.XMLURL = xmlURL
	return nil
}

// MockSeriesAllocator implements series.Allocator with a running counter per
// series label.
type MockSeriesAllocator struct {
	NextFolioFunc func(ctx context.Context, tenantID, label string, docType series.DocumentType) (int64, error)
	counters      map[string]int64
}

func (m *MockSeriesAllocator) NextFolio(ctx context.Context, tenantID, label string, docType series.DocumentType) (int64, error) {
	if m.NextFolioFunc != nil {
		return m.NextFolioFunc(ctx, tenantID, label, docType)
	}
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	key := tenantID + "/" + label + "/" + string(docType)
	m.counters[key]++
	return m.counters[key], nil
}

// MockPartyRepository serves a fixed issuer and receiver set.
type MockPartyRepository struct {
	Issuer         *party.Issuer
	Receivers      map[uuid.UUID]*party.Receiver
	GetIssuerErr   error
	GetReceiverErr error
	IssuerCalls    int
}

func (m *MockPartyRepository) GetIssuer(ctx context.Context, tenantID string) (*party.Issuer, error) {
	m.IssuerCalls++
	if m.GetIssuerErr != nil {
		return nil, m.GetIssuerErr
	}
	if m.Issuer == nil || m.Issuer.TenantID != tenantID {
		return nil, fault.NewNotFound("emisor", tenantID)
	}
	return m.Issuer, nil
}

func (m *MockPartyRepository) GetReceiver(ctx context.Context, tenantID string, id uuid.UUID) (*party.Receiver, error) {
	if m.GetReceiverErr != nil {
		return nil, m.GetReceiverErr
	}
	r, ok := m.Receivers[id]
	if !ok || r.TenantID != tenantID {
		return nil, fault.NewNotFound("receptor", id.String())
	}
	return r, nil
}

// MockPaymentRepository is an in-memory payment.Repository.
type MockPaymentRepository struct {
	Payments  map[uuid.UUID]*payment.Complement
	CreateErr error
}

func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{Payments: make(map[uuid.UUID]*payment.Complement)}
}

func (m *MockPaymentRepository) Create(ctx context.Context, c *payment.Complement) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	cp := *c
	m.Payments[c.ID] = &cp
	return nil
}

func (m *MockPaymentRepository) Get(ctx context.Context, tenantID string, id uuid.UUID) (*payment.Complement, error) {
	c, ok := m.Payments[id]
	if !ok || c.TenantID != tenantID {
		return nil, fault.NewNotFound("complemento de pago", id.String())
	}
	cp := *c
	return &cp, nil
}

func (m *MockPaymentRepository) PaidSoFar(ctx context.Context, tenantID string, invoiceID uuid.UUID) (decimal.Decimal, int, error) {
	paid := decimal.Zero
	maxPartiality := 0
	for _, c := range m.Payments {
		if c.TenantID != tenantID {
			continue
		}
		for _, rd := range c.Related {
			if rd.InvoiceID != invoiceID {
				continue
			}
			paid = paid.Add(rd.AmountPaid)
			if rd.Partiality > maxPartiality {
				maxPartiality = rd.Partiality
			}
		}
	}
	return paid, maxPartiality, nil
}

// MockRenderer returns canned PDF bytes for both document kinds.
type MockRenderer struct {
	InvoiceErr  error
	PaymentErr  error
	RenderCalls int
}

func (m *MockRenderer) RenderInvoice(inv *invoice.Invoice, issuer *party.Issuer, receiver *party.Receiver) ([]byte, error) {
	m.RenderCalls++
	if m.InvoiceErr != nil {
		return nil, m.InvoiceErr
	}
	return []byte("%PDF-1.7 factura"), nil
}

func (m *MockRenderer) RenderPayment(c *payment.Complement, issuer *party.Issuer, receiver *party.Receiver) ([]byte, error) {
	m.RenderCalls++
	if m.PaymentErr != nil {
		return nil, m.PaymentErr
	}
	return []byte("%PDF-1.7 pago"), nil
}

// MockArtifactStore records uploads in memory.
type MockArtifactStore struct {
	Uploads   map[string][]byte
	UploadErr error
}

func NewMockArtifactStore() *MockArtifactStore {
	return &MockArtifactStore{Uploads: make(map[string][]byte)}
}

func (m *MockArtifactStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	m.Uploads[key] = data
	return "https://artifacts.test/" + key, nil
}
