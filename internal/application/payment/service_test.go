package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"facturalo/ms_cfdi_core/internal/core/fault"
	coreinvoice "facturalo/ms_cfdi_core/internal/core/invoice"
	"facturalo/ms_cfdi_core/internal/core/party"
	"facturalo/ms_cfdi_core/internal/testutil"
)

const testTenant = "tenant-azteca"

var (
	testReceiverID = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	testInvoiceID  = uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")
)

type fixture struct {
	svc      *Service
	payments *testutil.MockPaymentRepository
	invoices *testutil.MockInvoiceRepository
	stamper  *testutil.MockStamper
}

func newFixture() *fixture {
	payments := testutil.NewMockPaymentRepository()
	invoices := testutil.NewMockInvoiceRepository()
	stamper := &testutil.MockStamper{}
	parties := &testutil.MockPartyRepository{
		Issuer: &party.Issuer{
			TenantID:   testTenant,
			RFC:        "EKU9003173C9",
			Name:       "ESCUELA KEMPER URGATE",
			TaxRegime:  "601",
			PostalCode: "42501",
		},
		Receivers: map[uuid.UUID]*party.Receiver{
			testReceiverID: {
				ID:         testReceiverID,
				TenantID:   testTenant,
				RFC:        "XIN06112344A",
				Name:       "XENON INDUSTRIAL ARTICLES",
				TaxRegime:  "601",
				PostalCode: "76343",
				CFDIUse:    "G03",
			},
		},
	}

	stampedAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	invoices.Invoices[testInvoiceID] = &coreinvoice.Invoice{
		ID:            testInvoiceID,
		TenantID:      testTenant,
		ReceiverID:    testReceiverID,
		Series:        "A",
		Folio:         12,
		PaymentMethod: "PPD",
		PaymentForm:   "99",
		Total:         decimal.NewFromInt(10000),
		Status:        coreinvoice.StatusStamped,
		FiscalUUID:    "11111111-2222-3333-4444-555555555555",
		StampedAt:     &stampedAt,
	}

	svc := NewService(
		payments,
		invoices,
		&testutil.MockSeriesAllocator{},
		parties,
		stamper,
		&testutil.MockRenderer{},
		testutil.NewMockArtifactStore(),
		testutil.NewNullLogger(),
	)
	return &fixture{svc: svc, payments: payments, invoices: invoices, stamper: stamper}
}

func validCreateInput(amount int64) CreateInput {
	return CreateInput{
		ReceiverID:  testReceiverID,
		Series:      "P",
		PaymentDate: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
		PaymentForm: "03",
		Applications: []ApplicationInput{
			{InvoiceID: testInvoiceID, Amount: decimal.NewFromInt(amount)},
		},
	}
}

func TestCreate_FirstPartiality(t *testing.T) {
	f := newFixture()

	c, err := f.svc.Create(context.Background(), testTenant, validCreateInput(4000))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if c.Status != string(coreinvoice.StatusStamped) {
		t.Errorf("status = %s, want stamped", c.Status)
	}
	if c.FiscalUUID == "" {
		t.Error("expected a fiscal UUID")
	}
	if c.Folio != 1 {
		t.Errorf("folio = %d, want 1", c.Folio)
	}
	if got, want := c.Amount.StringFixed(2), "4000.00"; got != want {
		t.Errorf("monto = %s, want %s", got, want)
	}

	if len(c.Related) != 1 {
		t.Fatalf("related documents = %d, want 1", len(c.Related))
	}
	rd := c.Related[0]
	if rd.Partiality != 1 {
		t.Errorf("parcialidad = %d, want 1", rd.Partiality)
	}
	if got, want := rd.PreviousBalance.StringFixed(2), "10000.00"; got != want {
		t.Errorf("saldoAnterior = %s, want %s", got, want)
	}
	if got, want := rd.OutstandingBalance.StringFixed(2), "6000.00"; got != want {
		t.Errorf("saldoInsoluto = %s, want %s", got, want)
	}
	if rd.InvoiceFiscalUUID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("folioFiscalFactura = %s", rd.InvoiceFiscalUUID)
	}

	if _, ok := f.payments.Payments[c.ID]; !ok {
		t.Error("complement was not persisted")
	}
}

func TestCreate_SecondPartialityTracksBalance(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Create(context.Background(), testTenant, validCreateInput(4000)); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	c, err := f.svc.Create(context.Background(), testTenant, validCreateInput(6000))
	if err != nil {
		t.Fatalf("second Create() error = %v", err)
	}

	rd := c.Related[0]
	if rd.Partiality != 2 {
		t.Errorf("parcialidad = %d, want 2", rd.Partiality)
	}
	if got, want := rd.PreviousBalance.StringFixed(2), "6000.00"; got != want {
		t.Errorf("saldoAnterior = %s, want %s", got, want)
	}
	if !rd.OutstandingBalance.IsZero() {
		t.Errorf("saldoInsoluto = %s, want 0", rd.OutstandingBalance)
	}
}

func TestCreate_RejectsOverPayment(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Create(context.Background(), testTenant, validCreateInput(9500)); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	_, err := f.svc.Create(context.Background(), testTenant, validCreateInput(1000))

	var verr *fault.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Field != "documentosRelacionados[0].importePagado" {
		t.Errorf("field = %s", verr.Field)
	}
	if f.stamper.StampCalls != 1 {
		t.Errorf("stamp calls = %d, want 1 (over-payment never reaches the provider)", f.stamper.StampCalls)
	}
}

func TestCreate_RejectsFullyPaidInvoice(t *testing.T) {
	f := newFixture()

	if _, err := f.svc.Create(context.Background(), testTenant, validCreateInput(10000)); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	_, err := f.svc.Create(context.Background(), testTenant, validCreateInput(1))

	var verr *fault.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Field != "documentosRelacionados[0].importePagado" {
		t.Errorf("field = %s", verr.Field)
	}
}

func TestCreate_SameInvoiceTwiceInOneRequest(t *testing.T) {
	f := newFixture()

	input := validCreateInput(6000)
	input.Applications = append(input.Applications,
		ApplicationInput{InvoiceID: testInvoiceID, Amount: decimal.NewFromInt(4000)})

	c, err := f.svc.Create(context.Background(), testTenant, input)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if len(c.Related) != 2 {
		t.Fatalf("related documents = %d, want 2", len(c.Related))
	}
	first, second := c.Related[0], c.Related[1]
	if first.Partiality != 1 || second.Partiality != 2 {
		t.Errorf("parcialidades = %d, %d, want 1, 2", first.Partiality, second.Partiality)
	}
	if got, want := second.PreviousBalance.StringFixed(2), "4000.00"; got != want {
		t.Errorf("saldoAnterior de la segunda aplicación = %s, want %s", got, want)
	}
	if !second.OutstandingBalance.IsZero() {
		t.Errorf("saldoInsoluto = %s, want 0", second.OutstandingBalance)
	}
}

func TestCreate_SameInvoiceTwiceCannotExceedTotal(t *testing.T) {
	f := newFixture()

	input := validCreateInput(6000)
	input.Applications = append(input.Applications,
		ApplicationInput{InvoiceID: testInvoiceID, Amount: decimal.NewFromInt(6000)})

	_, err := f.svc.Create(context.Background(), testTenant, input)

	var verr *fault.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Field != "documentosRelacionados[1].importePagado" {
		t.Errorf("field = %s", verr.Field)
	}
	if f.stamper.StampCalls != 0 {
		t.Errorf("stamper called %d times, want 0", f.stamper.StampCalls)
	}
	if len(f.payments.Payments) != 0 {
		t.Error("no complement should be persisted")
	}
}

func TestCreate_SameInvoiceTwiceExhaustedBalance(t *testing.T) {
	f := newFixture()

	input := validCreateInput(10000)
	input.Applications = append(input.Applications,
		ApplicationInput{InvoiceID: testInvoiceID, Amount: decimal.NewFromInt(1)})

	_, err := f.svc.Create(context.Background(), testTenant, input)

	var verr *fault.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Field != "documentosRelacionados[1].importePagado" {
		t.Errorf("field = %s", verr.Field)
	}
}

func TestCreate_RejectsNonEligibleInvoices(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*coreinvoice.Invoice)
	}{
		{
			name:   "draft invoice",
			mutate: func(inv *coreinvoice.Invoice) { inv.Status = coreinvoice.StatusDraft; inv.FiscalUUID = "" },
		},
		{
			name:   "canceled invoice",
			mutate: func(inv *coreinvoice.Invoice) { inv.Status = coreinvoice.StatusCanceled },
		},
		{
			name:   "single-payment invoice",
			mutate: func(inv *coreinvoice.Invoice) { inv.PaymentMethod = "PUE" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.mutate(f.invoices.Invoices[testInvoiceID])

			_, err := f.svc.Create(context.Background(), testTenant, validCreateInput(1000))

			var conflict *fault.ConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("error = %v, want ConflictError", err)
			}
			if f.stamper.StampCalls != 0 {
				t.Errorf("stamp calls = %d, want 0", f.stamper.StampCalls)
			}
		})
	}
}

func TestCreate_RejectsForeignReceiverInvoice(t *testing.T) {
	f := newFixture()
	otherReceiver := uuid.New()
	f.invoices.Invoices[testInvoiceID].ReceiverID = otherReceiver

	_, err := f.svc.Create(context.Background(), testTenant, validCreateInput(1000))

	var verr *fault.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*CreateInput)
		wantField string
	}{
		{
			name:      "missing receiver",
			mutate:    func(in *CreateInput) { in.ReceiverID = uuid.Nil },
			wantField: "receptorId",
		},
		{
			name:      "missing series",
			mutate:    func(in *CreateInput) { in.Series = "" },
			wantField: "serie",
		},
		{
			name:      "missing payment date",
			mutate:    func(in *CreateInput) { in.PaymentDate = time.Time{} },
			wantField: "fechaPago",
		},
		{
			name:      "missing payment form",
			mutate:    func(in *CreateInput) { in.PaymentForm = "" },
			wantField: "formaPago",
		},
		{
			name:      "no applications",
			mutate:    func(in *CreateInput) { in.Applications = nil },
			wantField: "documentosRelacionados",
		},
		{
			name:      "zero amount",
			mutate:    func(in *CreateInput) { in.Applications[0].Amount = decimal.Zero },
			wantField: "documentosRelacionados[0].importePagado",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			input := validCreateInput(1000)
			tt.mutate(&input)

			_, err := f.svc.Create(context.Background(), testTenant, input)

			var verr *fault.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %s, want %s", verr.Field, tt.wantField)
			}
		})
	}
}

func TestCreate_ProviderFailureDoesNotPersist(t *testing.T) {
	f := newFixture()
	f.stamper.StampFunc = func(ctx context.Context, unsignedXML []byte) (*coreinvoice.StampProof, error) {
		return nil, fault.NewExternal("pac", "servicio no disponible", true, nil)
	}

	_, err := f.svc.Create(context.Background(), testTenant, validCreateInput(1000))

	var ext *fault.ExternalServiceError
	if !errors.As(err, &ext) {
		t.Fatalf("error = %v, want ExternalServiceError", err)
	}
	if len(f.payments.Payments) != 0 {
		t.Error("a rejected complement must not be persisted")
	}
}

func TestGet_TenantIsolation(t *testing.T) {
	f := newFixture()

	c, err := f.svc.Create(context.Background(), testTenant, validCreateInput(1000))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = f.svc.Get(context.Background(), "otro-tenant", c.ID)

	var nf *fault.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
}

func TestRenderPDF(t *testing.T) {
	f := newFixture()

	c, err := f.svc.Create(context.Background(), testTenant, validCreateInput(1000))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	pdf, err := f.svc.RenderPDF(context.Background(), testTenant, c.ID)
	if err != nil {
		t.Fatalf("RenderPDF() error = %v", err)
	}
	if len(pdf) == 0 {
		t.Error("expected PDF bytes")
	}
}
