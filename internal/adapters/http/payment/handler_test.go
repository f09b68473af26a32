package payment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apppayment "facturalo/ms_cfdi_core/internal/application/payment"
	coreinvoice "facturalo/ms_cfdi_core/internal/core/invoice"
	"facturalo/ms_cfdi_core/internal/core/party"
	corepayment "facturalo/ms_cfdi_core/internal/core/payment"
	ctxutil "facturalo/ms_cfdi_core/internal/infrastructure/context"
	"facturalo/ms_cfdi_core/internal/testutil"
)

const testTenant = "tenant-azteca"

var (
	testReceiverID = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	testInvoiceID  = uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	invoices := testutil.NewMockInvoiceRepository()
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

	service := apppayment.NewService(
		testutil.NewMockPaymentRepository(),
		invoices,
		&testutil.MockSeriesAllocator{},
		parties,
		&testutil.MockStamper{},
		&testutil.MockRenderer{},
		nil,
		testutil.NewNullLogger(),
	)
	handler := NewHandler(service, testutil.NewNullLogger())

	router := chi.NewRouter()
	router.Post("/api/v1/pagos", handler.Create)
	router.Get("/api/v1/pagos/{paymentID}", handler.Get)
	router.Get("/api/v1/pagos/{paymentID}/pdf", handler.DownloadPDF)
	return router
}

func authenticated(req *http.Request) *http.Request {
	return req.WithContext(ctxutil.WithTenantID(req.Context(), testTenant))
}

func paymentPayload(amount string) map[string]any {
	return map[string]any{
		"receptorId": testReceiverID.String(),
		"serie":      "P",
		"fechaPago":  "2026-03-15T10:00:00Z",
		"formaPago":  "03",
		"documentosRelacionados": []map[string]any{
			{"facturaId": testInvoiceID.String(), "importePagado": amount},
		},
	}
}

func TestCreate(t *testing.T) {
	router := newTestRouter(t)

	req := authenticated(testutil.CreateRequest(http.MethodPost, "/api/v1/pagos", paymentPayload("4000"), nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	var c corepayment.Complement
	if err := json.NewDecoder(rec.Body).Decode(&c); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if c.FiscalUUID == "" {
		t.Error("expected a fiscal UUID in the response")
	}
	if len(c.Related) != 1 || c.Related[0].Partiality != 1 {
		t.Errorf("related = %+v", c.Related)
	}
}

func TestCreate_OverPayment(t *testing.T) {
	router := newTestRouter(t)

	req := authenticated(testutil.CreateRequest(http.MethodPost, "/api/v1/pagos", paymentPayload("20000"), nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body: %s", rec.Code, rec.Body.String())
	}
	response := testutil.ReadErrorResponse(t, rec)
	if response["message"] != "Solicitud inválida" {
		t.Errorf("message = %v", response["message"])
	}
}

func TestCreate_WithoutTenant(t *testing.T) {
	router := newTestRouter(t)

	req := testutil.CreateRequest(http.MethodPost, "/api/v1/pagos", paymentPayload("1000"), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestGetAndDownload(t *testing.T) {
	router := newTestRouter(t)

	req := authenticated(testutil.CreateRequest(http.MethodPost, "/api/v1/pagos", paymentPayload("4000"), nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var c corepayment.Complement
	if err := json.NewDecoder(rec.Body).Decode(&c); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	req = authenticated(httptest.NewRequest(http.MethodGet, "/api/v1/pagos/"+c.ID.String(), nil))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	req = authenticated(httptest.NewRequest(http.MethodGet, "/api/v1/pagos/"+c.ID.String()+"/pdf", nil))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %s", ct)
	}
}

func TestGet_NotFound(t *testing.T) {
	router := newTestRouter(t)

	req := authenticated(httptest.NewRequest(http.MethodGet, "/api/v1/pagos/"+uuid.NewString(), nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
