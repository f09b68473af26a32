// Package invoice exposes the invoice lifecycle over HTTP.
package invoice

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appinvoice "facturalo/ms_cfdi_core/internal/application/invoice"
	ctxutil "facturalo/ms_cfdi_core/internal/infrastructure/context"
	httperrors "facturalo/ms_cfdi_core/internal/infrastructure/http"
)

// Handler bridges HTTP traffic with the invoice application service.
type Handler struct {
	service *appinvoice.Service
	log     *slog.Logger
}

// NewHandler creates an invoice HTTP handler.
func NewHandler(service *appinvoice.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Create handles POST /api/v1/facturas. It validates the payload, computes
// totals and persists a draft.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var input appinvoice.CreateDraftInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Solicitud inválida",
			[]string{"el cuerpo de la petición no es JSON válido"}, h.log)
		return
	}

	inv, err := h.service.CreateDraft(r.Context(), tenantID, input)
	if err != nil {
		httperrors.WriteFaultError(w, err, h.log)
		return
	}

	h.log.Info("draft invoice created",
		"invoice_id", inv.ID,
		"tenant_id", tenantID,
		"serie", inv.Series,
		"folio", inv.Folio,
	)
	writeJSON(w, http.StatusCreated, inv)
}

// Get handles GET /api/v1/facturas/{invoiceID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}

	inv, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		httperrors.WriteFaultError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// Stamp handles POST /api/v1/facturas/{invoiceID}/timbrar.
func (h *Handler) Stamp(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}

	inv, err := h.service.Stamp(r.Context(), tenantID, id)
	if err != nil {
		httperrors.WriteFaultError(w, err, h.log)
		return
	}

	h.log.Info("invoice stamped",
		"invoice_id", inv.ID,
		"tenant_id", tenantID,
		"fiscal_uuid", inv.FiscalUUID,
	)
	writeJSON(w, http.StatusOK, inv)
}

// Cancel handles POST /api/v1/facturas/{invoiceID}/cancelar.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}

	inv, err := h.service.Cancel(r.Context(), tenantID, id)
	if err != nil {
		httperrors.WriteFaultError(w, err, h.log)
		return
	}

	h.log.Info("invoice canceled", "invoice_id", inv.ID, "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, inv)
}

// DownloadPDF handles GET /api/v1/facturas/{invoiceID}/pdf. The document is
// rendered on demand so drafts are previewable before stamping.
func (h *Handler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id, ok := h.invoiceID(w, r)
	if !ok {
		return
	}

	pdf, err := h.service.RenderPDF(r.Context(), tenantID, id)
	if err != nil {
		httperrors.WriteFaultError(w, err, h.log)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="factura-%s.pdf"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenantID := ctxutil.GetTenantID(r.Context())
	if tenantID == "" {
		httperrors.WriteError(w, http.StatusUnauthorized, "No autorizado",
			[]string{"el token no identifica un emisor"}, h.log)
		return "", false
	}
	return tenantID, true
}

func (h *Handler) invoiceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "invoiceID")
	id, err := uuid.Parse(raw)
	if err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Solicitud inválida",
			[]string{fmt.Sprintf("el identificador %q no es un UUID válido", raw)}, h.log)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
