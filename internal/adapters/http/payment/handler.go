// Package payment exposes payment complement operations over HTTP.
package payment

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apppayment "facturalo/ms_cfdi_core/internal/application/payment"
	ctxutil "facturalo/ms_cfdi_core/internal/infrastructure/context"
	httperrors "facturalo/ms_cfdi_core/internal/infrastructure/http"
)

// Handler bridges HTTP traffic with the payment application service.
type Handler struct {
	service *apppayment.Service
	log     *slog.Logger
}

// NewHandler creates a payment HTTP handler.
func NewHandler(service *apppayment.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Create handles POST /api/v1/pagos. A successful response carries the
// stamped complement with its partialities.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}

	var input apppayment.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Solicitud inválida",
			[]string{"el cuerpo de la petición no es JSON válido"}, h.log)
		return
	}

	c, err := h.service.Create(r.Context(), tenantID, input)
	if err != nil {
		httperrors.WriteFaultError(w, err, h.log)
		return
	}

	h.log.Info("payment complement created",
		"payment_id", c.ID,
		"tenant_id", tenantID,
		"fiscal_uuid", c.FiscalUUID,
	)
	writeJSON(w, http.StatusCreated, c)
}

// Get handles GET /api/v1/pagos/{paymentID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}

	c, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		httperrors.WriteFaultError(w, err, h.log)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DownloadPDF handles GET /api/v1/pagos/{paymentID}/pdf.
func (h *Handler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := h.tenant(w, r)
	if !ok {
		return
	}
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}

	pdf, err := h.service.RenderPDF(r.Context(), tenantID, id)
	if err != nil {
		httperrors.WriteFaultError(w, err, h.log)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="pago-%s.pdf"`, id))
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

func (h *Handler) paymentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "paymentID")
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
