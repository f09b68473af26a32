// Package party holds the static issuer/receiver reference data consumed by
// the pipeline. Rows are owned by the account-management collaborators; the
// issuance core only reads them.
package party

import (
	"context"

	"github.com/google/uuid"
)

// Issuer is the fiscal identity a tenant emits documents under.
type Issuer struct {
	TenantID      string `json:"tenantId"`
	RFC           string `json:"rfc"`
	Name          string `json:"razonSocial"`
	TaxRegime     string `json:"regimenFiscal"`
	PostalCode    string `json:"codigoPostal"`
	CertificateNo string `json:"noCertificado"`
	LogoURL       string `json:"logoUrl,omitempty"`
}

// Receiver is the client a document is issued to.
type Receiver struct {
	ID           uuid.UUID `json:"id"`
	TenantID     string    `json:"tenantId"`
	RFC          string    `json:"rfc"`
	Name         string    `json:"razonSocial"`
	TaxRegime    string    `json:"regimenFiscal"`
	PostalCode   string    `json:"codigoPostal"`
	CFDIUse      string    `json:"usoCFDI"`
	PaymentTerms string    `json:"condicionesPago,omitempty"`
}

// Repository reads issuer and receiver reference data.
type Repository interface {
	GetIssuer(ctx context.Context, tenantID string) (*Issuer, error)
	GetReceiver(ctx context.Context, tenantID string, id uuid.UUID) (*Receiver, error)
}
