// Package series models the per-tenant document numbering scheme.
package series

import "context"

// DocumentType selects which numbering scheme a series belongs to.
type DocumentType string

const (
	TypeInvoice DocumentType = "I" // ingreso
	TypePayment DocumentType = "P" // complemento de pago
)

// Series is a (tenant, label) numbering sequence. The folio counter never
// decreases; every allocation is strictly greater than the previous one for
// the same pair.
type Series struct {
	TenantID     string       `json:"tenantId"`
	Label        string       `json:"serie"`
	DocumentType DocumentType `json:"tipoDocumento"`
	CurrentFolio int64        `json:"folioActual"`
}

// Allocator hands out folios. NextFolio performs an atomic
// read-increment-write under a storage-level exclusive lock on the series
// row, so no two concurrent callers ever receive the same folio. It returns
// a NotFoundError when no series exists for the pair; pre-creating the
// series is the caller's responsibility.
type Allocator interface {
	NextFolio(ctx context.Context, tenantID, label string, docType DocumentType) (int64, error)
}

// Repository manages series rows.
type Repository interface {
	Allocator
	Create(ctx context.Context, s Series) error
	Get(ctx context.Context, tenantID, label string, docType DocumentType) (*Series, error)
}
