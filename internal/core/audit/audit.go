package audit

import (
	"context"
	"encoding/json"
	"time"
)

// ProviderAuditLog represents an audit record for calls to the stamping
// provider. It captures complete request/response details for debugging,
// compliance, and reconciliation against the PAC.
type ProviderAuditLog struct {
	ID              int64
	CorrelationID   string
	Provider        string
	Operation       string
	RequestMethod   string
	RequestURL      string
	RequestHeaders  map[string]string
	RequestBody     json.RawMessage
	ResponseStatus  *int
	ResponseHeaders map[string]string
	ResponseBody    json.RawMessage
	DurationMs      int64
	ErrorMessage    string
	CreatedAt       time.Time
}

// Repository defines the contract for persisting audit logs. Reads happen
// directly against the table during incident review; the service itself only
// writes.
type Repository interface {
	// Save persists an audit log entry to storage.
	Save(ctx context.Context, log ProviderAuditLog) error
}
