package invoice

import "context"

// Stamper sends an unsigned canonical document to the certified stamping
// provider (PAC) and returns the proof extracted from the signed result.
// Implementations classify failures: transport errors are transient and safe
// to retry with the identical payload, provider rejections are terminal.
type Stamper interface {
	Stamp(ctx context.Context, unsignedXML []byte) (*StampProof, error)
	CancelDocument(ctx context.Context, fiscalUUID, issuerRFC string) error
}
