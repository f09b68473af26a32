package cfdi

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Timbre is the fiscal seal the PAC adds to a signed document.
type Timbre struct {
	UUID          string
	FechaTimbrado time.Time
	SelloCFD      string
	SelloSAT      string
}

// ExtractTimbre scans a signed document for the TimbreFiscalDigital element
// and reads its attributes. Both the UUID and the stamp timestamp must be
// present and non-empty; a signed document without them is not proof of
// stamping.
func ExtractTimbre(signedXML []byte) (*Timbre, error) {
	decoder := xml.NewDecoder(bytes.NewReader(signedXML))

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("timbre fiscal digital element not found")
		}
		if err != nil {
			return nil, fmt.Errorf("parse signed document: %w", err)
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "TimbreFiscalDigital" {
			continue
		}

		var t Timbre
		var rawFecha string
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "UUID":
				t.UUID = attr.Value
			case "FechaTimbrado":
				rawFecha = attr.Value
			case "SelloCFD":
				t.SelloCFD = attr.Value
			case "SelloSAT":
				t.SelloSAT = attr.Value
			}
		}

		if t.UUID == "" {
			return nil, fmt.Errorf("timbre is missing UUID")
		}
		if rawFecha == "" {
			return nil, fmt.Errorf("timbre is missing FechaTimbrado")
		}

		fecha, err := time.Parse(dateLayout, rawFecha)
		if err != nil {
			return nil, fmt.Errorf("parse FechaTimbrado [%s]: %w", rawFecha, err)
		}
		t.FechaTimbrado = fecha

		return &t, nil
	}
}

// VerificationURL builds the SAT verification link encoded into the printed
// QR code: id, issuer RFC, receiver RFC, total and the last six characters
// of the issue date.
func VerificationURL(host, fiscalUUID, issuerRFC, receiverRFC string, total decimal.Decimal, issuedAt time.Time) string {
	fecha := issuedAt.Format(dateLayout)
	fe := fecha
	if len(fecha) > 6 {
		fe = fecha[len(fecha)-6:]
	}

	// Parameter order is part of the published format, so the query string
	// is built by hand instead of url.Values (which sorts keys).
	return fmt.Sprintf("https://%s/default.aspx?id=%s&re=%s&rr=%s&tt=%s&fe=%s",
		host,
		url.QueryEscape(fiscalUUID),
		url.QueryEscape(issuerRFC),
		url.QueryEscape(receiverRFC),
		url.QueryEscape(total.StringFixed(2)),
		url.QueryEscape(fe),
	)
}
