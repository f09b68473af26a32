// Package pdf generates the printed representation of issued documents.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  EMISOR: Razón social + RFC   │  Serie-Folio + Fecha        │
//	│  RECEPTOR: Razón social + RFC + Uso CFDI                    │
//	│  TABLA: Cant | Clave | Descripción | P.Unit | Importe       │
//	│  TOTALES: Subtotal / Descuento / IVA / TOTAL                │
//	│  Importe con letra                                          │
//	│  FOOTER SAT: Folio fiscal + QR de verificación              │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	marotocfg "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"facturalo/ms_cfdi_core/internal/core/cfdi"
	"facturalo/ms_cfdi_core/internal/core/invoice"
	"facturalo/ms_cfdi_core/internal/core/party"
	"facturalo/ms_cfdi_core/internal/core/payment"
)

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorAlert   = &props.Color{Red: 180, Green: 30, Blue: 30}
)

const draftBanner = "BORRADOR - SIN VALIDEZ FISCAL"

// Renderer builds PDF representations with Maroto. The verification host is
// encoded into the QR so the receiver can validate the document at the SAT
// portal.
type Renderer struct {
	verificationHost string
}

// NewRenderer builds a Renderer pointing QR codes at the given SAT host.
func NewRenderer(verificationHost string) *Renderer {
	return &Renderer{verificationHost: verificationHost}
}

// RenderInvoice produces the printed invoice. The fiscal footer always
// prints; drafts show pending placeholders plus a visible banner.
func (r *Renderer) RenderInvoice(inv *invoice.Invoice, issuer *party.Issuer, receiver *party.Receiver) ([]byte, error) {
	m := maroto.New(documentConfig(issuer.Name))

	title := fmt.Sprintf("FACTURA %s-%d", inv.Series, inv.Folio)
	m.AddRows(headerRow(issuer, title, inv.IssuedAt.Format("02/01/2006")))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(receiverRow(receiver, inv.CFDIUse))
	m.AddRows(paymentTermsRow(inv.PaymentMethod, inv.PaymentForm))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(itemsHeaderRow())
	for _, row := range itemRows(inv.Items) {
		m.AddRows(row)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(inv))
	m.AddRows(amountInWordsRow(inv.Total.StringFixed(2)))

	m.AddRows(line.NewRow(3))
	info := fiscalInfo{
		FiscalUUID:    inv.FiscalUUID,
		StampedAt:     inv.StampedAt,
		CertificateNo: issuer.CertificateNo,
		Canceled:      inv.Status == invoice.StatusCanceled,
	}
	if inv.Status == invoice.StatusStamped || inv.Status == invoice.StatusCanceled {
		info.QRData = cfdi.VerificationURL(r.verificationHost, inv.FiscalUUID, issuer.RFC, receiver.RFC, inv.Total, inv.IssuedAt)
	}
	for _, row := range fiscalFooterRows(info) {
		m.AddRows(row)
	}
	if inv.Status == invoice.StatusDraft {
		m.AddRows(draftBannerRow())
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generar PDF de factura: %w", err)
	}
	return doc.GetBytes(), nil
}

// RenderPayment produces the printed payment complement with its related
// document partialities.
func (r *Renderer) RenderPayment(c *payment.Complement, issuer *party.Issuer, receiver *party.Receiver) ([]byte, error) {
	m := maroto.New(documentConfig(issuer.Name))

	title := fmt.Sprintf("COMPLEMENTO DE PAGO %s-%d", c.Series, c.Folio)
	m.AddRows(headerRow(issuer, title, c.PaymentDate.Format("02/01/2006")))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(receiverRow(receiver, "CP01"))
	m.AddRows(paymentTermsRow("", c.PaymentForm))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(relatedHeaderRow())
	for _, row := range relatedRows(c.Related) {
		m.AddRows(row)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(paymentTotalRow(c.Amount.StringFixed(2)))
	m.AddRows(amountInWordsRow(c.Amount.StringFixed(2)))

	m.AddRows(line.NewRow(3))
	info := fiscalInfo{
		FiscalUUID:    c.FiscalUUID,
		StampedAt:     c.StampedAt,
		CertificateNo: issuer.CertificateNo,
	}
	if c.FiscalUUID != "" {
		info.QRData = cfdi.VerificationURL(r.verificationHost, c.FiscalUUID, issuer.RFC, receiver.RFC, c.Amount, c.PaymentDate)
	}
	for _, row := range fiscalFooterRows(info) {
		m.AddRows(row)
	}
	if c.FiscalUUID == "" {
		m.AddRows(draftBannerRow())
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generar PDF de complemento: %w", err)
	}
	return doc.GetBytes(), nil
}

func documentConfig(author string) *entity.Config {
	return marotocfg.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Representación impresa CFDI 4.0", true).
		WithAuthor(author, true).
		Build()
}

func headerRow(issuer *party.Issuer, title, date string) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New(issuer.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("RFC: %s   |   Régimen: %s   |   C.P. %s",
				issuer.RFC, issuer.TaxRegime, issuer.PostalCode,
			), props.Text{Size: 8, Top: 9, Color: colorGray}),
		),
		col.New(5).Add(
			text.New(title, props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New("Fecha: "+date, props.Text{
				Size: 8, Align: align.Right, Top: 9, Color: colorGray,
			}),
		),
	)
}

func receiverRow(receiver *party.Receiver, cfdiUse string) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("RECEPTOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(receiver.Name, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("RFC: %s   |   Régimen: %s   |   C.P. %s   |   Uso CFDI: %s",
				receiver.RFC, receiver.TaxRegime, receiver.PostalCode, cfdiUse,
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func paymentTermsRow(method, form string) core.Row {
	parts := ""
	if method != "" {
		parts = "Método de pago: " + method + "   |   "
	}
	parts += "Forma de pago: " + form
	return row.New(7).Add(
		col.New(12).Add(text.New(parts, props.Text{Size: 8, Top: 1, Color: colorGray})),
	)
}

func itemsHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Clave", 2, align.Center),
		h("Descripción", 5, align.Left),
		h("P. Unit.", 2, align.Right),
		h("Importe", 2, align.Right),
	)
}

func itemRows(items []invoice.LineItem) []core.Row {
	result := make([]core.Row, 0, len(items))
	for _, item := range items {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				item.Quantity.StringFixed(0),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(2).Add(text.New(
				item.ProductKey+" / "+item.UnitKey,
				props.Text{Size: 7, Align: align.Center, Top: 1},
			)),
			col.New(5).Add(text.New(
				item.Description,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				"$"+item.UnitPrice.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(2).Add(text.New(
				"$"+item.Amount.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

func totalsRow(inv *invoice.Invoice) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}

	return row.New(30).Add(
		col.New(6),
		col.New(3).Add(
			label("Subtotal:"),
			label("Descuento:"),
			label("IVA 16%:"),
			text.New("TOTAL:", props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right,
				Color: colorPrimary, Right: 2,
			}),
		),
		col.New(3).Add(
			value("$"+inv.Subtotal.StringFixed(2)),
			value("$"+inv.DiscountTotal.StringFixed(2)),
			value("$"+inv.TaxTotal.StringFixed(2)),
			text.New("$"+inv.Total.StringFixed(2), props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right,
				Color: colorPrimary, Right: 1,
			}),
		),
	)
}

func relatedHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Folio fiscal relacionado", 5, align.Left),
		h("Parc.", 1, align.Center),
		h("Saldo ant.", 2, align.Right),
		h("Pagado", 2, align.Right),
		h("Insoluto", 2, align.Right),
	)
}

func relatedRows(docs []payment.RelatedDocument) []core.Row {
	result := make([]core.Row, 0, len(docs))
	for _, d := range docs {
		result = append(result, row.New(7).Add(
			col.New(5).Add(text.New(
				d.InvoiceFiscalUUID,
				props.Text{Size: 7, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(1).Add(text.New(
				fmt.Sprintf("%d", d.Partiality),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(2).Add(text.New(
				"$"+d.PreviousBalance.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(2).Add(text.New(
				"$"+d.AmountPaid.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(2).Add(text.New(
				"$"+d.OutstandingBalance.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

func paymentTotalRow(total string) core.Row {
	return row.New(10).Add(
		col.New(8),
		col.New(2).Add(text.New("MONTO PAGADO:", props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 2,
		})),
		col.New(2).Add(text.New("$"+total, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1,
		})),
	)
}

func amountInWordsRow(total string) core.Row {
	return row.New(7).Add(
		col.New(12).Add(text.New(
			"Importe con letra: "+AmountInWords(total),
			props.Text{Size: 8, Top: 1, Color: colorGray, Style: fontstyle.Italic},
		)),
	)
}

// fiscalInfo carries the footer data. A draft document has no UUID, stamp
// date or QR payload; those slots print "PENDIENTE".
type fiscalInfo struct {
	FiscalUUID    string
	StampedAt     *time.Time
	CertificateNo string
	QRData        string
	Canceled      bool
}

const pendingValue = "PENDIENTE"

// Los sellos digitales no se almacenan localmente; constan en el XML
// timbrado que resguarda el PAC.
const sealPlaceholder = "Consta en el XML timbrado del comprobante"

// footerLines resolves the printable values: pending placeholders for a
// draft, the stamp date and seal placeholders once the document is stamped.
func (info fiscalInfo) footerLines() (uuidLine, stampLine, sealLine string) {
	uuidLine = info.FiscalUUID
	if uuidLine == "" {
		uuidLine = pendingValue
	}
	stampLine, sealLine = pendingValue, pendingValue
	if info.StampedAt != nil {
		stampLine = info.StampedAt.Format("02/01/2006 15:04:05")
		sealLine = sealPlaceholder
	}
	return uuidLine, stampLine, sealLine
}

func fiscalFooterRows(info fiscalInfo) []core.Row {
	uuidLine, stampLine, sealLine := info.footerLines()

	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("INFORMACIÓN FISCAL SAT", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New("Folio fiscal (UUID): "+uuidLine, props.Text{
				Size: 7, Top: 1, Color: colorGray,
			}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New("Fecha de timbrado: "+stampLine, props.Text{
				Size: 7, Top: 1, Color: colorGray,
			}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New("No. certificado emisor: "+info.CertificateNo, props.Text{
				Size: 7, Top: 1, Color: colorGray,
			}),
		)),
		row.New(9).Add(col.New(12).Add(
			text.New("Sello digital del CFDI", props.Text{
				Style: fontstyle.Bold, Size: 7, Color: colorPrimary, Top: 1,
			}),
			text.New(sealLine, props.Text{Size: 6, Top: 5, Color: colorGray}),
		)),
		row.New(9).Add(col.New(12).Add(
			text.New("Sello del SAT", props.Text{
				Style: fontstyle.Bold, Size: 7, Color: colorPrimary, Top: 1,
			}),
			text.New(sealLine, props.Text{Size: 6, Top: 5, Color: colorGray}),
		)),
	}

	if info.QRData != "" {
		rows = append(rows, row.New(40).Add(
			col.New(4).Add(code.NewQr(info.QRData, props.Rect{Percent: 95, Center: true})),
			col.New(8).Add(
				text.New("Escanee el código QR para verificar\neste comprobante en el portal del SAT.", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New("Este documento es una representación\nimpresa de un CFDI 4.0", props.Text{
					Style: fontstyle.Bold, Size: 9, Top: 20, Left: 3, Color: colorPrimary,
				}),
			),
		))
	}

	if info.Canceled {
		rows = append(rows, row.New(10).Add(col.New(12).Add(
			text.New("COMPROBANTE CANCELADO", props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Center,
				Color: colorAlert, Top: 2,
			}),
		)))
	}
	return rows
}

func draftBannerRow() core.Row {
	return row.New(12).Add(col.New(12).Add(
		text.New(draftBanner, props.Text{
			Style: fontstyle.Bold, Size: 12, Align: align.Center,
			Color: colorAlert, Top: 3,
		}),
	))
}
