package cfdi

import (
	"encoding/xml"
	"fmt"

	"facturalo/ms_cfdi_core/internal/core/billing"
	"facturalo/ms_cfdi_core/internal/core/fault"
	"facturalo/ms_cfdi_core/internal/core/invoice"
	"facturalo/ms_cfdi_core/internal/core/party"
	"facturalo/ms_cfdi_core/internal/core/payment"
)

// dateLayout is ISO-8601 without sub-second precision, as the schema demands.
const dateLayout = "2006-01-02T15:04:05"

// AssembleInvoice builds the unsigned canonical document for an invoice.
// Pure: it never mutates persisted state, and assembling twice from the same
// input (same issue date) yields byte-identical output.
func AssembleInvoice(inv *invoice.Invoice, issuer *party.Issuer, receiver *party.Receiver) ([]byte, error) {
	if err := validateParties(issuer, receiver); err != nil {
		return nil, err
	}
	if len(inv.Items) == 0 {
		return nil, fault.NewValidation("conceptos", "se requiere al menos un concepto")
	}

	conceptos := make([]Concepto, 0, len(inv.Items))
	for _, item := range inv.Items {
		base := item.Quantity.Mul(item.UnitPrice).Sub(item.Discount).Round(2)
		tax := base.Mul(billing.VATRate).Round(2)

		c := Concepto{
			ClaveProdServ: item.ProductKey,
			Cantidad:      item.Quantity.String(),
			ClaveUnidad:   item.UnitKey,
			Descripcion:   item.Description,
			ValorUnitario: item.UnitPrice.StringFixed(2),
			Importe:       item.Quantity.Mul(item.UnitPrice).Round(2).StringFixed(2),
			ObjetoImp:     "02",
			Impuestos: &ConceptoImpuestos{
				Traslados: Traslados{Traslados: []Traslado{{
					Base:       base.StringFixed(2),
					Impuesto:   ivaTaxCode,
					TipoFactor: "Tasa",
					TasaOCuota: ivaRate,
					Importe:    tax.StringFixed(2),
				}}},
			},
		}
		if item.Discount.IsPositive() {
			c.Descuento = item.Discount.StringFixed(2)
		}
		conceptos = append(conceptos, c)
	}

	doc := Comprobante{
		XMLNSCFDI:      nsCFDI,
		XMLNSXSI:       nsXSI,
		SchemaLocation: schemaLocation,

		Version:           SchemaVersion,
		Serie:             inv.Series,
		Folio:             fmt.Sprintf("%d", inv.Folio),
		Fecha:             inv.IssuedAt.Format(dateLayout),
		NoCertificado:     issuer.CertificateNo,
		SubTotal:          inv.Subtotal.StringFixed(2),
		Moneda:            currencyMXN,
		Total:             inv.Total.StringFixed(2),
		TipoDeComprobante: "I",
		Exportacion:       exportacionNone,
		MetodoPago:        inv.PaymentMethod,
		FormaPago:         inv.PaymentForm,
		LugarExpedicion:   issuer.PostalCode,

		Emisor: Emisor{
			RFC:           issuer.RFC,
			Nombre:        issuer.Name,
			RegimenFiscal: issuer.TaxRegime,
		},
		Receptor: Receptor{
			RFC:             receiver.RFC,
			Nombre:          receiver.Name,
			DomicilioFiscal: receiver.PostalCode,
			RegimenFiscal:   receiver.TaxRegime,
			UsoCFDI:         inv.CFDIUse,
		},
		Conceptos: Conceptos{Conceptos: conceptos},
		Impuestos: &Impuestos{
			TotalTrasladados: inv.TaxTotal.StringFixed(2),
			Traslados: Traslados{Traslados: []Traslado{{
				Base:       inv.Subtotal.Sub(inv.DiscountTotal).StringFixed(2),
				Impuesto:   ivaTaxCode,
				TipoFactor: "Tasa",
				TasaOCuota: ivaRate,
				Importe:    inv.TaxTotal.StringFixed(2),
			}}},
		},
	}
	if inv.DiscountTotal.IsPositive() {
		doc.Descuento = inv.DiscountTotal.StringFixed(2)
	}

	return serialize(doc)
}

// AssemblePayment builds the unsigned canonical document for a payment
// complement (REP). Per the schema a payment document carries a single fixed
// concept and the Pagos 2.0 complement.
func AssemblePayment(c *payment.Complement, issuer *party.Issuer, receiver *party.Receiver) ([]byte, error) {
	if err := validateParties(issuer, receiver); err != nil {
		return nil, err
	}
	if len(c.Related) == 0 {
		return nil, fault.NewValidation("documentosRelacionados", "se requiere al menos una factura relacionada")
	}

	related := make([]DoctoRelacionado, 0, len(c.Related))
	for _, rel := range c.Related {
		related = append(related, DoctoRelacionado{
			IDDocumento:      rel.InvoiceFiscalUUID,
			Moneda:           currencyMXN,
			EquivalenciaDR:   "1",
			NumParcialidad:   fmt.Sprintf("%d", rel.Partiality),
			ImpSaldoAnt:      rel.PreviousBalance.StringFixed(2),
			ImpPagado:        rel.AmountPaid.StringFixed(2),
			ImpSaldoInsoluto: rel.OutstandingBalance.StringFixed(2),
			ObjetoImpDR:      "01",
		})
	}

	doc := Comprobante{
		XMLNSCFDI:      nsCFDI,
		XMLNSXSI:       nsXSI,
		SchemaLocation: schemaLocation + " " + nsPagos + " http://www.sat.gob.mx/sitio_internet/cfd/Pagos/Pagos20.xsd",

		Version:           SchemaVersion,
		Serie:             c.Series,
		Folio:             fmt.Sprintf("%d", c.Folio),
		Fecha:             c.CreatedAt.Format(dateLayout),
		NoCertificado:     issuer.CertificateNo,
		SubTotal:          "0",
		Moneda:            "XXX",
		Total:             "0",
		TipoDeComprobante: "P",
		Exportacion:       exportacionNone,
		LugarExpedicion:   issuer.PostalCode,

		XMLNSPagos: nsPagos,

		Emisor: Emisor{
			RFC:           issuer.RFC,
			Nombre:        issuer.Name,
			RegimenFiscal: issuer.TaxRegime,
		},
		Receptor: Receptor{
			RFC:             receiver.RFC,
			Nombre:          receiver.Name,
			DomicilioFiscal: receiver.PostalCode,
			RegimenFiscal:   receiver.TaxRegime,
			UsoCFDI:         "CP01",
		},
		Conceptos: Conceptos{Conceptos: []Concepto{{
			ClaveProdServ: "84111506",
			Cantidad:      "1",
			ClaveUnidad:   "ACT",
			Descripcion:   "Pago",
			ValorUnitario: "0",
			Importe:       "0",
			ObjetoImp:     "01",
		}}},
		Complemento: &Complemento{Pagos: &Pagos{
			Version: "2.0",
			Totales: PagosTotales{MontoTotalPagos: c.Amount.StringFixed(2)},
			Pagos: []Pago{{
				FechaPago:    c.PaymentDate.Format(dateLayout),
				FormaDePago:  c.PaymentForm,
				Moneda:       currencyMXN,
				TipoCambio:   "1",
				Monto:        c.Amount.StringFixed(2),
				Relacionados: related,
			}},
		}},
	}

	return serialize(doc)
}

func validateParties(issuer *party.Issuer, receiver *party.Receiver) error {
	switch {
	case issuer == nil:
		return fault.NewValidation("emisor", "se requiere el perfil del emisor")
	case issuer.TaxRegime == "":
		return fault.NewValidation("emisor.regimenFiscal", "el régimen fiscal del emisor es obligatorio")
	case issuer.PostalCode == "":
		return fault.NewValidation("emisor.codigoPostal", "el código postal del emisor es obligatorio")
	case receiver == nil:
		return fault.NewValidation("receptor", "se requiere el receptor")
	case receiver.TaxRegime == "":
		return fault.NewValidation("receptor.regimenFiscal", "el régimen fiscal del receptor es obligatorio")
	case receiver.PostalCode == "":
		return fault.NewValidation("receptor.codigoPostal", "el código postal del receptor es obligatorio")
	}
	return nil
}

func serialize(doc Comprobante) ([]byte, error) {
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal comprobante: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(body))
	out = append(out, []byte(xml.Header)...)
	out = append(out, body...)
	return out, nil
}
