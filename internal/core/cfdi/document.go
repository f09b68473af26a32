// Package cfdi builds the canonical CFDI 4.0 document the stamping provider
// signs. Assembly is a pure transformation: element and attribute order is
// fixed by the struct layout, so identical input always yields byte-identical
// XML. The provider authenticates against that exact byte sequence.
package cfdi

// SchemaVersion is the CFDI schema version this pipeline emits.
const SchemaVersion = "4.0"

const (
	nsCFDI          = "http://www.sat.gob.mx/cfd/4"
	nsXSI           = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocation  = "http://www.sat.gob.mx/cfd/4 http://www.sat.gob.mx/sitio_internet/cfd/4/cfdv40.xsd"
	nsPagos         = "http://www.sat.gob.mx/Pagos20"
	ivaTaxCode      = "002"  // IVA
	ivaRate         = "0.160000"
	currencyMXN     = "MXN"
	exportacionNone = "01"
)

// Comprobante is the top-level CFDI element. Field order is load-bearing.
type Comprobante struct {
	XMLName struct{} `xml:"cfdi:Comprobante"`

	XMLNSCFDI      string `xml:"xmlns:cfdi,attr"`
	XMLNSXSI       string `xml:"xmlns:xsi,attr"`
	SchemaLocation string `xml:"xsi:schemaLocation,attr"`

	Version           string `xml:"Version,attr"`
	Serie             string `xml:"Serie,attr"`
	Folio             string `xml:"Folio,attr"`
	Fecha             string `xml:"Fecha,attr"` // ISO-8601, no sub-second precision
	Sello             string `xml:"Sello,attr"`
	NoCertificado     string `xml:"NoCertificado,attr"`
	Certificado       string `xml:"Certificado,attr"`
	SubTotal          string `xml:"SubTotal,attr"`
	Descuento         string `xml:"Descuento,attr,omitempty"`
	Moneda            string `xml:"Moneda,attr"`
	Total             string `xml:"Total,attr"`
	TipoDeComprobante string `xml:"TipoDeComprobante,attr"`
	Exportacion       string `xml:"Exportacion,attr"`
	MetodoPago        string `xml:"MetodoPago,attr,omitempty"`
	FormaPago         string `xml:"FormaPago,attr,omitempty"`
	LugarExpedicion   string `xml:"LugarExpedicion,attr"`

	XMLNSPagos string `xml:"xmlns:pago20,attr,omitempty"`

	Emisor    Emisor     `xml:"cfdi:Emisor"`
	Receptor  Receptor   `xml:"cfdi:Receptor"`
	Conceptos Conceptos  `xml:"cfdi:Conceptos"`
	Impuestos *Impuestos `xml:"cfdi:Impuestos,omitempty"`

	Complemento *Complemento `xml:"cfdi:Complemento,omitempty"`
}

// Emisor is the issuer block.
type Emisor struct {
	RFC           string `xml:"Rfc,attr"`
	Nombre        string `xml:"Nombre,attr"`
	RegimenFiscal string `xml:"RegimenFiscal,attr"`
}

// Receptor is the receiver block.
type Receptor struct {
	RFC              string `xml:"Rfc,attr"`
	Nombre           string `xml:"Nombre,attr"`
	DomicilioFiscal  string `xml:"DomicilioFiscalReceptor,attr"`
	RegimenFiscal    string `xml:"RegimenFiscalReceptor,attr"`
	UsoCFDI          string `xml:"UsoCFDI,attr"`
}

// Conceptos wraps the concept list in input order.
type Conceptos struct {
	Conceptos []Concepto `xml:"cfdi:Concepto"`
}

// Concepto is one line item.
type Concepto struct {
	ClaveProdServ string             `xml:"ClaveProdServ,attr"`
	Cantidad      string             `xml:"Cantidad,attr"`
	ClaveUnidad   string             `xml:"ClaveUnidad,attr"`
	Descripcion   string             `xml:"Descripcion,attr"`
	ValorUnitario string             `xml:"ValorUnitario,attr"`
	Importe       string             `xml:"Importe,attr"`
	Descuento     string             `xml:"Descuento,attr,omitempty"`
	ObjetoImp     string             `xml:"ObjetoImp,attr"`
	Impuestos     *ConceptoImpuestos `xml:"cfdi:Impuestos,omitempty"`
}

// ConceptoImpuestos is the per-concept tax breakdown.
type ConceptoImpuestos struct {
	Traslados Traslados `xml:"cfdi:Traslados"`
}

// Traslados wraps the transferred-tax entries.
type Traslados struct {
	Traslados []Traslado `xml:"cfdi:Traslado"`
}

// Traslado is a single transferred tax (IVA).
type Traslado struct {
	Base       string `xml:"Base,attr"`
	Impuesto   string `xml:"Impuesto,attr"`
	TipoFactor string `xml:"TipoFactor,attr"`
	TasaOCuota string `xml:"TasaOCuota,attr"`
	Importe    string `xml:"Importe,attr"`
}

// Impuestos is the document-level tax summary.
type Impuestos struct {
	TotalTrasladados string    `xml:"TotalImpuestosTrasladados,attr"`
	Traslados        Traslados `xml:"cfdi:Traslados"`
}

// Complemento carries complement blocks; for payment documents the Pagos 2.0
// complement, for signed documents the fiscal seal.
type Complemento struct {
	Pagos *Pagos `xml:"pago20:Pagos,omitempty"`
}

// Pagos is the Pagos 2.0 complement root.
type Pagos struct {
	Version string       `xml:"Version,attr"`
	Totales PagosTotales `xml:"pago20:Totales"`
	Pagos   []Pago       `xml:"pago20:Pago"`
}

// PagosTotales summarizes the payment amounts.
type PagosTotales struct {
	MontoTotalPagos string `xml:"MontoTotalPagos,attr"`
}

// Pago is a single payment event.
type Pago struct {
	FechaPago    string              `xml:"FechaPago,attr"`
	FormaDePago  string              `xml:"FormaDePagoP,attr"`
	Moneda       string              `xml:"MonedaP,attr"`
	TipoCambio   string              `xml:"TipoCambioP,attr"`
	Monto        string              `xml:"Monto,attr"`
	Relacionados []DoctoRelacionado  `xml:"pago20:DoctoRelacionado"`
}

// DoctoRelacionado applies the payment to one invoice partiality.
type DoctoRelacionado struct {
	IDDocumento     string `xml:"IdDocumento,attr"`
	Moneda          string `xml:"MonedaDR,attr"`
	EquivalenciaDR  string `xml:"EquivalenciaDR,attr"`
	NumParcialidad  string `xml:"NumParcialidad,attr"`
	ImpSaldoAnt     string `xml:"ImpSaldoAnt,attr"`
	ImpPagado       string `xml:"ImpPagado,attr"`
	ImpSaldoInsoluto string `xml:"ImpSaldoInsoluto,attr"`
	ObjetoImpDR     string `xml:"ObjetoImpDR,attr"`
}
