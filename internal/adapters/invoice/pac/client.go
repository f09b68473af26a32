// Package pac implements the stamping provider client. The provider exposes
// a JSON API that receives the unsigned CFDI in base64 and returns the signed
// document carrying the TimbreFiscalDigital element.
package pac

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"facturalo/ms_cfdi_core/internal/core/cfdi"
	"facturalo/ms_cfdi_core/internal/core/fault"
	"facturalo/ms_cfdi_core/internal/core/invoice"
	"facturalo/ms_cfdi_core/internal/infrastructure/config"
)

// HTTPClient abstracts the transport so the traced client can be injected.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the stamping provider. It implements invoice.Stamper.
type Client struct {
	baseURL    string
	user       string
	apiKey     string
	httpClient HTTPClient
	breaker    *CircuitBreaker
	log        *slog.Logger
}

// NewClient builds a provider client from configuration.
func NewClient(cfg config.PACSettings, httpClient HTTPClient, log *slog.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		user:       cfg.User,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		breaker:    NewCircuitBreaker(5, 30*time.Second),
		log:        log,
	}
}

type stampRequest struct {
	Usuario string `json:"usuario"`
	APIKey  string `json:"apikey"`
	XML     string `json:"xml"`
}

type stampResponse struct {
	Data struct {
		XML string `json:"xml"`
	} `json:"data"`
}

type cancelRequest struct {
	Usuario string `json:"usuario"`
	APIKey  string `json:"apikey"`
	UUID    string `json:"uuid"`
	RFC     string `json:"rfc"`
}

type errorEnvelope struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Stamp submits the unsigned XML and returns the fiscal proof extracted from
// the signed document. Identical payloads are safe to resend after a
// transient failure since assembly is deterministic.
func (c *Client) Stamp(ctx context.Context, unsignedXML []byte) (*invoice.StampProof, error) {
	var proof *invoice.StampProof

	err := c.breaker.Execute(func() error {
		body := stampRequest{
			Usuario: c.user,
			APIKey:  c.apiKey,
			XML:     base64.StdEncoding.EncodeToString(unsignedXML),
		}

		respBody, err := c.post(ctx, "/timbrado", body)
		if err != nil {
			return err
		}

		var parsed stampResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return fault.NewExternal("pac", "respuesta de timbrado ilegible", false, err)
		}
		if parsed.Data.XML == "" {
			return fault.NewExternal("pac", "la respuesta de timbrado no incluye el XML firmado", false, nil)
		}

		signedXML, err := base64.StdEncoding.DecodeString(parsed.Data.XML)
		if err != nil {
			return fault.NewExternal("pac", "el XML firmado no es base64 válido", false, err)
		}

		timbre, err := cfdi.ExtractTimbre(signedXML)
		if err != nil {
			return fault.NewExternal("pac", "el XML firmado no contiene un timbre válido", false, err)
		}

		proof = &invoice.StampProof{
			FiscalUUID: timbre.UUID,
			StampedAt:  timbre.FechaTimbrado,
			SignedXML:  signedXML,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("document stamped by provider", "fiscal_uuid", proof.FiscalUUID)
	return proof, nil
}

// CancelDocument asks the provider to cancel a previously stamped document.
func (c *Client) CancelDocument(ctx context.Context, fiscalUUID, issuerRFC string) error {
	return c.breaker.Execute(func() error {
		body := cancelRequest{
			Usuario: c.user,
			APIKey:  c.apiKey,
			UUID:    fiscalUUID,
			RFC:     issuerRFC,
		}

		if _, err := c.post(ctx, "/cancelacion", body); err != nil {
			return err
		}

		c.log.Info("document canceled by provider", "fiscal_uuid", fiscalUUID)
		return nil
	})
}

// post sends a JSON payload and returns the raw response body on 2xx. Any
// other outcome is mapped to an ExternalServiceError: connectivity problems,
// HTTP 429 and 5xx are transient, the rest carry the provider message and
// are terminal.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fault.NewExternal("pac", "no se pudo contactar al proveedor", true, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.NewExternal("pac", "no se pudo leer la respuesta del proveedor", true, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	message := providerMessage(respBody)
	transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	if transient {
		c.log.Warn("provider unavailable", "status", resp.StatusCode, "message", message)
	} else {
		c.log.Warn("provider rejected document", "status", resp.StatusCode, "message", message)
	}
	return nil, fault.NewExternal("pac", message, transient, nil)
}

func providerMessage(body []byte) string {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	if len(body) > 0 && len(body) <= 512 {
		return string(body)
	}
	return "el proveedor devolvió un error sin detalle"
}
