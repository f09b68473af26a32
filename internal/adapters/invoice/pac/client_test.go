package pac

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"facturalo/ms_cfdi_core/internal/core/fault"
	"facturalo/ms_cfdi_core/internal/infrastructure/config"
	"facturalo/ms_cfdi_core/internal/testutil"
)

const signedDocument = `<?xml version="1.0" encoding="UTF-8"?>
<cfdi:Comprobante xmlns:cfdi="http://www.sat.gob.mx/cfd/4" Version="4.0">
  <cfdi:Complemento>
    <tfd:TimbreFiscalDigital xmlns:tfd="http://www.sat.gob.mx/TimbreFiscalDigital"
      Version="1.1"
      UUID="AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE"
      FechaTimbrado="2026-03-10T12:30:45"
      SelloCFD="abc"
      SelloSAT="def"/>
  </cfdi:Complemento>
</cfdi:Comprobante>`

func newTestClient(baseURL string) *Client {
	cfg := config.PACSettings{
		BaseURL: baseURL,
		User:    "demo",
		APIKey:  "pac-key-789",
	}
	return NewClient(cfg, http.DefaultClient, testutil.NewNullLogger())
}

func stampOKHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/timbrado" {
			t.Errorf("path = %s, want /timbrado", r.URL.Path)
		}
		var req stampRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Usuario != "demo" || req.APIKey != "pac-key-789" {
			t.Errorf("credentials = %s/%s", req.Usuario, req.APIKey)
		}
		if _, err := base64.StdEncoding.DecodeString(req.XML); err != nil {
			t.Errorf("xml payload is not base64: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{
				"xml": base64.StdEncoding.EncodeToString([]byte(signedDocument)),
			},
		})
	}
}

func TestStamp(t *testing.T) {
	server := httptest.NewServer(stampOKHandler(t))
	defer server.Close()

	client := newTestClient(server.URL)

	proof, err := client.Stamp(context.Background(), []byte("<cfdi:Comprobante/>"))
	if err != nil {
		t.Fatalf("Stamp() error = %v", err)
	}

	if proof.FiscalUUID != "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE" {
		t.Errorf("fiscal UUID = %s", proof.FiscalUUID)
	}
	want := time.Date(2026, 3, 10, 12, 30, 45, 0, time.UTC)
	if !proof.StampedAt.Equal(want) {
		t.Errorf("stampedAt = %v, want %v", proof.StampedAt, want)
	}
	if len(proof.SignedXML) == 0 {
		t.Error("expected the signed XML to be returned")
	}
}

func TestStamp_BusinessRejectionIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"message": "CFDI40147: el uso del CFDI no es compatible con el régimen",
			"status":  422,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Stamp(context.Background(), []byte("<cfdi:Comprobante/>"))

	var ext *fault.ExternalServiceError
	if !errors.As(err, &ext) {
		t.Fatalf("error = %v, want ExternalServiceError", err)
	}
	if ext.Transient {
		t.Error("a business rejection must not be transient")
	}
	if ext.Message != "CFDI40147: el uso del CFDI no es compatible con el régimen" {
		t.Errorf("message = %s", ext.Message)
	}
}

func TestStamp_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Stamp(context.Background(), []byte("<cfdi:Comprobante/>"))

	if !fault.IsTransient(err) {
		t.Fatalf("error = %v, want a transient ExternalServiceError", err)
	}
}

func TestStamp_RateLimitIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Stamp(context.Background(), []byte("<cfdi:Comprobante/>"))

	if !fault.IsTransient(err) {
		t.Fatalf("error = %v, want a transient ExternalServiceError", err)
	}
}

func TestStamp_SignedXMLWithoutTimbre(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{
				"xml": base64.StdEncoding.EncodeToString([]byte("<cfdi:Comprobante/>")),
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Stamp(context.Background(), []byte("<cfdi:Comprobante/>"))

	var ext *fault.ExternalServiceError
	if !errors.As(err, &ext) {
		t.Fatalf("error = %v, want ExternalServiceError", err)
	}
	if ext.Transient {
		t.Error("a malformed signed document is not retryable")
	}
}

func TestCancelDocument(t *testing.T) {
	var gotUUID, gotRFC string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cancelacion" {
			t.Errorf("path = %s, want /cancelacion", r.URL.Path)
		}
		var req cancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotUUID = req.UUID
		gotRFC = req.RFC
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"data":{"status":"cancelado"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.CancelDocument(context.Background(), "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE", "EKU9003173C9")
	if err != nil {
		t.Fatalf("CancelDocument() error = %v", err)
	}
	if gotUUID != "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE" {
		t.Errorf("uuid = %s", gotUUID)
	}
	if gotRFC != "EKU9003173C9" {
		t.Errorf("rfc = %s", gotRFC)
	}
}

func TestStamp_CircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.breaker = NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := client.Stamp(context.Background(), []byte("<x/>")); err == nil {
			t.Fatal("expected an error from a failing provider")
		}
	}

	_, err := client.Stamp(context.Background(), []byte("<x/>"))
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("error = %v, want ErrBreakerOpen", err)
	}
	if hits.Load() != 3 {
		t.Errorf("provider hits = %d, want 3 (fourth call short-circuited)", hits.Load())
	}
}

func TestCircuitBreaker_TerminalRejectionsDoNotOpen(t *testing.T) {
	breaker := NewCircuitBreaker(2, time.Minute)

	rejection := fault.NewExternal("pac", "documento inválido", false, nil)
	for i := 0; i < 5; i++ {
		if err := breaker.Execute(func() error { return rejection }); !errors.Is(err, rejection) {
			t.Fatalf("Execute() error = %v, want the rejection passed through", err)
		}
	}
}

func TestCircuitBreaker_RecoversAfterCooldown(t *testing.T) {
	breaker := NewCircuitBreaker(1, 10*time.Millisecond)

	failure := fault.NewExternal("pac", "timeout", true, nil)
	if err := breaker.Execute(func() error { return failure }); err == nil {
		t.Fatal("expected the failure to pass through")
	}
	if err := breaker.Execute(func() error { return nil }); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("error = %v, want ErrBreakerOpen while cooling down", err)
	}

	time.Sleep(20 * time.Millisecond)

	if err := breaker.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute() after cooldown error = %v", err)
	}
	if err := breaker.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute() with closed breaker error = %v", err)
	}
}
