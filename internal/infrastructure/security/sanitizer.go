package security

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Header names whose values must never reach the audit log.
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"proxy-authorization": true,
}

// Field names in JSON bodies that should be redacted. The stamping provider
// carries credentials inside the request body, so "apikey" matters here.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"key",
	"authorization",
	"api_key",
	"apikey",
	"access_token",
	"refresh_token",
	"client_secret",
	"private_key",
	"credential",
	"auth",
}

const redactedValue = "[REDACTED]"

// SanitizeHeaders returns a copy of the headers with sensitive values redacted.
func SanitizeHeaders(headers http.Header) map[string]string {
	sanitized := make(map[string]string)

	for key, values := range headers {
		if sensitiveHeaders[strings.ToLower(key)] {
			sanitized[key] = redactedValue
		} else {
			sanitized[key] = strings.Join(values, ", ")
		}
	}

	return sanitized
}

// SanitizeBody redacts sensitive fields from a JSON body and returns it as raw
// JSON suitable for persistence. Gzip-compressed and binary payloads are
// wrapped with base64 so they can still be stored.
func SanitizeBody(body []byte, maxSize int) json.RawMessage {
	if len(body) == 0 {
		return nil
	}

	// gzip magic number
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		decompressed, err := decompressGzip(body)
		if err != nil {
			return wrapBinaryAsJSON(body, "gzip-compressed (decompression failed)")
		}
		body = decompressed
	}

	if !utf8.Valid(body) {
		return wrapBinaryAsJSON(body, "binary (non-UTF8)")
	}

	// Stamped XML payloads travel base64-encoded inside JSON and can be large.
	if maxSize > 0 && len(body) > maxSize {
		truncated := map[string]interface{}{
			"_truncated": true,
			"_size":      len(body),
			"_preview":   string(body[:maxSize]),
		}
		result, _ := json.Marshal(truncated)
		return json.RawMessage(result)
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		wrapped := map[string]interface{}{
			"_raw":    string(body),
			"_format": "text",
		}
		result, _ := json.Marshal(wrapped)
		return json.RawMessage(result)
	}

	result, err := json.Marshal(sanitizeValue(data))
	if err != nil {
		wrapped := map[string]interface{}{
			"_raw":    string(body),
			"_format": "text",
		}
		result, _ = json.Marshal(wrapped)
	}

	return json.RawMessage(result)
}

func decompressGzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

func wrapBinaryAsJSON(data []byte, format string) json.RawMessage {
	wrapped := map[string]interface{}{
		"_binary": true,
		"_format": format,
		"_size":   len(data),
		"_base64": base64.StdEncoding.EncodeToString(data),
	}
	result, _ := json.Marshal(wrapped)
	return json.RawMessage(result)
}

func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return sanitizeMap(val)
	case []interface{}:
		return sanitizeSlice(val)
	default:
		return val
	}
}

func sanitizeMap(m map[string]interface{}) map[string]interface{} {
	sanitized := make(map[string]interface{})

	for key, value := range m {
		if isSensitiveField(key) {
			sanitized[key] = redactedValue
		} else {
			sanitized[key] = sanitizeValue(value)
		}
	}

	return sanitized
}

func isSensitiveField(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, field := range sensitiveFields {
		if strings.Contains(lowerKey, field) {
			return true
		}
	}
	return false
}

func sanitizeSlice(s []interface{}) []interface{} {
	sanitized := make([]interface{}, len(s))
	for i, value := range s {
		sanitized[i] = sanitizeValue(value)
	}
	return sanitized
}

// SanitizeURL redacts sensitive query parameter values from a URL.
func SanitizeURL(url string) string {
	lowerURL := strings.ToLower(url)

	for _, field := range sensitiveFields {
		if strings.Contains(lowerURL, field+"=") {
			url = redactQueryParam(url, field)
		}
	}

	return url
}

func redactQueryParam(url, param string) string {
	lowerURL := strings.ToLower(url)
	lowerParam := strings.ToLower(param)

	idx := strings.Index(lowerURL, lowerParam+"=")
	if idx == -1 {
		return url
	}

	startIdx := idx + len(lowerParam) + 1
	endIdx := strings.IndexAny(url[startIdx:], "&")
	if endIdx == -1 {
		return url[:startIdx] + redactedValue
	}

	return url[:startIdx] + redactedValue + url[startIdx+endIdx:]
}
