// Package httpx provides the uniform JSON response envelope.
package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorDetail describes one failure inside an envelope.
type ErrorDetail struct {
	Field         string `json:"field,omitempty"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	RejectedValue any    `json:"rejectedValue,omitempty"`
}

// Envelope is the body of every API response.
type Envelope struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message,omitempty"`
	Data      any            `json:"data,omitempty"`
	Errors    []ErrorDetail  `json:"errors,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

var now = time.Now

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK writes a successful envelope carrying data.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data, Timestamp: now().UTC()})
}

// OKWithMeta writes a successful envelope with a message and metadata.
func OKWithMeta(w http.ResponseWriter, status int, message string, data any, meta map[string]any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data, Metadata: meta, Timestamp: now().UTC()})
}

// Fail writes an error envelope.
func Fail(w http.ResponseWriter, status int, message string, errs ...ErrorDetail) {
	JSON(w, status, Envelope{Success: false, Message: message, Errors: errs, Timestamp: now().UTC()})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
