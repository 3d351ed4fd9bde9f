// Package web holds the HTTP plumbing shared by the API packages: JSON
// encode/decode helpers, the error envelope, the domain-error to status-code
// mapping, and the request principal context.
package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// APIError is the error payload inside the envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform error envelope: {"error":{"code","message"}}.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// WriteJSON writes v with the given status. Responses are never cacheable.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the uniform error envelope.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: APIError{Code: code, Message: msg}})
}

// DecodeJSON decodes a single JSON value from the body, rejecting unknown
// fields, oversized bodies, and trailing data.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
