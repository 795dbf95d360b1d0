// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// Machine error codes grouped by subsystem.
const (
	CodeDBQuery      = "DB_QUERY_FAILED"
	CodeDBNotFound   = "DB_NOT_FOUND"
	CodeProvUnknown  = "PROV_UNKNOWN"
	CodeProvReload   = "PROV_RELOAD_FAILED"
	CodeCfgInvalid   = "CFG_INVALID"
	CodeWHPayload    = "WH_PAYLOAD_INVALID"
	CodeAuthRequired = "AUTH_REQUIRED"
	CodeBadRequest   = "REQUEST_INVALID"
)

// errorBody is the structured error envelope every failing response carries.
type errorBody struct {
	Error           string            `json:"error"`
	Code            string            `json:"code"`
	Timestamp       time.Time         `json:"timestamp"`
	RequestID       string            `json:"request_id"`
	Context         map[string]string `json:"context,omitempty"`
	Troubleshooting string            `json:"troubleshooting,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes the structured envelope. The request id comes from the
// request-id middleware so log lines and error bodies correlate.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	respondErrorCtx(w, r, status, code, msg, nil, "")
}

func respondErrorCtx(w http.ResponseWriter, r *http.Request, status int, code, msg string, extra map[string]string, hint string) {
	writeJSON(w, status, errorBody{
		Error:           msg,
		Code:            code,
		Timestamp:       time.Now().UTC(),
		RequestID:       requestIDFrom(r.Context()),
		Context:         extra,
		Troubleshooting: hint,
	})
}
