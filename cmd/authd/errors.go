package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/tenantauth"
)

// kindStatus maps every error kind the engine reports to an HTTP status.
var kindStatus = map[tenantauth.Kind]int{
	tenantauth.KindInvalidCredentials:      http.StatusUnauthorized,
	tenantauth.KindInactiveUser:            http.StatusForbidden,
	tenantauth.KindInvalidToken:            http.StatusUnauthorized,
	tenantauth.KindTokenRevoked:            http.StatusUnauthorized,
	tenantauth.KindAlreadySignedOut:        http.StatusConflict,
	tenantauth.KindRefreshTokenMissing:     http.StatusUnauthorized,
	tenantauth.KindSessionExpired:          http.StatusUnauthorized,
	tenantauth.KindInsufficientPermissions: http.StatusForbidden,
	tenantauth.KindNotRegisteredOnService:  http.StatusForbidden,
	tenantauth.KindServiceInactiveUser:     http.StatusForbidden,
	tenantauth.KindInvalidMFAToken:         http.StatusUnauthorized,
	tenantauth.KindInvalidMFACode:          http.StatusUnauthorized,
	tenantauth.KindPasswordPolicyViolation: http.StatusUnprocessableEntity,
	tenantauth.KindMFAAlreadyEnabled:       http.StatusConflict,
	tenantauth.KindMFANotEnabled:           http.StatusConflict,
	tenantauth.KindInvalidCurrentPassword:  http.StatusBadRequest,
	tenantauth.KindPasswordReused:          http.StatusBadRequest,
	tenantauth.KindInvalidProfile:          http.StatusBadRequest,
	tenantauth.KindRateLimited:             http.StatusTooManyRequests,
	tenantauth.KindNotFound:                http.StatusNotFound,
	tenantauth.KindConflict:                http.StatusConflict,
	tenantauth.KindUnavailable:             http.StatusServiceUnavailable,
	tenantauth.KindInvalidConfig:           http.StatusInternalServerError,
}

const kindBadRequest tenantauth.Kind = "bad_request"

type envelope struct {
	Data  any        `json:"data"`
	Error *errorBody `json:"error"`
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func statusFor(err error) int {
	if status, ok := kindStatus[tenantauth.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, envelope{Data: data})
}

func writeEnvelope(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders err in the envelope. Untyped errors are logged and
// reported as a generic internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := &errorBody{Code: "internal_error", Message: http.StatusText(http.StatusInternalServerError)}

	var typed *tenantauth.Error
	if errors.As(err, &typed) {
		body = &errorBody{Code: string(typed.Kind), Message: typed.Message, Details: typed.Details}
	} else {
		slog.ErrorContext(r.Context(), "request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	if status >= http.StatusInternalServerError && typed != nil {
		slog.WarnContext(r.Context(), "backend failure", slog.String("path", r.URL.Path), slog.Any("error", err))
	}

	writeEnvelope(w, status, envelope{Error: body})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusBadRequest, string(kindBadRequest), message)
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeEnvelope(w, status, envelope{Error: &errorBody{Code: code, Message: message}})
}
