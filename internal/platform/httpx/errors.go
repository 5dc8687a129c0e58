package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stocksaas/stocksaas/internal/shared"
)

const unexpectedMessage = "An unexpected error occurred. Please try again later."

// Problem describes how one failure kind is surfaced.
type Problem struct {
	Status int
	Code   string
	// Message is the fixed caller-facing text. Empty means the error's public message is used.
	Message string
	Level   slog.Level
}

// Classify maps err onto the failure taxonomy. Order matters: the more specific kinds come
// first because ErrInvalidCredentials also wraps ErrUnauthenticated.
func Classify(err error) Problem {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return Problem{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: "Validation failed", Level: slog.LevelWarn}
	case errors.Is(err, shared.ErrNotFound):
		return Problem{Status: http.StatusNotFound, Code: "RESOURCE_NOT_FOUND", Level: slog.LevelWarn}
	case errors.Is(err, shared.ErrBusinessRule):
		return Problem{Status: http.StatusUnprocessableEntity, Code: "BUSINESS_RULE_VIOLATION", Level: slog.LevelWarn}
	case errors.Is(err, shared.ErrConflict):
		return Problem{Status: http.StatusConflict, Code: "CONFLICT", Message: "The resource was modified concurrently; reload and retry", Level: slog.LevelWarn}
	case errors.Is(err, shared.ErrTenantMismatch):
		return Problem{Status: http.StatusForbidden, Code: "ACCESS_DENIED", Message: "Access denied", Level: slog.LevelError}
	case errors.Is(err, shared.ErrAccessDenied):
		return Problem{Status: http.StatusForbidden, Code: "ACCESS_DENIED", Message: "Access denied: insufficient permissions", Level: slog.LevelWarn}
	case errors.Is(err, shared.ErrInvalidCredentials):
		return Problem{Status: http.StatusUnauthorized, Code: "UNAUTHENTICATED", Message: "Invalid credentials", Level: slog.LevelWarn}
	case errors.Is(err, shared.ErrUnauthenticated):
		return Problem{Status: http.StatusUnauthorized, Code: "UNAUTHENTICATED", Message: "Authentication required", Level: slog.LevelWarn}
	case errors.Is(err, shared.ErrInvalidArgument):
		return Problem{Status: http.StatusBadRequest, Code: "INVALID_ARGUMENT", Message: "Invalid request", Level: slog.LevelWarn}
	case errors.Is(err, shared.ErrNoTenantContext), errors.Is(err, shared.ErrDataIntegrity):
		return Problem{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: unexpectedMessage, Level: slog.LevelError}
	default:
		return Problem{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: unexpectedMessage, Level: slog.LevelError}
	}
}

// RespondError logs err at the severity of its kind and writes the matching envelope.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	p := Classify(err)
	if logger != nil {
		ctx := context.Background()
		attrs := []any{slog.Any("error", err), slog.Int("status", p.Status), slog.String("code", p.Code)}
		if r != nil {
			ctx = r.Context()
			attrs = append(attrs, slog.String("path", r.URL.Path), slog.String("request_id", middleware.GetReqID(ctx)))
		}
		msg := "request failed"
		if errors.Is(err, shared.ErrTenantMismatch) {
			msg = "tenant isolation violation rejected"
		}
		logger.Log(ctx, p.Level, msg, attrs...)
	}

	message := p.Message
	if message == "" {
		message = shared.PublicMessage(err)
	}
	if message == "" {
		message = http.StatusText(p.Status)
	}

	var details []ErrorDetail
	if fields := shared.Fields(err); len(fields) > 0 {
		details = make([]ErrorDetail, 0, len(fields))
		for _, f := range fields {
			details = append(details, ErrorDetail{Field: f.Field, Code: f.Code, Message: f.Message, RejectedValue: f.RejectedValue})
		}
	} else {
		details = []ErrorDetail{{Code: p.Code, Message: message}}
	}
	Fail(w, p.Status, message, details...)
}
