package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"tipbridge/internal/custom_err"
	"tipbridge/internal/models"
	"tipbridge/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// statusFor maps a service error to the HTTP status and machine-readable code returned to the client.
func statusFor(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, custom_err.ErrTooManyRecipients):
		return http.StatusBadRequest, "too_many_recipients"
	case errors.Is(err, custom_err.ErrValidation):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, custom_err.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, custom_err.ErrLockContention):
		return http.StatusConflict, "locked"
	case errors.Is(err, custom_err.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, custom_err.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	case errors.Is(err, custom_err.ErrPersistence):
		return http.StatusInternalServerError, "internal_error"
	case errors.Is(err, custom_err.ErrEngineTimeout):
		return http.StatusGatewayTimeout, "engine_timeout"
	case errors.Is(err, custom_err.ErrEngineError):
		return http.StatusBadGateway, "engine_error"
	case errors.Is(err, custom_err.ErrProtocol):
		return http.StatusBadGateway, "engine_protocol"
	case errors.Is(err, custom_err.ErrConnection):
		return http.StatusServiceUnavailable, "engine_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// publicMessage keeps internal error chains out of response bodies.
func publicMessage(err error, fallback string) string {
	var ve *custom_err.ValidationError
	var ie *custom_err.InsufficientFundsError
	switch {
	case errors.As(err, &ve):
		return ve.Reason
	case errors.As(err, &ie):
		return ie.Error()
	case errors.Is(err, custom_err.ErrTooManyRecipients):
		return custom_err.ErrTooManyRecipients.Error()
	}
	return fallback
}

func writeServiceError(w http.ResponseWriter, log *slog.Logger, op string, err error, fallback string) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("op", op), slog.String("error", err.Error()))
	} else {
		log.Info("request rejected", slog.String("op", op), slog.String("error", err.Error()))
	}
	response.WriteJSONError(w, log, status, code, publicMessage(err, fallback))
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", e.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must have maximum length %s", e.Field(), e.Param()))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", e.Field(), e.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

func networkParam(r *http.Request) (models.Network, error) {
	raw := chi.URLParam(r, "network")
	network, ok := models.ParseNetwork(raw)
	if !ok {
		return "", custom_err.Invalid("unsupported network %q", raw)
	}
	return network, nil
}

func ownerParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "ownerID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, custom_err.Invalid("invalid owner id %q", raw)
	}
	return id, nil
}
