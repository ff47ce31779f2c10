package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"tipbridge/internal/api/middlew"
	"tipbridge/internal/models"
	"tipbridge/internal/service"
	"tipbridge/pkg/response"
)

type Tipper interface {
	Tip(ctx context.Context, req service.TipRequest) (service.TipResult, error)
}

type TransferHandler struct {
	transfers service.Transferer
	tips      Tipper
}

func NewTransferHandler(transfers service.Transferer, tips Tipper) *TransferHandler {
	return &TransferHandler{transfers: transfers, tips: tips}
}

type transferRequest struct {
	Sender   models.AccountRef  `json:"sender"`
	Receiver *models.AccountRef `json:"receiver"`
	Address  string             `json:"address" validate:"omitempty,max=128"`
	Amount   string             `json:"amount" validate:"required,max=40"`
	Type     string             `json:"type" validate:"required,oneof=withdraw send tip fee"`
	Network  string             `json:"network" validate:"required"`
}

// transferResponse always carries the outcome so the caller knows whether a retry is safe.
type transferResponse struct {
	service.TransferResult
	Error string `json:"error,omitempty"`
}

func (h *TransferHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	const op = "handler.Transfer"
	log := middlew.GetLogger(r.Context())

	defer r.Body.Close()

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode JSON", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_field", formatValidationError(err))
		return
	}
	if req.Sender.IsZero() {
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_field", "sender is required")
		return
	}

	res, err := h.transfers.Execute(r.Context(), models.TransferRequest{
		Sender:   req.Sender,
		Receiver: req.Receiver,
		Address:  req.Address,
		Amount:   req.Amount,
		Type:     models.TransactionType(req.Type),
		Network:  models.Network(req.Network),
	})
	status, code := statusFor(err)
	if err != nil {
		log.Info("transfer not completed", slog.String("op", op), slog.String("outcome", string(res.Outcome)), slog.String("error", err.Error()))
	}
	response.WriteJSON(w, log, status, transferResponse{TransferResult: res, Error: code})
}

type tipRequest struct {
	Sender    models.AccountRef   `json:"sender"`
	Receivers []models.AccountRef `json:"receivers" validate:"required"`
	Amount    string              `json:"amount" validate:"required,max=40"`
	Network   string              `json:"network" validate:"required"`
}

func (h *TransferHandler) Tip(w http.ResponseWriter, r *http.Request) {
	const op = "handler.Tip"
	log := middlew.GetLogger(r.Context())

	defer r.Body.Close()

	var req tipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode JSON", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_field", formatValidationError(err))
		return
	}

	res, err := h.tips.Tip(r.Context(), service.TipRequest{
		Sender:    req.Sender,
		Receivers: req.Receivers,
		Amount:    req.Amount,
		Network:   models.Network(req.Network),
	})
	if err != nil {
		writeServiceError(w, log, op, err, "Failed to send tips")
		return
	}

	status := http.StatusOK
	if res.Outcome != service.OutcomeCompleted {
		status = http.StatusMultiStatus
	}
	response.WriteJSON(w, log, status, res)
}
