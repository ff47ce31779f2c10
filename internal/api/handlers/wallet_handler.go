package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"tipbridge/internal/api/middlew"
	"tipbridge/internal/models"
	"tipbridge/internal/service"
	"tipbridge/pkg/response"

	"github.com/go-chi/chi/v5"
)

type WalletHandler struct {
	service service.WalletServicer
}

func NewWalletHandler(service service.WalletServicer) *WalletHandler {
	return &WalletHandler{
		service: service,
	}
}

type registerRequest struct {
	OwnerID  int64  `json:"ownerId" validate:"gt=0"`
	Username string `json:"username" validate:"omitempty,max=64"`
	Network  string `json:"network" validate:"required"`
}

type registerResponse struct {
	Wallet  *models.Wallet `json:"wallet"`
	Created bool           `json:"created"`
}

func (h *WalletHandler) RegisterWallet(w http.ResponseWriter, r *http.Request) {
	const op = "handler.RegisterWallet"
	log := middlew.GetLogger(r.Context())

	defer r.Body.Close()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode JSON", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_field", formatValidationError(err))
		return
	}
	network, ok := models.ParseNetwork(req.Network)
	if !ok {
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_field", "Unsupported network")
		return
	}

	wallet, created, err := h.service.Register(r.Context(), models.Account{ID: req.OwnerID, Username: req.Username}, network)
	if err != nil {
		writeServiceError(w, log, op, err, "Failed to register wallet")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.WriteJSONSuccess(w, log, status, registerResponse{Wallet: wallet, Created: created})
}

type addressResponse struct {
	Network models.Network `json:"network"`
	Address string         `json:"address"`
}

func (h *WalletHandler) GetAddress(w http.ResponseWriter, r *http.Request) {
	const op = "handler.GetAddress"
	log := middlew.GetLogger(r.Context())

	network, ownerID, ok := h.walletParams(w, r)
	if !ok {
		return
	}

	wallet, err := h.service.Wallet(r.Context(), ownerID, network)
	if err != nil {
		writeServiceError(w, log, op, err, "Wallet not found")
		return
	}
	response.WriteJSONSuccess(w, log, http.StatusOK, addressResponse{Network: wallet.Network, Address: wallet.Address})
}

func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	const op = "handler.GetBalance"
	log := middlew.GetLogger(r.Context())

	network, ownerID, ok := h.walletParams(w, r)
	if !ok {
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	view, err := h.service.Balance(r.Context(), ownerID, network, refresh)
	if err != nil {
		writeServiceError(w, log, op, err, "Failed to read balance")
		return
	}
	response.WriteJSONSuccess(w, log, http.StatusOK, view)
}

func (h *WalletHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	const op = "handler.Reconcile"
	log := middlew.GetLogger(r.Context())

	network, ownerID, ok := h.walletParams(w, r)
	if !ok {
		return
	}

	view, err := h.service.Reconcile(r.Context(), ownerID, network)
	if err != nil {
		writeServiceError(w, log, op, err, "Failed to receive pending funds")
		return
	}
	response.WriteJSONSuccess(w, log, http.StatusOK, view)
}

func (h *WalletHandler) History(w http.ResponseWriter, r *http.Request) {
	const op = "handler.History"
	log := middlew.GetLogger(r.Context())

	network, ownerID, ok := h.walletParams(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_field", "Invalid limit")
			return
		}
		limit = n
	}

	txs, err := h.service.History(r.Context(), ownerID, network, limit)
	if err != nil {
		writeServiceError(w, log, op, err, "Failed to load history")
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	response.WriteJSONSuccess(w, log, http.StatusOK, txs)
}

type aliasRequest struct {
	Title   string `json:"title" validate:"required,max=32"`
	Address string `json:"address" validate:"required,max=128"`
	Network string `json:"network" validate:"required"`
	OwnerID int64  `json:"ownerId"`
}

func (h *WalletHandler) CreateAlias(w http.ResponseWriter, r *http.Request) {
	const op = "handler.CreateAlias"
	log := middlew.GetLogger(r.Context())

	defer r.Body.Close()

	var req aliasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to decode JSON", slog.String("op", op), slog.String("error", err.Error()))
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_json", "Invalid JSON body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_field", formatValidationError(err))
		return
	}
	network, ok := models.ParseNetwork(req.Network)
	if !ok {
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_field", "Unsupported network")
		return
	}

	alias := &models.Alias{Title: req.Title, Address: req.Address, Network: network, OwnerID: req.OwnerID}
	if err := h.service.CreateAlias(r.Context(), alias); err != nil {
		writeServiceError(w, log, op, err, "Failed to create alias")
		return
	}
	response.WriteJSONSuccess(w, log, http.StatusCreated, alias)
}

func (h *WalletHandler) GetAlias(w http.ResponseWriter, r *http.Request) {
	const op = "handler.GetAlias"
	log := middlew.GetLogger(r.Context())

	alias, err := h.service.ResolveAlias(r.Context(), chi.URLParam(r, "title"))
	if err != nil {
		writeServiceError(w, log, op, err, "Alias not found")
		return
	}
	response.WriteJSONSuccess(w, log, http.StatusOK, alias)
}

func (h *WalletHandler) walletParams(w http.ResponseWriter, r *http.Request) (models.Network, int64, bool) {
	log := middlew.GetLogger(r.Context())
	network, err := networkParam(r)
	if err != nil {
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_request", publicMessage(err, "Invalid network"))
		return "", 0, false
	}
	ownerID, err := ownerParam(r)
	if err != nil {
		response.WriteJSONError(w, log, http.StatusBadRequest, "invalid_request", publicMessage(err, "Invalid owner id"))
		return "", 0, false
	}
	return network, ownerID, true
}
