package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func WriteJSON(w http.ResponseWriter, log *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func WriteJSONSuccess(w http.ResponseWriter, log *slog.Logger, status int, data any) {
	WriteJSON(w, log, status, data)
}

func WriteJSONError(w http.ResponseWriter, log *slog.Logger, status int, code, message string) {
	WriteJSON(w, log, status, ErrorBody{Error: code, Message: message})
}
