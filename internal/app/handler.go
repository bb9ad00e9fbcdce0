package app

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rowanvale/wheelhouse/internal/dialog"
)

// maxTurnBody caps the request body size for /v1/turn. A turn is a small
// JSON document; anything larger is malformed or hostile.
const maxTurnBody = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

// handleTurn decodes one dialog turn, runs it through the controller, and
// writes the reply. The controller itself never fails, so the only error
// responses are for malformed requests.
func (a *App) handleTurn(w http.ResponseWriter, r *http.Request) {
	var turn dialog.Turn

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTurnBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&turn); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid turn payload: " + err.Error()})
		return
	}
	if turn.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return
	}

	reply := a.controller.Handle(r.Context(), turn)
	writeJSON(w, http.StatusOK, reply)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("app: encode response", "err", err)
	}
}
