package handler

import (
	"log/slog"
	"net/http"

	"github.com/vaultpass/passgen/internal/model"
	"github.com/vaultpass/passgen/internal/service"
)

// HistoryHandler handles HTTP requests for the generated password history.
type HistoryHandler struct {
	service *service.PasswordGenerationService
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(svc *service.PasswordGenerationService) *HistoryHandler {
	return &HistoryHandler{service: svc}
}

// HandleList handles GET /api/v1/history requests.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.GetHistory(r.Context())
	if err != nil {
		slog.Error("load password history", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		return
	}

	resp := make([]model.HistoryEntryResponse, len(history))
	for i, e := range history {
		resp[i] = model.HistoryEntryResponse{
			Password:  e.Password,
			CreatedAt: e.CreatedAt.UTC(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleAdd handles POST /api/v1/history requests.
func (h *HistoryHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req model.AddHistoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("password is required"))
		return
	}

	if err := h.service.AddHistory(r.Context(), req.Password); err != nil {
		slog.Error("add password history", "error", err, sessionAttr(r))
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		return
	}

	slog.Info("password history entry added", sessionAttr(r))
	w.WriteHeader(http.StatusNoContent)
}

// HandleClear handles DELETE /api/v1/history requests.
func (h *HistoryHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearHistory(r.Context()); err != nil {
		slog.Error("clear password history", "error", err, sessionAttr(r))
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		return
	}

	slog.Info("password history cleared", sessionAttr(r))
	w.WriteHeader(http.StatusNoContent)
}
