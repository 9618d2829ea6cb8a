package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vaultpass/passgen/internal/model"
	"github.com/vaultpass/passgen/internal/service"
)

// LockHandler handles HTTP requests for unlocking and locking the vault.
type LockHandler struct {
	service *service.LockService
}

// NewLockHandler creates a new LockHandler.
func NewLockHandler(svc *service.LockService) *LockHandler {
	return &LockHandler{service: svc}
}

// HandleUnlock handles POST /api/v1/unlock requests.
func (h *LockHandler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	var req model.UnlockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.Unlock(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordRequired):
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		case errors.Is(err, service.ErrInvalidCredentials):
			writeJSON(w, http.StatusUnauthorized, errorResponse(err.Error()))
		default:
			slog.Error("unlock vault", "error", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleLock handles POST /api/v1/lock requests.
func (h *LockHandler) HandleLock(w http.ResponseWriter, r *http.Request) {
	h.service.Lock(r.Context())
	slog.Info("lock requested", sessionAttr(r))
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatus handles GET /api/v1/status requests.
func (h *LockHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Status(r.Context()))
}
