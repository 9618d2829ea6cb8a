package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/vaultpass/passgen/internal/crypto"
	"github.com/vaultpass/passgen/internal/middleware"
	"github.com/vaultpass/passgen/internal/service"
)

// GeneratorHandler handles HTTP requests for password generation and generator options.
type GeneratorHandler struct {
	service *service.PasswordGenerationService
}

// NewGeneratorHandler creates a new GeneratorHandler.
func NewGeneratorHandler(svc *service.PasswordGenerationService) *GeneratorHandler {
	return &GeneratorHandler{service: svc}
}

// HandleGenerate handles POST /api/v1/generate requests.
// The body is optional; supplied fields override the saved options.
func (h *GeneratorHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req crypto.PartialOptions
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	resp, err := h.service.Generate(r.Context(), req)
	if err != nil {
		if errors.Is(err, crypto.ErrLengthTooLong) {
			writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		slog.Error("generate password", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleGetOptions handles GET /api/v1/options requests.
func (h *GeneratorHandler) HandleGetOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.GetOptions(r.Context())
	if err != nil {
		slog.Error("load generator options", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		return
	}

	writeJSON(w, http.StatusOK, opts)
}

// HandleSaveOptions handles PUT /api/v1/options requests.
// Fields missing from the body keep their saved values.
func (h *GeneratorHandler) HandleSaveOptions(w http.ResponseWriter, r *http.Request) {
	var req crypto.PartialOptions
	if !decodeBody(w, r, &req) {
		return
	}

	current, err := h.service.GetOptions(r.Context())
	if err != nil {
		slog.Error("load generator options", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		return
	}

	opts := crypto.Merge(current, req)
	if err := h.service.SaveOptions(r.Context(), opts); err != nil {
		slog.Error("save generator options", "error", err, sessionAttr(r))
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal server error"))
		return
	}

	slog.Info("generator options saved", sessionAttr(r))

	writeJSON(w, http.StatusOK, opts)
}

// decodeBody decodes a required JSON body into v, writing the error response on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDecodeError(w, err)
		return false
	}
	return true
}

// decodeOptionalBody is decodeBody for endpoints where an empty body is valid.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeDecodeError(w, err)
		return false
	}
	return true
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("request body too large"))
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
}

// sessionAttr names the session that made an authenticated request.
func sessionAttr(r *http.Request) slog.Attr {
	id, _ := middleware.SessionIDFromContext(r.Context())
	return slog.String("session", id)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) map[string]string {
	return map[string]string{"error": msg}
}
