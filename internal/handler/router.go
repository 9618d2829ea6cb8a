package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vaultpass/passgen/internal/middleware"
	"github.com/vaultpass/passgen/internal/service"
)

// RouterConfig holds what the API routes are served from.
type RouterConfig struct {
	Passwords *service.PasswordGenerationService
	Lock      *service.LockService
	JWTSecret string

	// UnlockRPS and UnlockBurst rate-limit unlock attempts per client IP.
	UnlockRPS   float64
	UnlockBurst int
}

// NewRouter builds the API router. Background work started for the router
// stops when ctx is done.
func NewRouter(ctx context.Context, cfg RouterConfig) http.Handler {
	genHandler := NewGeneratorHandler(cfg.Passwords)
	historyHandler := NewHistoryHandler(cfg.Passwords)
	lockHandler := NewLockHandler(cfg.Lock)

	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/api/v1/generate", genHandler.HandleGenerate)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(ctx, cfg.UnlockRPS, cfg.UnlockBurst))
		r.Post("/api/v1/unlock", lockHandler.HandleUnlock)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(cfg.JWTSecret))
		r.Post("/api/v1/lock", lockHandler.HandleLock)
		r.Get("/api/v1/status", lockHandler.HandleStatus)

		r.Get("/api/v1/options", genHandler.HandleGetOptions)
		r.Put("/api/v1/options", genHandler.HandleSaveOptions)

		r.Get("/api/v1/history", historyHandler.HandleList)
		r.Post("/api/v1/history", historyHandler.HandleAdd)
		r.Delete("/api/v1/history", historyHandler.HandleClear)
	})

	return r
}
