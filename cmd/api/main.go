package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/vaultpass/passgen/internal/config"
	"github.com/vaultpass/passgen/internal/crypto"
	"github.com/vaultpass/passgen/internal/handler"
	"github.com/vaultpass/passgen/internal/repository"
	"github.com/vaultpass/passgen/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStorage(ctx, cfg)

	keyring := crypto.NewKeyring(cfg.LockTimeout)
	go keyring.Watch(ctx, 30*time.Second)

	passwords := service.NewPasswordGenerationService(store, keyring)
	keyring.OnLock(passwords.PurgeCache)

	lockService := service.NewLockService(store, keyring, cfg.JWTSecret, cfg.JWTExpiry)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handler.NewRouter(ctx, handler.RouterConfig{
			Passwords:   passwords,
			Lock:        lockService,
			JWTSecret:   cfg.JWTSecret,
			UnlockRPS:   5,
			UnlockBurst: 10,
		}),
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.StorageBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	keyring.Lock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// openStorage returns the configured storage backend, falling back to memory
// when MySQL is unavailable.
func openStorage(ctx context.Context, cfg config.Config) repository.Storage {
	if cfg.StorageBackend == "memory" {
		return repository.NewMemoryStore()
	}

	db, err := repository.NewDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		slog.Warn("database connection failed, using in-memory storage", "error", err)
		return repository.NewMemoryStore()
	}

	kv := repository.NewKVRepository(db)
	if err := kv.EnsureSchema(ctx); err != nil {
		slog.Warn("database schema setup failed, using in-memory storage", "error", err)
		db.Close()
		return repository.NewMemoryStore()
	}

	return kv
}
