package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vaultpass/passgen/internal/crypto"
	"github.com/vaultpass/passgen/internal/model"
	"github.com/vaultpass/passgen/internal/repository"
)

const (
	masterHashKey = "masterPasswordHash"
	masterSaltKey = "masterPasswordSalt"
)

var (
	ErrInvalidCredentials = errors.New("invalid master password")
	ErrPasswordRequired   = errors.New("master_password is required")
)

// KeyHolder receives the derived vault key and discards it on lock.
type KeyHolder interface {
	Unlock(key []byte) error
	Lock()
	HasActiveKey(ctx context.Context) bool
}

// LockService verifies the master password, loads the vault key and issues
// session tokens.
type LockService struct {
	store     repository.Storage
	keys      KeyHolder
	jwtSecret string
	jwtExpiry time.Duration
}

// NewLockService creates a new LockService.
func NewLockService(store repository.Storage, keys KeyHolder, secret string, expiry time.Duration) *LockService {
	return &LockService{
		store:     store,
		keys:      keys,
		jwtSecret: secret,
		jwtExpiry: expiry,
	}
}

// Unlock checks the master password and loads the vault key. The first unlock
// sets the master password.
func (s *LockService) Unlock(ctx context.Context, req model.UnlockRequest) (model.SessionResponse, error) {
	if req.MasterPassword == "" {
		return model.SessionResponse{}, ErrPasswordRequired
	}

	salt, err := s.verifyOrSetup(ctx, req.MasterPassword)
	if err != nil {
		return model.SessionResponse{}, err
	}

	key, err := crypto.DeriveKey(req.MasterPassword, salt)
	if err != nil {
		return model.SessionResponse{}, fmt.Errorf("unlock: %w", err)
	}
	defer crypto.Erase(key)

	if err := s.keys.Unlock(key); err != nil {
		return model.SessionResponse{}, fmt.Errorf("unlock: %w", err)
	}

	token, expiresAt, err := crypto.GenerateToken(s.jwtSecret, s.jwtExpiry)
	if err != nil {
		return model.SessionResponse{}, err
	}

	slog.Info("vault unlocked")

	return model.SessionResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// Lock discards the vault key.
func (s *LockService) Lock(ctx context.Context) {
	s.keys.Lock()
	slog.Info("vault locked")
}

// Status reports whether the vault key is loaded.
func (s *LockService) Status(ctx context.Context) model.StatusResponse {
	return model.StatusResponse{Unlocked: s.keys.HasActiveKey(ctx)}
}

// verifyOrSetup checks password against the stored hash and returns the key
// derivation salt. With no stored hash it stores a new hash and salt.
func (s *LockService) verifyOrSetup(ctx context.Context, password string) ([]byte, error) {
	hash, err := s.store.Get(ctx, masterHashKey)
	if errors.Is(err, repository.ErrKeyNotFound) {
		return s.setup(ctx, password)
	}
	if err != nil {
		return nil, fmt.Errorf("load master password hash: %w", err)
	}

	match, err := crypto.VerifyPassword(password, string(hash))
	if err != nil {
		return nil, fmt.Errorf("verify master password: %w", err)
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	salt, err := s.store.Get(ctx, masterSaltKey)
	if err != nil {
		return nil, fmt.Errorf("load key salt: %w", err)
	}
	return salt, nil
}

func (s *LockService) setup(ctx context.Context, password string) ([]byte, error) {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}

	// salt first: a hash without its salt would lock the user out
	if err := s.store.Save(ctx, masterSaltKey, salt); err != nil {
		return nil, fmt.Errorf("save key salt: %w", err)
	}
	if err := s.store.Save(ctx, masterHashKey, []byte(hash)); err != nil {
		return nil, fmt.Errorf("save master password hash: %w", err)
	}

	slog.Info("master password set")
	return salt, nil
}
