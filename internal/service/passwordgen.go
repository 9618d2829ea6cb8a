package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vaultpass/passgen/internal/crypto"
	"github.com/vaultpass/passgen/internal/model"
	"github.com/vaultpass/passgen/internal/repository"
	"golang.org/x/sync/errgroup"
)

const (
	optionsKey = "passwordGenerationOptions"
	historyKey = "generatedPasswordHistory"

	// MaxHistoryEntries caps the password history; the oldest entries are evicted first.
	MaxHistoryEntries = 100
)

// EncryptionService seals and opens strings with the active vault key.
type EncryptionService interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, token string) (string, error)
	HasActiveKey(ctx context.Context) bool
}

// PasswordGenerationService generates passwords and keeps the saved generator
// options and an encrypted history of accepted passwords.
//
// AddHistory is a read-modify-write of the whole persisted list and is not
// atomic: concurrent AddHistory calls on one instance can lose updates, so
// callers must serialize them.
type PasswordGenerationService struct {
	store     repository.Storage
	enc       EncryptionService
	generator *crypto.Generator
	now       func() time.Time

	mu            sync.Mutex
	options       *crypto.GenerationOptions
	history       []model.HistoryEntry
	historyLoaded bool
	// purges counts PurgeCache calls; a load started before a purge is not cached.
	purges uint64
}

// Option configures a PasswordGenerationService.
type Option func(*PasswordGenerationService)

// WithGenerator replaces the crypto/rand backed generator.
func WithGenerator(g *crypto.Generator) Option {
	return func(s *PasswordGenerationService) { s.generator = g }
}

// WithClock replaces time.Now for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *PasswordGenerationService) { s.now = now }
}

// NewPasswordGenerationService creates a new PasswordGenerationService.
func NewPasswordGenerationService(store repository.Storage, enc EncryptionService, opts ...Option) *PasswordGenerationService {
	s := &PasswordGenerationService{
		store:     store,
		enc:       enc,
		generator: crypto.NewGenerator(nil),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate produces a password from the saved options overlaid with req.
func (s *PasswordGenerationService) Generate(ctx context.Context, req crypto.PartialOptions) (model.GenerateResponse, error) {
	saved, err := s.GetOptions(ctx)
	if err != nil {
		return model.GenerateResponse{}, err
	}

	opts := crypto.Normalize(crypto.Merge(saved, req))
	if opts.Length > crypto.MaxLength {
		return model.GenerateResponse{}, crypto.ErrLengthTooLong
	}

	password, err := s.generator.Generate(opts)
	if err != nil {
		return model.GenerateResponse{}, err
	}

	return model.GenerateResponse{
		Password: password,
		Length:   len(password),
	}, nil
}

// GetOptions returns the saved generator options, or the defaults if none were saved.
func (s *PasswordGenerationService) GetOptions(ctx context.Context) (crypto.GenerationOptions, error) {
	s.mu.Lock()
	if s.options != nil {
		opts := *s.options
		s.mu.Unlock()
		return opts, nil
	}
	s.mu.Unlock()

	opts := crypto.DefaultGenerationOptions()

	raw, err := s.store.Get(ctx, optionsKey)
	switch {
	case errors.Is(err, repository.ErrKeyNotFound):
	case err != nil:
		return crypto.GenerationOptions{}, fmt.Errorf("load generator options: %w", err)
	default:
		if err := json.Unmarshal(raw, &opts); err != nil {
			return crypto.GenerationOptions{}, fmt.Errorf("load generator options: unmarshal: %w", err)
		}
	}

	s.mu.Lock()
	s.options = &opts
	s.mu.Unlock()

	return opts, nil
}

// SaveOptions persists opts as given. Normalization happens at generation time.
func (s *PasswordGenerationService) SaveOptions(ctx context.Context, opts crypto.GenerationOptions) error {
	raw, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("save generator options: marshal: %w", err)
	}

	if err := s.store.Save(ctx, optionsKey, raw); err != nil {
		return fmt.Errorf("save generator options: %w", err)
	}

	s.mu.Lock()
	s.options = &opts
	s.mu.Unlock()

	return nil
}

// GetHistory returns the password history, oldest first. Without an active key
// it returns an empty list and does not touch storage.
func (s *PasswordGenerationService) GetHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	if !s.enc.HasActiveKey(ctx) {
		return []model.HistoryEntry{}, nil
	}

	history, err := s.loadHistory(ctx)
	if err != nil {
		return nil, err
	}

	return append([]model.HistoryEntry{}, history...), nil
}

// AddHistory appends password to the history unless it repeats the most recent
// entry. Without an active key it does nothing.
func (s *PasswordGenerationService) AddHistory(ctx context.Context, password string) error {
	if !s.enc.HasActiveKey(ctx) {
		return nil
	}

	s.mu.Lock()
	purges := s.purges
	s.mu.Unlock()

	current, err := s.loadHistory(ctx)
	if err != nil {
		return err
	}

	if n := len(current); n > 0 && current[n-1].Password == password {
		return nil
	}

	next := make([]model.HistoryEntry, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, model.HistoryEntry{Password: password, CreatedAt: s.now()})
	if len(next) > MaxHistoryEntries {
		next = next[len(next)-MaxHistoryEntries:]
	}

	stored, err := s.encryptHistory(ctx, next)
	if err != nil {
		return fmt.Errorf("add history: %w", err)
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("add history: marshal: %w", err)
	}

	if err := s.store.Save(ctx, historyKey, raw); err != nil {
		return fmt.Errorf("add history: %w", err)
	}

	s.mu.Lock()
	if s.purges == purges {
		s.history = next
		s.historyLoaded = true
	}
	s.mu.Unlock()

	return nil
}

// ClearHistory removes the history from storage, then empties the cache.
func (s *PasswordGenerationService) ClearHistory(ctx context.Context) error {
	if err := s.store.Remove(ctx, historyKey); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}

	s.mu.Lock()
	s.history = []model.HistoryEntry{}
	s.historyLoaded = true
	s.mu.Unlock()

	return nil
}

// PurgeCache drops the decrypted history and cached options from memory.
// The next access reloads them from storage.
func (s *PasswordGenerationService) PurgeCache() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	s.historyLoaded = false
	s.options = nil
	s.purges++
}

// loadHistory returns the cached history, decrypting it from storage on first use.
func (s *PasswordGenerationService) loadHistory(ctx context.Context) ([]model.HistoryEntry, error) {
	s.mu.Lock()
	if s.historyLoaded {
		history := s.history
		s.mu.Unlock()
		return history, nil
	}
	purges := s.purges
	s.mu.Unlock()

	var stored []model.StoredHistoryEntry

	raw, err := s.store.Get(ctx, historyKey)
	switch {
	case errors.Is(err, repository.ErrKeyNotFound):
	case err != nil:
		return nil, fmt.Errorf("load history: %w", err)
	default:
		if err := json.Unmarshal(raw, &stored); err != nil {
			return nil, fmt.Errorf("load history: unmarshal: %w", err)
		}
	}

	history, err := s.decryptHistory(ctx, stored)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	slog.Debug("password history loaded", "entries", len(history))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.purges != purges {
		return history, nil
	}
	if !s.historyLoaded {
		s.history = history
		s.historyLoaded = true
	}
	return s.history, nil
}

// encryptHistory encrypts every entry concurrently. The result keeps the input order.
func (s *PasswordGenerationService) encryptHistory(ctx context.Context, history []model.HistoryEntry) ([]model.StoredHistoryEntry, error) {
	out := make([]model.StoredHistoryEntry, len(history))

	g, ctx := errgroup.WithContext(ctx)
	for i, entry := range history {
		g.Go(func() error {
			token, err := s.enc.Encrypt(ctx, entry.Password)
			if err != nil {
				return fmt.Errorf("encrypt entry %d: %w", i, err)
			}
			out[i] = model.StoredHistoryEntry{
				Password: token,
				Date:     entry.CreatedAt.UnixMilli(),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// decryptHistory decrypts every entry concurrently. The result keeps the input order.
func (s *PasswordGenerationService) decryptHistory(ctx context.Context, stored []model.StoredHistoryEntry) ([]model.HistoryEntry, error) {
	out := make([]model.HistoryEntry, len(stored))

	g, ctx := errgroup.WithContext(ctx)
	for i, entry := range stored {
		g.Go(func() error {
			password, err := s.enc.Decrypt(ctx, entry.Password)
			if err != nil {
				return fmt.Errorf("decrypt entry %d: %w", i, err)
			}
			out[i] = model.HistoryEntry{
				Password:  password,
				CreatedAt: time.UnixMilli(entry.Date),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
