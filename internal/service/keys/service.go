package keys

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dani-ai/dani/internal/apikey"
	"github.com/dani-ai/dani/internal/cache"
	"github.com/dani-ai/dani/internal/logger"
	"github.com/dani-ai/dani/internal/metrics"
	"github.com/dani-ai/dani/internal/model"
	"github.com/dani-ai/dani/internal/repository"
	"github.com/dani-ai/dani/internal/util"
	"go.uber.org/zap"
)

const (
	PlanName = "Dani API"

	createAttempts = 3
)

var ErrInvalidInput = errors.New("invalid input")

// Service runs the key management actions of the dashboard. Every call is
// scoped to the owner passed in; each mutation is one store operation
// followed by a refresh of the owner's cached list.
type Service struct {
	repo     repository.APIKeysRepository
	cache    cache.KeyListCache // optional
	generate func() (string, error)
	newID    func() string
}

func New(repo repository.APIKeysRepository, c cache.KeyListCache) *Service {
	return &Service{
		repo:     repo,
		cache:    c,
		generate: apikey.Generate,
		newID:    util.NewID,
	}
}

// Create issues a new key with usage 0. A collision on the secret value is
// retried with a fresh value.
func (s *Service) Create(ctx context.Context, ownerID, name string, requestLimit int64) (model.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.APIKey{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if requestLimit <= 0 {
		return model.APIKey{}, fmt.Errorf("%w: request limit must be positive", ErrInvalidInput)
	}

	k := model.APIKey{
		ID:           s.newID(),
		Name:         name,
		RequestLimit: requestLimit,
		UserID:       ownerID,
	}

	var err error
	for i := 0; i < createAttempts; i++ {
		k.Value, err = s.generate()
		if err != nil {
			break
		}
		err = s.repo.Create(ctx, k)
		if !errors.Is(err, repository.ErrDuplicateValue) {
			break
		}
		logger.Log.Warn("api key value collision, regenerating", zap.Int("attempt", i+1))
	}
	if err != nil {
		s.count("create", err)
		return model.APIKey{}, fmt.Errorf("create api key: %w", err)
	}

	s.count("create", nil)
	s.refresh(ctx, ownerID)
	return k, nil
}

// List returns the owner's keys, from cache when possible.
func (s *Service) List(ctx context.Context, ownerID string) ([]model.APIKey, error) {
	if s.cache != nil {
		keys, ok, err := s.cache.Get(ctx, ownerID)
		if err != nil {
			logger.Log.Warn("key list cache read failed", zap.String("owner", ownerID), zap.Error(err))
		} else if ok {
			return keys, nil
		}
	}

	keys, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, ownerID, keys); err != nil {
			logger.Log.Warn("key list cache write failed", zap.String("owner", ownerID), zap.Error(err))
		}
	}
	return keys, nil
}

func (s *Service) Rename(ctx context.Context, ownerID, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	err := s.repo.Rename(ctx, ownerID, id, name)
	s.count("rename", err)
	if err != nil {
		return fmt.Errorf("rename api key: %w", err)
	}

	s.refresh(ctx, ownerID)
	return nil
}

// Delete removes the key permanently.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	err := s.repo.Delete(ctx, ownerID, id)
	s.count("delete", err)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}

	s.refresh(ctx, ownerID)
	return nil
}

// Reveal returns the full record, secret value included.
func (s *Service) Reveal(ctx context.Context, ownerID, id string) (model.APIKey, error) {
	k, err := s.repo.GetByID(ctx, ownerID, id)
	s.count("reveal", err)
	if err != nil {
		return model.APIKey{}, fmt.Errorf("reveal api key: %w", err)
	}
	return *k, nil
}

// Overview sums usage and limits over all of the owner's keys.
func (s *Service) Overview(ctx context.Context, ownerID string) (model.Overview, error) {
	keys, err := s.List(ctx, ownerID)
	if err != nil {
		return model.Overview{}, err
	}

	ov := model.Overview{Plan: PlanName, Keys: len(keys)}
	for _, k := range keys {
		ov.Usage += k.Usage
		ov.RequestLimit += k.RequestLimit
	}
	if ov.RequestLimit > 0 {
		ov.Percent = float64(ov.Usage) * 100 / float64(ov.RequestLimit)
	}
	return ov, nil
}

func (s *Service) refresh(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ownerID); err != nil {
		logger.Log.Warn("key list cache invalidate failed", zap.String("owner", ownerID), zap.Error(err))
	}
}

func (s *Service) count(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.KeyOperationsTotal.WithLabelValues(op, outcome).Inc()
}
