package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"portfolio/api/internal/store"
)

type Store interface {
	GetResume(ctx context.Context) (json.RawMessage, error)
	SaveResume(ctx context.Context, data json.RawMessage) error
}

type Service struct {
	store Store
}

func NewService(s Store) *Service {
	return &Service{store: s}
}

// Get returns the stored résumé. A missing document is created from the
// bundled default; a read-only store just serves the default.
func (s *Service) Get(ctx context.Context) (Resume, error) {
	data, err := s.store.GetResume(ctx)
	if err == nil {
		return Decode(data)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return Resume{}, fmt.Errorf("get resume: %w", err)
	}
	r := Default()
	encoded, err := json.Marshal(r)
	if err != nil {
		return Resume{}, fmt.Errorf("encode resume: %w", err)
	}
	if err := s.store.SaveResume(ctx, encoded); err != nil && !errors.Is(err, store.ErrReadOnly) {
		return Resume{}, fmt.Errorf("create resume: %w", err)
	}
	return r, nil
}

// Update merges patch into the stored résumé and returns the saved result.
func (s *Service) Update(ctx context.Context, patch json.RawMessage) (Resume, error) {
	current, err := s.store.GetResume(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Resume{}, fmt.Errorf("get resume: %w", err)
	}
	if errors.Is(err, store.ErrNotFound) {
		current, err = json.Marshal(Default())
		if err != nil {
			return Resume{}, fmt.Errorf("encode resume: %w", err)
		}
	}
	merged, encoded, err := Merge(current, patch)
	if err != nil {
		return Resume{}, err
	}
	if err := s.store.SaveResume(ctx, encoded); err != nil {
		return Resume{}, fmt.Errorf("save resume: %w", err)
	}
	return merged, nil
}
