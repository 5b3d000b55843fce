package marketplace

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/gigbridge/internal/apperr"
)

// CreateProject registers a project so developers can bid on it.
func (s *Service) CreateProject(ctx context.Context, actor, title, description string, budget decimal.Decimal, deadline *time.Time) (*Project, error) {
	if title == "" {
		return nil, apperr.New(apperr.InvalidState, "project title is required")
	}
	p := &Project{
		ID:          uuid.NewString(),
		UserID:      actor,
		Title:       title,
		Description: description,
		Budget:      budget,
		Deadline:    deadline,
		Status:      ProjectOpen,
	}
	p.Touch(time.Now())
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Project(ctx context.Context, id string) (*Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err == ErrNotFound {
		return nil, apperr.New(apperr.NotFound, "project not found")
	}
	return p, err
}
