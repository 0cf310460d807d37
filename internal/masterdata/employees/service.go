package employees

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/snd-est/snd-rental/internal/shared"
)

// Service carries employee business rules.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs an employee service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) List(ctx context.Context, search string) ([]Employee, error) {
	return s.repo.List(ctx, search)
}

func (s *Service) Get(ctx context.Context, id int64) (*Employee, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid employee id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req UpsertRequest) (*Employee, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	e := fromRequest(req)
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info("employee created", slog.Int64("employee_id", e.ID), slog.String("name", e.Name))
	return e, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpsertRequest) (*Employee, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := fromRequest(req)
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid employee id", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

func fromRequest(req UpsertRequest) *Employee {
	status := req.Status
	if status == "" {
		status = "active"
	}
	return &Employee{
		Name:        strings.TrimSpace(req.Name),
		FileNumber:  strings.TrimSpace(req.FileNumber),
		Designation: strings.TrimSpace(req.Designation),
		Phone:       strings.TrimSpace(req.Phone),
		Status:      status,
	}
}
