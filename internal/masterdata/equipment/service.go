package equipment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/snd-est/snd-rental/internal/shared"
)

// Service carries equipment business rules.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs an equipment service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) List(ctx context.Context, search, status string) ([]Equipment, error) {
	return s.repo.List(ctx, search, status)
}

func (s *Service) Get(ctx context.Context, id int64) (*Equipment, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid equipment id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req UpsertRequest) (*Equipment, error) {
	e, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info("equipment created", slog.Int64("equipment_id", e.ID), slog.String("name", e.Name))
	return e, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpsertRequest) (*Equipment, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.fromRequest(req)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid equipment id", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) fromRequest(req UpsertRequest) (*Equipment, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	for _, rate := range []string{req.HourlyRate, req.DailyRate, req.WeeklyRate, req.MonthlyRate} {
		if rate == "" {
			continue
		}
		if _, err := shared.ParseAmount(rate); err != nil {
			return nil, fmt.Errorf("%w: invalid rate %q", shared.ErrValidation, rate)
		}
	}
	status := req.Status
	if status == "" {
		status = "available"
	}
	return &Equipment{
		Name:         strings.TrimSpace(req.Name),
		ModelNumber:  strings.TrimSpace(req.ModelNumber),
		LicensePlate: strings.TrimSpace(req.LicensePlate),
		SerialNumber: strings.TrimSpace(req.SerialNumber),
		Category:     strings.TrimSpace(req.Category),
		HourlyRate:   req.HourlyRate,
		DailyRate:    req.DailyRate,
		WeeklyRate:   req.WeeklyRate,
		MonthlyRate:  req.MonthlyRate,
		Status:       status,
	}, nil
}
