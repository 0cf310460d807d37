package customers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/snd-est/snd-rental/internal/shared"
)

// Service carries customer business rules.
type Service struct {
	repo     Repository
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService constructs a customer service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) List(ctx context.Context, search string) ([]Customer, error) {
	return s.repo.List(ctx, search)
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: invalid customer id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req UpsertRequest) (*Customer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	c := fromRequest(req)
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("customer created", slog.Int64("customer_id", c.ID), slog.String("name", c.Name))
	return c, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpsertRequest) (*Customer, error) {
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
		return fmt.Errorf("%w: invalid customer id", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

// ERPNextCustomer resolves the accounting-system party name for a
// customer, preferring the explicit link over the display name.
func (s *Service) ERPNextCustomer(ctx context.Context, customerID int64) (string, error) {
	c, err := s.Get(ctx, customerID)
	if err != nil {
		return "", err
	}
	if name := strings.TrimSpace(c.ERPNextName); name != "" {
		return name, nil
	}
	if name := strings.TrimSpace(c.Name); name != "" {
		return name, nil
	}
	return "", fmt.Errorf("%w: customer %d has no billable name", shared.ErrValidation, customerID)
}

func fromRequest(req UpsertRequest) *Customer {
	status := req.Status
	if status == "" {
		status = "active"
	}
	return &Customer{
		Name:        strings.TrimSpace(req.Name),
		ERPNextName: strings.TrimSpace(req.ERPNextName),
		VATNumber:   strings.TrimSpace(req.VATNumber),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		Address:     strings.TrimSpace(req.Address),
		Status:      status,
	}
}
