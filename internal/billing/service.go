package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/snd-est/snd-rental/internal/rental"
	"github.com/snd-est/snd-rental/internal/shared"
)

// CreatedInvoice is the confirmation returned by the accounting system.
type CreatedInvoice struct {
	ID          string          `json:"id"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Status      string          `json:"status"`
}

// InvoiceCreator is the external accounting collaborator. The erpnext
// package provides the production implementation.
type InvoiceCreator interface {
	CreateRentalInvoice(ctx context.Context, inv *InvoiceData) (CreatedInvoice, error)
}

// RunError records one rental's failure during a bulk run.
type RunError struct {
	RentalID     int64  `json:"rentalId"`
	RentalNumber string `json:"rentalNumber"`
	Error        string `json:"error"`
}

// RunReport summarizes a bulk billing run. Failures are collected, not
// fatal: one rental's bad data never blocks the rest.
type RunReport struct {
	Processed int        `json:"processed"`
	Invoiced  int        `json:"invoiced"`
	Skipped   int        `json:"skipped"`
	Errors    []RunError `json:"errors"`
}

// Service drives monthly invoice generation. Each rental's periods are
// billed sequentially: period N+1's anchor depends on period N's
// success, and the accounting system is not called concurrently.
type Service struct {
	rentals    rental.Store
	creator    InvoiceCreator
	redis      *redis.Client
	logger     *slog.Logger
	defaultVAT decimal.Decimal
	now        func() time.Time
}

// NewService constructs a billing service. The redis client is
// optional; without it bulk runs proceed unlocked.
func NewService(rentals rental.Store, creator InvoiceCreator, redisClient *redis.Client, logger *slog.Logger, defaultVAT decimal.Decimal) *Service {
	return &Service{
		rentals:    rentals,
		creator:    creator,
		redis:      redisClient,
		logger:     logger,
		defaultVAT: defaultVAT,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Periods previews the unbilled periods for a rental without creating
// anything.
func (s *Service) Periods(ctx context.Context, rentalID int64) ([]Period, error) {
	r, err := s.rentals.Get(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	return ComputePeriods(r, s.now()), nil
}

// GenerateForRental creates invoices for a rental's unbilled periods.
// When billingMonth ("2006-01") is given, only the period starting in
// that month is billed. Each period is a small saga: prepare, create
// externally, then advance the local anchor once the external call
// confirms. A crash in between leaves the run safely repeatable;
// the external system's duplicate suppression is the authority, and the
// manual link-invoice flow reconciles any double creation.
func (s *Service) GenerateForRental(ctx context.Context, rentalID int64, billingMonth string) ([]CreatedInvoice, error) {
	r, err := s.rentals.Get(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if r.Status != rental.StatusActive && r.Status != rental.StatusCompleted {
		return nil, fmt.Errorf("%w: cannot invoice rental in status %s", shared.ErrConflict, r.Status)
	}
	if s.creator == nil {
		return nil, fmt.Errorf("%w: accounting integration is disabled", shared.ErrNotConfigured)
	}

	if unlock, err := s.lock(ctx, shared.RentalLockKey(rentalID)); err != nil {
		return nil, err
	} else if unlock != nil {
		defer unlock()
	}

	now := s.now()
	periods := ComputePeriods(r, now)
	if billingMonth != "" {
		periods, err = filterByMonth(periods, billingMonth)
		if err != nil {
			return nil, err
		}
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("%w: nothing left to invoice", shared.ErrConflict)
	}

	var created []CreatedInvoice
	for _, period := range periods {
		inv := PrepareInvoice(r, r.Items, period, s.defaultVAT)
		if inv == nil {
			s.logger.Info("billing period has no item overlap, skipping",
				slog.Int64("rental_id", rentalID),
				slog.Time("period_start", period.Start))
			continue
		}

		confirmation, err := s.creator.CreateRentalInvoice(ctx, inv)
		if err != nil {
			return created, fmt.Errorf("%w: create invoice for %s: %s", shared.ErrExternal, period.InvoiceNumber, err.Error())
		}

		markers := rental.InvoiceMarkers{
			LastInvoiceDate:   period.End,
			LastInvoiceID:     confirmation.ID,
			LastInvoiceAmount: inv.TotalAmount,
			OutstandingAmount: inv.TotalAmount,
			InvoiceDate:       now,
		}
		if err := s.rentals.SaveInvoiceMarkers(ctx, rentalID, markers); err != nil {
			// Invoice exists externally but the anchor did not
			// advance; surface loudly, the next run re-attempts the
			// same period and the operator reconciles via linking.
			return created, err
		}
		s.linkRef(ctx, rentalID, confirmation, inv)

		created = append(created, confirmation)

		// Periods beyond the first need the advanced anchor.
		r, err = s.rentals.Get(ctx, rentalID)
		if err != nil {
			return created, err
		}
	}
	return created, nil
}

// linkRef caches the external invoice reference locally. Best-effort:
// the markers are already committed and the link is reconstructable by
// hand, so a failure is only logged.
func (s *Service) linkRef(ctx context.Context, rentalID int64, confirmation CreatedInvoice, inv *InvoiceData) {
	err := s.rentals.LinkInvoice(ctx, &rental.InvoiceRef{
		RentalID:   rentalID,
		ExternalID: confirmation.ID,
		Amount:     inv.TotalAmount,
		Status:     confirmation.Status,
		PostedAt:   &inv.Period.End,
	})
	if err != nil && !errors.Is(err, shared.ErrDuplicate) {
		s.logger.Warn("link created invoice",
			slog.Int64("rental_id", rentalID),
			slog.String("invoice_id", confirmation.ID),
			slog.Any("error", err))
	}
}

// GenerateAll runs monthly billing across every billable rental,
// sequentially, isolating each rental's failure.
func (s *Service) GenerateAll(ctx context.Context, billingMonth string) (*RunReport, error) {
	if unlock, err := s.lock(ctx, shared.BillingLockKey()); err != nil {
		return nil, err
	} else if unlock != nil {
		defer unlock()
	}

	rentals, err := s.rentals.ListBillable(ctx)
	if err != nil {
		return nil, err
	}

	report := &RunReport{}
	for i := range rentals {
		r := &rentals[i]
		report.Processed++
		created, err := s.GenerateForRental(ctx, r.ID, billingMonth)
		report.Invoiced += len(created)
		if err != nil {
			if errors.Is(err, shared.ErrConflict) {
				// Nothing owed this cycle.
				report.Skipped++
				continue
			}
			s.logger.Error("monthly billing failed for rental",
				slog.Int64("rental_id", r.ID),
				slog.String("rental_number", r.RentalNumber),
				slog.Any("error", err))
			report.Errors = append(report.Errors, RunError{
				RentalID:     r.ID,
				RentalNumber: r.RentalNumber,
				Error:        err.Error(),
			})
		}
	}
	s.logger.Info("monthly billing run finished",
		slog.Int("processed", report.Processed),
		slog.Int("invoiced", report.Invoiced),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", len(report.Errors)))
	return report, nil
}

// lock acquires a redis mutex, returning its release func. A held lock
// rejects the run instead of queueing behind it.
func (s *Service) lock(ctx context.Context, key string) (func(), error) {
	if s.redis == nil {
		return nil, nil
	}
	ok, err := s.redis.SetNX(ctx, key, "1", 10*time.Minute).Result()
	if err != nil {
		return nil, fmt.Errorf("billing: acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: billing run already in progress", shared.ErrConflict)
	}
	return func() {
		if err := s.redis.Del(context.WithoutCancel(ctx), key).Err(); err != nil {
			s.logger.Warn("release billing lock", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

func filterByMonth(periods []Period, billingMonth string) ([]Period, error) {
	month, err := time.Parse("2006-01", billingMonth)
	if err != nil {
		return nil, fmt.Errorf("%w: billingMonth %q, want yyyy-mm", shared.ErrValidation, billingMonth)
	}
	var out []Period
	for _, p := range periods {
		if p.Start.Year() == month.Year() && p.Start.Month() == month.Month() {
			out = append(out, p)
		}
	}
	return out, nil
}
