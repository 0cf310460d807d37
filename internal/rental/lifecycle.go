package rental

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/snd-est/snd-rental/internal/shared"
)

// transitions is the explicit state machine. A transition absent from
// this table is rejected with ErrInvalidStatus; free-form status
// assignment is not possible.
var transitions = map[Status][]Status{
	StatusPending:            {StatusQuotationGenerated, StatusActive, StatusCancelled},
	StatusQuotationGenerated: {StatusApproved, StatusActive, StatusCancelled},
	StatusApproved:           {StatusMobilization, StatusActive, StatusCancelled},
	StatusMobilization:       {StatusActive, StatusCancelled},
	StatusActive:             {StatusCompleted, StatusSuspended, StatusCancelled},
	StatusSuspended:          {StatusActive, StatusCancelled},
	StatusCompleted:          {StatusActive}, // reactivation undo path
}

func canTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s *Service) transition(ctx context.Context, rental *Rental, to Status, req TransitionRequest) error {
	from := rental.Status
	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidStatus, from, to)
	}
	rental.Status = to
	if err := s.store.Update(ctx, rental); err != nil {
		rental.Status = from
		return err
	}
	s.logStatus(ctx, rental.ID, from, to, req)
	return nil
}

// logStatus appends to the status timeline. The log is display-only so
// a write failure must not fail the transition.
func (s *Service) logStatus(ctx context.Context, rentalID int64, from, to Status, req TransitionRequest) {
	err := s.store.AppendStatusLog(ctx, StatusLog{
		RentalID:  rentalID,
		OldStatus: from,
		NewStatus: to,
		Reason:    req.Reason,
		ChangedBy: req.ChangedBy,
		ChangedAt: s.now(),
	})
	if err != nil {
		s.logger.Warn("append status log",
			slog.Int64("rental_id", rentalID),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			slog.Any("error", err))
	}
}

// effect is one post-commit side effect of a transition. Effects run
// after the status change is persisted, each in its own failure
// boundary; a failing effect is logged and never rolls the transition
// back.
type effect struct {
	name string
	run  func(context.Context) error
}

func (s *Service) runEffects(ctx context.Context, rentalID int64, effects []effect) {
	for _, e := range effects {
		if err := e.run(ctx); err != nil {
			s.logger.Warn("post-transition effect failed",
				slog.Int64("rental_id", rentalID),
				slog.String("effect", e.name),
				slog.Any("error", err))
		}
	}
}

// GenerateQuotation marks the rental quoted and stamps a quotation
// reference.
func (s *Service) GenerateQuotation(ctx context.Context, id int64, req TransitionRequest) (*Rental, error) {
	rental, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rental.QuotationID != nil || rental.Status == StatusQuotationGenerated {
		return nil, fmt.Errorf("%w: quotation already generated", shared.ErrConflict)
	}
	quotationID := fmt.Sprintf("QTN-%s", rental.RentalNumber)
	rental.QuotationID = &quotationID
	if err := s.transition(ctx, rental, StatusQuotationGenerated, req); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Approve accepts the quotation and stamps the approval time.
func (s *Service) Approve(ctx context.Context, id int64, req TransitionRequest) (*Rental, error) {
	rental, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rental.QuotationID == nil {
		return nil, fmt.Errorf("%w: no quotation to approve", shared.ErrConflict)
	}
	if rental.ApprovedAt != nil {
		return nil, fmt.Errorf("%w: already approved", shared.ErrConflict)
	}
	now := s.now()
	rental.ApprovedAt = &now
	if err := s.transition(ctx, rental, StatusApproved, req); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Mobilize starts equipment mobilization.
func (s *Service) Mobilize(ctx context.Context, id int64, req TransitionRequest) (*Rental, error) {
	rental, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rental.MobilizationDate != nil {
		return nil, fmt.Errorf("%w: mobilization already started", shared.ErrConflict)
	}
	now := s.now()
	rental.MobilizationDate = &now
	if err := s.transition(ctx, rental, StatusMobilization, req); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Activate puts the rental on rent. The placeholder start date is
// replaced with the activation day, and equipment/operator assignments
// are synced as a post-commit effect.
func (s *Service) Activate(ctx context.Context, id int64, req TransitionRequest) (*Rental, error) {
	rental, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsSentinelStart(rental.StartDate) {
		rental.StartDate = s.today()
	}
	if rental.Status == StatusCompleted {
		// Reactivation clears the completion markers.
		rental.ActualEndDate = nil
		rental.CompletedAt = nil
	}
	if err := s.transition(ctx, rental, StatusActive, req); err != nil {
		return nil, err
	}

	s.runEffects(ctx, id, []effect{
		{name: "assignment-sync", run: func(ctx context.Context) error {
			_, err := s.SyncAssignments(ctx, id)
			return err
		}},
	})
	return s.store.Get(ctx, id)
}

// Complete ends the rental. Open items inherit the return date; items
// returned earlier keep their own dates. Totals are recomputed against
// the final interval.
func (s *Service) Complete(ctx context.Context, id int64, req CompleteRequest) (*Rental, error) {
	rental, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rental.ActualEndDate != nil {
		return nil, fmt.Errorf("%w: already completed", shared.ErrConflict)
	}

	returnDate := s.today()
	if req.ReturnDate != "" {
		parsed, err := ParseDate(req.ReturnDate)
		if err != nil {
			return nil, err
		}
		returnDate = *parsed
	}
	now := s.now()
	rental.ActualEndDate = &returnDate
	rental.CompletedAt = &now
	if err := s.transition(ctx, rental, StatusCompleted, req.TransitionRequest); err != nil {
		return nil, err
	}

	s.runEffects(ctx, id, []effect{
		{name: "close-open-items", run: func(ctx context.Context) error {
			return s.closeOpenItems(ctx, rental, returnDate)
		}},
		{name: "recalculate-totals", run: func(ctx context.Context) error {
			_, err := s.RecalculateTotals(ctx, id)
			return err
		}},
	})
	return s.store.Get(ctx, id)
}

func (s *Service) closeOpenItems(ctx context.Context, rental *Rental, returnDate time.Time) error {
	items, err := s.store.ListItems(ctx, rental.ID)
	if err != nil {
		return err
	}
	for i := range items {
		item := &items[i]
		if item.Status != ItemActive || item.CompletedDate != nil {
			continue
		}
		item.Status = ItemCompleted
		item.CompletedDate = &returnDate
		if err := s.store.UpdateItem(ctx, item); err != nil {
			return err
		}
		if err := s.store.CloseAssignmentsForItem(ctx, item.ID, returnDate); err != nil {
			return err
		}
	}
	return nil
}

// Cancel moves the rental to the absorbing cancelled state.
func (s *Service) Cancel(ctx context.Context, id int64, req TransitionRequest) (*Rental, error) {
	rental, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, rental, StatusCancelled, req); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Suspend pauses an active rental.
func (s *Service) Suspend(ctx context.Context, id int64, req TransitionRequest) (*Rental, error) {
	rental, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, rental, StatusSuspended, req); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
