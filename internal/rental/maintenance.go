package rental

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/snd-est/snd-rental/internal/shared"
)

// SyncAssignments creates the equipment and operator allocation rows
// derived from a rental's items. Idempotent: an item whose equipment or
// operator already holds an active assignment is skipped, so activation
// can re-run the sync safely.
func (s *Service) SyncAssignments(ctx context.Context, rentalID int64) (int, error) {
	rental, err := s.store.Get(ctx, rentalID)
	if err != nil {
		return 0, err
	}

	created := 0
	note := fmt.Sprintf("Auto-created for rental %s", rental.RentalNumber)
	for i := range rental.Items {
		item := &rental.Items[i]
		if item.Status != ItemActive {
			continue
		}
		start := item.StartDate
		if start == nil {
			startCopy := rental.StartDate
			start = &startCopy
		}

		if item.EquipmentID != nil {
			ok, err := s.ensureAssignment(ctx, rental.ID, Assignment{
				RentalID:    rental.ID,
				ItemID:      &item.ID,
				Kind:        AssignEquipment,
				EquipmentID: item.EquipmentID,
				Status:      "active",
				Notes:       note,
				StartDate:   start,
			}, *item.EquipmentID)
			if err != nil {
				return created, err
			}
			if ok {
				created++
			}
		}
		if item.OperatorID != nil {
			ok, err := s.ensureAssignment(ctx, rental.ID, Assignment{
				RentalID:   rental.ID,
				ItemID:     &item.ID,
				Kind:       AssignEmployee,
				EmployeeID: item.OperatorID,
				Status:     "active",
				Notes:      note,
				StartDate:  start,
			}, *item.OperatorID)
			if err != nil {
				return created, err
			}
			if ok {
				created++
			}
		}
	}
	if created > 0 {
		s.logger.Info("assignment sync",
			slog.Int64("rental_id", rentalID), slog.Int("created", created))
	}
	return created, nil
}

func (s *Service) ensureAssignment(ctx context.Context, rentalID int64, a Assignment, refID int64) (bool, error) {
	_, err := s.store.FindActiveAssignment(ctx, rentalID, a.Kind, refID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return false, err
	}
	if err := s.store.CreateAssignment(ctx, &a); err != nil {
		return false, err
	}
	return true, nil
}

// CleanupDuplicates removes redundant active assignments, keeping the
// oldest row per equipment or employee. Duplicates accumulate when an
// item was re-synced under older sync implementations or linked twice
// by hand.
func (s *Service) CleanupDuplicates(ctx context.Context, rentalID int64) (int, error) {
	assignments, err := s.store.ListAssignments(ctx, rentalID)
	if err != nil {
		return 0, err
	}

	type key struct {
		kind AssignmentKind
		ref  int64
	}
	seen := map[key]bool{}
	removed := 0
	for _, a := range assignments {
		if a.Status != "active" {
			continue
		}
		var ref int64
		switch {
		case a.Kind == AssignEquipment && a.EquipmentID != nil:
			ref = *a.EquipmentID
		case a.Kind == AssignEmployee && a.EmployeeID != nil:
			ref = *a.EmployeeID
		default:
			continue
		}
		k := key{kind: a.Kind, ref: ref}
		if !seen[k] {
			seen[k] = true
			continue
		}
		if err := s.store.DeleteAssignment(ctx, a.ID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("duplicate assignments removed",
			slog.Int64("rental_id", rentalID), slog.Int("removed", removed))
	}
	return removed, nil
}
