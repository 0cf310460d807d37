package rental

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/snd-est/snd-rental/internal/rental/pricing"
	"github.com/snd-est/snd-rental/internal/shared"
)

// Service implements rental CRUD and the financial aggregator.
type Service struct {
	store      Store
	logger     *slog.Logger
	validate   *validator.Validate
	defaultVAT decimal.Decimal
	now        func() time.Time
}

// NewService constructs a rental service.
func NewService(store Store, logger *slog.Logger, defaultVAT decimal.Decimal) *Service {
	return &Service{
		store:      store,
		logger:     logger,
		validate:   validator.New(),
		defaultVAT: defaultVAT,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create builds a rental in pending state. Without an explicit start
// date the placeholder is stored; activation replaces it.
func (s *Service) Create(ctx context.Context, req CreateRentalRequest) (*Rental, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}

	startDate, err := ParseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	expectedEnd, err := ParseDate(req.ExpectedEndDate)
	if err != nil {
		return nil, err
	}

	number := req.RentalNumber
	if number == "" {
		number, err = s.store.NextRentalNumber(ctx)
		if err != nil {
			return nil, err
		}
	}

	taxRate := s.defaultVAT
	if req.TaxRate != "" {
		taxRate, err = shared.ParseAmount(req.TaxRate)
		if err != nil {
			return nil, fmt.Errorf("%w: tax", shared.ErrValidation)
		}
	}
	discount, err := shared.ParseAmount(req.Discount)
	if err != nil {
		return nil, fmt.Errorf("%w: discount", shared.ErrValidation)
	}
	deposit, err := shared.ParseAmount(req.DepositAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: depositAmount", shared.ErrValidation)
	}

	rental := &Rental{
		RentalNumber:    number,
		CustomerID:      req.CustomerID,
		SupervisorID:    req.SupervisorID,
		StartDate:       SentinelStartDate,
		ExpectedEndDate: expectedEnd,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		TaxRate:         taxRate,
		Discount:        discount,
		DepositAmount:   deposit,
		Notes:           req.Notes,
	}
	if startDate != nil {
		rental.StartDate = *startDate
	}

	if err := s.store.Create(ctx, rental); err != nil {
		return nil, err
	}

	for _, itemReq := range req.Items {
		if _, err := s.addItem(ctx, rental, itemReq); err != nil {
			return nil, err
		}
	}
	if len(req.Items) > 0 {
		if _, err := s.RecalculateTotals(ctx, rental.ID); err != nil {
			return nil, err
		}
	}
	return s.store.Get(ctx, rental.ID)
}

// Get loads a rental with items.
func (s *Service) Get(ctx context.Context, id int64) (*Rental, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: rental id", shared.ErrValidation)
	}
	return s.store.Get(ctx, id)
}

// List returns rentals matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Rental, int, error) {
	return s.store.List(ctx, f)
}

// Update mutates rental header fields and recomputes totals when the
// tax rate or discount changed.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRentalRequest) (*Rental, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	rental, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	financialsChanged := false
	if req.ExpectedEndDate != nil {
		end, err := ParseDate(*req.ExpectedEndDate)
		if err != nil {
			return nil, err
		}
		rental.ExpectedEndDate = end
	}
	if req.SupervisorID != nil {
		rental.SupervisorID = req.SupervisorID
	}
	if req.TaxRate != nil {
		rate, err := shared.ParseAmount(*req.TaxRate)
		if err != nil {
			return nil, fmt.Errorf("%w: tax", shared.ErrValidation)
		}
		rental.TaxRate = rate
		financialsChanged = true
	}
	if req.Discount != nil {
		discount, err := shared.ParseAmount(*req.Discount)
		if err != nil {
			return nil, fmt.Errorf("%w: discount", shared.ErrValidation)
		}
		rental.Discount = discount
		financialsChanged = true
	}
	if req.DepositAmount != nil {
		deposit, err := shared.ParseAmount(*req.DepositAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: depositAmount", shared.ErrValidation)
		}
		rental.DepositAmount = deposit
	}
	if req.Notes != nil {
		rental.Notes = *req.Notes
	}

	if err := s.store.Update(ctx, rental); err != nil {
		return nil, err
	}
	if financialsChanged {
		if _, err := s.RecalculateTotals(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.store.Get(ctx, id)
}

// Delete cascades through items and assignments before removing the
// rental row.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: rental id", shared.ErrValidation)
	}
	return s.store.Delete(ctx, id)
}

// AddItem appends a billable line and recomputes totals.
func (s *Service) AddItem(ctx context.Context, rentalID int64, req CreateItemRequest) (*Item, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	rental, err := s.store.Get(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	item, err := s.addItem(ctx, rental, req)
	if err != nil {
		return nil, err
	}
	if _, err := s.RecalculateTotals(ctx, rentalID); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) addItem(ctx context.Context, rental *Rental, req CreateItemRequest) (*Item, error) {
	unitPrice, err := shared.ParseAmount(req.UnitPrice)
	if err != nil {
		return nil, fmt.Errorf("%w: unitPrice", shared.ErrValidation)
	}
	qty := decimal.NewFromInt(1)
	if req.Quantity != "" {
		qty, err = shared.ParseAmount(req.Quantity)
		if err != nil || qty.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: quantity", shared.ErrValidation)
		}
	}
	startDate, err := ParseDate(req.StartDate)
	if err != nil {
		return nil, err
	}
	rate := pricing.RateType(req.RateType)
	if rate == "" {
		rate = pricing.RateDaily
	}

	item := &Item{
		RentalID:      rental.ID,
		EquipmentID:   req.EquipmentID,
		EquipmentName: req.EquipmentName,
		UnitPrice:     unitPrice,
		Quantity:      qty,
		Rate:          rate,
		Status:        ItemActive,
		StartDate:     startDate,
		OperatorID:    req.OperatorID,
		SupervisorID:  req.SupervisorID,
		Notes:         req.Notes,
	}
	if err := s.store.InsertItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem mutates a line and recomputes totals.
func (s *Service) UpdateItem(ctx context.Context, rentalID, itemID int64, req UpdateItemRequest) (*Item, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	item, err := s.store.GetItem(ctx, rentalID, itemID)
	if err != nil {
		return nil, err
	}

	if req.UnitPrice != nil {
		price, err := shared.ParseAmount(*req.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: unitPrice", shared.ErrValidation)
		}
		item.UnitPrice = price
	}
	if req.Quantity != nil {
		qty, err := shared.ParseAmount(*req.Quantity)
		if err != nil || qty.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("%w: quantity", shared.ErrValidation)
		}
		item.Quantity = qty
	}
	if req.RateType != nil {
		item.Rate = pricing.RateType(*req.RateType)
	}
	if req.StartDate != nil {
		start, err := ParseDate(*req.StartDate)
		if err != nil {
			return nil, err
		}
		item.StartDate = start
	}
	if req.CompletedDate != nil {
		completed, err := ParseDate(*req.CompletedDate)
		if err != nil {
			return nil, err
		}
		if item.CompletedDate != nil && completed != nil {
			return nil, fmt.Errorf("%w: item %d already completed", shared.ErrConflict, itemID)
		}
		item.CompletedDate = completed
		if completed != nil {
			item.Status = ItemCompleted
			if err := s.store.CloseAssignmentsForItem(ctx, itemID, *completed); err != nil {
				s.logger.Warn("close assignments for returned item",
					slog.Int64("item_id", itemID), slog.Any("error", err))
			}
		}
	}
	if req.Status != nil {
		item.Status = ItemStatus(*req.Status)
	}
	if req.OperatorID != nil {
		item.OperatorID = req.OperatorID
	}
	if req.Notes != nil {
		item.Notes = *req.Notes
	}

	if err := s.store.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	if _, err := s.RecalculateTotals(ctx, rentalID); err != nil {
		return nil, err
	}
	return s.store.GetItem(ctx, rentalID, itemID)
}

// RemoveItem deletes a line with its assignments and recomputes totals.
func (s *Service) RemoveItem(ctx context.Context, rentalID, itemID int64) error {
	if err := s.store.DeleteItem(ctx, rentalID, itemID); err != nil {
		return err
	}
	_, err := s.RecalculateTotals(ctx, rentalID)
	return err
}

// RecalculateTotals reprices every billable item and persists the
// aggregate snapshot. It is idempotent: rerunning with unchanged items
// yields identical figures. Once an external invoice is linked the
// stored figures are authoritative and the recompute becomes a no-op;
// whatever was actually invoiced wins over a live recalculation.
func (s *Service) RecalculateTotals(ctx context.Context, rentalID int64) (Totals, error) {
	rental, err := s.store.Get(ctx, rentalID)
	if err != nil {
		return Totals{}, err
	}

	invoices, err := s.store.ListInvoiceRefs(ctx, rentalID)
	if err != nil {
		return Totals{}, err
	}
	if len(invoices) > 0 {
		return Totals{
			Subtotal:    rental.Subtotal,
			TaxAmount:   rental.TaxAmount,
			TotalAmount: rental.TotalAmount,
			FinalAmount: rental.FinalAmount,
		}, nil
	}

	now := s.now()
	terms := rental.Terms()
	subtotal := decimal.Zero
	for i := range rental.Items {
		item := &rental.Items[i]
		if !item.Billable() {
			continue
		}
		total := pricing.PriceItem(item.Terms(), terms, now)
		if !total.Equal(item.TotalPrice) {
			if err := s.store.SetItemTotal(ctx, item.ID, total); err != nil {
				return Totals{}, err
			}
		}
		subtotal = subtotal.Add(total)
	}

	taxAmount := shared.ApplyVAT(subtotal, rental.TaxRate)
	totalAmount := subtotal.Add(taxAmount)
	finalAmount := totalAmount.Sub(rental.Discount)

	totals := Totals{
		Subtotal:    subtotal,
		TaxAmount:   taxAmount,
		TotalAmount: totalAmount,
		FinalAmount: finalAmount,
	}
	if err := s.store.SaveTotals(ctx, rentalID, totals); err != nil {
		return Totals{}, err
	}
	return totals, nil
}

// StatusLogs returns the lifecycle timeline.
func (s *Service) StatusLogs(ctx context.Context, rentalID int64) ([]StatusLog, error) {
	return s.store.ListStatusLogs(ctx, rentalID)
}

// Assignments returns the derived allocation rows.
func (s *Service) Assignments(ctx context.Context, rentalID int64) ([]Assignment, error) {
	return s.store.ListAssignments(ctx, rentalID)
}
