package stay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/hospital-billing/internal/obs"
)

// Service records stay charges when a subject changes bed.
type Service struct {
	Store  Store
	Logger zerolog.Logger
	Now    func() time.Time
}

// NewService constructs a Service over store.
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{Store: store, Logger: logger, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RecordTransfer settles the vacated bed: it prorates the origin tariff into
// a pending charge and persists it.
func (s *Service) RecordTransfer(ctx context.Context, in ChargeInput) (*Charge, error) {
	c, err := NewCharge(in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.Store.InsertPending(ctx, c); err != nil {
		return nil, fmt.Errorf("stay: record transfer: %w", err)
	}
	if obs.StayChargesRecordedTotal != nil {
		obs.StayChargesRecordedTotal.Inc()
	}
	s.Logger.Info().
		Str("charge_id", c.ID()).
		Str("subject_id", c.SubjectID()).
		Str("from_bed", c.FromBed()).
		Str("to_bed", c.ToBed()).
		Int("days_stayed", c.DaysStayed()).
		Int64("total_amount", c.TotalAmount()).
		Msg("stay charge recorded")
	return c, nil
}

// Pending lists the subject's unbilled charges.
func (s *Service) Pending(ctx context.Context, subjectID string) ([]*Charge, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subjectId is required", ErrInvalidInput)
	}
	return s.Store.ListPending(ctx, subjectID)
}

// Get loads a single charge.
func (s *Service) Get(ctx context.Context, id string) (*Charge, error) {
	return s.Store.Get(ctx, strings.TrimSpace(id))
}
