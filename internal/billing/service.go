// Package billing turns cart lines and pending stay charges into invoices.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/hospital-billing/internal/cart"
	"github.com/noah-isme/hospital-billing/internal/ident"
	"github.com/noah-isme/hospital-billing/internal/money"
	"github.com/noah-isme/hospital-billing/internal/obs"
	"github.com/noah-isme/hospital-billing/internal/stay"
	"github.com/noah-isme/hospital-billing/internal/validation"
)

// ErrInvalidInput is returned when an invoice request fails validation.
var ErrInvalidInput = errors.New("billing: invalid input")

// Money represents a monetary value stored in minor units.
type Money = money.Money

// InvoiceRequest is the input to Preview and Issue.
type InvoiceRequest struct {
	SubjectID      string          `json:"subjectId" validate:"required"`
	Items          []cart.LineItem `json:"items"`
	BaseCharge     Money           `json:"baseCharge" validate:"gte=0,lte=1000000000000000"`
	GlobalDiscount Money           `json:"globalDiscount" validate:"gte=0,lte=1000000000000000"`
	IncludeStays   bool            `json:"includeStays"`
}

// Invoice is a priced bill for one subject.
type Invoice struct {
	Number            string            `json:"number,omitempty"`
	SubjectID         string            `json:"subjectId"`
	Lines             []cart.LineItem   `json:"lines"`
	BaseCharge        Money             `json:"baseCharge"`
	Totals            cart.Totals       `json:"totals"`
	Adjusted          cart.Totals       `json:"adjusted"`
	RequestedDiscount Money             `json:"requestedGlobalDiscount"`
	AppliedDiscount   Money             `json:"appliedGlobalDiscount"`
	DiscountMode      cart.DiscountMode `json:"discountMode"`
	StayChargeIDs     []string          `json:"stayChargeIds"`
	// DeferredStayChargeIDs lists pending charges the store failed to bill;
	// they stay pending and are picked up by the next invoice.
	DeferredStayChargeIDs []string   `json:"deferredStayChargeIds,omitempty"`
	IssuedAt              *time.Time `json:"issuedAt,omitempty"`
}

// NumberIssuer claims invoice numbers and gives back claims that end up unused.
type NumberIssuer interface {
	Allocate(ctx context.Context, prefix ident.Prefix) (ident.Identifier, error)
	Release(ctx context.Context, id ident.Identifier) error
}

// Locker serialises work under a named lock.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) error
}

// Service prices and issues invoices.
type Service struct {
	Stays  stay.Store
	IDs    NumberIssuer
	Mode   cart.DiscountMode
	Logger zerolog.Logger
	Now    func() time.Time
	// Lock, when set, holds a per-subject lock for the duration of Issue.
	Lock    Locker
	LockTTL time.Duration
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) validate(req *InvoiceRequest) error {
	req.SubjectID = strings.TrimSpace(req.SubjectID)
	if err := validation.Struct(*req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for _, it := range req.Items {
		if err := it.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

// Preview prices the request against the subject's current pending stay
// charges. Nothing is persisted.
func (s *Service) Preview(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	if err := s.validate(&req); err != nil {
		return Invoice{}, err
	}
	var charges []*stay.Charge
	if req.IncludeStays {
		pending, err := s.pending(ctx, req.SubjectID)
		if err != nil {
			return Invoice{}, err
		}
		charges = pending
	}
	return s.build(req, charges)
}

// Issue numbers the invoice and bills the subject's pending stay charges.
// A charge is only included when this call won its pending → billed
// transition, so concurrent issues never bill the same charge twice.
//
// Everything is priced before any charge is claimed. If the store fails part
// way through, the invoice is still issued for the charges already billed and
// the rest are reported in DeferredStayChargeIDs. If nothing could be billed
// the invoice number is released and the error returned.
func (s *Service) Issue(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	if err := s.validate(&req); err != nil {
		return Invoice{}, err
	}
	if s.IDs == nil {
		return Invoice{}, errors.New("billing: identifier issuer not configured")
	}
	// Bad input fails before anything is claimed.
	if _, err := s.build(req, nil); err != nil {
		return Invoice{}, err
	}
	if s.Lock == nil {
		return s.issue(ctx, req)
	}
	var inv Invoice
	err := s.Lock.WithLock(ctx, "invoice:"+req.SubjectID, s.LockTTL, func(ctx context.Context) error {
		var err error
		inv, err = s.issue(ctx, req)
		return err
	})
	return inv, err
}

func (s *Service) issue(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	var pending []*stay.Charge
	if req.IncludeStays {
		var err error
		if pending, err = s.pending(ctx, req.SubjectID); err != nil {
			return Invoice{}, err
		}
		// Any subset of the pending charges prices within these totals.
		if _, err := s.build(req, pending); err != nil {
			return Invoice{}, err
		}
	}

	number, err := s.IDs.Allocate(ctx, ident.PrefixInvoice)
	if err != nil {
		return Invoice{}, fmt.Errorf("billing: allocate invoice number: %w", err)
	}

	issuedAt := s.now().UTC()
	var (
		billed   []*stay.Charge
		deferred []string
		markErr  error
	)
	for i, c := range pending {
		changed, err := s.Stays.MarkBilled(ctx, c.ID(), issuedAt)
		if err != nil {
			markErr = fmt.Errorf("billing: mark stay charge %s billed: %w", c.ID(), err)
			for _, rest := range pending[i:] {
				deferred = append(deferred, rest.ID())
			}
			break
		}
		if changed {
			billed = append(billed, c)
		}
	}
	if markErr != nil && len(billed) == 0 {
		s.release(ctx, number)
		return Invoice{}, markErr
	}

	inv, err := s.build(req, billed)
	if err != nil {
		if len(billed) == 0 {
			s.release(ctx, number)
		}
		return Invoice{}, err
	}
	inv.Number = number.String()
	inv.IssuedAt = &issuedAt
	inv.DeferredStayChargeIDs = deferred

	if obs.InvoicesIssuedTotal != nil {
		obs.InvoicesIssuedTotal.Inc()
	}
	if inv.AppliedDiscount < inv.RequestedDiscount && obs.GlobalDiscountClampedTotal != nil {
		obs.GlobalDiscountClampedTotal.Inc()
	}
	if markErr != nil {
		s.Logger.Warn().
			Err(markErr).
			Str("invoice", inv.Number).
			Str("subject_id", inv.SubjectID).
			Strs("deferred_stay_charges", deferred).
			Msg("invoice issued with deferred stay charges")
	}
	s.Logger.Info().
		Str("invoice", inv.Number).
		Str("subject_id", inv.SubjectID).
		Int("stay_charges", len(inv.StayChargeIDs)).
		Int64("net_payable", inv.Adjusted.NetPayable).
		Str("discount_mode", string(inv.DiscountMode)).
		Msg("invoice issued")
	return inv, nil
}

func (s *Service) release(ctx context.Context, number ident.Identifier) {
	if err := s.IDs.Release(context.WithoutCancel(ctx), number); err != nil {
		s.Logger.Warn().Err(err).Str("invoice", number.String()).Msg("invoice number release failed")
	}
}

func (s *Service) pending(ctx context.Context, subjectID string) ([]*stay.Charge, error) {
	if s.Stays == nil {
		return nil, errors.New("billing: stay store not configured")
	}
	charges, err := s.Stays.ListPending(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("billing: list pending stays: %w", err)
	}
	return charges, nil
}

func (s *Service) build(req InvoiceRequest, charges []*stay.Charge) (Invoice, error) {
	mode := s.Mode
	if mode == "" {
		mode = cart.DiscountModeCorrected
	}
	lines := make([]cart.LineItem, 0, len(req.Items)+len(charges))
	lines = append(lines, req.Items...)
	ids := make([]string, 0, len(charges))
	for _, c := range charges {
		lines = append(lines, StayLine(c))
		ids = append(ids, c.ID())
	}
	totals, err := cart.Aggregate(lines, req.BaseCharge)
	if err != nil {
		return Invoice{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	adjusted, err := cart.ApplyGlobalDiscount(totals, req.GlobalDiscount, mode)
	if err != nil {
		return Invoice{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return Invoice{
		SubjectID:         req.SubjectID,
		Lines:             lines,
		BaseCharge:        req.BaseCharge,
		Totals:            totals,
		Adjusted:          adjusted,
		RequestedDiscount: req.GlobalDiscount,
		AppliedDiscount:   cart.AppliedDiscount(totals, req.GlobalDiscount),
		DiscountMode:      mode,
		StayChargeIDs:     ids,
	}, nil
}

// StayLine renders a stay charge as a cart line: the origin tariff per day
// times the days stayed, carrying the charge's tax rate.
func StayLine(c *stay.Charge) cart.LineItem {
	desc := fmt.Sprintf("bed stay %d day(s)", c.DaysStayed())
	if bed := strings.TrimSpace(c.FromBed()); bed != "" {
		desc = fmt.Sprintf("bed %s stay %d day(s)", bed, c.DaysStayed())
	}
	return cart.LineItem{
		ID:          c.ID(),
		Description: desc,
		UnitPrice:   c.FromTariff(),
		Qty:         c.DaysStayed(),
		TaxPct:      c.TaxPct(),
	}
}
