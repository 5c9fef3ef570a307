// Package stay computes bed-stay charges at transfer time and tracks their
// pending → billed lifecycle.
package stay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/hospital-billing/internal/money"
	"github.com/noah-isme/hospital-billing/internal/validation"
)

var (
	// ErrInvalidInput is returned when a transfer record fails validation.
	ErrInvalidInput = errors.New("stay: invalid input")
	// ErrNotFound indicates the requested stay charge does not exist.
	ErrNotFound = errors.New("stay: charge not found")
	// ErrStoreUnavailable indicates the backing store is not configured or is
	// being short-circuited after repeated failures.
	ErrStoreUnavailable = errors.New("stay: store unavailable")
)

// Money represents a monetary value stored in minor units.
type Money = money.Money

// Status is the billing state of a stay charge.
type Status string

const (
	StatusPending Status = "pending"
	StatusBilled  Status = "billed"
)

const day = 24 * time.Hour

// DaysStayed returns the number of whole elapsed days between admission and
// transfer, never less than one.
func DaysStayed(admission, transfer time.Time) int {
	days := int(transfer.Sub(admission) / day)
	return max(days, 1)
}

// ChargeInput describes the occupancy being settled by a transfer.
type ChargeInput struct {
	SubjectID     string        `json:"subjectId" validate:"required"`
	FromBed       string        `json:"fromBed"`
	ToBed         string        `json:"toBed"`
	FromTariff    Money         `json:"fromTariff" validate:"gte=0,lte=1000000000000000"`
	AdmissionDate time.Time     `json:"admissionDate" validate:"required"`
	TransferDate  time.Time     `json:"transferDate" validate:"required"`
	TaxPct        money.Percent `json:"taxPct" validate:"gte=0,lte=100"`
}

// Charge is the amount owed for time spent in the bed being vacated.
// Days and amount are fixed at creation; only the status moves.
type Charge struct {
	id            string
	subjectID     string
	fromBed       string
	toBed         string
	fromTariff    Money
	admissionDate time.Time
	transferDate  time.Time
	daysStayed    int
	totalAmount   Money
	taxPct        money.Percent
	status        Status
	createdAt     time.Time
	billedAt      time.Time
}

// NewCharge prorates the origin bed's daily tariff over the stay and returns a
// pending charge.
func NewCharge(in ChargeInput, now time.Time) (*Charge, error) {
	in.SubjectID = strings.TrimSpace(in.SubjectID)
	if err := validation.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.TransferDate.Before(in.AdmissionDate) {
		return nil, fmt.Errorf("%w: transferDate precedes admissionDate", ErrInvalidInput)
	}
	days := DaysStayed(in.AdmissionDate, in.TransferDate)
	total, err := money.Fit(decimal.NewFromInt(int64(days)).Mul(decimal.NewFromInt(in.FromTariff)))
	if err != nil {
		return nil, fmt.Errorf("%w: %d day(s) at %d: %v", ErrInvalidInput, days, in.FromTariff, err)
	}
	return &Charge{
		id:            uuid.NewString(),
		subjectID:     in.SubjectID,
		fromBed:       in.FromBed,
		toBed:         in.ToBed,
		fromTariff:    in.FromTariff,
		admissionDate: in.AdmissionDate.UTC(),
		transferDate:  in.TransferDate.UTC(),
		daysStayed:    days,
		totalAmount:   total,
		taxPct:        in.TaxPct,
		status:        StatusPending,
		createdAt:     now.UTC(),
	}, nil
}

// Read-only accessors.
func (c *Charge) ID() string               { return c.id }
func (c *Charge) SubjectID() string        { return c.subjectID }
func (c *Charge) FromBed() string          { return c.fromBed }
func (c *Charge) ToBed() string            { return c.toBed }
func (c *Charge) FromTariff() Money        { return c.fromTariff }
func (c *Charge) AdmissionDate() time.Time { return c.admissionDate }
func (c *Charge) TransferDate() time.Time  { return c.transferDate }
func (c *Charge) DaysStayed() int          { return c.daysStayed }
func (c *Charge) TotalAmount() Money       { return c.totalAmount }
func (c *Charge) TaxPct() money.Percent    { return c.taxPct }
func (c *Charge) Status() Status           { return c.status }
func (c *Charge) CreatedAt() time.Time     { return c.createdAt }
func (c *Charge) BilledAt() time.Time      { return c.billedAt }
func (c *Charge) Pending() bool            { return c.status == StatusPending }

// MarkBilled moves a pending charge to billed and reports whether it changed.
// Calling it on an already billed charge is a no-op.
func (c *Charge) MarkBilled(at time.Time) bool {
	if c.status == StatusBilled {
		return false
	}
	c.status = StatusBilled
	c.billedAt = at.UTC()
	return true
}

// Clone returns a detached copy.
func (c *Charge) Clone() *Charge {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Record is the flat, serialisable form of a Charge.
type Record struct {
	ID            string        `json:"id"`
	SubjectID     string        `json:"subjectId"`
	FromBed       string        `json:"fromBed,omitempty"`
	ToBed         string        `json:"toBed,omitempty"`
	FromTariff    Money         `json:"fromTariff"`
	AdmissionDate time.Time     `json:"admissionDate"`
	TransferDate  time.Time     `json:"transferDate"`
	DaysStayed    int           `json:"daysStayed"`
	TotalAmount   Money         `json:"totalAmount"`
	TaxPct        money.Percent `json:"taxPct"`
	Status        Status        `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	BilledAt      *time.Time    `json:"billedAt,omitempty"`
}

// Record snapshots the charge.
func (c *Charge) Record() Record {
	rec := Record{
		ID:            c.id,
		SubjectID:     c.subjectID,
		FromBed:       c.fromBed,
		ToBed:         c.toBed,
		FromTariff:    c.fromTariff,
		AdmissionDate: c.admissionDate,
		TransferDate:  c.transferDate,
		DaysStayed:    c.daysStayed,
		TotalAmount:   c.totalAmount,
		TaxPct:        c.taxPct,
		Status:        c.status,
		CreatedAt:     c.createdAt,
	}
	if !c.billedAt.IsZero() {
		billed := c.billedAt
		rec.BilledAt = &billed
	}
	return rec
}

// FromRecord rebuilds a charge loaded from storage.
func FromRecord(rec Record) (*Charge, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: record without id", ErrInvalidInput)
	}
	if rec.Status != StatusPending && rec.Status != StatusBilled {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, rec.Status)
	}
	c := &Charge{
		id:            rec.ID,
		subjectID:     rec.SubjectID,
		fromBed:       rec.FromBed,
		toBed:         rec.ToBed,
		fromTariff:    rec.FromTariff,
		admissionDate: rec.AdmissionDate,
		transferDate:  rec.TransferDate,
		daysStayed:    rec.DaysStayed,
		totalAmount:   rec.TotalAmount,
		taxPct:        rec.TaxPct,
		status:        rec.Status,
		createdAt:     rec.CreatedAt,
	}
	if rec.BilledAt != nil {
		c.billedAt = *rec.BilledAt
	}
	return c, nil
}
