package cart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/hospital-billing/internal/money"
	"github.com/noah-isme/hospital-billing/internal/validation"
)

// ErrNotFound indicates the requested line item could not be located.
var ErrNotFound = errors.New("cart: line item not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("cart: invalid input")

// Money represents a monetary value stored in minor units.
type Money = money.Money

// LineItem is one priced entry in a cart.
type LineItem struct {
	ID          string        `json:"id"`
	Description string        `json:"description,omitempty"`
	UnitPrice   Money         `json:"unitPrice" validate:"gte=0,lte=1000000000000000"`
	Qty         int           `json:"qty" validate:"gte=1"`
	DiscountPct money.Percent `json:"discountPct" validate:"gte=0,lte=100"`
	TaxPct      money.Percent `json:"taxPct" validate:"gte=0,lte=100"`
}

// Validate checks the line's price, quantity and percentages.
func (it LineItem) Validate() error {
	if err := validation.Struct(it); err != nil {
		if it.ID != "" {
			return fmt.Errorf("%w: item %s: %v", ErrInvalidInput, it.ID, err)
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Cart is an ordered sequence of line items plus an optional flat base charge
// such as an admission's room charge. Order matters for display only.
type Cart struct {
	items      []LineItem
	baseCharge Money
}

// New returns an empty cart carrying baseCharge.
func New(baseCharge Money) (*Cart, error) {
	if baseCharge < 0 || baseCharge > money.MaxAmount {
		return nil, fmt.Errorf("%w: baseCharge must be within [0, %d]", ErrInvalidInput, money.MaxAmount)
	}
	return &Cart{baseCharge: baseCharge}, nil
}

// BaseCharge returns the flat charge added to the subtotal.
func (c *Cart) BaseCharge() Money { return c.baseCharge }

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Add validates and appends a line, assigning an id when none is set.
func (c *Cart) Add(it LineItem) (LineItem, error) {
	if strings.TrimSpace(it.ID) == "" {
		it.ID = uuid.NewString()
	}
	if err := it.Validate(); err != nil {
		return LineItem{}, err
	}
	if c.index(it.ID) >= 0 {
		return LineItem{}, fmt.Errorf("%w: duplicate item id %s", ErrInvalidInput, it.ID)
	}
	c.items = append(c.items, it)
	return it, nil
}

// UpdateQty sets the quantity of an existing line.
func (c *Cart) UpdateQty(id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: qty must be positive", ErrInvalidInput)
	}
	i := c.index(id)
	if i < 0 {
		return ErrNotFound
	}
	c.items[i].Qty = qty
	return nil
}

// UpdateDiscount sets the discount percentage of an existing line.
func (c *Cart) UpdateDiscount(id string, pct money.Percent) error {
	if !pct.Valid() {
		return fmt.Errorf("%w: discountPct must be within [0,100]", ErrInvalidInput)
	}
	i := c.index(id)
	if i < 0 {
		return ErrNotFound
	}
	c.items[i].DiscountPct = pct
	return nil
}

// Remove deletes a line.
func (c *Cart) Remove(id string) error {
	i := c.index(id)
	if i < 0 {
		return ErrNotFound
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return nil
}

// Totals recomputes the totals from the full line sequence.
func (c *Cart) Totals() (Totals, error) {
	return Aggregate(c.items, c.baseCharge)
}

func (c *Cart) index(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}
