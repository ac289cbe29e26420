package cart

import (
	"strings"

	"github.com/kiendrone/storefront/internal/domain/shared"
	"github.com/kiendrone/storefront/internal/domain/shared/valueobject"
)

// MaxLineQuantity caps the quantity of a single cart line
const MaxLineQuantity = 999

// Condition is the physical condition of a listed product
type Condition string

const (
	ConditionNew  Condition = "new"
	ConditionUsed Condition = "used"
)

// IsValid checks if the condition is a known value
func (c Condition) IsValid() bool {
	switch c {
	case ConditionNew, ConditionUsed:
		return true
	}
	return false
}

// ParseCondition maps catalog labels onto a Condition.
// "Mới" and "new" are New; "Cũ (Like New)", "Cũ (95%)" and "used" are Used.
func ParseCondition(label string) Condition {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case l == "", l == "new", l == "mới":
		return ConditionNew
	case l == "used", strings.HasPrefix(l, "cũ"):
		return ConditionUsed
	}
	return ConditionNew
}

// Product is the catalog view of an item being put into the cart
type Product struct {
	ID        string
	Name      string
	Brand     string
	Condition Condition
	Price     valueobject.Money
	ImageRef  string
}

// Validate checks the product can become a cart line
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return shared.NewDomainError("INVALID_INPUT", "Product ID cannot be empty")
	}
	if strings.TrimSpace(p.Name) == "" {
		return shared.NewDomainError("INVALID_INPUT", "Product name cannot be empty")
	}
	if p.Price.IsNegative() {
		return shared.NewDomainError("INVALID_INPUT", "Product price cannot be negative")
	}
	if p.Price.Currency() != valueobject.DefaultCurrency {
		return shared.NewDomainError("INVALID_INPUT", "Product price must be in "+string(valueobject.DefaultCurrency))
	}
	return nil
}

// CartLine is one product entry in the cart with its quantity
type CartLine struct {
	ProductID string
	Name      string
	UnitPrice valueobject.Money
	Quantity  int
	Brand     string
	Condition Condition
	ImageRef  string
}

// LineTotal returns unit price times quantity
func (l CartLine) LineTotal() valueobject.Money {
	return l.UnitPrice.MultiplyByInt(int64(l.Quantity))
}

// ShoppingCart is an ordered set of lines keyed by product ID.
// No two lines share a product ID and every quantity is at least 1.
type ShoppingCart struct {
	lines []CartLine
}

// NewShoppingCart creates an empty cart
func NewShoppingCart() *ShoppingCart {
	return &ShoppingCart{lines: make([]CartLine, 0)}
}

func (c *ShoppingCart) indexOf(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add increments the quantity of an existing line or appends a new line
// with quantity 1. Returns the resulting line.
func (c *ShoppingCart) Add(p Product) (CartLine, error) {
	if err := p.Validate(); err != nil {
		return CartLine{}, err
	}
	if i := c.indexOf(p.ID); i >= 0 {
		if c.lines[i].Quantity < MaxLineQuantity {
			c.lines[i].Quantity++
		}
		return c.lines[i], nil
	}
	cond := p.Condition
	if !cond.IsValid() {
		cond = ConditionNew
	}
	line := CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Quantity:  1,
		Brand:     p.Brand,
		Condition: cond,
		ImageRef:  p.ImageRef,
	}
	c.lines = append(c.lines, line)
	return line, nil
}

// Remove deletes the line for productID. Returns false when absent.
func (c *ShoppingCart) Remove(productID string) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

// AdjustQuantity sets quantity to quantity+delta, kept within
// [1, MaxLineQuantity]. Returns false when the product is not in the cart.
func (c *ShoppingCart) AdjustQuantity(productID string, delta int) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	q := c.lines[i].Quantity
	if delta > MaxLineQuantity-q {
		q = MaxLineQuantity
	} else {
		q = max(1, q+delta)
	}
	c.lines[i].Quantity = q
	return true
}

// Clear removes every line
func (c *ShoppingCart) Clear() {
	c.lines = c.lines[:0]
}

// Lines returns a copy of the lines in insertion order
func (c *ShoppingCart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len returns the number of distinct lines
func (c *ShoppingCart) Len() int {
	return len(c.lines)
}

// IsEmpty returns true when the cart has no lines
func (c *ShoppingCart) IsEmpty() bool {
	return len(c.lines) == 0
}

// TotalItems returns the sum of all quantities
func (c *ShoppingCart) TotalItems() int {
	total := 0
	for _, l := range c.lines {
		total += l.Quantity
	}
	return total
}

// TotalValue returns the sum of unit price times quantity
func (c *ShoppingCart) TotalValue() valueobject.Money {
	return Subtotal(c.lines)
}

// Subtotal sums the line totals of lines
func Subtotal(lines []CartLine) valueobject.Money {
	total := valueobject.Zero(valueobject.DefaultCurrency)
	for _, l := range lines {
		total = total.MustAdd(l.LineTotal())
	}
	return total
}
