package domain

// Condition distinguishes new from second-hand stock.
type Condition string

const (
	ConditionNew  Condition = "new"
	ConditionUsed Condition = "used"
)

// CartLine is one product entry in a shopping cart. PriceCents is the unit
// price captured when the line was added; it is not re-validated against the
// catalog afterward.
type CartLine struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Image      string    `json:"image,omitempty"`
	PriceCents int64     `json:"priceCents"`
	Quantity   int       `json:"quantity"`
	Condition  Condition `json:"condition"`
}

// TotalCents is the line subtotal.
func (l CartLine) TotalCents() int64 {
	return l.PriceCents * int64(l.Quantity)
}
