package models

// CartItem is a product snapshot taken when the item entered the cart.
type CartItem struct {
	Product  `bson:",inline"`
	Quantity int `bson:"quantity" json:"quantity"`
}

// ItemID identifies the cart line. One line exists per product.
func (i CartItem) ItemID() string {
	return i.Product.ID
}

// LineSubtotal is price × quantity.
func (i CartItem) LineSubtotal() Money {
	return i.Price.Mul(i.Quantity)
}

// LineTax is tax × quantity.
func (i CartItem) LineTax() Money {
	return i.Tax.Mul(i.Quantity)
}

// Totals groups the derived amounts of a set of cart lines.
type Totals struct {
	Subtotal Money `bson:"subtotal" json:"subtotal"`
	TaxTotal Money `bson:"tax_total" json:"tax_total"`
	Total    Money `bson:"total" json:"total"`
}

// ComputeTotals sums the lines in minor units.
func ComputeTotals(items []CartItem) Totals {
	var t Totals
	for _, item := range items {
		t.Subtotal += item.LineSubtotal()
		t.TaxTotal += item.LineTax()
	}
	t.Total = t.Subtotal + t.TaxTotal
	return t
}
