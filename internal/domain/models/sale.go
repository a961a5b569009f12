package models

import "time"

// SaleRecord is an immutable ledger entry created by checkout.
type SaleRecord struct {
	ID        string     `bson:"_id" json:"id"`
	Timestamp time.Time  `bson:"timestamp" json:"timestamp"`
	Items     []CartItem `bson:"items" json:"items"`
	Subtotal  Money      `bson:"subtotal" json:"subtotal"`
	TaxTotal  Money      `bson:"tax_total" json:"tax_total"`
	Total     Money      `bson:"total" json:"total"`
	TokenID   string     `bson:"token_id" json:"token_id"`
}

// ItemCount returns the number of units sold.
func (s SaleRecord) ItemCount() int {
	var n int
	for _, item := range s.Items {
		n += item.Quantity
	}
	return n
}
