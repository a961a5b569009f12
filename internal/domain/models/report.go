package models

import "time"

// DailyReport aggregates one day of sales for archival and messaging.
type DailyReport struct {
	Date       time.Time `bson:"date" json:"date"`
	SalesCount int       `bson:"sales_count" json:"sales_count"`
	UnitsSold  int       `bson:"units_sold" json:"units_sold"`
	Subtotal   Money     `bson:"subtotal" json:"subtotal"`
	TaxTotal   Money     `bson:"tax_total" json:"tax_total"`
	Revenue    Money     `bson:"revenue" json:"revenue"`
	Summary    string    `bson:"summary" json:"summary"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

// Dashboard is the staff overview of the store.
type Dashboard struct {
	SalesCount   int       `json:"sales_count"`
	Revenue      Money     `json:"revenue"`
	ActiveTokens int       `json:"active_tokens"`
	LowStock     []Product `json:"low_stock"`
	GeneratedAt  time.Time `json:"generated_at"`
}
