package models

import "strings"

// Product is a catalog entry. Price and Tax are absolute per-unit amounts.
type Product struct {
	ID      string `bson:"_id" json:"id" yaml:"id"`
	Barcode string `bson:"barcode" json:"barcode" yaml:"barcode"`
	Name    string `bson:"name" json:"name" yaml:"name"`
	Price   Money  `bson:"price" json:"price" yaml:"price"`
	Tax     Money  `bson:"tax" json:"tax" yaml:"tax"`
	Stock   int    `bson:"stock" json:"stock" yaml:"stock"`
}

// Validate checks the admin-editable fields. The identity is not checked here because
// creation assigns it.
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	case strings.TrimSpace(p.Barcode) == "":
		return &ValidationError{Field: "barcode", Reason: "must not be empty"}
	case p.Price < 0:
		return &ValidationError{Field: "price", Reason: "must be >= 0"}
	case p.Tax < 0:
		return &ValidationError{Field: "tax", Reason: "must be >= 0"}
	case p.Stock < 0:
		return &ValidationError{Field: "stock", Reason: "must be >= 0"}
	}
	return nil
}
