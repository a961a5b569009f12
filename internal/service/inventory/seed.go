package inventory

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
)

// seedFile is the YAML layout of a catalog seed:
//
//	products:
//	  - id: "1"
//	    barcode: "123456"
//	    name: Fresh Milk 1L
//	    price: "2.50"
//	    tax: "0.20"
//	    stock: 50
type seedFile struct {
	Products []models.Product `yaml:"products"`
}

// DefaultCatalog is the starter catalog loaded into an empty store.
func DefaultCatalog() []models.Product {
	return []models.Product{
		{ID: "1", Barcode: "123456", Name: "Fresh Milk 1L", Price: 250, Tax: 20, Stock: 50},
		{ID: "2", Barcode: "234567", Name: "Whole Grain Bread", Price: 180, Tax: 15, Stock: 30},
		{ID: "3", Barcode: "345678", Name: "Dark Chocolate", Price: 320, Tax: 40, Stock: 100},
		{ID: "4", Barcode: "456789", Name: "Coffee Beans 250g", Price: 850, Tax: 120, Stock: 20},
	}
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(data []byte) ([]models.Product, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if len(file.Products) == 0 {
		return nil, errors.New("parse seed: no products")
	}
	return file.Products, nil
}

// LoadSeed reads the seed at path, or returns DefaultCatalog when path is empty.
func LoadSeed(path string) ([]models.Product, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	return ParseSeed(data)
}
