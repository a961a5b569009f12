package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExitToken_EffectiveStatus(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	token := ExitToken{ID: "TKN-1", Timestamp: issued, ExpiresAt: issued.Add(DefaultTokenValidity), Status: TokenActive}

	assert.Equal(t, TokenActive, token.EffectiveStatus(issued.Add(29*time.Minute)))
	assert.Equal(t, TokenExpired, token.EffectiveStatus(issued.Add(30*time.Minute)))

	token.Status = TokenVerified
	assert.Equal(t, TokenVerified, token.EffectiveStatus(issued.Add(time.Hour)))
}

func TestProduct_Validate(t *testing.T) {
	valid := Product{Name: "Milk", Barcode: "123456", Price: 250, Tax: 20, Stock: 1}
	assert.NoError(t, valid.Validate())

	cases := map[string]func(p *Product){
		"name":    func(p *Product) { p.Name = " " },
		"barcode": func(p *Product) { p.Barcode = "" },
		"price":   func(p *Product) { p.Price = -1 },
		"tax":     func(p *Product) { p.Tax = -1 },
		"stock":   func(p *Product) { p.Stock = -1 },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			p := valid
			mutate(&p)
			err := p.Validate()
			assert.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			if assert.True(t, errors.As(err, &verr)) {
				assert.Equal(t, field, verr.Field)
			}
		})
	}
}

func TestErrorTaxonomy(t *testing.T) {
	assert.ErrorIs(t, ErrProductNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrTokenNotFound, ErrNotFound)
	assert.ErrorIs(t, &InsufficientStockError{ProductID: "1"}, ErrInsufficientStock)
	assert.ErrorIs(t, Unavailable("get token", errors.New("boom")), ErrStorageUnavailable)
}

type labeledErr struct{ label string }

func (e labeledErr) Error() string { return "write conflict" }
func (e labeledErr) HasErrorLabel(label string) bool { return label == e.label }

func TestUnavailable_KeepsCause(t *testing.T) {
	cause := labeledErr{label: "TransientTransactionError"}
	err := Unavailable("adjust stock", cause)

	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, cause)

	var labeled interface{ HasErrorLabel(string) bool }
	assert.True(t, errors.As(err, &labeled))
	assert.True(t, labeled.HasErrorLabel("TransientTransactionError"))
}
