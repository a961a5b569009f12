package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{"2.50", 250, false},
		{"0.2", 20, false},
		{"10", 1000, false},
		{"0", 0, false},
		{"-1.25", -125, false},
		{"1.005", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoney_JSON(t *testing.T) {
	t.Run("encodes fixed two decimals", func(t *testing.T) {
		data, err := json.Marshal(Money(270))
		require.NoError(t, err)
		assert.Equal(t, `"2.70"`, string(data))
	})

	t.Run("decodes string and number", func(t *testing.T) {
		var payload struct {
			A Money `json:"a"`
			B Money `json:"b"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"a":"3.20","b":1.8}`), &payload))
		assert.Equal(t, Money(320), payload.A)
		assert.Equal(t, Money(180), payload.B)
	})

	t.Run("rejects sub-cent precision", func(t *testing.T) {
		var m Money
		assert.Error(t, json.Unmarshal([]byte(`0.001`), &m))
	})
}

func TestComputeTotals_NoFloatDrift(t *testing.T) {
	item := CartItem{Product: Product{ID: "p", Price: 10, Tax: 1}, Quantity: 1}
	items := make([]CartItem, 0, 1000)
	for i := 0; i < 1000; i++ {
		items = append(items, item)
	}

	totals := ComputeTotals(items)
	assert.Equal(t, Money(10000), totals.Subtotal)
	assert.Equal(t, Money(1000), totals.TaxTotal)
	assert.Equal(t, "110.00", totals.Total.String())
}
