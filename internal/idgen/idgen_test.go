package idgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUUIDGenerator(t *testing.T) {
	gen := New()

	t.Run("token ids are presentable", func(t *testing.T) {
		id := gen.NewTokenID()
		assert.True(t, strings.HasPrefix(id, "TKN-"))
		assert.Len(t, id, len("TKN-")+13)
		assert.Equal(t, strings.ToUpper(id), id)
		assert.NotContains(t, id[4:], "I")
		assert.NotContains(t, id[4:], "O")
	})

	t.Run("sale ids carry a uuid", func(t *testing.T) {
		id := gen.NewSaleID()
		assert.True(t, strings.HasPrefix(id, "S-"))
		assert.Len(t, id, len("S-")+36)
	})

	t.Run("no collisions in a large batch", func(t *testing.T) {
		seen := make(map[string]struct{}, 10000)
		for i := 0; i < 10000; i++ {
			id := gen.NewTokenID()
			_, dup := seen[id]
			assert.False(t, dup, "duplicate token id %s", id)
			seen[id] = struct{}{}
		}
	})
}
