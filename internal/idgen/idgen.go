// Package idgen issues sale and exit token identifiers.
package idgen

import (
	"encoding/base32"

	"github.com/google/uuid"
)

const (
	salePrefix  = "S-"
	tokenPrefix = "TKN-"
)

// crockford drops I, L, O and U so staff can read tokens aloud without ambiguity.
var crockford = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// Generator produces identifiers. Uniqueness is enforced by the stores' unique keys;
// the generator only makes collisions improbable.
type Generator interface {
	NewSaleID() string
	NewTokenID() string
}

// UUIDGenerator derives identifiers from random (version 4) UUIDs.
type UUIDGenerator struct{}

// New returns the default generator.
func New() UUIDGenerator {
	return UUIDGenerator{}
}

// NewSaleID returns "S-" followed by a full UUID.
func (UUIDGenerator) NewSaleID() string {
	return salePrefix + uuid.NewString()
}

// NewTokenID returns "TKN-" followed by 13 Crockford base32 characters carrying 64
// random bits of a UUID. Bytes 6 and 8 hold the version and variant and are skipped.
func (UUIDGenerator) NewTokenID() string {
	u := uuid.New()
	raw := make([]byte, 0, 8)
	raw = append(raw, u[0:6]...)
	raw = append(raw, u[10:12]...)
	return tokenPrefix + crockford.EncodeToString(raw)
}
