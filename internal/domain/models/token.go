package models

import "time"

// TokenStatus enumerates the exit token lifecycle states.
type TokenStatus string

const (
	TokenActive   TokenStatus = "active"
	TokenVerified TokenStatus = "verified"
	TokenExpired  TokenStatus = "expired"
)

// DefaultTokenValidity is how long an exit token stays verifiable after issue.
const DefaultTokenValidity = 30 * time.Minute

// ExitToken proves a completed purchase and authorizes one exit.
type ExitToken struct {
	ID        string      `bson:"_id" json:"id"`
	SaleID    string      `bson:"sale_id" json:"sale_id"`
	Timestamp time.Time   `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time   `bson:"expires_at" json:"expires_at"`
	Status    TokenStatus `bson:"status" json:"status"`
}

// ExpiredAt reports whether the token is past its validity window at now.
func (t ExitToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// EffectiveStatus folds the lazy expiry into the stored status.
func (t ExitToken) EffectiveStatus(now time.Time) TokenStatus {
	if t.Status == TokenActive && t.ExpiredAt(now) {
		return TokenExpired
	}
	return t.Status
}
