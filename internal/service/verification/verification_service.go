// Package verification decides at the exit whether a token lets the customer leave.
package verification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/events"
	"github.com/mamadbah2/selfcheckout/internal/metrics"
	"github.com/mamadbah2/selfcheckout/internal/repository"
)

// Result codes.
const (
	CodeVerified    = "verified"
	CodeNotFound    = "not_found"
	CodeAlreadyUsed = "already_used"
	CodeExpired     = "expired"
)

// Messages shown to staff.
const (
	MessageVerified    = "Verified — allow exit"
	MessageNotFound    = "Token not found"
	MessageAlreadyUsed = "Token already used"
	MessageExpired     = "Token expired"
)

// Result is the outcome of a verification attempt.
type Result struct {
	Valid   bool              `json:"valid"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Token   *models.ExitToken `json:"token,omitempty"`
}

// Err maps a rejected result onto the error taxonomy. It is nil for a valid result.
func (r Result) Err() error {
	switch r.Code {
	case CodeNotFound:
		return models.ErrTokenNotFound
	case CodeAlreadyUsed:
		return models.ErrTokenAlreadyUsed
	case CodeExpired:
		return models.ErrTokenExpired
	}
	return nil
}

// TokenStore is the slice of the ledger the service needs.
type TokenStore interface {
	GetToken(ctx context.Context, id string) (models.ExitToken, error)
	UpdateTokenStatus(ctx context.Context, id string, from, to models.TokenStatus) error
	ListTokens(ctx context.Context) ([]models.ExitToken, error)
}

var _ TokenStore = (repository.LedgerStore)(nil)

// Service verifies and expires exit tokens.
type Service struct {
	tokens  TokenStore
	events  *events.Emitter
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires a verification service.
func NewService(tokens TokenStore, emitter *events.Emitter, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{tokens: tokens, events: emitter, metrics: m, logger: logger, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Verify consumes an active, unexpired token. Every other state yields a rejected
// Result with a nil error; only storage failures return an error.
func (s *Service) Verify(ctx context.Context, tokenID string) (Result, error) {
	tokenID = strings.ToUpper(strings.TrimSpace(tokenID))

	token, err := s.tokens.GetToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return s.finish(tokenID, Result{Code: CodeNotFound, Message: MessageNotFound}), nil
		}
		return Result{}, fmt.Errorf("verify %s: %w", tokenID, err)
	}

	result, err := s.evaluate(ctx, token)
	if err != nil {
		return Result{}, fmt.Errorf("verify %s: %w", tokenID, err)
	}
	return s.finish(tokenID, result), nil
}

func (s *Service) evaluate(ctx context.Context, token models.ExitToken) (Result, error) {
	now := s.now()

	switch token.Status {
	case models.TokenVerified:
		return rejected(CodeAlreadyUsed, MessageAlreadyUsed, token), nil
	case models.TokenExpired:
		return rejected(CodeExpired, MessageExpired, token), nil
	}

	to := models.TokenVerified
	if token.ExpiredAt(now) {
		to = models.TokenExpired
	}

	err := s.tokens.UpdateTokenStatus(ctx, token.ID, models.TokenActive, to)
	if errors.Is(err, models.ErrStatusConflict) {
		// Another verifier or the sweep moved the token first; report what it became.
		current, getErr := s.tokens.GetToken(ctx, token.ID)
		if getErr != nil {
			return Result{}, getErr
		}
		if current.Status == models.TokenActive {
			return Result{}, fmt.Errorf("token %s still active after conflicting update: %w", token.ID, models.ErrStatusConflict)
		}
		return s.evaluate(ctx, current)
	}
	if err != nil {
		return Result{}, err
	}

	token.Status = to
	if to == models.TokenExpired {
		s.events.Emit(events.TokenEvent(events.TypeTokenExpired, token, now))
		return rejected(CodeExpired, MessageExpired, token), nil
	}

	s.events.Emit(events.TokenEvent(events.TypeTokenVerified, token, now))
	return Result{Valid: true, Code: CodeVerified, Message: MessageVerified, Token: &token}, nil
}

func (s *Service) finish(tokenID string, result Result) Result {
	s.metrics.ObserveVerification(result.Code)
	s.logger.Info("token verification",
		zap.String("token_id", tokenID),
		zap.String("result", result.Code),
		zap.Bool("valid", result.Valid),
	)
	return result
}

func rejected(code, message string, token models.ExitToken) Result {
	return Result{Code: code, Message: message, Token: &token}
}

// ListActiveTokens returns tokens that are active and unexpired, newest first.
func (s *Service) ListActiveTokens(ctx context.Context) ([]models.ExitToken, error) {
	tokens, err := s.tokens.ListTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}

	now := s.now()
	active := make([]models.ExitToken, 0, len(tokens))
	for _, token := range tokens {
		if token.EffectiveStatus(now) == models.TokenActive {
			active = append(active, token)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Timestamp.After(active[j].Timestamp) })
	return active, nil
}

// ExpireStale moves every active token past its window to expired and returns how
// many it changed. Tokens that change concurrently are skipped.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	tokens, err := s.tokens.ListTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("list tokens: %w", err)
	}

	now := s.now()
	var expired int
	for _, token := range tokens {
		if token.Status != models.TokenActive || !token.ExpiredAt(now) {
			continue
		}
		err := s.tokens.UpdateTokenStatus(ctx, token.ID, models.TokenActive, models.TokenExpired)
		switch {
		case err == nil:
			expired++
			token.Status = models.TokenExpired
			s.events.Emit(events.TokenEvent(events.TypeTokenExpired, token, now))
		case errors.Is(err, models.ErrStatusConflict):
		default:
			return expired, fmt.Errorf("expire %s: %w", token.ID, err)
		}
	}

	s.metrics.AddExpired(expired)
	if expired > 0 {
		s.logger.Info("expired stale tokens", zap.Int("count", expired))
	}
	return expired, nil
}
