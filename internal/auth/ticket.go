package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/masthead-news/masthead/internal/models"
	"github.com/masthead-news/masthead/internal/store"
)

// TicketManager mints, rotates, verifies, and consumes pending-MFA tickets.
// A ticket is a signed JWT scoping one subject to one method; switching
// factors always goes through Rotate, which mints a brand-new ticket. Each
// ticket is single-use: Consume marks its JTI spent the instant a method
// handler succeeds.
type TicketManager struct {
	secret []byte
	expiry time.Duration
	store  store.EphemeralStore
}

// NewTicketManager creates a new TicketManager
func NewTicketManager(secret string, expiry time.Duration, st store.EphemeralStore) *TicketManager {
	return &TicketManager{
		secret: []byte(secret),
		expiry: expiry,
		store:  st,
	}
}

// Issue mints a signed ticket for subject scoped to method.
func (tm *TicketManager) Issue(subject, method, lane string) (string, error) {
	if !models.ValidMFAMethod(method) {
		return "", fmt.Errorf("unknown mfa method: %s", method)
	}

	now := time.Now()
	claims := &models.TicketClaims{
		Purpose: models.TokenPurposeMFA,
		Method:  method,
		Lane:    lane,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign mfa ticket: %w", err)
	}

	return signed, nil
}

// Verify parses a ticket, checks the signature, expiry, and purpose, and
// confirms the ticket has not already been consumed. It does NOT check the
// method binding; handlers do that against their own method so that a
// mismatch is reported as an invalid ticket, never as an invalid code.
func (tm *TicketManager) Verify(ctx context.Context, ticketString string) (*models.TicketClaims, error) {
	claims := &models.TicketClaims{}

	token, err := jwt.ParseWithClaims(ticketString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, models.ErrTicketInvalid
	}

	if claims.Purpose != models.TokenPurposeMFA || claims.Subject == "" || claims.ID == "" {
		return nil, models.ErrTicketInvalid
	}
	if !models.ValidMFAMethod(claims.Method) {
		return nil, models.ErrTicketInvalid
	}

	if _, err := tm.store.Get(ctx, consumedKey(claims.ID)); err == nil {
		return nil, models.ErrTicketConsumed
	} else if err != store.ErrNotFound {
		return nil, fmt.Errorf("failed to check ticket state: %w", err)
	}

	return claims, nil
}

// Rotate validates the existing ticket and mints a new one for the same
// subject with newMethod. The old ticket is consumed so an intercepted
// ticket scoped to one method can never silently satisfy another.
func (tm *TicketManager) Rotate(ctx context.Context, ticketString, newMethod string) (string, *models.TicketClaims, error) {
	claims, err := tm.Verify(ctx, ticketString)
	if err != nil {
		return "", nil, err
	}

	if err := tm.Consume(ctx, claims); err != nil {
		return "", nil, err
	}

	rotated, err := tm.Issue(claims.Subject, newMethod, claims.Lane)
	if err != nil {
		return "", nil, err
	}

	return rotated, claims, nil
}

// Consume marks the ticket spent. The spent marker lives exactly as long as
// the ticket itself; SetNX makes two concurrent consumers race to a single
// winner.
func (tm *TicketManager) Consume(ctx context.Context, claims *models.TicketClaims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return models.ErrTicketInvalid
	}

	ok, err := tm.store.SetNX(ctx, consumedKey(claims.ID), "1", ttl)
	if err != nil {
		return fmt.Errorf("failed to consume ticket: %w", err)
	}
	if !ok {
		return models.ErrTicketConsumed
	}
	return nil
}

func consumedKey(jti string) string {
	return "mfa:consumed:" + jti
}
