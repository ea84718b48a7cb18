package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentfabric/agentd/internal/agentloop"
)

// DefaultApprovalTokenTTL bounds how long an approval-callback token
// remains valid after the ApprovalNeeded event that carried it was
// broadcast, per SPEC_FULL.md §2.2.
const DefaultApprovalTokenTTL = 5 * time.Minute

// approvalClaims scopes a signed token to exactly one pending action,
// layered on top of (not replacing) the shared bearer token that already
// guards every gateway request.
type approvalClaims struct {
	ActionID string `json:"action_id"`
	jwt.RegisteredClaims
}

// signApprovalToken mints a short-lived token scoped to actionID, signed
// with the gateway's HMAC secret.
func signApprovalToken(secret []byte, actionID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultApprovalTokenTTL
	}
	claims := approvalClaims{
		ActionID: actionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// verifyApprovalToken checks that raw is a validly signed, unexpired token
// scoped to actionID.
func verifyApprovalToken(secret []byte, raw, actionID string) error {
	var claims approvalClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("gateway: unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return fmt.Errorf("gateway: approval token invalid: %w", err)
	}
	if !token.Valid {
		return errors.New("gateway: approval token invalid")
	}
	if claims.ActionID != actionID {
		return errors.New("gateway: approval token scoped to a different action")
	}
	return nil
}

// approvalEventPayload is the wire shape of an ApprovalNeeded event
// broadcast over /ws, enriched with its scoped callback token.
type approvalEventPayload struct {
	agentloop.ApprovalNeeded
	Token string `json:"token"`
}
