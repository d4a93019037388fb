// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package sessiontoken

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/bastion-auth/bastion/lib/codec"
	"github.com/bastion-auth/bastion/lib/model"
)

// signatureSize is the fixed size of an Ed25519 signature.
const signatureSize = ed25519.SignatureSize // 64 bytes

// Token is the CBOR-encoded payload of a session token: the minimum
// state needed to reconstruct a trusted session. The full user record
// stays in the directory; a token holder that needs it re-reads it.
type Token struct {
	// UserID is the authenticated principal.
	UserID string `cbor:"1,keyasint"`

	// SessionID is the session identifier the token was minted
	// from. Carried for audit correlation and revocation.
	SessionID string `cbor:"2,keyasint"`

	// Roles are the activated role names, in activation order.
	Roles []string `cbor:"3,keyasint,omitempty"`

	// AdminRoles are the activated administrative role names.
	AdminRoles []string `cbor:"4,keyasint,omitempty"`

	// TimeoutSeconds is the session inactivity limit in seconds.
	// Zero means no inactivity limit.
	TimeoutSeconds int64 `cbor:"5,keyasint,omitempty"`

	// Props are the session's audit properties.
	Props map[string]string `cbor:"6,keyasint,omitempty"`

	// IssuedAt is a Unix timestamp (seconds) of when the token was
	// minted.
	IssuedAt int64 `cbor:"7,keyasint"`

	// ExpiresAt is a Unix timestamp (seconds) after which the token
	// is no longer valid.
	ExpiresAt int64 `cbor:"8,keyasint"`
}

// Errors returned by Verify and related functions.
var (
	ErrTokenTooShort    = errors.New("sessiontoken: token too short for signature")
	ErrInvalidSignature = errors.New("sessiontoken: invalid Ed25519 signature")
	ErrTokenExpired     = errors.New("sessiontoken: token has expired")
	ErrTokenRevoked     = errors.New("sessiontoken: token has been revoked")
)

// FromSession captures a session's activated state as a token payload.
// The token expires at issued+ttl regardless of the session's own
// inactivity timeout.
func FromSession(session *model.Session, issued time.Time, ttl time.Duration) *Token {
	return &Token{
		UserID:         session.UserID,
		SessionID:      session.ID,
		Roles:          session.RoleNames(),
		AdminRoles:     session.AdminRoleNames(),
		TimeoutSeconds: int64(session.Timeout / time.Second),
		Props:          session.Props,
		IssuedAt:       issued.Unix(),
		ExpiresAt:      issued.Add(ttl).Unix(),
	}
}

// Session reconstructs a trusted session from the token payload. The
// result is authenticated and trusted, carries name-only role
// bindings, and has no user record attached.
func (t *Token) Session(at time.Time) *model.Session {
	session := &model.Session{
		ID:            t.SessionID,
		UserID:        t.UserID,
		Authenticated: true,
		Trusted:       true,
		Timeout:       time.Duration(t.TimeoutSeconds) * time.Second,
		LastAccess:    at,
		Props:         t.Props,
	}
	for _, role := range t.Roles {
		session.Roles = append(session.Roles, model.UserRole{Role: role})
	}
	for _, role := range t.AdminRoles {
		session.AdminRoles = append(session.AdminRoles, model.UserAdminRole{Role: role})
	}
	return session
}

// Mint signs a Token and returns the raw wire-format bytes:
// CBOR-encoded payload followed by the 64-byte Ed25519 signature.
func Mint(privateKey ed25519.PrivateKey, token *Token) ([]byte, error) {
	payload, err := codec.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("sessiontoken: encoding token payload: %w", err)
	}

	signature := ed25519.Sign(privateKey, payload)

	result := make([]byte, len(payload)+signatureSize)
	copy(result, payload)
	copy(result[len(payload):], signature)

	return result, nil
}

// Verify splits the raw token bytes, verifies the Ed25519 signature,
// CBOR-decodes the payload, and checks expiry.
//
// The caller should additionally consult a Revocations set for tokens
// invalidated before their natural expiry.
func Verify(publicKey ed25519.PublicKey, tokenBytes []byte) (*Token, error) {
	return VerifyAt(publicKey, tokenBytes, time.Now())
}

// VerifyAt is like Verify but accepts an explicit time for the expiry
// check. This supports deterministic testing.
func VerifyAt(publicKey ed25519.PublicKey, tokenBytes []byte, now time.Time) (*Token, error) {
	if len(tokenBytes) <= signatureSize {
		return nil, ErrTokenTooShort
	}

	splitPoint := len(tokenBytes) - signatureSize
	payload := tokenBytes[:splitPoint]
	signature := tokenBytes[splitPoint:]

	if !ed25519.Verify(publicKey, payload, signature) {
		return nil, ErrInvalidSignature
	}

	var token Token
	if err := codec.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("sessiontoken: decoding token payload: %w", err)
	}

	if now.Unix() >= token.ExpiresAt {
		return nil, ErrTokenExpired
	}

	return &token, nil
}
