// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package sessiontoken

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bastion-auth/bastion/lib/codec"
)

// revocationDomainKey separates revocation digests from any other
// keyed-BLAKE3 use of token identifiers. 32 bytes, fixed.
var revocationDomainKey = [32]byte{
	'b', 'a', 's', 't', 'i', 'o', 'n', '.',
	's', 'e', 's', 's', 'i', 'o', 'n', 't',
	'o', 'k', 'e', 'n', '.', 'r', 'e', 'v',
	'o', 'k', 'e', '.', 'v', '1', 0, 0,
}

// revocationDigest computes the keyed BLAKE3 digest a session ID is
// stored under. The set never holds raw session IDs: a leaked
// revocation list must not double as a list of valid token IDs.
func revocationDigest(sessionID string) [32]byte {
	hasher, err := blake3.NewKeyed(revocationDomainKey[:])
	if err != nil {
		panic("sessiontoken: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(sessionID))
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Revocations is a thread-safe set of revoked session token IDs,
// stored as keyed digests. Entries auto-expire: each carries the
// token's natural expiry, and Sweep drops entries whose tokens would
// be rejected as expired regardless. Token TTLs are short, so the set
// stays small.
type Revocations struct {
	mu      sync.RWMutex
	entries map[[32]byte]time.Time
}

// NewRevocations creates an empty revocation set.
func NewRevocations() *Revocations {
	return &Revocations{entries: make(map[[32]byte]time.Time)}
}

// Revoke adds a session ID to the set. The expiresAt parameter is the
// token's natural expiry; the entry is dropped by Sweep after that
// time.
func (r *Revocations) Revoke(sessionID string, expiresAt time.Time) {
	digest := revocationDigest(sessionID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[digest] = expiresAt
}

// IsRevoked checks whether a session ID has been revoked.
func (r *Revocations) IsRevoked(sessionID string) bool {
	digest := revocationDigest(sessionID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.entries[digest]
	return exists
}

// Sweep removes entries whose token's natural expiry has passed and
// returns how many were dropped. Call periodically to bound growth.
func (r *Revocations) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for digest, expiresAt := range r.entries {
		if !now.Before(expiresAt) {
			delete(r.entries, digest)
			removed++
		}
	}
	return removed
}

// Len returns the current number of entries in the set.
func (r *Revocations) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// RevocationEntry identifies one token to revoke and when its natural
// expiry makes the entry collectable.
type RevocationEntry struct {
	// SessionID is the session identifier of the token to revoke.
	SessionID string `cbor:"1,keyasint"`

	// ExpiresAt is the token's natural expiry (Unix seconds).
	ExpiresAt int64 `cbor:"2,keyasint"`
}

// RevocationRequest is the payload of a signed revocation message.
// The issuer signs the CBOR encoding with the same key that mints
// tokens; receivers verify with the token public key they already
// hold.
type RevocationRequest struct {
	// Entries lists the tokens to revoke.
	Entries []RevocationEntry `cbor:"1,keyasint"`

	// IssuedAt is a Unix timestamp (seconds) of when the request
	// was created.
	IssuedAt int64 `cbor:"2,keyasint"`
}

// Errors returned by VerifyRevocation.
var (
	ErrRevocationTooShort  = errors.New("sessiontoken: revocation data too short for signature")
	ErrRevocationBadSig    = errors.New("sessiontoken: invalid revocation signature")
	ErrRevocationNoEntries = errors.New("sessiontoken: revocation request has no entries")
)

// SignRevocation signs a revocation request. The wire format mirrors
// token signing: CBOR payload followed by a 64-byte Ed25519 signature.
func SignRevocation(privateKey ed25519.PrivateKey, request *RevocationRequest) ([]byte, error) {
	payload, err := codec.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("sessiontoken: encoding revocation request: %w", err)
	}

	signature := ed25519.Sign(privateKey, payload)

	result := make([]byte, len(payload)+signatureSize)
	copy(result, payload)
	copy(result[len(payload):], signature)

	return result, nil
}

// VerifyRevocation verifies the signature on a signed revocation
// request and decodes the payload. An empty entry list is rejected.
func VerifyRevocation(publicKey ed25519.PublicKey, data []byte) (*RevocationRequest, error) {
	if len(data) <= signatureSize {
		return nil, ErrRevocationTooShort
	}

	splitPoint := len(data) - signatureSize
	payload := data[:splitPoint]
	signature := data[splitPoint:]

	if !ed25519.Verify(publicKey, payload, signature) {
		return nil, ErrRevocationBadSig
	}

	var request RevocationRequest
	if err := codec.Unmarshal(payload, &request); err != nil {
		return nil, fmt.Errorf("sessiontoken: decoding revocation request: %w", err)
	}

	if len(request.Entries) == 0 {
		return nil, ErrRevocationNoEntries
	}

	return &request, nil
}

// Apply verifies a signed revocation request and adds every entry to
// the set.
func (r *Revocations) Apply(publicKey ed25519.PublicKey, data []byte) error {
	request, err := VerifyRevocation(publicKey, data)
	if err != nil {
		return err
	}
	for _, entry := range request.Entries {
		r.Revoke(entry.SessionID, time.Unix(entry.ExpiresAt, 0))
	}
	return nil
}
