// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package sessiontoken

import (
	"crypto/ed25519"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/bastion-auth/bastion/lib/model"
)

var issued = time.Date(2026, time.March, 16, 10, 0, 0, 0, time.UTC)

func testKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	public, private, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	return public, private
}

func sampleSession() *model.Session {
	return &model.Session{
		ID:            "f3a9c2d1e8b74650a1b2c3d4e5f60718",
		UserID:        "alice",
		Authenticated: true,
		Roles: []model.UserRole{
			{Role: "developer"},
			{Role: "reviewer"},
		},
		AdminRoles: []model.UserAdminRole{{Role: "help-desk"}},
		Timeout:    30 * time.Minute,
		Props:      map[string]string{"host": "bastion-01"},
	}
}

func TestMintVerifyRoundtrip(t *testing.T) {
	public, private := testKeypair(t)
	token := FromSession(sampleSession(), issued, 5*time.Minute)

	raw, err := Mint(private, token)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	verified, err := VerifyAt(public, raw, issued.Add(time.Minute))
	if err != nil {
		t.Fatalf("VerifyAt: %v", err)
	}
	if verified.UserID != "alice" || verified.SessionID != token.SessionID {
		t.Fatalf("verified = %+v, want the minted identity", verified)
	}
	if !reflect.DeepEqual(verified.Roles, []string{"developer", "reviewer"}) {
		t.Fatalf("roles = %v, want activation order preserved", verified.Roles)
	}
	if verified.TimeoutSeconds != 30*60 {
		t.Fatalf("timeout = %d seconds, want 1800", verified.TimeoutSeconds)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	public, private := testKeypair(t)
	raw, err := Mint(private, FromSession(sampleSession(), issued, 5*time.Minute))
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	// Flip one payload byte.
	tampered := append([]byte(nil), raw...)
	tampered[3] ^= 0x01
	if _, err := VerifyAt(public, tampered, issued); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered payload = %v, want ErrInvalidSignature", err)
	}

	// Flip one signature byte.
	tampered = append([]byte(nil), raw...)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := VerifyAt(public, tampered, issued); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("tampered signature = %v, want ErrInvalidSignature", err)
	}

	// A different key must not verify.
	otherPublic, _ := testKeypair(t)
	if _, err := VerifyAt(otherPublic, raw, issued); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("wrong key = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyRejectsShortInput(t *testing.T) {
	public, _ := testKeypair(t)
	if _, err := VerifyAt(public, make([]byte, signatureSize), issued); !errors.Is(err, ErrTokenTooShort) {
		t.Fatalf("short input = %v, want ErrTokenTooShort", err)
	}
}

func TestVerifyExpiry(t *testing.T) {
	public, private := testKeypair(t)
	raw, err := Mint(private, FromSession(sampleSession(), issued, 5*time.Minute))
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := VerifyAt(public, raw, issued.Add(4*time.Minute)); err != nil {
		t.Fatalf("verify before expiry: %v", err)
	}
	// Expiry is exclusive: the expiry instant itself rejects.
	if _, err := VerifyAt(public, raw, issued.Add(5*time.Minute)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("at expiry = %v, want ErrTokenExpired", err)
	}
	if _, err := VerifyAt(public, raw, issued.Add(time.Hour)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("past expiry = %v, want ErrTokenExpired", err)
	}
}

func TestTokenSessionReconstruction(t *testing.T) {
	original := sampleSession()
	token := FromSession(original, issued, 5*time.Minute)

	at := issued.Add(time.Minute)
	session := token.Session(at)

	if !session.Authenticated || !session.Trusted {
		t.Fatalf("flags = auth %v trusted %v, want both", session.Authenticated, session.Trusted)
	}
	if session.UserID != "alice" || session.ID != original.ID {
		t.Fatalf("identity = %s/%s, want the original's", session.UserID, session.ID)
	}
	if got := session.RoleNames(); !reflect.DeepEqual(got, []string{"developer", "reviewer"}) {
		t.Fatalf("roles = %v", got)
	}
	if got := session.AdminRoleNames(); !reflect.DeepEqual(got, []string{"help-desk"}) {
		t.Fatalf("admin roles = %v", got)
	}
	if session.Timeout != 30*time.Minute {
		t.Fatalf("timeout = %v, want 30m", session.Timeout)
	}
	if !session.LastAccess.Equal(at) {
		t.Fatalf("last access = %v, want the reconstruction time", session.LastAccess)
	}
	if session.User != nil {
		t.Fatal("reconstructed session carries a user record")
	}
}

func TestSaveLoadKeypair(t *testing.T) {
	dir := t.TempDir()
	public, private := testKeypair(t)

	if err := SaveKeypair(dir, public, private); err != nil {
		t.Fatalf("SaveKeypair: %v", err)
	}
	loadedPublic, loadedPrivate, err := LoadKeypair(dir)
	if err != nil {
		t.Fatalf("LoadKeypair: %v", err)
	}
	if !public.Equal(loadedPublic) || !private.Equal(loadedPrivate) {
		t.Fatal("loaded keypair differs from saved")
	}
}

func TestLoadKeypairMissing(t *testing.T) {
	if _, _, err := LoadKeypair(t.TempDir()); err == nil {
		t.Fatal("load from an empty directory succeeded")
	}
}

func TestLoadOrGenerateKeypair(t *testing.T) {
	dir := t.TempDir()

	public, private, generated, err := LoadOrGenerateKeypair(dir)
	if err != nil {
		t.Fatalf("LoadOrGenerateKeypair: %v", err)
	}
	if !generated {
		t.Fatal("first call did not generate")
	}

	// Second call loads the same pair.
	loadedPublic, loadedPrivate, generated, err := LoadOrGenerateKeypair(dir)
	if err != nil {
		t.Fatalf("second LoadOrGenerateKeypair: %v", err)
	}
	if generated {
		t.Fatal("second call regenerated")
	}
	if !public.Equal(loadedPublic) || !private.Equal(loadedPrivate) {
		t.Fatal("second call returned a different keypair")
	}
}

func TestLoadOrGenerateKeypairCorrupt(t *testing.T) {
	dir := t.TempDir()
	public, private := testKeypair(t)
	if err := SaveKeypair(dir, public, private[:32]); err != nil {
		t.Fatalf("SaveKeypair: %v", err)
	}

	// A present-but-truncated private key must surface as an error,
	// never be silently replaced.
	if _, _, _, err := LoadOrGenerateKeypair(dir); err == nil {
		t.Fatal("corrupt private key silently regenerated")
	}
}

func TestRevocations(t *testing.T) {
	r := NewRevocations()
	expiry := issued.Add(5 * time.Minute)

	if r.IsRevoked("session-a") {
		t.Fatal("empty set reports revoked")
	}
	r.Revoke("session-a", expiry)
	if !r.IsRevoked("session-a") {
		t.Fatal("revoked session not found")
	}
	if r.IsRevoked("session-b") {
		t.Fatal("unrevoked session reported revoked")
	}

	// Sweep keeps live entries and drops expired ones.
	if removed := r.Sweep(issued); removed != 0 || r.Len() != 1 {
		t.Fatalf("early sweep removed %d, len %d", removed, r.Len())
	}
	if removed := r.Sweep(expiry); removed != 1 || r.Len() != 0 {
		t.Fatalf("sweep at expiry removed %d, len %d", removed, r.Len())
	}
}

func TestSignedRevocationRoundtrip(t *testing.T) {
	public, private := testKeypair(t)
	request := &RevocationRequest{
		Entries: []RevocationEntry{
			{SessionID: "session-a", ExpiresAt: issued.Add(5 * time.Minute).Unix()},
			{SessionID: "session-b", ExpiresAt: issued.Add(9 * time.Minute).Unix()},
		},
		IssuedAt: issued.Unix(),
	}

	data, err := SignRevocation(private, request)
	if err != nil {
		t.Fatalf("SignRevocation: %v", err)
	}

	r := NewRevocations()
	if err := r.Apply(public, data); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !r.IsRevoked("session-a") || !r.IsRevoked("session-b") {
		t.Fatal("applied entries not revoked")
	}

	// Tampered data is rejected and applies nothing.
	tampered := append([]byte(nil), data...)
	tampered[0] ^= 0x01
	fresh := NewRevocations()
	if err := fresh.Apply(public, tampered); !errors.Is(err, ErrRevocationBadSig) {
		t.Fatalf("tampered apply = %v, want ErrRevocationBadSig", err)
	}
	if fresh.Len() != 0 {
		t.Fatal("tampered apply added entries")
	}
}

func TestVerifyRevocationRejectsEmpty(t *testing.T) {
	public, private := testKeypair(t)
	data, err := SignRevocation(private, &RevocationRequest{IssuedAt: issued.Unix()})
	if err != nil {
		t.Fatalf("SignRevocation: %v", err)
	}
	if _, err := VerifyRevocation(public, data); !errors.Is(err, ErrRevocationNoEntries) {
		t.Fatalf("empty request = %v, want ErrRevocationNoEntries", err)
	}
}
