// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessiontoken implements Ed25519-signed session tokens for
// the trusted activation path.
//
// An embedding process that has already authenticated a principal once
// can mint a token capturing the session's activated state. Presenting
// the token later reconstructs a trusted session without a directory
// read or a credential check: verification is one signature check and
// one expiry comparison. This is the accelerated path for stateless
// front ends that cannot hold a Session between requests.
//
// # Wire format
//
// A token is raw bytes: the CBOR-encoded payload followed by a
// 64-byte Ed25519 signature over the payload bytes.
//
//	[CBOR payload bytes] [64-byte Ed25519 signature]
//
// The split point is always len(token) - 64. No header, no length
// prefix, no base64. The payload encodes through lib/codec's
// deterministic mode, so a payload re-encoded from the same state
// verifies against the original signature.
//
// # Revocation
//
// Tokens are bearer credentials, so early invalidation needs a
// server-side set. Revocations holds keyed BLAKE3 digests of revoked
// token IDs until each token's natural expiry; Sweep drops entries
// whose tokens would be rejected on expiry alone. A signed
// RevocationRequest carries revocations between processes using the
// same appended-signature wire format as the tokens themselves.
package sessiontoken
