// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package memdir is the in-memory reference implementation of the
// entity store. Tests, the seed loader, and embedders that do not run
// a directory use it; it implements the complete store.Directory
// contract, password policy enforcement included.
//
// Credentials are hashed with argon2id under a per-credential random
// salt. The hash parameters are fixed — this store exists for
// reference and testing, not for tuning.
//
// All entity reads return deep copies: callers may mutate what they
// receive without affecting the stored record, matching the
// read-snapshot semantics a real directory gives the core.
package memdir

import (
	"crypto/rand"
	"crypto/subtle"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
	"github.com/bastion-auth/bastion/lib/store"
)

// argon2id parameters for the reference store.
const (
	hashTime    = 1
	hashMemory  = 64 * 1024
	hashThreads = 4
	hashLength  = 32
	saltLength  = 16
)

// credential is a stored argon2id hash with its policy bookkeeping.
type credential struct {
	salt []byte
	hash []byte

	// setAt stamps when the credential was stored, for max-age
	// policy evaluation.
	setAt time.Time

	// failures counts consecutive failed verifications.
	failures int

	// lockedUntil is the failure-lockout deadline. Zero means not
	// locked out. The sentinel distantFuture is used when the
	// policy's lockout duration is zero (locked until an
	// administrator intervenes).
	lockedUntil time.Time

	// gracesUsed counts post-expiry grace logins consumed.
	gracesUsed int
}

// distantFuture marks an indefinite failure lockout.
var distantFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// Directory is the in-memory store. Safe for concurrent use. The
// zero value is not usable; call New.
type Directory struct {
	mu sync.RWMutex

	users       map[string]*model.User
	credentials map[string]*credential
	roles       map[string]*model.Role
	adminRoles  map[string]*model.AdminRole
	permObjects map[string]*model.PermObject
	permissions map[string]*model.Permission
	orgUnits    map[string]*model.OrgUnit
	sdSets      map[string]*model.SDSet
	groups      map[string]*model.Group
	pwPolicies  map[string]*model.PwPolicy
	settings    map[string]string

	// now is replaceable in tests for deterministic password aging
	// and lockout expiry.
	now func() time.Time
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		users:       make(map[string]*model.User),
		credentials: make(map[string]*credential),
		roles:       make(map[string]*model.Role),
		adminRoles:  make(map[string]*model.AdminRole),
		permObjects: make(map[string]*model.PermObject),
		permissions: make(map[string]*model.Permission),
		orgUnits:    make(map[string]*model.OrgUnit),
		sdSets:      make(map[string]*model.SDSet),
		groups:      make(map[string]*model.Group),
		pwPolicies:  make(map[string]*model.PwPolicy),
		settings:    make(map[string]string),
		now:         time.Now,
	}
}

// SetNowFunc replaces the directory's time source. Test hook for
// password aging and lockout expiry.
func (d *Directory) SetNowFunc(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

var _ store.Directory = (*Directory)(nil)

// orgUnitKey namespaces the two org-unit partitions in one map.
func orgUnitKey(kind model.OrgUnitKind, name string) string {
	return kind.String() + "/" + model.Normalize(name)
}

// hashPassword derives an argon2id hash under a fresh random salt.
func hashPassword(password []byte) (*credential, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, security.Wrap(security.StoreFailed, err, "generating salt")
	}
	return &credential{
		salt: salt,
		hash: argon2.IDKey(password, salt, hashTime, hashMemory, hashThreads, hashLength),
	}, nil
}

func (c *credential) matches(password []byte) bool {
	probe := argon2.IDKey(password, c.salt, hashTime, hashMemory, hashThreads, hashLength)
	return subtle.ConstantTimeCompare(probe, c.hash) == 1
}
