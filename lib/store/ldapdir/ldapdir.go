// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package ldapdir is the LDAP implementation of the entity store. It
// maps the bastion entity model onto a directory subtree:
//
//	ou=people       user accounts (uid=<id>)
//	ou=roles        RBAC roles (cn=<name>)
//	ou=adminroles   administrative roles (cn=<name>)
//	ou=objects      permission objects (cn=<name>), with one child
//	                entry per operation defined on the object
//	ou=os-u         user org units (ou=<name>)
//	ou=os-p         permission org units (ou=<name>)
//	ou=constraints  separation-of-duty sets (cn=<name>)
//	ou=groups       groups (cn=<name>)
//	ou=policies     password policies (cn=<name>)
//
// Temporal constraints travel as a single raw attribute in the
// delimited form the codec in this package defines. Password
// verification binds as the target user on a fresh connection, so the
// directory server itself enforces lockout and aging policy where it
// is configured to.
//
// All operations share one administrative connection guarded by a
// mutex. Directory failures map to StoreFailed; result codes for
// missing and duplicate entries map to the matching NotFound and
// AlreadyExists codes.
package ldapdir

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
	"github.com/bastion-auth/bastion/lib/store"
)

// Config locates and authenticates to the directory server.
type Config struct {
	// URL is the server address, e.g. "ldap://localhost:389" or
	// "ldaps://directory:636".
	URL string

	// BaseDN roots the bastion subtree, e.g. "dc=example,dc=com".
	BaseDN string

	// BindDN and BindPassword are the administrative credential the
	// store operates under.
	BindDN       string
	BindPassword string

	// Timeout bounds each directory operation. Zero means the
	// library default.
	Timeout time.Duration
}

// Directory is the LDAP-backed entity store.
type Directory struct {
	mu   sync.Mutex
	conn *ldap.Conn
	cfg  Config
}

var _ store.Directory = (*Directory)(nil)

// New connects and binds with the administrative credential.
func New(cfg Config) (*Directory, error) {
	conn, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &Directory{conn: conn, cfg: cfg}, nil
}

// Close tears down the administrative connection.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn.Close()
}

func dial(cfg Config) (*ldap.Conn, error) {
	conn, err := ldap.DialURL(cfg.URL)
	if err != nil {
		return nil, security.Wrap(security.StoreFailed, err, "connecting to %s", cfg.URL)
	}
	if cfg.Timeout > 0 {
		conn.SetTimeout(cfg.Timeout)
	}
	if err := conn.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
		conn.Close()
		return nil, security.Wrap(security.StoreFailed, err, "binding as %s", cfg.BindDN)
	}
	return conn, nil
}

// DN construction. Names are escaped so directory metacharacters in
// entity names cannot change the entry being addressed.

func (d *Directory) userDN(id string) string {
	return fmt.Sprintf("uid=%s,ou=people,%s", ldap.EscapeDN(model.Normalize(id)), d.cfg.BaseDN)
}

func (d *Directory) roleDN(name string) string {
	return fmt.Sprintf("cn=%s,ou=roles,%s", ldap.EscapeDN(model.Normalize(name)), d.cfg.BaseDN)
}

func (d *Directory) adminRoleDN(name string) string {
	return fmt.Sprintf("cn=%s,ou=adminroles,%s", ldap.EscapeDN(model.Normalize(name)), d.cfg.BaseDN)
}

func (d *Directory) objectDN(name string) string {
	return fmt.Sprintf("cn=%s,ou=objects,%s", ldap.EscapeDN(model.Normalize(name)), d.cfg.BaseDN)
}

func (d *Directory) permissionDN(object, operation, objectID string) string {
	rdn := model.Normalize(operation)
	if objectID != "" {
		rdn += "+" + model.Normalize(objectID)
	}
	return fmt.Sprintf("cn=%s,%s", ldap.EscapeDN(rdn), d.objectDN(object))
}

func (d *Directory) orgUnitDN(kind model.OrgUnitKind, name string) string {
	container := "ou=os-u"
	if kind == model.PermOU {
		container = "ou=os-p"
	}
	return fmt.Sprintf("ou=%s,%s,%s", ldap.EscapeDN(model.Normalize(name)), container, d.cfg.BaseDN)
}

func (d *Directory) sdSetDN(name string) string {
	return fmt.Sprintf("cn=%s,ou=constraints,%s", ldap.EscapeDN(model.Normalize(name)), d.cfg.BaseDN)
}

func (d *Directory) groupDN(name string) string {
	return fmt.Sprintf("cn=%s,ou=groups,%s", ldap.EscapeDN(model.Normalize(name)), d.cfg.BaseDN)
}

func (d *Directory) pwPolicyDN(name string) string {
	return fmt.Sprintf("cn=%s,ou=policies,%s", ldap.EscapeDN(model.Normalize(name)), d.cfg.BaseDN)
}

func (d *Directory) settingsDN() string {
	return "cn=settings," + d.cfg.BaseDN
}

// addAttr adapts an AddRequest for the shared attribute-set helpers:
// add requests must omit empty attributes entirely, where a modify
// replaces them with nothing to clear the stored value.
func addAttr(req *ldap.AddRequest) func(string, []string) {
	return func(name string, values []string) {
		if len(values) > 0 {
			req.Attribute(name, values)
		}
	}
}

// Request plumbing. Each helper holds the connection mutex for the
// duration of one directory round trip and maps the result code.

func (d *Directory) searchEntry(ctx context.Context, dn string, attrs []string) (*ldap.Entry, error) {
	entries, err := d.search(ctx, dn, ldap.ScopeBaseObject, "(objectClass=*)", attrs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

func (d *Directory) search(ctx context.Context, base string, scope int, filter string, attrs []string) ([]*ldap.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, security.Wrap(security.StoreFailed, err, "searching %s", base)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	req := ldap.NewSearchRequest(base, scope, ldap.NeverDerefAliases,
		0, 0, false, filter, attrs, nil)
	res, err := d.conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, security.Wrap(security.StoreFailed, err, "searching %s", base)
	}
	return res.Entries, nil
}

func (d *Directory) add(ctx context.Context, req *ldap.AddRequest, existsCode security.Code, what string) error {
	if err := ctx.Err(); err != nil {
		return security.Wrap(security.StoreFailed, err, "adding %s", what)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.conn.Add(req); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists) {
			return security.New(existsCode, "%s already exists", what)
		}
		return security.Wrap(security.StoreFailed, err, "adding %s", what)
	}
	return nil
}

func (d *Directory) modify(ctx context.Context, req *ldap.ModifyRequest, missingCode security.Code, what string) error {
	if err := ctx.Err(); err != nil {
		return security.Wrap(security.StoreFailed, err, "modifying %s", what)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.conn.Modify(req); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return security.New(missingCode, "%s not found", what)
		}
		return security.Wrap(security.StoreFailed, err, "modifying %s", what)
	}
	return nil
}

func (d *Directory) del(ctx context.Context, dn string, missingCode security.Code, what string) error {
	if err := ctx.Err(); err != nil {
		return security.Wrap(security.StoreFailed, err, "deleting %s", what)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.conn.Del(ldap.NewDelRequest(dn, nil)); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return security.New(missingCode, "%s not found", what)
		}
		return security.Wrap(security.StoreFailed, err, "deleting %s", what)
	}
	return nil
}
