// Package identity models the opaque caller handle supplied by the external auth layer.
package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyPrincipal is returned when parsing a blank identity.
var ErrEmptyPrincipal = errors.New("empty principal")

// Principal is an opaque, comparable caller identity. The zero value is the anonymous caller.
// Conversion to and from strings only happens at the transport boundary.
type Principal struct {
	id     string
	system bool
}

// System is the in-process caller used by purchase completion and operator tooling.
// Parse never yields it, so no external id can impersonate it.
var System = Principal{id: "system:storefront", system: true}

// Parse converts an external id into a Principal.
func Parse(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Principal{}, ErrEmptyPrincipal
	}
	return Principal{id: s}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Principal {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsAnonymous reports whether p carries no identity.
func (p Principal) IsAnonymous() bool { return p.id == "" }

// IsSystem reports whether p is the in-process System caller.
func (p Principal) IsSystem() bool { return p.system }

// String returns the external form of p.
func (p Principal) String() string { return p.id }

// Authorizer decides which principals may run administrative operations.
type Authorizer interface {
	IsAdmin(p Principal) bool
}

// AdminSet is an Authorizer backed by a fixed list of external ids.
// System is always privileged.
type AdminSet map[Principal]struct{}

// NewAdminSet builds an AdminSet, skipping blank ids.
func NewAdminSet(ids ...string) AdminSet {
	set := make(AdminSet, len(ids))
	for _, id := range ids {
		if p, err := Parse(id); err == nil {
			set[p] = struct{}{}
		}
	}
	return set
}

// IsAdmin implements Authorizer.
func (s AdminSet) IsAdmin(p Principal) bool {
	if p.system {
		return true
	}
	_, ok := s[p]
	return ok
}

type principalKey struct{}

// WithPrincipal stores the caller identity in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the caller identity stored in ctx, or the anonymous principal.
func FromContext(ctx context.Context) Principal {
	if ctx == nil {
		return Principal{}
	}
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}
