// Package capability implements the delegation mechanism used between
// accounts. A grant is an unforgeable handle scoped to (account, path,
// operation set): holding a Ref permits calling exactly the operations the
// grant declares against the resource published at that path, nothing
// more. Refs cannot be widened by the holder and stop resolving once the
// issuing account revokes them.
package capability

import (
	"sync"

	"github.com/google/uuid"

	"github.com/millisami/flow-name-service/pkg/domain"
	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
	"github.com/millisami/flow-name-service/pkg/platform/sentinel"
)

// Operation names one action a grant may permit, e.g. "container.deposit".
// Resource packages declare their own operation constants.
type Operation string

// Issuer mints grants for resources owned by one account. Only the issuer
// can construct or revoke grants, which is what makes Refs unforgeable:
// there is no other way to produce one.
type Issuer struct {
	account domain.Address

	mu     sync.Mutex
	grants map[uuid.UUID]*grant
}

type grant struct {
	id      uuid.UUID
	account domain.Address
	path    string
	target  any
	ops     map[Operation]struct{}

	mu      sync.RWMutex
	revoked bool
}

// NewIssuer constructs the grant authority for an account.
func NewIssuer(account domain.Address) *Issuer {
	return &Issuer{
		account: account,
		grants:  make(map[uuid.UUID]*grant),
	}
}

// Account returns the issuing account.
func (i *Issuer) Account() domain.Address { return i.account }

// Publish creates a grant for target at the given path, permitting exactly
// the listed operations, and returns the shareable Ref.
func (i *Issuer) Publish(path string, target any, ops ...Operation) *Ref {
	g := &grant{
		id:      uuid.New(),
		account: i.account,
		path:    path,
		target:  target,
		ops:     make(map[Operation]struct{}, len(ops)),
	}
	for _, op := range ops {
		g.ops[op] = struct{}{}
	}

	i.mu.Lock()
	i.grants[g.id] = g
	i.mu.Unlock()

	return &Ref{grant: g}
}

// Revoke invalidates a previously published grant. Outstanding Refs keep
// their identity but stop resolving.
func (i *Issuer) Revoke(id uuid.UUID) {
	i.mu.Lock()
	g, ok := i.grants[id]
	i.mu.Unlock()
	if !ok {
		return
	}
	g.mu.Lock()
	g.revoked = true
	g.mu.Unlock()
}

// Ref is the holder's side of a grant. It is safe to hand to untrusted
// callers: the operation set is fixed at publish time and checked again on
// every Borrow.
type Ref struct {
	grant *grant
}

// ID identifies the underlying grant, for revocation by the issuer.
func (r *Ref) ID() uuid.UUID { return r.grant.id }

// Account returns the account the referenced resource lives in.
func (r *Ref) Account() domain.Address { return r.grant.account }

// Path returns the named path the resource was published under.
func (r *Ref) Path() string { return r.grant.path }

// Allows reports whether the grant declares the operation.
func (r *Ref) Allows(op Operation) bool {
	_, ok := r.grant.ops[op]
	return ok
}

// Borrow resolves the grant for one operation. It fails with a
// delegation-coded error when the grant has been revoked or the operation
// is outside the declared set; otherwise it returns the published target
// for the resource package to narrow into its typed surface.
func (r *Ref) Borrow(op Operation) (any, error) {
	r.grant.mu.RLock()
	revoked := r.grant.revoked
	r.grant.mu.RUnlock()
	if revoked {
		return nil, dErrors.Wrap(sentinel.ErrRevoked, dErrors.CodeDelegation,
			"capability reference has been revoked")
	}
	if !r.Allows(op) {
		return nil, dErrors.Newf(dErrors.CodeDelegation,
			"capability at %s does not permit %q", r.grant.path, op)
	}
	return r.grant.target, nil
}
