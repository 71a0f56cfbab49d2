// Package registry holds the global name-registry state: which name hash
// is owned by which account, when each rental expires, and which token id
// represents each name. It is pure data with invariant-preserving
// mutators; minting and fee logic live in the container and registrar
// packages.
package registry

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/millisami/flow-name-service/pkg/domain"
	"github.com/millisami/flow-name-service/pkg/requestcontext"
)

// Registry is the single-writer state object backing the name service.
// The three maps are co-indexed by name hash: a key present in one is
// present in all three, created together during a mint. Records are never
// removed; expiry is logical and an expired record stays until a new mint
// overwrites it.
type Registry struct {
	mu          sync.RWMutex
	owners      map[string]domain.Address
	expirations map[string]time.Time
	tokenIDs    map[string]uint64
	totalSupply uint64
}

// Mutator is the privileged write handle. New returns exactly one; the
// wiring layer hands it to the root container and registrar only, so no
// other component can touch the maps.
type Mutator struct {
	r *Registry
}

// New constructs an empty registry and its single write handle.
func New() (*Registry, *Mutator) {
	r := &Registry{
		owners:      make(map[string]domain.Address),
		expirations: make(map[string]time.Time),
		tokenIDs:    make(map[string]uint64),
	}
	return r, &Mutator{r: r}
}

// IsExpired reports whether the record's rental period has lapsed
// (now >= expiresAt). A hash with no record is not expired.
func (r *Registry) IsExpired(ctx context.Context, nameHash string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isExpiredLocked(ctx, nameHash)
}

func (r *Registry) isExpiredLocked(ctx context.Context, nameHash string) bool {
	expiresAt, ok := r.expirations[nameHash]
	if !ok {
		return false
	}
	return !requestcontext.Now(ctx).Before(expiresAt)
}

// IsAvailable reports whether the name hash can be minted: no record
// exists, or the existing record has expired.
func (r *Registry) IsAvailable(ctx context.Context, nameHash string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.expirations[nameHash]; !ok {
		return true
	}
	return r.isExpiredLocked(ctx, nameHash)
}

// Owner returns the nominal owner of the record. Expired records keep
// their last owner until a new mint overwrites them.
func (r *Registry) Owner(nameHash string) (domain.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[nameHash]
	return owner, ok
}

// ExpirationTime returns the stored expiration for the record.
func (r *Registry) ExpirationTime(nameHash string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	expiresAt, ok := r.expirations[nameHash]
	return expiresAt, ok
}

// TokenID returns the token id minted for the record.
func (r *Registry) TokenID(nameHash string) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.tokenIDs[nameHash]
	return id, ok
}

// TotalSupply is the number of tokens ever minted. It never decreases.
func (r *Registry) TotalSupply() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalSupply
}

// AllOwners returns a copy of the hash→owner map.
func (r *Registry) AllOwners() map[string]domain.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.owners)
}

// AllExpirationTimes returns a copy of the hash→expiration map.
func (r *Registry) AllExpirationTimes() map[string]time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.expirations)
}

// AllNameHashToIDs returns a copy of the hash→token-id map.
func (r *Registry) AllNameHashToIDs() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.tokenIDs)
}

// SetOwner records the current holder of a name.
func (m *Mutator) SetOwner(nameHash string, owner domain.Address) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	m.r.owners[nameHash] = owner
}

// SetExpiration records when a name's rental lapses.
func (m *Mutator) SetExpiration(nameHash string, expiresAt time.Time) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	m.r.expirations[nameHash] = expiresAt
}

// SetTokenID records the token minted for a name.
func (m *Mutator) SetTokenID(nameHash string, tokenID uint64) {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	m.r.tokenIDs[nameHash] = tokenID
}

// AllocateTokenID hands out the next token id and increments the supply
// counter. Ids are assigned from a strictly increasing sequence and never
// reused. Call only after every mint precondition has passed.
func (m *Mutator) AllocateTokenID() uint64 {
	m.r.mu.Lock()
	defer m.r.mu.Unlock()
	id := m.r.totalSupply
	m.r.totalSupply++
	return id
}
