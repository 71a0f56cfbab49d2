package container

import (
	"context"
	"sync"
	"time"

	"github.com/millisami/flow-name-service/internal/events"
	"github.com/millisami/flow-name-service/internal/registry"
	"github.com/millisami/flow-name-service/pkg/domain"
	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
	"github.com/millisami/flow-name-service/pkg/platform/sentinel"
)

// NameToken is the move-only ownership record for one registered name. Its
// identity fields are immutable; the profile fields (bio, resolved
// address) stay mutable while the rental period is live. Tokens are only
// created inside the gated mint path and live in exactly one container at
// a time.
type NameToken struct {
	id        uint64
	name      string
	nameHash  string
	createdAt time.Time

	reg    *registry.Registry
	events events.Publisher

	mu              sync.Mutex
	bio             string
	resolvedAddress *domain.Address
}

// Token is the read-only view handed out by Container.Borrow.
type Token interface {
	ID() uint64
	Name() string
	NameHash() string
	CreatedAt() time.Time
	Bio() string
	ResolvedAddress() *domain.Address
	Info(ctx context.Context) domain.RecordInfo
}

func newNameToken(id uint64, name, nameHash string, createdAt time.Time, reg *registry.Registry, publisher events.Publisher) *NameToken {
	return &NameToken{
		id:        id,
		name:      name,
		nameHash:  nameHash,
		createdAt: createdAt,
		reg:       reg,
		events:    publisher,
	}
}

func (t *NameToken) ID() uint64           { return t.id }
func (t *NameToken) Name() string         { return t.name }
func (t *NameToken) NameHash() string     { return t.nameHash }
func (t *NameToken) CreatedAt() time.Time { return t.createdAt }

func (t *NameToken) Bio() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bio
}

func (t *NameToken) ResolvedAddress() *domain.Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resolvedAddress
}

// SetBio updates the profile text. Fails once the name has expired,
// leaving the bio unchanged.
func (t *NameToken) SetBio(ctx context.Context, bio string) error {
	if err := t.requireLive(ctx); err != nil {
		return err
	}
	t.mu.Lock()
	t.bio = bio
	t.mu.Unlock()

	t.events.Emit(ctx, events.Event{
		Type:     events.TypeBioChanged,
		NameHash: t.nameHash,
		Name:     t.name,
		TokenID:  t.id,
		At:       nowFrom(ctx),
	})
	return nil
}

// SetResolvedAddress points the name at an account, or clears it with nil.
// Fails once the name has expired, leaving the address unchanged.
func (t *NameToken) SetResolvedAddress(ctx context.Context, addr *domain.Address) error {
	if err := t.requireLive(ctx); err != nil {
		return err
	}
	t.mu.Lock()
	t.resolvedAddress = addr
	t.mu.Unlock()

	event := events.Event{
		Type:     events.TypeAddressChanged,
		NameHash: t.nameHash,
		Name:     t.name,
		TokenID:  t.id,
		At:       nowFrom(ctx),
	}
	if addr != nil {
		event.Owner = *addr
	}
	t.events.Emit(ctx, event)
	return nil
}

// Info assembles a read-only snapshot. The owner is resolved live from the
// registry so it reflects the latest deposit, never a cached value.
func (t *NameToken) Info(ctx context.Context) domain.RecordInfo {
	owner, _ := t.reg.Owner(t.nameHash)
	expiresAt, _ := t.reg.ExpirationTime(t.nameHash)

	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.RecordInfo{
		TokenID:         t.id,
		Owner:           owner,
		Name:            t.name,
		NameHash:        t.nameHash,
		ExpiresAt:       expiresAt,
		ResolvedAddress: t.resolvedAddress,
		Bio:             t.bio,
		CreatedAt:       t.createdAt,
	}
}

func (t *NameToken) requireLive(ctx context.Context) error {
	if t.reg.IsExpired(ctx, t.nameHash) {
		return dErrors.Wrap(sentinel.ErrExpired, dErrors.CodeExpiration,
			"name has expired; renew before updating it")
	}
	return nil
}
