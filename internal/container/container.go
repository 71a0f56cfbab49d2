// Package container implements the per-account holder of name tokens and
// the privileged minting entry point. The token constructor is unexported:
// mintDomain, reachable only through a capability carrying OpMint, is the
// single code path that creates a NameToken.
package container

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/millisami/flow-name-service/internal/capability"
	"github.com/millisami/flow-name-service/internal/events"
	"github.com/millisami/flow-name-service/internal/registry"
	"github.com/millisami/flow-name-service/pkg/domain"
	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
	"github.com/millisami/flow-name-service/pkg/platform/sentinel"
	"github.com/millisami/flow-name-service/pkg/requestcontext"
)

// Capability operations for container grants. Accounts publish OpDeposit
// on their public receiver path; only the service account's root container
// is ever published with OpMint.
const (
	OpDeposit capability.Operation = "container.deposit"
	OpMint    capability.Operation = "container.mint"
)

// Container exclusively owns the tokens it holds: a token is in exactly
// one container, or in flight between Withdraw and Deposit.
type Container struct {
	account domain.Address
	reg     *registry.Registry
	mut     *registry.Mutator
	events  events.Publisher

	mu     sync.Mutex
	tokens map[uint64]*NameToken
	closed bool
}

// New constructs an empty container for an account. The registry mutator
// is required because depositing a token reassigns the registry owner.
func New(account domain.Address, reg *registry.Registry, mut *registry.Mutator, publisher events.Publisher) *Container {
	return &Container{
		account: account,
		reg:     reg,
		mut:     mut,
		events:  publisher,
		tokens:  make(map[uint64]*NameToken),
	}
}

// Account returns the owning account address.
func (c *Container) Account() domain.Address { return c.account }

// Withdraw removes and returns the token. The registry owner entry is left
// untouched: until the token is deposited somewhere, no owner lookup is
// guaranteed current.
func (c *Container) Withdraw(ctx context.Context, id uint64) (*NameToken, error) {
	c.mu.Lock()
	token, ok := c.tokens[id]
	if !ok {
		c.mu.Unlock()
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound,
			"token is not held by this container")
	}
	delete(c.tokens, id)
	c.mu.Unlock()

	c.events.Emit(ctx, events.Event{
		Type:     events.TypeWithdraw,
		NameHash: token.nameHash,
		Name:     token.name,
		TokenID:  id,
		Owner:    c.account,
		At:       nowFrom(ctx),
	})
	return token, nil
}

// Deposit stores a token and reassigns the registry owner to this
// container's account. Depositing an expired name is rejected with the
// token untouched; a pre-existing token under the same id is replaced and
// destroyed.
func (c *Container) Deposit(ctx context.Context, token *NameToken) error {
	if c.reg.IsExpired(ctx, token.nameHash) {
		return dErrors.Wrap(sentinel.ErrExpired, dErrors.CodeExpiration,
			"cannot deposit an expired name")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeState,
			"container has been destroyed")
	}
	c.tokens[token.id] = token
	c.mu.Unlock()

	c.mut.SetOwner(token.nameHash, c.account)

	c.events.Emit(ctx, events.Event{
		Type:     events.TypeDeposit,
		NameHash: token.nameHash,
		Name:     token.name,
		TokenID:  token.id,
		Owner:    c.account,
		At:       nowFrom(ctx),
	})
	return nil
}

// Borrow returns a read-only view of a held token.
func (c *Container) Borrow(id uint64) (Token, error) {
	return c.BorrowPrivate(id)
}

// BorrowPrivate returns the mutable token. Only the container's owner
// should reach this; the HTTP layer enforces that.
func (c *Container) BorrowPrivate(id uint64) (*NameToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.tokens[id]
	if !ok {
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound,
			"token is not held by this container")
	}
	return token, nil
}

// IDs lists the held token ids in ascending order.
func (c *Container) IDs() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint64, 0, len(c.tokens))
	for id := range c.tokens {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close destroys the container and every token it still holds. No token
// outlives its container unless withdrawn first.
func (c *Container) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	clear(c.tokens)
}

// mintDomain is the sole creator of NameTokens. It is unexported so
// nothing outside this package can reach it except through MinterFrom with
// an OpMint grant. All preconditions run before any state is touched, and
// the registry writes land together with the token under the receiving
// container's lock, so a failing mint leaves registry, supply, and
// containers unchanged.
func (c *Container) mintDomain(ctx context.Context, name, nameHash string, expiresAt time.Time, receiverRef *capability.Ref) (uint64, error) {
	dst, err := containerFrom(receiverRef, OpDeposit)
	if err != nil {
		return 0, err
	}
	if !c.reg.IsAvailable(ctx, nameHash) {
		return 0, dErrors.Newf(dErrors.CodeAvailability, "name %q is not available", name)
	}
	now := nowFrom(ctx)
	if !expiresAt.After(now) {
		return 0, dErrors.New(dErrors.CodeExpiration, "expiration must be in the future")
	}

	// Holding the receiver's lock across the registry writes keeps Close
	// from racing in between and stranding a record with no token.
	dst.mu.Lock()
	if dst.closed {
		dst.mu.Unlock()
		return 0, dErrors.Wrap(sentinel.ErrInvalidState, dErrors.CodeState,
			"receiving container has been destroyed")
	}
	id := c.mut.AllocateTokenID()
	c.mut.SetOwner(nameHash, dst.account)
	c.mut.SetExpiration(nameHash, expiresAt)
	c.mut.SetTokenID(nameHash, id)
	token := newNameToken(id, name, nameHash, now, c.reg, c.events)
	dst.tokens[id] = token
	dst.mu.Unlock()

	c.events.Emit(ctx, events.Event{
		Type:      events.TypeMinted,
		NameHash:  nameHash,
		Name:      name,
		TokenID:   id,
		Owner:     dst.account,
		ExpiresAt: expiresAt,
		At:        now,
	})
	c.events.Emit(ctx, events.Event{
		Type:     events.TypeDeposit,
		NameHash: nameHash,
		Name:     name,
		TokenID:  id,
		Owner:    dst.account,
		At:       now,
	})
	return id, nil
}

// Receiver is the deposit-only surface an account shares so others can
// send tokens to it.
type Receiver interface {
	Account() domain.Address
	Deposit(ctx context.Context, token *NameToken) error
}

// ReceiverFrom narrows a capability reference to the deposit-only
// container surface.
func ReceiverFrom(ref *capability.Ref) (Receiver, error) {
	c, err := containerFrom(ref, OpDeposit)
	if err != nil {
		return nil, err
	}
	return depositOnly{c}, nil
}

// containerFrom borrows the ref with the given operation and asserts the
// target is a container.
func containerFrom(ref *capability.Ref, op capability.Operation) (*Container, error) {
	target, err := ref.Borrow(op)
	if err != nil {
		return nil, err
	}
	c, ok := target.(*Container)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeDelegation,
			"capability at %s does not reference a container", ref.Path())
	}
	return c, nil
}

// depositOnly hides everything but the receiver surface from holders of a
// deposit grant.
type depositOnly struct {
	c *Container
}

func (d depositOnly) Account() domain.Address { return d.c.account }
func (d depositOnly) Deposit(ctx context.Context, token *NameToken) error {
	return d.c.Deposit(ctx, token)
}

// Minter is the privileged minting surface held by the registrar.
type Minter interface {
	MintDomain(ctx context.Context, name, nameHash string, expiresAt time.Time, receiverRef *capability.Ref) (uint64, error)
}

// MinterFrom narrows a capability reference to the minting surface. The
// ref must carry OpMint, which only the service account ever publishes.
// The grant is re-checked on every call, so revocation takes effect for
// minters already handed out.
func MinterFrom(ref *capability.Ref) (Minter, error) {
	if _, err := ref.Borrow(OpMint); err != nil {
		return nil, err
	}
	return minter{ref: ref}, nil
}

type minter struct {
	ref *capability.Ref
}

func (m minter) MintDomain(ctx context.Context, name, nameHash string, expiresAt time.Time, receiverRef *capability.Ref) (uint64, error) {
	c, err := containerFrom(m.ref, OpMint)
	if err != nil {
		return 0, err
	}
	return c.mintDomain(ctx, name, nameHash, expiresAt, receiverRef)
}

func nowFrom(ctx context.Context) time.Time {
	return requestcontext.Now(ctx)
}
