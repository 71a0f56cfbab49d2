// Package registrar implements pricing, the minimum-rental policy, fee
// escrow, and the register/renew workflows. The registrar never creates
// tokens itself: it validates payment and drives the container's
// privileged mint through the capability it holds.
package registrar

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/millisami/flow-name-service/internal/capability"
	"github.com/millisami/flow-name-service/internal/container"
	"github.com/millisami/flow-name-service/internal/events"
	"github.com/millisami/flow-name-service/internal/registry"
	"github.com/millisami/flow-name-service/internal/vault"
	"github.com/millisami/flow-name-service/pkg/domain"
	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
	"github.com/millisami/flow-name-service/pkg/requestcontext"
)

// maxPriceBucket flattens pricing: names longer than this are charged at
// the bucket-10 rate.
const maxPriceBucket = 10

// Config wires a registrar.
type Config struct {
	MinRentDuration time.Duration
	MaxNameLength   int
	Registry        *registry.Registry
	Mutator         *registry.Mutator
	MintRef         *capability.Ref
	Events          events.Publisher
	Logger          *slog.Logger
}

// Registrar sells and renews names. All funds collected stay in the
// escrow vault until an administrator withdraws them.
type Registrar struct {
	minRentDuration time.Duration
	maxNameLength   int
	reg             *registry.Registry
	mut             *registry.Mutator
	mintRef         *capability.Ref
	events          events.Publisher
	logger          *slog.Logger

	mu     sync.Mutex
	prices map[int]domain.Amount
	escrow *vault.Vault
}

// New constructs a registrar with an empty pricing table and a fresh
// escrow vault, and announces the contract initialization.
func New(ctx context.Context, cfg Config) *Registrar {
	r := &Registrar{
		minRentDuration: cfg.MinRentDuration,
		maxNameLength:   cfg.MaxNameLength,
		reg:             cfg.Registry,
		mut:             cfg.Mutator,
		mintRef:         cfg.MintRef,
		events:          cfg.Events,
		logger:          cfg.Logger,
		prices:          make(map[int]domain.Amount),
		escrow:          vault.New(0),
	}
	r.events.Emit(ctx, events.Event{
		Type: events.TypeContractInitialized,
		At:   requestcontext.Now(ctx),
	})
	return r
}

// MinRentDuration returns the minimum rental period.
func (r *Registrar) MinRentDuration() time.Duration { return r.minRentDuration }

// MaxNameLength returns the longest name the registrar sells.
func (r *Registrar) MaxNameLength() int { return r.maxNameLength }

// bucket computes the pricing tier for a name: its length in characters,
// capped at maxPriceBucket.
func bucket(name string) int {
	return min(utf8.RuneCountInString(name), maxPriceBucket)
}

// price returns the configured per-second price for a name. Fails when no
// price, or a zero price, is configured for the bucket.
func (r *Registrar) price(name string) (domain.Amount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.prices[bucket(name)]
	if !ok || p == 0 {
		return 0, dErrors.Newf(dErrors.CodePricing,
			"no price configured for names of length %d", utf8.RuneCountInString(name))
	}
	return p, nil
}

// RentCost quotes the fee for renting a name for the duration. Read-only.
func (r *Registrar) RentCost(name string, duration time.Duration) (domain.Amount, error) {
	p, err := r.price(name)
	if err != nil {
		return 0, err
	}
	return p.MulSeconds(uint64(duration / time.Second)), nil
}

// checkRental validates the shared register/renew preconditions and
// returns the cost. Nothing is mutated here.
func (r *Registrar) checkRental(name string, duration time.Duration, payment *vault.Vault) (domain.Amount, error) {
	cost, err := r.RentCost(name, duration)
	if err != nil {
		return 0, err
	}
	if duration < r.minRentDuration {
		return 0, dErrors.Newf(dErrors.CodeDuration,
			"rental duration must be at least %s", r.minRentDuration)
	}
	if payment.Balance() < cost {
		return 0, dErrors.Newf(dErrors.CodePayment,
			"payment of %s does not cover the rent of %s", payment.Balance(), cost)
	}
	return cost, nil
}

// RegisterDomain rents an available name. The entire payment vault moves
// into escrow; overpayment is retained, no change is returned. On success
// the minted token lands in the container behind receiverRef.
func (r *Registrar) RegisterDomain(ctx context.Context, name string, duration time.Duration, payment *vault.Vault, receiverRef *capability.Ref) (uint64, error) {
	if utf8.RuneCountInString(name) > r.maxNameLength {
		return 0, dErrors.Newf(dErrors.CodeValidation,
			"name exceeds the maximum length of %d", r.maxNameLength)
	}
	nameHash, err := registry.Hash(name)
	if err != nil {
		return 0, err
	}
	if !r.reg.IsAvailable(ctx, nameHash) {
		return 0, dErrors.Newf(dErrors.CodeAvailability, "name %q is not available", name)
	}
	if _, err := r.checkRental(name, duration, payment); err != nil {
		return 0, err
	}

	minter, err := container.MinterFrom(r.mintRef)
	if err != nil {
		return 0, err
	}

	now := requestcontext.Now(ctx)
	expiresAt := now.Add(duration)

	// The mint is the last fallible part of the step; escrow deposit
	// cannot fail, so ordering it after the mint keeps the whole
	// registration all-or-nothing.
	id, err := minter.MintDomain(ctx, name, nameHash, expiresAt, receiverRef)
	if err != nil {
		return 0, err
	}

	collected := payment.Balance()
	r.mu.Lock()
	r.escrow.Deposit(payment)
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "domain registered",
		"name_hash", nameHash,
		"token_id", id,
		"expires_at", expiresAt,
		"collected", collected,
	)
	return id, nil
}

// RenewDomain extends a rental. The new expiration is the stored
// expiration plus the duration, never now plus the duration: renewing a
// lapsed name back-dates the extension, and renewal does not require the
// name to be live.
func (r *Registrar) RenewDomain(ctx context.Context, token *container.NameToken, duration time.Duration, payment *vault.Vault) (time.Time, error) {
	if _, err := r.checkRental(token.Name(), duration, payment); err != nil {
		return time.Time{}, err
	}

	current, ok := r.reg.ExpirationTime(token.NameHash())
	if !ok {
		return time.Time{}, dErrors.New(dErrors.CodeNotFound, "no registry record for token")
	}
	newExpiry := current.Add(duration)

	collected := payment.Balance()
	r.mu.Lock()
	r.escrow.Deposit(payment)
	r.mu.Unlock()
	r.mut.SetExpiration(token.NameHash(), newExpiry)

	r.events.Emit(ctx, events.Event{
		Type:      events.TypeRenewed,
		NameHash:  token.NameHash(),
		Name:      token.Name(),
		TokenID:   token.ID(),
		ExpiresAt: newExpiry,
		Amount:    collected,
		At:        requestcontext.Now(ctx),
	})
	r.logger.InfoContext(ctx, "domain renewed",
		"name_hash", token.NameHash(),
		"token_id", token.ID(),
		"expires_at", newExpiry,
		"collected", collected,
	)
	return newExpiry, nil
}

// SetPrice configures the per-second rate for one pricing bucket.
// Administrative.
func (r *Registrar) SetPrice(ctx context.Context, priceBucket int, price domain.Amount) error {
	if priceBucket < 1 || priceBucket > maxPriceBucket {
		return dErrors.Newf(dErrors.CodeValidation,
			"pricing bucket must be between 1 and %d", maxPriceBucket)
	}
	r.mu.Lock()
	r.prices[priceBucket] = price
	r.mu.Unlock()

	r.events.Emit(ctx, events.Event{
		Type:   events.TypePriceChanged,
		Amount: price,
		At:     requestcontext.Now(ctx),
	})
	return nil
}

// Prices returns a copy of the pricing table.
func (r *Registrar) Prices() map[int]domain.Amount {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]domain.Amount, len(r.prices))
	for b, p := range r.prices {
		out[b] = p
	}
	return out
}

// VaultBalance returns the escrowed fee balance.
func (r *Registrar) VaultBalance() domain.Amount {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.escrow.Balance()
}

// WithdrawVault pays out escrowed fees to the vault behind receiverRef.
// Administrative.
func (r *Registrar) WithdrawVault(ctx context.Context, receiverRef *capability.Ref, amount domain.Amount) error {
	receiver, err := vault.ReceiverFrom(receiverRef)
	if err != nil {
		return err
	}

	r.mu.Lock()
	taken, err := r.escrow.Withdraw(amount)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	receiver.Deposit(taken)

	r.events.Emit(ctx, events.Event{
		Type:   events.TypeVaultWithdrawn,
		Amount: amount,
		At:     requestcontext.Now(ctx),
	})
	return nil
}

// UpdateRentVault swaps the escrow vault. Refused while the current vault
// still holds funds, so fees can never be orphaned. Administrative.
func (r *Registrar) UpdateRentVault(newVault *vault.Vault) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.escrow.Balance() != 0 {
		return dErrors.New(dErrors.CodeState,
			"escrow vault must be empty before it can be replaced")
	}
	r.escrow = newVault
	return nil
}
