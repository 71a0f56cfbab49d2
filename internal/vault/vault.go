// Package vault implements the opaque fungible balance holder used for
// rent payments and fee escrow. Funds move between vaults, never get
// copied: Deposit consumes the entire paying vault and Withdraw carves a
// new vault out of the receiver's balance.
package vault

import (
	"sync"

	"github.com/millisami/flow-name-service/internal/capability"
	"github.com/millisami/flow-name-service/pkg/domain"
	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
	"github.com/millisami/flow-name-service/pkg/platform/sentinel"
)

// OpDeposit is the capability operation for deposit-only vault grants,
// used when the registrar pays out escrow to a receiver.
const OpDeposit capability.Operation = "vault.deposit"

// Vault holds a fungible balance.
type Vault struct {
	mu      sync.Mutex
	balance domain.Amount
}

// New constructs a vault with an initial balance.
func New(balance domain.Amount) *Vault {
	return &Vault{balance: balance}
}

// Balance returns the current balance.
func (v *Vault) Balance() domain.Amount {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance
}

// Deposit moves the entire balance of from into v, leaving from empty.
func (v *Vault) Deposit(from *Vault) {
	if from == v {
		return
	}
	// Lock ordering by pointer identity is unnecessary here: every deposit
	// runs inside one serialized service step. Take both locks for safety.
	from.mu.Lock()
	amount := from.balance
	from.balance = 0
	from.mu.Unlock()

	v.mu.Lock()
	v.balance += amount
	v.mu.Unlock()
}

// Withdraw removes amount from v and returns it as a new vault. Fails with
// ErrInsufficientFunds when the balance cannot cover the request, leaving
// the balance untouched.
func (v *Vault) Withdraw(amount domain.Amount) (*Vault, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.balance < amount {
		return nil, dErrors.Wrap(sentinel.ErrInsufficientFunds, dErrors.CodePayment,
			"vault balance below requested withdrawal")
	}
	v.balance -= amount
	return New(amount), nil
}

// Receiver is the deposit-only surface a vault owner shares through a
// capability grant.
type Receiver interface {
	Deposit(from *Vault)
}

// ReceiverFrom narrows a capability reference to the deposit-only vault
// surface. The ref must have been published with OpDeposit and target a
// vault.
func ReceiverFrom(ref *capability.Ref) (Receiver, error) {
	target, err := ref.Borrow(OpDeposit)
	if err != nil {
		return nil, err
	}
	v, ok := target.(*Vault)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeDelegation,
			"capability at %s does not reference a vault", ref.Path())
	}
	return v, nil
}
