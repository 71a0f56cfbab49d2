// Package accounts holds the live per-account resources: the domain
// container, the funds vault, and the capability grants published against
// them. Accounts hold live in-process handles, so this store is memory only.
package accounts

import (
	"context"
	"sync"

	"github.com/millisami/flow-name-service/internal/capability"
	"github.com/millisami/flow-name-service/internal/container"
	"github.com/millisami/flow-name-service/internal/vault"
	"github.com/millisami/flow-name-service/pkg/domain"
	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
	"github.com/millisami/flow-name-service/pkg/platform/sentinel"
)

// Account bundles everything an address owns.
type Account struct {
	Address   domain.Address
	Container *container.Container
	Funds     *vault.Vault
	Issuer    *capability.Issuer

	// ReceiverRef is the public deposit-only grant on Container; mints and
	// transfers deposit through it.
	ReceiverRef *capability.Ref

	// FundsRef is the public deposit-only grant on Funds; funding and escrow
	// withdrawals deposit through it.
	FundsRef *capability.Ref
}

// Store provides account lookup and creation.
type Store interface {
	Create(ctx context.Context, account *Account) error
	Get(ctx context.Context, address domain.Address) (*Account, error)
}

type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[domain.Address]*Account
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[domain.Address]*Account)}
}

func (s *InMemoryStore) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[account.Address]; exists {
		return dErrors.New(dErrors.CodeConflict, "account already exists")
	}
	s.accounts[account.Address] = account
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, address domain.Address) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[address]
	if !ok {
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "account not found")
	}
	return account, nil
}
