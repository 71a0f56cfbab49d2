// Package events carries the notifications external systems subscribe to.
// Every state transition in the registry emits one event with enough
// identifiers to reconstruct the transition without replaying domain
// logic.
package events

import (
	"context"
	"time"

	"github.com/millisami/flow-name-service/pkg/domain"
)

// Type names a state transition.
type Type string

const (
	TypeContractInitialized Type = "ContractInitialized"
	TypeMinted              Type = "Minted"
	TypeRenewed             Type = "Renewed"
	TypeDeposit             Type = "Deposit"
	TypeWithdraw            Type = "Withdraw"
	TypeBioChanged          Type = "BioChanged"
	TypeAddressChanged      Type = "AddressChanged"
	TypePriceChanged        Type = "PriceChanged"
	TypeVaultWithdrawn      Type = "VaultWithdrawn"
)

// Event is a single notification. Fields irrelevant to a given type stay
// zero; consumers switch on Type.
type Event struct {
	Type      Type           `json:"type"`
	NameHash  string         `json:"name_hash,omitempty"`
	Name      string         `json:"name,omitempty"`
	TokenID   uint64         `json:"token_id,omitempty"`
	Owner     domain.Address `json:"owner,omitempty"`
	ExpiresAt time.Time      `json:"expires_at,omitzero"`
	Amount    domain.Amount  `json:"amount,omitempty"`
	At        time.Time      `json:"at"`
}

// Publisher accepts events from domain logic. Implementations must be safe
// for concurrent use; emission failures are logged, never propagated into
// the step that produced the event.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// Discard drops every event. Useful default for unit tests.
type Discard struct{}

func (Discard) Emit(context.Context, Event) {}
