package domain

import "time"

// RecordInfo is a read-only snapshot of a registered name. The owner is
// always resolved live from the registry when the snapshot is assembled,
// never cached on the token itself.
type RecordInfo struct {
	TokenID         uint64    `json:"token_id"`
	Owner           Address   `json:"owner"`
	Name            string    `json:"name"`
	NameHash        string    `json:"name_hash"`
	ExpiresAt       time.Time `json:"expires_at"`
	ResolvedAddress *Address  `json:"resolved_address,omitempty"`
	Bio             string    `json:"bio"`
	CreatedAt       time.Time `json:"created_at"`
}
