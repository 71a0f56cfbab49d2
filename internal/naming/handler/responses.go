package handler

import (
	"time"

	"github.com/millisami/flow-name-service/pkg/domain"
)

type accountResponse struct {
	Address domain.Address `json:"address"`
	Token   string         `json:"token"`
}

type availableResponse struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

type costResponse struct {
	Name            string        `json:"name"`
	DurationSeconds uint64        `json:"duration_seconds"`
	Cost            domain.Amount `json:"cost"`
}

type ownersResponse struct {
	Owners map[string]domain.Address `json:"owners"`
}

type expirationsResponse struct {
	Expirations map[string]time.Time `json:"expirations"`
}

type tokenIDsResponse struct {
	TokenIDs    map[string]uint64 `json:"token_ids"`
	TotalSupply uint64            `json:"total_supply"`
}

type pricesResponse struct {
	Prices map[int]domain.Amount `json:"prices"`
}

type balanceResponse struct {
	Balance domain.Amount `json:"balance"`
}
