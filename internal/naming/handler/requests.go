package handler

import "github.com/millisami/flow-name-service/pkg/domain"

type registerRequest struct {
	Name            string        `json:"name"`
	DurationSeconds uint64        `json:"duration_seconds"`
	Payment         domain.Amount `json:"payment"`
}

type renewRequest struct {
	DurationSeconds uint64        `json:"duration_seconds"`
	Payment         domain.Amount `json:"payment"`
}

type transferRequest struct {
	To string `json:"to"`
}

type setBioRequest struct {
	Bio string `json:"bio"`
}

type setAddressRequest struct {
	// Address is the account the name should resolve to; null clears it.
	Address *string `json:"address"`
}

type setPriceRequest struct {
	Bucket int           `json:"bucket"`
	Price  domain.Amount `json:"price"`
}

type fundRequest struct {
	Amount domain.Amount `json:"amount"`
}

type withdrawVaultRequest struct {
	To     string        `json:"to"`
	Amount domain.Amount `json:"amount"`
}
