// Package handler exposes the name registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/millisami/flow-name-service/internal/events"
	"github.com/millisami/flow-name-service/internal/naming/service"
	"github.com/millisami/flow-name-service/pkg/domain"
	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
	"github.com/millisami/flow-name-service/pkg/platform/httputil"
	"github.com/millisami/flow-name-service/pkg/platform/middleware/admin"
	"github.com/millisami/flow-name-service/pkg/platform/middleware/auth"
	"github.com/millisami/flow-name-service/pkg/requestcontext"
)

// maxDurationSeconds caps rental durations at 100 years. Anything larger
// would overflow time.Duration's nanosecond range long before it made
// sense as a rental.
const maxDurationSeconds = 100 * 365 * 24 * 60 * 60

// rentDuration converts a wire duration to time.Duration, bounding it so
// the conversion cannot wrap.
func rentDuration(seconds uint64) (time.Duration, error) {
	if seconds > maxDurationSeconds {
		return 0, dErrors.Newf(dErrors.CodeBadRequest,
			"duration_seconds must be at most %d", uint64(maxDurationSeconds))
	}
	return time.Duration(seconds) * time.Second, nil
}

// Service defines the naming operations the handlers call.
type Service interface {
	CreateAccount(ctx context.Context) (*service.CreatedAccount, error)
	FundAccount(ctx context.Context, address domain.Address, amount domain.Amount) error
	Balance(ctx context.Context, address domain.Address) (domain.Amount, error)
	Register(ctx context.Context, name string, duration time.Duration, payment domain.Amount) (domain.RecordInfo, error)
	Renew(ctx context.Context, nameHash string, duration time.Duration, payment domain.Amount) (domain.RecordInfo, error)
	Transfer(ctx context.Context, nameHash string, to domain.Address) error
	SetBio(ctx context.Context, nameHash, bio string) error
	SetResolvedAddress(ctx context.Context, nameHash string, addr *domain.Address) error
	Info(ctx context.Context, nameHash string) (domain.RecordInfo, error)
	Available(ctx context.Context, name string) (bool, error)
	RentCost(name string, duration time.Duration) (domain.Amount, error)
	Owners() map[string]domain.Address
	Expirations() map[string]time.Time
	TokenIDs() map[string]uint64
	TotalSupply() uint64
	Prices() map[int]domain.Amount
	VaultBalance() domain.Amount
	SetPrice(ctx context.Context, bucket int, price domain.Amount) error
	WithdrawVault(ctx context.Context, to domain.Address, amount domain.Amount) error
	RotateVault(ctx context.Context) error
	RecentEvents(ctx context.Context, limit int) ([]events.Event, error)
}

// Handler handles name registry endpoints.
type Handler struct {
	logger     *slog.Logger
	naming     Service
	validator  auth.TokenValidator
	adminToken string
}

// New creates a new naming Handler.
func New(naming Service, validator auth.TokenValidator, adminToken string, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		naming:     naming,
		validator:  validator,
		adminToken: adminToken,
	}
}

// Register registers the naming routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/accounts", h.handleCreateAccount)

		r.Get("/names/{name}/available", h.handleAvailable)
		r.Get("/names/{name}/cost", h.handleRentCost)
		r.Get("/domains/{hash}", h.handleInfo)
		r.Get("/registry/owners", h.handleOwners)
		r.Get("/registry/expirations", h.handleExpirations)
		r.Get("/registry/token-ids", h.handleTokenIDs)
		r.Get("/prices", h.handlePrices)
		r.Get("/vault/balance", h.handleVaultBalance)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAccount(h.validator, h.logger))
			r.Get("/accounts/balance", h.handleAccountBalance)
			r.Post("/domains", h.handleRegister)
			r.Post("/domains/{hash}/renew", h.handleRenew)
			r.Put("/domains/{hash}/bio", h.handleSetBio)
			r.Put("/domains/{hash}/address", h.handleSetAddress)
			r.Post("/domains/{hash}/transfer", h.handleTransfer)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
			r.Put("/prices", h.handleSetPrice)
			r.Post("/accounts/{address}/fund", h.handleFund)
			r.Post("/vault/withdraw", h.handleWithdrawVault)
			r.Post("/vault/rotate", h.handleRotateVault)
			r.Get("/events", h.handleEvents)
		})
	})
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	created, err := h.naming.CreateAccount(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, accountResponse{
		Address: created.Address,
		Token:   created.Token,
	})
}

func (h *Handler) handleAvailable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	available, err := h.naming.Available(r.Context(), name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, availableResponse{Name: name, Available: available})
}

func (h *Handler) handleRentCost(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	seconds, err := strconv.ParseUint(r.URL.Query().Get("duration_seconds"), 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "duration_seconds must be a positive integer"))
		return
	}
	duration, err := rentDuration(seconds)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	cost, err := h.naming.RentCost(name, duration)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, costResponse{Name: name, DurationSeconds: seconds, Cost: cost})
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.naming.Info(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleOwners(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, ownersResponse{Owners: h.naming.Owners()})
}

func (h *Handler) handleExpirations(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, expirationsResponse{Expirations: h.naming.Expirations()})
}

func (h *Handler) handleTokenIDs(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, tokenIDsResponse{
		TokenIDs:    h.naming.TokenIDs(),
		TotalSupply: h.naming.TotalSupply(),
	})
}

func (h *Handler) handlePrices(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, pricesResponse{Prices: h.naming.Prices()})
}

func (h *Handler) handleVaultBalance(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{Balance: h.naming.VaultBalance()})
}

func (h *Handler) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	balance, err := h.naming.Balance(ctx, requestcontext.AccountAddress(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[registerRequest](w, r)
	if !ok {
		return
	}
	duration, err := rentDuration(req.DurationSeconds)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	info, err := h.naming.Register(r.Context(), req.Name, duration, req.Payment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, info)
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[renewRequest](w, r)
	if !ok {
		return
	}
	duration, err := rentDuration(req.DurationSeconds)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	info, err := h.naming.Renew(r.Context(), chi.URLParam(r, "hash"), duration, req.Payment)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleSetBio(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[setBioRequest](w, r)
	if !ok {
		return
	}
	if err := h.naming.SetBio(r.Context(), chi.URLParam(r, "hash"), req.Bio); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetAddress(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[setAddressRequest](w, r)
	if !ok {
		return
	}
	var addr *domain.Address
	if req.Address != nil {
		parsed, err := domain.ParseAddress(*req.Address)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid address"))
			return
		}
		addr = &parsed
	}
	if err := h.naming.SetResolvedAddress(r.Context(), chi.URLParam(r, "hash"), addr); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[transferRequest](w, r)
	if !ok {
		return
	}
	to, err := domain.ParseAddress(req.To)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid recipient address"))
		return
	}
	if err := h.naming.Transfer(r.Context(), chi.URLParam(r, "hash"), to); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetPrice(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[setPriceRequest](w, r)
	if !ok {
		return
	}
	if err := h.naming.SetPrice(r.Context(), req.Bucket, req.Price); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleFund(w http.ResponseWriter, r *http.Request) {
	address, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid address"))
		return
	}
	req, ok := httputil.Decode[fundRequest](w, r)
	if !ok {
		return
	}
	if err := h.naming.FundAccount(r.Context(), address, req.Amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleWithdrawVault(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[withdrawVaultRequest](w, r)
	if !ok {
		return
	}
	to, err := domain.ParseAddress(req.To)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid recipient address"))
		return
	}
	if err := h.naming.WithdrawVault(r.Context(), to, req.Amount); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRotateVault(w http.ResponseWriter, r *http.Request) {
	if err := h.naming.RotateVault(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	recent, err := h.naming.RecentEvents(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, recent)
}
