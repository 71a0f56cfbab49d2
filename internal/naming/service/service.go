// Package service orchestrates the name registry: it owns the registry
// state, the root container holding the privileged mint entry, the
// registrar, and the per-account containers and funds vaults. Every write
// operation runs as a single serialized step so a failing guard leaves all
// state untouched.
package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/millisami/flow-name-service/internal/authtoken"
	"github.com/millisami/flow-name-service/internal/capability"
	"github.com/millisami/flow-name-service/internal/container"
	"github.com/millisami/flow-name-service/internal/events"
	namingmetrics "github.com/millisami/flow-name-service/internal/naming/metrics"
	"github.com/millisami/flow-name-service/internal/naming/store/accounts"
	"github.com/millisami/flow-name-service/internal/naming/store/cache"
	"github.com/millisami/flow-name-service/internal/registrar"
	"github.com/millisami/flow-name-service/internal/registry"
	"github.com/millisami/flow-name-service/internal/vault"
	"github.com/millisami/flow-name-service/pkg/domain"
	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
	"github.com/millisami/flow-name-service/pkg/requestcontext"
)

const defaultCacheTTL = 30 * time.Second

// Config wires a naming service.
type Config struct {
	MinRentDuration time.Duration
	MaxNameLength   int
	CacheTTL        time.Duration

	Accounts accounts.Store
	Cache    cache.RecordCache
	Events   events.Publisher
	Journal  events.Store
	Tokens   *authtoken.JWTService
	Metrics  *namingmetrics.Metrics
	Logger   *slog.Logger
	Tracer   trace.Tracer
}

// Service is the single write path for the registry. The step mutex inside
// registrar and the per-structure locks give each operation all-or-nothing
// semantics without a transaction layer.
type Service struct {
	reg       *registry.Registry
	mut       *registry.Mutator
	registrar *registrar.Registrar
	root      *container.Container

	// stepMu serializes every write operation, giving the registry the
	// sequential ordering its invariants assume.
	stepMu sync.Mutex

	accounts accounts.Store
	cache    cache.RecordCache
	cacheTTL time.Duration
	events   events.Publisher
	journal  events.Store
	tokens   *authtoken.JWTService
	metrics  *namingmetrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New builds the full registry fabric: state maps with their privileged
// mutator, the service-owned root container, the mint capability, and the
// registrar that holds it.
func New(ctx context.Context, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("noop")
	}

	reg, mut := registry.New()
	serviceAddr := domain.NewAddress()
	root := container.New(serviceAddr, reg, mut, cfg.Events)
	issuer := capability.NewIssuer(serviceAddr)
	mintRef := issuer.Publish("/private/domainsMinter", root, container.OpMint)

	r := registrar.New(ctx, registrar.Config{
		MinRentDuration: cfg.MinRentDuration,
		MaxNameLength:   cfg.MaxNameLength,
		Registry:        reg,
		Mutator:         mut,
		MintRef:         mintRef,
		Events:          cfg.Events,
		Logger:          cfg.Logger,
	})

	return &Service{
		reg:       reg,
		mut:       mut,
		registrar: r,
		root:      root,
		accounts:  cfg.Accounts,
		cache:     cfg.Cache,
		cacheTTL:  cfg.CacheTTL,
		events:    cfg.Events,
		journal:   cfg.Journal,
		tokens:    cfg.Tokens,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
	}
}

// CreatedAccount is returned from CreateAccount: the new address plus the
// bearer token that authenticates it on account-scoped routes.
type CreatedAccount struct {
	Address domain.Address
	Token   string
}

// CreateAccount provisions a container, an empty funds vault, and the
// deposit-only grants the registry needs to reach them.
func (s *Service) CreateAccount(ctx context.Context) (*CreatedAccount, error) {
	ctx, span := s.tracer.Start(ctx, "naming.CreateAccount")
	defer span.End()

	address := domain.NewAddress()
	ctn := s.newContainer(address)
	funds := vault.New(0)
	issuer := capability.NewIssuer(address)

	account := &accounts.Account{
		Address:     address,
		Container:   ctn,
		Funds:       funds,
		Issuer:      issuer,
		ReceiverRef: issuer.Publish("/public/domainsReceiver", ctn, container.OpDeposit),
		FundsRef:    issuer.Publish("/public/fundsReceiver", funds, vault.OpDeposit),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	token, err := s.tokens.GenerateAccountToken(address)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue account token")
	}

	s.logger.InfoContext(ctx, "account created",
		"request_id", requestcontext.RequestID(ctx),
		"address", address,
	)
	return &CreatedAccount{Address: address, Token: token}, nil
}

// FundAccount credits an account's funds vault. Administrative faucet; the
// deposit goes through the account's published funds receiver grant.
func (s *Service) FundAccount(ctx context.Context, address domain.Address, amount domain.Amount) error {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	account, err := s.accounts.Get(ctx, address)
	if err != nil {
		return err
	}
	receiver, err := vault.ReceiverFrom(account.FundsRef)
	if err != nil {
		return err
	}
	receiver.Deposit(vault.New(amount))
	return nil
}

// Balance returns an account's funds vault balance.
func (s *Service) Balance(ctx context.Context, address domain.Address) (domain.Amount, error) {
	account, err := s.accounts.Get(ctx, address)
	if err != nil {
		return 0, err
	}
	return account.Funds.Balance(), nil
}

// Register rents a name for the calling account. The payment is carved out
// of the account's funds vault up front; if any guard in the registration
// step fails the carve-out is returned and nothing else has changed.
func (s *Service) Register(ctx context.Context, name string, duration time.Duration, payment domain.Amount) (domain.RecordInfo, error) {
	ctx, span := s.tracer.Start(ctx, "naming.Register")
	defer span.End()
	start := time.Now()

	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	account, err := s.callerAccount(ctx)
	if err != nil {
		return domain.RecordInfo{}, err
	}

	paying, err := account.Funds.Withdraw(payment)
	if err != nil {
		return domain.RecordInfo{}, err
	}

	tokenID, err := s.registrar.RegisterDomain(ctx, name, duration, paying, account.ReceiverRef)
	if err != nil {
		account.Funds.Deposit(paying)
		return domain.RecordInfo{}, err
	}

	token, err := account.Container.Borrow(tokenID)
	if err != nil {
		return domain.RecordInfo{}, err
	}
	info := token.Info(ctx)

	s.invalidate(ctx, info.NameHash)
	s.metrics.IncrementRegistered(strconv.Itoa(min(len([]rune(name)), 10)))
	s.metrics.AddRentCollected(float64(payment) / domain.AmountScale)
	s.metrics.ObserveRegisterLatency(time.Since(start))
	s.logger.InfoContext(ctx, "domain registered",
		"request_id", requestcontext.RequestID(ctx),
		"name_hash", info.NameHash,
		"token_id", info.TokenID,
		"owner", info.Owner,
	)
	return info, nil
}

// Renew extends a rental. The new expiration is the stored expiration plus
// the duration, regardless of the current time.
func (s *Service) Renew(ctx context.Context, nameHash string, duration time.Duration, payment domain.Amount) (domain.RecordInfo, error) {
	ctx, span := s.tracer.Start(ctx, "naming.Renew")
	defer span.End()

	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	account, token, err := s.borrowOwned(ctx, nameHash)
	if err != nil {
		return domain.RecordInfo{}, err
	}

	paying, err := account.Funds.Withdraw(payment)
	if err != nil {
		return domain.RecordInfo{}, err
	}

	if _, err := s.registrar.RenewDomain(ctx, token, duration, paying); err != nil {
		account.Funds.Deposit(paying)
		return domain.RecordInfo{}, err
	}

	s.invalidate(ctx, nameHash)
	s.metrics.IncrementRenewed()
	s.metrics.AddRentCollected(float64(payment) / domain.AmountScale)
	s.logger.InfoContext(ctx, "domain renewed",
		"request_id", requestcontext.RequestID(ctx),
		"name_hash", nameHash,
	)
	return token.Info(ctx), nil
}

// Transfer moves a name to another account through that account's public
// receiver grant. Expired names cannot move; the guard runs before the
// withdrawal so a failed transfer leaves the token where it was.
func (s *Service) Transfer(ctx context.Context, nameHash string, to domain.Address) error {
	ctx, span := s.tracer.Start(ctx, "naming.Transfer")
	defer span.End()

	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	account, token, err := s.borrowOwned(ctx, nameHash)
	if err != nil {
		return err
	}
	recipient, err := s.accounts.Get(ctx, to)
	if err != nil {
		return err
	}
	if s.reg.IsExpired(ctx, nameHash) {
		return dErrors.New(dErrors.CodeExpiration, "cannot transfer an expired name")
	}

	receiver, err := container.ReceiverFrom(recipient.ReceiverRef)
	if err != nil {
		return err
	}
	withdrawn, err := account.Container.Withdraw(ctx, token.ID())
	if err != nil {
		return err
	}
	if err := receiver.Deposit(ctx, withdrawn); err != nil {
		// Expiry was guarded above; a deposit failure here means the
		// recipient closed its container mid-step. Put the token back.
		if restoreErr := account.Container.Deposit(ctx, withdrawn); restoreErr != nil {
			s.logger.ErrorContext(ctx, "token stranded during transfer",
				"request_id", requestcontext.RequestID(ctx),
				"name_hash", nameHash,
				"error", restoreErr,
			)
		}
		return err
	}

	s.invalidate(ctx, nameHash)
	s.logger.InfoContext(ctx, "domain transferred",
		"request_id", requestcontext.RequestID(ctx),
		"name_hash", nameHash,
		"to", to,
	)
	return nil
}

// SetBio updates the profile text on a live name.
func (s *Service) SetBio(ctx context.Context, nameHash, bio string) error {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	_, token, err := s.borrowOwned(ctx, nameHash)
	if err != nil {
		return err
	}
	if err := token.SetBio(ctx, bio); err != nil {
		return err
	}
	s.invalidate(ctx, nameHash)
	return nil
}

// SetResolvedAddress points a live name at an address, or clears it.
func (s *Service) SetResolvedAddress(ctx context.Context, nameHash string, addr *domain.Address) error {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	_, token, err := s.borrowOwned(ctx, nameHash)
	if err != nil {
		return err
	}
	if err := token.SetResolvedAddress(ctx, addr); err != nil {
		return err
	}
	s.invalidate(ctx, nameHash)
	return nil
}

// Info returns the live snapshot of a record, serving from the read cache
// when fresh.
func (s *Service) Info(ctx context.Context, nameHash string) (domain.RecordInfo, error) {
	if cached, err := s.cache.Get(ctx, nameHash); err != nil {
		s.logger.WarnContext(ctx, "record cache read failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else if cached != nil {
		return *cached, nil
	}

	token, err := s.lookupToken(ctx, nameHash)
	if err != nil {
		return domain.RecordInfo{}, err
	}
	info := token.Info(ctx)

	if err := s.cache.Set(ctx, nameHash, info, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "record cache write failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	return info, nil
}

// Available reports whether a name can be registered right now.
func (s *Service) Available(ctx context.Context, name string) (bool, error) {
	nameHash, err := registry.Hash(name)
	if err != nil {
		return false, err
	}
	return s.reg.IsAvailable(ctx, nameHash), nil
}

// RentCost quotes the rent for a name over a duration.
func (s *Service) RentCost(name string, duration time.Duration) (domain.Amount, error) {
	return s.registrar.RentCost(name, duration)
}

// Owners returns the full owner map keyed by name hash.
func (s *Service) Owners() map[string]domain.Address { return s.reg.AllOwners() }

// Expirations returns the full expiration map keyed by name hash.
func (s *Service) Expirations() map[string]time.Time { return s.reg.AllExpirationTimes() }

// TokenIDs returns the full name-hash-to-id map.
func (s *Service) TokenIDs() map[string]uint64 { return s.reg.AllNameHashToIDs() }

// TotalSupply returns how many tokens were ever minted.
func (s *Service) TotalSupply() uint64 { return s.reg.TotalSupply() }

// Prices returns the pricing table.
func (s *Service) Prices() map[int]domain.Amount { return s.registrar.Prices() }

// VaultBalance returns the escrowed rent total.
func (s *Service) VaultBalance() domain.Amount { return s.registrar.VaultBalance() }

// SetPrice configures the per-second rate for a length bucket.
func (s *Service) SetPrice(ctx context.Context, bucket int, price domain.Amount) error {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.registrar.SetPrice(ctx, bucket, price)
}

// WithdrawVault moves escrowed rent into an account's funds vault.
func (s *Service) WithdrawVault(ctx context.Context, to domain.Address, amount domain.Amount) error {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()

	account, err := s.accounts.Get(ctx, to)
	if err != nil {
		return err
	}
	return s.registrar.WithdrawVault(ctx, account.FundsRef, amount)
}

// RotateVault swaps in a fresh escrow vault. Fails unless the current one
// was drained first.
func (s *Service) RotateVault(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "naming.RotateVault")
	defer span.End()
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.registrar.UpdateRentVault(vault.New(0))
}

// RecentEvents lists the newest journal entries.
func (s *Service) RecentEvents(ctx context.Context, limit int) ([]events.Event, error) {
	return s.journal.ListRecent(ctx, limit)
}

// newContainer builds a container bound to the shared registry state.
func (s *Service) newContainer(address domain.Address) *container.Container {
	return container.New(address, s.reg, s.mut, s.events)
}

// callerAccount resolves the authenticated account from the request context.
func (s *Service) callerAccount(ctx context.Context) (*accounts.Account, error) {
	address := requestcontext.AccountAddress(ctx)
	if address == domain.ZeroAddress {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no account in request context")
	}
	return s.accounts.Get(ctx, address)
}

// borrowOwned resolves the caller's account and borrows the named token
// from its container, enforcing ownership.
func (s *Service) borrowOwned(ctx context.Context, nameHash string) (*accounts.Account, *container.NameToken, error) {
	account, err := s.callerAccount(ctx)
	if err != nil {
		return nil, nil, err
	}
	owner, ok := s.reg.Owner(nameHash)
	if !ok {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "name is not registered")
	}
	if owner != account.Address {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "name is owned by another account")
	}
	id, ok := s.reg.TokenID(nameHash)
	if !ok {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "name is not registered")
	}
	token, err := account.Container.BorrowPrivate(id)
	if err != nil {
		return nil, nil, err
	}
	return account, token, nil
}

// lookupToken borrows a read-only token view from whichever container
// currently owns the name.
func (s *Service) lookupToken(ctx context.Context, nameHash string) (container.Token, error) {
	owner, ok := s.reg.Owner(nameHash)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "name is not registered")
	}
	id, ok := s.reg.TokenID(nameHash)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "name is not registered")
	}
	account, err := s.accounts.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	return account.Container.Borrow(id)
}

func (s *Service) invalidate(ctx context.Context, nameHash string) {
	if err := s.cache.Invalidate(ctx, nameHash); err != nil {
		s.logger.WarnContext(ctx, "record cache invalidation failed",
			"request_id", requestcontext.RequestID(ctx),
			"name_hash", nameHash,
			"error", err,
		)
	}
}
