package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/millisami/flow-name-service/internal/authtoken"
	"github.com/millisami/flow-name-service/internal/events"
	"github.com/millisami/flow-name-service/internal/naming/store/accounts"
	"github.com/millisami/flow-name-service/internal/naming/store/cache"
	"github.com/millisami/flow-name-service/internal/registry"
	"github.com/millisami/flow-name-service/pkg/domain"
	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
	"github.com/millisami/flow-name-service/pkg/requestcontext"
)

const yearSeconds = 31_536_000

var (
	year     = yearSeconds * time.Second
	baseTime = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc     *Service
	journal *events.InMemoryStore
	alice   domain.Address
	bob     domain.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	journal := events.NewInMemoryStore()
	svc := New(ctxAt(baseTime, domain.ZeroAddress), Config{
		MinRentDuration: year,
		MaxNameLength:   30,
		Accounts:        accounts.NewInMemoryStore(),
		Cache:           cache.NewInMemoryCache(),
		Events:          events.Discard{},
		Journal:         journal,
		Tokens:          authtoken.NewJWTService("test-signing-key", "test-issuer", "test-audience", time.Hour),
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, svc.SetPrice(context.Background(), 5, domain.MustParseAmount("0.001")))

	f := &fixture{svc: svc, journal: journal}
	f.alice = f.newFundedAccount(t, "100000.0")
	f.bob = f.newFundedAccount(t, "100000.0")
	return f
}

func (f *fixture) newFundedAccount(t *testing.T, funds string) domain.Address {
	t.Helper()
	created, err := f.svc.CreateAccount(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.svc.FundAccount(context.Background(), created.Address, domain.MustParseAmount(funds)))
	return created.Address
}

func ctxAt(now time.Time, caller domain.Address) context.Context {
	ctx := requestcontext.WithTime(context.Background(), now)
	if caller != domain.ZeroAddress {
		ctx = requestcontext.WithAccountAddress(ctx, caller)
	}
	return ctx
}

func TestCreateAccountIssuesValidToken(t *testing.T) {
	f := newFixture(t)
	tokens := authtoken.NewJWTService("test-signing-key", "test-issuer", "test-audience", time.Hour)

	created, err := f.svc.CreateAccount(context.Background())
	require.NoError(t, err)

	addr, err := tokens.ValidateToken(created.Token)
	require.NoError(t, err)
	assert.Equal(t, created.Address, addr)
}

func TestFundAccountAndBalance(t *testing.T) {
	f := newFixture(t)
	balance, err := f.svc.Balance(context.Background(), f.alice)
	require.NoError(t, err)
	assert.Equal(t, domain.MustParseAmount("100000.0"), balance)

	err = f.svc.FundAccount(context.Background(), domain.NewAddress(), domain.MustParseAmount("1.0"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	info, err := f.svc.Register(ctxAt(baseTime, f.alice), "alice", year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)

	assert.Equal(t, "alice", info.Name)
	assert.Equal(t, f.alice, info.Owner)
	assert.Equal(t, uint64(0), info.TokenID)
	assert.True(t, info.ExpiresAt.Equal(baseTime.Add(year)))

	balance, err := f.svc.Balance(context.Background(), f.alice)
	require.NoError(t, err)
	assert.Equal(t, domain.MustParseAmount("68464.0"), balance)
	assert.Equal(t, domain.MustParseAmount("31536.0"), f.svc.VaultBalance())
	assert.Equal(t, uint64(1), f.svc.TotalSupply())
}

func TestRegisterInsufficientAccountFunds(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.CreateAccount(context.Background())
	require.NoError(t, err)

	_, err = f.svc.Register(ctxAt(baseTime, created.Address), "alice", year, domain.MustParseAmount("31536.0"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodePayment))
	assert.Equal(t, uint64(0), f.svc.TotalSupply())
}

func TestRegisterFailureRefundsPayment(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(ctxAt(baseTime, f.alice), "alice", year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)

	// Bob tries the same name; the carved-out payment returns to his vault.
	_, err = f.svc.Register(ctxAt(baseTime, f.bob), "alice", year, domain.MustParseAmount("31536.0"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAvailability))

	balance, err := f.svc.Balance(context.Background(), f.bob)
	require.NoError(t, err)
	assert.Equal(t, domain.MustParseAmount("100000.0"), balance)
}

func TestRegisterUnauthenticated(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(ctxAt(baseTime, domain.ZeroAddress), "alice", year, domain.MustParseAmount("31536.0"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestRenew(t *testing.T) {
	f := newFixture(t)
	info, err := f.svc.Register(ctxAt(baseTime, f.alice), "alice", year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)

	renewed, err := f.svc.Renew(ctxAt(baseTime.Add(time.Hour), f.alice), info.NameHash, year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)
	assert.True(t, renewed.ExpiresAt.Equal(baseTime.Add(2*year)), "extension starts at the stored expiration")
}

func TestRenewByNonOwner(t *testing.T) {
	f := newFixture(t)
	info, err := f.svc.Register(ctxAt(baseTime, f.alice), "alice", year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)

	_, err = f.svc.Renew(ctxAt(baseTime, f.bob), info.NameHash, year, domain.MustParseAmount("31536.0"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	info, err := f.svc.Register(ctxAt(baseTime, f.alice), "alice", year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Transfer(ctxAt(baseTime, f.alice), info.NameHash, f.bob))

	got, err := f.svc.Info(ctxAt(baseTime, domain.ZeroAddress), info.NameHash)
	require.NoError(t, err)
	assert.Equal(t, f.bob, got.Owner)

	// The new owner can renew.
	_, err = f.svc.Renew(ctxAt(baseTime, f.bob), info.NameHash, year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)
}

func TestTransferExpiredName(t *testing.T) {
	f := newFixture(t)
	info, err := f.svc.Register(ctxAt(baseTime, f.alice), "alice", year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)

	afterExpiry := ctxAt(baseTime.Add(year), f.alice)
	err = f.svc.Transfer(afterExpiry, info.NameHash, f.bob)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExpiration))

	// Guard ran before the withdrawal; alice still holds the token.
	got, err := f.svc.Info(ctxAt(baseTime, domain.ZeroAddress), info.NameHash)
	require.NoError(t, err)
	assert.Equal(t, f.alice, got.Owner)
}

func TestSetBioInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(baseTime, f.alice)
	info, err := f.svc.Register(ctx, "alice", year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)

	// Warm the cache, then mutate.
	_, err = f.svc.Info(ctx, info.NameHash)
	require.NoError(t, err)
	require.NoError(t, f.svc.SetBio(ctx, info.NameHash, "hello"))

	got, err := f.svc.Info(ctx, info.NameHash)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Bio)
}

func TestSetResolvedAddress(t *testing.T) {
	f := newFixture(t)
	ctx := ctxAt(baseTime, f.alice)
	info, err := f.svc.Register(ctx, "alice", year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)

	require.NoError(t, f.svc.SetResolvedAddress(ctx, info.NameHash, &f.bob))
	got, err := f.svc.Info(ctx, info.NameHash)
	require.NoError(t, err)
	require.NotNil(t, got.ResolvedAddress)
	assert.Equal(t, f.bob, *got.ResolvedAddress)

	require.NoError(t, f.svc.SetResolvedAddress(ctx, info.NameHash, nil))
	got, err = f.svc.Info(ctx, info.NameHash)
	require.NoError(t, err)
	assert.Nil(t, got.ResolvedAddress)
}

func TestAvailable(t *testing.T) {
	f := newFixture(t)
	available, err := f.svc.Available(ctxAt(baseTime, domain.ZeroAddress), "alice")
	require.NoError(t, err)
	assert.True(t, available)

	_, err = f.svc.Register(ctxAt(baseTime, f.alice), "alice", year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)

	available, err = f.svc.Available(ctxAt(baseTime, domain.ZeroAddress), "alice")
	require.NoError(t, err)
	assert.False(t, available)

	// Expired names are available again.
	available, err = f.svc.Available(ctxAt(baseTime.Add(year), domain.ZeroAddress), "alice")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestReadSurface(t *testing.T) {
	f := newFixture(t)
	info, err := f.svc.Register(ctxAt(baseTime, f.alice), "alice", year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)

	hash, err := registry.Hash("alice")
	require.NoError(t, err)
	require.Equal(t, hash, info.NameHash)

	assert.Equal(t, f.alice, f.svc.Owners()[hash])
	assert.True(t, f.svc.Expirations()[hash].Equal(baseTime.Add(year)))
	assert.Equal(t, uint64(0), f.svc.TokenIDs()[hash])
	assert.Equal(t, domain.MustParseAmount("0.001"), f.svc.Prices()[5])
}

func TestWithdrawVaultIntoAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(ctxAt(baseTime, f.alice), "alice", year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)

	require.NoError(t, f.svc.WithdrawVault(context.Background(), f.bob, domain.MustParseAmount("31536.0")))
	assert.Equal(t, domain.Amount(0), f.svc.VaultBalance())

	balance, err := f.svc.Balance(context.Background(), f.bob)
	require.NoError(t, err)
	assert.Equal(t, domain.MustParseAmount("131536.0"), balance)
}

func TestRotateVault(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Register(ctxAt(baseTime, f.alice), "alice", year, domain.MustParseAmount("31536.0"))
	require.NoError(t, err)

	err = f.svc.RotateVault(context.Background())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeState))

	require.NoError(t, f.svc.WithdrawVault(context.Background(), f.bob, f.svc.VaultBalance()))
	require.NoError(t, f.svc.RotateVault(context.Background()))
}

func TestRecentEvents(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.journal.Append(context.Background(), events.Event{Type: events.TypeMinted}))
	require.NoError(t, f.journal.Append(context.Background(), events.Event{Type: events.TypeRenewed}))

	recent, err := f.svc.RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, events.TypeRenewed, recent[0].Type)
}
