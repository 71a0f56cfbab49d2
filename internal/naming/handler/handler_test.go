package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/millisami/flow-name-service/internal/authtoken"
	"github.com/millisami/flow-name-service/internal/events"
	"github.com/millisami/flow-name-service/internal/naming/service"
	"github.com/millisami/flow-name-service/internal/naming/store/accounts"
	"github.com/millisami/flow-name-service/internal/naming/store/cache"
	"github.com/millisami/flow-name-service/pkg/domain"
	"github.com/millisami/flow-name-service/pkg/requestcontext"
)

const (
	testAdminToken = "test-admin-token"
	yearSeconds    = 31_536_000
)

var baseTime = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

type testServer struct {
	router http.Handler
	now    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := authtoken.NewJWTService("test-signing-key", "test-issuer", "test-audience", time.Hour)

	ts := &testServer{now: baseTime}
	svc := service.New(requestcontext.WithTime(t.Context(), baseTime), service.Config{
		MinRentDuration: yearSeconds * time.Second,
		MaxNameLength:   30,
		Accounts:        accounts.NewInMemoryStore(),
		Cache:           cache.NewInMemoryCache(),
		Events:          events.Discard{},
		Journal:         events.NewInMemoryStore(),
		Tokens:          tokens,
		Logger:          logger,
	})

	r := chi.NewRouter()
	// Pin the request clock so rental arithmetic is deterministic.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(requestcontext.WithTime(req.Context(), ts.now)))
		})
	})
	New(svc, tokens, testAdminToken, logger).Register(r)
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": testAdminToken}
}

func bearerHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// newAccount creates an account, funds it, and configures the five-char
// price bucket so registrations succeed.
func (ts *testServer) newAccount(t *testing.T) accountResponse {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/v1/accounts", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var account accountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))

	w = ts.do(t, http.MethodPut, "/v1/admin/prices",
		setPriceRequest{Bucket: 5, Price: domain.MustParseAmount("0.001")}, adminHeaders())
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/admin/accounts/"+string(account.Address)+"/fund",
		fundRequest{Amount: domain.MustParseAmount("100000.0")}, adminHeaders())
	require.Equal(t, http.StatusNoContent, w.Code)
	return account
}

func (ts *testServer) register(t *testing.T, account accountResponse, name string) domain.RecordInfo {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/v1/domains", registerRequest{
		Name:            name,
		DurationSeconds: yearSeconds,
		Payment:         domain.MustParseAmount("31536.0"),
	}, bearerHeaders(account.Token))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var info domain.RecordInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	return info
}

func TestCreateAccount(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/v1/accounts", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var account accountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
	assert.NotEmpty(t, account.Address)
	assert.NotEmpty(t, account.Token)
}

func TestRegisterAndInfo(t *testing.T) {
	ts := newTestServer(t)
	account := ts.newAccount(t)

	info := ts.register(t, account, "alice")
	assert.Equal(t, "alice", info.Name)
	assert.Equal(t, account.Address, info.Owner)
	assert.True(t, info.ExpiresAt.Equal(baseTime.Add(yearSeconds*time.Second)))

	w := ts.do(t, http.MethodGet, "/v1/domains/"+info.NameHash, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.RecordInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, info.TokenID, got.TokenID)
}

func TestRegisterRequiresBearerToken(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPost, "/v1/domains", registerRequest{Name: "alice"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterTakenNameConflicts(t *testing.T) {
	ts := newTestServer(t)
	account := ts.newAccount(t)
	ts.register(t, account, "alice")

	w := ts.do(t, http.MethodPost, "/v1/domains", registerRequest{
		Name:            "alice",
		DurationSeconds: yearSeconds,
		Payment:         domain.MustParseAmount("31536.0"),
	}, bearerHeaders(account.Token))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterInsufficientPayment(t *testing.T) {
	ts := newTestServer(t)
	account := ts.newAccount(t)

	w := ts.do(t, http.MethodPost, "/v1/domains", registerRequest{
		Name:            "alice",
		DurationSeconds: yearSeconds,
		Payment:         domain.MustParseAmount("1.0"),
	}, bearerHeaders(account.Token))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestRegisterDurationTooLarge(t *testing.T) {
	ts := newTestServer(t)
	account := ts.newAccount(t)

	// math.MaxUint64 seconds wraps time.Duration's int64 nanoseconds; the
	// handler must reject it before any arithmetic happens.
	w := ts.do(t, http.MethodPost, "/v1/domains", registerRequest{
		Name:            "alice",
		DurationSeconds: math.MaxUint64,
		Payment:         domain.MustParseAmount("31536.0"),
	}, bearerHeaders(account.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/v1/names/alice/available", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var avail availableResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &avail))
	assert.True(t, avail.Available, "rejected registration must not claim the name")
}

func TestRenewDurationTooLarge(t *testing.T) {
	ts := newTestServer(t)
	account := ts.newAccount(t)
	info := ts.register(t, account, "alice")

	w := ts.do(t, http.MethodPost, "/v1/domains/"+info.NameHash+"/renew", renewRequest{
		DurationSeconds: math.MaxUint64,
		Payment:         domain.MustParseAmount("31536.0"),
	}, bearerHeaders(account.Token))
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestCostDurationTooLarge(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/names/alice/cost?duration_seconds=18446744073709551615", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestAvailableAndCost(t *testing.T) {
	ts := newTestServer(t)
	account := ts.newAccount(t)

	w := ts.do(t, http.MethodGet, "/v1/names/alice/available", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var avail availableResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &avail))
	assert.True(t, avail.Available)

	w = ts.do(t, http.MethodGet, "/v1/names/alice/cost?duration_seconds=31536000", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cost costResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cost))
	assert.Equal(t, domain.MustParseAmount("31536.0"), cost.Cost)

	ts.register(t, account, "alice")
	w = ts.do(t, http.MethodGet, "/v1/names/alice/available", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &avail))
	assert.False(t, avail.Available)
}

func TestRenew(t *testing.T) {
	ts := newTestServer(t)
	account := ts.newAccount(t)
	info := ts.register(t, account, "alice")

	w := ts.do(t, http.MethodPost, "/v1/domains/"+info.NameHash+"/renew", renewRequest{
		DurationSeconds: yearSeconds,
		Payment:         domain.MustParseAmount("31536.0"),
	}, bearerHeaders(account.Token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var renewed domain.RecordInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &renewed))
	assert.True(t, renewed.ExpiresAt.Equal(baseTime.Add(2*yearSeconds*time.Second)))
}

func TestSetBioAndAddress(t *testing.T) {
	ts := newTestServer(t)
	account := ts.newAccount(t)
	info := ts.register(t, account, "alice")

	w := ts.do(t, http.MethodPut, "/v1/domains/"+info.NameHash+"/bio",
		setBioRequest{Bio: "hello"}, bearerHeaders(account.Token))
	require.Equal(t, http.StatusNoContent, w.Code)

	target := string(account.Address)
	w = ts.do(t, http.MethodPut, "/v1/domains/"+info.NameHash+"/address",
		setAddressRequest{Address: &target}, bearerHeaders(account.Token))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/domains/"+info.NameHash, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.RecordInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "hello", got.Bio)
	require.NotNil(t, got.ResolvedAddress)
	assert.Equal(t, account.Address, *got.ResolvedAddress)
}

func TestTransfer(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.newAccount(t)
	bob := ts.newAccount(t)
	info := ts.register(t, alice, "alice")

	w := ts.do(t, http.MethodPost, "/v1/domains/"+info.NameHash+"/transfer",
		transferRequest{To: string(bob.Address)}, bearerHeaders(alice.Token))
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/v1/domains/"+info.NameHash, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.RecordInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, bob.Address, got.Owner)
}

func TestTransferByNonOwnerForbidden(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.newAccount(t)
	bob := ts.newAccount(t)
	info := ts.register(t, alice, "alice")

	w := ts.do(t, http.MethodPost, "/v1/domains/"+info.NameHash+"/transfer",
		transferRequest{To: string(bob.Address)}, bearerHeaders(bob.Token))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegistrySnapshots(t *testing.T) {
	ts := newTestServer(t)
	account := ts.newAccount(t)
	info := ts.register(t, account, "alice")

	w := ts.do(t, http.MethodGet, "/v1/registry/owners", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var owners ownersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &owners))
	assert.Equal(t, account.Address, owners.Owners[info.NameHash])

	w = ts.do(t, http.MethodGet, "/v1/registry/token-ids", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ids tokenIDsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ids))
	assert.Equal(t, uint64(1), ids.TotalSupply)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPut, "/v1/admin/prices",
		setPriceRequest{Bucket: 5, Price: domain.MustParseAmount("0.001")}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPut, "/v1/admin/prices",
		setPriceRequest{Bucket: 5, Price: domain.MustParseAmount("0.001")},
		map[string]string{"X-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminVaultWithdraw(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.newAccount(t)
	bob := ts.newAccount(t)
	ts.register(t, alice, "alice")

	w := ts.do(t, http.MethodGet, "/v1/vault/balance", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balance balanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	require.Equal(t, domain.MustParseAmount("31536.0"), balance.Balance)

	w = ts.do(t, http.MethodPost, "/v1/admin/vault/withdraw", withdrawVaultRequest{
		To:     string(bob.Address),
		Amount: domain.MustParseAmount("31536.0"),
	}, adminHeaders())
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/v1/accounts/balance", nil, bearerHeaders(bob.Token))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, domain.MustParseAmount("131536.0"), balance.Balance)
}

func TestAdminVaultRotate(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.newAccount(t)
	ts.register(t, alice, "alice")

	// Refused while the escrow holds rent.
	w := ts.do(t, http.MethodPost, "/v1/admin/vault/rotate", nil, adminHeaders())
	assert.Equal(t, http.StatusConflict, w.Code)
}
