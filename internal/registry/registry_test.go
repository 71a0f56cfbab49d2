package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/millisami/flow-name-service/pkg/domain"
	"github.com/millisami/flow-name-service/pkg/requestcontext"
)

func ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func TestAvailability(t *testing.T) {
	reg, mut := New()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	hash, err := Hash("alice")
	require.NoError(t, err)

	t.Run("absent record is available and not expired", func(t *testing.T) {
		assert.True(t, reg.IsAvailable(ctxAt(now), hash))
		assert.False(t, reg.IsExpired(ctxAt(now), hash))
	})

	mut.SetOwner(hash, domain.Address("0x0000000000000001"))
	mut.SetExpiration(hash, now.Add(time.Hour))
	mut.SetTokenID(hash, 0)

	t.Run("live record is neither available nor expired", func(t *testing.T) {
		assert.False(t, reg.IsAvailable(ctxAt(now), hash))
		assert.False(t, reg.IsExpired(ctxAt(now), hash))
	})

	t.Run("record expires exactly at expiresAt", func(t *testing.T) {
		at := now.Add(time.Hour)
		assert.True(t, reg.IsExpired(ctxAt(at), hash), "now == expiresAt counts as expired")
		assert.True(t, reg.IsAvailable(ctxAt(at), hash))
	})

	t.Run("expired record keeps its data", func(t *testing.T) {
		owner, ok := reg.Owner(hash)
		require.True(t, ok)
		assert.Equal(t, domain.Address("0x0000000000000001"), owner)

		id, ok := reg.TokenID(hash)
		require.True(t, ok)
		assert.Equal(t, uint64(0), id)
	})
}

func TestAllocateTokenID(t *testing.T) {
	reg, mut := New()

	assert.Equal(t, uint64(0), reg.TotalSupply())
	assert.Equal(t, uint64(0), mut.AllocateTokenID())
	assert.Equal(t, uint64(1), mut.AllocateTokenID())
	assert.Equal(t, uint64(2), reg.TotalSupply())
}

func TestSnapshotsAreCopies(t *testing.T) {
	reg, mut := New()
	hash, err := Hash("alice")
	require.NoError(t, err)
	mut.SetOwner(hash, domain.Address("0x0000000000000001"))

	owners := reg.AllOwners()
	owners[hash] = domain.Address("0x0000000000000002")

	owner, _ := reg.Owner(hash)
	assert.Equal(t, domain.Address("0x0000000000000001"), owner,
		"mutating a snapshot must not touch registry state")
}

func TestSnapshotMapsStayCoIndexed(t *testing.T) {
	reg, mut := New()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, name := range []string{"alice", "bob", "carol"} {
		hash, err := Hash(name)
		require.NoError(t, err)
		id := mut.AllocateTokenID()
		mut.SetOwner(hash, domain.NewAddress())
		mut.SetExpiration(hash, now.Add(time.Hour))
		mut.SetTokenID(hash, id)
	}

	owners := reg.AllOwners()
	expirations := reg.AllExpirationTimes()
	ids := reg.AllNameHashToIDs()

	require.Len(t, owners, 3)
	for hash := range owners {
		_, ok := expirations[hash]
		assert.True(t, ok, "expiration present for %s", hash)
		_, ok = ids[hash]
		assert.True(t, ok, "token id present for %s", hash)
	}
}
