package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"crosspay.client/internal/domain/entities"
	"crosspay.client/internal/domain/gateways"
)

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	return mr
}

func TestPrefStore_SaveAndLoad(t *testing.T) {
	setupMiniredis(t)
	store := NewPrefStore()
	ctx := context.Background()

	pref := &gateways.CheckoutPreference{
		RecipientAddress: "0x1111111111111111111111111111111111111111",
		ChainID:          8453,
		TokenAddress:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		Amount:           null.StringFrom("25"),
	}
	require.NoError(t, store.Save(ctx, "checkout", pref))

	loaded, err := store.Load(ctx, "checkout")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, pref.RecipientAddress, loaded.RecipientAddress)
	assert.Equal(t, pref.ChainID, loaded.ChainID)
	assert.Equal(t, "25", loaded.Amount.String)

	// Configurations are independent.
	other, err := store.Load(ctx, "other-checkout")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestPrefStore_SolanaRecipient(t *testing.T) {
	setupMiniredis(t)
	store := NewPrefStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sol", &gateways.CheckoutPreference{
		RecipientAddress: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		ChainID:          entities.SolanaChainID,
	}))
	loaded, err := store.Load(ctx, "sol")
	require.NoError(t, err)
	assert.NotNil(t, loaded)
}

// A blob with a malformed recipient address is silently discarded: this is
// a best-effort cache and the caller falls back to defaults.
func TestPrefStore_InvalidBlobsDiscarded(t *testing.T) {
	mr := setupMiniredis(t)
	store := NewPrefStore()
	ctx := context.Background()

	require.NoError(t, mr.Set(prefKeyPrefix+"bad-addr",
		`{"recipientAddress":"not-an-address","chainId":8453}`))
	loaded, err := store.Load(ctx, "bad-addr")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, mr.Set(prefKeyPrefix+"bad-json", `{broken`))
	loaded, err = store.Load(ctx, "bad-json")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestPrefStore_SaveNilDeletes(t *testing.T) {
	setupMiniredis(t)
	store := NewPrefStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "checkout", &gateways.CheckoutPreference{
		RecipientAddress: "0x1111111111111111111111111111111111111111",
		ChainID:          1,
	}))
	require.NoError(t, store.Save(ctx, "checkout", nil))

	loaded, err := store.Load(ctx, "checkout")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
