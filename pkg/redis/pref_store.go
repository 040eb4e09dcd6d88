package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"crosspay.client/internal/domain/entities"
	"crosspay.client/internal/domain/gateways"
)

const prefKeyPrefix = "crosspay:pref:"

// Preferences are a convenience cache, not durable state; let stale
// configurations age out.
const prefTTL = 90 * 24 * time.Hour

var (
	setPrefValue = Set
	getPrefValue = Get
	delPrefValue = Del
)

// PrefStore persists one checkout preference blob per named configuration.
type PrefStore struct{}

// NewPrefStore creates a preference store over the package redis client.
func NewPrefStore() *PrefStore {
	return &PrefStore{}
}

var _ gateways.PreferenceStore = (*PrefStore)(nil)

// Save stores the preference under the named configuration.
func (s *PrefStore) Save(ctx context.Context, name string, pref *gateways.CheckoutPreference) error {
	if pref == nil {
		return delPrefValue(ctx, prefKeyPrefix+name)
	}
	payload, err := json.Marshal(pref)
	if err != nil {
		return err
	}
	return setPrefValue(ctx, prefKeyPrefix+name, payload, prefTTL)
}

// Load returns the stored preference, or nil when none is stored or the
// stored blob fails validation. A blob whose recipient address is malformed
// for its chain is silently discarded: this store is best-effort and the
// caller falls back to defaults.
func (s *PrefStore) Load(ctx context.Context, name string) (*gateways.CheckoutPreference, error) {
	raw, err := getPrefValue(ctx, prefKeyPrefix+name)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var pref gateways.CheckoutPreference
	if err := json.Unmarshal([]byte(raw), &pref); err != nil {
		return nil, nil
	}
	if !entities.ValidAddress(pref.ChainID, pref.RecipientAddress) {
		return nil, nil
	}
	return &pref, nil
}
