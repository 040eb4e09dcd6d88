package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 600*time.Millisecond, cfg.Polling.WalletSourceInterval)
	assert.Equal(t, 4*time.Second, cfg.Polling.ExchangeSourceInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.Polling.OrderRefreshInterval)
	assert.Equal(t, 0, cfg.Polling.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.False(t, cfg.Flow.EnforceSupportedChains)
	assert.Equal(t, float64(20000), cfg.Flow.DefaultUsdLimit)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CROSSPAY_API_URL", "https://staging.example.com/api")
	t.Setenv("CROSSPAY_APP_ID", "app-123")
	t.Setenv("CROSSPAY_WALLET_POLL_INTERVAL", "250ms")
	t.Setenv("CROSSPAY_POLL_MAX_FAILURES", "5")
	t.Setenv("CROSSPAY_ENFORCE_SUPPORTED_CHAINS", "true")
	t.Setenv("CROSSPAY_SUPPORTED_CHAINS", "1,137,8453")

	cfg := Load()

	assert.Equal(t, "https://staging.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "app-123", cfg.API.AppID)
	assert.Equal(t, 250*time.Millisecond, cfg.Polling.WalletSourceInterval)
	assert.Equal(t, 5, cfg.Polling.MaxFailures)
	assert.True(t, cfg.Flow.EnforceSupportedChains)
	assert.Equal(t, []int64{1, 137, 8453}, cfg.Flow.SupportedChains)
}

func TestLoad_MalformedEnvFallsBack(t *testing.T) {
	t.Setenv("CROSSPAY_WALLET_POLL_INTERVAL", "soon")
	t.Setenv("CROSSPAY_POLL_MAX_FAILURES", "many")
	t.Setenv("CROSSPAY_ENFORCE_SUPPORTED_CHAINS", "yep")
	t.Setenv("CROSSPAY_SUPPORTED_CHAINS", ",,")

	cfg := Load()

	assert.Equal(t, 600*time.Millisecond, cfg.Polling.WalletSourceInterval)
	assert.Equal(t, 0, cfg.Polling.MaxFailures)
	assert.False(t, cfg.Flow.EnforceSupportedChains)
	assert.Nil(t, cfg.Flow.SupportedChains)
}
