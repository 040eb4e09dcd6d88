package usecases

import (
	"sync"

	domainerrors "crosspay.client/internal/domain/errors"
	"crosspay.client/internal/domain/gateways"
)

// WalletKit bundles the wallet capability providers the host constructed.
// The host owns the instance; the core only holds a reference. Providers may
// be nil when the host does not support that rail.
type WalletKit struct {
	EVM     gateways.WalletProvider
	Solana  gateways.WalletProvider
	Stellar gateways.WalletProvider
}

var (
	kitMu         sync.Mutex
	configuredKit *WalletKit
)

// ConfigureWalletKit registers the host-owned wallet kit. Calling it again
// with the same instance is a no-op; a different instance is a conflict and
// fails loudly rather than silently swapping providers mid-checkout.
func ConfigureWalletKit(kit *WalletKit) error {
	kitMu.Lock()
	defer kitMu.Unlock()
	if configuredKit != nil && configuredKit != kit {
		return domainerrors.Conflict("wallet kit already configured with a different instance")
	}
	configuredKit = kit
	return nil
}

// ConfiguredWalletKit returns the registered kit, or nil before Configure.
func ConfiguredWalletKit() *WalletKit {
	kitMu.Lock()
	defer kitMu.Unlock()
	return configuredKit
}

// resetWalletKit clears the registration. Test hook.
func resetWalletKit() {
	kitMu.Lock()
	defer kitMu.Unlock()
	configuredKit = nil
}
