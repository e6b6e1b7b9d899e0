// Package payments abstracts the movement of funds between external
// accounts and the service's vault. The quote store only sees opaque
// callbacks; this package owns the balances.
package payments

import (
	"sync"

	core "covergate-backend/core/cover"
)

// Err is a payments domain error.
type Err string

func (e Err) Error() string { return string(e) }

var (
	ErrInsufficientFunds = Err("insufficient funds")
	ErrInvalidAddress    = Err("invalid destination address")
	ErrUnknownAsset      = Err("unknown asset")
)

// Gateway moves funds between counterparty accounts and the vault.
// Pull debits the counterparty and credits the vault; Push does the
// reverse. All amounts are base units of the named asset.
type Gateway interface {
	Pull(assetAddress, from string, amount uint64) error
	Push(assetAddress, to string, amount uint64) error
	Balance(assetAddress string) uint64
}

// MemoryVault is an in-memory Gateway for tests and local runs. It
// tracks per-asset vault balances and per-account external balances,
// and can be configured to reject native pushes to specific addresses
// to model payout failures.
type MemoryVault struct {
	mu       sync.Mutex
	vault    map[string]uint64
	accounts map[string]map[string]uint64
	rejects  map[string]bool
}

// NewMemoryVault returns an empty vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		vault:    make(map[string]uint64),
		accounts: make(map[string]map[string]uint64),
		rejects:  make(map[string]bool),
	}
}

// Credit funds an external account, for tests and faucets.
func (v *MemoryVault) Credit(assetAddress, account string, amount uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.accounts[account] == nil {
		v.accounts[account] = make(map[string]uint64)
	}
	v.accounts[account][assetAddress] = core.CheckedAdd(v.accounts[account][assetAddress], amount)
}

// RejectPushesTo makes future pushes to the address fail, modeling a
// destination that cannot receive funds.
func (v *MemoryVault) RejectPushesTo(address string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rejects[address] = true
}

// Pull debits the counterparty account and credits the vault.
func (v *MemoryVault) Pull(assetAddress, from string, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	acct := v.accounts[from]
	if acct == nil || acct[assetAddress] < amount {
		return ErrInsufficientFunds
	}
	acct[assetAddress] -= amount
	v.vault[assetAddress] = core.CheckedAdd(v.vault[assetAddress], amount)
	return nil
}

// Push debits the vault and credits the destination account.
func (v *MemoryVault) Push(assetAddress, to string, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if to == "" || v.rejects[to] {
		return ErrInvalidAddress
	}
	if v.vault[assetAddress] < amount {
		return ErrInsufficientFunds
	}
	v.vault[assetAddress] -= amount
	if v.accounts[to] == nil {
		v.accounts[to] = make(map[string]uint64)
	}
	v.accounts[to][assetAddress] = core.CheckedAdd(v.accounts[to][assetAddress], amount)
	return nil
}

// Balance returns the vault's holdings of one asset.
func (v *MemoryVault) Balance(assetAddress string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vault[assetAddress]
}

// AccountBalance returns an external account's holdings, for tests.
func (v *MemoryVault) AccountBalance(assetAddress, account string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.accounts[account][assetAddress]
}
