package types

import "math/big"

// Account tracks per-asset balances for one address. Balances are keyed by
// the canonical asset key (CODE:issuer) supplied by the caller.
type Account struct {
	Balances map[string]*big.Int `json:"balances"`
}

// NewAccount returns an account with an initialised balance map.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// EnsureAccount normalises a possibly-nil account loaded from storage.
func EnsureAccount(acc *Account) *Account {
	if acc == nil {
		return NewAccount()
	}
	if acc.Balances == nil {
		acc.Balances = make(map[string]*big.Int)
	}
	return acc
}

// Balance returns a copy of the balance held for the asset key, zero when
// absent.
func (a *Account) Balance(assetKey string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	bal, ok := a.Balances[assetKey]
	if !ok || bal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// SetBalance stores a copy of the supplied balance for the asset key.
func (a *Account) SetBalance(assetKey string, amount *big.Int) {
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	a.Balances[assetKey] = new(big.Int).Set(amount)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	clone := NewAccount()
	if a == nil {
		return clone
	}
	for key, bal := range a.Balances {
		if bal != nil {
			clone.Balances[key] = new(big.Int).Set(bal)
		}
	}
	return clone
}
