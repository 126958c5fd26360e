package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	"remithub/core/types"
	"remithub/native/escrow"
	"remithub/native/fx"
	"remithub/native/hub"
)

// Key prefixes. Every record class gets its own namespace so iteration and
// debugging stay tractable on a flat key-value store.
var (
	prefixEscrow      = []byte("esc/")
	prefixMultiParty  = []byte("mp/")
	prefixAsset       = []byte("asset/")
	prefixAccount     = []byte("acct/")
	prefixInvoice     = []byte("inv/")
	prefixInvoiceLink = []byte("invesc/")
	prefixRemittance  = []byte("rem/")
	prefixRate        = []byte("rate/")
	keyEscrowCounter  = []byte("esc-counter")
	keyInvoiceCounter = []byte("inv-counter")
	keyRemitCounter   = []byte("rem-counter")
)

// State is the typed persistence layer shared by the escrow engine, the hub
// and the fx resolver. Records are JSON-encoded onto the underlying
// Database; identifiers are big-endian so keys sort in id order.
type State struct {
	db Database
}

// NewState wraps a Database in the typed state layer.
func NewState(db Database) *State {
	return &State{db: db}
}

func idKey(prefix []byte, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

// strKey copies the prefix before appending so short suffixes can never land
// in the shared prefix backing array under concurrent calls.
func strKey(prefix []byte, suffix string) []byte {
	key := make([]byte, 0, len(prefix)+len(suffix))
	key = append(key, prefix...)
	return append(key, suffix...)
}

func addrKey(prefix []byte, addr types.Address) []byte {
	key := make([]byte, 0, len(prefix)+len(addr))
	key = append(key, prefix...)
	return append(key, addr[:]...)
}

func (s *State) putJSON(key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Put(key, raw)
}

func (s *State) getJSON(key []byte, v interface{}) (bool, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(raw, v)
}

func (s *State) counter(key []byte) (uint64, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, errors.New("storage: malformed counter value")
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *State) putCounter(key []byte, v uint64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, v)
	return s.db.Put(key, raw)
}

// EscrowPut persists an escrow record.
func (s *State) EscrowPut(e *escrow.Escrow) error {
	return s.putJSON(idKey(prefixEscrow, e.ID), e)
}

// EscrowGet loads an escrow by id.
func (s *State) EscrowGet(id uint64) (*escrow.Escrow, bool) {
	var e escrow.Escrow
	ok, err := s.getJSON(idKey(prefixEscrow, id), &e)
	if err != nil || !ok {
		return nil, false
	}
	return &e, true
}

// EscrowCounter returns the last assigned escrow id.
func (s *State) EscrowCounter() (uint64, error) {
	return s.counter(keyEscrowCounter)
}

// EscrowCounterPut stores the last assigned escrow id.
func (s *State) EscrowCounterPut(v uint64) error {
	return s.putCounter(keyEscrowCounter, v)
}

// MultiPartyPut persists a quorum configuration.
func (s *State) MultiPartyPut(cfg *escrow.MultiPartyConfig) error {
	return s.putJSON(idKey(prefixMultiParty, cfg.EscrowID), cfg)
}

// MultiPartyGet loads the quorum configuration for an escrow.
func (s *State) MultiPartyGet(id uint64) (*escrow.MultiPartyConfig, bool) {
	var cfg escrow.MultiPartyConfig
	ok, err := s.getJSON(idKey(prefixMultiParty, id), &cfg)
	if err != nil || !ok {
		return nil, false
	}
	return &cfg, true
}

// SupportedAsset reports whether the asset key is whitelisted.
func (s *State) SupportedAsset(key string) (bool, error) {
	raw, err := s.db.Get(strKey(prefixAsset, key))
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(raw) == 1 && raw[0] == 1, nil
}

// SupportedAssetPut stores the whitelist flag for an asset key.
func (s *State) SupportedAssetPut(key string, supported bool) error {
	flag := byte(0)
	if supported {
		flag = 1
	}
	return s.db.Put(strKey(prefixAsset, key), []byte{flag})
}

// GetAccount loads the balance record for an address. Missing accounts come
// back empty, never nil.
func (s *State) GetAccount(addr types.Address) (*types.Account, error) {
	var acc types.Account
	ok, err := s.getJSON(addrKey(prefixAccount, addr), &acc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	return types.EnsureAccount(&acc), nil
}

// PutAccount persists the balance record for an address.
func (s *State) PutAccount(addr types.Address, acc *types.Account) error {
	return s.putJSON(addrKey(prefixAccount, addr), acc)
}

// InvoicePut persists an invoice.
func (s *State) InvoicePut(inv *hub.Invoice) error {
	return s.putJSON(idKey(prefixInvoice, inv.ID), inv)
}

// InvoiceGet loads an invoice by id.
func (s *State) InvoiceGet(id uint64) (*hub.Invoice, bool) {
	var inv hub.Invoice
	ok, err := s.getJSON(idKey(prefixInvoice, id), &inv)
	if err != nil || !ok {
		return nil, false
	}
	return &inv, true
}

// InvoiceCounter returns the last assigned invoice id.
func (s *State) InvoiceCounter() (uint64, error) {
	return s.counter(keyInvoiceCounter)
}

// InvoiceCounterPut stores the last assigned invoice id.
func (s *State) InvoiceCounterPut(v uint64) error {
	return s.putCounter(keyInvoiceCounter, v)
}

// InvoiceLinkPut records the invoice settling an escrow.
func (s *State) InvoiceLinkPut(escrowID, invoiceID uint64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, invoiceID)
	return s.db.Put(idKey(prefixInvoiceLink, escrowID), raw)
}

// InvoiceLinkGet resolves the invoice linked to an escrow.
func (s *State) InvoiceLinkGet(escrowID uint64) (uint64, bool) {
	raw, err := s.db.Get(idKey(prefixInvoiceLink, escrowID))
	if err != nil || len(raw) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(raw), true
}

// RemittancePut persists a remittance.
func (s *State) RemittancePut(rem *hub.Remittance) error {
	return s.putJSON(idKey(prefixRemittance, rem.ID), rem)
}

// RemittanceGet loads a remittance by id.
func (s *State) RemittanceGet(id uint64) (*hub.Remittance, bool) {
	var rem hub.Remittance
	ok, err := s.getJSON(idKey(prefixRemittance, id), &rem)
	if err != nil || !ok {
		return nil, false
	}
	return &rem, true
}

// RemittanceCounter returns the last assigned remittance id.
func (s *State) RemittanceCounter() (uint64, error) {
	return s.counter(keyRemitCounter)
}

// RemittanceCounterPut stores the last assigned remittance id.
func (s *State) RemittanceCounterPut(v uint64) error {
	return s.putCounter(keyRemitCounter, v)
}

func rateKey(from, to string) []byte {
	key := append([]byte(nil), prefixRate...)
	key = append(key, from...)
	key = append(key, '|')
	key = append(key, to...)
	return key
}

// CachedRateGet loads the last good rate for a pair. Implements
// fx.CacheStore.
func (s *State) CachedRateGet(from, to string) (*fx.CachedRate, bool, error) {
	var rate fx.CachedRate
	ok, err := s.getJSON(rateKey(fx.NormalizeSymbol(from), fx.NormalizeSymbol(to)), &rate)
	if err != nil || !ok {
		return nil, false, err
	}
	return &rate, true, nil
}

// CachedRatePut overwrites the cached rate for a pair. Implements
// fx.CacheStore.
func (s *State) CachedRatePut(rate *fx.CachedRate) error {
	if rate == nil {
		return errors.New("storage: nil cached rate")
	}
	return s.putJSON(rateKey(fx.NormalizeSymbol(rate.FromAsset), fx.NormalizeSymbol(rate.ToAsset)), rate)
}
