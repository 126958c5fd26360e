package fx

import (
	"fmt"
	"math/big"
	"sync"
)

// ManualSource is an in-memory rate source used by tests and for operator
// overrides during oracle incidents.
type ManualSource struct {
	mu     sync.RWMutex
	quotes map[string]Rate
}

// NewManualSource constructs an empty manual source.
func NewManualSource() *ManualSource {
	return &ManualSource{quotes: make(map[string]Rate)}
}

func pairKey(from, to string) string {
	return NormalizeSymbol(from) + ":" + NormalizeSymbol(to)
}

// SetRate records the supplied rate for the pair. Non-positive rates or
// denominators are rejected.
func (m *ManualSource) SetRate(from, to string, rate, denominator *big.Int, timestamp int64) error {
	if m == nil {
		return fmt.Errorf("fx: manual source not configured")
	}
	if rate == nil || rate.Sign() <= 0 || denominator == nil || denominator.Sign() <= 0 {
		return ErrInvalidRate
	}
	m.mu.Lock()
	m.quotes[pairKey(from, to)] = Rate{
		Rate:        new(big.Int).Set(rate),
		Denominator: new(big.Int).Set(denominator),
		Timestamp:   timestamp,
	}
	m.mu.Unlock()
	return nil
}

// Unset removes a stored rate, simulating an unreachable pair.
func (m *ManualSource) Unset(from, to string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	delete(m.quotes, pairKey(from, to))
	m.mu.Unlock()
}

// QueryRate implements the RateSource interface.
func (m *ManualSource) QueryRate(from, to string) (Rate, error) {
	if m == nil {
		return Rate{}, fmt.Errorf("fx: manual source not configured")
	}
	m.mu.RLock()
	quote, ok := m.quotes[pairKey(from, to)]
	m.mu.RUnlock()
	if !ok {
		return Rate{}, fmt.Errorf("fx: quote for %s/%s not found", NormalizeSymbol(from), NormalizeSymbol(to))
	}
	return quote.Clone(), nil
}
