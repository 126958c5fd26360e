package fx

import (
	"math/big"
	"strings"
)

// RatePrecision is the fixed-point scale used for identity conversions, 18
// decimal places.
var RatePrecision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Rate is a quote returned by a rate source: Rate/Denominator units of the
// quote asset per unit of the base asset, stamped with the source's clock.
// A zero timestamp means the source did not report one.
type Rate struct {
	Rate        *big.Int
	Denominator *big.Int
	Timestamp   int64
}

// Clone returns a deep copy of the rate.
func (r Rate) Clone() Rate {
	clone := Rate{Timestamp: r.Timestamp}
	if r.Rate != nil {
		clone.Rate = new(big.Int).Set(r.Rate)
	}
	if r.Denominator != nil {
		clone.Denominator = new(big.Int).Set(r.Denominator)
	}
	return clone
}

// Result captures a completed conversion together with the rate that
// produced it.
type Result struct {
	ConvertedAmount *big.Int `json:"convertedAmount"`
	Rate            *big.Int `json:"rate"`
	Denominator     *big.Int `json:"denominator"`
	FromAsset       string   `json:"fromAsset"`
	ToAsset         string   `json:"toAsset"`
	Timestamp       int64    `json:"timestamp"`
}

// CachedRate is the last known good quote for a pair, persisted so the
// resolver can keep serving conversions through an oracle outage.
type CachedRate struct {
	Rate        *big.Int `json:"rate"`
	Denominator *big.Int `json:"denominator"`
	Timestamp   int64    `json:"timestamp"`
	FromAsset   string   `json:"fromAsset"`
	ToAsset     string   `json:"toAsset"`
}

// Clone returns a deep copy of the cached rate.
func (c *CachedRate) Clone() *CachedRate {
	if c == nil {
		return nil
	}
	clone := &CachedRate{Timestamp: c.Timestamp, FromAsset: c.FromAsset, ToAsset: c.ToAsset}
	if c.Rate != nil {
		clone.Rate = new(big.Int).Set(c.Rate)
	}
	if c.Denominator != nil {
		clone.Denominator = new(big.Int).Set(c.Denominator)
	}
	return clone
}

// NormalizeSymbol canonicalises an asset code for pair lookups.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
