package fx

import (
	"errors"
	"math/big"
	"time"
)

var (
	// ErrNotConfigured is returned when the resolver has no primary source.
	ErrNotConfigured = errors.New("fx: resolver not configured")
	// ErrInvalidAmount is returned for nil or non-positive amounts.
	ErrInvalidAmount = errors.New("fx: amount must be positive")
	// ErrInvalidRate is returned when a source quotes a non-positive rate or
	// denominator.
	ErrInvalidRate = errors.New("fx: invalid rate")
	// ErrStaleRate is returned when a quote is older than the staleness
	// window in force for its tier.
	ErrStaleRate = errors.New("fx: stale rate")
	// ErrConversionOverflow is returned when amount*rate leaves the signed
	// 128-bit envelope.
	ErrConversionOverflow = errors.New("fx: conversion overflow")
	// ErrFallbackFailed is returned when both oracles fail and no usable
	// cached rate exists.
	ErrFallbackFailed = errors.New("fx: all rate sources exhausted")
)

var maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

// cacheStalenessFactor loosens the staleness window for cached rates so a
// degraded-oracle deployment can keep settling with the last known quote.
const cacheStalenessFactor = 3

// RateSource quotes an exchange rate for an asset pair. Both configured
// oracles and the in-process manual source implement it.
type RateSource interface {
	QueryRate(from, to string) (Rate, error)
}

// CacheStore persists the last good rate per pair for the fallback path.
type CacheStore interface {
	CachedRateGet(from, to string) (*CachedRate, bool, error)
	CachedRatePut(rate *CachedRate) error
}

// Resolver converts amounts between asset denominations using a primary
// oracle, a secondary oracle, and a persisted rate cache, in that order.
type Resolver struct {
	primary      RateSource
	secondary    RateSource
	cache        CacheStore
	maxStaleness int64
	nowFn        func() int64
}

// NewResolver constructs a resolver. maxStaleness is the quote age limit in
// seconds; zero disables staleness checks. The secondary source and cache
// are optional.
func NewResolver(primary, secondary RateSource, cache CacheStore, maxStaleness int64) *Resolver {
	return &Resolver{
		primary:      primary,
		secondary:    secondary,
		cache:        cache,
		maxStaleness: maxStaleness,
		nowFn:        func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the clock, primarily for tests.
func (r *Resolver) SetNowFunc(now func() int64) {
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

// SetMaxStaleness updates the freshness window in seconds.
func (r *Resolver) SetMaxStaleness(maxStaleness int64) {
	r.maxStaleness = maxStaleness
}

// MaxStaleness returns the configured freshness window in seconds.
func (r *Resolver) MaxStaleness() int64 { return r.maxStaleness }

// Convert resolves amount from one denomination into another. It consults
// the primary oracle, then the secondary, then the cached rate; each quote
// is validated for sign and staleness before use and every fresh oracle
// quote overwrites the cache.
func (r *Resolver) Convert(amount *big.Int, from, to string) (Result, error) {
	if r == nil || r.primary == nil {
		return Result{}, ErrNotConfigured
	}
	if amount == nil || amount.Sign() <= 0 {
		return Result{}, ErrInvalidAmount
	}
	if amount.Cmp(maxInt128) > 0 {
		return Result{}, ErrConversionOverflow
	}

	fromSym := NormalizeSymbol(from)
	toSym := NormalizeSymbol(to)
	now := r.now()

	if fromSym == toSym {
		return Result{
			ConvertedAmount: new(big.Int).Set(amount),
			Rate:            new(big.Int).Set(RatePrecision),
			Denominator:     new(big.Int).Set(RatePrecision),
			FromAsset:       fromSym,
			ToAsset:         toSym,
			Timestamp:       now,
		}, nil
	}

	for _, source := range []RateSource{r.primary, r.secondary} {
		if source == nil {
			continue
		}
		quote, err := source.QueryRate(fromSym, toSym)
		if err != nil {
			continue
		}
		if err := validateRate(quote.Rate, quote.Denominator, quote.Timestamp, now, r.maxStaleness); err != nil {
			continue
		}
		converted, err := applyRate(amount, quote.Rate, quote.Denominator)
		if err != nil {
			return Result{}, err
		}
		r.storeCache(&CachedRate{
			Rate:        new(big.Int).Set(quote.Rate),
			Denominator: new(big.Int).Set(quote.Denominator),
			Timestamp:   quote.Timestamp,
			FromAsset:   fromSym,
			ToAsset:     toSym,
		})
		return Result{
			ConvertedAmount: converted,
			Rate:            new(big.Int).Set(quote.Rate),
			Denominator:     new(big.Int).Set(quote.Denominator),
			FromAsset:       fromSym,
			ToAsset:         toSym,
			Timestamp:       now,
		}, nil
	}

	return r.convertFromCache(amount, fromSym, toSym, now)
}

func (r *Resolver) convertFromCache(amount *big.Int, fromSym, toSym string, now int64) (Result, error) {
	if r.cache == nil {
		return Result{}, ErrFallbackFailed
	}
	cached, ok, err := r.cache.CachedRateGet(fromSym, toSym)
	if err != nil || !ok || cached == nil {
		return Result{}, ErrFallbackFailed
	}
	limit := r.maxStaleness * cacheStalenessFactor
	if err := validateRate(cached.Rate, cached.Denominator, cached.Timestamp, now, limit); err != nil {
		return Result{}, err
	}
	converted, err := applyRate(amount, cached.Rate, cached.Denominator)
	if err != nil {
		return Result{}, err
	}
	return Result{
		ConvertedAmount: converted,
		Rate:            new(big.Int).Set(cached.Rate),
		Denominator:     new(big.Int).Set(cached.Denominator),
		FromAsset:       fromSym,
		ToAsset:         toSym,
		Timestamp:       cached.Timestamp,
	}, nil
}

func (r *Resolver) storeCache(rate *CachedRate) {
	if r.cache == nil || rate == nil {
		return
	}
	// Cache writes are best-effort; a failed write must not fail the
	// conversion that produced the quote.
	_ = r.cache.CachedRatePut(rate)
}

func (r *Resolver) now() int64 {
	if r.nowFn == nil {
		return time.Now().Unix()
	}
	return r.nowFn()
}

func validateRate(rate, denominator *big.Int, quoted, now, maxStaleness int64) error {
	if rate == nil || rate.Sign() <= 0 {
		return ErrInvalidRate
	}
	if denominator == nil || denominator.Sign() <= 0 {
		return ErrInvalidRate
	}
	if maxStaleness > 0 && quoted > 0 {
		age := now - quoted
		if age > maxStaleness {
			return ErrStaleRate
		}
	}
	return nil
}

func applyRate(amount, rate, denominator *big.Int) (*big.Int, error) {
	if denominator == nil || denominator.Sign() == 0 {
		return nil, ErrInvalidRate
	}
	product := new(big.Int).Mul(amount, rate)
	if product.CmpAbs(maxInt128) > 0 {
		return nil, ErrConversionOverflow
	}
	result := product.Quo(product, denominator)
	if result.Sign() < 0 {
		return nil, ErrInvalidRate
	}
	return result, nil
}
