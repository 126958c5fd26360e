package fees

import (
	"errors"
	"math/big"
)

// BpsDenominator is the divisor applied to basis-point percentages.
const BpsDenominator = 10_000

var (
	// ErrInvalidAmount is returned when the charged amount is nil or not
	// positive.
	ErrInvalidAmount = errors.New("fees: amount must be positive")
	// ErrArithmeticOverflow is returned when any intermediate product or sum
	// leaves the signed 128-bit envelope used by the ledger's integer model.
	ErrArithmeticOverflow = errors.New("fees: arithmetic overflow")
	// ErrFeeExceedsAmount is returned when the clamped total fee meets or
	// exceeds the amount being charged.
	ErrFeeExceedsAmount = errors.New("fees: total fee exceeds amount")
)

// maxInt128 bounds all monetary arithmetic. Amounts are *big.Int for
// convenience but must stay representable as 128-bit signed integers.
var maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

// Schedule configures the fee components applied to a payment. Percentage
// fees are expressed in basis points; flat fees add directly. The summed
// total is clamped to [MinFee, MaxFee] before the exceeds-amount guard. A nil
// MaxFee leaves the total uncapped.
type Schedule struct {
	PlatformBps    uint32
	ForexBps       uint32
	ComplianceFlat *big.Int
	NetworkFlat    *big.Int
	MinFee         *big.Int
	MaxFee         *big.Int
}

// Clone returns a deep copy of the schedule.
func (s Schedule) Clone() Schedule {
	clone := Schedule{PlatformBps: s.PlatformBps, ForexBps: s.ForexBps}
	if s.ComplianceFlat != nil {
		clone.ComplianceFlat = new(big.Int).Set(s.ComplianceFlat)
	}
	if s.NetworkFlat != nil {
		clone.NetworkFlat = new(big.Int).Set(s.NetworkFlat)
	}
	if s.MinFee != nil {
		clone.MinFee = new(big.Int).Set(s.MinFee)
	}
	if s.MaxFee != nil {
		clone.MaxFee = new(big.Int).Set(s.MaxFee)
	}
	return clone
}

// Breakdown itemises the fees computed for a single payment. All components
// are non-negative and TotalFee is strictly less than the charged amount.
type Breakdown struct {
	PlatformFee   *big.Int
	ForexFee      *big.Int
	ComplianceFee *big.Int
	NetworkFee    *big.Int
	TotalFee      *big.Int
}

// Calculate computes the fee breakdown for the supplied amount under the
// schedule. Percentage components use integer floor division by the basis
// point denominator.
func (s Schedule) Calculate(amount *big.Int) (Breakdown, error) {
	if amount == nil || amount.Sign() <= 0 {
		return Breakdown{}, ErrInvalidAmount
	}
	if amount.Cmp(maxInt128) > 0 {
		return Breakdown{}, ErrArithmeticOverflow
	}

	platform, err := bpsFee(amount, s.PlatformBps)
	if err != nil {
		return Breakdown{}, err
	}
	forex, err := bpsFee(amount, s.ForexBps)
	if err != nil {
		return Breakdown{}, err
	}
	compliance := flatFee(s.ComplianceFlat)
	network := flatFee(s.NetworkFlat)

	total := big.NewInt(0)
	for _, component := range []*big.Int{platform, forex, compliance, network} {
		total.Add(total, component)
		if total.Cmp(maxInt128) > 0 {
			return Breakdown{}, ErrArithmeticOverflow
		}
	}

	if s.MinFee != nil && s.MinFee.Sign() > 0 && total.Cmp(s.MinFee) < 0 {
		total = new(big.Int).Set(s.MinFee)
	}
	if s.MaxFee != nil && s.MaxFee.Sign() > 0 && total.Cmp(s.MaxFee) > 0 {
		total = new(big.Int).Set(s.MaxFee)
	}

	if total.Cmp(amount) >= 0 {
		return Breakdown{}, ErrFeeExceedsAmount
	}

	return Breakdown{
		PlatformFee:   platform,
		ForexFee:      forex,
		ComplianceFee: compliance,
		NetworkFee:    network,
		TotalFee:      total,
	}, nil
}

// BpsFee computes amount*bps/10000 with floor division, guarding the 128-bit
// envelope. It is the single percentage primitive shared by the escrow and
// hub engines.
func BpsFee(amount *big.Int, bps uint32) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return bpsFee(amount, bps)
}

func bpsFee(amount *big.Int, bps uint32) (*big.Int, error) {
	if bps == 0 {
		return big.NewInt(0), nil
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	if fee.Cmp(maxInt128) > 0 {
		return nil, ErrArithmeticOverflow
	}
	return fee.Div(fee, big.NewInt(BpsDenominator)), nil
}

func flatFee(v *big.Int) *big.Int {
	if v == nil || v.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
