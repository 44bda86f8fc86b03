package engine

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/sibyl-protocol/sibyl/internal/model"
)

// feeDenominator converts basis points to a fraction.
const feeDenominator = 10_000

// Payout is the settlement breakdown for one claimed position.
type Payout struct {
	Gross uint64 `json:"gross"`
	Fee   uint64 `json:"fee"`
	Net   uint64 `json:"net"`
}

// computePayout derives the claim amounts for a resolved market.
//
// Winning side: gross = floor(amount * total / winningPool), then the protocol
// fee is floor(gross * feeBps / 10000). Invalid outcome: the claimant's own
// side pool is the denominator and no fee applies, so a sole-side claim is an
// exact refund of the stake's pool share.
//
// The caller has already verified the position is entitled to a payout
// (winning side, or any side on an Invalid market).
func computePayout(m *model.Market, p *model.Position, feeBps uint16) Payout {
	total := m.YesPool + m.NoPool

	if m.Outcome == model.OutcomeInvalid {
		gross := mulDivFloor(p.Amount, total, m.Pool(p.Side))
		return Payout{Gross: gross, Fee: 0, Net: gross}
	}

	gross := mulDivFloor(p.Amount, total, m.Pool(m.Outcome))
	fee := mulDivFloor(gross, uint64(feeBps), feeDenominator)
	return Payout{Gross: gross, Fee: fee, Net: gross - fee}
}

// mulDivFloor computes floor(a*b/den) without intermediate overflow.
// Returns 0 when den is 0, mirroring the checked-division fallback of the
// settlement rules. Decimal keeps the product exact past 64 bits.
func mulDivFloor(a, b, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	q, _ := fromUint64(a).Mul(fromUint64(b)).QuoRem(fromUint64(den), 0)
	return q.BigInt().Uint64()
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
