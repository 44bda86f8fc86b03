package engine

import (
	"math"
	"testing"

	"github.com/sibyl-protocol/sibyl/internal/model"
)

func TestMulDivFloor(t *testing.T) {
	cases := []struct {
		name    string
		a, b, d uint64
		want    uint64
	}{
		{"exact", 700, 1200, 700, 1200},
		{"truncates", 1, 1, 3, 0},
		{"truncates down", 7, 10, 3, 23},
		{"zero denominator", 5, 5, 0, 0},
		{"zero operand", 0, 1 << 40, 7, 0},
		// The intermediate product exceeds 64 bits; the quotient does not.
		{"wide product", math.MaxUint64, 4, 8, math.MaxUint64 / 2},
		{"wide product exact", 1 << 62, 6, 3, 1 << 63},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := mulDivFloor(tc.a, tc.b, tc.d); got != tc.want {
				t.Errorf("mulDivFloor(%d, %d, %d) = %d, want %d", tc.a, tc.b, tc.d, got, tc.want)
			}
		})
	}
}

func TestComputePayout_WinningSide(t *testing.T) {
	m := &model.Market{
		YesPool: 700_000_000,
		NoPool:  500_000_000,
		Outcome: model.OutcomeYes,
	}
	p := &model.Position{Side: model.OutcomeYes, Amount: 700_000_000}

	got := computePayout(m, p, 500)

	if got.Gross != 1_200_000_000 {
		t.Errorf("gross = %d, want 1200000000", got.Gross)
	}
	if got.Fee != 60_000_000 {
		t.Errorf("fee = %d, want 60000000", got.Fee)
	}
	if got.Net != 1_140_000_000 {
		t.Errorf("net = %d, want 1140000000", got.Net)
	}
}

func TestComputePayout_PartialShare(t *testing.T) {
	// Two winners split the pool pro rata; floor division never overpays.
	m := &model.Market{
		YesPool: 300,
		NoPool:  100,
		Outcome: model.OutcomeYes,
	}
	a := computePayout(m, &model.Position{Side: model.OutcomeYes, Amount: 200}, 0)
	b := computePayout(m, &model.Position{Side: model.OutcomeYes, Amount: 100}, 0)

	if a.Gross != 266 || b.Gross != 133 {
		t.Errorf("shares = %d/%d, want 266/133", a.Gross, b.Gross)
	}
	if a.Gross+b.Gross > m.YesPool+m.NoPool {
		t.Errorf("claims %d exceed pool %d", a.Gross+b.Gross, m.YesPool+m.NoPool)
	}
}

func TestComputePayout_InvalidOutcomeNoFee(t *testing.T) {
	m := &model.Market{
		YesPool: 500,
		NoPool:  300,
		Outcome: model.OutcomeInvalid,
	}
	got := computePayout(m, &model.Position{Side: model.OutcomeYes, Amount: 500}, 500)

	if got.Fee != 0 {
		t.Errorf("fee = %d, want 0", got.Fee)
	}
	if got.Gross != 800 || got.Net != 800 {
		t.Errorf("gross/net = %d/%d, want 800/800", got.Gross, got.Net)
	}
}

func TestComputePayout_FullFee(t *testing.T) {
	m := &model.Market{
		YesPool: 500,
		NoPool:  500,
		Outcome: model.OutcomeYes,
	}
	got := computePayout(m, &model.Position{Side: model.OutcomeYes, Amount: 500}, feeDenominator)

	if got.Net != 0 || got.Fee != got.Gross {
		t.Errorf("expected the whole gross consumed by fee, got %+v", got)
	}
}
