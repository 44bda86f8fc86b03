// Package model defines the core domain types shared across the settlement
// engine. All amounts are uint64 in SBYL base units — never float64 for money.
package model

import (
	"fmt"
	"time"
)

// Limits enforced at market creation.
const (
	MaxTitleLen = 200
	MaxDescLen  = 1000
)

// Protocol is the global singleton configuration, created exactly once.
// MarketCount doubles as the next market id.
type Protocol struct {
	Authority   string `json:"authority" db:"authority"`
	Oracle      string `json:"oracle" db:"oracle"`
	Treasury    string `json:"treasury" db:"treasury"`
	WagerToken  string `json:"wager_token" db:"wager_token"`
	FeeBps      uint16 `json:"fee_bps" db:"fee_bps"`   // 0..10000
	SwapCap     uint64 `json:"swap_cap" db:"swap_cap"` // max SBYL minted per swap call
	MarketCount uint64 `json:"market_count" db:"market_count"`
}

// Market is one binary-outcome wager instance. Pools only grow while the
// market is Open and are frozen forever at resolution.
type Market struct {
	ID               uint64    `json:"id" db:"id"`
	Authority        string    `json:"authority" db:"authority"`
	Title            string    `json:"title" db:"title"`
	Description      string    `json:"description" db:"description"`
	Deadline         int64     `json:"deadline" db:"deadline"` // unix seconds
	YesPool          uint64    `json:"yes_pool" db:"yes_pool"`
	NoPool           uint64    `json:"no_pool" db:"no_pool"`
	Status           Status    `json:"status" db:"status"`
	Outcome          Outcome   `json:"outcome" db:"outcome"`
	OracleConfidence uint8     `json:"oracle_confidence" db:"oracle_confidence"` // 0..100
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// Pool returns the staked total for one side of the market.
func (m *Market) Pool(side Outcome) uint64 {
	switch side {
	case OutcomeYes:
		return m.YesPool
	case OutcomeNo:
		return m.NoPool
	default:
		return 0
	}
}

// Position is one bettor's cumulative stake on one side of one market,
// keyed by (MarketID, Owner, Side). Claimed flips false→true exactly once.
type Position struct {
	MarketID uint64  `json:"market_id" db:"market_id"`
	Owner    string  `json:"owner" db:"owner"`
	Side     Outcome `json:"side" db:"side"` // Yes or No only
	Amount   uint64  `json:"amount" db:"amount"`
	Claimed  bool    `json:"claimed" db:"claimed"`
}

// Status is the market lifecycle state. Locked and Settled are declared for
// future extension; no code path currently transitions into them.
type Status uint8

const (
	StatusOpen Status = iota
	StatusLocked
	StatusResolved
	StatusSettled
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusLocked:
		return "locked"
	case StatusResolved:
		return "resolved"
	case StatusSettled:
		return "settled"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// MarshalJSON encodes the status as its lowercase name.
func (s Status) MarshalJSON() ([]byte, error) {
	switch s {
	case StatusOpen, StatusLocked, StatusResolved, StatusSettled:
		return []byte(`"` + s.String() + `"`), nil
	}
	return nil, fmt.Errorf("model: unknown status %d", uint8(s))
}

// UnmarshalJSON decodes a lowercase status name. Unknown names are errors,
// never coerced to a known state.
func (s *Status) UnmarshalJSON(data []byte) error {
	v, err := ParseStatus(unquote(data))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus maps a status name to its variant.
func ParseStatus(v string) (Status, error) {
	switch v {
	case "open":
		return StatusOpen, nil
	case "locked":
		return StatusLocked, nil
	case "resolved":
		return StatusResolved, nil
	case "settled":
		return StatusSettled, nil
	}
	return 0, fmt.Errorf("model: unknown status %q", v)
}

// Outcome is both a bet side (Yes/No) and a market result (Yes/No/Invalid).
// None is the unresolved state of a market; it can never be staked or
// declared by the oracle.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeYes
	OutcomeNo
	OutcomeInvalid
)

// Stakeable reports whether the outcome may be used as a bet side.
func (o Outcome) Stakeable() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// Resolvable reports whether the oracle may declare this outcome.
func (o Outcome) Resolvable() bool {
	return o == OutcomeYes || o == OutcomeNo || o == OutcomeInvalid
}

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeYes:
		return "yes"
	case OutcomeNo:
		return "no"
	case OutcomeInvalid:
		return "invalid"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// MarshalJSON encodes the outcome as its lowercase name.
func (o Outcome) MarshalJSON() ([]byte, error) {
	switch o {
	case OutcomeNone, OutcomeYes, OutcomeNo, OutcomeInvalid:
		return []byte(`"` + o.String() + `"`), nil
	}
	return nil, fmt.Errorf("model: unknown outcome %d", uint8(o))
}

// UnmarshalJSON decodes a lowercase outcome name. Unknown names are errors.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	v, err := ParseOutcome(unquote(data))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// ParseOutcome maps an outcome name to its variant.
func ParseOutcome(v string) (Outcome, error) {
	switch v {
	case "none":
		return OutcomeNone, nil
	case "yes":
		return OutcomeYes, nil
	case "no":
		return OutcomeNo, nil
	case "invalid":
		return OutcomeInvalid, nil
	}
	return 0, fmt.Errorf("model: unknown outcome %q", v)
}

// unquote strips surrounding double quotes from a raw JSON string token.
func unquote(data []byte) string {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
