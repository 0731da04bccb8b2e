/*
Package factory provides JSON to Go statutory-policy conversion.

PURPOSE:
  Converts JSON parameter definitions into policy.Snapshot values. The
  statutory tables (basic amounts, age thresholds, ceilings) are supplied
  as versioned data, not code: operations can roll a new basic amount or
  threshold without a deploy.

JSON SCHEMA:
  {
    "basic_amounts": [
      {"effective_from": "2024-05-01", "amount": 124028}
    ],
    "cap_multiple": 6,
    "qualifying_days": 16,
    "employer_reset_gap": 16,
    "degree_floor": 20,
    "minimum_income_fraction": 0.5,
    "standard_ceiling": 248,
    "reduced_ceiling": 60,
    "reduced_ceiling_age": 67,
    "cutoff_age": 70,
    "reset_gap_days": 182,
    "lookback_years": 3
  }

DEFAULTS:
  Every threshold field may be omitted; the statutory defaults above are
  filled in. Only the basic-amount table is mandatory.

USAGE:
  snapshot, err := factory.ParsePolicy(jsonString)
  snapshot, err := factory.ParsePolicy(factory.DefaultPolicyJSON())

SEE ALSO:
  - policy: the Snapshot the factory produces
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/policy"
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a statutory parameter set.
type PolicyJSON struct {
	BasicAmounts          []BasicAmountJSON `json:"basic_amounts"`
	CapMultiple           *int64            `json:"cap_multiple,omitempty"`
	QualifyingDays        *int              `json:"qualifying_days,omitempty"`
	EmployerResetGap      *int              `json:"employer_reset_gap,omitempty"`
	DegreeFloor           *float64          `json:"degree_floor,omitempty"`
	MinimumIncomeFraction *float64          `json:"minimum_income_fraction,omitempty"`
	StandardCeiling       *int              `json:"standard_ceiling,omitempty"`
	ReducedCeiling        *int              `json:"reduced_ceiling,omitempty"`
	ReducedCeilingAge     *int              `json:"reduced_ceiling_age,omitempty"`
	CutoffAge             *int              `json:"cutoff_age,omitempty"`
	ResetGapDays          *int              `json:"reset_gap_days,omitempty"`
	LookbackYears         *int              `json:"lookback_years,omitempty"`
}

// BasicAmountJSON is one revision of the basic amount.
type BasicAmountJSON struct {
	EffectiveFrom string `json:"effective_from"`
	Amount        int64  `json:"amount"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParsePolicy converts a JSON definition into a policy.Snapshot,
// validating the table and applying defaults.
func ParsePolicy(jsonStr string) (*policy.Snapshot, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("invalid policy JSON: %w", err)
	}
	if len(pj.BasicAmounts) == 0 {
		return nil, fmt.Errorf("policy JSON requires at least one basic amount")
	}

	amounts := make([]policy.BasicAmount, 0, len(pj.BasicAmounts))
	for _, ba := range pj.BasicAmounts {
		from, err := timeline.ParseDate(ba.EffectiveFrom)
		if err != nil {
			return nil, fmt.Errorf("invalid basic amount effective_from %q: %w", ba.EffectiveFrom, err)
		}
		if ba.Amount <= 0 {
			return nil, fmt.Errorf("basic amount must be positive, got %d", ba.Amount)
		}
		amounts = append(amounts, policy.BasicAmount{EffectiveFrom: from, Amount: ba.Amount})
	}

	return policy.New(
		amounts,
		int64Or(pj.CapMultiple, 6),
		intOr(pj.QualifyingDays, 16),
		intOr(pj.EmployerResetGap, 16),
		decimalOr(pj.DegreeFloor, 20),
		decimalOr(pj.MinimumIncomeFraction, 0.5),
		intOr(pj.StandardCeiling, 248),
		intOr(pj.ReducedCeiling, 60),
		intOr(pj.ReducedCeilingAge, 67),
		intOr(pj.CutoffAge, 70),
		intOr(pj.ResetGapDays, 182),
		intOr(pj.LookbackYears, 3),
	)
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func int64Or(v *int64, def int64) int64 {
	if v != nil {
		return *v
	}
	return def
}

func decimalOr(v *float64, def float64) decimal.Decimal {
	if v != nil {
		return decimal.NewFromFloat(*v)
	}
	return decimal.NewFromFloat(def)
}

// =============================================================================
// PRESETS
// =============================================================================

// DefaultPolicyJSON returns the shipped parameter set with the recent
// basic-amount revisions. Override via the -policy flag in production.
func DefaultPolicyJSON() string {
	return `{
		"basic_amounts": [
			{"effective_from": "2023-05-01", "amount": 118620},
			{"effective_from": "2024-05-01", "amount": 124028},
			{"effective_from": "2025-05-01", "amount": 130160}
		],
		"cap_multiple": 6,
		"qualifying_days": 16,
		"employer_reset_gap": 16,
		"degree_floor": 20,
		"minimum_income_fraction": 0.5,
		"standard_ceiling": 248,
		"reduced_ceiling": 60,
		"reduced_ceiling_age": 67,
		"cutoff_age": 70,
		"reset_gap_days": 182,
		"lookback_years": 3
	}`
}
