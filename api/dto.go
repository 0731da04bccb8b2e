/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: the case
  workflow posts validated illness timelines, the payment surface drives
  order lifecycle events.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - disbursement/memento.go: the Snapshot returned for revisions
*/
package api

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// COMPUTE REQUEST
// =============================================================================

// ComputeRequest is one case snapshot posted by the case workflow.
type ComputeRequest struct {
	Person    PersonDTO           `json:"person"`
	Employers []EmployerInputDTO  `json:"employers"`
	Counter   *CounterSeedDTO     `json:"counter,omitempty"`
	// CorrelationID links a recalculation to the order it supersedes.
	// Empty starts a new correlation.
	CorrelationID string `json:"korrelasjonsId,omitempty"`
}

// PersonDTO carries the person's statutory-relevant dates.
type PersonDTO struct {
	BirthDate string  `json:"birth_date"`
	DeathDate *string `json:"death_date,omitempty"`
}

// EmployerInputDTO is one employer's slice of the case.
type EmployerInputDTO struct {
	Employer string            `json:"employer"`
	Days     []IllnessDayDTO   `json:"days"`
	Basis    EconomicBasisDTO  `json:"basis"`
	// PriorEmployerPeriods seeds the employer-period tracker when this
	// computation continues a running illness.
	PriorEmployerPeriods []PeriodDTO `json:"prior_employer_periods,omitempty"`
}

// IllnessDayDTO is one validated input day.
type IllnessDayDTO struct {
	Date  string  `json:"date"`
	Kind  string  `json:"kind"` // sick, sick_weekend, vacation, holiday, work
	Grade float64 `json:"grade,omitempty"`
}

// EconomicBasisDTO carries the daily whole-krone economic facts.
type EconomicBasisDTO struct {
	DailyIncome  int64 `json:"daily_income"`
	RefundClaim  int64 `json:"refund_claim"`
	CoverageBase int64 `json:"coverage_base"`
}

// PeriodDTO is a closed date range.
type PeriodDTO struct {
	Start string `json:"fom"`
	End   string `json:"tom"`
}

// CounterSeedDTO continues an earlier computation's entitlement
// accounting.
type CounterSeedDTO struct {
	CountedDays []string `json:"counted_days"`
}

// =============================================================================
// COMPUTE RESPONSE
// =============================================================================

// ComputationDTO is the result of one pipeline run.
type ComputationDTO struct {
	CaseID        string         `json:"case_id"`
	OrderID       string         `json:"order_id"`
	CorrelationID string         `json:"korrelasjonsId"`
	State         string         `json:"tilstand"`
	Period        PeriodDTO      `json:"periode"`
	Maksdato      string         `json:"maksdato"`
	ConsumedDays  int            `json:"forbrukteSykedager"`
	RemainingDays int            `json:"gjenståendeSykedager"`
	EmployerNet   int64          `json:"arbeidsgiverNettoBeløp"`
	EmployeeNet   int64          `json:"personNettoBeløp"`
	Days          []DayDTO       `json:"days"`
	Ledgers       []LedgerDTO    `json:"ledgers"`
}

// DayDTO is one classified day in the response.
type DayDTO struct {
	Date           string   `json:"date"`
	Employer       string   `json:"employer"`
	Kind           string   `json:"kind"`
	Grade          float64  `json:"grade,omitempty"`
	RefundAmount   int64    `json:"refund_amount,omitempty"`
	EmployeeAmount int64    `json:"employee_amount,omitempty"`
	TotalAmount    int64    `json:"total_amount,omitempty"`
	IncomeCapped   bool     `json:"er6GBegrenset,omitempty"`
	Rejections     []string `json:"rejections,omitempty"`
}

// LedgerDTO is one sub-ledger in the response.
type LedgerDTO struct {
	FagsystemID    string    `json:"fagsystemId"`
	Classification string    `json:"klassekode"`
	NetAmount      int64     `json:"nettoBeløp"`
	Status         string    `json:"status"`
	Lines          []LineDTO `json:"linjer"`
}

// LineDTO is one merged payment line.
type LineDTO struct {
	Employer    string  `json:"employer,omitempty"`
	From        string  `json:"fom"`
	To          string  `json:"tom"`
	DailyAmount int64   `json:"dagsats"`
	Grade       float64 `json:"grad"`
	Amount      int64   `json:"beløp"`
}

// =============================================================================
// LIFECYCLE REQUESTS
// =============================================================================

// ApprovalRequest records the approval or rejection decision.
type ApprovalRequest struct {
	Approver  string `json:"saksbehandler"`
	Automatic bool   `json:"automatiskBehandling,omitempty"`
}

// TransmitRequest identifies the responsible operator for a transfer.
type TransmitRequest struct {
	Responsible string `json:"ansvarlig"`
}

// ConfirmationRequest is the external payment system's answer for one
// ledger, relayed by the transport collaborator.
type ConfirmationRequest struct {
	MessageID   string `json:"meldingId"`
	FagsystemID string `json:"fagsystemId"`
	OK          bool   `json:"ok"`
	Description string `json:"beskrivelse,omitempty"`
}

// ReminderRequest is an externally driven retry trigger.
type ReminderRequest struct {
	MessageID   string `json:"meldingId"`
	Responsible string `json:"ansvarlig"`
}

// TransferRequestDTO is an outbound payment instruction.
type TransferRequestDTO struct {
	OrderID           string      `json:"order_id"`
	CorrelationID     string      `json:"korrelasjonsId"`
	Maksdato          string      `json:"maksdato"`
	Responsible       string      `json:"ansvarlig"`
	ReconciliationKey string      `json:"avstemmingsnøkkel"`
	Ledgers           []LedgerDTO `json:"ledgers"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseIllnessKind(s string) (timeline.IllnessKind, error) {
	switch s {
	case "sick":
		return timeline.IllnessSick, nil
	case "sick_weekend":
		return timeline.IllnessSickWeekend, nil
	case "vacation":
		return timeline.IllnessVacation, nil
	case "holiday":
		return timeline.IllnessHoliday, nil
	case "work":
		return timeline.IllnessWork, nil
	default:
		return timeline.IllnessUnknown, fmt.Errorf("unknown illness kind %q", s)
	}
}

func gradeFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
