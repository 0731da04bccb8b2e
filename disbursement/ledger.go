/*
ledger.go - Sub-ledgers of a disbursement order

PURPOSE:
  A disbursement order carries two sub-ledgers: the employer-refund ledger
  and the employee-payment ledger. Each ledger is a list of date-range
  line items (amount, rate, classification code) built from the finalized
  day sequence, plus the confirmation status the external system reports
  back per ledger.

LINE MERGING:
  Adjacent daily amounts with equal rate and grade merge into ranges.
  Weekends do not break a range: Friday and the following Monday are
  contiguous for payment purposes, since weekend days never pay.

CLASSIFICATION CODES:
  SPREFAG-IOP  employer refund
  SPATORD      employee payment

SEE ALSO:
  - order.go: lifecycle of the order that owns the ledgers
*/
package disbursement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/allocation"
	"github.com/warp/sickpay-engine/timeline"
)

// Classification codes used on outbound line items.
const (
	ClassificationRefund   = "SPREFAG-IOP"
	ClassificationEmployee = "SPATORD"
)

// ConfirmationStatus is the per-ledger state reported by the external
// payment system.
type ConfirmationStatus string

const (
	ConfirmationNone     ConfirmationStatus = "none"     // nothing transmitted yet
	ConfirmationPending  ConfirmationStatus = "pending"  // transmitted, awaiting answer
	ConfirmationAccepted ConfirmationStatus = "accepted" // confirmed ok
	ConfirmationRejected ConfirmationStatus = "rejected" // confirmed failed
)

// =============================================================================
// LINE
// =============================================================================

// Line is one date-range line item of a ledger.
type Line struct {
	Employer       timeline.EmployerID `json:"arbeidsgiver,omitempty"` // empty on the employee ledger
	From           timeline.Date       `json:"fom"`
	To             timeline.Date       `json:"tom"`
	DailyAmount    int64               `json:"dagsats"`
	Grade          decimal.Decimal     `json:"grad"`
	Classification string              `json:"klassekode"`
}

// Workdays returns the number of paid days the line covers.
func (l Line) Workdays() int {
	return timeline.NewPeriod(l.From, l.To).Workdays()
}

// Amount returns the line's total: daily amount times paid days.
func (l Line) Amount() int64 {
	return l.DailyAmount * int64(l.Workdays())
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is one sub-ledger of a disbursement order.
type Ledger struct {
	// FagsystemID identifies the ledger toward the external system;
	// confirmations reference it.
	FagsystemID string             `json:"fagsystemId"`
	Lines       []Line             `json:"linjer"`
	Status      ConfirmationStatus `json:"status"`
}

func newLedger() Ledger {
	return Ledger{FagsystemID: uuid.NewString(), Status: ConfirmationNone}
}

// IsEmpty reports whether the ledger has nothing to pay.
func (l *Ledger) IsEmpty() bool { return len(l.Lines) == 0 }

// NetAmount sums every line's total.
func (l *Ledger) NetAmount() int64 {
	var sum int64
	for _, line := range l.Lines {
		sum += line.Amount()
	}
	return sum
}

// Negated returns a fresh ledger with every amount negated, used for
// annulment orders. The new ledger gets its own FagsystemID and a clean
// confirmation status.
func (l *Ledger) Negated() Ledger {
	out := newLedger()
	out.Lines = make([]Line, len(l.Lines))
	for i, line := range l.Lines {
		line.DailyAmount = -line.DailyAmount
		out.Lines[i] = line
	}
	return out
}

// append merges the daily amount into the last line when contiguous and
// equal, otherwise starts a new line.
func (l *Ledger) append(emp timeline.EmployerID, d timeline.Date, amount int64, grade decimal.Decimal, classification string) {
	if n := len(l.Lines); n > 0 {
		last := &l.Lines[n-1]
		if last.Employer == emp &&
			last.DailyAmount == amount &&
			last.Grade.Equal(grade) &&
			contiguousForPayment(last.To, d) {
			last.To = d
			return
		}
	}
	l.Lines = append(l.Lines, Line{
		Employer:       emp,
		From:           d,
		To:             d,
		DailyAmount:    amount,
		Grade:          grade,
		Classification: classification,
	})
}

// contiguousForPayment reports whether to can extend a line ending at
// from: the next calendar day, or the Monday after a Friday.
func contiguousForPayment(from, to timeline.Date) bool {
	gap := timeline.DaysBetween(from, to)
	if gap == 1 {
		return true
	}
	return gap == 3 && from.Weekday() == time.Friday
}

// =============================================================================
// BUILDING LEDGERS FROM FINALIZED DAYS
// =============================================================================

// BuildLedgers turns the finalized day sequences into the two sub-ledgers.
// Employer order is the stable order used during allocation.
func BuildLedgers(order []timeline.EmployerID, seqs map[timeline.EmployerID][]timeline.Day) (employer, employee Ledger) {
	employer = newLedger()
	employee = newLedger()

	starts := make(map[timeline.EmployerID]timeline.Date, len(seqs))
	var period timeline.Period
	first := true
	for _, emp := range order {
		days := seqs[emp]
		if len(days) == 0 {
			continue
		}
		starts[emp] = days[0].Date
		p := timeline.NewPeriod(days[0].Date, days[len(days)-1].Date)
		if first {
			period = p
			first = false
			continue
		}
		if p.Start.Before(period.Start) {
			period.Start = p.Start
		}
		if p.End.After(period.End) {
			period.End = p.End
		}
	}
	if first {
		return employer, employee
	}

	for d := period.Start; d.BeforeOrEqual(period.End); d = d.AddDays(1) {
		var employeeAmount int64
		var dayFacts []allocation.Fact
		for _, emp := range order {
			days := seqs[emp]
			if len(days) == 0 {
				continue
			}
			idx := timeline.DaysBetween(starts[emp], d)
			if idx < 0 || idx >= len(days) {
				continue
			}
			day := days[idx]
			if day.Kind != timeline.PayerLiabilityDay || !day.Economics.Allocated {
				continue
			}
			dayFacts = append(dayFacts, allocation.Fact{
				Employer:     emp,
				Grade:        day.Economics.Grade,
				DailyIncome:  day.Economics.DailyIncome,
				CoverageBase: day.Economics.CoverageBase,
			})
			if day.Economics.RefundAmount > 0 {
				employer.append(emp, d, day.Economics.RefundAmount, day.Economics.Grade, ClassificationRefund)
			}
			employeeAmount += day.Economics.EmployeeAmount
		}
		if employeeAmount > 0 {
			// The combined line's rate metadata is the same income-weighted
			// aggregate grade the allocation used for the day, independent
			// of employer iteration order.
			employee.append("", d, employeeAmount, allocation.AggregateGrade(dayFacts), ClassificationEmployee)
		}
	}
	return employer, employee
}
