/*
Package pipeline orchestrates one full payment-timeline computation.

PURPOSE:
  Wires the stages end to end for a single case:

    validated per-employer illness timelines
      -> DayClassifier (one per employer, owning its period tracker)
      -> eligibility filter chain (cross-employer, statutory order)
      -> allocation (final amounts on the days)
      -> a new DisbursementOrder, finalized to Unpaid

  The computation is pure and synchronous over an immutable input
  snapshot. The enclosing system guarantees at most one concurrent
  mutation per case; cross-case computations are independent.

ERROR MODEL:
  A foreclosed timeline or a violated allocation invariant aborts the
  whole computation with a fatal error. Business denials never do; they
  surface as rejected days inside the produced order.

SEE ALSO:
  - classifier, eligibility, allocation, disbursement: the stages
*/
package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/warp/sickpay-engine/classifier"
	"github.com/warp/sickpay-engine/disbursement"
	"github.com/warp/sickpay-engine/eligibility"
	"github.com/warp/sickpay-engine/policy"
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// INPUT
// =============================================================================

// EmployerInput is one employer's slice of the case.
type EmployerInput struct {
	Employer timeline.EmployerID
	Illness  timeline.EmployerTimeline
	Basis    classifier.EconomicBasis

	// PriorEmployerPeriods seeds the tracker when this computation
	// continues a running illness.
	PriorEmployerPeriods []timeline.Period
}

// CaseInput is the immutable snapshot a computation runs over.
type CaseInput struct {
	CaseID    string
	Person    eligibility.Person
	Employers []EmployerInput

	// CounterSeed continues an earlier computation's entitlement
	// accounting; nil starts fresh.
	CounterSeed *eligibility.Counter

	// CorrelationID links this order to the revisions it supersedes;
	// uuid.Nil starts a new correlation.
	CorrelationID uuid.UUID

	// Observers are registered on the order before it finalizes, so the
	// first transition is already observed.
	Observers []disbursement.Observer
}

// =============================================================================
// RESULT
// =============================================================================

// Computation is the finished result for one case.
type Computation struct {
	Days          map[timeline.EmployerID][]timeline.Day
	Counter       eligibility.Counter
	Maksdato      timeline.Date
	ConsumedDays  int
	RemainingDays int
	Order         *disbursement.Order
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Policy *policy.Snapshot
}

func New(pol *policy.Snapshot) *Engine { return &Engine{Policy: pol} }

// Compute runs the full pipeline and returns the finalized order in state
// Unpaid.
func (e *Engine) Compute(in CaseInput) (*Computation, error) {
	if len(in.Employers) == 0 {
		return nil, fmt.Errorf("compute %s: no employer timelines", in.CaseID)
	}

	order := make([]timeline.EmployerID, 0, len(in.Employers))
	seqs := make(map[timeline.EmployerID][]timeline.Day, len(in.Employers))
	for _, emp := range in.Employers {
		tracker := classifier.NewEmployerPeriodTracker(e.Policy.QualifyingDays)
		if len(emp.PriorEmployerPeriods) > 0 {
			tracker = classifier.NewEmployerPeriodTrackerWithHistory(e.Policy.QualifyingDays, emp.PriorEmployerPeriods)
		}
		dc := classifier.NewWithTracker(emp.Employer, e.Policy, emp.Basis, tracker)
		days, err := dc.Classify(emp.Illness)
		if err != nil {
			return nil, fmt.Errorf("compute %s: %w", in.CaseID, err)
		}
		order = append(order, emp.Employer)
		seqs[emp.Employer] = days
	}

	window := eligibility.NewWindow(order, seqs)
	chain := eligibility.NewChain(e.Policy, in.Person, in.CounterSeed)
	outcome, err := chain.Run(window)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", in.CaseID, err)
	}

	counter := outcome.Counter
	consumed := counter.Consumed()
	ceiling := e.Policy.CeilingFor(in.Person.AgeAt(window.Period().End))
	remaining := counter.Remaining(ceiling)
	maksdato := projectMaksdato(window.Period(), counter, remaining)

	result := &Computation{
		Days:          seqs,
		Counter:       counter,
		Maksdato:      maksdato,
		ConsumedDays:  consumed,
		RemainingDays: remaining,
	}

	result.Order, err = e.buildOrder(in, window, result)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", in.CaseID, err)
	}
	return result, nil
}

// buildOrder assembles and finalizes the disbursement order.
func (e *Engine) buildOrder(in CaseInput, window *eligibility.Window, comp *Computation) (*disbursement.Order, error) {
	typ := disbursement.TypeOrdinary
	if in.CorrelationID != uuid.Nil {
		typ = disbursement.TypeRevision
	}
	o := disbursement.NewOrder(in.CaseID, typ, in.CorrelationID)
	o.Period = window.Period()
	o.Days = comp.Days
	o.Maksdato = comp.Maksdato
	o.ConsumedDays = comp.ConsumedDays
	o.RemainingDays = comp.RemainingDays
	o.EmployerLedger, o.EmployeeLedger = disbursement.BuildLedgers(window.Employers(), comp.Days)
	for _, obs := range in.Observers {
		o.Register(obs)
	}
	if err := o.Finalize(); err != nil {
		return nil, err
	}
	return o, nil
}

// projectMaksdato projects the remaining entitlement forward over
// workdays from the last counted benefit day (or the window end when
// nothing consumed yet).
func projectMaksdato(period timeline.Period, counter eligibility.Counter, remaining int) timeline.Date {
	start := period.End
	if counter.LastBenefitDay != nil {
		start = *counter.LastBenefitDay
	}
	d := start
	for left := remaining; left > 0; {
		d = d.AddDays(1)
		if d.IsWorkday() {
			left--
		}
	}
	return d
}
