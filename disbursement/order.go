/*
Package disbursement manages the lifecycle of one payment run.

PURPOSE:
  A DisbursementOrder is the stateful object representing a computed
  payment: its approval, transmission to the external payment system, and
  settlement. Orders are never mutated across recalculations; a
  recalculated case produces a NEW order sharing the correlation id and
  the old one is discarded.

LIFECYCLE:
  New -> Unpaid -> {Approved, Rejected}
  Approved -> AutoApprovedWithoutPayment        (zero payable amount)
  Approved -> PendingTransmission -> Transmitted
  Transmitted -> Settled | Annulled             (all ledgers confirmed ok)
  Transmitted -> Failed                         (retry window exceeded)
  Failed -> Discarded
  any non-terminal -> Discarded

  Rejected, AutoApprovedWithoutPayment, Settled, Annulled and Discarded
  are terminal.

EXTERNAL I/O:
  The order never calls out. Transmission and simulation produce request
  values a collaborator delivers; the answers arrive later as
  Confirmation events. Timeouts are externally driven reminder events
  compared against the stored transmission timestamp.

IDEMPOTENCY:
  Confirmations and reminders carry a triggering message id. A repeat of
  an already-handled message is a silent no-op.

OBSERVATION:
  Every completed transition synchronously notifies the registered
  observers with the before/after state, the order id and both
  sub-ledgers, before anything else proceeds. A transition that cannot
  yet complete (the sibling ledger has not reached a matching
  confirmation state) is deferred, not errored.

SEE ALSO:
  - ledger.go: the two sub-ledgers
  - memento.go: the persisted snapshot per revision
*/
package disbursement

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// TYPES AND STATES
// =============================================================================

type OrderType string

const (
	TypeOrdinary  OrderType = "ordinary"
	TypeRepayment OrderType = "re-payment"
	TypeAnnulment OrderType = "annulment"
	TypeRevision  OrderType = "revision"
)

type State string

const (
	StateNew                        State = "New"
	StateUnpaid                     State = "Unpaid"
	StateApproved                   State = "Approved"
	StateRejected                   State = "Rejected"
	StateAutoApprovedWithoutPayment State = "AutoApprovedWithoutPayment"
	StatePendingTransmission        State = "PendingTransmission"
	StateTransmitted                State = "Transmitted"
	StateSettled                    State = "Settled"
	StateAnnulled                   State = "Annulled"
	StateFailed                     State = "Failed"
	StateDiscarded                  State = "Discarded"
)

// Terminal reports whether no further transition can leave the state.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateAutoApprovedWithoutPayment, StateSettled, StateAnnulled, StateDiscarded:
		return true
	default:
		return false
	}
}

// RetryWindow bounds reminder-driven retransmission after a failed
// external confirmation.
const RetryWindow = 7 * 24 * time.Hour

// =============================================================================
// APPROVAL, CONFIRMATION, REMINDER
// =============================================================================

// Approval is the vurdering recorded when an order is approved or
// rejected.
type Approval struct {
	Approver  string    `json:"saksbehandler"`
	At        time.Time `json:"tidspunkt"`
	Automatic bool      `json:"automatiskBehandling"`
}

// Confirmation is the external system's answer for one ledger.
type Confirmation struct {
	MessageID   string // triggering identity, for idempotency
	FagsystemID string
	OK          bool
	Description string
}

// =============================================================================
// OBSERVER
// =============================================================================

// ChangeEvent is broadcast after every completed transition.
type ChangeEvent struct {
	CaseID         string
	OrderID        uuid.UUID
	CorrelationID  uuid.UUID
	Type           OrderType
	EmployerLedger Ledger
	EmployeeLedger Ledger
	Previous       State
	Current        State
	At             time.Time
}

// Observer receives lifecycle notifications. The observer list is
// append-only and read-only during a broadcast.
type Observer interface {
	OrderChanged(e ChangeEvent)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(e ChangeEvent)

func (f ObserverFunc) OrderChanged(e ChangeEvent) { f(e) }

// =============================================================================
// OUTBOUND REQUESTS
// =============================================================================

// LedgerPayload is one sub-ledger as it travels on an outbound request.
type LedgerPayload struct {
	FagsystemID string `json:"fagsystemId"`
	Lines       []Line `json:"linjer"`
	NetAmount   int64  `json:"nettoBeløp"`
}

// SimulationRequest asks the external system to simulate the payment.
type SimulationRequest struct {
	OrderID       uuid.UUID
	CorrelationID uuid.UUID
	Maksdato      timeline.Date
	Ledgers       []LedgerPayload
}

// TransferRequest asks the external system to execute the payment.
type TransferRequest struct {
	OrderID           uuid.UUID
	CorrelationID     uuid.UUID
	Maksdato          timeline.Date
	Responsible       string // ansvarlig ident
	ReconciliationKey string // avstemmingsnøkkel
	Ledgers           []LedgerPayload
}

// =============================================================================
// ORDER
// =============================================================================

// Order is one disbursement order revision.
type Order struct {
	ID            uuid.UUID
	CorrelationID uuid.UUID
	Type          OrderType
	CaseID        string

	Period         timeline.Period
	Days           map[timeline.EmployerID][]timeline.Day
	EmployerLedger Ledger
	EmployeeLedger Ledger

	Maksdato      timeline.Date
	ConsumedDays  int
	RemainingDays int

	State             State
	Approval          *Approval
	TransmittedAt     *time.Time
	ReconciliationKey string

	observers []Observer
	handled   map[string]struct{}
}

// NewOrder creates an order in state New. A zero correlation id starts a
// new correlation; otherwise the order supersedes earlier revisions.
func NewOrder(caseID string, typ OrderType, correlationID uuid.UUID) *Order {
	if correlationID == uuid.Nil {
		correlationID = uuid.New()
	}
	return &Order{
		ID:            uuid.New(),
		CorrelationID: correlationID,
		Type:          typ,
		CaseID:        caseID,
		State:         StateNew,
		handled:       make(map[string]struct{}),
	}
}

// Register appends an observer. Registration order is broadcast order.
func (o *Order) Register(obs Observer) { o.observers = append(o.observers, obs) }

// NetAmount is the order's total payable amount across both ledgers.
func (o *Order) NetAmount() int64 {
	return o.EmployerLedger.NetAmount() + o.EmployeeLedger.NetAmount()
}

// transition moves to the next state and broadcasts, in that order.
func (o *Order) transition(next State) {
	prev := o.State
	o.State = next
	event := ChangeEvent{
		CaseID:         o.CaseID,
		OrderID:        o.ID,
		CorrelationID:  o.CorrelationID,
		Type:           o.Type,
		EmployerLedger: o.EmployerLedger,
		EmployeeLedger: o.EmployeeLedger,
		Previous:       prev,
		Current:        next,
		At:             time.Now().UTC(),
	}
	for _, obs := range o.observers {
		obs.OrderChanged(event)
	}
}

// =============================================================================
// LIFECYCLE OPERATIONS
// =============================================================================

// Finalize seals the built order: New -> Unpaid.
func (o *Order) Finalize() error {
	if o.State != StateNew {
		return &TransitionError{Op: "finalize", From: o.State}
	}
	o.transition(StateUnpaid)
	return nil
}

// Approve records the approval decision: Unpaid -> Approved, continuing
// to AutoApprovedWithoutPayment when there is nothing to pay.
func (o *Order) Approve(v Approval) error {
	if o.State != StateUnpaid {
		return &TransitionError{Op: "approve", From: o.State}
	}
	o.Approval = &v
	o.transition(StateApproved)
	if o.NetAmount() == 0 {
		o.transition(StateAutoApprovedWithoutPayment)
	}
	return nil
}

// RejectApproval records a negative decision: Unpaid -> Rejected.
func (o *Order) RejectApproval(v Approval) error {
	if o.State != StateUnpaid {
		return &TransitionError{Op: "reject", From: o.State}
	}
	o.Approval = &v
	o.transition(StateRejected)
	return nil
}

// Simulate produces a simulation request. Legal while Unpaid.
func (o *Order) Simulate() (*SimulationRequest, error) {
	if o.State != StateUnpaid {
		return nil, &TransitionError{Op: "simulate", From: o.State}
	}
	return &SimulationRequest{
		OrderID:       o.ID,
		CorrelationID: o.CorrelationID,
		Maksdato:      o.Maksdato,
		Ledgers:       o.payloads(),
	}, nil
}

// RequestTransmission queues the order: Approved -> PendingTransmission.
func (o *Order) RequestTransmission() error {
	if o.State != StateApproved {
		return &TransitionError{Op: "request transmission", From: o.State}
	}
	o.transition(StatePendingTransmission)
	return nil
}

// Transmit hands the order to the external system:
// PendingTransmission -> Transmitted. Returns the transfer request the
// transport collaborator delivers.
func (o *Order) Transmit(now time.Time, responsible string) (*TransferRequest, error) {
	if o.State != StatePendingTransmission {
		return nil, &TransitionError{Op: "transmit", From: o.State}
	}
	now = now.UTC()
	o.TransmittedAt = &now
	o.ReconciliationKey = now.Format("20060102150405") + o.ID.String()[:8]
	o.markPending()
	o.transition(StateTransmitted)
	return o.transferRequest(responsible), nil
}

// RecordExternalConfirmation applies one ledger's confirmation. A repeat
// of an already-handled message is a silent no-op. The order settles (or
// annuls, for annulment orders) only once every non-empty ledger has been
// confirmed ok; an unmatched sibling defers the transition.
func (o *Order) RecordExternalConfirmation(c Confirmation) error {
	if o.wasHandled(c.MessageID) {
		return nil
	}
	if o.State != StateTransmitted {
		return &TransitionError{Op: "confirm", From: o.State}
	}

	ledger := o.ledgerByFagsystemID(c.FagsystemID)
	if ledger == nil {
		return fmt.Errorf("%w: %s", ErrUnknownLedger, c.FagsystemID)
	}
	o.markHandled(c.MessageID)
	if c.OK {
		ledger.Status = ConfirmationAccepted
	} else {
		ledger.Status = ConfirmationRejected
	}

	if o.allConfirmedOK() {
		if o.Type == TypeAnnulment {
			o.transition(StateAnnulled)
		} else {
			o.transition(StateSettled)
		}
	}
	return nil
}

// Remind processes an externally driven reminder. Within the retry window
// it re-issues the transfer request for every ledger that is not yet
// accepted; past the window the order fails permanently. A repeated
// reminder message is a silent no-op.
func (o *Order) Remind(messageID string, now time.Time, responsible string) (*TransferRequest, error) {
	if o.wasHandled(messageID) {
		return nil, nil
	}
	if o.State != StateTransmitted {
		return nil, &TransitionError{Op: "remind", From: o.State}
	}
	o.markHandled(messageID)
	if o.allConfirmedOK() {
		return nil, nil
	}
	if o.TransmittedAt != nil && now.Sub(*o.TransmittedAt) > RetryWindow {
		o.transition(StateFailed)
		return nil, nil
	}
	o.markPending()
	return o.transferRequest(responsible), nil
}

// Discard abandons the order: any non-terminal state -> Discarded.
func (o *Order) Discard() error {
	if o.State.Terminal() {
		return &TransitionError{Op: "discard", From: o.State}
	}
	o.transition(StateDiscarded)
	return nil
}

// Annul produces a new negated order sharing the correlation id. Only a
// settled order can be annulled; the original stays Settled and the
// annulment runs its own lifecycle.
func (o *Order) Annul() (*Order, error) {
	if o.State != StateSettled {
		return nil, &TransitionError{Op: "annul", From: o.State}
	}
	a := NewOrder(o.CaseID, TypeAnnulment, o.CorrelationID)
	a.Period = o.Period
	a.Maksdato = o.Maksdato
	a.ConsumedDays = o.ConsumedDays
	a.RemainingDays = o.RemainingDays
	a.EmployerLedger = o.EmployerLedger.Negated()
	a.EmployeeLedger = o.EmployeeLedger.Negated()
	return a, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (o *Order) wasHandled(messageID string) bool {
	_, ok := o.handled[messageID]
	return ok
}

func (o *Order) markHandled(messageID string) {
	if messageID != "" {
		o.handled[messageID] = struct{}{}
	}
}

func (o *Order) ledgerByFagsystemID(id string) *Ledger {
	switch id {
	case o.EmployerLedger.FagsystemID:
		return &o.EmployerLedger
	case o.EmployeeLedger.FagsystemID:
		return &o.EmployeeLedger
	default:
		return nil
	}
}

// allConfirmedOK reports whether every non-empty ledger is accepted.
func (o *Order) allConfirmedOK() bool {
	for _, l := range []*Ledger{&o.EmployerLedger, &o.EmployeeLedger} {
		if l.IsEmpty() {
			continue
		}
		if l.Status != ConfirmationAccepted {
			return false
		}
	}
	return true
}

// markPending marks every non-empty, not-yet-accepted ledger as awaiting
// confirmation.
func (o *Order) markPending() {
	for _, l := range []*Ledger{&o.EmployerLedger, &o.EmployeeLedger} {
		if l.IsEmpty() || l.Status == ConfirmationAccepted {
			continue
		}
		l.Status = ConfirmationPending
	}
}

func (o *Order) payloads() []LedgerPayload {
	var out []LedgerPayload
	for _, l := range []*Ledger{&o.EmployerLedger, &o.EmployeeLedger} {
		if l.IsEmpty() {
			continue
		}
		out = append(out, LedgerPayload{
			FagsystemID: l.FagsystemID,
			Lines:       l.Lines,
			NetAmount:   l.NetAmount(),
		})
	}
	return out
}

func (o *Order) transferRequest(responsible string) *TransferRequest {
	return &TransferRequest{
		OrderID:           o.ID,
		CorrelationID:     o.CorrelationID,
		Maksdato:          o.Maksdato,
		Responsible:       responsible,
		ReconciliationKey: o.ReconciliationKey,
		Ledgers:           o.payloads(),
	}
}
