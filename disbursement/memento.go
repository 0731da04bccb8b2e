/*
memento.go - Persisted snapshot of one order revision

PURPOSE:
  The memento is a plain immutable snapshot produced by a pure function
  over the order. Every revision is appended, never updated: the snapshot
  history of a correlation id IS the audit trail of "the same" running
  payment across recalculations.

FIELD PRESENCE:
  Before the allocation engine has run, the day-count and maksdato fields
  are null. Once finalized they are mandatory.

SEE ALSO:
  - store/sqlite, store/memory: OrderStore implementations
*/
package disbursement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the persisted projection of one order revision. JSON field
// names follow the statutory domain vocabulary of the external contract.
type Snapshot struct {
	ID                uuid.UUID       `json:"id"`
	CorrelationID     uuid.UUID       `json:"korrelasjonsId"`
	Type              OrderType       `json:"type"`
	State             State           `json:"tilstand"`
	Period            timeline.Period `json:"periode"`
	EmployerNet       int64           `json:"arbeidsgiverNettoBeløp"`
	EmployeeNet       int64           `json:"personNettoBeløp"`
	Maksdato          *timeline.Date  `json:"maksdato,omitempty"`
	ConsumedDays      *int            `json:"forbrukteSykedager,omitempty"`
	RemainingDays     *int            `json:"gjenståendeSykedager,omitempty"`
	TransmittedAt     *time.Time      `json:"overføringstidspunkt,omitempty"`
	ReconciliationKey string          `json:"avstemmingsnøkkel,omitempty"`
}

// Memento produces the snapshot of the order's current revision.
func (o *Order) Memento() Snapshot {
	s := Snapshot{
		ID:                o.ID,
		CorrelationID:     o.CorrelationID,
		Type:              o.Type,
		State:             o.State,
		Period:            o.Period,
		EmployerNet:       o.EmployerLedger.NetAmount(),
		EmployeeNet:       o.EmployeeLedger.NetAmount(),
		TransmittedAt:     o.TransmittedAt,
		ReconciliationKey: o.ReconciliationKey,
	}
	if o.State != StateNew {
		maksdato := o.Maksdato
		consumed := o.ConsumedDays
		remaining := o.RemainingDays
		s.Maksdato = &maksdato
		s.ConsumedDays = &consumed
		s.RemainingDays = &remaining
	}
	return s
}

// =============================================================================
// ORDER STORE - Append-only revision persistence
// =============================================================================

// OrderStore persists order snapshots append-only and tracks handled
// inbound message identities for cross-restart idempotency.
type OrderStore interface {
	// AppendRevision stores one snapshot as the next revision of its
	// correlation id. Never updates, never deletes.
	AppendRevision(ctx context.Context, s Snapshot) error

	// Revisions returns every snapshot for the correlation id,
	// oldest first.
	Revisions(ctx context.Context, correlationID uuid.UUID) ([]Snapshot, error)

	// LatestRevision returns the newest snapshot for the correlation id,
	// or ErrRevisionNotFound.
	LatestRevision(ctx context.Context, correlationID uuid.UUID) (*Snapshot, error)

	// MarkHandled records a triggering message id. Returns false when
	// the id was already recorded (the message is a replay).
	MarkHandled(ctx context.Context, messageID string, orderID uuid.UUID) (bool, error)

	// WasHandled reports whether the triggering message id was already
	// recorded, without recording it.
	WasHandled(ctx context.Context, messageID string) (bool, error)
}
