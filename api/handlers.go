/*
handlers.go - HTTP API handlers for the sick-pay engine

PURPOSE:
  Exposes the computation pipeline and the order lifecycle via REST.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Computation:
    POST   /api/cases/{id}/compute                Run the pipeline for a case

  Orders:
    GET    /api/orders/{correlationId}            Latest revision snapshot
    GET    /api/orders/{correlationId}/revisions  Full revision history
    POST   /api/orders/{correlationId}/approve    Record approval
    POST   /api/orders/{correlationId}/reject     Record rejection
    POST   /api/orders/{correlationId}/simulate   Produce a simulation request
    POST   /api/orders/{correlationId}/transmit   Queue and transmit
    POST   /api/orders/{correlationId}/confirmations  Apply an external answer
    POST   /api/orders/{correlationId}/reminders  Externally driven retry
    POST   /api/orders/{correlationId}/annul      Annul a settled order
    POST   /api/orders/{correlationId}/discard    Abandon a non-terminal order

  Policy:
    GET    /api/policy                            Active statutory parameters

ARCHITECTURE:
  Handler holds the pipeline engine, the revision store, and the registry
  of live orders keyed by correlation id. Lifecycle endpoints act on the
  live order; history endpoints read the store. Every completed
  transition is persisted as a new revision through an observer
  registered at computation time.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown correlation id
  - 409: Illegal lifecycle transition
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/classifier"
	"github.com/warp/sickpay-engine/disbursement"
	"github.com/warp/sickpay-engine/eligibility"
	"github.com/warp/sickpay-engine/pipeline"
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  disbursement.OrderStore
	Engine *pipeline.Engine

	// PolicyJSON is the raw parameter set served on /api/policy.
	PolicyJSON string

	registry *Registry
}

// NewHandler creates a new handler.
func NewHandler(store disbursement.OrderStore, engine *pipeline.Engine, policyJSON string) *Handler {
	return &Handler{
		Store:      store,
		Engine:     engine,
		PolicyJSON: policyJSON,
		registry:   NewRegistry(),
	}
}

// =============================================================================
// COMPUTATION
// =============================================================================

// Compute runs the full pipeline for one case snapshot and returns the
// finalized order.
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "id")

	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := h.toCaseInput(caseID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid case input", err)
		return
	}

	comp, err := h.Engine.Compute(*in)
	if err != nil {
		var fe *classifier.ForeclosureError
		if errors.As(err, &fe) {
			writeError(w, http.StatusBadRequest, "Timeline foreclosed", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Computation failed", err)
		return
	}

	// The finalize transition ran before this observer could attach, so
	// the Unpaid revision is appended here; every later transition is
	// appended by the observer.
	if err := h.Store.AppendRevision(r.Context(), comp.Order.Memento()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to persist order", err)
		return
	}
	h.observePersistence(comp.Order)
	h.registry.Put(comp.Order)

	writeJSON(w, http.StatusCreated, toComputationDTO(caseID, comp))
}

// toCaseInput converts the request into the pipeline's input snapshot.
func (h *Handler) toCaseInput(caseID string, req ComputeRequest) (*pipeline.CaseInput, error) {
	birth, err := timeline.ParseDate(req.Person.BirthDate)
	if err != nil {
		return nil, err
	}
	person := eligibility.Person{BirthDate: birth}
	if req.Person.DeathDate != nil {
		death, err := timeline.ParseDate(*req.Person.DeathDate)
		if err != nil {
			return nil, err
		}
		person.DeathDate = &death
	}

	employers := make([]pipeline.EmployerInput, 0, len(req.Employers))
	for _, e := range req.Employers {
		days := make([]timeline.IllnessDay, 0, len(e.Days))
		for _, d := range e.Days {
			date, err := timeline.ParseDate(d.Date)
			if err != nil {
				return nil, err
			}
			kind, err := parseIllnessKind(d.Kind)
			if err != nil {
				return nil, err
			}
			days = append(days, timeline.IllnessDay{
				Date:  date,
				Kind:  kind,
				Grade: decimal.NewFromFloat(d.Grade),
			})
		}
		prior := make([]timeline.Period, 0, len(e.PriorEmployerPeriods))
		for _, p := range e.PriorEmployerPeriods {
			start, err := timeline.ParseDate(p.Start)
			if err != nil {
				return nil, err
			}
			end, err := timeline.ParseDate(p.End)
			if err != nil {
				return nil, err
			}
			prior = append(prior, timeline.NewPeriod(start, end))
		}
		employers = append(employers, pipeline.EmployerInput{
			Employer: timeline.EmployerID(e.Employer),
			Illness:  timeline.EmployerTimeline{Employer: timeline.EmployerID(e.Employer), Days: days},
			Basis: classifier.EconomicBasis{
				DailyIncome:  e.Basis.DailyIncome,
				RefundClaim:  e.Basis.RefundClaim,
				CoverageBase: e.Basis.CoverageBase,
			},
			PriorEmployerPeriods: prior,
		})
	}

	in := &pipeline.CaseInput{
		CaseID:    caseID,
		Person:    person,
		Employers: employers,
	}
	if req.Counter != nil {
		counted := make([]timeline.Date, 0, len(req.Counter.CountedDays))
		for _, s := range req.Counter.CountedDays {
			d, err := timeline.ParseDate(s)
			if err != nil {
				return nil, err
			}
			counted = append(counted, d)
		}
		seed := &eligibility.Counter{}
		seed.Seed(counted)
		in.CounterSeed = seed
	}
	if req.CorrelationID != "" {
		cid, err := uuid.Parse(req.CorrelationID)
		if err != nil {
			return nil, err
		}
		in.CorrelationID = cid
	}
	return in, nil
}

// observePersistence appends a revision for every completed transition.
func (h *Handler) observePersistence(o *disbursement.Order) {
	o.Register(disbursement.ObserverFunc(func(e disbursement.ChangeEvent) {
		if err := h.Store.AppendRevision(context.Background(), o.Memento()); err != nil {
			log.Printf("failed to persist revision of %s: %v", e.CorrelationID, err)
		}
	}))
}

// =============================================================================
// ORDER QUERIES
// =============================================================================

// GetOrder returns the latest revision snapshot for a correlation id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	cid, ok := correlationID(w, r)
	if !ok {
		return
	}
	if o := h.registry.Get(cid); o != nil {
		writeJSON(w, http.StatusOK, o.Memento())
		return
	}
	snap, err := h.Store.LatestRevision(r.Context(), cid)
	if err != nil {
		if errors.Is(err, disbursement.ErrRevisionNotFound) {
			writeError(w, http.StatusNotFound, "Order not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load order", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetRevisions returns the full revision history for a correlation id.
func (h *Handler) GetRevisions(w http.ResponseWriter, r *http.Request) {
	cid, ok := correlationID(w, r)
	if !ok {
		return
	}
	revs, err := h.Store.Revisions(r.Context(), cid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load revisions", err)
		return
	}
	if len(revs) == 0 {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, revs)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Approve records a positive approval decision.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	o, ok := h.liveOrder(w, r)
	if !ok {
		return
	}
	var req ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	err := o.Approve(disbursement.Approval{
		Approver:  req.Approver,
		At:        time.Now().UTC(),
		Automatic: req.Automatic,
	})
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o.Memento())
}

// Reject records a negative approval decision.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	o, ok := h.liveOrder(w, r)
	if !ok {
		return
	}
	var req ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	err := o.RejectApproval(disbursement.Approval{
		Approver:  req.Approver,
		At:        time.Now().UTC(),
		Automatic: req.Automatic,
	})
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o.Memento())
}

// Simulate produces a simulation request for an unpaid order.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	o, ok := h.liveOrder(w, r)
	if !ok {
		return
	}
	sim, err := o.Simulate()
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

// Transmit queues the approved order and hands it to the external system.
func (h *Handler) Transmit(w http.ResponseWriter, r *http.Request) {
	o, ok := h.liveOrder(w, r)
	if !ok {
		return
	}
	var req TransmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := o.RequestTransmission(); err != nil {
		writeTransitionError(w, err)
		return
	}
	transfer, err := o.Transmit(time.Now(), req.Responsible)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(transfer))
}

// Confirm applies one ledger's external confirmation. A replayed message
// id answers with the current memento without applying anything; the
// check reads the persisted message registry and so survives restarts.
// The id is recorded only after the confirmation is accepted, so a
// rejected confirmation can be retried under the same id.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	o, ok := h.liveOrder(w, r)
	if !ok {
		return
	}
	var req ConfirmationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	replay, err := h.Store.WasHandled(r.Context(), req.MessageID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check message registry", err)
		return
	}
	if replay {
		writeJSON(w, http.StatusOK, o.Memento())
		return
	}
	err = o.RecordExternalConfirmation(disbursement.Confirmation{
		MessageID:   req.MessageID,
		FagsystemID: req.FagsystemID,
		OK:          req.OK,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, disbursement.ErrUnknownLedger) {
			writeError(w, http.StatusBadRequest, "Unknown ledger", err)
			return
		}
		writeTransitionError(w, err)
		return
	}
	if _, err := h.Store.MarkHandled(r.Context(), req.MessageID, o.ID); err != nil {
		log.Printf("failed to record handled message %s: %v", req.MessageID, err)
	}
	writeJSON(w, http.StatusOK, o.Memento())
}

// Remind processes an externally driven retry trigger. Returns the
// re-issued transfer request, or no content when nothing is re-sent.
func (h *Handler) Remind(w http.ResponseWriter, r *http.Request) {
	o, ok := h.liveOrder(w, r)
	if !ok {
		return
	}
	var req ReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	replay, err := h.Store.WasHandled(r.Context(), req.MessageID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check message registry", err)
		return
	}
	if replay {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	transfer, err := o.Remind(req.MessageID, time.Now(), req.Responsible)
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	if _, err := h.Store.MarkHandled(r.Context(), req.MessageID, o.ID); err != nil {
		log.Printf("failed to record handled message %s: %v", req.MessageID, err)
	}
	if transfer == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTO(transfer))
}

// Annul produces and finalizes the negated annulment order for a settled
// order. The annulment takes over as the live order of the correlation.
func (h *Handler) Annul(w http.ResponseWriter, r *http.Request) {
	o, ok := h.liveOrder(w, r)
	if !ok {
		return
	}
	a, err := o.Annul()
	if err != nil {
		writeTransitionError(w, err)
		return
	}
	h.observePersistence(a)
	if err := a.Finalize(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to finalize annulment", err)
		return
	}
	h.registry.Put(a)
	writeJSON(w, http.StatusCreated, a.Memento())
}

// Discard abandons a non-terminal order.
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	o, ok := h.liveOrder(w, r)
	if !ok {
		return
	}
	if err := o.Discard(); err != nil {
		writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o.Memento())
}

// =============================================================================
// POLICY
// =============================================================================

// GetPolicy serves the active statutory parameter set.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.PolicyJSON))
}

// =============================================================================
// HELPERS
// =============================================================================

func correlationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	cid, err := uuid.Parse(chi.URLParam(r, "correlationId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid correlation id", err)
		return uuid.Nil, false
	}
	return cid, true
}

// liveOrder resolves the live order for the correlation id in the URL.
func (h *Handler) liveOrder(w http.ResponseWriter, r *http.Request) (*disbursement.Order, bool) {
	cid, ok := correlationID(w, r)
	if !ok {
		return nil, false
	}
	o := h.registry.Get(cid)
	if o == nil {
		writeError(w, http.StatusNotFound, "Order not found", nil)
		return nil, false
	}
	return o, true
}

func writeTransitionError(w http.ResponseWriter, err error) {
	if errors.Is(err, disbursement.ErrInvalidTransition) {
		writeError(w, http.StatusConflict, "Illegal lifecycle transition", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "Lifecycle operation failed", err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// =============================================================================
// DTO CONVERSION
// =============================================================================

func toComputationDTO(caseID string, comp *pipeline.Computation) ComputationDTO {
	o := comp.Order
	dto := ComputationDTO{
		CaseID:        caseID,
		OrderID:       o.ID.String(),
		CorrelationID: o.CorrelationID.String(),
		State:         string(o.State),
		Period:        PeriodDTO{Start: o.Period.Start.String(), End: o.Period.End.String()},
		Maksdato:      comp.Maksdato.String(),
		ConsumedDays:  comp.ConsumedDays,
		RemainingDays: comp.RemainingDays,
		EmployerNet:   o.EmployerLedger.NetAmount(),
		EmployeeNet:   o.EmployeeLedger.NetAmount(),
		Days:          toDayDTOs(comp.Days),
		Ledgers: []LedgerDTO{
			toLedgerDTO(o.EmployerLedger),
			toLedgerDTO(o.EmployeeLedger),
		},
	}
	return dto
}

func toDayDTOs(seqs map[timeline.EmployerID][]timeline.Day) []DayDTO {
	employers := make([]timeline.EmployerID, 0, len(seqs))
	for emp := range seqs {
		employers = append(employers, emp)
	}
	sort.Slice(employers, func(i, j int) bool { return employers[i] < employers[j] })

	var out []DayDTO
	for _, emp := range employers {
		for _, d := range seqs[emp] {
			dto := DayDTO{
				Date:           d.Date.String(),
				Employer:       string(emp),
				Kind:           d.Kind.String(),
				Grade:          gradeFloat(d.Economics.Grade),
				RefundAmount:   d.Economics.RefundAmount,
				EmployeeAmount: d.Economics.EmployeeAmount,
				TotalAmount:    d.Economics.TotalAmount,
				IncomeCapped:   d.Economics.IncomeCapped,
			}
			for _, reason := range d.Rejections {
				dto.Rejections = append(dto.Rejections, string(reason))
			}
			out = append(out, dto)
		}
	}
	return out
}

func toLedgerDTO(l disbursement.Ledger) LedgerDTO {
	dto := LedgerDTO{
		FagsystemID: l.FagsystemID,
		NetAmount:   l.NetAmount(),
		Status:      string(l.Status),
	}
	for _, line := range l.Lines {
		if dto.Classification == "" {
			dto.Classification = line.Classification
		}
		dto.Lines = append(dto.Lines, LineDTO{
			Employer:    string(line.Employer),
			From:        line.From.String(),
			To:          line.To.String(),
			DailyAmount: line.DailyAmount,
			Grade:       gradeFloat(line.Grade),
			Amount:      line.Amount(),
		})
	}
	return dto
}

func toTransferDTO(t *disbursement.TransferRequest) TransferRequestDTO {
	dto := TransferRequestDTO{
		OrderID:           t.OrderID.String(),
		CorrelationID:     t.CorrelationID.String(),
		Maksdato:          t.Maksdato.String(),
		Responsible:       t.Responsible,
		ReconciliationKey: t.ReconciliationKey,
	}
	for _, p := range t.Ledgers {
		ldto := LedgerDTO{FagsystemID: p.FagsystemID, NetAmount: p.NetAmount}
		for _, line := range p.Lines {
			if ldto.Classification == "" {
				ldto.Classification = line.Classification
			}
			ldto.Lines = append(ldto.Lines, LineDTO{
				Employer:    string(line.Employer),
				From:        line.From.String(),
				To:          line.To.String(),
				DailyAmount: line.DailyAmount,
				Grade:       gradeFloat(line.Grade),
				Amount:      line.Amount(),
			})
		}
		dto.Ledgers = append(dto.Ledgers, ldto)
	}
	return dto
}
