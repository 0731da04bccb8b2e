/*
window.go - Cross-employer view of classified day sequences

PURPOSE:
  Filters operate on the union of all employers' day sequences for the
  window under evaluation. Window aligns the per-employer sequences by
  date so a filter can visit every calendar day once and see the days of
  all concurrently sick employers together, in stable input order.

SEE ALSO:
  - chain.go: runs the filters over a Window
*/
package eligibility

import (
	"github.com/warp/sickpay-engine/timeline"
)

// =============================================================================
// PERSON - The employee the case concerns
// =============================================================================

type Person struct {
	BirthDate timeline.Date
	DeathDate *timeline.Date
}

// AgeAt returns the person's age in full years on the given date.
func (p Person) AgeAt(d timeline.Date) int {
	return timeline.YearsBetween(p.BirthDate, d)
}

// =============================================================================
// WINDOW
// =============================================================================

// Window aligns the classified day sequences of every employer by date.
// Sequences are gap-free per employer but need not cover identical ranges.
type Window struct {
	order  []timeline.EmployerID
	seqs   map[timeline.EmployerID][]timeline.Day
	starts map[timeline.EmployerID]timeline.Date
	period timeline.Period
}

// NewWindow builds a window from per-employer sequences. The employer
// order given here is the stable order used for allocation tie-breaks.
func NewWindow(order []timeline.EmployerID, seqs map[timeline.EmployerID][]timeline.Day) *Window {
	w := &Window{
		order:  order,
		seqs:   seqs,
		starts: make(map[timeline.EmployerID]timeline.Date, len(seqs)),
	}
	first := true
	for _, emp := range order {
		days := seqs[emp]
		if len(days) == 0 {
			continue
		}
		w.starts[emp] = days[0].Date
		start, end := days[0].Date, days[len(days)-1].Date
		if first {
			w.period = timeline.NewPeriod(start, end)
			first = false
			continue
		}
		if start.Before(w.period.Start) {
			w.period.Start = start
		}
		if end.After(w.period.End) {
			w.period.End = end
		}
	}
	return w
}

// Period returns the combined date range of all sequences.
func (w *Window) Period() timeline.Period { return w.period }

// Employers returns the stable employer order.
func (w *Window) Employers() []timeline.EmployerID { return w.order }

// Sequence returns one employer's day slice (shared, mutable).
func (w *Window) Sequence(emp timeline.EmployerID) []timeline.Day { return w.seqs[emp] }

// At returns the day of one employer on one date, or nil when the date is
// outside that employer's sequence.
func (w *Window) At(emp timeline.EmployerID, d timeline.Date) *timeline.Day {
	days := w.seqs[emp]
	if len(days) == 0 {
		return nil
	}
	idx := timeline.DaysBetween(w.starts[emp], d)
	if idx < 0 || idx >= len(days) {
		return nil
	}
	return &days[idx]
}

// DaysAt returns every employer's day on the date, in stable order.
// Employers without a day on the date are skipped.
func (w *Window) DaysAt(d timeline.Date) []*timeline.Day {
	var out []*timeline.Day
	for _, emp := range w.order {
		if day := w.At(emp, d); day != nil {
			out = append(out, day)
		}
	}
	return out
}

// EachDate visits every date of the combined range chronologically.
func (w *Window) EachDate(fn func(d timeline.Date) error) error {
	if w.period.Count() == 0 {
		return nil
	}
	for d := w.period.Start; d.BeforeOrEqual(w.period.End); d = d.AddDays(1) {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}
