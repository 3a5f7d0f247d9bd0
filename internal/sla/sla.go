// Package sla derives service-level values from a ticket's timestamps.
// Everything here is pure and read-only; nothing is persisted.
package sla

import (
	"math"
	"time"

	"github.com/mirmex/helpdesk/internal/domain"
)

// IsOverdue reports whether the ticket has passed its due date while still
// open. A closed ticket is never overdue, regardless of how late it closed.
func IsOverdue(t *domain.Ticket, now time.Time) bool {
	if t == nil || t.DueDate == nil {
		return false
	}
	if t.Status == domain.TicketStatusClosed {
		return false
	}
	return now.After(*t.DueDate)
}

// ResolutionHours returns the time from creation to closure in hours,
// rounded to one decimal. Nil while the ticket is open.
func ResolutionHours(t *domain.Ticket) *float64 {
	if t == nil || t.ClosedAt == nil {
		return nil
	}
	hours := t.ClosedAt.Sub(t.CreatedAt).Hours()
	rounded := math.Round(hours*10) / 10
	return &rounded
}

// ElapsedPercent returns how much of the window between creation and the due
// date has elapsed, capped at 100. Nil when the ticket has no due date, is
// already closed, or the window is degenerate. Callers map the value to
// severity bands; the thresholds are theirs, the percent is ours.
func ElapsedPercent(t *domain.Ticket, now time.Time) *int {
	if t == nil || t.DueDate == nil || t.Status == domain.TicketStatusClosed {
		return nil
	}
	window := t.DueDate.Sub(t.CreatedAt)
	if window <= 0 {
		return nil
	}
	elapsed := now.Sub(t.CreatedAt)
	percent := int(math.Round(100 * float64(elapsed) / float64(window)))
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	return &percent
}
