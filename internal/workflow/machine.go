// Package workflow owns the ticket status field. Every mutation path goes
// through the transition table here, and every accepted change lands one
// audit entry.
package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mirmex/helpdesk/internal/domain"
	"github.com/mirmex/helpdesk/internal/events"
	"github.com/mirmex/helpdesk/internal/repository"
	apperrors "github.com/mirmex/helpdesk/pkg/util"
)

var transitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew:        {domain.TicketStatusAssigned, domain.TicketStatusClosed},
	domain.TicketStatusAssigned:   {domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusClosed},
	domain.TicketStatusClosed:     {},
}

// AllowedTargets returns the statuses reachable from the given one.
func AllowedTargets(from domain.TicketStatus) []domain.TicketStatus {
	return append([]domain.TicketStatus{}, transitions[from]...)
}

func canTransition(from, to domain.TicketStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Actor identifies who drives an operation. A nil ID means the system.
type Actor struct {
	ID   *string
	Role domain.Role
}

// UserActor builds an Actor for an authenticated user.
func UserActor(id string, role domain.Role) Actor {
	return Actor{ID: &id, Role: role}
}

// Machine applies lifecycle transitions and records the audit trail.
type Machine struct {
	tickets    repository.TicketRepository
	audit      repository.AuditRepository
	dispatcher events.Dispatcher
	now        func() time.Time
}

// NewMachine constructs the state machine.
func NewMachine(tickets repository.TicketRepository, audit repository.AuditRepository, dispatcher events.Dispatcher) *Machine {
	return &Machine{
		tickets:    tickets,
		audit:      audit,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// WithClock overrides the time source.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// ChangeStatus validates and applies a transition. A request for the current
// status is an idempotent no-op producing no audit entry. With bypass set
// the transition table is skipped but auditing is not: any actual status
// change still lands an entry.
func (m *Machine) ChangeStatus(ctx context.Context, ticket *domain.Ticket, newStatus domain.TicketStatus, actor Actor, bypass bool) (*domain.Ticket, error) {
	if !domain.ValidStatus(newStatus) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}
	if ticket.Status == newStatus {
		return ticket, nil
	}
	oldStatus := ticket.Status
	if !bypass && !canTransition(oldStatus, newStatus) {
		return nil, invalidTransition(oldStatus, newStatus)
	}

	ticket.Status = newStatus
	if newStatus == domain.TicketStatusClosed && ticket.ClosedAt == nil {
		closedAt := m.now()
		ticket.ClosedAt = &closedAt
	}
	if err := m.tickets.UpdateStatus(ctx, ticket, oldStatus); err != nil {
		ticket.Status = oldStatus
		return nil, mapTicketErr(err, ticket.ID)
	}

	if err := m.recordStatusChange(ctx, ticket.ID, actor, oldStatus, newStatus, ""); err != nil {
		return nil, apperrors.MapError(err)
	}
	m.publish(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.Actor{ActorID: actor.ID, Role: actor.Role},
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	return ticket, nil
}

// Assign sets the technician and moves the ticket to assigned as one logical
// operation. Reassigning an already-assigned ticket succeeds: the embedded
// status change no-ops while the technician swap is still persisted and
// audited.
func (m *Machine) Assign(ctx context.Context, ticket *domain.Ticket, technicianID string, actor Actor, bypass bool) (*domain.Ticket, error) {
	technicianID = strings.TrimSpace(technicianID)
	if technicianID == "" {
		return nil, apperrors.NewMissingTechnician()
	}
	if !bypass && ticket.Status != domain.TicketStatusAssigned && !canTransition(ticket.Status, domain.TicketStatusAssigned) {
		return nil, invalidTransition(ticket.Status, domain.TicketStatusAssigned)
	}

	ticket.TechnicianID = &technicianID
	if ticket.Status == domain.TicketStatusAssigned {
		// Same-status reassignment: persist the technician without a
		// lifecycle transition.
		if err := m.tickets.UpdateStatus(ctx, ticket, ticket.Status); err != nil {
			return nil, mapTicketErr(err, ticket.ID)
		}
	} else {
		updated, err := m.ChangeStatus(ctx, ticket, domain.TicketStatusAssigned, actor, bypass)
		if err != nil {
			ticket.TechnicianID = nil
			return nil, err
		}
		ticket = updated
	}

	entry := &domain.AuditEntry{
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Action:   domain.AuditActionAssigned,
		Note:     "technician " + technicianID,
	}
	if err := m.audit.Append(ctx, entry); err != nil {
		return nil, apperrors.MapError(err)
	}
	m.publish(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		Actor:    events.Actor{ActorID: actor.ID, Role: actor.Role},
		Payload:  events.TicketAssignedPayload{TechnicianID: technicianID},
	})
	return ticket, nil
}

// StartWork moves an assigned ticket into in_progress.
func (m *Machine) StartWork(ctx context.Context, ticket *domain.Ticket, actor Actor, bypass bool) (*domain.Ticket, error) {
	if ticket.TechnicianID == nil || strings.TrimSpace(*ticket.TechnicianID) == "" {
		return nil, apperrors.NewNoTechnicianAssigned()
	}
	return m.ChangeStatus(ctx, ticket, domain.TicketStatusInProgress, actor, bypass)
}

// Close moves the ticket into its terminal state.
func (m *Machine) Close(ctx context.Context, ticket *domain.Ticket, actor Actor, bypass bool) (*domain.Ticket, error) {
	return m.ChangeStatus(ctx, ticket, domain.TicketStatusClosed, actor, bypass)
}

// ApplyEdit persists a privileged multi-field overwrite. Transition
// validation is skipped, audit is not: an `edited` entry is always written
// and a status_changed entry whenever the status actually moved.
func (m *Machine) ApplyEdit(ctx context.Context, ticket *domain.Ticket, oldStatus domain.TicketStatus, actor Actor) (*domain.Ticket, error) {
	if !domain.ValidStatus(ticket.Status) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": ticket.Status})
	}
	if ticket.Status == domain.TicketStatusClosed && ticket.ClosedAt == nil {
		closedAt := m.now()
		ticket.ClosedAt = &closedAt
	}
	if err := m.tickets.Update(ctx, ticket); err != nil {
		return nil, mapTicketErr(err, ticket.ID)
	}

	entry := &domain.AuditEntry{
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Action:   domain.AuditActionEdited,
	}
	if err := m.audit.Append(ctx, entry); err != nil {
		return nil, apperrors.MapError(err)
	}
	if oldStatus != ticket.Status {
		if err := m.recordStatusChange(ctx, ticket.ID, actor, oldStatus, ticket.Status, "direct edit"); err != nil {
			return nil, apperrors.MapError(err)
		}
		m.publish(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: ticket.ID,
			Actor:    events.Actor{ActorID: actor.ID, Role: actor.Role},
			Payload: events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
				Note:      "direct edit",
			},
		})
	}
	return ticket, nil
}

// RecordCreated lands the creation audit entry for a freshly persisted
// ticket and announces it.
func (m *Machine) RecordCreated(ctx context.Context, ticket *domain.Ticket, actor Actor) error {
	entry := &domain.AuditEntry{
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Action:   domain.AuditActionCreated,
	}
	if err := m.audit.Append(ctx, entry); err != nil {
		return apperrors.MapError(err)
	}
	m.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{ActorID: actor.ID, Role: actor.Role},
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Priority: ticket.Priority,
			Category: ticket.Category,
		},
	})
	return nil
}

// RecordComment lands the commented audit entry and announces it.
func (m *Machine) RecordComment(ctx context.Context, comment *domain.Comment, actor Actor) error {
	entry := &domain.AuditEntry{
		TicketID: comment.TicketID,
		ActorID:  actor.ID,
		Action:   domain.AuditActionCommented,
		Note:     preview(comment.Body, 120),
	}
	if err := m.audit.Append(ctx, entry); err != nil {
		return apperrors.MapError(err)
	}
	m.publish(ctx, events.Event{
		Type:     events.EventTicketCommented,
		TicketID: comment.TicketID,
		Actor:    events.Actor{ActorID: actor.ID, Role: actor.Role},
		Payload: events.TicketCommentedPayload{
			CommentID:   comment.ID,
			AuthorID:    comment.AuthorID,
			BodyPreview: preview(comment.Body, 120),
		},
	})
	return nil
}

func (m *Machine) recordStatusChange(ctx context.Context, ticketID string, actor Actor, oldStatus, newStatus domain.TicketStatus, note string) error {
	return m.audit.Append(ctx, &domain.AuditEntry{
		TicketID:  ticketID,
		ActorID:   actor.ID,
		Action:    domain.AuditActionStatusChanged,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
		Note:      note,
	})
}

func (m *Machine) publish(ctx context.Context, event events.Event) {
	if m.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now()
	}
	_ = m.dispatcher.Publish(ctx, event)
}

func invalidTransition(from, to domain.TicketStatus) error {
	allowed := transitions[from]
	names := make([]string, 0, len(allowed))
	for _, s := range allowed {
		names = append(names, string(s))
	}
	return apperrors.NewInvalidTransition(string(from), string(to), names)
}

func mapTicketErr(err error, ticketID string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, repository.ErrStatusConflict):
		return apperrors.NewConflict("ticket changed concurrently, retry", map[string]any{"ticket_id": ticketID})
	default:
		return apperrors.MapError(err)
	}
}

func preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
