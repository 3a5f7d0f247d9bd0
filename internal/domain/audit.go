package domain

import "time"

// AuditAction captures what kind of event an audit entry records.
type AuditAction string

const (
	AuditActionCreated       AuditAction = "created"
	AuditActionStatusChanged AuditAction = "status_changed"
	AuditActionAssigned      AuditAction = "assigned"
	AuditActionCommented     AuditAction = "commented"
	AuditActionEdited        AuditAction = "edited"
)

// AuditEntry is an immutable audit trail record owned by one ticket.
// ActorID is nil for system-originated actions. OldStatus and NewStatus
// are set only when the action describes a status change.
type AuditEntry struct {
	ID        string
	TicketID  string
	ActorID   *string
	Action    AuditAction
	OldStatus *TicketStatus
	NewStatus *TicketStatus
	Note      string
	CreatedAt time.Time
}
