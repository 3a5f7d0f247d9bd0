package dto

import (
	"time"

	"github.com/mirmex/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Category    domain.TicketCategory `json:"category"`
	EquipmentID *string               `json:"equipment_id"`
	DueDate     *time.Time            `json:"due_date"`
	ReporterID  string                `json:"reporter_id,omitempty"`
}

// UpdateTicketRequest is the privileged multi-field edit payload.
type UpdateTicketRequest struct {
	Title        *string                `json:"title"`
	Description  *string                `json:"description"`
	Status       *domain.TicketStatus   `json:"status"`
	Priority     *domain.TicketPriority `json:"priority"`
	Category     *domain.TicketCategory `json:"category"`
	TechnicianID *string                `json:"technician_id"`
	EquipmentID  *string                `json:"equipment_id"`
	DueDate      *time.Time             `json:"due_date"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignRequest payload.
type AssignRequest struct {
	TechnicianID string `json:"technician_id"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// TicketSummary response.
type TicketSummary struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	Category       domain.TicketCategory `json:"category"`
	ReporterID     string                `json:"reporter_id"`
	TechnicianID   *string               `json:"technician_id"`
	EquipmentID    *string               `json:"equipment_id"`
	DueDate        *time.Time            `json:"due_date"`
	CreatedAt      time.Time             `json:"created_at"`
	ClosedAt       *time.Time            `json:"closed_at"`
	Overdue        bool                  `json:"overdue"`
	ElapsedPercent *int                  `json:"sla_elapsed_percent,omitempty"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description     string             `json:"description"`
	ResolutionHours *float64           `json:"resolution_hours"`
	Comments        []CommentResponse  `json:"comments"`
	History         []AuditEntryDetail `json:"history"`
}

// CommentResponse represents one ticket comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditEntryDetail represents one audit trail record.
type AuditEntryDetail struct {
	ID        string               `json:"id"`
	ActorID   *string              `json:"actor_id"`
	Action    domain.AuditAction   `json:"action"`
	OldStatus *domain.TicketStatus `json:"old_status,omitempty"`
	NewStatus *domain.TicketStatus `json:"new_status,omitempty"`
	Note      string               `json:"note,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}
