package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mirmex/helpdesk/internal/domain"
	"github.com/mirmex/helpdesk/internal/policy"
	"github.com/mirmex/helpdesk/internal/repository"
	"github.com/mirmex/helpdesk/internal/workflow"
	apperrors "github.com/mirmex/helpdesk/pkg/util"
)

// TicketService coordinates ticket workflows: it resolves visibility, asks
// the policy, then hands lifecycle mutations to the state machine.
type TicketService struct {
	tickets   repository.TicketRepository
	comments  repository.CommentRepository
	audit     repository.AuditRepository
	equipment repository.EquipmentRepository
	users     repository.UserRepository
	machine   *workflow.Machine
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	CommentRepo   repository.CommentRepository
	AuditRepo     repository.AuditRepository
	EquipmentRepo repository.EquipmentRepository
	UserRepo      repository.UserRepository
	Machine       *workflow.Machine
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	Category    domain.TicketCategory
	EquipmentID *string
	DueDate     *time.Time
	// ReporterID lets a dispatcher or admin file on a reporter's behalf;
	// empty means the actor files for themselves.
	ReporterID string
}

// TicketListFilter describes secondary listing filters applied on top of
// the actor's visibility scope.
type TicketListFilter struct {
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	Categories   []domain.TicketCategory
	TechnicianID *string
	EquipmentID  *string
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// TicketEditInput is the privileged multi-field overwrite payload. Nil
// fields are left untouched.
type TicketEditInput struct {
	Title        *string
	Description  *string
	Status       *domain.TicketStatus
	Priority     *domain.TicketPriority
	Category     *domain.TicketCategory
	TechnicianID *string
	EquipmentID  *string
	DueDate      *time.Time
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:   deps.TicketRepo,
		comments:  deps.CommentRepo,
		audit:     deps.AuditRepo,
		equipment: deps.EquipmentRepo,
		users:     deps.UserRepo,
		machine:   deps.Machine,
	}
}

// CreateTicket files a new request in state new.
func (s *TicketService) CreateTicket(ctx context.Context, actorID string, role domain.Role, input TicketCreateInput) (*domain.Ticket, error) {
	if err := policy.Authorize(role, policy.Ownership{}, policy.ActionCreateTicket); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}

	reporterID := input.ReporterID
	if reporterID == "" || (role != domain.RoleAdmin && role != domain.RoleDispatcher) {
		reporterID = actorID
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.ValidPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	category := input.Category
	if category == "" {
		category = domain.TicketCategoryOther
	}
	if !domain.ValidCategory(category) {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": category})
	}

	if input.EquipmentID != nil {
		if _, err := s.equipment.GetByID(ctx, *input.EquipmentID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewValidationError("equipment does not exist", map[string]any{"equipment_id": *input.EquipmentID})
			}
			return nil, apperrors.MapError(err)
		}
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusNew,
		Priority:    priority,
		Category:    category,
		ReporterID:  reporterID,
		EquipmentID: input.EquipmentID,
		DueDate:     input.DueDate,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.machine.RecordCreated(ctx, ticket, workflow.UserActor(actorID, role)); err != nil {
		return nil, err
	}
	return ticket, nil
}

// ListVisible returns tickets inside the actor's visibility scope with the
// caller's secondary filters applied.
func (s *TicketService) ListVisible(ctx context.Context, actorID string, role domain.Role, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:     filter.Statuses,
		Priorities:   filter.Priorities,
		Categories:   filter.Categories,
		TechnicianID: filter.TechnicianID,
		EquipmentID:  filter.EquipmentID,
		SearchTerm:   filter.SearchTerm,
		CreatedFrom:  filter.CreatedFrom,
		CreatedTo:    filter.CreatedTo,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	}
	scope := policy.VisibleScope(role, actorID)
	// Scope always wins over caller-supplied filters.
	if scope.ReporterID != nil {
		repoFilter.ReporterID = scope.ReporterID
	}
	if scope.TechnicianID != nil {
		repoFilter.TechnicianID = scope.TechnicianID
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Board groups the actor's visible tickets by lifecycle state.
func (s *TicketService) Board(ctx context.Context, actorID string, role domain.Role) (map[domain.TicketStatus][]domain.Ticket, error) {
	tickets, err := s.ListVisible(ctx, actorID, role, TicketListFilter{Limit: 500})
	if err != nil {
		return nil, err
	}
	board := map[domain.TicketStatus][]domain.Ticket{
		domain.TicketStatusNew:        {},
		domain.TicketStatusAssigned:   {},
		domain.TicketStatusInProgress: {},
		domain.TicketStatusClosed:     {},
	}
	for _, t := range tickets {
		board[t.Status] = append(board[t.Status], t)
	}
	return board, nil
}

// GetTicket fetches a ticket with its comments and audit history. Tickets
// outside the actor's scope are reported as not found.
func (s *TicketService) GetTicket(ctx context.Context, actorID string, role domain.Role, ticketID string) (*domain.Ticket, []domain.Comment, []domain.AuditEntry, error) {
	ticket, err := s.visibleTicket(ctx, actorID, role, ticketID)
	if err != nil {
		return nil, nil, nil, err
	}
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, nil, apperrors.MapError(err)
	}
	history, err := s.audit.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, nil, apperrors.MapError(err)
	}
	return ticket, comments, history, nil
}

// History returns the ticket's audit trail in timestamp order.
func (s *TicketService) History(ctx context.Context, actorID string, role domain.Role, ticketID string) ([]domain.AuditEntry, error) {
	ticket, err := s.visibleTicket(ctx, actorID, role, ticketID)
	if err != nil {
		return nil, err
	}
	history, err := s.audit.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

// ChangeStatus applies a lifecycle transition on behalf of the actor.
func (s *TicketService) ChangeStatus(ctx context.Context, actorID string, role domain.Role, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	ticket, err := s.visibleTicket(ctx, actorID, role, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(role, ownership(ticket, actorID), policy.ActionChangeStatus); err != nil {
		return nil, err
	}
	return s.machine.ChangeStatus(ctx, ticket, newStatus, workflow.UserActor(actorID, role), false)
}

// Assign hands the ticket to a technician and moves it to assigned.
func (s *TicketService) Assign(ctx context.Context, actorID string, role domain.Role, ticketID, technicianID string) (*domain.Ticket, error) {
	ticket, err := s.visibleTicket(ctx, actorID, role, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(role, ownership(ticket, actorID), policy.ActionAssign); err != nil {
		return nil, err
	}
	if strings.TrimSpace(technicianID) == "" {
		return nil, apperrors.NewMissingTechnician()
	}
	technician, err := s.users.GetByID(ctx, technicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("technician does not exist", map[string]any{"technician_id": technicianID})
		}
		return nil, apperrors.MapError(err)
	}
	if !technician.InGroup(domain.GroupTechnician) {
		return nil, apperrors.NewValidationError("user is not a technician", map[string]any{"technician_id": technicianID})
	}
	return s.machine.Assign(ctx, ticket, technicianID, workflow.UserActor(actorID, role), false)
}

// StartWork moves the ticket into in_progress.
func (s *TicketService) StartWork(ctx context.Context, actorID string, role domain.Role, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.visibleTicket(ctx, actorID, role, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(role, ownership(ticket, actorID), policy.ActionChangeStatus); err != nil {
		return nil, err
	}
	return s.machine.StartWork(ctx, ticket, workflow.UserActor(actorID, role), false)
}

// Close moves the ticket into its terminal state.
func (s *TicketService) Close(ctx context.Context, actorID string, role domain.Role, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.visibleTicket(ctx, actorID, role, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(role, ownership(ticket, actorID), policy.ActionChangeStatus); err != nil {
		return nil, err
	}
	return s.machine.Close(ctx, ticket, workflow.UserActor(actorID, role), false)
}

// AddComment appends a comment and its audit entry.
func (s *TicketService) AddComment(ctx context.Context, actorID string, role domain.Role, ticketID, body string) (*domain.Comment, error) {
	ticket, err := s.visibleTicket(ctx, actorID, role, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(role, ownership(ticket, actorID), policy.ActionComment); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}
	comment := &domain.Comment{
		TicketID: ticket.ID,
		AuthorID: actorID,
		Body:     body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.machine.RecordComment(ctx, comment, workflow.UserActor(actorID, role)); err != nil {
		return nil, err
	}
	return comment, nil
}

// Edit performs the privileged multi-field overwrite: transition validation
// is bypassed, auditing is preserved.
func (s *TicketService) Edit(ctx context.Context, actorID string, role domain.Role, ticketID string, input TicketEditInput) (*domain.Ticket, error) {
	ticket, err := s.visibleTicket(ctx, actorID, role, ticketID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(role, ownership(ticket, actorID), policy.ActionBypassEdit); err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	if input.Title != nil {
		ticket.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.Priority != nil {
		if !domain.ValidPriority(*input.Priority) {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = *input.Priority
	}
	if input.Category != nil {
		if !domain.ValidCategory(*input.Category) {
			return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": *input.Category})
		}
		ticket.Category = *input.Category
	}
	if input.TechnicianID != nil {
		if *input.TechnicianID == "" {
			ticket.TechnicianID = nil
		} else {
			ticket.TechnicianID = input.TechnicianID
		}
	}
	if input.EquipmentID != nil {
		if *input.EquipmentID == "" {
			ticket.EquipmentID = nil
		} else {
			ticket.EquipmentID = input.EquipmentID
		}
	}
	if input.DueDate != nil {
		ticket.DueDate = input.DueDate
	}
	if input.Status != nil {
		ticket.Status = *input.Status
	}

	return s.machine.ApplyEdit(ctx, ticket, oldStatus, workflow.UserActor(actorID, role))
}

func (s *TicketService) visibleTicket(ctx context.Context, actorID string, role domain.Role, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !policy.VisibleScope(role, actorID).Contains(ticket) {
		// Outside the caller's scope is indistinguishable from nonexistent.
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

func ownership(ticket *domain.Ticket, actorID string) policy.Ownership {
	own := policy.Ownership{IsReporter: ticket.ReporterID == actorID}
	if ticket.TechnicianID != nil && *ticket.TechnicianID == actorID {
		own.IsTechnician = true
	}
	return own
}
