package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirmex/helpdesk/internal/domain"
	"github.com/mirmex/helpdesk/internal/repository"
	apperrors "github.com/mirmex/helpdesk/pkg/util"
)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo(tickets ...*domain.Ticket) *fakeTicketRepo {
	repo := &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
	for _, t := range tickets {
		copied := *t
		repo.tickets[t.ID] = &copied
	}
	return repo
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) UpdateStatus(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Status != expected {
		return repository.ErrStatusConflict
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, _ repository.TicketFilter) ([]domain.Ticket, error) {
	out := make([]domain.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		out = append(out, *t)
	}
	return out, nil
}

type fakeAuditRepo struct {
	entries []domain.AuditEntry
}

func (r *fakeAuditRepo) Append(_ context.Context, entry *domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.AuditEntry, error) {
	out := []domain.AuditEntry{}
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) ListRecent(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit > len(r.entries) {
		limit = len(r.entries)
	}
	out := make([]domain.AuditEntry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.entries[i])
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func newTicket(status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		ID:         uuid.NewString(),
		Title:      "printer jam",
		Status:     status,
		Priority:   domain.TicketPriorityMedium,
		Category:   domain.TicketCategoryPrinter,
		ReporterID: uuid.NewString(),
		CreatedAt:  time.Now().Add(-time.Hour),
	}
}

func newTestMachine(tickets repository.TicketRepository, audit repository.AuditRepository) *Machine {
	return NewMachine(tickets, audit, nil)
}

func TestChangeStatusValidTransitions(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.NewString(), domain.RoleDispatcher)

	tests := []struct {
		name string
		from domain.TicketStatus
		to   domain.TicketStatus
	}{
		{"new to assigned", domain.TicketStatusNew, domain.TicketStatusAssigned},
		{"new to closed", domain.TicketStatusNew, domain.TicketStatusClosed},
		{"assigned to in_progress", domain.TicketStatusAssigned, domain.TicketStatusInProgress},
		{"assigned to closed", domain.TicketStatusAssigned, domain.TicketStatusClosed},
		{"in_progress to closed", domain.TicketStatusInProgress, domain.TicketStatusClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := newTicket(tt.from)
			ticketRepo := newFakeTicketRepo(ticket)
			auditRepo := &fakeAuditRepo{}
			machine := newTestMachine(ticketRepo, auditRepo)

			updated, err := machine.ChangeStatus(ctx, ticket, tt.to, actor, false)
			require.NoError(t, err)
			assert.Equal(t, tt.to, updated.Status)

			stored, err := ticketRepo.GetByID(ctx, ticket.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.to, stored.Status)

			require.Len(t, auditRepo.entries, 1)
			entry := auditRepo.entries[0]
			assert.Equal(t, domain.AuditActionStatusChanged, entry.Action)
			require.NotNil(t, entry.OldStatus)
			require.NotNil(t, entry.NewStatus)
			assert.Equal(t, tt.from, *entry.OldStatus)
			assert.Equal(t, tt.to, *entry.NewStatus)
			assert.Equal(t, actor.ID, entry.ActorID)
		})
	}
}

func TestChangeStatusInvalidTransitionLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.NewString(), domain.RoleDispatcher)

	tests := []struct {
		name string
		from domain.TicketStatus
		to   domain.TicketStatus
	}{
		{"new to in_progress", domain.TicketStatusNew, domain.TicketStatusInProgress},
		{"assigned to new", domain.TicketStatusAssigned, domain.TicketStatusNew},
		{"in_progress to assigned", domain.TicketStatusInProgress, domain.TicketStatusAssigned},
		{"closed to new", domain.TicketStatusClosed, domain.TicketStatusNew},
		{"closed to assigned", domain.TicketStatusClosed, domain.TicketStatusAssigned},
		{"closed to in_progress", domain.TicketStatusClosed, domain.TicketStatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := newTicket(tt.from)
			ticketRepo := newFakeTicketRepo(ticket)
			auditRepo := &fakeAuditRepo{}
			machine := newTestMachine(ticketRepo, auditRepo)

			_, err := machine.ChangeStatus(ctx, ticket, tt.to, actor, false)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, "INVALID_TRANSITION"))

			stored, getErr := ticketRepo.GetByID(ctx, ticket.ID)
			require.NoError(t, getErr)
			assert.Equal(t, tt.from, stored.Status)
			assert.Empty(t, auditRepo.entries)
		})
	}
}

func TestChangeStatusSameStatusIsNoOp(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusAssigned)
	ticketRepo := newFakeTicketRepo(ticket)
	auditRepo := &fakeAuditRepo{}
	machine := newTestMachine(ticketRepo, auditRepo)

	updated, err := machine.ChangeStatus(ctx, ticket, domain.TicketStatusAssigned, UserActor("u", domain.RoleAdmin), false)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAssigned, updated.Status)
	assert.Empty(t, auditRepo.entries)
}

func TestChangeStatusUnknownStatusRejected(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusNew)
	machine := newTestMachine(newFakeTicketRepo(ticket), &fakeAuditRepo{})

	_, err := machine.ChangeStatus(ctx, ticket, domain.TicketStatus("reopened"), UserActor("u", domain.RoleAdmin), false)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))
}

func TestCloseSetsClosedAtExactlyOnce(t *testing.T) {
	ctx := context.Background()
	closeTime := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ticket := newTicket(domain.TicketStatusInProgress)
	ticket.TechnicianID = strPtr(uuid.NewString())
	ticketRepo := newFakeTicketRepo(ticket)
	auditRepo := &fakeAuditRepo{}
	machine := newTestMachine(ticketRepo, auditRepo).WithClock(func() time.Time { return closeTime })

	closed, err := machine.Close(ctx, ticket, UserActor("u", domain.RoleTechnician), false)
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, closeTime, *closed.ClosedAt)

	// A privileged bypass back through closed must not move the stamp.
	machine.WithClock(func() time.Time { return closeTime.Add(48 * time.Hour) })
	reclosed, err := machine.ChangeStatus(ctx, closed, domain.TicketStatusClosed, UserActor("u", domain.RoleAdmin), true)
	require.NoError(t, err)
	require.NotNil(t, reclosed.ClosedAt)
	assert.Equal(t, closeTime, *reclosed.ClosedAt)
}

func TestBypassSkipsValidationButNotAudit(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusClosed)
	now := time.Now()
	ticket.ClosedAt = &now
	ticketRepo := newFakeTicketRepo(ticket)
	auditRepo := &fakeAuditRepo{}
	machine := newTestMachine(ticketRepo, auditRepo)

	updated, err := machine.ChangeStatus(ctx, ticket, domain.TicketStatusInProgress, UserActor("admin", domain.RoleAdmin), true)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)

	require.Len(t, auditRepo.entries, 1)
	entry := auditRepo.entries[0]
	assert.Equal(t, domain.AuditActionStatusChanged, entry.Action)
	assert.Equal(t, domain.TicketStatusClosed, *entry.OldStatus)
	assert.Equal(t, domain.TicketStatusInProgress, *entry.NewStatus)
}

func TestAssignRequiresTechnician(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusNew)
	machine := newTestMachine(newFakeTicketRepo(ticket), &fakeAuditRepo{})

	_, err := machine.Assign(ctx, ticket, "  ", UserActor("d", domain.RoleDispatcher), false)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "MISSING_TECHNICIAN"))
}

func TestAssignWritesStatusChangeAndAssignedEntries(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusNew)
	ticketRepo := newFakeTicketRepo(ticket)
	auditRepo := &fakeAuditRepo{}
	machine := newTestMachine(ticketRepo, auditRepo)
	technicianID := uuid.NewString()

	updated, err := machine.Assign(ctx, ticket, technicianID, UserActor("d", domain.RoleDispatcher), false)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAssigned, updated.Status)
	require.NotNil(t, updated.TechnicianID)
	assert.Equal(t, technicianID, *updated.TechnicianID)

	require.Len(t, auditRepo.entries, 2)
	assert.Equal(t, domain.AuditActionStatusChanged, auditRepo.entries[0].Action)
	assert.Equal(t, domain.AuditActionAssigned, auditRepo.entries[1].Action)
	assert.Contains(t, auditRepo.entries[1].Note, technicianID)
}

func TestReassignKeepsStatusAndAuditsOnce(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusAssigned)
	ticket.TechnicianID = strPtr("first-tech")
	ticketRepo := newFakeTicketRepo(ticket)
	auditRepo := &fakeAuditRepo{}
	machine := newTestMachine(ticketRepo, auditRepo)

	updated, err := machine.Assign(ctx, ticket, "second-tech", UserActor("d", domain.RoleDispatcher), false)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAssigned, updated.Status)
	assert.Equal(t, "second-tech", *updated.TechnicianID)

	stored, err := ticketRepo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "second-tech", *stored.TechnicianID)

	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, domain.AuditActionAssigned, auditRepo.entries[0].Action)
}

func TestAssignRejectedFromInProgress(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusInProgress)
	ticket.TechnicianID = strPtr("tech")
	auditRepo := &fakeAuditRepo{}
	machine := newTestMachine(newFakeTicketRepo(ticket), auditRepo)

	_, err := machine.Assign(ctx, ticket, "other-tech", UserActor("d", domain.RoleDispatcher), false)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "INVALID_TRANSITION"))
	assert.Empty(t, auditRepo.entries)
}

func TestStartWorkRequiresAssignedTechnician(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusAssigned)
	machine := newTestMachine(newFakeTicketRepo(ticket), &fakeAuditRepo{})

	_, err := machine.StartWork(ctx, ticket, UserActor("t", domain.RoleTechnician), false)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "NO_TECHNICIAN_ASSIGNED"))
}

func TestStartWork(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusAssigned)
	ticket.TechnicianID = strPtr("tech")
	machine := newTestMachine(newFakeTicketRepo(ticket), &fakeAuditRepo{})

	updated, err := machine.StartWork(ctx, ticket, UserActor("tech", domain.RoleTechnician), false)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
}

func TestChangeStatusConcurrentConflict(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusNew)
	ticketRepo := newFakeTicketRepo(ticket)
	auditRepo := &fakeAuditRepo{}
	machine := newTestMachine(ticketRepo, auditRepo)

	// Another caller moved the stored row first.
	stale := *ticket
	_, err := machine.ChangeStatus(ctx, ticket, domain.TicketStatusAssigned, UserActor("a", domain.RoleDispatcher), false)
	require.NoError(t, err)

	_, err = machine.ChangeStatus(ctx, &stale, domain.TicketStatusClosed, UserActor("b", domain.RoleDispatcher), false)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "CONFLICT"))
	assert.Equal(t, domain.TicketStatusNew, stale.Status)

	// Only the winning transition got audited.
	require.Len(t, auditRepo.entries, 1)
}

func TestApplyEditAuditsStatusMove(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusNew)
	ticketRepo := newFakeTicketRepo(ticket)
	auditRepo := &fakeAuditRepo{}
	machine := newTestMachine(ticketRepo, auditRepo)

	oldStatus := ticket.Status
	ticket.Status = domain.TicketStatusClosed
	ticket.Title = "edited title"

	updated, err := machine.ApplyEdit(ctx, ticket, oldStatus, UserActor("admin", domain.RoleAdmin))
	require.NoError(t, err)
	require.NotNil(t, updated.ClosedAt)

	require.Len(t, auditRepo.entries, 2)
	assert.Equal(t, domain.AuditActionEdited, auditRepo.entries[0].Action)
	assert.Equal(t, domain.AuditActionStatusChanged, auditRepo.entries[1].Action)
	assert.Equal(t, "direct edit", auditRepo.entries[1].Note)
}

func TestApplyEditWithoutStatusMove(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusAssigned)
	ticketRepo := newFakeTicketRepo(ticket)
	auditRepo := &fakeAuditRepo{}
	machine := newTestMachine(ticketRepo, auditRepo)

	ticket.Priority = domain.TicketPriorityHigh
	_, err := machine.ApplyEdit(ctx, ticket, ticket.Status, UserActor("admin", domain.RoleAdmin))
	require.NoError(t, err)

	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, domain.AuditActionEdited, auditRepo.entries[0].Action)
}

func TestRecordCreatedAndComment(t *testing.T) {
	ctx := context.Background()
	ticket := newTicket(domain.TicketStatusNew)
	auditRepo := &fakeAuditRepo{}
	machine := newTestMachine(newFakeTicketRepo(ticket), auditRepo)
	actor := UserActor(ticket.ReporterID, domain.RoleReporter)

	require.NoError(t, machine.RecordCreated(ctx, ticket, actor))

	comment := &domain.Comment{
		ID:       uuid.NewString(),
		TicketID: ticket.ID,
		AuthorID: ticket.ReporterID,
		Body:     "it is still jammed",
	}
	require.NoError(t, machine.RecordComment(ctx, comment, actor))

	require.Len(t, auditRepo.entries, 2)
	assert.Equal(t, domain.AuditActionCreated, auditRepo.entries[0].Action)
	assert.Equal(t, domain.AuditActionCommented, auditRepo.entries[1].Action)
	assert.Equal(t, "it is still jammed", auditRepo.entries[1].Note)
}

func TestAllowedTargets(t *testing.T) {
	assert.ElementsMatch(t,
		[]domain.TicketStatus{domain.TicketStatusAssigned, domain.TicketStatusClosed},
		AllowedTargets(domain.TicketStatusNew))
	assert.Empty(t, AllowedTargets(domain.TicketStatusClosed))
}
