package service

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
	"github.com/mirmex/helpdesk/internal/workflow"
	apperrors "github.com/mirmex/helpdesk/pkg/util"
)

type memTicketRepo struct {
	tickets map[string]*domain.Ticket
}

func newMemTicketRepo(tickets ...*domain.Ticket) *memTicketRepo {
	repo := &memTicketRepo{tickets: map[string]*domain.Ticket{}}
	for _, t := range tickets {
		copied := *t
		repo.tickets[t.ID] = &copied
	}
	return repo
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *memTicketRepo) UpdateStatus(_ context.Context, ticket *domain.Ticket, expected domain.TicketStatus) error {
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

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *memTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	out := []domain.Ticket{}
	for _, t := range r.tickets {
		if filter.ReporterID != nil && t.ReporterID != *filter.ReporterID {
			continue
		}
		if filter.TechnicianID != nil && (t.TechnicianID == nil || *t.TechnicianID != *filter.TechnicianID) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

type memAuditRepo struct {
	entries []domain.AuditEntry
}

func (r *memAuditRepo) Append(_ context.Context, entry *domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAuditRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.AuditEntry, error) {
	out := []domain.AuditEntry{}
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memAuditRepo) ListRecent(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit > len(r.entries) {
		limit = len(r.entries)
	}
	return append([]domain.AuditEntry{}, r.entries[len(r.entries)-limit:]...), nil
}

type memCommentRepo struct {
	comments []domain.Comment
}

func (r *memCommentRepo) Create(_ context.Context, comment *domain.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	r.comments = append(r.comments, *comment)
	return nil
}

func (r *memCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Comment, error) {
	out := []domain.Comment{}
	for _, c := range r.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memEquipmentRepo struct {
	items map[string]*domain.Equipment
}

func newMemEquipmentRepo(items ...*domain.Equipment) *memEquipmentRepo {
	repo := &memEquipmentRepo{items: map[string]*domain.Equipment{}}
	for _, e := range items {
		copied := *e
		repo.items[e.ID] = &copied
	}
	return repo
}

func (r *memEquipmentRepo) Create(_ context.Context, eq *domain.Equipment) error {
	if eq.ID == "" {
		eq.ID = uuid.NewString()
	}
	copied := *eq
	r.items[eq.ID] = &copied
	return nil
}

func (r *memEquipmentRepo) Update(_ context.Context, eq *domain.Equipment) error {
	if _, ok := r.items[eq.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *eq
	r.items[eq.ID] = &copied
	return nil
}

func (r *memEquipmentRepo) GetByID(_ context.Context, id string) (*domain.Equipment, error) {
	stored, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *memEquipmentRepo) GetBySerial(_ context.Context, serial string) (*domain.Equipment, error) {
	for _, e := range r.items {
		if e.Serial == serial {
			copied := *e
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memEquipmentRepo) List(_ context.Context, _, _ int) ([]domain.Equipment, error) {
	out := make([]domain.Equipment, 0, len(r.items))
	for _, e := range r.items {
		out = append(out, *e)
	}
	return out, nil
}

type memUserRepo struct {
	users map[string]*domain.User
}

func newMemUserRepo(users ...*domain.User) *memUserRepo {
	repo := &memUserRepo{users: map[string]*domain.User{}}
	for _, u := range users {
		copied := *u
		repo.users[u.ID] = &copied
	}
	return repo
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	stored, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) List(_ context.Context, _, _ int) ([]domain.User, error) {
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *memUserRepo) ListByGroup(_ context.Context, group string) ([]domain.User, error) {
	out := []domain.User{}
	for _, u := range r.users {
		if u.InGroup(group) {
			out = append(out, *u)
		}
	}
	return out, nil
}

type serviceFixture struct {
	service   *TicketService
	tickets   *memTicketRepo
	comments  *memCommentRepo
	audit     *memAuditRepo
	equipment *memEquipmentRepo
	users     *memUserRepo
}

func newServiceFixture(tickets ...*domain.Ticket) *serviceFixture {
	ticketRepo := newMemTicketRepo(tickets...)
	auditRepo := &memAuditRepo{}
	commentRepo := &memCommentRepo{}
	equipmentRepo := newMemEquipmentRepo()
	userRepo := newMemUserRepo()
	machine := workflow.NewMachine(ticketRepo, auditRepo, nil)
	svc := NewTicketService(TicketDependencies{
		TicketRepo:    ticketRepo,
		CommentRepo:   commentRepo,
		AuditRepo:     auditRepo,
		EquipmentRepo: equipmentRepo,
		UserRepo:      userRepo,
		Machine:       machine,
	})
	return &serviceFixture{
		service:   svc,
		tickets:   ticketRepo,
		comments:  commentRepo,
		audit:     auditRepo,
		equipment: equipmentRepo,
		users:     userRepo,
	}
}

func sampleTicket(reporterID string) *domain.Ticket {
	return &domain.Ticket{
		ID:          uuid.NewString(),
		Title:       "laptop will not boot",
		Description: "black screen on power on",
		Status:      domain.TicketStatusNew,
		Priority:    domain.TicketPriorityHigh,
		Category:    domain.TicketCategoryHardware,
		ReporterID:  reporterID,
		CreatedAt:   time.Now().Add(-2 * time.Hour),
	}
}

func TestCreateTicketDefaults(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	reporterID := uuid.NewString()

	ticket, err := f.service.CreateTicket(ctx, reporterID, domain.RoleReporter, TicketCreateInput{
		Title:       "  mouse broken  ",
		Description: "left button dead",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, domain.TicketCategoryOther, ticket.Category)
	assert.Equal(t, "mouse broken", ticket.Title)
	assert.Equal(t, reporterID, ticket.ReporterID)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, domain.AuditActionCreated, f.audit.entries[0].Action)
}

func TestCreateTicketReporterCannotFileForOthers(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	actorID := uuid.NewString()

	ticket, err := f.service.CreateTicket(ctx, actorID, domain.RoleReporter, TicketCreateInput{
		Title:       "vpn down",
		Description: "cannot connect",
		ReporterID:  "someone-else",
	})
	require.NoError(t, err)
	assert.Equal(t, actorID, ticket.ReporterID)
}

func TestCreateTicketDispatcherFilesOnBehalf(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	reporterID := uuid.NewString()

	ticket, err := f.service.CreateTicket(ctx, uuid.NewString(), domain.RoleDispatcher, TicketCreateInput{
		Title:       "phoned-in issue",
		Description: "monitor flicker",
		ReporterID:  reporterID,
	})
	require.NoError(t, err)
	assert.Equal(t, reporterID, ticket.ReporterID)
}

func TestCreateTicketRejectsUnknownEquipment(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()
	missing := uuid.NewString()

	_, err := f.service.CreateTicket(ctx, uuid.NewString(), domain.RoleReporter, TicketCreateInput{
		Title:       "printer offline",
		Description: "no response",
		EquipmentID: &missing,
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))
}

func TestGetTicketOutOfScopeIsNotFound(t *testing.T) {
	ctx := context.Background()
	ticket := sampleTicket(uuid.NewString())
	f := newServiceFixture(ticket)

	// A different reporter must not learn the ticket exists.
	_, _, _, err := f.service.GetTicket(ctx, uuid.NewString(), domain.RoleReporter, ticket.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))

	// A technician not assigned to it gets the same answer.
	_, _, _, err = f.service.GetTicket(ctx, uuid.NewString(), domain.RoleTechnician, ticket.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))

	// Dispatchers see everything.
	got, _, _, err := f.service.GetTicket(ctx, uuid.NewString(), domain.RoleDispatcher, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)
}

func TestListVisibleScopeOverridesFilters(t *testing.T) {
	ctx := context.Background()
	mine := sampleTicket("reporter-1")
	other := sampleTicket("reporter-2")
	f := newServiceFixture(mine, other)

	// The reporter asking for another technician's slice still only
	// receives their own tickets.
	techID := "tech-9"
	tickets, err := f.service.ListVisible(ctx, "reporter-1", domain.RoleReporter, TicketListFilter{TechnicianID: &techID})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, mine.ID, tickets[0].ID)
}

func TestAssignValidatesTechnician(t *testing.T) {
	ctx := context.Background()
	ticket := sampleTicket(uuid.NewString())
	f := newServiceFixture(ticket)
	dispatcherID := uuid.NewString()

	_, err := f.service.Assign(ctx, dispatcherID, domain.RoleDispatcher, ticket.ID, uuid.NewString())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))

	notTech := &domain.User{ID: uuid.NewString(), Username: "bob", Groups: []string{}}
	require.NoError(t, f.users.Create(ctx, notTech))
	_, err = f.service.Assign(ctx, dispatcherID, domain.RoleDispatcher, ticket.ID, notTech.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "VALIDATION_FAILED"))

	tech := &domain.User{ID: uuid.NewString(), Username: "eve", Groups: []string{domain.GroupTechnician}}
	require.NoError(t, f.users.Create(ctx, tech))
	updated, err := f.service.Assign(ctx, dispatcherID, domain.RoleDispatcher, ticket.ID, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusAssigned, updated.Status)
	assert.Equal(t, tech.ID, *updated.TechnicianID)
}

func TestTechnicianCanOnlyTouchOwnAssignment(t *testing.T) {
	ctx := context.Background()
	techID := uuid.NewString()
	ticket := sampleTicket(uuid.NewString())
	ticket.Status = domain.TicketStatusAssigned
	ticket.TechnicianID = &techID
	f := newServiceFixture(ticket)

	updated, err := f.service.StartWork(ctx, techID, domain.RoleTechnician, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)

	// Another technician cannot even see it.
	_, err = f.service.StartWork(ctx, uuid.NewString(), domain.RoleTechnician, ticket.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "NOT_FOUND"))
}

func TestReporterCannotChangeStatus(t *testing.T) {
	ctx := context.Background()
	reporterID := uuid.NewString()
	ticket := sampleTicket(reporterID)
	f := newServiceFixture(ticket)

	_, err := f.service.Close(ctx, reporterID, domain.RoleReporter, ticket.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "FORBIDDEN"))
}

func TestAddCommentRecordsAudit(t *testing.T) {
	ctx := context.Background()
	reporterID := uuid.NewString()
	ticket := sampleTicket(reporterID)
	f := newServiceFixture(ticket)

	comment, err := f.service.AddComment(ctx, reporterID, domain.RoleReporter, ticket.ID, "  any update?  ")
	require.NoError(t, err)
	assert.Equal(t, "any update?", comment.Body)
	assert.Equal(t, reporterID, comment.AuthorID)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, domain.AuditActionCommented, f.audit.entries[0].Action)
	assert.Equal(t, "any update?", f.audit.entries[0].Note)
}

func TestEditRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	ticket := sampleTicket(uuid.NewString())
	f := newServiceFixture(ticket)

	title := "rewritten"
	_, err := f.service.Edit(ctx, uuid.NewString(), domain.RoleDispatcher, ticket.ID, TicketEditInput{Title: &title})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, "FORBIDDEN"))

	closed := domain.TicketStatusClosed
	updated, err := f.service.Edit(ctx, uuid.NewString(), domain.RoleAdmin, ticket.ID, TicketEditInput{
		Title:  &title,
		Status: &closed,
	})
	require.NoError(t, err)
	assert.Equal(t, "rewritten", updated.Title)
	assert.Equal(t, domain.TicketStatusClosed, updated.Status)
	require.NotNil(t, updated.ClosedAt)

	// Edited entry plus the status move.
	require.Len(t, f.audit.entries, 2)
	assert.Equal(t, domain.AuditActionEdited, f.audit.entries[0].Action)
	assert.Equal(t, domain.AuditActionStatusChanged, f.audit.entries[1].Action)
}

func TestBoardGroupsByStatus(t *testing.T) {
	ctx := context.Background()
	a := sampleTicket("r1")
	b := sampleTicket("r2")
	b.Status = domain.TicketStatusInProgress
	tech := "tech-1"
	b.TechnicianID = &tech
	f := newServiceFixture(a, b)

	board, err := f.service.Board(ctx, uuid.NewString(), domain.RoleDispatcher)
	require.NoError(t, err)
	assert.Len(t, board[domain.TicketStatusNew], 1)
	assert.Len(t, board[domain.TicketStatusInProgress], 1)
	assert.Empty(t, board[domain.TicketStatusClosed])
}
