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
	apperrors "github.com/mirmex/helpdesk/pkg/util"
)

// EquipmentService manages the equipment registry. Anyone authenticated may
// browse it (tickets reference equipment); mutations are gated by policy.
type EquipmentService struct {
	equipment repository.EquipmentRepository
}

// EquipmentInput describes create/update payload.
type EquipmentInput struct {
	Serial      string
	Model       string
	Location    string
	Status      domain.EquipmentStatus
	PurchasedAt *time.Time
}

// NewEquipmentService constructs the service.
func NewEquipmentService(equipment repository.EquipmentRepository) *EquipmentService {
	return &EquipmentService{equipment: equipment}
}

// List returns registered equipment.
func (s *EquipmentService) List(ctx context.Context, limit, offset int) ([]domain.Equipment, error) {
	items, err := s.equipment.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// Get returns one piece of equipment.
func (s *EquipmentService) Get(ctx context.Context, id string) (*domain.Equipment, error) {
	eq, err := s.equipment.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("equipment", map[string]any{"equipment_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return eq, nil
}

// Create registers new equipment.
func (s *EquipmentService) Create(ctx context.Context, role domain.Role, input EquipmentInput) (*domain.Equipment, error) {
	if err := policy.Authorize(role, policy.Ownership{}, policy.ActionManageEquipment); err != nil {
		return nil, err
	}
	eq, err := s.validated(input)
	if err != nil {
		return nil, err
	}
	if existing, err := s.equipment.GetBySerial(ctx, eq.Serial); err == nil && existing != nil {
		return nil, apperrors.NewConflict("serial already registered", map[string]any{"serial": eq.Serial})
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	if err := s.equipment.Create(ctx, eq); err != nil {
		return nil, apperrors.MapError(err)
	}
	return eq, nil
}

// Update overwrites an existing equipment record.
func (s *EquipmentService) Update(ctx context.Context, role domain.Role, id string, input EquipmentInput) (*domain.Equipment, error) {
	if err := policy.Authorize(role, policy.Ownership{}, policy.ActionManageEquipment); err != nil {
		return nil, err
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.validated(input)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	if err := s.equipment.Update(ctx, updated); err != nil {
		return nil, apperrors.MapError(err)
	}
	return updated, nil
}

func (s *EquipmentService) validated(input EquipmentInput) (*domain.Equipment, error) {
	serial := strings.TrimSpace(input.Serial)
	model := strings.TrimSpace(input.Model)
	if serial == "" || model == "" {
		return nil, apperrors.NewValidationError("serial and model required", nil)
	}
	status := input.Status
	if status == "" {
		status = domain.EquipmentStatusInUse
	}
	if !domain.ValidEquipmentStatus(status) {
		return nil, apperrors.NewValidationError("unknown equipment status", map[string]any{"status": status})
	}
	return &domain.Equipment{
		Serial:      serial,
		Model:       model,
		Location:    strings.TrimSpace(input.Location),
		Status:      status,
		PurchasedAt: input.PurchasedAt,
	}, nil
}
