package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/mirmex/helpdesk/internal/api/dto"
	"github.com/mirmex/helpdesk/internal/auth"
	"github.com/mirmex/helpdesk/internal/domain"
	"github.com/mirmex/helpdesk/internal/service"
	apperrors "github.com/mirmex/helpdesk/pkg/util"
)

// EquipmentHandler manages the equipment registry endpoints.
type EquipmentHandler struct {
	service *service.EquipmentService
}

// NewEquipmentHandler constructs handler.
func NewEquipmentHandler(equipmentService *service.EquipmentService) *EquipmentHandler {
	return &EquipmentHandler{service: equipmentService}
}

// List GET /equipment.
func (h *EquipmentHandler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	items, err := h.service.List(c.Context(), limit, offset)
	if err != nil {
		return err
	}
	response := make([]dto.EquipmentResponse, 0, len(items))
	for i := range items {
		response = append(response, equipmentResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": response})
}

// Get GET /equipment/:id.
func (h *EquipmentHandler) Get(c *fiber.Ctx) error {
	item, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": equipmentResponse(item)})
}

// Create POST /equipment.
func (h *EquipmentHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.EquipmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	item, err := h.service.Create(c.Context(), principal.Role, equipmentInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": equipmentResponse(item)})
}

// Update PUT /equipment/:id.
func (h *EquipmentHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.EquipmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	item, err := h.service.Update(c.Context(), principal.Role, c.Params("id"), equipmentInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": equipmentResponse(item)})
}

func equipmentInput(req dto.EquipmentRequest) service.EquipmentInput {
	return service.EquipmentInput{
		Serial:      req.Serial,
		Model:       req.Model,
		Location:    req.Location,
		Status:      req.Status,
		PurchasedAt: req.PurchasedAt,
	}
}

func equipmentResponse(e *domain.Equipment) dto.EquipmentResponse {
	return dto.EquipmentResponse{
		ID:          e.ID,
		Serial:      e.Serial,
		Model:       e.Model,
		Location:    e.Location,
		Status:      e.Status,
		PurchasedAt: e.PurchasedAt,
		CreatedAt:   e.CreatedAt,
	}
}
