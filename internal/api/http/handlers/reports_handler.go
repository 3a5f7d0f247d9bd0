package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mirmex/helpdesk/internal/auth"
	"github.com/mirmex/helpdesk/internal/service"
	apperrors "github.com/mirmex/helpdesk/pkg/util"
)

// ReportsHandler serves aggregate reporting endpoints.
type ReportsHandler struct {
	service *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService) *ReportsHandler {
	return &ReportsHandler{service: reportService}
}

// Summary GET /reports/summary.
func (h *ReportsHandler) Summary(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	summary, err := h.service.Summary(c.Context(), principal.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}
