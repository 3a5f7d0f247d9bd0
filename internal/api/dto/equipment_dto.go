package dto

import (
	"time"

	"github.com/mirmex/helpdesk/internal/domain"
)

// EquipmentRequest create/update payload.
type EquipmentRequest struct {
	Serial      string                 `json:"serial"`
	Model       string                 `json:"model"`
	Location    string                 `json:"location"`
	Status      domain.EquipmentStatus `json:"status"`
	PurchasedAt *time.Time             `json:"purchased_at"`
}

// EquipmentResponse response.
type EquipmentResponse struct {
	ID          string                 `json:"id"`
	Serial      string                 `json:"serial"`
	Model       string                 `json:"model"`
	Location    string                 `json:"location"`
	Status      domain.EquipmentStatus `json:"status"`
	PurchasedAt *time.Time             `json:"purchased_at"`
	CreatedAt   time.Time              `json:"created_at"`
}
