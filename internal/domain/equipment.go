package domain

import "time"

// EquipmentStatus tracks where a piece of equipment currently is.
type EquipmentStatus string

const (
	EquipmentStatusInUse    EquipmentStatus = "in_use"
	EquipmentStatusInRepair EquipmentStatus = "in_repair"
	EquipmentStatusStorage  EquipmentStatus = "storage"
)

// Equipment models a registered device tickets may reference.
type Equipment struct {
	ID          string
	Serial      string
	Model       string
	Location    string
	Status      EquipmentStatus
	PurchasedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidEquipmentStatus reports whether s is a known equipment status.
func ValidEquipmentStatus(s EquipmentStatus) bool {
	switch s {
	case EquipmentStatusInUse, EquipmentStatusInRepair, EquipmentStatusStorage:
		return true
	}
	return false
}
