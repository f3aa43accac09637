package models

import (
	"fmt"
	"time"
)

// ReconcileStatus classifies the divergence between internal and external
// quantities. The string values are the ledger's wire names.
type ReconcileStatus string

const (
	// ReconcileInternalSurplus: trays hold more than the external ledger records.
	ReconcileInternalSurplus ReconcileStatus = "robot_shortage"
	// ReconcileExternalSurplus: the external ledger records more than the trays hold.
	ReconcileExternalSurplus ReconcileStatus = "sap_shortage"
	ReconcileMatched         ReconcileStatus = "matched"
)

// ReconcileStatuses lists every status in display order.
var ReconcileStatuses = []ReconcileStatus{
	ReconcileExternalSurplus,
	ReconcileInternalSurplus,
	ReconcileMatched,
}

// ParseReconcileStatus validates a status name.
func ParseReconcileStatus(value string) (ReconcileStatus, error) {
	for _, status := range ReconcileStatuses {
		if string(status) == value {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: unknown reconcile status %q", ErrValidation, value)
}

// ClassifyDifference maps internal - external onto a status.
func ClassifyDifference(difference int) ReconcileStatus {
	switch {
	case difference > 0:
		return ReconcileInternalSurplus
	case difference < 0:
		return ReconcileExternalSurplus
	default:
		return ReconcileMatched
	}
}

// ReconciliationRecord is derived on demand and never persisted here.
type ReconciliationRecord struct {
	MaterialID       string          `json:"material"`
	ExternalQuantity int             `json:"sap_quantity"`
	InternalQuantity int             `json:"item_quantity"`
	Difference       int             `json:"quantity_difference"`
	Status           ReconcileStatus `json:"reconcile_status"`
}

// NewReconciliationRecord derives the difference and status.
func NewReconciliationRecord(materialID string, external, internal int) ReconciliationRecord {
	difference := internal - external
	return ReconciliationRecord{
		MaterialID:       materialID,
		ExternalQuantity: external,
		InternalQuantity: internal,
		Difference:       difference,
		Status:           ClassifyDifference(difference),
	}
}

// Page is an offset/limit window.
type Page struct {
	Offset int
	Limit  int
}

// ReconcileSummary counts records per status at one instant. It is the only
// reconciliation artefact stored anywhere by this service.
type ReconcileSummary struct {
	Date             time.Time `bson:"date" json:"date"`
	Matched          int       `bson:"matched" json:"matched"`
	InternalSurplus  int       `bson:"robot_shortage" json:"robot_shortage"`
	ExternalSurplus  int       `bson:"sap_shortage" json:"sap_shortage"`
	NetDifference    int       `bson:"net_difference" json:"net_difference"`
	LargestShortfall string    `bson:"largest_shortfall,omitempty" json:"largest_shortfall,omitempty"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
}

// Add folds one record into the summary.
func (s *ReconcileSummary) Add(record ReconciliationRecord) {
	switch record.Status {
	case ReconcileMatched:
		s.Matched++
	case ReconcileInternalSurplus:
		s.InternalSurplus++
	case ReconcileExternalSurplus:
		s.ExternalSurplus++
	}
	s.NetDifference += record.Difference
}
