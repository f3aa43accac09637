package models

// Station is a pick/put slot reported by the robot manager.
type Station struct {
	SlotID string `json:"slot_id"`
	Name   string `json:"slot_name"`
	Status string `json:"slot_status"`
	Tags   string `json:"tags,omitempty"`
	TrayID string `json:"tray_id,omitempty"`
}

// CameraEvent asks the station camera to capture a snapshot of a tray.
type CameraEvent struct {
	TrayID string
	UserID string
}
