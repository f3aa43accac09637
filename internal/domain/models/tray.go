package models

import (
	"fmt"
	"strings"
)

// Location tells where a tray physically sits.
type Location int

const (
	// LocationAny applies no location filter.
	LocationAny Location = iota
	LocationStorage
	LocationStation
)

func (l Location) String() string {
	switch l {
	case LocationStorage:
		return "storage"
	case LocationStation:
		return "station"
	default:
		return "any"
	}
}

// MarshalText renders the location by name.
func (l Location) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a location name.
func (l *Location) UnmarshalText(text []byte) error {
	parsed, err := ParseLocation(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLocation accepts "storage", "station" or an empty value.
func ParseLocation(value string) (Location, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "any":
		return LocationAny, nil
	case "storage":
		return LocationStorage, nil
	case "station":
		return LocationStation, nil
	default:
		return LocationAny, fmt.Errorf("%w: unknown location %q", ErrValidation, value)
	}
}

// InStation converts the location into the ledger's in_station flag. The
// second return value is false when no filter applies.
func (l Location) InStation() (bool, bool) {
	switch l {
	case LocationStation:
		return true, true
	case LocationStorage:
		return false, true
	default:
		return false, false
	}
}

// TrayStatus mirrors the ledger's tray_status field.
type TrayStatus string

const (
	TrayStatusUnknown    TrayStatus = ""
	TrayStatusReadyToUse TrayStatus = "tray_ready_to_use"
	TrayStatusInStorage  TrayStatus = "tray_in_storage"
	TrayStatusRequested  TrayStatus = "tray_requested"
	TrayStatusTransiting TrayStatus = "tray_transiting"
)

// TrayItem is one material line held by a tray.
type TrayItem struct {
	MaterialID  string `json:"material_id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	InboundDate string `json:"inbound_date,omitempty"`
}

// Tray is the local projection of a physical storage unit.
type Tray struct {
	ID        string     `json:"tray_id"`
	Divider   int        `json:"divider"`
	Height    int        `json:"height"`
	Weight    float64    `json:"weight"`
	Location  Location   `json:"location"`
	LockCount int        `json:"lock_count"`
	Status    TrayStatus `json:"status,omitempty"`
	Contents  []TrayItem `json:"contents"`
}

// Available reports whether a new lock may be taken on the tray.
func (t Tray) Available() bool {
	return t.LockCount > 0
}

// Quantity sums every content line for the material.
func (t Tray) Quantity(materialID string) int {
	total := 0
	for _, item := range t.Contents {
		if item.MaterialID == materialID {
			total += item.Quantity
		}
	}
	return total
}

// Merge appends the content lines of another fragment of the same tray, as
// returned when its rows straddle a page boundary.
func (t *Tray) Merge(fragment Tray) {
	t.Contents = append(t.Contents, fragment.Contents...)
}

// HasMaterial reports whether any content line references the material.
func (t Tray) HasMaterial(materialID string) bool {
	for _, item := range t.Contents {
		if item.MaterialID == materialID {
			return true
		}
	}
	return false
}

// TrayPage is one page of a tray query. Total is meaningful only when
// TotalKnown is set; collaborators that do not report a count leave it at 0.
//
// The ledger pages item rows, not trays, and one tray spans one row per
// content line. Rows is the number of rows the page was built from.
type TrayPage struct {
	Trays      []Tray `json:"trays"`
	Total      int    `json:"total"`
	TotalKnown bool   `json:"total_known"`
	Rows       int    `json:"-"`
}

// Last reports whether no further page exists for a request of limit rows.
func (p TrayPage) Last(limit int) bool {
	return limit <= 0 || p.Rows < limit
}

// SumQuantity totals the material across every tray on the page.
func (p TrayPage) SumQuantity(materialID string) int {
	total := 0
	for _, tray := range p.Trays {
		total += tray.Quantity(materialID)
	}
	return total
}
