package models

import (
	"fmt"
	"strconv"
)

// QueryKind tags the QueryKey variants.
type QueryKind string

const (
	QueryKindTray       QueryKind = "tray"
	QueryKindMaterial   QueryKind = "material"
	QueryKindUnfiltered QueryKind = "unfiltered"
)

// TrayFilter is the wire-level filter sent to the ledger.
type TrayFilter struct {
	TrayID       string
	MaterialID   string
	Location     Location
	Divider      *int
	HasInventory *bool
	Offset       int
	Limit        int
}

// QueryKey identifies one tray projection. It is a closed set of variants:
// TrayKey, MaterialKey and UnfilteredKey.
type QueryKey interface {
	Kind() QueryKind
	// String is the stable cache key.
	String() string
	Filter(pageSize int) TrayFilter
	Validate() error
	isQueryKey()
}

// TrayKey selects trays by tray id at a location.
type TrayKey struct {
	TrayID   string
	Location Location
}

func (k TrayKey) Kind() QueryKind { return QueryKindTray }
func (k TrayKey) String() string  { return fmt.Sprintf("tray:%s@%s", k.TrayID, k.Location) }
func (TrayKey) isQueryKey()       {}

func (k TrayKey) Filter(pageSize int) TrayFilter {
	return TrayFilter{TrayID: k.TrayID, Location: k.Location, Limit: pageSize}
}

func (k TrayKey) Validate() error {
	if k.TrayID == "" {
		return fmt.Errorf("%w: tray_id", ErrInvalidID)
	}
	return nil
}

// MaterialKey selects trays holding a material at a location.
type MaterialKey struct {
	MaterialID string
	Location   Location
}

func (k MaterialKey) Kind() QueryKind { return QueryKindMaterial }
func (k MaterialKey) String() string  { return fmt.Sprintf("material:%s@%s", k.MaterialID, k.Location) }
func (MaterialKey) isQueryKey()       {}

func (k MaterialKey) Filter(pageSize int) TrayFilter {
	return TrayFilter{MaterialID: k.MaterialID, Location: k.Location, Limit: pageSize}
}

func (k MaterialKey) Validate() error {
	if k.MaterialID == "" {
		return fmt.Errorf("%w: material_id", ErrInvalidID)
	}
	return nil
}

// UnfilteredFilters are the optional filters of the unfiltered listing.
type UnfilteredFilters struct {
	Divider      *int
	HasInventory *bool
}

// UnfilteredKey selects one page of the full tray listing.
type UnfilteredKey struct {
	Filters UnfilteredFilters
	Offset  int
}

func (k UnfilteredKey) Kind() QueryKind { return QueryKindUnfiltered }
func (UnfilteredKey) isQueryKey()       {}

func (k UnfilteredKey) String() string {
	divider := "*"
	if k.Filters.Divider != nil {
		divider = strconv.Itoa(*k.Filters.Divider)
	}
	inventory := "*"
	if k.Filters.HasInventory != nil {
		inventory = strconv.FormatBool(*k.Filters.HasInventory)
	}
	return fmt.Sprintf("unfiltered:divider=%s,inventory=%s,offset=%d", divider, inventory, k.Offset)
}

func (k UnfilteredKey) Filter(pageSize int) TrayFilter {
	return TrayFilter{
		Divider:      k.Filters.Divider,
		HasInventory: k.Filters.HasInventory,
		Offset:       k.Offset,
		Limit:        pageSize,
	}
}

func (k UnfilteredKey) Validate() error {
	if k.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", ErrValidation)
	}
	if k.Filters.Divider != nil && *k.Filters.Divider < 0 {
		return fmt.Errorf("%w: divider must not be negative", ErrValidation)
	}
	return nil
}

// QuerySpec is the loose form of a QueryKey as callers submit it.
type QuerySpec struct {
	Kind         QueryKind `json:"kind"`
	ID           string    `json:"id,omitempty"`
	Location     Location  `json:"location"`
	Divider      *int      `json:"divider,omitempty"`
	HasInventory *bool     `json:"has_inventory,omitempty"`
	Offset       int       `json:"offset,omitempty"`
}

// Key converts the request into a validated QueryKey.
func (s QuerySpec) Key() (QueryKey, error) {
	var key QueryKey
	switch s.Kind {
	case QueryKindTray:
		key = TrayKey{TrayID: s.ID, Location: s.Location}
	case QueryKindMaterial:
		key = MaterialKey{MaterialID: s.ID, Location: s.Location}
	case QueryKindUnfiltered, "":
		key = UnfilteredKey{
			Filters: UnfilteredFilters{Divider: s.Divider, HasInventory: s.HasInventory},
			Offset:  s.Offset,
		}
	default:
		return nil, fmt.Errorf("%w: unknown query kind %q", ErrValidation, s.Kind)
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}
