package domain

import (
	"strings"
	"time"
)

type PropertyKind string

const (
	PropertyResidential PropertyKind = "residential"
	PropertyCommercial  PropertyKind = "commercial"
	PropertyMixed       PropertyKind = "mixed"
)

type Property struct {
	ID        string       `json:"id"`
	AccountID string       `json:"account_id"`
	Name      string       `json:"name"`
	Address   string       `json:"address,omitempty"`
	City      string       `json:"city,omitempty"`
	Kind      PropertyKind `json:"kind"`
	Notes     string       `json:"notes,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (p Property) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name", "is required")
	}
	switch p.Kind {
	case PropertyResidential, PropertyCommercial, PropertyMixed:
	default:
		return invalid("kind", "must be residential, commercial or mixed")
	}
	return nil
}

type UnitStatus string

const (
	UnitVacant      UnitStatus = "vacant"
	UnitOccupied    UnitStatus = "occupied"
	UnitMaintenance UnitStatus = "maintenance"
)

type Unit struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"account_id"`
	PropertyID string     `json:"property_id"`
	Label      string     `json:"label"`
	Bedrooms   int        `json:"bedrooms"`
	RentAmount int64      `json:"rent_amount"`
	Status     UnitStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (u Unit) Validate() error {
	if u.PropertyID == "" {
		return invalid("property_id", "is required")
	}
	if strings.TrimSpace(u.Label) == "" {
		return invalid("label", "is required")
	}
	if u.Bedrooms < 0 {
		return invalid("bedrooms", "must not be negative")
	}
	if u.RentAmount < 0 {
		return invalid("rent_amount", "must not be negative")
	}
	switch u.Status {
	case UnitVacant, UnitOccupied, UnitMaintenance:
	default:
		return invalid("status", "must be vacant, occupied or maintenance")
	}
	return nil
}

type UnitFilter struct {
	PropertyID string
	Status     UnitStatus
}

// Empty reports whether the filter selects every unit of the account.
func (f UnitFilter) Empty() bool { return f.PropertyID == "" && f.Status == "" }
