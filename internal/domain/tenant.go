package domain

import (
	"strings"
	"time"
)

type TenantStatus string

const (
	TenantActive TenantStatus = "active"
	TenantEnded  TenantStatus = "ended"
)

// Tenant is a person renting a unit under a lease.
type Tenant struct {
	ID         string       `json:"id"`
	AccountID  string       `json:"account_id"`
	UnitID     string       `json:"unit_id"`
	FullName   string       `json:"full_name"`
	Email      string       `json:"email,omitempty"`
	Phone      string       `json:"phone,omitempty"`
	NationalID string       `json:"national_id,omitempty"`
	LeaseStart time.Time    `json:"lease_start"`
	LeaseEnd   *time.Time   `json:"lease_end,omitempty"`
	RentAmount int64        `json:"rent_amount"`
	Deposit    int64        `json:"deposit"`
	Status     TenantStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (t Tenant) Validate() error {
	if t.UnitID == "" {
		return invalid("unit_id", "is required")
	}
	if strings.TrimSpace(t.FullName) == "" {
		return invalid("full_name", "is required")
	}
	if t.Email != "" && !validEmail(t.Email) {
		return invalid("email", "must be a valid email address")
	}
	if t.Phone != "" && !validPhone(t.Phone) {
		return invalid("phone", "must be an international phone number")
	}
	if t.LeaseStart.IsZero() {
		return invalid("lease_start", "is required")
	}
	if t.LeaseEnd != nil && !t.LeaseEnd.After(t.LeaseStart) {
		return invalid("lease_end", "must be after lease_start")
	}
	if t.RentAmount < 0 {
		return invalid("rent_amount", "must not be negative")
	}
	if t.Deposit < 0 {
		return invalid("deposit", "must not be negative")
	}
	switch t.Status {
	case TenantActive, TenantEnded:
	default:
		return invalid("status", "must be active or ended")
	}
	return nil
}

type TenantFilter struct {
	UnitID     string
	PropertyID string
	Status     TenantStatus
}

func (f TenantFilter) Empty() bool { return f.UnitID == "" && f.PropertyID == "" && f.Status == "" }
