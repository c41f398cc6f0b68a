package domain

import (
	"strings"
	"time"
)

type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketClosed     TicketStatus = "closed"
	TicketCancelled  TicketStatus = "cancelled"
)

var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketOpen:       {TicketInProgress, TicketCancelled},
	TicketInProgress: {TicketResolved, TicketOpen, TicketCancelled},
	TicketResolved:   {TicketClosed, TicketInProgress},
}

// CanTransition reports whether a ticket may move from one status to another.
func CanTransition(from, to TicketStatus) bool {
	for _, s := range ticketTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type MaintenanceTicket struct {
	ID          string         `json:"id"`
	AccountID   string         `json:"account_id"`
	PropertyID  string         `json:"property_id"`
	UnitID      *string        `json:"unit_id,omitempty"`
	TenantID    *string        `json:"tenant_id,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Priority    TicketPriority `json:"priority"`
	Status      TicketStatus   `json:"status"`
	Cost        int64          `json:"cost"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Transition moves the ticket to status to, stamping ResolvedAt on resolution.
func (t *MaintenanceTicket) Transition(to TicketStatus, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return ErrInvalidTransition
	}
	t.Status = to
	switch to {
	case TicketResolved:
		t.ResolvedAt = &now
	case TicketOpen, TicketInProgress:
		t.ResolvedAt = nil
	}
	return nil
}

func (t MaintenanceTicket) Validate() error {
	if t.PropertyID == "" {
		return invalid("property_id", "is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return invalid("title", "is required")
	}
	switch t.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
	default:
		return invalid("priority", "must be low, medium, high or urgent")
	}
	if t.Cost < 0 {
		return invalid("cost", "must not be negative")
	}
	return nil
}

type TicketFilter struct {
	PropertyID string
	Status     TicketStatus
}

func (f TicketFilter) Empty() bool { return f.PropertyID == "" && f.Status == "" }
