package domain

import (
	"strings"
	"time"
)

type SMSStatus string

const (
	SMSQueued SMSStatus = "queued"
	SMSSent   SMSStatus = "sent"
	SMSFailed SMSStatus = "failed"
)

const maxSMSBody = 918 // six concatenated GSM segments

type SMSMessage struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	TenantID    *string   `json:"tenant_id,omitempty"`
	To          string    `json:"to"`
	Body        string    `json:"body"`
	Status      SMSStatus `json:"status"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (m SMSMessage) Validate() error {
	if !validPhone(m.To) {
		return invalid("to", "must be an international phone number")
	}
	if strings.TrimSpace(m.Body) == "" {
		return invalid("body", "is required")
	}
	if len(m.Body) > maxSMSBody {
		return invalid("body", "is too long")
	}
	return nil
}

type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent is published after every committed mutation.
type ChangeEvent struct {
	AccountID string    `json:"account_id"`
	Entity    string    `json:"entity"`
	ID        string    `json:"id"`
	Op        ChangeOp  `json:"op"`
	At        time.Time `json:"at"`
}

// Entity names used in cache keys and change events.
const (
	EntityProperty     = "property"
	EntityUnit         = "unit"
	EntityTenant       = "tenant"
	EntityInvoice      = "invoice"
	EntityPayment      = "payment"
	EntityExpense      = "expense"
	EntityMaintenance  = "maintenance"
	EntityUtility      = "utility"
	EntitySubscription = "subscription"
	EntitySMS          = "sms"
	EntityAccount      = "account"
	EntityUser         = "user"
)
