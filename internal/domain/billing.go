package domain

import (
	"regexp"
	"strings"
	"time"
)

type InvoiceStatus string

const (
	InvoiceUnpaid        InvoiceStatus = "unpaid"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceOverdue       InvoiceStatus = "overdue"
	InvoiceVoid          InvoiceStatus = "void"
)

var periodRe = regexp.MustCompile(`^[0-9]{4}-(0[1-9]|1[0-2])$`)

// ValidPeriod reports whether p is a billing period of the form YYYY-MM.
func ValidPeriod(p string) bool { return periodRe.MatchString(p) }

// PeriodOf formats t as a billing period.
func PeriodOf(t time.Time) string { return t.Format("2006-01") }

// PeriodStart returns the first day of period p in UTC.
func PeriodStart(p string) (time.Time, error) {
	if !ValidPeriod(p) {
		return time.Time{}, invalid("period", "must be YYYY-MM")
	}
	return time.Parse("2006-01", p)
}

type InvoiceLine struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

type Invoice struct {
	ID         string        `json:"id"`
	AccountID  string        `json:"account_id"`
	TenantID   string        `json:"tenant_id"`
	UnitID     string        `json:"unit_id"`
	Period     string        `json:"period"`
	IssueDate  time.Time     `json:"issue_date"`
	DueDate    time.Time     `json:"due_date"`
	Lines      []InvoiceLine `json:"lines"`
	Total      int64         `json:"total"`
	AmountPaid int64         `json:"amount_paid"`
	Status     InvoiceStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Balance is what is still owed on the invoice.
func (i Invoice) Balance() int64 { return i.Total - i.AmountPaid }

// SumLines recomputes Total from Lines.
func (i *Invoice) SumLines() {
	var t int64
	for _, l := range i.Lines {
		t += l.Amount
	}
	i.Total = t
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PastDue reports whether asOf falls on a later calendar day than due. An
// invoice is not overdue during its due date.
func PastDue(due, asOf time.Time) bool { return Day(asOf).After(Day(due)) }

// SettleStatus derives the payment status from AmountPaid and the due date.
// Void invoices stay void.
func (i Invoice) SettleStatus(asOf time.Time) InvoiceStatus {
	switch {
	case i.Status == InvoiceVoid:
		return InvoiceVoid
	case i.AmountPaid >= i.Total:
		return InvoicePaid
	case PastDue(i.DueDate, asOf):
		return InvoiceOverdue
	case i.AmountPaid > 0:
		return InvoicePartiallyPaid
	default:
		return InvoiceUnpaid
	}
}

func (i Invoice) Validate() error {
	if i.TenantID == "" {
		return invalid("tenant_id", "is required")
	}
	if !ValidPeriod(i.Period) {
		return invalid("period", "must be YYYY-MM")
	}
	if i.IssueDate.IsZero() || i.DueDate.IsZero() {
		return invalid("due_date", "issue and due dates are required")
	}
	if i.DueDate.Before(i.IssueDate) {
		return invalid("due_date", "must not be before issue_date")
	}
	if len(i.Lines) == 0 {
		return invalid("lines", "at least one line is required")
	}
	for _, l := range i.Lines {
		if strings.TrimSpace(l.Description) == "" {
			return invalid("lines", "description is required")
		}
		if l.Amount < 0 {
			return invalid("lines", "amount must not be negative")
		}
	}
	return nil
}

type InvoiceFilter struct {
	TenantID string
	Period   string
	Status   InvoiceStatus
}

func (f InvoiceFilter) Empty() bool { return f.TenantID == "" && f.Period == "" && f.Status == "" }

type PaymentMethod string

const (
	PayCash   PaymentMethod = "cash"
	PayBank   PaymentMethod = "bank"
	PayMobile PaymentMethod = "mobile"
	PayCard   PaymentMethod = "card"
)

type Payment struct {
	ID        string        `json:"id"`
	AccountID string        `json:"account_id"`
	InvoiceID string        `json:"invoice_id"`
	TenantID  string        `json:"tenant_id"`
	Amount    int64         `json:"amount"`
	Method    PaymentMethod `json:"method"`
	Reference string        `json:"reference,omitempty"`
	PaidAt    time.Time     `json:"paid_at"`
	CreatedAt time.Time     `json:"created_at"`
}

func (p Payment) Validate() error {
	if p.InvoiceID == "" {
		return invalid("invoice_id", "is required")
	}
	if p.Amount <= 0 {
		return invalid("amount", "must be positive")
	}
	switch p.Method {
	case PayCash, PayBank, PayMobile, PayCard:
	default:
		return invalid("method", "must be cash, bank, mobile or card")
	}
	return nil
}

type PaymentFilter struct {
	InvoiceID string
	TenantID  string
}

type Expense struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	PropertyID  string    `json:"property_id"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Amount      int64     `json:"amount"`
	IncurredOn  time.Time `json:"incurred_on"`
	CreatedAt   time.Time `json:"created_at"`
}

func (e Expense) Validate() error {
	if e.PropertyID == "" {
		return invalid("property_id", "is required")
	}
	if strings.TrimSpace(e.Category) == "" {
		return invalid("category", "is required")
	}
	if e.Amount < 0 {
		return invalid("amount", "must not be negative")
	}
	if e.IncurredOn.IsZero() {
		return invalid("incurred_on", "is required")
	}
	return nil
}

type ExpenseFilter struct {
	PropertyID string
	From, To   *time.Time
}

func (f ExpenseFilter) Empty() bool { return f.PropertyID == "" && f.From == nil && f.To == nil }
