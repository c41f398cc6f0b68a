package domain

import (
	"context"
	"time"
)

// Account-scoped repositories take the caller Scope from ctx (see WithScope).
// Methods documented as unscoped are used before a session exists.

type AccountRepository interface {
	// Unscoped: sign-up, login and token checks.
	CreateAccountWithOwner(ctx context.Context, a Account, owner User, sub *Subscription) error
	GetAccount(ctx context.Context, id string) (Account, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	RevokeSession(ctx context.Context, id string, at time.Time) error

	// Scoped.
	CreateUser(ctx context.Context, u User) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

type PropertyRepository interface {
	CreateProperty(ctx context.Context, p Property) (Property, error)
	GetProperty(ctx context.Context, id string) (Property, error)
	ListProperties(ctx context.Context) ([]Property, error)
	UpdateProperty(ctx context.Context, p Property) (Property, error)
	DeleteProperty(ctx context.Context, id string) error
	CountProperties(ctx context.Context) (int, error)
}

type UnitRepository interface {
	CreateUnit(ctx context.Context, u Unit) (Unit, error)
	GetUnit(ctx context.Context, id string) (Unit, error)
	ListUnits(ctx context.Context, f UnitFilter) ([]Unit, error)
	UpdateUnit(ctx context.Context, u Unit) (Unit, error)
	DeleteUnit(ctx context.Context, id string) error
	CountUnits(ctx context.Context) (int, error)
}

type TenantRepository interface {
	// CreateTenant marks the unit occupied when the tenant is active and
	// fails with ErrConflict if the unit already has an active tenant.
	CreateTenant(ctx context.Context, t Tenant) (Tenant, error)
	GetTenant(ctx context.Context, id string) (Tenant, error)
	ListTenants(ctx context.Context, f TenantFilter) ([]Tenant, error)
	UpdateTenant(ctx context.Context, t Tenant) (Tenant, error)
	DeleteTenant(ctx context.Context, id string) error
	// EndLease sets the tenant ended and the unit vacant.
	EndLease(ctx context.Context, id string, end time.Time) (Tenant, error)
}

type BillingRepository interface {
	// CreateInvoice stores the invoice and its lines and links the given
	// utility readings to it. A second invoice for (tenant, period) is ErrConflict.
	CreateInvoice(ctx context.Context, inv Invoice, readingIDs []string) (Invoice, error)
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	ListInvoices(ctx context.Context, f InvoiceFilter) ([]Invoice, error)
	// VoidInvoice voids an invoice that has no payments and returns it. An
	// already void invoice is returned as is; one with payments is ErrConflict.
	VoidInvoice(ctx context.Context, id string) (Invoice, error)
	// RecordPayment stores p and settles the invoice in one transaction.
	RecordPayment(ctx context.Context, p Payment, asOf time.Time) (Payment, Invoice, error)
	ListPayments(ctx context.Context, f PaymentFilter) ([]Payment, error)
	// MarkOverdue flips unpaid and partially paid invoices due before asOf.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)

	CreateExpense(ctx context.Context, e Expense) (Expense, error)
	GetExpense(ctx context.Context, id string) (Expense, error)
	ListExpenses(ctx context.Context, f ExpenseFilter) ([]Expense, error)
	UpdateExpense(ctx context.Context, e Expense) (Expense, error)
	DeleteExpense(ctx context.Context, id string) error
}

type MaintenanceRepository interface {
	CreateTicket(ctx context.Context, t MaintenanceTicket) (MaintenanceTicket, error)
	GetTicket(ctx context.Context, id string) (MaintenanceTicket, error)
	ListTickets(ctx context.Context, f TicketFilter) ([]MaintenanceTicket, error)
	UpdateTicket(ctx context.Context, t MaintenanceTicket) (MaintenanceTicket, error)
	DeleteTicket(ctx context.Context, id string) error
}

type UtilityRepository interface {
	CreateReading(ctx context.Context, r UtilityReading) (UtilityReading, error)
	GetReading(ctx context.Context, id string) (UtilityReading, error)
	ListReadings(ctx context.Context, f UtilityFilter) ([]UtilityReading, error)
	UpdateReading(ctx context.Context, r UtilityReading) (UtilityReading, error)
	DeleteReading(ctx context.Context, id string) error
}

type SubscriptionRepository interface {
	GetSubscription(ctx context.Context) (Subscription, error)
	SaveSubscription(ctx context.Context, s Subscription) (Subscription, error)
}

type SMSRepository interface {
	CreateSMS(ctx context.Context, m SMSMessage) (SMSMessage, error)
	UpdateSMSStatus(ctx context.Context, id string, st SMSStatus, providerRef, errMsg string) error
	ListSMS(ctx context.Context, limit int) ([]SMSMessage, error)
	CountSMSSince(ctx context.Context, since time.Time) (int, error)
}

type ReportRepository interface {
	UnitStatusCounts(ctx context.Context) (map[UnitStatus]int, error)
	OutstandingBalance(ctx context.Context) (int64, error)
	CollectedBetween(ctx context.Context, from, to time.Time) (int64, error)
	ExpensesBetween(ctx context.Context, from, to time.Time) (int64, error)
	CountOpenTickets(ctx context.Context) (int, error)
}

// AdminRepository reads across accounts; callers must hold RoleAdmin.
type AdminRepository interface {
	PlatformOverview(ctx context.Context) (PlatformOverview, error)
	ListAccounts(ctx context.Context) ([]AccountSummary, error)
	SetAccountStatus(ctx context.Context, id string, st AccountStatus) error
}

// Store is everything the MySQL repository implements.
type Store interface {
	AccountRepository
	PropertyRepository
	UnitRepository
	TenantRepository
	BillingRepository
	MaintenanceRepository
	UtilityRepository
	SubscriptionRepository
	SMSRepository
	ReportRepository
	AdminRepository
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type ChangePublisher interface {
	Publish(ctx context.Context, ev ChangeEvent) error
}

// SMSSender delivers a text message and returns the provider's message id.
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Read models

type Dashboard struct {
	Properties       int     `json:"properties"`
	Units            int     `json:"units"`
	OccupiedUnits    int     `json:"occupied_units"`
	OccupancyRate    float64 `json:"occupancy_rate"`
	Outstanding      int64   `json:"outstanding"`
	CollectedInMonth int64   `json:"collected_in_month"`
	ExpensesInMonth  int64   `json:"expenses_in_month"`
	OpenTickets      int     `json:"open_tickets"`
	Period           string  `json:"period"`
}

type PlatformOverview struct {
	Accounts          int   `json:"accounts"`
	SuspendedAccounts int   `json:"suspended_accounts"`
	Users             int   `json:"users"`
	Properties        int   `json:"properties"`
	Units             int   `json:"units"`
	ActiveTenants     int   `json:"active_tenants"`
	InvoicedTotal     int64 `json:"invoiced_total"`
	CollectedTotal    int64 `json:"collected_total"`
}

type AccountSummary struct {
	Account
	PlanCode           string             `json:"plan_code,omitempty"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status,omitempty"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end,omitempty"`
	Properties         int                `json:"properties"`
	Units              int                `json:"units"`
}
