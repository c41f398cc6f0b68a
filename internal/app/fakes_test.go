package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/app"
	"rentdesk/internal/domain"
)

// ---- in-memory store ----

// memStore keeps rows per account and honours the same scoping rules as the
// MySQL repository: rows of other accounts look missing.
type memStore struct {
	mu sync.Mutex

	accounts map[string]domain.Account
	users    map[string]domain.User
	sessions map[string]domain.Session
	subs     map[string]domain.Subscription

	properties map[string]domain.Property
	units      map[string]domain.Unit
	tenants    map[string]domain.Tenant
	invoices   map[string]domain.Invoice
	payments   map[string]domain.Payment
	expenses   map[string]domain.Expense
	tickets    map[string]domain.MaintenanceTicket
	readings   map[string]domain.UtilityReading
	sms        map[string]domain.SMSMessage

	calls map[string]int
}

var _ domain.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		accounts:   map[string]domain.Account{},
		users:      map[string]domain.User{},
		sessions:   map[string]domain.Session{},
		subs:       map[string]domain.Subscription{},
		properties: map[string]domain.Property{},
		units:      map[string]domain.Unit{},
		tenants:    map[string]domain.Tenant{},
		invoices:   map[string]domain.Invoice{},
		payments:   map[string]domain.Payment{},
		expenses:   map[string]domain.Expense{},
		tickets:    map[string]domain.MaintenanceTicket{},
		readings:   map[string]domain.UtilityReading{},
		sms:        map[string]domain.SMSMessage{},
		calls:      map[string]int{},
	}
}

func (m *memStore) hit(name string) { m.calls[name]++ }

func accOf(ctx context.Context) (string, error) {
	s, err := domain.ScopeFrom(ctx)
	return s.AccountID, err
}

// accounts

func (m *memStore) CreateAccountWithOwner(ctx context.Context, a domain.Account, owner domain.User, sub *domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == owner.Email {
			return fmt.Errorf("%w: duplicate email", domain.ErrConflict)
		}
	}
	m.accounts[a.ID] = a
	owner.AccountID = a.ID
	m.users[owner.ID] = owner
	if sub != nil {
		sub.AccountID = a.ID
		m.subs[a.ID] = *sub
	}
	return nil
}

func (m *memStore) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hit("GetAccount")
	a, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a, nil
}

func (m *memStore) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memStore) CreateSession(ctx context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memStore) GetSession(ctx context.Context, id string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *memStore) RevokeSession(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.RevokedAt != nil {
		return domain.ErrNotFound
	}
	s.RevokedAt = &at
	m.sessions[id] = s
	return nil
}

func (m *memStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == u.Email {
			return domain.User{}, domain.ErrConflict
		}
	}
	u.AccountID = acc
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.users {
		if u.AccountID == acc {
			out = append(out, u)
		}
	}
	return out, nil
}

// properties & units

func (m *memStore) CreateProperty(ctx context.Context, p domain.Property) (domain.Property, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.Property{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID, p.AccountID = uuid.NewString(), acc
	m.properties[p.ID] = p
	return p, nil
}

func (m *memStore) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.Property{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hit("GetProperty")
	p, ok := m.properties[id]
	if !ok || p.AccountID != acc {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListProperties(ctx context.Context) ([]domain.Property, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hit("ListProperties")
	var out []domain.Property
	for _, p := range m.properties {
		if p.AccountID == acc {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) UpdateProperty(ctx context.Context, p domain.Property) (domain.Property, error) {
	if _, err := m.GetProperty(ctx, p.ID); err != nil {
		return domain.Property{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.AccountID = m.properties[p.ID].AccountID
	m.properties[p.ID] = p
	return p, nil
}

func (m *memStore) DeleteProperty(ctx context.Context, id string) error {
	if _, err := m.GetProperty(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.units {
		if u.PropertyID != id {
			continue
		}
		for _, t := range m.tenants {
			if t.UnitID == u.ID {
				return domain.ErrConflict
			}
		}
	}
	for uid, u := range m.units {
		if u.PropertyID == id {
			delete(m.units, uid)
			for rid, r := range m.readings {
				if r.UnitID == uid {
					delete(m.readings, rid)
				}
			}
		}
	}
	for eid, e := range m.expenses {
		if e.PropertyID == id {
			delete(m.expenses, eid)
		}
	}
	for tid, t := range m.tickets {
		if t.PropertyID == id {
			delete(m.tickets, tid)
		}
	}
	delete(m.properties, id)
	return nil
}

func (m *memStore) CountProperties(ctx context.Context) (int, error) {
	ps, err := m.ListProperties(ctx)
	return len(ps), err
}

func (m *memStore) CreateUnit(ctx context.Context, u domain.Unit) (domain.Unit, error) {
	if _, err := m.GetProperty(ctx, u.PropertyID); err != nil {
		return domain.Unit{}, err
	}
	acc, _ := accOf(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID, u.AccountID = uuid.NewString(), acc
	m.units[u.ID] = u
	return u, nil
}

func (m *memStore) GetUnit(ctx context.Context, id string) (domain.Unit, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.Unit{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.units[id]
	if !ok || u.AccountID != acc {
		return domain.Unit{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memStore) ListUnits(ctx context.Context, f domain.UnitFilter) ([]domain.Unit, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hit("ListUnits")
	var out []domain.Unit
	for _, u := range m.units {
		if u.AccountID != acc || (f.PropertyID != "" && u.PropertyID != f.PropertyID) || (f.Status != "" && u.Status != f.Status) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *memStore) UpdateUnit(ctx context.Context, u domain.Unit) (domain.Unit, error) {
	if _, err := m.GetUnit(ctx, u.ID); err != nil {
		return domain.Unit{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u.AccountID = m.units[u.ID].AccountID
	m.units[u.ID] = u
	return u, nil
}

func (m *memStore) DeleteUnit(ctx context.Context, id string) error {
	if _, err := m.GetUnit(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.units, id)
	return nil
}

func (m *memStore) CountUnits(ctx context.Context) (int, error) {
	us, err := m.ListUnits(ctx, domain.UnitFilter{})
	return len(us), err
}

func (m *memStore) setUnitStatus(id string, st domain.UnitStatus) {
	u := m.units[id]
	u.Status = st
	m.units[id] = u
}

// tenants

func (m *memStore) CreateTenant(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	if _, err := m.GetUnit(ctx, t.UnitID); err != nil {
		return domain.Tenant{}, err
	}
	acc, _ := accOf(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Status == domain.TenantActive {
		for _, x := range m.tenants {
			if x.UnitID == t.UnitID && x.Status == domain.TenantActive {
				return domain.Tenant{}, domain.ErrConflict
			}
		}
		m.setUnitStatus(t.UnitID, domain.UnitOccupied)
	}
	t.ID, t.AccountID = uuid.NewString(), acc
	m.tenants[t.ID] = t
	return t, nil
}

func (m *memStore) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok || t.AccountID != acc {
		return domain.Tenant{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memStore) ListTenants(ctx context.Context, f domain.TenantFilter) ([]domain.Tenant, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Tenant
	for _, t := range m.tenants {
		if t.AccountID != acc || (f.UnitID != "" && t.UnitID != f.UnitID) || (f.Status != "" && t.Status != f.Status) {
			continue
		}
		if f.PropertyID != "" && m.units[t.UnitID].PropertyID != f.PropertyID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memStore) UpdateTenant(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	if _, err := m.GetTenant(ctx, t.ID); err != nil {
		return domain.Tenant{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t.AccountID = m.tenants[t.ID].AccountID
	m.tenants[t.ID] = t
	return t, nil
}

func (m *memStore) DeleteTenant(ctx context.Context, id string) error {
	t, err := m.GetTenant(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.Status == domain.TenantActive {
		m.setUnitStatus(t.UnitID, domain.UnitVacant)
	}
	delete(m.tenants, id)
	return nil
}

func (m *memStore) EndLease(ctx context.Context, id string, end time.Time) (domain.Tenant, error) {
	t, err := m.GetTenant(ctx, id)
	if err != nil {
		return domain.Tenant{}, err
	}
	if t.Status == domain.TenantEnded {
		return domain.Tenant{}, domain.ErrConflict
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Status, t.LeaseEnd = domain.TenantEnded, &end
	m.tenants[id] = t
	m.setUnitStatus(t.UnitID, domain.UnitVacant)
	return t, nil
}

// billing

func (m *memStore) CreateInvoice(ctx context.Context, inv domain.Invoice, readingIDs []string) (domain.Invoice, error) {
	if _, err := m.GetTenant(ctx, inv.TenantID); err != nil {
		return domain.Invoice{}, err
	}
	acc, _ := accOf(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.invoices {
		if x.TenantID == inv.TenantID && x.Period == inv.Period {
			return domain.Invoice{}, domain.ErrConflict
		}
	}
	inv.ID, inv.AccountID = uuid.NewString(), acc
	inv.SumLines()
	m.invoices[inv.ID] = inv
	for _, id := range readingIDs {
		r := m.readings[id]
		r.InvoiceID = &inv.ID
		m.readings[id] = r
	}
	return inv, nil
}

func (m *memStore) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || inv.AccountID != acc {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return inv, nil
}

func (m *memStore) ListInvoices(ctx context.Context, f domain.InvoiceFilter) ([]domain.Invoice, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range m.invoices {
		if inv.AccountID != acc || (f.TenantID != "" && inv.TenantID != f.TenantID) ||
			(f.Period != "" && inv.Period != f.Period) || (f.Status != "" && inv.Status != f.Status) {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (m *memStore) VoidInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || inv.AccountID != acc {
		return domain.Invoice{}, domain.ErrNotFound
	}
	if inv.Status == domain.InvoiceVoid {
		return inv, nil
	}
	if inv.AmountPaid > 0 {
		return domain.Invoice{}, domain.ErrConflict
	}
	inv.Status = domain.InvoiceVoid
	m.invoices[id] = inv
	return inv, nil
}

func (m *memStore) RecordPayment(ctx context.Context, p domain.Payment, asOf time.Time) (domain.Payment, domain.Invoice, error) {
	inv, err := m.GetInvoice(ctx, p.InvoiceID)
	if err != nil {
		return domain.Payment{}, domain.Invoice{}, err
	}
	if inv.Status == domain.InvoiceVoid {
		return domain.Payment{}, domain.Invoice{}, domain.ErrConflict
	}
	if p.Amount > inv.Balance() {
		return domain.Payment{}, domain.Invoice{}, &domain.ValidationError{Field: "amount", Message: "exceeds the invoice balance"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID, p.AccountID, p.TenantID = uuid.NewString(), inv.AccountID, inv.TenantID
	m.payments[p.ID] = p
	inv.AmountPaid += p.Amount
	inv.Status = inv.SettleStatus(asOf)
	m.invoices[inv.ID] = inv
	return p, inv, nil
}

func (m *memStore) ListPayments(ctx context.Context, f domain.PaymentFilter) ([]domain.Payment, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payment
	for _, p := range m.payments {
		if p.AccountID == acc && (f.InvoiceID == "" || p.InvoiceID == f.InvoiceID) && (f.TenantID == "" || p.TenantID == f.TenantID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, inv := range m.invoices {
		if inv.AccountID == acc && (inv.Status == domain.InvoiceUnpaid || inv.Status == domain.InvoicePartiallyPaid) && domain.PastDue(inv.DueDate, asOf) {
			inv.Status = domain.InvoiceOverdue
			m.invoices[id] = inv
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateExpense(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	if _, err := m.GetProperty(ctx, e.PropertyID); err != nil {
		return domain.Expense{}, err
	}
	acc, _ := accOf(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID, e.AccountID = uuid.NewString(), acc
	m.expenses[e.ID] = e
	return e, nil
}

func (m *memStore) GetExpense(ctx context.Context, id string) (domain.Expense, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.Expense{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[id]
	if !ok || e.AccountID != acc {
		return domain.Expense{}, domain.ErrNotFound
	}
	return e, nil
}

func (m *memStore) ListExpenses(ctx context.Context, f domain.ExpenseFilter) ([]domain.Expense, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Expense
	for _, e := range m.expenses {
		if e.AccountID == acc && (f.PropertyID == "" || e.PropertyID == f.PropertyID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) UpdateExpense(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	cur, err := m.GetExpense(ctx, e.ID)
	if err != nil {
		return domain.Expense{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.AccountID = cur.AccountID
	m.expenses[e.ID] = e
	return e, nil
}

func (m *memStore) DeleteExpense(ctx context.Context, id string) error {
	if _, err := m.GetExpense(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expenses, id)
	return nil
}

// maintenance & utilities

func (m *memStore) CreateTicket(ctx context.Context, t domain.MaintenanceTicket) (domain.MaintenanceTicket, error) {
	if _, err := m.GetProperty(ctx, t.PropertyID); err != nil {
		return domain.MaintenanceTicket{}, err
	}
	acc, _ := accOf(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID, t.AccountID = uuid.NewString(), acc
	m.tickets[t.ID] = t
	return t, nil
}

func (m *memStore) GetTicket(ctx context.Context, id string) (domain.MaintenanceTicket, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok || t.AccountID != acc {
		return domain.MaintenanceTicket{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memStore) ListTickets(ctx context.Context, f domain.TicketFilter) ([]domain.MaintenanceTicket, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MaintenanceTicket
	for _, t := range m.tickets {
		if t.AccountID == acc && (f.PropertyID == "" || t.PropertyID == f.PropertyID) && (f.Status == "" || t.Status == f.Status) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTicket(ctx context.Context, t domain.MaintenanceTicket) (domain.MaintenanceTicket, error) {
	cur, err := m.GetTicket(ctx, t.ID)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t.AccountID = cur.AccountID
	m.tickets[t.ID] = t
	return t, nil
}

func (m *memStore) DeleteTicket(ctx context.Context, id string) error {
	if _, err := m.GetTicket(ctx, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tickets, id)
	return nil
}

func (m *memStore) CreateReading(ctx context.Context, r domain.UtilityReading) (domain.UtilityReading, error) {
	if _, err := m.GetUnit(ctx, r.UnitID); err != nil {
		return domain.UtilityReading{}, err
	}
	acc, _ := accOf(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID, r.AccountID = uuid.NewString(), acc
	m.readings[r.ID] = r
	return r, nil
}

func (m *memStore) GetReading(ctx context.Context, id string) (domain.UtilityReading, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.UtilityReading{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.readings[id]
	if !ok || r.AccountID != acc {
		return domain.UtilityReading{}, domain.ErrNotFound
	}
	return r, nil
}

func (m *memStore) ListReadings(ctx context.Context, f domain.UtilityFilter) ([]domain.UtilityReading, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UtilityReading
	for _, r := range m.readings {
		if r.AccountID != acc || (f.UnitID != "" && r.UnitID != f.UnitID) || (f.Period != "" && r.Period != f.Period) || (f.Unbilled && r.Billed()) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}

func (m *memStore) UpdateReading(ctx context.Context, r domain.UtilityReading) (domain.UtilityReading, error) {
	cur, err := m.GetReading(ctx, r.ID)
	if err != nil {
		return domain.UtilityReading{}, err
	}
	if cur.Billed() {
		return domain.UtilityReading{}, domain.ErrConflict
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r.AccountID = cur.AccountID
	m.readings[r.ID] = r
	return r, nil
}

func (m *memStore) DeleteReading(ctx context.Context, id string) error {
	cur, err := m.GetReading(ctx, id)
	if err != nil {
		return err
	}
	if cur.Billed() {
		return domain.ErrConflict
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.readings, id)
	return nil
}

// subscriptions & sms

func (m *memStore) GetSubscription(ctx context.Context) (domain.Subscription, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.Subscription{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[acc]
	if !ok {
		return domain.Subscription{}, domain.ErrNotFound
	}
	return s, nil
}

func (m *memStore) SaveSubscription(ctx context.Context, s domain.Subscription) (domain.Subscription, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.Subscription{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.AccountID = acc
	if cur, ok := m.subs[acc]; ok {
		s.ID = cur.ID
	} else if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.subs[acc] = s
	return s, nil
}

func (m *memStore) CreateSMS(ctx context.Context, msg domain.SMSMessage) (domain.SMSMessage, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return domain.SMSMessage{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID, msg.AccountID, msg.CreatedAt = uuid.NewString(), acc, time.Now().UTC()
	m.sms[msg.ID] = msg
	return msg, nil
}

func (m *memStore) UpdateSMSStatus(ctx context.Context, id string, st domain.SMSStatus, ref, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.sms[id]
	if !ok {
		return domain.ErrNotFound
	}
	msg.Status, msg.ProviderRef, msg.Error = st, ref, errMsg
	m.sms[id] = msg
	return nil
}

func (m *memStore) ListSMS(ctx context.Context, limit int) ([]domain.SMSMessage, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.SMSMessage
	for _, msg := range m.sms {
		if msg.AccountID == acc {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountSMSSince(ctx context.Context, since time.Time) (int, error) {
	acc, err := accOf(ctx)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.sms {
		if msg.AccountID == acc && msg.Status != domain.SMSFailed && !msg.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// reports & admin

func (m *memStore) UnitStatusCounts(ctx context.Context) (map[domain.UnitStatus]int, error) {
	us, err := m.ListUnits(ctx, domain.UnitFilter{})
	if err != nil {
		return nil, err
	}
	out := map[domain.UnitStatus]int{}
	for _, u := range us {
		out[u.Status]++
	}
	return out, nil
}

func (m *memStore) OutstandingBalance(ctx context.Context) (int64, error) {
	invs, err := m.ListInvoices(ctx, domain.InvoiceFilter{})
	if err != nil {
		return 0, err
	}
	var n int64
	for _, inv := range invs {
		if inv.Status != domain.InvoiceVoid && inv.Status != domain.InvoicePaid {
			n += inv.Balance()
		}
	}
	return n, nil
}

func (m *memStore) CollectedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	ps, err := m.ListPayments(ctx, domain.PaymentFilter{})
	if err != nil {
		return 0, err
	}
	var n int64
	for _, p := range ps {
		if !p.PaidAt.Before(from) && p.PaidAt.Before(to) {
			n += p.Amount
		}
	}
	return n, nil
}

func (m *memStore) ExpensesBetween(ctx context.Context, from, to time.Time) (int64, error) {
	es, err := m.ListExpenses(ctx, domain.ExpenseFilter{})
	if err != nil {
		return 0, err
	}
	var n int64
	for _, e := range es {
		if !e.IncurredOn.Before(from) && e.IncurredOn.Before(to) {
			n += e.Amount
		}
	}
	return n, nil
}

func (m *memStore) CountOpenTickets(ctx context.Context) (int, error) {
	ts, err := m.ListTickets(ctx, domain.TicketFilter{})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, t := range ts {
		if t.Status == domain.TicketOpen || t.Status == domain.TicketInProgress {
			n++
		}
	}
	return n, nil
}

func (m *memStore) PlatformOverview(ctx context.Context) (domain.PlatformOverview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ov := domain.PlatformOverview{Accounts: len(m.accounts), Users: len(m.users), Properties: len(m.properties), Units: len(m.units)}
	for _, a := range m.accounts {
		if a.Status == domain.AccountSuspended {
			ov.SuspendedAccounts++
		}
	}
	return ov, nil
}

func (m *memStore) ListAccounts(ctx context.Context) ([]domain.AccountSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AccountSummary
	for _, a := range m.accounts {
		sum := domain.AccountSummary{Account: a}
		if sub, ok := m.subs[a.ID]; ok {
			end := sub.CurrentPeriodEnd
			sum.PlanCode, sum.SubscriptionStatus, sum.CurrentPeriodEnd = sub.PlanCode, sub.Status, &end
		}
		out = append(out, sum)
	}
	return out, nil
}

func (m *memStore) SetAccountStatus(ctx context.Context, id string, st domain.AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.Status = st
	m.accounts[id] = a
	return nil
}

// ---- cache, publisher, sender ----

// fakeCache stores JSON like the redis adapter, so cached values never alias
// what the store returned.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  []string
}

func newFakeCache() *fakeCache { return &fakeCache{store: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
}

func (p *fakePublisher) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) entities() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Entity+":"+string(ev.Op))
	}
	return out
}

type fakeSender struct {
	mu   sync.Mutex
	fail error
	sent []string
}

func (s *fakeSender) Send(ctx context.Context, to, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.sent = append(s.sent, to)
	return fmt.Sprintf("ref-%d", len(s.sent)), nil
}

// ---- plan catalog ----

type fakePlans struct{ plans []domain.Plan }

func (p fakePlans) All() []domain.Plan { return p.plans }
func (p fakePlans) Get(code string) (domain.Plan, bool) {
	for _, x := range p.plans {
		if x.Code == code {
			return x, true
		}
	}
	return domain.Plan{}, false
}
func (p fakePlans) Trial() (domain.Plan, int) { return p.plans[0], 14 }

var testPlans = fakePlans{plans: []domain.Plan{
	{Code: "starter", Name: "Starter", MaxProperties: 1, MaxUnits: 2, SMSQuota: 2},
	{Code: "growth", Name: "Growth", MaxProperties: 10, MaxUnits: 100, SMSQuota: 100},
}}

// ---- helpers ----

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type env struct {
	store *memStore
	cache *fakeCache
	pub   *fakePublisher
	deps  app.Deps
	ctx   context.Context
	acc   string
}

// newEnv seeds one account on the starter plan and returns an owner context.
func newEnv() *env {
	st := newMemStore()
	acc := "acc-1"
	st.accounts[acc] = domain.Account{ID: acc, Name: "Acme", Slug: "acme", Status: domain.AccountActive}
	st.subs[acc] = domain.Subscription{
		ID: "sub-1", AccountID: acc, PlanCode: "starter", Status: domain.SubTrialing,
		CurrentPeriodStart: testNow.AddDate(0, 0, -1), CurrentPeriodEnd: testNow.AddDate(0, 0, 13),
	}
	e := &env{store: st, cache: newFakeCache(), pub: &fakePublisher{}, acc: acc}
	e.deps = app.Deps{Cache: e.cache, Publisher: e.pub, CacheTTL: time.Minute, Now: clock}
	e.ctx = domain.WithScope(context.Background(), domain.Scope{AccountID: acc, UserID: "u-1", Role: domain.RoleOwner})
	return e
}
