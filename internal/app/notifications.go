package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"rentdesk/internal/adapters/observability"
	"rentdesk/internal/domain"
)

type notificationStore interface {
	domain.SMSRepository
	GetTenant(ctx context.Context, id string) (domain.Tenant, error)
	ListTenants(ctx context.Context, f domain.TenantFilter) ([]domain.Tenant, error)
	GetProperty(ctx context.Context, id string) (domain.Property, error)
	ListInvoices(ctx context.Context, f domain.InvoiceFilter) ([]domain.Invoice, error)
}

type Notifications struct {
	base
	repo   notificationStore
	sender domain.SMSSender
	quota  quotaChecker
}

func NewNotifications(r notificationStore, sender domain.SMSSender, q quotaChecker, d Deps) *Notifications {
	return &Notifications{base: d.base(), repo: r, sender: sender, quota: q}
}

// SendInput addresses a message by phone number, by tenant, or both.
type SendInput struct {
	To       string  `json:"to"`
	Body     string  `json:"body"`
	TenantID *string `json:"tenant_id,omitempty"`
}

// BroadcastResult counts the outcome per recipient.
type BroadcastResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// SendSMS stores the message, hands it to the gateway and records the outcome.
// A gateway failure is not an error: the stored message carries status failed.
func (s *Notifications) SendSMS(ctx context.Context, in SendInput) (domain.SMSMessage, error) {
	if _, err := scope(ctx); err != nil {
		return domain.SMSMessage{}, err
	}
	if in.TenantID != nil && *in.TenantID != "" && in.To == "" {
		t, err := s.repo.GetTenant(ctx, *in.TenantID)
		if err != nil {
			return domain.SMSMessage{}, err
		}
		in.To = t.Phone
	}
	m := domain.SMSMessage{TenantID: in.TenantID, To: domain.NormalizePhone(in.To), Body: in.Body, Status: domain.SMSQueued}
	if err := m.Validate(); err != nil {
		return domain.SMSMessage{}, err
	}
	if s.quota != nil {
		if err := s.quota.Check(ctx, ResourceSMS, 1); err != nil {
			return domain.SMSMessage{}, err
		}
	}
	return s.deliver(ctx, m)
}

func (s *Notifications) deliver(ctx context.Context, m domain.SMSMessage) (domain.SMSMessage, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.SMSMessage{}, err
	}
	m, err = s.repo.CreateSMS(ctx, m)
	if err != nil {
		return domain.SMSMessage{}, err
	}

	ref, sendErr := s.sender.Send(ctx, m.To, m.Body)
	if sendErr != nil {
		m.Status, m.Error = domain.SMSFailed, sendErr.Error()
		log.Warn().Err(sendErr).Str("account", sc.AccountID).Str("sms", m.ID).Msg("sms delivery failed")
	} else {
		m.Status, m.ProviderRef = domain.SMSSent, ref
	}
	observability.ObserveSMS(string(m.Status))
	if err := s.repo.UpdateSMSStatus(ctx, m.ID, m.Status, m.ProviderRef, m.Error); err != nil {
		return domain.SMSMessage{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntitySMS, m.ID, domain.OpInsert)
	return m, nil
}

// BroadcastProperty texts every active tenant of the property that has a
// phone number. The whole batch must fit in the remaining SMS quota.
func (s *Notifications) BroadcastProperty(ctx context.Context, propertyID, body string) (BroadcastResult, error) {
	if _, err := s.repo.GetProperty(ctx, propertyID); err != nil {
		return BroadcastResult{}, err
	}
	tenants, err := s.repo.ListTenants(ctx, domain.TenantFilter{PropertyID: propertyID, Status: domain.TenantActive})
	if err != nil {
		return BroadcastResult{}, err
	}
	return s.sendAll(ctx, tenants, func(domain.Tenant) string { return body })
}

// RemindOverdue texts each tenant with overdue invoices once, quoting the
// total outstanding.
func (s *Notifications) RemindOverdue(ctx context.Context) (BroadcastResult, error) {
	invs, err := s.repo.ListInvoices(ctx, domain.InvoiceFilter{Status: domain.InvoiceOverdue})
	if err != nil {
		return BroadcastResult{}, err
	}
	owed := map[string]int64{}
	var order []string
	for _, inv := range invs {
		if _, seen := owed[inv.TenantID]; !seen {
			order = append(order, inv.TenantID)
		}
		owed[inv.TenantID] += inv.Balance()
	}

	tenants := make([]domain.Tenant, 0, len(order))
	for _, id := range order {
		t, err := s.repo.GetTenant(ctx, id)
		if err != nil {
			return BroadcastResult{}, err
		}
		tenants = append(tenants, t)
	}
	return s.sendAll(ctx, tenants, func(t domain.Tenant) string {
		return fmt.Sprintf("Dear %s, your rent account has an overdue balance of %s. Please pay at your earliest convenience.",
			t.FullName, formatMoney(owed[t.ID]))
	})
}

func (s *Notifications) sendAll(ctx context.Context, tenants []domain.Tenant, body func(domain.Tenant) string) (BroadcastResult, error) {
	var res BroadcastResult
	var targets []domain.Tenant
	for _, t := range tenants {
		if t.Phone == "" {
			res.Skipped++
			continue
		}
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return res, nil
	}
	if s.quota != nil {
		if err := s.quota.Check(ctx, ResourceSMS, len(targets)); err != nil {
			return res, err
		}
	}
	for _, t := range targets {
		id := t.ID
		m := domain.SMSMessage{TenantID: &id, To: domain.NormalizePhone(t.Phone), Body: body(t), Status: domain.SMSQueued}
		if err := m.Validate(); err != nil {
			res.Skipped++
			continue
		}
		out, err := s.deliver(ctx, m)
		if err != nil {
			return res, err
		}
		if out.Status == domain.SMSSent {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	return res, nil
}

func (s *Notifications) List(ctx context.Context, limit int) ([]domain.SMSMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListSMS(ctx, limit)
}

// formatMoney renders minor units with two decimals.
func formatMoney(v int64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
