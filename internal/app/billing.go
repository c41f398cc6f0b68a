package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"rentdesk/internal/adapters/observability"
	"rentdesk/internal/domain"
)

type billingStore interface {
	domain.BillingRepository
	GetTenant(ctx context.Context, id string) (domain.Tenant, error)
	ListTenants(ctx context.Context, f domain.TenantFilter) ([]domain.Tenant, error)
	ListReadings(ctx context.Context, f domain.UtilityFilter) ([]domain.UtilityReading, error)
}

type Billing struct {
	base
	repo    billingStore
	dueDays int
	workers int
}

func NewBilling(r billingStore, dueDays, workers int, d Deps) *Billing {
	if dueDays <= 0 {
		dueDays = 5
	}
	if workers <= 0 {
		workers = 4
	}
	return &Billing{base: d.base(), repo: r, dueDays: dueDays, workers: workers}
}

// BillingRun summarises GenerateMonthly for one account.
type BillingRun struct {
	Period  string `json:"period"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// GenerateInvoice bills tenant for period: one rent line plus one line per
// unbilled utility reading of the tenant's unit in that period. A second
// invoice for the same tenant and period is ErrConflict.
func (s *Billing) GenerateInvoice(ctx context.Context, tenantID, period string) (domain.Invoice, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	start, err := domain.PeriodStart(period)
	if err != nil {
		return domain.Invoice{}, err
	}
	t, err := s.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if t.Status != domain.TenantActive {
		return domain.Invoice{}, &domain.ValidationError{Field: "tenant_id", Message: "tenant is not active"}
	}
	end := start.AddDate(0, 1, 0)
	if !t.LeaseStart.Before(end) || (t.LeaseEnd != nil && t.LeaseEnd.Before(start)) {
		return domain.Invoice{}, &domain.ValidationError{Field: "period", Message: "lease does not cover the period"}
	}

	readings, err := s.repo.ListReadings(ctx, domain.UtilityFilter{UnitID: t.UnitID, Period: period, Unbilled: true})
	if err != nil {
		return domain.Invoice{}, err
	}
	lines := []domain.InvoiceLine{{Description: "Rent " + period, Amount: t.RentAmount}}
	ids := make([]string, 0, len(readings))
	for _, r := range readings {
		lines = append(lines, domain.InvoiceLine{
			Description: fmt.Sprintf("%s %s: %.3f units @ %d", titleCase(string(r.Kind)), period, r.Consumption(), r.Rate),
			Amount:      r.Charge(),
		})
		ids = append(ids, r.ID)
	}

	issue := s.now().Truncate(24 * time.Hour)
	if issue.Before(start) {
		issue = start
	}
	inv := domain.Invoice{
		TenantID:  t.ID,
		UnitID:    t.UnitID,
		Period:    period,
		IssueDate: issue,
		DueDate:   issue.AddDate(0, 0, s.dueDays),
		Lines:     lines,
		Status:    domain.InvoiceUnpaid,
	}
	inv.SumLines()
	if err := inv.Validate(); err != nil {
		return domain.Invoice{}, err
	}
	out, err := s.repo.CreateInvoice(ctx, inv, ids)
	if err != nil {
		return domain.Invoice{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityInvoice, out.ID, domain.OpInsert)
	for _, id := range ids {
		s.changed(ctx, sc.AccountID, domain.EntityUtility, id, domain.OpUpdate)
	}
	return out, nil
}

// GenerateMonthly invoices every active tenant of the caller's account for
// period. Tenants already invoiced or whose lease does not cover the period
// are skipped; other failures are counted and logged.
func (s *Billing) GenerateMonthly(ctx context.Context, period string) (BillingRun, error) {
	sc, err := scope(ctx)
	if err != nil {
		return BillingRun{}, err
	}
	if !domain.ValidPeriod(period) {
		return BillingRun{}, &domain.ValidationError{Field: "period", Message: "must be YYYY-MM"}
	}
	tenants, err := s.repo.ListTenants(ctx, domain.TenantFilter{Status: domain.TenantActive})
	if err != nil {
		return BillingRun{}, err
	}

	var created, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, t := range tenants {
		t := t
		g.Go(func() error {
			_, err := s.GenerateInvoice(gctx, t.ID, period)
			switch {
			case err == nil:
				created.Add(1)
				observability.ObserveBilling("created")
			case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrValidation):
				skipped.Add(1)
				observability.ObserveBilling("skipped")
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				failed.Add(1)
				observability.ObserveBilling("failed")
				log.Error().Err(err).Str("account", sc.AccountID).Str("tenant", t.ID).Str("period", period).Msg("invoice generation failed")
			}
			return nil
		})
	}
	err = g.Wait()
	return BillingRun{
		Period:  period,
		Created: int(created.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}, err
}

// CreateInvoice stores a manually composed invoice.
func (s *Billing) CreateInvoice(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	t, err := s.repo.GetTenant(ctx, inv.TenantID)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.UnitID = t.UnitID
	if inv.IssueDate.IsZero() {
		inv.IssueDate = s.now().Truncate(24 * time.Hour)
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.IssueDate.AddDate(0, 0, s.dueDays)
	}
	if inv.Period == "" {
		inv.Period = domain.PeriodOf(inv.IssueDate)
	}
	inv.Status = domain.InvoiceUnpaid
	inv.SumLines()
	if err := inv.Validate(); err != nil {
		return domain.Invoice{}, err
	}
	out, err := s.repo.CreateInvoice(ctx, inv, nil)
	if err != nil {
		return domain.Invoice{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityInvoice, out.ID, domain.OpInsert)
	return out, nil
}

func (s *Billing) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	return cached(ctx, &s.base, itemKey(domain.EntityInvoice, sc.AccountID, id), func() (domain.Invoice, error) {
		return s.repo.GetInvoice(ctx, id)
	})
}

func (s *Billing) ListInvoices(ctx context.Context, f domain.InvoiceFilter) ([]domain.Invoice, error) {
	sc, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if !f.Empty() {
		return s.repo.ListInvoices(ctx, f)
	}
	return cached(ctx, &s.base, listKey(domain.EntityInvoice, sc.AccountID), func() ([]domain.Invoice, error) {
		return s.repo.ListInvoices(ctx, f)
	})
}

// RecordPayment applies p to its invoice. Overpaying or paying a void invoice fails.
func (s *Billing) RecordPayment(ctx context.Context, p domain.Payment) (domain.Payment, domain.Invoice, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Payment{}, domain.Invoice{}, err
	}
	if err := p.Validate(); err != nil {
		return domain.Payment{}, domain.Invoice{}, err
	}
	pay, inv, err := s.repo.RecordPayment(ctx, p, s.now())
	if err != nil {
		return domain.Payment{}, domain.Invoice{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityPayment, pay.ID, domain.OpInsert)
	s.changed(ctx, sc.AccountID, domain.EntityInvoice, inv.ID, domain.OpUpdate)
	return pay, inv, nil
}

func (s *Billing) ListPayments(ctx context.Context, f domain.PaymentFilter) ([]domain.Payment, error) {
	sc, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if f.InvoiceID != "" || f.TenantID != "" {
		return s.repo.ListPayments(ctx, f)
	}
	return cached(ctx, &s.base, listKey(domain.EntityPayment, sc.AccountID), func() ([]domain.Payment, error) {
		return s.repo.ListPayments(ctx, f)
	})
}

// VoidInvoice cancels an invoice that has no payments. Voiding twice is a no-op.
func (s *Billing) VoidInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv, err := s.repo.VoidInvoice(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityInvoice, id, domain.OpUpdate)
	return inv, nil
}

// MarkOverdue flags unpaid and partially paid invoices past their due date.
func (s *Billing) MarkOverdue(ctx context.Context) (int64, error) {
	sc, err := scope(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	overdue, err := s.repo.ListInvoices(ctx, domain.InvoiceFilter{Status: domain.InvoiceOverdue})
	if err != nil {
		log.Warn().Err(err).Str("account", sc.AccountID).Msg("list overdue invoices for invalidation")
		s.changed(ctx, sc.AccountID, domain.EntityInvoice, "", domain.OpUpdate)
		return n, nil
	}
	for _, inv := range overdue {
		s.changed(ctx, sc.AccountID, domain.EntityInvoice, inv.ID, domain.OpUpdate)
	}
	return n, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
