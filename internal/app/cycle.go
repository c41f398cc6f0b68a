package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"rentdesk/internal/domain"
)

// systemScope is the identity the scheduled billing job acts under.
var systemScope = domain.Scope{AccountID: "system", UserID: "system:billing", Role: domain.RoleAdmin}

// BillingCycle is the scheduled pass over every live account: renew the
// subscription period, flag overdue invoices, issue the period's rent invoices
// and optionally text reminders.
type BillingCycle struct {
	admin   *Admin
	billing *Billing
	subs    *Subscriptions
	notify  *Notifications
	workers int64
}

// NewBillingCycle wires the job. notify may be nil when reminders are off.
func NewBillingCycle(admin *Admin, billing *Billing, subs *Subscriptions, notify *Notifications, workers int) *BillingCycle {
	if workers < 1 {
		workers = 1
	}
	return &BillingCycle{admin: admin, billing: billing, subs: subs, notify: notify, workers: int64(workers)}
}

// CycleReport sums one run across accounts.
type CycleReport struct {
	Period    string          `json:"period"`
	Accounts  int             `json:"accounts"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Renewed   int             `json:"renewed"`
	Overdue   int64           `json:"overdue"`
	Invoices  BillingRun      `json:"invoices"`
	Reminders BroadcastResult `json:"reminders"`
}

// Run bills every active, subscribed account for period. A failing account is
// logged and counted; it does not stop the others.
func (c *BillingCycle) Run(ctx context.Context, period string, remind bool) (CycleReport, error) {
	rep := CycleReport{Period: period, Invoices: BillingRun{Period: period}}
	if !domain.ValidPeriod(period) {
		return rep, &domain.ValidationError{Field: "period", Message: "must be YYYY-MM"}
	}
	accounts, err := c.admin.ListAccounts(domain.WithScope(ctx, systemScope))
	if err != nil {
		return rep, err
	}

	sem := semaphore.NewWeighted(c.workers)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	now := c.subs.now()
	for _, a := range accounts {
		if !billable(a, now) {
			rep.Skipped++
			continue
		}
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := c.runAccount(ctx, id, period, remind)
			mu.Lock()
			defer mu.Unlock()
			rep.Accounts++
			if res.Renewed > 0 {
				rep.Renewed++
			}
			rep.Overdue += res.Overdue
			rep.Invoices.Created += res.Invoices.Created
			rep.Invoices.Skipped += res.Invoices.Skipped
			rep.Invoices.Failed += res.Invoices.Failed
			rep.Reminders.Sent += res.Reminders.Sent
			rep.Reminders.Failed += res.Reminders.Failed
			rep.Reminders.Skipped += res.Reminders.Skipped
			if err != nil {
				rep.Failed++
				log.Warn().Err(err).Str("account", id).Str("period", period).Msg("billing run failed")
				return
			}
			log.Info().Str("account", id).Str("period", period).
				Int("created", res.Invoices.Created).Int64("overdue", res.Overdue).
				Msg("billing run ok")
		}(a.ID)
	}
	wg.Wait()
	return rep, ctx.Err()
}

func (c *BillingCycle) runAccount(ctx context.Context, accountID, period string, remind bool) (CycleReport, error) {
	var rep CycleReport
	ctx = domain.WithScope(ctx, domain.Scope{AccountID: accountID, UserID: systemScope.UserID, Role: domain.RoleOwner})

	renewed, err := c.subs.Renew(ctx)
	if err != nil {
		return rep, err
	}
	if renewed {
		rep.Renewed = 1
	}
	n, err := c.billing.MarkOverdue(ctx)
	if err != nil {
		return rep, err
	}
	rep.Overdue = n
	if rep.Invoices, err = c.billing.GenerateMonthly(ctx, period); err != nil {
		return rep, err
	}
	if !remind || c.notify == nil {
		return rep, nil
	}
	rep.Reminders, err = c.notify.RemindOverdue(ctx)
	return rep, err
}

// billable reports whether an account takes part in a run: not suspended, and
// holding a subscription that is usable once renewed.
func billable(a domain.AccountSummary, now time.Time) bool {
	if a.Status == domain.AccountSuspended || a.PlanCode == "" || a.CurrentPeriodEnd == nil {
		return false
	}
	sub, _ := domain.Subscription{Status: a.SubscriptionStatus, CurrentPeriodEnd: *a.CurrentPeriodEnd}.Renewed(now)
	return sub.Usable(now)
}
