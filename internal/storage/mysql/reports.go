package mysql

import (
	"context"
	"database/sql"
	"time"

	"rentdesk/internal/domain"
)

func (r *Repo) UnitStatusCounts(ctx context.Context) (map[domain.UnitStatus]int, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM units WHERE account_id = ? GROUP BY status`, acc)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[domain.UnitStatus]int{}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[domain.UnitStatus(st)] = n
	}
	return out, rows.Err()
}

func (r *Repo) OutstandingBalance(ctx context.Context) (int64, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return 0, err
	}
	return sumRows(ctx, r.db, `
SELECT SUM(total - amount_paid) FROM invoices
WHERE account_id = ? AND status IN ('unpaid', 'partially_paid', 'overdue')`, acc)
}

func (r *Repo) CollectedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return 0, err
	}
	return sumRows(ctx, r.db,
		`SELECT SUM(amount) FROM payments WHERE account_id = ? AND paid_at >= ? AND paid_at < ?`, acc, from, to)
}

func (r *Repo) ExpensesBetween(ctx context.Context, from, to time.Time) (int64, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return 0, err
	}
	return sumRows(ctx, r.db,
		`SELECT SUM(amount) FROM expenses WHERE account_id = ? AND incurred_on >= ? AND incurred_on < ?`, acc, from, to)
}

func (r *Repo) CountOpenTickets(ctx context.Context) (int, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return 0, err
	}
	return countRows(ctx, r.db,
		`SELECT COUNT(*) FROM maintenance_tickets WHERE account_id = ? AND status IN ('open', 'in_progress')`, acc)
}

// ---- admin console: the only cross-account reads ----

func (r *Repo) PlatformOverview(ctx context.Context) (domain.PlatformOverview, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PlatformOverview{}, err
	}
	var o domain.PlatformOverview
	err := r.db.QueryRowContext(ctx, platformOverviewSQL).Scan(
		&o.Accounts, &o.SuspendedAccounts, &o.Users, &o.Properties, &o.Units, &o.ActiveTenants,
		&o.InvoicedTotal, &o.CollectedTotal,
	)
	return o, err
}

func (r *Repo) ListAccounts(ctx context.Context) ([]domain.AccountSummary, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, listAccountsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AccountSummary
	for rows.Next() {
		var s domain.AccountSummary
		var phone, plan, subStatus sql.NullString
		var periodEnd sql.NullTime
		var status string
		if err := rows.Scan(&s.ID, &s.Name, &s.Slug, &phone, &status, &s.CreatedAt,
			&plan, &subStatus, &periodEnd, &s.Properties, &s.Units); err != nil {
			return nil, err
		}
		s.Phone = phone.String
		s.Status = domain.AccountStatus(status)
		s.PlanCode = plan.String
		s.SubscriptionStatus = domain.SubscriptionStatus(subStatus.String)
		s.CurrentPeriodEnd = timeNull(periodEnd)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) SetAccountStatus(ctx context.Context, id string, st domain.AccountStatus) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	return exactlyOne(r.db.ExecContext(ctx, `UPDATE accounts SET status = ? WHERE id = ?`, string(st), id))
}
