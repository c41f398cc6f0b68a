package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/domain"
)

func scanInvoice(s scanner) (domain.Invoice, error) {
	var inv domain.Invoice
	var status string
	if err := s.Scan(&inv.ID, &inv.AccountID, &inv.TenantID, &inv.UnitID, &inv.Period, &inv.IssueDate, &inv.DueDate,
		&inv.Total, &inv.AmountPaid, &status, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return domain.Invoice{}, translate(err)
	}
	inv.Status = domain.InvoiceStatus(status)
	return inv, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// loadLines fetches the lines of the given invoices keyed by invoice id.
func loadLines(ctx context.Context, q querier, ids []string) (map[string][]domain.InvoiceLine, error) {
	out := make(map[string][]domain.InvoiceLine, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		selectLinesSQL+" WHERE invoice_id IN ("+placeholders(len(ids))+") ORDER BY invoice_id, position", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var l domain.InvoiceLine
		if err := rows.Scan(&id, &l.Description, &l.Amount); err != nil {
			return nil, err
		}
		out[id] = append(out[id], l)
	}
	return out, rows.Err()
}

func (r *Repo) CreateInvoice(ctx context.Context, inv domain.Invoice, readingIDs []string) (domain.Invoice, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.ID = uuid.NewString()
	inv.AccountID = acc
	inv.AmountPaid = 0
	inv.SumLines()
	inv.CreatedAt = r.now()
	inv.UpdatedAt = inv.CreatedAt

	err = r.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureOwned(ctx, tx, "tenants", inv.TenantID, acc); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insertInvoiceSQL,
			inv.ID, inv.AccountID, inv.TenantID, inv.UnitID, inv.Period, inv.IssueDate, inv.DueDate,
			inv.Total, string(inv.Status), inv.CreatedAt, inv.UpdatedAt,
		); err != nil {
			return translate(err)
		}

		values := make([]string, 0, len(inv.Lines))
		args := make([]any, 0, len(inv.Lines)*4)
		for i, l := range inv.Lines {
			values = append(values, "(?,?,?,?)")
			args = append(args, inv.ID, i, l.Description, l.Amount)
		}
		if _, err := tx.ExecContext(ctx, insertLinePrefix+strings.Join(values, ","), args...); err != nil {
			return translate(err)
		}

		if len(readingIDs) == 0 {
			return nil
		}
		args = []any{inv.ID, acc}
		for _, id := range readingIDs {
			args = append(args, id)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE utility_readings SET invoice_id = ? WHERE account_id = ? AND invoice_id IS NULL AND id IN (`+
				placeholders(len(readingIDs))+`)`, args...)
		if err != nil {
			return translate(err)
		}
		if n, _ := res.RowsAffected(); n != int64(len(readingIDs)) {
			return fmt.Errorf("%w: utility reading already billed", domain.ErrConflict)
		}
		return nil
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

func (r *Repo) getInvoice(ctx context.Context, q querier, id, acc string, lock bool) (domain.Invoice, error) {
	w := scopedWhere("account_id", acc).eq("id", id)
	query := selectInvoiceSQL + w.String()
	if lock {
		query += " FOR UPDATE"
	}
	inv, err := scanInvoice(q.QueryRowContext(ctx, query, w.args...))
	if err != nil {
		return domain.Invoice{}, err
	}
	lines, err := loadLines(ctx, q, []string{id})
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.Lines = lines[id]
	return inv, nil
}

func (r *Repo) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	return r.getInvoice(ctx, r.db, id, acc, false)
}

func (r *Repo) ListInvoices(ctx context.Context, f domain.InvoiceFilter) ([]domain.Invoice, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return nil, err
	}
	w := scopedWhere("account_id", acc).eq("tenant_id", f.TenantID).eq("period", f.Period).eq("status", string(f.Status))
	rows, err := r.db.QueryContext(ctx, selectInvoiceSQL+w.String()+" ORDER BY period DESC, issue_date DESC, id", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Invoice
	var ids []string
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
		ids = append(ids, inv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	lines, err := loadLines(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

func (r *Repo) VoidInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Invoice{}, err
	}
	res, err := r.db.ExecContext(ctx, voidInvoiceSQL, r.now(), id, acc)
	if err != nil {
		return domain.Invoice{}, translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Invoice{}, err
	}
	inv, err := r.getInvoice(ctx, r.db, id, acc, false)
	if err != nil {
		return domain.Invoice{}, err
	}
	if n == 0 && inv.Status != domain.InvoiceVoid {
		return domain.Invoice{}, fmt.Errorf("%w: invoice has payments", domain.ErrConflict)
	}
	return inv, nil
}

func (r *Repo) RecordPayment(ctx context.Context, p domain.Payment, asOf time.Time) (domain.Payment, domain.Invoice, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Payment{}, domain.Invoice{}, err
	}
	var inv domain.Invoice
	err = r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		inv, err = r.getInvoice(ctx, tx, p.InvoiceID, acc, true)
		if err != nil {
			return err
		}
		if inv.Status == domain.InvoiceVoid {
			return fmt.Errorf("%w: invoice is void", domain.ErrConflict)
		}
		if p.Amount > inv.Balance() {
			return &domain.ValidationError{Field: "amount", Message: "exceeds the invoice balance"}
		}

		p.ID = uuid.NewString()
		p.AccountID = acc
		p.TenantID = inv.TenantID
		p.CreatedAt = r.now()
		if p.PaidAt.IsZero() {
			p.PaidAt = p.CreatedAt
		}
		if _, err := tx.ExecContext(ctx, insertPaymentSQL,
			p.ID, p.AccountID, p.InvoiceID, p.TenantID, p.Amount, string(p.Method), valStr(p.Reference), p.PaidAt, p.CreatedAt,
		); err != nil {
			return translate(err)
		}

		inv.AmountPaid += p.Amount
		inv.Status = inv.SettleStatus(asOf)
		inv.UpdatedAt = p.CreatedAt
		return exactlyOne(tx.ExecContext(ctx,
			`UPDATE invoices SET amount_paid = ?, status = ?, updated_at = ? WHERE id = ? AND account_id = ?`,
			inv.AmountPaid, string(inv.Status), inv.UpdatedAt, inv.ID, acc))
	})
	if err != nil {
		return domain.Payment{}, domain.Invoice{}, err
	}
	return p, inv, nil
}

func (r *Repo) ListPayments(ctx context.Context, f domain.PaymentFilter) ([]domain.Payment, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return nil, err
	}
	w := scopedWhere("account_id", acc).eq("invoice_id", f.InvoiceID).eq("tenant_id", f.TenantID)
	rows, err := r.db.QueryContext(ctx, selectPaymentSQL+w.String()+" ORDER BY paid_at DESC, id", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		var method string
		var ref sql.NullString
		if err := rows.Scan(&p.ID, &p.AccountID, &p.InvoiceID, &p.TenantID, &p.Amount, &method, &ref, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Method = domain.PaymentMethod(method)
		p.Reference = ref.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkOverdue flags open invoices whose due date is a day before asOf or
// earlier; due_date is a DATE, so asOf is compared by calendar day.
func (r *Repo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, markOverdueSQL, r.now(), acc, domain.Day(asOf))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanExpense(s scanner) (domain.Expense, error) {
	var e domain.Expense
	var desc sql.NullString
	if err := s.Scan(&e.ID, &e.AccountID, &e.PropertyID, &e.Category, &desc, &e.Amount, &e.IncurredOn, &e.CreatedAt); err != nil {
		return domain.Expense{}, translate(err)
	}
	e.Description = desc.String
	return e, nil
}

func (r *Repo) CreateExpense(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Expense{}, err
	}
	if err := ensureOwned(ctx, r.db, "properties", e.PropertyID, acc); err != nil {
		return domain.Expense{}, err
	}
	e.ID = uuid.NewString()
	e.AccountID = acc
	e.CreatedAt = r.now()
	if _, err := r.db.ExecContext(ctx, insertExpenseSQL,
		e.ID, e.AccountID, e.PropertyID, e.Category, valStr(e.Description), e.Amount, e.IncurredOn, e.CreatedAt,
	); err != nil {
		return domain.Expense{}, translate(err)
	}
	return e, nil
}

func (r *Repo) GetExpense(ctx context.Context, id string) (domain.Expense, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Expense{}, err
	}
	w := scopedWhere("account_id", acc).eq("id", id)
	return scanExpense(r.db.QueryRowContext(ctx, selectExpenseSQL+w.String(), w.args...))
}

func (r *Repo) ListExpenses(ctx context.Context, f domain.ExpenseFilter) ([]domain.Expense, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return nil, err
	}
	w := scopedWhere("account_id", acc).eq("property_id", f.PropertyID)
	if f.From != nil {
		w.add("incurred_on >= ?", *f.From)
	}
	if f.To != nil {
		w.add("incurred_on < ?", *f.To)
	}
	rows, err := r.db.QueryContext(ctx, selectExpenseSQL+w.String()+" ORDER BY incurred_on DESC, id", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateExpense(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Expense{}, err
	}
	if err := ensureOwned(ctx, r.db, "properties", e.PropertyID, acc); err != nil {
		return domain.Expense{}, err
	}
	if err := exactlyOne(r.db.ExecContext(ctx, updateExpenseSQL,
		e.PropertyID, e.Category, valStr(e.Description), e.Amount, e.IncurredOn, e.ID, acc,
	)); err != nil {
		return domain.Expense{}, err
	}
	return r.GetExpense(ctx, e.ID)
}

func (r *Repo) DeleteExpense(ctx context.Context, id string) error {
	acc, err := accountOf(ctx)
	if err != nil {
		return err
	}
	return exactlyOne(r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND account_id = ?`, id, acc))
}
