package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/domain"
)

func scanTicket(s scanner) (domain.MaintenanceTicket, error) {
	var t domain.MaintenanceTicket
	var unitID, tenantID, desc sql.NullString
	var resolved sql.NullTime
	var priority, status string
	if err := s.Scan(&t.ID, &t.AccountID, &t.PropertyID, &unitID, &tenantID, &t.Title, &desc, &priority, &status,
		&t.Cost, &resolved, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.MaintenanceTicket{}, translate(err)
	}
	t.UnitID, t.TenantID = ptrNull(unitID), ptrNull(tenantID)
	t.Description = desc.String
	t.Priority = domain.TicketPriority(priority)
	t.Status = domain.TicketStatus(status)
	t.ResolvedAt = timeNull(resolved)
	return t, nil
}

// ticketRefs checks the optional unit and tenant of a ticket against the account.
func ticketRefs(ctx context.Context, q querier, t domain.MaintenanceTicket, acc string) error {
	if err := ensureOwned(ctx, q, "properties", t.PropertyID, acc); err != nil {
		return err
	}
	if t.UnitID != nil && *t.UnitID != "" {
		if err := ensureOwned(ctx, q, "units", *t.UnitID, acc); err != nil {
			return err
		}
	}
	if t.TenantID != nil && *t.TenantID != "" {
		if err := ensureOwned(ctx, q, "tenants", *t.TenantID, acc); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) CreateTicket(ctx context.Context, t domain.MaintenanceTicket) (domain.MaintenanceTicket, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	if err := ticketRefs(ctx, r.db, t, acc); err != nil {
		return domain.MaintenanceTicket{}, err
	}
	t.ID = uuid.NewString()
	t.AccountID = acc
	t.CreatedAt = r.now()
	t.UpdatedAt = t.CreatedAt
	if _, err := r.db.ExecContext(ctx, insertTicketSQL,
		t.ID, t.AccountID, t.PropertyID, valPtr(t.UnitID), valPtr(t.TenantID), t.Title, valStr(t.Description),
		string(t.Priority), string(t.Status), t.Cost, valTime(t.ResolvedAt), t.CreatedAt, t.UpdatedAt,
	); err != nil {
		return domain.MaintenanceTicket{}, translate(err)
	}
	return t, nil
}

func (r *Repo) GetTicket(ctx context.Context, id string) (domain.MaintenanceTicket, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	w := scopedWhere("account_id", acc).eq("id", id)
	return scanTicket(r.db.QueryRowContext(ctx, selectTicketSQL+w.String(), w.args...))
}

func (r *Repo) ListTickets(ctx context.Context, f domain.TicketFilter) ([]domain.MaintenanceTicket, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return nil, err
	}
	w := scopedWhere("account_id", acc).eq("property_id", f.PropertyID).eq("status", string(f.Status))
	rows, err := r.db.QueryContext(ctx, selectTicketSQL+w.String()+" ORDER BY created_at DESC, id", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MaintenanceTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateTicket(ctx context.Context, t domain.MaintenanceTicket) (domain.MaintenanceTicket, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	if err := ticketRefs(ctx, r.db, t, acc); err != nil {
		return domain.MaintenanceTicket{}, err
	}
	if err := exactlyOne(r.db.ExecContext(ctx, updateTicketSQL,
		valPtr(t.UnitID), valPtr(t.TenantID), t.Title, valStr(t.Description), string(t.Priority), string(t.Status),
		t.Cost, valTime(t.ResolvedAt), r.now(),
		t.ID, acc,
	)); err != nil {
		return domain.MaintenanceTicket{}, err
	}
	return r.GetTicket(ctx, t.ID)
}

func (r *Repo) DeleteTicket(ctx context.Context, id string) error {
	acc, err := accountOf(ctx)
	if err != nil {
		return err
	}
	return exactlyOne(r.db.ExecContext(ctx, `DELETE FROM maintenance_tickets WHERE id = ? AND account_id = ?`, id, acc))
}

func scanReading(s scanner) (domain.UtilityReading, error) {
	var u domain.UtilityReading
	var kind string
	var invoiceID sql.NullString
	if err := s.Scan(&u.ID, &u.AccountID, &u.UnitID, &kind, &u.Period, &u.PreviousReading, &u.CurrentReading, &u.Rate,
		&invoiceID, &u.CreatedAt); err != nil {
		return domain.UtilityReading{}, translate(err)
	}
	u.Kind = domain.UtilityKind(kind)
	u.InvoiceID = ptrNull(invoiceID)
	return u, nil
}

func (r *Repo) CreateReading(ctx context.Context, u domain.UtilityReading) (domain.UtilityReading, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.UtilityReading{}, err
	}
	if err := ensureOwned(ctx, r.db, "units", u.UnitID, acc); err != nil {
		return domain.UtilityReading{}, err
	}
	u.ID = uuid.NewString()
	u.AccountID = acc
	u.InvoiceID = nil
	u.CreatedAt = r.now()
	if _, err := r.db.ExecContext(ctx, insertReadingSQL,
		u.ID, u.AccountID, u.UnitID, string(u.Kind), u.Period, u.PreviousReading, u.CurrentReading, u.Rate, u.CreatedAt,
	); err != nil {
		return domain.UtilityReading{}, translate(err)
	}
	return u, nil
}

func (r *Repo) GetReading(ctx context.Context, id string) (domain.UtilityReading, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.UtilityReading{}, err
	}
	w := scopedWhere("account_id", acc).eq("id", id)
	return scanReading(r.db.QueryRowContext(ctx, selectReadingSQL+w.String(), w.args...))
}

func (r *Repo) ListReadings(ctx context.Context, f domain.UtilityFilter) ([]domain.UtilityReading, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return nil, err
	}
	w := scopedWhere("account_id", acc).eq("unit_id", f.UnitID).eq("period", f.Period)
	if f.Unbilled {
		w.add("invoice_id IS NULL")
	}
	rows, err := r.db.QueryContext(ctx, selectReadingSQL+w.String()+" ORDER BY period DESC, unit_id, kind", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UtilityReading
	for rows.Next() {
		u, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateReading only touches unbilled readings; a billed one reports ErrConflict.
func (r *Repo) UpdateReading(ctx context.Context, u domain.UtilityReading) (domain.UtilityReading, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.UtilityReading{}, err
	}
	err = exactlyOne(r.db.ExecContext(ctx, updateReadingSQL,
		string(u.Kind), u.Period, u.PreviousReading, u.CurrentReading, u.Rate, u.ID, acc))
	if errors.Is(err, domain.ErrNotFound) {
		cur, gerr := r.GetReading(ctx, u.ID)
		if gerr != nil {
			return domain.UtilityReading{}, gerr
		}
		if cur.Billed() {
			return domain.UtilityReading{}, fmt.Errorf("%w: reading already billed", domain.ErrConflict)
		}
	}
	if err != nil {
		return domain.UtilityReading{}, err
	}
	return r.GetReading(ctx, u.ID)
}

func (r *Repo) DeleteReading(ctx context.Context, id string) error {
	acc, err := accountOf(ctx)
	if err != nil {
		return err
	}
	err = exactlyOne(r.db.ExecContext(ctx,
		`DELETE FROM utility_readings WHERE id = ? AND account_id = ? AND invoice_id IS NULL`, id, acc))
	if errors.Is(err, domain.ErrNotFound) {
		if cur, gerr := r.GetReading(ctx, id); gerr == nil && cur.Billed() {
			return fmt.Errorf("%w: reading already billed", domain.ErrConflict)
		}
	}
	return err
}

func (r *Repo) CreateSMS(ctx context.Context, m domain.SMSMessage) (domain.SMSMessage, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.SMSMessage{}, err
	}
	m.ID = uuid.NewString()
	m.AccountID = acc
	m.CreatedAt = r.now()
	if _, err := r.db.ExecContext(ctx, insertSMSSQL,
		m.ID, m.AccountID, valPtr(m.TenantID), m.To, m.Body, string(m.Status), m.CreatedAt,
	); err != nil {
		return domain.SMSMessage{}, translate(err)
	}
	return m, nil
}

func (r *Repo) UpdateSMSStatus(ctx context.Context, id string, st domain.SMSStatus, providerRef, errMsg string) error {
	acc, err := accountOf(ctx)
	if err != nil {
		return err
	}
	return exactlyOne(r.db.ExecContext(ctx,
		`UPDATE sms_messages SET status = ?, provider_ref = ?, error = ? WHERE id = ? AND account_id = ?`,
		string(st), valStr(providerRef), valStr(errMsg), id, acc))
}

func (r *Repo) ListSMS(ctx context.Context, limit int) ([]domain.SMSMessage, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, selectSMSSQL+" WHERE account_id = ? ORDER BY created_at DESC, id LIMIT ?", acc, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SMSMessage
	for rows.Next() {
		var m domain.SMSMessage
		var tenantID, ref, msg sql.NullString
		var status string
		if err := rows.Scan(&m.ID, &m.AccountID, &tenantID, &m.To, &m.Body, &status, &ref, &msg, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.TenantID = ptrNull(tenantID)
		m.Status = domain.SMSStatus(status)
		m.ProviderRef, m.Error = ref.String, msg.String
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountSMSSince counts messages that reached the provider (sent or queued).
func (r *Repo) CountSMSSince(ctx context.Context, since time.Time) (int, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return 0, err
	}
	return countRows(ctx, r.db,
		`SELECT COUNT(*) FROM sms_messages WHERE account_id = ? AND created_at >= ? AND status <> 'failed'`, acc, since)
}
