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

func scanTenant(s scanner) (domain.Tenant, error) {
	var t domain.Tenant
	var email, phone, nid sql.NullString
	var end sql.NullTime
	var status string
	if err := s.Scan(&t.ID, &t.AccountID, &t.UnitID, &t.FullName, &email, &phone, &nid,
		&t.LeaseStart, &end, &t.RentAmount, &t.Deposit, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Tenant{}, translate(err)
	}
	t.Email, t.Phone, t.NationalID = email.String, phone.String, nid.String
	t.LeaseEnd = timeNull(end)
	t.Status = domain.TenantStatus(status)
	return t, nil
}

// lockUnit takes a row lock on the unit so concurrent lease changes serialize.
func lockUnit(ctx context.Context, tx *sql.Tx, unitID, acc string) error {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM units WHERE id = ? AND account_id = ? FOR UPDATE`, unitID, acc).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("unit %s: %w", unitID, domain.ErrNotFound)
	}
	return err
}

func (r *Repo) CreateTenant(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	t.ID = uuid.NewString()
	t.AccountID = acc
	t.CreatedAt = r.now()
	t.UpdatedAt = t.CreatedAt

	err = r.inTx(ctx, func(tx *sql.Tx) error {
		if err := lockUnit(ctx, tx, t.UnitID, acc); err != nil {
			return err
		}
		if t.Status == domain.TenantActive {
			n, err := countRows(ctx, tx,
				`SELECT COUNT(*) FROM tenants WHERE unit_id = ? AND account_id = ? AND status = 'active'`, t.UnitID, acc)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: unit already has an active tenant", domain.ErrConflict)
			}
		}
		if _, err := tx.ExecContext(ctx, insertTenantSQL,
			t.ID, t.AccountID, t.UnitID, t.FullName, valStr(t.Email), valStr(t.Phone), valStr(t.NationalID),
			t.LeaseStart, valTime(t.LeaseEnd), t.RentAmount, t.Deposit, string(t.Status), t.CreatedAt, t.UpdatedAt,
		); err != nil {
			return translate(err)
		}
		if t.Status == domain.TenantActive {
			return setUnitStatus(ctx, tx, t.UnitID, acc, domain.UnitOccupied, t.CreatedAt)
		}
		return nil
	})
	if err != nil {
		return domain.Tenant{}, err
	}
	return t, nil
}

func (r *Repo) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	w := scopedWhere("t.account_id", acc).eq("t.id", id)
	return scanTenant(r.db.QueryRowContext(ctx, selectTenantSQL+w.String(), w.args...))
}

func (r *Repo) ListTenants(ctx context.Context, f domain.TenantFilter) ([]domain.Tenant, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return nil, err
	}
	w := scopedWhere("t.account_id", acc).
		eq("t.unit_id", f.UnitID).
		eq("u.property_id", f.PropertyID).
		eq("t.status", string(f.Status))
	rows, err := r.db.QueryContext(ctx, selectTenantSQL+w.String()+" ORDER BY t.full_name, t.id", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTenant edits contact and lease terms. Unit and status change only
// through CreateTenant/EndLease.
func (r *Repo) UpdateTenant(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	err = exactlyOne(r.db.ExecContext(ctx, updateTenantSQL,
		t.FullName, valStr(t.Email), valStr(t.Phone), valStr(t.NationalID), t.LeaseStart, valTime(t.LeaseEnd),
		t.RentAmount, t.Deposit, r.now(),
		t.ID, acc,
	))
	if err != nil {
		return domain.Tenant{}, err
	}
	return r.GetTenant(ctx, t.ID)
}

func (r *Repo) EndLease(ctx context.Context, id string, end time.Time) (domain.Tenant, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	err = r.inTx(ctx, func(tx *sql.Tx) error {
		w := scopedWhere("t.account_id", acc).eq("t.id", id)
		t, err := scanTenant(tx.QueryRowContext(ctx, selectTenantSQL+w.String()+" FOR UPDATE", w.args...))
		if err != nil {
			return err
		}
		if t.Status == domain.TenantEnded {
			return fmt.Errorf("%w: lease already ended", domain.ErrConflict)
		}
		if !end.After(t.LeaseStart) {
			return &domain.ValidationError{Field: "lease_end", Message: "must be after lease_start"}
		}
		now := r.now()
		if err := exactlyOne(tx.ExecContext(ctx,
			`UPDATE tenants SET status = 'ended', lease_end = ?, updated_at = ? WHERE id = ? AND account_id = ?`,
			end, now, id, acc)); err != nil {
			return err
		}
		return setUnitStatus(ctx, tx, t.UnitID, acc, domain.UnitVacant, now)
	})
	if err != nil {
		return domain.Tenant{}, err
	}
	return r.GetTenant(ctx, id)
}

func (r *Repo) DeleteTenant(ctx context.Context, id string) error {
	acc, err := accountOf(ctx)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		w := scopedWhere("t.account_id", acc).eq("t.id", id)
		t, err := scanTenant(tx.QueryRowContext(ctx, selectTenantSQL+w.String()+" FOR UPDATE", w.args...))
		if err != nil {
			return err
		}
		if err := exactlyOne(tx.ExecContext(ctx, `DELETE FROM tenants WHERE id = ? AND account_id = ?`, id, acc)); err != nil {
			return err
		}
		if t.Status == domain.TenantActive {
			return setUnitStatus(ctx, tx, t.UnitID, acc, domain.UnitVacant, r.now())
		}
		return nil
	})
}
