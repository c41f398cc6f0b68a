package mysql

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"rentdesk/internal/domain"
)

func scanProperty(s scanner) (domain.Property, error) {
	var p domain.Property
	var address, city, notes sql.NullString
	var kind string
	if err := s.Scan(&p.ID, &p.AccountID, &p.Name, &address, &city, &kind, &notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Property{}, translate(err)
	}
	p.Address, p.City, p.Notes = address.String, city.String, notes.String
	p.Kind = domain.PropertyKind(kind)
	return p, nil
}

func (r *Repo) CreateProperty(ctx context.Context, p domain.Property) (domain.Property, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Property{}, err
	}
	p.ID = uuid.NewString()
	p.AccountID = acc
	p.CreatedAt = r.now()
	p.UpdatedAt = p.CreatedAt
	_, err = r.db.ExecContext(ctx, insertPropertySQL,
		p.ID, p.AccountID, p.Name, valStr(p.Address), valStr(p.City), string(p.Kind), valStr(p.Notes),
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return domain.Property{}, translate(err)
	}
	return p, nil
}

func (r *Repo) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Property{}, err
	}
	w := scopedWhere("account_id", acc).eq("id", id)
	return scanProperty(r.db.QueryRowContext(ctx, selectPropertySQL+w.String(), w.args...))
}

func (r *Repo) ListProperties(ctx context.Context) ([]domain.Property, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return nil, err
	}
	w := scopedWhere("account_id", acc)
	rows, err := r.db.QueryContext(ctx, selectPropertySQL+w.String()+" ORDER BY name, id", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateProperty(ctx context.Context, p domain.Property) (domain.Property, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Property{}, err
	}
	err = exactlyOne(r.db.ExecContext(ctx, updatePropertySQL,
		p.Name, valStr(p.Address), valStr(p.City), string(p.Kind), valStr(p.Notes), r.now(),
		p.ID, acc,
	))
	if err != nil {
		return domain.Property{}, err
	}
	return r.GetProperty(ctx, p.ID)
}

func (r *Repo) DeleteProperty(ctx context.Context, id string) error {
	acc, err := accountOf(ctx)
	if err != nil {
		return err
	}
	return exactlyOne(r.db.ExecContext(ctx, `DELETE FROM properties WHERE id = ? AND account_id = ?`, id, acc))
}

func (r *Repo) CountProperties(ctx context.Context) (int, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return 0, err
	}
	return countRows(ctx, r.db, `SELECT COUNT(*) FROM properties WHERE account_id = ?`, acc)
}

func scanUnit(s scanner) (domain.Unit, error) {
	var u domain.Unit
	var status string
	if err := s.Scan(&u.ID, &u.AccountID, &u.PropertyID, &u.Label, &u.Bedrooms, &u.RentAmount, &status, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.Unit{}, translate(err)
	}
	u.Status = domain.UnitStatus(status)
	return u, nil
}

func (r *Repo) CreateUnit(ctx context.Context, u domain.Unit) (domain.Unit, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Unit{}, err
	}
	if err := ensureOwned(ctx, r.db, "properties", u.PropertyID, acc); err != nil {
		return domain.Unit{}, err
	}
	u.ID = uuid.NewString()
	u.AccountID = acc
	u.CreatedAt = r.now()
	u.UpdatedAt = u.CreatedAt
	_, err = r.db.ExecContext(ctx, insertUnitSQL,
		u.ID, u.AccountID, u.PropertyID, u.Label, u.Bedrooms, u.RentAmount, string(u.Status), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return domain.Unit{}, translate(err)
	}
	return u, nil
}

func (r *Repo) GetUnit(ctx context.Context, id string) (domain.Unit, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Unit{}, err
	}
	w := scopedWhere("account_id", acc).eq("id", id)
	return scanUnit(r.db.QueryRowContext(ctx, selectUnitSQL+w.String(), w.args...))
}

func (r *Repo) ListUnits(ctx context.Context, f domain.UnitFilter) ([]domain.Unit, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return nil, err
	}
	w := scopedWhere("account_id", acc).eq("property_id", f.PropertyID).eq("status", string(f.Status))
	rows, err := r.db.QueryContext(ctx, selectUnitSQL+w.String()+" ORDER BY property_id, label", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateUnit(ctx context.Context, u domain.Unit) (domain.Unit, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Unit{}, err
	}
	if err := ensureOwned(ctx, r.db, "properties", u.PropertyID, acc); err != nil {
		return domain.Unit{}, err
	}
	err = exactlyOne(r.db.ExecContext(ctx, updateUnitSQL,
		u.PropertyID, u.Label, u.Bedrooms, u.RentAmount, string(u.Status), r.now(),
		u.ID, acc,
	))
	if err != nil {
		return domain.Unit{}, err
	}
	return r.GetUnit(ctx, u.ID)
}

func (r *Repo) DeleteUnit(ctx context.Context, id string) error {
	acc, err := accountOf(ctx)
	if err != nil {
		return err
	}
	return exactlyOne(r.db.ExecContext(ctx, `DELETE FROM units WHERE id = ? AND account_id = ?`, id, acc))
}

func (r *Repo) CountUnits(ctx context.Context) (int, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return 0, err
	}
	return countRows(ctx, r.db, `SELECT COUNT(*) FROM units WHERE account_id = ?`, acc)
}

// setUnitStatus is used inside tenant transactions.
func setUnitStatus(ctx context.Context, q querier, id, acc string, st domain.UnitStatus, at any) error {
	return exactlyOne(q.ExecContext(ctx,
		`UPDATE units SET status = ?, updated_at = ? WHERE id = ? AND account_id = ?`,
		string(st), at, id, acc))
}
