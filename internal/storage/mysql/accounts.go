package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentdesk/internal/domain"
)

func scanUser(s scanner) (domain.User, error) {
	var u domain.User
	var phone sql.NullString
	var role string
	if err := s.Scan(&u.ID, &u.AccountID, &u.Email, &u.FullName, &phone, &role, &u.PasswordHash, &u.CreatedAt); err != nil {
		return domain.User{}, translate(err)
	}
	u.Phone = phone.String
	u.Role = domain.Role(role)
	return u, nil
}

func scanAccount(s scanner) (domain.Account, error) {
	var a domain.Account
	var phone sql.NullString
	var status string
	if err := s.Scan(&a.ID, &a.Name, &a.Slug, &phone, &status, &a.CreatedAt); err != nil {
		return domain.Account{}, translate(err)
	}
	a.Phone = phone.String
	a.Status = domain.AccountStatus(status)
	return a, nil
}

// CreateAccountWithOwner is the account-creation procedure: the account, its
// first user and (optionally) the opening subscription commit together.
func (r *Repo) CreateAccountWithOwner(ctx context.Context, a domain.Account, owner domain.User, sub *domain.Subscription) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertAccountSQL,
			a.ID, a.Name, a.Slug, valStr(a.Phone), string(a.Status), a.CreatedAt,
		); err != nil {
			return translate(err)
		}
		if _, err := tx.ExecContext(ctx, insertUserSQL,
			owner.ID, a.ID, strings.ToLower(owner.Email), owner.FullName, valStr(owner.Phone),
			string(owner.Role), owner.PasswordHash, owner.CreatedAt,
		); err != nil {
			return translate(err)
		}
		if sub != nil {
			if _, err := tx.ExecContext(ctx, upsertSubscriptionSQL,
				sub.ID, a.ID, sub.PlanCode, string(sub.Status),
				sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.UpdatedAt,
			); err != nil {
				return translate(err)
			}
		}
		return nil
	})
}

func (r *Repo) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, selectAccountSQL+" WHERE id = ?", id))
}

func (r *Repo) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUserSQL+" WHERE email = ?", strings.ToLower(strings.TrimSpace(email))))
}

func (r *Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUserSQL+" WHERE id = ?", id))
}

func (r *Repo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, insertSessionSQL, s.ID, s.UserID, s.ExpiresAt)
	return translate(err)
}

func (r *Repo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var s domain.Session
	var revoked sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, revoked_at FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &revoked)
	if err != nil {
		return domain.Session{}, translate(err)
	}
	s.RevokedAt = timeNull(revoked)
	return s, nil
}

func (r *Repo) RevokeSession(ctx context.Context, id string, at time.Time) error {
	return exactlyOne(r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, at, id))
}

func (r *Repo) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.AccountID = acc
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = r.now()
	if _, err := r.db.ExecContext(ctx, insertUserSQL,
		u.ID, u.AccountID, u.Email, u.FullName, valStr(u.Phone), string(u.Role), u.PasswordHash, u.CreatedAt,
	); err != nil {
		return domain.User{}, translate(err)
	}
	return u, nil
}

func (r *Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, selectUserSQL+" WHERE account_id = ? ORDER BY created_at, id", acc)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *Repo) GetSubscription(ctx context.Context) (domain.Subscription, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Subscription{}, err
	}
	var s domain.Subscription
	var status string
	err = r.db.QueryRowContext(ctx, `
SELECT id, account_id, plan_code, status, current_period_start, current_period_end, updated_at
FROM subscriptions WHERE account_id = ?`, acc,
	).Scan(&s.ID, &s.AccountID, &s.PlanCode, &status, &s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.UpdatedAt)
	if err != nil {
		return domain.Subscription{}, translate(err)
	}
	s.Status = domain.SubscriptionStatus(status)
	return s, nil
}

// SaveSubscription upserts the account's single subscription row.
func (r *Repo) SaveSubscription(ctx context.Context, s domain.Subscription) (domain.Subscription, error) {
	acc, err := accountOf(ctx)
	if err != nil {
		return domain.Subscription{}, err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.AccountID = acc
	s.UpdatedAt = r.now()
	if _, err := r.db.ExecContext(ctx, upsertSubscriptionSQL,
		s.ID, s.AccountID, s.PlanCode, string(s.Status), s.CurrentPeriodStart, s.CurrentPeriodEnd, s.UpdatedAt,
	); err != nil {
		return domain.Subscription{}, translate(err)
	}
	return r.GetSubscription(ctx)
}
