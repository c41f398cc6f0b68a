package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"rentdesk/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
func valPtr(p *string) any {
	if p == nil || *p == "" {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptrNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
func timeNull(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface{ Scan(dest ...any) error }

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Repo {
	return &Repo{db: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Second) }}
}

var _ domain.Store = (*Repo)(nil)

// Open connects with the options the repository relies on: parsed times in
// UTC and found-rows semantics so an UPDATE that changes nothing still counts
// the matched row.
func Open(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// accountOf returns the caller's account id for row filtering and stamping.
func accountOf(ctx context.Context) (string, error) {
	s, err := domain.ScopeFrom(ctx)
	if err != nil {
		return "", err
	}
	return s.AccountID, nil
}

func requireAdmin(ctx context.Context) error {
	s, err := domain.ScopeFrom(ctx)
	if err != nil {
		return err
	}
	if !s.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

// where accumulates predicates. The account predicate always comes first so no
// scoped statement can be built without it.
type where struct {
	preds []string
	args  []any
}

func scopedWhere(col, accountID string) *where {
	return &where{preds: []string{col + " = ?"}, args: []any{accountID}}
}

func (w *where) eq(col, v string) *where {
	if v != "" {
		w.preds = append(w.preds, col+" = ?")
		w.args = append(w.args, v)
	}
	return w
}

func (w *where) add(pred string, args ...any) *where {
	w.preds = append(w.preds, pred)
	w.args = append(w.args, args...)
	return w
}

func (w *where) String() string { return " WHERE " + strings.Join(w.preds, " AND ") }

// translate maps driver errors onto domain sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case 1062:
			return fmt.Errorf("%w: %s", domain.ErrConflict, me.Message)
		case 1451:
			return fmt.Errorf("%w: row is still referenced", domain.ErrConflict)
		case 1452:
			return fmt.Errorf("%w: referenced row does not exist", domain.ErrNotFound)
		case 3819:
			return fmt.Errorf("%w: %s", domain.ErrValidation, me.Message)
		}
	}
	return err
}

// exactlyOne turns a zero-row UPDATE/DELETE into ErrNotFound.
func exactlyOne(res sql.Result, err error) error {
	if err != nil {
		return translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ensureOwned checks that row id of table belongs to the account. Rows of
// other accounts are indistinguishable from missing ones.
func ensureOwned(ctx context.Context, q querier, table, id, accountID string) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ? AND account_id = ?", id, accountID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s %s: %w", table, id, domain.ErrNotFound)
		}
		return err
	}
	return nil
}

func countRows(ctx context.Context, q querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func sumRows(ctx context.Context, q querier, query string, args ...any) (int64, error) {
	var n sql.NullInt64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n.Int64, nil
}
