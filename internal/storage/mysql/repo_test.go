package mysql

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/domain"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	r := New(db)
	r.now = func() time.Time { return fixedNow }
	return r, mock
}

func ownerCtx(acc string) context.Context {
	return domain.WithScope(context.Background(), domain.Scope{AccountID: acc, UserID: "u-1", Role: domain.RoleOwner})
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestRepo_NoScopeIsUnauthorized(t *testing.T) {
	r, mock := newMockRepo(t)

	_, err := r.ListProperties(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = r.CreateUnit(context.Background(), domain.Unit{PropertyID: "p-1"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_CreatePropertyStampsCallerAccount(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectExec(q("INSERT INTO properties")).
		WithArgs(sqlmock.AnyArg(), "acc-1", "Sunrise Court", nil, "Nairobi", "residential", nil, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p, err := r.CreateProperty(ownerCtx("acc-1"), domain.Property{
		AccountID: "acc-someone-else",
		Name:      "Sunrise Court",
		City:      "Nairobi",
		Kind:      domain.PropertyResidential,
	})
	require.NoError(t, err)
	assert.Equal(t, "acc-1", p.AccountID)
	assert.NotEmpty(t, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_GetPropertyFiltersByAccount(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(q("FROM properties\n WHERE account_id = ? AND id = ?")).
		WithArgs("acc-1", "p-9").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := r.GetProperty(ownerCtx("acc-1"), "p-9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_ListUnitsAppliesFilters(t *testing.T) {
	r, mock := newMockRepo(t)

	cols := []string{"id", "account_id", "property_id", "label", "bedrooms", "rent_amount", "status", "created_at", "updated_at"}
	mock.ExpectQuery(q("WHERE account_id = ? AND property_id = ? AND status = ? ORDER BY property_id, label")).
		WithArgs("acc-1", "p-1", "vacant").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("u-1", "acc-1", "p-1", "A1", 2, int64(1500000), "vacant", fixedNow, fixedNow))

	units, err := r.ListUnits(ownerCtx("acc-1"), domain.UnitFilter{PropertyID: "p-1", Status: domain.UnitVacant})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "A1", units[0].Label)
	assert.Equal(t, domain.UnitVacant, units[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_CreateUnitRejectsForeignProperty(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(q("SELECT 1 FROM properties WHERE id = ? AND account_id = ?")).
		WithArgs("p-other", "acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	_, err := r.CreateUnit(ownerCtx("acc-1"), domain.Unit{PropertyID: "p-other", Label: "B2", Status: domain.UnitVacant})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_DuplicateKeyIsConflict(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(q("SELECT 1 FROM properties")).
		WithArgs("p-1", "acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec(q("INSERT INTO units")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'p-1-A1'"})

	_, err := r.CreateUnit(ownerCtx("acc-1"), domain.Unit{PropertyID: "p-1", Label: "A1", Status: domain.UnitVacant})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_CreateTenantOnLetUnitConflicts(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM units WHERE id = ? AND account_id = ? FOR UPDATE")).
		WithArgs("u-1", "acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-1"))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM tenants")).
		WithArgs("u-1", "acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectRollback()

	_, err := r.CreateTenant(ownerCtx("acc-1"), domain.Tenant{
		UnitID: "u-1", FullName: "Ada", LeaseStart: fixedNow, Status: domain.TenantActive,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_CreateTenantOccupiesUnit(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("FOR UPDATE")).
		WithArgs("u-1", "acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-1"))
	mock.ExpectQuery(q("SELECT COUNT(*) FROM tenants")).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(q("INSERT INTO tenants")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE units SET status = ?")).
		WithArgs("occupied", fixedNow, "u-1", "acc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tn, err := r.CreateTenant(ownerCtx("acc-1"), domain.Tenant{
		UnitID: "u-1", FullName: "Ada", LeaseStart: fixedNow, Status: domain.TenantActive,
	})
	require.NoError(t, err)
	assert.Equal(t, "acc-1", tn.AccountID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_RecordPaymentSettlesInvoice(t *testing.T) {
	r, mock := newMockRepo(t)
	due := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	invCols := []string{"id", "account_id", "tenant_id", "unit_id", "period", "issue_date", "due_date",
		"total", "amount_paid", "status", "created_at", "updated_at"}

	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM invoices\n WHERE account_id = ? AND id = ? FOR UPDATE")).
		WithArgs("acc-1", "inv-1").
		WillReturnRows(sqlmock.NewRows(invCols).
			AddRow("inv-1", "acc-1", "t-1", "u-1", "2025-03", fixedNow, due, int64(1000), int64(0), "unpaid", fixedNow, fixedNow))
	mock.ExpectQuery(q("FROM invoice_lines")).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"invoice_id", "description", "amount"}).AddRow("inv-1", "Rent", int64(1000)))
	mock.ExpectExec(q("INSERT INTO payments")).
		WithArgs(sqlmock.AnyArg(), "acc-1", "inv-1", "t-1", int64(400), "mobile", "MPESA123", fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE invoices SET amount_paid = ?")).
		WithArgs(int64(400), "partially_paid", fixedNow, "inv-1", "acc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p, inv, err := r.RecordPayment(ownerCtx("acc-1"), domain.Payment{
		InvoiceID: "inv-1", Amount: 400, Method: domain.PayMobile, Reference: "MPESA123",
	}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "t-1", p.TenantID)
	assert.Equal(t, int64(600), inv.Balance())
	assert.Equal(t, domain.InvoicePartiallyPaid, inv.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_RecordPaymentRejectsOverpayment(t *testing.T) {
	r, mock := newMockRepo(t)

	invCols := []string{"id", "account_id", "tenant_id", "unit_id", "period", "issue_date", "due_date",
		"total", "amount_paid", "status", "created_at", "updated_at"}
	mock.ExpectBegin()
	mock.ExpectQuery(q("FROM invoices")).
		WillReturnRows(sqlmock.NewRows(invCols).
			AddRow("inv-1", "acc-1", "t-1", "u-1", "2025-03", fixedNow, fixedNow, int64(1000), int64(900), "partially_paid", fixedNow, fixedNow))
	mock.ExpectQuery(q("FROM invoice_lines")).
		WillReturnRows(sqlmock.NewRows([]string{"invoice_id", "description", "amount"}))
	mock.ExpectRollback()

	_, _, err := r.RecordPayment(ownerCtx("acc-1"), domain.Payment{InvoiceID: "inv-1", Amount: 200, Method: domain.PayCash}, fixedNow)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_AdminReadsRequireAdmin(t *testing.T) {
	r, mock := newMockRepo(t)

	_, err := r.ListAccounts(ownerCtx("acc-1"))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	adminCtx := domain.WithScope(context.Background(), domain.Scope{AccountID: "platform", Role: domain.RoleAdmin})
	mock.ExpectExec(q("UPDATE accounts SET status = ? WHERE id = ?")).
		WithArgs("suspended", "acc-7").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err = r.SetAccountStatus(adminCtx, "acc-7", domain.AccountSuspended)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_MarkOverdueComparesCalendarDays(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectExec(q("UPDATE invoices")).
		WithArgs(fixedNow, "acc-1", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := r.MarkOverdue(ownerCtx("acc-1"), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_VoidInvoiceGuardsAgainstPayments(t *testing.T) {
	r, mock := newMockRepo(t)
	invCols := []string{"id", "account_id", "tenant_id", "unit_id", "period", "issue_date", "due_date",
		"total", "amount_paid", "status", "created_at", "updated_at"}

	// a payment recorded after the caller looked: the guarded update matches nothing
	mock.ExpectExec(q("WHERE id = ? AND account_id = ? AND amount_paid = 0 AND status <> 'void'")).
		WithArgs(fixedNow, "inv-1", "acc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("FROM invoices\n WHERE account_id = ? AND id = ?")).
		WithArgs("acc-1", "inv-1").
		WillReturnRows(sqlmock.NewRows(invCols).
			AddRow("inv-1", "acc-1", "t-1", "u-1", "2025-03", fixedNow, fixedNow, int64(1000), int64(300), "partially_paid", fixedNow, fixedNow))
	mock.ExpectQuery(q("FROM invoice_lines")).
		WillReturnRows(sqlmock.NewRows([]string{"invoice_id", "description", "amount"}))

	_, err := r.VoidInvoice(ownerCtx("acc-1"), "inv-1")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_VoidInvoiceIsIdempotent(t *testing.T) {
	r, mock := newMockRepo(t)
	invCols := []string{"id", "account_id", "tenant_id", "unit_id", "period", "issue_date", "due_date",
		"total", "amount_paid", "status", "created_at", "updated_at"}

	mock.ExpectExec(q("UPDATE invoices SET status = 'void'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("FROM invoices")).
		WillReturnRows(sqlmock.NewRows(invCols).
			AddRow("inv-1", "acc-1", "t-1", "u-1", "2025-03", fixedNow, fixedNow, int64(1000), int64(0), "void", fixedNow, fixedNow))
	mock.ExpectQuery(q("FROM invoice_lines")).
		WillReturnRows(sqlmock.NewRows([]string{"invoice_id", "description", "amount"}))

	inv, err := r.VoidInvoice(ownerCtx("acc-1"), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceVoid, inv.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
