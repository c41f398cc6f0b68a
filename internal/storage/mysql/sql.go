package mysql

// -----------------------------------------------------------------------------
// ACCOUNTS & SESSIONS
// -----------------------------------------------------------------------------

const insertAccountSQL = `
INSERT INTO accounts (id, name, slug, phone, status, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

const insertUserSQL = `
INSERT INTO users (id, account_id, email, full_name, phone, role, password_hash, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const selectUserSQL = `
SELECT id, account_id, email, full_name, phone, role, password_hash, created_at
FROM users
`

const selectAccountSQL = `
SELECT id, name, slug, phone, status, created_at
FROM accounts
`

const insertSessionSQL = `
INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)
`

const upsertSubscriptionSQL = `
INSERT INTO subscriptions
  (id, account_id, plan_code, status, current_period_start, current_period_end, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  plan_code            = VALUES(plan_code),
  status               = VALUES(status),
  current_period_start = VALUES(current_period_start),
  current_period_end   = VALUES(current_period_end),
  updated_at           = VALUES(updated_at)
`

// -----------------------------------------------------------------------------
// PROPERTIES, UNITS, TENANTS
// -----------------------------------------------------------------------------

const selectPropertySQL = `
SELECT id, account_id, name, address, city, kind, notes, created_at, updated_at
FROM properties
`

const insertPropertySQL = `
INSERT INTO properties (id, account_id, name, address, city, kind, notes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updatePropertySQL = `
UPDATE properties
SET name = ?, address = ?, city = ?, kind = ?, notes = ?, updated_at = ?
WHERE id = ? AND account_id = ?
`

const selectUnitSQL = `
SELECT id, account_id, property_id, label, bedrooms, rent_amount, status, created_at, updated_at
FROM units
`

const insertUnitSQL = `
INSERT INTO units (id, account_id, property_id, label, bedrooms, rent_amount, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateUnitSQL = `
UPDATE units
SET property_id = ?, label = ?, bedrooms = ?, rent_amount = ?, status = ?, updated_at = ?
WHERE id = ? AND account_id = ?
`

// Tenants are listed through units so a property filter can be applied.
const selectTenantSQL = `
SELECT t.id, t.account_id, t.unit_id, t.full_name, t.email, t.phone, t.national_id,
       t.lease_start, t.lease_end, t.rent_amount, t.deposit, t.status, t.created_at, t.updated_at
FROM tenants t
JOIN units u ON u.id = t.unit_id
`

const insertTenantSQL = `
INSERT INTO tenants
  (id, account_id, unit_id, full_name, email, phone, national_id, lease_start, lease_end,
   rent_amount, deposit, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateTenantSQL = `
UPDATE tenants
SET full_name = ?, email = ?, phone = ?, national_id = ?, lease_start = ?, lease_end = ?,
    rent_amount = ?, deposit = ?, updated_at = ?
WHERE id = ? AND account_id = ?
`

// -----------------------------------------------------------------------------
// BILLING
// -----------------------------------------------------------------------------

const selectInvoiceSQL = `
SELECT id, account_id, tenant_id, unit_id, period, issue_date, due_date, total, amount_paid,
       status, created_at, updated_at
FROM invoices
`

// the payment guard lives in the WHERE so a concurrent payment wins
const voidInvoiceSQL = `
UPDATE invoices SET status = 'void', updated_at = ?
WHERE id = ? AND account_id = ? AND amount_paid = 0 AND status <> 'void'
`

const insertInvoiceSQL = `
INSERT INTO invoices
  (id, account_id, tenant_id, unit_id, period, issue_date, due_date, total, amount_paid,
   status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
`

const insertLinePrefix = "INSERT INTO invoice_lines (invoice_id, position, description, amount) VALUES "

const selectLinesSQL = `
SELECT invoice_id, description, amount FROM invoice_lines
`

const insertPaymentSQL = `
INSERT INTO payments (id, account_id, invoice_id, tenant_id, amount, method, reference, paid_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectPaymentSQL = `
SELECT id, account_id, invoice_id, tenant_id, amount, method, reference, paid_at, created_at
FROM payments
`

const markOverdueSQL = `
UPDATE invoices
SET status = 'overdue', updated_at = ?
WHERE account_id = ? AND status IN ('unpaid', 'partially_paid') AND due_date < ?
`

const selectExpenseSQL = `
SELECT id, account_id, property_id, category, description, amount, incurred_on, created_at
FROM expenses
`

const insertExpenseSQL = `
INSERT INTO expenses (id, account_id, property_id, category, description, amount, incurred_on, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const updateExpenseSQL = `
UPDATE expenses
SET property_id = ?, category = ?, description = ?, amount = ?, incurred_on = ?
WHERE id = ? AND account_id = ?
`

// -----------------------------------------------------------------------------
// MAINTENANCE, UTILITIES, SMS
// -----------------------------------------------------------------------------

const selectTicketSQL = `
SELECT id, account_id, property_id, unit_id, tenant_id, title, description, priority, status,
       cost, resolved_at, created_at, updated_at
FROM maintenance_tickets
`

const insertTicketSQL = `
INSERT INTO maintenance_tickets
  (id, account_id, property_id, unit_id, tenant_id, title, description, priority, status,
   cost, resolved_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateTicketSQL = `
UPDATE maintenance_tickets
SET unit_id = ?, tenant_id = ?, title = ?, description = ?, priority = ?, status = ?,
    cost = ?, resolved_at = ?, updated_at = ?
WHERE id = ? AND account_id = ?
`

const selectReadingSQL = `
SELECT id, account_id, unit_id, kind, period, previous_reading, current_reading, rate,
       invoice_id, created_at
FROM utility_readings
`

const insertReadingSQL = `
INSERT INTO utility_readings
  (id, account_id, unit_id, kind, period, previous_reading, current_reading, rate, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateReadingSQL = `
UPDATE utility_readings
SET kind = ?, period = ?, previous_reading = ?, current_reading = ?, rate = ?
WHERE id = ? AND account_id = ? AND invoice_id IS NULL
`

const insertSMSSQL = `
INSERT INTO sms_messages (id, account_id, tenant_id, recipient, body, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

const selectSMSSQL = `
SELECT id, account_id, tenant_id, recipient, body, status, provider_ref, error, created_at
FROM sms_messages
`

// -----------------------------------------------------------------------------
// PLATFORM (admin console)
// -----------------------------------------------------------------------------

const platformOverviewSQL = `
SELECT
  (SELECT COUNT(*) FROM accounts),
  (SELECT COUNT(*) FROM accounts WHERE status = 'suspended'),
  (SELECT COUNT(*) FROM users),
  (SELECT COUNT(*) FROM properties),
  (SELECT COUNT(*) FROM units),
  (SELECT COUNT(*) FROM tenants WHERE status = 'active'),
  (SELECT COALESCE(SUM(total), 0) FROM invoices WHERE status <> 'void'),
  (SELECT COALESCE(SUM(amount), 0) FROM payments)
`

const listAccountsSQL = `
SELECT a.id, a.name, a.slug, a.phone, a.status, a.created_at,
       s.plan_code, s.status, s.current_period_end,
       (SELECT COUNT(*) FROM properties p WHERE p.account_id = a.id),
       (SELECT COUNT(*) FROM units u WHERE u.account_id = a.id)
FROM accounts a
LEFT JOIN subscriptions s ON s.account_id = a.id
ORDER BY a.created_at DESC, a.id
`
