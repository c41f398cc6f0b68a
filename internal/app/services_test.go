package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/app"
	"rentdesk/internal/domain"
)

func newProperties(e *env) (*app.Properties, *app.Units, *app.Subscriptions) {
	subs := app.NewSubscriptions(e.store, e.store, testPlans, e.deps)
	return app.NewProperties(e.store, subs, e.deps), app.NewUnits(e.store, subs, e.deps), subs
}

func TestGetProperty_CacheMissThenHit(t *testing.T) {
	e := newEnv()
	props, _, _ := newProperties(e)

	p, err := props.Create(e.ctx, domain.Property{Name: "Sunrise Court"})
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyResidential, p.Kind)

	got, err := props.Get(e.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sunrise Court", got.Name)
	assert.True(t, e.cache.has("property:acc-1:"+p.ID))

	// Second read comes from the cache.
	_, err = props.Get(e.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, e.store.calls["GetProperty"])
}

func TestUpdateProperty_EvictsAndPublishes(t *testing.T) {
	e := newEnv()
	props, _, _ := newProperties(e)
	p, err := props.Create(e.ctx, domain.Property{Name: "Old"})
	require.NoError(t, err)

	_, err = props.List(e.ctx)
	require.NoError(t, err)
	_, err = props.Get(e.ctx, p.ID)
	require.NoError(t, err)
	require.True(t, e.cache.has("property:list:acc-1"))

	p.Name = "New"
	_, err = props.Update(e.ctx, p)
	require.NoError(t, err)

	assert.False(t, e.cache.has("property:list:acc-1"))
	assert.False(t, e.cache.has("property:acc-1:"+p.ID))
	assert.Contains(t, e.pub.entities(), "property:update")

	got, err := props.Get(e.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
}

func TestDeleteProperty_DropsCascadedLists(t *testing.T) {
	e := newEnv()
	props, units, _ := newProperties(e)
	expenses := app.NewExpenses(e.store, e.deps)
	p, err := props.Create(e.ctx, domain.Property{Name: "Court"})
	require.NoError(t, err)
	_, err = units.Create(e.ctx, domain.Unit{PropertyID: p.ID, Label: "A1", RentAmount: 1000})
	require.NoError(t, err)
	_, err = expenses.Create(e.ctx, domain.Expense{PropertyID: p.ID, Category: "repairs", Amount: 500, IncurredOn: testNow})
	require.NoError(t, err)

	got, err := units.List(e.ctx, domain.UnitFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, err = expenses.List(e.ctx, domain.ExpenseFilter{})
	require.NoError(t, err)
	require.True(t, e.cache.has("unit:list:acc-1"))
	require.True(t, e.cache.has("expense:list:acc-1"))

	require.NoError(t, props.Delete(e.ctx, p.ID))

	assert.False(t, e.cache.has("unit:list:acc-1"))
	assert.False(t, e.cache.has("expense:list:acc-1"))
	assert.Contains(t, e.pub.entities(), "unit:delete")
	assert.Contains(t, e.pub.entities(), "expense:delete")

	got, err = units.List(e.ctx, domain.UnitFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCreateProperty_Validation(t *testing.T) {
	e := newEnv()
	props, _, _ := newProperties(e)
	_, err := props.Create(e.ctx, domain.Property{Name: " "})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)
}

func TestCreateProperty_PlanLimit(t *testing.T) {
	e := newEnv()
	props, _, _ := newProperties(e)
	_, err := props.Create(e.ctx, domain.Property{Name: "One"})
	require.NoError(t, err)

	// starter allows one property in this catalog
	_, err = props.Create(e.ctx, domain.Property{Name: "Two"})
	assert.ErrorIs(t, err, domain.ErrPlanLimit)
}

func TestCreateUnit_PlanLimitAndExpiredTrial(t *testing.T) {
	e := newEnv()
	props, units, _ := newProperties(e)
	p, err := props.Create(e.ctx, domain.Property{Name: "Court"})
	require.NoError(t, err)

	for _, l := range []string{"A1", "A2"} {
		_, err := units.Create(e.ctx, domain.Unit{PropertyID: p.ID, Label: l, RentAmount: 100})
		require.NoError(t, err)
	}
	_, err = units.Create(e.ctx, domain.Unit{PropertyID: p.ID, Label: "A3"})
	assert.ErrorIs(t, err, domain.ErrPlanLimit)

	// An expired trial blocks creation even below the limits.
	e2 := newEnv()
	sub := e2.store.subs[e2.acc]
	sub.CurrentPeriodEnd = testNow.Add(-time.Hour)
	e2.store.subs[e2.acc] = sub
	props2, _, _ := newProperties(e2)
	_, err = props2.Create(e2.ctx, domain.Property{Name: "Late"})
	assert.ErrorIs(t, err, domain.ErrPlanLimit)
}

func TestChangePlan_OwnerOnly(t *testing.T) {
	e := newEnv()
	_, _, subs := newProperties(e)

	agent := domain.WithScope(context.Background(), domain.Scope{AccountID: e.acc, UserID: "u-2", Role: domain.RoleAgent})
	_, err := subs.ChangePlan(agent, "growth")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = subs.ChangePlan(e.ctx, "platinum")
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Warm the cache, then switch.
	cur, err := subs.Current(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, "starter", cur.Plan.Code)

	v, err := subs.ChangePlan(e.ctx, "growth")
	require.NoError(t, err)
	assert.Equal(t, domain.SubActive, v.Status)
	assert.Equal(t, testNow.AddDate(0, 1, 0), v.CurrentPeriodEnd)

	cur, err = subs.Current(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, "growth", cur.Plan.Code)
}

func TestCheck_ActiveSubscriptionRenewsMonthly(t *testing.T) {
	e := newEnv()
	e.store.subs[e.acc] = domain.Subscription{
		ID: "sub-1", AccountID: e.acc, PlanCode: "starter", Status: domain.SubActive,
		CurrentPeriodStart: testNow, CurrentPeriodEnd: testNow.AddDate(0, 1, 0),
	}
	for _, id := range []string{"sms-1", "sms-2"} {
		e.store.sms[id] = domain.SMSMessage{ID: id, AccountID: e.acc, Status: domain.SMSSent, CreatedAt: testNow}
	}
	_, _, subs := newProperties(e)
	assert.ErrorIs(t, subs.Check(e.ctx, app.ResourceSMS, 1), domain.ErrPlanLimit)

	// two months on, with no renewal stored yet
	e2 := *e
	e2.deps.Now = func() time.Time { return testNow.AddDate(0, 2, 1) }
	_, _, later := newProperties(&e2)
	require.NoError(t, later.Check(e.ctx, app.ResourceSMS, 1))
	require.NoError(t, later.Check(e.ctx, app.ResourceProperties, 1))
}

func TestScopedServices_RequireScope(t *testing.T) {
	e := newEnv()
	props, _, _ := newProperties(e)
	_, err := props.List(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestForeignAccountLooksMissing(t *testing.T) {
	e := newEnv()
	props, _, _ := newProperties(e)
	p, err := props.Create(e.ctx, domain.Property{Name: "Mine"})
	require.NoError(t, err)

	other := domain.WithScope(context.Background(), domain.Scope{AccountID: "acc-2", UserID: "u-9", Role: domain.RoleOwner})
	_, err = props.Get(other, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, props.Delete(other, p.ID), domain.ErrNotFound)
}

func TestTenants_CreateOccupiesAndEndLeaseVacates(t *testing.T) {
	e := newEnv()
	props, units, _ := newProperties(e)
	tenants := app.NewTenants(e.store, e.deps)

	p, err := props.Create(e.ctx, domain.Property{Name: "Court"})
	require.NoError(t, err)
	u, err := units.Create(e.ctx, domain.Unit{PropertyID: p.ID, Label: "A1", RentAmount: 1500000})
	require.NoError(t, err)
	assert.Equal(t, domain.UnitVacant, u.Status)

	tn, err := tenants.Create(e.ctx, domain.Tenant{
		UnitID: u.ID, FullName: "Ada Lovelace", Phone: "+254 700 000 001",
		LeaseStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TenantActive, tn.Status)
	assert.Equal(t, int64(1500000), tn.RentAmount, "rent defaults to the unit's")
	assert.Equal(t, "+254700000001", tn.Phone)
	assert.Contains(t, e.pub.entities(), "tenant:insert")
	assert.Contains(t, e.pub.entities(), "unit:update")

	got, err := units.Get(e.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitOccupied, got.Status)

	_, err = tenants.Create(e.ctx, domain.Tenant{UnitID: u.ID, FullName: "Second", LeaseStart: testNow})
	assert.ErrorIs(t, err, domain.ErrConflict)

	ended, err := tenants.EndLease(e.ctx, tn.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TenantEnded, ended.Status)
	require.NotNil(t, ended.LeaseEnd)

	got, err = units.Get(e.ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitVacant, got.Status, "unit cache was evicted by the lease end")
}

func TestTenants_ZeroRentIsKeptWhenGiven(t *testing.T) {
	e := newEnv()
	props, units, _ := newProperties(e)
	tenants := app.NewTenants(e.store, e.deps)
	p, err := props.Create(e.ctx, domain.Property{Name: "Court"})
	require.NoError(t, err)
	a1, err := units.Create(e.ctx, domain.Unit{PropertyID: p.ID, Label: "A1", RentAmount: 900000})
	require.NoError(t, err)
	a2, err := units.Create(e.ctx, domain.Unit{PropertyID: p.ID, Label: "A2", RentAmount: 900000})
	require.NoError(t, err)

	caretaker, err := tenants.CreateAtRent(e.ctx, domain.Tenant{UnitID: a1.ID, FullName: "Caretaker", LeaseStart: testNow})
	require.NoError(t, err)
	assert.Zero(t, caretaker.RentAmount)

	defaulted, err := tenants.Create(e.ctx, domain.Tenant{UnitID: a2.ID, FullName: "Grace", LeaseStart: testNow})
	require.NoError(t, err)
	assert.Equal(t, int64(900000), defaulted.RentAmount)
}

func TestMaintenance_Transitions(t *testing.T) {
	e := newEnv()
	props, _, _ := newProperties(e)
	mt := app.NewMaintenance(e.store, e.deps)
	p, err := props.Create(e.ctx, domain.Property{Name: "Court"})
	require.NoError(t, err)

	tk, err := mt.Create(e.ctx, domain.MaintenanceTicket{PropertyID: p.ID, Title: "Leaking tap", Status: domain.TicketClosed})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketOpen, tk.Status, "new tickets always start open")
	assert.Equal(t, domain.PriorityMedium, tk.Priority)

	_, err = mt.Transition(e.ctx, tk.ID, domain.TicketResolved, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = mt.Transition(e.ctx, tk.ID, domain.TicketInProgress, nil)
	require.NoError(t, err)
	cost := int64(250000)
	done, err := mt.Transition(e.ctx, tk.ID, domain.TicketResolved, &cost)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketResolved, done.Status)
	assert.Equal(t, cost, done.Cost)
	require.NotNil(t, done.ResolvedAt)
	assert.Equal(t, testNow, *done.ResolvedAt)
}

func TestUtilities_CarryOverPreviousReading(t *testing.T) {
	e := newEnv()
	props, units, _ := newProperties(e)
	ut := app.NewUtilities(e.store, e.deps)
	p, err := props.Create(e.ctx, domain.Property{Name: "Court"})
	require.NoError(t, err)
	u, err := units.Create(e.ctx, domain.Unit{PropertyID: p.ID, Label: "A1"})
	require.NoError(t, err)

	_, err = ut.Create(e.ctx, domain.UtilityReading{UnitID: u.ID, Kind: domain.UtilityWater, Period: "2025-01", PreviousReading: 0, CurrentReading: 12, Rate: 5000}, false)
	require.NoError(t, err)

	r, err := ut.Create(e.ctx, domain.UtilityReading{UnitID: u.ID, Kind: domain.UtilityWater, Period: "2025-02", CurrentReading: 15, Rate: 5000}, true)
	require.NoError(t, err)
	assert.Equal(t, 12.0, r.PreviousReading)
	assert.Equal(t, int64(15000), r.Charge())

	_, err = ut.Create(e.ctx, domain.UtilityReading{UnitID: u.ID, Kind: domain.UtilityWater, Period: "2025-03", CurrentReading: 10, Rate: 5000}, true)
	assert.ErrorIs(t, err, domain.ErrValidation, "meter cannot run backwards")
}

func TestDashboard_AggregatesAndCaches(t *testing.T) {
	e := newEnv()
	e.store.subs[e.acc] = domain.Subscription{ID: "sub-1", AccountID: e.acc, PlanCode: "growth", Status: domain.SubActive, CurrentPeriodEnd: testNow.AddDate(0, 1, 0)}
	props, units, _ := newProperties(e)
	tenants := app.NewTenants(e.store, e.deps)
	dash := app.NewDashboards(e.store, e.deps)

	p, err := props.Create(e.ctx, domain.Property{Name: "Court"})
	require.NoError(t, err)
	var first domain.Unit
	for i, l := range []string{"A1", "A2", "A3"} {
		u, err := units.Create(e.ctx, domain.Unit{PropertyID: p.ID, Label: l, RentAmount: 1000})
		require.NoError(t, err)
		if i == 0 {
			first = u
		}
	}
	_, err = tenants.Create(e.ctx, domain.Tenant{UnitID: first.ID, FullName: "Ada", LeaseStart: testNow})
	require.NoError(t, err)

	d, err := dash.Get(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Properties)
	assert.Equal(t, 3, d.Units)
	assert.Equal(t, 1, d.OccupiedUnits)
	assert.Equal(t, 33.3, d.OccupancyRate)
	assert.Equal(t, "2025-03", d.Period)
	assert.True(t, e.cache.has("dashboard:acc-1"))

	// Any change in the account drops the dashboard.
	_, err = props.Create(e.ctx, domain.Property{Name: "Annex"})
	require.NoError(t, err)
	assert.False(t, e.cache.has("dashboard:acc-1"))
}
