package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rentdesk/internal/app"
	"rentdesk/internal/domain"
)

func urlID(r *http.Request) string { return chi.URLParam(r, "id") }

// ---- generic item handlers ----

func getByID[T any](w http.ResponseWriter, r *http.Request, get func(context.Context, string) (T, error)) {
	v, err := get(r.Context(), urlID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, v)
}

func create[T any](w http.ResponseWriter, r *http.Request, mk func(context.Context, T) (T, error)) {
	var in T
	if !decode(w, r, &in) {
		return
	}
	out, err := mk(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// update decodes the body and pins its id to the URL before saving.
func update[T any](w http.ResponseWriter, r *http.Request, setID func(*T, string), save func(context.Context, T) (T, error)) {
	var in T
	if !decode(w, r, &in) {
		return
	}
	setID(&in, urlID(r))
	out, err := save(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func deleteByID(w http.ResponseWriter, r *http.Request, del func(context.Context, string) error) {
	if err := del(r.Context(), urlID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeList[T any](w http.ResponseWriter, r *http.Request, items []T, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, listOf(items))
}

// ---- properties ----

func (h *Handlers) listProperties(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Properties.List(r.Context())
	writeList(w, r, ps, err)
}

func (h *Handlers) createProperty(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.Properties.Create)
}

func (h *Handlers) getProperty(w http.ResponseWriter, r *http.Request) {
	getByID(w, r, h.Properties.Get)
}

func (h *Handlers) updateProperty(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(p *domain.Property, id string) { p.ID = id }, h.Properties.Update)
}

func (h *Handlers) deleteProperty(w http.ResponseWriter, r *http.Request) {
	deleteByID(w, r, h.Properties.Delete)
}

type broadcastRequest struct {
	Body string `json:"body"`
}

func (h *Handlers) broadcastProperty(w http.ResponseWriter, r *http.Request) {
	var in broadcastRequest
	if !decode(w, r, &in) {
		return
	}
	res, err := h.Notifications.BroadcastProperty(r.Context(), urlID(r), in.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ---- units ----

func (h *Handlers) listUnits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	us, err := h.Units.List(r.Context(), domain.UnitFilter{
		PropertyID: q.Get("property_id"),
		Status:     domain.UnitStatus(q.Get("status")),
	})
	writeList(w, r, us, err)
}

func (h *Handlers) createUnit(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.Units.Create)
}

func (h *Handlers) getUnit(w http.ResponseWriter, r *http.Request) {
	getByID(w, r, h.Units.Get)
}

func (h *Handlers) updateUnit(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(u *domain.Unit, id string) { u.ID = id }, h.Units.Update)
}

func (h *Handlers) deleteUnit(w http.ResponseWriter, r *http.Request) {
	deleteByID(w, r, h.Units.Delete)
}

// ---- tenants ----

type endLeaseRequest struct {
	End *time.Time `json:"end,omitempty"`
}

func (h *Handlers) listTenants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ts, err := h.Tenants.List(r.Context(), domain.TenantFilter{
		UnitID:     q.Get("unit_id"),
		PropertyID: q.Get("property_id"),
		Status:     domain.TenantStatus(q.Get("status")),
	})
	writeList(w, r, ts, err)
}

// createTenantRequest tells an explicit "rent_amount": 0 apart from an
// omitted one, which falls back to the unit's rent.
type createTenantRequest struct {
	domain.Tenant
	RentAmount *int64 `json:"rent_amount"`
}

func (h *Handlers) createTenant(w http.ResponseWriter, r *http.Request) {
	var in createTenantRequest
	if !decode(w, r, &in) {
		return
	}
	mk := h.Tenants.Create
	if in.RentAmount != nil {
		in.Tenant.RentAmount = *in.RentAmount
		mk = h.Tenants.CreateAtRent
	}
	t, err := mk(r.Context(), in.Tenant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) getTenant(w http.ResponseWriter, r *http.Request) {
	getByID(w, r, h.Tenants.Get)
}

func (h *Handlers) updateTenant(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(t *domain.Tenant, id string) { t.ID = id }, h.Tenants.Update)
}

func (h *Handlers) deleteTenant(w http.ResponseWriter, r *http.Request) {
	deleteByID(w, r, h.Tenants.Delete)
}

func (h *Handlers) endLease(w http.ResponseWriter, r *http.Request) {
	var in endLeaseRequest
	if r.ContentLength != 0 && !decode(w, r, &in) {
		return
	}
	t, err := h.Tenants.EndLease(r.Context(), urlID(r), in.End)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ---- sms ----

func (h *Handlers) sendSMS(w http.ResponseWriter, r *http.Request) {
	var in app.SendInput
	if !decode(w, r, &in) {
		return
	}
	m, err := h.Notifications.SendSMS(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handlers) remindOverdue(w http.ResponseWriter, r *http.Request) {
	res, err := h.Notifications.RemindOverdue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) listSMS(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		writeError(w, err)
		return
	}
	ms, err := h.Notifications.List(r.Context(), limit)
	writeList(w, r, ms, err)
}
