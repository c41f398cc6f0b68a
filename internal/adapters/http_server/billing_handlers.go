package httpserver

import (
	"net/http"
	"time"

	"rentdesk/internal/domain"
)

// ---- invoices & payments ----

type generateRequest struct {
	Period   string `json:"period"`
	TenantID string `json:"tenant_id,omitempty"`
}

func (h *Handlers) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	invs, err := h.Billing.ListInvoices(r.Context(), domain.InvoiceFilter{
		TenantID: q.Get("tenant_id"),
		Period:   q.Get("period"),
		Status:   domain.InvoiceStatus(q.Get("status")),
	})
	writeList(w, r, invs, err)
}

func (h *Handlers) createInvoice(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.Billing.CreateInvoice)
}

func (h *Handlers) getInvoice(w http.ResponseWriter, r *http.Request) {
	getByID(w, r, h.Billing.GetInvoice)
}

// generateInvoices bills one tenant when tenant_id is given, otherwise every
// active tenant of the account.
func (h *Handlers) generateInvoices(w http.ResponseWriter, r *http.Request) {
	var in generateRequest
	if !decode(w, r, &in) {
		return
	}
	if in.Period == "" {
		in.Period = domain.PeriodOf(time.Now().UTC())
	}
	if in.TenantID != "" {
		inv, err := h.Billing.GenerateInvoice(r.Context(), in.TenantID, in.Period)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
		return
	}
	run, err := h.Billing.GenerateMonthly(r.Context(), in.Period)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *Handlers) markOverdue(w http.ResponseWriter, r *http.Request) {
	n, err := h.Billing.MarkOverdue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

func (h *Handlers) voidInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Billing.VoidInvoice(r.Context(), urlID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

type paymentResponse struct {
	Payment domain.Payment `json:"payment"`
	Invoice domain.Invoice `json:"invoice"`
}

func (h *Handlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	var in domain.Payment
	if !decode(w, r, &in) {
		return
	}
	in.InvoiceID = urlID(r)
	p, inv, err := h.Billing.RecordPayment(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentResponse{Payment: p, Invoice: inv})
}

func (h *Handlers) listInvoicePayments(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Billing.ListPayments(r.Context(), domain.PaymentFilter{InvoiceID: urlID(r)})
	writeList(w, r, ps, err)
}

func (h *Handlers) listPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ps, err := h.Billing.ListPayments(r.Context(), domain.PaymentFilter{
		InvoiceID: q.Get("invoice_id"),
		TenantID:  q.Get("tenant_id"),
	})
	writeList(w, r, ps, err)
}

// ---- expenses ----

func (h *Handlers) listExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := domain.ExpenseFilter{PropertyID: q.Get("property_id")}
	for name, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		s := q.Get(name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			writeError(w, &domain.ValidationError{Field: name, Message: "must be YYYY-MM-DD"})
			return
		}
		*dst = &t
	}
	es, err := h.Expenses.List(r.Context(), f)
	writeList(w, r, es, err)
}

func (h *Handlers) createExpense(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.Expenses.Create)
}

func (h *Handlers) getExpense(w http.ResponseWriter, r *http.Request) {
	getByID(w, r, h.Expenses.Get)
}

func (h *Handlers) updateExpense(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(e *domain.Expense, id string) { e.ID = id }, h.Expenses.Update)
}

func (h *Handlers) deleteExpense(w http.ResponseWriter, r *http.Request) {
	deleteByID(w, r, h.Expenses.Delete)
}

// ---- maintenance ----

type transitionRequest struct {
	Status domain.TicketStatus `json:"status"`
	Cost   *int64              `json:"cost,omitempty"`
}

func (h *Handlers) listTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ts, err := h.Maintenance.List(r.Context(), domain.TicketFilter{
		PropertyID: q.Get("property_id"),
		Status:     domain.TicketStatus(q.Get("status")),
	})
	writeList(w, r, ts, err)
}

func (h *Handlers) createTicket(w http.ResponseWriter, r *http.Request) {
	create(w, r, h.Maintenance.Create)
}

func (h *Handlers) getTicket(w http.ResponseWriter, r *http.Request) {
	getByID(w, r, h.Maintenance.Get)
}

func (h *Handlers) updateTicket(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(t *domain.MaintenanceTicket, id string) { t.ID = id }, h.Maintenance.Update)
}

func (h *Handlers) deleteTicket(w http.ResponseWriter, r *http.Request) {
	deleteByID(w, r, h.Maintenance.Delete)
}

func (h *Handlers) transitionTicket(w http.ResponseWriter, r *http.Request) {
	var in transitionRequest
	if !decode(w, r, &in) {
		return
	}
	t, err := h.Maintenance.Transition(r.Context(), urlID(r), in.Status, in.Cost)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ---- utilities ----

func (h *Handlers) listReadings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rs, err := h.Utilities.List(r.Context(), domain.UtilityFilter{
		UnitID:   q.Get("unit_id"),
		Period:   q.Get("period"),
		Unbilled: queryBool(r, "unbilled"),
	})
	writeList(w, r, rs, err)
}

// createReading carries the previous meter value over when none is given,
// unless ?carry_over=false.
func (h *Handlers) createReading(w http.ResponseWriter, r *http.Request) {
	var in domain.UtilityReading
	if !decode(w, r, &in) {
		return
	}
	carry := in.PreviousReading == 0 && r.URL.Query().Get("carry_over") != "false"
	out, err := h.Utilities.Create(r.Context(), in, carry)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) getReading(w http.ResponseWriter, r *http.Request) {
	getByID(w, r, h.Utilities.Get)
}

func (h *Handlers) updateReading(w http.ResponseWriter, r *http.Request) {
	update(w, r, func(u *domain.UtilityReading, id string) { u.ID = id }, h.Utilities.Update)
}

func (h *Handlers) deleteReading(w http.ResponseWriter, r *http.Request) {
	deleteByID(w, r, h.Utilities.Delete)
}
