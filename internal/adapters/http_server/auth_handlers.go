package httpserver

import (
	"net/http"

	"rentdesk/internal/app"
	"rentdesk/internal/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handlers) signUp(w http.ResponseWriter, r *http.Request) {
	var in app.SignUpInput
	if !decode(w, r, &in) {
		return
	}
	s, err := h.Accounts.SignUp(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !decode(w, r, &in) {
		return
	}
	s, err := h.Accounts.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if !decode(w, r, &in) {
		return
	}
	s, err := h.Accounts.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if !decode(w, r, &in) {
		return
	}
	if err := h.Accounts.Logout(r.Context(), in.RefreshToken); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	p, err := h.Accounts.Me(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, p)
}

func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	us, err := h.Accounts.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, listOf(us))
}

func (h *Handlers) inviteAgent(w http.ResponseWriter, r *http.Request) {
	var in app.UserInput
	if !decode(w, r, &in) {
		return
	}
	u, err := h.Accounts.InviteAgent(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// ---- subscription & admin ----

type planRequest struct {
	PlanCode string `json:"plan_code"`
}

type statusRequest struct {
	Status domain.AccountStatus `json:"status"`
}

func (h *Handlers) listPlans(w http.ResponseWriter, r *http.Request) {
	writeCached(w, r, listOf(h.Subscriptions.Plans()))
}

func (h *Handlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	v, err := h.Subscriptions.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, v)
}

func (h *Handlers) changePlan(w http.ResponseWriter, r *http.Request) {
	var in planRequest
	if !decode(w, r, &in) {
		return
	}
	v, err := h.Subscriptions.ChangePlan(r.Context(), in.PlanCode)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Dashboards.Get(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, d)
}

func (h *Handlers) adminOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.Admin.Overview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, ov)
}

func (h *Handlers) adminAccounts(w http.ResponseWriter, r *http.Request) {
	as, err := h.Admin.ListAccounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeCached(w, r, listOf(as))
}

func (h *Handlers) adminSetStatus(w http.ResponseWriter, r *http.Request) {
	var in statusRequest
	if !decode(w, r, &in) {
		return
	}
	if err := h.Admin.SetAccountStatus(r.Context(), urlID(r), in.Status); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
