package app

import (
	"context"

	"rentdesk/internal/domain"
)

type expenseStore interface {
	CreateExpense(ctx context.Context, e domain.Expense) (domain.Expense, error)
	GetExpense(ctx context.Context, id string) (domain.Expense, error)
	ListExpenses(ctx context.Context, f domain.ExpenseFilter) ([]domain.Expense, error)
	UpdateExpense(ctx context.Context, e domain.Expense) (domain.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
}

type Expenses struct {
	base
	repo expenseStore
}

func NewExpenses(r expenseStore, d Deps) *Expenses {
	return &Expenses{base: d.base(), repo: r}
}

func (s *Expenses) Create(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Expense{}, err
	}
	if e.IncurredOn.IsZero() {
		e.IncurredOn = s.now()
	}
	if err := e.Validate(); err != nil {
		return domain.Expense{}, err
	}
	out, err := s.repo.CreateExpense(ctx, e)
	if err != nil {
		return domain.Expense{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityExpense, out.ID, domain.OpInsert)
	return out, nil
}

func (s *Expenses) Get(ctx context.Context, id string) (domain.Expense, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Expense{}, err
	}
	return cached(ctx, &s.base, itemKey(domain.EntityExpense, sc.AccountID, id), func() (domain.Expense, error) {
		return s.repo.GetExpense(ctx, id)
	})
}

func (s *Expenses) List(ctx context.Context, f domain.ExpenseFilter) ([]domain.Expense, error) {
	sc, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if !f.Empty() {
		return s.repo.ListExpenses(ctx, f)
	}
	return cached(ctx, &s.base, listKey(domain.EntityExpense, sc.AccountID), func() ([]domain.Expense, error) {
		return s.repo.ListExpenses(ctx, f)
	})
}

func (s *Expenses) Update(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Expense{}, err
	}
	if err := e.Validate(); err != nil {
		return domain.Expense{}, err
	}
	out, err := s.repo.UpdateExpense(ctx, e)
	if err != nil {
		return domain.Expense{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityExpense, out.ID, domain.OpUpdate)
	return out, nil
}

func (s *Expenses) Delete(ctx context.Context, id string) error {
	sc, err := scope(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, sc.AccountID, domain.EntityExpense, id, domain.OpDelete)
	return nil
}

type Maintenance struct {
	base
	repo domain.MaintenanceRepository
}

func NewMaintenance(r domain.MaintenanceRepository, d Deps) *Maintenance {
	return &Maintenance{base: d.base(), repo: r}
}

// Create opens a ticket. New tickets always start open.
func (s *Maintenance) Create(ctx context.Context, t domain.MaintenanceTicket) (domain.MaintenanceTicket, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	t.Status = domain.TicketOpen
	t.ResolvedAt = nil
	if err := t.Validate(); err != nil {
		return domain.MaintenanceTicket{}, err
	}
	out, err := s.repo.CreateTicket(ctx, t)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityMaintenance, out.ID, domain.OpInsert)
	return out, nil
}

func (s *Maintenance) Get(ctx context.Context, id string) (domain.MaintenanceTicket, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	return cached(ctx, &s.base, itemKey(domain.EntityMaintenance, sc.AccountID, id), func() (domain.MaintenanceTicket, error) {
		return s.repo.GetTicket(ctx, id)
	})
}

func (s *Maintenance) List(ctx context.Context, f domain.TicketFilter) ([]domain.MaintenanceTicket, error) {
	sc, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if !f.Empty() {
		return s.repo.ListTickets(ctx, f)
	}
	return cached(ctx, &s.base, listKey(domain.EntityMaintenance, sc.AccountID), func() ([]domain.MaintenanceTicket, error) {
		return s.repo.ListTickets(ctx, f)
	})
}

// Update edits the ticket's details. Status changes go through Transition.
func (s *Maintenance) Update(ctx context.Context, t domain.MaintenanceTicket) (domain.MaintenanceTicket, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	cur, err := s.repo.GetTicket(ctx, t.ID)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	t.PropertyID = cur.PropertyID
	t.Status, t.ResolvedAt = cur.Status, cur.ResolvedAt
	if err := t.Validate(); err != nil {
		return domain.MaintenanceTicket{}, err
	}
	out, err := s.repo.UpdateTicket(ctx, t)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityMaintenance, out.ID, domain.OpUpdate)
	return out, nil
}

// Transition moves a ticket along its workflow. cost, when set, records the
// repair cost at the same time.
func (s *Maintenance) Transition(ctx context.Context, id string, to domain.TicketStatus, cost *int64) (domain.MaintenanceTicket, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	t, err := s.repo.GetTicket(ctx, id)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	if err := t.Transition(to, s.now()); err != nil {
		return domain.MaintenanceTicket{}, err
	}
	if cost != nil {
		t.Cost = *cost
	}
	if err := t.Validate(); err != nil {
		return domain.MaintenanceTicket{}, err
	}
	out, err := s.repo.UpdateTicket(ctx, t)
	if err != nil {
		return domain.MaintenanceTicket{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityMaintenance, out.ID, domain.OpUpdate)
	return out, nil
}

func (s *Maintenance) Delete(ctx context.Context, id string) error {
	sc, err := scope(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTicket(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, sc.AccountID, domain.EntityMaintenance, id, domain.OpDelete)
	return nil
}

type Utilities struct {
	base
	repo domain.UtilityRepository
}

func NewUtilities(r domain.UtilityRepository, d Deps) *Utilities {
	return &Utilities{base: d.base(), repo: r}
}

// Create records a meter reading. When no previous reading is given the
// latest reading of the same unit and kind is carried over.
func (s *Utilities) Create(ctx context.Context, r domain.UtilityReading, carryOver bool) (domain.UtilityReading, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.UtilityReading{}, err
	}
	if carryOver && r.UnitID != "" {
		prev, err := s.latest(ctx, r.UnitID, r.Kind, r.Period)
		if err != nil {
			return domain.UtilityReading{}, err
		}
		if prev != nil {
			r.PreviousReading = prev.CurrentReading
		}
	}
	if err := r.Validate(); err != nil {
		return domain.UtilityReading{}, err
	}
	out, err := s.repo.CreateReading(ctx, r)
	if err != nil {
		return domain.UtilityReading{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityUtility, out.ID, domain.OpInsert)
	return out, nil
}

// latest returns the newest reading of unit and kind before period, or nil.
func (s *Utilities) latest(ctx context.Context, unitID string, kind domain.UtilityKind, period string) (*domain.UtilityReading, error) {
	rs, err := s.repo.ListReadings(ctx, domain.UtilityFilter{UnitID: unitID})
	if err != nil {
		return nil, err
	}
	var best *domain.UtilityReading
	for i := range rs {
		r := &rs[i]
		if r.Kind != kind || r.Period >= period {
			continue
		}
		if best == nil || r.Period > best.Period {
			best = r
		}
	}
	return best, nil
}

func (s *Utilities) Get(ctx context.Context, id string) (domain.UtilityReading, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.UtilityReading{}, err
	}
	return cached(ctx, &s.base, itemKey(domain.EntityUtility, sc.AccountID, id), func() (domain.UtilityReading, error) {
		return s.repo.GetReading(ctx, id)
	})
}

func (s *Utilities) List(ctx context.Context, f domain.UtilityFilter) ([]domain.UtilityReading, error) {
	sc, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if !f.Empty() {
		return s.repo.ListReadings(ctx, f)
	}
	return cached(ctx, &s.base, listKey(domain.EntityUtility, sc.AccountID), func() ([]domain.UtilityReading, error) {
		return s.repo.ListReadings(ctx, f)
	})
}

// Update corrects an unbilled reading. Billed readings are ErrConflict.
func (s *Utilities) Update(ctx context.Context, r domain.UtilityReading) (domain.UtilityReading, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.UtilityReading{}, err
	}
	cur, err := s.repo.GetReading(ctx, r.ID)
	if err != nil {
		return domain.UtilityReading{}, err
	}
	r.UnitID = cur.UnitID
	if err := r.Validate(); err != nil {
		return domain.UtilityReading{}, err
	}
	out, err := s.repo.UpdateReading(ctx, r)
	if err != nil {
		return domain.UtilityReading{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityUtility, out.ID, domain.OpUpdate)
	return out, nil
}

func (s *Utilities) Delete(ctx context.Context, id string) error {
	sc, err := scope(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteReading(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, sc.AccountID, domain.EntityUtility, id, domain.OpDelete)
	return nil
}
