package app

import (
	"context"
	"time"

	"rentdesk/internal/domain"
)

type tenantStore interface {
	domain.TenantRepository
	GetUnit(ctx context.Context, id string) (domain.Unit, error)
}

type Tenants struct {
	base
	repo tenantStore
}

func NewTenants(r tenantStore, d Deps) *Tenants {
	return &Tenants{base: d.base(), repo: r}
}

// Create registers a tenant. An active tenant occupies the unit; the unit's
// rent is used when t.RentAmount is zero.
func (s *Tenants) Create(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	return s.create(ctx, t, t.RentAmount != 0)
}

// CreateAtRent is Create with t.RentAmount taken as given, zero included.
func (s *Tenants) CreateAtRent(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	return s.create(ctx, t, true)
}

func (s *Tenants) create(ctx context.Context, t domain.Tenant, rentGiven bool) (domain.Tenant, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	if t.Status == "" {
		t.Status = domain.TenantActive
	}
	t.Phone = domain.NormalizePhone(t.Phone)
	if !rentGiven && t.UnitID != "" {
		u, err := s.repo.GetUnit(ctx, t.UnitID)
		if err != nil {
			return domain.Tenant{}, err
		}
		t.RentAmount = u.RentAmount
	}
	if err := t.Validate(); err != nil {
		return domain.Tenant{}, err
	}
	out, err := s.repo.CreateTenant(ctx, t)
	if err != nil {
		return domain.Tenant{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityTenant, out.ID, domain.OpInsert)
	if out.Status == domain.TenantActive {
		s.changed(ctx, sc.AccountID, domain.EntityUnit, out.UnitID, domain.OpUpdate)
	}
	return out, nil
}

func (s *Tenants) Get(ctx context.Context, id string) (domain.Tenant, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	return cached(ctx, &s.base, itemKey(domain.EntityTenant, sc.AccountID, id), func() (domain.Tenant, error) {
		return s.repo.GetTenant(ctx, id)
	})
}

func (s *Tenants) List(ctx context.Context, f domain.TenantFilter) ([]domain.Tenant, error) {
	sc, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if !f.Empty() {
		return s.repo.ListTenants(ctx, f)
	}
	return cached(ctx, &s.base, listKey(domain.EntityTenant, sc.AccountID), func() ([]domain.Tenant, error) {
		return s.repo.ListTenants(ctx, f)
	})
}

// Update edits contact details and lease terms; unit and status are kept.
func (s *Tenants) Update(ctx context.Context, t domain.Tenant) (domain.Tenant, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	cur, err := s.repo.GetTenant(ctx, t.ID)
	if err != nil {
		return domain.Tenant{}, err
	}
	t.UnitID, t.Status = cur.UnitID, cur.Status
	t.Phone = domain.NormalizePhone(t.Phone)
	if err := t.Validate(); err != nil {
		return domain.Tenant{}, err
	}
	out, err := s.repo.UpdateTenant(ctx, t)
	if err != nil {
		return domain.Tenant{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityTenant, out.ID, domain.OpUpdate)
	return out, nil
}

// EndLease ends the tenancy on end (today when nil) and frees the unit.
func (s *Tenants) EndLease(ctx context.Context, id string, end *time.Time) (domain.Tenant, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	at := s.now().Truncate(24 * time.Hour)
	if end != nil {
		at = *end
	}
	out, err := s.repo.EndLease(ctx, id, at)
	if err != nil {
		return domain.Tenant{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityTenant, out.ID, domain.OpUpdate)
	s.changed(ctx, sc.AccountID, domain.EntityUnit, out.UnitID, domain.OpUpdate)
	return out, nil
}

func (s *Tenants) Delete(ctx context.Context, id string) error {
	sc, err := scope(ctx)
	if err != nil {
		return err
	}
	cur, err := s.repo.GetTenant(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTenant(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, sc.AccountID, domain.EntityTenant, id, domain.OpDelete)
	s.changed(ctx, sc.AccountID, domain.EntityUnit, cur.UnitID, domain.OpUpdate)
	return nil
}
