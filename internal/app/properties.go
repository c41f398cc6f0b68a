package app

import (
	"context"

	"rentdesk/internal/domain"
)

// quotaChecker is satisfied by *Subscriptions. A nil checker disables limits.
type quotaChecker interface {
	Check(ctx context.Context, r Resource, n int) error
}

type Properties struct {
	base
	repo  domain.PropertyRepository
	quota quotaChecker
}

func NewProperties(r domain.PropertyRepository, q quotaChecker, d Deps) *Properties {
	return &Properties{base: d.base(), repo: r, quota: q}
}

func (s *Properties) Create(ctx context.Context, p domain.Property) (domain.Property, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Property{}, err
	}
	if p.Kind == "" {
		p.Kind = domain.PropertyResidential
	}
	if err := p.Validate(); err != nil {
		return domain.Property{}, err
	}
	if s.quota != nil {
		if err := s.quota.Check(ctx, ResourceProperties, 1); err != nil {
			return domain.Property{}, err
		}
	}
	out, err := s.repo.CreateProperty(ctx, p)
	if err != nil {
		return domain.Property{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityProperty, out.ID, domain.OpInsert)
	return out, nil
}

func (s *Properties) Get(ctx context.Context, id string) (domain.Property, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Property{}, err
	}
	return cached(ctx, &s.base, itemKey(domain.EntityProperty, sc.AccountID, id), func() (domain.Property, error) {
		return s.repo.GetProperty(ctx, id)
	})
}

func (s *Properties) List(ctx context.Context) ([]domain.Property, error) {
	sc, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	return cached(ctx, &s.base, listKey(domain.EntityProperty, sc.AccountID), func() ([]domain.Property, error) {
		return s.repo.ListProperties(ctx)
	})
}

func (s *Properties) Update(ctx context.Context, p domain.Property) (domain.Property, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Property{}, err
	}
	if err := p.Validate(); err != nil {
		return domain.Property{}, err
	}
	out, err := s.repo.UpdateProperty(ctx, p)
	if err != nil {
		return domain.Property{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityProperty, out.ID, domain.OpUpdate)
	return out, nil
}

// cascaded are the entities whose rows go with a deleted property.
var cascaded = []string{domain.EntityUnit, domain.EntityExpense, domain.EntityMaintenance, domain.EntityUtility}

// Delete removes the property together with its units, expenses, tickets and
// meter readings. A tenant still on one of its units makes this an ErrConflict.
func (s *Properties) Delete(ctx context.Context, id string) error {
	sc, err := scope(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProperty(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, sc.AccountID, domain.EntityProperty, id, domain.OpDelete)
	// the cascaded ids are unknown here; drop their lists and let item keys expire
	for _, entity := range cascaded {
		s.changed(ctx, sc.AccountID, entity, "", domain.OpDelete)
	}
	return nil
}

type Units struct {
	base
	repo  domain.UnitRepository
	quota quotaChecker
}

func NewUnits(r domain.UnitRepository, q quotaChecker, d Deps) *Units {
	return &Units{base: d.base(), repo: r, quota: q}
}

func (s *Units) Create(ctx context.Context, u domain.Unit) (domain.Unit, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Unit{}, err
	}
	if u.Status == "" {
		u.Status = domain.UnitVacant
	}
	if err := u.Validate(); err != nil {
		return domain.Unit{}, err
	}
	if s.quota != nil {
		if err := s.quota.Check(ctx, ResourceUnits, 1); err != nil {
			return domain.Unit{}, err
		}
	}
	out, err := s.repo.CreateUnit(ctx, u)
	if err != nil {
		return domain.Unit{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityUnit, out.ID, domain.OpInsert)
	return out, nil
}

func (s *Units) Get(ctx context.Context, id string) (domain.Unit, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Unit{}, err
	}
	return cached(ctx, &s.base, itemKey(domain.EntityUnit, sc.AccountID, id), func() (domain.Unit, error) {
		return s.repo.GetUnit(ctx, id)
	})
}

// List caches only the unfiltered list; filtered lists go to the store.
func (s *Units) List(ctx context.Context, f domain.UnitFilter) ([]domain.Unit, error) {
	sc, err := scope(ctx)
	if err != nil {
		return nil, err
	}
	if !f.Empty() {
		return s.repo.ListUnits(ctx, f)
	}
	return cached(ctx, &s.base, listKey(domain.EntityUnit, sc.AccountID), func() ([]domain.Unit, error) {
		return s.repo.ListUnits(ctx, f)
	})
}

func (s *Units) Update(ctx context.Context, u domain.Unit) (domain.Unit, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Unit{}, err
	}
	if err := u.Validate(); err != nil {
		return domain.Unit{}, err
	}
	out, err := s.repo.UpdateUnit(ctx, u)
	if err != nil {
		return domain.Unit{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntityUnit, out.ID, domain.OpUpdate)
	return out, nil
}

func (s *Units) Delete(ctx context.Context, id string) error {
	sc, err := scope(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteUnit(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, sc.AccountID, domain.EntityUnit, id, domain.OpDelete)
	return nil
}
