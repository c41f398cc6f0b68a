package app

import (
	"context"

	"rentdesk/internal/domain"
)

// Admin backs the platform console. Every call requires RoleAdmin; the
// repository enforces it again.
type Admin struct {
	base
	repo domain.AdminRepository
}

func NewAdmin(r domain.AdminRepository, d Deps) *Admin {
	return &Admin{base: d.base(), repo: r}
}

func (s *Admin) Overview(ctx context.Context) (domain.PlatformOverview, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return domain.PlatformOverview{}, err
	}
	return s.repo.PlatformOverview(ctx)
}

func (s *Admin) ListAccounts(ctx context.Context) ([]domain.AccountSummary, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListAccounts(ctx)
}

// SetAccountStatus suspends or reactivates an account. Suspension takes effect
// on the account's next request because the cached account row is evicted.
func (s *Admin) SetAccountStatus(ctx context.Context, id string, st domain.AccountStatus) error {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return err
	}
	if st != domain.AccountActive && st != domain.AccountSuspended {
		return &domain.ValidationError{Field: "status", Message: "must be active or suspended"}
	}
	if err := s.repo.SetAccountStatus(ctx, id, st); err != nil {
		return err
	}
	s.changed(ctx, id, domain.EntityAccount, id, domain.OpUpdate)
	return nil
}
