package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentdesk/internal/domain"
)

// PlanSource is the plan catalog (shared.PlanCatalog).
type PlanSource interface {
	All() []domain.Plan
	Get(code string) (domain.Plan, bool)
	Trial() (domain.Plan, int)
}

type usageCounter interface {
	CountProperties(ctx context.Context) (int, error)
	CountUnits(ctx context.Context) (int, error)
	CountSMSSince(ctx context.Context, since time.Time) (int, error)
}

// Resource is a plan-limited quantity.
type Resource string

const (
	ResourceProperties Resource = "properties"
	ResourceUnits      Resource = "units"
	ResourceSMS        Resource = "sms"
)

type SubscriptionView struct {
	domain.Subscription
	Plan domain.Plan `json:"plan"`
}

type Subscriptions struct {
	base
	repo  domain.SubscriptionRepository
	usage usageCounter
	plans PlanSource
}

func NewSubscriptions(r domain.SubscriptionRepository, u usageCounter, p PlanSource, d Deps) *Subscriptions {
	return &Subscriptions{base: d.base(), repo: r, usage: u, plans: p}
}

func (s *Subscriptions) Plans() []domain.Plan { return s.plans.All() }

func (s *Subscriptions) Current(ctx context.Context) (SubscriptionView, error) {
	sc, err := scope(ctx)
	if err != nil {
		return SubscriptionView{}, err
	}
	return cached(ctx, &s.base, itemKey(domain.EntitySubscription, sc.AccountID, sc.AccountID), func() (SubscriptionView, error) {
		sub, err := s.repo.GetSubscription(ctx)
		if err != nil {
			return SubscriptionView{}, err
		}
		p, ok := s.plans.Get(sub.PlanCode)
		if !ok {
			return SubscriptionView{}, fmt.Errorf("subscription plan %q is not in the catalog", sub.PlanCode)
		}
		return SubscriptionView{Subscription: sub, Plan: p}, nil
	})
}

// ChangePlan switches the account to plan code and starts a new monthly period.
func (s *Subscriptions) ChangePlan(ctx context.Context, code string) (SubscriptionView, error) {
	sc, err := requireRole(ctx, domain.RoleOwner)
	if err != nil {
		return SubscriptionView{}, err
	}
	p, ok := s.plans.Get(code)
	if !ok {
		return SubscriptionView{}, &domain.ValidationError{Field: "plan_code", Message: "unknown plan"}
	}
	now := s.now()
	sub, err := s.repo.SaveSubscription(ctx, domain.Subscription{
		PlanCode:           p.Code,
		Status:             domain.SubActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	})
	if err != nil {
		return SubscriptionView{}, err
	}
	s.changed(ctx, sc.AccountID, domain.EntitySubscription, sc.AccountID, domain.OpUpdate)
	return SubscriptionView{Subscription: sub, Plan: p}, nil
}

// Check fails with ErrPlanLimit when adding n more of r would exceed the plan,
// or when the subscription no longer allows new records. The count is not
// held until the caller's insert, so concurrent creates may overshoot.
func (s *Subscriptions) Check(ctx context.Context, r Resource, n int) error {
	v, err := s.Current(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	// a renewal the billing job has not stored yet still counts
	v.Subscription, _ = v.Renewed(now)
	if !v.Usable(now) {
		return fmt.Errorf("%w: subscription is %s", domain.ErrPlanLimit, v.Status)
	}

	var limit, used int
	switch r {
	case ResourceProperties:
		limit = v.Plan.MaxProperties
		if limit > 0 {
			used, err = s.usage.CountProperties(ctx)
		}
	case ResourceUnits:
		limit = v.Plan.MaxUnits
		if limit > 0 {
			used, err = s.usage.CountUnits(ctx)
		}
	case ResourceSMS:
		limit = v.Plan.SMSQuota
		if limit > 0 {
			used, err = s.usage.CountSMSSince(ctx, v.CurrentPeriodStart)
		}
	default:
		return fmt.Errorf("unknown resource %q", r)
	}
	if err != nil {
		return err
	}
	if limit > 0 && used+n > limit {
		return fmt.Errorf("%w: %s %d/%d on plan %s", domain.ErrPlanLimit, r, used, limit, v.Plan.Code)
	}
	return nil
}

// Renew stores the rolled-forward period of an active subscription whose
// period has ended. It reports whether anything changed.
func (s *Subscriptions) Renew(ctx context.Context) (bool, error) {
	sc, err := scope(ctx)
	if err != nil {
		return false, err
	}
	sub, err := s.repo.GetSubscription(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	next, ok := sub.Renewed(s.now())
	if !ok {
		return false, nil
	}
	if _, err := s.repo.SaveSubscription(ctx, next); err != nil {
		return false, err
	}
	s.changed(ctx, sc.AccountID, domain.EntitySubscription, sc.AccountID, domain.OpUpdate)
	return true, nil
}
