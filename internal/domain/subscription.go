package domain

import "time"

// Plan limits; zero means unlimited.
type Plan struct {
	Code          string `json:"code" yaml:"code"`
	Name          string `json:"name" yaml:"name"`
	PriceMonthly  int64  `json:"price_monthly" yaml:"price_monthly"`
	MaxProperties int    `json:"max_properties" yaml:"max_properties"`
	MaxUnits      int    `json:"max_units" yaml:"max_units"`
	SMSQuota      int    `json:"sms_quota" yaml:"sms_quota"`
}

type SubscriptionStatus string

const (
	SubTrialing  SubscriptionStatus = "trialing"
	SubActive    SubscriptionStatus = "active"
	SubPastDue   SubscriptionStatus = "past_due"
	SubCancelled SubscriptionStatus = "cancelled"
)

type Subscription struct {
	ID                 string             `json:"id"`
	AccountID          string             `json:"account_id"`
	PlanCode           string             `json:"plan_code"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Usable reports whether the account may create new records under this subscription.
func (s Subscription) Usable(now time.Time) bool {
	switch s.Status {
	case SubTrialing, SubActive:
		return !now.After(s.CurrentPeriodEnd)
	case SubPastDue:
		return true
	}
	return false
}

// Renewed advances an active subscription month by month until its period
// covers now. Plan fees are settled outside rentdesk, so an active
// subscription renews until the owner changes or cancels it. Trials and
// other statuses come back unchanged.
func (s Subscription) Renewed(now time.Time) (Subscription, bool) {
	if s.Status != SubActive || s.CurrentPeriodEnd.IsZero() {
		return s, false
	}
	rolled := false
	for now.After(s.CurrentPeriodEnd) {
		s.CurrentPeriodStart = s.CurrentPeriodEnd
		s.CurrentPeriodEnd = s.CurrentPeriodEnd.AddDate(0, 1, 0)
		rolled = true
	}
	return s, rolled
}
