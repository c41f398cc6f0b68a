package domain

import "time"

type UtilityKind string

const (
	UtilityWater       UtilityKind = "water"
	UtilityElectricity UtilityKind = "electricity"
	UtilityGas         UtilityKind = "gas"
)

// UtilityReading is a metered reading for one unit and period. Rate is the
// price per metered unit in minor currency units.
type UtilityReading struct {
	ID              string      `json:"id"`
	AccountID       string      `json:"account_id"`
	UnitID          string      `json:"unit_id"`
	Kind            UtilityKind `json:"kind"`
	Period          string      `json:"period"`
	PreviousReading float64     `json:"previous_reading"`
	CurrentReading  float64     `json:"current_reading"`
	Rate            int64       `json:"rate"`
	InvoiceID       *string     `json:"invoice_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

func (r UtilityReading) Consumption() float64 { return r.CurrentReading - r.PreviousReading }

// Charge rounds consumption * rate to the nearest minor unit.
func (r UtilityReading) Charge() int64 {
	c := r.Consumption() * float64(r.Rate)
	if c < 0 {
		return 0
	}
	return int64(c + 0.5)
}

func (r UtilityReading) Billed() bool { return r.InvoiceID != nil }

func (r UtilityReading) Validate() error {
	if r.UnitID == "" {
		return invalid("unit_id", "is required")
	}
	switch r.Kind {
	case UtilityWater, UtilityElectricity, UtilityGas:
	default:
		return invalid("kind", "must be water, electricity or gas")
	}
	if !ValidPeriod(r.Period) {
		return invalid("period", "must be YYYY-MM")
	}
	if r.PreviousReading < 0 {
		return invalid("previous_reading", "must not be negative")
	}
	if r.CurrentReading < r.PreviousReading {
		return invalid("current_reading", "must not be below previous_reading")
	}
	if r.Rate < 0 {
		return invalid("rate", "must not be negative")
	}
	return nil
}

type UtilityFilter struct {
	UnitID   string
	Period   string
	Unbilled bool
}

func (f UtilityFilter) Empty() bool { return f.UnitID == "" && f.Period == "" && !f.Unbilled }
