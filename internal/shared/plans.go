package shared

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rentdesk/internal/domain"
)

//go:embed plans.yaml
var defaultPlans []byte

type planFile struct {
	Trial struct {
		Plan string `yaml:"plan"`
		Days int    `yaml:"days"`
	} `yaml:"trial"`
	Plans []domain.Plan `yaml:"plans"`
}

// PlanCatalog is the read-only set of subscription plans.
type PlanCatalog struct {
	plans     []domain.Plan
	byCode    map[string]domain.Plan
	trialPlan string
	trialDays int
}

// LoadPlans parses path, or the built-in catalog when path is empty.
func LoadPlans(path string) (*PlanCatalog, error) {
	b := defaultPlans
	if path != "" {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read plans: %w", err)
		}
	}
	return ParsePlans(b)
}

func ParsePlans(b []byte) (*PlanCatalog, error) {
	var f planFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse plans: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("parse plans: no plans defined")
	}
	c := &PlanCatalog{plans: f.Plans, byCode: make(map[string]domain.Plan, len(f.Plans)), trialDays: f.Trial.Days}
	for _, p := range f.Plans {
		if p.Code == "" {
			return nil, fmt.Errorf("parse plans: plan without code")
		}
		if _, dup := c.byCode[p.Code]; dup {
			return nil, fmt.Errorf("parse plans: duplicate plan %q", p.Code)
		}
		c.byCode[p.Code] = p
	}
	c.trialPlan = f.Trial.Plan
	if c.trialPlan == "" {
		c.trialPlan = f.Plans[0].Code
	}
	if _, ok := c.byCode[c.trialPlan]; !ok {
		return nil, fmt.Errorf("parse plans: trial plan %q is not defined", c.trialPlan)
	}
	if c.trialDays <= 0 {
		c.trialDays = 14
	}
	return c, nil
}

func (c *PlanCatalog) All() []domain.Plan {
	out := make([]domain.Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

func (c *PlanCatalog) Get(code string) (domain.Plan, bool) {
	p, ok := c.byCode[code]
	return p, ok
}

// Trial returns the plan new accounts start on and the trial length in days.
func (c *PlanCatalog) Trial() (domain.Plan, int) {
	return c.byCode[c.trialPlan], c.trialDays
}
