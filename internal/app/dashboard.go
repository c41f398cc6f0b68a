package app

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"rentdesk/internal/domain"
)

type dashboardStore interface {
	domain.ReportRepository
	CountProperties(ctx context.Context) (int, error)
}

type Dashboards struct {
	base
	repo dashboardStore
}

func NewDashboards(r dashboardStore, d Deps) *Dashboards {
	return &Dashboards{base: d.base(), repo: r}
}

// Get returns the account totals for the current month. The underlying
// aggregates run concurrently.
func (s *Dashboards) Get(ctx context.Context) (domain.Dashboard, error) {
	sc, err := scope(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}
	return cached(ctx, &s.base, dashboardKey(sc.AccountID), func() (domain.Dashboard, error) {
		return s.compute(ctx)
	})
}

func (s *Dashboards) compute(ctx context.Context) (domain.Dashboard, error) {
	now := s.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	var (
		d      = domain.Dashboard{Period: domain.PeriodOf(from)}
		counts map[domain.UnitStatus]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { d.Properties, err = s.repo.CountProperties(gctx); return })
	g.Go(func() (err error) { counts, err = s.repo.UnitStatusCounts(gctx); return })
	g.Go(func() (err error) { d.Outstanding, err = s.repo.OutstandingBalance(gctx); return })
	g.Go(func() (err error) { d.CollectedInMonth, err = s.repo.CollectedBetween(gctx, from, to); return })
	g.Go(func() (err error) { d.ExpensesInMonth, err = s.repo.ExpensesBetween(gctx, from, to); return })
	g.Go(func() (err error) { d.OpenTickets, err = s.repo.CountOpenTickets(gctx); return })
	if err := g.Wait(); err != nil {
		return domain.Dashboard{}, err
	}

	for _, n := range counts {
		d.Units += n
	}
	d.OccupiedUnits = counts[domain.UnitOccupied]
	if d.Units > 0 {
		d.OccupancyRate = math.Round(float64(d.OccupiedUnits)/float64(d.Units)*1000) / 10
	}
	return d, nil
}
