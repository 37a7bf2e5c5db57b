package pricing

import (
	"sort"
	"time"

	"github.com/diewo77/crm-pricing/internal/models"
)

// Lookup is the read-only reference data a calculation needs, loaded once per
// recalculation and passed explicitly so the engine stays a pure function of
// its inputs.
type Lookup struct {
	JobProfiles   map[uint]models.JobProfile
	Nationalities map[uint]models.Nationality
	Components    map[uint]models.CostComponent

	// Rules are active pricing rules sorted by descending priority.
	Rules []models.PricingRule

	// Now anchors rule validity windows; the zero value means time.Now().
	Now time.Time
}

// NewLookup indexes the reference data and orders rules for evaluation.
// Inactive rules and components are dropped here so callers can pass raw
// query results.
func NewLookup(profiles []models.JobProfile, nationalities []models.Nationality, components []models.CostComponent, rules []models.PricingRule) Lookup {
	l := Lookup{
		JobProfiles:   make(map[uint]models.JobProfile, len(profiles)),
		Nationalities: make(map[uint]models.Nationality, len(nationalities)),
		Components:    make(map[uint]models.CostComponent, len(components)),
	}
	for _, p := range profiles {
		l.JobProfiles[p.ID] = p
	}
	for _, n := range nationalities {
		l.Nationalities[n.ID] = n
	}
	for _, c := range components {
		if c.IsActive {
			l.Components[c.ID] = c
		}
	}
	for _, r := range rules {
		if r.IsActive {
			l.Rules = append(l.Rules, r)
		}
	}
	sort.SliceStable(l.Rules, func(i, j int) bool {
		return l.Rules[i].Priority > l.Rules[j].Priority
	})
	return l
}

func (l Lookup) now() time.Time {
	if l.Now.IsZero() {
		return time.Now()
	}
	return l.Now
}
