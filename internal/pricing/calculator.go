package pricing

import (
	"math"
	"sort"

	"github.com/diewo77/crm-pricing/internal/models"
)

// Round2 rounds a monetary amount to 2 decimal places for persistence and
// display. Intermediate math stays in full float64 precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ResolveEffectiveDiscount applies the discount precedence for one line item:
//
//  1. an approved individual discount always wins,
//  2. otherwise an approved overall discount applies, but only to line items
//     stamped eligible when that discount was approved,
//  3. otherwise no discount.
//
// The eligibility stamp is what keeps a line item added after approval from
// silently inheriting a discount nobody signed off for it.
func ResolveEffectiveDiscount(li models.QuoteLineItem, quote models.Quote) float64 {
	if li.LineDiscountStatus == models.DiscountStatusApproved && li.ManualDiscountPercentage > 0 {
		return li.ManualDiscountPercentage
	}
	if quote.DiscountStatus == models.DiscountStatusApproved &&
		quote.OverallDiscountPercentage > 0 &&
		li.EligibleForOverallDiscount {
		return quote.OverallDiscountPercentage
	}
	return 0
}

// CalculateLineItem computes the full cost breakdown for one line item and
// returns a copy with every computed field replaced. The input is never
// mutated and repeated calls with the same inputs produce identical output.
//
// A line item whose job profile cannot be resolved is returned unchanged so a
// partially configured quote still renders.
func CalculateLineItem(li models.QuoteLineItem, quote models.Quote, vatRate float64, lookup Lookup) models.QuoteLineItem {
	profile, ok := lookup.JobProfiles[li.JobProfileID]
	if !ok {
		return li
	}

	quantity := coerceInt(li.Quantity, 1)
	duration := coerceInt(li.ContractDuration, 12)
	facts := BuildLineItemFacts(li, lookup)

	effectiveDiscount := ResolveEffectiveDiscount(li, quote)
	if effectiveDiscount < 0 {
		effectiveDiscount = 0
	}

	outcome := ApplyRules(lookup, facts)
	components := gatherComponents(profile, li.NationalityID, facts, lookup, outcome)

	// Base cost adjusted by rule markup and rule-level discount; the manual /
	// overall discount is applied per cost line below.
	baseMonthly := profile.BaseCost *
		(1 + outcome.MarkupPercent/100) *
		(1 - outcome.DiscountPercent/100)

	breakdown := make([]models.CostLine, 0, components.Len()+1)
	breakdown = append(breakdown, costLine(models.CostLine{
		Name:          profile.JobTitle,
		UnitValue:     baseMonthly,
		Periodicity:   string(models.PeriodicityMonthly),
		VATApplicable: true,
		Source:        SourceBase,
		Subtotal:      baseMonthly * float64(duration) * float64(quantity),
	}, effectiveDiscount, vatRate))

	for _, ac := range components.Items() {
		value := ac.Value()
		if ac.Component.CalculationMethod == models.CalculationPercentOfBase {
			value = profile.BaseCost * value / 100
		}
		months := 1
		if ac.Component.Periodicity == models.PeriodicityMonthly {
			months = duration
		}
		breakdown = append(breakdown, costLine(models.CostLine{
			ComponentID:   ac.Component.ID,
			Name:          ac.Component.Name,
			UnitValue:     value,
			Periodicity:   string(ac.Component.Periodicity),
			VATApplicable: ac.Component.VATApplicable,
			Source:        ac.Source,
			Subtotal:      value * float64(months) * float64(quantity),
		}, effectiveDiscount, vatRate))
	}

	var subtotal, discount, afterDiscount, vat, grand float64
	for _, line := range breakdown {
		subtotal += line.Subtotal
		discount += line.DiscountAmt
		afterDiscount += line.AfterDiscount
		vat += line.VATAmount
		grand += line.GrandTotal
	}

	out := li
	out.CostBreakdown = breakdown
	out.AppliedRules = outcome.Explanations
	out.SubtotalBeforeDiscount = Round2(subtotal)
	out.EffectiveDiscountPercentage = effectiveDiscount
	out.AppliedDiscountAmount = Round2(discount)
	out.LineSubtotal = Round2(afterDiscount)
	out.LineVATAmount = Round2(vat)
	out.LineGrandTotal = Round2(grand)
	return out
}

// costLine fills the discount and VAT derived fields of a cost line whose
// Subtotal is already set. The base cost line is always VAT-applicable;
// components follow their own flag.
func costLine(line models.CostLine, discountPercent, vatRate float64) models.CostLine {
	line.DiscountAmt = line.Subtotal * discountPercent / 100
	line.AfterDiscount = line.Subtotal - line.DiscountAmt
	if line.VATApplicable {
		line.VATAmount = line.AfterDiscount * vatRate / 100
	}
	line.GrandTotal = line.AfterDiscount + line.VATAmount
	return line
}

// gatherComponents assembles the candidate cost components for a line item:
// job profile defaults, then nationality defaults, then smart components
// whose own conditions match, then rule-sourced components. The set is
// de-duplicated by component id with last-write-wins, so rule-sourced entries
// override default-sourced ones for the same id.
func gatherComponents(profile models.JobProfile, nationalityID uint, facts Facts, lookup Lookup, outcome RuleOutcome) *ComponentSet {
	set := NewComponentSet()
	for _, id := range profile.DefaultComponentIDs {
		if comp, ok := lookup.Components[id]; ok {
			set.Put(AppliedComponent{Component: comp, Source: SourceDefault})
		}
	}
	if nat, ok := lookup.Nationalities[nationalityID]; ok {
		for _, id := range nat.DefaultComponentIDs {
			if comp, ok := lookup.Components[id]; ok {
				set.Put(AppliedComponent{Component: comp, Source: SourceDefault})
			}
		}
	}
	for _, id := range sortedComponentIDs(lookup) {
		comp := lookup.Components[id]
		if !comp.IsSmart() {
			continue
		}
		conds, err := ParseConditionSet(comp.Conditions)
		if err != nil {
			continue
		}
		if Evaluate(conds, facts) {
			set.Put(AppliedComponent{Component: comp, Source: SourceSmart})
		}
	}
	for _, ac := range outcome.Components.Items() {
		set.Put(ac)
	}
	return set
}

// sortedComponentIDs gives smart component evaluation a stable order; map
// iteration order would make the last-write-wins outcome nondeterministic.
func sortedComponentIDs(lookup Lookup) []uint {
	ids := make([]uint, 0, len(lookup.Components))
	for id := range lookup.Components {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
