package pricing

import (
	"strconv"
	"strings"

	"github.com/diewo77/crm-pricing/internal/models"
)

// Facts is the ephemeral fact object a rule evaluation runs against. Keys on
// the first level are namespaces ("line_item", "lead"); conditions address
// values by dot path, e.g. "line_item.contract_duration".
type Facts map[string]any

// Resolve walks a dot path through nested maps. The second return is false
// when any intermediate or final value is missing or nil; a missing fact is
// never an error, the condition simply does not match.
func (f Facts) Resolve(path string) (any, bool) {
	var cur any = map[string]any(f)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// BuildLineItemFacts assembles the fact object for one quote line item.
// Quantity and contract duration are coerced to safe defaults so a
// half-filled form still evaluates.
func BuildLineItemFacts(li models.QuoteLineItem, lookup Lookup) Facts {
	lineItem := map[string]any{
		"quantity":                   coerceInt(li.Quantity, 1),
		"contract_duration":          coerceInt(li.ContractDuration, 12),
		"job_profile_id":             li.JobProfileID,
		"nationality_id":             li.NationalityID,
		"manual_discount_percentage": li.ManualDiscountPercentage,
	}
	if jp, ok := lookup.JobProfiles[li.JobProfileID]; ok {
		lineItem["job_profile_category"] = jp.Category
		lineItem["job_title"] = jp.JobTitle
	}
	if nat, ok := lookup.Nationalities[li.NationalityID]; ok {
		lineItem["nationality"] = nat.Name
	}
	return Facts{"line_item": lineItem}
}

// coerceInt returns def for zero or negative values.
func coerceInt(v, def int) int {
	if v < 1 {
		return def
	}
	return v
}

// toFloat converts the loosely typed values found in JSON condition trees and
// fact maps to float64. JSON numbers decode as float64, but ids and counts
// arrive as Go ints and numeric strings show up in imported rule sets.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
