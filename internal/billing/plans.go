// Package billing holds the signup domain's static rules: which plans can be
// bought, when the sale opens, where buyers land afterwards and how card
// declines are worded.
package billing

import "sort"

// PlanCatalog maps public plan keys to provider price identifiers.
// It is immutable after construction and safe for concurrent reads.
type PlanCatalog struct {
	prices map[string]string
}

// NewPlanCatalog copies prices into a new catalog so later mutation of the
// caller's map has no effect.
func NewPlanCatalog(prices map[string]string) *PlanCatalog {
	m := make(map[string]string, len(prices))
	for k, v := range prices {
		m[k] = v
	}
	return &PlanCatalog{prices: m}
}

// Lookup returns the price id for key. Matching is exact: no trimming, no
// case folding. A known key whose price id is empty is reported as missing,
// since the provider would reject the subscription anyway.
func (c *PlanCatalog) Lookup(key string) (string, bool) {
	price, ok := c.prices[key]
	if !ok || price == "" {
		return "", false
	}
	return price, true
}

// Configured reports whether key exists and carries a price id.
func (c *PlanCatalog) Configured(key string) bool {
	_, ok := c.Lookup(key)
	return ok
}

// Keys returns every plan key in the catalog, configured or not, sorted.
func (c *PlanCatalog) Keys() []string {
	keys := make([]string, 0, len(c.prices))
	for k := range c.prices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Unconfigured lists plan keys that have no price id, sorted.
func (c *PlanCatalog) Unconfigured() []string {
	var missing []string
	for _, k := range c.Keys() {
		if c.prices[k] == "" {
			missing = append(missing, k)
		}
	}
	return missing
}
