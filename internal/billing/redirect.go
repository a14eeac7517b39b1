package billing

import (
	"net/url"
	"strings"
)

// RedirectTarget builds the post-signup landing URL for a plan.
type RedirectTarget struct {
	base      string
	pathStyle bool
}

// NewRedirectTarget returns a target rooted at base. style "path" appends
// "/<plan>"; anything else appends a plan query parameter.
func NewRedirectTarget(base, style string) RedirectTarget {
	return RedirectTarget{base: base, pathStyle: style == "path"}
}

// For returns the landing URL for plan.
func (r RedirectTarget) For(plan string) string {
	if r.pathStyle {
		return strings.TrimRight(r.base, "/") + "/" + url.PathEscape(plan)
	}
	sep := "?"
	if strings.Contains(r.base, "?") {
		sep = "&"
	}
	return r.base + sep + "plan=" + url.QueryEscape(plan)
}
