// Package story turns feed offers into formatted stories and publishes them.
package story

import (
	"regexp"
	"slices"
	"strings"

	"quotecast/internal/models"
)

var (
	placeholderRe = regexp.MustCompile(`"([^"]+)"`)
	spaceRe       = regexp.MustCompile(`\s+`)
	commaRe       = regexp.MustCompile(`,\s*,`)
)

// Format fills a template with offer fields. Every "field" (in double
// quotes) is replaced by the offer's value for that field, matched exactly
// first and then case-insensitively; unknown fields become empty. The
// result has whitespace runs collapsed, doubled commas merged, and is
// trimmed.
func Format(template string, offer models.Offer) string {
	out := template
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		field := m[1]
		out = strings.ReplaceAll(out, m[0], lookup(offer, field))
	}

	out = spaceRe.ReplaceAllString(out, " ")
	out = commaRe.ReplaceAllString(out, ",")
	return strings.TrimSpace(out)
}

// lookup prefers the exact key. Among case-insensitive matches the
// lexically smallest key wins so output does not depend on map order.
func lookup(offer models.Offer, field string) string {
	if v := offer.Fields[field]; v != "" {
		return v
	}
	var keys []string
	for k := range offer.Fields {
		if strings.EqualFold(k, field) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	slices.Sort(keys)
	return offer.Fields[keys[0]]
}
