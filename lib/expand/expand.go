// Package expand turns path templates with date placeholders into
// concrete per-day remote paths.
package expand

import (
	"strings"
	"time"
)

// placeholders are tried in priority order; the first one present in a
// template wins and decides the substitution format.
var placeholders = []struct {
	token  string
	layout string
}{
	{"yyyy-mm-dd", "2006-01-02"},
	{"yyyymmdd", "20060102"},
}

// Paths expands each template over [from, to] inclusive. A template
// without a placeholder passes through unchanged exactly once. Output
// order is template order, dates ascending within a template. Pure: the
// same inputs always produce the same list.
func Paths(templates []string, from, to time.Time) []string {
	if to.Before(from) {
		to = from
	}

	var expanded []string
	for _, template := range templates {
		matched := false
		for _, p := range placeholders {
			if !strings.Contains(template, p.token) {
				continue
			}
			for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
				expanded = append(expanded, strings.ReplaceAll(template, p.token, day.Format(p.layout)))
			}
			matched = true
			break
		}
		if !matched {
			expanded = append(expanded, template)
		}
	}

	return expanded
}
