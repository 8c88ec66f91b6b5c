// Package extract parses log-retrieval requests out of free-form email
// text: the marker-delimited reason and period of the intake mail, and
// the JSON body of the approval reply.
package extract

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"

	"getlog/lib/apperr"
	"getlog/lib/constants"
	"getlog/lib/models"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Request mails use these markers to delimit sections. They are the
// wire format requesters already use; the period section runs to the
// next marker or end of text.
const (
	ReasonMarker = "【申請理由】"
	PeriodMarker = "【ログ取得期間】"
	markerOpen   = "【"
)

// Two positions closer than this are treated as one date token. The
// bare-template and literal-date matchers otherwise double-count text
// already claimed by a quoted match.
const dedupeWindow = 5

type dateKind string

const (
	kindTemplateDouble dateKind = "template_double"
	kindTemplateSingle dateKind = "template_single"
	kindTemplateBare   dateKind = "template_bare"
	kindLiteral        dateKind = "literal"
)

func (k dateKind) isTemplate() bool {
	return strings.HasPrefix(string(k), "template")
}

type dateMatch struct {
	text string
	kind dateKind
	pos  int
}

// dateMatchers are tried in priority order. The key type of a match is
// not declared out of band, so the quoted spellings must win over the
// bare one, and the bare one over the literal pattern.
var dateMatchers = []struct {
	kind   dateKind
	re     *regexp.Regexp
	accept func(section string, end int) bool
}{
	{kindTemplateDouble, regexp.MustCompile(`"yyyy-mm-dd"`), nil},
	{kindTemplateSingle, regexp.MustCompile(`'yyyy-mm-dd'`), nil},
	{kindTemplateBare, regexp.MustCompile(`yyyy-mm-dd`), notFollowedByQuote},
	{kindLiteral, regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), nil},
}

// RE2 has no lookahead, so the original (?!["']) is a byte check after
// the match instead.
func notFollowedByQuote(section string, end int) bool {
	if end >= len(section) {
		return true
	}
	return section[end] != '"' && section[end] != '\''
}

// Extractor parses request mails. The clock supplies the defaults for
// template dates (yesterday and today).
type Extractor struct {
	Clock  clockwork.Clock
	Logger *logrus.Logger
}

// Reason returns the text strictly between the reason and period
// markers, trimmed. A missing marker pair yields an empty string; the
// caller decides whether that is an error.
func (e *Extractor) Reason(body string) string {
	start := strings.Index(body, ReasonMarker)
	if start < 0 {
		return ""
	}
	rest := body[start+len(ReasonMarker):]

	end := strings.Index(rest, PeriodMarker)
	if end < 0 {
		return ""
	}

	return strings.TrimSpace(rest[:end])
}

// Period extracts the retrieval date range from the period section.
// Exactly two date tokens are required, in document order: the first is
// FROM, the second TO. Template tokens default to yesterday (FROM) and
// today (TO); mixing template and literal tokens is rejected.
func (e *Extractor) Period(body string) (time.Time, time.Time, error) {
	section, err := periodSection(body)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	found := scanDates(section)

	switch {
	case len(found) == 0:
		return time.Time{}, time.Time{}, apperr.New(apperr.KindValidation,
			"no dates found in the log period section; write FROM: YYYY-MM-DD TO: YYYY-MM-DD")
	case len(found) == 1:
		return time.Time{}, time.Time{}, apperr.New(apperr.KindValidation,
			"only one date found in the log period section; write two dates as FROM: YYYY-MM-DD TO: YYYY-MM-DD")
	case len(found) > 2:
		e.Logger.WithFields(logrus.Fields{
			"dates_found": len(found),
			"operation":   "Period",
		}).Warn("More than two dates in the log period section, using the first two")
	}

	first, second := found[0], found[1]

	if first.kind.isTemplate() != second.kind.isTemplate() {
		return time.Time{}, time.Time{}, apperr.New(apperr.KindValidation,
			"mixed date formats in the log period section; use two literal dates or two templates")
	}

	from, err := e.resolveDate(first, e.yesterday())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := e.resolveDate(second, e.today())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	e.Logger.WithFields(logrus.Fields{
		"from":      from.Format(constants.DateLayout),
		"to":        to.Format(constants.DateLayout),
		"kinds":     []string{string(first.kind), string(second.kind)},
		"operation": "Period",
	}).Info("Log period extracted")

	return from, to, nil
}

// Extract runs Reason and Period together. The reason may legitimately
// be empty here; callers surface that as their own validation error.
func (e *Extractor) Extract(body string) (string, time.Time, time.Time, error) {
	reason := e.Reason(body)
	from, to, err := e.Period(body)
	if err != nil {
		return reason, time.Time{}, time.Time{}, err
	}
	return reason, from, to, nil
}

func (e *Extractor) resolveDate(m dateMatch, templateDefault time.Time) (time.Time, error) {
	if m.kind.isTemplate() {
		return templateDefault, nil
	}
	parsed, err := time.Parse(constants.DateLayout, m.text)
	if err != nil {
		return time.Time{}, apperr.Wrap(err, apperr.KindValidation, "invalid date %q in the log period section", m.text)
	}
	return parsed, nil
}

func (e *Extractor) yesterday() time.Time {
	return truncateToDay(e.Clock.Now().AddDate(0, 0, -1))
}

func (e *Extractor) today() time.Time {
	return truncateToDay(e.Clock.Now())
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// periodSection returns the text between the period marker and the next
// marker or end of text. Date literals outside the section must never
// be picked up.
func periodSection(body string) (string, error) {
	start := strings.Index(body, PeriodMarker)
	if start < 0 {
		return "", apperr.New(apperr.KindValidation, "log period section not found; add a %s section", PeriodMarker)
	}
	section := body[start+len(PeriodMarker):]

	if next := strings.Index(section, markerOpen); next >= 0 {
		section = section[:next]
	}
	return section, nil
}

// scanDates runs every matcher over the section, drops matches within
// the dedupe window of an earlier match, and orders survivors by
// position.
func scanDates(section string) []dateMatch {
	var found []dateMatch

	for _, matcher := range dateMatchers {
		for _, loc := range matcher.re.FindAllStringIndex(section, -1) {
			if matcher.accept != nil && !matcher.accept(section, loc[1]) {
				continue
			}
			if overlapsExisting(found, loc[0]) {
				continue
			}
			found = append(found, dateMatch{
				text: section[loc[0]:loc[1]],
				kind: matcher.kind,
				pos:  loc[0],
			})
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	return found
}

func overlapsExisting(found []dateMatch, pos int) bool {
	for _, m := range found {
		d := pos - m.pos
		if d < 0 {
			d = -d
		}
		if d < dedupeWindow {
			return true
		}
	}
	return false
}

// JSONBody extracts the first balanced JSON object from an approval
// reply and parses it into a LogRequest. Mail clients wrap the draft in
// greetings and signatures, so everything outside the braces is
// ignored.
func JSONBody(body string) (*models.LogRequest, error) {
	start := strings.IndexByte(body, '{')
	if start < 0 {
		return nil, apperr.New(apperr.KindValidation, "no JSON object found in the approval mail body")
	}

	depth := 0
	end := -1
	for i := start; i < len(body); i++ {
		switch body[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil, apperr.New(apperr.KindValidation, "unbalanced JSON object in the approval mail body")
	}

	var request models.LogRequest
	if err := json.Unmarshal([]byte(body[start:end+1]), &request); err != nil {
		return nil, apperr.Wrap(err, apperr.KindValidation, "malformed JSON in the approval mail body")
	}

	return &request, nil
}
