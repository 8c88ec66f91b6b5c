package models

import (
	"fmt"
	"strings"
	"time"

	"getlog/lib/apperr"
	"getlog/lib/constants"
)

// LogRequest is a validated log-retrieval request. The JSON field names
// are the wire format carried in the approval email body.
type LogRequest struct {
	Mail     string `json:"mail"`      // requester email
	Content  string `json:"content"`   // request reason
	System   string `json:"system"`    // target system identifier
	FromDate string `json:"from_date"` // YYYY-MM-DD
	ToDate   string `json:"to_date"`   // YYYY-MM-DD, empty means single day
	Approver string `json:"approver,omitempty"`
}

// Validate checks required fields and date ordering. The returned error
// lists every problem so the requester can fix them in one pass.
func (r LogRequest) Validate() error {
	var problems []string

	if strings.TrimSpace(r.System) == "" {
		problems = append(problems, "system is required")
	}
	if strings.TrimSpace(r.Mail) == "" {
		problems = append(problems, "requester email is required")
	}
	if strings.TrimSpace(r.Content) == "" {
		problems = append(problems, "request reason is required")
	}

	from, err := time.Parse(constants.DateLayout, r.FromDate)
	if err != nil {
		problems = append(problems, fmt.Sprintf("from_date %q is not a valid YYYY-MM-DD date", r.FromDate))
	}
	if r.ToDate != "" {
		to, err := time.Parse(constants.DateLayout, r.ToDate)
		if err != nil {
			problems = append(problems, fmt.Sprintf("to_date %q is not a valid YYYY-MM-DD date", r.ToDate))
		} else if from.After(to) {
			problems = append(problems, "to_date must not be before from_date")
		}
	}

	if len(problems) > 0 {
		return apperr.New(apperr.KindValidation, "invalid request: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Period returns the parsed date range. When ToDate is empty the range
// is the single day FromDate. Call Validate first.
func (r LogRequest) Period() (time.Time, time.Time, error) {
	from, err := time.Parse(constants.DateLayout, r.FromDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Wrap(err, apperr.KindValidation, "invalid from_date")
	}
	if r.ToDate == "" {
		return from, from, nil
	}
	to, err := time.Parse(constants.DateLayout, r.ToDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Wrap(err, apperr.KindValidation, "invalid to_date")
	}
	return from, to, nil
}

// PeriodString renders the period for notifications.
func (r LogRequest) PeriodString() string {
	if r.ToDate == "" || r.ToDate == r.FromDate {
		return r.FromDate
	}
	return fmt.Sprintf("%s - %s", r.FromDate, r.ToDate)
}
