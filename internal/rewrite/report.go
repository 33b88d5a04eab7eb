package rewrite

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Outcome is what happened to one matched row
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomePlanned   Outcome = "planned"
	OutcomeUpdated   Outcome = "updated"
	OutcomeFailed    Outcome = "failed"
	OutcomeAbandoned Outcome = "abandoned"
)

// Item is one availability row whose URL matched
type Item struct {
	ContentID      uint    `json:"contentId"`
	ContentTitle   string  `json:"contentTitle"`
	AvailabilityID uint    `json:"availabilityId"`
	OldURL         string  `json:"oldUrl"`
	NewURL         string  `json:"newUrl"`
	Outcome        Outcome `json:"outcome"`
	Attempts       int     `json:"attempts"`
	Error          string  `json:"error,omitempty"`
}

// Report summarizes a run
type Report struct {
	State          State         `json:"state"`
	DryRun         bool          `json:"dryRun"`
	ContentScanned int           `json:"contentScanned"`
	RowsScanned    int           `json:"rowsScanned"`
	Matched        int           `json:"matched"`
	Skipped        int           `json:"skipped"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	Abandoned      int           `json:"abandoned"`
	FirstError     string        `json:"firstError,omitempty"`
	Items          []Item        `json:"items"`
	Duration       time.Duration `json:"duration"`
}

// Failures returns the items whose update failed
func (r *Report) Failures() []Item {
	var out []Item
	for _, item := range r.Items {
		if item.Outcome == OutcomeFailed {
			out = append(out, item)
		}
	}
	return out
}

// Summary renders the report as a short human readable paragraph
func (r *Report) Summary() string {
	var b strings.Builder

	verb := "rewrote"
	done := r.Succeeded
	if r.DryRun {
		verb = "would rewrite"
		done = r.Matched
	}

	fmt.Fprintf(&b, "%s %s of %s matched URLs across %s titles (%s rows scanned) in %s",
		verb,
		humanize.Comma(int64(done)),
		humanize.Comma(int64(r.Matched)),
		humanize.Comma(int64(r.ContentScanned)),
		humanize.Comma(int64(r.RowsScanned)),
		r.Duration.Round(time.Millisecond),
	)
	if r.Failed > 0 || r.Abandoned > 0 || r.Skipped > 0 {
		fmt.Fprintf(&b, "; %d failed, %d abandoned, %d skipped (match only in query string)", r.Failed, r.Abandoned, r.Skipped)
	}
	fmt.Fprintf(&b, "; state %s", r.State)
	if r.FirstError != "" {
		fmt.Fprintf(&b, "\nfirst error: %s", r.FirstError)
	}
	return b.String()
}
