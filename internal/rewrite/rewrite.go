// Package rewrite finds and replaces a URL fragment across every availability row through the REST API.
//
// A run scans the catalog page by page, plans one update per matching row and then applies the
// updates one at a time. Rate-limited updates are retried with exponential backoff; any other
// failure is recorded and the run moves on. Pause, Resume and Cancel may be called from any
// goroutine while Run is in progress.
package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glefebvre/reelvault/internal/availability"
	"github.com/glefebvre/reelvault/internal/client"
	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/glefebvre/reelvault/internal/logger"
	"github.com/glefebvre/reelvault/internal/models"
	"github.com/glefebvre/reelvault/internal/retry"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle position of a Rewriter
type State int32

const (
	Idle State = iota
	Running
	Paused
	Cancelled
	Completed
)

var stateNames = [...]string{"idle", "running", "paused", "cancelled", "completed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// MarshalText renders the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	DefaultPageSize    = 50
	DefaultConcurrency = 4
)

// ErrAlreadyStarted is returned when Run is called twice
var ErrAlreadyStarted = errors.New("rewrite already started")

var errCancelled = errors.New("rewrite cancelled")

// API is the subset of the REST client a run needs
type API interface {
	ListContent(ctx context.Context, page, limit int) (*models.Page[models.Content], error)
	ListAvailability(ctx context.Context, contentID uint) ([]models.Availability, error)
	UpdateAvailability(ctx context.Context, contentID, availabilityID uint, in availability.Input) (*models.Availability, error)
}

// Options configures a run
type Options struct {
	Search  string
	Replace string

	PageSize    int
	Concurrency int
	Retry       retry.Config
	DryRun      bool

	// OnProgress is called after each planned item is handled
	OnProgress func(Progress)
}

// Progress is reported after each item
type Progress struct {
	Done  int
	Total int
	Item  Item
}

// DefaultRetry backs off 1s, 2s, 4s, 8s for a total of five attempts
func DefaultRetry() retry.Config {
	return retry.Config{
		MaxAttempts:       5,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2,
	}
}

// Rewriter runs one bulk rewrite
type Rewriter struct {
	api  API
	opts Options
	log  *logger.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	state  State
	cancel context.CancelFunc
}

// planned pairs a report item with the row it was computed from
type planned struct {
	item *Item
	row  models.Availability
}

// New validates opts and returns an idle Rewriter
func New(api API, opts Options, log *logger.Logger) (*Rewriter, error) {
	if opts.Search == "" {
		return nil, apperrors.ValidationError("search must not be empty")
	}
	if opts.Search == opts.Replace {
		return nil, apperrors.ValidationError("search and replace must differ")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	opts.PageSize = min(opts.PageSize, models.MaxPageLimit)
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetry()
	}
	if opts.Retry.BackoffMultiplier == 0 {
		opts.Retry.BackoffMultiplier = 2
	}
	if opts.Retry.DelayHint == nil {
		opts.Retry.DelayHint = client.RetryAfter
	}
	if log == nil {
		log = logger.AppLogger()
	}

	r := &Rewriter{api: api, opts: opts, log: log}
	r.cond = sync.NewCond(&r.mu)
	return r, nil
}

// State returns the current state
func (r *Rewriter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Pause suspends the run before its next item. It reports whether the state changed.
func (r *Rewriter) Pause() bool {
	return r.transition(Paused, Running)
}

// Resume continues a paused run from the item it stopped at
func (r *Rewriter) Resume() bool {
	return r.transition(Running, Paused)
}

// Cancel abandons the remaining items. Updates already applied stay applied.
func (r *Rewriter) Cancel() bool {
	changed := r.transition(Cancelled, Idle, Running, Paused)
	if changed {
		r.mu.Lock()
		if r.cancel != nil {
			r.cancel()
		}
		r.mu.Unlock()
	}
	return changed
}

// Toggle pauses a running rewrite or resumes a paused one and returns the new state
func (r *Rewriter) Toggle() State {
	if r.Pause() {
		return Paused
	}
	if r.Resume() {
		return Running
	}
	return r.State()
}

func (r *Rewriter) transition(to State, from ...State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !lo.Contains(from, r.state) {
		return false
	}
	r.log.WithFields(map[string]interface{}{
		"from": r.state.String(),
		"to":   to.String(),
	}).Info("rewrite state changed")
	r.state = to
	r.cond.Broadcast()
	return true
}

// checkpoint blocks while paused and reports whether the run may continue
func (r *Rewriter) checkpoint(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.state == Paused && ctx.Err() == nil {
		r.cond.Wait()
	}
	if ctx.Err() != nil && r.state != Completed {
		r.state = Cancelled
	}
	return r.state == Running
}

// markCancelled records a cancellation noticed outside checkpoint, such as a
// context that ended during a request
func (r *Rewriter) markCancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Running || r.state == Paused {
		r.log.WithFields(map[string]interface{}{
			"from": r.state.String(),
			"to":   Cancelled.String(),
		}).Info("rewrite state changed")
		r.state = Cancelled
		r.cond.Broadcast()
	}
}

// Run scans the catalog and applies the rewrite. Cancellation is reported through the
// report state, not as an error; an error means the scan itself could not complete.
func (r *Rewriter) Run(ctx context.Context) (*Report, error) {
	r.mu.Lock()
	switch r.state {
	case Cancelled:
		r.mu.Unlock()
		return &Report{State: Cancelled, DryRun: r.opts.DryRun, Items: []Item{}}, nil
	case Idle:
	default:
		r.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.state = Running
	r.mu.Unlock()
	defer cancel()

	// wake a paused run when the context ends
	stop := context.AfterFunc(ctx, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer stop()

	start := time.Now()
	report := &Report{DryRun: r.opts.DryRun, Items: []Item{}}

	r.log.WithFields(map[string]interface{}{
		"search":  r.opts.Search,
		"replace": r.opts.Replace,
		"dry_run": r.opts.DryRun,
	}).InfoContext(ctx, "starting URL rewrite")

	plan, err := r.scan(ctx, report)
	if errors.Is(err, errCancelled) {
		r.markCancelled()
	} else if err != nil {
		r.finish(report, start)
		report.FirstError = err.Error()
		r.log.ErrorContext(ctx, "URL rewrite scan failed", err)
		return report, err
	}

	for i, p := range plan {
		if !r.checkpoint(ctx) {
			break
		}

		if r.opts.DryRun {
			p.item.Outcome = OutcomePlanned
		} else {
			r.apply(ctx, p)
		}
		if p.item.Outcome == OutcomeAbandoned {
			r.markCancelled()
			break
		}

		if r.opts.OnProgress != nil {
			r.opts.OnProgress(Progress{Done: i + 1, Total: len(plan), Item: *p.item})
		}
	}

	r.finish(report, start)
	r.log.WithFields(map[string]interface{}{
		"state":     report.State.String(),
		"matched":   report.Matched,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"abandoned": report.Abandoned,
	}).InfoContext(ctx, "URL rewrite finished")
	return report, nil
}

// scan pages through the catalog and returns one planned update per matching row
func (r *Rewriter) scan(ctx context.Context, report *Report) ([]planned, error) {
	var indexes []int
	var rows []models.Availability

	for page := 1; ; page++ {
		if !r.checkpoint(ctx) {
			return nil, errCancelled
		}

		content, err := retry.DoWithResult(ctx, r.opts.Retry, func(ctx context.Context) (*models.Page[models.Content], error) {
			return r.api.ListContent(ctx, page, r.opts.PageSize)
		}, apperrors.IsRetryable)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errCancelled
			}
			return nil, fmt.Errorf("failed to list content page %d: %w", page, err)
		}

		perContent, err := r.fetchAvailability(ctx, content.Data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errCancelled
			}
			return nil, err
		}

		for i, c := range content.Data {
			report.ContentScanned++
			report.RowsScanned += len(perContent[i])

			matches := lo.Filter(perContent[i], func(a models.Availability, _ int) bool {
				return strings.Contains(a.URL, r.opts.Search)
			})
			for _, row := range matches {
				newURL, ok := RewriteURL(row.URL, r.opts.Search, r.opts.Replace)
				if !ok {
					report.Skipped++
					continue
				}
				report.Items = append(report.Items, Item{
					ContentID:      c.ID,
					ContentTitle:   c.Title,
					AvailabilityID: row.ID,
					OldURL:         row.URL,
					NewURL:         newURL,
					Outcome:        OutcomePending,
				})
				indexes = append(indexes, len(report.Items)-1)
				rows = append(rows, row)
			}
		}

		if len(content.Data) == 0 || page >= content.Pagination.Pages {
			break
		}
	}

	report.Matched = len(report.Items)
	plan := make([]planned, len(indexes))
	for i, idx := range indexes {
		plan[i] = planned{item: &report.Items[idx], row: rows[i]}
	}
	return plan, nil
}

// fetchAvailability lists the rows of each content of a page with bounded concurrency
func (r *Rewriter) fetchAvailability(ctx context.Context, contents []models.Content) ([][]models.Availability, error) {
	out := make([][]models.Availability, len(contents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, c := range contents {
		g.Go(func() error {
			rows, err := retry.DoWithResult(gctx, r.opts.Retry, func(ctx context.Context) ([]models.Availability, error) {
				return r.api.ListAvailability(ctx, c.ID)
			}, apperrors.IsRetryable)
			if err != nil {
				return fmt.Errorf("failed to list availability of content %d: %w", c.ID, err)
			}
			out[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// apply sends one update, retrying only rate-limited attempts
func (r *Rewriter) apply(ctx context.Context, p planned) {
	in := availability.InputOf(p.row)
	in.URL = p.item.NewURL

	cfg := r.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
			r.log.WithFields(map[string]interface{}{
				"availability_id": p.item.AvailabilityID,
				"attempt":         attempt,
				"delay":           delay.String(),
			}).WarnContext(ctx, "update rate limited, backing off")
		}
	}

	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		p.item.Attempts++
		_, err := r.api.UpdateAvailability(ctx, p.item.ContentID, p.item.AvailabilityID, in)
		return err
	}, apperrors.IsRetryable)

	switch {
	case err == nil:
		p.item.Outcome = OutcomeUpdated
	case ctx.Err() != nil:
		p.item.Outcome = OutcomeAbandoned
	default:
		p.item.Outcome = OutcomeFailed
		p.item.Error = err.Error()
		r.log.WithFields(map[string]interface{}{
			"content_id":      p.item.ContentID,
			"availability_id": p.item.AvailabilityID,
			"attempts":        p.item.Attempts,
		}).ErrorContext(ctx, "failed to rewrite availability URL", err)
	}
}

// finish settles the final state and tallies the items
func (r *Rewriter) finish(report *Report, start time.Time) {
	r.mu.Lock()
	if r.state != Cancelled {
		r.state = Completed
	}
	report.State = r.state
	r.mu.Unlock()

	for i := range report.Items {
		item := &report.Items[i]
		switch item.Outcome {
		case OutcomePending:
			item.Outcome = OutcomeAbandoned
			report.Abandoned++
		case OutcomeAbandoned:
			report.Abandoned++
		case OutcomeUpdated:
			report.Succeeded++
		case OutcomeFailed:
			report.Failed++
			if report.FirstError == "" {
				report.FirstError = fmt.Sprintf("content %d availability %d: %s", item.ContentID, item.AvailabilityID, item.Error)
			}
		}
	}
	report.Duration = time.Since(start)
}
