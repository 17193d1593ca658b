// Package job turns the provider's fire-and-forget job submissions into
// synchronous outcomes.
//
// The provider has no push mechanism. A Waiter polls the job listing of a
// linode on a fixed interval until every job it was given has resolved, and
// reports whether all of them succeeded.
package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/linode-utils/internal/logging"
	"github.com/jbweber/linode-utils/internal/metrics"
	"github.com/jbweber/linode-utils/internal/provider"
)

// DefaultInterval is the delay between two job listings.
const DefaultInterval = 3 * time.Second

var (
	// ErrInvalidJobID is returned when a zero or negative job ID is passed to
	// the waiter. It indicates a programming error, never a transient one.
	ErrInvalidJobID = errors.New("invalid job id")

	// ErrJobFailed is matched by errors reporting a job that completed
	// unsuccessfully.
	ErrJobFailed = errors.New("job failed")

	// ErrTimeout is returned when the wait deadline expires before every job
	// resolved.
	ErrTimeout = errors.New("timed out waiting for jobs")
)

// Lister lists the jobs of a linode. Satisfied by provider.Client.
type Lister interface {
	ListJobs(ctx context.Context, id provider.LinodeID) ([]provider.Job, error)
}

// TickFunc is called before every poll with the IDs still outstanding. It is
// meant for progress reporting; the slice is a copy.
type TickFunc func(pending []provider.JobID)

// Waiter polls the provider until a set of jobs resolves.
type Waiter struct {
	Client Lister

	// Interval between polls. Zero means DefaultInterval.
	Interval time.Duration

	// Timeout bounds a single wait. Zero means no bound beyond the context.
	Timeout time.Duration

	Log     logrus.FieldLogger
	Metrics *metrics.Recorder
}

// NewWaiter creates a Waiter with the default interval and no timeout.
func NewWaiter(client Lister, log logrus.FieldLogger) *Waiter {
	return &Waiter{
		Client:   client,
		Interval: DefaultInterval,
		Log:      log,
	}
}

// FailedError reports jobs that completed unsuccessfully.
type FailedError struct {
	LinodeID provider.LinodeID
	Step     string
	JobIDs   []provider.JobID
	Messages []string
}

func (e *FailedError) Error() string {
	msg := fmt.Sprintf("%s on linode %d: jobs %v failed", e.Step, e.LinodeID, e.JobIDs)
	if len(e.Messages) > 0 {
		msg += fmt.Sprintf(" (%v)", e.Messages)
	}
	return msg
}

// Is makes errors.Is(err, ErrJobFailed) match.
func (e *FailedError) Is(target error) bool {
	return target == ErrJobFailed
}

// outcome is the aggregate result of one wait.
type outcome struct {
	success  bool
	failed   []provider.JobID
	messages []string
}

// Wait blocks until every job in ids has resolved and reports whether all of
// them succeeded. A single failed job makes the whole wait report false.
//
// A job missing from a listing is treated as resolved successfully, since
// the provider may prune finished jobs.
//
// Errors from the client are returned unchanged in the chain and are not
// retried. When the context or the waiter's Timeout expires, the error
// matches ErrTimeout.
func (w *Waiter) Wait(ctx context.Context, linodeID provider.LinodeID, ids []provider.JobID, onTick TickFunc) (bool, error) {
	o, err := w.wait(ctx, linodeID, "wait", ids, onTick)
	if err != nil {
		return false, err
	}
	return o.success, nil
}

// WaitSuccess waits for the jobs of one workflow step and returns a
// *FailedError naming the failed jobs if any job did not succeed.
func (w *Waiter) WaitSuccess(ctx context.Context, linodeID provider.LinodeID, step string, ids ...provider.JobID) error {
	o, err := w.wait(ctx, linodeID, step, ids, nil)
	if err != nil {
		return err
	}
	if !o.success {
		return &FailedError{
			LinodeID: linodeID,
			Step:     step,
			JobIDs:   o.failed,
			Messages: o.messages,
		}
	}
	return nil
}

func (w *Waiter) wait(ctx context.Context, linodeID provider.LinodeID, step string, ids []provider.JobID, onTick TickFunc) (outcome, error) {
	for i, id := range ids {
		if id <= 0 {
			return outcome{}, fmt.Errorf("%w: ids[%d] = %d", ErrInvalidJobID, i, id)
		}
	}

	pending := make(map[provider.JobID]bool, len(ids))
	for _, id := range ids {
		pending[id] = true
	}
	result := outcome{success: true}
	if len(pending) == 0 {
		return result, nil
	}

	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	log := logging.OrDiscard(w.Log).WithFields(logrus.Fields{
		"linode_id": linodeID,
		"step":      step,
		"job_ids":   sortedIDs(pending),
	})
	log.Debug("waiting for jobs")

	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if onTick != nil {
			onTick(sortedIDs(pending))
		}

		jobs, err := w.Client.ListJobs(ctx, linodeID)
		w.Metrics.ObservePoll()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return outcome{}, w.expired(ctx, linodeID, step, pending, start)
			}
			w.Metrics.ObserveWait(step, metrics.ResultError, time.Since(start))
			return outcome{}, fmt.Errorf("failed to list jobs for linode %d: %w", linodeID, err)
		}

		listed := make(map[provider.JobID]provider.Job, len(jobs))
		for _, j := range jobs {
			listed[j.ID] = j
		}

		for _, id := range sortedIDs(pending) {
			j, ok := listed[id]
			switch {
			case !ok:
				log.WithField("job_id", id).Debug("job missing from listing, treating as succeeded")
				w.Metrics.ObserveJob("", metrics.OutcomePruned)
				delete(pending, id)
			case j.Done():
				delete(pending, id)
				if j.HostSuccess {
					w.Metrics.ObserveJob(j.Action, metrics.OutcomeSuccess)
					continue
				}
				log.WithFields(logrus.Fields{
					"job_id":  id,
					"action":  j.Action,
					"message": j.HostMessage,
				}).Warn("job failed")
				w.Metrics.ObserveJob(j.Action, metrics.OutcomeFailure)
				result.success = false
				result.failed = append(result.failed, id)
				if j.HostMessage != "" {
					result.messages = append(result.messages, j.HostMessage)
				}
			}
		}

		if len(pending) == 0 {
			res := metrics.ResultSuccess
			if !result.success {
				res = metrics.ResultFailed
			}
			w.Metrics.ObserveWait(step, res, time.Since(start))
			log.WithField("success", result.success).Debug("jobs resolved")
			return result, nil
		}

		select {
		case <-ctx.Done():
			return outcome{}, w.expired(ctx, linodeID, step, pending, start)
		case <-ticker.C:
		}
	}
}

// expired builds the error returned when the context ends mid-wait.
func (w *Waiter) expired(ctx context.Context, linodeID provider.LinodeID, step string, pending map[provider.JobID]bool, start time.Time) error {
	elapsed := time.Since(start)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		w.Metrics.ObserveWait(step, metrics.ResultTimeout, elapsed)
		return fmt.Errorf("%w: %s on linode %d: jobs %v still pending after %v",
			ErrTimeout, step, linodeID, sortedIDs(pending), elapsed.Round(time.Millisecond))
	}
	w.Metrics.ObserveWait(step, metrics.ResultError, elapsed)
	return fmt.Errorf("%s on linode %d: wait for jobs %v interrupted: %w",
		step, linodeID, sortedIDs(pending), ctx.Err())
}

func sortedIDs(set map[provider.JobID]bool) []provider.JobID {
	ids := make([]provider.JobID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
