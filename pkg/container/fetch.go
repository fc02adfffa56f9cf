package container

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
)

// DefaultFetchConcurrency bounds concurrent refetches in FetchAll.
const DefaultFetchConcurrency = 8

// Dispatcher schedules work on the owning root's control thread.
type Dispatcher interface {
	Post(fn func())
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(fn func())

// Post calls f(fn).
func (f DispatchFunc) Post(fn func()) { f(fn) }

// FetchOptions tunes FetchAll.
type FetchOptions struct {
	// Concurrency bounds simultaneous fetches (DefaultFetchConcurrency if <= 0).
	Concurrency int

	// OnError receives FETCH_FAILURE errors on the control thread.
	OnError func(cid int, err error)
}

type fetchJob struct {
	cid    int
	model  *model.Model
	url    string
	source model.Source
}

// FetchAll refetches the backing data of every fetchable model.
//
// URLs are resolved on the calling goroutine; the fetches run concurrently
// and each completion is posted to d, where the response is merged onto the
// model through its parse capability. Merging emits the model's change
// notification, which is what re-renders the child. Failures are wrapped as
// FETCH_FAILURE and handed to opts.OnError, never returned.
//
// The returned channel is closed once every fetch finished and its
// completion was posted.
func (c *Container) FetchAll(ctx context.Context, d Dispatcher, opts FetchOptions) <-chan struct{} {
	var jobs []fetchJob
	for _, cid := range c.order {
		m := c.entries[cid].Model
		url, ok := m.FetchURL()
		if !ok {
			continue
		}
		jobs = append(jobs, fetchJob{cid: cid, model: m, url: url, source: m.Kind().Source})
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultFetchConcurrency
	}
	report := func(cid int, err error) {
		if opts.OnError != nil {
			opts.OnError(cid, errors.Wrap(errors.ErrCodeFetchFailure, err, "refetch cid %d", cid))
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for _, job := range jobs {
			g.Go(func() error {
				raw, err := job.source.Fetch(gctx, job.url)
				d.Post(func() {
					if err != nil {
						report(job.cid, err)
						return
					}
					// The child may have been removed while the fetch was in flight.
					if cur, ok := c.Model(job.cid); !ok || cur != job.model {
						return
					}
					if err := job.model.ApplyFetched(raw); err != nil {
						report(job.cid, err)
					}
				})
				return nil
			})
		}
		_ = g.Wait()
	}()
	return done
}
