package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/hazyhaar/recolte/internal/faults"
)

// ProcessURLs drives a batch through the pipeline in fixed, non-overlapping
// windows of opts.WindowSize (DefaultWindowSize when zero): a window's URLs
// run concurrently, and the next window starts only after the whole window
// has settled. Results come back in input order, one per URL, failures
// included. A panicking worker yields an UNKNOWN_ERROR result for its slot
// and never takes down the batch.
func (o *Orchestrator) ProcessURLs(ctx context.Context, urls []string, opts Options) []*Result {
	results := make([]*Result, len(urls))
	if len(urls) == 0 {
		return results
	}

	window := opts.WindowSize
	if window <= 0 {
		window = DefaultWindowSize
	}

	pool, err := ants.NewPool(window)
	if err != nil {
		// Pool construction only fails on a nonsensical size; fall back to
		// sequential processing rather than refusing the batch.
		o.logger.Warn("pipeline: batch pool unavailable, running sequentially", "error", err)
		for i, u := range urls {
			results[i] = o.processGuarded(ctx, u, opts)
		}
		return results
	}
	defer pool.Release()

	for base := 0; base < len(urls); base += window {
		end := min(base+window, len(urls))

		var wg sync.WaitGroup
		for i := base; i < end; i++ {
			idx := i
			wg.Add(1)
			task := func() {
				defer wg.Done()
				results[idx] = o.processGuarded(ctx, urls[idx], opts)
			}
			if err := pool.Submit(task); err != nil {
				wg.Done()
				results[idx] = o.refusedResult(urls[idx], err)
			}
		}
		wg.Wait()

		if ctx.Err() != nil {
			for i := end; i < len(urls); i++ {
				results[i] = o.refusedResult(urls[i], ctx.Err())
			}
			break
		}
	}
	return results
}

// processGuarded converts a worker panic into a failure Result so one bad
// URL cannot sink its window.
func (o *Orchestrator) processGuarded(ctx context.Context, url string, opts Options) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline: worker panic", "url", url, "panic", r)
			res = (&Result{URL: url, OperationID: o.newOp()}).fail(o, "",
				faults.New(faults.CodeUnknown, "", fmt.Sprintf("panic: %v", r)))
		}
	}()
	return o.ProcessURL(ctx, url, opts)
}

func (o *Orchestrator) refusedResult(url string, cause error) *Result {
	res := &Result{URL: url, OperationID: o.newOp()}
	ferr := faults.Wrap(faults.CodeUnknown, "", cause)
	res.Error = ferr
	res.Recovery = faults.Recommend(ferr.Code, ferr.Message)
	o.count(func(s *Stats) { s.Processed++; s.Failed++ })
	return res
}
