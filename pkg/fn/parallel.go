package fn

import (
	"context"
	"sync"
)

// BatchStage runs stage over every item with at most workers in flight and
// returns the results in input order. It never short-circuits on failure;
// items not started before ctx ends fail with ctx.Err().
func BatchStage[T, U any](workers int, stage Stage[T, U]) func(context.Context, []T) []Result[U] {
	return func(ctx context.Context, items []T) []Result[U] {
		out := make([]Result[U], len(items))
		if len(items) == 0 {
			return out
		}
		n := workers
		if n <= 0 || n > len(items) {
			n = len(items)
		}

		next := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < n; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range next {
					out[i] = stage(ctx, items[i])
				}
			}()
		}

		i := 0
	feed:
		for ; i < len(items); i++ {
			select {
			case next <- i:
			case <-ctx.Done():
				break feed
			}
		}
		close(next)
		wg.Wait()
		for ; i < len(items); i++ {
			out[i] = Err[U](ctx.Err())
		}
		return out
	}
}

// Partition splits results into the successful values and the errors.
func Partition[T any](results []Result[T]) ([]T, []error) {
	var vals []T
	var errs []error
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		vals = append(vals, r.val)
	}
	return vals, errs
}
