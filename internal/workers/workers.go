package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MKhiriev/go-miniservice/internal/logger"
)

type Workers struct {
	workers []Worker
	logger  *logger.Logger
}

func New(log *logger.Logger, ws ...Worker) *Workers {
	if log == nil {
		log = logger.Nop()
	}
	return &Workers{workers: ws, logger: log.WithComponent("workers")}
}

func (w *Workers) Add(worker Worker) {
	w.workers = append(w.workers, worker)
}

// Run starts every worker and waits for all of them. The first worker to
// return, with or without an error, cancels the others.
func (w *Workers) Run(ctx context.Context) error {
	if len(w.workers) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, worker := range w.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()

			w.logger.Info().Str("worker", worker.Name()).Msg("worker started")
			err := worker.Run(ctx)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("worker %s: %w", worker.Name(), err))
				mu.Unlock()
			}
			w.logger.Info().Str("worker", worker.Name()).Err(err).Msg("worker stopped")
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// DrainAfter pairs front and back so that back keeps running until front has
// returned, even when the shared context is cancelled first. The pair is
// meant for a single Run.
func DrainAfter(front, back Worker) []Worker {
	frontDone := make(chan struct{})
	return []Worker{
		Func(front.Name(), func(ctx context.Context) error {
			defer close(frontDone)
			return front.Run(ctx)
		}),
		Func(back.Name(), func(ctx context.Context) error {
			backCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			defer cancel()
			go func() {
				select {
				case <-frontDone:
					cancel()
				case <-backCtx.Done():
				}
			}()
			return back.Run(backCtx)
		}),
	}
}

// Func adapts a plain function to Worker.
func Func(name string, run func(ctx context.Context) error) Worker {
	return funcWorker{name: name, run: run}
}

type funcWorker struct {
	name string
	run  func(ctx context.Context) error
}

func (f funcWorker) Name() string                  { return f.name }
func (f funcWorker) Run(ctx context.Context) error { return f.run(ctx) }
