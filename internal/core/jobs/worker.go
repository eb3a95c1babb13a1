package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quicknet-il/support-bot-be/internal/shared/utils"
)

// Worker polls the queue and dispatches jobs to registered handlers.
type Worker struct {
	queue    *Queue
	config   WorkerConfig
	handlers map[string]Handler
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

func NewWorker(queue *Queue, config WorkerConfig) *Worker {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	return &Worker{
		queue:    queue,
		config:   config,
		handlers: make(map[string]Handler),
	}
}

func (w *Worker) RegisterHandler(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[handler.Type()] = handler
}

// Start launches the worker goroutines. They stop when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
	utils.LogInfo("job worker started", map[string]interface{}{
		"concurrency": w.config.Concurrency,
	})
}

// Wait blocks until all worker goroutines have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processNext(ctx); err != nil && !errors.Is(err, ErrNoJobsAvailable) {
				utils.LogWarn("job processing error", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func (w *Worker) processNext(ctx context.Context) error {
	job, err := w.queue.Dequeue(ctx)
	if err != nil {
		return err
	}

	w.mu.RLock()
	handler, ok := w.handlers[job.Type]
	w.mu.RUnlock()
	if !ok {
		return w.queue.MarkFailed(ctx, job, errors.New("no handler for job type "+job.Type))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	if err := handler.Handle(jobCtx, job); err != nil {
		utils.LogWarn("job failed", map[string]interface{}{
			"job_id": job.ID.String(), "type": job.Type, "attempt": job.Attempts, "error": err.Error(),
		})
		return w.queue.MarkFailed(ctx, job, err)
	}

	return w.queue.MarkCompleted(ctx, job.ID)
}
