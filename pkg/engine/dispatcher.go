package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	conduiterrors "github.com/conduitflow/conduit/pkg/errors"
)

// defaultQueueSize bounds the dispatch queue. Ingress handlers enqueue and
// return immediately; a full queue rejects the trigger rather than blocking
// the HTTP path.
const defaultQueueSize = 64

// Dispatcher consumes trigger events from a bounded queue and runs them
// through the orchestrator. The retry policy is zero retries: any error from
// Execute routes straight to the failure hook, which finalizes the execution
// record. Retriable and non-retriable errors therefore differ only in how
// they are logged.
type Dispatcher struct {
	orch    *Orchestrator
	queue   chan TriggerEvent
	workers int
	log     *logrus.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
	// mu orders enqueues against the queue close in Shutdown. Dispatch holds
	// the read side across the send so Shutdown cannot close the channel
	// under it.
	mu sync.RWMutex
}

// NewDispatcher creates a dispatcher with the given worker count.
func NewDispatcher(orch *Orchestrator, workers int, log *logrus.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		orch:    orch,
		queue:   make(chan TriggerEvent, defaultQueueSize),
		workers: workers,
		log:     log,
		stopped: make(chan struct{}),
	}
}

// Start launches the worker goroutines. Workers exit when ctx is cancelled
// or Shutdown is called.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Dispatch enqueues a trigger event. It fails fast when the queue is full
// or the dispatcher has stopped; callers surface that to the trigger source.
func (d *Dispatcher) Dispatch(event TriggerEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	select {
	case <-d.stopped:
		return fmt.Errorf("dispatcher is shut down")
	default:
	}

	select {
	case d.queue <- event:
		return nil
	default:
		return fmt.Errorf("dispatch queue is full")
	}
}

// Shutdown stops accepting events and waits for in-flight runs to finish.
func (d *Dispatcher) Shutdown() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		close(d.stopped)
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-d.queue:
			if !ok {
				return
			}
			d.process(ctx, event)
		}
	}
}

// process runs one event with a zero-retry policy: the first error is final
// and the failure hook records it.
func (d *Dispatcher) process(ctx context.Context, event TriggerEvent) {
	err := d.orch.Execute(ctx, event)
	if err == nil {
		return
	}

	log := d.log.WithFields(logrus.Fields{
		"event_id":    event.ID,
		"workflow_id": event.Data.WorkflowID,
	}).WithError(err)
	if conduiterrors.IsNonRetriable(err) {
		log.Warn("run failed with non-retriable error")
	} else {
		log.Warn("run failed")
	}

	if hookErr := d.orch.HandleFailure(ctx, event, err); hookErr != nil {
		d.log.WithError(hookErr).WithField("event_id", event.ID).
			Error("failure hook could not finalize execution")
	}
}
