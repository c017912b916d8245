package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fastbot-dev/fastbot/pkg/frame"
)

// frameBuffer is the per-stage inbox capacity. Audio arrives in 20ms
// chunks, so this absorbs roughly a second of transport jitter.
const frameBuffer = 64

// ErrTaskFinished is returned when queueing a frame after the task ended.
var ErrTaskFinished = errors.New("pipeline: task finished")

// Params controls task behavior.
type Params struct {
	// AllowInterruptions lets user speech cancel in-flight bot output.
	AllowInterruptions bool

	// EnableMetrics turns on per-turn latency collection.
	EnableMetrics bool

	// ReportOnlyInitialTTFB limits latency reports to the first turn.
	ReportOnlyInitialTTFB bool
}

// Task binds a pipeline to runtime parameters and an external injection
// point. Frames queued on the task enter at the pipeline head and flow
// through every stage in order.
type Task struct {
	pipe   *Pipeline
	params Params
	logger *slog.Logger

	head chan frame.Frame
	done chan struct{}
	once sync.Once

	// ended is set when an End frame reached the sink (graceful finish).
	ended atomic.Bool
}

// NewTask creates a task for the pipeline.
func NewTask(pipe *Pipeline, params Params) *Task {
	return &Task{
		pipe:   pipe,
		params: params,
		logger: slog.Default().With("component", "pipeline.task"),
		head:   make(chan frame.Frame, frameBuffer),
		done:   make(chan struct{}),
	}
}

// Params returns the task parameters.
func (t *Task) Params() Params {
	return t.params
}

// QueueFrame injects a frame at the pipeline head.
func (t *Task) QueueFrame(f frame.Frame) error {
	select {
	case <-t.done:
		return ErrTaskFinished
	case t.head <- f:
		return nil
	}
}

// QueueFrames injects frames in order at the pipeline head.
func (t *Task) QueueFrames(frames ...frame.Frame) error {
	for _, f := range frames {
		if err := t.QueueFrame(f); err != nil {
			return err
		}
	}
	return nil
}

// Stop requests graceful termination by queueing an End frame.
// Safe to call more than once; the pipeline finishes when the first
// End frame drains through every stage.
func (t *Task) Stop() {
	_ = t.QueueFrame(&frame.End{})
}

// Cancel terminates the task immediately, abandoning queued frames.
func (t *Task) Cancel() {
	t.finish()
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) finish() {
	t.once.Do(func() {
		close(t.done)
	})
}

// emitTo builds the emitter delivering into the given stage inbox.
func (t *Task) emitTo(ch chan frame.Frame) Emit {
	return func(f frame.Frame) {
		select {
		case ch <- f:
		case <-t.done:
		}
	}
}

// run executes the task until graceful end or context cancellation.
func (t *Task) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	procs := t.pipe.Processors()
	n := len(procs)

	// Stage inboxes. chans[0] is the external injection point; chans[n]
	// is the sink watched for the End frame.
	chans := make([]chan frame.Frame, n+1)
	chans[0] = t.head
	for i := 1; i <= n; i++ {
		chans[i] = make(chan frame.Frame, frameBuffer)
	}

	// Start downstream-first so a stage never emits into an unstarted
	// neighbor's machinery.
	for i := n - 1; i >= 0; i-- {
		if err := procs[i].Start(ctx, t.emitTo(chans[i+1])); err != nil {
			for j := i + 1; j < n; j++ {
				_ = procs[j].Stop()
			}
			t.finish()
			return fmt.Errorf("pipeline: start %s: %w", procs[i].Name(), err)
		}
	}

	var wg sync.WaitGroup

	// Stage pumps.
	for i, p := range procs {
		wg.Add(1)
		go func(in chan frame.Frame, p Processor) {
			defer wg.Done()
			for {
				select {
				case <-t.done:
					return
				case f := <-in:
					if err := p.Process(ctx, f); err != nil {
						t.logger.Error("processor error",
							"processor", p.Name(),
							"frame", f.Name(),
							"error", err,
						)
					}
				}
			}
		}(chans[i], p)
	}

	// Sink: the task is complete once an End frame has traversed every
	// stage.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-t.done:
				return
			case f := <-chans[n]:
				if _, ok := f.(*frame.End); ok {
					t.ended.Store(true)
					t.finish()
					return
				}
			}
		}
	}()

	// Context watcher.
	go func() {
		select {
		case <-ctx.Done():
			t.finish()
		case <-t.done:
		}
	}()

	<-t.done
	cancel()
	wg.Wait()

	for i := n - 1; i >= 0; i-- {
		if err := procs[i].Stop(); err != nil {
			t.logger.Warn("processor stop failed",
				"processor", procs[i].Name(),
				"error", err,
			)
		}
	}

	if t.ended.Load() {
		return nil
	}
	return ctx.Err()
}

// Runner executes pipeline tasks.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a runner.
func NewRunner() *Runner {
	return &Runner{
		logger: slog.Default().With("component", "pipeline.runner"),
	}
}

// Run executes the task until completion or context cancellation.
func (r *Runner) Run(ctx context.Context, t *Task) error {
	r.logger.Info("task started",
		"stages", len(t.pipe.Processors()),
		"allow_interruptions", t.params.AllowInterruptions,
		"enable_metrics", t.params.EnableMetrics,
	)

	err := t.run(ctx)
	if err != nil {
		r.logger.Warn("task finished", "error", err)
		return err
	}

	r.logger.Info("task finished")
	return nil
}
