package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fastbot-dev/fastbot/pkg/frame"
	"github.com/fastbot-dev/fastbot/pkg/pipeline"
)

// recorder is a pass-through stage that records every frame it sees.
type recorder struct {
	name string
	emit pipeline.Emit

	mu     sync.Mutex
	frames []frame.Frame
}

func newRecorder(name string) *recorder {
	return &recorder{name: name}
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Start(ctx context.Context, emit pipeline.Emit) error {
	r.emit = emit
	return nil
}

func (r *recorder) Process(ctx context.Context, f frame.Frame) error {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	r.emit(f)
	return nil
}

func (r *recorder) Stop() error { return nil }

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.frames))
	for i, f := range r.frames {
		names[i] = f.Name()
	}
	return names
}

func runTask(t *testing.T, task *pipeline.Task) chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- pipeline.NewRunner().Run(context.Background(), task)
	}()
	return errCh
}

func waitErr(t *testing.T, errCh chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("task did not finish")
		return nil
	}
}

func TestTaskEndTerminates(t *testing.T) {
	first := newRecorder("first")
	second := newRecorder("second")
	task := pipeline.NewTask(pipeline.New(first, second), pipeline.Params{})

	errCh := runTask(t, task)

	if err := task.QueueFrames(&frame.Text{Text: "a"}, &frame.Text{Text: "b"}, &frame.End{}); err != nil {
		t.Fatalf("queue: %v", err)
	}

	if err := waitErr(t, errCh); err != nil {
		t.Fatalf("expected graceful finish, got %v", err)
	}

	want := []string{"text", "text", "end"}
	for _, rec := range []*recorder{first, second} {
		got := rec.seen()
		if len(got) != len(want) {
			t.Fatalf("%s: expected %d frames, got %v", rec.name, len(want), got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("%s: frame %d: expected %s, got %s", rec.name, i, want[i], got[i])
			}
		}
	}
}

func TestTaskPreservesFrameOrder(t *testing.T) {
	rec := newRecorder("rec")
	task := pipeline.NewTask(pipeline.New(rec), pipeline.Params{})

	errCh := runTask(t, task)

	for i := 0; i < 50; i++ {
		if err := task.QueueFrame(&frame.Text{Text: string(rune('a' + i%26))}); err != nil {
			t.Fatalf("queue %d: %v", i, err)
		}
	}
	task.Stop()

	if err := waitErr(t, errCh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.frames) != 51 {
		t.Fatalf("expected 51 frames, got %d", len(rec.frames))
	}
	for i := 0; i < 50; i++ {
		f, ok := rec.frames[i].(*frame.Text)
		if !ok {
			t.Fatalf("frame %d: expected text, got %s", i, rec.frames[i].Name())
		}
		if f.Text != string(rune('a'+i%26)) {
			t.Errorf("frame %d out of order: %q", i, f.Text)
		}
	}
}

func TestTaskQueueAfterFinish(t *testing.T) {
	task := pipeline.NewTask(pipeline.New(newRecorder("rec")), pipeline.Params{})

	errCh := runTask(t, task)
	task.Stop()
	if err := waitErr(t, errCh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := task.QueueFrame(&frame.Text{Text: "late"}); !errors.Is(err, pipeline.ErrTaskFinished) {
		t.Errorf("expected ErrTaskFinished, got %v", err)
	}
}

func TestTaskStopIsIdempotent(t *testing.T) {
	task := pipeline.NewTask(pipeline.New(newRecorder("rec")), pipeline.Params{})

	errCh := runTask(t, task)
	task.Stop()
	task.Stop()
	task.Stop()

	if err := waitErr(t, errCh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTaskContextCancel(t *testing.T) {
	task := pipeline.NewTask(pipeline.New(newRecorder("rec")), pipeline.Params{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- pipeline.NewRunner().Run(ctx, task)
	}()

	cancel()

	err := waitErr(t, errCh)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// failingStart verifies start errors surface and stop the task.
type failingStart struct{ recorder }

func (f *failingStart) Start(ctx context.Context, emit pipeline.Emit) error {
	return errors.New("boom")
}

func TestTaskStartFailure(t *testing.T) {
	bad := &failingStart{recorder{name: "bad"}}
	task := pipeline.NewTask(pipeline.New(newRecorder("ok"), bad), pipeline.Params{})

	err := pipeline.NewRunner().Run(context.Background(), task)
	if err == nil {
		t.Fatal("expected start error")
	}
}

func TestTaskParams(t *testing.T) {
	params := pipeline.Params{
		AllowInterruptions:    true,
		EnableMetrics:         true,
		ReportOnlyInitialTTFB: true,
	}
	task := pipeline.NewTask(pipeline.New(), params)

	if task.Params() != params {
		t.Errorf("expected params %+v, got %+v", params, task.Params())
	}
}
