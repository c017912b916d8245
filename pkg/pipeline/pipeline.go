// Package pipeline implements the linear frame pipeline that drives the bot.
//
// A Pipeline is an ordered list of Processors. Each processor runs on its
// own goroutine with a buffered inbox, so frames flow strictly in order
// within a stage while stages overlap in time. Processors receive an Emit
// function at start time and use it for both synchronous pass-through and
// asynchronous output (network callbacks, streaming responses).
//
// A Task binds a pipeline to runtime parameters and an injection point for
// externally queued frames; a Runner executes the task until an End frame
// drains through the whole pipeline or the context is cancelled.
package pipeline

import (
	"context"

	"github.com/fastbot-dev/fastbot/pkg/frame"
)

// Emit delivers a frame to the next pipeline stage.
// It never blocks past task shutdown and is safe to call from any goroutine.
type Emit func(frame.Frame)

// Processor is one pipeline stage.
//
// A processor must re-emit every frame it does not consume, so frames it
// has no interest in still reach downstream stages.
type Processor interface {
	// Name returns a short stable identifier used in logs.
	Name() string

	// Start prepares the processor and hands it the emitter for its
	// downstream stage. Processors that produce frames asynchronously
	// keep the emitter and use it from their own goroutines.
	Start(ctx context.Context, emit Emit) error

	// Process handles one inbound frame. It is called from a single
	// goroutine per processor, in frame order.
	Process(ctx context.Context, f frame.Frame) error

	// Stop releases resources. Called once after the task finishes,
	// in reverse pipeline order.
	Stop() error
}

// Pipeline is an ordered list of processors.
type Pipeline struct {
	procs []Processor
}

// New creates a pipeline from processors in upstream-to-downstream order.
func New(procs ...Processor) *Pipeline {
	return &Pipeline{procs: procs}
}

// Processors returns the stages in pipeline order.
func (p *Pipeline) Processors() []Processor {
	return p.procs
}
