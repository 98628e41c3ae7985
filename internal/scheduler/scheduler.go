// Package scheduler walks forge's build graph from a set of requested
// goals, collects the rules whose outputs are stale, and runs them with
// bounded parallelism, respecting dependency readiness and emitting
// state-change events as it goes.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"forge/internal/graph"
	"forge/internal/logging"
)

// ErrCannotBeBuilt is returned when the execution loop ends with rules
// still queued: their inputs never became ready, typically because an
// upstream rule failed.
var ErrCannotBeBuilt = errors.New("scheduler: cannot be built")

// EventKind distinguishes the stages of a rule's lifecycle the event sink
// observes.
type EventKind int

const (
	EventScheduled EventKind = iota
	EventProcessing
	EventProcessed
)

func (k EventKind) String() string {
	switch k {
	case EventProcessing:
		return "processing"
	case EventProcessed:
		return "processed"
	default:
		return "scheduled"
	}
}

// Event is a single rule state-change notification, carrying a stable
// correlation ID so a host observing the stream can group the
// Scheduled/Processing/Processed triad for one rule invocation.
type Event struct {
	CorrelationID uuid.UUID
	Kind          EventKind
	RuleID        uint64
	OutputNames   []string
	Err           error
}

// Sink receives scheduler events. Implementations must not block for long;
// the scheduler calls Emit synchronously from its own goroutine.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(e Event) { f(e) }

// Options configures a single Run.
type Options struct {
	Jobs   int
	DryRun bool
	Sink   Sink
}

func (o Options) jobs() int {
	if o.Jobs <= 0 {
		return 1
	}
	return o.Jobs
}

func (o Options) emit(e Event) {
	if o.Sink != nil {
		o.Sink.Emit(e)
	}
}

// entry pairs a scheduled rule with the correlation ID assigned when it
// was first queued, so every event for that rule's invocation shares one ID.
type entry struct {
	rule *graph.Rule
	corr uuid.UUID
}

// Run walks the graph from goals, then drives the transitively-stale rule
// set to completion. It returns ErrCannotBeBuilt if rules remain queued
// when no more progress can be made.
func Run(ctx context.Context, store *graph.Store, goalNames []string, opts Options) error {
	goals := store.Goals(goalNames)

	scheduled := make(map[uint64]bool)
	var queue []entry

	schedule := func(r *graph.Rule) {
		if scheduled[r.ID()] {
			return
		}
		if !r.Schedule() {
			return
		}
		scheduled[r.ID()] = true
		corr := uuid.New()
		queue = append(queue, entry{rule: r, corr: corr})
		opts.emit(Event{CorrelationID: corr, Kind: EventScheduled, RuleID: r.ID(), OutputNames: r.OutputNames()})
	}

	for _, g := range goals {
		g.Walk(schedule)
	}

	logging.SchedulerDebug("walk complete: %d rules scheduled", len(queue))

	if opts.DryRun {
		return nil
	}

	return drive(ctx, queue, opts)
}

// drive runs the execution loop described by the scheduler's readiness
// and bounded-concurrency rules: up to Jobs rules in flight, a bounded
// ready-rotation pass over the queue, awaiting any running task before
// topping the set back up.
func drive(ctx context.Context, queue []entry, opts Options) error {
	jobs := opts.jobs()

	type result struct {
		e   entry
		err error
	}
	done := make(chan result)
	inFlight := 0

	popReady := func() (entry, bool) {
		n := len(queue)
		for i := 0; i < n; i++ {
			e := queue[0]
			queue = queue[1:]
			if e.rule.ReadyInputs() {
				return e, true
			}
			queue = append(queue, e)
		}
		return entry{}, false
	}

	launch := func(e entry) {
		inFlight++
		opts.emit(Event{CorrelationID: e.corr, Kind: EventProcessing, RuleID: e.rule.ID(), OutputNames: e.rule.OutputNames()})
		go func() {
			err := e.rule.Process(ctx)
			done <- result{e: e, err: err}
		}()
	}

	for len(queue) > 0 && inFlight < jobs {
		e, ok := popReady()
		if !ok {
			break
		}
		launch(e)
	}

	for inFlight > 0 {
		r := <-done
		inFlight--
		opts.emit(Event{CorrelationID: r.e.corr, Kind: EventProcessed, RuleID: r.e.rule.ID(), OutputNames: r.e.rule.OutputNames(), Err: r.err})
		if r.err != nil {
			logging.Get(logging.CategoryScheduler).Error("rule %d failed: %v", r.e.rule.ID(), r.err)
		}

		for len(queue) > 0 && inFlight < jobs {
			e, ok := popReady()
			if !ok {
				break
			}
			launch(e)
		}
	}

	if len(queue) > 0 {
		return fmt.Errorf("%w: %d rule(s) never became ready", ErrCannotBeBuilt, len(queue))
	}
	return nil
}
