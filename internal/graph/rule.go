package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"weak"

	"forge/internal/diag"
	"forge/internal/hash"
	"forge/internal/logging"
)

// State is a Rule's position in the scheduler's lifecycle.
type State int

const (
	Idle State = iota
	Scheduled
	Processing
	Processed
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Processing:
		return "processing"
	case Processed:
		return "processed"
	default:
		return "idle"
	}
}

// InvokeFunc performs a rule's actual work: compiling, linking, running a
// script callback, or whatever else produces its outputs from its inputs.
// It returns any diagnostics surfaced along the way; a non-nil error or a
// Fatal/Error-severity diagnostic both fail the rule.
type InvokeFunc func(ctx context.Context) (diag.Diagnostics, error)

// Rule derives a set of output artifacts from a set of input artifacts by
// running an InvokeFunc. A Rule strongly owns its inputs (so a shared input
// artifact stays alive as long as any rule needs it) but only weakly
// references its outputs (so the graph's ownership runs output -> rule ->
// input, never the other way around, breaking the cycle a naive owning
// pointer in both directions would create).
type Rule struct {
	mu sync.Mutex

	id uint64

	inputs      []*Artifact
	outputNames []string
	outputs     []weak.Pointer[Artifact]

	description string
	state       State
	diagnostics diag.Diagnostics
	invoke      InvokeFunc
}

// NewRule builds a Rule over the given inputs and outputs. The outputs'
// SetRule is called immediately, claiming them (an output already claimed
// by another rule is left untouched and a warning is logged; this should
// not happen for a well-formed graph since each output name is unique in
// the Store). id is derived from the output names alone, matching the
// invariant that a rule's identity is determined by what it produces.
func NewRule(inputs, outputs []*Artifact, invoke InvokeFunc) *Rule {
	names := make([]string, len(outputs))
	for i, o := range outputs {
		names[i] = o.Name()
	}

	r := &Rule{
		id:          hash.Names64(names...),
		inputs:      append([]*Artifact(nil), inputs...),
		outputNames: names,
		outputs:     make([]weak.Pointer[Artifact], len(outputs)),
		invoke:      invoke,
	}
	for i, o := range outputs {
		r.outputs[i] = o.weakHandle()
		if !o.SetRule(r) {
			logging.Get(logging.CategoryGraph).Warn("output %s already owned by another rule, skipping claim", o.Name())
		}
	}
	return r
}

// ID is the rule's stable 64-bit identifier, used by the scheduler to
// dedup rules reachable from more than one goal.
func (r *Rule) ID() uint64 {
	return r.id
}

// Inputs returns the rule's strongly-held input artifacts.
func (r *Rule) Inputs() []*Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Artifact(nil), r.inputs...)
}

// Outputs resolves the rule's weakly-held outputs, dropping any that have
// since been collected (which should not happen while the rule itself is
// reachable from a live Store, but Value defends against it anyway).
func (r *Rule) Outputs() []*Artifact {
	out := make([]*Artifact, 0, len(r.outputs))
	for _, w := range r.outputs {
		if a := w.Value(); a != nil {
			out = append(out, a)
		}
	}
	return out
}

// OutputNames returns the output names the rule was constructed with,
// independent of whether the Artifacts themselves are still reachable.
func (r *Rule) OutputNames() []string {
	return append([]string(nil), r.outputNames...)
}

// Description returns the rule's human-readable description.
func (r *Rule) Description() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.description
}

// SetDescription attaches a human-readable description, shown by goal
// listings and dry-run output.
func (r *Rule) SetDescription(desc string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.description = desc
}

// State returns the rule's current lifecycle state.
func (r *Rule) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Diagnostics returns the diagnostics produced by the rule's most recent
// invocation, if any.
func (r *Rule) Diagnostics() diag.Diagnostics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.diagnostics
}

// Schedule transitions the rule to Scheduled for a new build, whatever
// state a previous build left it in. Returns false while the rule is
// Processing, so a rule that is already running is not queued again; the
// scheduler's dedup-by-id guards against double scheduling within one walk.
func (r *Rule) Schedule() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Processing {
		return false
	}
	r.state = Scheduled
	return true
}

// ReplaceInputs swaps the rule's input set, used by the compile rule to
// adopt freshly re-parsed header dependencies after its invocation
// completes. The scheduler observes the new set on its next walk.
func (r *Rule) ReplaceInputs(inputs []*Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append([]*Artifact(nil), inputs...)
}

// ReadyInputs reports whether the rule can run right now: its input set is
// empty, or none of its inputs are currently Outdated. A rule whose input
// is still waiting on an upstream rule to finish is re-queued by the
// scheduler until this returns true.
func (r *Rule) ReadyInputs() bool {
	r.mu.Lock()
	inputs := append([]*Artifact(nil), r.inputs...)
	r.mu.Unlock()

	for _, in := range inputs {
		if in.Outdated() {
			return false
		}
	}
	return true
}

// Process runs the rule's InvokeFunc, recording diagnostics and, on
// success, stamping every output with a single shared timestamp (so
// outputs produced by the same rule invocation never appear to race each
// other on a subsequent incremental check). It transitions Processing ->
// Processed regardless of outcome; the caller inspects Diagnostics/error to
// decide whether the build overall failed.
func (r *Rule) Process(ctx context.Context) error {
	r.mu.Lock()
	r.state = Processing
	r.mu.Unlock()

	logging.SchedulerDebug("processing rule %d (%d outputs)", r.id, len(r.outputNames))

	for _, name := range r.outputNames {
		if dir := filepath.Dir(name); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				r.mu.Lock()
				r.state = Processed
				r.mu.Unlock()
				return fmt.Errorf("rule %d: create output dir %s: %w", r.id, dir, err)
			}
		}
	}

	var d diag.Diagnostics
	var err error
	if r.invoke != nil {
		d, err = r.invoke(ctx)
	}

	r.mu.Lock()
	r.diagnostics = d
	r.state = Processed
	r.mu.Unlock()

	if err != nil {
		logging.Get(logging.CategoryScheduler).Error("rule %d invocation error: %v", r.id, err)
		return err
	}
	if d.IsFailed() {
		return fmt.Errorf("rule %d failed: %s", r.id, d.Summary())
	}

	now := time.Now()
	for _, out := range r.Outputs() {
		out.SetTime(now)
	}
	return nil
}
