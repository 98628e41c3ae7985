// Package graph implements forge's artifact/rule build graph: weakly
// interned artifacts, rules that strongly own their inputs but only weakly
// reference their outputs, and the store that ties goal names to both.
package graph

import (
	"fmt"
	"os"
	"sync"
	"time"
	"weak"

	"forge/internal/logging"
)

// Kind distinguishes a real filesystem path from a phony (name-only) goal.
type Kind int

const (
	Actual Kind = iota
	Phony
)

func (k Kind) String() string {
	if k == Phony {
		return "phony"
	}
	return "actual"
}

// Usage records which side of a Rule an Artifact currently plays.
type Usage int

const (
	Input Usage = iota
	Output
)

// epoch is the default timestamp assigned to a freshly interned artifact
// that has no rule and no observed filesystem mtime yet.
var epoch = time.Unix(0, 0).UTC()

// Artifact is a single node in the build graph: either a phony goal name or
// a real file, optionally owned by the Rule that produces it.
type Artifact struct {
	mu sync.RWMutex

	name  string
	kind  Kind
	usage Usage

	description string
	modTime     time.Time

	rule *Rule
}

func newArtifact(name string, kind Kind) *Artifact {
	return &Artifact{name: name, kind: kind, usage: Input, modTime: epoch}
}

// Name returns the artifact's path (Actual) or goal name (Phony).
func (a *Artifact) Name() string {
	return a.name
}

// Kind reports whether this is a real file or a phony goal.
func (a *Artifact) Kind() Kind {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.kind
}

// IsSource reports whether the artifact has no producing rule: a leaf that
// must already exist on disk (or, for a ruleless phony, simply a name with
// nothing behind it).
func (a *Artifact) IsSource() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rule == nil
}

// Description returns the human-readable description set via
// SetDescription, or "" if none was set.
func (a *Artifact) Description() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.description
}

// SetDescription attaches a human-readable description, shown by goal
// listings.
func (a *Artifact) SetDescription(desc string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.description = desc
}

// Rule returns the Rule that produces this artifact, or nil for a source.
func (a *Artifact) Rule() *Rule {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rule
}

// SetRule attaches the producing Rule to this artifact, reinterpreting it
// as an Output. Only legal when the artifact has no rule yet: an artifact's
// rule, once set, is never replaced, which collapses the "input can become
// an output" coercion into a single check rather than two separate ones.
func (a *Artifact) SetRule(r *Rule) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rule != nil {
		return false
	}
	a.rule = r
	a.usage = Output
	logging.GraphDebug("artifact %s claimed as output by rule", a.name)
	return true
}

// Usage reports whether the artifact currently plays Input or Output.
func (a *Artifact) Usage() Usage {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.usage
}

// Inputs returns the input set of the attached rule, or nil if the
// artifact has none.
func (a *Artifact) Inputs() []*Artifact {
	r := a.Rule()
	if r == nil {
		return nil
	}
	return r.Inputs()
}

// Time returns the artifact's last known modification time.
func (a *Artifact) Time() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.modTime
}

// SetTime mutates the artifact's timestamp.
func (a *Artifact) SetTime(t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.modTime = t
}

// preflight checks filesystem access for a newly interned Actual artifact:
// an existing Input file must be readable and an existing Output file must
// be writable. A path that does not exist yet passes for either usage, so
// a missing source is not reported here; its timestamp stays at epoch. On
// success the timestamp is adopted from the file's mtime when the file
// exists.
func (a *Artifact) preflight(usage Usage) error {
	info, err := os.Stat(a.name)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", a.name, err)
	}

	mode := os.O_RDONLY
	if usage == Output {
		mode = os.O_WRONLY
	}
	f, err := os.OpenFile(a.name, mode, 0)
	if err != nil {
		return fmt.Errorf("access check %s: %w", a.name, err)
	}
	f.Close()

	a.mu.Lock()
	a.modTime = info.ModTime()
	a.mu.Unlock()
	return nil
}

// UpdateTime re-stats the artifact's file; if the filesystem mtime
// advanced (or override is supplied), the artifact adopts the override or
// the fresh mtime and true is returned. Used by the source-update feed
// after an fsnotify event on a source file.
func (a *Artifact) UpdateTime(override *time.Time) (bool, error) {
	if override != nil {
		a.SetTime(*override)
		return true, nil
	}

	info, err := os.Stat(a.name)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", a.name, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !info.ModTime().After(a.modTime) {
		return false, nil
	}
	a.modTime = info.ModTime()
	return true, nil
}

// Outdated reports whether the artifact needs rebuilding: a source (no
// rule) is never outdated; a phony artifact with a rule is always
// outdated, so phony goals re-run their rule's readiness check on every
// build; an Actual artifact with a rule is outdated when any input is
// itself outdated, or an input's timestamp is newer than this artifact's.
func (a *Artifact) Outdated() bool {
	r := a.Rule()
	if r == nil {
		return false
	}
	if a.Kind() == Phony {
		return true
	}
	t := a.Time()
	for _, in := range r.Inputs() {
		if in.Outdated() || in.Time().After(t) {
			return true
		}
	}
	return false
}

// Walk performs the scheduler's recursive discovery pass starting at this
// artifact (normally a goal). It reports whether this artifact (or
// something beneath it) changed. A source yields false with no work. For a
// non-source, the OR across "child changed" and "child newer than self" is
// seeded true for Phony (so phony goals always trigger); if the OR holds,
// schedule is invoked with this artifact's rule.
func (a *Artifact) Walk(schedule func(*Rule)) bool {
	if a.IsSource() {
		return false
	}

	r := a.Rule()
	changed := a.Kind() == Phony
	t := a.Time()
	for _, in := range r.Inputs() {
		if in.Walk(schedule) || in.Time().After(t) {
			changed = true
		}
	}

	if changed {
		schedule(r)
		return true
	}
	return false
}

// weakHandle returns a weak pointer to this artifact, used by Rule to hold
// its outputs without keeping them alive.
func (a *Artifact) weakHandle() weak.Pointer[Artifact] {
	return weak.Make(a)
}
