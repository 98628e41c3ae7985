package graph

import "errors"

// Store/Artifact errors.
var (
	// ErrDuplicateArtifact is returned when creating a non-reusable name
	// that already exists in a namespace where reuse is not legal.
	ErrDuplicateArtifact = errors.New("graph: duplicate artifact")

	// ErrIncompatibleUsage is returned when coercing an artifact to a
	// usage or kind its current state forbids (for instance, claiming an
	// artifact that already has a rule as a new output).
	ErrIncompatibleUsage = errors.New("graph: incompatible artifact usage")
)
