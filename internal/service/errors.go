package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kubev2v/wave-planner/internal/grouping"
	"github.com/kubev2v/wave-planner/internal/readiness"
	"github.com/kubev2v/wave-planner/internal/scheduling"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrResourceKeyNotFound(key string, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %q not found", resourceType, key)}
}

func NewErrProjectNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "project")
}

func NewErrVMNotFound(key string) *ErrResourceNotFound {
	return NewErrResourceKeyNotFound(key, "vm")
}

func NewErrWaveNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "wave")
}

func NewErrGapNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "gap")
}

func NewErrPassNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "pass")
}

type ErrValidation struct {
	error
}

func NewErrValidation(format string, args ...any) *ErrValidation {
	return &ErrValidation{fmt.Errorf("validation failed: "+format, args...)}
}

type ErrDuplicate struct {
	error
}

func NewErrDuplicate(resourceType, name string) *ErrDuplicate {
	return &ErrDuplicate{fmt.Errorf("%s %q already exists", resourceType, name)}
}

// ErrCycle is returned when a dependency would close a cycle.
type ErrCycle struct {
	error
	Path []string
}

func NewErrCycle(err *grouping.CycleError) *ErrCycle {
	return &ErrCycle{error: err, Path: append([]string{err.Edge.VM}, err.Path...)}
}

type ErrOverconstrainedSchedule struct {
	error
}

func NewErrOverconstrainedSchedule(err *scheduling.OverconstrainedError) *ErrOverconstrainedSchedule {
	return &ErrOverconstrainedSchedule{fmt.Errorf("schedule is overconstrained: %w", err)}
}

type ErrInvalidTransition struct {
	error
}

func NewErrInvalidTransition(resourceType, from, to string) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("%s cannot move from %s to %s", resourceType, from, to)}
}

func NewErrProjectReadOnly(id uuid.UUID, status string) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("project %s is %s and cannot be changed", id, status)}
}

// ErrGapsUnresolved is returned when a wave transition is gated by open critical gaps.
type ErrGapsUnresolved struct {
	error
	Gaps []readiness.Record
}

// NewErrReadinessUnchecked gates a wave whose cohort no readiness pass has checked yet.
func NewErrReadinessUnchecked(waveID uuid.UUID, cohortKey string) *ErrGapsUnresolved {
	return &ErrGapsUnresolved{error: fmt.Errorf("wave %s: no readiness check has completed for cohort %s", waveID, cohortKey)}
}

func NewErrGapsUnresolved(waveID uuid.UUID, gaps []readiness.Record) *ErrGapsUnresolved {
	keys := make([]string, 0, len(gaps))
	for _, g := range gaps {
		keys = append(keys, g.Key())
	}
	return &ErrGapsUnresolved{
		error: fmt.Errorf("wave %s has %d unresolved critical gaps: %s", waveID, len(gaps), strings.Join(keys, ", ")),
		Gaps:  gaps,
	}
}

type ErrPassSuperseded struct {
	error
}

func NewErrPassSuperseded(passID uuid.UUID, kind string) *ErrPassSuperseded {
	return &ErrPassSuperseded{fmt.Errorf("%s pass %s was superseded by a newer request", kind, passID)}
}

type ErrMissingRiskConfig struct {
	error
}

func NewErrMissingRiskConfig(projectID uuid.UUID) *ErrMissingRiskConfig {
	return &ErrMissingRiskConfig{fmt.Errorf("project %s has no active risk configuration", projectID)}
}

// IsNotFound reports whether err is one of the not found errors.
func IsNotFound(err error) bool {
	var nf *ErrResourceNotFound
	return errors.As(err, &nf)
}
