// Package pipeline drives multi-year simulation runs: the stage dependency
// graph, per-stage validation gates, per-year workflows, and the
// orchestrator that sequences them with checkpointing and resume.
package pipeline

import (
	"strings"

	"github.com/crzyc98/planwise-navigator-sub019/internal/database"
)

// Stage names one phase of a simulated year's work.
type Stage string

const (
	StageFoundation        Stage = "FOUNDATION"
	StageEventGeneration   Stage = "EVENT_GENERATION"
	StageStateAccumulation Stage = "STATE_ACCUMULATION"
)

// Operation returns the breaker and retry key for the stage's engine work.
func (s Stage) Operation() string {
	return "engine." + strings.ToLower(string(s))
}

// Definition describes one stage: the selector the engine builds it with and
// the stages that must pass before it within the same year. Definitions are
// stateless; executions are transient.
type Definition struct {
	Name      Stage
	Selector  string
	DependsOn []Stage
}

// Stages returns the static stage definitions in declaration order.
func Stages() []Definition {
	return []Definition{
		{
			Name:     StageFoundation,
			Selector: database.SelectorFoundation,
		},
		{
			Name:      StageEventGeneration,
			Selector:  database.SelectorEventGeneration,
			DependsOn: []Stage{StageFoundation},
		},
		{
			Name:      StageStateAccumulation,
			Selector:  database.SelectorStateAccumulation,
			DependsOn: []Stage{StageEventGeneration},
		},
	}
}
