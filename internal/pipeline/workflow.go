package pipeline

import (
	"fmt"

	"github.com/qmuntal/stateless"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

// WorkflowStatus is the lifecycle state of one year's execution.
type WorkflowStatus string

const (
	StatusPending   WorkflowStatus = "PENDING"
	StatusRunning   WorkflowStatus = "RUNNING"
	StatusCompleted WorkflowStatus = "COMPLETED"
	StatusFailed    WorkflowStatus = "FAILED"
	StatusCancelled WorkflowStatus = "CANCELLED"
)

type workflowTrigger string

const (
	triggerStart    workflowTrigger = "Start"
	triggerAdvance  workflowTrigger = "Advance"
	triggerComplete workflowTrigger = "Complete"
	triggerFail     workflowTrigger = "Fail"
	triggerCancel   workflowTrigger = "Cancel"
)

// YearWorkflow tracks one simulated year through its ordered stages. The
// status machine makes illegal transitions structurally impossible: a
// cancelled year cannot complete, a completed year cannot restart, and the
// stage index only advances one stage at a time while running.
type YearWorkflow struct {
	year    int
	stages  []Definition
	current int
	fsm     *stateless.StateMachine
}

// NewYearWorkflow creates a pending workflow for one year over the given
// stage order.
func NewYearWorkflow(year int, stages []Definition) *YearWorkflow {
	fsm := stateless.NewStateMachine(StatusPending)
	fsm.Configure(StatusPending).
		Permit(triggerStart, StatusRunning).
		Permit(triggerCancel, StatusCancelled)
	fsm.Configure(StatusRunning).
		PermitReentry(triggerAdvance).
		Permit(triggerComplete, StatusCompleted).
		Permit(triggerFail, StatusFailed).
		Permit(triggerCancel, StatusCancelled)

	return &YearWorkflow{
		year:   year,
		stages: stages,
		fsm:    fsm,
	}
}

// Year returns the simulated year this workflow executes.
func (w *YearWorkflow) Year() int { return w.year }

// Status returns the workflow's current lifecycle state.
func (w *YearWorkflow) Status() WorkflowStatus {
	return w.fsm.MustState().(WorkflowStatus)
}

// CurrentStage returns the stage the workflow is on and false once every
// stage has been passed.
func (w *YearWorkflow) CurrentStage() (Definition, bool) {
	if w.current >= len(w.stages) {
		return Definition{}, false
	}
	return w.stages[w.current], true
}

// StageIndex returns the zero-based index of the current stage.
func (w *YearWorkflow) StageIndex() int { return w.current }

// Start moves the workflow from PENDING to RUNNING.
func (w *YearWorkflow) Start() error {
	if err := w.fsm.Fire(triggerStart); err != nil {
		return types.WrapError(types.STAGE_EXECUTION_FAILED,
			fmt.Sprintf("year %d workflow cannot start from %s", w.year, w.Status()), err)
	}
	return nil
}

// Advance records that the current stage passed its validation gate and
// moves to the next stage. Only legal while running.
func (w *YearWorkflow) Advance() error {
	if err := w.fsm.Fire(triggerAdvance); err != nil {
		return types.WrapError(types.STAGE_EXECUTION_FAILED,
			fmt.Sprintf("year %d workflow cannot advance from %s", w.year, w.Status()), err)
	}
	w.current++
	return nil
}

// Complete marks the year done. Only legal after every stage has advanced.
func (w *YearWorkflow) Complete() error {
	if w.current < len(w.stages) {
		return types.NewError(types.STAGE_EXECUTION_FAILED,
			fmt.Sprintf("year %d workflow has %d of %d stages remaining", w.year, len(w.stages)-w.current, len(w.stages)))
	}
	if err := w.fsm.Fire(triggerComplete); err != nil {
		return types.WrapError(types.STAGE_EXECUTION_FAILED,
			fmt.Sprintf("year %d workflow cannot complete from %s", w.year, w.Status()), err)
	}
	return nil
}

// Fail marks the year fatally failed at its current stage.
func (w *YearWorkflow) Fail() error {
	return w.fsm.Fire(triggerFail)
}

// Cancel marks the year cancelled at a stage boundary.
func (w *YearWorkflow) Cancel() error {
	return w.fsm.Fire(triggerCancel)
}
