package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crzyc98/planwise-navigator-sub019/internal/types"
)

func TestValidateGraphAcceptsBuiltinStages(t *testing.T) {
	require.NoError(t, ValidateGraph(Stages()))
}

func TestValidateGraphRejectsDuplicate(t *testing.T) {
	defs := []Definition{
		{Name: StageFoundation},
		{Name: StageFoundation},
	}
	err := ValidateGraph(defs)
	require.Error(t, err)
	code, _ := types.CodeOf(err)
	assert.Equal(t, types.STAGE_GRAPH_INVALID, code)
}

func TestValidateGraphRejectsUnknownDependency(t *testing.T) {
	defs := []Definition{
		{Name: StageFoundation, DependsOn: []Stage{"PAYROLL"}},
	}
	err := ValidateGraph(defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAYROLL")
}

func TestValidateGraphRejectsCycle(t *testing.T) {
	defs := []Definition{
		{Name: StageFoundation, DependsOn: []Stage{StageStateAccumulation}},
		{Name: StageEventGeneration, DependsOn: []Stage{StageFoundation}},
		{Name: StageStateAccumulation, DependsOn: []Stage{StageEventGeneration}},
	}
	err := ValidateGraph(defs)
	require.Error(t, err)
	code, _ := types.CodeOf(err)
	assert.Equal(t, types.STAGE_GRAPH_INVALID, code)
}

func TestTopologicalOrderKeepsDeclarationOrder(t *testing.T) {
	ordered, err := TopologicalOrder(Stages())
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, StageFoundation, ordered[0].Name)
	assert.Equal(t, StageEventGeneration, ordered[1].Name)
	assert.Equal(t, StageStateAccumulation, ordered[2].Name)
}

func TestTopologicalOrderSortsOutOfOrderInput(t *testing.T) {
	defs := []Definition{
		{Name: StageStateAccumulation, DependsOn: []Stage{StageEventGeneration}},
		{Name: StageEventGeneration, DependsOn: []Stage{StageFoundation}},
		{Name: StageFoundation},
	}
	ordered, err := TopologicalOrder(defs)
	require.NoError(t, err)
	assert.Equal(t, StageFoundation, ordered[0].Name)
	assert.Equal(t, StageEventGeneration, ordered[1].Name)
	assert.Equal(t, StageStateAccumulation, ordered[2].Name)
}

func TestTopologicalOrderRejectsCycle(t *testing.T) {
	defs := []Definition{
		{Name: StageFoundation, DependsOn: []Stage{StageEventGeneration}},
		{Name: StageEventGeneration, DependsOn: []Stage{StageFoundation}},
	}
	_, err := TopologicalOrder(defs)
	require.Error(t, err)
}

func TestStageOperationKeys(t *testing.T) {
	assert.Equal(t, "engine.foundation", StageFoundation.Operation())
	assert.Equal(t, "engine.event_generation", StageEventGeneration.Operation())
	assert.Equal(t, "engine.state_accumulation", StageStateAccumulation.Operation())
}
