package security

import (
	"testing"

	"github.com/agentforge/core/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredPrivilege_ReadFileIsNormal(t *testing.T) {
	assert.Equal(t, types.PrivilegeNormal, RequiredPrivilege(&types.ReadFileAction{Path: "a.go"}))
}

func TestRequiredPrivilege_DeleteFileIsHigh(t *testing.T) {
	assert.Equal(t, types.PrivilegeHigh, RequiredPrivilege(&types.DeleteFileAction{Path: "a.go"}))
}

func TestRequiredPrivilege_ConfigFileWriteIsHigh(t *testing.T) {
	assert.Equal(t, types.PrivilegeHigh, RequiredPrivilege(&types.WriteFileAction{Path: "package.json"}))
}

func TestRequiredPrivilege_OrdinaryWriteIsElevated(t *testing.T) {
	assert.Equal(t, types.PrivilegeElevated, RequiredPrivilege(&types.WriteFileAction{Path: "main.go"}))
}

func TestRequiredPrivilege_GitCommitIsHigh(t *testing.T) {
	assert.Equal(t, types.PrivilegeHigh, RequiredPrivilege(&types.GitAction{Op: types.GitCommit}))
}

func TestEngine_DeletionDeniedForLowPrivilegeRole(t *testing.T) {
	engine := NewEngine(PolicyState{})
	intent, err := types.NewIntent("agent-1", types.RoleHistorian, &types.DeleteFileAction{Path: "src/main.rs"})
	require.NoError(t, err)

	verdict := engine.Evaluate(intent)
	require.Equal(t, types.VerdictDeny, verdict.Kind)
	assert.Equal(t, types.ErrCodeInsufficientPrivilege, verdict.ErrorCode)
}

func TestEngine_AllowedReadGrantsConditionsFree(t *testing.T) {
	engine := NewEngine(PolicyState{})
	intent, err := types.NewIntent("agent-1", types.RoleHistorian, &types.ReadFileAction{Path: "src/main.rs"})
	require.NoError(t, err)

	verdict := engine.Evaluate(intent)
	require.True(t, verdict.IsAllow())
	assert.Equal(t, types.PrivilegeNormal, verdict.Privilege)
	assert.Empty(t, verdict.Conditions)
}

func TestEngine_WriteFileAttachesMustPassTests(t *testing.T) {
	engine := NewEngine(PolicyState{})
	intent, err := types.NewIntent("agent-1", types.RoleImplementer, &types.WriteFileAction{Path: "main.go", Content: "x"})
	require.NoError(t, err)

	verdict := engine.Evaluate(intent)
	require.True(t, verdict.IsAllow())
	assert.Contains(t, verdict.Conditions, types.ConditionMustPassTests)
}

func TestEngine_GatewayValidatorDeniesOutsideRoot(t *testing.T) {
	engine := NewEngine(PolicyState{})
	gw := NewGateway(Policy{Enabled: true, ExternalDirectory: PolicyDeny}, "/proj")
	engine.RegisterValidator(NewGatewayValidator(gw, "/proj", 10))

	intent, err := types.NewIntent("agent-1", types.RoleImplementer, &types.WriteFileAction{Path: "/etc/passwd", Content: "x"})
	require.NoError(t, err)

	verdict := engine.Evaluate(intent)
	assert.Equal(t, types.VerdictDeny, verdict.Kind)
}

func TestEngine_EvaluateBatchPreservesOrder(t *testing.T) {
	engine := NewEngine(PolicyState{})
	i1, _ := types.NewIntent("a", types.RoleHistorian, &types.ReadFileAction{Path: "a"})
	i2, _ := types.NewIntent("a", types.RoleHistorian, &types.DeleteFileAction{Path: "b"})

	verdicts := engine.EvaluateBatch([]types.Intent{i1, i2})
	require.Len(t, verdicts, 2)
	assert.True(t, verdicts[0].IsAllow())
	assert.Equal(t, types.VerdictDeny, verdicts[1].Kind)
}

func TestDoomLoopValidator_RequiresHumanAfterThreshold(t *testing.T) {
	engine := NewEngine(PolicyState{})
	detector := NewDoomLoopDetector()
	engine.RegisterValidator(NewDoomLoopValidator(detector, "session-1", 5))

	var last types.Verdict
	for i := 0; i < DoomLoopThreshold+1; i++ {
		intent, err := types.NewIntent("a", types.RoleHistorian, &types.ReadFileAction{Path: "same.go"})
		require.NoError(t, err)
		last = engine.Evaluate(intent)
	}
	assert.Equal(t, types.VerdictRequireHuman, last.Kind)
}
