package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTask_JSONRoundTrip(t *testing.T) {
	task := NewTask("Fix bug", "repro and patch", RoleImplementer)
	step, err := NewExecutionStep(task.NextStepID(), &ReadFileAction{Path: "/repo/src/main.go"})
	require.NoError(t, err)
	task.Steps = append(task.Steps, step)
	task.Snapshots = append(task.Snapshots, WorktreeSnapshot{
		ID: NewID(), CreatedAt: time.Now(), WorktreePath: "/repo", CommitHash: "abc123", Branch: "main",
	})

	data, err := json.Marshal(task)
	require.NoError(t, err)

	var decoded Task
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, task.ID, decoded.ID)
	require.Equal(t, task.State, decoded.State)
	require.Len(t, decoded.Steps, 1)
	require.Len(t, decoded.Snapshots, 1)
}

func TestIntent_ActionRoundTrip(t *testing.T) {
	in, err := NewIntent("agent-1", RoleImplementer, &WriteFileAction{Path: "/repo/a.go", Content: "package a"})
	require.NoError(t, err)

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var decoded Intent
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, in.ID, decoded.ID)
	write, ok := decoded.Action.(*WriteFileAction)
	require.True(t, ok, "expected *WriteFileAction, got %T", decoded.Action)
	require.Equal(t, "/repo/a.go", write.Path)
}

func TestUnmarshalAction_UnknownKind(t *testing.T) {
	_, err := UnmarshalAction([]byte(`{"kind":"nonsense","data":{}}`))
	require.Error(t, err)
	var unknown *UnknownActionKindError
	require.ErrorAs(t, err, &unknown)
}

func TestVerdict_Constructors(t *testing.T) {
	v := AllowVerdict(&ReadFileAction{Path: "/repo/a.go"}, PrivilegeNormal, ConditionMustPassTests)
	require.True(t, v.IsAllow())
	require.Equal(t, PrivilegeNormal, v.Privilege)
	require.Contains(t, v.Conditions, ConditionMustPassTests)

	deny := DenyVerdict(&DeleteFileAction{Path: "/repo/a.go"}, ErrCodeInsufficientPrivilege, "role too low")
	require.False(t, deny.IsAllow())
	require.Equal(t, ErrCodeInsufficientPrivilege, deny.ErrorCode)
}

func TestPrivilege_Ordering(t *testing.T) {
	require.True(t, PrivilegeNormal < PrivilegeElevated)
	require.True(t, PrivilegeElevated < PrivilegeHigh)
	require.True(t, PrivilegeHigh < PrivilegeCritical)
}

func TestGrantedPrivilege_RoleTable(t *testing.T) {
	cases := map[Role]Privilege{
		RoleHistorian:   PrivilegeNormal,
		RolePlanner:     PrivilegeNormal,
		RoleImplementer: PrivilegeElevated,
		RoleReviewer:    PrivilegeElevated,
		RoleTester:      PrivilegeNormal,
		RoleAdmin:       PrivilegeCritical,
	}
	for role, want := range cases {
		require.Equal(t, want, GrantedPrivilege(role), "role %s", role)
	}
}

func TestMessage_ToolCallPairing(t *testing.T) {
	assistant := Message{ID: NewID(), Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "fs"}}}
	toolMsg := Message{ID: NewID(), Role: RoleTool, ToolCallID: "call_1", Content: "ok"}

	data, err := json.Marshal([]Message{assistant, toolMsg})
	require.NoError(t, err)

	var decoded []Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "call_1", decoded[0].ToolCalls[0].ID)
	require.Equal(t, "call_1", decoded[1].ToolCallID)
}

func TestSession_JSONRoundTrip(t *testing.T) {
	s := NewSession(ProjectIdentity{ProjectID: "p1", ProjectRoot: "/repo"})
	s.History = append(s.History, Message{ID: NewID(), Role: RoleUser, Content: "hello"})

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded AgentSession
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, s.ID, decoded.ID)
	require.Len(t, decoded.History, 1)
	require.Equal(t, SessionIdle, decoded.State)
}

func TestGoldInvariant_JSONRoundTripKeepsActive(t *testing.T) {
	inv := GoldInvariant{
		ID:       NewID(),
		RuleText: "never force-push main",
		Source:   SourceHumanCorrection,
		Scope:    InvariantScope{Type: ScopeGlobal},
		Priority: PriorityHigh,
		IsActive: true,
	}
	data, err := json.Marshal(inv)
	require.NoError(t, err)
	var decoded GoldInvariant
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, decoded.IsActive)
	require.Equal(t, PriorityHigh, decoded.Priority)
}

func TestNewID_Sortable(t *testing.T) {
	a := NewID()
	b := NewID()
	require.Len(t, a, 26)
	require.NotEqual(t, a, b)
	require.True(t, a < b, "ids minted in sequence should sort ascending: %s !< %s", a, b)
}
