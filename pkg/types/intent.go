package types

import (
	"encoding/json"
	"time"
)

// Intent is a proposed side effect awaiting adjudication by the Decision
// Engine. Immutable once created.
type Intent struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agent_id"`
	AgentRole   Role      `json:"agent_role"`
	Action      Action    `json:"-"`
	RawAction   []byte    `json:"action"`
	Effects     []string  `json:"declared_effects,omitempty"`
	Reasoning   string    `json:"reasoning,omitempty"`
	TaskID      *string   `json:"task_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewIntent constructs an Intent, assigning it a fresh sortable id.
func NewIntent(agentID string, role Role, action Action) (Intent, error) {
	raw, err := MarshalAction(action)
	if err != nil {
		return Intent{}, err
	}
	return Intent{
		ID:        NewID(),
		AgentID:   agentID,
		AgentRole: role,
		Action:    action,
		RawAction: raw,
		CreatedAt: time.Now(),
	}, nil
}

// MarshalJSON encodes the Intent with its Action flattened into the
// envelope produced by MarshalAction, so RawAction always reflects Action.
func (in Intent) MarshalJSON() ([]byte, error) {
	type alias Intent
	raw, err := MarshalAction(in.Action)
	if err != nil {
		return nil, err
	}
	in.RawAction = raw
	a := alias(in)
	return json.Marshal(a)
}

// UnmarshalJSON decodes the Intent and reconstructs its Action field from
// the wire envelope stored in RawAction.
func (in *Intent) UnmarshalJSON(b []byte) error {
	type alias Intent
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*in = Intent(a)
	if len(in.RawAction) > 0 {
		action, err := UnmarshalAction(in.RawAction)
		if err != nil {
			return err
		}
		in.Action = action
	}
	return nil
}
