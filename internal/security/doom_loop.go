package security

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/agentforge/core/internal/event"
)

// DoomLoopThreshold is the number of identical consecutive tool calls
// before a session is flagged as looping.
const DoomLoopThreshold = 3

// DoomLoopDetector tracks repeated tool calls per session to catch an
// agent stuck retrying the same action.
type DoomLoopDetector struct {
	mu      sync.Mutex
	history map[string][]string
}

// NewDoomLoopDetector builds an empty detector.
func NewDoomLoopDetector() *DoomLoopDetector {
	return &DoomLoopDetector{history: make(map[string][]string)}
}

// Check records a tool call and reports whether the last DoomLoopThreshold
// calls in the session (including this one) are identical.
func (d *DoomLoopDetector) Check(sessionID, toolName string, input any) bool {
	hash := hashCall(toolName, input)

	d.mu.Lock()
	defer d.mu.Unlock()

	history := append(d.history[sessionID], hash)
	if len(history) > 10 {
		history = history[len(history)-10:]
	}
	d.history[sessionID] = history

	if len(history) < DoomLoopThreshold {
		return false
	}

	last := history[len(history)-DoomLoopThreshold:]
	for i := 1; i < len(last); i++ {
		if last[i] != last[0] {
			return false
		}
	}

	event.Publish(event.Event{
		Type: event.DoomLoopDetected,
		Data: event.DoomLoopDetectedData{SessionID: sessionID, ToolName: toolName},
	})
	return true
}

// Reset clears the recorded history for a session, e.g. once it moves on
// to a distinct tool call and the loop is broken.
func (d *DoomLoopDetector) Reset(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, sessionID)
}

func hashCall(toolName string, input any) string {
	data, _ := json.Marshal(map[string]any{"tool": toolName, "input": input})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
