package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentforge/core/internal/event"
	"github.com/agentforge/core/internal/storage"
	"github.com/agentforge/core/pkg/types"
)

// sessionLocks serializes concurrent Process calls against the same
// session id, per AgentSession's documented exclusivity requirement.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() sessionLocks {
	return sessionLocks{locks: make(map[string]*sync.Mutex)}
}

func (s *sessionLocks) acquire(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// projectID derives a stable identity for a working directory. Mirrors
// the teacher's hashDirectory, rooted at the canonical absolute path
// rather than the raw input so callers passing "." or a trailing slash
// resolve to the same id.
func projectID(workingDir string) string {
	abs, err := filepath.Abs(workingDir)
	if err != nil {
		abs = workingDir
	}
	h := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(h[:])[:16]
}

// resolveSession loads an existing session by id, or creates a new one
// rooted at workingDir when sessionID is empty or unknown.
func (o *Orchestrator) resolveSession(ctx context.Context, sessionID, workingDir string) (*types.AgentSession, error) {
	if sessionID != "" {
		session, err := o.sessions.Get(ctx, sessionID)
		if err == nil {
			return session, nil
		}
		if err != storage.ErrNotFound {
			return nil, err
		}
	}

	identity := types.ProjectIdentity{
		ProjectID:   projectID(workingDir),
		ProjectRoot: workingDir,
		WorkingDir:  workingDir,
	}
	session := types.NewSession(identity)
	if err := o.sessions.Save(ctx, &session); err != nil {
		return nil, err
	}
	event.Publish(event.Event{Type: event.SessionCreated, Data: event.SessionCreatedData{Session: &session}})
	return &session, nil
}

// setState persists a session's activity state and publishes the
// corresponding event, per the state transitions the spec's Agent
// Orchestrator diagram names (idle/thinking/executing/verifying/...).
func (o *Orchestrator) setState(ctx context.Context, session *types.AgentSession, state types.SessionState) error {
	session.State = state
	if err := o.sessions.Save(ctx, session); err != nil {
		return err
	}
	event.Publish(event.Event{Type: event.SessionStateChanged, Data: event.SessionStateChangedData{
		SessionID: session.ID, State: state,
	}})
	return nil
}

// appendMessage appends msg to the session's history and persists it,
// publishing message.appended.
func (o *Orchestrator) appendMessage(ctx context.Context, session *types.AgentSession, msg types.Message) error {
	session.History = append(session.History, msg)
	if msg.Role == types.RoleAssistant {
		for _, tc := range msg.ToolCalls {
			session.ToolCallCounts[tc.Name]++
		}
	}
	if err := o.sessions.Save(ctx, session); err != nil {
		return err
	}
	event.Publish(event.Event{Type: event.MessageAppended, Data: event.MessageAppendedData{
		SessionID: session.ID, Message: &msg,
	}})
	return nil
}

// recordEvent appends an observability SessionEvent without touching the
// message transcript.
func (o *Orchestrator) recordEvent(session *types.AgentSession, kind, detail string) {
	session.Events = append(session.Events, types.SessionEvent{Kind: kind, Detail: detail, Timestamp: time.Now()})
}
