package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/agentforge/core/internal/agent"
	"github.com/agentforge/core/internal/apperr"
	"github.com/agentforge/core/internal/event"
	"github.com/agentforge/core/internal/permission"
	"github.com/agentforge/core/internal/provider"
	"github.com/agentforge/core/internal/tool"
	"github.com/agentforge/core/pkg/types"
)

// Request is the orchestrator's process() input, per the spec's Agent
// Orchestrator contract.
type Request struct {
	SessionID     string
	WorkingDir    string
	UserInput     string
	Role          types.Role
	ActiveTaskID  string
	AgentID       string
	Agent         *agent.Agent
	ProviderID    string
	ModelID       string
	WorkingMemory *types.WorkingMemory
}

// Response is the orchestrator's process() output.
type Response struct {
	SessionID          string
	Content            string
	ToolCalls          []types.ToolCall
	IsComplete         bool
	NeedsInput         bool
	VerificationResult string
}

// Process drives one user turn to completion (or to a budget/permission
// stop), per the spec's 6-step main loop: resolve the session, build the
// prompt, call the LLM and execute whatever tools it proposes up to
// MaxToolCalls iterations, then optionally auto-verify against the
// active task before returning.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.UserInput) == "" {
		return nil, &apperr.InvalidRequest{Message: "user_input must not be empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout())
	defer cancel()

	session, err := o.resolveSession(ctx, req.SessionID, req.WorkingDir)
	if err != nil {
		return nil, err
	}

	release := o.locks.acquire(session.ID)
	defer release()

	if req.ActiveTaskID != "" && !containsStr(session.ActiveTaskIDs, req.ActiveTaskID) {
		session.ActiveTaskIDs = append(session.ActiveTaskIDs, req.ActiveTaskID)
	}

	if err := o.setState(ctx, session, types.SessionThinking); err != nil {
		return nil, err
	}

	if err := o.appendMessage(ctx, session, types.Message{
		ID: types.NewID(), Role: types.RoleUser, Content: req.UserInput, CreatedAt: time.Now(),
	}); err != nil {
		return nil, err
	}

	resp, err := o.runLoop(ctx, session, req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			o.setState(context.Background(), session, types.SessionError)
			return nil, &apperr.Timeout{Secs: o.config.TimeoutSecs}
		}
		o.setState(context.Background(), session, types.SessionError)
		return nil, err
	}

	finalState := types.SessionCompleted
	if !resp.IsComplete {
		finalState = types.SessionIdle
	}
	o.setState(context.Background(), session, finalState)

	return resp, nil
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// runLoop is the bounded tool-calling loop behind Process.
func (o *Orchestrator) runLoop(ctx context.Context, session *types.AgentSession, req Request) (*Response, error) {
	maxCalls := o.config.MaxToolCalls
	if maxCalls <= 0 {
		maxCalls = 50
	}

	oc := o
	if req.Agent != nil {
		oc = o.withAgent(req.Agent)
	} else if req.AgentID != "" {
		if a, ok := agent.BuiltInAgents()[req.AgentID]; ok {
			oc = o.withAgent(a)
		}
	}

	wm := types.WorkingMemory{}
	if req.WorkingMemory != nil {
		wm = *req.WorkingMemory
	} else {
		wm = synthesizeWorkingMemory(session.History, nil)
	}

	systemPrompt := oc.buildSystemPrompt(req.Role, req.ActiveTaskID, req.UserInput, wm)

	prov, model, err := oc.resolveProviderAndModel(req.ProviderID, req.ModelID)
	if err != nil {
		return nil, &apperr.LlmError{Message: err.Error()}
	}

	retry := newRetryBackoff(ctx, oc.config.MaxRetries)

	for step := 0; step < maxCalls; step++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		history := reconcileHistory(session.History)
		messages := oc.buildPromptMessages(systemPrompt, history)

		einoReq := &provider.CompletionRequest{
			Model:       model.ID,
			Messages:    provider.ConvertToEinoMessages(messages),
			Tools:       provider.ConvertToEinoTools(oc.toolInfos()),
			MaxTokens:   oc.config.MaxTokens,
			Temperature: oc.config.Temperature,
		}

		stream, err := prov.CreateCompletion(ctx, einoReq)
		if err != nil {
			next := retry.NextBackOff()
			if next == backoff.Stop {
				return nil, &apperr.LlmError{Message: err.Error()}
			}
			time.Sleep(next)
			step--
			continue
		}

		assistantMsg, err := drainStream(stream)
		stream.Close()
		if err != nil {
			next := retry.NextBackOff()
			if next == backoff.Stop {
				return nil, &apperr.LlmError{Message: err.Error()}
			}
			time.Sleep(next)
			step--
			continue
		}
		retry.Reset()

		if err := oc.appendMessage(ctx, session, *assistantMsg); err != nil {
			return nil, err
		}

		if len(assistantMsg.ToolCalls) == 0 {
			resp, cont, err := oc.finalize(ctx, session, assistantMsg.Content, req)
			if err != nil {
				return nil, err
			}
			if cont {
				continue
			}
			return resp, nil
		}

		needsInput, err := oc.executeToolCalls(ctx, session, req.Role, req.AgentID, req.ActiveTaskID, assistantMsg.ToolCalls)
		if err != nil {
			return nil, err
		}
		if needsInput {
			return &Response{
				SessionID: session.ID, Content: assistantMsg.Content,
				ToolCalls: assistantMsg.ToolCalls, IsComplete: false, NeedsInput: true,
			}, nil
		}
	}

	return &Response{SessionID: session.ID, IsComplete: false, NeedsInput: true}, nil
}

func newRetryBackoff(ctx context.Context, maxRetries int) backoff.BackOff {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 2 * time.Minute
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)
}

// resolveProviderAndModel picks the requested provider/model, falling
// back to the registry's default when the request leaves them blank.
func (o *Orchestrator) resolveProviderAndModel(providerID, modelID string) (provider.Provider, *types.Model, error) {
	if providerID == "" {
		model, err := o.providers.DefaultModel()
		if err != nil {
			return nil, nil, err
		}
		providerID, modelID = model.ProviderID, model.ID
	}
	prov, err := o.providers.Get(providerID)
	if err != nil {
		return nil, nil, err
	}
	model, err := o.providers.GetModel(providerID, modelID)
	if err != nil {
		return nil, nil, err
	}
	return prov, model, nil
}

// toolInfos builds the Eino tool schema list for the active agent's
// enabled tools.
func (o *Orchestrator) toolInfos() []provider.ToolInfo {
	enabled := o.enabledTools()
	infos := make([]provider.ToolInfo, 0, len(enabled))
	for _, t := range enabled {
		infos = append(infos, provider.ToolInfo{Name: t.ID(), Description: t.Description(), Parameters: t.Parameters()})
	}
	return infos
}

// executeToolCalls evaluates each tool call through the Decision Engine
// first; an Allow verdict then passes through the active agent's own
// permission policy and doom-loop detection, and finally the Security
// Gateway, before the call reaches the tool registry. Appends the
// resulting Tool messages (including synthetic refusals for Deny/
// RequireHuman verdicts) to the session. Returns needsInput=true when
// any call resolved to RequireHuman, since the turn cannot proceed
// without a human answering the question.
func (o *Orchestrator) executeToolCalls(ctx context.Context, session *types.AgentSession, role types.Role, agentID, activeTaskID string, calls []types.ToolCall) (bool, error) {
	needsInput := false
	for _, call := range calls {
		args := decodeToolArguments(call.Arguments)
		action := actionForToolCall(call.Name, args)

		intent, err := types.NewIntent(agentID, role, action)
		if err != nil {
			return false, err
		}
		if activeTaskID != "" {
			intent.TaskID = &activeTaskID
		}

		verdict := o.decision.Evaluate(intent)

		switch verdict.Kind {
		case types.VerdictAllow:
			if o.doomLoopVerdict(session.ID, call, args) {
				o.recordEvent(session, "permission_required", call.Name+": doom loop detected")
				event.Publish(event.Event{Type: event.PermissionRequired, Data: event.PermissionRequiredData{
					SessionID: session.ID, PermissionType: string(permission.PermDoomLoop), Title: "repeated identical tool call detected",
				}})
				if err := o.appendMessage(ctx, session, toolRefusalMessage(call.ID, "awaiting human input: repeated identical tool call detected")); err != nil {
					return false, err
				}
				needsInput = true
				continue
			}

			if agentVerdict := o.agentPermissionVerdict(call.Name, args); agentVerdict == permission.ActionDeny {
				o.recordEvent(session, "tool_call_denied", call.Name+": denied by agent permission policy")
				if err := o.appendMessage(ctx, session, toolRefusalMessage(call.ID, "denied: agent permission policy")); err != nil {
					return false, err
				}
				continue
			}

			if o.gateway != nil {
				if gerr := o.gateway.CheckAction(action, session.ProjectRoot, nil); gerr != nil {
					o.recordEvent(session, "tool_call_denied", call.Name+": "+gerr.Error())
					if err := o.appendMessage(ctx, session, toolRefusalMessage(call.ID, "denied: "+gerr.Error())); err != nil {
						return false, err
					}
					continue
				}
			}
			o.recordEvent(session, "tool_call", call.Name)
			result := o.invokeTool(ctx, session, call)
			if err := o.appendMessage(ctx, session, toolResultMessage(call.ID, result)); err != nil {
				return false, err
			}
		case types.VerdictRequireHuman:
			o.recordEvent(session, "permission_required", call.Name+": "+verdict.Question)
			event.Publish(event.Event{Type: event.PermissionRequired, Data: event.PermissionRequiredData{
				SessionID: session.ID, PermissionType: "require_human", Title: verdict.Question,
			}})
			if err := o.appendMessage(ctx, session, toolRefusalMessage(call.ID, "awaiting human input: "+verdict.Question)); err != nil {
				return false, err
			}
			needsInput = true
		default: // Deny, Modify, Defer all stop this call short of execution
			o.recordEvent(session, "tool_call_denied", call.Name+": "+verdict.Reason)
			if err := o.appendMessage(ctx, session, toolRefusalMessage(call.ID, "denied: "+verdict.Reason)); err != nil {
				return false, err
			}
		}
	}
	return needsInput, nil
}

// invokeTool runs one tool call through the registry, mapping a missing
// tool or an execution error into the output text rather than aborting
// the loop — the LLM sees the failure and can retry or change course.
func (o *Orchestrator) invokeTool(ctx context.Context, session *types.AgentSession, call types.ToolCall) string {
	t, ok := o.tools.Get(call.Name)
	if !ok {
		return "error: unknown tool " + call.Name
	}

	if err := o.tools.Validate(call.Name, json.RawMessage(call.Arguments)); err != nil {
		return "error: " + err.Error()
	}

	toolCtx := &tool.Context{SessionID: session.ID, CallID: call.ID, WorkDir: session.ProjectRoot}
	result, err := t.Execute(ctx, json.RawMessage(call.Arguments), toolCtx)
	if err != nil {
		log.Debug().Err(err).Str("tool", call.Name).Msg("tool execution failed")
		return "error: " + err.Error()
	}
	return result.Output
}

func toolResultMessage(callID, output string) types.Message {
	return types.Message{ID: types.NewID(), Role: types.RoleTool, Content: output, ToolCallID: callID, CreatedAt: time.Now()}
}

func toolRefusalMessage(callID, reason string) types.Message {
	return types.Message{ID: types.NewID(), Role: types.RoleTool, Content: reason, ToolCallID: callID, IsError: true, CreatedAt: time.Now()}
}
