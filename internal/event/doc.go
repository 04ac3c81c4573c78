/*
Package event provides a type-safe pub/sub event system for the
orchestrator process.

The event system decouples the Agent Orchestrator, Decision Engine,
Workflow State Machine, and Memory subsystems: each publishes events
about what it did without depending on who, if anyone, is listening.

# Architecture

The package sits on top of watermill's gochannel for infrastructure while
keeping direct-call semantics so subscribers receive concrete Go types
rather than re-decoded payloads.

# Event Types

Session events:
  - session.created, session.state_changed

Message events:
  - message.appended

Decision Engine events:
  - intent.evaluated

Workflow events:
  - task.state_changed, task.blocked

Security Gateway events:
  - permission.required, permission.resolved, security.doom_loop_detected

Gold Memory events:
  - memory.invariant_violated

File events:
  - file.edited

# Basic Usage

Publishing events:

	event.Publish(event.Event{
		Type: event.TaskStateChanged,
		Data: event.TaskStateChangedData{TaskID: id, From: from, To: to},
	})

	event.PublishSync(event.Event{
		Type: event.IntentEvaluated,
		Data: event.IntentEvaluatedData{Intent: intent, Verdict: verdict},
	})

Subscribing:

	unsubscribe := event.Subscribe(event.TaskBlocked, func(e event.Event) {
		data := e.Data.(event.TaskBlockedData)
		log.Info().Str("task", data.TaskID).Msg("task blocked, awaiting human")
	})
	defer unsubscribe()

# Subscriber Safety

PublishSync runs subscribers synchronously in the publisher's goroutine.
Subscribers must complete quickly, never re-enter Publish/PublishSync, and
never acquire a lock the publisher may hold.

# Testing

	event.Reset()

# Thread Safety

The bus is safe for concurrent publish and subscribe from multiple
goroutines.
*/
package event
