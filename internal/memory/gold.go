package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentforge/core/internal/event"
	"github.com/agentforge/core/pkg/types"
)

// InvariantStore is the persistence collaborator GoldMemory writes
// through, implemented by internal/storage.InvariantStore.
type InvariantStore interface {
	Save(ctx context.Context, inv *types.GoldInvariant) error
	Get(ctx context.Context, id string) (*types.GoldInvariant, error)
	All(ctx context.Context) ([]types.GoldInvariant, error)
}

// GoldMemory is the process-wide keyed store of invariants (spec §4.5).
// Reads may be concurrent; writes require exclusive access, matching the
// shared-resource policy of spec §5. An add-then-query race may miss a
// just-added invariant — acceptable since the next orchestrator
// iteration rebuilds the prompt from a fresh query.
type GoldMemory struct {
	mu          sync.RWMutex
	store       InvariantStore
	cache       map[string]types.GoldInvariant
	scopeIdx    map[types.ScopeType][]string
	priorityIdx map[types.InvariantPriority][]string
	tagIdx      map[string][]string
}

// NewGoldMemory builds an empty, in-memory-indexed GoldMemory backed by
// store for durability.
func NewGoldMemory(store InvariantStore) *GoldMemory {
	return &GoldMemory{
		store:       store,
		cache:       make(map[string]types.GoldInvariant),
		scopeIdx:    make(map[types.ScopeType][]string),
		priorityIdx: make(map[types.InvariantPriority][]string),
		tagIdx:      make(map[string][]string),
	}
}

// Load populates the in-memory indexes from the backing store; call once
// at startup.
func (g *GoldMemory) Load(ctx context.Context) error {
	invariants, err := g.store.All(ctx)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, inv := range invariants {
		g.indexLocked(inv)
	}
	return nil
}

func (g *GoldMemory) indexLocked(inv types.GoldInvariant) {
	g.cache[inv.ID] = inv
	g.scopeIdx[inv.Scope.Type] = appendUnique(g.scopeIdx[inv.Scope.Type], inv.ID)
	g.priorityIdx[inv.Priority] = appendUnique(g.priorityIdx[inv.Priority], inv.ID)
	for _, tag := range inv.Tags {
		g.tagIdx[tag] = appendUnique(g.tagIdx[tag], inv.ID)
	}
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// Add stores invariant, assigning it a fresh id if unset, and returns
// that id.
func (g *GoldMemory) Add(ctx context.Context, invariant types.GoldInvariant) (string, error) {
	if invariant.ID == "" {
		invariant.ID = types.NewID()
	}
	if invariant.CreatedAt.IsZero() {
		invariant.CreatedAt = time.Now()
	}

	g.mu.Lock()
	g.indexLocked(invariant)
	g.mu.Unlock()

	if err := g.store.Save(ctx, &invariant); err != nil {
		return "", err
	}
	return invariant.ID, nil
}

// Query returns invariants matching every filter set on q.
func (g *GoldMemory) Query(q types.MemoryQuery) []types.GoldInvariant {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []types.GoldInvariant
	for _, inv := range g.cache {
		if q.OnlyActive && !inv.IsActive {
			continue
		}
		if q.Priority != "" && inv.Priority != q.Priority {
			continue
		}
		if q.ScopeType != "" && inv.Scope.Type != q.ScopeType {
			continue
		}
		if len(q.Tags) > 0 && !anyTagMatches(inv.Tags, q.Tags) {
			continue
		}
		if inv.ValidationCount < q.MinValidationCount {
			continue
		}
		out = append(out, inv)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func anyTagMatches(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// FindApplicable returns active invariants applicable to context, scoped
// by its files/modules/api_calls and floored at its min priority if set.
// A Global-scope invariant always applies; others must have their scope
// pattern match at least one of the context's files, modules, or API
// calls.
func (g *GoldMemory) FindApplicable(ctx types.InvariantContext) []types.GoldInvariant {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []types.GoldInvariant
	for _, inv := range g.cache {
		if !inv.IsActive {
			continue
		}
		if ctx.MinPriority != "" && priorityRank(inv.Priority) < priorityRank(ctx.MinPriority) {
			continue
		}
		if !scopeApplies(inv.Scope, ctx) {
			continue
		}
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func scopeApplies(scope types.InvariantScope, ctx types.InvariantContext) bool {
	switch scope.Type {
	case types.ScopeGlobal, "":
		return true
	case types.ScopeFilePattern:
		return matchesAny(scope.Pattern, ctx.Files)
	case types.ScopeModule:
		return matchesAny(scope.Pattern, ctx.Modules)
	case types.ScopeAPIPattern:
		return matchesAny(scope.Pattern, ctx.APICalls)
	case types.ScopeTaskPattern:
		return scope.Pattern == "" || strings.Contains(ctx.TaskDescription, scope.Pattern)
	default:
		return false
	}
}

func matchesAny(pattern string, candidates []string) bool {
	if pattern == "" || pattern == ".*" {
		return len(candidates) > 0
	}
	for _, c := range candidates {
		if strings.Contains(c, pattern) {
			return true
		}
	}
	return false
}

func priorityRank(p types.InvariantPriority) int {
	switch p {
	case types.PriorityLow:
		return 0
	case types.PriorityMedium:
		return 1
	case types.PriorityHigh:
		return 2
	case types.PriorityCritical:
		return 3
	default:
		return 0
	}
}

// MarkValidated increments id's validation counter and updates its last
// validated timestamp.
func (g *GoldMemory) MarkValidated(ctx context.Context, id string) error {
	g.mu.Lock()
	inv, ok := g.cache[id]
	if !ok {
		g.mu.Unlock()
		return errNotFound(id)
	}
	inv.ValidationCount++
	now := time.Now()
	inv.LastValidated = &now
	g.cache[id] = inv
	g.mu.Unlock()

	return g.store.Save(ctx, &inv)
}

// MarkViolated increments id's violation counter and publishes a
// memory.invariant_violated event; when violations exceed validations, the
// invariant's priority is auto-escalated to Critical.
func (g *GoldMemory) MarkViolated(ctx context.Context, id string, taskID string) error {
	g.mu.Lock()
	inv, ok := g.cache[id]
	if !ok {
		g.mu.Unlock()
		return errNotFound(id)
	}
	inv.ViolationCount++
	escalated := false
	if inv.ViolationCount > inv.ValidationCount && inv.Priority != types.PriorityCritical {
		inv.Priority = types.PriorityCritical
		escalated = true
	}
	g.cache[id] = inv
	if escalated {
		g.priorityIdx[types.PriorityCritical] = appendUnique(g.priorityIdx[types.PriorityCritical], id)
	}
	g.mu.Unlock()

	if err := g.store.Save(ctx, &inv); err != nil {
		return err
	}

	event.Publish(event.Event{
		Type: event.InvariantViolated,
		Data: event.GoldInvariantViolatedData{InvariantID: id, TaskID: taskID},
	})
	return nil
}

// ValidateAction checks context against every applicable invariant and
// reports which (if any) it violates. Placeholder pattern-scope matching
// means "violates" here is limited to invariants whose rule text contains
// "never" and whose scope pattern text literally appears in the task
// description, case-insensitively (e.g. an invariant "never commit to
// main" flagged against a description containing "commit to main").
// ValidateAction records nothing; violation counters change only through
// MarkViolated.
func (g *GoldMemory) ValidateAction(ctx types.InvariantContext) types.ValidationOutcome {
	applicable := g.FindApplicable(ctx)

	var violations []types.GoldInvariant
	for _, inv := range applicable {
		if inv.Scope.Pattern != "" && inv.Scope.Pattern != ".*" &&
			strings.Contains(strings.ToLower(ctx.TaskDescription), strings.ToLower(inv.Scope.Pattern)) &&
			strings.Contains(strings.ToLower(inv.RuleText), "never") {
			violations = append(violations, inv)
		}
	}

	return types.ValidationOutcome{
		Passed:          len(violations) == 0,
		Violations:      violations,
		ApplicableCount: len(applicable),
	}
}

type notFoundErr string

func (e notFoundErr) Error() string { return "invariant not found: " + string(e) }

func errNotFound(id string) error { return notFoundErr(id) }

// goldBundle is the YAML-on-disk shape of a Gold Invariant set — an
// operator-editable file for seeding or migrating a project's invariants
// between GoldMemory instances, independent of whatever InvariantStore
// backs the running process.
type goldBundle struct {
	Invariants []goldInvariantYAML `yaml:"invariants"`
}

type goldInvariantYAML struct {
	ID                 string   `yaml:"id,omitempty"`
	RuleText           string   `yaml:"rule_text"`
	Description        string   `yaml:"description,omitempty"`
	Source             string   `yaml:"source,omitempty"`
	ScopeType          string   `yaml:"scope_type,omitempty"`
	ScopePattern       string   `yaml:"scope_pattern,omitempty"`
	Priority           string   `yaml:"priority,omitempty"`
	VersionConstraints []string `yaml:"version_constraints,omitempty"`
	Tags               []string `yaml:"tags,omitempty"`
	IsActive           bool     `yaml:"is_active"`
}

// ExportYAML serializes every invariant currently indexed (active or not)
// into a YAML bundle suitable for checking into a repo or handing to
// ImportYAML on another GoldMemory.
func (g *GoldMemory) ExportYAML() ([]byte, error) {
	g.mu.RLock()
	entries := make([]types.GoldInvariant, 0, len(g.cache))
	for _, inv := range g.cache {
		entries = append(entries, inv)
	}
	g.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	bundle := goldBundle{Invariants: make([]goldInvariantYAML, 0, len(entries))}
	for _, inv := range entries {
		bundle.Invariants = append(bundle.Invariants, goldInvariantYAML{
			ID:                 inv.ID,
			RuleText:           inv.RuleText,
			Description:        inv.Description,
			Source:             string(inv.Source),
			ScopeType:          string(inv.Scope.Type),
			ScopePattern:       inv.Scope.Pattern,
			Priority:           string(inv.Priority),
			VersionConstraints: inv.VersionConstraints,
			Tags:               inv.Tags,
			IsActive:           inv.IsActive,
		})
	}
	return yaml.Marshal(bundle)
}

// ImportYAML parses a YAML Gold Invariant bundle (ExportYAML's format) and
// Adds every entry, assigning fresh ids to any entry that omits one.
// Returns the number of invariants added.
func (g *GoldMemory) ImportYAML(ctx context.Context, data []byte) (int, error) {
	var bundle goldBundle
	if err := yaml.Unmarshal(data, &bundle); err != nil {
		return 0, fmt.Errorf("parse gold invariant bundle: %w", err)
	}

	for i, entry := range bundle.Invariants {
		if entry.RuleText == "" {
			return i, fmt.Errorf("gold invariant bundle entry %d: rule_text is required", i)
		}
		inv := types.GoldInvariant{
			ID:                 entry.ID,
			RuleText:           entry.RuleText,
			Description:        entry.Description,
			Source:             types.InvariantSource(entry.Source),
			Scope:              types.InvariantScope{Type: types.ScopeType(entry.ScopeType), Pattern: entry.ScopePattern},
			Priority:           types.InvariantPriority(entry.Priority),
			VersionConstraints: entry.VersionConstraints,
			Tags:               entry.Tags,
			IsActive:           entry.IsActive,
		}
		if _, err := g.Add(ctx, inv); err != nil {
			return i, fmt.Errorf("gold invariant bundle entry %d: %w", i, err)
		}
	}
	return len(bundle.Invariants), nil
}
