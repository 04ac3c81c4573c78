package discovery

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/agentforge/core/internal/event"
	"github.com/agentforge/core/pkg/types"
)

// maxCandidateFiles bounds how many keyword-matched files feed into the
// report, so a vague task description on a large repo doesn't produce an
// unusable wall of "files to modify".
const maxCandidateFiles = 20

// skipDirs are directories never worth scanning for task-relevance —
// vendored, generated, or VCS-internal trees. Kept independent of
// internal/tool's ignore list: that list exists to keep the list/glob
// tools' output readable, this one exists to keep the heuristic file
// matcher from wading through generated code it could never sensibly
// attribute to a task description.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true,
	"build": true, "target": true, ".idea": true, ".vscode": true,
}

// Scanner runs the pre-execution discovery pass over a project root.
type Scanner struct {
	workDir string
	config  HeatmapConfig
}

// NewScanner creates a Scanner rooted at workDir, using the default
// heatmap lookback window and volatility threshold.
func NewScanner(workDir string) *Scanner {
	return &Scanner{workDir: workDir, config: DefaultHeatmapConfig()}
}

// Run scans the project and produces an Impact Report for the given task:
// candidate files matched against the task description, the regression
// tests those files imply, high-volatility modules the touched files
// fall in, and coupling warnings where a match lands in one of them.
// Never returns an error for an ordinary scan failure (a non-git
// directory, a git log with no history) — those degrade to a report
// with fewer findings rather than blocking the task on a discovery
// failure the caller almost certainly can't act on.
func (s *Scanner) Run(ctx context.Context, taskID, taskDescription string) *types.ImpactReport {
	heatmap := BuildHeatmap(ctx, s.workDir, s.config)
	keywords := extractKeywords(taskDescription)

	candidates := s.matchFiles(keywords)
	if len(candidates) > maxCandidateFiles {
		candidates = candidates[:maxCandidateFiles]
	}

	report := &types.ImpactReport{}
	var coupling []types.CouplingWarning
	seenModules := make(map[string]bool)

	for _, c := range candidates {
		report.FilesToRead = append(report.FilesToRead, c.path)
		if c.score >= strongMatchScore {
			report.FilesToModify = append(report.FilesToModify, c.path)
			if test := siblingTestFile(c.path); test != "" {
				report.RequiredTests = append(report.RequiredTests, test)
			}
		}

		moduleScore := heatmap.ScoreFor(c.path)
		if moduleScore >= s.config.HighVolatilityThreshold {
			module := filepath.Dir(c.path)
			if !seenModules[module] {
				seenModules[module] = true
				coupling = append(coupling, types.CouplingWarning{
					Module: module,
					Reason: "frequently changed in the last days; verify callers before editing",
				})
			}
		}
	}
	report.CouplingWarnings = coupling

	for _, mv := range heatmap.HighVolatility() {
		report.VolatileModules = append(report.VolatileModules, types.VolatileModule{
			Module:           mv.Module,
			RequiredCoverage: requiredCoverageFor(mv.Score),
		})
	}

	report.GitOperations = inferGitOperations(keywords)
	report.HardConstraints = buildHardConstraints(report)

	event.Publish(event.Event{
		Type: event.DiscoveryCompleted,
		Data: event.DiscoveryCompletedData{
			TaskID:         taskID,
			FilesScanned:   len(candidates),
			HighVolatility: len(report.VolatileModules),
		},
	})

	log.Debug().
		Str("task_id", taskID).
		Int("files_matched", len(candidates)).
		Int("hard_constraints", len(report.HardConstraints)).
		Msg("discovery scan complete")

	return report
}

// strongMatchScore is the minimum keyword-overlap score, out of 1.0, at
// which a matched file is promoted from "worth reading" to "likely to be
// modified" and gets its sibling test added to RequiredTests.
const strongMatchScore = 0.5

type fileMatch struct {
	path  string
	score float64
}

// matchFiles walks the project tree and scores every source file by how
// many task-description keywords appear in its path, case-insensitively.
// This is a heuristic substitute for the static call-graph analysis the
// original discovery phase assumed was available; without a compiler
// front end to ground "what touches what", keyword overlap against the
// task description is the cheapest signal that still beats scanning
// nothing.
func (s *Scanner) matchFiles(keywords []string) []fileMatch {
	if len(keywords) == 0 {
		return nil
	}

	var matches []fileMatch
	_ = filepath.Walk(s.workDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(s.workDir, path)
		if relErr != nil {
			rel = path
		}
		score := keywordScore(rel, keywords)
		if score > 0 {
			matches = append(matches, fileMatch{path: rel, score: score})
		}
		return nil
	})

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].path < matches[j].path
	})
	return matches
}

func keywordScore(path string, keywords []string) float64 {
	lower := strings.ToLower(path)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	if len(keywords) == 0 {
		return 0
	}
	return float64(hits) / float64(len(keywords))
}

// stopwords are excluded from keyword extraction since they match almost
// every path and would blow out the candidate set with noise.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "into": true, "when": true, "make": true,
	"add": true, "fix": true, "update": true, "change": true,
}

func extractKeywords(description string) []string {
	fields := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	seen := make(map[string]bool)
	var out []string
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func siblingTestFile(path string) string {
	if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
		return ""
	}
	test := strings.TrimSuffix(path, ".go") + "_test.go"
	return test
}

func requiredCoverageFor(volatilityScore float64) float64 {
	coverage := 0.8 + volatilityScore*0.2
	if coverage > 0.95 {
		coverage = 0.95
	}
	return coverage
}

// gitKeywords maps a task-description keyword to the git operation it
// implies is likely part of completing the task.
var gitKeywords = map[string]string{
	"commit": "commit", "push": "push", "branch": "branch",
	"merge": "merge", "rebase": "rebase", "checkout": "checkout",
}

func inferGitOperations(keywords []string) []string {
	var ops []string
	seen := make(map[string]bool)
	for _, kw := range keywords {
		if op, ok := gitKeywords[kw]; ok && !seen[op] {
			seen[op] = true
			ops = append(ops, op)
		}
	}
	return ops
}

func buildHardConstraints(report *types.ImpactReport) []string {
	var constraints []string
	for _, test := range report.RequiredTests {
		constraints = append(constraints, "must pass: "+test)
	}
	for _, vm := range report.VolatileModules {
		constraints = append(constraints, "maintain coverage >= "+formatPercent(vm.RequiredCoverage)+" for "+vm.Module)
	}
	return constraints
}

func formatPercent(f float64) string {
	return strconv.Itoa(int(f*100+0.5)) + "%"
}
