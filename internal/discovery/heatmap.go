// Package discovery implements the pre-execution Impact Report scan: a
// best-effort prediction of what a task will touch, built from git
// change history and a keyword match against the task description,
// feeding invariants into the prompt builder and mandatory checks into
// the quality gate runner.
package discovery

import (
	"context"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// HeatmapConfig tunes the volatility calculation.
type HeatmapConfig struct {
	LookbackDays            int
	HighVolatilityThreshold float64
}

// DefaultHeatmapConfig matches the lookback window and escalation
// thresholds used upstream: a week of history, 0.6+ normalized change
// frequency counts as high volatility.
func DefaultHeatmapConfig() HeatmapConfig {
	return HeatmapConfig{
		LookbackDays:            7,
		HighVolatilityThreshold: 0.6,
	}
}

// ModuleVolatility is one directory's change-frequency score.
type ModuleVolatility struct {
	Module   string
	Score    float64
	RawCount int
}

// Heatmap maps each changed directory (treated as a module) to its
// normalized git change frequency over the lookback window.
type Heatmap struct {
	scores map[string]ModuleVolatility
	config HeatmapConfig
}

// BuildHeatmap runs `git log --name-status` over the lookback window and
// groups changed files by parent directory, normalizing each directory's
// raw change count against the busiest directory in the window. Returns
// an empty heatmap (not an error) when workDir isn't a git repository or
// has no commits in range — discovery degrades to task-description
// matching alone in that case.
func BuildHeatmap(ctx context.Context, workDir string, config HeatmapConfig) *Heatmap {
	since := time.Now().AddDate(0, 0, -config.LookbackDays).Format("2006-01-02T15:04:05")

	cmd := exec.CommandContext(ctx, "git", "log", "--since", since, "--name-status", "--pretty=format:commit")
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return &Heatmap{scores: map[string]ModuleVolatility{}, config: config}
	}

	rawCounts := make(map[string]int)
	for _, line := range strings.Split(string(output), "\n") {
		if line == "" || line == "commit" {
			continue
		}
		status := line[0]
		if status != 'A' && status != 'M' && status != 'D' && status != 'R' {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) < 2 {
			continue
		}
		path := fields[len(fields)-1]
		module := filepath.Dir(path)
		if module == "." {
			module = "/"
		}
		rawCounts[module]++
	}

	maxCount := 1
	for _, c := range rawCounts {
		if c > maxCount {
			maxCount = c
		}
	}

	scores := make(map[string]ModuleVolatility, len(rawCounts))
	for module, count := range rawCounts {
		scores[module] = ModuleVolatility{
			Module:   module,
			Score:    float64(count) / float64(maxCount),
			RawCount: count,
		}
	}

	return &Heatmap{scores: scores, config: config}
}

// ScoreFor returns the volatility score for the directory containing
// path, or 0 if it saw no changes in the lookback window.
func (h *Heatmap) ScoreFor(path string) float64 {
	module := filepath.Dir(path)
	if module == "." {
		module = "/"
	}
	return h.scores[module].Score
}

// HighVolatility returns every module at or above the configured
// threshold, sorted by descending score then name for deterministic
// output.
func (h *Heatmap) HighVolatility() []ModuleVolatility {
	var out []ModuleVolatility
	for _, mv := range h.scores {
		if mv.Score >= h.config.HighVolatilityThreshold {
			out = append(out, mv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Module < out[j].Module
	})
	return out
}

func (mv ModuleVolatility) String() string {
	return mv.Module + " (score=" + strconv.FormatFloat(mv.Score, 'f', 2, 64) + ", changes=" + strconv.Itoa(mv.RawCount) + ")"
}
