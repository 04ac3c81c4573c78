package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agnivade/levenshtein"
	einotool "github.com/cloudwego/eino/components/tool"

	"github.com/agentforge/core/internal/apperr"
	"github.com/agentforge/core/internal/event"
	"github.com/agentforge/core/internal/security"
)

const editDescription = `Performs exact string replacements in files.

Usage:
- The filePath parameter must be an absolute path
- The oldString must exist in the file; matching runs a cascade of
  strategies (exact, line-trimmed, block-anchor, whitespace-normalized)
  and falls back to a fuzzy match if all four miss
- The newString will replace oldString
- Use replaceAll to replace all occurrences
- The edit will FAIL if oldString is not unique (unless using replaceAll)
- Every edit is checked against the external_directory security policy`

// EditTool implements file editing via a multi-strategy matching cascade.
type EditTool struct {
	workDir string
	gateway *security.Gateway
}

// EditInput represents the input for the edit tool.
type EditInput struct {
	FilePath   string `json:"filePath"`
	OldString  string `json:"oldString"`
	NewString  string `json:"newString"`
	ReplaceAll bool   `json:"replaceAll,omitempty"`
}

// NewEditTool creates a new edit tool.
func NewEditTool(workDir string, gateway *security.Gateway) *EditTool {
	return &EditTool{workDir: workDir, gateway: gateway}
}

func (t *EditTool) ID() string          { return "edit" }
func (t *EditTool) Description() string { return editDescription }

func (t *EditTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"filePath": {
				"type": "string",
				"description": "The absolute path to the file to edit"
			},
			"oldString": {
				"type": "string",
				"description": "The exact text to replace"
			},
			"newString": {
				"type": "string",
				"description": "The text to replace it with"
			},
			"replaceAll": {
				"type": "boolean",
				"description": "Replace all occurrences (default: false)"
			}
		},
		"required": ["filePath", "oldString", "newString"]
	}`)
}

func (t *EditTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params EditInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.OldString == params.NewString {
		return nil, fmt.Errorf("oldString and newString must be different")
	}

	workDir := t.workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		workDir = toolCtx.WorkDir
	}
	if t.gateway != nil {
		if err := t.gateway.CheckPath(params.FilePath, workDir, overridesFromContext(toolCtx)); err != nil {
			return nil, err
		}
	}

	content, err := os.ReadFile(params.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	before := string(content)

	after, count, strategy, err := applyEditCascade(params.FilePath, before, params.OldString, params.NewString, params.ReplaceAll)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(params.FilePath, []byte(after), 0644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	if toolCtx != nil && toolCtx.SessionID != "" {
		event.Publish(event.Event{
			Type: event.FileEdited,
			Data: event.FileEditedData{File: params.FilePath},
		})
	}

	diffText, additions, deletions := buildDiffMetadata(params.FilePath, before, after, workDir)

	title := fmt.Sprintf("Edited %s", filepath.Base(params.FilePath))
	if strategy != "exact" {
		title = fmt.Sprintf("%s (%s)", title, strategy)
	}

	return &Result{
		Title:  title,
		Output: fmt.Sprintf("Replaced %d occurrence(s) using the %s strategy", count, strategy),
		Metadata: map[string]any{
			"file":         params.FilePath,
			"replacements": count,
			"strategy":     strategy,
			"diff":         diffText,
			"additions":    additions,
			"deletions":    deletions,
		},
	}, nil
}

// applyEditCascade runs the matching strategies in order — simple exact
// match, line-trimmed, block-anchor, whitespace-normalized — and falls
// back to a Levenshtein-similarity fuzzy match if all four miss. The
// first strategy to find at least one occurrence wins; ambiguity within
// that strategy (more than one match, replaceAll not set) is an error
// rather than falling through to the next strategy, so a caller always
// knows which strategy actually fired.
func applyEditCascade(path, text, oldStr, newStr string, replaceAll bool) (string, int, string, error) {
	strategies := []struct {
		name string
		fn   func(string, string) (int, []int)
	}{
		{"exact", countExact},
		{"line_trimmed", countLineTrimmed},
		{"block_anchor", countBlockAnchor},
		{"whitespace_normalized", countWhitespaceNormalized},
	}

	for _, s := range strategies {
		count, _ := s.fn(text, oldStr)
		if count == 0 {
			continue
		}
		if !replaceAll && count > 1 {
			return "", 0, s.name, &apperr.EditAmbiguousMatch{Path: path, Count: count}
		}
		after, n := replaceByStrategy(s.name, text, oldStr, newStr, replaceAll)
		return after, n, s.name, nil
	}

	if fuzzy, sim := fuzzyMatch(text, oldStr); fuzzy != "" && sim >= 0.7 {
		after := strings.Replace(text, fuzzy, newStr, 1)
		return after, 1, "fuzzy", nil
	}

	return "", 0, "", &apperr.EditNoMatch{Path: path}
}

func countExact(text, old string) (int, []int) {
	return strings.Count(text, old), nil
}

func replaceByStrategy(strategy, text, oldStr, newStr string, replaceAll bool) (string, int) {
	switch strategy {
	case "exact":
		if replaceAll {
			n := strings.Count(text, oldStr)
			return strings.ReplaceAll(text, oldStr, newStr), n
		}
		return strings.Replace(text, oldStr, newStr, 1), 1
	case "line_trimmed":
		return replaceLineTrimmed(text, oldStr, newStr, replaceAll)
	case "block_anchor":
		return replaceBlockAnchor(text, oldStr, newStr, replaceAll)
	case "whitespace_normalized":
		return replaceWhitespaceNormalized(text, oldStr, newStr, replaceAll)
	}
	return text, 0
}

// countLineTrimmed matches oldStr against the text line-by-line (and
// block-by-block for multi-line needles), ignoring leading/trailing
// whitespace on each line.
func countLineTrimmed(text, old string) (int, []int) {
	oldLines := splitLines(old)
	textLines := splitLines(text)
	if len(oldLines) == 0 {
		return 0, nil
	}
	trimmedOld := trimAll(oldLines)

	count := 0
	for i := 0; i <= len(textLines)-len(oldLines); i++ {
		if linesEqual(trimAll(textLines[i:i+len(oldLines)]), trimmedOld) {
			count++
		}
	}
	return count, nil
}

func replaceLineTrimmed(text, oldStr, newStr string, replaceAll bool) (string, int) {
	oldLines := splitLines(oldStr)
	textLines := splitLines(text)
	trimmedOld := trimAll(oldLines)

	var out []string
	count := 0
	i := 0
	for i < len(textLines) {
		if i <= len(textLines)-len(oldLines) && linesEqual(trimAll(textLines[i:i+len(oldLines)]), trimmedOld) && (replaceAll || count == 0) {
			out = append(out, splitLines(newStr)...)
			i += len(oldLines)
			count++
			continue
		}
		out = append(out, textLines[i])
		i++
	}
	return strings.Join(out, "\n"), count
}

// countBlockAnchor matches a multi-line oldStr by comparing its first
// and last line (trimmed) against candidate anchor lines in text, then
// requiring every interior line to match its counterpart trimmed too —
// tolerating only leading/trailing whitespace drift, not content drift.
func countBlockAnchor(text, old string) (int, []int) {
	oldLines := splitLines(old)
	if len(oldLines) < 3 {
		return 0, nil
	}
	textLines := splitLines(text)
	first := strings.TrimSpace(oldLines[0])
	last := strings.TrimSpace(oldLines[len(oldLines)-1])
	blockLen := len(oldLines)

	count := 0
	for i := 0; i <= len(textLines)-blockLen; i++ {
		if strings.TrimSpace(textLines[i]) == first && strings.TrimSpace(textLines[i+blockLen-1]) == last &&
			interiorLinesMatch(textLines[i:i+blockLen], oldLines) {
			count++
		}
	}
	return count, nil
}

// interiorLinesMatch compares the trimmed lines strictly between the
// first and last line of a candidate block against the same lines of
// oldLines — the first/last anchor lines only bound the block, the
// middle still has to match for the block to be the same edit target.
func interiorLinesMatch(block, oldLines []string) bool {
	for i := 1; i < len(oldLines)-1; i++ {
		if strings.TrimSpace(block[i]) != strings.TrimSpace(oldLines[i]) {
			return false
		}
	}
	return true
}

func replaceBlockAnchor(text, oldStr, newStr string, replaceAll bool) (string, int) {
	oldLines := splitLines(oldStr)
	textLines := splitLines(text)
	blockLen := len(oldLines)
	first := strings.TrimSpace(oldLines[0])
	last := strings.TrimSpace(oldLines[blockLen-1])

	var out []string
	count := 0
	i := 0
	for i < len(textLines) {
		if i <= len(textLines)-blockLen && strings.TrimSpace(textLines[i]) == first &&
			strings.TrimSpace(textLines[i+blockLen-1]) == last &&
			interiorLinesMatch(textLines[i:i+blockLen], oldLines) && (replaceAll || count == 0) {
			out = append(out, splitLines(newStr)...)
			i += blockLen
			count++
			continue
		}
		out = append(out, textLines[i])
		i++
	}
	return strings.Join(out, "\n"), count
}

// countWhitespaceNormalized collapses runs of internal spaces/tabs to a
// single space on both needle and haystack lines before comparing, so an
// edit whose indentation or inline spacing drifted still finds a match.
func countWhitespaceNormalized(text, old string) (int, []int) {
	oldLines := splitLines(old)
	textLines := splitLines(text)
	if len(oldLines) == 0 {
		return 0, nil
	}
	normOld := normalizeAll(oldLines)

	count := 0
	for i := 0; i <= len(textLines)-len(oldLines); i++ {
		if linesEqual(normalizeAll(textLines[i:i+len(oldLines)]), normOld) {
			count++
		}
	}
	return count, nil
}

func replaceWhitespaceNormalized(text, oldStr, newStr string, replaceAll bool) (string, int) {
	oldLines := splitLines(oldStr)
	textLines := splitLines(text)
	normOld := normalizeAll(oldLines)

	var out []string
	count := 0
	i := 0
	for i < len(textLines) {
		if i <= len(textLines)-len(oldLines) && linesEqual(normalizeAll(textLines[i:i+len(oldLines)]), normOld) && (replaceAll || count == 0) {
			out = append(out, splitLines(newStr)...)
			i += len(oldLines)
			count++
			continue
		}
		out = append(out, textLines[i])
		i++
	}
	return strings.Join(out, "\n"), count
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func normalizeAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = normalizeWhitespace(l)
	}
	return out
}

func splitLines(s string) []string {
	return strings.Split(normalizeLineEndings(s), "\n")
}

func trimAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(l)
	}
	return out
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// fuzzyMatch finds the substring of text most similar to target, used as
// a last resort beyond the four named strategies when the source has
// drifted enough that none of them find a match.
func fuzzyMatch(text, target string) (string, float64) {
	lines := strings.Split(text, "\n")
	targetLines := strings.Split(target, "\n")

	bestMatch := ""
	bestSimilarity := 0.0

	if len(targetLines) == 1 {
		for _, line := range lines {
			if sim := similarity(line, target); sim > bestSimilarity {
				bestSimilarity = sim
				bestMatch = line
			}
		}
		return bestMatch, bestSimilarity
	}

	targetLen := len(targetLines)
	for i := 0; i <= len(lines)-targetLen; i++ {
		block := strings.Join(lines[i:i+targetLen], "\n")
		if sim := similarity(block, target); sim > bestSimilarity {
			bestSimilarity = sim
			bestMatch = block
		}
	}
	return bestMatch, bestSimilarity
}

// similarity calculates normalized Levenshtein similarity using the
// agnivade/levenshtein package.
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	if len(a) > 10000 || len(b) > 10000 {
		maxLen := max(len(a), len(b))
		minLen := min(len(a), len(b))
		return float64(minLen) / float64(maxLen)
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := max(len(a), len(b))
	return 1.0 - float64(dist)/float64(maxLen)
}

func (t *EditTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t}
}
