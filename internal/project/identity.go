// Package project detects and caches the deterministic Project Identity
// of a working directory: the stable id the orchestrator binds a Session
// to across restarts.
package project

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/agentforge/core/pkg/types"
)

const cacheFileName = "agentforge-project-id"

var (
	cacheMu sync.RWMutex
	cache   = make(map[string]types.ProjectIdentity)
)

// Detect computes the Project Identity for workingDir. If NDC_PROJECT_ROOT
// is set, it overrides git-toplevel detection and is used as both the
// project root and the working directory for id computation purposes.
//
// Two calls against the same unchanged repository always yield the same
// ProjectID: git workspaces hash to the lexicographically smallest
// root-commit hash (cached in .git/agentforge-project-id to avoid
// re-running `git rev-list` on every call); non-git directories hash to
// sha256(canonical_absolute_path).
func Detect(workingDir string) (types.ProjectIdentity, error) {
	absDir, err := filepath.Abs(workingDir)
	if err != nil {
		return types.ProjectIdentity{}, err
	}

	if override := os.Getenv("NDC_PROJECT_ROOT"); override != "" {
		root, err := filepath.Abs(override)
		if err != nil {
			return types.ProjectIdentity{}, err
		}
		return detectAt(absDir, root)
	}

	return detectAt(absDir, absDir)
}

func detectAt(workingDir, searchFrom string) (types.ProjectIdentity, error) {
	cacheMu.RLock()
	if id, ok := cache[workingDir]; ok {
		cacheMu.RUnlock()
		return id, nil
	}
	cacheMu.RUnlock()

	gitDir, worktree := findGit(searchFrom)
	var identity types.ProjectIdentity
	if gitDir == "" {
		identity = types.ProjectIdentity{
			ProjectID:   hashPath(searchFrom),
			ProjectRoot: searchFrom,
			WorkingDir:  workingDir,
			Worktree:    searchFrom,
		}
	} else {
		identity = types.ProjectIdentity{
			ProjectID:   gitProjectID(gitDir, worktree),
			ProjectRoot: worktree,
			WorkingDir:  workingDir,
			Worktree:    worktree,
		}
	}

	cacheMu.Lock()
	cache[workingDir] = identity
	cacheMu.Unlock()
	return identity, nil
}

// findGit shells out to `git rev-parse --show-toplevel` and
// `git rev-parse --git-common-dir` so worktrees and submodules resolve to
// their shared .git directory. Returns ("", "") when dir is not inside a
// git workspace.
func findGit(dir string) (gitDir, worktree string) {
	top, err := runGit(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", ""
	}
	worktree = top

	common, err := runGit(worktree, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", ""
	}
	if !filepath.IsAbs(common) {
		common = filepath.Join(worktree, common)
	}
	return common, worktree
}

// gitProjectID reads the cached id from gitDir/agentforge-project-id if
// present; otherwise computes it via `git rev-list --max-parents=0 --all`,
// taking the first entry after ascending sort, and caches the result.
func gitProjectID(gitDir, worktree string) string {
	cacheFile := filepath.Join(gitDir, cacheFileName)
	if data, err := os.ReadFile(cacheFile); err == nil && len(strings.TrimSpace(string(data))) > 0 {
		return strings.TrimSpace(string(data))
	}

	output, err := runGit(worktree, "rev-list", "--max-parents=0", "--all")
	if err != nil {
		return hashPath(worktree)
	}

	var roots []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			roots = append(roots, line)
		}
	}
	if len(roots) == 0 {
		return hashPath(worktree)
	}
	sort.Strings(roots)
	id := roots[0]

	_ = os.WriteFile(cacheFile, []byte(id), 0o644)
	return id
}

func hashPath(canonicalPath string) string {
	sum := sha256.Sum256([]byte(canonicalPath))
	return hex.EncodeToString(sum[:])
}

func runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ClearCache drops all cached identities. Used by tests.
func ClearCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = make(map[string]types.ProjectIdentity)
}
