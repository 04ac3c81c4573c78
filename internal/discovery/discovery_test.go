package discovery

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func initGitRepo(t *testing.T, dir string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@t.com", "GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@t.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}
	run("init", "-q")
	run("checkout", "-q", "-b", "main")
}

func writeAndCommit(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	add := exec.Command("git", "add", name)
	add.Dir = dir
	if out, err := add.CombinedOutput(); err != nil {
		t.Fatalf("git add failed: %v\n%s", err, out)
	}
	commit := exec.Command("git", "commit", "-q", "-m", "change "+name)
	commit.Dir = dir
	commit.Env = append(os.Environ(), "GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@t.com", "GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@t.com")
	if out, err := commit.CombinedOutput(); err != nil {
		t.Fatalf("git commit failed: %v\n%s", err, out)
	}
}

func TestBuildHeatmap_EmptyOnNonGitDir(t *testing.T) {
	tmpDir := t.TempDir()
	h := BuildHeatmap(context.Background(), tmpDir, DefaultHeatmapConfig())
	if len(h.HighVolatility()) != 0 {
		t.Errorf("expected no volatility for a non-git dir, got %v", h.HighVolatility())
	}
	if h.ScoreFor("anything.go") != 0 {
		t.Error("expected zero score for a non-git dir")
	}
}

func TestBuildHeatmap_ScoresChangedDirectories(t *testing.T) {
	requireGit(t)
	tmpDir := t.TempDir()
	initGitRepo(t, tmpDir)

	for i := 0; i < 3; i++ {
		writeAndCommit(t, tmpDir, "hot/file.go", "content"+string(rune('a'+i)))
	}
	writeAndCommit(t, tmpDir, "cold/file.go", "once")

	h := BuildHeatmap(context.Background(), tmpDir, DefaultHeatmapConfig())

	hotScore := h.ScoreFor("hot/file.go")
	coldScore := h.ScoreFor("cold/file.go")
	if hotScore <= coldScore {
		t.Errorf("expected hot dir score (%v) to exceed cold dir score (%v)", hotScore, coldScore)
	}
	if hotScore != 1.0 {
		t.Errorf("expected the busiest dir to normalize to 1.0, got %v", hotScore)
	}

	found := false
	for _, mv := range h.HighVolatility() {
		if mv.Module == "hot" {
			found = true
		}
	}
	if !found {
		t.Error("expected hot to be flagged as high volatility")
	}
}

func TestExtractKeywords(t *testing.T) {
	kws := extractKeywords("Fix the login handler for the auth service")
	want := map[string]bool{"login": true, "handler": true, "auth": true, "service": true}
	got := make(map[string]bool)
	for _, k := range kws {
		got[k] = true
	}
	for k := range want {
		if !got[k] {
			t.Errorf("expected keyword %q to be extracted, got %v", k, kws)
		}
	}
	if got["the"] || got["for"] || got["fix"] {
		t.Errorf("expected stopwords to be filtered out, got %v", kws)
	}
}

func TestSiblingTestFile(t *testing.T) {
	if got := siblingTestFile("internal/auth/login.go"); got != "internal/auth/login_test.go" {
		t.Errorf("got %q", got)
	}
	if got := siblingTestFile("internal/auth/login_test.go"); got != "" {
		t.Errorf("expected no sibling test for a test file itself, got %q", got)
	}
	if got := siblingTestFile("README.md"); got != "" {
		t.Errorf("expected no sibling test for a non-Go file, got %q", got)
	}
}

func TestInferGitOperations(t *testing.T) {
	ops := inferGitOperations([]string{"commit", "branch", "unrelated"})
	if len(ops) != 2 {
		t.Fatalf("expected 2 git operations, got %v", ops)
	}
}

func TestScanner_Run_MatchesCandidateFilesAndBuildsConstraints(t *testing.T) {
	requireGit(t)
	tmpDir := t.TempDir()
	initGitRepo(t, tmpDir)

	writeAndCommit(t, tmpDir, "internal/auth/login.go", "package auth\n")
	writeAndCommit(t, tmpDir, "internal/auth/login_test.go", "package auth\n")
	writeAndCommit(t, tmpDir, "internal/auth/login.go", "package auth\n// v2\n")
	writeAndCommit(t, tmpDir, "internal/billing/invoice.go", "package billing\n")

	scanner := NewScanner(tmpDir)
	report := scanner.Run(context.Background(), "task-1", "fix a bug in the auth login handler")

	foundLogin := false
	for _, f := range report.FilesToRead {
		if f == "internal/auth/login.go" {
			foundLogin = true
		}
	}
	if !foundLogin {
		t.Errorf("expected login.go to be a candidate file, got %v", report.FilesToRead)
	}

	foundTest := false
	for _, f := range report.RequiredTests {
		if f == "internal/auth/login_test.go" {
			foundTest = true
		}
	}
	if !foundTest {
		t.Errorf("expected login_test.go in required tests when login.go is modified, got %v", report.RequiredTests)
	}
}

func TestScanner_Run_NoKeywordsYieldsNoCandidates(t *testing.T) {
	tmpDir := t.TempDir()
	scanner := NewScanner(tmpDir)
	report := scanner.Run(context.Background(), "task-2", "the for")
	if len(report.FilesToRead) != 0 {
		t.Errorf("expected no candidates for an all-stopword description, got %v", report.FilesToRead)
	}
}
