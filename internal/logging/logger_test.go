package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetState() {
	CloseAll()
	stateMu.Lock()
	logsDir = ""
	enabled = false
	logLevel = LevelInfo
	stateMu.Unlock()
}

// TestCategoriesCreateFiles verifies each category writes to its own file.
func TestCategoriesCreateFiles(t *testing.T) {
	tempDir := t.TempDir()
	resetState()
	defer resetState()

	if err := Initialize(tempDir, true, "debug"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Planner("plan created with %d steps", 3)
	Executor("step %d dispatched", 1)
	Navigation("rate limit acquired for %s", "example.com")
	Knowledge("cache hit for %q", "test query")
	Report("report generated")
	LLM("completion requested")
	CloseAll()

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	want := []string{"boot", "planner", "executor", "navigation", "knowledge", "report", "llm"}
	for _, cat := range want {
		found := false
		for _, e := range entries {
			if strings.Contains(e.Name(), "_"+cat+".log") {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected log file for category %q", cat)
		}
	}
}

// TestDisabledIsNoOp verifies nothing is written when logging is off.
func TestDisabledIsNoOp(t *testing.T) {
	tempDir := t.TempDir()
	resetState()
	defer resetState()

	if err := Initialize(tempDir, false, "info"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	Planner("should not appear")
	Executor("should not appear")
	CloseAll()

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no log files when disabled, found %d", len(entries))
	}
}

// TestLevelFiltering verifies debug messages are dropped at info level.
func TestLevelFiltering(t *testing.T) {
	tempDir := t.TempDir()
	resetState()
	defer resetState()

	if err := Initialize(tempDir, true, "info"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	PlannerDebug("debug line should be dropped")
	Planner("info line should appear")
	CloseAll()

	entries, _ := os.ReadDir(tempDir)
	var content string
	for _, e := range entries {
		if strings.Contains(e.Name(), "_planner.log") {
			data, err := os.ReadFile(filepath.Join(tempDir, e.Name()))
			if err != nil {
				t.Fatalf("ReadFile failed: %v", err)
			}
			content = string(data)
		}
	}
	if strings.Contains(content, "debug line") {
		t.Error("debug message should have been filtered at info level")
	}
	if !strings.Contains(content, "info line") {
		t.Error("info message missing from log")
	}
}

// TestErrorf logs and returns the same error.
func TestErrorf(t *testing.T) {
	tempDir := t.TempDir()
	resetState()
	defer resetState()

	if err := Initialize(tempDir, true, "error"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	err := Errorf("source %s failed: %d", "arxiv", 503)
	if err == nil {
		t.Fatal("expected non-nil error")
	}
	if err.Error() != "source arxiv failed: 503" {
		t.Errorf("unexpected error text: %q", err.Error())
	}
}

// TestTimer returns a positive elapsed duration.
func TestTimer(t *testing.T) {
	resetState()
	timer := StartTimer(CategoryExecutor, "test op")
	if d := timer.Stop(); d < 0 {
		t.Errorf("expected non-negative duration, got %v", d)
	}
}
