package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileLogger_WritesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "focus.log")

	log, err := NewFileLogger(false, FileOptions{Path: path})
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	log.Info("ai_cache_hit")
	log.Debug("hidden_debug_line")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"ai_cache_hit"`) {
		t.Errorf("Expected info line in file, got %s", data)
	}
	if strings.Contains(string(data), "hidden_debug_line") {
		t.Error("Expected debug line to be filtered at info level")
	}
}

func TestNewFileLogger_EmptyPath(t *testing.T) {
	t.Parallel()
	log, err := NewFileLogger(true, FileOptions{})
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	if !log.Core().Enabled(-1) {
		t.Error("Expected debug level to be enabled")
	}
}
