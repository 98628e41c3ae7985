package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetState() {
	CloseAll()
	loggers = make(map[Category]*Logger)
	logsDir = ""
	workspace = ""
	configLoaded = false
	config = loggingConfig{}
}

func TestAllCategoriesLog(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".forge")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configContent := `{
		"logging": {
			"level": "debug",
			"debug_mode": true
		}
	}`
	if err := os.WriteFile(filepath.Join(configDir, "config.json"), []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("failed to initialize logging: %v", err)
	}
	if !IsDebugMode() {
		t.Fatal("expected debug mode to be enabled")
	}

	categories := []Category{
		CategoryBoot, CategoryGraph, CategoryScheduler, CategoryToolchain,
		CategoryDiagnostic, CategoryWatch, CategoryScope, CategoryScript, CategoryCLI,
	}
	for _, cat := range categories {
		if !isCategoryEnabled(cat) {
			t.Errorf("category %s should be enabled", cat)
		}
		logger := Get(cat)
		logger.Info("info message for %s", cat)
		logger.Debug("debug message for %s", cat)
		logger.Warn("warn message for %s", cat)
		logger.Error("error message for %s", cat)
	}

	Graph("convenience graph log")
	Scheduler("convenience scheduler log")
	Toolchain("convenience toolchain log")
	Watch("convenience watch log")

	CloseAll()

	logsPath := filepath.Join(tempDir, ".forge", "logs")
	entries, err := os.ReadDir(logsPath)
	if err != nil {
		t.Fatalf("failed to read logs dir: %v", err)
	}

	for _, cat := range categories {
		found := false
		for _, entry := range entries {
			if strings.Contains(entry.Name(), string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(logsPath, entry.Name()))
				if err != nil {
					t.Errorf("failed to read log file for %s: %v", cat, err)
					continue
				}
				if len(content) == 0 {
					t.Errorf("log file for %s is empty", cat)
				}
				break
			}
		}
		if !found {
			t.Errorf("no log file found for category: %s", cat)
		}
	}
}

func TestDebugModeDisabled(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_disabled")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".forge")
	os.MkdirAll(configDir, 0755)
	configContent := `{"logging": {"level": "debug", "debug_mode": false}}`
	os.WriteFile(filepath.Join(configDir, "config.json"), []byte(configContent), 0644)

	resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("failed to initialize logging: %v", err)
	}
	if IsDebugMode() {
		t.Fatal("expected debug mode to be disabled")
	}

	if isCategoryEnabled(CategoryBoot) {
		t.Error("boot should be disabled when debug_mode=false")
	}

	Get(CategoryBoot).Info("this should not be logged")
	CloseAll()

	logsPath := filepath.Join(tempDir, ".forge", "logs")
	if entries, err := os.ReadDir(logsPath); err == nil && len(entries) > 0 {
		t.Errorf("expected no log files in production mode, found %d", len(entries))
	}
}

func TestCategoryToggle(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test_category")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configDir := filepath.Join(tempDir, ".forge")
	os.MkdirAll(configDir, 0755)
	configContent := `{
		"logging": {
			"level": "debug",
			"debug_mode": true,
			"categories": {
				"boot": true,
				"scope": false
			}
		}
	}`
	os.WriteFile(filepath.Join(configDir, "config.json"), []byte(configContent), 0644)

	resetState()
	if err := Initialize(tempDir); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}

	if !isCategoryEnabled(CategoryBoot) {
		t.Error("boot should be enabled")
	}
	if isCategoryEnabled(CategoryScope) {
		t.Error("scope should be disabled")
	}
	if !isCategoryEnabled(CategoryGraph) {
		t.Error("graph (not in config) should default to enabled")
	}
}
