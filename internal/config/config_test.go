package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setupEnv(t *testing.T) {
	t.Helper()
	chdir(t, t.TempDir())
	t.Setenv("MODEL", "openai:gpt-4o")
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("MODEL_PROVIDER", "openai")
}

func TestLoad_Defaults(t *testing.T) {
	setupEnv(t)
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Model != "openai:gpt-4o" {
		t.Errorf("unexpected model: %s", cfg.Model)
	}
	if cfg.DataDir != "data.xlsx" {
		t.Errorf("expected default DATA_DIR data.xlsx, got %s", cfg.DataDir)
	}
	if cfg.ListenAddr != ":8501" {
		t.Errorf("unexpected listen addr: %s", cfg.ListenAddr)
	}
	if cfg.ModelTimeout != 0 {
		t.Errorf("expected no model timeout by default, got %s", cfg.ModelTimeout)
	}
	if cfg.SessionIdle != 120*time.Minute {
		t.Errorf("unexpected session idle: %s", cfg.SessionIdle)
	}
	if cfg.DBPath != "" {
		t.Errorf("expected turn log disabled by default, got %s", cfg.DBPath)
	}
	if cfg.EnvFile != "" {
		t.Errorf("expected no env file, got %s", cfg.EnvFile)
	}
}

func TestLoad_RequiresModel(t *testing.T) {
	setupEnv(t)
	t.Setenv("MODEL", "")
	_, err := Load(New())
	if err == nil {
		t.Fatal("expected missing MODEL error")
	}
	if !strings.Contains(err.Error(), "MODEL") {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestLoad_RequiresAPIKeyForOpenAI(t *testing.T) {
	setupEnv(t)
	t.Setenv("OPENAI_API_KEY", "")
	_, err := Load(New())
	if err == nil {
		t.Fatal("expected missing key error")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestLoad_DummyProviderNeedsNoKey(t *testing.T) {
	setupEnv(t)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MODEL_PROVIDER", "Dummy")
	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.ModelProvider != "dummy" {
		t.Fatalf("expected normalized provider, got %s", cfg.ModelProvider)
	}
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	setupEnv(t)
	t.Setenv("MODEL_PROVIDER", "akasha")
	_, err := Load(New())
	if err == nil || !strings.Contains(err.Error(), "MODEL_PROVIDER") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestLoad_ValidatesTimeout(t *testing.T) {
	setupEnv(t)
	t.Setenv("MODEL_TIMEOUT_SECONDS", "-1")
	_, err := Load(New())
	if err == nil || !strings.Contains(err.Error(), "MODEL_TIMEOUT_SECONDS") {
		t.Fatalf("expected timeout error, got %v", err)
	}

	t.Setenv("MODEL_TIMEOUT_SECONDS", "90")
	cfg, err := Load(New())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ModelTimeout != 90*time.Second {
		t.Fatalf("unexpected timeout: %s", cfg.ModelTimeout)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	setupEnv(t)
	t.Setenv("MODEL", "")
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(wd, ".env")
	content := "MODEL=file-model\nDATA_DIR=kb/data.xlsx\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Model != "file-model" {
		t.Errorf("expected MODEL from .env, got %q", cfg.Model)
	}
	if cfg.DataDir != "kb/data.xlsx" {
		t.Errorf("expected DATA_DIR from .env, got %q", cfg.DataDir)
	}
	if cfg.EnvFile != path {
		t.Errorf("expected env file %s, got %s", path, cfg.EnvFile)
	}
}

func TestLoad_EnvironmentBeatsDotEnv(t *testing.T) {
	setupEnv(t)
	wd, _ := os.Getwd()
	if err := os.WriteFile(filepath.Join(wd, ".env"), []byte("MODEL=file-model\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(New())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "openai:gpt-4o" {
		t.Fatalf("expected environment to win, got %q", cfg.Model)
	}
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir for Go < 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
