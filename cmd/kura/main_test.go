package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kura/internal/config"
)

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"kura"}, "kura"},
		{"multiple words", []string{"quarterly", "revenue"}, "quarterly revenue"},
		{"single quoted phrase", []string{"quarterly revenue"}, "quarterly revenue"},
		{"surrounding space", []string{"  revenue ", ""}, "revenue"},
		{"empty", []string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSearchQuery(tt.args); got != tt.expected {
				t.Errorf("buildSearchQuery(%q) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func TestLoadConfig_prefersCwdConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, defaultConfigName)
	content := `
debug: true
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	// t.TempDir may sit behind a symlink (macOS /var), so compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from the cwd config")
	}
	if filepath.Base(cfg.Storage.DatabasePath) != "test.db" || !filepath.IsAbs(cfg.Storage.DatabasePath) {
		t.Errorf("database path = %s, want absolute test.db", cfg.Storage.DatabasePath)
	}
}

func TestLoadConfig_defaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, resolved, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved path = %q, want empty", resolved)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Query.DefaultResults != 5 {
		t.Errorf("unexpected defaults: %+v %+v", cfg.Storage, cfg.Query)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "custom.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("addr = %s", cfg.Server.Addr())
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected an error for a missing explicit config")
	}
}

func TestApplyStorageFlags(t *testing.T) {
	cfg := config.Default()
	applyStorageFlags(cfg, "", "")
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.DatabasePath != "./data/kura.db" {
		t.Errorf("empty flags changed storage: %+v", cfg.Storage)
	}

	applyStorageFlags(cfg, "", "/tmp/other.db")
	if cfg.Storage.DatabasePath != "/tmp/other.db" {
		t.Errorf("database path = %s", cfg.Storage.DatabasePath)
	}

	applyStorageFlags(cfg, "postgres", "postgres://localhost/kura")
	if cfg.Storage.Backend != "postgres" || cfg.Storage.PostgresDSN != "postgres://localhost/kura" {
		t.Errorf("postgres flags not applied: %+v", cfg.Storage)
	}
	if cfg.Storage.DatabasePath != "/tmp/other.db" {
		t.Error("dsn must not overwrite the sqlite path")
	}
}

func TestRequireDatabase(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.db")
	err := requireDatabase(config.StorageConfig{Backend: "sqlite", DatabasePath: missing})
	if err == nil || !strings.Contains(err.Error(), "database file does not exist") {
		t.Errorf("err = %v", err)
	}

	present := filepath.Join(dir, "present.db")
	if err := os.WriteFile(present, nil, 0600); err != nil {
		t.Fatal(err)
	}
	if err := requireDatabase(config.StorageConfig{Backend: "sqlite", DatabasePath: present}); err != nil {
		t.Error(err)
	}
	if err := requireDatabase(config.StorageConfig{Backend: "memory"}); err != nil {
		t.Error(err)
	}
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	want := []string{"ingest", "embed", "search", "ask", "chat", "serve", "watch", "status", "documents", "delete", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
	for _, flag := range []string{"config", "debug", "backend", "database"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s missing", flag)
		}
	}
}

// execute runs the CLI in-process and returns everything written to stdout
// and stderr.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLI_IngestSearchDelete(t *testing.T) {
	chdir(t, t.TempDir())
	docs := t.TempDir()
	if err := os.WriteFile(filepath.Join(docs, "notes.txt"), []byte("The lighthouse keeper logs every passing ship."), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "image.bin"), []byte{0, 1, 2}, 0600); err != nil {
		t.Fatal(err)
	}
	db := filepath.Join(t.TempDir(), "kura.db")

	if _, err := execute(t, "--database", db, "search", "ships"); err == nil {
		t.Fatal("search against a missing database should fail")
	}

	out, err := execute(t, "--database", db, "ingest", "--no-progress", docs)
	if err != nil {
		t.Fatalf("ingest: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Files:      1") || !strings.Contains(out, "Embedded:   1 of 1 pending") {
		t.Errorf("unexpected ingest summary:\n%s", out)
	}

	out, err = execute(t, "--database", db, "ingest", "--no-progress", docs)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Skipped:    1 already stored") {
		t.Errorf("second ingest should skip the stored file:\n%s", out)
	}

	out, err = execute(t, "--database", db, "search", "--format", "json", "lighthouse", "keeper")
	if err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Query   string `json:"query"`
		Results []struct {
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode search output: %v\n%s", err, out)
	}
	if resp.Query != "lighthouse keeper" || len(resp.Results) != 1 || !strings.Contains(resp.Results[0].Content, "lighthouse") {
		t.Errorf("unexpected search response: %+v", resp)
	}

	out, err = execute(t, "--database", db, "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "documents:          1") || !strings.Contains(out, "pending_embeddings: 0") {
		t.Errorf("unexpected status:\n%s", out)
	}

	out, err = execute(t, "--database", db, "documents", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Documents []struct {
			ID string `json:"id"`
		} `json:"documents"`
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || len(list.Documents) != 1 {
		t.Fatalf("unexpected documents: %+v", list)
	}

	if _, err := execute(t, "--database", db, "delete", list.Documents[0].ID); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--database", db, "delete", filepath.Join(docs, "notes.txt")); err == nil {
		t.Error("deleting an already removed document should fail")
	}

	out, err = execute(t, "--database", db, "ingest", "--no-progress", "--force", "--skip-embed", docs)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Stored:     1") || strings.Contains(out, "Embedded:") {
		t.Errorf("unexpected forced ingest summary:\n%s", out)
	}
}

func TestCLI_Version(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "kura dev") {
		t.Errorf("version output = %q", out)
	}
}
