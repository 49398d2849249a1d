package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kanban/internal/config"
	"kanban/internal/storage"
)

// isolate gives the command a private HOME and working directory.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	work := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"KANBAN_CONFIG", "KANBAN_HOME", "KANBAN_DB_PATH", "KANBAN_LISTEN", "KANBAN_REDIS_URL", "KANBAN_LANG", "KANBAN_LOG_LEVEL", "KANBAN_BASE_URL", "KANBAN_TIMEOUT_MS"} {
		t.Setenv(key, "")
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(work); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return work
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"board": false, "shell": false, "serve": false, "import": false, "init": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing subcommand %q", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Fatalf("missing --config flag")
	}
}

func TestInitCommandWritesScaffold(t *testing.T) {
	work := isolate(t)
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"init"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	path := filepath.Join(work, ".kanban", "config.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("scaffold missing: %v", err)
	}
	if !strings.Contains(out.String(), "config.json") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestImportCommand(t *testing.T) {
	work := isolate(t)
	seed := filepath.Join(work, "seed.json")
	body := `[
  {"id":"t1","title":"first","status":"todo","position":10000},
  {"id":"t2","title":"second","status":"done","position":10000}
]`
	if err := os.WriteFile(seed, []byte(body), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	dbPath := filepath.Join(work, "tasks.db")
	t.Setenv("KANBAN_DB_PATH", dbPath)

	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"import", seed})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out.String(), "imported 2 task(s)") {
		t.Fatalf("output = %q", out.String())
	}

	db, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	tasks, err := db.ListTasks(context.Background())
	if err != nil || len(tasks) != 2 {
		t.Fatalf("tasks = %+v, err = %v", tasks, err)
	}
}

func TestImportCommandRequiresFile(t *testing.T) {
	isolate(t)
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"import"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("expected an argument error")
	}
}

func TestApplyServeFlags(t *testing.T) {
	cfg := config.Default()
	cfg.Service.RedisURL = "redis://from-config:6379"
	applyServeFlags(&cfg, serveFlags{listen: " :9090 ", db: "/tmp/k.db"})
	if cfg.Service.Listen != ":9090" || cfg.Service.DBPath != "/tmp/k.db" {
		t.Fatalf("service = %+v", cfg.Service)
	}
	if cfg.Service.RedisURL != "redis://from-config:6379" {
		t.Fatalf("empty flag overrode redis url: %q", cfg.Service.RedisURL)
	}
}

func TestOpenRedisRejectsBadURL(t *testing.T) {
	if _, err := openRedis(context.Background(), "not a url"); err == nil {
		t.Fatalf("expected parse error")
	}
}
