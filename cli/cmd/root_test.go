package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chronos-ai/substrate/config"
	"github.com/chronos-ai/substrate/core"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	old := os.Args
	os.Args = args
	t.Cleanup(func() { os.Args = old })
}

func TestPrintUsage(t *testing.T) {
	output := captureStdout(t, func() {
		if err := printUsage(); err != nil {
			t.Fatalf("printUsage: %v", err)
		}
	})
	for _, keyword := range []string{"sessionctl", "inspect", "replay", "repl", "serve", "version", "help"} {
		if !strings.Contains(output, keyword) {
			t.Errorf("printUsage() output missing keyword %q", keyword)
		}
	}
}

func TestExecuteNoArgs(t *testing.T) {
	withArgs(t, "sessionctl")
	output := captureStdout(t, func() {
		if err := Execute(); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
	})
	if !strings.Contains(output, "Usage") {
		t.Errorf("no-args output missing 'Usage': %q", output)
	}
}

func TestExecuteVersion(t *testing.T) {
	withArgs(t, "sessionctl", "version")
	output := captureStdout(t, func() {
		if err := Execute(); err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
	})
	if !strings.Contains(output, "sessionctl v") {
		t.Errorf("version output missing version string: %q", output)
	}
}

func TestExecuteHelp(t *testing.T) {
	for _, arg := range []string{"help", "--help", "-h"} {
		t.Run(arg, func(t *testing.T) {
			withArgs(t, "sessionctl", arg)
			output := captureStdout(t, func() {
				if err := Execute(); err != nil {
					t.Fatalf("Execute() error: %v", err)
				}
			})
			if !strings.Contains(output, "sessionctl") {
				t.Errorf("help output missing 'sessionctl': %q", output)
			}
		})
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	withArgs(t, "sessionctl", "nonexistent")
	err := Execute()
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected 'unknown command' in error, got: %v", err)
	}
}

func TestFlagValue(t *testing.T) {
	withArgs(t, "sessionctl", "inspect", "--config", "a.yaml", "path")
	if got := flagValue("--config"); got != "a.yaml" {
		t.Errorf("flagValue(--config) = %q, want a.yaml", got)
	}
	if got := flagValue("--missing"); got != "" {
		t.Errorf("flagValue(--missing) = %q, want empty", got)
	}
}

func TestLoadConfigFallsBackToDefault(t *testing.T) {
	withArgs(t, "sessionctl", "new")
	t.Setenv("SUBSTRATE_CONFIG", "")
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.PersistencePath != config.DefaultPersistencePath {
		t.Errorf("PersistencePath = %q, want %q", cfg.PersistencePath, config.DefaultPersistencePath)
	}
}

func TestBuildDispatcherDefaultsToBothBuiltins(t *testing.T) {
	d := buildDispatcher(&config.SessionConfig{})
	caps := d.GetCapabilities()
	want := map[string]bool{"reverse": false, "uppercase": false}
	for _, c := range caps {
		if _, ok := want[c]; ok {
			want[c] = true
		}
	}
	for c, found := range want {
		if !found {
			t.Errorf("expected capability %q to be registered by default, got %v", c, caps)
		}
	}
}

func TestBuildDispatcherHonorsConfiguredAgents(t *testing.T) {
	d := buildDispatcher(&config.SessionConfig{Agents: []config.AgentConfig{{Name: "reverse-agent"}}})
	caps := d.GetCapabilities()
	if len(caps) != 1 || caps[0] != "reverse" {
		t.Errorf("capabilities = %v, want [reverse]", caps)
	}
}

func TestRunNewAndInspect(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "session.db")

	withArgs(t, "sessionctl", "new", "--out", out)
	output := captureStdout(t, func() {
		if err := runNew(); err != nil {
			t.Fatalf("runNew: %v", err)
		}
	})
	if !strings.Contains(output, "created session") {
		t.Errorf("runNew output missing 'created session': %q", output)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected session file at %s: %v", out, err)
	}

	withArgs(t, "sessionctl", "inspect", out)
	output = captureStdout(t, func() {
		if err := runInspect(); err != nil {
			t.Fatalf("runInspect: %v", err)
		}
	})
	if !strings.Contains(output, "session:") {
		t.Errorf("runInspect output missing 'session:': %q", output)
	}
}

func TestRunInspectMissingPath(t *testing.T) {
	withArgs(t, "sessionctl", "inspect")
	if err := runInspect(); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestRunReplayShowsTrajectory(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "session.db")

	withArgs(t, "sessionctl", "new", "--out", out)
	captureStdout(t, func() {
		if err := runNew(); err != nil {
			t.Fatalf("runNew: %v", err)
		}
	})

	withArgs(t, "sessionctl", "replay", out)
	output := captureStdout(t, func() {
		if err := runReplay(); err != nil {
			t.Fatalf("runReplay: %v", err)
		}
	})
	if !strings.Contains(output, string(core.EntrySessionCreated)) {
		t.Errorf("runReplay output missing session_created entry: %q", output)
	}
}
