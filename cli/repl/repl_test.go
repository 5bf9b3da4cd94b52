package repl

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/chronos-ai/substrate/session"
	"github.com/chronos-ai/substrate/session/builtin"
)

func newTestREPL(t *testing.T) *REPL {
	t.Helper()
	sess := session.New(session.Config{})
	d := session.NewDispatcher(nil)
	if err := d.Register(builtin.NewReverseAgent()); err != nil {
		t.Fatalf("register reverse agent: %v", err)
	}
	return New(sess, d)
}

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

func TestNewRegistersBuiltinCommands(t *testing.T) {
	r := newTestREPL(t)
	for _, name := range []string{"/help", "/capabilities", "/state", "/trajectory", "/artifacts", "/quit"} {
		if _, ok := r.commands[name]; !ok {
			t.Errorf("expected command %q to be registered", name)
		}
	}
}

func TestRegisterAddsCustomCommand(t *testing.T) {
	r := newTestREPL(t)
	r.Register(Command{
		Name:        "/custom",
		Description: "a custom command",
		Handler:     func(_ string) error { return nil },
	})
	if _, ok := r.commands["/custom"]; !ok {
		t.Error("expected /custom to be registered")
	}
}

func TestSlashHelp(t *testing.T) {
	r := newTestREPL(t)
	output := captureStdout(t, func() {
		if err := r.commands["/help"].Handler(""); err != nil {
			t.Fatalf("/help error: %v", err)
		}
	})
	if !strings.Contains(output, "Available commands") {
		t.Errorf("/help output missing 'Available commands': %q", output)
	}
	if !strings.Contains(output, "/quit") {
		t.Errorf("/help output missing '/quit': %q", output)
	}
}

func TestSlashCapabilities(t *testing.T) {
	r := newTestREPL(t)
	output := captureStdout(t, func() {
		if err := r.commands["/capabilities"].Handler(""); err != nil {
			t.Fatalf("/capabilities error: %v", err)
		}
	})
	if !strings.Contains(output, "reverse") {
		t.Errorf("/capabilities output missing 'reverse': %q", output)
	}
}

func TestSlashState(t *testing.T) {
	r := newTestREPL(t)
	if _, err := r.sess.Set("tester", "greeting", "hi"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	output := captureStdout(t, func() {
		if err := r.commands["/state"].Handler(""); err != nil {
			t.Fatalf("/state error: %v", err)
		}
	})
	if !strings.Contains(output, "greeting = hi") {
		t.Errorf("/state output missing greeting: %q", output)
	}
}

func TestSlashArtifactsEmpty(t *testing.T) {
	r := newTestREPL(t)
	output := captureStdout(t, func() {
		if err := r.commands["/artifacts"].Handler(""); err != nil {
			t.Fatalf("/artifacts error: %v", err)
		}
	})
	if output != "" {
		t.Errorf("expected no artifacts output, got: %q", output)
	}
}

func TestSlashQuitCancelsContext(t *testing.T) {
	r := newTestREPL(t)
	if err := r.commands["/quit"].Handler(""); err != nil {
		t.Fatalf("/quit error: %v", err)
	}
	select {
	case <-r.ctx.Done():
	default:
		t.Error("expected context to be cancelled after /quit")
	}
}

func TestDispatchLineSuccess(t *testing.T) {
	r := newTestREPL(t)
	if _, err := r.sess.Set("tester", "word", "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	output := captureStdout(t, func() {
		r.dispatchLine("reverse key=word")
	})
	if !strings.Contains(output, "ok:") {
		t.Errorf("expected successful dispatch output, got: %q", output)
	}
	if got := r.sess.Get("word", nil); got != "cba" {
		t.Errorf("state[word] = %v, want cba", got)
	}
}

func TestDispatchLineUnknownCapability(t *testing.T) {
	r := newTestREPL(t)
	output := captureStdout(t, func() {
		r.dispatchLine("bogus key=word")
	})
	if strings.Contains(output, "ok:") {
		t.Errorf("expected dispatch failure, got success output: %q", output)
	}
}
