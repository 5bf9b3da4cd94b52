// Package repl provides an interactive loop for driving a session
// directly from a terminal: dispatch capability calls, inspect state and
// trajectory, and list artifacts, without going through the HTTP control
// plane.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chronos-ai/substrate/core"
	"github.com/chronos-ai/substrate/session"
)

// REPL is the interactive command loop over a single Session/Dispatcher pair.
type REPL struct {
	sess       *session.Session
	dispatcher *session.Dispatcher
	commands   map[string]Command
	ctx        context.Context
	cancel     context.CancelFunc
}

// Command represents a slash command.
type Command struct {
	Name        string
	Description string
	Handler     func(args string) error
}

// New creates a REPL bound to sess and dispatcher, with built-in commands
// registered.
func New(sess *session.Session, dispatcher *session.Dispatcher) *REPL {
	ctx, cancel := context.WithCancel(context.Background())
	r := &REPL{
		sess:       sess,
		dispatcher: dispatcher,
		commands:   make(map[string]Command),
		ctx:        ctx,
		cancel:     cancel,
	}
	r.registerBuiltins()
	return r
}

// Register adds a slash command.
func (r *REPL) Register(c Command) {
	r.commands[c.Name] = c
}

func (r *REPL) registerBuiltins() {
	r.Register(Command{
		Name: "/help", Description: "Show available commands",
		Handler: func(_ string) error {
			fmt.Println("Available commands:")
			for _, c := range r.commands {
				fmt.Printf("  %-15s %s\n", c.Name, c.Description)
			}
			fmt.Println()
			fmt.Println("  <capability> key=value [key=value ...]   Dispatch a capability call")
			return nil
		},
	})
	r.Register(Command{
		Name: "/capabilities", Description: "List registered capabilities",
		Handler: func(_ string) error {
			for _, c := range r.dispatcher.GetCapabilities() {
				fmt.Println("  " + c)
			}
			return nil
		},
	})
	r.Register(Command{
		Name: "/state", Description: "Show current session state",
		Handler: func(_ string) error {
			for _, k := range r.sess.Keys() {
				fmt.Printf("  %s = %v\n", k, r.sess.Get(k, nil))
			}
			return nil
		},
	})
	r.Register(Command{
		Name: "/trajectory", Description: "Show the trajectory so far",
		Handler: func(_ string) error {
			for _, e := range r.sess.GetTrajectory(session.TrajectoryFilter{}) {
				fmt.Printf("  [%d] %s agent=%s %v\n", e.SeqNum, e.EntryType, e.AgentID, e.Content)
			}
			return nil
		},
	})
	r.Register(Command{
		Name: "/artifacts", Description: "List stored artifacts",
		Handler: func(_ string) error {
			for _, name := range r.sess.ListArtifacts() {
				fmt.Println("  " + name)
			}
			return nil
		},
	})
	r.Register(Command{
		Name: "/quit", Description: "Exit the REPL",
		Handler: func(_ string) error {
			r.cancel()
			return nil
		},
	})
}

// Start begins the interactive loop, reading lines from stdin until /quit
// or EOF.
func (r *REPL) Start() error {
	fmt.Printf("sessionctl repl [session %s] — type /help for commands, /quit to exit\n", r.sess.SessionID())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			parts := strings.SplitN(line, " ", 2)
			args := ""
			if len(parts) > 1 {
				args = parts[1]
			}
			if cmd, ok := r.commands[parts[0]]; ok {
				if err := cmd.Handler(args); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				}
			} else {
				fmt.Fprintf(os.Stderr, "Unknown command: %s (type /help for list)\n", parts[0])
			}
		} else {
			r.dispatchLine(line)
		}

		select {
		case <-r.ctx.Done():
			fmt.Println("Goodbye.")
			return nil
		default:
		}
	}
	return scanner.Err()
}

// dispatchLine parses "<capability> key=value key2=value2" and dispatches it.
func (r *REPL) dispatchLine(line string) {
	fields := strings.Fields(line)
	capability := fields[0]
	params := make(map[string]any)
	for _, kv := range fields[1:] {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			fmt.Fprintf(os.Stderr, "ignoring malformed param %q (want key=value)\n", kv)
			continue
		}
		params[parts[0]] = parts[1]
	}

	result := r.dispatcher.DispatchSingle(r.ctx, r.sess, core.CapabilityCall{Capability: capability, Params: params})
	if !result.Success {
		fmt.Fprintf(os.Stderr, "dispatch failed: %s\n", result.Error)
		return
	}
	fmt.Printf("ok: %v\n", result.Result)
}
