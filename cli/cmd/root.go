// Package cmd provides the sessionctl CLI command tree.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/chronos-ai/substrate/cli/repl"
	"github.com/chronos-ai/substrate/config"
	"github.com/chronos-ai/substrate/controlplane"
	"github.com/chronos-ai/substrate/session"
	"github.com/chronos-ai/substrate/session/builtin"
	"github.com/chronos-ai/substrate/storage/sqlite"
)

// Execute runs the root CLI command.
func Execute() error {
	if len(os.Args) < 2 {
		return printUsage()
	}
	switch os.Args[1] {
	case "new":
		return runNew()
	case "inspect":
		return runInspect()
	case "replay":
		return runReplay()
	case "repl":
		return runREPL()
	case "serve":
		return runServe()
	case "version":
		fmt.Println("sessionctl v0.1.0")
		return nil
	case "help", "--help", "-h":
		return printUsage()
	default:
		return fmt.Errorf("unknown command: %s\nRun 'sessionctl help' for usage.", os.Args[1])
	}
}

func printUsage() error {
	fmt.Println(`sessionctl — Session Substrate CLI

Usage:
  sessionctl <command> [options]

Commands:
  new [--config path] [--out path]   Create a new session and persist it
  inspect <path>                     Print a session's state and trajectory
  replay <path>                      Print a session's trajectory entries, in order
  repl [--config path]               Interactive dispatch loop over a session
  serve [--config path]              Start the HTTP control plane
  version                            Print version
  help                               Show this help

Environment:
  SUBSTRATE_CONFIG   Path to a session YAML config file`)
	return nil
}

func loadConfig() (*config.SessionConfig, error) {
	path := flagValue("--config")
	if path == "" {
		path = os.Getenv("SUBSTRATE_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		if path == "" {
			return &config.SessionConfig{PersistencePath: config.DefaultPersistencePath}, nil
		}
		return nil, err
	}
	return cfg, nil
}

// flagValue returns the value following name in os.Args, or "".
func flagValue(name string) string {
	for i, a := range os.Args {
		if a == name && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
	}
	return ""
}

func buildSession(cfg *config.SessionConfig) *session.Session {
	return session.New(session.Config{SessionID: cfg.SessionID, MaxArtifactSize: cfg.MaxArtifactSize})
}

func buildDispatcher(cfg *config.SessionConfig) *session.Dispatcher {
	d := session.NewDispatcher(nil)
	if len(cfg.Agents) == 0 {
		d.Register(builtin.NewReverseAgent())
		d.Register(builtin.NewUppercaseAgent())
		return d
	}
	for _, a := range cfg.Agents {
		switch a.Name {
		case "reverse-agent":
			d.Register(builtin.NewReverseAgent())
		case "uppercase-agent":
			d.Register(builtin.NewUppercaseAgent())
		default:
			fmt.Fprintf(os.Stderr, "unknown built-in agent %q, skipping\n", a.Name)
		}
	}
	return d
}

func runNew() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess := buildSession(cfg)

	out := flagValue("--out")
	if out == "" {
		out = cfg.PersistencePath
	}

	store := sqlite.New()
	if serr := store.Save(context.Background(), sess, out); serr != nil {
		return fmt.Errorf("save session: %w", serr)
	}
	fmt.Printf("created session %s at %s\n", sess.SessionID(), out)
	return nil
}

func openSession(path string) (*session.Session, error) {
	store := sqlite.New()
	sess, serr := store.Load(context.Background(), path)
	if serr != nil {
		return nil, fmt.Errorf("load session: %w", serr)
	}
	return sess, nil
}

func runInspect() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: sessionctl inspect <path>")
	}
	sess, err := openSession(os.Args[2])
	if err != nil {
		return err
	}

	fmt.Printf("session:        %s\n", sess.SessionID())
	fmt.Printf("schema version: %d\n", sess.SchemaVersion())
	fmt.Printf("state version:  %d\n", sess.StateVersion())
	fmt.Println("state:")
	for _, k := range sess.Keys() {
		fmt.Printf("  %s = %v\n", k, sess.Get(k, nil))
	}
	fmt.Println("artifacts:")
	for _, name := range sess.ListArtifacts() {
		fmt.Printf("  %s\n", name)
	}
	fmt.Printf("trajectory entries: %d\n", len(sess.GetTrajectory(session.TrajectoryFilter{})))
	return nil
}

func runReplay() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: sessionctl replay <path>")
	}
	sess, err := openSession(os.Args[2])
	if err != nil {
		return err
	}
	for _, e := range sess.GetTrajectory(session.TrajectoryFilter{}) {
		fmt.Printf("[%d] %s  %s  agent=%s  %v\n", e.SeqNum, e.Timestamp.Format("2006-01-02T15:04:05Z07:00"), e.EntryType, e.AgentID, e.Content)
	}
	return nil
}

func runREPL() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess := buildSession(cfg)
	dispatcher := buildDispatcher(cfg)
	return repl.New(sess, dispatcher).Start()
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess := buildSession(cfg)
	dispatcher := buildDispatcher(cfg)

	addr := cfg.ListenAddr
	if v := flagValue("--addr"); v != "" {
		addr = v
	}
	if addr == "" {
		addr = ":8420"
	}

	srv := controlplane.New(addr, sess, dispatcher, nil)
	return srv.ListenAndServe()
}
