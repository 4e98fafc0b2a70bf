package main

import (
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "serialmirror" {
			t.Errorf("expected use 'serialmirror', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty short and long descriptions")
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has persistent flags", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name      string
			shorthand string
			defValue  string
		}{
			{"config", "c", ""},
			{"workdir", "w", "."},
			{"verbose", "v", "false"},
			{"json-log", "", "false"},
		}
		for _, tt := range tests {
			flag := cmd.PersistentFlags().Lookup(tt.name)
			if flag == nil {
				t.Errorf("expected %s flag", tt.name)
				continue
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("%s: expected shorthand %q, got %q", tt.name, tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("%s: expected default %q, got %q", tt.name, tt.defValue, flag.DefValue)
			}
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{
			"crawl": false, "format": false, "mirror": false, "status": false,
			"history": false, "init": false, "version": false,
		}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Name()]; ok {
				want[sub.Name()] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}

func TestCrawlFlags(t *testing.T) {
	t.Parallel()

	for _, cmdName := range []string{"crawl", "mirror"} {
		cmd, _, err := NewRootCmd().Find([]string{cmdName})
		if err != nil {
			t.Fatalf("find %s: %v", cmdName, err)
		}
		for _, name := range []string{
			"start", "resume-from", "force", "max-pages", "timeout",
			"delay-min", "delay-max", "retries", "proxy", "no-history",
		} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("%s: expected --%s flag", cmdName, name)
			}
		}
	}
}

func TestFormatFlags(t *testing.T) {
	t.Parallel()

	for _, cmdName := range []string{"format", "mirror"} {
		cmd, _, err := NewRootCmd().Find([]string{cmdName})
		if err != nil {
			t.Fatalf("find %s: %v", cmdName, err)
		}
		for _, name := range []string{"template", "stylesheet", "output", "title", "concurrency"} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("%s: expected --%s flag", cmdName, name)
			}
		}
	}
}
