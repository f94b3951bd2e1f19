// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jeranaias/tutorchat/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	logLevel   string
	jsonOutput bool
}

// loadConfig reads the config file named by --config, or ~/.tutorchat.
// A broken default config file is reported on stderr and defaults are used.
func (g *globals) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFromPath(g.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, err
		}
		if err != nil {
			cmd.PrintErrf("Warning: %v (using defaults)\n", err)
		}
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// NewRootCommand builds the command tree. The root command opens the chat
// room.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "tutorchat",
		Short: "Terminal chat room for tutors and students",
		Long: `tutorchat joins the shared tutoring chat room from a terminal.

Messages are kept on this device between sessions. When saved history is
found you are asked whether to load it into the room or start fresh.`,
		Version:       Version + " (commit: " + GitCommit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional; only a malformed one is an error.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return NewCommandError(cmd.Name(), "read .env", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, g)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "config file path (default is ~/.tutorchat/config.toml)")
	pf.StringVar(&g.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	pf.BoolVar(&g.jsonOutput, "json", false, "machine-readable output where supported")

	root.AddCommand(
		newRelayCommand(g),
		newHistoryCommand(g),
		newConfigCommand(g),
		newThemeCommand(g),
		newVersionCommand(g),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	jsonMode, _ := root.PersistentFlags().GetBool("json")
	DisplayError(os.Stderr, err, jsonMode)
	return ExitCode(err)
}
