// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - The interactive chat room (root command).

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/tutorchat/internal/config"
	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/metrics"
	"github.com/jeranaias/tutorchat/internal/render"
	"github.com/jeranaias/tutorchat/internal/router"
	"github.com/jeranaias/tutorchat/internal/session"
	"github.com/jeranaias/tutorchat/internal/storage"
	"github.com/jeranaias/tutorchat/internal/transport"
	"github.com/jeranaias/tutorchat/internal/ui/chat"
	"github.com/jeranaias/tutorchat/internal/ui/styles"
)

const welcomeNotice = "welcome to tutorchat, press F1 for keys"

func runChat(cmd *cobra.Command, g *globals) error {
	if err := RequiresTTY("open the chat room"); err != nil {
		return err
	}

	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return NewCommandError("chat", "load config", err)
	}
	log, err := newLogger(cfg, true)
	if err != nil {
		return NewCommandError("chat", "open log", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		go serveMetrics(ctx, cfg.Metrics.Listen, m, log)
	}

	local, err := openLocalStore(cfg, log, m)
	if err != nil {
		return NewCommandError("chat", "open storage", err)
	}
	defer local.Close()

	ident, err := newProvider(cfg).Identity(ctx)
	if err != nil {
		return NewCommandError("chat", "resolve identity", err)
	}
	log.Info("identity_resolved", "user_id", ident.UserID, "role", ident.Role.String())

	tr, err := transport.New(ctx, transportConfig(cfg), log, m)
	if err != nil {
		return NewCommandError("chat", "create transport", err)
	}

	ctrl := session.NewController(ident, local.history, local.flags, tr,
		session.Config{SendRate: cfg.Chat.SendRate, SendBurst: cfg.Chat.SendBurst},
		session.WithLogger(log))
	defer func() {
		if err := ctrl.Close(context.Background()); err != nil {
			log.Warn("session_close_failed", "error", err)
		}
	}()

	pipe := render.New(renderConfig(cfg), ident, render.WithLogger(log), render.WithMetrics(m))
	rt := router.New(ctrl, pipe, router.WithLogger(log), router.WithMetrics(m))

	opts := []chat.Option{chat.WithLogger(log)}
	if ch := local.watch(ctx, cfg.Storage.Watch, log); ch != nil {
		opts = append(opts, chat.WithStoreChanges(ch))
	}
	if firstRun(ctx, local.flags, log) {
		opts = append(opts, chat.WithNotice(welcomeNotice))
	}

	view := chat.New(ctrl, pipe, rt, tr.Inbound(), styles.NewTheme(themeName(ctx, cfg, local.flags)),
		chat.Config{BatchDelay: cfg.Chat.BatchDelay, SweepInterval: cfg.Chat.SweepInterval}, opts...)

	p := tea.NewProgram(view,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	final, err := p.Run()
	if err != nil {
		return NewCommandError("chat", "run", err)
	}
	if fm, ok := final.(chat.Model); ok && fm.Err() != nil {
		return NewCommandError("chat", "start session", fm.Err())
	}
	return nil
}

// themeName prefers a theme saved on this device over the configured one.
func themeName(ctx context.Context, cfg *config.Config, flags *storage.Flags) string {
	if saved, ok, err := flags.Get(ctx, storage.FlagTheme); err == nil && ok && saved != "" {
		return saved
	}
	return cfg.Chat.Theme
}

// firstRun reports whether the welcome notice has never been shown on this
// device, and records that it now has been.
func firstRun(ctx context.Context, flags *storage.Flags, log *logging.Logger) bool {
	if _, shown, err := flags.Get(ctx, storage.FlagModalShown); err != nil || shown {
		return false
	}
	if err := flags.Set(ctx, storage.FlagModalShown, "true"); err != nil {
		log.Warn("flag_write_failed", "flag", storage.FlagModalShown, "error", err)
	}
	return true
}

// newThemeCommand saves the chat theme for this device.
func newThemeCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [auto|dark|light]",
		Short:     "Save the chat color theme for this device",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{styles.ThemeAuto, styles.ThemeDark, styles.ThemeLight},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			switch name {
			case styles.ThemeAuto, styles.ThemeDark, styles.ThemeLight:
			default:
				return &UsageError{Message: fmt.Sprintf("unknown theme %q (want auto, dark or light)", name)}
			}

			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return NewCommandError("theme", "load config", err)
			}
			local, err := openLocalStore(cfg, logging.Nop(), nil)
			if err != nil {
				return NewCommandError("theme", "open storage", err)
			}
			defer local.Close()

			if err := local.flags.Set(cmd.Context(), storage.FlagTheme, name); err != nil {
				return NewCommandError("theme", "save", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Theme set to "+name))
			return nil
		},
	}
}
