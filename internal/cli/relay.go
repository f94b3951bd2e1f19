// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// relay.go - `tutorchat relay`, the server side of the chat room.

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tutorchat/internal/config"
	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/metrics"
	"github.com/jeranaias/tutorchat/internal/relay"
)

type relayOptions struct {
	listen  string
	backend string
}

func newRelayCommand(g *globals) *cobra.Command {
	opts := &relayOptions{}
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the chat relay server",
		Long: `Run the relay that tutorchat clients connect to over WebSocket.

The relay keeps the room's recent history and broadcasts every event to the
connected peers. With --backend redis several relays share one history and
fan out through redis pub/sub.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRelay(cmd, g, opts)
		},
	}
	cmd.Flags().StringVar(&opts.listen, "listen", "", "listen address (overrides relay.listen)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "history and bus backend: memory or redis (overrides relay.backend)")
	return cmd
}

func runRelay(cmd *cobra.Command, g *globals, opts *relayOptions) error {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return NewCommandError("relay", "load config", err)
	}
	if opts.listen != "" {
		cfg.Relay.Listen = opts.listen
	}
	if opts.backend != "" {
		cfg.Relay.Backend = opts.backend
	}

	log, err := newLogger(cfg, false)
	if err != nil {
		return NewCommandError("relay", "open log", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	hist, bus, release, err := relayBackend(ctx, cfg, log)
	if err != nil {
		return NewCommandError("relay", "open backend", err)
	}
	defer release()

	hub := relay.NewHub(hist, bus, relay.WithLogger(log), relay.WithMetrics(m))
	if err := hub.Start(ctx); err != nil {
		return NewCommandError("relay", "start hub", err)
	}

	relay.Version = Version
	srv := relay.NewServer(hub, relay.ServerConfig{
		Listen:         cfg.Relay.Listen,
		AllowedOrigins: cfg.Relay.AllowedOrigins,
	}, log, m)

	fmt.Fprintf(cmd.ErrOrStderr(), "%s listening on %s (%s backend)\n",
		TitleStyle.Render("tutorchat relay"), cfg.Relay.Listen, cfg.Relay.Backend)
	if err := srv.Run(ctx); err != nil {
		return NewCommandError("relay", "serve", err)
	}
	return nil
}

// relayBackend opens the history and bus named by relay.backend. release
// frees shared connections.
func relayBackend(ctx context.Context, cfg *config.Config, log *logging.Logger) (relay.History, relay.Bus, func(), error) {
	switch strings.ToLower(cfg.Relay.Backend) {
	case "", "memory":
		return relay.NewMemoryHistory(cfg.Relay.Retention), relay.NewMemoryBus(), func() {}, nil
	case "redis":
		rdb, err := relay.NewRedisClient(ctx, redisOptions(cfg))
		if err != nil {
			return nil, nil, nil, err
		}
		hist := relay.NewRedisHistory(rdb, cfg.Redis.HistoryKey, cfg.Relay.Retention, log)
		bus := relay.NewRedisBus(rdb, cfg.Redis.Channel, log)
		return hist, bus, func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, nil, &UsageError{Message: fmt.Sprintf("unknown relay backend %q", cfg.Relay.Backend)}
	}
}
