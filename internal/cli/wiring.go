// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/jeranaias/tutorchat/internal/config"
	"github.com/jeranaias/tutorchat/internal/history"
	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/metrics"
	"github.com/jeranaias/tutorchat/internal/model"
	"github.com/jeranaias/tutorchat/internal/relay"
	"github.com/jeranaias/tutorchat/internal/render"
	"github.com/jeranaias/tutorchat/internal/session"
	"github.com/jeranaias/tutorchat/internal/storage"
	"github.com/jeranaias/tutorchat/internal/transport"
)

// =============================================================================
// LOGGING
// =============================================================================

// newLogger builds the logger for cfg. The chat room owns the terminal, so
// when toFile is set and no file is configured the log goes to
// ~/.tutorchat/logs/tutorchat.log.
func newLogger(cfg *config.Config, toFile bool) (*logging.Logger, error) {
	file := cfg.Log.File
	if toFile && file == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return logging.Nop(), nil
		}
		file = filepath.Join(dir, "logs", "tutorchat.log")
	}
	return logging.New(logging.Options{
		Mode:     cfg.Log.Mode,
		Level:    cfg.Log.Level,
		File:     file,
		HashSalt: cfg.Identity.UserID,
	})
}

// =============================================================================
// STORAGE
// =============================================================================

// localStore bundles the storage backend with the history store and flags
// built on it.
type localStore struct {
	kv      storage.KV
	history *history.Store
	flags   *storage.Flags
}

func openLocalStore(cfg *config.Config, log *logging.Logger, m *metrics.Metrics) (*localStore, error) {
	kv, err := storage.Open(storage.Options{Backend: cfg.Storage.Backend, Dir: cfg.Storage.Dir})
	if err != nil {
		return nil, err
	}
	return &localStore{
		kv: kv,
		history: history.NewStore(kv,
			history.WithLimit(cfg.Storage.HistoryLimit),
			history.WithLogger(log),
			history.WithMetrics(m)),
		flags: storage.NewFlags(kv),
	}, nil
}

func (s *localStore) Close() error { return s.kv.Close() }

// watch returns the backend's external change feed when enabled and
// supported, nil otherwise.
func (s *localStore) watch(ctx context.Context, enabled bool, log *logging.Logger) <-chan string {
	if !enabled {
		return nil
	}
	w, ok := s.kv.(storage.Watcher)
	if !ok {
		return nil
	}
	ch, err := w.Watch(ctx)
	if err != nil {
		log.Warn("store_watch_unavailable", "error", err)
		return nil
	}
	return ch
}

// =============================================================================
// SESSION PIECES
// =============================================================================

func newProvider(cfg *config.Config) session.Provider {
	id := cfg.Identity
	if id.ProfileURL != "" {
		return &session.HTTPProvider{
			BaseURL: id.ProfileURL,
			UserID:  id.UserID,
			Token:   id.Token,
			Client:  &http.Client{Timeout: 10 * time.Second},
		}
	}
	return &session.StaticProvider{Ident: model.Identity{
		Username: id.Username,
		Role:     model.Type(id.Role),
		UserID:   id.UserID,
	}}
}

func transportConfig(cfg *config.Config) transport.Config {
	return transport.Config{
		Kind:              cfg.Transport.Kind,
		URL:               cfg.Transport.URL,
		ReconnectAttempts: cfg.Transport.ReconnectAttempts,
		ReconnectDelay:    cfg.Transport.ReconnectDelay,
		DialTimeout:       cfg.Transport.DialTimeout,
		Redis:             redisOptions(cfg),
		Channel:           cfg.Redis.Channel,
		HistoryKey:        cfg.Redis.HistoryKey,
		Retention:         cfg.Relay.Retention,
	}
}

func redisOptions(cfg *config.Config) relay.RedisOptions {
	return relay.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func renderConfig(cfg *config.Config) render.Config {
	return render.Config{
		BatchSize:  cfg.Chat.BatchSize,
		WindowSize: cfg.Chat.WindowSize,
		NearBottom: cfg.Chat.NearBottom,
	}
}

// =============================================================================
// METRICS
// =============================================================================

// serveMetrics exposes m on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics_listen", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("metrics_server_failed", "error", err)
	}
}
