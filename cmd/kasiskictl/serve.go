package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"kasiski/internal/config"
	"kasiski/internal/kasiski"
	"kasiski/internal/server"
	"kasiski/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var noReload bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analyzer over HTTP",
		Long: `Serve the analyzer over HTTP under /api/v1. Analysis settings are
reloaded when the config file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if addr != "" {
				cfg = config.Merge(cfg, &config.Config{Server: config.ServerConfig{Addr: addr}})
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			srv, st, err := a.newServer(cfg)
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close()
			}

			if !noReload {
				loader, err := a.watchConfig(cmd.Context(), srv)
				if err != nil {
					a.logger.Warn("config hot reload disabled", "error", err)
				} else {
					defer loader.Close()
				}
			}

			return srv.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "do not watch the config file")
	return cmd
}

// newServer builds the HTTP service for cfg. The store is nil when history
// is disabled.
func (a *app) newServer(cfg *config.Config) (*server.Server, *store.Store, error) {
	analyzer, err := kasiski.FromConfig(cfg.Analysis, a.logger.Logger)
	if err != nil {
		return nil, nil, err
	}

	var st *store.Store
	if cfg.History.Enabled {
		if st, err = store.Open(cfg.History.Path); err != nil {
			return nil, nil, fmt.Errorf("open history: %w", err)
		}
	}

	if !a.verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	srv, err := server.New(server.Options{
		Config:   cfg.Server,
		Analyzer: analyzer,
		Store:    st,
		Logger:   a.logger,
		Version:  version,
	})
	if err != nil {
		if st != nil {
			st.Close()
		}
		return nil, nil, err
	}
	return srv, st, nil
}

// watchConfig swaps the server's analyzer whenever the analysis section of
// the config file changes.
func (a *app) watchConfig(ctx context.Context, srv *server.Server) (*config.Loader, error) {
	path := a.resolvedConfigPath()
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	loader := config.NewLoader(path)
	if _, err := loader.Load(); err != nil {
		return nil, err
	}
	loader.OnChange(func(old, updated *config.Config) {
		if old != nil && old.Analysis == updated.Analysis {
			return
		}
		analyzer, err := kasiski.FromConfig(updated.Analysis, a.logger.Logger)
		if err != nil {
			a.logger.Error("config reload rejected", "error", err)
			return
		}
		srv.SetAnalyzer(analyzer)
		a.logger.Info("analysis settings reloaded",
			"table", analyzer.Table().Name,
			"threshold", analyzer.Threshold(),
		)
	})
	if err := loader.Watch(); err != nil {
		loader.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-loader.Errors():
				a.logger.Warn("config watch", "error", err)
			}
		}
	}()
	return loader, nil
}
