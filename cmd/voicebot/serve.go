package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexiqai/voicebot/internal/completion"
	"github.com/lexiqai/voicebot/internal/config"
	"github.com/lexiqai/voicebot/internal/pipeline"
	"github.com/lexiqai/voicebot/internal/synthesis"
	"github.com/lexiqai/voicebot/internal/web"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat page and the /chat endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp("web", func(cfg *config.Config) completion.Options {
				return completion.WebOptions(cfg.WebCompletionBudget(), cfg.WebTemperature, cfg.WebMaxTokens)
			})
			if err != nil {
				return err
			}
			defer a.close()

			if port != "" {
				a.cfg.Port = port
			}

			pool := synthesis.NewPool(a.synth, a.cfg.SynthesisWorkers)
			defer pool.Close()

			checks := a.checks()
			stopHealth, err := a.startGRPCHealth(checks)
			if err != nil {
				return err
			}
			defer stopHealth()

			srv := web.NewServer(web.Config{
				Addr:           fmt.Sprintf(":%s", a.cfg.Port),
				MetricsEnabled: a.cfg.MetricsEnabled,
				Checks:         checks,
			}, pipeline.New(a.completer, pool, a.replies, a.recordings))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.logger.Info().Int("synthesis_workers", a.cfg.SynthesisWorkers).Msg("Web surface ready")
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}
