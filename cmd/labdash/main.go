package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/automata-tech/labdash/internal/config"
	"github.com/automata-tech/labdash/internal/gateway"
	"github.com/automata-tech/labdash/internal/lab"
	"github.com/automata-tech/labdash/internal/lifecycle"
	"github.com/automata-tech/labdash/internal/logging"
	"github.com/automata-tech/labdash/internal/overlay"
	"github.com/automata-tech/labdash/internal/poller"
	"github.com/automata-tech/labdash/internal/tui"
)

func main() {
	var cfgPath string
	cmd := &cobra.Command{
		Use:           "labdash",
		Short:         "Operator dashboard for the lab automation services",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to config.toml (default $LABDASH_CONFIG or ~/.config/labdash/config.toml)")
	cmd.Flags().Int("poll-interval-ms", 5000, "refresh interval in milliseconds")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("labdash: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	gw := gateway.New(gateway.Endpoints{
		Devices:   cfg.Services.DevicesURL,
		Samples:   cfg.Services.SamplesURL,
		Workflows: cfg.Services.WorkflowsURL,
	}, &http.Client{Timeout: cfg.Timeout()})

	sync := poller.NewSynchronizer(gw, overlay.New(), poller.WithLogger(logger))
	sched := poller.NewScheduler(sync, poller.WithSchedulerLogger(logger))
	ctrl := lifecycle.NewController(gw, sync, logger)

	app := tui.New(ctx, cfg.UI, ctrl, sync, sync.Current())
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	sync.Subscribe(func(s lab.Snapshot) { p.Send(tui.SnapshotMsg(s)) })

	if err := sched.Start(ctx, cfg.Interval()); err != nil {
		return err
	}
	defer sched.Stop()

	logger.Info("labdash started",
		"devices_url", cfg.Services.DevicesURL,
		"samples_url", cfg.Services.SamplesURL,
		"workflows_url", cfg.Services.WorkflowsURL,
		"interval", cfg.Interval(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "tui error:", err)
		return err
	}
	return nil
}
