package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/automata-tech/labdash/internal/config"
	"github.com/automata-tech/labdash/internal/labsim"
)

func main() {
	var cfgPath string
	cmd := &cobra.Command{
		Use:           "labsim",
		Short:         "Serve in-memory device, sample and workflow services",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to config.toml")

	if err := cmd.Execute(); err != nil {
		log.Fatalf("labsim: %v", err)
	}
}

func run(cfg config.Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	sim := labsim.New()

	services := []struct {
		name    string
		rawURL  string
		handler http.Handler
	}{
		{"device-service", cfg.Services.DevicesURL, sim.DeviceService()},
		{"sample-service", cfg.Services.SamplesURL, sim.SampleService()},
		{"workflow-service", cfg.Services.WorkflowsURL, sim.WorkflowService()},
	}

	servers := make([]*http.Server, 0, len(services))
	serverErrors := make(chan error, len(services))
	for _, svc := range services {
		addr, err := listenAddr(cfg.Sim.Host, svc.rawURL)
		if err != nil {
			return fmt.Errorf("%s: %w", svc.name, err)
		}
		srv := &http.Server{
			Addr:         addr,
			Handler:      svc.handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		servers = append(servers, srv)
		go func(name string) {
			logger.Info("service starting", "service", name, "address", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}(svc.name)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
			logger.Error("server error", "error", err)
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", "address", srv.Addr, "error", err)
			_ = srv.Close()
		}
	}
	logger.Info("simulator stopped")
	return runErr
}

// listenAddr binds host to the port of a configured service URL.
func listenAddr(host, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(host, port), nil
}
