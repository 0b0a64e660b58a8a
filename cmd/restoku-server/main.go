package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/restoku/restoku-server/internal/config"
)

var (
	configFile     string
	forwardKitchen bool
)

func main() {
	root := &cobra.Command{
		Use:           "restoku-server",
		Short:         "Multi-tenant restaurant platform server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "config/restoku-server.yml", "Configuration file path")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	serve.Flags().BoolVar(&forwardKitchen, "forward-kitchen", true, "Forward orders to kitchen displays from this process")
	root.Flags().AddFlagSet(serve.Flags())

	routes := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table",
		RunE:  runRoutes,
	}

	root.AddCommand(serve, routes)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("restoku-server failed")
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and sets up logging from it
func loadConfig() (*config.Config, error) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.PrintConfigSummary()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := build(ctx, cfg, forwardKitchen)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.container.Start(ctx); err != nil {
		return fmt.Errorf("start providers: %w", err)
	}
	log.Info().Strs("providers", app.container.Order()).Msg("Providers started")

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.ListenAndServe(cfg.ListenAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
	case serveErr = <-errCh:
		log.Error().Err(serveErr).Msg("HTTP server failed")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown HTTP server gracefully")
	}

	wg.Wait()

	if err := app.container.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close providers")
	}
	log.Info().Msg("Restoku server stopped")
	return serveErr
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// the table does not depend on backing services
	offline := *cfg
	offline.Database.DSN = ""
	offline.Redis.Addr = ""
	offline.NATS.URL = ""
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)

	app, err := build(context.Background(), &offline, false)
	if err != nil {
		return err
	}
	defer app.close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FOREST\tMETHOD\tPATH\tNAME\tACCESS")
	for _, info := range app.server.Table().Describe() {
		access := "public"
		switch {
		case info.Redirect != "":
			access = "-> " + info.Redirect
		case len(info.Roles) > 0:
			access = strings.Join(info.Roles, ",")
		case info.Guarded:
			access = "signed in"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", info.Forest, info.Method, info.Path, info.Name, access)
	}
	return w.Flush()
}
