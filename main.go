package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/incendiarybean/proxy-address-blocker/config"
	"github.com/incendiarybean/proxy-address-blocker/controlapi"
	"github.com/incendiarybean/proxy-address-blocker/metrics"
	"github.com/incendiarybean/proxy-address-blocker/proxy"
	"github.com/incendiarybean/proxy-address-blocker/trafficfilter"
)

// version is overridden at build time via -ldflags, matching the
// teacher's use of a package-level default for untagged local builds.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "proxyd",
		Short: "proxyd runs the local forwarding proxy and its Control API",
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	var (
		port           uint16
		controlPort    uint16
		logLevel       string
		logFormat      string
		filterEnabled  bool
		filterPolarity string
		filterPatterns []string
		allowedOrigin  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the proxy engine and its Control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig := config.Load()

			if cmd.Flags().Changed("port") {
				appConfig.Port = port
			}
			if cmd.Flags().Changed("control-port") {
				appConfig.ControlPort = controlPort
			}
			if cmd.Flags().Changed("log-level") {
				appConfig.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				appConfig.LogFormat = logFormat
			}
			if cmd.Flags().Changed("filter-enabled") {
				appConfig.FilterEnabled = filterEnabled
			}
			if cmd.Flags().Changed("filter-polarity") {
				appConfig.FilterPolarity = filterPolarity
			}
			if cmd.Flags().Changed("filter-patterns") {
				appConfig.FilterPatterns = filterPatterns
			}
			if cmd.Flags().Changed("allowed-origin") {
				appConfig.AllowedOrigin = allowedOrigin
			}

			return runServe(appConfig)
		},
	}

	flags := cmd.Flags()
	flags.Uint16Var(&port, "port", 8000, "port the proxy's Accept Loop binds on 127.0.0.1")
	flags.Uint16Var(&controlPort, "control-port", 8001, "port the Control API listens on")
	flags.StringVar(&logLevel, "log-level", "info", "debug|info|warning")
	flags.StringVar(&logFormat, "log-format", "text", "text|json")
	flags.BoolVar(&filterEnabled, "filter-enabled", false, "enable the traffic filter at startup")
	flags.StringVar(&filterPolarity, "filter-polarity", "deny", "allow|deny")
	flags.StringSliceVar(&filterPatterns, "filter-patterns", nil, "initial filter pattern list")
	flags.StringVar(&allowedOrigin, "allowed-origin", "*", "CORS origin allowed to call the Control API")

	return cmd
}

// runServe wires a Proxy, its metrics, its event Hub, and the Control
// API together, starts listening, and blocks until SIGINT/SIGTERM,
// mirroring the teacher's signal-channel-plus-select shutdown shape.
func runServe(appConfig *config.Config) error {
	log := appConfig.NewLogger()
	defer log.Sync()

	log.Info("proxy engine starting",
		"port", appConfig.Port,
		"control_port", appConfig.ControlPort,
		"log_format", appConfig.LogFormat,
	)

	filter := trafficfilter.New(
		appConfig.FilterEnabled,
		trafficfilter.ParsePolarity(appConfig.FilterPolarity),
		appConfig.FilterPatterns,
	)

	registry := metrics.NewRegistry()
	hub := controlapi.NewHub(log)

	engine := proxy.New(appConfig.Port, filter, log,
		proxy.WithMetrics(registry),
		proxy.WithEventSink(hub),
	)

	router := controlapi.NewRouter(controlapi.Dependencies{
		Proxy:         engine,
		Logger:        log,
		Metrics:       registry,
		Hub:           hub,
		AllowedOrigin: appConfig.AllowedOrigin,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", appConfig.ControlPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	engine.Run()

	shutdownChannel := make(chan error, 1)
	go func() {
		log.Info("control api listening", "addr", server.Addr)

		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			shutdownChannel <- err
		}
		close(shutdownChannel)
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	log.Info("startup complete", "port", appConfig.Port, "control_port", appConfig.ControlPort)

	select {
	case sig := <-signalChannel:
		log.Info("shutdown signal received", "signal", sig.String())
	case err := <-shutdownChannel:
		if err != nil {
			log.Warning("control api failed", "error", err)
		}
	}

	engine.Stop()
	engine.Wait()

	shutdownContext, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownContext); err != nil {
		log.Warning("control api graceful shutdown failed", "error", err)
		return err
	}

	log.Info("shut down cleanly")
	return nil
}
