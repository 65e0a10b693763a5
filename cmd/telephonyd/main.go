package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/config"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/extension"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/logger"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/mock"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/registry"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/rpc"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

const mockBundle = "telephonyd.mock"

func main() {
	mockMode := flag.Bool("mock", false, "Publish simulated modem state")
	configPath := flag.String("config", "telephonyd.yaml", "Path to config file")
	dotenv := flag.String("env", ".env", "Path to .env file with TELEPHONY_* overrides")
	socket := flag.String("socket", "", "Override server socket path")
	flag.Parse()

	if err := run(*configPath, *dotenv, *socket, *mockMode); err != nil {
		fmt.Fprintf(os.Stderr, "telephonyd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, dotenv, socket string, mockMode bool) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(dotenv); err != nil {
		return fmt.Errorf("apply environment: %w", err)
	}
	if socket != "" {
		cfg.Server.Socket = socket
	}
	if mockMode {
		cfg.Mock.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	auth := registry.NewStaticAuthorizer(cfg.Permissions.Grants, cfg.Permissions.System)
	broker := registry.NewBroker(registry.Options{
		Slots:      cfg.Registry.SlotRange(),
		Authorizer: auth,
		OutboxSize: cfg.Registry.OutboxSize,
		Logger:     log,
	})
	defer broker.Close()

	if n := extension.Install(broker, cfg.Extensions); n > 0 {
		log.Info("extension hooks installed", slog.Int("count", n))
	}

	server := rpc.NewServer(broker, rpc.ServerOptions{
		MaxConnections: cfg.Server.MaxConnections,
		SendBuffer:     cfg.Server.SendBuffer,
		WriteTimeout:   cfg.Server.WriteTimeout,
		PingInterval:   cfg.Server.PingInterval,
		Logger:         log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mockID := telephony.Identity{
		PID:        int32(os.Getpid()),
		UID:        uint32(os.Getuid()),
		BundleName: mockBundle,
	}
	if cfg.Mock.Enabled {
		auth.Grant(telephony.PermSetTelephonyState, mockBundle)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx, cfg.Server.Socket)
	})

	if cfg.Mock.Enabled {
		log.Info("starting mock modem", slog.Duration("interval", cfg.Mock.Interval), logger.Identity(mockID))
		mock.NewGenerator(broker.Bind(mockID), broker.Slots(), cfg.Mock.Interval, log).Start(ctx)
	}

	log.Info("telephonyd started",
		slog.String("socket", cfg.Server.Socket),
		slog.Int("slots", cfg.Registry.SlotCount),
		slog.Bool("virtual_slot", cfg.Registry.VirtualSlot),
	)

	err = g.Wait()
	log.Info("shutting down", slog.Int("records", broker.Len()))
	return err
}
