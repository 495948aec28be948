package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/OtisPresley/snmp-switch-manager/internal/config"
	"github.com/OtisPresley/snmp-switch-manager/internal/event"
	"github.com/OtisPresley/snmp-switch-manager/internal/manager"
	"github.com/OtisPresley/snmp-switch-manager/internal/metrics"
	"github.com/OtisPresley/snmp-switch-manager/internal/poll"
	"github.com/OtisPresley/snmp-switch-manager/internal/reconcile"
	"github.com/OtisPresley/snmp-switch-manager/internal/snmp"
	"github.com/OtisPresley/snmp-switch-manager/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Config before logger so level and format are configurable.
	cfg, v, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("swmgrd starting")
	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("source", f))
	} else {
		logger.Warn("no configuration file, using defaults")
	}

	ctx := context.Background()

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))

	bus := event.NewBus(logger)
	metrics.Observe(bus)
	logEvents(bus, logger)

	registry := store.NewEntityRegistry(db, logger)
	reconciler := reconcile.New(registry, logger)
	client := snmp.NewClient(logger)

	var prober *poll.Prober
	if cfg.Probe.Enabled {
		prober = poll.NewProber(cfg.Probe.Timeout, logger)
	}

	mgr := manager.New(nil, client, db, reconciler, bus, logger)
	sched := poll.NewScheduler(client, mgr, prober, logger)
	mgr.SetPoller(sched)

	if err := seedDevices(ctx, mgr, db, cfg, logger); err != nil {
		logger.Fatal("failed to load devices", zap.Error(err))
	}

	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(cfg.Metrics.Addr, logger)
		go func() {
			if err := metricsSrv.Start(); err != nil {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	sched.Stop()
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics shutdown failed", zap.Error(err))
		}
	}
	logger.Info("swmgrd stopped")
}

// seedDevices loads persisted devices and upserts the config file's
// device entries over them. File entries without an ID get one
// assigned and are persisted with it.
func seedDevices(ctx context.Context, mgr *manager.Manager, db *store.Store, cfg *config.Config, logger *zap.Logger) error {
	persisted, err := db.LoadDevices(ctx)
	if err != nil {
		return err
	}

	// Map persisted devices by host so a file entry without an ID
	// updates the existing device instead of duplicating it.
	byHost := make(map[string]string, len(persisted))
	for _, rec := range persisted {
		byHost[rec.Device.Host] = rec.Device.ID
	}

	fromFile := make(map[string]bool)
	for i := range cfg.Devices {
		dev, rs, err := cfg.Devices[i].ToModel()
		if err != nil {
			return err
		}
		if dev.ID == "" {
			if id, ok := byHost[dev.Host]; ok {
				dev.ID = id
			} else {
				dev.ID = uuid.New().String()
			}
		}
		fromFile[dev.ID] = true
		if err := mgr.AddDevice(ctx, dev, rs); err != nil {
			return err
		}
	}

	for _, rec := range persisted {
		if fromFile[rec.Device.ID] {
			continue
		}
		if err := mgr.AddDevice(ctx, rec.Device, rec.Rules); err != nil {
			return err
		}
	}

	logger.Info("devices loaded",
		zap.Int("from_file", len(fromFile)),
		zap.Int("persisted", len(persisted)))
	return nil
}

// logEvents mirrors lifecycle events into the log.
func logEvents(bus *event.Bus, logger *zap.Logger) {
	log := logger.Named("lifecycle")
	bus.SubscribeAll(func(ctx context.Context, ev event.Event) {
		fields := []zap.Field{zap.String("device", ev.DeviceID)}
		switch p := ev.Payload.(type) {
		case event.PollFailedPayload:
			fields = append(fields,
				zap.String("category", p.Category),
				zap.String("kind", p.Kind),
				zap.Int("failures", p.Failures))
		case event.EntitiesChangedPayload:
			fields = append(fields,
				zap.String("category", p.Category),
				zap.Int("created", p.Created),
				zap.Int("updated", p.Updated),
				zap.Int("removed", p.Removed))
		}
		log.Debug(ev.Topic, fields...)
	})
}
