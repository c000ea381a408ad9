package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/PravinPK/places-monitor/internal/config"
	"github.com/PravinPK/places-monitor/internal/db"
	"github.com/PravinPK/places-monitor/internal/grpcapi"
	"github.com/PravinPK/places-monitor/internal/httpapi"
	"github.com/PravinPK/places-monitor/internal/logging"
	"github.com/PravinPK/places-monitor/internal/monitor/catalog"
	"github.com/PravinPK/places-monitor/internal/monitor/platform/simulated"
	"github.com/PravinPK/places-monitor/internal/monitor/service"
	"github.com/PravinPK/places-monitor/internal/monitor/store"
	"github.com/PravinPK/places-monitor/internal/monitor/store/memory"
	"github.com/PravinPK/places-monitor/internal/monitor/store/sqlite"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "places-monitor",
		Short:         "Keeps device geofences in sync with nearby points of interest",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

type stores struct {
	prefs  store.StringSetStore
	events store.TransitionEventStore
	close  func()
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if cfg.Storage != config.StorageSQLite {
		return stores{
			prefs:  memory.NewStringSetStore(),
			events: memory.NewTransitionEventStore(),
			close:  func() {},
		}, nil
	}

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		return stores{}, err
	}
	writer := db.NewWorker(conn)
	return stores{
		prefs:  sqlite.NewStringSetStore(conn, writer),
		events: sqlite.NewTransitionEventStore(conn, writer),
		close: func() {
			writer.Close()
			_ = conn.Close()
		},
	}, nil
}

func run(parent context.Context, cfg config.Config) error {
	logger, err := logging.New(logging.WithLogLevel(cfg.LogLevel), logging.WithLogFormat(cfg.LogFormat))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()
	logger.Info("storage ready", zap.String("storage", cfg.Storage), zap.String("env", cfg.Env))

	// Services
	recorder := service.NewTransitionRecorder(st.events, logger)
	tracker := service.NewMembershipTracker(service.MembershipTrackerDeps{
		Logger: logger,
		Prefs:  st.prefs,
		Sink:   recorder,
	})
	platform := simulated.New(simulated.Config{
		Logger:            logger,
		PermissionGranted: cfg.PermissionGranted,
		Handler:           tracker,
	})
	reconciler := service.NewFenceReconciler(service.FenceReconcilerDeps{
		Logger:      logger,
		Permissions: platform,
		Clients:     platform,
		Targets:     platform.GeofenceTargets(),
		Prefs:       st.prefs,
	})

	pois := catalog.New()
	nearby := service.NewLocationService(pois, tracker, recorder, cfg.NearbyLimit, logger)
	locations := service.NewLocationManager(service.LocationManagerDeps{
		Logger:      logger,
		Permissions: platform,
		Clients:     platform,
		Targets:     platform.LocationTargets(),
		Handler:     nearby,
		Request:     cfg.LocationRequest(),
	})

	reconciler.Load(ctx)
	tracker.Load(ctx)

	// Background loops
	pruner := service.NewTransitionPruner(st.events, service.PrunerConfig{
		RetentionDays: cfg.TransitionRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	if cfg.POIFile != "" {
		refresher := service.NewPOIRefresher(catalog.NewFileSource(cfg.POIFile), pois, reconciler, cfg.POIRefreshInterval, logger)
		refresher.Start(ctx)
		defer refresher.Stop()
	}

	// HTTP + gRPC health
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:     logger,
		Addr:       cfg.HTTPAddr,
		Catalog:    pois,
		Reconciler: reconciler,
		Tracker:    tracker,
		Locations:  locations,
		Recorder:   recorder,
		Device:     platform,
	})
	health := grpcapi.NewServer(cfg.GRPCAddr, logger)

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()
	go func() {
		if err := health.ListenAndServe(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	health.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	locations.StopMonitoring(shutdownCtx)
	reconciler.Save(shutdownCtx)
	tracker.Save(shutdownCtx)
	return nil
}
