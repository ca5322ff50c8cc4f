package main

import (
	"context"
	"fmt"

	"github.com/placeloop/go-common/cache"
	"github.com/placeloop/go-common/collection"
	"github.com/placeloop/go-common/config"
	"github.com/placeloop/go-common/env"
	"github.com/placeloop/go-common/kv"
	"github.com/placeloop/go-common/location"
	"github.com/placeloop/go-common/logger"
	"github.com/placeloop/go-common/place"
	"github.com/placeloop/go-common/provider"
	"github.com/placeloop/go-common/store"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// app wires the domain caches the way the runtime does, so every command
// operates on the live stores. Commands must Close it before returning.
type app struct {
	cfg   *config.Config
	log   logger.Logger
	coord *cache.Coordinator

	places *place.Service
	colls  *collection.Service
	loc    *location.Inspector

	shutdown func()
}

func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := env.LoadEnvFile(envFile); err != nil {
			return nil, fmt.Errorf("error loading env file: %w", err)
		}
	}
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	_, log, telemetryDone, err := env.NewTelemetry(ctx, cmd, "placeloop-cachectl")
	if err != nil {
		return nil, err
	}

	bolt, err := kv.OpenBolt(cfg.Storage.BoltPath, log)
	if err != nil {
		telemetryDone()
		return nil, err
	}
	base := kv.Store(bolt)
	if cfg.Storage.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Storage.RedisURL)
		if err != nil {
			bolt.Close()
			telemetryDone()
			return nil, fmt.Errorf("error parsing redis URL: %w", err)
		}
		base = kv.NewComposite(bolt, kv.NewRedis(redis.NewClient(opts)))
	}

	sql, err := store.OpenSQLite(cfg.Storage.SQLiteDSN, log)
	if err != nil {
		base.Close()
		telemetryDone()
		return nil, err
	}

	source := provider.New(cfg.Provider.BaseURL, cfg.Provider.APIKey.Text(), provider.WithLogger(log))
	flight := cache.NewFlight()
	timeout := cfg.Cache.StorageTimeout.Std()

	places := place.NewService(base, source, sql,
		place.WithLogger(log),
		place.WithFlight(flight),
		place.WithProviderTTL(cfg.Provider.Retention.Std()),
		place.WithOverlayCapacity(cfg.Cache.OverlayQuantity.Value()),
		place.WithStorageTimeout(timeout))
	colls := collection.NewService(base, sql,
		collection.WithLogger(log),
		collection.WithFlight(flight),
		collection.WithStorageTimeout(timeout))
	loc := location.NewInspector(base,
		location.WithLogger(log),
		location.WithFlight(flight),
		location.WithStorageTimeout(timeout))

	coord := cache.NewCoordinator(log)
	coord.Register(places, colls, loc)

	return &app{
		cfg:    cfg,
		log:    log,
		coord:  coord,
		places: places,
		colls:  colls,
		loc:    loc,
		shutdown: func() {
			sql.Close()
			base.Close()
			telemetryDone()
		},
	}, nil
}

func (a *app) Close() {
	a.shutdown()
}

func (a *app) sweep(ctx context.Context) int {
	return a.places.Sweep(ctx) + a.colls.Sweep(ctx) + a.loc.Sweep(ctx)
}
