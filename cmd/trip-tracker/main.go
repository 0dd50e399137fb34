package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	lib "github.com/ibi-group/otp-middleware-sub001"
	"github.com/ibi-group/otp-middleware-sub001/interaction"
	"github.com/ibi-group/otp-middleware-sub001/internal/metrics"
	"github.com/ibi-group/otp-middleware-sub001/journey"
	"github.com/ibi-group/otp-middleware-sub001/otp"
	"github.com/ibi-group/otp-middleware-sub001/publisher"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (defaults to ./config.yml)")
	flag.Parse()

	lib.InitLogging()
	_ = godotenv.Load()

	cfg, err := lib.LoadAppConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, cleanup, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("init store: %v", err)
	}
	defer cleanup()

	var pub lib.PositionPublisher
	if cfg.NATS.URL != "" {
		np, err := publisher.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			log.Fatalf("connect nats: %v", err)
		}
		defer np.Close()
		pub = np
	}

	interactionTimeout := time.Duration(cfg.Interactions.TimeoutMS) * time.Millisecond
	registry := interaction.Registry{}
	if cfg.Interactions.SignalURL != "" {
		registry[interaction.HandlerTrafficSignal] = interaction.NewTrafficSignalHandler(
			cfg.Interactions.SignalURL, cfg.Interactions.SignalAPIKey, interactionTimeout)
	}
	if cfg.Interactions.BusNotifyURL != "" {
		registry[interaction.HandlerBusOperator] = interaction.NewBusOperatorHandler(
			cfg.Interactions.BusNotifyURL, cfg.Interactions.BusNotifyAPIKey, interactionTimeout)
	}
	dispatcher := interaction.NewDispatcher(cfg.Interactions.Rules, registry, store, interactionTimeout)

	provider := otp.NewClient(cfg.OTP.BaseURL, time.Duration(cfg.OTP.TimeoutMS)*time.Millisecond)
	collector := metrics.NewCollector()

	tracker := lib.NewTracker(cfg, store, provider, dispatcher, pub, collector)
	server := lib.NewServer(cfg.Server, tracker, collector.Handler())
	server.Start()
	server.HandleGracefulShutdown()
}

// buildStore picks the journey store: postgres when a database URL is
// configured, in-memory otherwise.
func buildStore(cfg lib.AppConfig) (journey.Store, func(), error) {
	if cfg.Database.URL == "" {
		log.Printf("no database configured, using in-memory journey store")
		return journey.NewMemoryStore(), func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	store := journey.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
