package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"nav-simulator/internal/config"
	"nav-simulator/internal/coordinator"
	"nav-simulator/internal/feed"
	"nav-simulator/internal/metrics"
	"nav-simulator/internal/nav"
	"nav-simulator/internal/places"
	"nav-simulator/internal/publisher"
	"nav-simulator/internal/routing"
	"nav-simulator/internal/server"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	log.SetLevel(cfg.LogLevel)
	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metrics are always collected; the endpoint is optional.
	mcol := metrics.NewCollector(cfg.Feed.Interval)
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = mcol.Serve(cfg.MetricsAddr, log)
	}

	// Event sinks
	var sinks publisher.Fanout
	var sensor feed.Sensor
	if cfg.NATSURL != "" {
		natsPub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, log, mcol)
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		sinks = append(sinks, natsPub)
		sensor = feed.NewNATSSensor(natsPub.Conn(), cfg.NATSSensorSubject)
		log.WithField("subject", cfg.NATSSensorSubject).Info("positioning sensor on NATS")
	} else {
		log.Warn("NATS_URL not set, no positioning sensor; position holds until a trip starts")
	}
	if len(cfg.KafkaBrokers) > 0 {
		sinks = append(sinks, publisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.DeviceID, cfg.VehicleID, log, mcol))
		log.WithField("topic", cfg.KafkaTopic).Info("streaming positions to kafka")
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.WithError(err).Warn("closing publishers")
		}
	}()

	// Google web services
	httpClient := &http.Client{Timeout: cfg.MapsHTTPTimeout}
	var directions routing.Directions
	if cfg.MapsAPIKey != "" {
		directions = routing.NewGoogleDirections(cfg.MapsBaseURL, cfg.MapsAPIKey, httpClient)
	} else {
		log.Warn("MAPS_API_KEY not set, route requests will fail as unavailable")
	}
	router := routing.NewClient(directions, log)

	var backend places.Backend
	switch {
	case cfg.DatabaseURL != "":
		db, err := places.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		if err := places.Ping(ctx, db); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		pg := places.NewPostgres(db, 5)
		defer pg.Close()
		backend = pg
		log.Info("place suggestions from postgres gazetteer")
	case cfg.MapsAPIKey != "":
		backend = places.NewGoogleAutocomplete(cfg.MapsBaseURL, cfg.MapsAPIKey, httpClient)
	}
	suggest := places.NewService(backend, log, mcol)

	// Location feed and coordinator
	start := nav.PositionSample{Latitude: cfg.Start.Lat, Longitude: cfg.Start.Lng, Timestamp: time.Now()}
	locFeed := feed.New(sensor, start, cfg.Feed, log, mcol)
	coord := coordinator.New(locFeed, router, coordinator.Options{
		AdvanceRadius: cfg.AdvanceRadius,
		Theme:         cfg.Theme,
		Traffic:       cfg.Traffic,
		Publisher:     sinks,
		Metrics:       mcol,
	}, log)

	hub := server.NewHub(cfg.SystemTheme, log, mcol)
	go hub.Run(ctx)
	coord.Subscribe(hub.Broadcast)

	locFeed.Start(ctx)

	srv := server.NewServer(server.Config{Addr: cfg.HTTPAddr, SystemTheme: cfg.SystemTheme}, coord, suggest, hub, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.WithError(err).Error("http server stopped")
			cancel()
		}
	}()

	// Block until context cancelled
	<-ctx.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	locFeed.Close()
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("metrics shutdown")
		}
	}
	log.Info("shutdown complete")
}
